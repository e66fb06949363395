package system

import (
	"context"
	"fmt"

	sddbus "github.com/coreos/go-systemd/v22/dbus"
	apscan "github.com/dogeorg/apscan/pkg"
	"github.com/shirou/gopsutil/v4/process"
)

const NetworkManagerUnit = "NetworkManager.service"

var _ apscan.ServiceMonitor = SystemMonitor{}

/* SystemMonitor
 *
 * SystemMonitor asks systemd for the state of the unit that
 * provides the bus service we scan through, and when it has
 * a main PID, samples that process's CPU and memory use.
 */
type SystemMonitor struct {
	unit  string
	units UnitProperties
}

// UnitProperties is the part of the systemd bus API the monitor reads.
type UnitProperties interface {
	UnitProperties(ctx context.Context, unit string) (map[string]any, error)
}

func NewSystemMonitor(unit string) SystemMonitor {
	if unit == "" {
		unit = NetworkManagerUnit
	}
	return SystemMonitor{unit: unit, units: systemdUnits{}}
}

func (t SystemMonitor) Status(ctx context.Context) (apscan.ServiceStatus, error) {
	status := apscan.ServiceStatus{Unit: t.unit}

	props, err := t.units.UnitProperties(ctx, t.unit)
	if err != nil {
		return status, fmt.Errorf("reading %s from systemd: %w", t.unit, err)
	}

	status.ActiveState, _ = props["ActiveState"].(string)
	status.SubState, _ = props["SubState"].(string)
	status.MainPID, _ = props["MainPID"].(uint32)

	if status.MainPID == 0 {
		return status, nil
	}

	proc, err := process.NewProcessWithContext(ctx, int32(status.MainPID))
	if err != nil {
		return status, nil
	}
	status.Running = true

	if c, err := proc.CPUPercentWithContext(ctx); err == nil {
		status.CPUPercent = c
	}
	if memInfo, err := proc.MemoryInfoWithContext(ctx); err == nil {
		status.MEMMb = float64(memInfo.RSS) / float64(1048576)
	}

	return status, nil
}

type systemdUnits struct{}

func (systemdUnits) UnitProperties(ctx context.Context, unit string) (map[string]any, error) {
	conn, err := sddbus.NewWithContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	out := map[string]any{}
	for _, name := range []string{"ActiveState", "SubState"} {
		p, err := conn.GetUnitPropertyContext(ctx, unit, name)
		if err != nil {
			return nil, err
		}
		out[name] = p.Value.Value()
	}

	// Only services have a main PID.
	if p, err := conn.GetServicePropertyContext(ctx, unit, "MainPID"); err == nil {
		out["MainPID"] = p.Value.Value()
	}
	return out, nil
}
