package network_nm

import (
	"context"
	"errors"
	"fmt"
	"time"

	apscan "github.com/dogeorg/apscan/pkg"
	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

type ScanOptions struct {
	// Bounds the wait for LastScan to change. Zero means the default.
	Timeout time.Duration
	// Seed the cycle with LastScan as read before RequestScan, so that
	// the very first notification may already complete the scan.
	PreScanBaseline bool
	Log             logrus.FieldLogger
}

func (t ScanOptions) timeout() time.Duration {
	if t.Timeout <= 0 {
		return apscan.DefaultScanTimeout
	}
	return t.Timeout
}

func (t ScanOptions) logger() logrus.FieldLogger {
	if t.Log == nil {
		return logrus.StandardLogger()
	}
	return t.Log
}

type ScanState int

const (
	Idle ScanState = iota
	ScanRequested
	AwaitingCompletion
	Complete
)

func (s ScanState) String() string {
	switch s {
	case Idle:
		return "idle"
	case ScanRequested:
		return "scan-requested"
	case AwaitingCompletion:
		return "awaiting-completion"
	case Complete:
		return "complete"
	}
	return fmt.Sprintf("ScanState(%d)", int(s))
}

// scanCycle is the per call state of one scan. It is never shared
// between devices or calls.
type scanCycle struct {
	state ScanState
	last  *int64
}

func newScanCycle(prior *int64) *scanCycle {
	return &scanCycle{state: Idle, last: prior}
}

// observe feeds one LastScan value and reports whether the scan is
// complete. The first value without a prior only sets the baseline.
func (t *scanCycle) observe(v int64) bool {
	if t.state == Complete {
		return true
	}
	t.state = AwaitingCompletion
	if t.last == nil {
		t.last = &v
		return false
	}
	if v != *t.last {
		t.state = Complete
		return true
	}
	return false
}

// WirelessDevice is a handle on one wifi device. It holds the shared
// Bus, never a connection of its own, and keeps no state between scans.
type WirelessDevice struct {
	bus  Bus
	path dbus.ObjectPath
	opts ScanOptions
}

func newWirelessDevice(bus Bus, path dbus.ObjectPath, opts ScanOptions) *WirelessDevice {
	return &WirelessDevice{bus: bus, path: path, opts: opts}
}

func (t *WirelessDevice) Path() dbus.ObjectPath {
	return t.path
}

func (t *WirelessDevice) LastScan(ctx context.Context) (int64, error) {
	v, err := t.bus.Property(ctx, t.path, wirelessIface, "LastScan")
	if err != nil {
		return 0, err
	}
	return variantInt64(v)
}

// Scan requests a scan and blocks until LastScan moves past its
// baseline, the timeout passes or ctx ends.
func (t *WirelessDevice) Scan(ctx context.Context) error {
	log := t.opts.logger().WithField("device", string(t.path))

	ctx, cancel := context.WithTimeout(ctx, t.opts.timeout())
	defer cancel()

	var prior *int64
	if t.opts.PreScanBaseline {
		v, err := t.LastScan(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return t.waitError(ctx)
			}
			return err
		}
		prior = &v
	}
	cycle := newScanCycle(prior)

	sub, err := t.bus.Watch(ctx, t.path, wirelessIface, "LastScan")
	if err != nil {
		return err
	}
	defer sub.Cancel()

	err = t.bus.Call(ctx, t.path, wirelessIface+".RequestScan", []any{map[string]dbus.Variant{}})
	if err != nil {
		if isNotAllowed(err) {
			return &apscan.ScanError{Kind: apscan.ScanBusy, Device: string(t.path), Err: err}
		}
		return err
	}
	cycle.state = ScanRequested
	log.Debug("scan requested")

	for {
		select {
		case <-ctx.Done():
			return t.waitError(ctx)
		case <-sub.Done():
			return &apscan.ScanError{Kind: apscan.ScanCancelled, Device: string(t.path), Err: errors.New("subscription cancelled")}
		case v := <-sub.Values():
			ts, err := variantInt64(v)
			if err != nil {
				log.WithError(err).Warn("ignoring malformed LastScan value")
				continue
			}
			if cycle.observe(ts) {
				log.WithField("lastScan", ts).Debug("scan complete")
				return nil
			}
		}
	}
}

func (t *WirelessDevice) waitError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &apscan.ScanError{Kind: apscan.ScanTimeout, Device: string(t.path), Err: ctx.Err()}
	}
	return &apscan.ScanError{Kind: apscan.ScanCancelled, Device: string(t.path), Err: ctx.Err()}
}

// AccessPoints lists the access points seen by the last completed scan,
// in the order the service reports them.
func (t *WirelessDevice) AccessPoints(ctx context.Context) ([]dbus.ObjectPath, error) {
	var paths []dbus.ObjectPath
	err := t.bus.Call(ctx, t.path, wirelessIface+".GetAccessPoints", nil, &paths)
	return paths, err
}

func variantInt64(v dbus.Variant) (int64, error) {
	switch n := v.Value().(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	}
	return 0, fmt.Errorf("expected integer, got %s", v.Signature())
}
