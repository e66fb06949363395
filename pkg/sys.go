package apscan

import "context"

// see ./system/ for implementations

// discovers managed devices and runs scan cycles
// on every wireless one
type NetworkManager interface {
	Devices(ctx context.Context) ([]DeviceInfo, error)
	Scan(ctx context.Context) ([]DeviceScan, error)
}

// asks systemd about the unit that owns the bus
// service we scan through
type ServiceMonitor interface {
	Status(ctx context.Context) (ServiceStatus, error)
}

// ServiceMonitor issues these for NetworkManager.service
type ServiceStatus struct {
	Unit        string  `json:"unit"`
	ActiveState string  `json:"activeState"`
	SubState    string  `json:"subState"`
	MainPID     uint32  `json:"mainPid"`
	Running     bool    `json:"running"`
	CPUPercent  float64 `json:"cpuPercent"`
	MEMMb       float64 `json:"memMb"`
}

func (t ServiceStatus) Active() bool {
	return t.ActiveState == "active"
}
