package apscan

import "time"

// A Change is sent to websocket clients whenever the
// Scanner finishes a pass or fails to start one.
type Change struct {
	ID     string `json:"id"`
	Error  string `json:"error"`
	Type   string `json:"type"`
	Update Update `json:"update"`
}

/* Updates need to be json-marshalable types */
type Update any

// ScanUpdate carries a finished scan pass
type ScanUpdate struct {
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Devices  []DeviceScan `json:"devices"`
}

func (t ScanUpdate) AccessPoints() []AccessPoint {
	return Flatten(t.Devices)
}
