package apscan

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Frequencies at or above this are assumed to be kHz rather than MHz.
const kHzThreshold = 100000

// AccessPoint is one discovered radio. Two records may share a Name,
// each still represents its own BSSID.
type AccessPoint struct {
	Path      string
	Name      string
	Frequency uint32
	// Set when a local interface is associated with this access point.
	Active bool
}

func (t AccessPoint) FrequencyGHz() float32 {
	f := float64(t.Frequency)
	if t.Frequency >= kHzThreshold {
		f /= 1000.0
	}
	return float32(f / 1000.0)
}

// FrequencyMHz is the frequency in MHz whatever unit it was reported in.
func (t AccessPoint) FrequencyMHz() uint32 {
	if t.Frequency >= kHzThreshold {
		return t.Frequency / 1000
	}
	return t.Frequency
}

// FrequencyLabel is the GHz value at one decimal place, ie: "2.4".
func (t AccessPoint) FrequencyLabel() string {
	return fmt.Sprintf("%.1f", t.FrequencyGHz())
}

func (t AccessPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name         string  `json:"name"`
		FrequencyGHz float32 `json:"frequency_ghz"`
		Frequency    uint32  `json:"frequency"`
		Path         string  `json:"path"`
		Active       bool    `json:"active"`
	}{t.Name, t.FrequencyGHz(), t.Frequency, t.Path, t.Active})
}

// DecodeName turns raw SSID bytes into displayable text. Invalid UTF-8
// runs become U+FFFD so a malformed name is still rendered.
func DecodeName(raw []byte) string {
	return strings.ToValidUTF8(string(raw), "�")
}

// DeviceScan is the outcome of one scan cycle on one wireless device.
type DeviceScan struct {
	Device       string
	Interface    string
	AccessPoints []AccessPoint
	Err          error
}

func (t DeviceScan) MarshalJSON() ([]byte, error) {
	errMsg := ""
	if t.Err != nil {
		errMsg = t.Err.Error()
	}
	aps := t.AccessPoints
	if aps == nil {
		aps = []AccessPoint{}
	}
	return json.Marshal(struct {
		Device       string        `json:"device"`
		Interface    string        `json:"interface"`
		AccessPoints []AccessPoint `json:"accessPoints"`
		Error        string        `json:"error,omitempty"`
	}{t.Device, t.Interface, aps, errMsg})
}

// DeviceInfo describes any managed device, wireless or not.
type DeviceInfo struct {
	Path      string `json:"path"`
	Kind      uint32 `json:"kind"`
	KindName  string `json:"kindName"`
	Interface string `json:"interface"`
	Wireless  bool   `json:"wireless"`
	Error     string `json:"error,omitempty"`
}

// Flatten concatenates every device's access points in device order.
func Flatten(scans []DeviceScan) []AccessPoint {
	out := []AccessPoint{}
	for _, s := range scans {
		out = append(out, s.AccessPoints...)
	}
	return out
}
