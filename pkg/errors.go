package apscan

import (
	"errors"
	"fmt"
)

// BusError wraps a failed method call, property read or connection
// attempt on the system bus. These are never retried.
type BusError struct {
	Op   string
	Path string
	Err  error
}

func (t *BusError) Error() string {
	if t.Path == "" {
		return fmt.Sprintf("bus %s: %v", t.Op, t.Err)
	}
	return fmt.Sprintf("bus %s on %s: %v", t.Op, t.Path, t.Err)
}

func (t *BusError) Unwrap() error {
	return t.Err
}

type ScanErrorKind int

const (
	// A scan is already running or the device refuses to scan right now.
	ScanBusy ScanErrorKind = iota
	// LastScan never changed within the configured timeout.
	ScanTimeout
	// The caller's context ended while awaiting completion.
	ScanCancelled
	// The bus service is too old to report LastScan.
	ScanUnsupported
)

func (k ScanErrorKind) String() string {
	switch k {
	case ScanBusy:
		return "busy"
	case ScanTimeout:
		return "timeout"
	case ScanCancelled:
		return "cancelled"
	case ScanUnsupported:
		return "unsupported"
	}
	return fmt.Sprintf("ScanErrorKind(%d)", int(k))
}

// ScanError ends one device's scan cycle. It never affects other devices.
type ScanError struct {
	Kind   ScanErrorKind
	Device string
	Err    error
}

var (
	ErrScanBusy        = &ScanError{Kind: ScanBusy}
	ErrScanTimeout     = &ScanError{Kind: ScanTimeout}
	ErrScanCancelled   = &ScanError{Kind: ScanCancelled}
	ErrScanUnsupported = &ScanError{Kind: ScanUnsupported}
)

func (t *ScanError) Error() string {
	msg := "scan " + t.Kind.String()
	if t.Device != "" {
		msg += " on " + t.Device
	}
	if t.Err != nil {
		msg += ": " + t.Err.Error()
	}
	return msg
}

func (t *ScanError) Unwrap() error {
	return t.Err
}

// Is matches any ScanError of the same kind, so callers can test
// errors.Is(err, ErrScanTimeout).
func (t *ScanError) Is(target error) bool {
	var other *ScanError
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == t.Kind
}
