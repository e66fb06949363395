package network_nm

import (
	"context"
	"fmt"

	apscan "github.com/dogeorg/apscan/pkg"
	"github.com/godbus/dbus/v5"
)

// Directory lists and classifies the devices NetworkManager manages.
type Directory struct {
	bus  Bus
	opts ScanOptions
}

func NewDirectory(bus Bus, opts ScanOptions) Directory {
	return Directory{bus: bus, opts: opts}
}

func (t Directory) ListDevices(ctx context.Context) ([]dbus.ObjectPath, error) {
	var paths []dbus.ObjectPath
	if err := t.bus.Call(ctx, nmPath, nmIface+".GetDevices", nil, &paths); err != nil {
		return nil, err
	}
	return paths, nil
}

// Classify reads the device's kind and wraps it in the matching variant.
// An error here concerns this device only.
func (t Directory) Classify(ctx context.Context, path dbus.ObjectPath) (Device, error) {
	kind, err := t.Kind(ctx, path)
	if err != nil {
		return nil, err
	}
	return ClassifyKind(t.bus, path, kind, t.opts), nil
}

func (t Directory) Kind(ctx context.Context, path dbus.ObjectPath) (DeviceKind, error) {
	v, err := t.bus.Property(ctx, path, deviceIface, "DeviceType")
	if err != nil {
		return 0, err
	}
	k, ok := v.Value().(uint32)
	if !ok {
		return 0, &apscan.BusError{Op: "DeviceType", Path: string(path), Err: fmt.Errorf("unexpected type %s", v.Signature())}
	}
	return DeviceKind(k), nil
}

// InterfaceName is the kernel interface behind a device, ie: wlan0.
func (t Directory) InterfaceName(ctx context.Context, path dbus.ObjectPath) (string, error) {
	v, err := t.bus.Property(ctx, path, deviceIface, "Interface")
	if err != nil {
		return "", err
	}
	s, ok := v.Value().(string)
	if !ok {
		return "", &apscan.BusError{Op: "Interface", Path: string(path), Err: fmt.Errorf("unexpected type %s", v.Signature())}
	}
	return s, nil
}
