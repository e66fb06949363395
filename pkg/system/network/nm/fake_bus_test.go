package network_nm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	apscan "github.com/dogeorg/apscan/pkg"
	"github.com/godbus/dbus/v5"
)

// fakeBus plays NetworkManager for tests. Property values are keyed by
// "<interface>.<name>" per object path.
type fakeBus struct {
	mu sync.Mutex

	devices   []dbus.ObjectPath
	props     map[dbus.ObjectPath]map[string]dbus.Variant
	propErr   map[dbus.ObjectPath]error
	lastScans map[dbus.ObjectPath][]int64
	scanErr   map[dbus.ObjectPath]error
	aps       map[dbus.ObjectPath][]dbus.ObjectPath

	// property reads on these paths hang until ctx ends
	hung map[dbus.ObjectPath]bool

	requested []dbus.ObjectPath
	reads     map[string]int
	released  int
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		props: map[dbus.ObjectPath]map[string]dbus.Variant{
			nmPath: {nmIface + ".Version": dbus.MakeVariant("1.46.0")},
		},
		propErr:   map[dbus.ObjectPath]error{},
		lastScans: map[dbus.ObjectPath][]int64{},
		scanErr:   map[dbus.ObjectPath]error{},
		aps:       map[dbus.ObjectPath][]dbus.ObjectPath{},
		reads:     map[string]int{},
		hung:      map[dbus.ObjectPath]bool{},
	}
}

func (t *fakeBus) set(path dbus.ObjectPath, iface, name string, v any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.props[path] == nil {
		t.props[path] = map[string]dbus.Variant{}
	}
	t.props[path][iface+"."+name] = dbus.MakeVariant(v)
}

func (t *fakeBus) addDevice(path dbus.ObjectPath, kind DeviceKind, iface string) {
	t.devices = append(t.devices, path)
	t.set(path, deviceIface, "DeviceType", uint32(kind))
	t.set(path, deviceIface, "Interface", iface)
}

func (t *fakeBus) addAccessPoint(dev, path dbus.ObjectPath, ssid []byte, freq uint32) {
	t.aps[dev] = append(t.aps[dev], path)
	t.set(path, apIface, "Ssid", ssid)
	t.set(path, apIface, "Frequency", freq)
}

func (t *fakeBus) Call(ctx context.Context, path dbus.ObjectPath, method string, args []any, out ...any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch method {
	case nmIface + ".GetDevices":
		*out[0].(*[]dbus.ObjectPath) = append([]dbus.ObjectPath(nil), t.devices...)
		return nil
	case wirelessIface + ".RequestScan":
		t.requested = append(t.requested, path)
		if opts, ok := args[0].(map[string]dbus.Variant); !ok || len(opts) != 0 {
			return fmt.Errorf("RequestScan wants empty options, got %v", args)
		}
		return t.scanErr[path]
	case wirelessIface + ".GetAccessPoints":
		*out[0].(*[]dbus.ObjectPath) = append([]dbus.ObjectPath(nil), t.aps[path]...)
		return nil
	}
	return &apscan.BusError{Op: method, Path: string(path), Err: errors.New("unknown method")}
}

func (t *fakeBus) Property(ctx context.Context, path dbus.ObjectPath, iface, name string) (dbus.Variant, error) {
	t.mu.Lock()
	hung := t.hung[path]
	t.mu.Unlock()
	if hung {
		<-ctx.Done()
		return dbus.Variant{}, &apscan.BusError{Op: "Get " + iface + "." + name, Path: string(path), Err: ctx.Err()}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	key := iface + "." + name
	t.reads[string(path)+" "+key]++
	if err := t.propErr[path]; err != nil {
		return dbus.Variant{}, err
	}
	v, ok := t.props[path][key]
	if !ok {
		return dbus.Variant{}, &apscan.BusError{Op: "Get " + key, Path: string(path), Err: errors.New("no such property")}
	}
	return v, nil
}

// Watch replays lastScans[path] and then goes quiet, like a service
// whose LastScan stopped moving.
func (t *fakeBus) Watch(ctx context.Context, path dbus.ObjectPath, iface, name string) (*Subscription, error) {
	t.mu.Lock()
	seq := append([]int64(nil), t.lastScans[path]...)
	t.mu.Unlock()

	sub := newSubscription(func() {
		t.mu.Lock()
		t.released++
		t.mu.Unlock()
	})
	go func() {
		for _, v := range seq {
			if !sub.push(dbus.MakeVariant(v)) {
				return
			}
		}
	}()
	return sub, nil
}

func (t *fakeBus) readCount(path dbus.ObjectPath, iface, name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reads[string(path)+" "+iface+"."+name]
}

func (t *fakeBus) releasedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

func notAllowed() error {
	return &apscan.BusError{
		Op:  wirelessIface + ".RequestScan",
		Err: dbus.Error{Name: "org.freedesktop.NetworkManager.Device.NotAllowed", Body: []any{"Scanning not allowed while already scanning"}},
	}
}
