package network_nm

import (
	"context"
	"errors"
	"strings"
	"sync"

	apscan "github.com/dogeorg/apscan/pkg"
	"github.com/godbus/dbus/v5"
)

const (
	nmDest        = "org.freedesktop.NetworkManager"
	nmPath        = dbus.ObjectPath("/org/freedesktop/NetworkManager")
	nmIface       = "org.freedesktop.NetworkManager"
	deviceIface   = nmIface + ".Device"
	wirelessIface = deviceIface + ".Wireless"
	apIface       = nmIface + ".AccessPoint"
	propsIface    = "org.freedesktop.DBus.Properties"
)

// Bus is the slice of the system bus this package needs. SystemBus is
// the real thing; tests provide their own.
type Bus interface {
	Call(ctx context.Context, path dbus.ObjectPath, method string, args []any, out ...any) error
	Property(ctx context.Context, path dbus.ObjectPath, iface, name string) (dbus.Variant, error)
	// Watch yields the current value of the property first, then every
	// value announced through PropertiesChanged, until cancelled.
	Watch(ctx context.Context, path dbus.ObjectPath, iface, name string) (*Subscription, error)
}

var _ Bus = &SystemBus{}

// SystemBus talks to NetworkManager over one shared connection. It owns
// the connection; everything else only holds the Bus interface.
type SystemBus struct {
	conn *dbus.Conn
}

type dialResult struct {
	conn *dbus.Conn
	err  error
}

// Dial connects to address, or to the system bus when address is empty.
// ctx bounds the dial only: the connection lives until Close.
func Dial(ctx context.Context, address string) (*SystemBus, error) {
	done := make(chan dialResult, 1)
	go func() {
		var r dialResult
		if address == "" {
			r.conn, r.err = dbus.ConnectSystemBus()
		} else {
			r.conn, r.err = dbus.Connect(address)
		}
		done <- r
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, &apscan.BusError{Op: "connect", Err: r.err}
		}
		return &SystemBus{conn: r.conn}, nil
	case <-ctx.Done():
		// nobody will own a connection that shows up late
		go func() {
			if r := <-done; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, &apscan.BusError{Op: "connect", Err: ctx.Err()}
	}
}

func (t *SystemBus) Close() error {
	return t.conn.Close()
}

func (t *SystemBus) Call(ctx context.Context, path dbus.ObjectPath, method string, args []any, out ...any) error {
	call := t.conn.Object(nmDest, path).CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		return &apscan.BusError{Op: method, Path: string(path), Err: call.Err}
	}
	if len(out) == 0 {
		return nil
	}
	if err := call.Store(out...); err != nil {
		return &apscan.BusError{Op: method, Path: string(path), Err: err}
	}
	return nil
}

func (t *SystemBus) Property(ctx context.Context, path dbus.ObjectPath, iface, name string) (dbus.Variant, error) {
	var v dbus.Variant
	err := t.Call(ctx, path, propsIface+".Get", []any{iface, name}, &v)
	return v, err
}

func (t *SystemBus) Watch(ctx context.Context, path dbus.ObjectPath, iface, name string) (*Subscription, error) {
	match := []dbus.MatchOption{
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchArg(0, iface),
	}
	if err := t.conn.AddMatchSignalContext(ctx, match...); err != nil {
		return nil, &apscan.BusError{Op: "AddMatch", Path: string(path), Err: err}
	}

	signals := make(chan *dbus.Signal, 16)
	t.conn.Signal(signals)

	sub := newSubscription(func() {
		t.conn.RemoveSignal(signals)
		// The connection may already be gone at shutdown, nothing to undo then.
		_ = t.conn.RemoveMatchSignal(match...)
	})

	// Register before reading the current value so no change slips
	// between the read and the subscription.
	current, err := t.Property(ctx, path, iface, name)
	if err != nil {
		sub.Cancel()
		return nil, err
	}
	sub.push(current)

	go func() {
		for {
			select {
			case <-sub.done:
				return
			case sig := <-signals:
				if sig == nil || sig.Path != path || sig.Name != propsIface+".PropertiesChanged" {
					continue
				}
				if v, ok := changedValue(sig.Body, iface, name); ok {
					if !sub.push(v) {
						return
					}
				}
			}
		}
	}()

	return sub, nil
}

// changedValue digs name out of a PropertiesChanged body
// (interface, changed map, invalidated list).
func changedValue(body []any, iface, name string) (dbus.Variant, bool) {
	if len(body) < 2 {
		return dbus.Variant{}, false
	}
	if i, ok := body[0].(string); !ok || i != iface {
		return dbus.Variant{}, false
	}
	changed, ok := body[1].(map[string]dbus.Variant)
	if !ok {
		return dbus.Variant{}, false
	}
	v, ok := changed[name]
	return v, ok
}

// Subscription is a cancellable stream of property values. Cancel is
// safe to call more than once and from any goroutine.
type Subscription struct {
	values  chan dbus.Variant
	done    chan struct{}
	once    sync.Once
	release func()
}

func newSubscription(release func()) *Subscription {
	return &Subscription{
		values:  make(chan dbus.Variant, 16),
		done:    make(chan struct{}),
		release: release,
	}
}

func (t *Subscription) Values() <-chan dbus.Variant {
	return t.values
}

// Done is closed once the subscription has been cancelled.
func (t *Subscription) Done() <-chan struct{} {
	return t.done
}

func (t *Subscription) Cancel() {
	t.once.Do(func() {
		close(t.done)
		if t.release != nil {
			t.release()
		}
	})
}

// push blocks until the value is taken up by the buffer or the
// subscription is cancelled, reporting false in the latter case.
func (t *Subscription) push(v dbus.Variant) bool {
	select {
	case <-t.done:
		return false
	default:
	}
	select {
	case t.values <- v:
		return true
	case <-t.done:
		return false
	}
}

// isNotAllowed reports a NetworkManager NotAllowed reply, which
// RequestScan returns while a scan is already running.
func isNotAllowed(err error) bool {
	var de dbus.Error
	if errors.As(err, &de) {
		return strings.HasSuffix(de.Name, ".NotAllowed")
	}
	var dep *dbus.Error
	if errors.As(err, &dep) && dep != nil {
		return strings.HasSuffix(dep.Name, ".NotAllowed")
	}
	return false
}
