package network_nm

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// DeviceKind is NetworkManager's NMDeviceType.
type DeviceKind uint32

const (
	DeviceKindUnknown   DeviceKind = 0
	DeviceKindEthernet  DeviceKind = 1
	DeviceKindWifi      DeviceKind = 2
	DeviceKindBT        DeviceKind = 5
	DeviceKindOLPCMesh  DeviceKind = 6
	DeviceKindWiMAX     DeviceKind = 7
	DeviceKindModem     DeviceKind = 8
	DeviceKindBond      DeviceKind = 10
	DeviceKindVLAN      DeviceKind = 11
	DeviceKindBridge    DeviceKind = 13
	DeviceKindGeneric   DeviceKind = 14
	DeviceKindTun       DeviceKind = 16
	DeviceKindVeth      DeviceKind = 20
	DeviceKindWireGuard DeviceKind = 29
	DeviceKindLoopback  DeviceKind = 32
)

var deviceKindNames = map[DeviceKind]string{
	DeviceKindUnknown:   "unknown",
	DeviceKindEthernet:  "ethernet",
	DeviceKindWifi:      "wifi",
	DeviceKindBT:        "bluetooth",
	DeviceKindOLPCMesh:  "olpc-mesh",
	DeviceKindWiMAX:     "wimax",
	DeviceKindModem:     "modem",
	DeviceKindBond:      "bond",
	DeviceKindVLAN:      "vlan",
	DeviceKindBridge:    "bridge",
	DeviceKindGeneric:   "generic",
	DeviceKindTun:       "tun",
	DeviceKindVeth:      "veth",
	DeviceKindWireGuard: "wireguard",
	DeviceKindLoopback:  "loopback",
}

func (k DeviceKind) String() string {
	if n, ok := deviceKindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind-%d", uint32(k))
}

/* Device is a classified managed device. The set of variants is closed:
 * Wireless and Unrecognized are the only implementations. New kinds are
 * added here and in ClassifyKind.
 */
type Device interface {
	Path() dbus.ObjectPath
	Kind() DeviceKind
	isDevice()
}

// Wireless is the only variant that can be scanned.
type Wireless struct {
	*WirelessDevice
}

func (t Wireless) Kind() DeviceKind { return DeviceKindWifi }
func (Wireless) isDevice()          {}

// Unrecognized devices are inert: nothing here acts on them.
type Unrecognized struct {
	path dbus.ObjectPath
	kind DeviceKind
}

func (t Unrecognized) Path() dbus.ObjectPath { return t.path }
func (t Unrecognized) Kind() DeviceKind      { return t.kind }
func (Unrecognized) isDevice()               {}

// ClassifyKind maps a raw kind code onto a variant. Only DeviceKindWifi
// builds a wireless handle, bound to the same object path.
func ClassifyKind(bus Bus, path dbus.ObjectPath, kind DeviceKind, opts ScanOptions) Device {
	switch kind {
	case DeviceKindWifi:
		return Wireless{newWirelessDevice(bus, path, opts)}
	default:
		return Unrecognized{path: path, kind: kind}
	}
}
