package network

import (
	"context"

	apscan "github.com/dogeorg/apscan/pkg"
	network_nm "github.com/dogeorg/apscan/pkg/system/network/nm"
	"github.com/mdlayher/wifi"
	"github.com/sirupsen/logrus"
)

var _ apscan.NetworkManager = &NetworkManagerLinux{}

type NetworkManagerLinux struct {
	client *network_nm.Client
	links  LinkInspector
	log    logrus.FieldLogger
}

// Association is what the kernel says an interface is connected to.
type Association struct {
	SSID      string
	Frequency int // MHz
}

type LinkInspector interface {
	Associations() (map[string]Association, error)
}

var _ LinkInspector = NL80211Inspector{}

// NL80211Inspector asks the kernel directly, so it also works for
// interfaces NetworkManager has not finished configuring.
type NL80211Inspector struct{}

func (t NL80211Inspector) Associations() (map[string]Association, error) {
	wifiClient, err := wifi.New()
	if err != nil {
		return nil, err
	}
	defer wifiClient.Close()

	wifiInterfaces, err := wifiClient.Interfaces()
	if err != nil {
		return nil, err
	}

	out := map[string]Association{}
	for _, ifi := range wifiInterfaces {
		// Ignore phy-only entries, they have no netdev.
		if ifi.Name == "" {
			continue
		}
		bss, err := wifiClient.BSS(ifi)
		if err != nil {
			// Not associated.
			continue
		}
		out[ifi.Name] = Association{SSID: bss.SSID, Frequency: bss.Frequency}
	}
	return out, nil
}

func (t NetworkManagerLinux) Devices(ctx context.Context) ([]apscan.DeviceInfo, error) {
	return t.client.Devices(ctx)
}

func (t NetworkManagerLinux) Scan(ctx context.Context) ([]apscan.DeviceScan, error) {
	scans, err := t.client.ScanAll(ctx)
	if err != nil {
		return nil, err
	}

	if t.links == nil {
		return scans, nil
	}
	assoc, err := t.links.Associations()
	if err != nil {
		t.log.WithError(err).Debug("could not inspect wifi links, no access point will be marked active")
		return scans, nil
	}
	markActive(scans, assoc)
	return scans, nil
}

// markActive flags the access point each interface is associated with.
// Several access points can share an SSID, so frequency must match too.
func markActive(scans []apscan.DeviceScan, assoc map[string]Association) {
	for i := range scans {
		a, ok := assoc[scans[i].Interface]
		if !ok {
			continue
		}
		for j := range scans[i].AccessPoints {
			ap := &scans[i].AccessPoints[j]
			if ap.Name == a.SSID && int(ap.FrequencyMHz()) == a.Frequency {
				ap.Active = true
			}
		}
	}
}

func (t NetworkManagerLinux) Close() error {
	return t.client.Close()
}
