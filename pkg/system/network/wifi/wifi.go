package network_wifi

import (
	"context"

	apscan "github.com/dogeorg/apscan/pkg"
)

// WifiScanner is a scan backend that works on a single interface name,
// for hosts where the bus service is not available.
type WifiScanner interface {
	Scan(ctx context.Context, networkInterface string) ([]apscan.AccessPoint, error)
}

func NewWifiScanner() WifiScanner {
	return IWListScanner{}
}
