package network

import (
	"context"

	apscan "github.com/dogeorg/apscan/pkg"
	network_nm "github.com/dogeorg/apscan/pkg/system/network/nm"
	"github.com/sirupsen/logrus"
)

// NewNetworkManager connects to the bus and returns a manager that owns
// the connection until Close.
func NewNetworkManager(ctx context.Context, config apscan.ServerConfig, log logrus.FieldLogger) (NetworkManagerLinux, error) {
	client, err := network_nm.Connect(ctx, config, log)
	if err != nil {
		return NetworkManagerLinux{}, err
	}
	return NewNetworkManagerWithClient(client, NL80211Inspector{}, log), nil
}

func NewNetworkManagerWithClient(client *network_nm.Client, links LinkInspector, log logrus.FieldLogger) NetworkManagerLinux {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return NetworkManagerLinux{
		client: client,
		links:  links,
		log:    log,
	}
}
