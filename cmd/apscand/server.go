package main

import (
	"context"
	"os"
	"time"

	apscan "github.com/dogeorg/apscan/pkg"
	"github.com/dogeorg/apscan/pkg/conductor"
	"github.com/dogeorg/apscan/pkg/system"
	"github.com/dogeorg/apscan/pkg/system/network"
)

type server struct {
	config apscan.ServerConfig
}

func Server(config apscan.ServerConfig) server {
	return server{config}
}

func (t server) Start() {
	log := apscan.NewLogger(t.config, os.Stderr)

	/* ----------------------------------------------------------------------- */
	// Set up our system interfaces so we can talk to the host OS

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	nm, err := network.NewNetworkManager(ctx, t.config, log)
	cancel()
	if err != nil {
		log.Fatalf("Couldn't connect to the system bus: %v", err)
	}
	defer nm.Close()

	systemMonitor := system.NewSystemMonitor(system.NetworkManagerUnit)

	/* ----------------------------------------------------------------------- */
	// Set up the Scanner, which owns the latest scan result

	var listeners []apscan.ScanListener
	if t.config.ReportURL != "" {
		listeners = append(listeners, apscan.NewPublisher(t.config.ReportURL))
	}
	var snapshots *apscan.SnapshotStore
	if t.config.StateFile != "" {
		snapshots = apscan.NewSnapshotStore(t.config.StateFile)
		listeners = append(listeners, snapshots)
	}
	scanner := apscan.NewScanner(t.config, nm, systemMonitor, log, listeners...)

	if snapshots != nil {
		last, ok, err := snapshots.Load()
		switch {
		case err != nil:
			log.WithError(err).Warn("Couldn't restore the last scan")
		case ok:
			scanner.Restore(last)
		}
	}

	/* ----------------------------------------------------------------------- */
	// Setup our external APIs. REST, Websockets

	wsh := apscan.NewWSRelay(scanner.Changes, log)
	rest := apscan.RESTAPI(t.config, scanner, nm, systemMonitor, wsh, log)

	/* ----------------------------------------------------------------------- */
	// Create a conductor to manage all the above services startup/shutdown

	opts := []conductor.Option{
		conductor.HookSignals(),
		conductor.Logger(log),
	}
	if t.config.Verbose {
		opts = append(opts, conductor.Noisy())
	}
	c := conductor.NewConductor(opts...)
	c.Service("Scanner", scanner)
	c.Service("WSock Relay", wsh)
	c.Service("REST API", rest)
	<-c.Start()
}
