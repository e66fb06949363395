/*
apscan daemon architecture:

 The Scanner owns the latest finished scan. Passes are started by the
 REST API (POST /wifi/scan), by the rescan ticker, or once at startup.
 Passes never overlap; a pass requested while one runs waits for it.

                 ┌──────────────────────────────┐
  REST API ──────►  Scanner{}                   │
  ticker   ──────►    preflight (systemd)       │
                 │    NetworkManager.Scan ──────┼──► bus
                 │    latest ◄──────────────────┤
                 └────┬─────────────┬───────────┘
                      │ Changes     │ Publish
                      ▼             ▼
                   WSRelay       webhook

 GET /wifi/networks only ever reads `latest`; the presentation layer
 pulls and re-renders on its own schedule.
*/

package apscan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Receives every finished pass, see Publisher.
type ScanListener interface {
	Publish(ctx context.Context, u ScanUpdate) error
}

type Scanner struct {
	config    ServerConfig
	nm        NetworkManager
	monitor   ServiceMonitor
	listeners []ScanListener
	log       logrus.FieldLogger
	trigger   chan struct{}
	Changes   chan Change

	scanMu sync.Mutex
	mu     sync.RWMutex
	latest *ScanUpdate
	seq    int
}

// NewScanner wires a scanner. monitor may be nil, then no preflight
// check is made.
func NewScanner(config ServerConfig, nm NetworkManager, monitor ServiceMonitor, log logrus.FieldLogger, listeners ...ScanListener) *Scanner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scanner{
		config:    config,
		nm:        nm,
		monitor:   monitor,
		listeners: listeners,
		log:       log,
		trigger:   make(chan struct{}, 1),
		Changes:   make(chan Change, 8),
	}
}

// Latest returns the most recent finished pass, if any.
func (t *Scanner) Latest() (ScanUpdate, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.latest == nil {
		return ScanUpdate{}, false
	}
	return *t.latest, true
}

// Restore seeds Latest with a pass saved by an earlier run. It does
// nothing once a pass has finished in this one.
func (t *Scanner) Restore(u ScanUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest == nil {
		t.latest = &u
	}
}

// Trigger asks the run loop for a pass without waiting for it.
func (t *Scanner) Trigger() {
	select {
	case t.trigger <- struct{}{}:
	default:
	}
}

// ScanNow runs a pass and waits for it. The error is set only when no
// device could be scanned at all; per device failures are in the update.
func (t *Scanner) ScanNow(ctx context.Context) (ScanUpdate, error) {
	t.scanMu.Lock()
	defer t.scanMu.Unlock()

	t.seq++
	id := fmt.Sprintf("scan-%d", t.seq)
	update := ScanUpdate{Started: time.Now()}

	if err := t.preflight(ctx); err != nil {
		t.emit(Change{ID: id, Type: "scan", Error: err.Error()})
		return update, err
	}

	devices, err := t.nm.Scan(ctx)
	if err != nil {
		t.log.WithError(err).Error("scan pass failed")
		t.emit(Change{ID: id, Type: "scan", Error: err.Error()})
		return update, err
	}
	update.Devices = devices
	update.Finished = time.Now()

	t.mu.Lock()
	t.latest = &update
	t.mu.Unlock()

	t.log.WithField("id", id).Infof("scan pass finished: %d devices, %d access points", len(devices), len(update.AccessPoints()))
	t.emit(Change{ID: id, Type: "scan", Update: update})

	for _, l := range t.listeners {
		if err := l.Publish(ctx, update); err != nil {
			t.log.WithError(err).Warn("failed to publish scan")
		}
	}
	return update, nil
}

// preflight refuses to scan when systemd says the service is down. Hosts
// without systemd skip the check.
func (t *Scanner) preflight(ctx context.Context) error {
	if t.monitor == nil {
		return nil
	}
	status, err := t.monitor.Status(ctx)
	if err != nil {
		t.log.WithError(err).Debug("skipping service preflight")
		return nil
	}
	if !status.Active() {
		return &BusError{
			Op:  "preflight",
			Err: fmt.Errorf("%s is %s", status.Unit, status.ActiveState),
		}
	}
	return nil
}

func (t *Scanner) emit(c Change) {
	select {
	case t.Changes <- c:
	default:
		t.log.Debug("change channel full, dropping update")
	}
}

func (t *Scanner) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		ctx, cancel := context.WithCancel(context.Background())
		passDone := make(chan struct{})

		go func() {
			defer close(passDone)
			var tick <-chan time.Time
			if t.config.RescanInterval > 0 {
				ticker := time.NewTicker(t.config.RescanInterval)
				defer ticker.Stop()
				tick = ticker.C
			}

			t.Trigger()
		mainloop:
			for {
				select {
				case <-ctx.Done():
					break mainloop
				case <-t.trigger:
				case <-tick:
				}
				if _, err := t.ScanNow(ctx); err != nil && !errors.Is(err, context.Canceled) {
					t.log.WithError(err).Warn("scan pass did not run")
				}
			}
		}()

		started <- true
		stopCtx := <-stop
		cancel()
		select {
		case <-passDone:
		case <-stopCtx.Done():
			t.log.Warn("scan pass still running at shutdown")
		}
		stopped <- true
	}()
	return nil
}
