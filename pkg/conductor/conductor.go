// Package conductor starts a set of long running services in order and
// stops them in reverse order on a signal or an explicit Stop.
package conductor

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// A Service signals on started once it is up, then waits for a context
// on stop, shuts down within that context and signals on stopped.
type Service interface {
	Run(started, stopped chan bool, stop chan context.Context) error
}

type Option func(*Conductor)

// HookSignals stops all services on SIGINT or SIGTERM.
func HookSignals() Option {
	return func(c *Conductor) { c.hookSignals = true }
}

// Noisy logs every service start and stop at info level.
func Noisy() Option {
	return func(c *Conductor) { c.noisy = true }
}

func Logger(log logrus.FieldLogger) Option {
	return func(c *Conductor) { c.log = log }
}

func StopTimeout(d time.Duration) Option {
	return func(c *Conductor) { c.stopTimeout = d }
}

type service struct {
	name    string
	svc     Service
	stop    chan context.Context
	stopped chan bool
}

type Conductor struct {
	services    []*service
	hookSignals bool
	noisy       bool
	log         logrus.FieldLogger
	stopTimeout time.Duration
	quit        chan struct{}
	quitOnce    sync.Once
}

func NewConductor(opts ...Option) *Conductor {
	c := &Conductor{
		log:         logrus.StandardLogger(),
		stopTimeout: 10 * time.Second,
		quit:        make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Conductor) Service(name string, svc Service) {
	c.services = append(c.services, &service{name: name, svc: svc})
}

// Stop asks the conductor to shut everything down. Safe to call twice.
func (c *Conductor) Stop() {
	c.quitOnce.Do(func() { close(c.quit) })
}

// Start brings up every service in registration order. The returned
// channel is closed once all started services have stopped again.
func (c *Conductor) Start() chan bool {
	done := make(chan bool)

	var sigs chan os.Signal
	if c.hookSignals {
		sigs = make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	}

	go func() {
		defer close(done)
		if sigs != nil {
			defer signal.Stop(sigs)
		}

		running := c.startAll()

		if len(running) == len(c.services) {
			select {
			case s := <-sigs:
				c.log.Infof("received %s, shutting down", s)
			case <-c.quit:
			}
		}

		c.stopAll(running)
	}()

	return done
}

func (c *Conductor) startAll() []*service {
	var running []*service
	for _, s := range c.services {
		started := make(chan bool)
		s.stop = make(chan context.Context)
		s.stopped = make(chan bool)

		if err := s.svc.Run(started, s.stopped, s.stop); err != nil {
			c.log.WithError(err).Errorf("service %s failed to start", s.name)
			return running
		}
		<-started
		c.logf("started %s", s.name)
		running = append(running, s)
	}
	return running
}

func (c *Conductor) stopAll(running []*service) {
	for i := len(running) - 1; i >= 0; i-- {
		s := running[i]
		ctx, cancel := context.WithTimeout(context.Background(), c.stopTimeout)
		s.stop <- ctx
		select {
		case <-s.stopped:
			c.logf("stopped %s", s.name)
		case <-time.After(c.stopTimeout + time.Second):
			c.log.Warnf("service %s did not stop in time", s.name)
		}
		cancel()
	}
}

func (c *Conductor) logf(format string, args ...any) {
	if c.noisy {
		c.log.Infof(format, args...)
	} else {
		c.log.Debugf(format, args...)
	}
}
