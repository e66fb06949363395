package apscan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNM struct {
	mu      sync.Mutex
	devices []DeviceInfo
	scans   []DeviceScan
	err     error
	calls   int
}

func (f *fakeNM) Devices(ctx context.Context) ([]DeviceInfo, error) {
	return f.devices, f.err
}

func (f *fakeNM) Scan(ctx context.Context) ([]DeviceScan, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.scans, nil
}

func (f *fakeNM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeMonitor struct {
	status ServiceStatus
	err    error
}

func (f fakeMonitor) Status(ctx context.Context) (ServiceStatus, error) {
	return f.status, f.err
}

type recordingListener struct {
	got []ScanUpdate
	err error
}

func (r *recordingListener) Publish(ctx context.Context, u ScanUpdate) error {
	r.got = append(r.got, u)
	return r.err
}

func cafeScans() []DeviceScan {
	return []DeviceScan{{
		Device:    "/org/freedesktop/NetworkManager/Devices/3",
		Interface: "wlan0",
		AccessPoints: []AccessPoint{
			{Name: "Cafe", Frequency: 2412},
			{Name: "Cafe-5G", Frequency: 5180},
		},
	}}
}

func quietLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func TestScanNowStoresLatestAndEmits(t *testing.T) {
	nm := &fakeNM{scans: cafeScans()}
	listener := &recordingListener{}
	s := NewScanner(DefaultConfig(), nm, nil, quietLogger(), listener)

	_, ok := s.Latest()
	require.False(t, ok)

	update, err := s.ScanNow(context.Background())
	require.NoError(t, err)
	assert.Len(t, update.AccessPoints(), 2)
	assert.False(t, update.Finished.Before(update.Started))

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, "Cafe-5G", latest.AccessPoints()[1].Name)

	select {
	case c := <-s.Changes:
		assert.Equal(t, "scan-1", c.ID)
		assert.Equal(t, "scan", c.Type)
		assert.Empty(t, c.Error)
	default:
		t.Fatal("no change emitted")
	}

	require.Len(t, listener.got, 1)
	assert.Len(t, listener.got[0].Devices, 1)
}

func TestScanNowKeepsPreviousResultOnFailure(t *testing.T) {
	nm := &fakeNM{scans: cafeScans()}
	s := NewScanner(DefaultConfig(), nm, nil, quietLogger())
	_, err := s.ScanNow(context.Background())
	require.NoError(t, err)

	nm.err = &ScanError{Kind: ScanUnsupported}
	_, err = s.ScanNow(context.Background())
	require.ErrorIs(t, err, ErrScanUnsupported)

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Len(t, latest.AccessPoints(), 2)

	<-s.Changes
	c := <-s.Changes
	assert.Equal(t, "scan-2", c.ID)
	assert.NotEmpty(t, c.Error)
}

func TestScanNowListenerErrorIsNotFatal(t *testing.T) {
	listener := &recordingListener{err: errors.New("webhook down")}
	s := NewScanner(DefaultConfig(), &fakeNM{scans: cafeScans()}, nil, quietLogger(), listener)

	_, err := s.ScanNow(context.Background())
	require.NoError(t, err)
	assert.Len(t, listener.got, 1)
}

func TestPreflight(t *testing.T) {
	tests := []struct {
		name    string
		monitor ServiceMonitor
		wantErr bool
	}{
		{"no monitor", nil, false},
		{"active", fakeMonitor{status: ServiceStatus{Unit: "NetworkManager.service", ActiveState: "active"}}, false},
		{"inactive", fakeMonitor{status: ServiceStatus{Unit: "NetworkManager.service", ActiveState: "inactive"}}, true},
		{"no systemd", fakeMonitor{err: errors.New("no bus")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nm := &fakeNM{scans: cafeScans()}
			s := NewScanner(DefaultConfig(), nm, tt.monitor, quietLogger())
			_, err := s.ScanNow(context.Background())
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, 1, nm.callCount())
				return
			}
			var be *BusError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, "preflight", be.Op)
			assert.Contains(t, err.Error(), "inactive")
			assert.Equal(t, 0, nm.callCount())
		})
	}
}

func TestTriggerDoesNotBlock(t *testing.T) {
	s := NewScanner(DefaultConfig(), &fakeNM{}, nil, quietLogger())
	s.Trigger()
	s.Trigger()
	assert.Len(t, s.trigger, 1)
}

func TestScannerRunScansAtStartup(t *testing.T) {
	nm := &fakeNM{scans: cafeScans()}
	s := NewScanner(DefaultConfig(), nm, nil, quietLogger())

	started, stopped := make(chan bool), make(chan bool)
	stop := make(chan context.Context)
	require.NoError(t, s.Run(started, stopped, stop))
	<-started

	select {
	case c := <-s.Changes:
		assert.Equal(t, "scan-1", c.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("startup scan did not run")
	}

	s.Trigger()
	select {
	case c := <-s.Changes:
		assert.Equal(t, "scan-2", c.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("triggered scan did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	stop <- ctx
	<-stopped
}
