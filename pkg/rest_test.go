package apscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(nm NetworkManager, monitor ServiceMonitor) (api, *Scanner) {
	s := NewScanner(DefaultConfig(), nm, nil, quietLogger())
	return newAPI(DefaultConfig(), s, nm, monitor, NewWSRelay(s.Changes, quietLogger()), quietLogger()), s
}

func doRequest(t *testing.T, a api, method, path string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	return rec.Code, body
}

func TestGetNetworksBeforeAndAfterScan(t *testing.T) {
	a, s := newTestAPI(&fakeNM{scans: cafeScans()}, nil)

	code, body := doRequest(t, a, http.MethodGet, "/wifi/networks")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["scanned"])
	assert.Empty(t, body["networks"])

	_, err := s.ScanNow(context.Background())
	require.NoError(t, err)

	code, body = doRequest(t, a, http.MethodGet, "/wifi/networks")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["scanned"])
	networks := body["networks"].([]any)
	require.Len(t, networks, 2)
	assert.Equal(t, "Cafe", networks[0].(map[string]any)["name"])
	assert.InDelta(t, 2.412, networks[0].(map[string]any)["frequency_ghz"], 0.0001)
	assert.InDelta(t, 5.18, networks[1].(map[string]any)["frequency_ghz"], 0.0001)
}

func TestPostScan(t *testing.T) {
	a, _ := newTestAPI(&fakeNM{scans: cafeScans()}, nil)
	code, body := doRequest(t, a, http.MethodPost, "/wifi/scan")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["networks"], 2)
}

func TestPostScanSurvivesClientGoingAway(t *testing.T) {
	a, s := newTestAPI(&fakeNM{scans: cafeScans()}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/wifi/scan", nil).WithContext(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)

	latest, ok := s.Latest()
	require.True(t, ok, "pass was dropped with the request")
	assert.Len(t, latest.AccessPoints(), 2)
}

func TestPostScanErrors(t *testing.T) {
	a, _ := newTestAPI(&fakeNM{err: &ScanError{Kind: ScanBusy, Device: "/dev/3"}}, nil)
	code, body := doRequest(t, a, http.MethodPost, "/wifi/scan")
	require.Equal(t, http.StatusConflict, code)
	e := body["error"].(map[string]any)
	assert.EqualValues(t, http.StatusConflict, e["code"])
	assert.Contains(t, e["message"], "busy")
}

func TestGetScanRejectedByMethod(t *testing.T) {
	a, _ := newTestAPI(&fakeNM{}, nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wifi/scan", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGetDevices(t *testing.T) {
	nm := &fakeNM{devices: []DeviceInfo{
		{Path: "/org/freedesktop/NetworkManager/Devices/1", Kind: 1, KindName: "ethernet", Interface: "eth0"},
		{Path: "/org/freedesktop/NetworkManager/Devices/3", Kind: 2, KindName: "wifi", Interface: "wlan0", Wireless: true},
	}}
	a, _ := newTestAPI(nm, nil)
	code, body := doRequest(t, a, http.MethodGet, "/wifi/devices")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["devices"], 2)

	nm.err = &BusError{Op: "GetDevices", Err: errors.New("service unknown")}
	code, _ = doRequest(t, a, http.MethodGet, "/wifi/devices")
	assert.Equal(t, http.StatusBadGateway, code)
}

func TestGetStatus(t *testing.T) {
	a, _ := newTestAPI(&fakeNM{}, nil)
	code, _ := doRequest(t, a, http.MethodGet, "/system/status")
	assert.Equal(t, http.StatusNotImplemented, code)

	a, _ = newTestAPI(&fakeNM{}, fakeMonitor{status: ServiceStatus{Unit: "NetworkManager.service", ActiveState: "active", Running: true}})
	code, body := doRequest(t, a, http.MethodGet, "/system/status")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "active", body["activeState"])

	a, _ = newTestAPI(&fakeNM{}, fakeMonitor{err: errors.New("no systemd")})
	code, _ = doRequest(t, a, http.MethodGet, "/system/status")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&ScanError{Kind: ScanUnsupported}, http.StatusNotImplemented},
		{&ScanError{Kind: ScanBusy}, http.StatusConflict},
		{&ScanError{Kind: ScanTimeout, Err: context.DeadlineExceeded}, http.StatusServiceUnavailable},
		{context.Canceled, http.StatusServiceUnavailable},
		{fmt.Errorf("listing: %w", &BusError{Op: "GetDevices", Err: errors.New("x")}), http.StatusBadGateway},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
