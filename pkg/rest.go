package apscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dogeorg/apscan/pkg/conductor"
	"github.com/dogeorg/apscan/pkg/version"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

func RESTAPI(config ServerConfig, scanner *Scanner, nm NetworkManager, monitor ServiceMonitor, ws *WSRelay, log logrus.FieldLogger) conductor.Service {
	return newAPI(config, scanner, nm, monitor, ws, log)
}

func newAPI(config ServerConfig, scanner *Scanner, nm NetworkManager, monitor ServiceMonitor, ws *WSRelay, log logrus.FieldLogger) api {
	if log == nil {
		log = logrus.StandardLogger()
	}
	a := api{mux: http.NewServeMux(), config: config, scanner: scanner, nm: nm, monitor: monitor, ws: ws, log: log}

	routes := map[string]http.HandlerFunc{
		"GET /wifi/devices":  a.getDevices,
		"GET /wifi/networks": a.getNetworks,
		"POST /wifi/scan":    a.postScan,
		"GET /system/status": a.getStatus,
		"GET /version":       a.getVersion,
		"/ws/networks":       a.getNetworkSocket,
	}

	for p, h := range routes {
		a.mux.HandleFunc(p, h)
	}
	log.Debugf("Loaded %d API routes", len(routes))

	return a
}

type api struct {
	config  ServerConfig
	mux     *http.ServeMux
	scanner *Scanner
	nm      NetworkManager
	monitor ServiceMonitor
	ws      *WSRelay
	log     logrus.FieldLogger
}

func (t api) Handler() http.Handler {
	return cors.AllowAll().Handler(t.mux)
}

func (t api) getDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := t.nm.Devices(r.Context())
	if err != nil {
		t.sendErrorResponse(w, statusFor(err), err.Error())
		return
	}
	sendResponse(w, map[string]any{
		"success": true,
		"devices": devices,
	})
}

func (t api) getNetworks(w http.ResponseWriter, r *http.Request) {
	update, ok := t.scanner.Latest()
	if !ok {
		sendResponse(w, map[string]any{
			"success":  true,
			"scanned":  false,
			"networks": []AccessPoint{},
		})
		return
	}
	sendResponse(w, map[string]any{
		"success":  true,
		"scanned":  true,
		"finished": update.Finished,
		"networks": update.AccessPoints(),
		"devices":  update.Devices,
	})
}

// postScan runs a pass for everyone. A client that goes away does not
// cancel it; each device cycle is bounded by scan_timeout anyway.
func (t api) postScan(w http.ResponseWriter, r *http.Request) {
	update, err := t.scanner.ScanNow(context.WithoutCancel(r.Context()))
	if err != nil {
		t.sendErrorResponse(w, statusFor(err), err.Error())
		return
	}
	sendResponse(w, map[string]any{
		"success":  true,
		"finished": update.Finished,
		"networks": update.AccessPoints(),
		"devices":  update.Devices,
	})
}

func (t api) getStatus(w http.ResponseWriter, r *http.Request) {
	if t.monitor == nil {
		t.sendErrorResponse(w, http.StatusNotImplemented, "no service monitor configured")
		return
	}
	status, err := t.monitor.Status(r.Context())
	if err != nil {
		t.sendErrorResponse(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	sendResponse(w, status)
}

func (t api) getVersion(w http.ResponseWriter, r *http.Request) {
	sendResponse(w, version.GetRelease())
}

func (t api) getNetworkSocket(w http.ResponseWriter, r *http.Request) {
	t.ws.GetWSHandler(WS_DEFAULT_CHANNEL, func() any {
		update, ok := t.scanner.Latest()
		if !ok {
			return nil
		}
		return Change{ID: "latest", Type: "scan", Update: update}
	}).ServeHTTP(w, r)
}

func (t api) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		srv := &http.Server{Addr: fmt.Sprintf("%s:%d", t.config.Bind, t.config.Port), Handler: t.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				t.log.Fatalf("HTTP server public ListenAndServe: %v", err)
			}
		}()

		started <- true
		ctx := <-stop
		srv.Shutdown(ctx)
		stopped <- true
	}()
	return nil
}

// statusFor maps scan pass failures onto HTTP codes.
func statusFor(err error) int {
	var be *BusError
	switch {
	case errors.Is(err, ErrScanUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, ErrScanBusy):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.As(err, &be):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Helpers
func sendResponse(w http.ResponseWriter, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, fmt.Sprintf("in json.Marshal: %s", err.Error()), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store") // do not cache (Browsers cache GET forever by default)
	w.Write(b)
}

func (t api) sendErrorResponse(w http.ResponseWriter, code int, message string) {
	t.log.Warnf("[!] %d: %s", code, message)
	// would prefer to use json.Marshal, but this avoids the need
	// to handle encoding errors arising from json.Marshal itself!
	payload := fmt.Sprintf("{\"error\":{\"code\":%d,\"message\":%q}}", code, message)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	w.Write([]byte(payload))
}
