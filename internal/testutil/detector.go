package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"
)

// ScanEntry is one network the fake detector reports as visible.
type ScanEntry struct {
	SSID    string
	BSSID   string
	Channel int
	RSSI    int
}

// FakeDetector emulates the detector firmware's HTTP API on a loopback
// httptest server. Targets are BSSIDs; the alarm is raised while scanning
// and a visible BSSID is a target. Individual routes can be made to fail
// or stall.
type FakeDetector struct {
	srv *httptest.Server

	mu       sync.Mutex
	running  bool
	silent   bool
	scan     []ScanEntry
	targets  []string
	failures map[string]int
	delays   map[string]time.Duration
	requests []string
}

// Route patterns accepted by FailRoute and DelayRoute.
const (
	RouteStatus       = "GET /api/status"
	RouteScanResult   = "GET /api/scan/result"
	RouteTargets      = "GET /api/target"
	RouteAddTarget    = "POST /api/target"
	RouteRemoveTarget = "DELETE /api/target/{id}"
	RouteScan         = "POST /api/scan"
	RouteSilent       = "POST /api/silent"
	RouteMemory       = "GET /api/memory"
)

// NewFakeDetector starts a fake detector that is closed when the test ends.
func NewFakeDetector(t *testing.T) *FakeDetector {
	t.Helper()

	f := &FakeDetector{
		failures: make(map[string]int),
		delays:   make(map[string]time.Duration),
	}

	mux := http.NewServeMux()
	f.handle(mux, RouteStatus, f.handleStatus)
	f.handle(mux, RouteScanResult, f.handleScanResult)
	f.handle(mux, RouteTargets, f.handleTargets)
	f.handle(mux, RouteAddTarget, f.handleAddTarget)
	f.handle(mux, RouteRemoveTarget, f.handleRemoveTarget)
	f.handle(mux, RouteScan, f.handleScan)
	f.handle(mux, RouteSilent, f.handleSilent)
	f.handle(mux, RouteMemory, f.handleMemory)

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// URL returns the fake detector's base URL.
func (f *FakeDetector) URL() string { return f.srv.URL }

// SetRunning sets the scanning flag directly.
func (f *FakeDetector) SetRunning(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = on
}

// SetSilent sets the silent flag directly.
func (f *FakeDetector) SetSilent(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.silent = on
}

// SetScan replaces the visible networks.
func (f *FakeDetector) SetScan(entries ...ScanEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scan = slices.Clone(entries)
}

// SetTargets replaces the target list.
func (f *FakeDetector) SetTargets(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = slices.Clone(ids)
}

// Targets returns a copy of the target list.
func (f *FakeDetector) Targets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.targets)
}

// Running reports the scanning flag.
func (f *FakeDetector) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Silent reports the silent flag.
func (f *FakeDetector) Silent() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.silent
}

// FailRoute makes route answer with status until cleared with status 0.
func (f *FakeDetector) FailRoute(route string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == 0 {
		delete(f.failures, route)
		return
	}
	f.failures[route] = status
}

// DelayRoute stalls route for d before answering. The stall ends early if
// the client goes away.
func (f *FakeDetector) DelayRoute(route string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d <= 0 {
		delete(f.delays, route)
		return
	}
	f.delays[route] = d
}

// Requests returns every request received so far as "METHOD /path".
func (f *FakeDetector) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.requests)
}

func (f *FakeDetector) handle(mux *http.ServeMux, route string, h http.HandlerFunc) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		status := f.failures[route]
		delay := f.delays[route]
		f.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		h(w, r)
	})
}

func (f *FakeDetector) handleStatus(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, map[string]bool{
		"running": f.running,
		"silent":  f.silent,
		"alarm":   f.alarmLocked(),
	})
}

func (f *FakeDetector) handleScanResult(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]any, 0, len(f.scan))
	for _, e := range f.scan {
		out = append(out, []any{
			slices.Contains(f.targets, e.BSSID),
			[]any{e.SSID, e.BSSID, e.Channel, e.RSSI},
		})
	}
	writeJSON(w, out)
}

func (f *FakeDetector) handleTargets(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, f.targetsLocked())
}

func (f *FakeDetector) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	id := r.FormValue("target")
	if id == "" {
		http.Error(w, "missing target", http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !slices.Contains(f.targets, id) {
		f.targets = append(f.targets, id)
	}
	writeJSON(w, f.targetsLocked())
}

func (f *FakeDetector) handleRemoveTarget(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.mu.Lock()
	defer f.mu.Unlock()
	i := slices.Index(f.targets, id)
	if i < 0 {
		http.Error(w, "no such target", http.StatusNotFound)
		return
	}
	f.targets = slices.Delete(f.targets, i, i+1)
	writeJSON(w, f.targetsLocked())
}

func (f *FakeDetector) handleScan(w http.ResponseWriter, r *http.Request) {
	on, ok := parseOnOff(r.FormValue("scan"))
	if !ok {
		http.Error(w, "scan must be on or off", http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = on
	writeJSON(w, map[string]bool{"running": f.running})
}

func (f *FakeDetector) handleSilent(w http.ResponseWriter, r *http.Request) {
	on, ok := parseOnOff(r.FormValue("silent"))
	if !ok {
		http.Error(w, "silent must be on or off", http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.silent = on
	writeJSON(w, map[string]bool{"silent": f.silent})
}

func (f *FakeDetector) handleMemory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]int64{"free": 21344, "allocated": 14496})
}

func (f *FakeDetector) alarmLocked() bool {
	if !f.running {
		return false
	}
	for _, e := range f.scan {
		if slices.Contains(f.targets, e.BSSID) {
			return true
		}
	}
	return false
}

func (f *FakeDetector) targetsLocked() []string {
	out := slices.Clone(f.targets)
	if out == nil {
		out = []string{}
	}
	return out
}

func parseOnOff(v string) (bool, bool) {
	switch v {
	case "on":
		return true, true
	case "off":
		return false, true
	}
	return false, false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
