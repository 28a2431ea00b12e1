package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HerbHall/mdpanel/internal/dispatch"
	"github.com/HerbHall/mdpanel/internal/page"
	"github.com/HerbHall/mdpanel/internal/scheduler"
	"github.com/HerbHall/mdpanel/internal/view"
)

type recordingRunner struct {
	mu      sync.Mutex
	actions []dispatch.Action
}

var _ ActionRunner = (*recordingRunner)(nil)

func (r *recordingRunner) Go(a dispatch.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, a)
}

func (r *recordingRunner) Actions() []dispatch.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dispatch.Action(nil), r.actions...)
}

type fixedState scheduler.State

func (s fixedState) State() scheduler.State { return scheduler.State(s) }

type fixture struct {
	srv    *Server
	model  *page.Model
	runner *recordingRunner
}

func newFixture(t *testing.T, burst int) *fixture {
	t.Helper()
	model := page.NewModel()
	runner := &recordingRunner{}
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "mdpanel_test_total", Help: "test"}))

	srv := New(Config{
		Addr:            "127.0.0.1:0",
		ActionRate:      1,
		ActionBurst:     burst,
		RefreshInterval: 5 * time.Second,
		DetectorURL:     "http://192.168.4.1",
	}, model, runner, fixedState(scheduler.Idle), reg, zap.NewNop())
	return &fixture{srv: srv, model: model, runner: runner}
}

func (f *fixture) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	f := newFixture(t, 10)
	w := f.do(t, http.MethodGet, "/api/v1/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dev", w.Header().Get("X-Mdpanel-Version"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "mdpanel", body["service"])
	assert.Equal(t, "idle", body["scheduler"])
	assert.Equal(t, "http://192.168.4.1", body["detector"])
	assert.IsType(t, map[string]any{}, body["version"])
}

func TestHandlePage(t *testing.T) {
	f := newFixture(t, 10)
	h := f.model.Handles()
	h.Running.SetText("true")
	h.Networks.AppendRow(view.Row{Cells: []string{"AP1"}})
	h.Networks.SetVisible(true)

	w := f.do(t, http.MethodGet, "/api/v1/page", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var snap page.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.Equal(t, "true", snap.Running)
	assert.True(t, snap.Networks.Visible)
	require.Len(t, snap.Networks.Rows, 1)
}

func TestHandleIndex(t *testing.T) {
	f := newFixture(t, 10)
	h := f.model.Handles()
	h.Running.SetText("true")
	h.Banner.Show("Communication with detector failed.")
	h.Networks.AppendRow(view.Row{
		Cells:   []string{"Cafe <5G>", "aa:bb:cc"},
		Control: &view.Control{Label: "Add", Action: view.ActionAdd, Target: "aa:bb:cc"},
	})
	h.Networks.SetVisible(true)
	h.Targets.AppendRow(view.Row{
		Cells:   []string{"dd/ee"},
		Control: &view.Control{Label: "Remove", Action: view.ActionRemove, Target: "dd/ee"},
	})
	h.Targets.SetVisible(true)

	w := f.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, `<meta http-equiv="refresh" content="5">`)
	assert.Contains(t, body, `<span id="running">true</span>`)
	assert.Contains(t, body, "Communication with detector failed.")
	assert.Contains(t, body, "Cafe &lt;5G&gt;")
	assert.Contains(t, body, `name="target" value="aa:bb:cc"`)
	assert.Contains(t, body, `action="/api/v1/targets/dd%2Fee/remove"`)
	assert.Contains(t, body, ">Silent On</button>")
	assert.NotContains(t, body, `id="networks" class="hidden"`)
}

func TestHandleIndex_UnknownPath(t *testing.T) {
	f := newFixture(t, 10)
	w := f.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActions_RejectedDoNotSpendTokens(t *testing.T) {
	f := newFixture(t, 1)
	w := f.do(t, http.MethodPost, "/api/v1/scan/start", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	for i := 0; i < 3; i++ {
		w = f.do(t, http.MethodPost, "/api/v1/scan/start", nil)
		require.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
	}
	assert.Len(t, f.runner.Actions(), 1)
}

func TestActions(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		form   url.Values
		want   dispatch.Action
	}{
		{"start", http.MethodPost, "/api/v1/scan/start", nil, dispatch.Action{Kind: dispatch.StartScan}},
		{"stop", http.MethodPost, "/api/v1/scan/stop", nil, dispatch.Action{Kind: dispatch.StopScan}},
		{"toggle", http.MethodPost, "/api/v1/silent/toggle", nil, dispatch.Action{Kind: dispatch.SetSilent, Silent: true}},
		{"add", http.MethodPost, "/api/v1/targets", url.Values{"target": {" aa:bb "}}, dispatch.Action{Kind: dispatch.AddTarget, Target: "aa:bb"}},
		{"delete", http.MethodDelete, "/api/v1/targets/aa:bb", nil, dispatch.Action{Kind: dispatch.RemoveTarget, Target: "aa:bb"}},
		{"remove form", http.MethodPost, "/api/v1/targets/aa:bb/remove", nil, dispatch.Action{Kind: dispatch.RemoveTarget, Target: "aa:bb"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 10)
			w := f.do(t, tt.method, tt.path, tt.form)

			require.Equal(t, http.StatusAccepted, w.Code)
			assert.JSONEq(t, `{"status":"accepted"}`, w.Body.String())
			assert.Equal(t, []dispatch.Action{tt.want}, f.runner.Actions())
		})
	}
}

func TestToggleUsesCurrentLabel(t *testing.T) {
	f := newFixture(t, 10)
	f.model.Handles().SilentToggle.SetLabel(view.LabelSilentOff)

	w := f.do(t, http.MethodPost, "/api/v1/silent/toggle", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []dispatch.Action{{Kind: dispatch.SetSilent, Silent: false}}, f.runner.Actions())
}

func TestAddTarget_EmptyIsBadRequest(t *testing.T) {
	f := newFixture(t, 10)
	w := f.do(t, http.MethodPost, "/api/v1/targets", url.Values{"target": {"  "}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Empty(t, f.runner.Actions())
}

func TestActions_FormRedirectsToPage(t *testing.T) {
	f := newFixture(t, 10)
	w := f.do(t, http.MethodPost, "/api/v1/scan/start", url.Values{"return": {"/"}})

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Len(t, f.runner.Actions(), 1)
}

func TestActions_RateLimited(t *testing.T) {
	f := newFixture(t, 2)
	for i := 0; i < 2; i++ {
		w := f.do(t, http.MethodPost, "/api/v1/scan/start", nil)
		require.Equal(t, http.StatusAccepted, w.Code)
	}

	w := f.do(t, http.MethodPost, "/api/v1/scan/start", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	var p Problem
	require.NoError(t, json.NewDecoder(w.Body).Decode(&p))
	assert.Equal(t, ProblemTypeRateLimited, p.Type)
	assert.Len(t, f.runner.Actions(), 2)
}

func TestReadsAreNotRateLimited(t *testing.T) {
	f := newFixture(t, 1)
	for i := 0; i < 5; i++ {
		w := f.do(t, http.MethodGet, "/api/v1/page", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestMethodMismatch(t *testing.T) {
	f := newFixture(t, 10)
	w := f.do(t, http.MethodGet, "/api/v1/scan/start", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Empty(t, f.runner.Actions())
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, 10)
	w := f.do(t, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mdpanel_test_total")
}
