// Package server serves the dashboard page, its JSON snapshot, the action
// endpoints and Prometheus metrics.
package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HerbHall/mdpanel/internal/dispatch"
	"github.com/HerbHall/mdpanel/internal/page"
	"github.com/HerbHall/mdpanel/internal/scheduler"
	"github.com/HerbHall/mdpanel/internal/version"
)

//go:embed templates/index.html
var templatesFS embed.FS

var indexTmpl = template.Must(template.New("index.html").
	Funcs(template.FuncMap{"pathEscape": url.PathEscape}).
	ParseFS(templatesFS, "templates/index.html"))

// PageSource is the page model the server renders.
type PageSource interface {
	Snapshot() page.Snapshot
	SilentLabel() string
}

// ActionRunner accepts actions for background dispatch.
type ActionRunner interface {
	Go(a dispatch.Action)
}

// StateReporter exposes the scheduler state for the health endpoint.
type StateReporter interface {
	State() scheduler.State
}

// Config holds the server settings.
type Config struct {
	Addr            string
	ActionRate      float64
	ActionBurst     int
	RefreshInterval time.Duration
	DetectorURL     string
}

// Server is the dashboard HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux

	cfg      Config
	page     PageSource
	actions  ActionRunner
	state    StateReporter
	gatherer prometheus.Gatherer
	limiter  *rate.Limiter
}

// New creates a Server. gatherer may be nil to disable /metrics.
func New(cfg Config, pg PageSource, actions ActionRunner, state StateReporter, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:   logger,
		mux:      mux,
		cfg:      cfg,
		page:     pg,
		actions:  actions,
		state:    state,
		gatherer: gatherer,
		limiter:  rate.NewLimiter(rate.Limit(cfg.ActionRate), cfg.ActionBurst),
	}
	s.httpServer.Handler = s.logRequests(mux)

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /api/v1/page", s.handlePage)
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)

	s.mux.HandleFunc("POST /api/v1/scan/start", s.limited(s.handleStartScan))
	s.mux.HandleFunc("POST /api/v1/scan/stop", s.limited(s.handleStopScan))
	s.mux.HandleFunc("POST /api/v1/silent/toggle", s.limited(s.handleToggleSilent))
	s.mux.HandleFunc("POST /api/v1/targets", s.limited(s.handleAddTarget))
	s.mux.HandleFunc("DELETE /api/v1/targets/{id}", s.limited(s.handleRemoveTarget))
	s.mux.HandleFunc("POST /api/v1/targets/{id}/remove", s.limited(s.handleRemoveTarget))

	if s.gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving HTTP requests on the configured address.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves HTTP requests on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

type indexData struct {
	page.Snapshot
	RefreshSeconds int
	DetectorURL    string
	Version        string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	secs := int(s.cfg.RefreshInterval / time.Second)
	if secs < 1 {
		secs = 1
	}
	data := indexData{
		Snapshot:       s.page.Snapshot(),
		RefreshSeconds: secs,
		DetectorURL:    s.cfg.DetectorURL,
		Version:        version.Short(),
	}

	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, data); err != nil {
		s.logger.Error("render page", zap.Error(err))
		InternalError(w, r, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.page.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("X-Mdpanel-Version", version.Short())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   "mdpanel",
		"version":   version.Map(),
		"scheduler": s.state.State().String(),
		"detector":  s.cfg.DetectorURL,
	})
}

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	s.accept(w, r, dispatch.Action{Kind: dispatch.StartScan})
}

func (s *Server) handleStopScan(w http.ResponseWriter, r *http.Request) {
	s.accept(w, r, dispatch.Action{Kind: dispatch.StopScan})
}

// The requested value comes from the label currently shown, so a stale
// browser page cannot invert the user's intent.
func (s *Server) handleToggleSilent(w http.ResponseWriter, r *http.Request) {
	a, err := dispatch.ToggleSilent(s.page.SilentLabel())
	if err != nil {
		s.logger.Error("silent toggle", zap.Error(err))
		InternalError(w, r, err.Error())
		return
	}
	s.accept(w, r, a)
}

func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.PostFormValue("target"))
	if target == "" {
		BadRequest(w, r, "form field \"target\" is required")
		return
	}
	s.accept(w, r, dispatch.Action{Kind: dispatch.AddTarget, Target: target})
}

func (s *Server) handleRemoveTarget(w http.ResponseWriter, r *http.Request) {
	s.accept(w, r, dispatch.Action{Kind: dispatch.RemoveTarget, Target: r.PathValue("id")})
}

// accept hands a to the dispatcher. Browser forms carry return=/ and are
// sent back to the page; API clients get 202.
func (s *Server) accept(w http.ResponseWriter, r *http.Request, a dispatch.Action) {
	s.actions.Go(a)
	if r.FormValue("return") == "/" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := s.limiter.Reserve()
		if !res.OK() {
			RateLimited(w, r, 0)
			return
		}
		if d := res.Delay(); d > 0 {
			res.Cancel()
			RateLimited(w, r, d)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
