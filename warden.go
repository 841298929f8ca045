package warden

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/warden-sh/warden/internal/config"
	"github.com/warden-sh/warden/internal/controller"
	"github.com/warden-sh/warden/internal/logrot"
	"github.com/warden-sh/warden/internal/metrics"
	"github.com/warden-sh/warden/internal/pidstore"
	iapi "github.com/warden-sh/warden/internal/server"
	"github.com/warden-sh/warden/internal/store"
	"github.com/warden-sh/warden/internal/watchdog"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Spec = controller.Spec

type Status = controller.Status

type Event = store.Event

type WatchdogState = watchdog.State

type WatchConfig = watchdog.Config

// Lifecycle error taxonomy; test with errors.Is.
var (
	ErrAlreadyRunning = controller.ErrAlreadyRunning
	ErrNotRunning     = controller.ErrNotRunning
	ErrStartFailed    = controller.ErrStartFailed
	ErrStopFailed     = controller.ErrStopFailed
)

// Supervisor is a thin facade over the internal controller and watchdog.
// It provides a stable public API for embedding.
type Supervisor struct {
	ctrl *controller.Controller
	wd   *watchdog.Watchdog
}

// NewSupervisor builds a supervisor for one service. stateDir holds the
// pid record and lock files.
func NewSupervisor(spec Spec, stateDir string) *Supervisor {
	ctrl := controller.New(spec, pidstore.New(stateDir))
	return &Supervisor{ctrl: ctrl}
}

func (s *Supervisor) Start(ctx context.Context) error   { return s.ctrl.Start(ctx) }
func (s *Supervisor) Stop(ctx context.Context) error    { return s.ctrl.Stop(ctx) }
func (s *Supervisor) Restart(ctx context.Context) error { return s.ctrl.Restart(ctx) }
func (s *Supervisor) Status() Status                    { return s.ctrl.Status() }

// SetActivity mirrors lifecycle events into monitor.log under logDir.
// The returned closer flushes the activity writer.
func (s *Supervisor) SetActivity(logDir string) func() error {
	act := logrot.OpenActivity(logDir, nil)
	s.ctrl.SetActivity(act)
	return act.Close
}

// Watch runs the keep-alive loop until ctx is cancelled. cfg zero values
// fall back to the 30s interval and 5m backoff cap.
func (s *Supervisor) Watch(ctx context.Context, cfg WatchConfig) error {
	wd := watchdog.New(s.ctrl, cfg)
	s.wd = wd
	return wd.Run(ctx)
}

// LoadConfig reads and normalizes a warden.toml.
func LoadConfig(path string) (*cfg.Config, error) { return cfg.Load(path) }

// NewHTTPServer starts an HTTP server exposing the control API for the
// supervisor's controller.
func NewHTTPServer(addr, basePath string, s *Supervisor) *http.Server {
	return iapi.NewServer(addr, iapi.NewRouter(s.ctrl, basePath))
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the
// default registry. It blocks in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
