package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warden-sh/warden"
	"github.com/warden-sh/warden/internal/controller"
	"github.com/warden-sh/warden/internal/logger"
	"github.com/warden-sh/warden/internal/logrot"
	"github.com/warden-sh/warden/internal/metrics"
	"github.com/warden-sh/warden/internal/pidstore"
	"github.com/warden-sh/warden/internal/server"
	"github.com/warden-sh/warden/internal/store"
	"github.com/warden-sh/warden/internal/store/sqlite"
	"github.com/warden-sh/warden/internal/watchdog"

	"github.com/prometheus/client_golang/prometheus"
)

// Serve runs the supervising daemon: single writer for the pid record,
// watchdog loop, control API, and optional metrics and history.
func (c *command) Serve(f ServeFlags) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	if f.Daemonize {
		logFile := f.LogFile
		if logFile == "" {
			logFile = cfg.Server.LogFile
		}
		return daemonize(cfg.Server.PIDFile, logFile)
	}

	lg, closeLog := logger.New(cfg.Log)
	defer func() { _ = closeLog.Close() }()

	// Refuse to race another daemon for the same state dir.
	pids := pidstore.New(cfg.Paths.StateDir)
	guard, err := pids.Lock("warden-daemon")
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	defer guard.Unlock()

	var hist store.Store
	if cfg.History.Enabled {
		db, err := sqlite.New(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		if err := db.EnsureSchema(context.Background()); err != nil {
			_ = db.Close()
			return fmt.Errorf("ensure history schema: %w", err)
		}
		hist = db
		defer func() { _ = db.Close() }()
	}

	if cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			lg.Warn("metrics registration failed", "err", err)
		}
		if cfg.Metrics.Listen != "" {
			go func() {
				if err := warden.ServeMetrics(cfg.Metrics.Listen); err != nil {
					lg.Error("metrics server stopped", "err", err)
				}
			}()
		}
	}

	act := logrot.OpenActivity(cfg.Paths.LogDir, lg)
	defer func() { _ = act.Close() }()

	ctrl := controller.New(cfg.Spec(), pids)
	ctrl.SetActivity(act)
	ctrl.SetRecorder(newRecorder(cfg.Service.Name, hist, lg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bring the service up; a failed initial start is not fatal, the
	// watchdog keeps retrying.
	if err := ctrl.Start(ctx); err != nil {
		if errors.Is(err, controller.ErrAlreadyRunning) {
			lg.Info("service already running, supervising it", "service", cfg.Service.Name)
		} else {
			lg.Error("initial start failed, watchdog will retry", "service", cfg.Service.Name, "err", err)
		}
	}

	wd := watchdog.New(meteredTarget{ctrl: ctrl, name: cfg.Service.Name}, cfg.Watchdog())
	wd.SetLogger(lg)
	wd.SetOnCheck(func(running bool) {
		metrics.IncWatchdogCheck(cfg.Service.Name, running)
		metrics.SetUp(cfg.Service.Name, running)
	})
	wdDone := make(chan error, 1)
	go func() { wdDone <- wd.Run(ctx) }()

	router := server.NewRouter(ctrl, cfg.Server.BasePath)
	router.SetWatchdog(wd)
	if hist != nil {
		router.SetHistory(hist)
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		router.SetMetrics(metrics.Handler())
	}
	httpSrv := server.NewServer(cfg.Server.Listen, router)
	lg.Info("daemon listening", "addr", cfg.Server.Listen, "base_path", cfg.Server.BasePath, "service", cfg.Service.Name)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	lg.Info("shutting down", "signal", sig.String())

	cancel()
	<-wdDone
	_ = httpSrv.Close()

	if f.StopChild {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := ctrl.Stop(stopCtx); err != nil && !errors.Is(err, controller.ErrNotRunning) {
			lg.Error("stopping service on shutdown failed", "err", err)
		}
	}
	_ = removePidFile(cfg.Server.PIDFile)
	return nil
}

// meteredTarget counts watchdog-issued restarts.
type meteredTarget struct {
	ctrl *controller.Controller
	name string
}

func (m meteredTarget) Status() controller.Status { return m.ctrl.Status() }

func (m meteredTarget) Start(ctx context.Context) error {
	err := m.ctrl.Start(ctx)
	if err == nil {
		metrics.IncWatchdogRestart(m.name)
	}
	return err
}

// newRecorder fans lifecycle events out to metrics and the history store.
func newRecorder(name string, hist store.Store, lg *slog.Logger) controller.Recorder {
	return func(event string, pid int, detail string) {
		switch event {
		case controller.EventStarted:
			metrics.IncStart(name)
			metrics.SetUp(name, true)
		case controller.EventStopped, controller.EventKilled:
			metrics.IncStop(name)
			metrics.SetUp(name, false)
		case controller.EventStartFailed:
			metrics.IncStartFailure(name)
			metrics.SetUp(name, false)
		}
		if hist != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			ev := store.Event{Name: name, Type: event, PID: pid, Detail: detail, OccurredAt: time.Now()}
			if err := hist.RecordEvent(ctx, ev); err != nil {
				lg.Warn("recording lifecycle event failed", "event", event, "err", err)
			}
		}
	}
}
