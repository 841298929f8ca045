// Package watchdog keeps a supervised service alive by periodically
// checking its status and restarting it when it is down.
package watchdog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/warden-sh/warden/internal/controller"
)

const (
	DefaultInterval   = 30 * time.Second
	DefaultBackoffMax = 5 * time.Minute
)

// Target is the slice of the controller the watchdog drives.
type Target interface {
	Status() controller.Status
	Start(ctx context.Context) error
}

type Config struct {
	Interval   time.Duration `mapstructure:"check_interval"` // time between health checks
	BackoffMax time.Duration `mapstructure:"backoff_max"`    // cap on the delay after repeated failed starts
}

func (c Config) interval() time.Duration {
	if c.Interval > 0 {
		return c.Interval
	}
	return DefaultInterval
}

func (c Config) backoffMax() time.Duration {
	if c.BackoffMax > 0 {
		return c.BackoffMax
	}
	return DefaultBackoffMax
}

// State is a point-in-time snapshot of the loop's counters.
type State struct {
	Checks    uint64        `json:"checks"`
	Restarts  uint64        `json:"restarts"`
	Failures  uint64        `json:"failures"` // consecutive failed start attempts
	LastCheck time.Time     `json:"last_check"`
	LastError string        `json:"last_error,omitempty"`
	NextDelay time.Duration `json:"next_delay"`
}

// Watchdog runs the check loop. A failed start never terminates the
// loop; it backs off exponentially (capped) and tries again. The loop
// exits only when its context is cancelled.
type Watchdog struct {
	target  Target
	cfg     Config
	lg      *slog.Logger
	onCheck func(running bool) // optional, for metrics

	mu sync.Mutex
	st State
}

func New(target Target, cfg Config) *Watchdog {
	return &Watchdog{target: target, cfg: cfg, lg: slog.Default()}
}

func (w *Watchdog) SetLogger(lg *slog.Logger) {
	if lg != nil {
		w.lg = lg
	}
}

// SetOnCheck wires a per-check callback.
func (w *Watchdog) SetOnCheck(fn func(running bool)) { w.onCheck = fn }

// Snapshot returns a copy of the loop counters.
func (w *Watchdog) Snapshot() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.st
}

// Run blocks until ctx is cancelled. The first check happens
// immediately on entry, so a stopped service is started without
// waiting out a full interval.
func (w *Watchdog) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(w.check(ctx))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		timer.Reset(w.check(ctx))
	}
}

// check performs one health check and returns the delay until the next.
func (w *Watchdog) check(ctx context.Context) time.Duration {
	st := w.target.Status()

	w.mu.Lock()
	w.st.Checks++
	w.st.LastCheck = time.Now()
	w.mu.Unlock()

	if w.onCheck != nil {
		w.onCheck(st.Running)
	}
	if st.Running {
		w.setHealthy("")
		return w.cfg.interval()
	}

	w.lg.Warn("service down, restarting", "service", st.Name)
	err := w.target.Start(ctx)
	switch {
	case err == nil:
		w.mu.Lock()
		w.st.Restarts++
		w.mu.Unlock()
		w.setHealthy("")
		w.lg.Info("service restarted", "service", st.Name)
		return w.cfg.interval()
	case errors.Is(err, controller.ErrAlreadyRunning):
		// Someone beat us to it between the status read and the start.
		w.setHealthy("")
		return w.cfg.interval()
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return w.cfg.interval()
	default:
		return w.recordFailure(st.Name, err)
	}
}

func (w *Watchdog) setHealthy(lastErr string) {
	w.mu.Lock()
	w.st.Failures = 0
	w.st.LastError = lastErr
	w.st.NextDelay = w.cfg.interval()
	w.mu.Unlock()
}

func (w *Watchdog) recordFailure(name string, err error) time.Duration {
	w.mu.Lock()
	w.st.Failures++
	w.st.LastError = err.Error()
	delay := backoff(w.cfg.interval(), w.cfg.backoffMax(), w.st.Failures)
	w.st.NextDelay = delay
	failures := w.st.Failures
	w.mu.Unlock()

	w.lg.Error("restart failed", "service", name, "failures", failures, "retry_in", delay, "err", err)
	return delay
}

// backoff doubles the base interval per consecutive failure, capped.
func backoff(base, maxDelay time.Duration, failures uint64) time.Duration {
	if failures == 0 {
		return base
	}
	if failures > 16 {
		return maxDelay
	}
	d := base << (failures - 1)
	if d <= 0 || d > maxDelay {
		return maxDelay
	}
	return d
}
