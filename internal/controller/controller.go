package controller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/warden-sh/warden/internal/detector"
	"github.com/warden-sh/warden/internal/logrot"
	"github.com/warden-sh/warden/internal/pidstore"
)

// How long to wait for the process to disappear after SIGKILL before
// declaring StopFailed.
const killWait = time.Second

// Recorder receives every lifecycle transition for persistence (event
// history, metrics). pid is 0 when no process was involved.
type Recorder func(event string, pid int, detail string)

// Event names passed to the Recorder and written to the activity log.
const (
	EventStartAttempt = "start-attempt"
	EventStarted      = "started"
	EventStartFailed  = "start-failed"
	EventStopAttempt  = "stop-attempt"
	EventStopped      = "stopped"
	EventKilled       = "killed"
	EventStopFailed   = "stop-failed"
)

// Status is the externally visible state of the supervised service.
type Status struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	LogPath   string    `json:"log_path,omitempty"`
}

// Controller owns the lifecycle of exactly one supervised child process.
// It is the only component that spawns, signals, or queries the child,
// and the only writer of the pid record. Lifecycle operations serialize
// on an in-process mutex and on an advisory file lock, so a one-shot CLI
// invocation and a running daemon cannot interleave on the same service.
type Controller struct {
	mu   sync.Mutex
	spec Spec
	pids *pidstore.Store
	act  *logrot.Activity // optional
	rec  Recorder         // optional

	now func() time.Time
}

func New(spec Spec, pids *pidstore.Store) *Controller {
	return &Controller{spec: spec, pids: pids, now: time.Now}
}

// SetActivity wires the append-only activity log.
func (c *Controller) SetActivity(a *logrot.Activity) { c.act = a }

// SetRecorder wires an event recorder (history store, metrics).
func (c *Controller) SetRecorder(r Recorder) { c.rec = r }

// Spec returns a copy of the controller's spec.
func (c *Controller) Spec() Spec { return c.spec }

// Start spawns the child unless a live one is already recorded. The child
// must survive the start grace period or the start is reported failed and
// the pid record cleared.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, err := c.pids.Lock(c.spec.Name)
	if err != nil {
		return fmt.Errorf("acquire lifecycle lock: %w", err)
	}
	defer lock.Unlock()
	return c.startLocked(ctx)
}

func (c *Controller) startLocked(ctx context.Context) error {
	name := c.spec.Name
	if rec, ok := c.pids.Read(name); ok {
		if (detector.Identity{PID: rec.PID, StartUnix: rec.StartUnix}).Alive() {
			return ErrAlreadyRunning
		}
		// Stale record from a previous run; safe to replace below.
	}

	cmd := c.spec.BuildCommand()
	if c.spec.WorkDir != "" {
		cmd.Dir = c.spec.WorkDir
	}
	if len(c.spec.Env) > 0 {
		cmd.Env = append(os.Environ(), c.spec.Env...)
	}
	setProcGroup(cmd)

	logf, logPath, err := logrot.OpenCurrent(c.spec.LogDir, name, c.now())
	if err != nil {
		return fmt.Errorf("open service log: %w", err)
	}
	cmd.Stdout = logf
	cmd.Stderr = logf

	c.event(EventStartAttempt, 0, "starting: "+c.spec.Command)
	if err := cmd.Start(); err != nil {
		_ = logf.Close()
		c.event(EventStartFailed, 0, "spawn: "+err.Error())
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}
	// The child holds its own copy of the log fd.
	_ = logf.Close()

	pid := cmd.Process.Pid
	rec := pidstore.Record{PID: pid, StartUnix: detector.StartUnix(pid), StartedAt: c.now()}
	if err := c.pids.Write(name, rec); err != nil {
		c.event(EventStartFailed, pid, "write pid record: "+err.Error())
		return fmt.Errorf("write pid record: %w", err)
	}

	// Reap the child when we outlive it (daemon mode). In one-shot mode
	// the child is reparented when we exit and init reaps it.
	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case werr := <-waitCh:
		_ = c.pids.Clear(name)
		detail := "exited within start grace"
		if werr != nil {
			detail += ": " + werr.Error()
		}
		c.event(EventStartFailed, pid, detail)
		return fmt.Errorf("%w: pid %d %s", ErrStartFailed, pid, detail)
	case <-time.After(c.spec.startGrace()):
	case <-ctx.Done():
		return ctx.Err()
	}

	if !(detector.Identity{PID: pid, StartUnix: rec.StartUnix}).Alive() {
		_ = c.pids.Clear(name)
		c.event(EventStartFailed, pid, "dead after start grace")
		return fmt.Errorf("%w: pid %d dead after start grace", ErrStartFailed, pid)
	}

	c.event(EventStarted, pid, fmt.Sprintf("pid %d, log %s", pid, logPath))
	return nil
}

// Stop terminates the child: SIGTERM, stop grace, then SIGKILL. The pid
// record is cleared on every completed exit path. Returns ErrNotRunning
// without sending any signal when no live child is recorded, and
// ErrStopFailed when the child survives SIGKILL. Cancelling ctx aborts
// the stop with the context error; it never shortens a grace period.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, err := c.pids.Lock(c.spec.Name)
	if err != nil {
		return fmt.Errorf("acquire lifecycle lock: %w", err)
	}
	defer lock.Unlock()
	return c.stopLocked(ctx)
}

func (c *Controller) stopLocked(ctx context.Context) error {
	name := c.spec.Name
	rec, ok := c.pids.Read(name)
	if !ok {
		return ErrNotRunning
	}
	id := detector.Identity{PID: rec.PID, StartUnix: rec.StartUnix}
	if !id.Alive() {
		_ = c.pids.Clear(name)
		return ErrNotRunning
	}

	c.event(EventStopAttempt, rec.PID, fmt.Sprintf("sending SIGTERM to pid %d", rec.PID))
	signalGroup(rec.PID, sigTerm)
	gone, err := waitGone(ctx, id, c.spec.stopGrace())
	if err != nil {
		// Cancellation aborts the stop; it must never escalate to
		// SIGKILL early. The pid record stays, the child keeps running.
		return err
	}
	if gone {
		_ = c.pids.Clear(name)
		c.event(EventStopped, rec.PID, "exited after SIGTERM")
		return nil
	}

	c.event(EventKilled, rec.PID, "still alive after stop grace, sending SIGKILL")
	signalGroup(rec.PID, sigKill)
	gone, err = waitGone(ctx, id, killWait)
	if err != nil {
		return err
	}
	if gone {
		_ = c.pids.Clear(name)
		c.event(EventKilled, rec.PID, "exited after SIGKILL")
		return nil
	}

	c.event(EventStopFailed, rec.PID, "survived SIGKILL")
	return fmt.Errorf("%w: pid %d survived SIGKILL", ErrStopFailed, rec.PID)
}

// Restart composes an idempotent stop, a short pause, and a start.
// ErrNotRunning from the stop is swallowed; start errors propagate.
func (c *Controller) Restart(ctx context.Context) error {
	if err := c.Stop(ctx); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	select {
	case <-time.After(c.spec.restartPause()):
	case <-ctx.Done():
		return ctx.Err()
	}
	return c.Start(ctx)
}

// Status reports whether a live child is recorded. It never mutates
// state; a stale record is simply reported as stopped and cleaned up by
// the next start or stop.
func (c *Controller) Status() Status {
	name := c.spec.Name
	rec, ok := c.pids.Read(name)
	if !ok {
		return Status{Name: name}
	}
	if !(detector.Identity{PID: rec.PID, StartUnix: rec.StartUnix}).Alive() {
		return Status{Name: name}
	}
	started := rec.StartedAt
	if started.IsZero() {
		started = c.now()
	}
	return Status{
		Name:      name,
		Running:   true,
		PID:       rec.PID,
		StartedAt: rec.StartedAt,
		LogPath:   logrot.CurrentPath(c.spec.LogDir, name, started),
	}
}

// waitGone polls until the identity disappears or the duration elapses.
// Cancellable timed wait, not a busy loop. A non-nil error means ctx was
// cancelled while the process was still alive.
func waitGone(ctx context.Context, id detector.Identity, d time.Duration) (bool, error) {
	deadline := time.NewTimer(d)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		if !id.Alive() {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return !id.Alive(), nil
		case <-tick.C:
		}
	}
}

func (c *Controller) event(event string, pid int, detail string) {
	if c.act != nil {
		c.act.Record(event, c.spec.Name, detail)
	}
	if c.rec != nil {
		c.rec(event, pid, detail)
	}
}
