package controller

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/warden-sh/warden/internal/pidstore"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires unix process semantics")
	}
}

func newTestController(t *testing.T, command string) (*Controller, *pidstore.Store) {
	t.Helper()
	dir := t.TempDir()
	spec := Spec{
		Name:       "svc",
		Command:    command,
		LogDir:     filepath.Join(dir, "logs"),
		StartGrace: 150 * time.Millisecond,
		StopGrace:  500 * time.Millisecond,
	}
	pids := pidstore.New(filepath.Join(dir, "state"))
	return New(spec, pids), pids
}

func TestStartStopRoundTrip(t *testing.T) {
	requireUnix(t)
	c, pids := newTestController(t, "sleep 30")
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	st := c.Status()
	if !st.Running || st.PID <= 0 {
		t.Fatalf("expected running status, got %+v", st)
	}
	if _, ok := pids.Read("svc"); !ok {
		t.Fatalf("expected pid record after start")
	}
	if st.LogPath == "" {
		t.Fatalf("expected log path in status")
	}
	if _, err := os.Stat(st.LogPath); err != nil {
		t.Fatalf("expected log file to exist: %v", err)
	}

	if err := c.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if st := c.Status(); st.Running {
		t.Fatalf("expected stopped status, got %+v", st)
	}
	if _, ok := pids.Read("svc"); ok {
		t.Fatalf("expected pid record cleared after stop")
	}
}

func TestStartAlreadyRunning(t *testing.T) {
	requireUnix(t)
	c, _ := newTestController(t, "sleep 30")
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = c.Stop(ctx) }()

	if err := c.Start(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestStartFailedFastExit(t *testing.T) {
	requireUnix(t)
	c, pids := newTestController(t, "sh -c 'exit 3'")
	err := c.Start(context.Background())
	if !errors.Is(err, ErrStartFailed) {
		t.Fatalf("expected ErrStartFailed, got %v", err)
	}
	if _, ok := pids.Read("svc"); ok {
		t.Fatalf("expected pid record cleared after failed start")
	}
	if st := c.Status(); st.Running {
		t.Fatalf("expected stopped status after failed start")
	}
}

func TestStopNotRunning(t *testing.T) {
	requireUnix(t)
	c, _ := newTestController(t, "sleep 30")
	if err := c.Stop(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestStopStaleRecord(t *testing.T) {
	requireUnix(t)
	c, pids := newTestController(t, "sleep 30")
	// A pid far above any live process on a test box.
	if err := pids.Write("svc", pidstore.Record{PID: 1 << 22, StartUnix: 123}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := c.Stop(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning for stale record, got %v", err)
	}
	if _, ok := pids.Read("svc"); ok {
		t.Fatalf("expected stale record cleared")
	}
}

func TestCorruptRecordReadsAsStopped(t *testing.T) {
	requireUnix(t)
	c, pids := newTestController(t, "sleep 30")
	if err := os.MkdirAll(filepath.Dir(pids.Path("svc")), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(pids.Path("svc"), []byte("not-a-pid\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if st := c.Status(); st.Running {
		t.Fatalf("corrupt record must read as stopped, got %+v", st)
	}
	if err := c.Stop(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning for corrupt record, got %v", err)
	}
	// Corrupt record does not block a fresh start.
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start over corrupt record: %v", err)
	}
	_ = c.Stop(context.Background())
}

func TestStopEscalatesToSigkill(t *testing.T) {
	requireUnix(t)
	c, _ := newTestController(t, "sh -c 'trap \"\" TERM; while true; do sleep 1; done'")
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	begin := time.Now()
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	// The child ignores SIGTERM, so the stop must take at least the grace.
	if elapsed := time.Since(begin); elapsed < c.Spec().StopGrace {
		t.Fatalf("stop returned before grace elapsed: %v", elapsed)
	}
	if st := c.Status(); st.Running {
		t.Fatalf("expected stopped after SIGKILL, got %+v", st)
	}
}

func TestStopCancelledDuringGraceAborts(t *testing.T) {
	requireUnix(t)
	c, pids := newTestController(t, "sh -c 'trap \"\" TERM; while true; do sleep 1; done'")
	c.spec.StopGrace = 5 * time.Second
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := c.Stop(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context error from cancelled stop, got %v", err)
	}
	// The child ignored SIGTERM; cancellation must not have escalated to
	// SIGKILL, and the pid record must survive.
	if st := c.Status(); !st.Running {
		t.Fatalf("expected child still running after aborted stop, got %+v", st)
	}
	if _, ok := pids.Read("svc"); !ok {
		t.Fatalf("expected pid record kept after aborted stop")
	}

	c.spec.StopGrace = 200 * time.Millisecond
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("final stop: %v", err)
	}
}

func TestRestartChangesPid(t *testing.T) {
	requireUnix(t)
	c, _ := newTestController(t, "sleep 30")
	c.spec.RestartPause = 50 * time.Millisecond
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	first := c.Status().PID
	if err := c.Restart(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer func() { _ = c.Stop(ctx) }()
	second := c.Status().PID
	if second <= 0 || second == first {
		t.Fatalf("expected a new pid after restart, got %d then %d", first, second)
	}
}

func TestRestartWhenStopped(t *testing.T) {
	requireUnix(t)
	c, _ := newTestController(t, "sleep 30")
	c.spec.RestartPause = 50 * time.Millisecond
	ctx := context.Background()
	if err := c.Restart(ctx); err != nil {
		t.Fatalf("restart of stopped service should start it: %v", err)
	}
	_ = c.Stop(ctx)
}

func TestRecorderSeesLifecycle(t *testing.T) {
	requireUnix(t)
	c, _ := newTestController(t, "sleep 30")
	var events []string
	c.SetRecorder(func(event string, pid int, detail string) {
		events = append(events, event)
	})
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	want := map[string]bool{EventStartAttempt: false, EventStarted: false, EventStopAttempt: false, EventStopped: false}
	for _, e := range events {
		if _, ok := want[e]; ok {
			want[e] = true
		}
	}
	for e, seen := range want {
		if !seen {
			t.Fatalf("missing event %q in %v", e, events)
		}
	}
}
