package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/warden-sh/warden/internal/controller"
	"github.com/warden-sh/warden/internal/pidstore"
	"github.com/warden-sh/warden/internal/server"
)

func newDaemon(t *testing.T) *Client {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires unix process semantics")
	}
	dir := t.TempDir()
	spec := controller.Spec{
		Name:       "svc",
		Command:    "sleep 30",
		LogDir:     filepath.Join(dir, "logs"),
		StartGrace: 100 * time.Millisecond,
		StopGrace:  500 * time.Millisecond,
	}
	ctrl := controller.New(spec, pidstore.New(filepath.Join(dir, "state")))
	srv := httptest.NewServer(server.NewRouter(ctrl, "/api").Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = ctrl.Stop(context.Background())
	})
	return New(Config{BaseURL: srv.URL + "/api"})
}

func TestClientLifecycle(t *testing.T) {
	c := newDaemon(t)
	ctx := context.Background()

	if !c.IsReachable(ctx) {
		t.Fatal("daemon should be reachable")
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	st, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !st.Running || st.PID <= 0 {
		t.Fatalf("unexpected status: %+v", st)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	st, err = c.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Running {
		t.Fatalf("expected stopped, got %+v", st)
	}
}

func TestClientMapsConflictErrors(t *testing.T) {
	c := newDaemon(t)
	ctx := context.Background()

	if err := c.Stop(ctx); !errors.Is(err, controller.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Start(ctx); !errors.Is(err, controller.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestClientUnreachable(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1/api", Timeout: 200 * time.Millisecond})
	ctx := context.Background()
	if c.IsReachable(ctx) {
		t.Fatal("nothing should be listening on port 1")
	}
	if err := c.Start(ctx); err == nil {
		t.Fatal("expected error when daemon is unreachable")
	}
}
