package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "warden.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
[service]
name = "gateway"
command = "sleep 30"
work_dir = "run"
env = ["PORT=8080"]

[paths]
state_dir = "state"
log_dir = "logs"

[timing]
start_grace = "2s"
stop_grace = "3s"
restart_pause = "1s"
check_interval = "30s"
backoff_max = "5m"

[server]
listen = "127.0.0.1:9000"
base_path = "/api"

[metrics]
enabled = true
listen = "127.0.0.1:9100"

[history]
enabled = true

[log]
level = "debug"
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	base := filepath.Dir(path)
	if c.Paths.StateDir != filepath.Join(base, "state") {
		t.Fatalf("state dir not resolved: %q", c.Paths.StateDir)
	}
	if c.Service.WorkDir != filepath.Join(base, "run") {
		t.Fatalf("work dir not resolved: %q", c.Service.WorkDir)
	}
	if c.Timing.StartGrace != 2*time.Second || c.Timing.BackoffMax != 5*time.Minute {
		t.Fatalf("durations not parsed: %+v", c.Timing)
	}
	if c.Server.Listen != "127.0.0.1:9000" {
		t.Fatalf("listen: %q", c.Server.Listen)
	}
	if c.History.Path != filepath.Join(base, "state", "history.db") {
		t.Fatalf("history path default: %q", c.History.Path)
	}
	if !c.Metrics.Enabled || c.Metrics.Listen != "127.0.0.1:9100" {
		t.Fatalf("metrics: %+v", c.Metrics)
	}

	spec := c.Spec()
	if spec.Name != "gateway" || spec.Command != "sleep 30" || spec.LogDir != c.Paths.LogDir {
		t.Fatalf("spec mapping: %+v", spec)
	}
	wd := c.Watchdog()
	if wd.Interval != 30*time.Second || wd.BackoffMax != 5*time.Minute {
		t.Fatalf("watchdog mapping: %+v", wd)
	}
}

func TestLoadMinimalConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
[service]
command = "sleep 1"
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Service.Name != DefaultServiceName {
		t.Fatalf("expected default name, got %q", c.Service.Name)
	}
	if c.Server.Listen != DefaultListen || c.Server.BasePath != DefaultBasePath {
		t.Fatalf("server defaults: %+v", c.Server)
	}
	base := filepath.Dir(path)
	if c.Paths.StateDir != filepath.Join(base, "state") || c.Paths.LogDir != filepath.Join(base, "logs") {
		t.Fatalf("path defaults: %+v", c.Paths)
	}
	if c.Server.PIDFile != filepath.Join(c.Paths.StateDir, "warden.pid") {
		t.Fatalf("pidfile default: %q", c.Server.PIDFile)
	}
	// Timing left zero; the controller applies its own grace defaults.
	if c.Timing.StartGrace != 0 {
		t.Fatalf("expected zero start grace, got %v", c.Timing.StartGrace)
	}
}

func TestLoadRejectsMissingCommand(t *testing.T) {
	path := writeConfig(t, `
[service]
name = "gateway"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing command")
	}
}

func TestLoadRejectsBadName(t *testing.T) {
	path := writeConfig(t, `
[service]
name = "a/b"
command = "sleep 1"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for name with separator")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestAbsolutePathsKept(t *testing.T) {
	abs := t.TempDir()
	path := writeConfig(t, `
[service]
command = "sleep 1"

[paths]
state_dir = "`+abs+`"
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Paths.StateDir != abs {
		t.Fatalf("absolute state dir rewritten: %q", c.Paths.StateDir)
	}
}
