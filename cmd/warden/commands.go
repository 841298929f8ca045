package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/warden-sh/warden/internal/config"
	"github.com/warden-sh/warden/internal/controller"
	"github.com/warden-sh/warden/internal/logrot"
	"github.com/warden-sh/warden/internal/pidstore"
	"github.com/warden-sh/warden/internal/store"
	"github.com/warden-sh/warden/internal/store/sqlite"
	"github.com/warden-sh/warden/pkg/client"
)

type command struct {
	flags *GlobalFlags
}

func (c *command) loadConfig() (*config.Config, error) {
	return config.Load(c.flags.ConfigPath)
}

func (c *command) apiClient(cfg *config.Config) *client.Client {
	url := c.flags.APIUrl
	if url == "" {
		url = "http://" + cfg.Server.Listen + cfg.Server.BasePath
	}
	return client.New(client.Config{BaseURL: url, Timeout: c.flags.APITimeout})
}

// controller builds a direct (daemon-less) controller. The returned
// cleanup closes the activity log.
func (c *command) controller(cfg *config.Config) (*controller.Controller, func()) {
	ctrl := controller.New(cfg.Spec(), pidstore.New(cfg.Paths.StateDir))
	act := logrot.OpenActivity(cfg.Paths.LogDir, nil)
	ctrl.SetActivity(act)
	return ctrl, func() { _ = act.Close() }
}

// Start starts the service, through the daemon when one is reachable.
func (c *command) Start(ctx context.Context) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if api := c.apiClient(cfg); api.IsReachable(ctx) {
		if err := api.Start(ctx); err != nil {
			return err
		}
		fmt.Printf("%s started\n", cfg.Service.Name)
		return nil
	}
	ctrl, cleanup := c.controller(cfg)
	defer cleanup()
	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	st := ctrl.Status()
	fmt.Printf("%s started (pid %d)\n", cfg.Service.Name, st.PID)
	return nil
}

// Stop stops the service, through the daemon when one is reachable.
func (c *command) Stop(ctx context.Context) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if api := c.apiClient(cfg); api.IsReachable(ctx) {
		if err := api.Stop(ctx); err != nil {
			return err
		}
		fmt.Printf("%s stopped\n", cfg.Service.Name)
		return nil
	}
	ctrl, cleanup := c.controller(cfg)
	defer cleanup()
	if err := ctrl.Stop(ctx); err != nil {
		return err
	}
	fmt.Printf("%s stopped\n", cfg.Service.Name)
	return nil
}

// Restart restarts the service, through the daemon when one is reachable.
func (c *command) Restart(ctx context.Context) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if api := c.apiClient(cfg); api.IsReachable(ctx) {
		if err := api.Restart(ctx); err != nil {
			return err
		}
		fmt.Printf("%s restarted\n", cfg.Service.Name)
		return nil
	}
	ctrl, cleanup := c.controller(cfg)
	defer cleanup()
	if err := ctrl.Restart(ctx); err != nil {
		return err
	}
	st := ctrl.Status()
	fmt.Printf("%s restarted (pid %d)\n", cfg.Service.Name, st.PID)
	return nil
}

// Status prints the service status and exits 1 when it is not running.
func (c *command) Status(ctx context.Context, f StatusFlags) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	var st controller.Status
	if api := c.apiClient(cfg); api.IsReachable(ctx) {
		st, err = api.Status(ctx)
		if err != nil {
			return err
		}
	} else {
		ctrl := controller.New(cfg.Spec(), pidstore.New(cfg.Paths.StateDir))
		st = ctrl.Status()
	}

	if f.JSON {
		printJSON(st)
	} else if st.Running {
		fmt.Printf("%s: running (pid %d, since %s)\n", st.Name, st.PID, st.StartedAt.Local().Format(time.RFC3339))
		fmt.Printf("log: %s\n", st.LogPath)
	} else {
		fmt.Printf("%s: not running\n", st.Name)
	}
	if !st.Running {
		return &exitCodeError{code: 1}
	}
	return nil
}

// Logs prints the tail of the current dated service log or monitor.log.
func (c *command) Logs(ctx context.Context, f LogsFlags) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	path := logrot.CurrentPath(cfg.Paths.LogDir, cfg.Service.Name, time.Now())
	if f.Monitor {
		path = logrot.ActivityPath(cfg.Paths.LogDir)
	} else {
		// A running service keeps writing the file it opened at start,
		// which may carry an older date.
		ctrl := controller.New(cfg.Spec(), pidstore.New(cfg.Paths.StateDir))
		if st := ctrl.Status(); st.Running && st.LogPath != "" {
			path = st.LogPath
		}
	}
	lines, err := tailFile(path, f.Lines)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}

// History prints recent lifecycle events, via the daemon when one is
// reachable and directly from the sqlite file otherwise.
func (c *command) History(ctx context.Context, f HistoryFlags) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	var events []store.Event
	if api := c.apiClient(cfg); api.IsReachable(ctx) {
		events, err = api.History(ctx, f.Limit)
		if err != nil {
			return err
		}
	} else {
		if !cfg.History.Enabled {
			return fmt.Errorf("history is not enabled in %s", c.flags.ConfigPath)
		}
		db, err := sqlite.New(cfg.History.Path)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
		events, err = db.Recent(ctx, cfg.Service.Name, f.Limit)
		if err != nil {
			return err
		}
	}

	if f.JSON {
		printJSON(events)
		return nil
	}
	if len(events) == 0 {
		fmt.Println("no recorded events")
		return nil
	}
	for _, ev := range events {
		line := fmt.Sprintf("%s  %-13s", ev.OccurredAt.Local().Format("2006-01-02 15:04:05"), ev.Type)
		if ev.PID > 0 {
			line += fmt.Sprintf("  pid %d", ev.PID)
		}
		if ev.Detail != "" {
			line += "  " + ev.Detail
		}
		fmt.Println(line)
	}
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// tailFile returns the last n lines of the file at path.
func tailFile(path string, n int) ([]string, error) {
	if n <= 0 {
		n = 50
	}
	// #nosec G304 -- path comes from the local config
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
