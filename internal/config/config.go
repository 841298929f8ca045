package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/warden-sh/warden/internal/controller"
	"github.com/warden-sh/warden/internal/logger"
	"github.com/warden-sh/warden/internal/watchdog"
)

// Defaults applied when the config file leaves fields empty.
const (
	DefaultServiceName = "gateway"
	DefaultListen      = "127.0.0.1:8420"
	DefaultBasePath    = "/api"
)

// Config is the top-level TOML structure (warden.toml).
type Config struct {
	Service ServiceConfig `toml:"service" mapstructure:"service"`
	Paths   PathsConfig   `toml:"paths" mapstructure:"paths"`
	Timing  TimingConfig  `toml:"timing" mapstructure:"timing"`
	Server  ServerConfig  `toml:"server" mapstructure:"server"`
	Metrics MetricsConfig `toml:"metrics" mapstructure:"metrics"`
	History HistoryConfig `toml:"history" mapstructure:"history"`
	Log     logger.Config `toml:"log" mapstructure:"log"`
}

type ServiceConfig struct {
	Name    string   `toml:"name" mapstructure:"name"`
	Command string   `toml:"command" mapstructure:"command"`
	WorkDir string   `toml:"work_dir" mapstructure:"work_dir"`
	Env     []string `toml:"env" mapstructure:"env"`
}

type PathsConfig struct {
	StateDir string `toml:"state_dir" mapstructure:"state_dir"` // pid records and locks
	LogDir   string `toml:"log_dir" mapstructure:"log_dir"`     // dated service logs and monitor.log
}

type TimingConfig struct {
	StartGrace    time.Duration `toml:"start_grace" mapstructure:"start_grace"`
	StopGrace     time.Duration `toml:"stop_grace" mapstructure:"stop_grace"`
	RestartPause  time.Duration `toml:"restart_pause" mapstructure:"restart_pause"`
	CheckInterval time.Duration `toml:"check_interval" mapstructure:"check_interval"`
	BackoffMax    time.Duration `toml:"backoff_max" mapstructure:"backoff_max"`
}

type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
	PIDFile  string `toml:"pidfile" mapstructure:"pidfile"`   // daemon's own pid file, used by --daemonize
	LogFile  string `toml:"log_file" mapstructure:"log_file"` // daemon's own stdout/stderr when daemonized
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Listen  string `toml:"listen" mapstructure:"listen"` // separate listener; empty serves on the API listener
}

type HistoryConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Path    string `toml:"path" mapstructure:"path"` // sqlite file, default <state_dir>/history.db
}

// Load reads a TOML config file and normalizes it: defaults are filled
// in and relative paths are resolved against the config file's
// directory, so a config travels with its state.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	if err := c.normalize(base); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) normalize(base string) error {
	if c.Service.Name == "" {
		c.Service.Name = DefaultServiceName
	}
	if strings.ContainsAny(c.Service.Name, "/\\ ") {
		return fmt.Errorf("service name %q must not contain separators or spaces", c.Service.Name)
	}
	if strings.TrimSpace(c.Service.Command) == "" {
		return fmt.Errorf("service %q has no command", c.Service.Name)
	}

	if c.Paths.StateDir == "" {
		c.Paths.StateDir = "state"
	}
	if c.Paths.LogDir == "" {
		c.Paths.LogDir = "logs"
	}
	c.Paths.StateDir = resolve(base, c.Paths.StateDir)
	c.Paths.LogDir = resolve(base, c.Paths.LogDir)
	if c.Service.WorkDir != "" {
		c.Service.WorkDir = resolve(base, c.Service.WorkDir)
	}

	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = DefaultBasePath
	}
	if c.Server.PIDFile == "" {
		c.Server.PIDFile = filepath.Join(c.Paths.StateDir, "warden.pid")
	} else {
		c.Server.PIDFile = resolve(base, c.Server.PIDFile)
	}
	if c.Server.LogFile != "" {
		c.Server.LogFile = resolve(base, c.Server.LogFile)
	}

	if c.History.Path == "" {
		c.History.Path = filepath.Join(c.Paths.StateDir, "history.db")
	} else {
		c.History.Path = resolve(base, c.History.Path)
	}
	if c.Log.File != "" {
		c.Log.File = resolve(base, c.Log.File)
	}
	return nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// Spec builds the controller spec from the service, paths, and timing
// sections.
func (c *Config) Spec() controller.Spec {
	return controller.Spec{
		Name:         c.Service.Name,
		Command:      c.Service.Command,
		WorkDir:      c.Service.WorkDir,
		Env:          c.Service.Env,
		LogDir:       c.Paths.LogDir,
		StartGrace:   c.Timing.StartGrace,
		StopGrace:    c.Timing.StopGrace,
		RestartPause: c.Timing.RestartPause,
	}
}

// Watchdog builds the watchdog loop config from the timing section.
func (c *Config) Watchdog() watchdog.Config {
	return watchdog.Config{
		Interval:   c.Timing.CheckInterval,
		BackoffMax: c.Timing.BackoffMax,
	}
}
