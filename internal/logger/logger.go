package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters for the supervisor's own log file.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Config describes logging for the supervisor process itself.
// Child process output never goes through here; it is written to the
// dated log file managed by the logrot package.
type Config struct {
	Level      string `json:"level" mapstructure:"level"`             // debug, info, warn, error (default info)
	File       string `json:"file" mapstructure:"file"`               // optional file destination, lumberjack-rotated
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"` // megabytes before rotation (default 10)
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"` // number of backups to keep (default 3)
	MaxAgeDays int    `json:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
	NoColor    bool   `json:"no_color" mapstructure:"no_color"`
}

// ParseLevel maps a config string to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a slog.Logger according to cfg. When File is set the logger
// writes plain text to both stderr and the rotated file; otherwise it
// writes colorized text to stderr only. The returned closer is always
// safe to Close; it flushes the file writer when one was opened.
func New(cfg Config) (*slog.Logger, io.Closer) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if cfg.File == "" {
		if cfg.NoColor {
			return slog.New(slog.NewTextHandler(os.Stderr, opts)), nopCloser{}
		}
		return slog.New(NewColorTextHandler(os.Stderr, opts)), nopCloser{}
	}
	fw := &lj.Logger{
		Filename:   cfg.File,
		MaxSize:    valOr(cfg.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(cfg.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(cfg.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   cfg.Compress,
	}
	w := io.MultiWriter(os.Stderr, fw)
	return slog.New(slog.NewTextHandler(w, opts)), fw
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
