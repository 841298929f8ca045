package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestColorTextHandlerFormat(t *testing.T) {
	var buf strings.Builder
	h := NewColorTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	lg := slog.New(h)

	lg.Debug("hidden")
	lg.With("service", "gateway").WithGroup("child").Warn("service down", "pid", 42)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record should be dropped: %q", out)
	}
	if !strings.Contains(out, "\033[33mWARN\033[0m") {
		t.Fatalf("missing colored level tag: %q", out)
	}
	for _, want := range []string{"service down", "service=gateway", "child.pid=42"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q: %q", want, out)
		}
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatalf("record not newline terminated: %q", out)
	}
}

func TestColorTextHandlerQuotesSpacedValues(t *testing.T) {
	var buf strings.Builder
	lg := slog.New(NewColorTextHandler(&buf, nil))
	lg.Info("start", "detail", "exited within start grace")
	if !strings.Contains(buf.String(), `detail="exited within start grace"`) {
		t.Fatalf("spaced value not quoted: %q", buf.String())
	}
}

func TestNewWithoutFile(t *testing.T) {
	lg, closer := New(Config{Level: "debug"})
	if lg == nil {
		t.Fatal("expected logger")
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestNewWithFileWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warden.log")
	lg, closer := New(Config{Level: "info", File: path, NoColor: true})
	lg.Info("daemon listening", "addr", "127.0.0.1:8420")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), "daemon listening") {
		t.Fatalf("log file missing message: %q", b)
	}
}

func TestFileLoggerDropsDebugByDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warden.log")
	lg, closer := New(Config{File: path})
	lg.Debug("hidden")
	lg.Info("visible")
	_ = closer.Close()
	b, _ := os.ReadFile(path)
	s := string(b)
	if strings.Contains(s, "hidden") || !strings.Contains(s, "visible") {
		t.Fatalf("level filtering broken: %q", s)
	}
}
