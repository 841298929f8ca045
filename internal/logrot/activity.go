package logrot

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// ActivityFile is the fixed (not date-rotated) supervisor event log.
const ActivityFile = "monitor.log"

// ActivityPath returns the activity log path under dir.
func ActivityPath(dir string) string { return filepath.Join(dir, ActivityFile) }

// Activity is an append-only event log for lifecycle transitions, one
// timestamped line per event. It backs postmortem analysis of what the
// supervisor did and when. Size rotation is handled by lumberjack so the
// file cannot grow without bound; lines are never rewritten.
type Activity struct {
	mu sync.Mutex
	w  io.WriteCloser
	lg *slog.Logger // optional console mirror

	now func() time.Time
}

// OpenActivity creates the activity log under dir. mirror may be nil.
func OpenActivity(dir string, mirror *slog.Logger) *Activity {
	return &Activity{
		w: &lj.Logger{
			Filename:   ActivityPath(dir),
			MaxSize:    50,
			MaxBackups: 5,
		},
		lg:  mirror,
		now: time.Now,
	}
}

// Record appends one event line: "<ts> [<event>] <name>: <detail>".
func (a *Activity) Record(event, name, detail string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	line := fmt.Sprintf("%s [%s] %s: %s\n", a.now().Format("2006-01-02 15:04:05"), event, name, detail)
	_, _ = a.w.Write([]byte(line))
	if a.lg != nil {
		a.lg.Info(detail, "event", event, "service", name)
	}
}

func (a *Activity) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.w.Close()
}
