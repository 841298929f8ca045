package pidstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Store keeps one durable pid record per service name under a state
// directory. The on-disk format is the pid on the first line followed by
// a JSON meta line carrying the kernel start time and wall-clock start:
//
//	12345
//	{"start_unix":1767000000,"started_at":"2026-08-30T10:00:00Z"}
//
// A record that cannot be parsed is treated exactly like an absent one;
// a corrupt file must never surface as an error distinct from "not
// running", so a damaged record leads to a safe re-spawn instead of a
// wedged supervisor.
type Store struct {
	dir string
}

// Record is the persisted identity of the current child process.
type Record struct {
	PID       int
	StartUnix int64     // kernel start time for pid-reuse detection; 0 if unknown
	StartedAt time.Time // wall clock, for status display
}

type meta struct {
	StartUnix int64     `json:"start_unix"`
	StartedAt time.Time `json:"started_at"`
}

func New(dir string) *Store { return &Store{dir: dir} }

// Path returns the pid file path for name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+".pid")
}

// Write overwrites the record for name unconditionally.
func (s *Store) Write(name string, rec Record) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return err
	}
	m, err := json.Marshal(meta{StartUnix: rec.StartUnix, StartedAt: rec.StartedAt.UTC()})
	if err != nil {
		return err
	}
	data := strconv.Itoa(rec.PID) + "\n" + string(m) + "\n"
	return os.WriteFile(s.Path(name), []byte(data), 0o600)
}

// Read returns the record for name. The second return value is false when
// the record is absent, unreadable, or corrupt; those cases are
// indistinguishable by contract.
func (s *Store) Read(name string) (Record, bool) {
	// #nosec G304 -- path is derived from the configured state dir
	b, err := os.ReadFile(s.Path(name))
	if err != nil {
		return Record{}, false
	}
	pidLine, rest, _ := strings.Cut(string(b), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(pidLine))
	if err != nil || pid <= 0 {
		return Record{}, false
	}
	rec := Record{PID: pid}
	if rest = strings.TrimSpace(rest); rest != "" {
		var m meta
		if err := json.Unmarshal([]byte(rest), &m); err == nil {
			rec.StartUnix = m.StartUnix
			rec.StartedAt = m.StartedAt
		}
		// A pid with an unparsable meta line is still a usable legacy record.
	}
	return rec, true
}

// Clear removes the record for name. Clearing an absent record is not an
// error.
func (s *Store) Clear(name string) error {
	err := os.Remove(s.Path(name))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
