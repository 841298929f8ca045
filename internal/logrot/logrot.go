package logrot

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CurrentPath returns the log file path for a service on a given date,
// format {name}_{YYYY-MM-DD}.log under dir. It is a pure function of its
// inputs: two calls on the same date yield the same path, and the path
// changes once the date advances. No rotation event exists; the next
// start simply opens the new path. A child started before midnight keeps
// writing to its original handle until it is restarted.
func CurrentPath(dir, name string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.log", name, now.Format("2006-01-02")))
}

// OpenCurrent opens (append, create) the dated log file for name and
// returns the handle together with the path it resolved to. Old dated
// files are never deleted here; retention is an external concern.
func OpenCurrent(dir, name string, now time.Time) (*os.File, string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, "", err
	}
	path := CurrentPath(dir, name, now)
	// #nosec G304 -- path is derived from configured dir and service name
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, "", err
	}
	return f, path, nil
}
