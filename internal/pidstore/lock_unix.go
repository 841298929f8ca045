//go:build !windows

package pidstore

import (
	"os"
	"path/filepath"
	"syscall"
)

// Lock acquires an exclusive advisory flock for name, blocking until it
// is available. Every lifecycle operation (start/stop/restart) must hold
// the lock for its full duration so that a manual CLI invocation and the
// watchdog cannot interleave their read/spawn/write sequences on the same
// pid record.
type Lock struct {
	f *os.File
}

func (s *Store) Lock(name string) (*Lock, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, name+".lock")
	// #nosec G304 -- path is derived from the configured state dir
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Lock{f: f}, nil
}

// Unlock releases the advisory lock. Safe to call once per Lock.
func (l *Lock) Unlock() {
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	_ = l.f.Close()
}
