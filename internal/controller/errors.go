package controller

import "errors"

// Lifecycle error taxonomy. CLI handlers map these to exit codes and the
// watchdog branches on them; always test with errors.Is since StartFailed
// and StopFailed are returned wrapped with context.
var (
	// ErrAlreadyRunning is returned by Start when a live child with a
	// matching identity is already recorded.
	ErrAlreadyRunning = errors.New("already running")

	// ErrNotRunning is returned by Stop and reported by status when no
	// live child is recorded. A corrupt pid record folds into this.
	ErrNotRunning = errors.New("not running")

	// ErrStartFailed means the child exited within the start grace
	// period (or could not be spawned at all).
	ErrStartFailed = errors.New("start failed")

	// ErrStopFailed means the child survived SIGKILL. This should not
	// happen on a POSIX system; it is reported loudly, never swallowed.
	ErrStopFailed = errors.New("stop failed")
)
