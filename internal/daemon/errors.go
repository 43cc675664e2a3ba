package daemon

import (
	"errors"
	"fmt"
)

// ErrLockHeld indicates another live process holds the same PID-file lock.
var ErrLockHeld = errors.New("pid file lock already held by another process")

// StopFailedError indicates a confirmed-running daemon could not be signaled.
type StopFailedError struct {
	PID int
	Err error
}

func (e *StopFailedError) Error() string {
	return fmt.Sprintf("failed to terminate process group of pid %d: %v", e.PID, e.Err)
}

func (e *StopFailedError) Unwrap() error { return e.Err }
