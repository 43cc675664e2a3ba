package pidfile

import (
	"errors"
	"fmt"
)

// ErrMissing indicates the PID file does not exist.
var ErrMissing = errors.New("pid file does not exist")

// UnreadableError indicates the PID file exists but no PID could be read
// from it.
type UnreadableError struct {
	Path string
	Err  error
}

func (e *UnreadableError) Error() string {
	return fmt.Sprintf("pid file %s is unreadable: %v", e.Path, e.Err)
}

func (e *UnreadableError) Unwrap() error { return e.Err }

// AccessDeniedError indicates the recorded process is alive but the OS
// refused to let us query it.
type AccessDeniedError struct {
	PID int
	Err error
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("no access to query process %d: %v", e.PID, e.Err)
}

func (e *AccessDeniedError) Unwrap() error { return e.Err }

// AlreadyRunningError indicates the recorded process is alive. It carries the
// discovered PID so callers can report or signal it.
type AlreadyRunningError struct {
	PID int
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("daemon already running with pid %d", e.PID)
}
