package daemon

import (
	"fmt"
	"os"
	"strconv"

	"github.com/gofrs/flock"
)

// pidLock couples an exclusive flock on the PID file with the recorded PID.
// The flock is the actual mutual-exclusion mechanism: the kernel releases it
// when the owning process exits by any path, so a crashed daemon never blocks
// a successor even though its stale PID file may linger.
type pidLock struct {
	path  string
	flock *flock.Flock
}

func newPidLock(path string) *pidLock {
	return &pidLock{path: path, flock: flock.New(path)}
}

// Acquire takes the exclusive lock and records the current PID. Failure to
// obtain the lock surfaces as ErrLockHeld without touching the file content.
func (l *pidLock) Acquire() error {
	ok, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire pid file lock %s: %w", l.path, err)
	}
	if !ok {
		return ErrLockHeld
	}
	pid := strconv.Itoa(os.Getpid()) + "\n"
	if err := os.WriteFile(l.path, []byte(pid), 0o644); err != nil {
		_ = l.flock.Unlock()
		return fmt.Errorf("write pid file %s: %w", l.path, err)
	}
	return nil
}

// Release removes the PID file and drops the lock. Safe to call more than
// once.
func (l *pidLock) Release() {
	if l.flock.Locked() {
		_ = os.Remove(l.path)
		_ = l.flock.Unlock()
	}
}
