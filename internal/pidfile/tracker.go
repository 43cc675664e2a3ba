package pidfile

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v4/process"

	"ignition/internal/logging"
)

// CheckResult classifies the state of a PID file and the process it names.
type CheckResult int

const (
	// NoFile means no PID file exists; safe to proceed.
	NoFile CheckResult = iota
	// NotRunning means a PID was read but no such process is alive; safe to
	// proceed.
	NotRunning
	// Running means the recorded process is alive.
	Running
	// Unreadable means the file exists but holds no parseable PID.
	Unreadable
	// AccessDenied means the recorded process is alive but cannot be queried.
	AccessDenied
)

func (r CheckResult) String() string {
	switch r {
	case NoFile:
		return "no_file"
	case NotRunning:
		return "not_running"
	case Running:
		return "running"
	case Unreadable:
		return "unreadable"
	case AccessDenied:
		return "access_denied"
	default:
		return "unknown"
	}
}

// Safe reports whether the result permits starting a new daemon.
func (r CheckResult) Safe() bool {
	return r == NoFile || r == NotRunning
}

// Identity records the current process's PID and command line, captured once.
type Identity struct {
	PID     int
	Cmdline []string
}

var (
	identityOnce sync.Once
	identity     Identity
)

// CurrentIdentity returns the current process identity. The command line is
// resolved through the OS on first call and cached for the process lifetime.
func CurrentIdentity() Identity {
	identityOnce.Do(func() {
		id := Identity{PID: os.Getpid()}
		if proc, err := process.NewProcess(int32(id.PID)); err == nil {
			if cmd, err := proc.CmdlineSlice(); err == nil && len(cmd) > 0 {
				id.Cmdline = cmd
			}
		}
		if len(id.Cmdline) == 0 {
			id.Cmdline = append([]string(nil), os.Args...)
		}
		identity = id
	})
	return identity
}

// Tracker reads a named PID file and classifies whether the daemon it
// describes is running.
type Tracker struct {
	path   string
	logger *slog.Logger
}

// NewTracker returns a tracker for <dir>/<name>.
func NewTracker(dir, name string, logger *slog.Logger) *Tracker {
	return &Tracker{
		path:   filepath.Join(dir, name),
		logger: logging.NewComponentLogger(logger, "pidfile"),
	}
}

// Path returns the tracked PID file location.
func (t *Tracker) Path() string { return t.path }

// Pid reads the recorded PID. It fails with ErrMissing when the file is
// absent and with UnreadableError when the content is not a parseable
// integer.
func (t *Tracker) Pid() (int, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrMissing
		}
		return 0, &UnreadableError{Path: t.path, Err: err}
	}
	value, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, &UnreadableError{Path: t.path, Err: err}
	}
	return value, nil
}

// Check classifies the PID file state without failing. Exactly one result is
// produced; the checks form a strict priority chain (absence before
// readability before liveness before queryability).
func (t *Tracker) Check() CheckResult {
	result, _ := t.check()
	return result
}

// CheckStrict classifies the PID file state and converts every result outside
// the safe set into its typed error: UnreadableError, AccessDeniedError, or
// AlreadyRunningError carrying the discovered PID.
func (t *Tracker) CheckStrict() (CheckResult, error) {
	return t.check()
}

func (t *Tracker) check() (CheckResult, error) {
	pid, err := t.Pid()
	if err != nil {
		if errors.Is(err, ErrMissing) {
			t.logger.Debug("pid file absent", logging.String("path", t.path))
			return NoFile, nil
		}
		var unreadable *UnreadableError
		if errors.As(err, &unreadable) {
			t.logger.Error("pid file unreadable", logging.String("path", t.path), logging.Error(unreadable.Err))
			return Unreadable, err
		}
		return Unreadable, &UnreadableError{Path: t.path, Err: err}
	}

	t.logger.Debug("pid file read", logging.String("path", t.path), logging.Int(logging.FieldPid, pid))

	alive, err := process.PidExists(int32(pid))
	if err != nil {
		t.logger.Error("cannot determine process liveness", logging.Int(logging.FieldPid, pid), logging.Error(err))
		return AccessDenied, &AccessDeniedError{PID: pid, Err: err}
	}
	if !alive {
		t.logger.Debug("recorded process not running", logging.Int(logging.FieldPid, pid))
		return NotRunning, nil
	}

	cmdline, err := queryCmdline(pid)
	if err != nil {
		t.logger.Error("no access to query process", logging.Int(logging.FieldPid, pid), logging.Error(err))
		return AccessDenied, &AccessDeniedError{PID: pid, Err: err}
	}

	// Informational only; a mismatch never changes the outcome.
	if current := CurrentIdentity(); !equalCmdlines(cmdline, current.Cmdline) {
		t.logger.Debug("recorded process command line differs from current process",
			logging.String("recorded", strings.Join(cmdline, " ")),
			logging.String("current", strings.Join(current.Cmdline, " ")),
		)
	}

	return Running, &AlreadyRunningError{PID: pid}
}

func queryCmdline(pid int) ([]string, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, err
	}
	return proc.CmdlineSlice()
}

func equalCmdlines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
