package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"ignition/internal/config"
	"ignition/internal/history"
	"ignition/internal/logging"
	"ignition/internal/pidfile"
)

// State tracks the lifecycle of a managed daemon instance.
type State int32

const (
	NotStarted State = iota
	Starting
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// LaunchFunc is the launcher hook: the long-running body of the daemon after
// lock acquisition and signal installation. It runs until its context is
// cancelled.
type LaunchFunc func(ctx context.Context) error

// Manager owns one named daemon: its PID file, its flock, and its shutdown
// contract. The same manager type serves the CLI side (Stop, tracker checks)
// and the detached child side (Run).
type Manager struct {
	name        string
	cfg         *config.Config
	logger      *slog.Logger
	tracker     *pidfile.Tracker
	lock        *pidLock
	coordinator *ShutdownCoordinator
	store       *history.Store
	sessionID   string
	state       atomic.Int32
}

// PidFileName derives the PID file name for a launcher under the configured
// machine, e.g. ignition.atlas.rocket.pid.
func PidFileName(cfg *config.Config, launcher string) string {
	return fmt.Sprintf("ignition.%s.%s.pid", strings.ToLower(cfg.Workflow.Machine), launcher)
}

// NewManager constructs a manager for the named launcher. The history store
// may be nil when auditing is disabled.
func NewManager(name string, cfg *config.Config, logger *slog.Logger, store *history.Store) (*Manager, error) {
	if name == "" {
		return nil, errors.New("manager requires a launcher name")
	}
	if cfg == nil {
		return nil, errors.New("manager requires a config")
	}
	pidName := PidFileName(cfg, name)
	tracker := pidfile.NewTracker(cfg.Paths.PidDir, pidName, logger)
	return &Manager{
		name:        name,
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "daemon").With(logging.String(logging.FieldLauncher, name)),
		tracker:     tracker,
		lock:        newPidLock(tracker.Path()),
		coordinator: NewShutdownCoordinator(logger),
		store:       store,
		sessionID:   uuid.NewString(),
	}, nil
}

// Tracker exposes the PID file tracker for status reporting.
func (m *Manager) Tracker() *pidfile.Tracker { return m.tracker }

// State returns the current lifecycle state.
func (m *Manager) State() State { return State(m.state.Load()) }

// SessionID identifies this manager instance in logs and history records.
func (m *Manager) SessionID() string { return m.sessionID }

// Run is the body of the detached daemon process. It verifies no other
// instance is running, acquires the exclusive PID-file lock, installs
// TERM/INT/HUP handlers mapped to the shutdown coordinator, and invokes the
// launcher hook until the context ends or a signal arrives.
//
// The strict check before locking is a fast path and diagnostic; the flock
// acquisition is the actual test-and-set, so the narrow window between the
// two cannot admit a second instance.
func (m *Manager) Run(ctx context.Context, launch LaunchFunc) error {
	if launch == nil {
		return errors.New("launch hook is required")
	}
	if !m.state.CompareAndSwap(int32(NotStarted), int32(Starting)) {
		return fmt.Errorf("daemon %s already started (state %s)", m.name, m.State())
	}

	if _, err := m.tracker.CheckStrict(); err != nil {
		m.state.Store(int32(NotStarted))
		return err
	}

	if err := m.lock.Acquire(); err != nil {
		m.state.Store(int32(NotStarted))
		return err
	}

	m.coordinator.AddCleanup(m.lock.Release)
	if m.store != nil {
		m.coordinator.AddCleanup(func() { _ = m.store.Close() })
	}
	uninstall := m.coordinator.Install(unix.SIGTERM, unix.SIGINT, unix.SIGHUP)
	defer uninstall()

	m.state.Store(int32(Running))
	m.logger.Info("daemon running",
		logging.Int(logging.FieldPid, os.Getpid()),
		logging.String(logging.FieldSessionID, m.sessionID),
		logging.String("pid_file", m.tracker.Path()),
	)
	m.recordEvent(ctx, history.EventStarted, "")

	err := launch(ctx)

	m.state.Store(int32(Stopping))
	if err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Error("launcher exited with error", logging.Error(err))
		m.recordEvent(context.WithoutCancel(ctx), history.EventLaunchFailed, err.Error())
	} else {
		err = nil
		m.logger.Info("daemon exiting")
		m.recordEvent(context.WithoutCancel(ctx), history.EventStopped, "")
	}

	m.lock.Release()
	m.state.Store(int32(Stopped))
	return err
}

// Stop terminates a running daemon from outside. It returns false when
// nothing is running, true when the process group was signaled, and a typed
// StopFailedError when a confirmed-running daemon could not be signaled.
// Check errors other than "already running" propagate unchanged.
func (m *Manager) Stop(ctx context.Context) (bool, error) {
	result, err := m.tracker.CheckStrict()
	if err == nil {
		m.logger.Info("daemon not running, nothing to stop", logging.String("check", result.String()))
		return false, nil
	}
	var running *pidfile.AlreadyRunningError
	if !errors.As(err, &running) {
		return false, err
	}

	pid, err := m.tracker.Pid()
	if err != nil {
		return false, err
	}

	// The daemon may exit between the check and the kill; the OS error is
	// wrapped, not swallowed.
	pgid, err := unix.Getpgid(pid)
	if err != nil {
		return false, &StopFailedError{PID: pid, Err: err}
	}
	if err := unix.Kill(-pgid, unix.SIGTERM); err != nil {
		return false, &StopFailedError{PID: pid, Err: err}
	}

	m.logger.Info("termination signal sent", logging.Int(logging.FieldPid, pid))
	m.recordEvent(ctx, history.EventStopRequested, "")
	return true, nil
}

func (m *Manager) recordEvent(ctx context.Context, eventType history.EventType, detail string) {
	if m.store == nil {
		return
	}
	event := history.Event{
		Launcher:  m.name,
		PID:       os.Getpid(),
		SessionID: m.sessionID,
		Type:      eventType,
		Detail:    detail,
	}
	if err := m.store.Record(ctx, event); err != nil {
		m.logger.Warn("record launch event", logging.Error(err))
	}
}
