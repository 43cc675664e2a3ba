package daemon

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"

	"ignition/internal/logging"
)

// ShutdownCoordinator maps delivered signals to a single orderly shutdown:
// terminate the whole process group, run cleanup, exit zero. Signal delivery
// is asynchronous, so the coordinator tracks which signal numbers it has
// already handled and no-ops on repeats.
type ShutdownCoordinator struct {
	logger *slog.Logger

	mu      sync.Mutex
	handled map[os.Signal]struct{}
	cleanup []func()

	// Overridable for tests; default to real process-group termination and
	// os.Exit.
	killGroup func(sig unix.Signal) error
	exit      func(code int)
}

// CoordinatorOption adjusts coordinator construction.
type CoordinatorOption func(*ShutdownCoordinator)

// WithKillGroup replaces the process-group termination call.
func WithKillGroup(fn func(sig unix.Signal) error) CoordinatorOption {
	return func(c *ShutdownCoordinator) { c.killGroup = fn }
}

// WithExit replaces the process exit call.
func WithExit(fn func(code int)) CoordinatorOption {
	return func(c *ShutdownCoordinator) { c.exit = fn }
}

// NewShutdownCoordinator constructs a coordinator. All installed handlers
// must reference the same instance so repeated deliveries share one handled
// set.
func NewShutdownCoordinator(logger *slog.Logger, opts ...CoordinatorOption) *ShutdownCoordinator {
	c := &ShutdownCoordinator{
		logger:  logging.NewComponentLogger(logger, "daemon"),
		handled: make(map[os.Signal]struct{}),
		killGroup: func(sig unix.Signal) error {
			return unix.Kill(-unix.Getpgrp(), sig)
		},
		exit: os.Exit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddCleanup registers a function to run after process-group termination and
// before exit. Cleanups run in reverse registration order.
func (c *ShutdownCoordinator) AddCleanup(fn func()) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanup = append(c.cleanup, fn)
}

// Install registers the coordinator for the given signals and starts the
// delivery goroutine. The returned function stops signal forwarding.
func (c *ShutdownCoordinator) Install(signals ...os.Signal) func() {
	ch := make(chan os.Signal, len(signals))
	signal.Notify(ch, signals...)
	go func() {
		for sig := range ch {
			c.Handle(sig)
		}
	}()
	return func() {
		signal.Stop(ch)
		close(ch)
	}
}

// Handle performs the shutdown for a delivered signal. Repeated delivery of
// an already-handled signal number does nothing; the first delivery
// terminates the entire process group so launcher children die with the
// daemon, then exits with status zero.
func (c *ShutdownCoordinator) Handle(sig os.Signal) {
	c.mu.Lock()
	if _, seen := c.handled[sig]; seen {
		c.mu.Unlock()
		return
	}
	c.handled[sig] = struct{}{}
	cleanups := make([]func(), len(c.cleanup))
	copy(cleanups, c.cleanup)
	c.mu.Unlock()

	c.logger.Info("received signal, shutting down", logging.String(logging.FieldSignal, sig.String()))

	if err := c.killGroup(unix.SIGTERM); err != nil {
		c.logger.Warn("terminate process group", logging.Error(err))
	}
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	c.exit(0)
}

// HandledSignals returns the distinct signals processed so far.
func (c *ShutdownCoordinator) HandledSignals() []os.Signal {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]os.Signal, 0, len(c.handled))
	for sig := range c.handled {
		out = append(out, sig)
	}
	return out
}
