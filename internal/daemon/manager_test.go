package daemon_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"ignition/internal/config"
	"ignition/internal/daemon"
	"ignition/internal/logging"
	"ignition/internal/pidfile"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Workflow.Machine = "atlas"
	cfg.Paths.PidDir = filepath.Join(base, "run")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &cfg
}

func newManager(t *testing.T, cfg *config.Config) *daemon.Manager {
	t.Helper()
	mgr, err := daemon.NewManager("rocket", cfg, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return mgr
}

func TestRunInvokesLaunchAndReleasesPidFile(t *testing.T) {
	cfg := testConfig(t)
	mgr := newManager(t, cfg)
	pidPath := mgr.Tracker().Path()

	launched := false
	err := mgr.Run(context.Background(), func(ctx context.Context) error {
		launched = true
		if _, statErr := os.Stat(pidPath); statErr != nil {
			t.Errorf("pid file should exist while running: %v", statErr)
		}
		recorded, pidErr := mgr.Tracker().Pid()
		if pidErr != nil {
			t.Errorf("Pid during run: %v", pidErr)
		} else if recorded != os.Getpid() {
			t.Errorf("recorded pid = %d, want %d", recorded, os.Getpid())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !launched {
		t.Fatal("launch hook never invoked")
	}
	if mgr.State() != daemon.Stopped {
		t.Fatalf("state = %v, want stopped", mgr.State())
	}
	if _, statErr := os.Stat(pidPath); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("pid file should be removed after run: %v", statErr)
	}
}

func TestRunRefusesWhenAlreadyRunning(t *testing.T) {
	cfg := testConfig(t)
	mgr := newManager(t, cfg)

	// Record our own live PID so the strict check reports a running daemon.
	if err := os.WriteFile(mgr.Tracker().Path(), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}

	err := mgr.Run(context.Background(), func(ctx context.Context) error { return nil })
	var running *pidfile.AlreadyRunningError
	if !errors.As(err, &running) {
		t.Fatalf("expected AlreadyRunningError, got %v", err)
	}
	if mgr.State() != daemon.NotStarted {
		t.Fatalf("state after aborted run = %v, want not_started", mgr.State())
	}
}

func TestRunFailsWhenLockHeld(t *testing.T) {
	cfg := testConfig(t)
	mgr := newManager(t, cfg)

	other := flock.New(mgr.Tracker().Path())
	ok, err := other.TryLock()
	if err != nil || !ok {
		t.Fatalf("pre-acquire lock: ok=%v err=%v", ok, err)
	}
	t.Cleanup(func() { _ = other.Unlock() })

	err = mgr.Run(context.Background(), func(ctx context.Context) error { return nil })
	if !errors.Is(err, daemon.ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}
}

func TestStopWithNoPidFileReturnsFalse(t *testing.T) {
	cfg := testConfig(t)
	mgr := newManager(t, cfg)

	stopped, err := mgr.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if stopped {
		t.Fatal("Stop should report nothing to stop")
	}
}

func TestStopWithDeadPidReturnsFalse(t *testing.T) {
	cfg := testConfig(t)
	mgr := newManager(t, cfg)
	if err := os.WriteFile(mgr.Tracker().Path(), []byte("99999999"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}

	stopped, err := mgr.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if stopped {
		t.Fatal("Stop should report nothing to stop for a dead pid")
	}
}

func TestStopPropagatesUnreadablePidFile(t *testing.T) {
	cfg := testConfig(t)
	mgr := newManager(t, cfg)
	if err := os.WriteFile(mgr.Tracker().Path(), []byte("abc"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}

	_, err := mgr.Stop(context.Background())
	var unreadable *pidfile.UnreadableError
	if !errors.As(err, &unreadable) {
		t.Fatalf("expected UnreadableError, got %v", err)
	}
}

func TestShutdownCoordinatorIdempotentPerSignal(t *testing.T) {
	kills := 0
	exits := 0
	coordinator := daemon.NewShutdownCoordinator(logging.NewNop(),
		daemon.WithKillGroup(func(sig unix.Signal) error {
			kills++
			if sig != unix.SIGTERM {
				t.Errorf("kill signal = %v, want SIGTERM", sig)
			}
			return nil
		}),
		daemon.WithExit(func(code int) {
			exits++
			if code != 0 {
				t.Errorf("exit code = %d, want 0", code)
			}
		}),
	)

	coordinator.Handle(unix.SIGTERM)
	coordinator.Handle(unix.SIGTERM)
	if kills != 1 {
		t.Fatalf("process group terminated %d times, want exactly once", kills)
	}
	if exits != 1 {
		t.Fatalf("exit called %d times, want 1", exits)
	}
	if len(coordinator.HandledSignals()) != 1 {
		t.Fatalf("handled signals = %v", coordinator.HandledSignals())
	}
}

func TestShutdownCoordinatorRunsCleanupsInReverseOrder(t *testing.T) {
	var order []string
	coordinator := daemon.NewShutdownCoordinator(logging.NewNop(),
		daemon.WithKillGroup(func(unix.Signal) error { return nil }),
		daemon.WithExit(func(int) {}),
	)
	coordinator.AddCleanup(func() { order = append(order, "first") })
	coordinator.AddCleanup(func() { order = append(order, "second") })

	coordinator.Handle(unix.SIGINT)
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Fatalf("cleanup order = %v", order)
	}
}

func TestPidFileNameUsesMachine(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workflow.Machine = "Atlas"
	if got := daemon.PidFileName(cfg, "queue"); got != "ignition.atlas.queue.pid" {
		t.Fatalf("PidFileName = %q", got)
	}
}
