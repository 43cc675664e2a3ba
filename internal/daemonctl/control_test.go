package daemonctl_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"ignition/internal/config"
	"ignition/internal/daemon"
	"ignition/internal/daemonctl"
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

func writePidFile(t *testing.T, cfg *config.Config, name string, pid int) string {
	t.Helper()
	path := filepath.Join(cfg.Paths.PidDir, daemon.PidFileName(cfg, name))
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}
	return path
}

func TestLogFilePaths(t *testing.T) {
	cfg := testConfig(t)
	stdout, stderr := daemonctl.LogFilePaths(cfg, "rocket")
	if want := filepath.Join(cfg.Paths.LogDir, "ignition.atlas.rocket.out"); stdout != want {
		t.Errorf("stdout log = %s, want %s", stdout, want)
	}
	if want := filepath.Join(cfg.Paths.LogDir, "ignition.atlas.rocket.err"); stderr != want {
		t.Errorf("stderr log = %s, want %s", stderr, want)
	}
}

func TestSpawnRefusesWhenAlreadyRunning(t *testing.T) {
	cfg := testConfig(t)
	writePidFile(t, cfg, "rocket", os.Getpid())

	_, err := daemonctl.Spawn(cfg, logging.NewNop(), "rocket", daemonctl.LaunchOptions{})
	var running *pidfile.AlreadyRunningError
	if !errors.As(err, &running) {
		t.Fatalf("Spawn error = %v, want AlreadyRunningError", err)
	}
	if running.PID != os.Getpid() {
		t.Errorf("AlreadyRunningError pid = %d, want %d", running.PID, os.Getpid())
	}
}

func TestStopWithoutPidFile(t *testing.T) {
	cfg := testConfig(t)
	stopped, err := daemonctl.Stop(context.Background(), cfg, logging.NewNop(), "rocket")
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if stopped {
		t.Error("Stop reported a running daemon without a pid file")
	}
}

func TestWaitStoppedReturnsOnceProcessGone(t *testing.T) {
	cfg := testConfig(t)
	// Stale pid file: a process id too large for this system to allocate.
	writePidFile(t, cfg, "rocket", 99999999)

	if err := daemonctl.WaitStopped(cfg, logging.NewNop(), "rocket", time.Second); err != nil {
		t.Fatalf("WaitStopped: %v", err)
	}
}

func TestWaitRunningTimesOutWithoutDaemon(t *testing.T) {
	cfg := testConfig(t)
	err := daemonctl.WaitRunning(cfg, logging.NewNop(), "rocket", 250*time.Millisecond)
	if err == nil {
		t.Fatal("WaitRunning succeeded without a daemon")
	}
	if !strings.Contains(err.Error(), "failed to start") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStatusReportsPerLauncher(t *testing.T) {
	cfg := testConfig(t)
	writePidFile(t, cfg, "rocket", os.Getpid())
	writePidFile(t, cfg, "queue", 99999999)

	statuses := daemonctl.Status(cfg, logging.NewNop(), []string{"rocket", "queue", "tunnel"})
	if len(statuses) != 3 {
		t.Fatalf("len(statuses) = %d, want 3", len(statuses))
	}
	if statuses[0].Result != pidfile.Running || statuses[0].PID != os.Getpid() {
		t.Errorf("rocket status = %+v, want Running with own pid", statuses[0])
	}
	if statuses[1].Result != pidfile.NotRunning || statuses[1].PID != 99999999 {
		t.Errorf("queue status = %+v, want NotRunning with recorded pid", statuses[1])
	}
	if statuses[2].Result != pidfile.NoFile {
		t.Errorf("tunnel status = %+v, want NoFile", statuses[2])
	}
	if statuses[2].PidFile == "" {
		t.Error("status should always carry the pid file path")
	}
}
