package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"ignition/internal/config"
	"ignition/internal/daemon"
	"ignition/internal/logging"
	"ignition/internal/pidfile"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

// LogFilePaths returns the stdout and stderr log files for a launcher. Both
// are opened in create-or-truncate mode on every daemon start, so a file
// only ever holds output from the most recent run.
func LogFilePaths(cfg *config.Config, name string) (string, string) {
	base := fmt.Sprintf("ignition.%s.%s", strings.ToLower(strings.TrimSpace(cfg.Workflow.Machine)), name)
	return filepath.Join(cfg.Paths.LogDir, base+".out"),
		filepath.Join(cfg.Paths.LogDir, base+".err")
}

// Spawn starts a detached daemon process for the named launcher and returns
// its PID. The strict PID-file check up front is a fast path for readable
// diagnostics; the child's lock acquisition remains the authoritative
// exclusion, so two concurrent spawns resolve to exactly one survivor.
func Spawn(cfg *config.Config, logger *slog.Logger, name string, opts LaunchOptions) (int, error) {
	tracker := pidfile.NewTracker(cfg.Paths.PidDir, daemon.PidFileName(cfg, name), logger)
	if _, err := tracker.CheckStrict(); err != nil {
		return 0, err
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return 0, err
	}

	stdoutPath, stderrPath := LogFilePaths(cfg, name)
	stdout, err := os.OpenFile(stdoutPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open stdout log %s: %w", stdoutPath, err)
	}
	defer stdout.Close()
	stderr, err := os.OpenFile(stderrPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open stderr log %s: %w", stderrPath, err)
	}
	defer stderr.Close()

	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("resolve executable: %w", err)
	}

	args := []string{"run", name}
	if path := strings.TrimSpace(opts.ConfigPath); path != "" {
		args = append(args, "--config", path)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(exe, args...)
	proc.Stdout = stdout
	proc.Stderr = stderr
	// New session: no controlling terminal and an own process group, so a
	// later group-wide SIGTERM reaches the daemon and its workers but
	// nothing else.
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := proc.Start(); err != nil {
		return 0, fmt.Errorf("launch daemon: %w", err)
	}
	pid := proc.Process.Pid
	if err := proc.Process.Release(); err != nil {
		return pid, fmt.Errorf("release daemon process: %w", err)
	}
	logger.Info("daemon launched",
		logging.String(logging.FieldLauncher, name),
		logging.Int(logging.FieldPid, pid),
	)
	return pid, nil
}

// WaitRunning polls until the launcher's PID file names a live process.
func WaitRunning(cfg *config.Config, logger *slog.Logger, name string, timeout time.Duration) error {
	tracker := pidfile.NewTracker(cfg.Paths.PidDir, daemon.PidFileName(cfg, name), logger)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if tracker.Check() == pidfile.Running {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon %s failed to start within %s", name, timeout)
}

// WaitStopped polls until the launcher's PID file no longer names a live
// process.
func WaitStopped(cfg *config.Config, logger *slog.Logger, name string, timeout time.Duration) error {
	tracker := pidfile.NewTracker(cfg.Paths.PidDir, daemon.PidFileName(cfg, name), logger)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if tracker.Check().Safe() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon %s did not stop within %s", name, timeout)
}

// Stop signals the named daemon's process group with SIGTERM. A false result
// means no daemon was running.
func Stop(ctx context.Context, cfg *config.Config, logger *slog.Logger, name string) (bool, error) {
	mgr, err := daemon.NewManager(name, cfg, logger, nil)
	if err != nil {
		return false, err
	}
	return mgr.Stop(ctx)
}

// Restart stops the named daemon if it runs, waits for it to exit, then
// spawns a fresh instance.
func Restart(ctx context.Context, cfg *config.Config, logger *slog.Logger, name string, opts LaunchOptions, grace time.Duration) (bool, int, error) {
	wasRunning, err := Stop(ctx, cfg, logger, name)
	if err != nil {
		var stopFailed *daemon.StopFailedError
		if !errors.As(err, &stopFailed) {
			return false, 0, err
		}
		// The daemon may have died between check and kill; spawning decides.
		logger.Warn("stop during restart", logging.Error(err))
	}
	if wasRunning {
		if err := WaitStopped(cfg, logger, name, grace); err != nil {
			return wasRunning, 0, err
		}
	}
	pid, err := Spawn(cfg, logger, name, opts)
	return wasRunning, pid, err
}

// LauncherStatus captures one launcher's diagnostic state.
type LauncherStatus struct {
	Name    string
	Result  pidfile.CheckResult
	PID     int
	PidFile string
}

// Status runs the lenient PID-file check for each named launcher. This is
// diagnostic output only; callers that need a reliable decision use the
// strict check.
func Status(cfg *config.Config, logger *slog.Logger, names []string) []LauncherStatus {
	statuses := make([]LauncherStatus, 0, len(names))
	for _, name := range names {
		tracker := pidfile.NewTracker(cfg.Paths.PidDir, daemon.PidFileName(cfg, name), logger)
		status := LauncherStatus{
			Name:    name,
			Result:  tracker.Check(),
			PidFile: tracker.Path(),
		}
		if status.Result == pidfile.Running || status.Result == pidfile.NotRunning {
			if pid, err := tracker.Pid(); err == nil {
				status.PID = pid
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}
