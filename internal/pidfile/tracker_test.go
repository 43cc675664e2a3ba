package pidfile_test

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"ignition/internal/logging"
	"ignition/internal/pidfile"
)

// unlikelyPID should not belong to a live process on any test machine;
// kernel.pid_max rarely exceeds 4 million.
const unlikelyPID = 99999999

func newTracker(t *testing.T) (*pidfile.Tracker, string) {
	t.Helper()
	dir := t.TempDir()
	tracker := pidfile.NewTracker(dir, "ignition.rocket.pid", logging.NewNop())
	return tracker, filepath.Join(dir, "ignition.rocket.pid")
}

func writePid(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}
}

func TestPidRoundTrip(t *testing.T) {
	tracker, path := newTracker(t)
	writePid(t, path, strconv.Itoa(4711)+"\n")

	pid, err := tracker.Pid()
	if err != nil {
		t.Fatalf("Pid: %v", err)
	}
	if pid != 4711 {
		t.Fatalf("pid = %d, want 4711", pid)
	}
}

func TestPidMissingFile(t *testing.T) {
	tracker, _ := newTracker(t)
	if _, err := tracker.Pid(); !errors.Is(err, pidfile.ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
}

func TestPidUnparseableContent(t *testing.T) {
	tracker, path := newTracker(t)
	writePid(t, path, "abc")

	_, err := tracker.Pid()
	var unreadable *pidfile.UnreadableError
	if !errors.As(err, &unreadable) {
		t.Fatalf("expected UnreadableError, got %v", err)
	}
}

func TestCheckNoFile(t *testing.T) {
	tracker, _ := newTracker(t)
	if got := tracker.Check(); got != pidfile.NoFile {
		t.Fatalf("Check = %v, want no_file", got)
	}
	if _, err := tracker.CheckStrict(); err != nil {
		t.Fatalf("CheckStrict should not fail for missing file: %v", err)
	}
}

func TestCheckNotRunning(t *testing.T) {
	tracker, path := newTracker(t)
	writePid(t, path, strconv.Itoa(unlikelyPID))

	if got := tracker.Check(); got != pidfile.NotRunning {
		t.Fatalf("Check = %v, want not_running", got)
	}
	result, err := tracker.CheckStrict()
	if err != nil {
		t.Fatalf("CheckStrict should not fail for dead pid: %v", err)
	}
	if result != pidfile.NotRunning {
		t.Fatalf("CheckStrict result = %v, want not_running", result)
	}
}

func TestCheckUnreadableStrict(t *testing.T) {
	tracker, path := newTracker(t)
	writePid(t, path, "abc")

	if got := tracker.Check(); got != pidfile.Unreadable {
		t.Fatalf("Check = %v, want unreadable", got)
	}
	_, err := tracker.CheckStrict()
	var unreadable *pidfile.UnreadableError
	if !errors.As(err, &unreadable) {
		t.Fatalf("expected UnreadableError, got %v", err)
	}
}

func TestCheckRunningReportsOwnProcess(t *testing.T) {
	tracker, path := newTracker(t)
	writePid(t, path, strconv.Itoa(os.Getpid()))

	if got := tracker.Check(); got != pidfile.Running {
		t.Fatalf("Check = %v, want running", got)
	}
	_, err := tracker.CheckStrict()
	var running *pidfile.AlreadyRunningError
	if !errors.As(err, &running) {
		t.Fatalf("expected AlreadyRunningError, got %v", err)
	}
	if running.PID != os.Getpid() {
		t.Fatalf("reported pid = %d, want %d", running.PID, os.Getpid())
	}
}

func TestResultSafety(t *testing.T) {
	safe := []pidfile.CheckResult{pidfile.NoFile, pidfile.NotRunning}
	unsafe := []pidfile.CheckResult{pidfile.Running, pidfile.Unreadable, pidfile.AccessDenied}
	for _, r := range safe {
		if !r.Safe() {
			t.Fatalf("%v should be safe", r)
		}
	}
	for _, r := range unsafe {
		if r.Safe() {
			t.Fatalf("%v should not be safe", r)
		}
	}
}

func TestCurrentIdentityStable(t *testing.T) {
	first := pidfile.CurrentIdentity()
	second := pidfile.CurrentIdentity()
	if first.PID != os.Getpid() {
		t.Fatalf("identity pid = %d, want %d", first.PID, os.Getpid())
	}
	if len(first.Cmdline) == 0 {
		t.Fatal("identity command line is empty")
	}
	if len(first.Cmdline) != len(second.Cmdline) {
		t.Fatal("identity changed between calls")
	}
}
