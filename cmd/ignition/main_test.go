package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	cfgBase    string
	pidDir     string
	logDir     string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	env := &cliTestEnv{
		cfgBase:    base,
		pidDir:     filepath.Join(base, "run"),
		logDir:     filepath.Join(base, "logs"),
		configPath: filepath.Join(base, "config.toml"),
	}
	writeTestConfig(t, env)
	return env
}

func writeTestConfig(t *testing.T, env *cliTestEnv) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
pid_dir = %q
log_dir = %q

[workflow]
machine = "atlas"
scheduler = "slurm"
`, env.pidDir, env.logDir)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestCLIRejectsUnknownLauncher(t *testing.T) {
	env := setupCLITestEnv(t)

	for _, args := range [][]string{
		{"start", "warp"},
		{"stop", "warp"},
		{"status", "warp"},
	} {
		if _, _, err := runCLI(t, args, env.configPath); err == nil {
			t.Errorf("%v accepted unknown launcher", args)
		}
	}
}

func TestCLIRequiresValidConfig(t *testing.T) {
	env := setupCLITestEnv(t)
	badConfig := filepath.Join(env.cfgBase, "bad.toml")
	if err := os.WriteFile(badConfig, []byte("[workflow]\nmachine = \"\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, err := runCLI(t, []string{"status"}, badConfig)
	if err == nil {
		t.Fatal("status succeeded with invalid config")
	}
}

func TestCLIForwardRequiresTunnelConfig(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"forward"}, env.configPath)
	if err == nil {
		t.Fatal("forward succeeded without tunnel configuration")
	}
	requireContains(t, err.Error(), "tunnel is not configured")
}
