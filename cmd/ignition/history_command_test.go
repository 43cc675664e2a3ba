package main

import (
	"context"
	"os"
	"strings"
	"testing"

	"ignition/internal/config"
	"ignition/internal/history"
)

func seedHistory(t *testing.T, env *cliTestEnv) {
	t.Helper()
	cfg, _, _, err := config.Load(env.configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	events := []history.Event{
		{Launcher: "rocket", PID: os.Getpid(), SessionID: "s-1", Type: history.EventStarted},
		{Launcher: "rocket", PID: os.Getpid(), SessionID: "s-1", Type: history.EventStopped},
		{Launcher: "queue", PID: 4242, SessionID: "s-2", Type: history.EventStarted},
	}
	for _, event := range events {
		if err := store.Record(ctx, event); err != nil {
			t.Fatalf("record event: %v", err)
		}
	}
}

func TestCLIHistoryListsEvents(t *testing.T) {
	env := setupCLITestEnv(t)
	seedHistory(t, env)

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "rocket")
	requireContains(t, out, "queue")
	requireContains(t, out, "started")
	requireContains(t, out, "stopped")
}

func TestCLIHistoryFiltersByLauncher(t *testing.T) {
	env := setupCLITestEnv(t)
	seedHistory(t, env)

	out, _, err := runCLI(t, []string{"history", "queue"}, env.configPath)
	if err != nil {
		t.Fatalf("history queue: %v", err)
	}
	requireContains(t, out, "4242")
	if strings.Contains(out, "rocket") {
		t.Errorf("filtered history should not list rocket events:\n%s", out)
	}
}

func TestCLIHistoryEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No launch events recorded")
}
