package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"curator/internal/api"
	"curator/internal/store"
)

func TestStatusFallsBackToStoreWhenDaemonStopped(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "not running")
	requireContains(t, out, "Needs review")

	if _, _, err := runCLI(t, []string{"scan"}, env.configPath); err == nil {
		t.Fatal("expected scan to fail without a daemon")
	}
}

func TestStatusAgainstRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	env.startDaemon(t)

	out, _, err := runCLI(t, []string{"status", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v (%q)", err, out)
	}
	if !status.Running || status.DatabasePath != env.store.Path() {
		t.Fatalf("unexpected status: %+v", status)
	}

	out, _, err = runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "running (pid")
}

func TestReprocessAndScanCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	env.startDaemon(t)

	out, _, err := runCLI(t, []string{"reprocess", "s1", "--deep"}, env.configPath)
	if err != nil {
		t.Fatalf("reprocess: %v", err)
	}
	requireContains(t, out, "Dispatched deep refresh for Series \"Show\" (s1)")

	_, _, err = runCLI(t, []string{"reprocess", "missing"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected not found error, got %v", err)
	}

	out, _, err = runCLI(t, []string{"scan"}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "library scan") {
		t.Fatalf("unexpected scan output: %q", out)
	}
}

func TestReviewListAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()
	if _, err := env.store.UpsertReview(ctx, store.ReviewEntry{Key: "Movie/7", DisplayName: "Seven (1995)", Reason: "cast coverage 1 of 5 expected", Score: 2}); err != nil {
		t.Fatalf("UpsertReview: %v", err)
	}

	out, _, err := runCLI(t, []string{"review", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("review list: %v", err)
	}
	requireContains(t, out, "Seven (1995)")
	requireContains(t, out, "2.0")

	out, _, err = runCLI(t, []string{"review", "clear", "movie", "7"}, env.configPath)
	if err != nil {
		t.Fatalf("review clear: %v", err)
	}
	requireContains(t, out, "Cleared review entry Movie/7")

	out, _, err = runCLI(t, []string{"review", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("review list: %v", err)
	}
	requireContains(t, out, "Review queue is empty")

	if _, _, err := runCLI(t, []string{"review", "clear", "album", "7"}, env.configPath); err == nil {
		t.Fatal("expected unknown item type to fail")
	}
}
