package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"courier/internal/api"
	"courier/internal/testsupport"
)

func TestStatusOfflineReportsQueue(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewJob(t, env.cfg, env.store, "b", "x.jpg", 2)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "test-device")
	requireContains(t, out, "Queued")
}

func TestStatusJSONWithDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	env.startDaemon(t)

	out, _, err := runCLI(t, []string{"--json", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status %q: %v", out, err)
	}
	if !status.Running || status.PID != os.Getpid() || status.DeviceID != "test-device" {
		t.Fatalf("unexpected status %+v", status)
	}
	if len(status.Checks) != 0 {
		t.Fatalf("expected no readiness checks without --checks, got %+v", status.Checks)
	}
}

func TestStopWhenDaemonAbsent(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"stop"}, filepath.Join(env.baseDir, "none.sock"), env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestLogsFiltersByJob(t *testing.T) {
	env := setupCLITestEnv(t)
	content := "level=INFO msg=\"upload started\" job_id=3\nlevel=INFO msg=other job_id=4\nlevel=INFO msg=\"upload done\" job_id=3\n"
	if err := os.WriteFile(env.cfg.LogPath(), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--job", "3"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "upload started")
	requireContains(t, out, "upload done")
	if strings.Contains(out, "msg=other") {
		t.Fatalf("unexpected line for another job in %q", out)
	}
}
