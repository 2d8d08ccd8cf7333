package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"courier/internal/api"
	"courier/internal/queue"
	"courier/internal/testsupport"
)

func TestEnqueueDeliversThroughDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	env.startDaemon(t)

	file := filepath.Join(env.baseDir, "files", "a.jpg")
	testsupport.WriteFile(t, file, 2048)

	out, _, err := runCLI(t, []string{"--json", "enqueue", "--type", "image", "--reference", "run-7", "--meta", "camera=left", file}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	var resp api.EnqueueResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode enqueue output %q: %v", out, err)
	}
	if resp.BatchID == "" || len(resp.JobIDs) != 1 {
		t.Fatalf("unexpected enqueue response %+v", resp)
	}
	id := resp.JobIDs[0]

	waitFor(t, 5*time.Second, func() bool {
		job, err := env.store.Get(context.Background(), id)
		return err == nil && job != nil && job.Status == queue.StatusCompleted
	})

	out, _, err = runCLI(t, []string{"queue", "show", strconv.FormatInt(id, 10)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	requireContains(t, out, "Completed")
	requireContains(t, out, "/uploads/"+resp.BatchID+"/image/a.jpg")
	requireContains(t, out, "run-7")

	out, _, err = runCLI(t, []string{"queue", "list", "--status", "completed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "a.jpg")
	requireContains(t, out, "2.0 KiB")

	out, _, err = runCLI(t, []string{"queue", "batches"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue batches: %v", err)
	}
	requireContains(t, out, resp.BatchID)
	requireContains(t, out, "completed=1")
}

func TestEnqueueRejectsMissingFile(t *testing.T) {
	env := setupCLITestEnv(t)
	env.startDaemon(t)

	_, _, err := runCLI(t, []string{"enqueue", filepath.Join(env.baseDir, "missing.jpg")}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected enqueue of a missing file to fail")
	}

	_, _, err = runCLI(t, []string{"enqueue"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected enqueue without files to fail")
	}
}

func TestQueueCommandsFallBackToDatabase(t *testing.T) {
	env := setupCLITestEnv(t)
	job := testsupport.NewJob(t, env.cfg, env.store, "batch-offline", "thumb.png", 1)

	out, _, err := runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "thumb.png")
	requireContains(t, out, "Queued")

	out, _, err = runCLI(t, []string{"queue", "show", strconv.FormatInt(job.ID, 10)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	requireContains(t, out, "No delivery attempts yet")

	if _, _, err := runCLI(t, []string{"queue", "show", "999"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected missing job to fail")
	}
	if _, _, err := runCLI(t, []string{"queue", "list", "--status", "bogus"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected unknown status to fail")
	}

	out, _, err = runCLI(t, []string{"--json", "queue", "health"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue health: %v", err)
	}
	var health api.DatabaseHealth
	if err := json.Unmarshal([]byte(out), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if !health.TableExists || health.TotalJobs != 1 {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestRetryNeedsDaemonAndIDs(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"queue", "retry", "--all"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected retry to fail without a daemon")
	}

	env.startDaemon(t)
	if _, _, err := runCLI(t, []string{"queue", "retry"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected retry without ids to fail")
	}
	out, _, err := runCLI(t, []string{"queue", "retry", "42"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, "Job 42: job not found")
}

func TestCleanupOfflineDeletesDeliveredFiles(t *testing.T) {
	env := setupCLITestEnv(t)
	job := testsupport.NewJob(t, env.cfg, env.store, "b1", "done.zip", 3)
	if _, err := env.store.Update(context.Background(), job.ID,
		queue.NewPatch().Status(queue.StatusCompleted).UploadComplete(true)); err != nil {
		t.Fatalf("Update: %v", err)
	}

	out, _, err := runCLI(t, []string{"cleanup", "--batch", "b1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	requireContains(t, out, "Deleted 1 of 1 delivered file(s)")

	updated, err := env.store.Get(context.Background(), job.ID)
	if err != nil || updated == nil || !updated.FileDeleted {
		t.Fatalf("expected file_deleted to be set, got %+v err=%v", updated, err)
	}

	out, _, err = runCLI(t, []string{"purge"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	requireContains(t, out, "Purged 0 job row(s)")
}
