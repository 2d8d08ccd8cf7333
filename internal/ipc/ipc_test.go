package ipc_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"courier/internal/daemon"
	"courier/internal/ipc"
	"courier/internal/logging"
	"courier/internal/notifications"
	"courier/internal/queue"
	"courier/internal/retention"
	"courier/internal/testsupport"
	"courier/internal/transport"
	"courier/internal/workflow"
)

type nopDeliverer struct{}

func (nopDeliverer) Name() string { return "nop" }

func (nopDeliverer) Deliver(_ context.Context, req transport.Request, _ transport.ProgressFunc) (transport.Result, error) {
	return transport.Result{RemotePath: "/remote/" + req.FileName}, nil
}

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	sweeper := retention.NewSweeper(cfg.Retention, store, logger)
	mgr := workflow.NewManager(cfg, store, nopDeliverer{}, notifications.Nop{}, logger, workflow.WithoutPreflight())
	d, err := daemon.New(cfg, store, mgr, logger, daemon.WithSweeper(sweeper))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	startResp, err := client.Start()
	if err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	if !startResp.Started {
		t.Fatalf("expected Started=true, message=%s", startResp.Message)
	}
	again, err := client.Start()
	if err != nil || again.Started {
		t.Fatalf("expected second start to be refused, got %+v err=%v", again, err)
	}

	status, err := client.Status(false)
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Status.Running || status.Status.DeviceID != "test-device" {
		t.Fatalf("unexpected status %+v", status.Status)
	}

	stopResp, err := client.Stop()
	if err != nil || !stopResp.Stopped {
		t.Fatalf("Stop failed: %+v err=%v", stopResp, err)
	}

	queued := testsupport.NewJob(t, cfg, store, "batch-1", "a.jpg", 2)
	failed := testsupport.NewJob(t, cfg, store, "batch-1", "b.jpg", 2)
	if _, err := store.Update(ctx, failed.ID, queue.NewPatch().Status(queue.StatusFailed).UploadError("boom")); err != nil {
		t.Fatalf("Update failed job: %v", err)
	}

	listResp, err := client.List(ipc.ListRequest{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listResp.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(listResp.Jobs))
	}
	failedResp, err := client.List(ipc.ListRequest{Statuses: []string{"failed"}})
	if err != nil {
		t.Fatalf("List failed filter: %v", err)
	}
	if len(failedResp.Jobs) != 1 || failedResp.Jobs[0].ID != failed.ID {
		t.Fatalf("expected failed job %d, got %+v", failed.ID, failedResp.Jobs)
	}
	if _, err := client.List(ipc.ListRequest{Statuses: []string{"paused"}}); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}

	describe, err := client.Describe(queued.ID)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if describe.Job.FileName != "a.jpg" || describe.Job.Status != "queued" {
		t.Fatalf("unexpected describe %+v", describe.Job)
	}
	if _, err := client.Describe(999); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}

	retryResp, err := client.Retry(ipc.RetryRequest{IDs: []int64{failed.ID, queued.ID, 999}})
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if len(retryResp.Successful) != 1 || retryResp.Successful[0] != failed.ID || len(retryResp.Failed) != 2 {
		t.Fatalf("unexpected retry response %+v", retryResp)
	}

	batches, err := client.Batches()
	if err != nil {
		t.Fatalf("Batches failed: %v", err)
	}
	if len(batches.Batches) != 1 || batches.Batches[0].FileCount != 2 || batches.Batches[0].Status["queued"] != 2 {
		t.Fatalf("unexpected batches %+v", batches.Batches)
	}

	cleanup, err := client.Cleanup(ipc.CleanupRequest{BatchID: "batch-1"})
	if err != nil || cleanup.Examined != 0 {
		t.Fatalf("Cleanup: %+v err=%v", cleanup, err)
	}
	if _, err := client.Purge(); err != nil {
		t.Fatalf("Purge: %v", err)
	}

	health, err := client.DatabaseHealth()
	if err != nil {
		t.Fatalf("DatabaseHealth: %v", err)
	}
	if !health.TableExists || health.TotalJobs != 2 {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestDialMissingSocket(t *testing.T) {
	start := time.Now()
	if _, err := ipc.Dial(t.TempDir() + "/absent.sock"); err == nil {
		t.Fatal("expected dial error")
	}
	if time.Since(start) > 3*time.Second {
		t.Fatal("dial should fail fast")
	}
}
