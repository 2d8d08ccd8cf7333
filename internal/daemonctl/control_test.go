package daemonctl_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"

	"courier/internal/daemonctl"
	"courier/internal/testsupport"
)

func TestForceKillRefusesCurrentProcess(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "courier.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if _, err := daemonctl.ForceKillProcess(pidPath, 0, syscall.SIGTERM); err == nil {
		t.Fatal("expected refusal to signal the current process")
	}
	if _, err := daemonctl.ForceKillProcess(filepath.Join(t.TempDir(), "absent.pid"), 0, syscall.SIGTERM); err == nil {
		t.Fatal("expected error without a pid")
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := daemonctl.StopAndTerminate(filepath.Join(t.TempDir(), "absent.sock"), cfg, time.Second)
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	alive, pid, err := daemonctl.ProcessInfo(filepath.Join(t.TempDir(), "absent.sock"))
	if err != nil || alive || pid != 0 {
		t.Fatalf("unexpected process info alive=%v pid=%d err=%v", alive, pid, err)
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewJob(t, cfg, store, "b", "a.jpg", 2)

	status, err := daemonctl.BuildStatusSnapshot(context.Background(), filepath.Join(t.TempDir(), "absent.sock"), cfg, true)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if status.Running || status.Service.Queued != 1 || status.Service.Total != 1 {
		t.Fatalf("unexpected offline status %+v", status.Service)
	}
	if len(status.Checks) == 0 {
		t.Fatal("expected readiness checks in offline status")
	}
}
