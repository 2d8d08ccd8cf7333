package preflight_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"courier/internal/config"
	"courier/internal/preflight"
	"courier/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := preflight.CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := preflight.CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := preflight.CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := preflight.CheckFreeSpace("volume", dir, 1); !result.Passed {
		t.Fatalf("expected pass with a 1 byte floor, got: %s", result.Detail)
	}
	if result := preflight.CheckFreeSpace("volume", dir, ^uint64(0)); result.Passed {
		t.Fatal("expected failure with an impossible floor")
	}
	if result := preflight.CheckFreeSpace("volume", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckEndpoint(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()

	if result := preflight.CheckEndpoint(context.Background(), "ftp", addr, 1); !result.Passed {
		t.Fatalf("expected reachable listener, got: %s", result.Detail)
	}

	ln.Close()
	if result := preflight.CheckEndpoint(context.Background(), "ftp", addr, 1); result.Passed {
		t.Fatal("expected failure after listener closed")
	}
	if result := preflight.CheckEndpoint(context.Background(), "ftp", ":21", 1); result.Passed || result.Detail != "missing host" {
		t.Fatalf("expected missing host, got %+v", result)
	}
}

func TestCheckS3Config(t *testing.T) {
	if result := preflight.CheckS3Config(config.S3{}); result.Passed {
		t.Fatal("expected failure without bucket")
	}
	result := preflight.CheckS3Config(config.S3{Bucket: "uploads", Endpoint: "http://minio:9000"})
	if !result.Passed || !strings.Contains(result.Detail, "minio") {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCheckRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	if result := preflight.CheckRedis(context.Background(), "redis://"+srv.Addr()); !result.Passed {
		t.Fatalf("expected ping to succeed, got: %s", result.Detail)
	}
	if result := preflight.CheckRedis(context.Background(), "not a url"); result.Passed {
		t.Fatal("expected invalid url to fail")
	}
}

func TestRunAllCoversConfiguredChecks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	tcp := ln.Addr().(*net.TCPAddr)
	cfg.FTP.Port = tcp.Port

	results := preflight.RunAll(context.Background(), cfg)
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	want := []string{"Data directory", "Log directory", "Data volume", "FTP endpoint"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("checks = %v, want %v", names, want)
	}
	if failed := preflight.Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAllNilConfig(t *testing.T) {
	if results := preflight.RunAll(context.Background(), nil); results != nil {
		t.Fatalf("expected nil results, got %+v", results)
	}
}
