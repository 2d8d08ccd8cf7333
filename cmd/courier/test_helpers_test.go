package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"courier/internal/config"
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

type localDeliverer struct{}

func (localDeliverer) Name() string { return "local" }

func (localDeliverer) Deliver(_ context.Context, req transport.Request, progress transport.ProgressFunc) (transport.Result, error) {
	progress(100)
	return transport.Result{RemotePath: transport.RemotePath("/uploads", req.BatchID, req.FileType, req.FileName)}, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	daemon     *daemon.Daemon
	socketPath string
	configPath string
	baseDir    string
}

// setupCLITestEnv writes a config file for a temp tree without starting a
// daemon. Commands that fall back to the queue database work against it.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	configPath := filepath.Join(base, "courier.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      testsupport.MustOpenStore(t, cfg),
		socketPath: cfg.SocketPath(),
		configPath: configPath,
		baseDir:    base,
	}
}

// startDaemon serves the IPC socket from an in-process daemon.
func (env *cliTestEnv) startDaemon(t *testing.T) {
	t.Helper()

	logger := logging.NewNop()
	sweeper := retention.NewSweeper(env.cfg.Retention, env.store, logger)
	mgr := workflow.NewManager(env.cfg, env.store, localDeliverer{}, notifications.Nop{}, logger,
		workflow.WithSweeper(sweeper), workflow.WithoutPreflight())
	d, err := daemon.New(env.cfg, env.store, mgr, logger, daemon.WithSweeper(sweeper))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := ipc.NewServer(ctx, env.socketPath, d, logger)
	if err != nil {
		cancel()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	env.daemon = d

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Stop()
	})
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
