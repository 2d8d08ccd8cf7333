// Package daemonrun assembles the courier daemon process: logging, the job
// store, the configured transport and notification sinks, the queue service,
// and the IPC socket.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"courier/internal/config"
	"courier/internal/daemon"
	"courier/internal/ipc"
	"courier/internal/logging"
	"courier/internal/notifications"
	"courier/internal/queue"
	"courier/internal/retention"
	"courier/internal/telemetry"
	"courier/internal/transport"
	"courier/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// SocketPath overrides the configured IPC socket location.
	SocketPath string
}

// Run starts the courier daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("courier-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.LogPath(), logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update courier.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "courier-*.log", Exclude: []string{logPath}},
	)
	logConfigSnapshot(logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}

	deliverer, err := transport.New(signalCtx, cfg)
	if err != nil {
		store.Close()
		return fmt.Errorf("create transport: %w", err)
	}

	metrics := telemetry.New()
	hub := notifications.NewHub(logger)
	sinks, err := notifications.Build(cfg, hub, logger)
	if err != nil {
		store.Close()
		return err
	}
	defer sinks.Close()

	sweeper := retention.NewSweeper(cfg.Retention, store, logger, retention.WithMetrics(metrics))
	manager := workflow.NewManager(cfg, store, deliverer, sinks.Sink, logger,
		workflow.WithMetrics(metrics),
		workflow.WithSweeper(sweeper),
	)

	d, err := daemon.New(cfg, store, manager, logger,
		daemon.WithSweeper(sweeper),
		daemon.WithHub(hub),
		daemon.WithMetrics(metrics),
	)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath := opts.SocketPath
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logging.WarnWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration and queue database access"),
			logging.String(logging.FieldImpact, "queued files will not be delivered until the daemon is started"),
		)
	}

	<-signalCtx.Done()
	logger.Info("courier daemon shutting down")
	return nil
}

// ensureCurrentLogPointer points the stable log path at this run's log file,
// falling back to a hard link where symlinks are unsupported.
func ensureCurrentLogPointer(current, target string) error {
	if current == "" || target == "" {
		return nil
	}
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("device_id", cfg.Device.ID),
		logging.String("transport", cfg.Queue.Transport),
		logging.Int("workers", cfg.Queue.WorkerThreads),
		logging.Int("max_retries", cfg.Queue.MaxRetries),
		logging.Int("retention_days", cfg.Retention.RetentionDays),
		logging.Int("purge_after_days", cfg.Retention.PurgeAfterDays),
		logging.Bool("api_enabled", cfg.Paths.APIBind != ""),
		logging.Bool("ntfy_enabled", cfg.Notifications.NtfyTopic != ""),
		logging.Bool("redis_enabled", cfg.Notifications.RedisURL != ""),
		logging.String("database", cfg.DatabasePath()),
	)
}
