package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"courier/internal/api"
	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/notifications"
	"courier/internal/preflight"
	"courier/internal/queue"
	"courier/internal/retention"
	"courier/internal/services"
	"courier/internal/telemetry"
	"courier/internal/workflow"
)

// Daemon coordinates the queue service and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *queue.Store
	manager *workflow.Manager
	sweeper *retention.Sweeper
	hub     *notifications.Hub
	metrics *telemetry.Metrics

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
}

// Option configures optional daemon collaborators.
type Option func(*Daemon)

// WithSweeper enables cleanup and purge requests.
func WithSweeper(sweeper *retention.Sweeper) Option {
	return func(d *Daemon) { d.sweeper = sweeper }
}

// WithHub serves live events on the HTTP API.
func WithHub(hub *notifications.Hub) Option {
	return func(d *Daemon) { d.hub = hub }
}

// WithMetrics serves Prometheus metrics on the HTTP API.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(d *Daemon) { d.metrics = metrics }
}

// New constructs a daemon around an opened store and queue service.
func New(cfg *config.Config, store *queue.Store, manager *workflow.Manager, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || manager == nil {
		return nil, errors.New("daemon requires config, store, and queue service")
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		manager:  manager,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the daemon lock, starts the queue service, and opens the
// HTTP API when a bind address is configured.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another courier daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.manager.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start queue service: %w", err)
	}

	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err == nil {
		err = srv.start(runCtx)
	}
	if err != nil {
		d.manager.Stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.api = srv
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("courier daemon started",
		logging.String("lock", d.lockPath),
		logging.String("transport", d.cfg.Queue.Transport),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.api.stop()
	d.api = nil
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.manager.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("courier daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.hub != nil {
		d.hub.Close()
	}
	return d.store.Close()
}

// Running reports whether Start has succeeded without a matching Stop.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status returns daemon runtime information. Readiness checks are included
// only when requested because they dial the remote endpoint.
func (d *Daemon) Status(ctx context.Context, withChecks bool) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DeviceID:     d.cfg.Device.ID,
		Transport:    d.cfg.Queue.Transport,
		QueueDBPath:  d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		Service:      api.FromServiceStatus(d.manager.Status(ctx)),
	}
	if withChecks {
		status.Checks = api.FromPreflight(preflight.RunAll(ctx, d.cfg))
	}
	return status
}

// Enqueue validates and schedules a batch.
func (d *Daemon) Enqueue(ctx context.Context, req api.EnqueueRequest) (api.EnqueueResponse, error) {
	result, err := d.manager.EnqueueBatch(ctx, req.Reference, api.ToFileSpecs(req.Files))
	if err != nil {
		return api.EnqueueResponse{}, err
	}
	return api.EnqueueResponse{BatchID: result.BatchID, JobIDs: result.JobIDs}, nil
}

// List returns jobs matching the request filters.
func (d *Daemon) List(ctx context.Context, req api.ListRequest) ([]api.Job, error) {
	filter, err := req.Filter()
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "daemon", "list", "invalid filter", err)
	}
	jobs, err := d.manager.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	return api.FromJobs(jobs), nil
}

// Describe returns one job with its attempt history.
func (d *Daemon) Describe(ctx context.Context, id int64) (api.JobResponse, error) {
	job, err := d.manager.Get(ctx, id)
	if err != nil {
		return api.JobResponse{}, err
	}
	if job == nil {
		return api.JobResponse{}, services.Wrap(services.ErrNotFound, "daemon", "describe", fmt.Sprintf("job %d not found", id), nil)
	}
	attempts, err := d.manager.Attempts(ctx, id)
	if err != nil {
		return api.JobResponse{}, err
	}
	return api.JobResponse{Job: api.FromJob(job), Attempts: api.FromAttempts(attempts)}, nil
}

// Retry re-queues the named failed jobs, or every failed job when All is set.
func (d *Daemon) Retry(ctx context.Context, req api.RetryRequest) (api.RetryResponse, error) {
	var (
		result workflow.RetryResult
		err    error
	)
	switch {
	case req.All:
		result, err = d.manager.RetryAllFailed(ctx)
	case len(req.IDs) > 0:
		result, err = d.manager.Retry(ctx, req.IDs...)
	default:
		return api.RetryResponse{}, services.Wrap(services.ErrValidation, "daemon", "retry", "no job ids given", nil)
	}
	if err != nil {
		return api.RetryResponse{}, err
	}
	return api.FromRetryResult(result), nil
}

// Batches summarizes every batch, newest first.
func (d *Daemon) Batches(ctx context.Context) ([]api.Batch, error) {
	batches, err := d.manager.Batches(ctx)
	if err != nil {
		return nil, err
	}
	return api.FromBatches(batches), nil
}

// Cleanup deletes delivered local files matching the request.
func (d *Daemon) Cleanup(ctx context.Context, req api.CleanupRequest) (api.CleanupResponse, error) {
	if d.sweeper == nil {
		return api.CleanupResponse{}, services.Wrap(services.ErrConfiguration, "daemon", "cleanup", "retention is not configured", nil)
	}
	result, err := d.sweeper.DeleteCompleted(ctx, api.ToSweepOptions(req))
	if err != nil {
		return api.CleanupResponse{}, err
	}
	return api.FromSweepResult(result), nil
}

// Purge removes old rows whose local files are already gone.
func (d *Daemon) Purge(ctx context.Context) (api.CleanupResponse, error) {
	if d.sweeper == nil {
		return api.CleanupResponse{}, services.Wrap(services.ErrConfiguration, "daemon", "purge", "retention is not configured", nil)
	}
	result, err := d.sweeper.Purge(ctx, time.Now())
	if err != nil {
		return api.CleanupResponse{}, err
	}
	return api.FromSweepResult(result), nil
}

// DatabaseHealth returns store diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (api.DatabaseHealth, error) {
	health, err := d.store.CheckHealth(ctx)
	if err != nil {
		return api.DatabaseHealth{}, err
	}
	return api.FromDatabaseHealth(health), nil
}

// LogPath returns the path of the current daemon log.
func (d *Daemon) LogPath() string {
	return d.cfg.LogPath()
}
