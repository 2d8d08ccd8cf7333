package retention

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/queue"
	"courier/internal/telemetry"
)

// CleanupError pairs a job and its file with the error that kept it.
type CleanupError struct {
	JobID int64
	Path  string
	Error error
}

// Result summarizes one sweep or purge.
type Result struct {
	Examined int
	Deleted  int
	Marked   int
	Purged   int64
	Errors   []CleanupError
}

// Options restricts DeleteCompleted. Zero values match everything.
type Options struct {
	OlderThanDays int
	BatchID       string
	Reference     string
}

// Sweeper runs retention against one store.
type Sweeper struct {
	cfg     config.Retention
	store   *queue.Store
	metrics *telemetry.Metrics
	logger  *slog.Logger
	now     func() time.Time

	sweepOff sync.Once
	purgeOff sync.Once
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithMetrics counts deleted files and purged rows.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(s *Sweeper) { s.metrics = metrics }
}

// WithClock overrides the wall clock used by Run.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// NewSweeper builds a sweeper for the retention settings in cfg.
func NewSweeper(cfg config.Retention, store *queue.Store, logger *slog.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "retention"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps immediately and then every check_interval until ctx ends. Purge
// runs on the first pass and then once per purge_interval_hours.
func (s *Sweeper) Run(ctx context.Context) {
	interval := time.Duration(s.cfg.CheckInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	purgeEvery := time.Duration(s.cfg.PurgeIntervalHours) * time.Hour
	if purgeEvery <= 0 {
		purgeEvery = 24 * time.Hour
	}

	var lastPurge time.Time
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		now := s.now()
		if _, err := s.SweepExpired(ctx, now); err != nil && ctx.Err() == nil {
			s.warn("retention sweep failed", "retention_sweep_failed", err)
		}
		if lastPurge.IsZero() || now.Sub(lastPurge) >= purgeEvery {
			if _, err := s.Purge(ctx, now); err != nil && ctx.Err() == nil {
				s.warn("retention purge failed", "retention_purge_failed", err)
			} else {
				lastPurge = now
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepExpired deletes the files of delivered jobs created before
// now - retention_days and marks them deleted. retention_days <= 0 disables it.
func (s *Sweeper) SweepExpired(ctx context.Context, now time.Time) (Result, error) {
	days := s.cfg.RetentionDays
	if days <= 0 {
		s.disabled(&s.sweepOff, "retention sweep disabled", "retention_days")
		return Result{}, nil
	}
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
	jobs, err := s.store.Expired(ctx, cutoff)
	if err != nil {
		return Result{}, err
	}
	result := s.deleteFiles(ctx, jobs)
	s.report("retention sweep complete", "retention_sweep", result)
	return result, nil
}

// DeleteCompleted deletes the files of delivered jobs matching opts,
// regardless of the retention window.
func (s *Sweeper) DeleteCompleted(ctx context.Context, opts Options) (Result, error) {
	complete, present := true, false
	jobs, err := s.store.Search(ctx, queue.Filter{
		Statuses:       []queue.Status{queue.StatusCompleted},
		UploadComplete: &complete,
		FileDeleted:    &present,
		BatchID:        strings.TrimSpace(opts.BatchID),
		Reference:      strings.TrimSpace(opts.Reference),
		OlderThanDays:  opts.OlderThanDays,
	})
	if err != nil {
		return Result{}, err
	}
	result := s.deleteFiles(ctx, jobs)
	s.report("completed files deleted", "retention_delete_completed", result)
	return result, nil
}

// Purge removes rows whose files were deleted more than purge_after_days ago.
// Attempt rows go with them. purge_after_days <= 0 disables it.
func (s *Sweeper) Purge(ctx context.Context, now time.Time) (Result, error) {
	days := s.cfg.PurgeAfterDays
	if days <= 0 {
		s.disabled(&s.purgeOff, "row purge disabled", "purge_after_days")
		return Result{}, nil
	}
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
	purged, err := s.store.PurgeDeleted(ctx, cutoff)
	if err != nil {
		return Result{}, err
	}
	s.metrics.AddRowsPurged(purged)
	result := Result{Purged: purged}
	if purged > 0 {
		s.logger.Info("deleted rows purged",
			logging.Int64("rows", purged),
			logging.Int("purge_after_days", days),
			logging.String(logging.FieldEventType, "retention_purge"),
		)
	}
	return result, nil
}

func (s *Sweeper) disabled(once *sync.Once, msg, setting string) {
	once.Do(func() {
		s.logger.Info(msg,
			logging.String("setting", setting),
			logging.String(logging.FieldEventType, "retention_disabled"),
		)
	})
}

func (s *Sweeper) deleteFiles(ctx context.Context, jobs []*queue.Job) Result {
	result := Result{Examined: len(jobs)}
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		removed, err := removeFile(job.FilePath)
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{JobID: job.ID, Path: job.FilePath, Error: err})
			s.logger.Warn("failed to delete delivered file",
				logging.Int64(logging.FieldJobID, job.ID),
				logging.String("path", job.FilePath),
				logging.Error(err),
				logging.String(logging.FieldEventType, "retention_delete_failed"),
				logging.String(logging.FieldErrorHint, "check data directory permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		if removed {
			result.Deleted++
		}
		if err := s.store.MarkFileDeleted(ctx, job.ID); err != nil {
			result.Errors = append(result.Errors, CleanupError{JobID: job.ID, Path: job.FilePath, Error: err})
			continue
		}
		result.Marked++
	}
	s.metrics.AddFilesDeleted(result.Deleted)
	return result
}

// removeFile deletes path. A file that is already gone is not an error.
func removeFile(path string) (bool, error) {
	if strings.TrimSpace(path) == "" {
		return false, nil
	}
	err := os.Remove(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (s *Sweeper) report(msg, eventType string, result Result) {
	if result.Examined == 0 {
		return
	}
	s.logger.Info(msg,
		logging.Int("examined", result.Examined),
		logging.Int("deleted", result.Deleted),
		logging.Int("marked", result.Marked),
		logging.Int("errors", len(result.Errors)),
		logging.String(logging.FieldEventType, eventType),
	)
}

func (s *Sweeper) warn(msg, eventType string, err error) {
	logging.WarnWithContext(s.logger, msg, eventType,
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check queue database access"),
		logging.String(logging.FieldImpact, "delivered files kept until the next pass"),
	)
}
