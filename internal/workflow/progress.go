package workflow

import (
	"context"
	"log/slog"
	"time"

	"courier/internal/logging"
	"courier/internal/notifications"
	"courier/internal/queue"
)

// progressReporter persists and publishes transfer progress for one job.
// Errors are logged and never surface to the transport.
type progressReporter struct {
	m       *Manager
	store   *queue.Store
	job     *queue.Job
	logger  *slog.Logger
	sampler *logging.ProgressSampler
	last    int
}

func newProgressReporter(m *Manager, store *queue.Store, job *queue.Job, logger *slog.Logger) *progressReporter {
	return &progressReporter{
		m:       m,
		store:   store,
		job:     job,
		logger:  logger,
		sampler: logging.NewProgressSampler(10),
		last:    -1,
	}
}

func (p *progressReporter) report(percent int) {
	percent = min(max(percent, 0), 100)
	if percent == p.last {
		return
	}
	p.last = percent

	ctx := context.Background()
	if _, err := p.store.Transition(ctx, p.job.ID, queue.StatusUploading, queue.NewPatch().Progress(percent)); err != nil {
		p.logger.Debug("progress update failed", logging.Error(err))
	}
	p.job.UploadProgress = percent

	if p.sampler.ShouldLog(float64(percent), "upload", "") {
		p.logger.Info("upload progress",
			logging.String("file", p.job.FileName),
			logging.Int("percent", percent),
			logging.String(logging.FieldEventType, "upload_progress"),
		)
	}
	p.m.notify(ctx, p.logger, p.m.event(notifications.EventUploadProgress, p.job, time.Now().UTC()))
}
