package workflow

import (
	"context"
	"log/slog"

	"courier/internal/logging"
	"courier/internal/queue"
	"courier/internal/services"
)

// withJobContext tags ctx with the job, its batch, and the worker handling it.
func withJobContext(ctx context.Context, worker string, jobID int64, batchID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = services.WithJobID(ctx, jobID)
	if batchID != "" {
		ctx = services.WithBatchID(ctx, batchID)
	}
	if worker != "" {
		ctx = services.WithWorker(ctx, worker)
	}
	return ctx
}

// jobLogger returns a logger carrying the job fields stored in ctx.
func (w *worker) jobLogger(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, w.logger)
}

func jobAttrs(job *queue.Job) []logging.Attr {
	return []logging.Attr{
		logging.String("file", job.FileName),
		logging.String("file_type", job.FileType),
		logging.Int64("size", job.FileSize),
		logging.Int("priority", job.Priority),
	}
}
