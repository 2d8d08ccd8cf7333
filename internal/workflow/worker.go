package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"courier/internal/logging"
	"courier/internal/queue"
	"courier/internal/scheduler"
	"courier/internal/services"
	"courier/internal/telemetry"
	"courier/internal/transport"
)

// worker owns one store handle and pulls entries from the run's scheduler.
type worker struct {
	m       *Manager
	run     *runState
	name    string
	store   *queue.Store
	logger  *slog.Logger
	popWait time.Duration
}

func (m *Manager) runWorker(ctx context.Context, run *runState, name string, store *queue.Store, dedicated bool) {
	defer run.wg.Done()
	if dedicated {
		defer func() {
			if err := store.Close(); err != nil {
				m.logger.Debug("close worker store", logging.String(logging.FieldWorker, name), logging.Error(err))
			}
		}()
	}
	w := &worker{
		m:       m,
		run:     run,
		name:    name,
		store:   store,
		logger:  m.logger.With(logging.String(logging.FieldWorker, name)),
		popWait: m.cfg.PopTimeout(),
	}
	if w.popWait <= 0 {
		w.popWait = 2 * time.Second
	}
	w.logger.Debug("worker started")
	for {
		if run.stopping.Load() || ctx.Err() != nil {
			w.logger.Debug("worker exiting")
			return
		}
		entry, ok := run.sched.Pop(ctx, w.popWait)
		if !ok {
			continue
		}
		w.m.metrics.SetQueueDepth(run.sched.Len())
		w.process(ctx, entry)
	}
}

// process runs one scheduling entry through the job state machine. A panic is
// converted into a terminal failure so the worker keeps polling.
func (w *worker) process(ctx context.Context, entry scheduler.Entry) {
	jobCtx := withJobContext(ctx, w.name, entry.JobID, "")
	logger := w.jobLogger(jobCtx)
	defer func() {
		if r := recover(); r != nil {
			w.recoverPanic(jobCtx, logger, entry.JobID, r)
		}
	}()

	job, err := w.store.Get(jobCtx, entry.JobID)
	if err != nil {
		w.deferEntry(ctx, logger, entry, err)
		return
	}
	if job == nil {
		logger.Debug("job no longer exists; entry dropped")
		return
	}
	if job.Status != queue.StatusQueued {
		logger.Debug("stale schedule entry dropped", logging.String("status", string(job.Status)))
		return
	}
	jobCtx = withJobContext(ctx, w.name, job.ID, job.BatchID)
	logger = w.jobLogger(jobCtx)

	if _, err := os.Stat(job.FilePath); err != nil {
		w.failMissingSource(jobCtx, logger, job)
		return
	}

	claimed, err := w.store.Claim(jobCtx, job.ID)
	if err != nil {
		w.deferEntry(ctx, logger, entry, err)
		return
	}
	if !claimed {
		logger.Debug("claim lost to another worker")
		return
	}
	job.Status = queue.StatusUploading
	job.UploadProgress = 0

	w.deliver(jobCtx, logger, job)
}

// deferEntry handles a store error before the claim: the entry is re-pushed
// after retry_delay unless the service is stopping, in which case recovery
// picks the job up on the next start.
func (w *worker) deferEntry(ctx context.Context, logger *slog.Logger, entry scheduler.Entry, err error) {
	logging.WarnWithContext(logger, "job load failed; entry deferred", "job_load_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check queue database access"),
		logging.String(logging.FieldImpact, "job retried after the retry delay"),
	)
	w.m.setLastError(err)
	if !sleepCtx(ctx, w.m.cfg.RetryDelay()) || w.run.stopping.Load() {
		return
	}
	w.run.sched.Push(entry.Priority, entry.JobID)
}

func (w *worker) failMissingSource(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	message := "source file not found: " + job.FilePath
	patch := queue.NewPatch().Status(queue.StatusFailed).FileError(message)
	ok, err := w.store.Transition(context.WithoutCancel(ctx), job.ID, queue.StatusQueued, patch)
	if err != nil {
		logging.ErrorWithContext(logger, "failed to persist missing source", "job_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		w.m.setLastError(err)
		return
	}
	if !ok {
		return
	}
	logging.WarnWithContext(logger, "source file missing; job failed", "upload_source_missing",
		logging.String("file_path", job.FilePath),
		logging.String(logging.FieldErrorHint, "re-enqueue the file once it exists"),
		logging.String(logging.FieldImpact, "job will not be retried"),
	)
	w.m.metrics.ObserveDelivery(telemetry.OutcomeFailed, w.m.deliverer.Name(), 0, 0)
	job.Status = queue.StatusFailed
	job.FileError = message
	w.m.notify(ctx, logger, w.m.failedEvent(job, message))
}

// deliver transfers a claimed job and persists the outcome. The transfer and
// its bookkeeping run detached from shutdown so Stop lets them finish.
func (w *worker) deliver(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	detached := context.WithoutCancel(ctx)
	w.m.active.Add(1)
	idle := w.m.metrics.WorkerBusy()
	defer func() {
		idle()
		w.m.active.Add(-1)
	}()

	attrs := append(jobAttrs(job),
		logging.Int("attempt", job.UploadAttempts+1),
		logging.String(logging.FieldEventType, "upload_started"),
	)
	logger.Info("upload started", logging.Args(attrs...)...)

	reporter := newProgressReporter(w.m, w.store, job, logger)
	started := time.Now()
	result, err := w.m.deliverer.Deliver(detached, transport.Request{
		LocalPath: job.FilePath,
		BatchID:   job.BatchID,
		FileType:  job.FileType,
		FileName:  job.FileName,
		Size:      job.FileSize,
	}, reporter.report)
	elapsed := time.Since(started)
	if err == nil && strings.TrimSpace(result.RemotePath) == "" {
		err = services.Wrap(services.ErrTransport, w.m.deliverer.Name(), "deliver", "no remote path returned", nil)
	}
	if err != nil {
		w.handleFailure(ctx, logger, job, err.Error())
		return
	}
	w.handleSuccess(detached, logger, job, result, elapsed)
}

func (w *worker) handleSuccess(ctx context.Context, logger *slog.Logger, job *queue.Job, result transport.Result, elapsed time.Duration) {
	now := time.Now().UTC()
	attempts := job.UploadAttempts + 1
	patch := queue.NewPatch().
		Status(queue.StatusCompleted).
		UploadComplete(true).
		Progress(100).
		Remote(result.RemotePath, result.RemoteURL).
		UploadDate(now).
		Attempts(attempts).
		ClearErrors()
	owned, err := w.store.Transition(ctx, job.ID, queue.StatusUploading, patch)
	if err != nil {
		logging.ErrorWithContext(logger, "failed to persist completed upload", "job_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		w.m.setLastError(err)
	}
	if err == nil && !owned {
		w.claimLost(logger, job)
		return
	}
	w.appendAttempt(ctx, logger, job, result.RemotePath, now, "")

	job.Status = queue.StatusCompleted
	job.UploadComplete = true
	job.UploadProgress = 100
	job.UploadAttempts = attempts
	job.RemotePath = result.RemotePath
	job.RemoteURL = result.RemoteURL
	job.UploadDate = &now

	w.m.metrics.ObserveDelivery(telemetry.OutcomeCompleted, w.m.deliverer.Name(), job.FileSize, elapsed)
	logger.Info("upload completed",
		logging.String("file", job.FileName),
		logging.String("remote_path", result.RemotePath),
		logging.Duration("elapsed", elapsed),
		logging.String(logging.FieldEventType, "upload_completed"),
	)
	w.m.notify(ctx, logger, w.m.doneEvent(job, elapsed))
}

// handleFailure records a failed attempt. With attempts remaining the job is
// demoted one priority step, persisted queued, and re-pushed after
// retry_delay; otherwise it fails. Every delivery error gets the same policy.
func (w *worker) handleFailure(ctx context.Context, logger *slog.Logger, job *queue.Job, message string) {
	detached := context.WithoutCancel(ctx)
	now := time.Now().UTC()
	attempts := job.UploadAttempts + 1
	job.UploadAttempts = attempts
	job.UploadError = message

	if attempts < w.m.cfg.Queue.MaxRetries {
		priority := max(job.Priority, min(job.Priority+1, w.m.cfg.Queue.PriorityCeiling))
		patch := queue.NewPatch().
			Status(queue.StatusQueued).
			Attempts(attempts).
			Priority(priority).
			Progress(0).
			UploadError(message)
		owned, err := w.store.Transition(detached, job.ID, queue.StatusUploading, patch)
		if err != nil {
			logging.ErrorWithContext(logger, "failed to persist retry", "job_persist_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			w.m.setLastError(err)
			return
		}
		if !owned {
			w.claimLost(logger, job)
			return
		}
		w.appendAttempt(detached, logger, job, "", now, message)
		job.Status = queue.StatusQueued
		job.Priority = priority
		w.m.metrics.ObserveDelivery(telemetry.OutcomeRetried, w.m.deliverer.Name(), 0, 0)
		logging.WarnWithContext(logger, "upload failed; retry scheduled", "upload_retry",
			logging.String("file", job.FileName),
			logging.Int("attempt", attempts),
			logging.Int("max_retries", w.m.cfg.Queue.MaxRetries),
			logging.Int("priority", priority),
			logging.String("error_message", message),
			logging.String(logging.FieldErrorHint, "check the remote endpoint and credentials"),
			logging.String(logging.FieldImpact, "upload delayed"),
		)
		if !sleepCtx(ctx, w.m.cfg.RetryDelay()) || w.run.stopping.Load() {
			return
		}
		w.run.sched.Push(priority, job.ID)
		w.m.metrics.SetQueueDepth(w.run.sched.Len())
		return
	}

	if w.failJob(detached, logger, job, queue.StatusUploading, message) {
		w.appendAttempt(detached, logger, job, "", now, message)
	}
}

// failJob persists a terminal failure guarded by the job's expected status.
// It reports false when another owner has moved the job on.
func (w *worker) failJob(ctx context.Context, logger *slog.Logger, job *queue.Job, from queue.Status, message string) bool {
	patch := queue.NewPatch().
		Status(queue.StatusFailed).
		Attempts(job.UploadAttempts).
		UploadError(message)
	owned, err := w.store.Transition(ctx, job.ID, from, patch)
	if err != nil {
		logging.ErrorWithContext(logger, "failed to persist failed upload", "job_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		w.m.setLastError(err)
	} else if !owned {
		w.claimLost(logger, job)
		return false
	}
	job.Status = queue.StatusFailed
	w.m.metrics.ObserveDelivery(telemetry.OutcomeFailed, w.m.deliverer.Name(), 0, 0)
	logging.ErrorWithContext(logger, "upload failed permanently", "upload_failed",
		logging.String("file", job.FileName),
		logging.Int("attempts", job.UploadAttempts),
		logging.String("error_message", message),
		logging.String(logging.FieldErrorHint, "fix the cause, then retry the job"),
		logging.String(logging.FieldImpact, "file not delivered"),
	)
	w.m.setLastError(errors.New(message))
	w.m.notify(ctx, logger, w.m.failedEvent(job, message))
	return true
}

// claimLost logs an outcome that was discarded because the job is no longer
// in the state this worker left it in, typically after a restart re-queued it.
func (w *worker) claimLost(logger *slog.Logger, job *queue.Job) {
	logging.WarnWithContext(logger, "job changed owner during delivery; outcome discarded", "upload_outcome_discarded",
		logging.String("file", job.FileName),
		logging.String(logging.FieldErrorHint, "a restart re-queued the job while this transfer ran"),
		logging.String(logging.FieldImpact, "the current owner records the outcome"),
	)
}

func (w *worker) appendAttempt(ctx context.Context, logger *slog.Logger, job *queue.Job, remotePath string, at time.Time, message string) {
	_, err := w.store.AppendAttempt(ctx, queue.Attempt{
		JobID:      job.ID,
		BatchID:    job.BatchID,
		Reference:  job.Reference,
		FileName:   job.FileName,
		FileType:   job.FileType,
		RemotePath: remotePath,
		UploadDate: at,
		Success:    message == "",
		Error:      message,
	})
	if err != nil {
		logger.Warn("attempt log write failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "attempt_log_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
			logging.String(logging.FieldImpact, "attempt history incomplete"),
		)
	}
}

func (w *worker) recoverPanic(ctx context.Context, logger *slog.Logger, jobID int64, r any) {
	message := fmt.Sprintf("internal error: %v", r)
	logging.ErrorWithContext(logger, "worker recovered from panic", "worker_panic",
		logging.String("panic", fmt.Sprint(r)),
		logging.String("stack", string(debug.Stack())),
		logging.String(logging.FieldErrorHint, "report this failure with the stack trace"),
	)
	detached := context.WithoutCancel(ctx)
	job, err := w.store.Get(detached, jobID)
	if err != nil || job == nil {
		return
	}
	if job.Status.IsTerminal() {
		return
	}
	job.UploadError = message
	w.failJob(detached, logger, job, job.Status, message)
}

// sleepCtx waits for d and reports whether it finished before ctx ended.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
