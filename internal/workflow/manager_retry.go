package workflow

import (
	"context"
	"fmt"
	"os"

	"courier/internal/logging"
	"courier/internal/queue"
)

// Retry re-queues failed jobs whose source file still exists. Each id lands
// in exactly one of Successful or Failed.
func (m *Manager) Retry(ctx context.Context, ids ...int64) (RetryResult, error) {
	result := RetryResult{}
	for _, id := range ids {
		reason, err := m.retryOne(ctx, id)
		if err != nil {
			return result, err
		}
		if reason != "" {
			result.Failed = append(result.Failed, RetryFailure{JobID: id, Reason: reason})
			continue
		}
		result.Successful = append(result.Successful, id)
	}
	if len(result.Successful) > 0 {
		m.logger.Info("failed jobs re-queued",
			logging.Int("count", len(result.Successful)),
			logging.Int("rejected", len(result.Failed)),
			logging.String(logging.FieldEventType, "jobs_retried"),
		)
	}
	return result, nil
}

// RetryAllFailed re-queues every failed job.
func (m *Manager) RetryAllFailed(ctx context.Context) (RetryResult, error) {
	jobs, err := m.store.Search(ctx, queue.Filter{Statuses: []queue.Status{queue.StatusFailed}})
	if err != nil {
		return RetryResult{}, fmt.Errorf("list failed jobs: %w", err)
	}
	ids := make([]int64, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
	}
	return m.Retry(ctx, ids...)
}

func (m *Manager) retryOne(ctx context.Context, id int64) (string, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load job %d: %w", id, err)
	}
	if job == nil {
		return "job not found", nil
	}
	if job.Status != queue.StatusFailed {
		return fmt.Sprintf("job is %s, not failed", job.Status), nil
	}
	if _, err := os.Stat(job.FilePath); err != nil {
		return "source file not found: " + job.FilePath, nil
	}
	patch := queue.NewPatch().
		Status(queue.StatusQueued).
		Attempts(0).
		Progress(0).
		ClearErrors()
	ok, err := m.store.Transition(ctx, id, queue.StatusFailed, patch)
	if err != nil {
		return "", fmt.Errorf("requeue job %d: %w", id, err)
	}
	if !ok {
		return "job changed state concurrently", nil
	}
	m.push(job.Priority, id)
	return "", nil
}

// Get returns one job, or nil when it does not exist.
func (m *Manager) Get(ctx context.Context, id int64) (*queue.Job, error) {
	return m.store.Get(ctx, id)
}

// Search lists jobs matching filter.
func (m *Manager) Search(ctx context.Context, filter queue.Filter) ([]*queue.Job, error) {
	return m.store.Search(ctx, filter)
}

// Attempts returns the delivery attempt log for one job.
func (m *Manager) Attempts(ctx context.Context, id int64) ([]queue.Attempt, error) {
	return m.store.Attempts(ctx, id)
}

// Batches summarizes jobs grouped by batch id.
func (m *Manager) Batches(ctx context.Context) ([]queue.BatchSummary, error) {
	return m.store.Batches(ctx)
}
