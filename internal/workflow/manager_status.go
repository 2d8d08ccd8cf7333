package workflow

import (
	"context"
	"time"

	"courier/internal/logging"
	"courier/internal/queue"
)

// Status returns counts by status plus the live worker and queue view.
func (m *Manager) Status(ctx context.Context) ServiceStatus {
	m.mu.RLock()
	state := m.state
	lastErr := m.lastErr
	sched := m.sched
	m.mu.RUnlock()

	status := ServiceStatus{
		WorkersActive: int(m.active.Load()),
		QueueDepth:    sched.Len(),
		Running:       state == StateRunning,
		State:         state,
		Timestamp:     time.Now().UTC(),
	}
	if lastErr != nil {
		status.LastError = lastErr.Error()
	}

	counts, err := m.store.StatusSummary(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_stats_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
			logging.String(logging.FieldImpact, "status counts are zero"),
		)
		if status.LastError == "" {
			status.LastError = err.Error()
		}
		return status
	}
	status.Queued = counts[queue.StatusQueued]
	status.Uploading = counts[queue.StatusUploading]
	status.Completed = counts[queue.StatusCompleted]
	status.Failed = counts[queue.StatusFailed]
	status.Total = status.Queued + status.Uploading + status.Completed + status.Failed
	return status
}

func (m *Manager) setLastError(err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
