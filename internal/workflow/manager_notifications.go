package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"courier/internal/logging"
	"courier/internal/notifications"
	"courier/internal/queue"
)

// notify hands an event to the sink. Sink errors never fail a delivery.
func (m *Manager) notify(ctx context.Context, logger *slog.Logger, event notifications.Event) {
	if err := m.sink.Notify(ctx, event); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, notification skipped", logging.String("event", string(event.Type)))
			return
		}
		logger.Warn("notification failed",
			logging.String("event", string(event.Type)),
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.String(logging.FieldErrorHint, "check notification endpoints"),
			logging.String(logging.FieldImpact, "observers miss this event"),
		)
	}
}

func (m *Manager) event(kind notifications.EventType, job *queue.Job, at time.Time) notifications.Event {
	return notifications.Event{
		Type:       kind,
		JobID:      job.ID,
		BatchID:    job.BatchID,
		Reference:  job.Reference,
		FileName:   job.FileName,
		FileType:   job.FileType,
		DeviceID:   m.cfg.Device.ID,
		Progress:   job.UploadProgress,
		RemotePath: job.RemotePath,
		RemoteURL:  job.RemoteURL,
		Timestamp:  at,
	}
}

func (m *Manager) doneEvent(job *queue.Job, elapsed time.Duration) notifications.Event {
	event := m.event(notifications.EventUploadDone, job, time.Now().UTC())
	event.Progress = 100
	event.Duration = elapsed
	return event
}

func (m *Manager) failedEvent(job *queue.Job, message string) notifications.Event {
	event := m.event(notifications.EventUploadFailed, job, time.Now().UTC())
	event.Error = message
	return event
}
