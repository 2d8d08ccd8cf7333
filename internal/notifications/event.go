package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// EventType identifies an upload event.
type EventType string

const (
	EventUploadProgress EventType = "UPLOAD_PROGRESS"
	EventUploadDone     EventType = "UPLOAD_DONE"
	EventUploadFailed   EventType = "UPLOAD_FAILED"
)

// Event describes one observable change in a job's delivery.
type Event struct {
	Type       EventType
	JobID      int64
	BatchID    string
	Reference  string
	FileName   string
	FileType   string
	DeviceID   string
	Progress   int
	Duration   time.Duration
	RemotePath string
	RemoteURL  string
	Error      string
	Timestamp  time.Time
}

type eventWire struct {
	Type       EventType `json:"notification_type"`
	JobID      int64     `json:"doc_id"`
	BatchID    string    `json:"batch_id,omitempty"`
	Reference  string    `json:"reference,omitempty"`
	FileName   string    `json:"file"`
	FileType   string    `json:"file_type,omitempty"`
	DeviceID   string    `json:"device_id,omitempty"`
	Progress   int       `json:"upload_progress"`
	Duration   float64   `json:"upload_duration,omitempty"`
	RemotePath string    `json:"remote_path,omitempty"`
	RemoteURL  string    `json:"remote_url,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// MarshalJSON encodes the event in the wire shape consumed by observers.
// Duration is expressed in seconds.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventWire{
		Type:       e.Type,
		JobID:      e.JobID,
		BatchID:    e.BatchID,
		Reference:  e.Reference,
		FileName:   e.FileName,
		FileType:   e.FileType,
		DeviceID:   e.DeviceID,
		Progress:   e.Progress,
		Duration:   e.Duration.Seconds(),
		RemotePath: e.RemotePath,
		RemoteURL:  e.RemoteURL,
		Error:      e.Error,
		Timestamp:  e.Timestamp,
	})
}

// UnmarshalJSON decodes the wire shape produced by MarshalJSON.
func (e *Event) UnmarshalJSON(data []byte) error {
	var wire eventWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*e = Event{
		Type:       wire.Type,
		JobID:      wire.JobID,
		BatchID:    wire.BatchID,
		Reference:  wire.Reference,
		FileName:   wire.FileName,
		FileType:   wire.FileType,
		DeviceID:   wire.DeviceID,
		Progress:   wire.Progress,
		Duration:   time.Duration(wire.Duration * float64(time.Second)),
		RemotePath: wire.RemotePath,
		RemoteURL:  wire.RemoteURL,
		Error:      wire.Error,
		Timestamp:  wire.Timestamp,
	}
	return nil
}

// Sink receives upload events. Implementations must be safe for concurrent use.
type Sink interface {
	Notify(ctx context.Context, event Event) error
}

// Func adapts a function to a Sink.
type Func func(ctx context.Context, event Event) error

func (f Func) Notify(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Multi calls every sink and joins their errors.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
