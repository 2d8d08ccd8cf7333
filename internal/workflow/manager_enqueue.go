package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"courier/internal/logging"
	"courier/internal/queue"
	"courier/internal/services"
)

// EnqueueBatch validates every file, then persists and schedules one job per
// file. Nothing is inserted when any file fails validation. An empty
// reference gets a generated batch id, which then serves as the reference too.
func (m *Manager) EnqueueBatch(ctx context.Context, reference string, files []FileSpec) (EnqueueResult, error) {
	if len(files) == 0 {
		return EnqueueResult{}, services.Wrap(services.ErrValidation, "queue-service", "enqueue", "batch has no files", nil)
	}
	sizes := make([]int64, len(files))
	for i, spec := range files {
		size, err := validateFile(spec.Path)
		if err != nil {
			return EnqueueResult{}, err
		}
		sizes[i] = size
	}

	reference = strings.TrimSpace(reference)
	if reference == "" {
		reference = newBatchID(time.Now())
	}
	batchID := reference

	result := EnqueueResult{BatchID: batchID, JobIDs: make([]int64, 0, len(files))}
	ceiling := m.cfg.Queue.PriorityCeiling
	for i, spec := range files {
		job, err := m.buildJob(batchID, reference, spec, sizes[i], ceiling)
		if err != nil {
			return result, err
		}
		id, err := m.store.Insert(ctx, job)
		if err != nil {
			m.setLastError(err)
			return result, fmt.Errorf("enqueue %s: %w", job.FileName, err)
		}
		result.JobIDs = append(result.JobIDs, id)
		m.push(job.Priority, id)
	}

	m.logger.Info("batch enqueued",
		logging.String(logging.FieldBatchID, batchID),
		logging.Int("files", len(result.JobIDs)),
		logging.String(logging.FieldEventType, "batch_enqueued"),
	)
	return result, nil
}

func (m *Manager) buildJob(batchID, reference string, spec FileSpec, size int64, ceiling int) (*queue.Job, error) {
	fileType := strings.ToLower(strings.TrimSpace(spec.Type))
	if fileType == "" {
		fileType = "other"
	}
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		name = filepath.Base(spec.Path)
	}
	name = norm.NFC.String(name)

	priority := defaultPriority(fileType)
	if spec.Priority != nil {
		priority = *spec.Priority
	}
	priority = min(max(priority, 0), ceiling)

	metadata := "{}"
	if len(spec.Metadata) > 0 {
		raw, err := json.Marshal(spec.Metadata)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "queue-service", "enqueue", "metadata is not JSON encodable", err)
		}
		metadata = string(raw)
	}

	return &queue.Job{
		BatchID:      batchID,
		Reference:    reference,
		FilePath:     spec.Path,
		FileName:     name,
		FileType:     fileType,
		SubType:      strings.TrimSpace(spec.SubType),
		Resolution:   strings.TrimSpace(spec.Resolution),
		FileSize:     size,
		Status:       queue.StatusQueued,
		Priority:     priority,
		MetadataJSON: metadata,
	}, nil
}

func validateFile(path string) (int64, error) {
	if strings.TrimSpace(path) == "" {
		return 0, services.Wrap(services.ErrValidation, "queue-service", "enqueue", "file path is empty", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "queue-service", "enqueue", "file not found: "+path, err)
	}
	if !info.Mode().IsRegular() {
		return 0, services.Wrap(services.ErrValidation, "queue-service", "enqueue", "not a regular file: "+path, nil)
	}
	return info.Size(), nil
}

func newBatchID(now time.Time) string {
	return fmt.Sprintf("batch_%d_%s", now.Unix(), uuid.NewString()[:8])
}
