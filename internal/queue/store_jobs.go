package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Insert persists a new job and assigns its id and timestamps. Status defaults
// to queued when unset.
func (s *Store) Insert(ctx context.Context, job *Job) (int64, error) {
	if job == nil {
		return 0, errors.New("queue: job is nil")
	}
	if strings.TrimSpace(job.FilePath) == "" {
		return 0, errors.New("queue: file path is required")
	}
	if job.Status == "" {
		job.Status = StatusQueued
	}
	if strings.TrimSpace(job.MetadataJSON) == "" {
		job.MetadataJSON = "{}"
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            batch_id, reference, file_path, file_name, file_type, sub_type, resolution,
            file_size, status, priority, created_at, updated_at, remote_path, remote_url,
            upload_attempts, upload_progress, upload_complete, file_deleted, upload_date,
            metadata, file_error, upload_error
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.BatchID,
		nullableString(job.Reference),
		job.FilePath,
		job.FileName,
		job.FileType,
		nullableString(job.SubType),
		nullableString(job.Resolution),
		job.FileSize,
		string(job.Status),
		job.Priority,
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
		nullableString(job.RemotePath),
		nullableString(job.RemoteURL),
		job.UploadAttempts,
		job.UploadProgress,
		boolToInt(job.UploadComplete),
		boolToInt(job.FileDeleted),
		nullableTime(job.UploadDate),
		job.MetadataJSON,
		nullableString(job.FileError),
		nullableString(job.UploadError),
	)
	if err != nil {
		return 0, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("fetch inserted id: %w", err)
	}
	job.ID = id
	return id, nil
}

// Get fetches a job by id. A missing row returns (nil, nil).
func (s *Store) Get(ctx context.Context, id int64) (*Job, error) {
	return readWithRetry(ctx, func(ctx context.Context) (*Job, error) {
		return s.get(ctx, id)
	})
}

func (s *Store) get(ctx context.Context, id int64) (*Job, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// Update applies the patch unconditionally and refreshes updated_at. It
// reports false when no row has the id.
func (s *Store) Update(ctx context.Context, id int64, patch Patch) (bool, error) {
	set, args := patch.clause(time.Now().UTC())
	args = append(args, id)
	res, err := s.execWithRetry(ctx, `UPDATE jobs SET `+set+` WHERE id = ?`, args...)
	if err != nil {
		return false, fmt.Errorf("update job %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update job %d: %w", id, err)
	}
	return n > 0, nil
}

// Transition applies the patch only while the job is still in status from.
// False means the row is absent or another writer moved it first.
func (s *Store) Transition(ctx context.Context, id int64, from Status, patch Patch) (bool, error) {
	set, args := patch.clause(time.Now().UTC())
	args = append(args, id, string(from))
	res, err := s.execWithRetry(ctx, `UPDATE jobs SET `+set+` WHERE id = ? AND status = ?`, args...)
	if err != nil {
		return false, fmt.Errorf("transition job %d from %s: %w", id, from, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition job %d from %s: %w", id, from, err)
	}
	return n > 0, nil
}

// Claim moves a queued job to uploading with progress reset.
func (s *Store) Claim(ctx context.Context, id int64) (bool, error) {
	return s.Transition(ctx, id, StatusQueued, NewPatch().Status(StatusUploading).Progress(0))
}
