package queue

import (
	"context"
	"fmt"
	"time"
)

// AppendAttempt writes one row to the delivery log. UploadDate defaults to now.
func (s *Store) AppendAttempt(ctx context.Context, attempt Attempt) (int64, error) {
	if attempt.UploadDate.IsZero() {
		attempt.UploadDate = time.Now()
	}
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO uploads (file_id, batch_id, reference, file_name, file_type, remote_path, upload_date, success, error)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.JobID,
		nullableString(attempt.BatchID),
		nullableString(attempt.Reference),
		nullableString(attempt.FileName),
		nullableString(attempt.FileType),
		nullableString(attempt.RemotePath),
		formatTime(attempt.UploadDate),
		boolToInt(attempt.Success),
		nullableString(attempt.Error),
	)
	if err != nil {
		return 0, fmt.Errorf("append attempt for job %d: %w", attempt.JobID, err)
	}
	return res.LastInsertId()
}

// Attempts lists the delivery log for a job, oldest first.
func (s *Store) Attempts(ctx context.Context, jobID int64) ([]Attempt, error) {
	return readWithRetry(ctx, func(ctx context.Context) ([]Attempt, error) {
		return s.attempts(ctx, jobID)
	})
}

func (s *Store) attempts(ctx context.Context, jobID int64) ([]Attempt, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+attemptColumns+` FROM uploads WHERE file_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}
