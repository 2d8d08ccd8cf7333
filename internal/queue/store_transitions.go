package queue

import (
	"context"
	"fmt"
	"time"
)

// ResetUploading returns jobs left in uploading by an unclean shutdown to
// queued with progress cleared. Their priority is untouched.
func (s *Store) ResetUploading(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, upload_progress = 0, updated_at = ? WHERE status = ?`,
		string(StatusQueued),
		formatTime(time.Now()),
		string(StatusUploading),
	)
	if err != nil {
		return 0, fmt.Errorf("reset uploading jobs: %w", err)
	}
	return res.RowsAffected()
}

// MarkFileDeleted records that the local copy of a delivered job is gone.
func (s *Store) MarkFileDeleted(ctx context.Context, id int64) error {
	if _, err := s.Update(ctx, id, NewPatch().FileDeleted(true)); err != nil {
		return fmt.Errorf("mark file deleted: %w", err)
	}
	return nil
}
