package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var sortColumns = map[string]struct{}{
	"id":         {},
	"created_at": {},
	"updated_at": {},
	"file_size":  {},
	"priority":   {},
}

// ErrUnknownSortColumn is returned by Search for a sort key outside the whitelist.
var ErrUnknownSortColumn = errors.New("unknown sort column")

// Search returns jobs matching every set field of the filter.
func (s *Store) Search(ctx context.Context, filter Filter) ([]*Job, error) {
	var (
		where []string
		args  []any
	)
	if filter.BatchID != "" {
		where = append(where, "batch_id = ?")
		args = append(args, filter.BatchID)
	}
	if filter.Reference != "" {
		where = append(where, "reference = ?")
		args = append(args, filter.Reference)
	}
	if filter.FileType != "" {
		where = append(where, "file_type = ?")
		args = append(args, filter.FileType)
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}
	if filter.UploadComplete != nil {
		where = append(where, "upload_complete = ?")
		args = append(args, boolToInt(*filter.UploadComplete))
	}
	if filter.FileDeleted != nil {
		where = append(where, "file_deleted = ?")
		args = append(args, boolToInt(*filter.FileDeleted))
	}
	if !filter.CreatedBefore.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, formatTime(filter.CreatedBefore))
	}
	if !filter.UpdatedBefore.IsZero() {
		where = append(where, "updated_at < ?")
		args = append(args, formatTime(filter.UpdatedBefore))
	}
	if filter.OlderThanDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -filter.OlderThanDays)
		where = append(where, "created_at < ?")
		args = append(args, formatTime(cutoff))
	}

	var query strings.Builder
	query.WriteString("SELECT " + jobColumns + " FROM jobs")
	if len(where) > 0 {
		query.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	column := strings.ToLower(strings.TrimSpace(filter.SortBy))
	if column == "" {
		column = "id"
	}
	if _, ok := sortColumns[column]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSortColumn, filter.SortBy)
	}
	order := "ASC"
	if filter.Descending {
		order = "DESC"
	}
	query.WriteString(" ORDER BY " + column + " " + order)
	if column != "id" {
		query.WriteString(", id " + order)
	}
	if filter.Limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	return s.queryJobs(ctx, query.String(), args...)
}

// Pending returns queued and uploading jobs in id order for crash recovery.
func (s *Store) Pending(ctx context.Context) ([]*Job, error) {
	return s.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status IN (?, ?) ORDER BY id`,
		string(StatusQueued), string(StatusUploading),
	)
}

// Expired returns delivered jobs whose local file is still on disk and that
// were created before the cutoff.
func (s *Store) Expired(ctx context.Context, cutoff time.Time) ([]*Job, error) {
	return s.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE status = ? AND upload_complete = 1 AND file_deleted = 0 AND created_at < ?
         ORDER BY id`,
		string(StatusCompleted), formatTime(cutoff),
	)
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]*Job, error) {
	return readWithRetry(ctx, func(ctx context.Context) ([]*Job, error) {
		return s.queryJobsOnce(ctx, query, args...)
	})
}

func (s *Store) queryJobsOnce(ctx context.Context, query string, args ...any) ([]*Job, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// StatusSummary counts jobs per status. Every known status is present.
func (s *Store) StatusSummary(ctx context.Context) (map[Status]int, error) {
	return readWithRetry(ctx, s.statusSummary)
}

func (s *Store) statusSummary(ctx context.Context) (map[Status]int, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("status summary: %w", err)
	}
	defer rows.Close()

	summary := make(map[Status]int, len(allStatuses))
	for _, status := range allStatuses {
		summary[status] = 0
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		summary[Status(status)] += count
	}
	return summary, rows.Err()
}

// Count returns the total number of job rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	return readWithRetry(ctx, func(ctx context.Context) (int, error) {
		var n int
		if err := s.q.QueryRowContext(ctx, `SELECT COUNT(1) FROM jobs`).Scan(&n); err != nil {
			return 0, fmt.Errorf("count jobs: %w", err)
		}
		return n, nil
	})
}

// Batches summarizes every batch, newest first.
func (s *Store) Batches(ctx context.Context) ([]BatchSummary, error) {
	return readWithRetry(ctx, s.batches)
}

func (s *Store) batches(ctx context.Context) ([]BatchSummary, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT batch_id, COALESCE(MAX(reference), ''), MIN(created_at), COUNT(1),
                COALESCE(GROUP_CONCAT(DISTINCT file_type), '')
         FROM jobs GROUP BY batch_id ORDER BY MIN(created_at) DESC, batch_id`)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	var (
		batches []BatchSummary
		index   = make(map[string]int)
	)
	for rows.Next() {
		var (
			summary    BatchSummary
			createdRaw string
			types      string
		)
		if err := rows.Scan(&summary.BatchID, &summary.Reference, &createdRaw, &summary.FileCount, &types); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		if ts, err := parseTimeString(createdRaw); err == nil {
			summary.CreatedAt = ts
		}
		if types != "" {
			summary.FileTypes = strings.Split(types, ",")
			sort.Strings(summary.FileTypes)
		}
		summary.Status = make(map[Status]int, len(allStatuses))
		for _, status := range allStatuses {
			summary.Status[status] = 0
		}
		index[summary.BatchID] = len(batches)
		batches = append(batches, summary)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	counts, err := s.q.QueryContext(ctx, `SELECT batch_id, status, COUNT(1) FROM jobs GROUP BY batch_id, status`)
	if err != nil {
		return nil, fmt.Errorf("batch status counts: %w", err)
	}
	defer counts.Close()
	for counts.Next() {
		var (
			batchID string
			status  string
			count   int
		)
		if err := counts.Scan(&batchID, &status, &count); err != nil {
			return nil, fmt.Errorf("scan batch status: %w", err)
		}
		if i, ok := index[batchID]; ok {
			batches[i].Status[Status(status)] += count
		}
	}
	return batches, counts.Err()
}
