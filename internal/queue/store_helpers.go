package queue

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, batch_id, reference, file_path, file_name, file_type, sub_type, resolution, file_size, status, priority, created_at, updated_at, remote_path, remote_url, upload_attempts, upload_progress, upload_complete, file_deleted, upload_date, metadata, file_error, upload_error"

const attemptColumns = "id, file_id, batch_id, reference, file_name, file_type, remote_path, upload_date, success, error"

// timestampLayout is fixed width so text comparison in SQL matches time order.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job         Job
		reference   sql.NullString
		subType     sql.NullString
		resolution  sql.NullString
		statusStr   string
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
		remotePath  sql.NullString
		remoteURL   sql.NullString
		complete    sql.NullInt64
		deleted     sql.NullInt64
		uploadDate  sql.NullString
		metadata    sql.NullString
		fileError   sql.NullString
		uploadError sql.NullString
	)

	if err := scanner.Scan(
		&job.ID,
		&job.BatchID,
		&reference,
		&job.FilePath,
		&job.FileName,
		&job.FileType,
		&subType,
		&resolution,
		&job.FileSize,
		&statusStr,
		&job.Priority,
		&createdRaw,
		&updatedRaw,
		&remotePath,
		&remoteURL,
		&job.UploadAttempts,
		&job.UploadProgress,
		&complete,
		&deleted,
		&uploadDate,
		&metadata,
		&fileError,
		&uploadError,
	); err != nil {
		return nil, err
	}

	job.Reference = reference.String
	job.SubType = subType.String
	job.Resolution = resolution.String
	job.Status = Status(statusStr)
	job.RemotePath = remotePath.String
	job.RemoteURL = remoteURL.String
	job.UploadComplete = complete.Valid && complete.Int64 != 0
	job.FileDeleted = deleted.Valid && deleted.Int64 != 0
	job.MetadataJSON = metadata.String
	job.FileError = fileError.String
	job.UploadError = uploadError.String

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if uploadDate.Valid {
		if ts, err := parseTimeString(uploadDate.String); err == nil {
			job.UploadDate = &ts
		}
	}
	return &job, nil
}

func scanAttempt(scanner interface{ Scan(dest ...any) error }) (Attempt, error) {
	var (
		attempt    Attempt
		batchID    sql.NullString
		reference  sql.NullString
		fileName   sql.NullString
		fileType   sql.NullString
		remotePath sql.NullString
		dateRaw    string
		success    int
		errMsg     sql.NullString
	)
	if err := scanner.Scan(&attempt.ID, &attempt.JobID, &batchID, &reference, &fileName, &fileType, &remotePath, &dateRaw, &success, &errMsg); err != nil {
		return Attempt{}, err
	}
	attempt.BatchID = batchID.String
	attempt.Reference = reference.String
	attempt.FileName = fileName.String
	attempt.FileType = fileType.String
	attempt.RemotePath = remotePath.String
	attempt.Success = success != 0
	attempt.Error = errMsg.String
	if ts, err := parseTimeString(dateRaw); err == nil {
		attempt.UploadDate = ts
	}
	return attempt, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return formatTime(*value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timestampLayout)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timestampLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
