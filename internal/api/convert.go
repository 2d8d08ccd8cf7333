package api

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"courier/internal/preflight"
	"courier/internal/queue"
	"courier/internal/retention"
	"courier/internal/workflow"
)

// FromJob converts a queue record to its API representation.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:             job.ID,
		BatchID:        job.BatchID,
		Reference:      job.Reference,
		FilePath:       job.FilePath,
		FileName:       job.FileName,
		FileType:       job.FileType,
		SubType:        job.SubType,
		Resolution:     job.Resolution,
		FileSize:       job.FileSize,
		Status:         string(job.Status),
		Priority:       job.Priority,
		Attempts:       job.UploadAttempts,
		Progress:       job.UploadProgress,
		UploadComplete: job.UploadComplete,
		FileDeleted:    job.FileDeleted,
		RemotePath:     job.RemotePath,
		RemoteURL:      job.RemoteURL,
		FileError:      job.FileError,
		UploadError:    job.UploadError,
		CreatedAt:      formatTime(job.CreatedAt),
		UpdatedAt:      formatTime(job.UpdatedAt),
	}
	if job.UploadDate != nil {
		dto.UploadDate = formatTime(*job.UploadDate)
	}
	if raw := strings.TrimSpace(job.MetadataJSON); raw != "" && raw != "{}" && json.Valid([]byte(raw)) {
		dto.Metadata = json.RawMessage(raw)
	}
	return dto
}

// FromJobs converts a slice of queue records into API DTOs.
func FromJobs(jobs []*queue.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		out = append(out, FromJob(job))
	}
	return out
}

// FromAttempts converts the attempt log.
func FromAttempts(attempts []queue.Attempt) []Attempt {
	out := make([]Attempt, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, Attempt{
			ID:         a.ID,
			JobID:      a.JobID,
			RemotePath: a.RemotePath,
			UploadDate: formatTime(a.UploadDate),
			Success:    a.Success,
			Error:      a.Error,
		})
	}
	return out
}

// FromBatches converts batch summaries. Every known status is present in
// each Status map.
func FromBatches(batches []queue.BatchSummary) []Batch {
	out := make([]Batch, 0, len(batches))
	for _, b := range batches {
		out = append(out, Batch{
			BatchID:   b.BatchID,
			Reference: b.Reference,
			CreatedAt: formatTime(b.CreatedAt),
			FileCount: b.FileCount,
			Status:    MergeStatusCounts(b.Status),
			FileTypes: append([]string{}, b.FileTypes...),
		})
	}
	return out
}

// MergeStatusCounts keys counts by status string, zero-filling missing ones.
func MergeStatusCounts(counts map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = counts[status]
	}
	return out
}

// FromServiceStatus converts the queue service status.
func FromServiceStatus(status workflow.ServiceStatus) ServiceStatus {
	return ServiceStatus{
		Running:       status.Running,
		State:         string(status.State),
		Queued:        status.Queued,
		Uploading:     status.Uploading,
		Completed:     status.Completed,
		Failed:        status.Failed,
		Total:         status.Total,
		WorkersActive: status.WorkersActive,
		QueueDepth:    status.QueueDepth,
		LastError:     status.LastError,
		Timestamp:     formatTime(status.Timestamp),
	}
}

// FromPreflight converts readiness check results.
func FromPreflight(results []preflight.Result) []PreflightCheck {
	if len(results) == 0 {
		return nil
	}
	out := make([]PreflightCheck, 0, len(results))
	for _, r := range results {
		out = append(out, PreflightCheck{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

// FromRetryResult converts a retry outcome. Both lists are non-nil.
func FromRetryResult(result workflow.RetryResult) RetryResponse {
	resp := RetryResponse{
		Successful: append([]int64{}, result.Successful...),
		Failed:     make([]RetryFailure, 0, len(result.Failed)),
	}
	for _, f := range result.Failed {
		resp.Failed = append(resp.Failed, RetryFailure{ID: f.JobID, Reason: f.Reason})
	}
	return resp
}

// FromSweepResult converts a retention result.
func FromSweepResult(result retention.Result) CleanupResponse {
	resp := CleanupResponse{
		Examined: result.Examined,
		Deleted:  result.Deleted,
		Marked:   result.Marked,
		Purged:   result.Purged,
	}
	for _, e := range result.Errors {
		resp.Errors = append(resp.Errors, e.Path+": "+e.Error.Error())
	}
	sort.Strings(resp.Errors)
	return resp
}

// FromDatabaseHealth converts store diagnostics.
func FromDatabaseHealth(h queue.DatabaseHealth) DatabaseHealth {
	return DatabaseHealth{
		DBPath:           h.DBPath,
		DatabaseExists:   h.DatabaseExists,
		DatabaseReadable: h.DatabaseReadable,
		SchemaVersion:    h.SchemaVersion,
		TableExists:      h.TableExists,
		ColumnsPresent:   append([]string(nil), h.ColumnsPresent...),
		MissingColumns:   append([]string(nil), h.MissingColumns...),
		IntegrityCheck:   h.IntegrityCheck,
		JournalMode:      h.JournalMode,
		TotalJobs:        h.TotalJobs,
		TotalAttempts:    h.TotalAttempts,
		Error:            h.Error,
	}
}

// ToFileSpecs converts enqueue request files for the queue service.
func ToFileSpecs(files []FileSpec) []workflow.FileSpec {
	out := make([]workflow.FileSpec, 0, len(files))
	for _, f := range files {
		out = append(out, workflow.FileSpec{
			Path:       f.Path,
			Name:       f.Name,
			Type:       f.Type,
			SubType:    f.SubType,
			Resolution: f.Resolution,
			Priority:   f.Priority,
			Metadata:   f.Metadata,
		})
	}
	return out
}

// ToSweepOptions converts a cleanup request.
func ToSweepOptions(req CleanupRequest) retention.Options {
	return retention.Options{
		OlderThanDays: req.OlderThanDays,
		BatchID:       req.BatchID,
		Reference:     req.Reference,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
