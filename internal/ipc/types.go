package ipc

import "courier/internal/api"

// StartRequest starts the queue service.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the queue service.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status, optionally with readiness checks.
type StatusRequest struct {
	Checks bool `json:"checks"`
}

// StatusResponse wraps the daemon status.
type StatusResponse struct {
	Status api.DaemonStatus `json:"status"`
}

// EnqueueRequest submits a batch.
type EnqueueRequest = api.EnqueueRequest

// EnqueueResponse reports the created batch.
type EnqueueResponse = api.EnqueueResponse

// ListRequest filters the job listing.
type ListRequest = api.ListRequest

// ListResponse contains jobs.
type ListResponse = api.JobListResponse

// DescribeRequest fetches a single job by id.
type DescribeRequest struct {
	ID int64 `json:"id"`
}

// DescribeResponse contains a job and its attempt log.
type DescribeResponse = api.JobResponse

// RetryRequest names failed jobs to re-queue.
type RetryRequest = api.RetryRequest

// RetryResponse partitions the requested ids.
type RetryResponse = api.RetryResponse

// BatchesRequest lists batch summaries.
type BatchesRequest struct{}

// BatchesResponse contains batch summaries.
type BatchesResponse = api.BatchListResponse

// CleanupRequest deletes delivered files now.
type CleanupRequest = api.CleanupRequest

// CleanupResponse summarizes a cleanup or purge.
type CleanupResponse = api.CleanupResponse

// PurgeRequest removes old rows for deleted files.
type PurgeRequest struct{}

// DatabaseHealthRequest fetches store diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse contains store diagnostics.
type DatabaseHealthResponse = api.DatabaseHealth
