package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a delivery record in a transport-friendly format.
type Job struct {
	ID             int64           `json:"id"`
	BatchID        string          `json:"batchId"`
	Reference      string          `json:"reference,omitempty"`
	FilePath       string          `json:"filePath"`
	FileName       string          `json:"fileName"`
	FileType       string          `json:"fileType"`
	SubType        string          `json:"subType,omitempty"`
	Resolution     string          `json:"resolution,omitempty"`
	FileSize       int64           `json:"fileSize"`
	Status         string          `json:"status"`
	Priority       int             `json:"priority"`
	Attempts       int             `json:"attempts"`
	Progress       int             `json:"progress"`
	UploadComplete bool            `json:"uploadComplete"`
	FileDeleted    bool            `json:"fileDeleted"`
	RemotePath     string          `json:"remotePath,omitempty"`
	RemoteURL      string          `json:"remoteUrl,omitempty"`
	UploadDate     string          `json:"uploadDate,omitempty"`
	FileError      string          `json:"fileError,omitempty"`
	UploadError    string          `json:"uploadError,omitempty"`
	CreatedAt      string          `json:"createdAt,omitempty"`
	UpdatedAt      string          `json:"updatedAt,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// Attempt is one entry of a job's delivery history.
type Attempt struct {
	ID         int64  `json:"id"`
	JobID      int64  `json:"jobId"`
	RemotePath string `json:"remotePath,omitempty"`
	UploadDate string `json:"uploadDate"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// Batch summarizes the jobs enqueued together.
type Batch struct {
	BatchID   string         `json:"batchId"`
	Reference string         `json:"reference,omitempty"`
	CreatedAt string         `json:"createdAt,omitempty"`
	FileCount int            `json:"fileCount"`
	Status    map[string]int `json:"status"`
	FileTypes []string       `json:"fileTypes"`
}

// ServiceStatus summarizes the queue service.
type ServiceStatus struct {
	Running       bool   `json:"running"`
	State         string `json:"state"`
	Queued        int    `json:"queued"`
	Uploading     int    `json:"uploading"`
	Completed     int    `json:"completed"`
	Failed        int    `json:"failed"`
	Total         int    `json:"total"`
	WorkersActive int    `json:"workersActive"`
	QueueDepth    int    `json:"queueDepth"`
	LastError     string `json:"lastError,omitempty"`
	Timestamp     string `json:"timestamp"`
}

// PreflightCheck reports one readiness check.
type PreflightCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool             `json:"running"`
	PID          int              `json:"pid"`
	DeviceID     string           `json:"deviceId"`
	Transport    string           `json:"transport"`
	QueueDBPath  string           `json:"queueDbPath"`
	LockFilePath string           `json:"lockFilePath"`
	Service      ServiceStatus    `json:"service"`
	Checks       []PreflightCheck `json:"checks,omitempty"`
}

// FileSpec is one file in an enqueue request.
type FileSpec struct {
	Path       string         `json:"path"`
	Name       string         `json:"name,omitempty"`
	Type       string         `json:"type,omitempty"`
	SubType    string         `json:"subType,omitempty"`
	Resolution string         `json:"resolution,omitempty"`
	Priority   *int           `json:"priority,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// EnqueueRequest submits a batch of files.
type EnqueueRequest struct {
	Reference string     `json:"reference,omitempty"`
	Files     []FileSpec `json:"files"`
}

// EnqueueResponse reports the created batch.
type EnqueueResponse struct {
	BatchID string  `json:"batchId"`
	JobIDs  []int64 `json:"jobIds"`
}

// RetryRequest names failed jobs to re-queue, or all of them.
type RetryRequest struct {
	IDs []int64 `json:"ids,omitempty"`
	All bool    `json:"all,omitempty"`
}

// RetryFailure explains why a job was not re-queued.
type RetryFailure struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

// RetryResponse partitions the requested ids.
type RetryResponse struct {
	Successful []int64        `json:"successful"`
	Failed     []RetryFailure `json:"failed"`
}

// CleanupRequest selects delivered files to delete now.
type CleanupRequest struct {
	OlderThanDays int    `json:"olderThanDays,omitempty"`
	BatchID       string `json:"batchId,omitempty"`
	Reference     string `json:"reference,omitempty"`
}

// CleanupResponse summarizes a cleanup or purge.
type CleanupResponse struct {
	Examined int      `json:"examined"`
	Deleted  int      `json:"deleted"`
	Marked   int      `json:"marked"`
	Purged   int64    `json:"purged"`
	Errors   []string `json:"errors,omitempty"`
}

// DatabaseHealth mirrors queue.DatabaseHealth.
type DatabaseHealth struct {
	DBPath           string   `json:"dbPath"`
	DatabaseExists   bool     `json:"databaseExists"`
	DatabaseReadable bool     `json:"databaseReadable"`
	SchemaVersion    int      `json:"schemaVersion"`
	TableExists      bool     `json:"tableExists"`
	ColumnsPresent   []string `json:"columnsPresent,omitempty"`
	MissingColumns   []string `json:"missingColumns,omitempty"`
	IntegrityCheck   bool     `json:"integrityCheck"`
	JournalMode      string   `json:"journalMode"`
	TotalJobs        int      `json:"totalJobs"`
	TotalAttempts    int      `json:"totalAttempts"`
	Error            string   `json:"error,omitempty"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single job and its attempt history.
type JobResponse struct {
	Job      Job       `json:"job"`
	Attempts []Attempt `json:"attempts"`
}

// BatchListResponse wraps batch summaries.
type BatchListResponse struct {
	Batches []Batch `json:"batches"`
}

// HealthResponse is returned by the liveness endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Running bool   `json:"running"`
}
