package queue

import (
	"strings"
	"time"
)

// Status represents the delivery lifecycle of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusUploading Status = "uploading"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusQueued,
	StatusUploading,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether the status ends automatic processing.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one artifact's delivery record.
type Job struct {
	ID             int64
	BatchID        string
	Reference      string
	FilePath       string
	FileName       string
	FileType       string
	SubType        string
	Resolution     string
	FileSize       int64
	Status         Status
	Priority       int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	RemotePath     string
	RemoteURL      string
	UploadAttempts int
	UploadProgress int
	UploadComplete bool
	FileDeleted    bool
	UploadDate     *time.Time
	// MetadataJSON is caller-defined and persisted verbatim.
	MetadataJSON string
	FileError    string
	UploadError  string
}

// LastError returns the most relevant failure message recorded on the job.
func (j Job) LastError() string {
	if j.UploadError != "" {
		return j.UploadError
	}
	return j.FileError
}

// Attempt is one row of the append-only delivery attempt log.
type Attempt struct {
	ID         int64
	JobID      int64
	BatchID    string
	Reference  string
	FileName   string
	FileType   string
	RemotePath string
	UploadDate time.Time
	Success    bool
	Error      string
}

// BatchSummary aggregates the jobs enqueued together under one batch id.
type BatchSummary struct {
	BatchID   string
	Reference string
	CreatedAt time.Time
	FileCount int
	Status    map[Status]int
	FileTypes []string
}

// Filter narrows Search results. Zero values are ignored.
type Filter struct {
	BatchID        string
	Reference      string
	FileType       string
	Statuses       []Status
	UploadComplete *bool
	FileDeleted    *bool
	CreatedBefore  time.Time
	UpdatedBefore  time.Time
	OlderThanDays  int
	SortBy         string
	Descending     bool
	Limit          int
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	JournalMode      string
	TotalJobs        int
	TotalAttempts    int
	Error            string
}
