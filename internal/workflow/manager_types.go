package workflow

import "time"

// State is the lifecycle of the queue service.
type State string

const (
	StateStopped  State = "stopped"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// FileSpec describes one file offered to EnqueueBatch.
type FileSpec struct {
	Path       string
	Name       string
	Type       string
	SubType    string
	Resolution string
	// Priority overrides the per-type default when set.
	Priority *int
	Metadata map[string]any
}

// EnqueueResult reports the batch id and the ids of the jobs created.
type EnqueueResult struct {
	BatchID string
	JobIDs  []int64
}

// RetryFailure explains why a job was not re-queued.
type RetryFailure struct {
	JobID  int64
	Reason string
}

// RetryResult partitions the requested ids.
type RetryResult struct {
	Successful []int64
	Failed     []RetryFailure
}

// ServiceStatus is a point-in-time view of the queue service.
type ServiceStatus struct {
	Queued        int
	Uploading     int
	Completed     int
	Failed        int
	Total         int
	WorkersActive int
	QueueDepth    int
	Running       bool
	State         State
	LastError     string
	Timestamp     time.Time
}

// Default scheduling priorities by file type. Lower runs first.
var typePriorities = map[string]int{
	"thumbnail": 1,
	"image":     2,
	"zip":       3,
}

const fallbackPriority = 2

func defaultPriority(fileType string) int {
	if p, ok := typePriorities[fileType]; ok {
		return p
	}
	return fallbackPriority
}
