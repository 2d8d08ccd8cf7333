package queue

import (
	"strings"
	"time"
)

// Patch is an immutable set of column assignments applied by Update and
// Transition. Each builder method returns a new Patch; setting the same column
// twice keeps the last value.
type Patch struct {
	sets []assignment
}

type assignment struct {
	column string
	value  any
}

// NewPatch returns an empty patch.
func NewPatch() Patch {
	return Patch{}
}

func (p Patch) with(column string, value any) Patch {
	next := make([]assignment, 0, len(p.sets)+1)
	for _, set := range p.sets {
		if set.column != column {
			next = append(next, set)
		}
	}
	next = append(next, assignment{column: column, value: value})
	return Patch{sets: next}
}

func (p Patch) Status(status Status) Patch { return p.with("status", string(status)) }

func (p Patch) Priority(priority int) Patch { return p.with("priority", priority) }

func (p Patch) Attempts(attempts int) Patch { return p.with("upload_attempts", attempts) }

// Progress clamps the value to 0..100.
func (p Patch) Progress(percent int) Patch {
	return p.with("upload_progress", min(max(percent, 0), 100))
}

func (p Patch) UploadComplete(done bool) Patch {
	return p.with("upload_complete", boolToInt(done))
}

func (p Patch) FileDeleted(deleted bool) Patch {
	return p.with("file_deleted", boolToInt(deleted))
}

// Remote records where the artifact landed.
func (p Patch) Remote(path, url string) Patch {
	return p.with("remote_path", nullableString(path)).with("remote_url", nullableString(url))
}

func (p Patch) UploadDate(at time.Time) Patch {
	return p.with("upload_date", formatTime(at))
}

func (p Patch) FileError(message string) Patch {
	return p.with("file_error", nullableString(strings.TrimSpace(message)))
}

func (p Patch) UploadError(message string) Patch {
	return p.with("upload_error", nullableString(strings.TrimSpace(message)))
}

// ClearErrors resets both error columns.
func (p Patch) ClearErrors() Patch {
	return p.with("file_error", nil).with("upload_error", nil)
}

func (p Patch) Metadata(raw string) Patch {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	return p.with("metadata", raw)
}

// Empty reports whether the patch assigns nothing.
func (p Patch) Empty() bool {
	return len(p.sets) == 0
}

// clause renders the SET list with updated_at appended and returns the bound
// arguments in the same order.
func (p Patch) clause(now time.Time) (string, []any) {
	parts := make([]string, 0, len(p.sets)+1)
	args := make([]any, 0, len(p.sets)+1)
	for _, set := range p.sets {
		parts = append(parts, set.column+" = ?")
		args = append(args, set.value)
	}
	parts = append(parts, "updated_at = ?")
	args = append(args, formatTime(now))
	return strings.Join(parts, ", "), args
}
