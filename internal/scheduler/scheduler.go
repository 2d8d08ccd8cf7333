// Package scheduler holds the in-memory priority order of job ids awaiting
// delivery. The store remains authoritative; entries here are hints that a
// worker must confirm with a claim.
package scheduler

import (
	"container/heap"
	"context"
	"sort"
	"sync"
	"time"
)

// Entry is one scheduled job.
type Entry struct {
	Priority int
	JobID    int64
}

func (e Entry) less(other Entry) bool {
	if e.Priority != other.Priority {
		return e.Priority < other.Priority
	}
	return e.JobID < other.JobID
}

type entryHeap []Entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].less(h[j]) }
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(Entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Queue is a concurrency-safe min-heap ordered by (priority, job id).
type Queue struct {
	mu     sync.Mutex
	items  entryHeap
	signal chan struct{}
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Push adds an entry. It never blocks; duplicates are kept.
func (q *Queue) Push(priority int, jobID int64) {
	q.mu.Lock()
	heap.Push(&q.items, Entry{Priority: priority, JobID: jobID})
	q.mu.Unlock()
	q.notify()
}

// Pop removes the lowest entry, waiting up to timeout for one to arrive. The
// boolean is false on timeout or when ctx ends.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (Entry, bool) {
	if entry, ok := q.tryPop(); ok {
		return entry, true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return Entry{}, false
		case <-timer.C:
			return q.tryPop()
		case <-q.signal:
			if entry, ok := q.tryPop(); ok {
				return entry, true
			}
		}
	}
}

func (q *Queue) tryPop() (Entry, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return Entry{}, false
	}
	entry := heap.Pop(&q.items).(Entry)
	remaining := len(q.items)
	q.mu.Unlock()
	if remaining > 0 {
		// Hand the wakeup on so another waiting worker sees the rest.
		q.notify()
	}
	return entry, true
}

func (q *Queue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Len reports the number of scheduled entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns the entries in pop order without removing them.
func (q *Queue) Snapshot() []Entry {
	q.mu.Lock()
	out := make([]Entry, len(q.items))
	copy(out, q.items)
	q.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}
