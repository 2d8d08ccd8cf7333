package workflow

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/notifications"
	"courier/internal/queue"
	"courier/internal/retention"
	"courier/internal/scheduler"
	"courier/internal/telemetry"
	"courier/internal/transport"
)

// Manager is the queue service: enqueue, worker pool, recovery, and retries.
type Manager struct {
	cfg       *config.Config
	store     *queue.Store
	deliverer transport.Deliverer
	sink      notifications.Sink
	metrics   *telemetry.Metrics
	sweeper   *retention.Sweeper
	logger    *slog.Logger

	skipPreflight bool

	mu      sync.RWMutex
	state   State
	run     *runState
	sched   *scheduler.Queue
	lastErr error
	active  atomic.Int32
}

// runState belongs to one Start/Stop cycle so a timed-out Stop never shares
// a WaitGroup with the next Start.
type runState struct {
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopping atomic.Bool
	sched    *scheduler.Queue
}

// ManagerOption configures optional Manager collaborators.
type ManagerOption func(*Manager)

// WithMetrics records delivery metrics.
func WithMetrics(metrics *telemetry.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// WithSweeper runs the retention sweeper alongside the workers.
func WithSweeper(sweeper *retention.Sweeper) ManagerOption {
	return func(m *Manager) { m.sweeper = sweeper }
}

// WithoutPreflight skips the readiness checks logged at Start.
func WithoutPreflight() ManagerOption {
	return func(m *Manager) { m.skipPreflight = true }
}

// NewManager constructs a stopped queue service. A nil sink discards events.
func NewManager(cfg *config.Config, store *queue.Store, deliverer transport.Deliverer, sink notifications.Sink, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if sink == nil {
		sink = notifications.Nop{}
	}
	m := &Manager{
		cfg:       cfg,
		store:     store,
		deliverer: deliverer,
		sink:      sink,
		logger:    logging.NewComponentLogger(logger, "queue-service"),
		state:     StateStopped,
		sched:     scheduler.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Scheduler exposes the current scheduling queue for status output.
func (m *Manager) Scheduler() *scheduler.Queue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sched
}

func (m *Manager) push(priority int, jobID int64) {
	sched := m.Scheduler()
	sched.Push(priority, jobID)
	m.metrics.SetQueueDepth(sched.Len())
}
