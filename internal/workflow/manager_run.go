package workflow

import (
	"context"
	"fmt"
	"time"

	"courier/internal/logging"
	"courier/internal/queue"
	"courier/internal/scheduler"
	"courier/internal/services"
)

// Start recovers persisted work and launches the worker pool and retention
// sweeper. Jobs an unclean shutdown left uploading go back to queued, then
// every queued job is scheduled at its persisted priority.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateStopped {
		state := m.state
		m.mu.Unlock()
		return services.Wrap(services.ErrInvalidState, "queue-service", "start", fmt.Sprintf("service is %s", state), nil)
	}
	workers := max(m.cfg.Queue.WorkerThreads, 1)
	sched := scheduler.New()
	runCtx, cancel := context.WithCancel(ctx)
	run := &runState{cancel: cancel, sched: sched}
	m.sched = sched
	m.run = run
	m.state = StateRunning
	m.lastErr = nil
	m.mu.Unlock()

	m.runPreflightChecks(ctx)

	recovered, err := m.recover(ctx, sched)
	if err != nil {
		cancel()
		m.mu.Lock()
		m.state = StateStopped
		m.run = nil
		m.lastErr = err
		m.mu.Unlock()
		return err
	}

	for i := 1; i <= workers; i++ {
		name := fmt.Sprintf("worker-%d", i)
		store, dedicated := m.workerStore(runCtx, name)
		run.wg.Add(1)
		go m.runWorker(runCtx, run, name, store, dedicated)
	}
	if m.sweeper != nil {
		run.wg.Add(1)
		go func() {
			defer run.wg.Done()
			m.sweeper.Run(runCtx)
		}()
	}

	m.logger.Info("queue service started",
		logging.Int("workers", workers),
		logging.Int("recovered", recovered),
		logging.String("transport", m.deliverer.Name()),
		logging.String(logging.FieldEventType, "service_started"),
	)
	return nil
}

// recover resets interrupted uploads and schedules every queued job. It runs
// before any worker exists so a reset can never race a live claim.
func (m *Manager) recover(ctx context.Context, sched *scheduler.Queue) (int, error) {
	reset, err := m.store.ResetUploading(ctx)
	if err != nil {
		return 0, fmt.Errorf("recover interrupted uploads: %w", err)
	}
	if reset > 0 {
		m.logger.Info("interrupted uploads re-queued",
			logging.Int64("count", reset),
			logging.String(logging.FieldEventType, "recovery_reset"),
		)
	}
	pending, err := m.store.Pending(ctx)
	if err != nil {
		return 0, fmt.Errorf("load pending jobs: %w", err)
	}
	for _, job := range pending {
		if job.Status == queue.StatusQueued {
			sched.Push(job.Priority, job.ID)
		}
	}
	m.metrics.SetQueueDepth(sched.Len())
	return len(pending), nil
}

func (m *Manager) workerStore(ctx context.Context, name string) (*queue.Store, bool) {
	store, err := m.store.Dedicated(ctx)
	if err != nil {
		logging.WarnWithContext(m.logger, "dedicated store connection unavailable; worker shares the pool", "worker_store_fallback",
			logging.String(logging.FieldWorker, name),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the database file and open file limits"),
			logging.String(logging.FieldImpact, "worker uses the shared connection pool"),
		)
		return m.store, false
	}
	return store, true
}

// Stop cancels the workers and waits up to stop_timeout for them to return.
// In-flight transfers run on a detached context and finish on their own; until
// they do the service stays stopping and Start is refused, so a restart cannot
// re-queue a job a previous run still owns.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.state != StateRunning || m.run == nil {
		m.mu.Unlock()
		return
	}
	run := m.run
	m.state = StateStopping
	m.mu.Unlock()

	run.stopping.Store(true)
	run.cancel()

	done := make(chan struct{})
	go func() {
		run.wg.Wait()
		close(done)
	}()

	timeout := m.cfg.StopTimeout()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-done:
		m.finishStop(run)
	case <-time.After(timeout):
		logging.WarnWithContext(m.logger, "workers did not stop before timeout", "service_stop_timeout",
			logging.Duration("timeout", timeout),
			logging.String(logging.FieldErrorHint, "a transfer is still running; it will finish in the background"),
			logging.String(logging.FieldImpact, "service stays stopping until the transfer ends"),
		)
		go func() {
			<-done
			m.finishStop(run)
		}()
	}
}

func (m *Manager) finishStop(run *runState) {
	m.mu.Lock()
	if m.run != run {
		m.mu.Unlock()
		return
	}
	m.state = StateStopped
	m.run = nil
	m.mu.Unlock()
	m.logger.Info("queue service stopped", logging.String(logging.FieldEventType, "service_stopped"))
}
