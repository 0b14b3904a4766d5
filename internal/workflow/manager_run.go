package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"romimport/internal/logging"
	"romimport/internal/queue"
)

// Start begins background processing. It is a no-op when the worker is
// already running and clears a pause.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.paused = false
		m.busy = true
		m.mu.Unlock()
		m.notify()
		return nil
	}
	m.mu.Unlock()

	if err := m.runPreflightChecks(ctx); err != nil {
		return err
	}
	reclaimed, err := m.store.ResetStuckProcessing(ctx)
	if err != nil {
		return fmt.Errorf("reclaim interrupted items: %w", err)
	}
	if reclaimed > 0 {
		m.logger.Info("requeued items interrupted by a previous run",
			logging.Int64("count", reclaimed),
			logging.String(logging.FieldEventType, "queue_reclaim"),
		)
	}
	m.sweepStaging(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.paused = false
	m.busy = true
	m.wg.Add(1)
	go m.run(runCtx)
	return nil
}

// Pause stops the worker from picking up new items. The item in flight
// finishes first. Add and Remove stay legal.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.paused {
		m.paused = true
		m.logger.Info("queue paused", logging.String(logging.FieldEventType, "queue_paused"))
	}
}

// Resume continues after Pause; it starts the worker if needed.
func (m *Manager) Resume(ctx context.Context) error {
	m.mu.Lock()
	wasPaused := m.paused
	m.paused = false
	m.mu.Unlock()
	if wasPaused {
		m.logger.Info("queue resumed", logging.String(logging.FieldEventType, "queue_resumed"))
	}
	return m.Start(ctx)
}

// Stop terminates background processing and waits for the worker to exit.
// An item interrupted mid-flight stays in processing and is requeued by the
// next Start.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.busy = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// WaitIdle blocks until the worker has nothing left to do, is paused, or is
// stopped.
func (m *Manager) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		if m.State() != StateProcessing {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if m.isPaused() {
			m.waitForItemOrShutdown(ctx)
			continue
		}

		gen := m.generation()
		item, err := m.store.NextQueued(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.handleNextItemError(ctx, err)
			continue
		}
		if item == nil {
			m.markIdle(gen)
			m.waitForItemOrShutdown(ctx)
			continue
		}

		m.processItem(ctx, item)
	}
}

func (m *Manager) handleNextItemError(ctx context.Context, err error) {
	m.setLastError(err)
	m.logger.Error("failed to fetch next queue item",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(m.cfg.ErrorRetryInterval()):
	}
}

func (m *Manager) waitForItemOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) isPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

func (m *Manager) generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen
}

// markIdle clears the busy flag unless something was queued after the empty
// read that led here.
func (m *Manager) markIdle(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen == gen {
		m.busy = false
	}
}

// setCurrent records the item in flight. Only the current item can carry a
// cancel flag, so any flag left from the previous item is dropped.
func (m *Manager) setCurrent(id int64) {
	m.mu.Lock()
	m.current = id
	clear(m.cancelled)
	m.mu.Unlock()
}

// isCancelled reports whether id was removed while in flight.
func (m *Manager) isCancelled(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.cancelled[id]
	return ok
}

// checkpoint is the cooperative cancellation point between steps.
func (m *Manager) checkpoint(ctx context.Context, item *queue.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.isCancelled(item.ID) {
		return errItemRemoved
	}
	return nil
}
