package workflow

import (
	"context"
	"errors"
	"time"

	"romimport/internal/logging"
	"romimport/internal/queue"
	"romimport/internal/statusbus"
)

// transition moves item to status through the store's state machine and
// publishes the change. A removed item surfaces as errItemRemoved.
func (m *Manager) transition(ctx context.Context, item *queue.Item, to queue.Status, message string) error {
	from := item.Status
	if err := m.store.Transition(ctx, item, to, message); err != nil {
		if errors.Is(err, queue.ErrItemNotFound) {
			return errItemRemoved
		}
		return err
	}
	m.publish(item, from, message)
	return nil
}

func (m *Manager) publish(item *queue.Item, from queue.Status, message string) {
	at := item.UpdatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	m.bus.Publish(statusbus.Change{
		ItemID:  item.ID,
		URL:     item.URL,
		From:    from,
		To:      item.Status,
		Message: message,
		At:      at,
	})
}

// onItemStarted marks the start of a queue run for the drain summary.
func (m *Manager) onItemStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queueActive {
		return
	}
	m.queueActive = true
	m.queueStart = time.Now()
}

// checkQueueCompletion logs a summary once nothing is queued or processing.
func (m *Manager) checkQueueCompletion(ctx context.Context) {
	health, err := m.store.Health(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("shutting down, could not check queue completion")
		} else {
			m.logger.Warn("queue stats unavailable; completion summary skipped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_stats_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}
		return
	}
	if health.Queued+health.Processing > 0 {
		return
	}
	m.sweepStaging(ctx)

	m.mu.Lock()
	if !m.queueActive {
		m.mu.Unlock()
		return
	}
	start := m.queueStart
	m.queueActive = false
	m.queueStart = time.Time{}
	m.mu.Unlock()

	m.logger.Info("queue drained",
		logging.String(logging.FieldEventType, "queue_drained"),
		logging.Int("success", health.Success),
		logging.Int("failure", health.Failure),
		logging.Int("conflict", health.Conflict),
		logging.Int("partial", health.Partial),
		logging.Duration("duration", time.Since(start)),
	)
}
