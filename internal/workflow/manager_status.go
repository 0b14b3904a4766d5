package workflow

import (
	"context"

	"romimport/internal/logging"
	"romimport/internal/queue"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	State             State
	LastError         string
	LastItem          *queue.Item
	QueueStats        map[queue.Status]int
	RegistryVersion   int64
	EnrichmentEnabled bool
}

// State reports idle, processing or paused.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch {
	case m.paused:
		return StatePaused
	case m.running && m.busy:
		return StateProcessing
	default:
		return StateIdle
	}
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	lastErr := m.lastErr
	lastItem := m.lastItem
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	summary := StatusSummary{
		State:             m.State(),
		QueueStats:        stats,
		RegistryVersion:   m.registry.Snapshot().Version,
		EnrichmentEnabled: m.enricher.Enabled(),
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastItem != nil {
		snapshot := *lastItem
		summary.LastItem = &snapshot
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastItem(item *queue.Item) {
	m.mu.Lock()
	if item != nil {
		snapshot := *item
		m.lastItem = &snapshot
	} else {
		m.lastItem = nil
	}
	m.mu.Unlock()
}
