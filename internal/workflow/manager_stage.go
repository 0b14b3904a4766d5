package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"

	"romimport/internal/logging"
	"romimport/internal/queue"
	"romimport/internal/services"
)

// processItem runs one queued item through the pipeline and records where it
// ended up.
func (m *Manager) processItem(ctx context.Context, item *queue.Item) {
	requestID := uuid.NewString()
	itemCtx := withItemContext(ctx, item, requestID)
	logger := m.itemLogger(itemCtx)

	m.setCurrent(item.ID)
	defer m.setCurrent(0)

	item.ResetOutcome()
	if err := m.transition(itemCtx, item, queue.StatusProcessing, "processing"); err != nil {
		if errors.Is(err, errItemRemoved) {
			return
		}
		logger.Error("failed to transition item to processing",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		m.setLastError(err)
		select {
		case <-ctx.Done():
		case <-time.After(m.cfg.ErrorRetryInterval()):
		}
		return
	}
	m.onItemStarted()
	m.setLastItem(item)

	start := time.Now()
	logger.Info("item started",
		logging.String(logging.FieldEventType, "item_start"),
		logging.String("kind", string(item.Kind)),
	)

	out := m.runSteps(itemCtx, logger, item)

	if m.isCancelled(item.ID) || errors.Is(out.err, errItemRemoved) {
		logger.Info("item removed while processing; results discarded",
			logging.String(logging.FieldEventType, "item_discarded"),
		)
		return
	}
	if out.err != nil && ctx.Err() != nil && errors.Is(out.err, context.Canceled) {
		logger.Debug("item interrupted by shutdown")
		return
	}

	m.applyOutcome(itemCtx, logger, item, out)
	logger.Info("item finished",
		logging.String(logging.FieldEventType, "item_complete"),
		logging.String("status", string(item.Status)),
		logging.String("system", item.ResolvedSystem),
		logging.Duration("item_duration", time.Since(start)),
	)
	m.setLastItem(item)
	m.checkQueueCompletion(ctx)
}

// runSteps executes the import steps with panic isolation. A panic fails
// this item only.
func (m *Manager) runSteps(ctx context.Context, logger *slog.Logger, item *queue.Item) (out outcome) {
	var catcher panics.Catcher
	catcher.Try(func() {
		out = m.importItem(ctx, logger, item)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		logger.Error("import step panicked",
			logging.String(logging.FieldEventType, "item_panic"),
			logging.String("panic", fmt.Sprint(recovered.Value)),
		)
		return fail(services.Wrap(services.ErrTransient, "import", "panic", "unexpected internal error", recovered.AsError()))
	}
	return out
}

func (m *Manager) importItem(ctx context.Context, logger *slog.Logger, item *queue.Item) outcome {
	if out, ok := m.foldIntoOwner(ctx, logger, item); ok {
		return out
	}
	if item.Kind == "" || item.Kind == queue.FileUnknown {
		kind, err := m.identity().ClassifyItem(stepContext(ctx, "classify"), item)
		if err != nil {
			return fail(err)
		}
		item.Kind = kind
	}
	if err := m.checkpoint(ctx, item); err != nil {
		return fail(err)
	}

	switch item.Kind {
	case queue.FileDirectory:
		return m.importDirectory(stepContext(ctx, "scan"), logger, item)
	case queue.FileArchive:
		if item.Expanded {
			return succeed("archive already expanded")
		}
		return m.expandArchive(stepContext(ctx, "expand"), logger, item)
	case queue.FileBIOS:
		return m.importBIOS(stepContext(ctx, "bios"), logger, item)
	case queue.FileArtwork:
		return m.importArtwork(stepContext(ctx, "artwork"), logger, item)
	default:
		return m.importGame(ctx, logger, item)
	}
}

// applyOutcome persists the final status and runs the follow-ups a success
// triggers.
func (m *Manager) applyOutcome(ctx context.Context, logger *slog.Logger, item *queue.Item, out outcome) {
	if out.status == queue.StatusFailure {
		m.recordFailure(ctx, logger, item, out.err)
		return
	}
	if err := m.transition(ctx, item, out.status, out.message); err != nil {
		m.logTransitionError(logger, err, string(out.status))
		return
	}
	if out.status != queue.StatusSuccess {
		return
	}
	m.markConstituents(ctx, logger, item, out.constituents)
	m.requeuePartials(ctx, logger, out.imported)
}

// foldIntoOwner settles an item whose file was already imported as part of
// another item's title.
func (m *Manager) foldIntoOwner(ctx context.Context, logger *slog.Logger, item *queue.Item) (outcome, bool) {
	owner, err := m.store.GroupOwner(ctx, item.ID, item.URL)
	if err != nil {
		logger.Warn("failed to look up grouping title", logging.Error(err))
		return outcome{}, false
	}
	if owner == nil {
		return outcome{}, false
	}
	item.ResolvedSystem = owner.ResolvedSystem
	item.Duplicate = owner.Duplicate
	item.Note = groupedNote(owner.ID)
	return succeed(item.Note), true
}

func groupedNote(id int64) string {
	return fmt.Sprintf("grouped into #%d", id)
}

// markConstituents moves the queue items of files folded into primary's
// title straight through processing to success so they are not imported on
// their own. While paused, queued constituents are left for the worker,
// which folds them through foldIntoOwner after Resume.
func (m *Manager) markConstituents(ctx context.Context, logger *slog.Logger, primary *queue.Item, paths []string) {
	note := groupedNote(primary.ID)
	paused := m.isPaused()
	for _, path := range paths {
		if path == primary.URL {
			continue
		}
		other, err := m.store.GetByURL(ctx, path)
		if err != nil {
			logger.Warn("failed to look up grouped file", logging.String("path", path), logging.Error(err))
			continue
		}
		if other == nil || other.ID == primary.ID {
			continue
		}
		switch other.Status {
		case queue.StatusPartial, queue.StatusConflict, queue.StatusFailure:
			other.ResetOutcome()
			if err := m.transition(ctx, other, queue.StatusQueued, note); err != nil {
				m.logTransitionError(logger, err, string(queue.StatusQueued))
				continue
			}
			if paused {
				continue
			}
		case queue.StatusQueued:
			if paused {
				continue
			}
		default:
			continue
		}
		other.ResetOutcome()
		other.ResolvedSystem = primary.ResolvedSystem
		other.Duplicate = primary.Duplicate
		other.Note = note
		if err := m.transition(ctx, other, queue.StatusProcessing, note); err != nil {
			m.logTransitionError(logger, err, string(queue.StatusProcessing))
			continue
		}
		if err := m.transition(ctx, other, queue.StatusSuccess, note); err != nil {
			m.logTransitionError(logger, err, string(queue.StatusSuccess))
		}
	}
}

// requeuePartials returns partial items to queued when one of paths is a
// file they were waiting for.
func (m *Manager) requeuePartials(ctx context.Context, logger *slog.Logger, paths []string) {
	if len(paths) == 0 {
		return
	}
	partials, err := m.store.ListPartial(ctx)
	if err != nil {
		logger.Warn("failed to list partial items", logging.Error(err))
		return
	}
	requeued := 0
	for _, partial := range partials {
		arrived := ""
		for _, path := range paths {
			if matchesMissing(partial.Missing, path) {
				arrived = path
				break
			}
		}
		if arrived == "" {
			continue
		}
		partial.ResetOutcome()
		if err := m.transition(ctx, partial, queue.StatusQueued, "missing file arrived: "+baseName(arrived)); err != nil {
			m.logTransitionError(logger, err, string(queue.StatusQueued))
			continue
		}
		requeued++
	}
	if requeued > 0 {
		logger.Info("requeued partial items",
			logging.Int("count", requeued),
			logging.String(logging.FieldEventType, "partial_requeue"),
		)
		m.notify()
	}
}
