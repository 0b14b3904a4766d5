package workflow

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"romimport/internal/grouping"
	"romimport/internal/logging"
	"romimport/internal/queue"
	"romimport/internal/services"
	"romimport/internal/statusbus"
)

// Add appends url to the queue. A URL that is already queued returns the
// existing item untouched.
func (m *Manager) Add(ctx context.Context, url string) (*queue.Item, error) {
	path, err := absPath(url)
	if err != nil {
		return nil, err
	}
	item, _, err := m.enqueue(ctx, m.logger, queue.NewItem{URL: path})
	return item, err
}

// AddMany appends every path in import order: playlists, cue sheets, other
// files, then artwork. Directories are walked with the configured include
// and exclude patterns. Failures for individual paths are collected and the
// rest are still added.
func (m *Manager) AddMany(ctx context.Context, urls []string) ([]*queue.Item, error) {
	var errs services.MultiError
	var files []string
	for _, url := range urls {
		path, err := absPath(url)
		if err != nil {
			errs.Add(err)
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			errs.Add(services.Wrap(services.ErrNotFound, "queue", "add", path, err))
			continue
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		found, err := m.scanDirectory(path)
		if err != nil {
			errs.Add(services.Wrap(services.ErrNotFound, "queue", "scan", path, err))
			continue
		}
		files = append(files, found...)
	}

	items := make([]*queue.Item, 0, len(files))
	for _, path := range grouping.SortForAdd(files) {
		item, _, err := m.enqueue(ctx, m.logger, queue.NewItem{URL: path})
		if err != nil {
			errs.Add(err)
			continue
		}
		items = append(items, item)
	}
	return items, errs.Err()
}

// enqueue adds one item, announces it and wakes any partial item that was
// waiting for the file.
func (m *Manager) enqueue(ctx context.Context, logger *slog.Logger, req queue.NewItem) (*queue.Item, bool, error) {
	item, created, err := m.store.Add(ctx, req)
	if err != nil {
		return nil, false, err
	}
	if !created {
		logger.Debug("already queued", logging.String(logging.FieldURL, req.URL), logging.Int64(logging.FieldItemID, item.ID))
		return item, false, nil
	}
	m.publish(item, "", "added")
	m.requeuePartials(ctx, logger, []string{item.URL})
	m.notify()
	return item, true, nil
}

// Remove deletes the items at the given list positions whatever their
// status. An item being processed is cancelled at its next step boundary
// and its results are discarded.
func (m *Manager) Remove(ctx context.Context, indices ...int) error {
	items, err := m.store.List(ctx)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(indices))
	seen := make(map[int64]struct{}, len(indices))
	for _, index := range indices {
		if index < 0 || index >= len(items) {
			return services.Wrap(services.ErrValidation, "queue", "remove", fmt.Sprintf("index %d out of range", index), nil)
		}
		id := items[index].ID
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	var errs services.MultiError
	for _, id := range ids {
		m.mu.Lock()
		if m.current == id {
			m.cancelled[id] = struct{}{}
		}
		m.mu.Unlock()
		if _, err := m.store.Remove(ctx, id); err != nil {
			errs.Add(err)
			continue
		}
		m.logger.Info("item removed",
			logging.Int64(logging.FieldItemID, id),
			logging.String(logging.FieldEventType, "item_removed"),
		)
	}
	return errs.Err()
}

// ChooseSystem settles a conflict. The item goes back to queued in place and
// keeps its cached digest.
func (m *Manager) ChooseSystem(ctx context.Context, id int64, system string) error {
	item, err := m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return services.Wrap(services.ErrNotFound, "queue", "choose", fmt.Sprintf("item %d", id), nil)
	}
	if item.Status != queue.StatusConflict {
		return services.Wrap(services.ErrValidation, "queue", "choose",
			fmt.Sprintf("item %d is %s, not in conflict", id, item.Status), nil)
	}
	system = strings.TrimSpace(system)
	if !m.identity().Snapshot().Known(system) {
		return services.Wrap(services.ErrUnsupportedSystem, "queue", "choose", "unknown system "+system, nil)
	}
	item.ChosenSystem = system
	item.ResetOutcome()
	if err := m.transition(ctx, item, queue.StatusQueued, "system chosen: "+system); err != nil {
		return err
	}
	m.notify()
	return nil
}

// ClearCompleted drops successful items.
func (m *Manager) ClearCompleted(ctx context.Context) (int64, error) {
	return m.store.ClearCompleted(ctx)
}

// ClearFailed drops failed items.
func (m *Manager) ClearFailed(ctx context.Context) (int64, error) {
	return m.store.ClearFailed(ctx)
}

// RetryFailed requeues failed items, all of them when ids is empty.
func (m *Manager) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	n, err := m.store.RetryFailed(ctx, ids...)
	if n > 0 {
		m.notify()
	}
	return n, err
}

// Items returns the queue in processing order.
func (m *Manager) Items(ctx context.Context) ([]*queue.Item, error) {
	return m.store.List(ctx)
}

// History returns the recorded status changes of one item.
func (m *Manager) History(ctx context.Context, id int64) ([]queue.Transition, error) {
	return m.store.History(ctx, id)
}

// Conflicts lists the items waiting for ChooseSystem with their list index.
func (m *Manager) Conflicts(ctx context.Context) ([]ConflictRecord, error) {
	items, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	var records []ConflictRecord
	for index, item := range items {
		if item.Status != queue.StatusConflict {
			continue
		}
		records = append(records, ConflictRecord{
			ItemID:  item.ID,
			Index:   index,
			URL:     item.URL,
			Systems: item.CandidateSystems(),
		})
	}
	return records, nil
}

// Subscribe opens a stream of status changes.
func (m *Manager) Subscribe(buffer int) *statusbus.Subscription {
	return m.bus.Subscribe(buffer)
}

// scanDirectory lists the files under root that match an include pattern
// and no exclude pattern, in import order.
func (m *Manager) scanDirectory(root string) ([]string, error) {
	fsys := os.DirFS(root)
	include := m.cfg.Import.Include
	if len(include) == 0 {
		include = []string{"**/*"}
	}
	seen := make(map[string]struct{})
	var files []string
	for _, pattern := range include {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("include pattern %q: %w", pattern, err)
		}
		for _, rel := range matches {
			if _, dup := seen[rel]; dup || m.excluded(rel) {
				continue
			}
			seen[rel] = struct{}{}
			files = append(files, filepath.Join(root, filepath.FromSlash(rel)))
		}
	}
	if len(files) == 0 {
		if _, err := fs.Stat(fsys, "."); err != nil {
			return nil, err
		}
	}
	return grouping.SortForAdd(files), nil
}

// excluded reports whether the slash-separated relative path matches an
// exclude pattern.
func (m *Manager) excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range m.cfg.Import.Exclude {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func absPath(url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", services.Wrap(services.ErrValidation, "queue", "add", "empty path", nil)
	}
	path, err := filepath.Abs(url)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", url, err)
	}
	return path, nil
}
