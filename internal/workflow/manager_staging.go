package workflow

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"romimport/internal/logging"
	"romimport/internal/queue"
)

// sweepStaging deletes the archive extraction folders no unfinished item
// still points into. Members that failed keep their folder so a retry can
// find the file. It runs on the worker goroutine or before it starts, so no
// expansion is writing into staging at the same time.
func (m *Manager) sweepStaging(ctx context.Context) {
	staging := filepath.Clean(m.cfg.Paths.StagingDir)
	entries, err := os.ReadDir(staging)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			m.logger.Warn("failed to list staging directory", logging.String("path", staging), logging.Error(err))
		}
		return
	}
	if len(entries) == 0 {
		return
	}
	items, err := m.store.List(ctx)
	if err != nil {
		m.logger.Warn("staging sweep skipped; queue unavailable", logging.Error(err))
		return
	}
	inUse := make(map[string]struct{})
	for _, item := range items {
		if item.Status == queue.StatusSuccess {
			continue
		}
		if top, ok := stagingFolder(staging, item.URL); ok {
			inUse[top] = struct{}{}
		}
	}
	removed := 0
	for _, entry := range entries {
		if _, ok := inUse[entry.Name()]; ok {
			continue
		}
		path := filepath.Join(staging, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			m.logger.Warn("failed to remove staged files",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
			)
			continue
		}
		removed++
	}
	if removed > 0 {
		m.logger.Debug("staging swept",
			logging.String(logging.FieldEventType, "staging_swept"),
			logging.Int("removed", removed),
		)
	}
}

// stagingFolder returns the first path element of url below staging.
func stagingFolder(staging, url string) (string, bool) {
	rel, err := filepath.Rel(staging, filepath.Clean(url))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	top, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	return top, true
}
