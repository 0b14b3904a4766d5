package workflow

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"romimport/internal/fileutil"
	"romimport/internal/logging"
	"romimport/internal/textutil"
)

type placement struct {
	src   string
	dst   string
	moved bool
}

// placeTitle puts a title's files under library/<system>. A single file goes
// in directly; the files of a multi-file title share a folder named after the
// title so sheet references keep resolving.
func (m *Manager) placeTitle(system, stem string, constituents []string) ([]placement, error) {
	systemDir := filepath.Join(m.cfg.Paths.LibraryDir, system)
	if len(constituents) == 1 {
		return m.place(constituents, func(src string) string {
			return uniquePath(filepath.Join(systemDir, filepath.Base(src)))
		})
	}
	folder := textutil.SanitizeFileName(stem)
	if folder == "" {
		folder = strings.TrimSuffix(filepath.Base(constituents[0]), filepath.Ext(constituents[0]))
	}
	titleDir := uniquePath(filepath.Join(systemDir, folder))
	return m.place(constituents, func(src string) string {
		return filepath.Join(titleDir, filepath.Base(src))
	})
}

// place copies or moves each source to the path dest returns. On failure the
// files already placed are rolled back.
func (m *Manager) place(srcs []string, dest func(string) string) ([]placement, error) {
	placed := make([]placement, 0, len(srcs))
	for _, src := range srcs {
		p := placement{src: src, dst: dest(src), moved: m.shouldMove(src)}
		if err := m.placeFile(p.src, p.dst, p.moved); err != nil {
			m.rollback(m.logger, placed)
			return nil, fmt.Errorf("place %s: %w", filepath.Base(src), err)
		}
		placed = append(placed, p)
	}
	return placed, nil
}

// shouldMove reports whether src is consumed by placement. Files unpacked
// into staging are always moved.
func (m *Manager) shouldMove(src string) bool {
	if m.cfg.Import.MoveFiles {
		return true
	}
	staging := filepath.Clean(m.cfg.Paths.StagingDir)
	rel, err := filepath.Rel(staging, filepath.Clean(src))
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}

// rollback undoes placements: copies are deleted and moved files go back.
func (m *Manager) rollback(logger *slog.Logger, placed []placement) {
	for i := len(placed) - 1; i >= 0; i-- {
		p := placed[i]
		var err error
		if p.moved {
			err = fileutil.MoveFile(p.dst, p.src)
		} else {
			err = os.Remove(p.dst)
		}
		if err != nil {
			logger.Warn("failed to roll back placed file",
				logging.String("path", p.dst),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the file from the library manually"),
			)
		}
	}
}

func uniquePath(path string) string {
	return fileutil.UniquePath(path)
}
