package datfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"romimport/internal/logging"
	"romimport/internal/registry"
)

const maxParallelLoads = 4

// ErrUnknownSystem reports a DAT whose header name maps to no registered system.
var ErrUnknownSystem = errors.New("dat names no registered system")

// LoadDir parses every .dat and .xml file in dir into one index. DATs for
// systems the registry does not know are skipped with a warning. A missing
// dir yields an empty index.
func LoadDir(ctx context.Context, dir string, snap *registry.Snapshot, logger *slog.Logger) (*Index, error) {
	logger = logging.NewComponentLogger(logger, "datfile")
	index := NewIndex()
	if strings.TrimSpace(dir) == "" {
		return index, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return index, nil
		}
		return nil, fmt.Errorf("read dat dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".dat", ".xml":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)

	p := pool.New().WithErrors().WithMaxGoroutines(maxParallelLoads).WithContext(ctx)
	for _, file := range files {
		p.Go(func(ctx context.Context) error {
			system, games, err := LoadFile(ctx, file, snap, index)
			switch {
			case errors.Is(err, ErrUnknownSystem):
				logger.Warn("skipping dat for unknown system",
					logging.String("path", file),
					logging.String(logging.FieldEventType, "dat_skipped"),
					logging.String(logging.FieldErrorHint, "add the DAT name to a system's dat_names"),
				)
				return nil
			case err != nil:
				return fmt.Errorf("load %s: %w", filepath.Base(file), err)
			}
			logger.Debug("dat loaded",
				logging.String("path", file),
				logging.String(logging.FieldSystem, system),
				logging.Int("games", games),
			)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	logger.Info("reference table ready", logging.Int("files", len(files)), logging.Int("roms", index.Len()))
	return index, nil
}

// LoadFile indexes one DAT file and returns the system it was filed under
// and the number of games read.
func LoadFile(ctx context.Context, path string, snap *registry.Snapshot, index *Index) (string, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	return Load(ctx, f, snap, index)
}

// Load indexes one DAT document.
func Load(ctx context.Context, r io.Reader, snap *registry.Snapshot, index *Index) (string, int, error) {
	var system string
	games := 0
	err := Walk(r,
		func(h Header) error {
			id, ok := snap.SystemForDatName(h.Name)
			if !ok {
				return fmt.Errorf("%w: %q", ErrUnknownSystem, h.Name)
			}
			system = id
			return nil
		},
		func(g Game) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if system == "" {
				return fmt.Errorf("%w: game before header", ErrUnknownSystem)
			}
			index.AddGame(system, g)
			games++
			return nil
		},
	)
	return system, games, err
}
