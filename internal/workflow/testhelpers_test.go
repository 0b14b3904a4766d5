package workflow_test

import (
	"context"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"romimport/internal/config"
	"romimport/internal/hashing"
	"romimport/internal/library"
	"romimport/internal/queue"
	"romimport/internal/testsupport"
	"romimport/internal/workflow"
)

type harness struct {
	cfg   *config.Config
	store *queue.Store
	lib   *library.Store
	mgr   *workflow.Manager
	input string
}

func newHarness(t *testing.T, cfgOpts []testsupport.ConfigOption, opts ...workflow.Option) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, cfgOpts...)
	store := testsupport.MustOpenStore(t, cfg)
	lib := testsupport.MustOpenLibrary(t, cfg)
	return &harness{
		cfg:   cfg,
		store: store,
		lib:   lib,
		mgr:   workflow.NewManager(cfg, store, lib, nil, opts...),
		input: testsupport.InputDir(cfg),
	}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.mgr.Start(context.Background()))
	t.Cleanup(h.mgr.Stop)
}

func (h *harness) waitIdle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, h.mgr.WaitIdle(ctx))
}

func (h *harness) write(t *testing.T, name string, content string) string {
	t.Helper()
	return testsupport.WriteFile(t, filepath.Join(h.input, filepath.FromSlash(name)), []byte(content))
}

func (h *harness) add(t *testing.T, path string) *queue.Item {
	t.Helper()
	item, err := h.mgr.Add(context.Background(), path)
	require.NoError(t, err)
	return item
}

func (h *harness) item(t *testing.T, id int64) *queue.Item {
	t.Helper()
	item, err := h.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, item, "item %d", id)
	return item
}

func (h *harness) itemByURL(t *testing.T, url string) *queue.Item {
	t.Helper()
	item, err := h.store.GetByURL(context.Background(), url)
	require.NoError(t, err)
	require.NotNil(t, item, "item %s", url)
	return item
}

func (h *harness) statusTrail(t *testing.T, id int64) []queue.Status {
	t.Helper()
	history, err := h.store.History(context.Background(), id)
	require.NoError(t, err)
	trail := make([]queue.Status, 0, len(history))
	for _, tr := range history {
		trail = append(trail, tr.To)
	}
	return trail
}

func md5Hex(content string) string {
	sum := md5.Sum([]byte(content)) //nolint:gosec
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// countingHasher hashes real files and counts the calls.
func countingHasher(calls *atomic.Int32) hashing.Provider {
	files := hashing.NewFileProvider(afero.NewOsFs())
	return hashing.Func(func(ctx context.Context, path string, offset int64) (hashing.Digest, error) {
		calls.Add(1)
		return files.Digest(ctx, path, offset)
	})
}
