package workflow

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"romimport/internal/fileutil"
	"romimport/internal/testsupport"
)

func TestRemoveDuringPlacementRollsBack(t *testing.T) {
	cases := []struct {
		name   string
		file   string
		placed func(libraryDir string) string
	}{
		{"game", "Slow.col", func(dir string) string { return filepath.Join(dir, "colecovision", "Slow.col") }},
		{"bios", "disksys.rom", func(dir string) string { return filepath.Join(dir, "bios", "fds", "disksys.rom") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			store := testsupport.MustOpenStore(t, cfg)
			lib := testsupport.MustOpenLibrary(t, cfg)
			mgr := NewManager(cfg, store, lib, nil)

			placing := make(chan struct{})
			release := make(chan struct{})
			var once sync.Once
			mgr.placeFile = func(src, dst string, move bool) error {
				if err := fileutil.Place(src, dst, move); err != nil {
					return err
				}
				once.Do(func() { close(placing) })
				<-release
				return nil
			}

			ctx := context.Background()
			src := testsupport.WriteFile(t, filepath.Join(testsupport.InputDir(cfg), tc.file), []byte("payload "+tc.name))
			require.NoError(t, mgr.Start(ctx))
			t.Cleanup(mgr.Stop)
			item, err := mgr.Add(ctx, src)
			require.NoError(t, err)

			select {
			case <-placing:
			case <-time.After(5 * time.Second):
				t.Fatal("worker never reached placement")
			}
			require.NoError(t, mgr.Remove(ctx, 0))
			close(release)

			waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			require.NoError(t, mgr.WaitIdle(waitCtx))

			got, err := store.GetByID(ctx, item.ID)
			require.NoError(t, err)
			assert.Nil(t, got)
			count, err := lib.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, count)
			bios, err := lib.ListBIOS(ctx, "fds")
			require.NoError(t, err)
			assert.Empty(t, bios)
			assert.NoFileExists(t, tc.placed(cfg.Paths.LibraryDir))
			assert.FileExists(t, src)
		})
	}
}
