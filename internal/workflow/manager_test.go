package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"romimport/internal/hashing"
	"romimport/internal/library"
	"romimport/internal/queue"
	"romimport/internal/services"
	"romimport/internal/testsupport"
	"romimport/internal/workflow"
)

func TestAddIsIdempotentForLiveURL(t *testing.T) {
	h := newHarness(t, nil)
	path := h.write(t, "Game (USA).col", "coleco rom")

	first := h.add(t, path)
	second := h.add(t, path)
	assert.Equal(t, first.ID, second.ID)

	items, err := h.mgr.Items(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, queue.StatusQueued, items[0].Status)
}

func TestManagerImportsSingleROM(t *testing.T) {
	h := newHarness(t, nil)
	content := "coleco rom"
	path := h.write(t, "Game (USA).col", content)

	h.start(t)
	item := h.add(t, path)
	h.waitIdle(t)

	got := h.item(t, item.ID)
	assert.Equal(t, queue.StatusSuccess, got.Status)
	assert.Equal(t, queue.FileROM, got.Kind)
	assert.Equal(t, "colecovision", got.ResolvedSystem)
	assert.False(t, got.Duplicate)
	assert.Equal(t, []queue.Status{queue.StatusQueued, queue.StatusProcessing, queue.StatusSuccess}, h.statusTrail(t, item.ID))

	entry, err := h.lib.Get(context.Background(), md5Hex(content))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "colecovision", entry.System)
	assert.Equal(t, "Game (USA)", entry.Title)
	assert.Equal(t, filepath.Join(h.cfg.Paths.LibraryDir, "colecovision", "Game (USA).col"), entry.Path)
	assert.FileExists(t, entry.Path)
	assert.FileExists(t, path, "copy mode keeps the source")

	assert.Equal(t, workflow.StateIdle, h.mgr.State())
	status := h.mgr.Status(context.Background())
	require.NotNil(t, status.LastItem)
	assert.Equal(t, item.ID, status.LastItem.ID)
	assert.Equal(t, 1, status.QueueStats[queue.StatusSuccess])
}

func TestManagerMoveFilesConsumesSource(t *testing.T) {
	h := newHarness(t, []testsupport.ConfigOption{testsupport.WithMoveFiles()})
	path := h.write(t, "Moved.col", "moved rom")

	h.start(t)
	item := h.add(t, path)
	h.waitIdle(t)

	assert.Equal(t, queue.StatusSuccess, h.item(t, item.ID).Status)
	assert.NoFileExists(t, path)
	assert.FileExists(t, filepath.Join(h.cfg.Paths.LibraryDir, "colecovision", "Moved.col"))
}

func TestDuplicateContentIsSuccessWithFlag(t *testing.T) {
	h := newHarness(t, nil)
	a := h.write(t, "A.col", "same rom")
	b := h.write(t, "B.col", "same rom")

	h.start(t)
	_, err := h.mgr.AddMany(context.Background(), []string{a, b})
	require.NoError(t, err)
	h.waitIdle(t)

	first := h.itemByURL(t, a)
	second := h.itemByURL(t, b)
	assert.Equal(t, queue.StatusSuccess, first.Status)
	assert.False(t, first.Duplicate)
	assert.Equal(t, queue.StatusSuccess, second.Status)
	assert.True(t, second.Duplicate)
	assert.Equal(t, []queue.Status{queue.StatusQueued, queue.StatusProcessing, queue.StatusSuccess}, h.statusTrail(t, second.ID))

	count, err := h.lib.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestConflictRoundTripReusesDigest(t *testing.T) {
	var calls atomic.Int32
	h := newHarness(t, nil, workflow.WithHasher(countingHasher(&calls)))
	content := "ambiguous bin"
	path := h.write(t, "Game.bin", content)

	h.start(t)
	item := h.add(t, path)
	h.waitIdle(t)

	got := h.item(t, item.ID)
	require.Equal(t, queue.StatusConflict, got.Status)
	assert.Equal(t, services.KindSystemConflict, got.FailureKind)

	conflicts, err := h.mgr.Conflicts(context.Background())
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, workflow.ConflictRecord{ItemID: item.ID, Index: 0, URL: path, Systems: []string{"atari2600", "genesis"}}, conflicts[0])

	err = h.mgr.ChooseSystem(context.Background(), item.ID, "no-such-system")
	assert.ErrorIs(t, err, services.ErrUnsupportedSystem)

	require.NoError(t, h.mgr.ChooseSystem(context.Background(), item.ID, "genesis"))
	h.waitIdle(t)

	got = h.item(t, item.ID)
	assert.Equal(t, queue.StatusSuccess, got.Status)
	assert.Equal(t, "genesis", got.ResolvedSystem)
	assert.Empty(t, got.FailureKind)
	assert.Equal(t, int32(1), calls.Load(), "digest must be computed once across the round trip")
	assert.Equal(t,
		[]queue.Status{queue.StatusQueued, queue.StatusProcessing, queue.StatusConflict, queue.StatusQueued, queue.StatusProcessing, queue.StatusSuccess},
		h.statusTrail(t, item.ID),
	)

	entry, err := h.lib.Get(context.Background(), md5Hex(content))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "genesis", entry.System)

	err = h.mgr.ChooseSystem(context.Background(), item.ID, "atari2600")
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestPauseHoldsQueuedItems(t *testing.T) {
	h := newHarness(t, nil)
	path := h.write(t, "Paused.col", "paused rom")

	h.start(t)
	h.mgr.Pause()
	assert.Equal(t, workflow.StatePaused, h.mgr.State())

	item := h.add(t, path)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, queue.StatusQueued, h.item(t, item.ID).Status)

	require.NoError(t, h.mgr.Resume(context.Background()))
	h.waitIdle(t)
	assert.Equal(t, queue.StatusSuccess, h.item(t, item.ID).Status)
}

func TestRemoveByIndex(t *testing.T) {
	h := newHarness(t, nil)
	first := h.add(t, h.write(t, "One.col", "one"))
	h.add(t, h.write(t, "Two.col", "two"))

	err := h.mgr.Remove(context.Background(), 5)
	assert.ErrorIs(t, err, services.ErrValidation)

	require.NoError(t, h.mgr.Remove(context.Background(), 1))
	items, err := h.mgr.Items(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, first.ID, items[0].ID)
}

func TestRemoveInFlightDiscardsResults(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	hasher := hashing.Func(func(ctx context.Context, _ string, offset int64) (hashing.Digest, error) {
		once.Do(func() { close(started) })
		select {
		case <-release:
		case <-ctx.Done():
			return hashing.Digest{}, ctx.Err()
		}
		return hashing.Digest{MD5: md5Hex("slow"), CRC32: "00000000", SHA1: "00", Size: 4, Offset: offset}, nil
	})
	h := newHarness(t, nil, workflow.WithHasher(hasher))
	path := h.write(t, "Slow.col", "slow")

	h.start(t)
	item := h.add(t, path)
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never reached the digest step")
	}
	require.NoError(t, h.mgr.Remove(context.Background(), 0))
	close(release)
	h.waitIdle(t)

	got, err := h.store.GetByID(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	count, err := h.lib.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.NoFileExists(t, filepath.Join(h.cfg.Paths.LibraryDir, "colecovision", "Slow.col"))
}

func TestArchiveMembersAreQueuedAsChildren(t *testing.T) {
	h := newHarness(t, nil)
	archive := testsupport.WriteZip(t, filepath.Join(h.input, "pack.zip"), map[string][]byte{
		"Game.col":   []byte("zipped rom"),
		"readme.txt": []byte("hello"),
	})

	h.start(t)
	parent := h.add(t, archive)
	h.waitIdle(t)

	got := h.item(t, parent.ID)
	assert.Equal(t, queue.StatusSuccess, got.Status)
	assert.Equal(t, queue.FileArchive, got.Kind)
	assert.True(t, got.Expanded)

	children, err := h.store.Children(context.Background(), parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	byName := map[string]*queue.Item{}
	for _, child := range children {
		assert.Equal(t, 1, child.Depth)
		assert.True(t, strings.HasPrefix(child.URL, h.cfg.Paths.StagingDir), child.URL)
		byName[filepath.Base(child.URL)] = child
	}
	require.Contains(t, byName, "Game.col")
	require.Contains(t, byName, "readme.txt")
	assert.Equal(t, queue.StatusSuccess, byName["Game.col"].Status)
	assert.Equal(t, queue.StatusFailure, byName["readme.txt"].Status)
	assert.Equal(t, services.KindNoSystemMatched, byName["readme.txt"].FailureKind)

	_, statErr := os.Stat(byName["Game.col"].URL)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "staged files are moved into the library")
	exists, err := h.lib.Exists(context.Background(), md5Hex("zipped rom"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStagingSweptOnceMembersAreDone(t *testing.T) {
	h := newHarness(t, nil)
	clean := testsupport.WriteZip(t, filepath.Join(h.input, "clean.zip"), map[string][]byte{
		"Clean.col": []byte("clean rom"),
	})
	messy := testsupport.WriteZip(t, filepath.Join(h.input, "messy.zip"), map[string][]byte{
		"Messy.col": []byte("messy rom"),
		"notes.txt": []byte("not a rom"),
	})

	h.start(t)
	h.add(t, clean)
	h.add(t, messy)
	h.waitIdle(t)

	entries, err := os.ReadDir(h.cfg.Paths.StagingDir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "only the folder holding the failed member remains")
	failed, err := h.store.List(context.Background(), queue.StatusFailure)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.FileExists(t, failed[0].URL)

	_, err = h.mgr.ClearFailed(context.Background())
	require.NoError(t, err)
	h.mgr.Stop()
	require.NoError(t, h.mgr.Start(context.Background()))
	entries, err = os.ReadDir(h.cfg.Paths.StagingDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNestedArchiveBeyondDepthFails(t *testing.T) {
	h := newHarness(t, []testsupport.ConfigOption{testsupport.WithMaxArchiveDepth(1)})
	innerPath := testsupport.WriteZip(t, filepath.Join(t.TempDir(), "inner.zip"), map[string][]byte{
		"Deep.col": []byte("deep rom"),
	})
	inner, err := os.ReadFile(innerPath)
	require.NoError(t, err)
	outer := testsupport.WriteZip(t, filepath.Join(h.input, "outer.zip"), map[string][]byte{"inner.zip": inner})

	h.start(t)
	parent := h.add(t, outer)
	h.waitIdle(t)

	assert.Equal(t, queue.StatusSuccess, h.item(t, parent.ID).Status)
	children, err := h.store.Children(context.Background(), parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, queue.StatusFailure, children[0].Status)
	assert.Equal(t, services.KindExtractionFailed, children[0].FailureKind)
}

func TestPartialPlaylistRequeuedWhenDiscArrives(t *testing.T) {
	h := newHarness(t, nil)
	playlist := h.write(t, "Game.m3u", "Game (Disc 1).chd\nGame (Disc 2).chd\n")
	h.write(t, "Game (Disc 1).chd", "disc one")

	h.start(t)
	sheet := h.add(t, playlist)
	h.waitIdle(t)

	got := h.item(t, sheet.ID)
	require.Equal(t, queue.StatusPartial, got.Status)
	assert.Equal(t, []string{"Game (Disc 2).chd"}, got.Missing)

	h.mgr.Pause()
	disc2 := h.add(t, h.write(t, "Game (Disc 2).chd", "disc two"))
	assert.Equal(t, queue.StatusQueued, h.item(t, sheet.ID).Status, "arrival requeues the playlist")
	require.NoError(t, h.mgr.Resume(context.Background()))
	h.waitIdle(t)

	got = h.item(t, sheet.ID)
	assert.Equal(t, queue.StatusSuccess, got.Status)
	assert.Equal(t, "psx", got.ResolvedSystem)
	assert.Empty(t, got.Missing)
	assert.Equal(t,
		[]queue.Status{queue.StatusQueued, queue.StatusProcessing, queue.StatusPartial, queue.StatusQueued, queue.StatusProcessing, queue.StatusSuccess},
		h.statusTrail(t, sheet.ID),
	)

	member := h.item(t, disc2.ID)
	assert.Equal(t, queue.StatusSuccess, member.Status)
	assert.Equal(t, "psx", member.ResolvedSystem)
	assert.Contains(t, member.Note, "grouped into #")
	assert.Equal(t, []queue.Status{queue.StatusQueued, queue.StatusProcessing, queue.StatusSuccess}, h.statusTrail(t, disc2.ID))

	titleDir := filepath.Join(h.cfg.Paths.LibraryDir, "psx", "Game")
	for _, name := range []string{"Game.m3u", "Game (Disc 1).chd", "Game (Disc 2).chd"} {
		assert.FileExists(t, filepath.Join(titleDir, name))
	}
	entry, err := h.lib.Get(context.Background(), md5Hex("Game (Disc 1).chd\nGame (Disc 2).chd\n"))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Len(t, entry.Constituents, 3)
}

func TestPauseLeavesQueuedConstituentsUntilResume(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	files := hashing.NewFileProvider(afero.NewOsFs())
	hasher := hashing.Func(func(ctx context.Context, path string, offset int64) (hashing.Digest, error) {
		if strings.HasSuffix(path, ".m3u") {
			once.Do(func() { close(started) })
			select {
			case <-release:
			case <-ctx.Done():
				return hashing.Digest{}, ctx.Err()
			}
		}
		return files.Digest(ctx, path, offset)
	})
	h := newHarness(t, nil, workflow.WithHasher(hasher))
	playlist := h.write(t, "Game.m3u", "Game (Disc 1).chd\nGame (Disc 2).chd\n")
	disc1 := h.write(t, "Game (Disc 1).chd", "disc one")
	disc2 := h.write(t, "Game (Disc 2).chd", "disc two")

	h.start(t)
	sheet := h.add(t, playlist)
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never reached the playlist digest")
	}
	first := h.add(t, disc1)
	second := h.add(t, disc2)
	h.mgr.Pause()
	close(release)

	require.Eventually(t, func() bool {
		return h.item(t, sheet.ID).Status == queue.StatusSuccess
	}, 5*time.Second, 20*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, queue.StatusQueued, h.item(t, first.ID).Status, "paused queue moved a queued item")
	assert.Equal(t, queue.StatusQueued, h.item(t, second.ID).Status)

	require.NoError(t, h.mgr.Resume(context.Background()))
	h.waitIdle(t)
	for _, id := range []int64{first.ID, second.ID} {
		got := h.item(t, id)
		assert.Equal(t, queue.StatusSuccess, got.Status)
		assert.Equal(t, "psx", got.ResolvedSystem)
		assert.Equal(t, fmt.Sprintf("grouped into #%d", sheet.ID), got.Note)
	}
	count, err := h.lib.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDiscSetWithGapWaitsForMissingDisc(t *testing.T) {
	h := newHarness(t, nil)
	first := h.add(t, h.write(t, "Game (Disc 1 of 3).col", "disc one"))
	third := h.add(t, h.write(t, "Game (Disc 3 of 3).col", "disc three"))

	h.start(t)
	h.waitIdle(t)
	for _, id := range []int64{first.ID, third.ID} {
		got := h.item(t, id)
		require.Equal(t, queue.StatusPartial, got.Status)
		assert.Equal(t, []string{"Game (Disc 2 of 3).col"}, got.Missing)
	}
	count, err := h.lib.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	second := h.add(t, h.write(t, "Game (Disc 2 of 3).col", "disc two"))
	h.waitIdle(t)

	got := h.item(t, first.ID)
	assert.Equal(t, queue.StatusSuccess, got.Status)
	assert.Equal(t, "colecovision", got.ResolvedSystem)
	assert.Equal(t,
		[]queue.Status{queue.StatusQueued, queue.StatusProcessing, queue.StatusPartial, queue.StatusQueued, queue.StatusProcessing, queue.StatusSuccess},
		h.statusTrail(t, first.ID),
	)
	for _, id := range []int64{second.ID, third.ID} {
		member := h.item(t, id)
		assert.Equal(t, queue.StatusSuccess, member.Status)
		assert.Equal(t, fmt.Sprintf("grouped into #%d", first.ID), member.Note)
	}
	titleDir := filepath.Join(h.cfg.Paths.LibraryDir, "colecovision", "Game")
	for _, name := range []string{"Game (Disc 1 of 3).col", "Game (Disc 2 of 3).col", "Game (Disc 3 of 3).col"} {
		assert.FileExists(t, filepath.Join(titleDir, name))
	}
	count, err = h.lib.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBIOSIsPlacedUnderSystem(t *testing.T) {
	h := newHarness(t, nil)
	path := h.write(t, "disksys.rom", "fds firmware")

	h.start(t)
	item := h.add(t, path)
	h.waitIdle(t)

	got := h.item(t, item.ID)
	assert.Equal(t, queue.StatusSuccess, got.Status)
	assert.Equal(t, queue.FileBIOS, got.Kind)
	assert.Equal(t, "fds", got.ResolvedSystem)
	assert.FileExists(t, filepath.Join(h.cfg.Paths.LibraryDir, "bios", "fds", "disksys.rom"))

	bios, err := h.lib.ListBIOS(context.Background(), "fds")
	require.NoError(t, err)
	require.Len(t, bios, 1)
	assert.Equal(t, md5Hex("fds firmware"), bios[0].MD5)
}

func TestArtworkAttachesToGameWithSameStem(t *testing.T) {
	h := newHarness(t, nil)
	game := h.write(t, "Game (USA).col", "artful rom")
	cover := h.write(t, "Game (USA) (Front).png", "png bytes")

	h.start(t)
	_, err := h.mgr.AddMany(context.Background(), []string{cover, game})
	require.NoError(t, err)
	h.waitIdle(t)

	art := h.itemByURL(t, cover)
	assert.Equal(t, queue.StatusSuccess, art.Status)
	assert.Equal(t, queue.FileArtwork, art.Kind)

	entry, err := h.lib.Get(context.Background(), md5Hex("artful rom"))
	require.NoError(t, err)
	require.NotNil(t, entry)
	artwork, err := h.lib.Artwork(context.Background(), entry.ID)
	require.NoError(t, err)
	require.Len(t, artwork, 1)
	assert.Equal(t, library.ArtworkFront, artwork[0].Kind)
	assert.Equal(t, filepath.Join(h.cfg.Paths.LibraryDir, "artwork", "colecovision", "Game (USA) (Front).png"), artwork[0].Path)
}

func TestSubscribeStreamsTransitions(t *testing.T) {
	h := newHarness(t, nil)
	sub := h.mgr.Subscribe(16)
	defer sub.Close()

	h.start(t)
	item := h.add(t, h.write(t, "Stream.col", "stream rom"))

	var trail []queue.Status
	timeout := time.After(5 * time.Second)
	for len(trail) == 0 || trail[len(trail)-1] != queue.StatusSuccess {
		select {
		case change := <-sub.C:
			if change.ItemID == item.ID {
				trail = append(trail, change.To)
			}
		case <-timeout:
			t.Fatalf("no success change, saw %v", trail)
		}
	}
	assert.Equal(t, []queue.Status{queue.StatusQueued, queue.StatusProcessing, queue.StatusSuccess}, trail)
}

func TestPanicFailsOnlyThatItem(t *testing.T) {
	files := hashing.NewFileProvider(afero.NewOsFs())
	hasher := hashing.Func(func(ctx context.Context, path string, offset int64) (hashing.Digest, error) {
		if strings.HasSuffix(path, "boom.col") {
			panic("hasher exploded")
		}
		return files.Digest(ctx, path, offset)
	})
	h := newHarness(t, nil, workflow.WithHasher(hasher))
	boom := h.write(t, "boom.col", "boom")
	fine := h.write(t, "fine.col", "fine")

	h.start(t)
	_, err := h.mgr.AddMany(context.Background(), []string{boom, fine})
	require.NoError(t, err)
	h.waitIdle(t)

	failed := h.itemByURL(t, boom)
	assert.Equal(t, queue.StatusFailure, failed.Status)
	assert.Equal(t, services.KindTransient, failed.FailureKind)
	assert.Equal(t, queue.StatusSuccess, h.itemByURL(t, fine).Status)
}

func TestAddManyScansDirectoriesWithPatterns(t *testing.T) {
	h := newHarness(t, nil)
	h.write(t, "dir/a.col", "a")
	h.write(t, "dir/sub/c.col", "c")
	h.write(t, "dir/.hidden.col", "hidden")
	h.write(t, "dir/__MACOSX/b.col", "resource fork")
	missing := filepath.Join(h.input, "missing.col")

	items, err := h.mgr.AddMany(context.Background(), []string{missing, filepath.Join(h.input, "dir")})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrNotFound)

	var names []string
	for _, item := range items {
		rel, relErr := filepath.Rel(filepath.Join(h.input, "dir"), item.URL)
		require.NoError(t, relErr)
		names = append(names, filepath.ToSlash(rel))
	}
	assert.ElementsMatch(t, []string{"a.col", "sub/c.col"}, names)
}

func TestQueuedDirectoryExpandsIntoItems(t *testing.T) {
	h := newHarness(t, nil)
	h.write(t, "folder/Inside.col", "inside rom")

	h.start(t)
	dir := h.add(t, filepath.Join(h.input, "folder"))
	h.waitIdle(t)

	got := h.item(t, dir.ID)
	assert.Equal(t, queue.StatusSuccess, got.Status)
	assert.Equal(t, queue.FileDirectory, got.Kind)
	child := h.itemByURL(t, filepath.Join(h.input, "folder", "Inside.col"))
	assert.Equal(t, queue.StatusSuccess, child.Status)
	assert.Equal(t, "colecovision", child.ResolvedSystem)
}

func TestStartFailsWhenLibraryDirUnwritable(t *testing.T) {
	h := newHarness(t, nil)
	blocker := testsupport.WriteFile(t, filepath.Join(testsupport.BaseDir(h.cfg), "blocker"), []byte("x"))
	h.cfg.Paths.LibraryDir = filepath.Join(blocker, "library")

	err := h.mgr.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrConfiguration)
	assert.Equal(t, workflow.StateIdle, h.mgr.State())
}
