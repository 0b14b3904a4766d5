package identification_test

import (
	"context"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"romimport/internal/hashing"
	"romimport/internal/identification"
	"romimport/internal/queue"
	"romimport/internal/registry"
	"romimport/internal/services"
)

type staticTable map[string][]string

func (t staticTable) SystemsForDigest(d hashing.Digest) []string {
	return t[d.MD5]
}

func fixedHasher(md5 string, calls *atomic.Int32) hashing.Provider {
	return hashing.Func(func(_ context.Context, _ string, offset int64) (hashing.Digest, error) {
		if calls != nil {
			calls.Add(1)
		}
		return hashing.Digest{MD5: md5, CRC32: "00000000", SHA1: "00", Size: 1, Offset: offset}, nil
	})
}

func newService(t *testing.T, fsys afero.Fs, hasher hashing.Provider, table identification.DigestTable) *identification.Service {
	t.Helper()
	return identification.New(registry.Builtin(), hasher, table, identification.WithFs(fsys))
}

func writeFile(t *testing.T, fsys afero.Fs, path string, data []byte) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fsys, path, data, 0o644))
}

func systemsOf(candidates []queue.Candidate) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.System)
	}
	return out
}

func TestExtensionOf(t *testing.T) {
	cases := map[string]string{
		"game.nes":              "nes",
		"Game.SFC":              "sfc",
		"archive.tar.gz":        "gz",
		"/roms/dir.v2/game.col": "col",
		"invalid_file":          "",
		"no_extension.":         "",
		".hidden":               "",
		"":                      "",
		"/roms/.hidden":         "",
	}
	for name, want := range cases {
		assert.Equal(t, want, identification.ExtensionOf(name), "ExtensionOf(%q)", name)
	}
}

func TestDetermineSystemsSingleExtensionMatch(t *testing.T) {
	fsys := afero.NewMemMapFs()
	svc := newService(t, fsys, fixedHasher("FFFF", nil), staticTable{})

	cases := map[string]string{
		"/roms/game.col": "colecovision",
		"/roms/game.nes": "nes",
		"/roms/game.sfc": "snes",
		"/roms/Bruce's Controller Test v1.0 (2004).col": "colecovision",
		"/roms/Super Mario Bros. 3 (USA) (Rev 1).nes":   "nes",
		"/roms/Street Fighter II' Turbo.sfc":            "snes",
	}
	for path, want := range cases {
		writeFile(t, fsys, path, []byte("rom data"))
		item := &queue.Item{URL: path}
		candidates, err := svc.DetermineSystems(context.Background(), item)
		require.NoError(t, err, path)
		require.Len(t, candidates, 1, path)
		assert.Equal(t, want, candidates[0].System, path)
		assert.Equal(t, queue.SourceExtension, candidates[0].Source, path)
	}
}

func TestDetermineSystemsNoExtensionYieldsEmpty(t *testing.T) {
	fsys := afero.NewMemMapFs()
	svc := newService(t, fsys, fixedHasher("FFFF", nil), staticTable{})

	for _, path := range []string{"invalid_file", "no_extension.", ".hidden", ""} {
		candidates, err := svc.DetermineSystems(context.Background(), &queue.Item{URL: path})
		require.NoError(t, err, "path %q", path)
		assert.Empty(t, candidates, "path %q", path)
	}

	files := newService(t, fsys, hashing.NewFileProvider(fsys), nil)
	writeFile(t, fsys, "/roms/invalid_file", []byte("data"))
	for _, path := range []string{"invalid_file", "/roms/invalid_file", "no_extension.", ".hidden", "", "  "} {
		candidates, err := files.DetermineSystems(context.Background(), &queue.Item{URL: path})
		require.NoError(t, err, "path %q", path)
		assert.Empty(t, candidates, "path %q", path)
	}
}

func TestDetermineSystemsAmbiguousExtension(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/roms/game.bin", []byte("rom data"))
	svc := newService(t, fsys, fixedHasher("FFFF", nil), staticTable{})

	candidates, err := svc.DetermineSystems(context.Background(), &queue.Item{URL: "/roms/game.bin"})
	require.NoError(t, err)
	assert.Equal(t, []string{"atari2600", "genesis"}, systemsOf(candidates))
}

func TestDigestMatchTakesPrecedenceOverExtension(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/roms/game.bin", []byte("rom data"))
	svc := newService(t, fsys, fixedHasher("ABCD", nil), staticTable{"ABCD": {"genesis"}})

	candidates, err := svc.DetermineSystems(context.Background(), &queue.Item{URL: "/roms/game.bin"})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, queue.Candidate{System: "genesis", Source: queue.SourceDigest}, candidates[0])
}

func TestDigestMatchIgnoresUnknownSystems(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/roms/game.col", []byte("rom data"))
	svc := newService(t, fsys, fixedHasher("ABCD", nil), staticTable{"ABCD": {"not-a-system"}})

	candidates, err := svc.DetermineSystems(context.Background(), &queue.Item{URL: "/roms/game.col"})
	require.NoError(t, err)
	assert.Equal(t, []string{"colecovision"}, systemsOf(candidates))
	assert.Equal(t, queue.SourceExtension, candidates[0].Source)
}

func TestDigestMissWithUnregisteredExtensionYieldsEmpty(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/roms/readme.xyz", []byte("text"))
	svc := newService(t, fsys, fixedHasher("ABCD", nil), staticTable{"OTHER": {"nes"}})

	candidates, err := svc.DetermineSystems(context.Background(), &queue.Item{URL: "/roms/readme.xyz"})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestDigestFailureFallsBackToExtension(t *testing.T) {
	failing := hashing.Func(func(context.Context, string, int64) (hashing.Digest, error) {
		return hashing.Digest{}, errors.New("disk on fire")
	})
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/roms/game.col", []byte("rom"))
	svc := newService(t, fsys, failing, staticTable{})

	candidates, err := svc.DetermineSystems(context.Background(), &queue.Item{URL: "/roms/game.col"})
	require.NoError(t, err)
	assert.Equal(t, []string{"colecovision"}, systemsOf(candidates))

	_, err = svc.DetermineSystems(context.Background(), &queue.Item{URL: "/roms/unknown.xyz"})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrDigestUnavailable)
	assert.Equal(t, services.KindDigestUnavailable, services.KindOf(err))
}

func TestDigestIsComputedOnceAndCached(t *testing.T) {
	var calls atomic.Int32
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/roms/game.bin", []byte("rom"))
	svc := newService(t, fsys, fixedHasher("ABCD", &calls), staticTable{})

	item := &queue.Item{URL: "/roms/game.bin"}
	_, err := svc.DetermineSystems(context.Background(), item)
	require.NoError(t, err)
	_, err = svc.DetermineSystems(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "ABCD", item.Digest.MD5)
}

func TestHeaderedROMDigestSkipsHeader(t *testing.T) {
	fsys := afero.NewMemMapFs()
	body := []byte(strings.Repeat("PRG", 100))
	header := append([]byte("NES\x1a"), make([]byte, 12)...)
	writeFile(t, fsys, "/roms/game.nes", append(header, body...))

	svc := identification.New(registry.Builtin(), hashing.NewFileProvider(fsys), nil, identification.WithFs(fsys))
	item := &queue.Item{URL: "/roms/game.nes"}
	digest, err := svc.Digest(context.Background(), item)
	require.NoError(t, err)

	sum := md5.Sum(body) //nolint:gosec
	assert.Equal(t, strings.ToUpper(hex.EncodeToString(sum[:])), digest.MD5)
	assert.Equal(t, int64(16), digest.Offset)
}

func TestWithSnapshotDoesNotMutateOriginal(t *testing.T) {
	custom, err := registry.Parse([]byte(`
systems:
  - id: custom
    name: Custom
    extensions: [col]
`), 7)
	require.NoError(t, err)

	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/roms/game.col", []byte("rom"))
	base := newService(t, fsys, fixedHasher("FFFF", nil), nil)
	swapped := base.WithSnapshot(custom)

	got, err := swapped.DetermineSystems(context.Background(), &queue.Item{URL: "/roms/game.col"})
	require.NoError(t, err)
	assert.Equal(t, []string{"custom"}, systemsOf(got))

	got, err = base.DetermineSystems(context.Background(), &queue.Item{URL: "/roms/game.col"})
	require.NoError(t, err)
	assert.Equal(t, []string{"colecovision"}, systemsOf(got))
	assert.Equal(t, int64(7), swapped.Snapshot().Version)
}

func TestClassify(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/in/folder", 0o755))
	writeFile(t, fsys, "/in/disksys.rom", []byte("bios"))
	writeFile(t, fsys, "/in/renamed_firmware.bin", []byte("firmware"))
	writeFile(t, fsys, "/in/cover.PNG", []byte("png"))
	writeFile(t, fsys, "/in/game.cue", []byte(`FILE "game.bin" BINARY`))
	writeFile(t, fsys, "/in/pack.zip", append([]byte("PK\x03\x04"), make([]byte, 40)...))
	writeFile(t, fsys, "/in/disguised.7z", append([]byte("PK\x03\x04"), make([]byte, 40)...))
	writeFile(t, fsys, "/in/fake.zip", []byte("not really a zip"))
	writeFile(t, fsys, "/in/game.nes", []byte("NES\x1a rom"))
	writeFile(t, fsys, "/in/notes.txt", []byte("hello"))

	gbaBIOS := "A860E8C0B6D573D191E4EC7DB1B1E4F6"
	hasher := hashing.Func(func(_ context.Context, path string, _ int64) (hashing.Digest, error) {
		if strings.HasSuffix(path, "renamed_firmware.bin") {
			return hashing.Digest{MD5: gbaBIOS}, nil
		}
		return hashing.Digest{MD5: "0000"}, nil
	})
	svc := newService(t, fsys, hasher, nil)

	cases := map[string]queue.FileKind{
		"/in/folder":               queue.FileDirectory,
		"/in/disksys.rom":          queue.FileBIOS,
		"/in/renamed_firmware.bin": queue.FileBIOS,
		"/in/cover.PNG":            queue.FileArtwork,
		"/in/game.cue":             queue.FileDiscImage,
		"/in/pack.zip":             queue.FileArchive,
		"/in/disguised.7z":         queue.FileArchive,
		"/in/fake.zip":             queue.FileUnknown,
		"/in/game.nes":             queue.FileROM,
		"/in/notes.txt":            queue.FileUnknown,
	}
	for path, want := range cases {
		got, err := svc.Classify(context.Background(), path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := svc.Classify(context.Background(), "/in/missing.nes")
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrNotFound)
}
