package registry_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"romimport/internal/registry"
)

func TestBuiltinExtensions(t *testing.T) {
	snap := registry.Builtin()

	assert.Equal(t, []string{"colecovision"}, snap.SystemsForExtension("col"))
	assert.Equal(t, []string{"nes"}, snap.SystemsForExtension(".NES"))
	assert.Equal(t, []string{"snes"}, snap.SystemsForExtension("sfc"))
	assert.Equal(t, []string{"atari2600", "genesis"}, snap.SystemsForExtension("bin"))
	assert.Empty(t, snap.SystemsForExtension(""))
	assert.Empty(t, snap.SystemsForExtension("exe"))
	assert.Contains(t, snap.Extensions("gba"), "gba")
	assert.Nil(t, snap.Extensions("nope"))
}

func TestBuiltinFlags(t *testing.T) {
	snap := registry.Builtin()

	assert.True(t, snap.RequiresBIOS("psx"))
	assert.False(t, snap.RequiresBIOS("nes"))
	assert.True(t, snap.DiscBased("psx"))
	assert.False(t, snap.DiscBased("snes"))
	assert.True(t, snap.Headered("nes"))
	assert.False(t, snap.Headered("gb"))
	assert.True(t, snap.Known("genesis"))
	assert.False(t, snap.Known("amiga"))

	all := snap.All()
	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}
}

func TestBIOSLookups(t *testing.T) {
	snap := registry.Builtin()

	bios, ok := snap.BIOSByDigest("924e392ed05558ffdb115408c263dccf")
	require.True(t, ok)
	assert.Equal(t, "psx", bios.System)
	assert.Equal(t, "scph1001.bin", bios.FileName)

	bios, ok = snap.BIOSByName("LYNXBOOT.IMG")
	require.True(t, ok)
	assert.Equal(t, "lynx", bios.System)

	_, ok = snap.BIOSByName("random.bin")
	assert.False(t, ok)
}

func TestSystemForDatName(t *testing.T) {
	snap := registry.Builtin()
	id, ok := snap.SystemForDatName("Nintendo - Game Boy")
	require.True(t, ok)
	assert.Equal(t, "gb", id)
	_, ok = snap.SystemForDatName("Commodore - Amiga")
	assert.False(t, ok)
}

func TestParseRejectsInvalidTables(t *testing.T) {
	tests := map[string]string{
		"empty":         "systems: []",
		"missing id":    "systems:\n  - name: X\n",
		"duplicate id":  "systems:\n  - id: a\n  - id: a\n",
		"dotted ext":    "systems:\n  - id: a\n    extensions: [.a]\n",
		"uppercase ext": "systems:\n  - id: a\n    extensions: [A]\n",
		"not yaml":      "systems: [",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := registry.Parse([]byte(data), 1)
			require.Error(t, err)
		})
	}
}

func TestReloadPublishesNewVersionAndKeepsOldSnapshot(t *testing.T) {
	reg := registry.New(registry.Builtin())
	old := reg.Snapshot()
	require.EqualValues(t, 1, old.Version)

	path := filepath.Join(t.TempDir(), "systems.yaml")
	require.NoError(t, os.WriteFile(path, []byte("systems:\n  - id: homebrew\n    name: Homebrew\n    extensions: [col]\n"), 0o644))

	next, err := reg.Reload(path)
	require.NoError(t, err)
	assert.EqualValues(t, 2, next.Version)
	assert.Same(t, next, reg.Snapshot())
	assert.Equal(t, []string{"homebrew"}, reg.Snapshot().SystemsForExtension("col"))
	assert.Equal(t, []string{"colecovision"}, old.SystemsForExtension("col"))

	_, err = reg.Reload(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Same(t, next, reg.Snapshot())
}

func TestConcurrentReaders(t *testing.T) {
	reg := registry.New(registry.Builtin())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = reg.Snapshot().SystemsForExtension("nes")
			}
		}()
	}
	_, err := reg.Reload("")
	require.NoError(t, err)
	wg.Wait()
}
