package hashing_test

import (
	"context"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"romimport/internal/hashing"
)

func writeFile(t *testing.T, fs afero.Fs, path string, data []byte) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, data, 0o644))
}

func md5Upper(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func TestFileProviderDigestsWholeFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/roms/a.bin", []byte("hello"))

	d, err := hashing.NewFileProvider(fs).Digest(context.Background(), "/roms/a.bin", 0)
	require.NoError(t, err)
	require.Equal(t, "5D41402ABC4B2A76B9719D911017C592", d.MD5)
	require.Equal(t, "3610A686", d.CRC32)
	require.Equal(t, "AAF4C61DDCC5E8A2DABEDE0F3B482CD9AEA9434D", d.SHA1)
	require.EqualValues(t, 5, d.Size)
	require.Zero(t, d.Offset)
}

func TestFileProviderSkipsOffset(t *testing.T) {
	fs := afero.NewMemMapFs()
	payload := []byte("rom-body")
	data := append([]byte("NES\x1a000000000000"), payload...)
	writeFile(t, fs, "/roms/game.nes", data)

	d, err := hashing.NewFileProvider(fs).Digest(context.Background(), "/roms/game.nes", 16)
	require.NoError(t, err)
	require.Equal(t, md5Upper(payload), d.MD5)
	require.EqualValues(t, len(payload), d.Size)
	require.EqualValues(t, 16, d.Offset)
}

func TestFileProviderIsDeterministic(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/x.gb", []byte("same bytes"))
	p := hashing.NewFileProvider(fs)
	a, err := p.Digest(context.Background(), "/x.gb", 0)
	require.NoError(t, err)
	b, err := p.Digest(context.Background(), "/x.gb", 0)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestFileProviderErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/dir", 0o755))
	p := hashing.NewFileProvider(fs)

	_, err := p.Digest(context.Background(), "/missing", 0)
	require.Error(t, err)
	_, err = p.Digest(context.Background(), "/dir", 0)
	require.Error(t, err)

	writeFile(t, fs, "/f", []byte("abc"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Digest(ctx, "/f", 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFuncProvider(t *testing.T) {
	calls := 0
	p := hashing.Func(func(context.Context, string, int64) (hashing.Digest, error) {
		calls++
		return hashing.Digest{MD5: "ABC"}, nil
	})
	d, err := p.Digest(context.Background(), "ignored", 0)
	require.NoError(t, err)
	require.Equal(t, "ABC", d.MD5)
	require.Equal(t, 1, calls)
	require.False(t, d.IsZero())
	require.True(t, hashing.Digest{}.IsZero())
}

func TestDetectHeader(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		head []byte
		size int64
		want int64
	}{
		{"ines", "nes", []byte("NES\x1a\x02\x01"), 40976, 16},
		{"fds", "fds", []byte("FDS\x1a\x01"), 65516, 16},
		{"lynx", "lnx", []byte("LYNX\x00"), 262208, 64},
		{"atari7800", "a78", []byte("\x01ATARI7800\x00\x00"), 49280, 128},
		{"snes copier", "smc", []byte{0, 0, 0, 0}, 1049088, 512},
		{"plain snes", "sfc", []byte{0, 0, 0, 0}, 1048576, 0},
		{"headerless nes at copier size", "nes", []byte{0, 0, 0, 0}, 1049088, 0},
		{"headerless lynx at copier size", "lnx", []byte{0, 0, 0, 0}, 1049088, 0},
		{"tiny ines", "nes", []byte("NES\x1a"), 16, 0},
		{"empty", "", nil, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, hashing.DetectHeader(tt.ext, tt.head, tt.size))
		})
	}
}

func TestHeaderOffsetReadsFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/g.nes", append([]byte("NES\x1a"), make([]byte, 100)...))
	writeFile(t, fs, "/short.bin", []byte("ab"))

	off, err := hashing.HeaderOffset(fs, "/g.nes")
	require.NoError(t, err)
	require.EqualValues(t, 16, off)

	off, err = hashing.HeaderOffset(fs, "/short.bin")
	require.NoError(t, err)
	require.Zero(t, off)

	writeFile(t, fs, "/copier.SMC", make([]byte, 2048+512))
	writeFile(t, fs, "/plain.nes", make([]byte, 2048+512))
	off, err = hashing.HeaderOffset(fs, "/copier.SMC")
	require.NoError(t, err)
	require.EqualValues(t, 512, off)
	off, err = hashing.HeaderOffset(fs, "/plain.nes")
	require.NoError(t, err)
	require.Zero(t, off)
}
