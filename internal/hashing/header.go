package hashing

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const (
	inesHeaderSize    = 16
	lynxHeaderSize    = 64
	a7800HeaderSize   = 128
	copierHeaderSize  = 512
	copierHeaderBlock = 1024
)

var (
	inesMagic  = []byte("NES\x1a")
	fdsMagic   = []byte("FDS\x1a")
	lynxMagic  = []byte("LYNX")
	a7800Magic = []byte("ATARI7800")

	// copierExtensions are the SNES image types backup units prefix with a
	// 512 byte header.
	copierExtensions = map[string]struct{}{"sfc": {}, "smc": {}, "swc": {}, "fig": {}}
)

// HeaderOffset returns how many leading bytes of the file at path are a
// dumper header rather than ROM data. Files without a recognised header
// report zero.
func HeaderOffset(fs afero.Fs, path string) (int64, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	f, err := fs.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	head := make([]byte, 16)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return DetectHeader(ext, head[:n], info.Size()), nil
}

// DetectHeader classifies the leading bytes of a file of the given size and
// extension. The size based copier rule only applies to SNES extensions.
func DetectHeader(ext string, head []byte, size int64) int64 {
	switch {
	case bytes.HasPrefix(head, inesMagic), bytes.HasPrefix(head, fdsMagic):
		if size > inesHeaderSize {
			return inesHeaderSize
		}
	case bytes.HasPrefix(head, lynxMagic):
		if size > lynxHeaderSize {
			return lynxHeaderSize
		}
	case len(head) > len(a7800Magic) && bytes.Equal(head[1:1+len(a7800Magic)], a7800Magic):
		if size > a7800HeaderSize {
			return a7800HeaderSize
		}
	case size > copierHeaderBlock && size%copierHeaderBlock == copierHeaderSize:
		if _, ok := copierExtensions[ext]; ok {
			return copierHeaderSize
		}
	}
	return 0
}
