package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// Format names a container family.
type Format string

const (
	FormatNone  Format = ""
	FormatZip   Format = "zip"
	Format7z    Format = "7z"
	FormatRAR   Format = "rar"
	FormatTar   Format = "tar"
	FormatGzip  Format = "gzip"
	FormatBzip2 Format = "bzip2"
	FormatXZ    Format = "xz"
)

// HeaderSize is the number of leading bytes Detect needs to recognise every
// supported format.
const HeaderSize = 512

type signature struct {
	format Format
	offset int
	magic  []byte
}

var signatures = []signature{
	{FormatZip, 0, []byte("PK\x03\x04")},
	{FormatZip, 0, []byte("PK\x05\x06")},
	{Format7z, 0, []byte{'7', 'z', 0xbc, 0xaf, 0x27, 0x1c}},
	{FormatRAR, 0, []byte("Rar!\x1a\x07")},
	{FormatXZ, 0, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}},
	{FormatGzip, 0, []byte{0x1f, 0x8b}},
	{FormatBzip2, 0, []byte("BZh")},
	{FormatTar, 257, []byte("ustar")},
}

// Detect returns the container format of the leading bytes of a file.
func Detect(header []byte) Format {
	for _, sig := range signatures {
		end := sig.offset + len(sig.magic)
		if len(header) >= end && bytes.Equal(header[sig.offset:end], sig.magic) {
			return sig.format
		}
	}
	return FormatNone
}

// DetectFile reads the head of the file at path and detects its format.
func DetectFile(fs afero.Fs, path string) (Format, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	f, err := fs.Open(path)
	if err != nil {
		return FormatNone, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	head := make([]byte, HeaderSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FormatNone, fmt.Errorf("read %s: %w", path, err)
	}
	return Detect(head[:n]), nil
}
