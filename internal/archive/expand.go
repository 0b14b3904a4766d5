package archive

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/javi11/rardecode/v2"
	"github.com/javi11/sevenzip"
	"github.com/spf13/afero"
	"github.com/ulikunitz/xz"
)

// Entry is one member written to the destination directory.
type Entry struct {
	// Name is the member path inside the archive, slash separated.
	Name string
	// Path is where the member was written.
	Path string
	Size int64
}

// Expander streams archive members to disk.
type Expander struct {
	fs       afero.Fs
	maxBytes int64
}

// Option configures an Expander.
type Option func(*Expander)

// WithFs makes the Expander read and write through fs.
func WithFs(fs afero.Fs) Option {
	return func(e *Expander) {
		if fs != nil {
			e.fs = fs
		}
	}
}

// WithMaxBytes caps the total uncompressed bytes one Expand call may write.
// Zero or negative disables the cap.
func WithMaxBytes(n int64) Option {
	return func(e *Expander) { e.maxBytes = n }
}

// NewExpander returns an Expander over the OS filesystem.
func NewExpander(opts ...Option) *Expander {
	e := &Expander{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand writes every member of the archive at src into destDir and returns
// them in archive order. On failure nothing written by this call is left
// behind and the error is an *ExtractionError.
func (e *Expander) Expand(ctx context.Context, src, destDir string) ([]Entry, error) {
	format, err := DetectFile(e.fs, src)
	if err != nil {
		return nil, &ExtractionError{Path: src, Cause: err}
	}
	if format == FormatNone {
		return nil, &ExtractionError{Path: src, Cause: ErrNotArchive}
	}
	if err := e.fs.MkdirAll(destDir, 0o755); err != nil {
		return nil, &ExtractionError{Path: src, Cause: err}
	}

	sink := &sink{ctx: ctx, fs: e.fs, dest: destDir, remaining: e.maxBytes, limited: e.maxBytes > 0}
	switch format {
	case FormatZip:
		err = e.expandZip(src, sink)
	case Format7z:
		err = e.expand7z(src, sink)
	case FormatRAR:
		err = e.expandRAR(src, sink)
	case FormatTar:
		err = e.expandTarFile(src, sink)
	case FormatGzip, FormatBzip2, FormatXZ:
		err = e.expandStream(src, format, sink)
	}
	if err != nil {
		sink.discard()
		var extractErr *ExtractionError
		if errors.As(err, &extractErr) {
			return nil, extractErr
		}
		return nil, &ExtractionError{Path: src, Member: sink.current, Cause: err}
	}
	return sink.entries, nil
}

func (e *Expander) expandZip(src string, s *sink) error {
	f, err := e.fs.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	// Insecure names are filtered per member by SafeName.
	zr, err := zip.NewReader(f, info.Size())
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return err
	}
	for _, member := range zr.File {
		if member.FileInfo().IsDir() {
			continue
		}
		if member.Flags&0x1 != 0 {
			s.current = member.Name
			return ErrEncrypted
		}
		rc, err := member.Open()
		if err != nil {
			s.current = member.Name
			return err
		}
		err = s.write(member.Name, rc)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Expander) expand7z(src string, s *sink) error {
	reader, err := sevenzip.OpenReader(src, e.fs)
	if err != nil {
		return sevenZipError(err)
	}
	defer reader.Close()
	for _, member := range reader.File {
		if member.FileInfo().IsDir() {
			continue
		}
		rc, err := member.Open()
		if err != nil {
			s.current = member.Name
			return sevenZipError(err)
		}
		err = s.write(member.Name, rc)
		rc.Close()
		if err != nil {
			return sevenZipError(err)
		}
	}
	return nil
}

func sevenZipError(err error) error {
	var readErr *sevenzip.ReadError
	if errors.As(err, &readErr) && readErr.Encrypted {
		return fmt.Errorf("%w: %v", ErrEncrypted, err)
	}
	return err
}

func (e *Expander) expandRAR(src string, s *sink) error {
	local, cleanup, err := e.localPath(src)
	if err != nil {
		return err
	}
	defer cleanup()
	reader, err := rardecode.OpenReader(local)
	if err != nil {
		return rarError(err)
	}
	defer reader.Close()
	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return rarError(err)
		}
		if header.IsDir {
			continue
		}
		if header.Encrypted {
			s.current = header.Name
			return ErrEncrypted
		}
		if err := s.write(header.Name, reader); err != nil {
			return rarError(err)
		}
	}
}

func rarError(err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "password") || strings.Contains(strings.ToLower(err.Error()), "encrypted") {
		return fmt.Errorf("%w: %v", ErrEncrypted, err)
	}
	return err
}

// localPath returns an OS path for src; rardecode opens volumes itself.
func (e *Expander) localPath(src string) (string, func(), error) {
	if _, ok := e.fs.(*afero.OsFs); ok {
		return src, func() {}, nil
	}
	in, err := e.fs.Open(src)
	if err != nil {
		return "", nil, err
	}
	defer in.Close()
	tmp, err := os.CreateTemp("", "romimport-*.rar")
	if err != nil {
		return "", nil, err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, err
	}
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}

func (e *Expander) expandTarFile(src string, s *sink) error {
	f, err := e.fs.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	return expandTar(tar.NewReader(f), s)
}

func expandTar(tr *tar.Reader, s *sink) error {
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil && !errors.Is(err, tar.ErrInsecurePath) {
			return err
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		if err := s.write(header.Name, tr); err != nil {
			return err
		}
	}
}

// expandStream handles single-stream compressors. A compressed tarball is
// unpacked as a tar; anything else becomes one member named after the
// stored file name or the archive name without its compression suffix.
func (e *Expander) expandStream(src string, format Format, s *sink) error {
	f, err := e.fs.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	var (
		r    io.Reader
		name string
	)
	switch format {
	case FormatGzip:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gz.Close()
		gz.Multistream(false)
		r, name = gz, path.Base(strings.ReplaceAll(gz.Name, "\\", "/"))
	case FormatBzip2:
		r = bzip2.NewReader(f)
	case FormatXZ:
		xr, err := xz.NewReader(f)
		if err != nil {
			return err
		}
		r = xr
	}

	buffered := bufio.NewReaderSize(r, HeaderSize*2)
	head, _ := buffered.Peek(HeaderSize)
	if Detect(head) == FormatTar {
		return expandTar(tar.NewReader(buffered), s)
	}
	if name == "" || name == "." || name == "/" {
		name = strippedName(filepath.Base(src))
	}
	return s.write(name, buffered)
}

func strippedName(base string) string {
	lower := strings.ToLower(base)
	for _, suffix := range []string{".gz", ".gzip", ".bz2", ".xz", ".tgz", ".tbz2", ".txz"} {
		if strings.HasSuffix(lower, suffix) && len(base) > len(suffix) {
			return base[:len(base)-len(suffix)]
		}
	}
	return base + ".out"
}
