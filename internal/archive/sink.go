package archive

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// sink writes members below dest, enforcing name safety and the byte budget.
type sink struct {
	ctx       context.Context
	fs        afero.Fs
	dest      string
	remaining int64
	limited   bool
	current   string
	entries   []Entry
	written   []string
}

// SafeName reports the cleaned relative member path, or false when the
// member must be skipped: absolute paths, parent traversal, macOS resource
// forks, and hidden files.
func SafeName(name string) (string, bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	if name == "" || strings.HasPrefix(name, "/") || (len(name) > 1 && name[1] == ':') {
		return "", false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return "", false
		}
	}
	cleaned := path.Clean(name)
	if cleaned == "." || strings.HasSuffix(name, "/") {
		return "", false
	}
	for _, part := range strings.Split(cleaned, "/") {
		if part == "__MACOSX" || strings.HasPrefix(part, ".") {
			return "", false
		}
	}
	return cleaned, true
}

func (s *sink) write(name string, r io.Reader) error {
	s.current = name
	if err := s.ctx.Err(); err != nil {
		return err
	}
	clean, ok := SafeName(name)
	if !ok {
		return nil
	}
	target := filepath.Join(s.dest, filepath.FromSlash(clean))
	if err := s.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := s.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	s.written = append(s.written, target)

	var src io.Reader = &ctxReader{ctx: s.ctx, r: r}
	if s.limited {
		src = io.LimitReader(src, s.remaining+1)
	}
	n, err := io.Copy(out, src)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if s.limited {
		if n > s.remaining {
			return ErrTooLarge
		}
		s.remaining -= n
	}
	s.entries = append(s.entries, Entry{Name: clean, Path: target, Size: n})
	return nil
}

func (s *sink) discard() {
	for i := len(s.written) - 1; i >= 0; i-- {
		_ = s.fs.Remove(s.written[i])
	}
	s.entries = nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
