package hashing

import (
	"context"
	"crypto/md5"  //nolint:gosec // MD5 is the library key used by ROM databases
	"crypto/sha1" //nolint:gosec // SHA1 is listed by Logiqx DAT files
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"io"
	"strings"

	"github.com/spf13/afero"
)

// Digest holds the hashes of one file, computed from Offset to the end.
type Digest struct {
	MD5    string `json:"md5"`
	CRC32  string `json:"crc32"`
	SHA1   string `json:"sha1"`
	Size   int64  `json:"size"`
	Offset int64  `json:"offset,omitempty"`
}

// IsZero reports whether no digest has been computed.
func (d Digest) IsZero() bool {
	return d.MD5 == "" && d.CRC32 == "" && d.SHA1 == ""
}

// Provider computes a Digest for the file at path, skipping offset bytes.
type Provider interface {
	Digest(ctx context.Context, path string, offset int64) (Digest, error)
}

// Func adapts a plain function to Provider.
type Func func(ctx context.Context, path string, offset int64) (Digest, error)

// Digest calls f.
func (f Func) Digest(ctx context.Context, path string, offset int64) (Digest, error) {
	return f(ctx, path, offset)
}

// FileProvider hashes files read from an afero filesystem.
type FileProvider struct {
	fs afero.Fs
}

// NewFileProvider returns a FileProvider over fs. A nil fs uses the OS filesystem.
func NewFileProvider(fs afero.Fs) *FileProvider {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileProvider{fs: fs}
}

// Digest implements Provider.
func (p *FileProvider) Digest(ctx context.Context, path string, offset int64) (Digest, error) {
	if offset < 0 {
		return Digest{}, fmt.Errorf("digest %s: negative offset %d", path, offset)
	}
	f, err := p.fs.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Digest{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Digest{}, fmt.Errorf("digest %s: is a directory", path)
	}
	if offset > info.Size() {
		offset = 0
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return Digest{}, fmt.Errorf("seek %s: %w", path, err)
		}
	}

	digest, err := Reader(ctx, f)
	if err != nil {
		return Digest{}, fmt.Errorf("hash %s: %w", path, err)
	}
	digest.Offset = offset
	return digest, nil
}

// Reader hashes everything r yields.
func Reader(ctx context.Context, r io.Reader) (Digest, error) {
	md5Hash := md5.New()   //nolint:gosec
	sha1Hash := sha1.New() //nolint:gosec
	crcHash := crc32.NewIEEE()
	w := io.MultiWriter(md5Hash, sha1Hash, crcHash)

	n, err := io.Copy(w, &contextReader{ctx: ctx, r: r})
	if err != nil {
		return Digest{}, err
	}
	return Digest{
		MD5:   strings.ToUpper(hex.EncodeToString(md5Hash.Sum(nil))),
		CRC32: fmt.Sprintf("%08X", crcHash.Sum32()),
		SHA1:  strings.ToUpper(hex.EncodeToString(sha1Hash.Sum(nil))),
		Size:  n,
	}, nil
}

// contextReader stops a long hash between reads once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
