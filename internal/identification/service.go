package identification

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"romimport/internal/archive"
	"romimport/internal/hashing"
	"romimport/internal/logging"
	"romimport/internal/queue"
	"romimport/internal/registry"
	"romimport/internal/services"
)

const stageName = "identify"

// maxBIOSProbeSize bounds the files hashed while looking for firmware images.
// The largest firmware in the registry is a 4 MiB console BIOS.
const maxBIOSProbeSize = 16 << 20

// DigestTable resolves content digests to the systems whose reference data
// lists them.
type DigestTable interface {
	SystemsForDigest(d hashing.Digest) []string
}

// Service classifies paths and determines candidate systems for queue items.
type Service struct {
	snapshot *registry.Snapshot
	hasher   hashing.Provider
	table    DigestTable
	fs       afero.Fs
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithFs overrides the filesystem used for stat, header and signature reads.
func WithFs(fsys afero.Fs) Option {
	return func(s *Service) {
		if fsys != nil {
			s.fs = fsys
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logging.NewComponentLogger(logger, "identification")
		}
	}
}

// New builds a Service bound to a fixed registry snapshot. A nil table
// disables digest lookups.
func New(snapshot *registry.Snapshot, hasher hashing.Provider, table DigestTable, opts ...Option) *Service {
	if snapshot == nil {
		snapshot = registry.Builtin()
	}
	svc := &Service{
		snapshot: snapshot,
		hasher:   hasher,
		table:    table,
		fs:       afero.NewOsFs(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.hasher == nil {
		svc.hasher = hashing.NewFileProvider(svc.fs)
	}
	return svc
}

// WithSnapshot returns a copy of the service bound to snap.
func (s *Service) WithSnapshot(snap *registry.Snapshot) *Service {
	clone := *s
	if snap != nil {
		clone.snapshot = snap
	}
	return &clone
}

// Snapshot returns the registry snapshot the service answers from.
func (s *Service) Snapshot() *registry.Snapshot {
	return s.snapshot
}

// Digest returns the item's digest, computing it once and caching it on the
// item. Files with a headered extension are hashed past their dumper header.
func (s *Service) Digest(ctx context.Context, item *queue.Item) (hashing.Digest, error) {
	if item == nil {
		return hashing.Digest{}, errors.New("item is nil")
	}
	if !item.Digest.IsZero() {
		return item.Digest, nil
	}
	var offset int64
	if s.snapshot.Headered(ExtensionOf(item.URL)) {
		detected, err := hashing.HeaderOffset(s.fs, item.URL)
		if err != nil {
			return hashing.Digest{}, services.Wrap(services.ErrDigestUnavailable, stageName, "header", "read header", err)
		}
		offset = detected
	}
	digest, err := s.hasher.Digest(ctx, item.URL, offset)
	if err != nil {
		return hashing.Digest{}, services.Wrap(services.ErrDigestUnavailable, stageName, "digest", filepath.Base(item.URL), err)
	}
	item.Digest = digest
	return digest, nil
}

// DetermineSystems returns the candidate systems for item. A reference
// digest hit wins outright; otherwise every registry system claiming the
// extension is a candidate. An empty result means nothing matched. The digest
// failing is only an error when the file has an extension that offers no
// fallback; a blank name or a name without an extension yields nothing.
func (s *Service) DetermineSystems(ctx context.Context, item *queue.Item) ([]queue.Candidate, error) {
	if item == nil {
		return nil, errors.New("item is nil")
	}
	if strings.TrimSpace(item.URL) == "" {
		return nil, nil
	}
	logger := logging.WithContext(ctx, s.logger)

	digest, digestErr := s.Digest(ctx, item)
	if digestErr == nil && s.table != nil {
		var candidates []queue.Candidate
		for _, system := range s.table.SystemsForDigest(digest) {
			if !s.snapshot.Known(system) {
				continue
			}
			candidates = append(candidates, queue.Candidate{System: system, Source: queue.SourceDigest})
		}
		if len(candidates) > 0 {
			logger.Debug("digest matched reference data",
				logging.String("md5", digest.MD5),
				logging.Int("systems", len(candidates)),
			)
			return candidates, nil
		}
	}

	ext := ExtensionOf(item.URL)
	var candidates []queue.Candidate
	for _, system := range s.snapshot.SystemsForExtension(ext) {
		candidates = append(candidates, queue.Candidate{System: system, Source: queue.SourceExtension})
	}
	if len(candidates) > 0 {
		if digestErr != nil {
			logger.Warn("digest unavailable; using extension match",
				logging.String("extension", ext),
				logging.Error(digestErr),
			)
		}
		return candidates, nil
	}
	if digestErr != nil && ext != "" {
		return nil, digestErr
	}
	if digestErr != nil {
		logger.Debug("digest unavailable for file without extension", logging.Error(digestErr))
	}
	return nil, nil
}

// Classify reports the FileKind of path without touching the queue.
func (s *Service) Classify(ctx context.Context, path string) (queue.FileKind, error) {
	return s.ClassifyItem(ctx, &queue.Item{URL: path})
}

// ClassifyItem reports the FileKind of the item's path. Checks run in order:
// directory, BIOS, artwork, disc image, archive signature, registered ROM
// extension. A BIOS digest probe caches the digest on the item.
func (s *Service) ClassifyItem(ctx context.Context, item *queue.Item) (queue.FileKind, error) {
	if item == nil {
		return queue.FileUnknown, errors.New("item is nil")
	}
	info, err := s.fs.Stat(item.URL)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return queue.FileUnknown, services.Wrap(services.ErrNotFound, stageName, "classify", filepath.Base(item.URL), err)
		}
		return queue.FileUnknown, fmt.Errorf("stat %s: %w", item.URL, err)
	}
	if info.IsDir() {
		return queue.FileDirectory, nil
	}

	name := filepath.Base(item.URL)
	ext := ExtensionOf(name)

	if _, ok := s.snapshot.BIOSByName(name); ok {
		return queue.FileBIOS, nil
	}
	if s.probeBIOS(ctx, item, ext, info.Size()) {
		return queue.FileBIOS, nil
	}
	if IsArtworkExtension(ext) {
		return queue.FileArtwork, nil
	}
	if s.isDiscImage(ext) {
		return queue.FileDiscImage, nil
	}
	format, err := archive.DetectFile(s.fs, item.URL)
	if err != nil {
		return queue.FileUnknown, fmt.Errorf("detect archive: %w", err)
	}
	if format != archive.FormatNone {
		return queue.FileArchive, nil
	}
	if s.snapshot.HasExtension(ext) {
		return queue.FileROM, nil
	}
	return queue.FileUnknown, nil
}

func (s *Service) probeBIOS(ctx context.Context, item *queue.Item, ext string, size int64) bool {
	if size == 0 || size > maxBIOSProbeSize || s.snapshot.Headered(ext) || IsArtworkExtension(ext) || IsSheetExtension(ext) {
		return false
	}
	digest, err := s.Digest(ctx, item)
	if err != nil {
		return false
	}
	_, ok := s.snapshot.BIOSByDigest(digest.MD5)
	return ok
}

func (s *Service) isDiscImage(ext string) bool {
	if ext == "" {
		return false
	}
	if _, ok := discImageExtensions[ext]; ok {
		return true
	}
	systems := s.snapshot.SystemsForExtension(ext)
	if len(systems) == 0 {
		return false
	}
	for _, id := range systems {
		if !s.snapshot.DiscBased(id) {
			return false
		}
	}
	return true
}
