package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"romimport/internal/grouping"
	"romimport/internal/hashing"
	"romimport/internal/library"
	"romimport/internal/logging"
	"romimport/internal/queue"
	"romimport/internal/services"
)

func (m *Manager) importDirectory(ctx context.Context, logger *slog.Logger, item *queue.Item) outcome {
	paths, err := m.scanDirectory(item.URL)
	if err != nil {
		return fail(services.Wrap(services.ErrNotFound, "scan", "walk", filepath.Base(item.URL), err))
	}
	added := 0
	for _, path := range paths {
		if err := m.checkpoint(ctx, item); err != nil {
			return fail(err)
		}
		if _, created, err := m.enqueue(ctx, logger, queue.NewItem{URL: path}); err != nil {
			return fail(services.Wrap(services.ErrPersistenceFailed, "scan", "enqueue", filepath.Base(path), err))
		} else if created {
			added++
		}
	}
	logger.Info("directory scanned",
		logging.String(logging.FieldEventType, "directory_scanned"),
		logging.Int("files", len(paths)),
		logging.Int("added", added),
	)
	return succeed(fmt.Sprintf("added %d of %d files", added, len(paths)))
}

func (m *Manager) expandArchive(ctx context.Context, logger *slog.Logger, item *queue.Item) outcome {
	limit := m.cfg.Import.MaxArchiveDepth
	if item.Depth >= limit {
		return fail(services.Wrap(services.ErrExtractionFailed, "expand", "depth",
			fmt.Sprintf("archive nested deeper than %d levels", limit), nil))
	}

	dest := filepath.Join(m.cfg.Paths.StagingDir, uuid.NewString())
	entries, err := m.expander.Expand(ctx, item.URL, dest)
	if err != nil {
		_ = os.RemoveAll(dest)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fail(ctxErr)
		}
		return fail(err)
	}
	if err := m.checkpoint(ctx, item); err != nil {
		_ = os.RemoveAll(dest)
		return fail(err)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if m.excluded(entry.Name) {
			continue
		}
		paths = append(paths, entry.Path)
	}
	paths = grouping.SortForAdd(paths)

	for _, path := range paths {
		req := queue.NewItem{URL: path, ParentID: item.ID, Depth: item.Depth + 1}
		if _, _, err := m.enqueue(ctx, logger, req); err != nil {
			return fail(services.Wrap(services.ErrPersistenceFailed, "expand", "enqueue", filepath.Base(path), err))
		}
	}
	item.Expanded = true
	logger.Info("archive expanded",
		logging.String(logging.FieldEventType, "archive_expanded"),
		logging.Int("members", len(entries)),
		logging.Int("queued", len(paths)),
		logging.String("staging", dest),
	)
	return succeed(fmt.Sprintf("expanded %d files", len(paths)))
}

func (m *Manager) importBIOS(ctx context.Context, logger *slog.Logger, item *queue.Item) outcome {
	snap := m.identity().Snapshot()
	name := filepath.Base(item.URL)

	digest, digestErr := m.identity().Digest(ctx, item)
	bios, matched := snap.BIOSByName(name)
	if digestErr == nil {
		if byDigest, ok := snap.BIOSByDigest(digest.MD5); ok {
			bios, matched = byDigest, true
		}
	}
	if !matched {
		return fail(services.Wrap(services.ErrUnsupportedSystem, "bios", "match", "no known firmware named "+name, nil))
	}
	if digestErr != nil {
		return fail(digestErr)
	}
	item.ResolvedSystem = bios.System

	exists, err := m.library.BIOSExists(ctx, digest.MD5)
	if err != nil {
		return fail(services.Wrap(services.ErrPersistenceFailed, "bios", "lookup", name, err))
	}
	if exists {
		item.Duplicate = true
		return succeed("firmware already in library")
	}
	if err := m.checkpoint(ctx, item); err != nil {
		return fail(err)
	}

	dest := filepath.Join(m.cfg.Paths.LibraryDir, "bios", bios.System, bios.FileName)
	placed, err := m.place([]string{item.URL}, func(string) string { return dest })
	if err != nil {
		return fail(services.Wrap(services.ErrMoveOrCopyFailed, "bios", "place", name, err))
	}
	if err := m.checkpoint(ctx, item); err != nil {
		m.rollback(logger, placed)
		return fail(err)
	}
	_, err = m.library.InsertBIOS(ctx, library.BIOS{MD5: digest.MD5, System: bios.System, Name: bios.FileName, Path: dest})
	if err != nil {
		m.rollback(logger, placed)
		if errors.Is(err, library.ErrDuplicate) {
			item.Duplicate = true
			return succeed("firmware already in library")
		}
		return fail(services.Wrap(services.ErrPersistenceFailed, "bios", "insert", name, err))
	}
	logger.Info("firmware imported",
		logging.String(logging.FieldEventType, "bios_imported"),
		logging.String(logging.FieldSystem, bios.System),
		logging.String("path", dest),
	)
	return succeed("firmware for "+bios.System, item.URL)
}

func (m *Manager) importArtwork(ctx context.Context, logger *slog.Logger, item *queue.Item) outcome {
	name := filepath.Base(item.URL)
	kind, stem := artworkKind(name)

	game, err := m.library.FindByStem(ctx, stem)
	if err != nil {
		return fail(services.Wrap(services.ErrPersistenceFailed, "artwork", "match", name, err))
	}
	if err := m.checkpoint(ctx, item); err != nil {
		return fail(err)
	}

	dir := filepath.Join(m.cfg.Paths.LibraryDir, "artwork")
	art := library.Artwork{Kind: kind}
	if game != nil {
		dir = filepath.Join(dir, game.System)
		art.GameID = game.ID
		item.ResolvedSystem = game.System
	}
	placed, err := m.place([]string{item.URL}, func(src string) string {
		return uniquePath(filepath.Join(dir, filepath.Base(src)))
	})
	if err != nil {
		return fail(services.Wrap(services.ErrMoveOrCopyFailed, "artwork", "place", name, err))
	}
	if err := m.checkpoint(ctx, item); err != nil {
		m.rollback(logger, placed)
		return fail(err)
	}
	art.Path = placed[0].dst
	if _, err := m.library.AttachArtwork(ctx, art); err != nil {
		m.rollback(logger, placed)
		return fail(services.Wrap(services.ErrPersistenceFailed, "artwork", "attach", name, err))
	}
	if game == nil {
		return succeed("artwork stored without a matching game", item.URL)
	}
	return succeed(fmt.Sprintf("%s artwork for %s", kind, game.Title), item.URL)
}

// importGame identifies, resolves and imports a ROM or disc image.
func (m *Manager) importGame(ctx context.Context, logger *slog.Logger, item *queue.Item) outcome {
	name := filepath.Base(item.URL)

	if item.ChosenSystem == "" && len(item.Candidates) == 0 {
		candidates, err := m.identity().DetermineSystems(stepContext(ctx, "identify"), item)
		if err != nil {
			return fail(err)
		}
		item.Candidates = candidates
	}
	if err := m.checkpoint(ctx, item); err != nil {
		return fail(err)
	}

	siblings, err := siblingPaths(item.URL)
	if err != nil {
		return fail(services.Wrap(services.ErrNotFound, "resolve", "list directory", name, err))
	}
	decision, err := m.resolver(ctx).Resolve(item, siblings)
	if err != nil {
		return fail(services.Wrap(services.ErrValidation, "resolve", "read sheet", name, err))
	}

	switch decision.Kind {
	case grouping.DecisionUnmatched:
		return fail(services.Wrap(services.ErrNoSystemMatched, "resolve", "identify", "no system claims "+name, nil))
	case grouping.DecisionConflict:
		message := "multiple systems: " + strings.Join(decision.Systems, ", ")
		queue.ApplyFailure(item, services.Wrap(services.ErrMultipleSystemConflict, "resolve", "identify", message, nil))
		return outcome{status: queue.StatusConflict, message: message}
	case grouping.DecisionPartial:
		item.Missing = decision.Missing
		return outcome{status: queue.StatusPartial, message: "waiting for: " + strings.Join(decision.Missing, ", ")}
	}

	system := decision.System
	if !m.identity().Snapshot().Known(system) {
		return fail(services.Wrap(services.ErrUnsupportedSystem, "resolve", "registry", "unknown system "+system, nil))
	}
	item.ResolvedSystem = system
	if decision.GroupedInto != "" {
		item.Note = "grouped into " + filepath.Base(decision.GroupedInto)
		return succeed(item.Note)
	}
	item.Constituents = decision.Constituents

	digest, err := m.identity().Digest(stepContext(ctx, "digest"), item)
	if err != nil {
		return fail(err)
	}
	exists, err := m.library.Exists(ctx, digest.MD5)
	if err != nil {
		return fail(services.Wrap(services.ErrPersistenceFailed, "library", "lookup", name, err))
	}
	if exists {
		item.Duplicate = true
		return outcome{status: queue.StatusSuccess, message: "already in library", constituents: decision.Constituents}
	}
	if err := m.checkpoint(ctx, item); err != nil {
		return fail(err)
	}

	stem := grouping.TitleStem(name)
	if len(decision.Constituents) > 1 {
		stem = grouping.TitleStem(filepath.Base(decision.Constituents[0]))
	}
	entry := library.Entry{
		MD5:       digest.MD5,
		CRC32:     digest.CRC32,
		SHA1:      digest.SHA1,
		Size:      digest.Size,
		System:    system,
		Title:     stem,
		Stem:      stem,
		SourceURL: item.URL,
	}
	m.enrich(stepContext(ctx, "enrich"), logger, item, digest, &entry)
	if err := m.checkpoint(ctx, item); err != nil {
		return fail(err)
	}

	placed, err := m.placeTitle(system, stem, decision.Constituents)
	if err != nil {
		return fail(services.Wrap(services.ErrMoveOrCopyFailed, "place", "library", name, err))
	}
	if err := m.checkpoint(ctx, item); err != nil {
		m.rollback(logger, placed)
		return fail(err)
	}
	entry.Path = placed[0].dst
	if len(placed) > 1 {
		for _, p := range placed {
			entry.Constituents = append(entry.Constituents, p.dst)
		}
	}
	if _, err := m.library.Insert(ctx, entry); err != nil {
		m.rollback(logger, placed)
		if errors.Is(err, library.ErrDuplicate) {
			item.Duplicate = true
			return outcome{status: queue.StatusSuccess, message: "already in library", constituents: decision.Constituents}
		}
		return fail(services.Wrap(services.ErrPersistenceFailed, "library", "insert", name, err))
	}
	logger.Info("game imported",
		logging.String(logging.FieldEventType, "game_imported"),
		logging.String(logging.FieldSystem, system),
		logging.String("title", entry.Title),
		logging.Int("files", len(placed)),
		logging.Group("digest", logging.String("md5", digest.MD5), logging.Int64("size", digest.Size)),
	)
	return outcome{
		status:       queue.StatusSuccess,
		message:      "imported as " + system,
		imported:     decision.Constituents,
		constituents: decision.Constituents,
	}
}

// enrich fills entry from the metadata provider. Failures only leave a note
// on the item.
func (m *Manager) enrich(ctx context.Context, logger *slog.Logger, item *queue.Item, digest hashing.Digest, entry *library.Entry) {
	if !m.enricher.Enabled() {
		return
	}
	result, err := m.enricher.Enrich(ctx, entry.System, digest.MD5, entry.Stem)
	if err != nil {
		item.EnrichmentNote = services.Details(err).Message
		logger.Warn("metadata lookup failed; importing without it",
			logging.String(logging.FieldEventType, "enrichment_failed"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check enrichment base_url and api_key"),
		)
		return
	}
	if result == nil {
		item.EnrichmentNote = "no metadata match"
		return
	}
	if result.Title != "" {
		entry.Title = result.Title
	}
	entry.Region = result.Region
	entry.Description = result.Description
	entry.Developer = result.Developer
	entry.Publisher = result.Publisher
	entry.ReleaseDate = result.ReleaseDate
	entry.Genres = result.Genres
	entry.FrontArtURL = result.FrontArtURL
	entry.BackArtURL = result.BackArtURL
	entry.ReferenceURL = result.ReferenceURL
	entry.EnrichmentSource = result.Source
}

func siblingPaths(path string) ([]string, error) {
	dir := filepath.Dir(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	siblings := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		full := filepath.Join(dir, entry.Name())
		if full == path {
			continue
		}
		siblings = append(siblings, full)
	}
	return siblings, nil
}

func matchesMissing(missing []string, path string) bool {
	return grouping.MatchesMissing(missing, path)
}

func baseName(path string) string {
	return filepath.Base(path)
}

// artworkKind reports the artwork kind a file name implies and the title
// stem left once the kind marker is removed.
func artworkKind(name string) (library.ArtworkKind, string) {
	stem := grouping.TitleStem(name)
	lower := strings.ToLower(stem)
	markers := []struct {
		word string
		kind library.ArtworkKind
	}{
		{"back", library.ArtworkBack},
		{"front", library.ArtworkFront},
		{"cover", library.ArtworkFront},
		{"box", library.ArtworkFront},
	}
	for _, marker := range markers {
		for _, suffix := range []string{" (" + marker.word + ")", " [" + marker.word + "]", "-" + marker.word, "_" + marker.word, " " + marker.word} {
			if strings.HasSuffix(lower, suffix) {
				return marker.kind, strings.TrimSpace(stem[:len(stem)-len(suffix)])
			}
		}
		if lower == marker.word {
			return marker.kind, stem
		}
	}
	return library.ArtworkOther, stem
}
