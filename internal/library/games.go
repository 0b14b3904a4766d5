package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"romimport/internal/sqlitedb"
	"romimport/internal/textutil"
)

const gameColumns = "id, md5, crc32, sha1, size, system, title, path, constituents_json, source_url, region, description, developer, publisher, release_date, genres_json, front_art_url, back_art_url, reference_url, enrichment_source, imported_at"

func normalizeMD5(md5 string) string {
	return strings.ToUpper(strings.TrimSpace(md5))
}

// Exists reports whether a game with md5 is stored.
func (s *Store) Exists(ctx context.Context, md5 string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM games WHERE md5 = ?", normalizeMD5(md5)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check library md5: %w", err)
	}
	return count > 0, nil
}

// Insert stores a game and returns its id. A second game with the same MD5
// fails with ErrDuplicate.
func (s *Store) Insert(ctx context.Context, entry Entry) (int64, error) {
	entry.MD5 = normalizeMD5(entry.MD5)
	if entry.MD5 == "" {
		return 0, errors.New("library entry requires an md5")
	}
	if entry.System == "" || entry.Path == "" {
		return 0, errors.New("library entry requires a system and a path")
	}
	if entry.ImportedAt.IsZero() {
		entry.ImportedAt = time.Now().UTC()
	}
	stem := entry.Stem
	if stem == "" {
		stem = entry.Title
	}
	constituents, err := sqlitedb.MarshalJSON(entry.Constituents, len(entry.Constituents) == 0)
	if err != nil {
		return 0, err
	}
	genres, err := sqlitedb.MarshalJSON(entry.Genres, len(entry.Genres) == 0)
	if err != nil {
		return 0, err
	}

	res, err := sqlitedb.Exec(ctx, s.db, `INSERT INTO games (
            md5, crc32, sha1, size, system, title, stem_key, path, constituents_json, source_url,
            region, description, developer, publisher, release_date, genres_json,
            front_art_url, back_art_url, reference_url, enrichment_source, imported_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.MD5,
		sqlitedb.NullableString(strings.ToUpper(entry.CRC32)),
		sqlitedb.NullableString(strings.ToUpper(entry.SHA1)),
		entry.Size,
		entry.System,
		entry.Title,
		sqlitedb.NullableString(textutil.NormalizeTitle(stem)),
		entry.Path,
		constituents,
		sqlitedb.NullableString(entry.SourceURL),
		sqlitedb.NullableString(entry.Region),
		sqlitedb.NullableString(entry.Description),
		sqlitedb.NullableString(entry.Developer),
		sqlitedb.NullableString(entry.Publisher),
		sqlitedb.NullableString(entry.ReleaseDate),
		genres,
		sqlitedb.NullableString(entry.FrontArtURL),
		sqlitedb.NullableString(entry.BackArtURL),
		sqlitedb.NullableString(entry.ReferenceURL),
		sqlitedb.NullableString(entry.EnrichmentSource),
		sqlitedb.Timestamp(entry.ImportedAt),
	)
	if err != nil {
		if sqlitedb.IsConstraint(err) {
			return 0, fmt.Errorf("%w: md5 %s", ErrDuplicate, entry.MD5)
		}
		return 0, fmt.Errorf("insert library game: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("library game id: %w", err)
	}
	return id, nil
}

// Get returns the game stored under md5, or nil when there is none.
func (s *Store) Get(ctx context.Context, md5 string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+gameColumns+" FROM games WHERE md5 = ?", normalizeMD5(md5))
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

// FindByStem returns the most recently imported game whose title stem
// matches stem after normalization, or nil.
func (s *Store) FindByStem(ctx context.Context, stem string) (*Entry, error) {
	key := textutil.NormalizeTitle(stem)
	if key == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+gameColumns+" FROM games WHERE stem_key = ? ORDER BY id DESC LIMIT 1", key)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

// List returns the games of system ordered by title, or every game when
// system is empty.
func (s *Store) List(ctx context.Context, system string) ([]Entry, error) {
	query := "SELECT " + gameColumns + " FROM games"
	var args []any
	if system != "" {
		query += " WHERE system = ?"
		args = append(args, system)
	}
	query += " ORDER BY system, title COLLATE NOCASE, id"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list library games: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Count returns the number of stored games.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM games").Scan(&count); err != nil {
		return 0, fmt.Errorf("count library games: %w", err)
	}
	return count, nil
}

// CountBySystem returns the number of games per system.
func (s *Store) CountBySystem(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT system, COUNT(1) FROM games GROUP BY system")
	if err != nil {
		return nil, fmt.Errorf("count library games: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var (
			system string
			count  int
		)
		if err := rows.Scan(&system, &count); err != nil {
			return nil, err
		}
		counts[system] = count
	}
	return counts, rows.Err()
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry        Entry
		crc32        sql.NullString
		sha1         sql.NullString
		constituents sql.NullString
		sourceURL    sql.NullString
		region       sql.NullString
		description  sql.NullString
		developer    sql.NullString
		publisher    sql.NullString
		releaseDate  sql.NullString
		genres       sql.NullString
		frontArt     sql.NullString
		backArt      sql.NullString
		reference    sql.NullString
		source       sql.NullString
		importedRaw  string
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.MD5,
		&crc32,
		&sha1,
		&entry.Size,
		&entry.System,
		&entry.Title,
		&entry.Path,
		&constituents,
		&sourceURL,
		&region,
		&description,
		&developer,
		&publisher,
		&releaseDate,
		&genres,
		&frontArt,
		&backArt,
		&reference,
		&source,
		&importedRaw,
	); err != nil {
		return nil, err
	}
	entry.CRC32 = crc32.String
	entry.SHA1 = sha1.String
	entry.SourceURL = sourceURL.String
	entry.Region = region.String
	entry.Description = description.String
	entry.Developer = developer.String
	entry.Publisher = publisher.String
	entry.ReleaseDate = releaseDate.String
	entry.FrontArtURL = frontArt.String
	entry.BackArtURL = backArt.String
	entry.ReferenceURL = reference.String
	entry.EnrichmentSource = source.String
	if err := sqlitedb.UnmarshalJSON(constituents.String, &entry.Constituents); err != nil {
		return nil, fmt.Errorf("game %d constituents: %w", entry.ID, err)
	}
	if err := sqlitedb.UnmarshalJSON(genres.String, &entry.Genres); err != nil {
		return nil, fmt.Errorf("game %d genres: %w", entry.ID, err)
	}
	if t, err := sqlitedb.ParseTime(importedRaw); err == nil {
		entry.ImportedAt = t
	}
	return &entry, nil
}
