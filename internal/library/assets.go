package library

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"romimport/internal/sqlitedb"
)

// InsertBIOS records a placed firmware image. A second image with the same
// MD5 fails with ErrDuplicate.
func (s *Store) InsertBIOS(ctx context.Context, bios BIOS) (int64, error) {
	bios.MD5 = normalizeMD5(bios.MD5)
	if bios.MD5 == "" || bios.System == "" {
		return 0, fmt.Errorf("bios %q requires an md5 and a system", bios.Name)
	}
	if bios.ImportedAt.IsZero() {
		bios.ImportedAt = time.Now().UTC()
	}
	res, err := sqlitedb.Exec(ctx, s.db,
		"INSERT INTO bios (md5, system, name, path, imported_at) VALUES (?, ?, ?, ?, ?)",
		bios.MD5, bios.System, bios.Name, bios.Path, sqlitedb.Timestamp(bios.ImportedAt),
	)
	if err != nil {
		if sqlitedb.IsConstraint(err) {
			return 0, fmt.Errorf("%w: bios md5 %s", ErrDuplicate, bios.MD5)
		}
		return 0, fmt.Errorf("insert bios: %w", err)
	}
	return res.LastInsertId()
}

// BIOSExists reports whether firmware with md5 is stored.
func (s *Store) BIOSExists(ctx context.Context, md5 string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM bios WHERE md5 = ?", normalizeMD5(md5)).Scan(&count); err != nil {
		return false, fmt.Errorf("check bios md5: %w", err)
	}
	return count > 0, nil
}

// ListBIOS returns the stored firmware of system, or all of it when system
// is empty.
func (s *Store) ListBIOS(ctx context.Context, system string) ([]BIOS, error) {
	query := "SELECT id, md5, system, name, path, imported_at FROM bios"
	var args []any
	if system != "" {
		query += " WHERE system = ?"
		args = append(args, system)
	}
	query += " ORDER BY system, name"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bios: %w", err)
	}
	defer rows.Close()

	var out []BIOS
	for rows.Next() {
		var (
			b   BIOS
			raw string
		)
		if err := rows.Scan(&b.ID, &b.MD5, &b.System, &b.Name, &b.Path, &raw); err != nil {
			return nil, err
		}
		if t, err := sqlitedb.ParseTime(raw); err == nil {
			b.ImportedAt = t
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AttachArtwork records an artwork file, linked to a game when GameID is set.
// Re-attaching the same path updates its link.
func (s *Store) AttachArtwork(ctx context.Context, art Artwork) (int64, error) {
	if strings.TrimSpace(art.Path) == "" {
		return 0, fmt.Errorf("artwork requires a path")
	}
	if art.Kind == "" {
		art.Kind = ArtworkOther
	}
	if art.CreatedAt.IsZero() {
		art.CreatedAt = time.Now().UTC()
	}
	var id int64
	err := sqlitedb.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO artwork (game_id, kind, path, created_at) VALUES (?, ?, ?, ?)
            ON CONFLICT(path) DO UPDATE SET game_id = excluded.game_id, kind = excluded.kind`,
			sqlitedb.NullableInt64(art.GameID), string(art.Kind), art.Path, sqlitedb.Timestamp(art.CreatedAt),
		); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, "SELECT id FROM artwork WHERE path = ?", art.Path).Scan(&id)
	})
	if err != nil {
		if sqlitedb.IsConstraint(err) {
			return 0, fmt.Errorf("attach artwork: game %d does not exist: %w", art.GameID, err)
		}
		return 0, fmt.Errorf("attach artwork: %w", err)
	}
	return id, nil
}

// Artwork returns the artwork attached to gameID.
func (s *Store) Artwork(ctx context.Context, gameID int64) ([]Artwork, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, COALESCE(game_id, 0), kind, path, created_at FROM artwork WHERE game_id = ? ORDER BY id", gameID)
	if err != nil {
		return nil, fmt.Errorf("list artwork: %w", err)
	}
	defer rows.Close()

	var out []Artwork
	for rows.Next() {
		var (
			a    Artwork
			kind string
			raw  string
		)
		if err := rows.Scan(&a.ID, &a.GameID, &kind, &a.Path, &raw); err != nil {
			return nil, err
		}
		a.Kind = ArtworkKind(kind)
		if t, err := sqlitedb.ParseTime(raw); err == nil {
			a.CreatedAt = t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
