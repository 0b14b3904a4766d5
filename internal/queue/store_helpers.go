package queue

import (
	"database/sql"
	"fmt"

	"romimport/internal/services"
	"romimport/internal/sqlitedb"
)

const itemColumns = "id, position, url, kind, candidates_json, chosen_system, resolved_system, parent_id, depth, digest_json, status, failure_kind, error_message, missing_json, constituents_json, duplicate, expanded, enrichment_note, note, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id             int64
		position       int64
		url            string
		kind           sql.NullString
		candidates     sql.NullString
		chosenSystem   sql.NullString
		resolvedSystem sql.NullString
		parentID       sql.NullInt64
		depth          sql.NullInt64
		digest         sql.NullString
		statusStr      string
		failureKind    sql.NullString
		errorMessage   sql.NullString
		missing        sql.NullString
		constituents   sql.NullString
		duplicate      sql.NullInt64
		expanded       sql.NullInt64
		enrichmentNote sql.NullString
		note           sql.NullString
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&position,
		&url,
		&kind,
		&candidates,
		&chosenSystem,
		&resolvedSystem,
		&parentID,
		&depth,
		&digest,
		&statusStr,
		&failureKind,
		&errorMessage,
		&missing,
		&constituents,
		&duplicate,
		&expanded,
		&enrichmentNote,
		&note,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:             id,
		Position:       position,
		URL:            url,
		Kind:           FileKind(kind.String),
		ChosenSystem:   chosenSystem.String,
		ResolvedSystem: resolvedSystem.String,
		ParentID:       parentID.Int64,
		Depth:          int(depth.Int64),
		Status:         Status(statusStr),
		FailureKind:    services.ErrorKind(failureKind.String),
		ErrorMessage:   errorMessage.String,
		Duplicate:      duplicate.Int64 != 0,
		Expanded:       expanded.Int64 != 0,
		EnrichmentNote: enrichmentNote.String,
		Note:           note.String,
	}
	if item.Kind == "" {
		item.Kind = FileUnknown
	}
	if err := sqlitedb.UnmarshalJSON(candidates.String, &item.Candidates); err != nil {
		return nil, fmt.Errorf("item %d candidates: %w", id, err)
	}
	if err := sqlitedb.UnmarshalJSON(digest.String, &item.Digest); err != nil {
		return nil, fmt.Errorf("item %d digest: %w", id, err)
	}
	if err := sqlitedb.UnmarshalJSON(missing.String, &item.Missing); err != nil {
		return nil, fmt.Errorf("item %d missing: %w", id, err)
	}
	if err := sqlitedb.UnmarshalJSON(constituents.String, &item.Constituents); err != nil {
		return nil, fmt.Errorf("item %d constituents: %w", id, err)
	}

	if created, err := sqlitedb.ParseTime(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := sqlitedb.ParseTime(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

// itemJSONColumns encodes the structured columns in schema order:
// candidates, digest, missing, constituents.
func itemJSONColumns(item *Item) ([]any, error) {
	candidates, err := sqlitedb.MarshalJSON(item.Candidates, len(item.Candidates) == 0)
	if err != nil {
		return nil, err
	}
	digest, err := sqlitedb.MarshalJSON(item.Digest, item.Digest.IsZero())
	if err != nil {
		return nil, err
	}
	missing, err := sqlitedb.MarshalJSON(item.Missing, len(item.Missing) == 0)
	if err != nil {
		return nil, err
	}
	constituents, err := sqlitedb.MarshalJSON(item.Constituents, len(item.Constituents) == 0)
	if err != nil {
		return nil, err
	}
	return []any{candidates, digest, missing, constituents}, nil
}

func scanItems(rows *sql.Rows) ([]*Item, error) {
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
