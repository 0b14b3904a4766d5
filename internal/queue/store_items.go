package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"romimport/internal/sqlitedb"
)

// NewItem describes an item to append to the queue.
type NewItem struct {
	URL      string
	Kind     FileKind
	ParentID int64
	Depth    int
}

// Add appends an item in queued state. When an item with the same URL is
// already in the queue it is returned unchanged with created=false.
func (s *Store) Add(ctx context.Context, req NewItem) (*Item, bool, error) {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return nil, false, errors.New("add item: url is required")
	}
	if existing, err := s.GetByURL(ctx, url); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	kind := req.Kind
	if kind == "" {
		kind = FileUnknown
	}
	timestamp := sqlitedb.Timestamp(time.Now())

	var id int64
	err := sqlitedb.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO queue_items (
                position, url, kind, parent_id, depth, status, created_at, updated_at
            ) VALUES ((SELECT COALESCE(MAX(position), 0) + 1 FROM queue_items), ?, ?, ?, ?, ?, ?, ?)`,
			url,
			kind,
			sqlitedb.NullableInt64(req.ParentID),
			req.Depth,
			StatusQueued,
			timestamp,
			timestamp,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}
		return insertTransition(ctx, tx, id, "", StatusQueued, "added", timestamp)
	})
	if err != nil {
		if sqlitedb.IsConstraint(err) {
			// Lost a race with another writer for the same URL.
			if existing, getErr := s.GetByURL(ctx, url); getErr == nil && existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("insert item: %w", err)
	}

	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return item, true, nil
}

// GetByID fetches a queue item by identifier. A missing item returns nil, nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// GetByURL returns the live item for url, or nil when none exists.
func (s *Store) GetByURL(ctx context.Context, url string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE url = ?`, url)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item by url: %w", err)
	}
	return item, nil
}

// Update persists every mutable field of an existing item except status,
// which only changes through Transition.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	jsonCols, err := itemJSONColumns(item)
	if err != nil {
		return err
	}
	item.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET kind = ?, candidates_json = ?, digest_json = ?, missing_json = ?, constituents_json = ?,
             chosen_system = ?, resolved_system = ?, parent_id = ?, depth = ?,
             failure_kind = ?, error_message = ?, duplicate = ?, expanded = ?,
             enrichment_note = ?, note = ?, updated_at = ?
         WHERE id = ?`,
		item.Kind,
		jsonCols[0],
		jsonCols[1],
		jsonCols[2],
		jsonCols[3],
		sqlitedb.NullableString(item.ChosenSystem),
		sqlitedb.NullableString(item.ResolvedSystem),
		sqlitedb.NullableInt64(item.ParentID),
		item.Depth,
		sqlitedb.NullableString(string(item.FailureKind)),
		sqlitedb.NullableString(item.ErrorMessage),
		sqlitedb.BoolToInt(item.Duplicate),
		sqlitedb.BoolToInt(item.Expanded),
		sqlitedb.NullableString(item.EnrichmentNote),
		sqlitedb.NullableString(item.Note),
		sqlitedb.Timestamp(item.UpdatedAt),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update item %d: %w", item.ID, ErrItemNotFound)
	}
	return nil
}

// List returns queue items in position order, filtered by status when any are given.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	baseQuery := `SELECT ` + itemColumns + ` FROM queue_items`
	orderClause := ` ORDER BY position, id`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + sqlitedb.Placeholders(len(statuses)) + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	return scanItems(rows)
}

// Children returns the items whose parent is id, in position order.
func (s *Store) Children(ctx context.Context, id int64) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE parent_id = ? ORDER BY position, id`, id)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return scanItems(rows)
}

// NextQueued returns the queued item with the lowest position, or nil when
// nothing is waiting.
func (s *Store) NextQueued(ctx context.Context) (*Item, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items WHERE status = ? ORDER BY position, id LIMIT 1`,
		StatusQueued,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next queued item: %w", err)
	}
	return item, nil
}

// Remove deletes an item by identifier. Its transition history goes with it.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only successful items from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE status = ?`, StatusSuccess)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed items from the queue.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE status = ?`, StatusFailure)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all items from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusQueued:
			health.Queued += count
		case StatusProcessing:
			health.Processing += count
		case StatusSuccess:
			health.Success += count
		case StatusFailure:
			health.Failure += count
		case StatusConflict:
			health.Conflict += count
		case StatusPartial:
			health.Partial += count
		}
	}
	return health, nil
}
