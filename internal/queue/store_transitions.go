package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"romimport/internal/sqlitedb"
)

// Transition moves item to status `to`, persisting the item's other fields in
// the same transaction and appending a history row. The state machine is
// checked against the stored status, not the in-memory copy.
func (s *Store) Transition(ctx context.Context, item *Item, to Status, message string) error {
	if item == nil {
		return errors.New("item is nil")
	}
	jsonCols, err := itemJSONColumns(item)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	timestamp := sqlitedb.Timestamp(now)

	var from Status
	err = sqlitedb.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT status FROM queue_items WHERE id = ?`, item.ID).Scan(&from); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("transition item %d: %w", item.ID, ErrItemNotFound)
			}
			return err
		}
		if !CanTransition(from, to) {
			return &TransitionError{ItemID: item.ID, From: from, To: to}
		}
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE queue_items
             SET status = ?, kind = ?, candidates_json = ?, digest_json = ?, missing_json = ?,
                 constituents_json = ?, chosen_system = ?, resolved_system = ?, parent_id = ?,
                 depth = ?, failure_kind = ?, error_message = ?, duplicate = ?, expanded = ?,
                 enrichment_note = ?, note = ?, updated_at = ?
             WHERE id = ?`,
			to,
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
			timestamp,
			item.ID,
		); err != nil {
			return err
		}
		return insertTransition(ctx, tx, item.ID, from, to, message, timestamp)
	})
	if err != nil {
		return err
	}
	item.Status = to
	item.UpdatedAt = now
	return nil
}

func insertTransition(ctx context.Context, tx *sql.Tx, id int64, from, to Status, message, timestamp string) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO queue_transitions (item_id, from_status, to_status, message, at) VALUES (?, ?, ?, ?, ?)`,
		id,
		sqlitedb.NullableString(string(from)),
		to,
		sqlitedb.NullableString(message),
		timestamp,
	)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// History returns the recorded status changes for an item, oldest first.
func (s *Store) History(ctx context.Context, id int64) ([]Transition, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, item_id, from_status, to_status, message, at FROM queue_transitions WHERE item_id = ? ORDER BY id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var history []Transition
	for rows.Next() {
		var (
			tr      Transition
			from    sql.NullString
			message sql.NullString
			at      string
		)
		if err := rows.Scan(&tr.ID, &tr.ItemID, &from, &tr.To, &message, &at); err != nil {
			return nil, err
		}
		tr.From = Status(from.String)
		tr.Message = message.String
		if parsed, err := sqlitedb.ParseTime(at); err == nil {
			tr.At = parsed
		}
		history = append(history, tr)
	}
	return history, rows.Err()
}

// ResetStuckProcessing returns items left in processing by an unclean
// shutdown to queued, keeping their position.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	items, err := s.List(ctx, StatusProcessing)
	if err != nil {
		return 0, err
	}
	var reset int64
	for _, item := range items {
		if err := s.Transition(ctx, item, StatusQueued, "reset from stuck processing"); err != nil {
			return reset, fmt.Errorf("reset stuck item %d: %w", item.ID, err)
		}
		reset++
	}
	return reset, nil
}

// RetryFailed moves failed items back to queued for reprocessing. With no IDs
// every failed item is retried. Cached digests and expansion state are kept.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	var items []*Item
	if len(ids) == 0 {
		failed, err := s.List(ctx, StatusFailure)
		if err != nil {
			return 0, err
		}
		items = failed
	} else {
		for _, id := range ids {
			item, err := s.GetByID(ctx, id)
			if err != nil {
				return 0, err
			}
			if item != nil && item.Status == StatusFailure {
				items = append(items, item)
			}
		}
	}

	var retried int64
	for _, item := range items {
		item.ResetOutcome()
		if err := s.Transition(ctx, item, StatusQueued, "retry requested"); err != nil {
			return retried, fmt.Errorf("retry item %d: %w", item.ID, err)
		}
		retried++
	}
	return retried, nil
}

// Conflicts returns the items waiting for a system choice.
func (s *Store) Conflicts(ctx context.Context) ([]*Item, error) {
	return s.List(ctx, StatusConflict)
}

// ListPartial returns items waiting for missing siblings.
func (s *Store) ListPartial(ctx context.Context) ([]*Item, error) {
	return s.List(ctx, StatusPartial)
}

// GroupOwner returns the successful item, other than id, whose title lists
// url among its constituents, or nil when no title claimed it.
func (s *Store) GroupOwner(ctx context.Context, id int64, url string) (*Item, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items
         WHERE status = ? AND id != ? AND constituents_json IS NOT NULL
           AND EXISTS (SELECT 1 FROM json_each(queue_items.constituents_json) WHERE value = ?)
         ORDER BY position, id LIMIT 1`,
		StatusSuccess, id, url,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find group owner: %w", err)
	}
	return item, nil
}
