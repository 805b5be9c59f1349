package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/chirper/internal/services/friend/domain"
	"github.com/louisbranch/chirper/internal/services/friend/storage"
)

// AppendEvents persists the batch atomically, assigning per-entity sequence
// numbers and global stream offsets. The returned events carry the assigned
// Seq, Offset, and Timestamp.
func (s *Store) AppendEvents(ctx context.Context, userID string, events []domain.Event) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if len(events) == 0 {
		return nil, nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var lastSeq int64
	row := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM friend_events WHERE user_id = ?`,
		userID,
	)
	if err := row.Scan(&lastSeq); err != nil {
		return nil, fmt.Errorf("read last seq: %w", err)
	}

	appended := make([]domain.Event, 0, len(events))
	for i, evt := range events {
		evt.UserID = userID
		evt.Seq = uint64(lastSeq) + uint64(i) + 1
		if evt.Timestamp.IsZero() {
			evt.Timestamp = time.Now().UTC()
		}
		evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)

		res, err := tx.ExecContext(ctx,
			`INSERT INTO friend_events (user_id, seq, timestamp, event_type, friend_id, name)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			evt.UserID,
			int64(evt.Seq),
			toMillis(evt.Timestamp),
			string(evt.Type),
			evt.FriendID,
			evt.Name,
		)
		if err != nil {
			return nil, fmt.Errorf("append event seq %d: %w", evt.Seq, err)
		}
		offset, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("read event offset: %w", err)
		}
		evt.Offset = uint64(offset)
		appended = append(appended, evt)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append transaction: %w", err)
	}
	return appended, nil
}

// ListEvents returns up to limit events for one entity with seq greater than
// afterSeq, in seq order.
func (s *Store) ListEvents(ctx context.Context, userID string, afterSeq uint64, limit int) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT stream_offset, user_id, seq, timestamp, event_type, friend_id, name
		 FROM friend_events
		 WHERE user_id = ? AND seq > ?
		 ORDER BY seq ASC
		 LIMIT ?`,
		userID, int64(afterSeq), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListEventsAfterOffset returns up to limit events with a stream offset
// greater than offset, in global offset order. This is the projector tap.
func (s *Store) ListEventsAfterOffset(ctx context.Context, offset uint64, limit int) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT stream_offset, user_id, seq, timestamp, event_type, friend_id, name
		 FROM friend_events
		 WHERE stream_offset > ?
		 ORDER BY stream_offset ASC
		 LIMIT ?`,
		int64(offset), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events after offset: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	var events []domain.Event
	for rows.Next() {
		var (
			evt             domain.Event
			offset, seq     int64
			timestampMillis int64
			eventType       string
		)
		if err := rows.Scan(&offset, &evt.UserID, &seq, &timestampMillis, &eventType, &evt.FriendID, &evt.Name); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Offset = uint64(offset)
		evt.Seq = uint64(seq)
		evt.Timestamp = fromMillis(timestampMillis)
		evt.Type = domain.EventType(eventType)
		events = append(events, evt)
	}
	return events, rows.Err()
}

// GetSnapshot returns the stored snapshot for a user.
// Returns storage.ErrNotFound if no snapshot exists.
func (s *Store) GetSnapshot(ctx context.Context, userID string) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Snapshot{}, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.Snapshot{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT user_id, state_json, event_count, updated_at FROM friend_snapshots WHERE user_id = ?`,
		userID,
	)
	var (
		snapshot        storage.Snapshot
		eventCount      int64
		updatedAtMillis int64
	)
	err := row.Scan(&snapshot.UserID, &snapshot.StateJSON, &eventCount, &updatedAtMillis)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Snapshot{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	snapshot.EventCount = uint64(eventCount)
	snapshot.UpdatedAt = fromMillis(updatedAtMillis)
	return snapshot, nil
}

// SaveSnapshot upserts the snapshot for a user.
func (s *Store) SaveSnapshot(ctx context.Context, snapshot storage.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	snapshot.UserID = strings.TrimSpace(snapshot.UserID)
	if snapshot.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if snapshot.UpdatedAt.IsZero() {
		snapshot.UpdatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO friend_snapshots (user_id, state_json, event_count, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		     state_json = excluded.state_json,
		     event_count = excluded.event_count,
		     updated_at = excluded.updated_at`,
		snapshot.UserID,
		snapshot.StateJSON,
		int64(snapshot.EventCount),
		toMillis(snapshot.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
