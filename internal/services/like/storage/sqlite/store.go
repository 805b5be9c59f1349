// Package sqlite provides the SQLite-backed like journal.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/louisbranch/chirper/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/chirper/internal/services/like/domain"
	"github.com/louisbranch/chirper/internal/services/like/storage/sqlite/migrations"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store is a SQLite-backed like journal.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the like journal at the provided path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, "likes"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
//
// Close is intentionally nil-safe so callers can defer it in all startup paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// AppendEvents persists the batch atomically, assigning per-chirp sequence
// numbers.
func (s *Store) AppendEvents(ctx context.Context, chirpUUID string, events []domain.Event) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	chirpUUID = strings.TrimSpace(chirpUUID)
	if chirpUUID == "" {
		return nil, fmt.Errorf("chirp uuid is required")
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
		`SELECT COALESCE(MAX(seq), 0) FROM like_events WHERE chirp_uuid = ?`,
		chirpUUID,
	)
	if err := row.Scan(&lastSeq); err != nil {
		return nil, fmt.Errorf("read last seq: %w", err)
	}

	appended := make([]domain.Event, 0, len(events))
	for i, evt := range events {
		evt.ChirpUUID = chirpUUID
		evt.Seq = uint64(lastSeq) + uint64(i) + 1
		if evt.Timestamp.IsZero() {
			evt.Timestamp = time.Now().UTC()
		}
		evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO like_events (chirp_uuid, seq, timestamp, event_type, liker_id)
			 VALUES (?, ?, ?, ?, ?)`,
			evt.ChirpUUID,
			int64(evt.Seq),
			toMillis(evt.Timestamp),
			string(evt.Type),
			evt.LikerID,
		); err != nil {
			return nil, fmt.Errorf("append like event seq %d: %w", evt.Seq, err)
		}
		appended = append(appended, evt)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append transaction: %w", err)
	}
	return appended, nil
}

// ListEvents returns up to limit events for one chirp with seq greater than
// afterSeq, in seq order.
func (s *Store) ListEvents(ctx context.Context, chirpUUID string, afterSeq uint64, limit int) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	chirpUUID = strings.TrimSpace(chirpUUID)
	if chirpUUID == "" {
		return nil, fmt.Errorf("chirp uuid is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT chirp_uuid, seq, timestamp, event_type, liker_id
		 FROM like_events
		 WHERE chirp_uuid = ? AND seq > ?
		 ORDER BY seq ASC
		 LIMIT ?`,
		chirpUUID, int64(afterSeq), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list like events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			evt             domain.Event
			seq             int64
			timestampMillis int64
			eventType       string
		)
		if err := rows.Scan(&evt.ChirpUUID, &seq, &timestampMillis, &eventType, &evt.LikerID); err != nil {
			return nil, fmt.Errorf("scan like event: %w", err)
		}
		evt.Seq = uint64(seq)
		evt.Timestamp = fromMillis(timestampMillis)
		evt.Type = domain.EventType(eventType)
		events = append(events, evt)
	}
	return events, rows.Err()
}
