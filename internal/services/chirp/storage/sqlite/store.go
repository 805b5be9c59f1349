// Package sqlite provides the SQLite-backed chirp history store.
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
	"github.com/louisbranch/chirper/internal/services/chirp/domain"
	"github.com/louisbranch/chirper/internal/services/chirp/storage/sqlite/migrations"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store is a SQLite-backed chirp history store.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the chirp store at the provided path and applies migrations.
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

	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, "chirps"); err != nil {
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

// PutChirp stores one chirp, overwriting any previous copy with the same
// author and uuid.
func (s *Store) PutChirp(ctx context.Context, chirp domain.Chirp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	chirp, err := domain.NormalizeChirp(chirp)
	if err != nil {
		return err
	}
	if chirp.Timestamp.IsZero() {
		chirp.Timestamp = time.Now().UTC()
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO chirp (author_id, uuid, message, timestamp)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (author_id, uuid) DO UPDATE SET
		     message = excluded.message,
		     timestamp = excluded.timestamp`,
		chirp.AuthorID,
		chirp.UUID,
		chirp.Message,
		toMillis(chirp.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("put chirp: %w", err)
	}
	return nil
}

// RecentChirps returns up to limit most recent chirps across the given
// authors, newest first. Ties on timestamp break by author then uuid so the
// order is stable.
func (s *Store) RecentChirps(ctx context.Context, authorIDs []string, limit int) ([]domain.Chirp, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	if len(authorIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(
		`SELECT author_id, uuid, message, timestamp
		 FROM chirp
		 WHERE author_id IN (%s)
		 ORDER BY timestamp DESC, author_id DESC, uuid DESC
		 LIMIT ?`,
		placeholders(len(authorIDs)),
	)
	args := make([]any, 0, len(authorIDs)+1)
	for _, id := range authorIDs {
		args = append(args, id)
	}
	args = append(args, limit)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recent chirps: %w", err)
	}
	defer rows.Close()
	return scanChirps(rows)
}

// ChirpsSince returns all chirps by the given authors with a timestamp at or
// after since, oldest first.
func (s *Store) ChirpsSince(ctx context.Context, authorIDs []string, since time.Time) ([]domain.Chirp, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if len(authorIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(
		`SELECT author_id, uuid, message, timestamp
		 FROM chirp
		 WHERE author_id IN (%s) AND timestamp >= ?
		 ORDER BY timestamp ASC, author_id ASC, uuid ASC`,
		placeholders(len(authorIDs)),
	)
	args := make([]any, 0, len(authorIDs)+1)
	for _, id := range authorIDs {
		args = append(args, id)
	}
	args = append(args, toMillis(since))

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chirps since: %w", err)
	}
	defer rows.Close()
	return scanChirps(rows)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func scanChirps(rows *sql.Rows) ([]domain.Chirp, error) {
	var chirps []domain.Chirp
	for rows.Next() {
		var (
			chirp           domain.Chirp
			timestampMillis int64
		)
		if err := rows.Scan(&chirp.AuthorID, &chirp.UUID, &chirp.Message, &timestampMillis); err != nil {
			return nil, fmt.Errorf("scan chirp: %w", err)
		}
		chirp.Timestamp = fromMillis(timestampMillis)
		chirps = append(chirps, chirp)
	}
	return chirps, rows.Err()
}
