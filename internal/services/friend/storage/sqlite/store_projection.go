package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/chirper/internal/services/friend/storage"
)

// Offset returns the last committed projector offset.
// Returns storage.ErrNotFound before the first commit.
func (s *Store) Offset(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT stream_offset FROM friend_offset WHERE partition = 1`,
	)
	var offset int64
	err := row.Scan(&offset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get projector offset: %w", err)
	}
	return uint64(offset), nil
}

// Apply commits the mutations and the offset in one transaction.
//
// All mutations are full-key set-membership operations, so re-applying the
// same (mutations, offset) pair after a redelivery leaves the tables
// unchanged.
func (s *Store) Apply(ctx context.Context, mutations []storage.Mutation, offset uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin apply transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, mutation := range mutations {
		if err := applyMutation(ctx, tx, mutation); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO friend_offset (partition, stream_offset)
		 VALUES (1, ?)
		 ON CONFLICT (partition) DO UPDATE SET stream_offset = excluded.stream_offset`,
		int64(offset),
	); err != nil {
		return fmt.Errorf("save projector offset: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit apply transaction: %w", err)
	}
	return nil
}

func applyMutation(ctx context.Context, tx *sql.Tx, mutation storage.Mutation) error {
	switch mutation.Kind {
	case storage.MutationUpsertRequester:
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO requester (user_id, requested_by) VALUES (?, ?)`,
			mutation.UserID, mutation.OtherID,
		); err != nil {
			return fmt.Errorf("upsert requester: %w", err)
		}
	case storage.MutationDeleteRequester:
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM requester WHERE user_id = ? AND requested_by = ?`,
			mutation.UserID, mutation.OtherID,
		); err != nil {
			return fmt.Errorf("delete requester: %w", err)
		}
	case storage.MutationUpsertFollower:
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO follower (user_id, followed_by) VALUES (?, ?)`,
			mutation.UserID, mutation.OtherID,
		); err != nil {
			return fmt.Errorf("upsert follower: %w", err)
		}
	default:
		return fmt.Errorf("unhandled mutation kind: %d", mutation.Kind)
	}
	return nil
}

// Followers returns the ids following userID, ordered for determinism.
func (s *Store) Followers(ctx context.Context, userID string) ([]string, error) {
	return s.listRelation(ctx, `SELECT followed_by FROM follower WHERE user_id = ? ORDER BY followed_by`, userID)
}

// Requesters returns the ids with a recorded request involving userID.
func (s *Store) Requesters(ctx context.Context, userID string) ([]string, error) {
	return s.listRelation(ctx, `SELECT requested_by FROM requester WHERE user_id = ? ORDER BY requested_by`, userID)
}

func (s *Store) listRelation(ctx context.Context, query string, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list relation rows: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan relation row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
