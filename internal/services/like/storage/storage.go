// Package storage defines the like journal contract.
package storage

import (
	"context"

	"github.com/louisbranch/chirper/internal/services/like/domain"
)

// EventStore persists like events per chirp.
type EventStore interface {
	// AppendEvents persists the batch atomically, assigning per-chirp
	// sequence numbers. The returned events carry the assigned Seq and
	// Timestamp.
	AppendEvents(ctx context.Context, chirpUUID string, events []domain.Event) ([]domain.Event, error)
	// ListEvents returns up to limit events for one chirp with seq greater
	// than afterSeq, in seq order.
	ListEvents(ctx context.Context, chirpUUID string, afterSeq uint64, limit int) ([]domain.Event, error)
}
