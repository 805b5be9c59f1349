// Package storage defines persistence contracts for the friend service:
// the event journal (write side) and the denormalized projection store
// (read side).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/chirper/internal/services/friend/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// EventStore persists the append-only friend event journal.
//
// AppendEvents persists the batch atomically, assigning each event a
// per-entity Seq and a global Offset, and returns the enriched events.
// ListEventsAfterOffset is the event stream tap consumed by the read-side
// projector: globally ordered by Offset, delivered at least once by the
// projector's own resume semantics.
type EventStore interface {
	AppendEvents(ctx context.Context, userID string, events []domain.Event) ([]domain.Event, error)
	ListEvents(ctx context.Context, userID string, afterSeq uint64, limit int) ([]domain.Event, error)
	ListEventsAfterOffset(ctx context.Context, offset uint64, limit int) ([]domain.Event, error)
}

// Snapshot stores folded aggregate state so rehydration can skip the
// journal prefix.
type Snapshot struct {
	UserID     string
	StateJSON  []byte
	EventCount uint64
	UpdatedAt  time.Time
}

// SnapshotStore persists aggregate snapshots.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, userID string) (Snapshot, error)
	SaveSnapshot(ctx context.Context, snapshot Snapshot) error
}

// MutationKind identifies a projection mutation.
type MutationKind int

const (
	// MutationUpsertRequester inserts a requester row (set semantics).
	MutationUpsertRequester MutationKind = iota + 1
	// MutationDeleteRequester deletes a requester row.
	MutationDeleteRequester
	// MutationUpsertFollower inserts a follower row (set semantics).
	MutationUpsertFollower
)

// Mutation is one idempotent set-membership change against the projection
// tables, keyed by the full (UserID, OtherID) pair.
type Mutation struct {
	Kind    MutationKind
	UserID  string
	OtherID string
}

// ProjectionStore persists follower/requester rows plus the single
// projector offset.
//
// Apply commits the mutations and the offset in one transaction; this
// pairing is what makes at-least-once redelivery safe. Offset returns
// ErrNotFound before the first commit.
type ProjectionStore interface {
	Offset(ctx context.Context) (uint64, error)
	Apply(ctx context.Context, mutations []Mutation, offset uint64) error
	Followers(ctx context.Context, userID string) ([]string, error)
	Requesters(ctx context.Context, userID string) ([]string, error)
}
