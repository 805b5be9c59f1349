// Package entity provides a per-id sequential runtime for event-sourced
// aggregates.
//
// Each active entity id is served by exactly one worker goroutine fed by a
// mailbox, so commands for the same id never run concurrently while commands
// for distinct ids run fully in parallel. Workers rehydrate state from the
// latest snapshot plus the journal tail on first access and retire after an
// idle period.
package entity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Journal persists ordered event batches per entity id.
//
// Append must persist the whole batch atomically. Load returns events for the
// entity in fold order, skipping the first afterCount events.
type Journal[E any] interface {
	Append(ctx context.Context, entityID string, events []E) error
	Load(ctx context.Context, entityID string, afterCount uint64) ([]E, error)
}

// SnapshotStore persists folded state so rehydration can skip the journal
// prefix. Implementations are optional; Load reports ok=false when no
// snapshot exists.
type SnapshotStore[S any] interface {
	LoadSnapshot(ctx context.Context, entityID string) (state S, eventCount uint64, ok bool, err error)
	SaveSnapshot(ctx context.Context, entityID string, state S, eventCount uint64) error
}

// Decision is the pure outcome of handling a command.
type Decision[E any] struct {
	// Events to persist and fold, in order. Empty means no-op success.
	Events []E
	// Reply is returned to the caller after persistence succeeds.
	Reply any
}

// Definition binds the pure domain functions for one aggregate type.
//
// Decide computes a decision from current state and a command; a returned
// error is a rejection and must leave state untouched. Fold applies one event
// to state and must be deterministic so that replaying the full history from
// Empty reconstructs identical state.
type Definition[S, C, E any] struct {
	Empty  func() S
	Decide func(state S, cmd C) (Decision[E], error)
	Fold   func(state S, evt E) S
}

// ErrClosed indicates the registry has been shut down.
var ErrClosed = errors.New("entity registry is closed")

func (d Definition[S, C, E]) validate() error {
	if d.Empty == nil {
		return fmt.Errorf("empty state factory is required")
	}
	if d.Decide == nil {
		return fmt.Errorf("decide function is required")
	}
	if d.Fold == nil {
		return fmt.Errorf("fold function is required")
	}
	return nil
}

const (
	defaultIdleTTL       = 2 * time.Minute
	defaultSnapshotEvery = 100
)
