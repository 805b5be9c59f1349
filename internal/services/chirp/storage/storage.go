// Package storage defines the durable chirp history contract.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/chirper/internal/services/chirp/domain"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ChirpStore persists the durable chirp history backing historical reads and
// the recent prefix of live timelines.
type ChirpStore interface {
	// PutChirp stores one chirp. Storing the same (author, uuid) pair again
	// overwrites the previous copy.
	PutChirp(ctx context.Context, chirp domain.Chirp) error
	// RecentChirps returns up to limit most recent chirps across the given
	// authors, newest first.
	RecentChirps(ctx context.Context, authorIDs []string, limit int) ([]domain.Chirp, error)
	// ChirpsSince returns all chirps by the given authors with a timestamp at
	// or after since, oldest first.
	ChirpsSince(ctx context.Context, authorIDs []string, since time.Time) ([]domain.Chirp, error)
}
