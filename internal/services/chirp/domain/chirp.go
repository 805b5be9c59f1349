// Package domain holds the chirp timeline types.
package domain

import (
	"strings"
	"time"

	platformerrors "github.com/louisbranch/chirper/internal/platform/errors"
)

// Chirp is one timeline message.
//
// LikeCount is filled by the enrichment stage on read paths; the stored form
// does not carry it.
type Chirp struct {
	AuthorID  string
	UUID      string
	Message   string
	Timestamp time.Time
	LikeCount int
}

// ChirpID is the enrichment lookup key for one chirp.
type ChirpID struct {
	AuthorID string
	UUID     string
}

// ID returns the chirp's lookup key.
func (c Chirp) ID() ChirpID {
	return ChirpID{AuthorID: c.AuthorID, UUID: c.UUID}
}

// NormalizeChirp trims and validates a chirp before it enters the write path.
func NormalizeChirp(chirp Chirp) (Chirp, error) {
	chirp.AuthorID = strings.TrimSpace(chirp.AuthorID)
	chirp.UUID = strings.TrimSpace(chirp.UUID)
	if chirp.AuthorID == "" {
		return Chirp{}, platformerrors.New(platformerrors.CodeUserIDEmpty, "chirp author id is required")
	}
	if strings.TrimSpace(chirp.Message) == "" {
		return Chirp{}, platformerrors.New(platformerrors.CodeChirpMessageEmpty, "chirp message is required")
	}
	if chirp.UUID == "" {
		return Chirp{}, platformerrors.New(platformerrors.CodeChirpUUIDEmpty, "chirp uuid is required")
	}
	return chirp, nil
}
