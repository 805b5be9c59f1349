// Package domain holds the pure like-counter state machine. One aggregate
// covers the liker set of one chirp.
package domain

import (
	"sort"
	"strings"
	"time"

	platformerrors "github.com/louisbranch/chirper/internal/platform/errors"
)

// EventType identifies a like journal event.
type EventType string

const (
	TypeChirpLiked   EventType = "chirp.liked"
	TypeChirpUnliked EventType = "chirp.unliked"
)

// Event is one persisted like-set change. Seq is assigned by storage.
type Event struct {
	ChirpUUID string
	Seq       uint64
	Timestamp time.Time
	Type      EventType
	LikerID   string
}

// Command is a request processed by one like entity.
type Command interface {
	isCommand()
}

// Like records likerID in the chirp's liker set. Liking twice is a no-op.
type Like struct {
	LikerID string
}

// Unlike removes likerID from the liker set. Unliking a non-liker is a
// no-op.
type Unlike struct {
	LikerID string
}

// GetLikes reads the current liker set; it never emits events.
type GetLikes struct{}

// GetLikesReply carries the liker set returned for GetLikes.
type GetLikesReply struct {
	Likers []string
}

func (Like) isCommand()     {}
func (Unlike) isCommand()   {}
func (GetLikes) isCommand() {}

// State is the liker set for one chirp.
type State struct {
	Likers map[string]struct{}
}

// EmptyState returns the empty liker set.
func EmptyState() State {
	return State{}
}

// Has reports whether likerID is in the set.
func (s State) Has(likerID string) bool {
	_, ok := s.Likers[likerID]
	return ok
}

// Snapshot returns the liker ids sorted for a stable reply.
func (s State) Snapshot() []string {
	if len(s.Likers) == 0 {
		return nil
	}
	likers := make([]string, 0, len(s.Likers))
	for id := range s.Likers {
		likers = append(likers, id)
	}
	sort.Strings(likers)
	return likers
}

func (s State) clone() map[string]struct{} {
	likers := make(map[string]struct{}, len(s.Likers)+1)
	for id := range s.Likers {
		likers[id] = struct{}{}
	}
	return likers
}

// Decision is the pure outcome of handling a command.
type Decision struct {
	Events []Event
	Reply  any
}

// Decide computes a decision from current state and a command.
func Decide(chirpUUID string, state State, cmd Command) (Decision, error) {
	switch c := cmd.(type) {
	case Like:
		likerID, err := normalizeLiker(c.LikerID)
		if err != nil {
			return Decision{}, err
		}
		if state.Has(likerID) {
			return Decision{}, nil
		}
		return Decision{Events: []Event{{
			ChirpUUID: chirpUUID,
			Type:      TypeChirpLiked,
			LikerID:   likerID,
		}}}, nil
	case Unlike:
		likerID, err := normalizeLiker(c.LikerID)
		if err != nil {
			return Decision{}, err
		}
		if !state.Has(likerID) {
			return Decision{}, nil
		}
		return Decision{Events: []Event{{
			ChirpUUID: chirpUUID,
			Type:      TypeChirpUnliked,
			LikerID:   likerID,
		}}}, nil
	case GetLikes:
		return Decision{Reply: GetLikesReply{Likers: state.Snapshot()}}, nil
	default:
		return Decision{}, platformerrors.New(platformerrors.CodeUnknown, "unhandled like command")
	}
}

// Fold applies one event to state, copy-on-write.
func Fold(state State, evt Event) State {
	switch evt.Type {
	case TypeChirpLiked:
		likers := state.clone()
		likers[evt.LikerID] = struct{}{}
		return State{Likers: likers}
	case TypeChirpUnliked:
		likers := state.clone()
		delete(likers, evt.LikerID)
		return State{Likers: likers}
	default:
		return state
	}
}

func normalizeLiker(likerID string) (string, error) {
	likerID = strings.TrimSpace(likerID)
	if likerID == "" {
		return "", platformerrors.New(platformerrors.CodeLikeLikerEmpty, "liker id is required")
	}
	return likerID, nil
}
