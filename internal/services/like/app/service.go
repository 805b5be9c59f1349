// Package app wires the like domain onto the entity runtime and the like
// journal.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/chirper/internal/entity"
	platformerrors "github.com/louisbranch/chirper/internal/platform/errors"
	"github.com/louisbranch/chirper/internal/platform/telemetry/metrics"
	"github.com/louisbranch/chirper/internal/services/like/domain"
	"github.com/louisbranch/chirper/internal/services/like/storage"
)

const journalPageSize = 200

type command struct {
	chirpUUID string
	cmd       domain.Command
}

// Service is the per-chirp like API.
type Service struct {
	registry *entity.Registry[domain.State, command, domain.Event]
}

// New builds a like service over the given journal. Like entities carry no
// snapshots; their histories stay short.
func New(events storage.EventStore, opts ...entity.Option) (*Service, error) {
	if events == nil {
		return nil, errors.New("event store is required")
	}

	def := entity.Definition[domain.State, command, domain.Event]{
		Empty: domain.EmptyState,
		Decide: func(state domain.State, c command) (entity.Decision[domain.Event], error) {
			decision, err := domain.Decide(c.chirpUUID, state, c.cmd)
			if err != nil {
				return entity.Decision[domain.Event]{}, err
			}
			return entity.Decision[domain.Event]{Events: decision.Events, Reply: decision.Reply}, nil
		},
		Fold: domain.Fold,
	}

	registry, err := entity.New(def, &journalAdapter{store: events}, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("create like registry: %w", err)
	}
	return &Service{registry: registry}, nil
}

// Close stops the entity runtime.
func (s *Service) Close() {
	if s == nil || s.registry == nil {
		return
	}
	s.registry.Close()
}

// Like records likerID in the chirp's liker set.
func (s *Service) Like(ctx context.Context, chirpUUID, likerID string) error {
	chirpUUID, err := normalizeChirpUUID(chirpUUID)
	if err != nil {
		return err
	}
	_, err = s.execute(ctx, chirpUUID, "like", domain.Like{LikerID: likerID})
	return err
}

// Unlike removes likerID from the chirp's liker set.
func (s *Service) Unlike(ctx context.Context, chirpUUID, likerID string) error {
	chirpUUID, err := normalizeChirpUUID(chirpUUID)
	if err != nil {
		return err
	}
	_, err = s.execute(ctx, chirpUUID, "unlike", domain.Unlike{LikerID: likerID})
	return err
}

// GetLikes returns the chirp's liker ids, sorted.
func (s *Service) GetLikes(ctx context.Context, chirpUUID string) ([]string, error) {
	chirpUUID, err := normalizeChirpUUID(chirpUUID)
	if err != nil {
		return nil, err
	}
	reply, err := s.execute(ctx, chirpUUID, "get_likes", domain.GetLikes{})
	if err != nil {
		return nil, err
	}
	likes, ok := reply.(domain.GetLikesReply)
	if !ok {
		return nil, fmt.Errorf("unexpected reply type %T", reply)
	}
	return likes.Likers, nil
}

// LikeCount returns how many distinct users like the chirp.
func (s *Service) LikeCount(ctx context.Context, chirpUUID string) (int, error) {
	likers, err := s.GetLikes(ctx, chirpUUID)
	if err != nil {
		return 0, err
	}
	return len(likers), nil
}

func (s *Service) execute(ctx context.Context, chirpUUID, name string, cmd domain.Command) (any, error) {
	reply, err := s.registry.Execute(ctx, chirpUUID, command{chirpUUID: chirpUUID, cmd: cmd})
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.CommandsTotal.WithLabelValues(name, result).Inc()
	return reply, err
}

func normalizeChirpUUID(chirpUUID string) (string, error) {
	chirpUUID = strings.TrimSpace(chirpUUID)
	if chirpUUID == "" {
		return "", platformerrors.New(platformerrors.CodeChirpUUIDEmpty, "chirp uuid is required")
	}
	return chirpUUID, nil
}

type journalAdapter struct {
	store storage.EventStore
}

func (a *journalAdapter) Append(ctx context.Context, entityID string, events []domain.Event) error {
	_, err := a.store.AppendEvents(ctx, entityID, events)
	return err
}

func (a *journalAdapter) Load(ctx context.Context, entityID string, afterCount uint64) ([]domain.Event, error) {
	var all []domain.Event
	afterSeq := afterCount
	for {
		page, err := a.store.ListEvents(ctx, entityID, afterSeq, journalPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < journalPageSize {
			return all, nil
		}
		afterSeq = page[len(page)-1].Seq
	}
}
