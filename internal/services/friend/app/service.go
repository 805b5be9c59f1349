// Package app wires the friend domain onto the entity runtime and the
// SQLite-backed stores.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/chirper/internal/entity"
	platformerrors "github.com/louisbranch/chirper/internal/platform/errors"
	"github.com/louisbranch/chirper/internal/platform/telemetry/metrics"
	"github.com/louisbranch/chirper/internal/services/friend/domain"
	"github.com/louisbranch/chirper/internal/services/friend/storage"
)

const journalPageSize = 200

// command routes a domain command to its entity through the runtime, which
// only sees opaque command values.
type command struct {
	entityID string
	cmd      domain.Command
}

// Service is the write-side friend API plus the read-side relation lookups.
type Service struct {
	registry    *entity.Registry[domain.State, command, domain.Event]
	projections storage.ProjectionStore
}

// New builds a friend service over the given stores.
//
// snapshots may be nil to disable snapshotting. projections may be nil when
// only the write side is needed; relation lookups then fail.
func New(events storage.EventStore, snapshots storage.SnapshotStore, projections storage.ProjectionStore, opts ...entity.Option) (*Service, error) {
	if events == nil {
		return nil, errors.New("event store is required")
	}

	def := entity.Definition[domain.State, command, domain.Event]{
		Empty: domain.EmptyState,
		Decide: func(state domain.State, c command) (entity.Decision[domain.Event], error) {
			decision, err := domain.Decide(c.entityID, state, c.cmd)
			if err != nil {
				return entity.Decision[domain.Event]{}, err
			}
			return entity.Decision[domain.Event]{Events: decision.Events, Reply: decision.Reply}, nil
		},
		Fold: domain.Fold,
	}

	var snapshotStore entity.SnapshotStore[domain.State]
	if snapshots != nil {
		snapshotStore = &snapshotAdapter{store: snapshots}
	}

	registry, err := entity.New(def, &journalAdapter{store: events}, snapshotStore, opts...)
	if err != nil {
		return nil, fmt.Errorf("create friend registry: %w", err)
	}
	return &Service{registry: registry, projections: projections}, nil
}

// Close stops the entity runtime.
func (s *Service) Close() {
	if s == nil || s.registry == nil {
		return
	}
	s.registry.Close()
}

// CreateUser creates the user and fans out a request toward each initial
// friend as one atomic event batch.
func (s *Service) CreateUser(ctx context.Context, user domain.User) error {
	normalized, err := domain.NormalizeUser(user)
	if err != nil {
		return err
	}
	_, err = s.execute(ctx, normalized.ID, "create_user", domain.CreateUser{User: normalized})
	return err
}

// RequestAddFriend records a request from userID toward friendID. Requesting
// an existing friend or repeating a pending request is a no-op.
func (s *Service) RequestAddFriend(ctx context.Context, userID, friendID string) error {
	userID, friendID, err := normalizePair(userID, friendID)
	if err != nil {
		return err
	}
	_, err = s.execute(ctx, userID, "request_add_friend", domain.RequestAddFriend{FriendID: friendID})
	return err
}

// AcceptAddFriend converts a pending request on userID into a friendship.
func (s *Service) AcceptAddFriend(ctx context.Context, userID, friendID string) error {
	userID, friendID, err := normalizePair(userID, friendID)
	if err != nil {
		return err
	}
	_, err = s.execute(ctx, userID, "accept_add_friend", domain.AcceptAddFriend{FriendID: friendID})
	return err
}

// RejectAddFriend discards a pending request on userID.
func (s *Service) RejectAddFriend(ctx context.Context, userID, friendID string) error {
	userID, friendID, err := normalizePair(userID, friendID)
	if err != nil {
		return err
	}
	_, err = s.execute(ctx, userID, "reject_add_friend", domain.RejectAddFriend{FriendID: friendID})
	return err
}

// GetUser returns the user's current write-side state.
// Returns a not-found error when the user has never been created.
func (s *Service) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, platformerrors.New(platformerrors.CodeUserIDEmpty, "user id is required")
	}
	reply, err := s.execute(ctx, userID, "get_user", domain.GetUser{})
	if err != nil {
		return nil, err
	}
	snapshot, ok := reply.(domain.GetUserReply)
	if !ok || snapshot.User == nil {
		return nil, platformerrors.WithMetadata(
			platformerrors.CodeNotFound,
			fmt.Sprintf("user %s does not exist", userID),
			map[string]string{"user_id": userID},
		)
	}
	return snapshot.User, nil
}

// Followers returns the ids following userID, from the eventually consistent
// read side.
func (s *Service) Followers(ctx context.Context, userID string) ([]string, error) {
	if s.projections == nil {
		return nil, errors.New("projection store is not configured")
	}
	return s.projections.Followers(ctx, userID)
}

// Requesters returns the ids with a pending request toward userID, from the
// eventually consistent read side.
func (s *Service) Requesters(ctx context.Context, userID string) ([]string, error) {
	if s.projections == nil {
		return nil, errors.New("projection store is not configured")
	}
	return s.projections.Requesters(ctx, userID)
}

func (s *Service) execute(ctx context.Context, entityID, name string, cmd domain.Command) (any, error) {
	reply, err := s.registry.Execute(ctx, entityID, command{entityID: entityID, cmd: cmd})
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.CommandsTotal.WithLabelValues(name, result).Inc()
	return reply, err
}

func normalizePair(userID, friendID string) (string, string, error) {
	userID = strings.TrimSpace(userID)
	friendID = strings.TrimSpace(friendID)
	if userID == "" {
		return "", "", platformerrors.New(platformerrors.CodeUserIDEmpty, "user id is required")
	}
	if friendID == "" {
		return "", "", platformerrors.New(platformerrors.CodeUserIDEmpty, "friend id is required")
	}
	return userID, friendID, nil
}

// journalAdapter exposes the event store through the runtime's journal
// contract. Sequence numbers start at 1 and increase by one, so the event
// count folded so far equals the last folded seq.
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

// snapshotState is the persisted JSON form of the aggregate state.
type snapshotState struct {
	User     *domain.User `json:"user"`
	Requests []string     `json:"requests,omitempty"`
}

type snapshotAdapter struct {
	store storage.SnapshotStore
}

func (a *snapshotAdapter) LoadSnapshot(ctx context.Context, entityID string) (domain.State, uint64, bool, error) {
	snapshot, err := a.store.GetSnapshot(ctx, entityID)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.State{}, 0, false, nil
	}
	if err != nil {
		return domain.State{}, 0, false, fmt.Errorf("load snapshot: %w", err)
	}
	var persisted snapshotState
	if err := json.Unmarshal(snapshot.StateJSON, &persisted); err != nil {
		return domain.State{}, 0, false, fmt.Errorf("decode snapshot state: %w", err)
	}
	state := domain.State{User: persisted.User}
	if len(persisted.Requests) > 0 {
		state.FriendRequests = make(map[string]struct{}, len(persisted.Requests))
		for _, id := range persisted.Requests {
			state.FriendRequests[id] = struct{}{}
		}
	}
	return state, snapshot.EventCount, true, nil
}

func (a *snapshotAdapter) SaveSnapshot(ctx context.Context, entityID string, state domain.State, eventCount uint64) error {
	persisted := snapshotState{User: state.User}
	for id := range state.FriendRequests {
		persisted.Requests = append(persisted.Requests, id)
	}
	raw, err := json.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("encode snapshot state: %w", err)
	}
	return a.store.SaveSnapshot(ctx, storage.Snapshot{
		UserID:     entityID,
		StateJSON:  raw,
		EventCount: eventCount,
	})
}
