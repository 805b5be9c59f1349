// Package app implements the chirp timeline service: the durable write path
// with live fan-out, and the enriched live and historical read streams.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	platformerrors "github.com/louisbranch/chirper/internal/platform/errors"
	"github.com/louisbranch/chirper/internal/platform/id"
	"github.com/louisbranch/chirper/internal/platform/telemetry/metrics"
	"github.com/louisbranch/chirper/internal/services/chirp/domain"
	"github.com/louisbranch/chirper/internal/services/chirp/pubsub"
	"github.com/louisbranch/chirper/internal/services/chirp/storage"
	"github.com/louisbranch/chirper/internal/services/chirp/stream"
)

// RecentLimit is how many stored chirps seed a live timeline before the
// subscription takes over.
const RecentLimit = 10

const subscribeBuffer = 64

// LikesLookup resolves the current liker set for one chirp.
type LikesLookup interface {
	GetLikes(ctx context.Context, chirpID domain.ChirpID) ([]string, error)
}

// Service is the chirp timeline API.
type Service struct {
	store  storage.ChirpStore
	broker pubsub.Broker
	likes  LikesLookup
	width  int
}

// New builds a timeline service. likes may be nil, in which case read
// streams skip enrichment and report zero like counts.
func New(store storage.ChirpStore, broker pubsub.Broker, likes LikesLookup) (*Service, error) {
	if store == nil {
		return nil, errors.New("chirp store is required")
	}
	if broker == nil {
		return nil, errors.New("broker is required")
	}
	return &Service{
		store:  store,
		broker: broker,
		likes:  likes,
		width:  stream.DefaultEnrichWidth,
	}, nil
}

// AddChirp validates and stores the chirp, then publishes it to the author's
// shard topic for live subscribers.
//
// A missing uuid or timestamp is filled in here. The live publish is best
// effort; the durable store is the source of truth and a reader that missed
// the publish still sees the chirp historically.
func (s *Service) AddChirp(ctx context.Context, userID string, chirp domain.Chirp) (domain.Chirp, error) {
	userID = strings.TrimSpace(userID)
	chirp.AuthorID = strings.TrimSpace(chirp.AuthorID)
	if userID == "" {
		return domain.Chirp{}, platformerrors.New(platformerrors.CodeUserIDEmpty, "user id is required")
	}
	if chirp.AuthorID != userID {
		return domain.Chirp{}, platformerrors.WithMetadata(
			platformerrors.CodeChirpAuthorMismatch,
			fmt.Sprintf("chirp author %s does not match user %s", chirp.AuthorID, userID),
			map[string]string{"user_id": userID, "author_id": chirp.AuthorID},
		)
	}
	if strings.TrimSpace(chirp.UUID) == "" {
		generated, err := id.NewUUID()
		if err != nil {
			return domain.Chirp{}, fmt.Errorf("generate chirp uuid: %w", err)
		}
		chirp.UUID = generated
	}
	if chirp.Timestamp.IsZero() {
		chirp.Timestamp = time.Now().UTC()
	}
	chirp.Timestamp = chirp.Timestamp.UTC().Truncate(time.Millisecond)

	chirp, err := domain.NormalizeChirp(chirp)
	if err != nil {
		return domain.Chirp{}, err
	}

	if err := s.store.PutChirp(ctx, chirp); err != nil {
		return domain.Chirp{}, fmt.Errorf("store chirp: %w", err)
	}
	s.broker.Publish(pubsub.TopicForUser(chirp.AuthorID), chirp)
	metrics.ChirpsPublished.Inc()
	return chirp, nil
}

// LiveChirps streams a live timeline for the given authors: the most recent
// stored chirps, oldest first, followed by new chirps as they are published.
// The stream runs until ctx is cancelled; every item is enriched with its
// like count in timeline order.
func (s *Service) LiveChirps(ctx context.Context, userIDs []string) <-chan stream.Item {
	userIDs = normalizeUserIDs(userIDs)
	if len(userIDs) == 0 {
		return stream.FromSlice(nil)
	}

	// Subscribe before reading the prefix so a chirp published in between
	// is not lost. It may be seen twice; live readers tolerate replays
	// near the seam.
	keep := make(map[string]struct{}, len(userIDs))
	for _, userID := range userIDs {
		keep[userID] = struct{}{}
	}
	feed := s.broker.Subscribe(ctx, pubsub.TopicsForUsers(userIDs), subscribeBuffer)

	recent, err := s.recentAscending(ctx, userIDs)
	if err != nil {
		out := make(chan stream.Item, 1)
		out <- stream.Item{Err: err}
		close(out)
		return out
	}

	live := stream.Concat(ctx, stream.FromSlice(recent), stream.FromChannel(ctx, feed, keep))
	return s.enrich(ctx, live)
}

// HistoricalChirps streams every stored chirp by the given authors from
// since onward, oldest first, enriched with like counts. The stream ends
// when the history is exhausted.
func (s *Service) HistoricalChirps(ctx context.Context, userIDs []string, since time.Time) <-chan stream.Item {
	userIDs = normalizeUserIDs(userIDs)
	if len(userIDs) == 0 {
		return stream.FromSlice(nil)
	}

	chirps, err := s.store.ChirpsSince(ctx, userIDs, since)
	if err != nil {
		out := make(chan stream.Item, 1)
		out <- stream.Item{Err: fmt.Errorf("load chirp history: %w", err)}
		close(out)
		return out
	}
	return s.enrich(ctx, stream.FromSlice(chirps))
}

// recentAscending returns the RecentLimit newest chirps across the authors,
// reordered oldest first so they prepend naturally onto the live feed.
//
// Authors are fetched concurrently and merged, so a single chatty author
// cannot slow the seeding query down for the rest.
func (s *Service) recentAscending(ctx context.Context, userIDs []string) ([]domain.Chirp, error) {
	group, groupCtx := errgroup.WithContext(ctx)
	perUser := make([][]domain.Chirp, len(userIDs))
	for i, userID := range userIDs {
		group.Go(func() error {
			chirps, err := s.store.RecentChirps(groupCtx, []string{userID}, RecentLimit)
			if err != nil {
				return fmt.Errorf("load recent chirps for %s: %w", userID, err)
			}
			perUser[i] = chirps
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var merged []domain.Chirp
	for _, chirps := range perUser {
		merged = append(merged, chirps...)
	}
	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].Timestamp.Equal(merged[j].Timestamp) {
			return merged[i].Timestamp.After(merged[j].Timestamp)
		}
		if merged[i].AuthorID != merged[j].AuthorID {
			return merged[i].AuthorID > merged[j].AuthorID
		}
		return merged[i].UUID > merged[j].UUID
	})
	if len(merged) > RecentLimit {
		merged = merged[:RecentLimit]
	}
	for i, j := 0, len(merged)-1; i < j; i, j = i+1, j-1 {
		merged[i], merged[j] = merged[j], merged[i]
	}
	return merged, nil
}

func (s *Service) enrich(ctx context.Context, in <-chan stream.Item) <-chan stream.Item {
	if s.likes == nil {
		return in
	}
	return stream.Enrich(ctx, in, func(ctx context.Context, chirp domain.Chirp) (domain.Chirp, error) {
		likers, err := s.likes.GetLikes(ctx, chirp.ID())
		if err != nil {
			return domain.Chirp{}, fmt.Errorf("load likes for %s: %w", chirp.UUID, err)
		}
		chirp.LikeCount = len(likers)
		return chirp, nil
	}, s.width)
}

func normalizeUserIDs(userIDs []string) []string {
	seen := make(map[string]struct{}, len(userIDs))
	var normalized []string
	for _, userID := range userIDs {
		userID = strings.TrimSpace(userID)
		if userID == "" {
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		normalized = append(normalized, userID)
	}
	return normalized
}
