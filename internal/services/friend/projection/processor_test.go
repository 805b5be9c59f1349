package projection

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/louisbranch/chirper/internal/services/friend/domain"
	"github.com/louisbranch/chirper/internal/services/friend/storage"
	"github.com/louisbranch/chirper/internal/services/friend/storage/sqlite"
)

func openTestStores(t *testing.T) (*sqlite.Store, *sqlite.Store) {
	t.Helper()
	dir := t.TempDir()
	events, err := sqlite.OpenEvents(filepath.Join(dir, "events.db"))
	if err != nil {
		t.Fatalf("open events: %v", err)
	}
	t.Cleanup(func() { _ = events.Close() })
	projections, err := sqlite.OpenProjections(filepath.Join(dir, "projections.db"))
	if err != nil {
		t.Fatalf("open projections: %v", err)
	}
	t.Cleanup(func() { _ = projections.Close() })
	return events, projections
}

func TestMutationsForRelationEvents(t *testing.T) {
	requested := MutationsFor(domain.Event{Type: domain.TypeFriendRequested, UserID: "alice", FriendID: "bob"})
	if len(requested) != 1 || requested[0].Kind != storage.MutationUpsertRequester {
		t.Fatalf("unexpected mutations for request: %+v", requested)
	}
	if requested[0].UserID != "bob" || requested[0].OtherID != "alice" {
		t.Fatalf("request stored on wrong side: %+v", requested[0])
	}

	accepted := MutationsFor(domain.Event{Type: domain.TypeFriendAccepted, UserID: "alice", FriendID: "bob"})
	if len(accepted) != 2 {
		t.Fatalf("expected follower upsert plus requester delete, got %+v", accepted)
	}
	if accepted[0].Kind != storage.MutationUpsertFollower || accepted[0].UserID != "bob" || accepted[0].OtherID != "alice" {
		t.Fatalf("unexpected follower mutation: %+v", accepted[0])
	}
	if accepted[1].Kind != storage.MutationDeleteRequester || accepted[1].UserID != "bob" || accepted[1].OtherID != "alice" {
		t.Fatalf("unexpected requester delete: %+v", accepted[1])
	}

	if got := MutationsFor(domain.Event{Type: domain.TypeUserCreated, UserID: "alice"}); got != nil {
		t.Fatalf("user creation should not mutate read tables, got %+v", got)
	}
}

func TestDrainConvergesOnRelations(t *testing.T) {
	events, projections := openTestStores(t)
	ctx := context.Background()

	processor, err := NewProcessor(events, projections)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	if _, err := events.AppendEvents(ctx, "alice", []domain.Event{
		{Type: domain.TypeUserCreated, Name: "Alice"},
		{Type: domain.TypeFriendRequested, FriendID: "bob"},
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	applied, err := processor.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if applied != 2 {
		t.Fatalf("applied = %d, want 2", applied)
	}

	requesters, err := projections.Requesters(ctx, "bob")
	if err != nil {
		t.Fatalf("requesters: %v", err)
	}
	if len(requesters) != 1 || requesters[0] != "alice" {
		t.Fatalf("unexpected requesters: %v", requesters)
	}

	if _, err := events.AppendEvents(ctx, "alice", []domain.Event{
		{Type: domain.TypeFriendAccepted, FriendID: "bob"},
	}); err != nil {
		t.Fatalf("append accept: %v", err)
	}
	if _, err := processor.Drain(ctx); err != nil {
		t.Fatalf("drain accept: %v", err)
	}

	followers, err := projections.Followers(ctx, "bob")
	if err != nil {
		t.Fatalf("followers: %v", err)
	}
	if len(followers) != 1 || followers[0] != "alice" {
		t.Fatalf("unexpected followers: %v", followers)
	}
	requesters, err = projections.Requesters(ctx, "bob")
	if err != nil {
		t.Fatalf("requesters after accept: %v", err)
	}
	if len(requesters) != 0 {
		t.Fatalf("requester row should be cleared, got %v", requesters)
	}

	offset, err := projections.Offset(ctx)
	if err != nil {
		t.Fatalf("offset: %v", err)
	}
	if offset == 0 {
		t.Fatal("offset was not committed")
	}
}

func TestDrainIsIdempotentAcrossRestarts(t *testing.T) {
	events, projections := openTestStores(t)
	ctx := context.Background()

	if _, err := events.AppendEvents(ctx, "alice", []domain.Event{
		{Type: domain.TypeUserCreated, Name: "Alice"},
		{Type: domain.TypeFriendRequested, FriendID: "bob"},
		{Type: domain.TypeFriendAccepted, FriendID: "bob"},
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	first, err := NewProcessor(events, projections, WithBatchSize(1))
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	if _, err := first.Drain(ctx); err != nil {
		t.Fatalf("first drain: %v", err)
	}

	// A restarted processor resumes from the committed offset.
	second, err := NewProcessor(events, projections)
	if err != nil {
		t.Fatalf("second processor: %v", err)
	}
	applied, err := second.Drain(ctx)
	if err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if applied != 0 {
		t.Fatalf("replayed %d events past the committed offset", applied)
	}

	followers, err := projections.Followers(ctx, "bob")
	if err != nil {
		t.Fatalf("followers: %v", err)
	}
	if len(followers) != 1 || followers[0] != "alice" {
		t.Fatalf("unexpected followers: %v", followers)
	}
}
