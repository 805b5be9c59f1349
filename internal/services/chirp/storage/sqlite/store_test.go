package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/chirper/internal/services/chirp/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "chirps.db"))
	if err != nil {
		t.Fatalf("open chirp store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func at(sec int) time.Time {
	return time.Date(2026, 5, 1, 10, 0, sec, 0, time.UTC)
}

func seedChirps(t *testing.T, store *Store, chirps []domain.Chirp) {
	t.Helper()
	ctx := context.Background()
	for _, chirp := range chirps {
		if err := store.PutChirp(ctx, chirp); err != nil {
			t.Fatalf("put chirp %s/%s: %v", chirp.AuthorID, chirp.UUID, err)
		}
	}
}

func TestRecentChirpsNewestFirstAcrossAuthors(t *testing.T) {
	store := openTestStore(t)
	seedChirps(t, store, []domain.Chirp{
		{AuthorID: "alice", UUID: "a1", Message: "first", Timestamp: at(1)},
		{AuthorID: "bob", UUID: "b1", Message: "second", Timestamp: at(2)},
		{AuthorID: "alice", UUID: "a2", Message: "third", Timestamp: at(3)},
		{AuthorID: "carol", UUID: "c1", Message: "ignored", Timestamp: at(4)},
	})

	chirps, err := store.RecentChirps(context.Background(), []string{"alice", "bob"}, 2)
	if err != nil {
		t.Fatalf("recent chirps: %v", err)
	}
	if len(chirps) != 2 {
		t.Fatalf("expected 2 chirps, got %d", len(chirps))
	}
	if chirps[0].UUID != "a2" || chirps[1].UUID != "b1" {
		t.Fatalf("unexpected order: %+v", chirps)
	}
}

func TestChirpsSinceOldestFirst(t *testing.T) {
	store := openTestStore(t)
	seedChirps(t, store, []domain.Chirp{
		{AuthorID: "alice", UUID: "a1", Message: "old", Timestamp: at(1)},
		{AuthorID: "alice", UUID: "a2", Message: "mid", Timestamp: at(2)},
		{AuthorID: "bob", UUID: "b1", Message: "new", Timestamp: at(3)},
	})

	chirps, err := store.ChirpsSince(context.Background(), []string{"alice", "bob"}, at(2))
	if err != nil {
		t.Fatalf("chirps since: %v", err)
	}
	if len(chirps) != 2 {
		t.Fatalf("expected 2 chirps, got %d", len(chirps))
	}
	if chirps[0].UUID != "a2" || chirps[1].UUID != "b1" {
		t.Fatalf("unexpected order: %+v", chirps)
	}
}

func TestPutChirpOverwritesSameUUID(t *testing.T) {
	store := openTestStore(t)
	seedChirps(t, store, []domain.Chirp{
		{AuthorID: "alice", UUID: "a1", Message: "draft", Timestamp: at(1)},
		{AuthorID: "alice", UUID: "a1", Message: "final", Timestamp: at(2)},
	})

	chirps, err := store.RecentChirps(context.Background(), []string{"alice"}, 10)
	if err != nil {
		t.Fatalf("recent chirps: %v", err)
	}
	if len(chirps) != 1 {
		t.Fatalf("expected 1 chirp after overwrite, got %d", len(chirps))
	}
	if chirps[0].Message != "final" {
		t.Fatalf("message = %q, want final", chirps[0].Message)
	}
}

func TestEmptyAuthorSet(t *testing.T) {
	store := openTestStore(t)

	chirps, err := store.RecentChirps(context.Background(), nil, 10)
	if err != nil {
		t.Fatalf("recent chirps: %v", err)
	}
	if len(chirps) != 0 {
		t.Fatalf("expected no chirps, got %+v", chirps)
	}
}
