package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/louisbranch/chirper/internal/services/chirp/domain"
)

func chirps(n int) []domain.Chirp {
	out := make([]domain.Chirp, n)
	for i := range out {
		out[i] = domain.Chirp{AuthorID: "alice", UUID: fmt.Sprintf("u%03d", i), Message: "hi"}
	}
	return out
}

func TestEnrichPreservesOrderUnderReorderedCompletions(t *testing.T) {
	input := chirps(6)

	// Odd lookups finish later than even ones; output order must not change.
	lookup := func(ctx context.Context, chirp domain.Chirp) (domain.Chirp, error) {
		if chirp.UUID[len(chirp.UUID)-1]%2 == 1 {
			time.Sleep(20 * time.Millisecond)
		}
		chirp.LikeCount = 1
		return chirp, nil
	}

	got, err := Collect(Enrich(context.Background(), FromSlice(input), lookup, 2))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(got) != len(input) {
		t.Fatalf("expected %d items, got %d", len(input), len(got))
	}
	for i, chirp := range got {
		if chirp.UUID != input[i].UUID {
			t.Fatalf("order broken at %d: got %s want %s", i, chirp.UUID, input[i].UUID)
		}
		if chirp.LikeCount != 1 {
			t.Fatalf("item %d not enriched", i)
		}
	}
}

func TestEnrichCapsConcurrency(t *testing.T) {
	var inFlight, peak int64
	var mu sync.Mutex

	lookup := func(ctx context.Context, chirp domain.Chirp) (domain.Chirp, error) {
		current := atomic.AddInt64(&inFlight, 1)
		mu.Lock()
		if current > peak {
			peak = current
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return chirp, nil
	}

	if _, err := Collect(Enrich(context.Background(), FromSlice(chirps(10)), lookup, 2)); err != nil {
		t.Fatalf("collect: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Fatalf("peak concurrency %d exceeds width 2", peak)
	}
	if peak < 2 {
		t.Fatalf("peak concurrency %d, expected lookups to overlap", peak)
	}
}

func TestEnrichFailsFast(t *testing.T) {
	boom := errors.New("lookup failed")
	var calls int64

	lookup := func(ctx context.Context, chirp domain.Chirp) (domain.Chirp, error) {
		atomic.AddInt64(&calls, 1)
		if chirp.UUID == "u002" {
			return domain.Chirp{}, boom
		}
		return chirp, nil
	}

	got, err := Collect(Enrich(context.Background(), FromSlice(chirps(50)), lookup, 2))
	if !errors.Is(err, boom) {
		t.Fatalf("expected lookup error, got %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items before the failure, got %d", len(got))
	}
	// The dispatcher stops feeding lookups once the failure propagates.
	if n := atomic.LoadInt64(&calls); n >= 50 {
		t.Fatalf("all %d lookups ran despite the early failure", n)
	}
}

func TestEnrichPropagatesInputError(t *testing.T) {
	boom := errors.New("source failed")
	in := make(chan Item, 2)
	in <- Item{Chirp: domain.Chirp{AuthorID: "alice", UUID: "u1"}}
	in <- Item{Err: boom}
	close(in)

	lookup := func(ctx context.Context, chirp domain.Chirp) (domain.Chirp, error) {
		return chirp, nil
	}
	got, err := Collect(Enrich(context.Background(), in, lookup, 2))
	if !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 item before the error, got %d", len(got))
	}
}

func TestConcatStopsAtHeadError(t *testing.T) {
	boom := errors.New("head failed")
	head := make(chan Item, 2)
	head <- Item{Chirp: domain.Chirp{UUID: "h1"}}
	head <- Item{Err: boom}
	close(head)
	tail := make(chan Item, 1)
	tail <- Item{Chirp: domain.Chirp{UUID: "t1"}}
	close(tail)

	got, err := Collect(Concat(context.Background(), head, tail))
	if !errors.Is(err, boom) {
		t.Fatalf("expected head error, got %v", err)
	}
	if len(got) != 1 || got[0].UUID != "h1" {
		t.Fatalf("unexpected items: %+v", got)
	}
}

func TestFromChannelFiltersAuthors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := make(chan domain.Chirp, 3)
	feed <- domain.Chirp{AuthorID: "alice", UUID: "a1"}
	feed <- domain.Chirp{AuthorID: "mallory", UUID: "m1"}
	feed <- domain.Chirp{AuthorID: "bob", UUID: "b1"}
	close(feed)

	keep := map[string]struct{}{"alice": {}, "bob": {}}
	got, err := Collect(FromChannel(ctx, feed, keep))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(got) != 2 || got[0].UUID != "a1" || got[1].UUID != "b1" {
		t.Fatalf("unexpected items: %+v", got)
	}
}
