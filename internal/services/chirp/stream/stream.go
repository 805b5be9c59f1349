// Package stream provides the chirp timeline streaming primitives: the item
// envelope, source constructors, and the order-preserving enrichment stage.
package stream

import (
	"context"

	"github.com/louisbranch/chirper/internal/services/chirp/domain"
)

// Item is one element of a chirp stream. A non-nil Err terminates the
// stream; no further items follow it.
type Item struct {
	Chirp domain.Chirp
	Err   error
}

// FromSlice emits the chirps in order and closes the stream.
func FromSlice(chirps []domain.Chirp) <-chan Item {
	out := make(chan Item, len(chirps))
	for _, chirp := range chirps {
		out <- Item{Chirp: chirp}
	}
	close(out)
	return out
}

// Concat streams every item from head, then every item from tail. An error
// item on head short-circuits tail.
func Concat(ctx context.Context, head, tail <-chan Item) <-chan Item {
	out := make(chan Item)
	go func() {
		defer close(out)
		for _, src := range []<-chan Item{head, tail} {
			for item := range src {
				select {
				case out <- item:
				case <-ctx.Done():
					return
				}
				if item.Err != nil {
					return
				}
			}
		}
	}()
	return out
}

// FromChannel adapts a raw chirp feed, keeping only chirps whose author is
// in keep. The stream ends when the feed closes or ctx is cancelled.
func FromChannel(ctx context.Context, feed <-chan domain.Chirp, keep map[string]struct{}) <-chan Item {
	out := make(chan Item)
	go func() {
		defer close(out)
		for {
			select {
			case chirp, ok := <-feed:
				if !ok {
					return
				}
				if _, want := keep[chirp.AuthorID]; !want {
					continue
				}
				select {
				case out <- Item{Chirp: chirp}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Collect drains the stream into a slice, stopping at the first error item.
func Collect(in <-chan Item) ([]domain.Chirp, error) {
	var chirps []domain.Chirp
	for item := range in {
		if item.Err != nil {
			return chirps, item.Err
		}
		chirps = append(chirps, item.Chirp)
	}
	return chirps, nil
}
