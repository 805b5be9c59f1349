package stream

import (
	"context"
	"time"

	"github.com/louisbranch/chirper/internal/platform/telemetry/metrics"
	"github.com/louisbranch/chirper/internal/services/chirp/domain"
)

// DefaultEnrichWidth is the lookup concurrency used by the timeline read
// paths.
const DefaultEnrichWidth = 2

// LookupFunc resolves per-chirp data fetched during enrichment.
type LookupFunc func(ctx context.Context, chirp domain.Chirp) (domain.Chirp, error)

// Enrich maps lookup over the stream with up to width lookups in flight.
//
// Output order matches input order regardless of lookup completion order.
// The first failed lookup (or error item on the input) terminates the output
// with a single error item; lookups already in flight are cancelled.
func Enrich(ctx context.Context, in <-chan Item, lookup LookupFunc, width int) <-chan Item {
	if width < 1 {
		width = 1
	}
	out := make(chan Item)
	lookupCtx, cancel := context.WithCancel(ctx)

	// Each in-flight lookup parks its result in a single-slot channel; the
	// queue preserves submission order. The collector always holds one
	// dequeued slot, so a queue capacity of width-1 caps concurrency at
	// width.
	pending := make(chan chan Item, width-1)

	go func() {
		defer close(pending)
		for item := range in {
			if item.Err != nil {
				slot := make(chan Item, 1)
				slot <- item
				select {
				case pending <- slot:
				case <-lookupCtx.Done():
					return
				}
				return
			}
			slot := make(chan Item, 1)
			select {
			case pending <- slot:
			case <-lookupCtx.Done():
				return
			}
			go func(chirp domain.Chirp) {
				start := time.Now()
				enriched, err := lookup(lookupCtx, chirp)
				metrics.ObserveEnrichment(start)
				slot <- Item{Chirp: enriched, Err: err}
			}(item.Chirp)
		}
	}()

	go func() {
		defer close(out)
		defer cancel()
		for slot := range pending {
			var item Item
			select {
			case item = <-slot:
			case <-ctx.Done():
				return
			}
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}
			if item.Err != nil {
				return
			}
		}
	}()
	return out
}
