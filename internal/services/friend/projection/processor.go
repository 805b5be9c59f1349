package projection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/chirper/internal/platform/telemetry/metrics"
	"github.com/louisbranch/chirper/internal/services/friend/storage"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultBatchSize    = 100
	defaultRetryBackoff = 2 * time.Second
)

// Processor tails the friend event journal and applies read-side mutations.
// Delivery from the tap is at least once; the mutations are idempotent and
// the offset commit rides in the same transaction, so replays after a crash
// converge on the same projection content.
type Processor struct {
	events      storage.EventStore
	projections storage.ProjectionStore

	pollInterval time.Duration
	batchSize    int
	retryBackoff time.Duration
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

// WithPollInterval sets how long the processor sleeps when the tap is empty.
func WithPollInterval(interval time.Duration) ProcessorOption {
	return func(p *Processor) {
		if interval > 0 {
			p.pollInterval = interval
		}
	}
}

// WithBatchSize sets how many events are read from the tap per page.
func WithBatchSize(size int) ProcessorOption {
	return func(p *Processor) {
		if size > 0 {
			p.batchSize = size
		}
	}
}

// WithRetryBackoff sets the pause after a failed apply before retrying.
func WithRetryBackoff(backoff time.Duration) ProcessorOption {
	return func(p *Processor) {
		if backoff > 0 {
			p.retryBackoff = backoff
		}
	}
}

// NewProcessor creates a processor over the given event tap and projection
// store.
func NewProcessor(events storage.EventStore, projections storage.ProjectionStore, opts ...ProcessorOption) (*Processor, error) {
	if events == nil {
		return nil, errors.New("event store is required")
	}
	if projections == nil {
		return nil, errors.New("projection store is required")
	}
	p := &Processor{
		events:       events,
		projections:  projections,
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
		retryBackoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run polls the tap until ctx is cancelled. Failed applies are retried from
// the last committed offset after a backoff, never skipped.
func (p *Processor) Run(ctx context.Context) error {
	for {
		drained, err := p.Drain(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("projection apply failed, retrying: %v", err)
			if !sleep(ctx, p.retryBackoff) {
				return ctx.Err()
			}
			continue
		}
		if drained == 0 {
			if !sleep(ctx, p.pollInterval) {
				return ctx.Err()
			}
		}
	}
}

// Drain applies every event currently past the committed offset and returns
// how many were applied.
func (p *Processor) Drain(ctx context.Context) (int, error) {
	offset, err := p.projections.Offset(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("load projector offset: %w", err)
	}

	applied := 0
	for {
		events, err := p.events.ListEventsAfterOffset(ctx, offset, p.batchSize)
		if err != nil {
			return applied, fmt.Errorf("read event tap: %w", err)
		}
		if len(events) == 0 {
			return applied, nil
		}
		for _, evt := range events {
			if err := p.projections.Apply(ctx, MutationsFor(evt), evt.Offset); err != nil {
				metrics.ProjectorErrors.Inc()
				return applied, fmt.Errorf("apply event at offset %d: %w", evt.Offset, err)
			}
			metrics.ProjectorApplied.Inc()
			offset = evt.Offset
			applied++
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
