// Package pubsub provides the sharded live-chirp fan-out.
//
// Chirps are published to one of a fixed set of shard topics derived from the
// author id. Live readers subscribe to the shards covering the authors they
// care about and filter out the other authors sharing a shard.
package pubsub

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/louisbranch/chirper/internal/services/chirp/domain"
)

// NumTopics is the fixed shard count for the live fan-out.
const NumTopics = 1024

// TopicForUser maps an author id onto its shard topic.
func TopicForUser(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	v := int32(h.Sum32())
	if v < 0 {
		v = -v
	}
	return int(v) % NumTopics
}

// TopicsForUsers returns the deduplicated shard set covering all given
// authors.
func TopicsForUsers(userIDs []string) []int {
	seen := make(map[int]struct{}, len(userIDs))
	var topics []int
	for _, id := range userIDs {
		topic := TopicForUser(id)
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		topics = append(topics, topic)
	}
	return topics
}

// Broker delivers published chirps to shard subscribers.
//
// Delivery is best effort: a subscriber that falls behind its buffer loses
// messages rather than stalling publishers. Durable history lives in the
// chirp store, not here.
type Broker interface {
	Publish(topic int, chirp domain.Chirp)
	Subscribe(ctx context.Context, topics []int, buffer int) <-chan domain.Chirp
}

type subscriber struct {
	ch     chan domain.Chirp
	topics map[int]struct{}
}

// MemoryBroker is an in-process Broker.
type MemoryBroker struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// NewMemoryBroker creates an empty in-process broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[*subscriber]struct{})}
}

// Publish delivers the chirp to every subscriber of the topic without
// blocking. Subscribers with a full buffer are skipped.
func (b *MemoryBroker) Publish(topic int, chirp domain.Chirp) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if _, ok := sub.topics[topic]; !ok {
			continue
		}
		select {
		case sub.ch <- chirp:
		default:
		}
	}
}

// Subscribe returns a channel receiving chirps published to any of the given
// topics until ctx is cancelled, at which point the channel is closed.
func (b *MemoryBroker) Subscribe(ctx context.Context, topics []int, buffer int) <-chan domain.Chirp {
	if buffer < 1 {
		buffer = 1
	}
	sub := &subscriber{
		ch:     make(chan domain.Chirp, buffer),
		topics: make(map[int]struct{}, len(topics)),
	}
	for _, topic := range topics {
		sub.topics[topic] = struct{}{}
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		close(sub.ch)
	}()
	return sub.ch
}
