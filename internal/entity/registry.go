package entity

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// Option configures a Registry.
type Option func(*settings)

type settings struct {
	idleTTL       time.Duration
	snapshotEvery uint64
}

// WithIdleTTL sets how long an idle worker stays resident before retiring.
func WithIdleTTL(ttl time.Duration) Option {
	return func(s *settings) {
		if ttl > 0 {
			s.idleTTL = ttl
		}
	}
}

// WithSnapshotEvery sets how many folded events trigger a snapshot save.
// Zero disables snapshotting.
func WithSnapshotEvery(n uint64) Option {
	return func(s *settings) {
		s.snapshotEvery = n
	}
}

// Registry routes commands to per-id workers.
type Registry[S, C, E any] struct {
	def       Definition[S, C, E]
	journal   Journal[E]
	snapshots SnapshotStore[S]
	settings  settings

	mu      sync.Mutex
	workers map[string]*worker[S, C, E]
	closed  bool
	wg      sync.WaitGroup
}

// New creates a registry for one aggregate type.
//
// snapshots may be nil, in which case rehydration always replays the full
// journal.
func New[S, C, E any](def Definition[S, C, E], journal Journal[E], snapshots SnapshotStore[S], opts ...Option) (*Registry[S, C, E], error) {
	if err := def.validate(); err != nil {
		return nil, err
	}
	if journal == nil {
		return nil, errors.New("journal is required")
	}
	s := settings{
		idleTTL:       defaultIdleTTL,
		snapshotEvery: defaultSnapshotEvery,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return &Registry[S, C, E]{
		def:       def,
		journal:   journal,
		snapshots: snapshots,
		settings:  s,
		workers:   make(map[string]*worker[S, C, E]),
	}, nil
}

// Execute runs one command against the entity with the given id.
//
// The reply is whatever the decision carried; it is delivered only after the
// emitted event batch has been durably appended. A rejection returns the
// decide error with no state change and no events.
func (r *Registry[S, C, E]) Execute(ctx context.Context, entityID string, cmd C) (any, error) {
	env := envelope[C]{ctx: ctx, cmd: cmd, reply: make(chan result, 1)}
	for {
		w, err := r.acquire(entityID)
		if err != nil {
			return nil, err
		}
		select {
		case w.mailbox <- env:
		case <-w.stopped:
			// Worker retired between acquire and send; take a fresh one.
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		select {
		case res := <-env.reply:
			return res.reply, res.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close stops all workers and rejects subsequent commands.
func (r *Registry[S, C, E]) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for _, w := range r.workers {
		close(w.quit)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// ActiveEntities reports how many workers are currently resident.
func (r *Registry[S, C, E]) ActiveEntities() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

func (r *Registry[S, C, E]) acquire(entityID string) (*worker[S, C, E], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if w, ok := r.workers[entityID]; ok {
		return w, nil
	}
	w := &worker[S, C, E]{
		id:      entityID,
		mailbox: make(chan envelope[C]),
		stopped: make(chan struct{}),
		quit:    make(chan struct{}),
	}
	r.workers[entityID] = w
	r.wg.Add(1)
	go r.run(w)
	return w, nil
}

type envelope[C any] struct {
	ctx   context.Context
	cmd   C
	reply chan result
}

type result struct {
	reply any
	err   error
}

type worker[S, C, E any] struct {
	id      string
	mailbox chan envelope[C]
	stopped chan struct{}
	quit    chan struct{}

	state    S
	count    uint64 // events folded into state
	hydrated bool
}

func (r *Registry[S, C, E]) run(w *worker[S, C, E]) {
	defer r.wg.Done()
	idle := time.NewTimer(r.settings.idleTTL)
	defer idle.Stop()

	for {
		select {
		case env := <-w.mailbox:
			r.process(w, env)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(r.settings.idleTTL)
		case <-idle.C:
			if r.retire(w) {
				return
			}
			idle.Reset(r.settings.idleTTL)
		case <-w.quit:
			close(w.stopped)
			return
		}
	}
}

// retire removes the worker from the registry if no sender holds a reference
// that could still deliver. The registry lock makes the check-and-delete
// atomic with respect to acquire.
func (r *Registry[S, C, E]) retire(w *worker[S, C, E]) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	delete(r.workers, w.id)
	close(w.stopped)
	return true
}

func (r *Registry[S, C, E]) process(w *worker[S, C, E], env envelope[C]) {
	ctx := env.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		env.reply <- result{err: err}
		return
	}
	if !w.hydrated {
		if err := r.hydrate(ctx, w); err != nil {
			env.reply <- result{err: err}
			return
		}
	}

	decision, err := r.def.Decide(w.state, env.cmd)
	if err != nil {
		env.reply <- result{err: err}
		return
	}
	if len(decision.Events) > 0 {
		if err := r.journal.Append(ctx, w.id, decision.Events); err != nil {
			env.reply <- result{err: err}
			return
		}
		for _, evt := range decision.Events {
			w.state = r.def.Fold(w.state, evt)
			w.count++
		}
		r.maybeSnapshot(ctx, w)
	}
	env.reply <- result{reply: decision.Reply}
}

func (r *Registry[S, C, E]) hydrate(ctx context.Context, w *worker[S, C, E]) error {
	w.state = r.def.Empty()
	w.count = 0
	if r.snapshots != nil {
		state, count, ok, err := r.snapshots.LoadSnapshot(ctx, w.id)
		if err != nil {
			return err
		}
		if ok {
			w.state = state
			w.count = count
		}
	}
	events, err := r.journal.Load(ctx, w.id, w.count)
	if err != nil {
		return err
	}
	for _, evt := range events {
		w.state = r.def.Fold(w.state, evt)
		w.count++
	}
	w.hydrated = true
	return nil
}

// maybeSnapshot saves folded state on the configured cadence. Failures are
// logged, not surfaced: a missing snapshot only costs replay time.
func (r *Registry[S, C, E]) maybeSnapshot(ctx context.Context, w *worker[S, C, E]) {
	if r.snapshots == nil || r.settings.snapshotEvery == 0 {
		return
	}
	if w.count == 0 || w.count%r.settings.snapshotEvery != 0 {
		return
	}
	if err := r.snapshots.SaveSnapshot(ctx, w.id, w.state, w.count); err != nil {
		log.Printf("entity %s: save snapshot at %d events: %v", w.id, w.count, err)
	}
}
