// Package syncer drains the action log against the remote store when
// connectivity allows.
//
// A drain replays each entity's pending actions strictly in creation
// order, waiting for each acknowledgment before sending the group's next
// action. Different entities have no mutual ordering requirement:
// independent groups replay within the same pass, and single ready
// actions across entities are committed in one atomic batch when the
// remote store supports it.
//
// Temp IDs are resolved mid-drain: when a Create commits, the
// server-assigned ID is substituted into every pending action still
// referencing the temp ID - in the durable log, in the caches, and in the
// not-yet-replayed tail of the group. Actions referencing a temp ID owned
// by a different entity are deferred until that Create commits; draining
// collections in registration order resolves the common
// order-before-table case in a single pass.
//
// Re-draining an already-drained log is a no-op: ListPending is empty and
// no remote writes are issued.
package syncer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tableside/syncengine/internal/actionlog"
	"github.com/tableside/syncengine/internal/cache"
	"github.com/tableside/syncengine/internal/domain"
	"github.com/tableside/syncengine/internal/remote"
)

// DefaultBatchSize caps how many independent single-action groups commit
// in one atomic remote batch.
const DefaultBatchSize = 25

// Synchronizer drains pending actions for a set of registered collections.
type Synchronizer struct {
	log    *actionlog.Log
	store  remote.Store
	caches map[domain.Collection]*cache.Cache

	// collections preserves registration order; drains follow it so
	// collections that own frequently-referenced entities (orders) can be
	// registered ahead of their dependents (tables).
	collections []domain.Collection

	stalled   *stallRegistry
	clock     traceClock
	batchSize int
	preDrain  func(context.Context)

	// draining is the drain-in-progress flag: concurrent triggers do not
	// overlap, they fall through and the monitor's coalesced trigger
	// covers the follow-up.
	draining atomic.Bool

	mu        sync.Mutex
	lastTrace *Trace
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithBatchSize overrides the atomic batch cap. A size of 1 disables
// batching.
func WithBatchSize(n int) Option {
	return func(s *Synchronizer) { s.batchSize = n }
}

// WithPreDrain registers a hook that runs at the start of every drain,
// before pending actions are listed. The engine uses it to re-append
// at-risk actions so they join the replay set of the same drain.
func WithPreDrain(fn func(context.Context)) Option {
	return func(s *Synchronizer) { s.preDrain = fn }
}

// New creates a Synchronizer draining the given collections in order.
// Each collection must have a registered cache.
func New(log *actionlog.Log, store remote.Store, caches map[domain.Collection]*cache.Cache, collections []domain.Collection, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		log:         log,
		store:       store,
		caches:      caches,
		collections: append([]domain.Collection(nil), collections...),
		stalled:     newStallRegistry(),
		batchSize:   DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run drains on every trigger until ctx is cancelled. Must be called from
// exactly one goroutine.
func (s *Synchronizer) Run(ctx context.Context, trigger <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-trigger:
			if !ok {
				return
			}
			if _, err := s.Drain(ctx); err != nil {
				slog.Error("drain failed", "error", err)
			}
		}
	}
}

// Drain replays all pending actions. Returns the drain trace, or a nil
// trace if another drain was already in progress.
//
// Stalled groups from previous drains are retried; groups that fail with
// a retryable error stall again without blocking independent groups.
// Conflicting offline writes from other devices are not detected here:
// replay is last-commit-wins, resolved field-level by the remote store.
func (s *Synchronizer) Drain(ctx context.Context) (*Trace, error) {
	if !s.draining.CompareAndSwap(false, true) {
		slog.Debug("drain already in progress, skipping trigger")
		return nil, nil
	}
	defer s.draining.Store(false)

	if s.preDrain != nil {
		s.preDrain(ctx)
	}

	trace := &Trace{Events: []TraceEvent{}}

	for _, collection := range s.collections {
		if err := s.drainCollection(ctx, collection, trace); err != nil {
			return trace, err
		}
	}

	// Groups deferred on a foreign temp ID may have become ready when a
	// later collection's Create committed. Re-pass until no progress.
	for {
		before := trace.Committed
		for _, collection := range s.collections {
			if !s.hasDeferred(collection) {
				continue
			}
			if err := s.drainCollection(ctx, collection, trace); err != nil {
				return trace, err
			}
		}
		if trace.Committed == before {
			break
		}
	}

	trace.Stalled = s.stalled.count()

	s.mu.Lock()
	s.lastTrace = trace
	s.mu.Unlock()

	if trace.Committed > 0 || trace.Stalled > 0 {
		slog.Info("drain finished",
			"committed", trace.Committed,
			"stalled", trace.Stalled,
			"events", len(trace.Events))
	}
	return trace, nil
}

// LastTrace returns the most recent drain trace, or nil before the first
// drain. The sync-issue indicator polls this.
func (s *Synchronizer) LastTrace() *Trace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTrace
}

// StalledGroups returns the stalled entity groups for a collection with
// their stall reasons.
func (s *Synchronizer) StalledGroups(collection domain.Collection) map[string]string {
	return s.stalled.snapshot(collection)
}

// hasDeferred reports whether a collection has groups stalled on an
// unresolved temp reference.
func (s *Synchronizer) hasDeferred(collection domain.Collection) bool {
	for _, reason := range s.stalled.snapshot(collection) {
		if reason == reasonDeferred {
			return true
		}
	}
	return false
}
