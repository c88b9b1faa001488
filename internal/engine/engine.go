// Package engine wires the sync components into one offline-first client
// engine: action log, entity caches, mutation dispatcher, synchronizer,
// and connectivity monitor.
//
// Everything is injected explicitly - the engine owns no ambient global
// state. Construct one Engine per device session with its remote store
// client, local log handle, connectivity source, and session provider,
// and pass it to consumers.
//
// Concurrency model: three background goroutine kinds per engine - the
// connectivity monitor, the synchronizer's trigger loop, and one
// subscription pump per collection. The caches and the log serialize
// internally, so the goroutines never coordinate directly; they meet at
// those two shared resources.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tableside/syncengine/internal/actionlog"
	"github.com/tableside/syncengine/internal/cache"
	"github.com/tableside/syncengine/internal/connectivity"
	"github.com/tableside/syncengine/internal/dispatch"
	"github.com/tableside/syncengine/internal/domain"
	"github.com/tableside/syncengine/internal/remote"
	"github.com/tableside/syncengine/internal/syncer"
)

// collectionOrder is the drain order. Orders come first so table actions
// that reference a temp order ID find the real ID already remapped.
var collectionOrder = []domain.Collection{
	domain.CollectionOrders,
	domain.CollectionTables,
}

// Engine is one device session's sync engine.
type Engine struct {
	log     *actionlog.Log
	store   remote.Store
	monitor *connectivity.Monitor
	syncer  *syncer.Synchronizer
	disp    *dispatch.Dispatcher

	orders *cache.Cache
	tables *cache.Cache

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options configures engine construction.
type Options struct {
	// DispatchOptions are forwarded to the dispatcher (clock, IDs, TTL).
	DispatchOptions []dispatch.Option

	// SyncOptions are forwarded to the synchronizer (batch size).
	SyncOptions []syncer.Option
}

// New assembles an engine. The log and store are owned by the caller;
// Close stops the engine's goroutines but closes neither.
func New(log *actionlog.Log, store remote.Store, source connectivity.Source, session dispatch.Session, opts Options) *Engine {
	orders := cache.New(domain.CollectionOrders)
	tables := cache.New(domain.CollectionTables)

	monitor := connectivity.New(source)
	caches := map[domain.Collection]*cache.Cache{
		domain.CollectionOrders: orders,
		domain.CollectionTables: tables,
	}

	disp := dispatch.New(log, store, orders, tables, monitor, session, opts.DispatchOptions...)

	// Every drain first retries durable appends for at-risk actions, so a
	// transient storage failure only delays their replay.
	syncOpts := append([]syncer.Option{
		syncer.WithPreDrain(func(ctx context.Context) {
			if n := disp.FlushAtRisk(ctx); n > 0 {
				slog.Info("re-queued at-risk actions", "count", n)
			}
		}),
	}, opts.SyncOptions...)

	return &Engine{
		log:     log,
		store:   store,
		monitor: monitor,
		syncer:  syncer.New(log, store, caches, collectionOrder, syncOpts...),
		disp:    disp,
		orders:  orders,
		tables:  tables,
	}
}

// Start launches the subscription pumps, the connectivity monitor, and
// the synchronizer loop, then fires one drain for work left over from a
// previous session. Returns after the subscriptions are established.
func (e *Engine) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	for _, collection := range collectionOrder {
		snapshots, stop, err := e.store.Subscribe(runCtx, collection)
		if err != nil {
			cancel()
			return fmt.Errorf("subscribe %s: %w", collection, err)
		}
		e.wg.Add(1)
		go func(collection domain.Collection, snapshots <-chan remote.Snapshot, stop func()) {
			defer e.wg.Done()
			defer stop()
			e.pump(runCtx, collection, snapshots)
		}(collection, snapshots, stop)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.monitor.Run(runCtx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.syncer.Run(runCtx, e.monitor.Trigger())
	}()

	if e.monitor.Online() {
		e.monitor.Kick()
	}

	slog.Info("engine started", "online", e.monitor.Online())
	return nil
}

// Close stops the background goroutines and waits for them.
func (e *Engine) Close() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// pump feeds one collection's subscription into its cache. Server truth
// overwrites local snapshots; fields shadowed by uncommitted pending
// actions keep shadowing until those actions commit.
func (e *Engine) pump(ctx context.Context, collection domain.Collection, snapshots <-chan remote.Snapshot) {
	c := e.cacheFor(collection)
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if err := c.ApplySnapshot(snap.EntityID, snap.Entity); err != nil {
				slog.Error("snapshot apply failed",
					"collection", collection,
					"entity_id", snap.EntityID,
					"error", err)
			}
		}
	}
}

// Dispatcher returns the write path for feature code.
func (e *Engine) Dispatcher() *dispatch.Dispatcher { return e.disp }

// Orders returns the orders cache (read path).
func (e *Engine) Orders() *cache.Cache { return e.orders }

// Tables returns the tables cache (read path).
func (e *Engine) Tables() *cache.Cache { return e.tables }

// Synchronizer exposes drain state for the sync-issue indicator.
func (e *Engine) Synchronizer() *syncer.Synchronizer { return e.syncer }

// DrainNow triggers an immediate drain, bypassing the connectivity
// monitor. Used by tests and operator tooling.
func (e *Engine) DrainNow(ctx context.Context) (*syncer.Trace, error) {
	return e.syncer.Drain(ctx)
}

// cacheFor maps a collection to its cache.
func (e *Engine) cacheFor(collection domain.Collection) *cache.Cache {
	if collection == domain.CollectionTables {
		return e.tables
	}
	return e.orders
}
