// Package dispatch exposes the entity-kind-specific mutation operations
// feature code calls: the only write path into the engine.
//
// Every operation follows the same contract:
//  1. Authorization precondition - an authenticated actor is required.
//  2. Domain precondition - state machine moves are validated against the
//     current optimistic view.
//  3. Online: the write goes directly to the remote store; a remote
//     failure surfaces immediately (no silent fallback to queueing).
//  4. Offline: a PendingAction is appended to the durable log and an
//     equivalent optimistic patch applies to the entity cache, so the
//     change is readable before any network round trip.
//
// Domain and authorization errors never enter the action log - they are
// rejected synchronously here.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tableside/syncengine/internal/actionlog"
	"github.com/tableside/syncengine/internal/cache"
	"github.com/tableside/syncengine/internal/connectivity"
	"github.com/tableside/syncengine/internal/domain"
	"github.com/tableside/syncengine/internal/remote"
)

// Session supplies the acting user. An empty ActorID means no
// authenticated session; every operation fails with Unauthorized.
type Session interface {
	ActorID() string
}

// DefaultReservationTTL is how long a table reservation holds before the
// expiry sweep releases it.
const DefaultReservationTTL = 2 * time.Hour

// Dispatcher validates and routes mutations for one device session.
//
// All dependencies are injected explicitly; the dispatcher holds no
// ambient globals. One dispatcher serves both collections because order
// and table operations share the log, the session, and connectivity.
type Dispatcher struct {
	log     *actionlog.Log
	store   remote.Store
	orders  *cache.Cache
	tables  *cache.Cache
	monitor *connectivity.Monitor
	session Session
	ids     domain.IDGenerator
	now     func() time.Time

	reservationTTL time.Duration

	// atRisk holds actions whose durable Append failed. They survive only
	// in memory; FlushAtRisk retries the append so they rejoin the drain
	// path while the process lives.
	mu     sync.Mutex
	atRisk []domain.PendingAction
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithReservationTTL overrides the reservation hold duration.
func WithReservationTTL(ttl time.Duration) Option {
	return func(d *Dispatcher) { d.reservationTTL = ttl }
}

// WithClock overrides the wall clock. Tests use a manual clock so queued
// CreatedAt stamps are deterministic.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithIDGenerator overrides ID generation. Tests use a fixed generator.
func WithIDGenerator(ids domain.IDGenerator) Option {
	return func(d *Dispatcher) { d.ids = ids }
}

// New creates a Dispatcher.
func New(
	log *actionlog.Log,
	store remote.Store,
	orders, tables *cache.Cache,
	monitor *connectivity.Monitor,
	session Session,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		log:            log,
		store:          store,
		orders:         orders,
		tables:         tables,
		monitor:        monitor,
		session:        session,
		ids:            domain.UUIDv7Generator{},
		now:            time.Now,
		reservationTTL: DefaultReservationTTL,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// actor returns the authenticated actor ID or an Unauthorized error.
func (d *Dispatcher) actor() (string, error) {
	id := d.session.ActorID()
	if id == "" {
		return "", domain.NewUnauthorized("no authenticated actor")
	}
	return id, nil
}

// newAction assembles a PendingAction for the given target and payload.
func (d *Dispatcher) newAction(collection domain.Collection, entityID, actorID string, p domain.Payload) domain.PendingAction {
	return domain.PendingAction{
		ID:         d.ids.NewActionID(),
		Collection: collection,
		EntityID:   entityID,
		Kind:       p.Kind(),
		Payload:    p,
		ActorID:    actorID,
		CreatedAt:  d.now().UTC(),
	}
}

// submit routes a validated non-Create action down the online or offline
// path. The optimistic view reflects the action when submit returns.
func (d *Dispatcher) submit(ctx context.Context, c *cache.Cache, a domain.PendingAction) error {
	if d.monitor.Online() {
		if err := d.store.Write(ctx, a); err != nil {
			return domain.NewRemoteUnavailable(err)
		}
		// The subscription will echo server truth; fold the acknowledged
		// write into the snapshot now so read-your-own-writes holds
		// before the echo arrives.
		return c.ApplyAcknowledged(a)
	}

	return d.queue(ctx, c, a)
}

// submitCreate routes a Create. Online, the server assigns the real ID
// and no queue entry exists; offline, the entity lives under its temp ID
// until the synchronizer remaps it.
func (d *Dispatcher) submitCreate(ctx context.Context, c *cache.Cache, a domain.PendingAction, e domain.Entity) (string, error) {
	if d.monitor.Online() {
		serverID, err := d.store.Create(ctx, a.Collection, e)
		if err != nil {
			return "", domain.NewRemoteUnavailable(err)
		}
		a.EntityID = serverID
		if err := c.ApplyAcknowledged(a); err != nil {
			return "", err
		}
		return serverID, nil
	}

	if err := d.queue(ctx, c, a); err != nil {
		return "", err
	}
	return a.EntityID, nil
}

// queue appends to the durable log and applies the optimistic patch.
//
// A storage failure does not fail the operation: the in-memory patch
// still applies for this session, flagged at-risk and held for
// FlushAtRisk, and a warning is logged - a restart before the flush
// succeeds loses the action.
func (d *Dispatcher) queue(ctx context.Context, c *cache.Cache, a domain.PendingAction) error {
	if err := d.log.Append(ctx, a); err != nil {
		if !domain.IsStorageUnavailable(err) {
			return err
		}
		a.AtRisk = true
		d.mu.Lock()
		d.atRisk = append(d.atRisk, a)
		d.mu.Unlock()
		slog.Warn("action not durably queued, at risk for this session",
			"action_id", a.ID,
			"collection", a.Collection,
			"entity_id", a.EntityID,
			"error", err)
	}
	return c.AddPending(a)
}

// FlushAtRisk retries the durable Append for at-risk actions. Actions
// that append rejoin the normal drain path; the rest stay in memory for
// the next attempt. Returns how many were re-appended.
//
// The synchronizer runs this at the start of every drain so a transient
// storage failure only delays replay, it does not lose the action for
// the life of the process.
func (d *Dispatcher) FlushAtRisk(ctx context.Context) int {
	d.mu.Lock()
	held := d.atRisk
	d.atRisk = nil
	d.mu.Unlock()

	var kept []domain.PendingAction
	flushed := 0
	for _, a := range held {
		a.AtRisk = false
		if err := d.log.Append(ctx, a); err != nil {
			a.AtRisk = true
			kept = append(kept, a)
			continue
		}
		flushed++
	}

	if len(kept) > 0 {
		d.mu.Lock()
		d.atRisk = append(kept, d.atRisk...)
		d.mu.Unlock()
	}
	return flushed
}
