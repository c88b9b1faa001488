// Package cache maintains the in-memory entity view feature code reads
// from: the last-known server snapshot per entity, folded with that
// entity's uncommitted pending actions in causal order.
//
// The optimistic view is always derivable - never stored truth. Every
// mutation of the inputs (new server snapshot, new pending action, a
// commit lifting a shadow, a temp-ID remap) triggers a rebuild of the
// affected entity's view, so reads observe read-your-own-writes
// immediately after a dispatcher call returns.
package cache

import (
	"fmt"
	"sync"

	"github.com/tableside/syncengine/internal/domain"
)

// Cache is one collection's entity view.
//
// Thread-safety: all methods are safe for concurrent use. Writers
// (subscription goroutine, dispatcher, synchronizer) serialize behind a
// single mutex; readers take the same lock and receive clones, so no
// caller ever aliases cache-internal state.
type Cache struct {
	collection domain.Collection

	mu      sync.RWMutex
	server  map[string]domain.Entity         // last server snapshot per entity
	pending map[string][]domain.PendingAction // uncommitted actions per entity, causal order
	view    map[string]domain.Entity         // server snapshot folded with pending
}

// New creates an empty cache for a collection.
func New(collection domain.Collection) *Cache {
	return &Cache{
		collection: collection,
		server:     make(map[string]domain.Entity),
		pending:    make(map[string][]domain.PendingAction),
		view:       make(map[string]domain.Entity),
	}
}

// Collection returns the collection this cache serves.
func (c *Cache) Collection() domain.Collection { return c.collection }

// Get returns the optimistic view of an entity, or false if it is absent
// (never seen, or deleted by server truth or a pending delete).
func (c *Cache) Get(entityID string) (domain.Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.view[entityID]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// List returns the optimistic view of every entity in the collection.
// Order is unspecified.
func (c *Cache) List() []domain.Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Entity, 0, len(c.view))
	for _, e := range c.view {
		out = append(out, e.Clone())
	}
	return out
}

// HasServerEntity reports whether the server has acknowledged an entity
// under this ID. Used to detect conflicting remap targets.
func (c *Cache) HasServerEntity(entityID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.server[entityID]
	return ok
}

// ApplySnapshot ingests server truth for one entity. A nil entity records
// a remote deletion. Uncommitted pending actions continue to shadow the
// snapshot until they commit: the rebuild folds them back on top.
func (c *Cache) ApplySnapshot(entityID string, e domain.Entity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e == nil {
		delete(c.server, entityID)
	} else {
		c.server[entityID] = e.Clone()
	}
	return c.rebuild(entityID)
}

// AddPending applies an optimistic patch: the action joins the entity's
// shadow list and the view is rebuilt so the caller reads its own write
// immediately, before any network round trip.
func (c *Cache) AddPending(a domain.PendingAction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending[a.EntityID] = append(c.pending[a.EntityID], a)
	return c.rebuild(a.EntityID)
}

// LiftPending removes a committed action's shadow. Server truth for the
// committed fields arrives via the subscription; until then the remaining
// shadows still fold over the last snapshot.
func (c *Cache) LiftPending(entityID, actionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	actions := c.pending[entityID]
	for i, a := range actions {
		if a.ID == actionID {
			c.pending[entityID] = append(actions[:i:i], actions[i+1:]...)
			break
		}
	}
	if len(c.pending[entityID]) == 0 {
		delete(c.pending, entityID)
	}
	return c.rebuild(entityID)
}

// Remap moves an entity's shadows from a temp ID to its server-assigned
// ID and rewrites payload references to the temp ID across every pending
// action in the collection. Rebuilds both affected views.
func (c *Cache) Remap(oldID, newID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	moved := c.pending[oldID]
	delete(c.pending, oldID)
	delete(c.view, oldID)

	for i := range moved {
		moved[i].EntityID = newID
	}
	c.pending[newID] = append(moved, c.pending[newID]...)

	// Rewrite cross-entity payload references within this collection.
	touched := map[string]bool{oldID: true, newID: true}
	for id, actions := range c.pending {
		for i, a := range actions {
			remapped := domain.RemapRefs(a.Payload, oldID, newID)
			if remapped != a.Payload {
				actions[i].Payload = remapped
				touched[id] = true
			}
		}
	}

	for id := range touched {
		if err := c.rebuild(id); err != nil {
			return err
		}
	}
	return nil
}

// ApplyAcknowledged folds a write the remote store just acknowledged
// into the server snapshot, anticipating the subscription echo. The fold
// base is server truth, not the optimistic view: uncommitted shadows
// still fold on top during the rebuild, so folding the view would apply
// them twice.
func (c *Cache) ApplyAcknowledged(a domain.PendingAction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var base domain.Entity
	if snap, ok := c.server[a.EntityID]; ok {
		base = snap.Clone()
	}
	next, err := domain.Apply(base, a)
	if err != nil && !domain.IsNotFound(err) {
		return fmt.Errorf("acknowledge %s/%s: fold action %s: %w", c.collection, a.EntityID, a.ID, err)
	}
	if err == nil {
		if next == nil {
			delete(c.server, a.EntityID)
		} else {
			c.server[a.EntityID] = next
		}
	}
	return c.rebuild(a.EntityID)
}

// CommitPending marks one action acknowledged by the remote store: its
// effect folds into the server snapshot (anticipating the subscription
// echo), its shadow is lifted, and the view is rebuilt.
func (c *Cache) CommitPending(entityID, actionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	actions := c.pending[entityID]
	idx := -1
	for i, a := range actions {
		if a.ID == actionID {
			idx = i
			break
		}
	}
	if idx == -1 {
		// Already lifted (retried drain); nothing to fold.
		return c.rebuild(entityID)
	}

	var base domain.Entity
	if snap, ok := c.server[entityID]; ok {
		base = snap.Clone()
	}
	next, err := domain.Apply(base, actions[idx])
	if err != nil && !domain.IsNotFound(err) {
		return fmt.Errorf("commit %s/%s: fold action %s: %w", c.collection, entityID, actionID, err)
	}
	if err == nil {
		if next == nil {
			delete(c.server, entityID)
		} else {
			c.server[entityID] = next
		}
	}

	c.pending[entityID] = append(actions[:idx:idx], actions[idx+1:]...)
	if len(c.pending[entityID]) == 0 {
		delete(c.pending, entityID)
	}
	return c.rebuild(entityID)
}

// Rebuild recomputes one entity's optimistic view from scratch.
func (c *Cache) Rebuild(entityID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rebuild(entityID)
}

// rebuild folds the last server snapshot with the entity's pending
// actions in causal order. Caller holds c.mu.
func (c *Cache) rebuild(entityID string) error {
	var base domain.Entity
	if snap, ok := c.server[entityID]; ok {
		base = snap.Clone()
	}

	for _, a := range c.pending[entityID] {
		next, err := domain.Apply(base, a)
		if err != nil {
			// A patch whose base vanished (server-side delete racing a
			// queued update) cannot fold; it will surface at drain time.
			if domain.IsNotFound(err) {
				continue
			}
			return fmt.Errorf("rebuild %s/%s: fold action %s: %w", c.collection, entityID, a.ID, err)
		}
		base = next
	}

	if base == nil {
		delete(c.view, entityID)
	} else {
		c.view[entityID] = base
	}
	return nil
}

// PendingCount returns the number of uncommitted shadows for an entity.
func (c *Cache) PendingCount(entityID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pending[entityID])
}
