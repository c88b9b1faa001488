package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/tableside/syncengine/internal/domain"
	"github.com/tableside/syncengine/internal/remote"
)

// FakeRemote is an in-memory remote document store.
//
// It applies writes with the same fold semantics the engine uses
// optimistically, assigns sequential server IDs on Create, records every
// acknowledged write in order, and supports scripted failures for
// stall-and-retry tests.
type FakeRemote struct {
	mu       sync.Mutex
	entities map[domain.Collection]map[string]domain.Entity
	writes   []domain.PendingAction
	nextID   int

	failAll    error
	failEntity map[string]error
	failBatch  error

	subs map[domain.Collection][]chan remote.Snapshot
}

// NewFakeRemote creates an empty fake store.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		entities: map[domain.Collection]map[string]domain.Entity{
			domain.CollectionOrders: {},
			domain.CollectionTables: {},
		},
		failEntity: make(map[string]error),
		subs:       make(map[domain.Collection][]chan remote.Snapshot),
	}
}

// FailAll makes every call fail with err until cleared with nil.
func (f *FakeRemote) FailAll(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = err
}

// FailEntity makes writes targeting one entity fail with err until
// cleared with nil. Used to stall a single group.
func (f *FakeRemote) FailEntity(entityID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failEntity, entityID)
		return
	}
	f.failEntity[entityID] = err
}

// FailBatch makes the next WriteBatch calls fail with err until cleared.
func (f *FakeRemote) FailBatch(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failBatch = err
}

// Create implements remote.Store: assigns a server ID and stores the
// entity under it, ignoring the client's (temp) ID.
func (f *FakeRemote) Create(ctx context.Context, collection domain.Collection, e domain.Entity) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAll != nil {
		return "", f.failAll
	}
	if err := f.failEntity[e.ID()]; err != nil {
		return "", err
	}

	f.nextID++
	serverID := fmt.Sprintf("srv-%04d", f.nextID)

	stored := e.Clone()
	switch v := stored.(type) {
	case *domain.Order:
		v.OrderID = serverID
	case *domain.Table:
		v.TableID = serverID
	default:
		return "", fmt.Errorf("fake remote: unsupported entity %T", e)
	}

	f.entities[collection][serverID] = stored
	f.writes = append(f.writes, domain.PendingAction{
		Collection: collection,
		EntityID:   serverID,
		Kind:       domain.ActionCreate,
	})
	return serverID, nil
}

// Write implements remote.Store with per-document atomicity.
func (f *FakeRemote) Write(ctx context.Context, a domain.PendingAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(a)
}

// WriteBatch implements remote.Store: all actions apply or none do.
func (f *FakeRemote) WriteBatch(ctx context.Context, actions []domain.PendingAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failBatch != nil {
		return f.failBatch
	}
	for _, a := range actions {
		if f.failAll != nil {
			return f.failAll
		}
		if err := f.failEntity[a.EntityID]; err != nil {
			return err
		}
	}
	for _, a := range actions {
		if err := f.write(a); err != nil {
			// Atomicity is enforced by the precheck above; an apply
			// failure here is a test bug.
			panic(fmt.Sprintf("fake remote: batch apply after precheck: %v", err))
		}
	}
	return nil
}

// write applies one action to stored state. Caller holds f.mu.
func (f *FakeRemote) write(a domain.PendingAction) error {
	if f.failAll != nil {
		return f.failAll
	}
	if err := f.failEntity[a.EntityID]; err != nil {
		return err
	}

	base := f.entities[a.Collection][a.EntityID]
	if base == nil && a.Kind != domain.ActionCreate {
		return domain.NewNotFound(string(a.Collection), a.EntityID)
	}

	next, err := domain.Apply(base, a)
	if err != nil {
		return err
	}
	if next == nil {
		delete(f.entities[a.Collection], a.EntityID)
	} else {
		f.entities[a.Collection][a.EntityID] = next
	}

	f.writes = append(f.writes, a)
	return nil
}

// Subscribe implements remote.Store. Snapshots are delivered via Push.
func (f *FakeRemote) Subscribe(ctx context.Context, collection domain.Collection) (<-chan remote.Snapshot, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan remote.Snapshot, 64)
	f.subs[collection] = append(f.subs[collection], ch)

	stop := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, sub := range f.subs[collection] {
			if sub == ch {
				f.subs[collection] = append(f.subs[collection][:i], f.subs[collection][i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, stop, nil
}

// Push delivers a server snapshot to every subscriber of a collection.
// A nil entity signals a remote deletion.
func (f *FakeRemote) Push(collection domain.Collection, entityID string, e domain.Entity) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs[collection] {
		ch <- remote.Snapshot{Collection: collection, EntityID: entityID, Entity: e}
	}
}

// Entity returns the stored server state for an entity, or nil.
func (f *FakeRemote) Entity(collection domain.Collection, entityID string) domain.Entity {
	f.mu.Lock()
	defer f.mu.Unlock()

	e := f.entities[collection][entityID]
	if e == nil {
		return nil
	}
	return e.Clone()
}

// Entities returns how many entities a collection holds.
func (f *FakeRemote) Entities(collection domain.Collection) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entities[collection])
}

// WriteCount returns how many writes the store has acknowledged.
func (f *FakeRemote) WriteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

// Seed stores an entity directly, bypassing the write path. Tests use it
// to establish server truth.
func (f *FakeRemote) Seed(collection domain.Collection, e domain.Entity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entities[collection][e.ID()] = e.Clone()
}
