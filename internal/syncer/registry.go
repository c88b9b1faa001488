package syncer

import (
	"sync"

	"github.com/tableside/syncengine/internal/domain"
)

// stallRegistry tracks entity groups whose replay stopped on a retryable
// error, per collection. The next drain consults it instead of assuming
// every collection needs attention, and the sync-issue indicator reads it
// to report what is stuck.
//
// Thread-safety: guarded by an internal mutex; the drain goroutine writes
// while readers (Stalled, engine status) may run concurrently.
type stallRegistry struct {
	mu     sync.Mutex
	groups map[domain.Collection]map[string]string // entityID -> reason
}

func newStallRegistry() *stallRegistry {
	return &stallRegistry{
		groups: make(map[domain.Collection]map[string]string),
	}
}

// stall records a stopped group.
func (r *stallRegistry) stall(collection domain.Collection, entityID, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.groups[collection] == nil {
		r.groups[collection] = make(map[string]string)
	}
	r.groups[collection][entityID] = reason
}

// clear removes a group after a successful replay.
func (r *stallRegistry) clear(collection domain.Collection, entityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.groups[collection], entityID)
	if len(r.groups[collection]) == 0 {
		delete(r.groups, collection)
	}
}

// snapshot returns a copy of the stalled groups for one collection.
func (r *stallRegistry) snapshot(collection domain.Collection) map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]string, len(r.groups[collection]))
	for id, reason := range r.groups[collection] {
		out[id] = reason
	}
	return out
}

// count returns the total number of stalled groups.
func (r *stallRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, g := range r.groups {
		n += len(g)
	}
	return n
}
