package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tableside/syncengine/internal/domain"
)

// reasonDeferred marks groups waiting on a foreign temp ID.
const reasonDeferred = "awaiting temp ID from another entity"

// group is one entity's pending actions in causal order.
type group struct {
	entityID string
	actions  []domain.PendingAction
}

// drainCollection replays one collection's pending actions.
func (s *Synchronizer) drainCollection(ctx context.Context, collection domain.Collection, trace *Trace) error {
	pending, err := s.log.ListPending(ctx, collection)
	if err != nil {
		return fmt.Errorf("drain %s: %w", collection, err)
	}
	if len(pending) == 0 {
		return nil
	}

	groups := groupByEntity(pending)

	// Independent single ready actions commit in one atomic batch;
	// everything else replays sequentially per group.
	var batch []domain.PendingAction
	var sequential []group
	for _, g := range groups {
		if len(g.actions) == 1 && s.batchSize > 1 && batchable(g.actions[0]) {
			batch = append(batch, g.actions[0])
			continue
		}
		sequential = append(sequential, g)
	}

	s.replayBatch(ctx, collection, batch, trace)
	for _, g := range sequential {
		s.replayGroup(ctx, collection, g, trace)
	}
	return nil
}

// batchable reports whether an action may join an atomic batch: not a
// Create (those return server IDs and trigger remaps) and no unresolved
// temp references.
func batchable(a domain.PendingAction) bool {
	return a.Kind != domain.ActionCreate &&
		!domain.IsTempID(a.EntityID) &&
		len(domain.TempRefs(a.Payload)) == 0
}

// groupByEntity splits a causally-ordered listing into per-entity groups,
// preserving first-appearance order across groups and causal order within.
func groupByEntity(pending []domain.PendingAction) []group {
	index := make(map[string]int)
	var groups []group
	for _, a := range pending {
		i, ok := index[a.EntityID]
		if !ok {
			i = len(groups)
			index[a.EntityID] = i
			groups = append(groups, group{entityID: a.EntityID})
		}
		groups[i].actions = append(groups[i].actions, a)
	}
	return groups
}

// replayGroup replays one entity's actions in order, waiting for each
// acknowledgment before sending the next. Any failure stops the group
// (order is preserved) without blocking independent groups.
func (s *Synchronizer) replayGroup(ctx context.Context, collection domain.Collection, g group, trace *Trace) {
	groupID := g.entityID

	for i := 0; i < len(g.actions); i++ {
		a := g.actions[i]

		// An unresolved reference to another entity's temp ID means that
		// entity's Create has not committed yet; stop here and let a
		// later pass retry once the owning collection drains.
		if refs := domain.TempRefs(a.Payload); len(refs) > 0 {
			s.stalled.stall(collection, groupID, reasonDeferred)
			trace.Events = append(trace.Events, TraceEvent{
				Seq:        s.clock.Next(),
				Collection: string(collection),
				EntityID:   a.EntityID,
				ActionID:   a.ID,
				Kind:       string(a.Kind),
				Outcome:    OutcomeDeferred,
			})
			return
		}

		if a.Kind == domain.ActionCreate {
			newID, ok := s.replayCreate(ctx, collection, groupID, a, trace)
			if !ok {
				return
			}
			if newID != "" {
				// Substitute the server ID into the unreplayed tail
				// before sending the group's next action.
				s.stalled.clear(collection, groupID)
				groupID = newID
				for j := i + 1; j < len(g.actions); j++ {
					g.actions[j].EntityID = newID
					g.actions[j].Payload = domain.RemapRefs(g.actions[j].Payload, a.EntityID, newID)
				}
			}
			continue
		}

		if err := s.store.Write(ctx, a); err != nil {
			s.recordFailure(collection, groupID, a, err, trace)
			return
		}
		s.commit(ctx, collection, a, OutcomeCommitted, "", trace)
	}

	s.stalled.clear(collection, groupID)
}

// replayCreate sends a Create, remaps the temp ID on acknowledgment, and
// commits the action. Returns the server ID (empty if the entity ID was
// already real) and whether the group may continue.
func (s *Synchronizer) replayCreate(ctx context.Context, collection domain.Collection, groupID string, a domain.PendingAction, trace *Trace) (string, bool) {
	entity, ok := domain.EntityFromCreate(a.Payload)
	if !ok {
		// Kind/payload mismatch is a log corruption; discard with audit.
		s.discard(ctx, collection, a, "create action without create payload", trace)
		return "", false
	}

	serverID, err := s.store.Create(ctx, collection, entity)
	if err != nil {
		s.recordFailure(collection, groupID, a, err, trace)
		return "", false
	}

	if serverID == a.EntityID {
		// Server honored the client ID; nothing to remap.
		s.commit(ctx, collection, a, OutcomeCommitted, "", trace)
		return "", true
	}

	if c := s.caches[collection]; c != nil && c.HasServerEntity(serverID) {
		// The assigned ID already belongs to a committed entity. Remapping
		// would clobber it; integrity error, discard with audit.
		s.discard(ctx, collection, a,
			fmt.Sprintf("remap target %s already committed", serverID), trace)
		s.stalled.stall(collection, groupID, "conflicting remap, create discarded")
		return "", false
	}

	// Remap before replaying the group's next action: durable log first
	// (cross-collection payload references included), then the caches.
	if err := s.log.RemapEntityID(ctx, a.EntityID, serverID); err != nil {
		s.recordFailure(collection, groupID, a, err, trace)
		return "", false
	}
	for _, c := range s.caches {
		if err := c.Remap(a.EntityID, serverID); err != nil {
			slog.Error("cache remap failed", "old", a.EntityID, "new", serverID, "error", err)
		}
	}

	committed := a
	committed.EntityID = serverID
	s.commit(ctx, collection, committed, OutcomeCommitted, serverID, trace)
	return serverID, true
}

// replayBatch commits independent single-action groups atomically. On
// failure no action is marked committed: ListPending still returns the
// whole batch afterwards.
func (s *Synchronizer) replayBatch(ctx context.Context, collection domain.Collection, batch []domain.PendingAction, trace *Trace) {
	for len(batch) > 0 {
		n := len(batch)
		if n > s.batchSize {
			n = s.batchSize
		}
		chunk := batch[:n]
		batch = batch[n:]

		if len(chunk) == 1 {
			// A batch of one gains nothing from batch semantics.
			g := group{entityID: chunk[0].EntityID, actions: []domain.PendingAction{chunk[0]}}
			s.replayGroup(ctx, collection, g, trace)
			continue
		}

		if err := s.store.WriteBatch(ctx, chunk); err != nil {
			for _, a := range chunk {
				s.recordFailure(collection, a.EntityID, a, err, trace)
			}
			continue
		}

		ids := make([]string, len(chunk))
		for i, a := range chunk {
			ids[i] = a.ID
		}
		if err := s.log.MarkCommittedBatch(ctx, ids); err != nil {
			slog.Error("batch prune failed, retried drain will re-commit", "error", err)
			continue
		}

		for _, a := range chunk {
			s.stalled.clear(collection, a.EntityID)
			if c := s.caches[collection]; c != nil {
				if err := c.CommitPending(a.EntityID, a.ID); err != nil {
					slog.Error("cache commit failed", "action_id", a.ID, "error", err)
				}
			}
			trace.Committed++
			trace.Events = append(trace.Events, TraceEvent{
				Seq:        s.clock.Next(),
				Collection: string(collection),
				EntityID:   a.EntityID,
				ActionID:   a.ID,
				Kind:       string(a.Kind),
				Outcome:    OutcomeBatched,
			})
		}
	}
}

// commit records remote acknowledgment for one action: prune the log row,
// lift the cache shadow, append a trace event.
func (s *Synchronizer) commit(ctx context.Context, collection domain.Collection, a domain.PendingAction, outcome Outcome, remappedTo string, trace *Trace) {
	if err := s.log.MarkCommitted(ctx, a.ID); err != nil {
		slog.Error("prune failed, retried drain will re-commit", "action_id", a.ID, "error", err)
	}
	if c := s.caches[collection]; c != nil {
		if err := c.CommitPending(a.EntityID, a.ID); err != nil {
			slog.Error("cache commit failed", "action_id", a.ID, "error", err)
		}
	}
	trace.Committed++
	trace.Events = append(trace.Events, TraceEvent{
		Seq:        s.clock.Next(),
		Collection: string(collection),
		EntityID:   a.EntityID,
		ActionID:   a.ID,
		Kind:       string(a.Kind),
		Outcome:    outcome,
		RemappedTo: remappedTo,
	})
}

// discard removes a corrupt or conflicting action with an audit record.
func (s *Synchronizer) discard(ctx context.Context, collection domain.Collection, a domain.PendingAction, reason string, trace *Trace) {
	slog.Error("discarding action",
		"action_id", a.ID,
		"collection", collection,
		"entity_id", a.EntityID,
		"reason", reason)
	if err := s.log.Discard(ctx, a, reason); err != nil {
		slog.Error("audit discard failed", "action_id", a.ID, "error", err)
	}
	trace.Events = append(trace.Events, TraceEvent{
		Seq:        s.clock.Next(),
		Collection: string(collection),
		EntityID:   a.EntityID,
		ActionID:   a.ID,
		Kind:       string(a.Kind),
		Outcome:    OutcomeDiscarded,
		Error:      reason,
	})
}

// recordFailure stalls a group on a replay error. Retryable failures wait
// for the next drain trigger; non-retryable failures are surfaced loudly
// but the action is never silently dropped.
func (s *Synchronizer) recordFailure(collection domain.Collection, groupID string, a domain.PendingAction, err error, trace *Trace) {
	outcome := OutcomeStalled
	if !retryable(err) {
		outcome = OutcomeFailed
		slog.Error("action replay failed",
			"action_id", a.ID,
			"collection", collection,
			"entity_id", a.EntityID,
			"error", err)
	} else {
		slog.Warn("group stalled",
			"collection", collection,
			"entity_id", groupID,
			"error", err)
	}

	s.stalled.stall(collection, groupID, err.Error())
	trace.Events = append(trace.Events, TraceEvent{
		Seq:        s.clock.Next(),
		Collection: string(collection),
		EntityID:   a.EntityID,
		ActionID:   a.ID,
		Kind:       string(a.Kind),
		Outcome:    outcome,
		Error:      err.Error(),
	})
}

// retryable classifies a replay error. Unknown transport errors are
// treated as RemoteUnavailable: stall and retry rather than discard.
func retryable(err error) bool {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Code == domain.ErrCodeRemoteUnavailable
	}
	return true
}
