package syncer

import "sync/atomic"

// Outcome classifies what happened to one action during a drain.
type Outcome string

const (
	// OutcomeCommitted: the remote store acknowledged the action and its
	// log row was pruned.
	OutcomeCommitted Outcome = "committed"

	// OutcomeBatched: committed as part of an atomic multi-entity batch.
	OutcomeBatched Outcome = "batched"

	// OutcomeStalled: a retryable remote failure stopped the entity's
	// group; the action stays queued for the next drain trigger.
	OutcomeStalled Outcome = "stalled"

	// OutcomeDeferred: the action references a temp ID owned by another
	// entity whose Create has not committed yet.
	OutcomeDeferred Outcome = "deferred"

	// OutcomeDiscarded: a fatal integrity error removed the action from
	// the log with an audit record.
	OutcomeDiscarded Outcome = "discarded"

	// OutcomeFailed: a non-retryable remote failure; the action stays
	// queued and the error is surfaced, never silently dropped.
	OutcomeFailed Outcome = "failed"
)

// TraceEvent is one entry in a drain trace.
type TraceEvent struct {
	Seq        int64   `json:"seq"`
	Collection string  `json:"collection"`
	EntityID   string  `json:"entity_id"`
	ActionID   string  `json:"action_id"`
	Kind       string  `json:"kind"`
	Outcome    Outcome `json:"outcome"`

	// RemappedTo is the server-assigned ID when the event committed a
	// Create under a temp ID.
	RemappedTo string `json:"remapped_to,omitempty"`

	// Error carries the failure text for stalled/failed/discarded events.
	Error string `json:"error,omitempty"`
}

// Trace is the structured record of one drain. It feeds the sync-issue
// indicator and golden tests; it is not persisted.
type Trace struct {
	Events []TraceEvent `json:"events"`

	// Stalled counts entity groups left for the next trigger.
	Stalled int `json:"stalled"`

	// Committed counts actions acknowledged and pruned.
	Committed int `json:"committed"`
}

// traceClock stamps trace events with a strictly increasing seq so event
// order survives JSON round trips regardless of wall time.
type traceClock struct {
	seq atomic.Int64
}

// Next returns the next sequence number.
func (c *traceClock) Next() int64 {
	return c.seq.Add(1)
}
