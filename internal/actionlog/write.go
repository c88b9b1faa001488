package actionlog

import (
	"context"
	"fmt"
	"time"

	"github.com/tableside/syncengine/internal/domain"
)

// timeFormat is the persisted timestamp layout: RFC 3339 UTC with a
// fixed nine-digit fraction. The fixed width is what makes the TEXT
// column sort chronologically; RFC3339Nano trims trailing zeros, so
// "…00.01Z" would sort after "…00.015Z" and a whole-second stamp after
// every fractional one.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Append persists a pending action.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - re-appending the same
// action ID is silently ignored.
//
// Fails only if storage is unavailable; the caller keeps its in-memory
// optimistic patch and tags the action at-risk for the session.
func (l *Log) Append(ctx context.Context, a domain.PendingAction) error {
	payload, err := domain.EncodePayload(a.Payload)
	if err != nil {
		return fmt.Errorf("append action: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO pending_actions
		(id, collection, entity_id, kind, payload, actor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		a.ID,
		string(a.Collection),
		a.EntityID,
		string(a.Kind),
		string(payload),
		a.ActorID,
		a.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return domain.NewStorageUnavailable(fmt.Errorf("append action: %w", err))
	}

	return nil
}

// MarkCommitted records remote acknowledgment of an action by pruning its
// row. There is no history to replay, so committed rows are removed
// immediately rather than retained.
//
// Idempotent: removing an already-absent ID is a no-op, not an error
// (supports retried drains).
func (l *Log) MarkCommitted(ctx context.Context, actionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.db.ExecContext(ctx, `
		DELETE FROM pending_actions WHERE id = ?
	`, actionID); err != nil {
		return fmt.Errorf("mark committed %s: %w", actionID, err)
	}
	return nil
}

// MarkCommittedBatch prunes a set of actions in a single transaction:
// either every ID is removed or none are. The synchronizer uses this
// after an atomic remote batch so a crash mid-prune cannot leave the
// batch half committed.
func (l *Log) MarkCommittedBatch(ctx context.Context, actionIDs []string) error {
	if len(actionIDs) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mark committed batch: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, id := range actionIDs {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM pending_actions WHERE id = ?
		`, id); err != nil {
			return fmt.Errorf("mark committed batch: delete %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mark committed batch: commit: %w", err)
	}
	return nil
}

// RemapEntityID rewrites oldID to newID in every pending action: rows
// whose entity_id is oldID, and rows in any collection whose payload
// references oldID. Runs as one transaction so a drain never observes a
// half-remapped log.
func (l *Log) RemapEntityID(ctx context.Context, oldID, newID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("remap %s: begin tx: %w", oldID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE pending_actions SET entity_id = ? WHERE entity_id = ?
	`, newID, oldID); err != nil {
		return fmt.Errorf("remap %s: update entity_id: %w", oldID, err)
	}

	// Payload references (e.g. a table action naming a temp order ID)
	// need a decode/rewrite/encode pass; a LIKE prefilter keeps the scan
	// to candidate rows.
	rows, err := tx.QueryContext(ctx, `
		SELECT id, payload FROM pending_actions WHERE payload LIKE ?
	`, "%"+oldID+"%")
	if err != nil {
		return fmt.Errorf("remap %s: scan payloads: %w", oldID, err)
	}

	type rewrite struct {
		id      string
		payload string
	}
	var rewrites []rewrite

	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			rows.Close()
			return fmt.Errorf("remap %s: scan row: %w", oldID, err)
		}

		p, err := domain.DecodePayload([]byte(raw))
		if err != nil {
			rows.Close()
			return fmt.Errorf("remap %s: decode payload of %s: %w", oldID, id, err)
		}

		// The LIKE prefilter can match oldID as a substring of an
		// unrelated ID; RemapRefs returning the same payload means
		// nothing actually referenced it.
		remapped := domain.RemapRefs(p, oldID, newID)
		if remapped == p {
			continue
		}

		encoded, err := domain.EncodePayload(remapped)
		if err != nil {
			rows.Close()
			return fmt.Errorf("remap %s: encode payload of %s: %w", oldID, id, err)
		}
		if string(encoded) != raw {
			rewrites = append(rewrites, rewrite{id: id, payload: string(encoded)})
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("remap %s: iterate payloads: %w", oldID, err)
	}
	rows.Close()

	for _, rw := range rewrites {
		if _, err := tx.ExecContext(ctx, `
			UPDATE pending_actions SET payload = ? WHERE id = ?
		`, rw.payload, rw.id); err != nil {
			return fmt.Errorf("remap %s: update payload of %s: %w", oldID, rw.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("remap %s: commit: %w", oldID, err)
	}
	return nil
}

// Discard removes an action and writes an audit record in one
// transaction. Used for fatal integrity errors (conflicting remap):
// the action must not replay, but the loss must be traceable.
func (l *Log) Discard(ctx context.Context, a domain.PendingAction, reason string) error {
	payload, err := domain.EncodePayload(a.Payload)
	if err != nil {
		// Fall back to the kind tag; the audit row must still be written.
		payload = []byte(fmt.Sprintf("{%q:%q}", "kind", a.Kind))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("discard %s: begin tx: %w", a.ID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM pending_actions WHERE id = ?
	`, a.ID); err != nil {
		return fmt.Errorf("discard %s: delete: %w", a.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO audit_records
		(action_id, collection, entity_id, reason, payload, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		a.ID,
		string(a.Collection),
		a.EntityID,
		reason,
		string(payload),
		time.Now().UTC().Format(timeFormat),
	); err != nil {
		return fmt.Errorf("discard %s: audit: %w", a.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("discard %s: commit: %w", a.ID, err)
	}
	return nil
}
