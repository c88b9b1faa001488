package actionlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tableside/syncengine/internal/domain"
)

// ListPending returns all uncommitted actions for a collection in causal
// order: created_at ascending, action ID as tie-break. The synchronizer
// groups the result by entity and must never reorder within a group.
//
// Returns an empty slice (not nil) when the collection has no pending work.
func (l *Log) ListPending(ctx context.Context, collection domain.Collection) ([]domain.PendingAction, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, collection, entity_id, kind, payload, actor_id, created_at
		FROM pending_actions
		WHERE collection = ?
		ORDER BY created_at ASC, id ASC
	`, string(collection))
	if err != nil {
		return nil, fmt.Errorf("list pending %s: %w", collection, err)
	}
	defer rows.Close()

	return scanActions(rows)
}

// PendingForEntity returns the uncommitted actions for a single entity in
// causal order.
func (l *Log) PendingForEntity(ctx context.Context, collection domain.Collection, entityID string) ([]domain.PendingAction, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, collection, entity_id, kind, payload, actor_id, created_at
		FROM pending_actions
		WHERE collection = ? AND entity_id = ?
		ORDER BY created_at ASC, id ASC
	`, string(collection), entityID)
	if err != nil {
		return nil, fmt.Errorf("pending for entity %s/%s: %w", collection, entityID, err)
	}
	defer rows.Close()

	return scanActions(rows)
}

// CountPending returns the number of uncommitted actions per collection.
func (l *Log) CountPending(ctx context.Context) (map[domain.Collection]int, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT collection, COUNT(*)
		FROM pending_actions
		GROUP BY collection
	`)
	if err != nil {
		return nil, fmt.Errorf("count pending: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Collection]int)
	for rows.Next() {
		var collection string
		var n int
		if err := rows.Scan(&collection, &n); err != nil {
			return nil, fmt.Errorf("count pending: scan: %w", err)
		}
		counts[domain.Collection(collection)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count pending: iterate: %w", err)
	}
	return counts, nil
}

// scanActions decodes a pending_actions result set.
func scanActions(rows *sql.Rows) ([]domain.PendingAction, error) {
	var actions []domain.PendingAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}

	// Return empty slice instead of nil
	if actions == nil {
		actions = []domain.PendingAction{}
	}
	return actions, nil
}

// scanAction decodes one pending_actions row, including its payload.
func scanAction(rows *sql.Rows) (domain.PendingAction, error) {
	var (
		a          domain.PendingAction
		collection string
		kind       string
		payload    string
		createdAt  string
	)
	if err := rows.Scan(&a.ID, &collection, &a.EntityID, &kind, &payload, &a.ActorID, &createdAt); err != nil {
		return domain.PendingAction{}, fmt.Errorf("scan action: %w", err)
	}

	a.Collection = domain.Collection(collection)
	a.Kind = domain.ActionKind(kind)

	p, err := domain.DecodePayload([]byte(payload))
	if err != nil {
		return domain.PendingAction{}, fmt.Errorf("scan action %s: %w", a.ID, err)
	}
	a.Payload = p

	// RFC3339Nano accepts any fraction width, including the fixed
	// nine-digit form timeFormat writes.
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return domain.PendingAction{}, fmt.Errorf("scan action %s: created_at: %w", a.ID, err)
	}
	a.CreatedAt = t

	return a, nil
}
