package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tableside/syncengine/internal/domain"
)

// Violation is one integrity finding.
type Violation struct {
	Rule     string `json:"rule"`
	ActionID string `json:"action_id,omitempty"`
	EntityID string `json:"entity_id,omitempty"`
	Detail   string `json:"detail"`
}

// NewVerifyCommand checks queue integrity: causal order within entity
// groups, creates preceding dependent actions, and temp references that
// can still be resolved by a pending Create.
func NewVerifyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check queue integrity",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := openLog(opts)
			if err != nil {
				return err
			}
			defer log.Close()

			collections, err := selectCollections(cmd, log, "")
			if err != nil {
				return err
			}

			var violations []Violation
			creates := make(map[string]bool) // temp IDs with a pending Create, any collection

			var all []domain.PendingAction
			for _, c := range collections {
				actions, err := log.ListPending(cmd.Context(), c)
				if err != nil {
					return err
				}
				all = append(all, actions...)
				for _, a := range actions {
					if a.Kind == domain.ActionCreate && domain.IsTempID(a.EntityID) {
						creates[a.EntityID] = true
					}
				}
			}

			violations = append(violations, checkGroups(all)...)
			violations = append(violations, checkTempRefs(all, creates)...)

			if opts.Format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(violations); err != nil {
					return err
				}
			} else {
				for _, v := range violations {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (action=%s entity=%s)\n",
						v.Rule, v.Detail, v.ActionID, v.EntityID)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d violation(s)\n", len(violations))
			}

			if len(violations) > 0 {
				return fmt.Errorf("queue integrity check failed: %d violation(s)", len(violations))
			}
			return nil
		},
	}
}

// checkGroups validates per-entity causal structure: timestamps
// non-decreasing and any Create strictly first in its group.
func checkGroups(all []domain.PendingAction) []Violation {
	var violations []Violation
	seen := make(map[string][]domain.PendingAction)
	for _, a := range all {
		key := string(a.Collection) + "/" + a.EntityID
		group := seen[key]

		if len(group) > 0 {
			prev := group[len(group)-1]
			if a.CreatedAt.Before(prev.CreatedAt) {
				violations = append(violations, Violation{
					Rule:     "causal-order",
					ActionID: a.ID,
					EntityID: a.EntityID,
					Detail:   fmt.Sprintf("created_at %s precedes predecessor %s", a.CreatedAt.Format("15:04:05.000"), prev.ID),
				})
			}
			if a.Kind == domain.ActionCreate {
				violations = append(violations, Violation{
					Rule:     "create-first",
					ActionID: a.ID,
					EntityID: a.EntityID,
					Detail:   "Create is not the entity's first pending action",
				})
			}
		}
		seen[key] = append(group, a)
	}

	// A temp entity with pending actions but no pending Create can never
	// drain: its Create was lost or committed without a remap.
	for key, group := range seen {
		first := group[0]
		if domain.IsTempID(first.EntityID) && first.Kind != domain.ActionCreate {
			violations = append(violations, Violation{
				Rule:     "orphaned-temp-entity",
				ActionID: first.ID,
				EntityID: first.EntityID,
				Detail:   fmt.Sprintf("group %s has no pending Create for its temp ID", key),
			})
		}
	}
	return violations
}

// checkTempRefs validates that every temp ID referenced inside a payload
// has a pending Create somewhere in the queue.
func checkTempRefs(all []domain.PendingAction, creates map[string]bool) []Violation {
	var violations []Violation
	for _, a := range all {
		for _, ref := range domain.TempRefs(a.Payload) {
			if !creates[ref] {
				violations = append(violations, Violation{
					Rule:     "orphaned-temp-ref",
					ActionID: a.ID,
					EntityID: a.EntityID,
					Detail:   fmt.Sprintf("payload references %s but no pending Create owns it", ref),
				})
			}
		}
	}
	return violations
}
