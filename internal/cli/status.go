package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tableside/syncengine/internal/domain"
)

// NewStatusCommand reports per-collection pending counts and the audit
// backlog.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pending action counts per collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := openLog(opts)
			if err != nil {
				return err
			}
			defer log.Close()

			ctx := cmd.Context()
			counts, err := log.CountPending(ctx)
			if err != nil {
				return err
			}

			var audits int
			if err := log.DB().QueryRowContext(ctx,
				`SELECT COUNT(*) FROM audit_records`).Scan(&audits); err != nil {
				return fmt.Errorf("count audit records: %w", err)
			}

			if opts.Format == "json" {
				out := map[string]any{
					"pending":       counts,
					"audit_records": audits,
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			if len(counts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "queue empty: nothing pending")
			} else {
				collections := make([]string, 0, len(counts))
				for c := range counts {
					collections = append(collections, string(c))
				}
				sort.Strings(collections)
				for _, c := range collections {
					fmt.Fprintf(cmd.OutOrStdout(), "%-12s %d pending\n", c, counts[domain.Collection(c)])
				}
			}
			if audits > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "audit records: %d (discarded actions, inspect manually)\n", audits)
			}
			return nil
		},
	}
}
