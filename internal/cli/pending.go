package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tableside/syncengine/internal/actionlog"
	"github.com/tableside/syncengine/internal/domain"
)

// NewPendingCommand lists queued actions in causal order.
func NewPendingCommand(opts *RootOptions) *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List queued actions in causal order",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := openLog(opts)
			if err != nil {
				return err
			}
			defer log.Close()

			ctx := cmd.Context()
			collections, err := selectCollections(cmd, log, collection)
			if err != nil {
				return err
			}

			var all []domain.PendingAction
			for _, c := range collections {
				actions, err := log.ListPending(ctx, c)
				if err != nil {
					return err
				}
				all = append(all, actions...)
			}

			if opts.Format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(all)
			}

			if len(all) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "queue empty: nothing pending")
				return nil
			}
			for _, a := range all {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s  %-12s  %-36s  %s  actor=%s\n",
					a.CreatedAt.Format("2006-01-02 15:04:05.000"),
					a.Kind,
					a.Collection,
					a.EntityID,
					a.Payload.Tag(),
					a.ActorID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "limit to one collection")
	return cmd
}

// selectCollections resolves the --collection flag against the log's
// contents. Without the flag, every collection with pending work is
// included, in name order.
func selectCollections(cmd *cobra.Command, log *actionlog.Log, flag string) ([]domain.Collection, error) {
	if flag != "" {
		return []domain.Collection{domain.Collection(flag)}, nil
	}

	counts, err := log.CountPending(cmd.Context())
	if err != nil {
		return nil, err
	}
	var out []domain.Collection
	for c := range counts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
