package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tableside/syncengine/internal/domain"
)

// NewExportCommand dumps the queue as canonical JSON. The output is
// byte-stable for a given queue state, so exports can be diffed across
// support escalations.
func NewExportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Dump the queue as canonical JSON",
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

			dump := make([]any, 0)
			for _, c := range collections {
				actions, err := log.ListPending(cmd.Context(), c)
				if err != nil {
					return err
				}
				for _, a := range actions {
					payload, err := domain.EncodePayload(a.Payload)
					if err != nil {
						return fmt.Errorf("encode %s: %w", a.ID, err)
					}
					dump = append(dump, map[string]any{
						"id":         a.ID,
						"collection": string(a.Collection),
						"entity_id":  a.EntityID,
						"kind":       string(a.Kind),
						"actor_id":   a.ActorID,
						"created_at": a.CreatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"),
						"payload":    decodeForDump(payload),
					})
				}
			}

			out, err := domain.MarshalCanonical(dump)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

// decodeForDump re-parses an encoded payload so the canonical marshaler
// nests it as structured JSON instead of an escaped string.
func decodeForDump(raw []byte) any {
	return jsonRaw(raw)
}

type jsonRaw []byte

// MarshalJSON emits the raw bytes unmodified.
func (r jsonRaw) MarshalJSON() ([]byte, error) { return r, nil }
