package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/dagplanner/pkg/dag"
	"github.com/matzehuels/dagplanner/pkg/reconcile"
	"github.com/matzehuels/dagplanner/pkg/stats"
)

// syncReport is the --json output of sync.
type syncReport struct {
	Source    reconcile.Source `json:"source"`
	Loaded    []dag.Layer      `json:"loaded"`
	Discarded []dag.Layer      `json:"discarded,omitempty"`
	Summary   stats.Summary    `json:"summary"`
	Persisted bool             `json:"persisted"`
}

func (c *CLI) syncCommand() *cobra.Command {
	var persist, asJSON bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Populate a session from the record server or the local cache",
		Long: `Sync queries the record server for the newest record of every layer.
When the server is unreachable or has no records it falls back to the local
cache. With --persist the result is written back to the local cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			sess, err := c.openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			prog := newProgress(logger)
			spinner := newSpinnerWithContext(ctx, "Syncing layers...")
			if !asJSON {
				spinner.Start()
			}
			res := sess.seed(ctx)
			spinner.Stop()
			if err := ctx.Err(); err != nil {
				return err
			}

			persisted := false
			if persist && !res.Empty() {
				if err := sess.engine.PersistToLocalCache(ctx); err != nil {
					logger.Warn("could not persist session", "err", err)
				} else {
					persisted = true
				}
			}

			sum := stats.Summarize(sess.store)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(syncReport{
					Source:    res.Source,
					Loaded:    res.Loaded,
					Discarded: res.Discarded,
					Summary:   sum,
					Persisted: persisted,
				})
			}

			if res.Empty() {
				printWarning("No layer data found")
				printDetail("Load a layer with: %s load <layer> <file>", appName)
				return nil
			}
			prog.done("synced", "source", res.Source, "layers", len(res.Loaded))
			printSuccess("Synced from %s", renderSource(string(res.Source)))
			printLayerTable(cmd.OutOrStdout(), sum)
			if len(res.Discarded) > 0 {
				printDetail("superseded during sync: %s", joinLayers(res.Discarded))
			}
			if persisted {
				printDetail("written to local cache")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&persist, "persist", false, "write the synced session to the local cache")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func joinLayers(ls []dag.Layer) string {
	parts := make([]string, len(ls))
	for i, l := range ls {
		parts[i] = string(l)
	}
	return strings.Join(parts, ", ")
}

// describeCounts formats "N nodes · M edges" for one layer.
func describeCounts(nodes, edges int) string {
	return fmt.Sprintf("%d nodes · %d edges", nodes, edges)
}
