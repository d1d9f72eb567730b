package cli

import (
	"github.com/spf13/cobra"

	errs "github.com/matzehuels/dagplanner/pkg/errors"
	"github.com/matzehuels/dagplanner/pkg/remote"
)

func (c *CLI) pushCommand() *cobra.Command {
	var description, requirements string

	cmd := &cobra.Command{
		Use:   "push <layer> <file>",
		Short: "Save a Mermaid layer as a record on the record server",
		Long: `Push stores the Mermaid text in file as a new record of layer on the
record server, which broadcasts it to every watching session. Submitting
the same text again overwrites the record and keeps a backup.`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: layerNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			layer, err := parseLayerArg(args[0])
			if err != nil {
				return err
			}
			data, err := readInput(cmd, args[1])
			if err != nil {
				return err
			}

			client, err := newRemote(c.cfg, loggerFromContext(ctx))
			if err != nil {
				return err
			}
			if client == nil {
				return errs.New(errs.ErrCodeInvalidConfig, "no record server configured (set remote.url or --remote)")
			}

			spinner := newSpinnerWithContext(ctx, "Saving "+string(layer)+" layer...")
			spinner.Start()
			res, err := client.SaveRecord(ctx, remote.SaveRequest{
				LayerType:          string(layer),
				MermaidDag:         string(data),
				ProjectDescription: description,
				Requirements:       requirements,
			})
			if err != nil {
				spinner.StopWithError("Could not save %s layer", layer)
				return err
			}

			spinner.StopWithSuccess("Saved %s layer as %s", layer, res.ID)
			printDetail("%s", describeCounts(res.NodeCount, res.EdgeCount))
			printFile(res.FileName)
			if res.BackupCreated {
				printDetail("previous version kept as backup")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "project description stored with the record")
	cmd.Flags().StringVar(&requirements, "requirements", "", "requirements text stored with the record")
	return cmd
}
