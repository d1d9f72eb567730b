package cli

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	errs "github.com/matzehuels/dagplanner/pkg/errors"
	"github.com/matzehuels/dagplanner/pkg/render/nodelink"
)

func (c *CLI) renderCommand() *cobra.Command {
	var (
		output   string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "render <layer>",
		Short: "Render one layer as an SVG or DOT node-link diagram",
		Long: `Render draws one layer of the session with Graphviz. The output format
follows the file extension of -o: .svg (default) or .dot. Edges that close a
cycle are drawn dashed.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: layerNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			layer, err := parseLayerArg(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = string(layer) + ".svg"
			}
			ext := strings.ToLower(filepath.Ext(output))
			if ext != ".svg" && ext != ".dot" {
				return errs.New(errs.ErrCodeInvalidFormat, "unsupported output %q (want .svg or .dot)", output)
			}

			sess, err := c.openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			spinner := newSpinnerWithContext(ctx, "Loading session...")
			spinner.Start()
			sess.seed(ctx)
			snap, err := sess.store.GetLayer(layer)
			if err != nil {
				spinner.Stop()
				return err
			}

			dot := nodelink.ToDOT(snap, nodelink.Options{Detailed: detailed})
			data := []byte(dot)
			if ext == ".svg" {
				spinner.SetMessage("Rendering SVG...")
				if data, err = nodelink.RenderSVG(ctx, dot); err != nil {
					spinner.StopWithError("Could not render %s layer", layer)
					return err
				}
			}
			spinner.Stop()
			if !snap.Populated {
				printWarning("%s layer is empty", layer)
			}
			if err := writeFile(output, data); err != nil {
				return err
			}
			printSuccess("Rendered %s layer", layer)
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, .svg or .dot (default <layer>.svg)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "show node IDs and a title")
	return cmd
}
