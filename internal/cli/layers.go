package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/dagplanner/pkg/dag"
	errs "github.com/matzehuels/dagplanner/pkg/errors"
	"github.com/matzehuels/dagplanner/pkg/stats"
	"github.com/matzehuels/dagplanner/pkg/store"
)

func (c *CLI) loadCommand() *cobra.Command {
	var asJSON, composite bool

	cmd := &cobra.Command{
		Use:   "load <layer> <file>",
		Short: "Load a layer from a Mermaid file into the local session",
		Long: `Load replaces one layer of the session with the graph in file and
writes the session to the local cache. Use "-" to read from stdin.

With --json the file holds a structured {"nodes": [...], "edges": [...]}
graph instead of Mermaid text. Edges whose endpoints are missing get the
endpoints synthesized.

With --composite the only argument is a document written by
"export -f mermaid"; every "%% <layer> layer" section in it replaces its
layer.`,
		Example: `  dagplanner load function plan/function.mmd
  dagplanner load code --json plan/code.json
  dagplanner load --composite session.mmd`,
		Args: func(cmd *cobra.Command, args []string) error {
			if composite {
				return cobra.ExactArgs(1)(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		ValidArgs: layerNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if composite && asJSON {
				return errs.New(errs.ErrCodeInvalidInput, "--composite and --json cannot be combined")
			}

			var (
				layer dag.Layer
				file  = args[len(args)-1]
			)
			if !composite {
				l, err := parseLayerArg(args[0])
				if err != nil {
					return err
				}
				layer = l
			}
			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}

			sess, err := c.openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()
			sess.seed(ctx)

			if composite {
				loaded, err := sess.store.LoadComposite(string(data), sourceName(file))
				if err != nil {
					return err
				}
				if err := sess.engine.PersistToLocalCache(ctx); err != nil {
					return err
				}
				printSuccess("Loaded %d layers", len(loaded))
				for _, l := range loaded {
					printDetail("%s: %s", l, describeCounts(sess.store.NodeCount(l), sess.store.EdgeCount(l)))
				}
				return nil
			}

			in, err := layerInput(data, file, asJSON)
			if err != nil {
				return err
			}
			if err := sess.store.LoadLayer(layer, in); err != nil {
				return err
			}
			if err := sess.engine.PersistToLocalCache(ctx); err != nil {
				return err
			}

			printSuccess("Loaded %s layer", layer)
			printDetail("%s", describeCounts(sess.store.NodeCount(layer), sess.store.EdgeCount(layer)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "file holds a structured {nodes, edges} graph")
	cmd.Flags().BoolVar(&composite, "composite", false, "file is a composite Mermaid export of all layers")
	return cmd
}

func (c *CLI) clearCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "clear [layer]",
		Short:     "Clear one layer, or the whole local session",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: layerNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := c.openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			if len(args) == 0 {
				if err := sess.engine.ClearLocalCache(ctx); err != nil {
					return err
				}
				printSuccess("Cleared all layers")
				return nil
			}

			layer, err := parseLayerArg(args[0])
			if err != nil {
				return err
			}
			sess.seed(ctx)
			if err := sess.store.ClearLayer(layer); err != nil {
				return err
			}
			if err := sess.engine.PersistToLocalCache(ctx); err != nil {
				return err
			}
			printSuccess("Cleared %s layer", layer)
			return nil
		},
	}
}

func (c *CLI) exportCommand() *cobra.Command {
	var format, output, layerName string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all four layers as JSON or composite Mermaid",
		Long: `Export writes every layer of the session.

  json     object keyed by layer with nodes, edges and metadata
  mermaid  one flowchart with a "%% <layer> layer" comment per layer;
           node labels and edgeless nodes are not written

With --layer only that layer is written. Its Mermaid form is a standalone
flowchart that keeps node labels and edgeless nodes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			f, err := store.ParseFormat(format)
			if err != nil {
				return err
			}

			sess, err := c.openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			if res := sess.seed(ctx); res.Empty() {
				loggerFromContext(ctx).Warn("no layer data found, exporting empty layers")
			}
			var data []byte
			if layerName != "" {
				l, err := parseLayerArg(layerName)
				if err != nil {
					return err
				}
				data, err = sess.store.ExportLayer(l, f)
				if err != nil {
					return err
				}
			} else if data, err = sess.store.ExportAll(f); err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := writeFile(output, data); err != nil {
				return err
			}
			printSuccess("Exported %s", f)
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(store.FormatJSON), "export format: json or mermaid")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&layerName, "layer", "l", "", "export only this layer")
	_ = cmd.RegisterFlagCompletionFunc("layer", cobra.FixedCompletions(layerNames(), cobra.ShellCompDirectiveNoFileComp))
	return cmd
}

func (c *CLI) statsCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show node and edge counts per layer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := c.openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			res := sess.seed(ctx)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Stats   stats.Stats   `json:"stats"`
					Summary stats.Summary `json:"summary"`
				}{sess.store.Stats(), stats.Summarize(sess.store)})
			}

			printKeyValue("source", renderSource(string(res.Source)))
			if c.cfg.Project.Root != "" {
				printKeyValue("project", c.cfg.Project.Root)
			}
			printLayerTable(cmd.OutOrStdout(), stats.Summarize(sess.store))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print counts as JSON")
	return cmd
}

// =============================================================================
// Helpers
// =============================================================================

func layerNames() []string {
	ls := dag.Layers()
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = string(l)
	}
	return out
}

// parseLayerArg maps a layer argument to a Layer with a structured error.
func parseLayerArg(s string) (dag.Layer, error) {
	l, err := dag.ParseLayer(s)
	if err != nil {
		return "", errs.Wrap(errs.ErrCodeInvalidLayer, err, "unknown layer %q (want one of %v)", s, layerNames())
	}
	return l, nil
}

// readInput reads path, or stdin for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// layerInput wraps file content as store input, attributed to its file.
func layerInput(data []byte, name string, structured bool) (store.Input, error) {
	source := sourceName(name)
	if !structured {
		return store.MermaidInput{Text: string(data), SourceName: source}, nil
	}
	var g dag.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, errs.Wrap(errs.ErrCodeUnsupportedInput, err, "decode structured graph from %s", name)
	}
	return store.StructuredInput{Graph: g, SourceName: source}, nil
}

// sourceName attributes input read by readInput.
func sourceName(path string) string {
	if path == "-" {
		return "stdin"
	}
	return "file:" + filepath.Base(path)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
