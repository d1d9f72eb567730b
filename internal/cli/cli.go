// Package cli implements the dagplanner command-line interface.
//
// Commands operate on a session: an in-memory layer store populated by the
// sync engine from the remote record store or the local cache. Commands
// that change the session write it back to the local cache.
//
// # Commands
//
//   - sync: populate a session and report where its data came from
//   - load, clear, export, stats: edit and inspect the cached session
//   - render: draw one layer as SVG or DOT
//   - push: save a layer as a record on the remote store
//   - serve, mcp: run the record server and the MCP tool server
//   - watch: live per-layer counts driven by push updates
//   - cache, projects: manage the local cache and the project registry
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger is
// carried in the command context.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/dagplanner/pkg/buildinfo"
	"github.com/matzehuels/dagplanner/pkg/config"
)

const appName = "dagplanner"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Persistent flags.
	verbose    bool
	configPath string
	project    string
	remoteURL  string
	offline    bool

	// cfg is loaded before any command runs.
	cfg *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "dagplanner keeps four layered planning DAGs in sync",
		Long: `dagplanner maintains the function, logic, code and order DAGs of a
project. Layers are written as Mermaid flowcharts, stored as records on a
record server, cached locally and pushed live to every open session.`,
		Version:           buildinfo.Resolved(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.prepare,
	}
	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	flags.StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/dagplanner/config.toml)")
	flags.StringVarP(&c.project, "project", "p", "", "registered project name or project directory")
	flags.StringVar(&c.remoteURL, "remote", "", "record server URL (overrides config)")
	flags.BoolVar(&c.offline, "offline", false, "never contact the record server")

	root.AddCommand(c.syncCommand())
	root.AddCommand(c.loadCommand())
	root.AddCommand(c.clearCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.statsCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.pushCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.mcpCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.projectsCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// prepare runs before every command: it applies --verbose, loads the
// configuration and resolves --project.
func (c *CLI) prepare(cmd *cobra.Command, _ []string) error {
	if c.verbose {
		c.SetLogLevel(LogDebug)
	}
	cmd.SetContext(withLogger(cmd.Context(), c.Logger))

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.remoteURL != "" {
		cfg.Remote.URL = c.remoteURL
	}
	if c.offline {
		cfg.Remote.URL = ""
	}
	if c.project != "" {
		reg, err := c.registry()
		if err != nil {
			return err
		}
		root, err := reg.Resolve(c.project)
		if err != nil {
			return err
		}
		cfg.Project.Root = root
	} else if cfg.Project.Root == "" {
		if reg, err := c.registry(); err == nil {
			if p, err := reg.Get(""); err == nil {
				cfg.Project.Root = p.Path
			}
		}
	}
	if cfg.Server.Debug && !c.verbose {
		c.SetLogLevel(LogDebug)
	}
	if cfg.Source != "" {
		c.Logger.Debug("loaded config", "path", cfg.Source)
	}
	c.cfg = cfg
	return nil
}
