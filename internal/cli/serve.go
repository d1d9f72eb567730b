package cli

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/log"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/dagplanner/pkg/buildinfo"
	"github.com/matzehuels/dagplanner/pkg/mcptools"
	"github.com/matzehuels/dagplanner/pkg/observability"
	"github.com/matzehuels/dagplanner/pkg/push"
	"github.com/matzehuels/dagplanner/pkg/records"
	"github.com/matzehuels/dagplanner/pkg/server"
)

// recordBackend is the record store selected by records.backend.
type recordBackend struct {
	resolve server.Resolver

	// files is the default project's file store, watched for records
	// written by other processes. Nil for database backends.
	files *records.FileStore

	close func() error
}

// openRecords opens the configured record backend.
func (c *CLI) openRecords(ctx context.Context, logger *log.Logger) (*recordBackend, error) {
	cfg := c.cfg.Records
	switch cfg.Backend {
	case "sqlite":
		st, err := records.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("using sqlite records", "path", cfg.SQLitePath)
		return &recordBackend{resolve: server.Single(st, ""), close: st.Close}, nil

	case "mongo":
		st, err := records.NewMongoStore(ctx, records.MongoConfig{URI: cfg.MongoURI, Database: cfg.MongoDatabase})
		if err != nil {
			return nil, err
		}
		logger.Info("using mongo records", "database", cfg.MongoDatabase)
		return &recordBackend{resolve: server.Single(st, ""), close: st.Close}, nil
	}

	if cfg.Dir != "" {
		st, err := records.NewFileStore(cfg.Dir, logger)
		if err != nil {
			return nil, err
		}
		return &recordBackend{resolve: server.Single(st, st.Dir()), files: st, close: st.Close}, nil
	}

	root := c.cfg.Project.Root
	if root == "" {
		root = "."
	}
	resolve := server.ProjectFiles(root, logger)
	st, _, err := resolve("")
	if err != nil {
		return nil, err
	}
	fs, _ := st.(*records.FileStore)
	return &recordBackend{resolve: resolve, files: fs, close: func() error { return nil }}, nil
}

// newRecordServer builds the HTTP record server with Prometheus metrics.
func newRecordServer(backend *recordBackend, hub *push.Hub, logger *log.Logger, origins []string) *server.Server {
	prom := observability.NewPrometheus(nil)
	prom.Install()

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithMetrics(prom.Handler()),
	}
	if len(origins) > 0 {
		opts = append(opts, server.WithAllowedOrigins(origins...))
	}
	return server.New(backend.resolve, hub, opts...)
}

// watchRecords broadcasts records written to the default project's
// directory by other processes. A watcher failure is logged, not fatal.
func watchRecords(ctx context.Context, backend *recordBackend, hub *push.Hub, logger *log.Logger) error {
	if backend.files == nil {
		return nil
	}
	err := records.NewWatcher(backend.files, logger).Watch(ctx, hub.Broadcast)
	if err != nil && ctx.Err() == nil {
		logger.Warn("record watcher stopped", "dir", backend.files.Dir(), "err", err)
	}
	return nil
}

func (c *CLI) serveCommand() *cobra.Command {
	var (
		host    string
		port    int
		origins []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the record server with live push updates",
		Long: `Serve runs the HTTP record store:

  GET    /api/dag-data      newest records of every layer
  GET    /api/stats         record and node counts per layer
  POST   /api/records       save a layer
  GET    /api/records/{id}  fetch one record
  DELETE /api/records/{id}  delete one record
  GET    /api/events        push updates as Server-Sent Events
  GET    /metrics           Prometheus metrics

Every query accepts ?project_path= to select a project directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			if host != "" {
				c.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				c.cfg.Server.Port = port
			}

			backend, err := c.openRecords(ctx, logger)
			if err != nil {
				return err
			}
			defer backend.close()

			hub := push.NewHub(logger)
			srv := newRecordServer(backend, hub, logger, origins)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return watchRecords(gctx, backend, hub, logger) })
			g.Go(func() error { return srv.ListenAndServe(gctx, c.cfg.Server.Addr()) })
			if err := g.Wait(); err != nil {
				return err
			}
			return ctx.Err()
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides config and MCP_HOST)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config and MCP_WEB_PORT)")
	cmd.Flags().StringSliceVar(&origins, "cors-origin", nil, "allowed CORS origins (default any)")
	return cmd
}

func (c *CLI) mcpCommand() *cobra.Command {
	var noWeb bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP tool server on stdio",
		Long: `MCP serves the dagplanner tools over stdio:

  build_function_layer_dag  build_logic_layer_dag
  build_code_layer_dag      build_order_layer_dag
  get_dag_data              export_dag

Unless --no-web is given the HTTP record server runs alongside, so sessions
watching /api/events see every layer the tools save.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			backend, err := c.openRecords(ctx, logger)
			if err != nil {
				return err
			}
			defer backend.close()

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			hub := push.NewHub(logger)
			tools := mcptools.NewServer(buildinfo.Resolved(), backend.resolve, hub)
			stdio := mcpserver.NewStdioServer(tools)
			stdio.SetErrorLogger(logger.StandardLog(log.StandardLogOptions{ForceLevel: log.ErrorLevel}))

			g, gctx := errgroup.WithContext(ctx)
			if noWeb {
				go hub.Run(gctx)
			} else {
				srv := newRecordServer(backend, hub, logger, nil)
				g.Go(func() error {
					// The tools keep working without the web side.
					if err := srv.ListenAndServe(gctx, c.cfg.Server.Addr()); err != nil {
						logger.Warn("record server stopped", "addr", c.cfg.Server.Addr(), "err", err)
					}
					return nil
				})
				g.Go(func() error { return watchRecords(gctx, backend, hub, logger) })
			}
			g.Go(func() error {
				// stdin closing ends the whole command.
				defer cancel()
				err := stdio.Listen(gctx, os.Stdin, os.Stdout)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			return g.Wait()
		},
	}

	cmd.Flags().BoolVar(&noWeb, "no-web", false, "do not start the HTTP record server")
	return cmd
}
