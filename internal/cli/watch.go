package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/dagplanner/pkg/dag"
	errs "github.com/matzehuels/dagplanner/pkg/errors"
	"github.com/matzehuels/dagplanner/pkg/notify"
	"github.com/matzehuels/dagplanner/pkg/push"
	"github.com/matzehuels/dagplanner/pkg/reconcile"
	"github.com/matzehuels/dagplanner/pkg/stats"
)

// =============================================================================
// Messages
// =============================================================================

// layerMsg reports a committed layer together with the counts after it.
type layerMsg struct {
	Layer   dag.Layer
	Nodes   int
	Edges   int
	Summary stats.Summary
	At      time.Time
}

type syncMsg struct {
	Result reconcile.Result
}

// =============================================================================
// watchModel - live per-layer counts
// =============================================================================

type watchModel struct {
	events  string
	summary stats.Summary
	source  reconcile.Source
	synced  bool
	updates int
	last    *layerMsg
}

func newWatchModel(events string, initial stats.Summary) watchModel {
	return watchModel{events: events, summary: initial}
}

func (m watchModel) Init() tea.Cmd {
	return nil
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case syncMsg:
		m.synced = true
		m.source = msg.Result.Source
	case layerMsg:
		m.updates++
		m.summary = msg.Summary
		m.last = &msg
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("dagplanner watch"))
	b.WriteString("  ")
	b.WriteString(StyleDim.Render(m.events))
	b.WriteString("\n\n")

	b.WriteString(layerTable(m.summary))
	b.WriteString("\n")

	status := StyleDim.Render("syncing...")
	if m.synced {
		status = "synced from " + renderSource(string(m.source))
	}
	b.WriteString(status)
	b.WriteString(StyleDim.Render(fmt.Sprintf(" · %d updates", m.updates)))
	b.WriteString("\n")
	if m.last != nil {
		b.WriteString(StyleDim.Render(fmt.Sprintf("last: %s layer, %s at %s",
			m.last.Layer, describeCounts(m.last.Nodes, m.last.Edges), m.last.At.Format("15:04:05"))))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("q quit"))
	b.WriteString("\n")
	return b.String()
}

// =============================================================================
// Command
// =============================================================================

func (c *CLI) watchCommand() *cobra.Command {
	var (
		plain   bool
		persist bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow live layer updates from the record server",
		Long: `Watch syncs a session, then applies every layer the record server
pushes over /api/events and shows the node and edge counts as they change.
With --plain each update is logged instead of drawn.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			logger := loggerFromContext(ctx)

			if c.cfg.Remote.URL == "" {
				return errs.New(errs.ErrCodeInvalidConfig, "watch needs a record server (set remote.url or --remote)")
			}
			events := strings.TrimRight(c.cfg.Remote.URL, "/") + "/api/events"

			sess, err := c.openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			var notifyUI func(tea.Msg)
			if plain {
				notifyUI = func(msg tea.Msg) {
					switch msg := msg.(type) {
					case syncMsg:
						logger.Info("synced", "source", msg.Result.Source, "layers", len(msg.Result.Loaded))
					case layerMsg:
						logger.Info("layer updated", "layer", msg.Layer, "nodes", msg.Nodes, "edges", msg.Edges)
					}
				}
			}

			var prog *tea.Program
			if !plain {
				prog = tea.NewProgram(newWatchModel(events, stats.Summarize(sess.store)), tea.WithContext(ctx))
				notifyUI = prog.Send
			}

			unsubscribe := sess.store.Notifier().SubscribeFunc(func(e notify.Event) {
				lc, ok := e.(notify.LayerChanged)
				if !ok {
					return
				}
				notifyUI(layerMsg{
					Layer:   lc.Layer,
					Nodes:   lc.NodeCount,
					Edges:   lc.EdgeCount,
					Summary: stats.Summarize(sess.store),
					At:      time.Now(),
				})
			})
			defer unsubscribe()

			updates := make(chan push.Update, 16)
			sub := &push.Subscriber{URL: events, Logger: logger}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return sub.Run(gctx, updates) })
			g.Go(func() error { return sess.engine.Run(gctx, updates) })
			g.Go(func() error {
				res := sess.seed(gctx)
				notifyUI(syncMsg{Result: res})
				return nil
			})
			// a subscriber that gives up ends the watch
			go func() {
				<-gctx.Done()
				cancel()
			}()

			if prog != nil {
				if _, err := prog.Run(); err != nil && !isCancel(err) {
					cancel()
					return err
				}
				cancel()
			} else {
				<-ctx.Done()
			}
			if err := g.Wait(); err != nil && !isCancel(err) {
				return err
			}

			if persist {
				if err := sess.engine.PersistToLocalCache(context.WithoutCancel(ctx)); err != nil {
					logger.Warn("could not persist session", "err", err)
				}
			}
			return cmd.Context().Err()
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "log updates instead of drawing a live table")
	cmd.Flags().BoolVar(&persist, "persist", false, "write the session to the local cache on exit")
	return cmd
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, tea.ErrProgramKilled)
}
