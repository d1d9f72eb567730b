package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/dagplanner/pkg/cache"
	errs "github.com/matzehuels/dagplanner/pkg/errors"
)

func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local layer cache",
	}
	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())
	return cmd
}

func (c *CLI) cacheClearCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the cached session",
		Long: `Clear removes the cached layer blob of the current project. With --all
every entry of the file cache is removed, for all projects.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if all {
				if c.cfg.Cache.Backend != "file" {
					return errs.New(errs.ErrCodeInvalidConfig, "--all only applies to the file cache (backend is %s)", c.cfg.Cache.Backend)
				}
				fc, err := cache.NewFileCache(c.cfg.Cache.Dir)
				if err != nil {
					return err
				}
				if err := fc.Clear(); err != nil {
					return err
				}
				printSuccess("Cleared local cache")
				printDetail("Directory: %s", fc.Dir())
				return nil
			}

			sess, err := c.openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()
			if err := sess.engine.ClearLocalCache(ctx); err != nil {
				return err
			}
			printSuccess("Cleared cached session")
			if c.cfg.Project.Root != "" {
				printDetail("Project: %s", c.cfg.Project.Root)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "remove every cached entry")
	return cmd
}

func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), c.cfg.Cache.Dir)
			return nil
		},
	}
}
