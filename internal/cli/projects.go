package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/dagplanner/pkg/projects"
)

// registryPath overrides projects.DefaultPath in tests.
var registryPath = ""

func (c *CLI) registry() (*projects.Registry, error) {
	path := registryPath
	if path == "" {
		p, err := projects.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return projects.Open(path), nil
}

func (c *CLI) projectsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "Manage named project directories",
		Long: `Projects maps short names to project directories. A name can be passed
to --project anywhere a directory is accepted; the most recently used
project is the default when neither --project nor project.root is set.`,
	}
	cmd.AddCommand(c.projectsAddCommand())
	cmd.AddCommand(c.projectsListCommand())
	cmd.AddCommand(c.projectsRemoveCommand())
	return cmd
}

func (c *CLI) projectsAddCommand() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "add <name> <path>",
		Short: "Register a project directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := c.registry()
			if err != nil {
				return err
			}
			p, err := reg.Add(args[0], args[1], description)
			if err != nil {
				return err
			}
			printSuccess("Registered project %s", p.Name)
			printFile(p.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "short project description")
	return cmd
}

func (c *CLI) projectsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered projects",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := c.registry()
			if err != nil {
				return err
			}
			list, err := reg.List()
			if err != nil {
				return err
			}
			if len(list) == 0 {
				printInfo("No projects registered")
				printDetail("Add one with: %s projects add <name> <path>", appName)
				return nil
			}
			active, err := reg.Active()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), projectTable(list, active))
			return nil
		},
	}
}

func (c *CLI) projectsRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Forget a registered project",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := c.registry()
			if err != nil {
				return err
			}
			if err := reg.Remove(args[0]); err != nil {
				return err
			}
			printSuccess("Removed project %s", args[0])
			return nil
		},
	}
}

func projectTable(list []projects.Project, active string) string {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true).Padding(0, 1)
	rows := make([][]string, len(list))
	for i, p := range list {
		mark := ""
		if p.Name == active {
			mark = "●"
		}
		rows[i] = []string{mark, p.Name, p.Path, strconv.Itoa(p.AccessCount), p.Description}
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Name", "Path", "Uses", "Description").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == -1 {
				return headerStyle
			}
			if row >= 0 && row < len(list) && list[row].Name == active {
				return base.Foreground(colorCyan).Bold(true)
			}
			if col == 2 || col == 4 {
				return base.Foreground(colorDim)
			}
			return base
		}).
		Render()
}
