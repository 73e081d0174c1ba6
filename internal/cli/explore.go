package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/npmlens/pkg/explore"
	"github.com/matzehuels/npmlens/pkg/integrations/bundlephobia"
	"github.com/matzehuels/npmlens/pkg/integrations/npm"
	"github.com/matzehuels/npmlens/pkg/integrations/npmstats"
)

// trendBarWidth is the width in cells of the longest trend bar.
const trendBarWidth = 40

// trendCommand creates the "trend" command.
func (c *CLI) trendCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "trend <package>",
		Short:   "Show daily downloads over the last month",
		Example: `  npmlens trend lodash`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := packageArg(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			svc := c.newServices()
			days, err := withSpinner(c, ctx, "Fetching downloads of "+name+"...", func() ([]npmstats.Day, error) {
				return svc.explore.Trend(ctx, name)
			})
			if err != nil {
				return err
			}
			if c.flags.json {
				return c.printJSON(days)
			}
			c.printTrend(name, days)
			return nil
		},
	}
}

func (c *CLI) printTrend(name string, days []npmstats.Day) {
	if len(days) == 0 {
		c.printInfo("No downloads recorded for %s", name)
		return
	}
	var total, peak int64
	for _, d := range days {
		total += d.Downloads
		peak = max(peak, d.Downloads)
	}

	c.printInfo("Daily downloads of %s", StyleHighlight.Render(name))
	c.printNewline()
	for _, d := range days {
		fmt.Fprintf(c.Out, "  %s %10s %s\n",
			StyleDim.Render(d.Date.Format("Jan 02")),
			formatCount(d.Downloads),
			bar(d.Downloads, peak, trendBarWidth))
	}
	c.printNewline()
	c.printKeyValue("Total", formatCount(total))
	c.printKeyValue("Daily avg", formatCount(total/int64(len(days))))
	c.printKeyValue("Peak", formatCount(peak))
}

// sizeCommand creates the "size" command.
func (c *CLI) sizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "size <package>",
		Short:   "Show the bundle size of a package",
		Example: `  npmlens size moment`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := packageArg(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			svc := c.newServices()
			size, err := withSpinner(c, ctx, "Measuring "+name+"...", func() (*bundlephobia.Size, error) {
				return svc.explore.Size(ctx, name)
			})
			if err != nil {
				return err
			}
			if c.flags.json {
				return c.printJSON(size)
			}
			c.printInfo("Bundle size of %s", StyleHighlight.Render(size.Name+"@"+size.Version))
			c.printKeyValue("Minified", formatBytes(size.Minified))
			c.printKeyValue("Gzipped", formatBytes(size.Gzipped))
			c.printKeyValue("Dependencies", fmt.Sprintf("%d", size.Dependencies))
			return nil
		},
	}
}

// similarCommand creates the "similar" command.
func (c *CLI) similarCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "similar <package>",
		Short:   "Find packages similar to a package",
		Example: `  npmlens similar react`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := packageArg(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			svc := c.newServices()
			hits, err := withSpinner(c, ctx, "Searching...", func() ([]explore.Suggestion, error) {
				return svc.explore.Similar(ctx, name)
			})
			if err != nil {
				return err
			}
			if c.flags.json {
				return c.printJSON(hits)
			}
			if len(hits) == 0 {
				c.printInfo("No packages similar to %s", name)
				return nil
			}
			c.printSuggestions(hits)
			return nil
		},
	}
}

// suggestCommand creates the "suggest" command.
func (c *CLI) suggestCommand() *cobra.Command {
	var pickOne bool

	cmd := &cobra.Command{
		Use:   "suggest <query>",
		Short: "Complete a package name",
		Long: `Suggest package names matching a partial query. With --pick, choose one
suggestion interactively and show its summary.`,
		Example: `  npmlens suggest reac
  npmlens suggest "date fns" --pick`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			q := strings.Join(args, " ")
			svc := c.newServices()
			hits, err := withSpinner(c, ctx, "Searching...", func() ([]explore.Suggestion, error) {
				return svc.explore.Suggest(ctx, q)
			})
			if err != nil {
				return err
			}
			if c.flags.json {
				return c.printJSON(hits)
			}
			if len(hits) == 0 {
				c.printInfo("No suggestions for %q", q)
				return nil
			}
			if !pickOne {
				c.printSuggestions(hits)
				return nil
			}

			items := make([]PickItem, len(hits))
			for i, h := range hits {
				items[i] = PickItem{Name: h.Name, Score: fmt.Sprintf("%d%%", h.Score), Detail: h.Description}
			}
			name, err := pick("Suggestions for "+q, items)
			if err != nil || name == "" {
				return err
			}
			return c.runInfo(ctx, name)
		},
	}

	cmd.Flags().BoolVar(&pickOne, "pick", false, "choose a suggestion interactively")
	return cmd
}

func (c *CLI) printSuggestions(hits []explore.Suggestion) {
	rows := make([][]string, len(hits))
	for i, h := range hits {
		rows[i] = []string{h.Name, fmt.Sprintf("%d%%", h.Score), truncate(h.Description, 60)}
	}
	c.printTable([]string{"Package", "Score", "Description"}, rows)
}

// popularCommand creates the "popular" command.
func (c *CLI) popularCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "popular [package...]",
		Short: "Rank packages by last week's downloads",
		Long: `Rank packages by downloads over the last week. Without arguments the
list configured as "popular" is used, falling back to a built-in set of
frameworks. Unknown names are left out.`,
		Example: `  npmlens popular
  npmlens popular react preact solid-js`,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				names = c.cfg.Popular
			}
			for _, n := range names {
				if _, err := packageArg(n); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			svc := c.newServices()
			rows, err := withSpinner(c, ctx, "Fetching downloads...", func() ([]explore.PopularPackage, error) {
				return svc.explore.Popular(ctx, names)
			})
			if err != nil {
				return err
			}
			if c.flags.json {
				return c.printJSON(rows)
			}
			if len(rows) == 0 {
				c.printInfo("None of the packages have download data")
				return nil
			}

			var peak int64
			for _, r := range rows {
				peak = max(peak, r.Downloads)
			}
			table := make([][]string, len(rows))
			for i, r := range rows {
				table[i] = []string{r.Name, r.Version, formatCount(r.Downloads), bar(r.Downloads, peak, 20)}
			}
			c.printTable([]string{"Package", "Version", "Weekly", ""}, table)
			return nil
		},
	}
}

// versionsCommand creates the "versions" command.
func (c *CLI) versionsCommand() *cobra.Command {
	var (
		limit int
		diff  bool
	)

	cmd := &cobra.Command{
		Use:   "versions <package> [--diff <from> <to>]",
		Short: "Show recent versions or diff two of them",
		Long: `List the most recent published versions of a package, newest first.

With --diff, compare the dependencies declared by two versions instead.`,
		Example: `  npmlens versions react -n 5
  npmlens versions react --diff 17.0.2 18.2.0`,
		Args: func(cmd *cobra.Command, args []string) error {
			if diff {
				return cobra.ExactArgs(3)(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := packageArg(args[0])
			if err != nil {
				return err
			}
			if diff {
				return c.runDiff(cmd.Context(), name, args[1], args[2])
			}
			return c.runVersions(cmd.Context(), name, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", explore.DefaultVersions, "number of versions to show")
	cmd.Flags().BoolVar(&diff, "diff", false, "compare the dependencies of two versions")
	return cmd
}

func (c *CLI) runVersions(ctx context.Context, name string, limit int) error {
	svc := c.newServices()
	vs, err := withSpinner(c, ctx, "Fetching versions of "+name+"...", func() ([]npm.VersionInfo, error) {
		return svc.explore.Versions(ctx, name, limit)
	})
	if err != nil {
		return err
	}
	if c.flags.json {
		return c.printJSON(vs)
	}

	rows := make([][]string, len(vs))
	for i, v := range vs {
		note := ""
		if v.Deprecated != "" {
			note = StyleWarning.Render("deprecated")
		}
		rows[i] = []string{v.Version, formatAge(v.Published), fmt.Sprintf("%d", len(v.Dependencies)), note}
	}
	c.printTable([]string{"Version", "Published", "Deps", ""}, rows)
	if len(vs) > 1 {
		c.printNextStep("Compare dependencies", fmt.Sprintf("npmlens versions %s --diff %s %s", name, vs[1].Version, vs[0].Version))
	}
	return nil
}

func (c *CLI) runDiff(ctx context.Context, name, from, to string) error {
	svc := c.newServices()
	d, err := withSpinner(c, ctx, "Fetching versions of "+name+"...", func() (*explore.DependencyDiff, error) {
		return svc.explore.Diff(ctx, name, from, to)
	})
	if err != nil {
		return err
	}
	if c.flags.json {
		return c.printJSON(d)
	}

	c.printInfo("Dependencies of %s from %s to %s", StyleHighlight.Render(name), from, to)
	if d.Empty() {
		c.printDetail("No changes (%d unchanged)", d.Unchanged)
		return nil
	}
	for _, ch := range d.Added {
		fmt.Fprintf(c.Out, "  %s %s %s\n", StyleSuccess.Render(iconAdded), ch.Name, StyleDim.Render(ch.To))
	}
	for _, ch := range d.Removed {
		fmt.Fprintf(c.Out, "  %s %s %s\n", StyleError.Render(iconRemoved), ch.Name, StyleDim.Render(ch.From))
	}
	for _, ch := range d.Changed {
		fmt.Fprintf(c.Out, "  %s %s %s %s %s\n", StyleWarning.Render(iconChanged), ch.Name,
			StyleDim.Render(ch.From), iconArrow, ch.To)
	}
	c.printDetail("%d added, %d removed, %d changed, %d unchanged",
		len(d.Added), len(d.Removed), len(d.Changed), d.Unchanged)
	return nil
}
