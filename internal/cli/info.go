package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/npmlens/pkg/aggregate"
	"github.com/matzehuels/npmlens/pkg/integrations/npms"
)

// infoResult is the JSON shape of "info": the summary plus extras that are
// only shown on the card.
type infoResult struct {
	*aggregate.Summary
	Popularity *npms.Popularity `json:"popularity,omitempty"`
	Favorite   bool             `json:"favorite"`
}

// infoCommand creates the "info" command.
func (c *CLI) infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <package>",
		Short: "Show a merged summary of a package",
		Long: `Show registry metadata, weekly downloads and npms scores of a package.

Download counts and scores come from optional services; when one of them is
unavailable the summary is still shown without it.`,
		Example: `  npmlens info react
  npmlens info @angular/core --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := packageArg(args[0])
			if err != nil {
				return err
			}
			return c.runInfo(cmd.Context(), name)
		},
	}
}

func (c *CLI) runInfo(ctx context.Context, name string) error {
	svc := c.newServices()
	prog := newProgress(loggerFromContext(ctx))

	res, err := withSpinner(c, ctx, "Resolving "+name+"...", func() (*infoResult, error) {
		s, pop, err := svc.resolveWithPopularity(ctx, name)
		if err != nil {
			return nil, err
		}
		return &infoResult{Summary: s, Popularity: pop}, nil
	})
	if err != nil {
		return err
	}
	res.Favorite = c.isFavorite(ctx, res.Name)
	prog.done("Resolved " + res.Name)

	if c.flags.json {
		return c.printJSON(res)
	}
	c.printSummary(res)
	return nil
}

// isFavorite reports whether name is in the favorites list. Store problems
// are logged and treated as "not a favorite".
func (c *CLI) isFavorite(ctx context.Context, name string) bool {
	favs, store, err := c.openFavorites(ctx)
	if err != nil {
		c.Logger.Warn("Favorites unavailable", "err", err)
		return false
	}
	defer store.Close()

	ok, err := favs.Contains(ctx, name)
	if err != nil {
		c.Logger.Warn("Favorites unavailable", "err", err)
		return false
	}
	return ok
}

func (c *CLI) printSummary(r *infoResult) {
	title := StyleTitle.Render(r.Name) + " " + StyleDim.Render(r.Version)
	if r.Favorite {
		title += " " + styleStar.Render(iconStar)
	}
	c.printNewline()
	fmt.Fprintln(c.Out, title)
	if r.Description != "" {
		c.printDetail("%s", r.Description)
	}
	c.printNewline()

	c.printKeyValue("Published", formatAge(r.PublishedAt))
	c.printKeyValue("License", orDash(r.License))
	if r.Repository != nil {
		c.printKeyValue("Repository", StyleLink.Render(r.Repository.URL))
	}
	c.printKeyValue("Downloads", formatCount(r.WeeklyDownloads)+" / week")
	if r.Score != nil {
		c.printKeyValue("Score", fmt.Sprintf("%s  (quality %s, popularity %s, maintenance %s)",
			formatPercent(r.Score.Final),
			formatPercent(r.Score.Quality),
			formatPercent(r.Score.Popularity),
			formatPercent(r.Score.Maintenance)))
	} else {
		c.printKeyValue("Score", StyleDim.Render("unavailable"))
	}
	if p := r.Popularity; p != nil {
		c.printKeyValue("Stars", formatCount(int64(p.Stars)))
		c.printKeyValue("Open issues", formatCount(int64(p.OpenIssues)))
	}
	c.printKeyValue("Dependencies", fmt.Sprintf("%d", len(r.Dependencies)))
	c.printKeyValue("PURL", StyleDim.Render(r.PURL))

	c.printNewline()
	c.printNextStep("Dependencies", "npmlens deps "+r.Name)
	c.printNextStep("Trend", "npmlens trend "+r.Name)
}

// compareCommand creates the "compare" command.
func (c *CLI) compareCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <package> <package>...",
		Short: "Compare packages side by side",
		Long: `Resolve several packages concurrently and show their summaries side by
side, in the order given. Fails if any package cannot be resolved.`,
		Example: `  npmlens compare react vue svelte`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := make([]string, len(args))
			for i, a := range args {
				n, err := packageArg(a)
				if err != nil {
					return err
				}
				names[i] = n
			}
			return c.runCompare(cmd.Context(), names)
		},
	}
}

func (c *CLI) runCompare(ctx context.Context, names []string) error {
	svc := c.newServices()
	prog := newProgress(loggerFromContext(ctx))

	sums, err := withSpinner(c, ctx, "Resolving "+strings.Join(names, ", ")+"...", func() ([]*aggregate.Summary, error) {
		return svc.agg.Compare(ctx, names)
	})
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Compared %d packages", len(sums)))

	if c.flags.json {
		return c.printJSON(sums)
	}

	rows := make([][]string, len(sums))
	for i, s := range sums {
		score := "-"
		if s.Score != nil {
			score = formatPercent(s.Score.Final)
		}
		rows[i] = []string{
			s.Name,
			s.Version,
			formatCount(s.WeeklyDownloads),
			score,
			fmt.Sprintf("%d", len(s.Dependencies)),
			orDash(s.License),
			formatAge(s.PublishedAt),
		}
	}
	c.printTable([]string{"Package", "Version", "Weekly", "Score", "Deps", "License", "Published"}, rows)
	return nil
}
