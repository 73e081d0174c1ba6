package cli

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/npmlens/pkg/aggregate"
	"github.com/matzehuels/npmlens/pkg/favorites"
)

// favListLimit bounds concurrent lookups when listing favorites.
const favListLimit = 4

// favCommand creates the "fav" command group.
func (c *CLI) favCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fav",
		Short: "Manage favorite packages",
		Long: `Manage the favorites list kept in the configured store.

The store is chosen with --store or the "store" config key, e.g.
  memory:                      (discarded on exit)
  file:~/.config/npmlens/favorites.json
  sqlite:/var/lib/npmlens.db
  redis://localhost:6379/0
  mongodb://localhost:27017`,
	}

	cmd.AddCommand(c.favListCommand())
	cmd.AddCommand(c.favEditCommand("add", "Add a package to favorites", (*favorites.List).Add))
	cmd.AddCommand(c.favEditCommand("remove", "Remove a package from favorites", (*favorites.List).Remove))
	cmd.AddCommand(c.favToggleCommand())
	cmd.AddCommand(c.favPickCommand())

	return cmd
}

// withFavorites opens the store for the duration of fn.
func (c *CLI) withFavorites(ctx context.Context, fn func(*favorites.List) error) error {
	favs, store, err := c.openFavorites(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			c.Logger.Warn("Close store", "err", err)
		}
	}()
	return fn(favs)
}

// favRow is one resolved favorite. Summary is nil when the lookup failed.
type favRow struct {
	Name    string             `json:"name"`
	Summary *aggregate.Summary `json:"summary,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// favListCommand creates the "fav list" subcommand.
func (c *CLI) favListCommand() *cobra.Command {
	var namesOnly bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List favorites with their current summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withFavorites(ctx, func(favs *favorites.List) error {
				names, err := favs.All(ctx)
				if err != nil {
					return err
				}
				if len(names) == 0 {
					if c.flags.json {
						return c.printJSON([]favRow{})
					}
					c.printInfo("No favorites yet")
					c.printNextStep("Add one", "npmlens fav add <package>")
					return nil
				}
				if namesOnly {
					if c.flags.json {
						return c.printJSON(names)
					}
					for _, n := range names {
						c.printDetail("%s", n)
					}
					return nil
				}

				rows, err := withSpinner(c, ctx, "Resolving favorites...", func() ([]favRow, error) {
					return c.resolveFavorites(ctx, names)
				})
				if err != nil {
					return err
				}
				if c.flags.json {
					return c.printJSON(rows)
				}
				c.printFavorites(rows)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&namesOnly, "names", false, "list names only, without looking them up")
	return cmd
}

// resolveFavorites looks up every name concurrently. A failed lookup marks
// its row instead of failing the list.
func (c *CLI) resolveFavorites(ctx context.Context, names []string) ([]favRow, error) {
	svc := c.newServices()
	rows := make([]favRow, len(names))

	var g errgroup.Group
	g.SetLimit(favListLimit)
	for i, n := range names {
		g.Go(func() error {
			rows[i].Name = n
			s, err := svc.agg.Resolve(ctx, n)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				rows[i].Error = userMessage(err)
				return nil
			}
			rows[i].Summary = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *CLI) printFavorites(rows []favRow) {
	table := make([][]string, len(rows))
	for i, r := range rows {
		if r.Summary == nil {
			table[i] = []string{r.Name, "-", "-", "-", StyleWarning.Render(truncate(r.Error, 40))}
			continue
		}
		score := "-"
		if r.Summary.Score != nil {
			score = formatPercent(r.Summary.Score.Final)
		}
		table[i] = []string{r.Name, r.Summary.Version, formatCount(r.Summary.WeeklyDownloads), score, truncate(r.Summary.Description, 40)}
	}
	c.printTable([]string{"Package", "Version", "Weekly", "Score", "Description"}, table)
}

// favEditCommand creates "fav add" and "fav remove", which differ only in
// the list operation they apply.
func (c *CLI) favEditCommand(use, short string, op func(*favorites.List, context.Context, string) (bool, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <package>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withFavorites(ctx, func(favs *favorites.List) error {
				for _, a := range args {
					name, err := packageArg(a)
					if err != nil {
						return err
					}
					changed, err := op(favs, ctx, name)
					if err != nil {
						return err
					}
					switch {
					case !changed:
						c.printInfo("%s unchanged", name)
					case use == "add":
						c.printSuccess("Added %s", name)
					default:
						c.printSuccess("Removed %s", name)
					}
				}
				return nil
			})
		},
	}
}

// favToggleCommand creates the "fav toggle" subcommand.
func (c *CLI) favToggleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <package>",
		Short: "Add a package if missing, remove it otherwise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := packageArg(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return c.withFavorites(ctx, func(favs *favorites.List) error {
				now, err := favs.Toggle(ctx, name)
				if err != nil {
					return err
				}
				if c.flags.json {
					return c.printJSON(map[string]any{"name": name, "favorite": now})
				}
				if now {
					c.printSuccess("Added %s %s", name, styleStar.Render(iconStar))
				} else {
					c.printSuccess("Removed %s", name)
				}
				return nil
			})
		},
	}
}

// favPickCommand creates the "fav pick" subcommand.
func (c *CLI) favPickCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pick",
		Short: "Choose a favorite interactively and show its summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var names []string
			err := c.withFavorites(ctx, func(favs *favorites.List) error {
				var err error
				names, err = favs.All(ctx)
				return err
			})
			if err != nil {
				return err
			}
			if len(names) == 0 {
				c.printInfo("No favorites yet")
				return nil
			}

			rows, err := withSpinner(c, ctx, "Resolving favorites...", func() ([]favRow, error) {
				return c.resolveFavorites(ctx, names)
			})
			if err != nil {
				return err
			}
			items := make([]PickItem, len(rows))
			for i, r := range rows {
				items[i] = PickItem{Name: r.Name, Detail: r.Error}
				if s := r.Summary; s != nil {
					items[i].Detail = s.Description
					if s.Score != nil {
						items[i].Score = formatPercent(s.Score.Final)
					}
				}
			}

			name, err := pick("Favorites", items)
			if err != nil || name == "" {
				return err
			}
			return c.runInfo(ctx, name)
		},
	}
}
