package cli

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/matzehuels/npmlens/pkg/aggregate"
	pkgerrors "github.com/matzehuels/npmlens/pkg/errors"
	"github.com/matzehuels/npmlens/pkg/render/depgraph"
)

const (
	formatText = "text"
	formatDOT  = "dot"
	formatSVG  = "svg"
)

// depsOptions holds the flags of the deps command.
type depsOptions struct {
	format   string
	output   string
	detailed bool
	rankDir  string
}

// depsCommand creates the "deps" command.
func (c *CLI) depsCommand() *cobra.Command {
	opts := depsOptions{format: formatText, rankDir: "LR"}

	cmd := &cobra.Command{
		Use:   "deps <package>",
		Short: "List or draw the direct dependencies of a package",
		Long: `List the direct dependencies of the latest version of a package, or draw
them as a Graphviz graph.

Formats:
  text  one dependency per line with its version range (default)
  dot   Graphviz DOT source
  svg   rendered SVG`,
		Example: `  npmlens deps express
  npmlens deps express --format svg -o express.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := packageArg(args[0])
			if err != nil {
				return err
			}
			return c.runDeps(cmd.Context(), name, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: text, dot, svg")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "add license and downloads to the root node")
	cmd.Flags().StringVar(&opts.rankDir, "rankdir", opts.rankDir, "graph direction: LR, TB")

	return cmd
}

func (c *CLI) runDeps(ctx context.Context, name string, opts depsOptions) error {
	switch opts.format {
	case formatText, formatDOT, formatSVG:
	default:
		return pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "unknown format %q (want text, dot or svg)", opts.format)
	}

	svc := c.newServices()
	s, err := withSpinner(c, ctx, "Resolving "+name+"...", func() (*aggregate.Summary, error) {
		return svc.agg.Resolve(ctx, name)
	})
	if err != nil {
		return err
	}

	if c.flags.json {
		return c.printJSON(s.Dependencies)
	}

	var data []byte
	switch opts.format {
	case formatText:
		if opts.output == "" {
			c.printDependencies(s)
			return nil
		}
		for _, dep := range slices.Sorted(maps.Keys(s.Dependencies)) {
			data = fmt.Appendf(data, "%s %s\n", dep, s.Dependencies[dep])
		}
	case formatDOT:
		data = []byte(depgraph.ToDOT(s, depgraph.Options{Detailed: opts.detailed, RankDir: opts.rankDir}))
	case formatSVG:
		dot := depgraph.ToDOT(s, depgraph.Options{Detailed: opts.detailed, RankDir: opts.rankDir})
		data, err = withSpinner(c, ctx, "Rendering graph...", func() ([]byte, error) {
			return depgraph.RenderSVG(ctx, dot)
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.ErrCodeInternal, err, "render %s", name)
		}
	}

	if opts.output == "" {
		_, err := c.Out.Write(data)
		return err
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}
	c.printSuccess("Wrote %d dependencies of %s", len(s.Dependencies), s.Name)
	c.printFile(opts.output)
	return nil
}

func (c *CLI) printDependencies(s *aggregate.Summary) {
	if len(s.Dependencies) == 0 {
		c.printInfo("%s@%s has no dependencies", s.Name, s.Version)
		return
	}
	c.printInfo("%s@%s depends on %d packages", s.Name, s.Version, len(s.Dependencies))
	rows := make([][]string, 0, len(s.Dependencies))
	for _, dep := range slices.Sorted(maps.Keys(s.Dependencies)) {
		rows = append(rows, []string{dep, s.Dependencies[dep]})
	}
	c.printTable([]string{"Package", "Range"}, rows)
}
