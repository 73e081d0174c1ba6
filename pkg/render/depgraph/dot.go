package depgraph

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/npmlens/pkg/aggregate"
)

// Options configures dependency graph rendering.
type Options struct {
	// Detailed adds the license and weekly downloads to the root label.
	Detailed bool
	// RankDir is the Graphviz layout direction. Defaults to "LR".
	RankDir string
}

// ToDOT converts the direct dependencies of s to a Graphviz star graph: one
// edge from the package to each dependency, labelled with the declared
// version range. Dependencies are emitted in name order so the output is
// stable.
func ToDOT(s *aggregate.Summary, opts Options) string {
	rankdir := opts.RankDir
	if rankdir == "" {
		rankdir = "LR"
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", rankdir)
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\", fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=11, color=\"#888888\"];\n")
	buf.WriteString("  ranksep=1.2;\n")
	buf.WriteString("  nodesep=0.2;\n")
	buf.WriteString("\n")

	fmt.Fprintf(&buf, "  %q [label=%q, fillcolor=\"#cb3837\", fontcolor=white];\n", s.Name, rootLabel(s, opts.Detailed))

	deps := slices.Sorted(maps.Keys(s.Dependencies))
	for _, d := range deps {
		if d == s.Name {
			continue
		}
		fmt.Fprintf(&buf, "  %q;\n", d)
	}

	buf.WriteString("\n")
	for _, d := range deps {
		if d == s.Name {
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", s.Name, d, s.Dependencies[d])
	}

	buf.WriteString("}\n")
	return buf.String()
}

func rootLabel(s *aggregate.Summary, detailed bool) string {
	label := s.Name
	if s.Version != "" {
		label += "@" + s.Version
	}
	if !detailed {
		return label
	}
	if s.License != "" {
		label += "\n" + s.License
	}
	label += fmt.Sprintf("\n%d weekly downloads", s.WeeklyDownloads)
	return label
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces the pt-sized root element Graphviz emits with one
// that scales in browsers.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}
