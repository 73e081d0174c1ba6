// Package depgraph renders the direct dependencies of a package as a
// node-link diagram.
//
// # Usage
//
// Convert a summary to DOT, then render it to SVG in-process:
//
//	dot := depgraph.ToDOT(summary, depgraph.Options{})
//	svg, err := depgraph.RenderSVG(ctx, dot)
//
// The DOT source can also be written out and processed with the Graphviz
// command line tools.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz], which runs Graphviz as
// WebAssembly, so no system Graphviz install is needed.
package depgraph
