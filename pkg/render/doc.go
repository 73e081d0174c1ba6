// Package render groups the output renderers of npmlens.
//
// [depgraph] draws the direct dependencies of a package summary as a
// Graphviz graph, as DOT source or rendered SVG.
//
// [depgraph]: https://pkg.go.dev/github.com/matzehuels/npmlens/pkg/render/depgraph
package render
