// Package explore implements the read-only package exploration queries:
// download trends, bundle sizes, similar packages, search suggestions, the
// popular-packages board, popularity data and version history.
//
// Unlike [aggregate.Aggregator.Resolve], each query here has a single source,
// so any upstream failure is returned as an error. A missing package yields a
// PACKAGE_NOT_FOUND error and anything else UPSTREAM_UNAVAILABLE.
//
// [aggregate.Aggregator.Resolve]: github.com/matzehuels/npmlens/pkg/aggregate
package explore
