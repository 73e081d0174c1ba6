// Package pkg provides the libraries behind npmlens.
//
// # Overview
//
// npmlens merges what several npm ecosystem services know about a package
// into one view. The pkg directory is organized into these areas:
//
//  1. [integrations] - HTTP clients for the registry, the downloads API,
//     npms.io and bundlephobia
//  2. [aggregate] - the merged package summary and side-by-side comparison
//  3. [explore] - trends, sizes, similar packages, suggestions, popular
//     packages and version history
//  4. [favorites] - the favorites list on top of a [kv] store
//  5. [render] - dependency graph output
//
// # Architecture
//
// The typical data flow of a package lookup:
//
//	registry  npms.io  downloads API
//	    ↓        ↓          ↓
//	    [integrations] clients (retry, circuit breaking)
//	             ↓
//	    [aggregate] package (required + optional sources)
//	             ↓
//	    Summary → CLI card, JSON, DOT/SVG
//
// # Quick Start
//
//	import (
//	    "github.com/matzehuels/npmlens/pkg/aggregate"
//	    "github.com/matzehuels/npmlens/pkg/integrations/npm"
//	    "github.com/matzehuels/npmlens/pkg/integrations/npms"
//	    "github.com/matzehuels/npmlens/pkg/integrations/npmstats"
//	)
//
//	agg := aggregate.New(aggregate.NpmSources(
//	    npm.NewClient(""), npms.NewClient(""), npmstats.NewClient(""),
//	))
//	s, err := agg.Resolve(ctx, "react")
//
// # Supporting Packages
//
// [errors] - coded errors shared by the libraries and the CLI.
//
// [httputil] - cached DNS transport, retry with backoff and per-host
// circuit breakers.
//
// [kv] - string key-value stores over memory, a JSON file, SQLite, Redis
// and MongoDB.
//
// [observability] - hook interfaces for resolution, HTTP and store events.
//
// [buildinfo] - version information set at build time.
//
// [integrations]: https://pkg.go.dev/github.com/matzehuels/npmlens/pkg/integrations
// [aggregate]: https://pkg.go.dev/github.com/matzehuels/npmlens/pkg/aggregate
// [explore]: https://pkg.go.dev/github.com/matzehuels/npmlens/pkg/explore
// [favorites]: https://pkg.go.dev/github.com/matzehuels/npmlens/pkg/favorites
// [kv]: https://pkg.go.dev/github.com/matzehuels/npmlens/pkg/kv
// [render]: https://pkg.go.dev/github.com/matzehuels/npmlens/pkg/render
// [errors]: https://pkg.go.dev/github.com/matzehuels/npmlens/pkg/errors
// [httputil]: https://pkg.go.dev/github.com/matzehuels/npmlens/pkg/httputil
// [observability]: https://pkg.go.dev/github.com/matzehuels/npmlens/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/npmlens/pkg/buildinfo
package pkg
