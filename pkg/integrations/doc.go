// Package integrations provides HTTP clients for the npm ecosystem's public APIs.
//
// # Overview
//
// Each upstream has its own subpackage:
//
//   - [npm]: registry metadata (packuments, version manifests)
//   - [npmstats]: download counts from api.npmjs.org
//   - [npms]: quality scores, popularity and search from api.npms.io
//   - [bundlephobia]: bundle size metrics
//
// # Client Pattern
//
// All clients follow a consistent pattern:
//
//	client := npm.NewClient(integrations.DefaultRegistryURL)
//	info, err := client.FetchPackage(ctx, "express")
//
// Clients handle:
//   - HTTP requests with retry of transient failures (429, 5xx, network)
//   - Optional per-host circuit breaking
//   - Decoding into explicit response schemas
//
// # Shared Infrastructure
//
// The [Client] type provides the HTTP functionality used by every
// subpackage. Failures are reported through sentinel errors ([ErrNotFound],
// [ErrNetwork], [ErrRateLimited], [ErrUpstreamDown], [ErrMalformed]) wrapped
// with fmt.Errorf, so callers classify them with errors.Is.
//
// There is no response cache. Every call goes to the network.
//
// [npm]: github.com/matzehuels/npmlens/pkg/integrations/npm
// [npmstats]: github.com/matzehuels/npmlens/pkg/integrations/npmstats
// [npms]: github.com/matzehuels/npmlens/pkg/integrations/npms
// [bundlephobia]: github.com/matzehuels/npmlens/pkg/integrations/bundlephobia
package integrations
