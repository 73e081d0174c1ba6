// Package aggregate builds package summaries from several upstream sources.
//
// # Overview
//
// A [Summary] merges three lookups that run concurrently for every query:
//
//   - metadata (required): name, version, description, publish time,
//     repository, dependencies and license
//   - quality score (optional): npms final score and its three sub-scores
//   - weekly downloads (optional): the last-week download count
//
// The required source decides the outcome. If it fails, [Aggregator.Resolve]
// returns an error and no summary. The optional sources never fail a query:
// a failed score lookup leaves [Summary.Score] nil and a failed downloads
// lookup leaves [Summary.WeeklyDownloads] at zero.
//
// # Usage
//
//	agg := aggregate.New(aggregate.NpmSources(
//	    npm.NewClient(""), npms.NewClient(""), npmstats.NewClient(""),
//	))
//	s, err := agg.Resolve(ctx, "React")
//	switch {
//	case errors.Is(err, errors.ErrCodePackageNotFound):
//	    // no such package
//	case errors.Is(err, errors.ErrCodeUpstreamUnavailable):
//	    // try again later
//	}
//
// # Sources
//
// Sources are injected through [MetadataSource], [ScoreSource] and
// [DownloadSource], so tests can substitute fakes. [NpmSources] binds the
// real clients from pkg/integrations.
//
// Every query carries an ID (see observability.QueryID) so that hook events
// from its three lookups can be correlated.
package aggregate
