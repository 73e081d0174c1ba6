package aggregate

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	pkgerrors "github.com/matzehuels/npmlens/pkg/errors"
	"github.com/matzehuels/npmlens/pkg/integrations"
	"github.com/matzehuels/npmlens/pkg/observability"
)

// compareLimit bounds concurrent resolutions in [Aggregator.Compare].
const compareLimit = 4

// MetadataSource is the required source. It must return an error wrapping
// [integrations.ErrNotFound] when the package does not exist.
type MetadataSource interface {
	Metadata(ctx context.Context, key string) (*Metadata, error)
}

// ScoreSource is the optional quality-score source.
type ScoreSource interface {
	Score(ctx context.Context, key string) (*Score, error)
}

// DownloadSource is the optional weekly-downloads source.
type DownloadSource interface {
	WeeklyDownloads(ctx context.Context, key string) (int64, error)
}

// Sources groups the three upstreams of an [Aggregator]. Score and
// Downloads may be nil, which behaves like a source that always fails.
type Sources struct {
	Metadata  MetadataSource
	Score     ScoreSource
	Downloads DownloadSource
}

// Aggregator merges the required and optional sources into a [Summary].
// It holds no per-query state and is safe for concurrent use.
type Aggregator struct {
	src Sources
}

// New creates an Aggregator. It panics if src.Metadata is nil.
func New(src Sources) *Aggregator {
	if src.Metadata == nil {
		panic("aggregate: nil metadata source")
	}
	return &Aggregator{src: src}
}

// Resolve looks up name in all three sources concurrently and merges the
// results. The name is trimmed and lower-cased into the lookup key.
//
// Errors from the metadata source are terminal: a missing package yields a
// PACKAGE_NOT_FOUND error carrying name, anything else UPSTREAM_UNAVAILABLE.
// Failures of the optional sources are reported to the resolve hooks and
// otherwise ignored.
func (a *Aggregator) Resolve(ctx context.Context, name string) (*Summary, error) {
	key := integrations.NormalizePkgName(name)
	if observability.QueryID(ctx) == "" {
		ctx = observability.WithQueryID(ctx, uuid.NewString())
	}

	hooks := observability.Resolve()
	hooks.OnResolveStart(ctx, key)
	start := time.Now()

	var (
		wg        sync.WaitGroup
		meta      *Metadata
		metaErr   error
		score     *Score
		downloads int64
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		meta, metaErr = a.src.Metadata.Metadata(ctx, key)
	}()
	go func() {
		defer wg.Done()
		score = a.score(ctx, key)
	}()
	go func() {
		defer wg.Done()
		downloads = a.downloads(ctx, key)
	}()
	wg.Wait()

	if metaErr == nil && (meta == nil || meta.Name == "") {
		metaErr = integrations.ErrNotFound
	}
	if metaErr != nil {
		err := classify(name, metaErr)
		hooks.OnResolveComplete(ctx, key, time.Since(start), err)
		return nil, err
	}

	deps := maps.Clone(meta.Dependencies)
	if deps == nil {
		deps = map[string]string{}
	}
	var repo *Repository
	if meta.Repository != nil {
		r := *meta.Repository
		repo = &r
	}

	s := &Summary{
		Name:            meta.Name,
		Version:         meta.Version,
		Description:     meta.Description,
		PublishedAt:     meta.Modified,
		Repository:      repo,
		Dependencies:    deps,
		WeeklyDownloads: downloads,
		Score:           score,
		License:         meta.License,
		PURL:            PackageURL(meta.Name, meta.Version),
	}
	hooks.OnResolveComplete(ctx, key, time.Since(start), nil)
	return s, nil
}

// Compare resolves every name concurrently and returns the summaries in the
// order requested. It fails as soon as any required lookup fails.
func (a *Aggregator) Compare(ctx context.Context, names []string) ([]*Summary, error) {
	out := make([]*Summary, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(compareLimit)
	for i, name := range names {
		g.Go(func() error {
			s, err := a.Resolve(gctx, name)
			if err != nil {
				return err
			}
			out[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Aggregator) score(ctx context.Context, key string) *Score {
	if a.src.Score == nil {
		return nil
	}
	s, err := a.src.Score.Score(ctx, key)
	if err != nil {
		observability.Resolve().OnSourceAbsorbed(ctx, "score", key, err)
		return nil
	}
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func (a *Aggregator) downloads(ctx context.Context, key string) int64 {
	if a.src.Downloads == nil {
		return 0
	}
	n, err := a.src.Downloads.WeeklyDownloads(ctx, key)
	if err != nil {
		observability.Resolve().OnSourceAbsorbed(ctx, "downloads", key, err)
		return 0
	}
	return n
}

// classify maps a metadata-source failure onto the public error codes.
func classify(name string, err error) error {
	if errors.Is(err, integrations.ErrNotFound) || pkgerrors.Is(err, pkgerrors.ErrCodePackageNotFound) {
		return pkgerrors.NotFound(name, err)
	}
	return pkgerrors.UpstreamUnavailable(name, err)
}
