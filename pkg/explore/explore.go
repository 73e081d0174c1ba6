package explore

import (
	"cmp"
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	pkgerrors "github.com/matzehuels/npmlens/pkg/errors"
	"github.com/matzehuels/npmlens/pkg/integrations"
	"github.com/matzehuels/npmlens/pkg/integrations/bundlephobia"
	"github.com/matzehuels/npmlens/pkg/integrations/npm"
	"github.com/matzehuels/npmlens/pkg/integrations/npms"
	"github.com/matzehuels/npmlens/pkg/integrations/npmstats"
)

const (
	// similarLimit is the number of similar packages returned.
	similarLimit = 5
	// similarQuerySize is how many search hits are requested so that the
	// package itself can be dropped and similarLimit remain.
	similarQuerySize = 10
	// DefaultVersions is how many recent versions [Service.Versions] returns
	// when n is not positive.
	DefaultVersions = 5

	fetchLimit = 4
)

// DefaultPopular is the package set shown by [Service.Popular] when no names
// are given.
var DefaultPopular = []string{"react", "vue", "angular", "next", "express", "typescript"}

// Clients are the upstream clients a Service reads from.
type Clients struct {
	Registry  *npm.Client
	Downloads *npmstats.Client
	Npms      *npms.Client
	Bundles   *bundlephobia.Client
}

// Service answers the read-only exploration queries.
type Service struct {
	c Clients
}

// New creates a Service. Every client must be non-nil.
func New(c Clients) *Service {
	return &Service{c: c}
}

// Suggestion is a search hit with its npms final score as a percentage.
type Suggestion struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Score       int    `json:"score"`
}

// PopularPackage is one row of the popular-packages board.
type PopularPackage struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Downloads   int64  `json:"downloads"`
}

// Trend returns daily downloads of name over the last month, oldest first.
func (s *Service) Trend(ctx context.Context, name string) ([]npmstats.Day, error) {
	key := integrations.NormalizePkgName(name)
	days, err := s.c.Downloads.Range(ctx, key, npmstats.LastMonth)
	if err != nil {
		return nil, lookupError("download trend", name, err)
	}
	return days, nil
}

// Size returns bundle metrics for name.
func (s *Service) Size(ctx context.Context, name string) (*bundlephobia.Size, error) {
	key := integrations.NormalizePkgName(name)
	sz, err := s.c.Bundles.Size(ctx, key)
	if err != nil {
		return nil, lookupError("bundle size", name, err)
	}
	return sz, nil
}

// Popularity returns downloads, GitHub stars and open issues for name.
func (s *Service) Popularity(ctx context.Context, name string) (*npms.Popularity, error) {
	key := integrations.NormalizePkgName(name)
	p, err := s.c.Npms.Popularity(ctx, key)
	if err != nil {
		return nil, lookupError("popularity", name, err)
	}
	return p, nil
}

// Similar returns up to five packages sharing name as a keyword, best first,
// excluding name itself. Search failures are returned, not papered over.
func (s *Service) Similar(ctx context.Context, name string) ([]Suggestion, error) {
	key := integrations.NormalizePkgName(name)
	hits, err := s.c.Npms.Search(ctx, "keywords:"+key, similarQuerySize)
	if err != nil {
		return nil, lookupError("similar packages", name, err)
	}

	out := make([]Suggestion, 0, similarLimit)
	for _, h := range hits {
		if h.Name == key {
			continue
		}
		out = append(out, toSuggestion(h))
		if len(out) == similarLimit {
			break
		}
	}
	return out, nil
}

// Suggest returns search suggestions for a partial query.
func (s *Service) Suggest(ctx context.Context, q string) ([]Suggestion, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []Suggestion{}, nil
	}
	hits, err := s.c.Npms.Suggestions(ctx, q)
	if err != nil {
		return nil, lookupError("suggestions", q, err)
	}
	out := make([]Suggestion, len(hits))
	for i, h := range hits {
		out[i] = toSuggestion(h)
	}
	return out, nil
}

// Popular returns last-week downloads with the latest version and
// description of each name, most downloaded first. Names unknown to the
// downloads API are left out. An empty names selects [DefaultPopular].
func (s *Service) Popular(ctx context.Context, names []string) ([]PopularPackage, error) {
	if len(names) == 0 {
		names = DefaultPopular
	}

	var unscoped, scoped []string
	for _, n := range names {
		n = integrations.NormalizePkgName(n)
		if strings.HasPrefix(n, "@") {
			scoped = append(scoped, n)
		} else {
			unscoped = append(unscoped, n)
		}
	}

	counts, err := s.c.Downloads.BulkPoint(ctx, unscoped, npmstats.LastWeek)
	if errors.Is(err, integrations.ErrNotFound) {
		counts, err = map[string]int64{}, nil
	}
	if err != nil {
		return nil, lookupError("popular downloads", strings.Join(unscoped, ","), err)
	}

	// The bulk endpoint does not take scoped names; ask for them one by one.
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchLimit)
	for _, n := range scoped {
		g.Go(func() error {
			cnt, err := s.c.Downloads.Point(gctx, n, npmstats.LastWeek)
			if errors.Is(err, integrations.ErrNotFound) {
				return nil
			}
			if err != nil {
				return lookupError("popular downloads", n, err)
			}
			mu.Lock()
			counts[n] = cnt.Downloads
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	found := make([]string, 0, len(counts))
	for _, n := range names {
		n = integrations.NormalizePkgName(n)
		if _, ok := counts[n]; ok && !slices.Contains(found, n) {
			found = append(found, n)
		}
	}

	out := make([]PopularPackage, len(found))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(fetchLimit)
	for i, n := range found {
		g.Go(func() error {
			m, err := s.c.Registry.FetchLatest(gctx, n)
			if err != nil {
				return lookupError("latest manifest", n, err)
			}
			out[i] = PopularPackage{
				Name:        n,
				Version:     m.Version,
				Description: m.Description,
				Downloads:   counts[n],
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(out, func(a, b PopularPackage) int {
		return cmp.Compare(b.Downloads, a.Downloads)
	})
	return out, nil
}

// Versions returns the n most recent versions of name, newest first.
// A non-positive n selects [DefaultVersions].
func (s *Service) Versions(ctx context.Context, name string, n int) ([]npm.VersionInfo, error) {
	if n <= 0 {
		n = DefaultVersions
	}
	key := integrations.NormalizePkgName(name)
	vs, err := s.c.Registry.FetchVersions(ctx, key)
	if err != nil {
		return nil, lookupError("versions", name, err)
	}
	if len(vs) > n {
		vs = vs[:n]
	}
	return vs, nil
}

// Diff compares the dependencies declared by two published versions of name.
func (s *Service) Diff(ctx context.Context, name, from, to string) (*DependencyDiff, error) {
	key := integrations.NormalizePkgName(name)
	vs, err := s.c.Registry.FetchVersions(ctx, key)
	if err != nil {
		return nil, lookupError("versions", name, err)
	}

	find := func(v string) (map[string]string, error) {
		v = strings.TrimPrefix(strings.TrimSpace(v), "v")
		for _, vi := range vs {
			if vi.Version == v {
				return vi.Dependencies, nil
			}
		}
		return nil, pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "%s has no published version %q", key, v)
	}
	a, err := find(from)
	if err != nil {
		return nil, err
	}
	b, err := find(to)
	if err != nil {
		return nil, err
	}
	d := DiffDependencies(a, b)
	return &d, nil
}

// Latest returns the latest manifest of name, used for dependency listings.
func (s *Service) Latest(ctx context.Context, name string) (*npm.Manifest, error) {
	key := integrations.NormalizePkgName(name)
	m, err := s.c.Registry.FetchLatest(ctx, key)
	if err != nil {
		return nil, lookupError("latest manifest", name, err)
	}
	return m, nil
}

// Percent converts a score in [0, 1] to a rounded percentage.
func Percent(score float64) int {
	return int(math.Round(score * 100))
}

func toSuggestion(r npms.Result) Suggestion {
	return Suggestion{
		Name:        r.Name,
		Description: r.Description,
		Score:       Percent(r.Score),
	}
}

// lookupError maps an upstream failure onto the public error codes.
func lookupError(what, name string, err error) error {
	if errors.Is(err, integrations.ErrNotFound) {
		return pkgerrors.NotFound(name, err)
	}
	e := pkgerrors.Wrap(pkgerrors.ErrCodeUpstreamUnavailable, err, "%s for %q unavailable, try again later", what, name)
	e.Subject = name
	return e
}
