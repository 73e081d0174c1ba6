package aggregate

import (
	"context"

	"github.com/matzehuels/npmlens/pkg/integrations/npm"
	"github.com/matzehuels/npmlens/pkg/integrations/npms"
	"github.com/matzehuels/npmlens/pkg/integrations/npmstats"
)

// RegistrySource adapts the npm registry client to [MetadataSource].
type RegistrySource struct{ Client *npm.Client }

func (s RegistrySource) Metadata(ctx context.Context, key string) (*Metadata, error) {
	info, err := s.Client.FetchPackage(ctx, key)
	if err != nil {
		return nil, err
	}
	m := &Metadata{
		Name:         info.Name,
		Version:      info.Version,
		Description:  info.Description,
		Modified:     info.Modified,
		License:      info.License,
		Dependencies: info.Dependencies,
	}
	if r := info.Repository; r != nil && r.URL != "" {
		m.Repository = &Repository{Type: r.Type, URL: r.URL, Directory: r.Directory}
	}
	return m, nil
}

// NpmsSource adapts the npms client to [ScoreSource]. When Popularity is
// set it receives the popularity of the same npms document, so callers that
// show stars and issues need no second request.
type NpmsSource struct {
	Client     *npms.Client
	Popularity func(*npms.Popularity)
}

func (s NpmsSource) Score(ctx context.Context, key string) (*Score, error) {
	pkg, err := s.Client.Package(ctx, key)
	if err != nil {
		return nil, err
	}
	if s.Popularity != nil {
		s.Popularity(&pkg.Popularity)
	}
	sc := pkg.Score
	if sc == nil {
		return nil, npms.NoScoreError(key)
	}
	return &Score{
		Final:       sc.Final,
		Quality:     sc.Quality,
		Popularity:  sc.Popularity,
		Maintenance: sc.Maintenance,
	}, nil
}

// DownloadsSource adapts the downloads client to [DownloadSource] using the
// last-week window.
type DownloadsSource struct{ Client *npmstats.Client }

func (s DownloadsSource) WeeklyDownloads(ctx context.Context, key string) (int64, error) {
	cnt, err := s.Client.Point(ctx, key, npmstats.LastWeek)
	if err != nil {
		return 0, err
	}
	return cnt.Downloads, nil
}

// NpmSources binds the three npm ecosystem clients to an aggregator's
// source interfaces.
func NpmSources(registry *npm.Client, scores *npms.Client, downloads *npmstats.Client) Sources {
	return Sources{
		Metadata:  RegistrySource{Client: registry},
		Score:     NpmsSource{Client: scores},
		Downloads: DownloadsSource{Client: downloads},
	}
}
