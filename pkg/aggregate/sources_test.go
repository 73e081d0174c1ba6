package aggregate

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/matzehuels/npmlens/internal/testutil"
	pkgerrors "github.com/matzehuels/npmlens/pkg/errors"
	"github.com/matzehuels/npmlens/pkg/integrations"
	"github.com/matzehuels/npmlens/pkg/integrations/npm"
	"github.com/matzehuels/npmlens/pkg/integrations/npms"
	"github.com/matzehuels/npmlens/pkg/integrations/npmstats"
)

func newUpstreamAggregator(t *testing.T) (*testutil.Upstream, *Aggregator) {
	t.Helper()
	up := testutil.NewUpstream(t)
	up.Add(
		testutil.Package{
			Name:            "react",
			Version:         "18.2.0",
			Description:     "React is a JavaScript library for building user interfaces.",
			Modified:        time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			Repository:      "https://github.com/facebook/react",
			License:         "MIT",
			Dependencies:    map[string]string{"loose-envify": "^1.1.0"},
			WeeklyDownloads: 25_000_000,
			Score:           &testutil.Score{Final: 0.92, Quality: 0.85, Popularity: 0.97, Maintenance: 0.99},
		},
		testutil.Package{
			Name:            "@babel/core",
			Version:         "7.24.0",
			Dependencies:    map[string]string{"@babel/types": "^7.24.0"},
			WeeklyDownloads: 40_000_000,
		},
	)

	opts := []integrations.Option{
		integrations.WithHTTPClient(up.Client()),
		integrations.WithRetry(1, 0),
	}
	agg := New(NpmSources(
		npm.NewClient(up.RegistryURL(), opts...),
		npms.NewClient(up.NpmsURL(), opts...),
		npmstats.NewClient(up.DownloadsURL(), opts...),
	))
	return up, agg
}

func TestNpmSourcesResolve(t *testing.T) {
	_, agg := newUpstreamAggregator(t)

	s, err := agg.Resolve(context.Background(), "React")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if s.Name != "react" || s.Version != "18.2.0" {
		t.Errorf("identity = %s@%s", s.Name, s.Version)
	}
	if s.WeeklyDownloads != 25_000_000 {
		t.Errorf("WeeklyDownloads = %d", s.WeeklyDownloads)
	}
	if s.Score == nil || s.Score.Maintenance != 0.99 {
		t.Errorf("Score = %+v", s.Score)
	}
	if s.Repository == nil || s.Repository.URL != "https://github.com/facebook/react" {
		t.Errorf("Repository = %+v", s.Repository)
	}
}

func TestNpmSourcesScopedPackageWithoutScore(t *testing.T) {
	_, agg := newUpstreamAggregator(t)

	s, err := agg.Resolve(context.Background(), "@babel/core")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if s.Score != nil {
		t.Errorf("Score = %+v, want nil", s.Score)
	}
	if s.WeeklyDownloads != 40_000_000 {
		t.Errorf("WeeklyDownloads = %d", s.WeeklyDownloads)
	}
	if s.Repository != nil {
		t.Errorf("Repository = %+v, want nil", s.Repository)
	}
}

func TestNpmSourcesLegacyDocuments(t *testing.T) {
	tests := []struct {
		name      string
		packument string
		wantDeps  int
		wantRepo  string
	}{
		{
			name: "dependencies list",
			packument: `{"name": "legacy", "dist-tags": {"latest": "1.0.0"},
				"versions": {"0.1.0": {"dependencies": []}, "1.0.0": {"dependencies": []}}}`,
		},
		{
			name: "keywords string",
			packument: `{"name": "legacy", "dist-tags": {"latest": "1.0.0"}, "keywords": "cli, tool",
				"versions": {"1.0.0": {"dependencies": {"chalk": "^1.0.0"}}}}`,
			wantDeps: 1,
		},
		{
			name: "repository list",
			packument: `{"name": "legacy", "dist-tags": {"latest": "1.0.0"},
				"repository": [{"type": "git", "url": "git://github.com/someone/legacy.git"}],
				"versions": {"1.0.0": {}}}`,
			wantRepo: "https://github.com/someone/legacy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up, agg := newUpstreamAggregator(t)
			up.Add(testutil.Package{
				Name:            "legacy",
				Packument:       json.RawMessage(tt.packument),
				WeeklyDownloads: 120,
			})

			s, err := agg.Resolve(context.Background(), "legacy")
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			if s.Version != "1.0.0" || len(s.Dependencies) != tt.wantDeps {
				t.Errorf("got %s with deps %v", s.Version, s.Dependencies)
			}
			if s.WeeklyDownloads != 120 {
				t.Errorf("WeeklyDownloads = %d", s.WeeklyDownloads)
			}
			switch {
			case tt.wantRepo == "" && s.Repository != nil:
				t.Errorf("Repository = %+v, want nil", s.Repository)
			case tt.wantRepo != "" && (s.Repository == nil || s.Repository.URL != tt.wantRepo):
				t.Errorf("Repository = %+v, want %s", s.Repository, tt.wantRepo)
			}
		})
	}
}

func TestNpmsSourceReportsPopularity(t *testing.T) {
	up := testutil.NewUpstream(t)
	up.Add(
		testutil.Package{
			Name:       "react",
			Version:    "18.2.0",
			Score:      &testutil.Score{Final: 0.92},
			Stars:      220_000,
			OpenIssues: 800,
		},
		testutil.Package{Name: "unscored", Version: "1.0.0", Stars: 3},
	)
	client := npms.NewClient(up.NpmsURL(), integrations.WithHTTPClient(up.Client()), integrations.WithRetry(1, 0))

	var pop *npms.Popularity
	src := NpmsSource{Client: client, Popularity: func(p *npms.Popularity) { pop = p }}

	s, err := src.Score(context.Background(), "react")
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if s.Final != 0.92 {
		t.Errorf("Final = %v", s.Final)
	}
	if pop == nil || pop.Stars != 220_000 || pop.OpenIssues != 800 {
		t.Errorf("popularity = %+v", pop)
	}
	if got := up.Hits(testutil.RouteScore); got != 1 {
		t.Errorf("npms hits = %d, want 1", got)
	}

	pop = nil
	if _, err := src.Score(context.Background(), "unscored"); err == nil {
		t.Error("Score(unscored) succeeded, want error")
	}
	if pop != nil {
		t.Errorf("popularity of a missing document = %+v, want nil", pop)
	}
}

func TestNpmSourcesOptionalFailures(t *testing.T) {
	tests := []struct {
		name   string
		route  testutil.Route
		status int
	}{
		{"score 503", testutil.RouteScore, http.StatusServiceUnavailable},
		{"score malformed", testutil.RouteScore, testutil.StatusMalformed},
		{"downloads 500", testutil.RoutePoint, http.StatusInternalServerError},
		{"downloads malformed", testutil.RoutePoint, testutil.StatusMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up, agg := newUpstreamAggregator(t)
			up.Fail(tt.route, tt.status)

			s, err := agg.Resolve(context.Background(), "react")
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			if s.Version != "18.2.0" || s.Dependencies["loose-envify"] == "" {
				t.Errorf("required fields changed: %+v", s)
			}
			if tt.route == testutil.RouteScore && s.Score != nil {
				t.Errorf("Score = %+v, want nil", s.Score)
			}
			if tt.route == testutil.RoutePoint && s.WeeklyDownloads != 0 {
				t.Errorf("WeeklyDownloads = %d, want 0", s.WeeklyDownloads)
			}
		})
	}
}

func TestNpmSourcesRequiredFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   pkgerrors.Code
	}{
		{"server error", http.StatusBadGateway, pkgerrors.ErrCodeUpstreamUnavailable},
		{"forbidden", http.StatusForbidden, pkgerrors.ErrCodeUpstreamUnavailable},
		{"malformed", testutil.StatusMalformed, pkgerrors.ErrCodeUpstreamUnavailable},
		{"not found", http.StatusNotFound, pkgerrors.ErrCodePackageNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up, agg := newUpstreamAggregator(t)
			up.Fail(testutil.RoutePackument, tt.status)

			_, err := agg.Resolve(context.Background(), "react")
			if got := pkgerrors.GetCode(err); got != tt.want {
				t.Errorf("code = %q, want %q (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestNpmSourcesNotFound(t *testing.T) {
	_, agg := newUpstreamAggregator(t)

	_, err := agg.Resolve(context.Background(), "left-pad-xyz-nonexistent")
	if !pkgerrors.Is(err, pkgerrors.ErrCodePackageNotFound) {
		t.Fatalf("Resolve() error = %v, want PACKAGE_NOT_FOUND", err)
	}
	if pkgerrors.GetSubject(err) != "left-pad-xyz-nonexistent" {
		t.Errorf("subject = %q", pkgerrors.GetSubject(err))
	}
}
