package explore

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/matzehuels/npmlens/internal/testutil"
	pkgerrors "github.com/matzehuels/npmlens/pkg/errors"
	"github.com/matzehuels/npmlens/pkg/integrations"
	"github.com/matzehuels/npmlens/pkg/integrations/bundlephobia"
	"github.com/matzehuels/npmlens/pkg/integrations/npm"
	"github.com/matzehuels/npmlens/pkg/integrations/npms"
	"github.com/matzehuels/npmlens/pkg/integrations/npmstats"
)

func newService(t *testing.T) (*testutil.Upstream, *Service) {
	t.Helper()
	up := testutil.NewUpstream(t)
	up.Add(
		testutil.Package{
			Name: "react", Version: "18.2.0", Description: "UI library",
			Keywords:        []string{"react", "ui"},
			Dependencies:    map[string]string{"loose-envify": "^1.1.0"},
			WeeklyDownloads: 25_000_000,
			Daily:           []int64{100, 120, 90},
			Score:           &testutil.Score{Final: 0.954},
			Stars:           220_000,
			OpenIssues:      800,
			Size:            &testutil.Size{Minified: 6400, Gzipped: 2600, Dependencies: 1},
			Published:       time.Date(2022, 6, 14, 0, 0, 0, 0, time.UTC),
			History: []testutil.Release{
				{Version: "18.1.0", Published: time.Date(2022, 4, 26, 0, 0, 0, 0, time.UTC), Dependencies: map[string]string{"loose-envify": "^1.0.0", "object-assign": "^4.1.1"}},
				{Version: "18.0.0", Published: time.Date(2022, 3, 29, 0, 0, 0, 0, time.UTC)},
			},
		},
		testutil.Package{Name: "preact", Version: "10.20.0", Keywords: []string{"react"}, Score: &testutil.Score{Final: 0.8}, WeeklyDownloads: 3_000_000},
		testutil.Package{Name: "inferno", Version: "8.2.3", Keywords: []string{"react"}, Score: &testutil.Score{Final: 0.6}},
		testutil.Package{Name: "react-dom", Version: "18.2.0", Keywords: []string{"react"}, Score: &testutil.Score{Final: 0.9}},
		testutil.Package{Name: "react-is", Version: "18.2.0", Keywords: []string{"react"}, Score: &testutil.Score{Final: 0.5}},
		testutil.Package{Name: "react-router", Version: "6.23.0", Keywords: []string{"react"}, Score: &testutil.Score{Final: 0.7}},
		testutil.Package{Name: "react-redux", Version: "9.1.2", Keywords: []string{"react"}, Score: &testutil.Score{Final: 0.4}},
		testutil.Package{Name: "vue", Version: "3.4.27", Description: "Progressive framework", WeeklyDownloads: 5_000_000},
		testutil.Package{Name: "express", Version: "4.19.2", Description: "Web framework", WeeklyDownloads: 30_000_000},
		testutil.Package{Name: "@angular/core", Version: "17.3.0", WeeklyDownloads: 3_500_000},
	)

	opts := []integrations.Option{
		integrations.WithHTTPClient(up.Client()),
		integrations.WithRetry(1, 0),
	}
	svc := New(Clients{
		Registry:  npm.NewClient(up.RegistryURL(), opts...),
		Downloads: npmstats.NewClient(up.DownloadsURL(), opts...),
		Npms:      npms.NewClient(up.NpmsURL(), opts...),
		Bundles:   bundlephobia.NewClient(up.BundlephobiaURL(), opts...),
	})
	return up, svc
}

func TestTrend(t *testing.T) {
	_, svc := newService(t)

	days, err := svc.Trend(context.Background(), "React")
	if err != nil {
		t.Fatalf("Trend() error: %v", err)
	}
	if len(days) != 3 || days[1].Downloads != 120 {
		t.Errorf("Trend() = %+v", days)
	}
	if !days[0].Date.Before(days[2].Date) {
		t.Error("days should be oldest first")
	}
}

func TestTrendNotFound(t *testing.T) {
	_, svc := newService(t)
	_, err := svc.Trend(context.Background(), "left-pad-xyz-nonexistent")
	if !pkgerrors.Is(err, pkgerrors.ErrCodePackageNotFound) {
		t.Errorf("Trend() error = %v, want PACKAGE_NOT_FOUND", err)
	}
}

func TestSize(t *testing.T) {
	_, svc := newService(t)

	s, err := svc.Size(context.Background(), "react")
	if err != nil {
		t.Fatalf("Size() error: %v", err)
	}
	if s.Gzipped != 2600 || s.Minified != 6400 {
		t.Errorf("Size() = %+v", s)
	}
}

func TestPopularity(t *testing.T) {
	_, svc := newService(t)

	p, err := svc.Popularity(context.Background(), "react")
	if err != nil {
		t.Fatalf("Popularity() error: %v", err)
	}
	if p.Stars != 220_000 || p.OpenIssues != 800 || p.Downloads != 25_000_000 {
		t.Errorf("Popularity() = %+v", p)
	}
}

func TestSimilar(t *testing.T) {
	_, svc := newService(t)

	got, err := svc.Similar(context.Background(), "react")
	if err != nil {
		t.Fatalf("Similar() error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("len(Similar()) = %d, want 5", len(got))
	}
	for _, s := range got {
		if s.Name == "react" {
			t.Error("Similar() should exclude the package itself")
		}
	}
	if got[0].Name != "react-dom" || got[0].Score != 90 {
		t.Errorf("first = %+v, want react-dom with score 90", got[0])
	}
}

func TestSimilarFailureIsReturned(t *testing.T) {
	up, svc := newService(t)
	up.Fail(testutil.RouteSearch, http.StatusServiceUnavailable)

	got, err := svc.Similar(context.Background(), "react")
	if got != nil {
		t.Errorf("Similar() = %v, want nil", got)
	}
	if !pkgerrors.Is(err, pkgerrors.ErrCodeUpstreamUnavailable) {
		t.Errorf("Similar() error = %v, want UPSTREAM_UNAVAILABLE", err)
	}
}

func TestSuggest(t *testing.T) {
	_, svc := newService(t)

	got, err := svc.Suggest(context.Background(), "react-")
	if err != nil {
		t.Fatalf("Suggest() error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("Suggest() = %+v, want 4 hits", got)
	}
	if got[0].Name != "react-dom" || got[0].Score != 90 {
		t.Errorf("first = %+v", got[0])
	}

	empty, err := svc.Suggest(context.Background(), "  ")
	if err != nil || len(empty) != 0 {
		t.Errorf("Suggest(blank) = %v, %v", empty, err)
	}
}

func TestPopular(t *testing.T) {
	_, svc := newService(t)

	got, err := svc.Popular(context.Background(), []string{"react", "vue", "express", "@angular/core", "ghost"})
	if err != nil {
		t.Fatalf("Popular() error: %v", err)
	}
	want := []string{"express", "react", "vue", "@angular/core"}
	if len(got) != len(want) {
		t.Fatalf("Popular() = %+v", got)
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("Popular()[%d] = %s, want %s", i, got[i].Name, name)
		}
	}
	if got[0].Version != "4.19.2" || got[0].Description != "Web framework" || got[0].Downloads != 30_000_000 {
		t.Errorf("express row = %+v", got[0])
	}
}

func TestPopularDefaults(t *testing.T) {
	up, svc := newService(t)

	got, err := svc.Popular(context.Background(), nil)
	if err != nil {
		t.Fatalf("Popular() error: %v", err)
	}
	// react, vue and express are the only defaults with fixtures.
	if len(got) != 3 || got[0].Name != "express" {
		t.Errorf("Popular(defaults) = %+v", got)
	}
	if up.Hits(testutil.RoutePoint) != 1 {
		t.Errorf("point hits = %d, want one bulk request", up.Hits(testutil.RoutePoint))
	}
}

func TestVersions(t *testing.T) {
	_, svc := newService(t)

	vs, err := svc.Versions(context.Background(), "react", 2)
	if err != nil {
		t.Fatalf("Versions() error: %v", err)
	}
	if len(vs) != 2 || vs[0].Version != "18.2.0" || vs[1].Version != "18.1.0" {
		t.Errorf("Versions() = %+v", vs)
	}

	all, err := svc.Versions(context.Background(), "react", 0)
	if err != nil {
		t.Fatalf("Versions(0) error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(Versions(0)) = %d, want 3", len(all))
	}

	d := DiffDependencies(vs[1].Dependencies, vs[0].Dependencies)
	if len(d.Removed) != 1 || d.Removed[0].Name != "object-assign" {
		t.Errorf("Removed = %+v", d.Removed)
	}
	if len(d.Changed) != 1 || d.Changed[0].From != "^1.0.0" || d.Changed[0].To != "^1.1.0" {
		t.Errorf("Changed = %+v", d.Changed)
	}
}

func TestDiff(t *testing.T) {
	_, svc := newService(t)

	d, err := svc.Diff(context.Background(), "react", "18.1.0", "v18.2.0")
	if err != nil {
		t.Fatalf("Diff() error: %v", err)
	}
	if len(d.Removed) != 1 || len(d.Changed) != 1 || len(d.Added) != 0 {
		t.Errorf("Diff() = %+v", d)
	}

	_, err = svc.Diff(context.Background(), "react", "18.1.0", "99.0.0")
	if !pkgerrors.Is(err, pkgerrors.ErrCodeInvalidInput) {
		t.Errorf("Diff(unknown version) error = %v, want INVALID_INPUT", err)
	}
}

func TestLatest(t *testing.T) {
	_, svc := newService(t)

	m, err := svc.Latest(context.Background(), "react")
	if err != nil {
		t.Fatalf("Latest() error: %v", err)
	}
	if m.Dependencies["loose-envify"] != "^1.1.0" {
		t.Errorf("Latest() = %+v", m)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{0.954, 95},
		{0.956, 96},
		{1, 100},
	}
	for _, tt := range tests {
		if got := Percent(tt.in); got != tt.want {
			t.Errorf("Percent(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
