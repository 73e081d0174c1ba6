package aggregate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/matzehuels/npmlens/pkg/errors"
	"github.com/matzehuels/npmlens/pkg/integrations"
	"github.com/matzehuels/npmlens/pkg/observability"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeMetadata struct {
	docs   map[string]*Metadata
	err    error
	before func() error

	mu   sync.Mutex
	keys []string
}

func (f *fakeMetadata) Metadata(ctx context.Context, key string) (*Metadata, error) {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.mu.Unlock()
	if f.before != nil {
		if err := f.before(); err != nil {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.docs[key]
	if !ok {
		return nil, fmt.Errorf("npm package %s: %w", key, integrations.ErrNotFound)
	}
	return m, nil
}

type fakeScore struct {
	scores map[string]*Score
	err    error
	before func() error
}

func (f *fakeScore) Score(ctx context.Context, key string) (*Score, error) {
	if f.before != nil {
		if err := f.before(); err != nil {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.scores[key]
	if !ok {
		return nil, integrations.ErrNotFound
	}
	return s, nil
}

type fakeDownloads struct {
	counts map[string]int64
	err    error
	before func() error
}

func (f *fakeDownloads) WeeklyDownloads(ctx context.Context, key string) (int64, error) {
	if f.before != nil {
		if err := f.before(); err != nil {
			return 0, err
		}
	}
	if f.err != nil {
		return 0, f.err
	}
	n, ok := f.counts[key]
	if !ok {
		return 0, integrations.ErrNotFound
	}
	return n, nil
}

func reactMetadata() *Metadata {
	return &Metadata{
		Name:         "react",
		Version:      "18.2.0",
		Description:  "React is a JavaScript library for building user interfaces.",
		Modified:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Repository:   &Repository{Type: "git", URL: "https://github.com/facebook/react"},
		License:      "MIT",
		Dependencies: map[string]string{"loose-envify": "^1.1.0"},
	}
}

func vueMetadata() *Metadata {
	return &Metadata{
		Name:         "vue",
		Version:      "3.4.27",
		Description:  "The progressive JavaScript framework for building modern web UI.",
		Dependencies: map[string]string{"@vue/shared": "3.4.27", "@vue/compiler-dom": "3.4.27"},
	}
}

func newFakes() (*fakeMetadata, *fakeScore, *fakeDownloads) {
	meta := &fakeMetadata{docs: map[string]*Metadata{
		"react": reactMetadata(),
		"vue":   vueMetadata(),
	}}
	score := &fakeScore{scores: map[string]*Score{
		"react": {Final: 0.92, Quality: 0.85, Popularity: 0.97, Maintenance: 0.99},
		"vue":   {Final: 0.88, Quality: 0.9, Popularity: 0.8, Maintenance: 0.95},
	}}
	downloads := &fakeDownloads{counts: map[string]int64{"react": 25_000_000, "vue": 5_000_000}}
	return meta, score, downloads
}

type recordingHooks struct {
	observability.NoopResolveHooks

	mu       sync.Mutex
	absorbed []string
	queryIDs []string
	complete []error
}

func (h *recordingHooks) OnResolveStart(ctx context.Context, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queryIDs = append(h.queryIDs, observability.QueryID(ctx))
}

func (h *recordingHooks) OnResolveComplete(ctx context.Context, name string, d time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queryIDs = append(h.queryIDs, observability.QueryID(ctx))
	h.complete = append(h.complete, err)
}

func (h *recordingHooks) OnSourceAbsorbed(ctx context.Context, source, name string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.absorbed = append(h.absorbed, source)
	h.queryIDs = append(h.queryIDs, observability.QueryID(ctx))
}

// =============================================================================
// Resolve
// =============================================================================

func TestResolveAllSourcesSucceed(t *testing.T) {
	meta, score, downloads := newFakes()
	agg := New(Sources{Metadata: meta, Score: score, Downloads: downloads})

	s, err := agg.Resolve(context.Background(), "react")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if s.Name != "react" || s.Version != "18.2.0" {
		t.Errorf("identity = %s@%s", s.Name, s.Version)
	}
	if s.Dependencies["loose-envify"] != "^1.1.0" {
		t.Errorf("Dependencies = %v", s.Dependencies)
	}
	if s.WeeklyDownloads != 25_000_000 {
		t.Errorf("WeeklyDownloads = %d", s.WeeklyDownloads)
	}
	if s.Score == nil {
		t.Fatal("Score should be populated")
	}
	if s.Score.Quality != 0.85 || s.Score.Popularity != 0.97 || s.Score.Maintenance != 0.99 {
		t.Errorf("Score = %+v", s.Score)
	}
	if !s.PublishedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("PublishedAt = %v", s.PublishedAt)
	}
	if s.Repository == nil || s.Repository.URL != "https://github.com/facebook/react" {
		t.Errorf("Repository = %+v", s.Repository)
	}
	if s.PURL != "pkg:npm/react@18.2.0" {
		t.Errorf("PURL = %q", s.PURL)
	}
	if s.License != "MIT" {
		t.Errorf("License = %q", s.License)
	}
}

func TestResolveNormalizesName(t *testing.T) {
	meta, score, downloads := newFakes()
	agg := New(Sources{Metadata: meta, Score: score, Downloads: downloads})

	s, err := agg.Resolve(context.Background(), "  React \n")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if s.Name != "react" {
		t.Errorf("Name = %q, want display name from upstream", s.Name)
	}
	if len(meta.keys) != 1 || meta.keys[0] != "react" {
		t.Errorf("lookup keys = %q, want [react]", meta.keys)
	}
}

func TestResolveRequiredFieldsIndependentOfOptionalOutcomes(t *testing.T) {
	boom := errors.New("connection reset")

	tests := []struct {
		name          string
		scoreErr      error
		downloadsErr  error
		wantScore     bool
		wantDownloads int64
	}{
		{"both succeed", nil, nil, true, 5_000_000},
		{"score fails", boom, nil, false, 5_000_000},
		{"downloads fail", nil, boom, true, 0},
		{"both fail", boom, boom, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, score, downloads := newFakes()
			score.err = tt.scoreErr
			downloads.err = tt.downloadsErr
			agg := New(Sources{Metadata: meta, Score: score, Downloads: downloads})

			s, err := agg.Resolve(context.Background(), "vue")
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}

			want := vueMetadata()
			if s.Name != want.Name || s.Version != want.Version || s.Description != want.Description {
				t.Errorf("identity = %s@%s %q", s.Name, s.Version, s.Description)
			}
			if len(s.Dependencies) != len(want.Dependencies) {
				t.Errorf("Dependencies = %v, want %v", s.Dependencies, want.Dependencies)
			}
			for k, v := range want.Dependencies {
				if s.Dependencies[k] != v {
					t.Errorf("Dependencies[%s] = %q, want %q", k, s.Dependencies[k], v)
				}
			}
			if (s.Score != nil) != tt.wantScore {
				t.Errorf("Score = %+v, want present=%v", s.Score, tt.wantScore)
			}
			if s.WeeklyDownloads != tt.wantDownloads {
				t.Errorf("WeeklyDownloads = %d, want %d", s.WeeklyDownloads, tt.wantDownloads)
			}
		})
	}
}

func TestResolveNotFound(t *testing.T) {
	meta, score, downloads := newFakes()
	agg := New(Sources{Metadata: meta, Score: score, Downloads: downloads})

	const name = "left-pad-xyz-nonexistent"
	s, err := agg.Resolve(context.Background(), name)
	if s != nil {
		t.Errorf("Resolve() summary = %+v, want nil", s)
	}
	if !pkgerrors.Is(err, pkgerrors.ErrCodePackageNotFound) {
		t.Fatalf("Resolve() error = %v, want PACKAGE_NOT_FOUND", err)
	}
	if got := pkgerrors.GetSubject(err); got != name {
		t.Errorf("subject = %q, want %q", got, name)
	}
	if !strings.Contains(pkgerrors.UserMessage(err), name) {
		t.Errorf("message %q should name the package", pkgerrors.UserMessage(err))
	}
}

func TestResolveNamelessDocumentIsNotFound(t *testing.T) {
	meta := &fakeMetadata{docs: map[string]*Metadata{"ghost": {Version: "1.0.0"}}}
	agg := New(Sources{Metadata: meta})

	_, err := agg.Resolve(context.Background(), "ghost")
	if !pkgerrors.Is(err, pkgerrors.ErrCodePackageNotFound) {
		t.Errorf("Resolve() error = %v, want PACKAGE_NOT_FOUND", err)
	}
}

func TestResolveUpstreamUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"network", fmt.Errorf("npm package react: %w: dial tcp: timeout", integrations.ErrNetwork)},
		{"server error", fmt.Errorf("npm package react: %w: status 503", integrations.ErrUpstreamDown)},
		{"malformed", fmt.Errorf("npm package react: %w: unexpected EOF", integrations.ErrMalformed)},
		{"rate limited", fmt.Errorf("npm package react: %w: status 429", integrations.ErrRateLimited)},
		{"cancelled", context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, score, downloads := newFakes()
			agg := New(Sources{Metadata: &fakeMetadata{err: tt.err}, Score: score, Downloads: downloads})

			s, err := agg.Resolve(context.Background(), "react")
			if s != nil {
				t.Error("no summary should be returned when the required source fails")
			}
			if !pkgerrors.Is(err, pkgerrors.ErrCodeUpstreamUnavailable) {
				t.Fatalf("Resolve() error = %v, want UPSTREAM_UNAVAILABLE", err)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("cause should be preserved, got %v", err)
			}
		})
	}
}

func TestResolveEmptyNamePassesThrough(t *testing.T) {
	meta := &fakeMetadata{}
	agg := New(Sources{Metadata: meta})

	_, err := agg.Resolve(context.Background(), "   ")
	if !pkgerrors.Is(err, pkgerrors.ErrCodePackageNotFound) {
		t.Errorf("Resolve() error = %v, want PACKAGE_NOT_FOUND", err)
	}
	if len(meta.keys) != 1 || meta.keys[0] != "" {
		t.Errorf("lookup keys = %q, want one empty key", meta.keys)
	}
}

func TestResolveNilOptionalSources(t *testing.T) {
	meta, _, _ := newFakes()
	agg := New(Sources{Metadata: meta})

	s, err := agg.Resolve(context.Background(), "react")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if s.Score != nil || s.WeeklyDownloads != 0 {
		t.Errorf("optional fields = %+v / %d, want nil / 0", s.Score, s.WeeklyDownloads)
	}
}

func TestResolveRunsSourcesConcurrently(t *testing.T) {
	var arrived sync.WaitGroup
	arrived.Add(3)
	all := make(chan struct{})
	go func() {
		arrived.Wait()
		close(all)
	}()
	barrier := func() error {
		arrived.Done()
		select {
		case <-all:
			return nil
		case <-time.After(5 * time.Second):
			return errors.New("lookups did not overlap")
		}
	}

	meta, score, downloads := newFakes()
	meta.before, score.before, downloads.before = barrier, barrier, barrier
	agg := New(Sources{Metadata: meta, Score: score, Downloads: downloads})

	s, err := agg.Resolve(context.Background(), "react")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if s.Score == nil || s.WeeklyDownloads == 0 {
		t.Errorf("optional lookups should have completed: %+v", s)
	}
}

func TestResolveWaitsForSlowOptionalSources(t *testing.T) {
	meta, score, downloads := newFakes()
	downloads.before = func() error {
		time.Sleep(50 * time.Millisecond)
		return nil
	}
	agg := New(Sources{Metadata: meta, Score: score, Downloads: downloads})

	s, err := agg.Resolve(context.Background(), "react")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if s.WeeklyDownloads != 25_000_000 {
		t.Errorf("WeeklyDownloads = %d, want the slow source's value", s.WeeklyDownloads)
	}
}

func TestResolveConcurrentQueriesDoNotCrossContaminate(t *testing.T) {
	meta, score, downloads := newFakes()
	agg := New(Sources{Metadata: meta, Score: score, Downloads: downloads})

	const rounds = 50
	var wg sync.WaitGroup
	errs := make(chan error, rounds*2)
	for range rounds {
		for _, name := range []string{"react", "vue"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s, err := agg.Resolve(context.Background(), name)
				if err != nil {
					errs <- err
					return
				}
				wantDownloads := downloads.counts[name]
				wantFinal := score.scores[name].Final
				if s.Name != name || s.WeeklyDownloads != wantDownloads || s.Score.Final != wantFinal {
					errs <- fmt.Errorf("%s resolved to %s (downloads %d, final %v)", name, s.Name, s.WeeklyDownloads, s.Score.Final)
				}
				if _, ok := s.Dependencies["loose-envify"]; ok != (name == "react") {
					errs <- fmt.Errorf("%s has dependencies %v", name, s.Dependencies)
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestResolveSummaryDoesNotAliasSourceData(t *testing.T) {
	meta, score, downloads := newFakes()
	agg := New(Sources{Metadata: meta, Score: score, Downloads: downloads})

	s, err := agg.Resolve(context.Background(), "react")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	meta.docs["react"].Dependencies["injected"] = "*"
	meta.docs["react"].Repository.URL = "https://example.com"
	score.scores["react"].Final = 0

	if _, ok := s.Dependencies["injected"]; ok {
		t.Error("summary dependencies alias the source map")
	}
	if s.Repository.URL != "https://github.com/facebook/react" {
		t.Error("summary repository aliases the source value")
	}
	if s.Score.Final != 0.92 {
		t.Error("summary score aliases the source value")
	}
}

func TestResolveReportsAbsorbedFailures(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetResolveHooks(hooks)
	defer observability.Reset()

	meta, score, downloads := newFakes()
	score.err = errors.New("npms down")
	downloads.err = errors.New("downloads down")
	agg := New(Sources{Metadata: meta, Score: score, Downloads: downloads})

	if _, err := agg.Resolve(context.Background(), "react"); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if len(hooks.absorbed) != 2 {
		t.Errorf("absorbed = %v, want score and downloads", hooks.absorbed)
	}
	if len(hooks.complete) != 1 || hooks.complete[0] != nil {
		t.Errorf("complete = %v, want one nil error", hooks.complete)
	}
	id := hooks.queryIDs[0]
	if id == "" {
		t.Fatal("query ID should be assigned")
	}
	for _, got := range hooks.queryIDs {
		if got != id {
			t.Errorf("query IDs differ within one query: %v", hooks.queryIDs)
			break
		}
	}
}

func TestResolveKeepsCallerQueryID(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetResolveHooks(hooks)
	defer observability.Reset()

	meta, _, _ := newFakes()
	agg := New(Sources{Metadata: meta})

	ctx := observability.WithQueryID(context.Background(), "caller-id")
	if _, err := agg.Resolve(ctx, "react"); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if hooks.queryIDs[0] != "caller-id" {
		t.Errorf("query ID = %q, want caller-id", hooks.queryIDs[0])
	}
}

func TestNewPanicsWithoutMetadataSource(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New() should panic without a metadata source")
		}
	}()
	New(Sources{})
}

// =============================================================================
// Compare
// =============================================================================

func TestCompareKeepsRequestOrder(t *testing.T) {
	meta, score, downloads := newFakes()
	agg := New(Sources{Metadata: meta, Score: score, Downloads: downloads})

	got, err := agg.Compare(context.Background(), []string{"vue", "react", "VUE"})
	if err != nil {
		t.Fatalf("Compare() error: %v", err)
	}
	if len(got) != 3 || got[0].Name != "vue" || got[1].Name != "react" || got[2].Name != "vue" {
		t.Errorf("Compare() order = %v", got)
	}
}

func TestCompareFailsWhenAnyRequiredLookupFails(t *testing.T) {
	meta, score, downloads := newFakes()
	agg := New(Sources{Metadata: meta, Score: score, Downloads: downloads})

	got, err := agg.Compare(context.Background(), []string{"react", "left-pad-xyz-nonexistent"})
	if got != nil {
		t.Errorf("Compare() = %v, want nil", got)
	}
	if !pkgerrors.Is(err, pkgerrors.ErrCodePackageNotFound) {
		t.Errorf("Compare() error = %v, want PACKAGE_NOT_FOUND", err)
	}
}

func TestCompareEmpty(t *testing.T) {
	meta, _, _ := newFakes()
	got, err := New(Sources{Metadata: meta}).Compare(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Errorf("Compare(nil) = %v, %v", got, err)
	}
}

// =============================================================================
// PackageURL
// =============================================================================

func TestPackageURL(t *testing.T) {
	tests := []struct {
		name, version, want string
	}{
		{"react", "18.2.0", "pkg:npm/react@18.2.0"},
		{"lodash.merge", "4.6.2", "pkg:npm/lodash.merge@4.6.2"},
	}
	for _, tt := range tests {
		if got := PackageURL(tt.name, tt.version); got != tt.want {
			t.Errorf("PackageURL(%q, %q) = %q, want %q", tt.name, tt.version, got, tt.want)
		}
	}

	if got := PackageURL("@babel/core", "7.24.0"); !strings.HasPrefix(got, "pkg:npm/") || !strings.Contains(got, "core@7.24.0") {
		t.Errorf("PackageURL(scoped) = %q", got)
	}
}
