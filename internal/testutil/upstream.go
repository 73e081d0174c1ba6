// Package testutil provides a fake of every upstream API npmlens talks to.
//
// [Upstream] serves the npm registry, the downloads API, npms.io and
// bundlephobia from in-memory fixtures on a single httptest server, with
// per-route failure injection and hit counting.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// Route identifies one upstream endpoint for failure injection.
type Route string

const (
	RoutePackument   Route = "packument"
	RouteLatest      Route = "latest"
	RouteScore       Route = "score"
	RouteSearch      Route = "search"
	RouteSuggestions Route = "suggestions"
	RoutePoint       Route = "point"
	RouteRange       Route = "range"
	RouteSize        Route = "size"
)

// StatusMalformed makes a route answer 200 with a body that is not JSON.
const StatusMalformed = -1

// Score is an npms score fixture.
type Score struct {
	Final, Quality, Popularity, Maintenance float64
}

// Size is a bundlephobia fixture.
type Size struct {
	Minified, Gzipped int64
	Dependencies      int
}

// Release is an older published version.
type Release struct {
	Version      string
	Published    time.Time
	Dependencies map[string]string
}

// Package is everything the fake upstreams know about one package.
type Package struct {
	Name         string
	Version      string
	Description  string
	Modified     time.Time
	Published    time.Time
	Repository   string
	License      string
	Keywords     []string
	Dependencies map[string]string
	History      []Release

	// Packument replaces the generated registry document when set.
	Packument json.RawMessage

	WeeklyDownloads int64
	Daily           []int64 // oldest first, ending yesterday
	Score           *Score
	Stars           int
	OpenIssues      int
	Size            *Size
}

// Upstream is a chi-routed fake of the registry, downloads, npms and
// bundlephobia APIs.
type Upstream struct {
	server *httptest.Server

	mu       sync.Mutex
	packages map[string]Package
	failures map[Route]int
	hits     map[Route]int
}

// NewUpstream starts a fake upstream that is closed when t finishes.
func NewUpstream(t testing.TB) *Upstream {
	t.Helper()
	u := &Upstream{
		packages: make(map[string]Package),
		failures: make(map[Route]int),
		hits:     make(map[Route]int),
	}

	r := chi.NewRouter()
	r.Route("/registry", func(r chi.Router) {
		r.Get("/{name}", u.handle(RoutePackument, u.packument))
		r.Get("/{name}/latest", u.handle(RouteLatest, u.latest))
	})
	r.Route("/downloads/downloads", func(r chi.Router) {
		r.Get("/point/{period}/{names}", u.handle(RoutePoint, u.point))
		r.Get("/range/{period}/{name}", u.handle(RouteRange, u.rangeDays))
	})
	r.Route("/npms/v2", func(r chi.Router) {
		r.Get("/package/{name}", u.handle(RouteScore, u.npmsPackage))
		r.Get("/search", u.handle(RouteSearch, u.search))
		r.Get("/search/suggestions", u.handle(RouteSuggestions, u.suggestions))
	})
	r.Get("/bundlephobia/api/size", u.handle(RouteSize, u.size))

	u.server = httptest.NewServer(r)
	t.Cleanup(u.server.Close)
	return u
}

// Client returns an HTTP client for the fake server.
func (u *Upstream) Client() *http.Client { return u.server.Client() }

func (u *Upstream) RegistryURL() string     { return u.server.URL + "/registry" }
func (u *Upstream) DownloadsURL() string    { return u.server.URL + "/downloads" }
func (u *Upstream) NpmsURL() string         { return u.server.URL + "/npms" }
func (u *Upstream) BundlephobiaURL() string { return u.server.URL + "/bundlephobia" }

// Add registers fixtures. Names are stored as given; lookups are exact.
func (u *Upstream) Add(pkgs ...Package) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, p := range pkgs {
		u.packages[p.Name] = p
	}
}

// Fail makes route answer with status. Zero clears the failure.
func (u *Upstream) Fail(route Route, status int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if status == 0 {
		delete(u.failures, route)
		return
	}
	u.failures[route] = status
}

// Hits returns how many requests route has received.
func (u *Upstream) Hits(route Route) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[route]
}

func (u *Upstream) handle(route Route, fn func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.hits[route]++
		status := u.failures[route]
		u.mu.Unlock()

		switch {
		case status == StatusMalformed:
			w.Write([]byte(`{"name": `))
		case status != 0:
			w.WriteHeader(status)
		default:
			fn(w, r)
		}
	}
}

func (u *Upstream) lookup(name string) (Package, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	p, ok := u.packages[name]
	return p, ok
}

func param(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if s, err := url.PathUnescape(v); err == nil {
		return s
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
}

func (u *Upstream) packument(w http.ResponseWriter, r *http.Request) {
	p, ok := u.lookup(param(r, "name"))
	if !ok {
		notFound(w)
		return
	}
	if p.Packument != nil {
		w.Header().Set("Content-Type", "application/json")
		w.Write(p.Packument)
		return
	}

	versions := map[string]any{
		p.Version: map[string]any{"version": p.Version, "dependencies": p.Dependencies},
	}
	times := map[string]string{}
	if !p.Modified.IsZero() {
		times["modified"] = p.Modified.UTC().Format(time.RFC3339)
	}
	if !p.Published.IsZero() {
		times[p.Version] = p.Published.UTC().Format(time.RFC3339)
	}
	for _, h := range p.History {
		versions[h.Version] = map[string]any{"version": h.Version, "dependencies": h.Dependencies}
		if !h.Published.IsZero() {
			times[h.Version] = h.Published.UTC().Format(time.RFC3339)
		}
	}

	doc := map[string]any{
		"name":      p.Name,
		"dist-tags": map[string]string{"latest": p.Version},
		"versions":  versions,
		"time":      times,
		"keywords":  p.Keywords,
	}
	if p.Description != "" {
		doc["description"] = p.Description
	}
	if p.License != "" {
		doc["license"] = p.License
	}
	if p.Repository != "" {
		doc["repository"] = map[string]string{"type": "git", "url": "git+" + p.Repository + ".git"}
	}
	writeJSON(w, http.StatusOK, doc)
}

func (u *Upstream) latest(w http.ResponseWriter, r *http.Request) {
	p, ok := u.lookup(param(r, "name"))
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":         p.Name,
		"version":      p.Version,
		"description":  p.Description,
		"dependencies": p.Dependencies,
	})
}

type pointDoc struct {
	Downloads int64  `json:"downloads"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Package   string `json:"package"`
}

func (u *Upstream) point(w http.ResponseWriter, r *http.Request) {
	names := strings.Split(param(r, "names"), ",")
	if len(names) == 1 {
		p, ok := u.lookup(names[0])
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "package " + names[0] + " not found"})
			return
		}
		writeJSON(w, http.StatusOK, pointDoc{Downloads: p.WeeklyDownloads, Package: p.Name})
		return
	}

	out := make(map[string]*pointDoc, len(names))
	for _, n := range names {
		if p, ok := u.lookup(n); ok {
			out[n] = &pointDoc{Downloads: p.WeeklyDownloads, Package: p.Name}
		} else {
			out[n] = nil
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (u *Upstream) rangeDays(w http.ResponseWriter, r *http.Request) {
	name := param(r, "name")
	p, ok := u.lookup(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "package " + name + " not found"})
		return
	}

	type day struct {
		Day       string `json:"day"`
		Downloads int64  `json:"downloads"`
	}
	end := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	days := make([]day, len(p.Daily))
	for i, n := range p.Daily {
		d := end.AddDate(0, 0, i-len(p.Daily)+1)
		days[i] = day{Day: d.Format(time.DateOnly), Downloads: n}
	}
	writeJSON(w, http.StatusOK, map[string]any{"package": p.Name, "downloads": days})
}

type npmsScore struct {
	Final  float64 `json:"final"`
	Detail struct {
		Quality     float64 `json:"quality"`
		Popularity  float64 `json:"popularity"`
		Maintenance float64 `json:"maintenance"`
	} `json:"detail"`
}

func toNpmsScore(s *Score) npmsScore {
	var out npmsScore
	if s != nil {
		out.Final = s.Final
		out.Detail.Quality = s.Quality
		out.Detail.Popularity = s.Popularity
		out.Detail.Maintenance = s.Maintenance
	}
	return out
}

func (u *Upstream) npmsPackage(w http.ResponseWriter, r *http.Request) {
	p, ok := u.lookup(param(r, "name"))
	if !ok || p.Score == nil {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collected": map[string]any{
			"npm": map[string]any{
				"downloads": []map[string]any{{"count": p.WeeklyDownloads}},
			},
			"github": map[string]any{
				"starsCount": p.Stars,
				"issues":     map[string]int{"openCount": p.OpenIssues},
			},
		},
		"score": toNpmsScore(p.Score),
	})
}

type hit struct {
	Package struct {
		Name        string   `json:"name"`
		Version     string   `json:"version"`
		Description string   `json:"description,omitempty"`
		Keywords    []string `json:"keywords,omitempty"`
	} `json:"package"`
	Score npmsScore `json:"score"`
}

func toHit(p Package) hit {
	var h hit
	h.Package.Name = p.Name
	h.Package.Version = p.Version
	h.Package.Description = p.Description
	h.Package.Keywords = p.Keywords
	h.Score = toNpmsScore(p.Score)
	return h
}

// matching returns fixtures accepted by keep, best score first.
func (u *Upstream) matching(keep func(Package) bool) []hit {
	u.mu.Lock()
	var pkgs []Package
	for _, p := range u.packages {
		if keep(p) {
			pkgs = append(pkgs, p)
		}
	}
	u.mu.Unlock()

	final := func(p Package) float64 {
		if p.Score == nil {
			return 0
		}
		return p.Score.Final
	}
	slices.SortFunc(pkgs, func(a, b Package) int {
		if fa, fb := final(a), final(b); fa != fb {
			if fa > fb {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})

	hits := make([]hit, len(pkgs))
	for i, p := range pkgs {
		hits[i] = toHit(p)
	}
	return hits
}

func (u *Upstream) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 {
		size = 25
	}

	var hits []hit
	if kw, ok := strings.CutPrefix(q, "keywords:"); ok {
		hits = u.matching(func(p Package) bool { return slices.Contains(p.Keywords, kw) })
	} else {
		hits = u.matching(func(p Package) bool { return strings.Contains(p.Name, q) })
	}
	if len(hits) > size {
		hits = hits[:size]
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": len(hits), "results": hits})
}

func (u *Upstream) suggestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	hits := u.matching(func(p Package) bool { return strings.HasPrefix(p.Name, q) })
	writeJSON(w, http.StatusOK, hits)
}

func (u *Upstream) size(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("package")
	p, ok := u.lookup(name)
	if !ok || p.Size == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]string{"code": "PackageNotFoundError", "message": "not found"},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":            p.Name,
		"version":         p.Version,
		"size":            p.Size.Minified,
		"gzip":            p.Size.Gzipped,
		"dependencyCount": p.Size.Dependencies,
	})
}
