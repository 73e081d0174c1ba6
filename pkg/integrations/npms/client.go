// Package npms provides an HTTP client for the npms.io analysis API
// (https://api.npms.io/v2).
//
// npms publishes a quality score per package (final plus quality,
// popularity and maintenance sub-scores, each in [0, 1]), the raw data it was
// computed from, and a search index.
package npms

import (
	"context"
	"fmt"
	"strings"

	"github.com/matzehuels/npmlens/pkg/integrations"
)

// Score is the npms evaluation of a package.
type Score struct {
	Final       float64 `json:"final"`
	Quality     float64 `json:"quality"`
	Popularity  float64 `json:"popularity"`
	Maintenance float64 `json:"maintenance"`
}

// Popularity is the raw popularity data npms collected.
type Popularity struct {
	Downloads  int64 `json:"downloads"`
	Stars      int   `json:"stars"`
	OpenIssues int   `json:"open_issues"`
}

// Result is one search hit.
type Result struct {
	Name        string
	Version     string
	Description string
	Keywords    []string
	Score       float64 // final score in [0, 1]
}

type scoreJSON struct {
	Final  float64 `json:"final"`
	Detail struct {
		Quality     float64 `json:"quality"`
		Popularity  float64 `json:"popularity"`
		Maintenance float64 `json:"maintenance"`
	} `json:"detail"`
}

type packageResponse struct {
	Collected struct {
		NPM struct {
			Downloads []struct {
				From  string `json:"from"`
				To    string `json:"to"`
				Count int64  `json:"count"`
			} `json:"downloads"`
		} `json:"npm"`
		GitHub *struct {
			StarsCount int `json:"starsCount"`
			Issues     struct {
				Count     int `json:"count"`
				OpenCount int `json:"openCount"`
			} `json:"issues"`
		} `json:"github"`
	} `json:"collected"`
	Score *scoreJSON `json:"score"`
}

type searchHit struct {
	Package struct {
		Name        string   `json:"name"`
		Version     string   `json:"version"`
		Description string   `json:"description"`
		Keywords    []string `json:"keywords"`
	} `json:"package"`
	Score       scoreJSON `json:"score"`
	SearchScore float64   `json:"searchScore"`
}

type searchResponse struct {
	Total   int         `json:"total"`
	Results []searchHit `json:"results"`
}

type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates an npms client. An empty baseURL selects
// [integrations.DefaultNpmsURL].
func NewClient(baseURL string, opts ...integrations.Option) *Client {
	if baseURL == "" {
		baseURL = integrations.DefaultNpmsURL
	}
	return &Client{
		Client:  integrations.NewClient(nil, opts...),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Package is the score and collected popularity of one npms document.
// Score is nil when npms has not evaluated the package yet.
type Package struct {
	Score      *Score
	Popularity Popularity
}

// Package fetches the npms document of name once and returns both its score
// and popularity. Missing GitHub data yields zero stars and issues.
func (c *Client) Package(ctx context.Context, name string) (*Package, error) {
	resp, err := c.fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	p := &Package{}
	if s := resp.Score; s != nil {
		p.Score = &Score{
			Final:       s.Final,
			Quality:     s.Detail.Quality,
			Popularity:  s.Detail.Popularity,
			Maintenance: s.Detail.Maintenance,
		}
	}
	if d := resp.Collected.NPM.Downloads; len(d) > 0 {
		p.Popularity.Downloads = d[0].Count
	}
	if gh := resp.Collected.GitHub; gh != nil {
		p.Popularity.Stars = gh.StarsCount
		p.Popularity.OpenIssues = gh.Issues.OpenCount
	}
	return p, nil
}

// Score returns the npms evaluation of name. A document without a score
// object is reported as [integrations.ErrMalformed].
func (c *Client) Score(ctx context.Context, name string) (*Score, error) {
	p, err := c.Package(ctx, name)
	if err != nil {
		return nil, err
	}
	if p.Score == nil {
		return nil, NoScoreError(name)
	}
	return p.Score, nil
}

// Popularity returns the downloads of the most recent collection window,
// GitHub stars and open issues for name.
func (c *Client) Popularity(ctx context.Context, name string) (*Popularity, error) {
	p, err := c.Package(ctx, name)
	if err != nil {
		return nil, err
	}
	return &p.Popularity, nil
}

// NoScoreError is the error for a document of name that carries no score.
func NoScoreError(name string) error {
	return fmt.Errorf("npms score for %s: %w: no score", name, integrations.ErrMalformed)
}

// Suggestions returns autocomplete suggestions for q.
func (c *Client) Suggestions(ctx context.Context, q string) ([]Result, error) {
	var hits []searchHit
	url := c.baseURL + "/v2/search/suggestions?q=" + integrations.URLEncode(q)
	if err := c.Get(ctx, url, &hits); err != nil {
		return nil, fmt.Errorf("npms suggestions for %q: %w", q, err)
	}
	return toResults(hits), nil
}

// Search runs a full-text query and returns at most size results.
// q accepts npms qualifiers such as "keywords:react".
func (c *Client) Search(ctx context.Context, q string, size int) ([]Result, error) {
	var resp searchResponse
	url := fmt.Sprintf("%s/v2/search?q=%s&size=%d", c.baseURL, integrations.URLEncode(q), size)
	if err := c.Get(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("npms search %q: %w", q, err)
	}
	return toResults(resp.Results), nil
}

func (c *Client) fetch(ctx context.Context, name string) (*packageResponse, error) {
	var resp packageResponse
	url := c.baseURL + "/v2/package/" + integrations.PathEscapeName(name)
	if err := c.Get(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("npms package %s: %w", name, err)
	}
	return &resp, nil
}

func toResults(hits []searchHit) []Result {
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		out = append(out, Result{
			Name:        h.Package.Name,
			Version:     h.Package.Version,
			Description: h.Package.Description,
			Keywords:    h.Package.Keywords,
			Score:       h.Score.Final,
		})
	}
	return out
}
