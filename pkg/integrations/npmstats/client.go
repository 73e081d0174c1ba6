// Package npmstats provides an HTTP client for the npm download-counts API
// (https://api.npmjs.org/downloads).
//
// Counts are available as a single total over a period ([Client.Point]),
// as totals for several packages in one request ([Client.BulkPoint]), and as
// a per-day series ([Client.Range]).
package npmstats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/npmlens/pkg/integrations"
)

// Period names a window understood by the downloads API.
type Period string

const (
	LastDay   Period = "last-day"
	LastWeek  Period = "last-week"
	LastMonth Period = "last-month"
	LastYear  Period = "last-year"
)

// ErrScopedBulk is returned when a bulk query includes a scoped name; the
// API only accepts unscoped names in bulk.
var ErrScopedBulk = errors.New("bulk download queries do not support scoped packages")

// Count is the total number of downloads of one package over a period.
type Count struct {
	Package   string
	Downloads int64
	Start     string
	End       string
}

// Day is the download count of a single day.
type Day struct {
	Date      time.Time
	Downloads int64
}

type pointResponse struct {
	Downloads int64  `json:"downloads"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Package   string `json:"package"`
}

type rangeResponse struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Package   string `json:"package"`
	Downloads []struct {
		Day       string `json:"day"`
		Downloads int64  `json:"downloads"`
	} `json:"downloads"`
}

type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a downloads client. An empty baseURL selects
// [integrations.DefaultDownloadsURL].
func NewClient(baseURL string, opts ...integrations.Option) *Client {
	if baseURL == "" {
		baseURL = integrations.DefaultDownloadsURL
	}
	return &Client{
		Client:  integrations.NewClient(nil, opts...),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Point returns the total downloads of name over period.
func (c *Client) Point(ctx context.Context, name string, period Period) (*Count, error) {
	var resp pointResponse
	url := fmt.Sprintf("%s/downloads/point/%s/%s", c.baseURL, period, integrations.PathEscapeName(name))
	if err := c.Get(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("downloads for %s: %w", name, err)
	}
	return &Count{
		Package:   name,
		Downloads: resp.Downloads,
		Start:     resp.Start,
		End:       resp.End,
	}, nil
}

// BulkPoint returns the total downloads over period for every name in one
// request. Packages the API does not know are absent from the result.
func (c *Client) BulkPoint(ctx context.Context, names []string, period Period) (map[string]int64, error) {
	for _, n := range names {
		if strings.HasPrefix(n, "@") {
			return nil, fmt.Errorf("%w: %s", ErrScopedBulk, n)
		}
	}
	out := make(map[string]int64, len(names))
	switch len(names) {
	case 0:
		return out, nil
	case 1:
		// A single name yields the plain point shape, not a keyed object.
		cnt, err := c.Point(ctx, names[0], period)
		if err != nil {
			return nil, err
		}
		out[names[0]] = cnt.Downloads
		return out, nil
	}

	var resp map[string]*pointResponse
	url := fmt.Sprintf("%s/downloads/point/%s/%s", c.baseURL, period, strings.Join(names, ","))
	if err := c.Get(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("bulk downloads: %w", err)
	}
	for name, p := range resp {
		if p != nil {
			out[name] = p.Downloads
		}
	}
	return out, nil
}

// Range returns per-day downloads of name over period, oldest first.
func (c *Client) Range(ctx context.Context, name string, period Period) ([]Day, error) {
	var resp rangeResponse
	url := fmt.Sprintf("%s/downloads/range/%s/%s", c.baseURL, period, integrations.PathEscapeName(name))
	if err := c.Get(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("download range for %s: %w", name, err)
	}

	days := make([]Day, 0, len(resp.Downloads))
	for _, d := range resp.Downloads {
		t, err := time.Parse(time.DateOnly, d.Day)
		if err != nil {
			return nil, fmt.Errorf("download range for %s: %w: bad day %q", name, integrations.ErrMalformed, d.Day)
		}
		days = append(days, Day{Date: t, Downloads: d.Downloads})
	}
	return days, nil
}
