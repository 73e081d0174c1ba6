// Package bundlephobia provides an HTTP client for the bundlephobia size API
// (https://bundlephobia.com/api/size).
package bundlephobia

import (
	"context"
	"fmt"
	"strings"

	"github.com/matzehuels/npmlens/pkg/integrations"
)

// Size describes the cost of adding a package to a browser bundle.
type Size struct {
	Name         string
	Version      string
	Minified     int64 // bytes
	Gzipped      int64 // bytes
	Dependencies int
}

type sizeResponse struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	Size            int64  `json:"size"`
	Gzip            int64  `json:"gzip"`
	DependencyCount int    `json:"dependencyCount"`
	Error           *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a bundlephobia client. An empty baseURL selects
// [integrations.DefaultBundlephobiaURL].
func NewClient(baseURL string, opts ...integrations.Option) *Client {
	if baseURL == "" {
		baseURL = integrations.DefaultBundlephobiaURL
	}
	return &Client{
		Client:  integrations.NewClient(nil, opts...),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Size returns bundle metrics for name, optionally pinned as "name@version".
func (c *Client) Size(ctx context.Context, name string) (*Size, error) {
	var resp sizeResponse
	url := c.baseURL + "/api/size?package=" + integrations.URLEncode(name)
	if err := c.Get(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("bundle size for %s: %w", name, err)
	}
	if resp.Error != nil {
		if resp.Error.Code == "PackageNotFoundError" {
			return nil, fmt.Errorf("bundle size for %s: %w", name, integrations.ErrNotFound)
		}
		return nil, fmt.Errorf("bundle size for %s: %w: %s", name, integrations.ErrNetwork, resp.Error.Message)
	}
	return &Size{
		Name:         resp.Name,
		Version:      resp.Version,
		Minified:     resp.Size,
		Gzipped:      resp.Gzip,
		Dependencies: resp.DependencyCount,
	}, nil
}
