package npm

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/matzehuels/npmlens/pkg/integrations"
)

// PackageInfo is the registry metadata of a package at its latest version.
type PackageInfo struct {
	Name         string
	Version      string
	Description  string
	Modified     time.Time // zero when the registry omits time.modified
	Repository   *Repository
	License      string
	Homepage     string
	Keywords     []string
	Dependencies map[string]string
}

// VersionInfo is one published version.
type VersionInfo struct {
	Version      string
	Published    time.Time
	Deprecated   string
	Dependencies map[string]string
}

// Manifest is the manifest of a single version.
type Manifest struct {
	Name         string
	Version      string
	Description  string
	License      string
	Dependencies map[string]string
}

type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a registry client. An empty baseURL selects
// [integrations.DefaultRegistryURL].
func NewClient(baseURL string, opts ...integrations.Option) *Client {
	if baseURL == "" {
		baseURL = integrations.DefaultRegistryURL
	}
	return &Client{
		Client:  integrations.NewClient(nil, opts...),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// FetchPackage fetches the packument for key and reduces it to the latest
// version. A document without a name is reported as [integrations.ErrNotFound];
// a null body is [integrations.ErrMalformed].
func (c *Client) FetchPackage(ctx context.Context, key string) (*PackageInfo, error) {
	data, err := c.packument(ctx, key)
	if err != nil {
		return nil, err
	}

	latest := data.DistTags["latest"]
	if latest == "" {
		latest = data.Version
	}

	info := &PackageInfo{
		Name:         data.Name,
		Version:      latest,
		Description:  data.Description,
		Modified:     parseTime(data.Time["modified"]),
		Repository:   data.Repository,
		License:      string(data.License),
		Homepage:     data.Homepage,
		Keywords:     data.Keywords,
		Dependencies: data.Dependencies,
	}
	if v, ok := data.Versions[latest]; ok {
		info.Dependencies = v.Dependencies
		if info.Description == "" {
			info.Description = v.Description
		}
		if !hasURL(info.Repository) {
			info.Repository = v.Repository
		}
		if info.License == "" {
			info.License = string(v.License)
		}
	}
	if hasURL(info.Repository) {
		info.Repository.URL = integrations.NormalizeRepoURL(info.Repository.URL)
	} else {
		info.Repository = nil
	}
	if info.Dependencies == nil {
		info.Dependencies = map[string]string{}
	}
	return info, nil
}

// FetchVersions lists every published version, newest first.
func (c *Client) FetchVersions(ctx context.Context, key string) ([]VersionInfo, error) {
	data, err := c.packument(ctx, key)
	if err != nil {
		return nil, err
	}

	versions := make([]VersionInfo, 0, len(data.Versions))
	for v, m := range data.Versions {
		deps := m.Dependencies
		if deps == nil {
			deps = map[string]string{}
		}
		versions = append(versions, VersionInfo{
			Version:      v,
			Published:    parseTime(data.Time[v]),
			Deprecated:   string(m.Deprecated),
			Dependencies: deps,
		})
	}
	SortVersions(versions)
	return versions, nil
}

// FetchLatest fetches the manifest tagged latest via GET /{name}/latest.
func (c *Client) FetchLatest(ctx context.Context, key string) (*Manifest, error) {
	var m *versionManifest
	url := c.baseURL + "/" + integrations.PathEscapeName(key) + "/latest"
	if err := c.Get(ctx, url, &m); err != nil {
		return nil, fmt.Errorf("npm package %s: %w", key, err)
	}
	if m == nil {
		return nil, fmt.Errorf("npm package %s: %w: null manifest", key, integrations.ErrMalformed)
	}
	if m.Version == "" {
		return nil, fmt.Errorf("npm package %s: %w: manifest without version", key, integrations.ErrNotFound)
	}

	deps := m.Dependencies
	if deps == nil {
		deps = map[string]string{}
	}
	return &Manifest{
		Name:         cmp.Or(m.Name, key),
		Version:      m.Version,
		Description:  m.Description,
		License:      string(m.License),
		Dependencies: deps,
	}, nil
}

func (c *Client) packument(ctx context.Context, key string) (*packument, error) {
	var data *packument
	if err := c.Get(ctx, c.baseURL+"/"+integrations.PathEscapeName(key), &data); err != nil {
		return nil, fmt.Errorf("npm package %s: %w", key, err)
	}
	if data == nil {
		return nil, fmt.Errorf("npm package %s: %w: null document", key, integrations.ErrMalformed)
	}
	if data.Name == "" {
		return nil, fmt.Errorf("npm package %s: %w: document has no name", key, integrations.ErrNotFound)
	}
	return data, nil
}

// SortVersions orders versions newest first: by publish time when both are
// known, otherwise by semantic version.
func SortVersions(versions []VersionInfo) {
	slices.SortStableFunc(versions, func(a, b VersionInfo) int {
		if !a.Published.IsZero() && !b.Published.IsZero() && !a.Published.Equal(b.Published) {
			return b.Published.Compare(a.Published)
		}
		return semver.Compare("v"+b.Version, "v"+a.Version)
	})
}

func hasURL(r *Repository) bool { return r != nil && r.URL != "" }

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
