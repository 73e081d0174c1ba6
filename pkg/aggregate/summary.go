package aggregate

import (
	"strings"
	"time"

	packageurl "github.com/package-url/packageurl-go"
)

// Score is the quality evaluation of a package. Every value is in [0, 1].
type Score struct {
	Final       float64 `json:"final"`
	Quality     float64 `json:"quality"`
	Popularity  float64 `json:"popularity"`
	Maintenance float64 `json:"maintenance"`
}

// Repository is the package's source repository as published.
type Repository struct {
	Type      string `json:"type,omitempty"`
	URL       string `json:"url"`
	Directory string `json:"directory,omitempty"`
}

// Metadata is what the required source knows about a package.
type Metadata struct {
	Name         string
	Version      string
	Description  string
	Modified     time.Time
	Repository   *Repository
	License      string
	Dependencies map[string]string
}

// Summary is the merged view of one package.
//
// Identity fields, Repository, Dependencies, License and PURL come from the
// required metadata source. WeeklyDownloads is 0 and Score is nil when the
// corresponding optional source failed.
type Summary struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Description     string            `json:"description,omitempty"`
	PublishedAt     time.Time         `json:"published_at,omitzero"`
	Repository      *Repository       `json:"repository,omitempty"`
	Dependencies    map[string]string `json:"dependencies"`
	WeeklyDownloads int64             `json:"weekly_downloads"`
	Score           *Score            `json:"score,omitempty"`
	License         string            `json:"license,omitempty"`
	PURL            string            `json:"purl"`
}

// PackageURL returns the purl of an npm package, e.g. "pkg:npm/react@18.2.0".
// Scoped names put the scope in the namespace.
func PackageURL(name, version string) string {
	namespace, base := "", name
	if strings.HasPrefix(name, "@") {
		if scope, rest, ok := strings.Cut(name, "/"); ok {
			namespace, base = scope, rest
		}
	}
	return packageurl.NewPackageURL(packageurl.TypeNPM, namespace, base, version, nil, "").ToString()
}
