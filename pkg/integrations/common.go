package integrations

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matzehuels/npmlens/pkg/httputil"
)

const (
	httpTimeout       = 10 * time.Second
	defaultAttempts   = 3
	defaultRetryDelay = 500 * time.Millisecond
)

// Default upstream base URLs.
const (
	DefaultRegistryURL     = "https://registry.npmjs.org"
	DefaultDownloadsURL    = "https://api.npmjs.org"
	DefaultNpmsURL         = "https://api.npms.io"
	DefaultBundlephobiaURL = "https://bundlephobia.com"
)

var (
	// ErrNotFound is returned when a package or resource doesn't exist upstream.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for transport failures and unexpected statuses.
	ErrNetwork = errors.New("network error")

	// ErrRateLimited is returned for 429 responses once retries are exhausted.
	ErrRateLimited = errors.New("rate limited by upstream")

	// ErrUpstreamDown is returned for 5xx responses and open circuit breakers.
	ErrUpstreamDown = errors.New("upstream unavailable")

	// ErrMalformed is returned when a response body does not match the
	// expected schema.
	ErrMalformed = errors.New("malformed upstream response")
)

// NewHTTPClient creates an HTTP client with a standard timeout and a
// DNS-caching transport.
func NewHTTPClient() *http.Client {
	return httputil.NewClient(httpTimeout)
}

// NormalizePkgName converts a package name to its lookup key: surrounding
// whitespace is trimmed and the name lower-cased. npm names are case
// insensitive for lookup; underscores and dots are significant.
func NormalizePkgName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

var repoURLReplacer = strings.NewReplacer(
	"git@github.com:", "https://github.com/",
	"git://github.com/", "https://github.com/",
	"ssh://git@github.com/", "https://github.com/",
)

// NormalizeRepoURL converts various repository URL formats to canonical HTTPS form.
// Handles git@, git://, ssh:// and git+ prefixes, the github: shorthand, and
// removes .git suffixes. Returns empty string if raw is empty.
func NormalizeRepoURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if rest, ok := strings.CutPrefix(s, "github:"); ok {
		s = "https://github.com/" + rest
	}
	s = strings.TrimPrefix(s, "git+")
	s = repoURLReplacer.Replace(s)
	return strings.TrimSuffix(s, ".git")
}

// PathEscapeName escapes a package name for use as one URL path segment.
// Scoped names keep the leading @ and have their slash encoded, which is what
// the registry and npms expect ("@babel/core" -> "@babel%2Fcore").
func PathEscapeName(name string) string {
	return url.PathEscape(name)
}

// URLEncode percent-encodes a string for use in URL query strings.
// This is a convenience wrapper around [url.QueryEscape].
func URLEncode(s string) string { return url.QueryEscape(s) }
