package kv

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/matzehuels/npmlens/pkg/observability"
)

// DefaultMongoDatabase is the database used by [MongoStore] when none is
// configured.
const DefaultMongoDatabase = "npmlens"

// ErrUnsupportedScheme is returned by [Open] for an unknown store URL scheme.
var ErrUnsupportedScheme = errors.New("unsupported store scheme")

// Store is a string key-value store.
//
// Get reports a missing key with ok == false and a nil error. Implementations
// are safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Options tune the backends opened by [Open].
type Options struct {
	// MongoDatabase is the database holding the kv collection.
	// Defaults to [DefaultMongoDatabase].
	MongoDatabase string
}

// Schemes lists the URL schemes understood by [Open].
var Schemes = []string{"memory", "file", "sqlite", "redis", "rediss", "mongodb", "mongodb+srv"}

// Open connects to the store named by rawURL:
//
//	memory:                       in-process, lost on exit
//	file:/path/to/favorites.json  one JSON object file
//	sqlite:/path/to/npmlens.db    SQLite database
//	redis://host:6379/0           Redis
//	mongodb://host:27017          MongoDB
//
// Every operation on the returned store is reported to the observability
// store hooks.
func Open(ctx context.Context, rawURL string, opts Options) (Store, error) {
	scheme, path, err := Parse(rawURL)
	if err != nil {
		return nil, err
	}

	var s Store
	switch scheme {
	case "memory":
		s = NewMemoryStore()
	case "file":
		s, err = NewFileStore(path)
	case "sqlite":
		s, err = NewSQLiteStore(ctx, path)
	case "redis", "rediss":
		s, err = NewRedisStore(ctx, rawURL)
	case "mongodb", "mongodb+srv":
		db := opts.MongoDatabase
		if db == "" {
			db = DefaultMongoDatabase
		}
		s, err = NewMongoStore(ctx, rawURL, db)
	}
	if err != nil {
		return nil, err
	}
	return &observed{Store: s, backend: scheme}, nil
}

// Parse splits a store URL into its scheme and, for the file based backends,
// the filesystem path. Both "file:rel/path" and "file:///abs/path" forms are
// accepted.
func Parse(rawURL string) (scheme, path string, err error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", "", fmt.Errorf("parse store url: %w", err)
	}
	scheme = strings.ToLower(u.Scheme)
	switch scheme {
	case "memory", "redis", "rediss", "mongodb", "mongodb+srv":
		return scheme, "", nil
	case "file", "sqlite":
		path = u.Opaque
		if path == "" {
			path = u.Host + u.Path
		}
		if path == "" {
			return "", "", fmt.Errorf("store url %q: missing path", rawURL)
		}
		return scheme, path, nil
	case "":
		return "", "", fmt.Errorf("store url %q: missing scheme", rawURL)
	}
	return "", "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
}

// observed reports Get and Set calls to the observability store hooks.
type observed struct {
	Store
	backend string
}

func (o *observed) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := o.Store.Get(ctx, key)
	observability.Store().OnStoreGet(ctx, o.backend, key, ok, err)
	return v, ok, err
}

func (o *observed) Set(ctx context.Context, key, value string) error {
	err := o.Store.Set(ctx, key, value)
	observability.Store().OnStoreSet(ctx, o.backend, key, len(value), err)
	return err
}
