// Package favorites keeps the user's list of favorite packages in a
// [kv.Store].
//
// The list is stored as a JSON array of package names under the key
// [Key], in the order the packages were added.
package favorites

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	pkgerrors "github.com/matzehuels/npmlens/pkg/errors"
	"github.com/matzehuels/npmlens/pkg/integrations"
	"github.com/matzehuels/npmlens/pkg/kv"
)

// Key is the store key holding the list.
const Key = "favorites"

// List is a favorites list backed by a store. Mutations made through one
// List are serialized; concurrent writers in other processes are not
// coordinated.
type List struct {
	mu    sync.Mutex
	store kv.Store
}

// New returns the favorites list kept in store.
func New(store kv.Store) *List {
	return &List{store: store}
}

// All returns the favorite package names in insertion order.
func (l *List) All(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

// Contains reports whether name is a favorite.
func (l *List) Contains(ctx context.Context, name string) (bool, error) {
	key, err := normalize(name)
	if err != nil {
		return false, err
	}
	names, err := l.All(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(names, key), nil
}

// Add appends name unless it is already a favorite. It reports whether the
// list changed.
func (l *List) Add(ctx context.Context, name string) (bool, error) {
	key, err := normalize(name)
	if err != nil {
		return false, err
	}
	return l.update(ctx, func(names []string) ([]string, bool) {
		if slices.Contains(names, key) {
			return names, false
		}
		return append(names, key), true
	})
}

// Remove deletes name from the list. It reports whether the list changed.
func (l *List) Remove(ctx context.Context, name string) (bool, error) {
	key, err := normalize(name)
	if err != nil {
		return false, err
	}
	return l.update(ctx, func(names []string) ([]string, bool) {
		i := slices.Index(names, key)
		if i < 0 {
			return names, false
		}
		return slices.Delete(names, i, i+1), true
	})
}

// Toggle adds name when absent and removes it when present. It reports
// whether name is a favorite afterwards.
func (l *List) Toggle(ctx context.Context, name string) (bool, error) {
	key, err := normalize(name)
	if err != nil {
		return false, err
	}
	var added bool
	_, err = l.update(ctx, func(names []string) ([]string, bool) {
		if i := slices.Index(names, key); i >= 0 {
			return slices.Delete(names, i, i+1), true
		}
		added = true
		return append(names, key), true
	})
	if err != nil {
		return false, err
	}
	return added, nil
}

func (l *List) update(ctx context.Context, fn func([]string) ([]string, bool)) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	names, err := l.load(ctx)
	if err != nil {
		return false, err
	}
	names, changed := fn(names)
	if !changed {
		return false, nil
	}

	raw, err := json.Marshal(names)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.ErrCodeStore, err, "encode favorites")
	}
	if err := l.store.Set(ctx, Key, string(raw)); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.ErrCodeStore, err, "save favorites")
	}
	return true, nil
}

// load reads the stored list. A value that is not a JSON array of strings is
// an error so that the next write does not silently discard it.
func (l *List) load(ctx context.Context) ([]string, error) {
	raw, ok, err := l.store.Get(ctx, Key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeStore, err, "read favorites")
	}
	if !ok || raw == "" {
		return []string{}, nil
	}

	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeStore, err, "stored favorites are corrupt")
	}

	// Older writers may have left duplicates or unnormalized names.
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = integrations.NormalizePkgName(n)
		if n != "" && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out, nil
}

func normalize(name string) (string, error) {
	key := integrations.NormalizePkgName(name)
	if err := pkgerrors.ValidatePackageName(key); err != nil {
		return "", err
	}
	return key, nil
}
