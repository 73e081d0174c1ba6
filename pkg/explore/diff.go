package explore

import (
	"maps"
	"slices"
)

// Change is a dependency whose range differs between two versions.
type Change struct {
	Name string `json:"name"`
	From string `json:"from"`
	To   string `json:"to"`
}

// DependencyDiff lists how the dependencies of one version differ from those
// of another. Every slice is sorted by name.
type DependencyDiff struct {
	Added     []Change `json:"added"`
	Removed   []Change `json:"removed"`
	Changed   []Change `json:"changed"`
	Unchanged int      `json:"unchanged"`
}

// Empty reports whether the two versions declare the same dependencies.
func (d DependencyDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// DiffDependencies compares the dependency map of from with that of to.
func DiffDependencies(from, to map[string]string) DependencyDiff {
	d := DependencyDiff{
		Added:   []Change{},
		Removed: []Change{},
		Changed: []Change{},
	}
	for _, name := range slices.Sorted(maps.Keys(to)) {
		old, ok := from[name]
		switch {
		case !ok:
			d.Added = append(d.Added, Change{Name: name, To: to[name]})
		case old != to[name]:
			d.Changed = append(d.Changed, Change{Name: name, From: old, To: to[name]})
		default:
			d.Unchanged++
		}
	}
	for _, name := range slices.Sorted(maps.Keys(from)) {
		if _, ok := to[name]; !ok {
			d.Removed = append(d.Removed, Change{Name: name, From: from[name]})
		}
	}
	return d
}
