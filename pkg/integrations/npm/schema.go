package npm

import (
	"bytes"
	"encoding/json"
	"strings"
)

// packument is the registry document returned by GET /{name}.
type packument struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	DistTags    map[string]string          `json:"dist-tags"`
	Versions    map[string]versionManifest `json:"versions"`
	Time        map[string]string          `json:"time"`
	Repository  *Repository                `json:"repository"`
	License     license                    `json:"license"`
	Homepage    string                     `json:"homepage"`
	Keywords    keywords                   `json:"keywords"`

	// Some mirrors inline the latest manifest at the top level.
	Version      string       `json:"version"`
	Dependencies dependencies `json:"dependencies"`
}

// versionManifest is one entry of packument.versions, and also the body of
// GET /{name}/{version}.
type versionManifest struct {
	Name         string       `json:"name"`
	Version      string       `json:"version"`
	Description  string       `json:"description"`
	Dependencies dependencies `json:"dependencies"`
	Repository   *Repository  `json:"repository"`
	License      license      `json:"license"`
	Homepage     string       `json:"homepage"`
	Deprecated   deprecated   `json:"deprecated"`
}

// Repository is the package's source repository.
// The registry stores either a bare URL string or a {type, url} object. Old
// documents hold a list, of which the first entry is used; any other shape
// leaves the repository unset.
type Repository struct {
	Type      string `json:"type,omitempty"`
	URL       string `json:"url"`
	Directory string `json:"directory,omitempty"`
}

func (r *Repository) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = Repository{URL: s}
		return nil
	}
	type plain Repository
	var p plain
	if err := json.Unmarshal(data, &p); err == nil {
		*r = Repository(p)
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil && len(list) > 0 {
		return r.UnmarshalJSON(list[0])
	}
	return nil
}

// dependencies is a name to range map. Early publishes wrote an empty list
// or a string here, which read as no dependencies.
type dependencies map[string]string

func (d *dependencies) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err == nil {
		*d = m
		return nil
	}
	// Objects with non-string ranges keep their string entries.
	var loose map[string]any
	if err := json.Unmarshal(data, &loose); err == nil {
		m = make(map[string]string, len(loose))
		for k, v := range loose {
			if s, ok := v.(string); ok {
				m[k] = s
			}
		}
		*d = m
	}
	return nil
}

// keywords accepts a list or a single comma or space separated string.
type keywords []string

func (k *keywords) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*k = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*k = strings.FieldsFunc(s, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		})
	}
	return nil
}

// license accepts "MIT", {"type": "MIT"} and the legacy [{"type": "MIT"}].
type license string

func (l *license) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = license(s)
		return nil
	}
	var obj struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		*l = license(obj.Type)
		return nil
	}
	var list []struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &list); err == nil && len(list) > 0 {
		*l = license(list[0].Type)
	}
	return nil
}

// deprecated is a deprecation message. Some publishers wrote a boolean.
type deprecated string

func (d *deprecated) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = deprecated(s)
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil && b {
		*d = "deprecated"
	}
	return nil
}
