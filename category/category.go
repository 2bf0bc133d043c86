// Package category assigns each endpoint to exactly one category and
// rolls the assignments up into a per-specification catalog.
package category

import (
	"regexp"
	"strings"

	"github.com/antflydb/specaf/parse"
)

// Uncategorized is the reserved fallback category name.
const Uncategorized = "Uncategorized"

// TagMeta is the declared metadata for one tag.
type TagMeta struct {
	Description string
	DisplayName string
}

// Tables holds the specification's tag and tag-group declarations,
// built from the parser's TagDef and TagGroupDef records.
type Tables struct {
	Tags   map[string]TagMeta
	Groups map[string]string // tag name -> group name
}

// NewTables returns empty tables ready for Add calls.
func NewTables() Tables {
	return Tables{
		Tags:   make(map[string]TagMeta),
		Groups: make(map[string]string),
	}
}

// AddTag records a tag definition.
func (t Tables) AddTag(def *parse.TagDef) {
	t.Tags[def.Name] = TagMeta{Description: def.Description, DisplayName: def.DisplayName}
}

// AddGroup records a tag-group definition. A tag claimed by several
// groups keeps the first group, matching declaration order.
func (t Tables) AddGroup(def *parse.TagGroupDef) {
	for _, tag := range def.Tags {
		if _, ok := t.Groups[tag]; !ok {
			t.Groups[tag] = def.Name
		}
	}
}

// Assignment is the category decision for one endpoint.
type Assignment struct {
	Name        string
	Group       string
	DisplayName string
	Description string
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// Assign resolves the category for an endpoint. The cascade is:
// first declared tag, then the path segment after the prefix and an
// optional version segment, then Uncategorized. Deterministic.
func Assign(path string, tags []string, t Tables) Assignment {
	if len(tags) > 0 {
		a := Assignment{Name: tags[0]}
		if meta, ok := t.Tags[tags[0]]; ok {
			a.Description = meta.Description
			a.DisplayName = meta.DisplayName
		}
		if group, ok := t.Groups[tags[0]]; ok {
			a.Group = group
		}
		return a
	}
	if name, ok := FromPath(path); ok {
		return Assignment{Name: name}
	}
	return Assignment{Name: Uncategorized}
}

// FromPath derives a category from a path of the form
// /<prefix>/<version>?/<segment>/... The segment is lower-cased with
// underscores preserved. Template placeholders never become categories.
func FromPath(path string) (string, bool) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) < 2 || segs[0] == "" {
		return "", false
	}
	idx := 1
	if versionSegment.MatchString(segs[1]) {
		if len(segs) < 3 {
			return "", false
		}
		idx = 2
	}
	seg := segs[idx]
	if seg == "" || strings.HasPrefix(seg, "{") {
		return "", false
	}
	return strings.ToLower(seg), true
}
