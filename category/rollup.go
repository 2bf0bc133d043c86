package category

import "sort"

// Category is the materialized per-specification summary for one
// category name.
type Category struct {
	Name          string
	DisplayName   string
	Description   string
	Group         string
	EndpointCount int
	Methods       []string // distinct, sorted
}

// Rollup accumulates assignments into one Category per distinct name.
type Rollup struct {
	byName map[string]*rollupEntry
}

type rollupEntry struct {
	cat     Category
	methods map[string]bool
}

// NewRollup returns an empty rollup.
func NewRollup() *Rollup {
	return &Rollup{byName: make(map[string]*rollupEntry)}
}

// Observe records one categorized endpoint. Metadata fields are taken
// from the first observation of a name; counts and method sets
// accumulate across all of them.
func (r *Rollup) Observe(a Assignment, method string) {
	e, ok := r.byName[a.Name]
	if !ok {
		e = &rollupEntry{
			cat: Category{
				Name:        a.Name,
				DisplayName: a.DisplayName,
				Description: a.Description,
				Group:       a.Group,
			},
			methods: make(map[string]bool),
		}
		r.byName[a.Name] = e
	}
	e.cat.EndpointCount++
	if method != "" {
		e.methods[method] = true
	}
}

// Categories returns the accumulated catalog sorted by name.
func (r *Rollup) Categories() []Category {
	out := make([]Category, 0, len(r.byName))
	for _, e := range r.byName {
		cat := e.cat
		cat.Methods = make([]string, 0, len(e.methods))
		for m := range e.methods {
			cat.Methods = append(cat.Methods, m)
		}
		sort.Strings(cat.Methods)
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
