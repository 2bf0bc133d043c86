package search

import (
	"context"
	"sort"
	"strings"

	"github.com/antflydb/specaf/store"
)

const (
	// DefaultMaxDepth is the reference-expansion depth when the caller
	// leaves it unset.
	DefaultMaxDepth = 5
	// MaxMaxDepth bounds the expansion regardless of the request.
	MaxMaxDepth = 10
)

// SchemaRequest are the schema-retrieval inputs.
type SchemaRequest struct {
	Name string
	// MaxDepth bounds the breadth-first reference expansion, 1-10.
	// 0 means DefaultMaxDepth.
	MaxDepth int
	// IncludeExamples keeps example values in the returned bodies.
	IncludeExamples bool
}

// SchemaResult is a root schema plus its transitive references up to
// the depth cap and the endpoints that use the root.
type SchemaResult struct {
	ComponentName     string                    `json:"componentName"`
	Schema            map[string]any            `json:"schema"`
	ReferencedSchemas map[string]map[string]any `json:"referencedSchemas"`
	UsedBy            []store.EndpointUse       `json:"usedBy"`
	// Unresolved lists reference targets that do not exist in this
	// specification, encountered anywhere in the expansion.
	Unresolved []string `json:"unresolved,omitempty"`
}

// GetSchema fetches a component schema and breadth-first expands its
// outgoing references. Cycles terminate expansion without failure; a
// schema never appears twice in the result.
func (s *Service) GetSchema(ctx context.Context, req SchemaRequest) (*SchemaResult, error) {
	res, err := s.do(opGetSchema, func() (any, error) {
		return s.getSchema(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*SchemaResult), nil
}

func (s *Service) getSchema(ctx context.Context, req SchemaRequest) (*SchemaResult, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &InvalidArgumentError{Field: "componentName", Reason: "must not be empty"}
	}
	depth := req.MaxDepth
	if depth == 0 {
		depth = DefaultMaxDepth
	}
	if depth < 1 || depth > MaxMaxDepth {
		return nil, &InvalidArgumentError{Field: "maxDepth", Reason: "must be between 1 and 10"}
	}

	api, err := s.st.ActiveAPI(ctx)
	if err != nil {
		return nil, err
	}

	root, err := s.st.GetSchema(ctx, api.ID, name)
	if err != nil {
		return nil, err
	}

	result := &SchemaResult{
		ComponentName:     root.Name,
		Schema:            root.Body,
		ReferencedSchemas: make(map[string]map[string]any),
	}

	visited := map[string]bool{root.Name: true}
	unresolved := map[string]bool{}
	for _, u := range root.Unresolved {
		unresolved[u] = true
	}

	frontier := nextFrontier(root.References, visited)
	for level := 1; level <= depth && len(frontier) > 0; level++ {
		batch, err := s.st.GetSchemas(ctx, api.ID, frontier)
		if err != nil {
			return nil, err
		}
		var next []string
		for _, ref := range frontier {
			sc, ok := batch[ref]
			if !ok {
				unresolved[ref] = true
				continue
			}
			visited[ref] = true
			result.ReferencedSchemas[ref] = sc.Body
			for _, u := range sc.Unresolved {
				unresolved[u] = true
			}
			next = append(next, sc.References...)
		}
		frontier = nextFrontier(next, visited)
	}

	for u := range unresolved {
		result.Unresolved = append(result.Unresolved, u)
	}
	sort.Strings(result.Unresolved)

	if !req.IncludeExamples {
		stripExamples(result.Schema)
		for _, body := range result.ReferencedSchemas {
			stripExamples(body)
		}
	}

	uses, err := s.st.SchemaUsage(ctx, api.ID, root.Name)
	if err != nil {
		return nil, err
	}
	result.UsedBy = uses
	return result, nil
}

// nextFrontier dedupes candidate names against everything already
// visited, preserving first-seen order.
func nextFrontier(candidates []string, visited map[string]bool) []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range candidates {
		if visited[c] || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// stripExamples removes example values from a schema body in place.
func stripExamples(v any) {
	switch t := v.(type) {
	case map[string]any:
		delete(t, "example")
		delete(t, "examples")
		for _, val := range t {
			stripExamples(val)
		}
	case []any:
		for _, item := range t {
			stripExamples(item)
		}
	}
}
