package search

import (
	"context"
	"strings"
	"unicode"

	"github.com/antflydb/specaf/store"
)

// knownMethods are the HTTP methods the index can hold.
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

// SearchRequest are the endpoint-search inputs. Empty or whitespace
// strings mean the filter is unspecified.
type SearchRequest struct {
	Keywords      string
	Methods       []string
	Category      string
	CategoryGroup string
	Page          int // 1-based; 0 means first page
	PerPage       int // 0 means the configured default
}

// Filters echoes the normalized filters a search ran with.
type Filters struct {
	Keywords      string   `json:"keywords"`
	Methods       []string `json:"httpMethods,omitempty"`
	Category      string   `json:"category,omitempty"`
	CategoryGroup string   `json:"categoryGroup,omitempty"`
}

// Pagination echoes the page window.
type Pagination struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// EndpointSummary is one search result.
type EndpointSummary struct {
	EndpointID int64    `json:"endpoint_id"`
	Path       string   `json:"path"`
	Method     string   `json:"method"`
	Summary    string   `json:"summary"`
	Tags       []string `json:"tags"`
	Category   string   `json:"category"`
	Deprecated bool     `json:"deprecated,omitempty"`
	Score      float64  `json:"score"`
}

// SearchResult is the full search response: the page of summaries, the
// total before pagination, and the echoed filters.
type SearchResult struct {
	Endpoints  []EndpointSummary `json:"endpoints"`
	Total      int               `json:"total"`
	Filters    Filters           `json:"filters"`
	Pagination Pagination        `json:"pagination"`
}

// SearchEndpoints runs the filtered endpoint search. Category and
// category-group filters are mutually exclusive; both set is an
// InvalidArgumentError.
func (s *Service) SearchEndpoints(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	res, err := s.do(opSearchEndpoints, func() (any, error) {
		return s.searchEndpoints(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*SearchResult), nil
}

func (s *Service) searchEndpoints(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	keywords := strings.TrimSpace(req.Keywords)
	cat := strings.TrimSpace(req.Category)
	group := strings.TrimSpace(req.CategoryGroup)
	if cat != "" && group != "" {
		return nil, &InvalidArgumentError{
			Field:  "category",
			Reason: "category and categoryGroup are mutually exclusive",
		}
	}
	methods, err := normalizeMethods(req.Methods)
	if err != nil {
		return nil, err
	}
	page := req.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return nil, &InvalidArgumentError{Field: "page", Reason: "must be at least 1"}
	}
	perPage := req.PerPage
	if perPage == 0 {
		perPage = s.cfg.DefaultPerPage
	}
	if perPage < 1 {
		return nil, &InvalidArgumentError{Field: "perPage", Reason: "must be at least 1"}
	}

	api, err := s.st.ActiveAPI(ctx)
	if err != nil {
		return nil, err
	}

	q := store.EndpointQuery{
		APIID:   api.ID,
		Match:   matchExpression(keywords),
		Group:   group,
		Methods: methods,
		Limit:   perPage,
		Offset:  (page - 1) * perPage,
	}
	if cat != "" {
		// The double condition (category equality AND derived-tag
		// containment) isolates categories whose names are substrings
		// of other text. When the tag transformation finds nothing the
		// plain equality result stands.
		q.Category = cat
		q.CategoryTag = DeriveTag(cat)
	}

	hits, total, err := s.st.QueryEndpoints(ctx, q)
	if err != nil {
		return nil, err
	}
	if total == 0 && q.CategoryTag != "" {
		q.CategoryTag = ""
		hits, total, err = s.st.QueryEndpoints(ctx, q)
		if err != nil {
			return nil, err
		}
	}

	summaries := make([]EndpointSummary, 0, len(hits))
	for _, h := range hits {
		summaries = append(summaries, EndpointSummary{
			EndpointID: h.ID,
			Path:       h.Path,
			Method:     h.Method,
			Summary:    h.Summary,
			Tags:       h.Tags,
			Category:   h.Category,
			Deprecated: h.Deprecated,
			Score:      h.Score,
		})
	}
	return &SearchResult{
		Endpoints: summaries,
		Total:     total,
		Filters: Filters{
			Keywords:      keywords,
			Methods:       methods,
			Category:      cat,
			CategoryGroup: group,
		},
		Pagination: Pagination{Page: page, PerPage: perPage},
	}, nil
}

func normalizeMethods(in []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, m := range in {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m == "" || seen[m] {
			continue
		}
		if !knownMethods[m] {
			return nil, &InvalidArgumentError{Field: "httpMethods", Reason: "unknown method " + m}
		}
		seen[m] = true
		out = append(out, m)
	}
	return out, nil
}

// matchExpression turns free-form keywords into an FTS5 match string:
// every token is quoted so user input cannot inject match syntax, and
// tokens combine with the implicit AND.
func matchExpression(keywords string) string {
	fields := strings.FieldsFunc(keywords, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		quoted = append(quoted, `"`+f+`"`)
	}
	return strings.Join(quoted, " ")
}

// DeriveTag maps a category name to the declared-tag spelling used for
// the double check: first character upper-cased, underscores in the
// remainder converted to hyphens. Comparison downstream is
// case-insensitive, so the transformation is best-effort.
func DeriveTag(category string) string {
	runes := []rune(category)
	if len(runes) == 0 {
		return ""
	}
	head := string(unicode.ToUpper(runes[0]))
	tail := strings.ReplaceAll(string(runes[1:]), "_", "-")
	return head + tail
}
