package search

import (
	"context"
	"sort"
	"strings"

	"github.com/antflydb/specaf/store"
)

// CatalogRequest are the category-catalog inputs.
type CatalogRequest struct {
	Group        string
	IncludeEmpty bool
	SortBy       string // name | endpointCount | group; empty means name
}

// CategorySummary is one catalog entry.
type CategorySummary struct {
	Name          string   `json:"name"`
	DisplayName   string   `json:"display_name,omitempty"`
	Description   string   `json:"description,omitempty"`
	Group         string   `json:"group,omitempty"`
	EndpointCount int      `json:"endpoint_count"`
	Methods       []string `json:"methods"`
}

// GroupSummary aggregates the categories of one group.
type GroupSummary struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

// CatalogMetadata carries the top-level totals.
type CatalogMetadata struct {
	TotalEndpoints  int `json:"totalEndpoints"`
	TotalCategories int `json:"totalCategories"`
}

// CatalogResult is the category catalog response.
type CatalogResult struct {
	Categories []CategorySummary `json:"categories"`
	Groups     []GroupSummary    `json:"groups"`
	Metadata   CatalogMetadata   `json:"metadata"`
}

// GetCategories returns the materialized category catalog with its
// group aggregation and totals.
func (s *Service) GetCategories(ctx context.Context, req CatalogRequest) (*CatalogResult, error) {
	res, err := s.do(opGetCategories, func() (any, error) {
		return s.getCategories(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*CatalogResult), nil
}

func (s *Service) getCategories(ctx context.Context, req CatalogRequest) (*CatalogResult, error) {
	sortBy := strings.TrimSpace(req.SortBy)
	switch store.CategorySort(sortBy) {
	case "", store.SortByName, store.SortByEndpointCount, store.SortByGroup:
	default:
		return nil, &InvalidArgumentError{
			Field:  "sortBy",
			Reason: `must be one of "name", "endpointCount", "group"`,
		}
	}

	api, err := s.st.ActiveAPI(ctx)
	if err != nil {
		return nil, err
	}

	cats, err := s.st.ListCategories(ctx, store.CategoryFilter{
		APIID:        api.ID,
		Group:        strings.TrimSpace(req.Group),
		IncludeEmpty: req.IncludeEmpty,
		SortBy:       store.CategorySort(sortBy),
	})
	if err != nil {
		return nil, err
	}

	result := &CatalogResult{Categories: make([]CategorySummary, 0, len(cats))}
	grouped := make(map[string][]string)
	for _, cat := range cats {
		result.Categories = append(result.Categories, CategorySummary{
			Name:          cat.Name,
			DisplayName:   cat.DisplayName,
			Description:   cat.Description,
			Group:         cat.Group,
			EndpointCount: cat.EndpointCount,
			Methods:       cat.Methods,
		})
		result.Metadata.TotalEndpoints += cat.EndpointCount
		if cat.Group != "" {
			grouped[cat.Group] = append(grouped[cat.Group], cat.Name)
		}
	}
	result.Metadata.TotalCategories = len(cats)

	result.Groups = make([]GroupSummary, 0, len(grouped))
	for name, members := range grouped {
		sort.Strings(members)
		result.Groups = append(result.Groups, GroupSummary{Name: name, Categories: members})
	}
	sort.Slice(result.Groups, func(i, j int) bool {
		return result.Groups[i].Name < result.Groups[j].Name
	})
	return result, nil
}
