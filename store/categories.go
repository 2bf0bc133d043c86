/*
Copyright 2025 The Antfly Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package store

import (
	"context"
	"fmt"
)

// CategorySort selects the catalog ordering.
type CategorySort string

const (
	SortByName          CategorySort = "name"
	SortByEndpointCount CategorySort = "endpointCount"
	SortByGroup         CategorySort = "group"
)

// CategoryFilter narrows and orders the category catalog.
type CategoryFilter struct {
	APIID int64
	// Group filters case-insensitively; empty means all groups.
	Group string
	// IncludeEmpty keeps categories with zero endpoints.
	IncludeEmpty bool
	SortBy       CategorySort
}

// ListCategories returns the materialized category summaries.
func (s *Store) ListCategories(ctx context.Context, f CategoryFilter) ([]Category, error) {
	query := `SELECT id, api_id, name, display_name, description, grp, endpoint_count, methods_json
		FROM endpoint_categories WHERE api_id = ?`
	args := []any{f.APIID}
	if f.Group != "" {
		query += ` AND LOWER(grp) = LOWER(?)`
		args = append(args, f.Group)
	}
	if !f.IncludeEmpty {
		query += ` AND endpoint_count > 0`
	}
	switch f.SortBy {
	case SortByEndpointCount:
		query += ` ORDER BY endpoint_count DESC, name`
	case SortByGroup:
		query += ` ORDER BY grp, name`
	default:
		query += ` ORDER BY name`
	}

	var cats []Category
	err := s.withRetry(ctx, func() error {
		rows, err := s.read.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("querying categories: %w", err)
		}
		defer rows.Close()
		cats = cats[:0]
		for rows.Next() {
			var cat Category
			var methodsJSON string
			if err := rows.Scan(&cat.ID, &cat.APIID, &cat.Name, &cat.DisplayName,
				&cat.Description, &cat.Group, &cat.EndpointCount, &methodsJSON); err != nil {
				return fmt.Errorf("scanning category: %w", err)
			}
			if err := unmarshalJSON(methodsJSON, &cat.Methods); err != nil {
				return err
			}
			cats = append(cats, cat)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return cats, nil
}
