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
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// EndpointQuery is the composed read plan for endpoint search. Empty
// fields are unset filters.
type EndpointQuery struct {
	APIID int64
	// Match is an FTS5 match expression. When set, results are ordered
	// by BM25 rank; otherwise by (path, method).
	Match string
	// Category filters case-insensitively on the stored category name.
	Category string
	// CategoryTag additionally requires the stored tag list to contain
	// this tag (case-insensitive). Used for the category double check.
	CategoryTag string
	// Group filters case-insensitively on the stored category group.
	Group string
	// Methods restricts to the given uppercase HTTP methods.
	Methods []string

	Limit  int
	Offset int
}

// EndpointHit is one search result row. Score is positive,
// higher-is-better, derived from the BM25 rank; zero when the query had
// no keywords.
type EndpointHit struct {
	Endpoint
	Score float64
}

const endpointColumns = `
	e.id, e.api_id, e.path, e.method, e.summary, e.description, e.operation_id,
	e.deprecated, e.category, e.category_group, e.category_display_name,
	e.tags_json, e.parameters_json, e.request_body_json, e.responses_json`

func scanEndpoint(scan func(...any) error) (*Endpoint, error) {
	var ep Endpoint
	var deprecated int
	var tagsJSON, paramsJSON, responsesJSON string
	var bodyJSON sql.NullString
	if err := scan(&ep.ID, &ep.APIID, &ep.Path, &ep.Method, &ep.Summary, &ep.Description,
		&ep.OperationID, &deprecated, &ep.Category, &ep.CategoryGroup,
		&ep.CategoryDisplayName, &tagsJSON, &paramsJSON, &bodyJSON, &responsesJSON); err != nil {
		return nil, fmt.Errorf("scanning endpoint: %w", err)
	}
	ep.Deprecated = deprecated != 0
	if err := unmarshalJSON(tagsJSON, &ep.Tags); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(paramsJSON, &ep.Parameters); err != nil {
		return nil, err
	}
	if bodyJSON.Valid {
		if err := unmarshalJSON(bodyJSON.String, &ep.RequestBody); err != nil {
			return nil, err
		}
	}
	if err := unmarshalJSON(responsesJSON, &ep.Responses); err != nil {
		return nil, err
	}
	return &ep, nil
}

// QueryEndpoints executes a composed endpoint query and returns the
// requested page plus the total match count before pagination.
func (s *Store) QueryEndpoints(ctx context.Context, q EndpointQuery) ([]EndpointHit, int, error) {
	where := []string{"e.api_id = ?"}
	args := []any{q.APIID}
	var join, order string
	selectCols := endpointColumns + ", 0.0 AS rank"

	if q.Match != "" {
		w := s.opts.Weights
		join = fmt.Sprintf(`JOIN (
			SELECT endpoint_id, bm25(endpoints_fts, %g, %g, %g, %g, %g, %g) AS rank
			FROM endpoints_fts WHERE endpoints_fts MATCH ?
		) f ON f.endpoint_id = e.id`,
			w.Path, w.Summary, w.Description, w.OperationID, w.Tags, w.Category)
		args = append([]any{q.Match}, args...)
		selectCols = endpointColumns + ", f.rank AS rank"
		order = "ORDER BY f.rank, e.path, e.method"
	} else {
		order = "ORDER BY e.path, e.method"
	}

	if q.Category != "" {
		where = append(where, "LOWER(e.category) = LOWER(?)")
		args = append(args, q.Category)
	}
	if q.CategoryTag != "" {
		// Tags are stored as a JSON array; containment of the quoted tag
		// is a substring check on the lowered column.
		where = append(where, `instr(LOWER(e.tags_json), LOWER(?)) > 0`)
		args = append(args, `"`+q.CategoryTag+`"`)
	}
	if q.Group != "" {
		where = append(where, "LOWER(e.category_group) = LOWER(?)")
		args = append(args, q.Group)
	}
	if len(q.Methods) > 0 {
		where = append(where, "e.method IN ("+placeholders(len(q.Methods))+")")
		for _, m := range q.Methods {
			args = append(args, m)
		}
	}

	cond := strings.Join(where, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM endpoints e %s WHERE %s`, join, cond)
	err := s.withRetry(ctx, func() error {
		return s.read.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("counting endpoints: %w", err)
	}

	pageQuery := fmt.Sprintf(`SELECT %s FROM endpoints e %s WHERE %s %s LIMIT ? OFFSET ?`,
		selectCols, join, cond, order)
	pageArgs := append(append([]any{}, args...), q.Limit, q.Offset)

	var hits []EndpointHit
	err = s.withRetry(ctx, func() error {
		rows, err := s.read.QueryContext(ctx, pageQuery, pageArgs...)
		if err != nil {
			return fmt.Errorf("querying endpoints: %w", err)
		}
		defer rows.Close()
		hits = hits[:0]
		for rows.Next() {
			var rank float64
			var hit EndpointHit
			ep, err := scanEndpointWithRank(rows, &rank)
			if err != nil {
				return err
			}
			hit.Endpoint = *ep
			if q.Match != "" {
				hit.Score = -rank
			}
			hits = append(hits, hit)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return hits, total, nil
}

func scanEndpointWithRank(rows *sql.Rows, rank *float64) (*Endpoint, error) {
	return scanEndpoint(func(dest ...any) error {
		return rows.Scan(append(dest, rank)...)
	})
}

// GetEndpoint returns an endpoint by its surrogate key.
func (s *Store) GetEndpoint(ctx context.Context, apiID, id int64) (*Endpoint, error) {
	var ep *Endpoint
	err := s.withRetry(ctx, func() error {
		row := s.read.QueryRowContext(ctx,
			`SELECT `+endpointColumns+` FROM endpoints e WHERE e.api_id = ? AND e.id = ?`,
			apiID, id)
		got, err := scanEndpoint(row.Scan)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: endpoint %d", ErrNotFound, id)
			}
			return err
		}
		ep = got
		return nil
	})
	return ep, err
}

// EndpointsByPath returns all methods stored for a canonical path
// template, ordered by method.
func (s *Store) EndpointsByPath(ctx context.Context, apiID int64, path string) ([]Endpoint, error) {
	var out []Endpoint
	err := s.withRetry(ctx, func() error {
		rows, err := s.read.QueryContext(ctx,
			`SELECT `+endpointColumns+` FROM endpoints e
			 WHERE e.api_id = ? AND e.path = ? ORDER BY e.method`,
			apiID, path)
		if err != nil {
			return fmt.Errorf("querying endpoints by path: %w", err)
		}
		defer rows.Close()
		out = out[:0]
		for rows.Next() {
			ep, err := scanEndpoint(rows.Scan)
			if err != nil {
				return err
			}
			out = append(out, *ep)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: endpoint path %q", ErrNotFound, path)
	}
	return out, nil
}

// SchemaUsage lists the endpoints referencing a component schema and
// the usage site of each reference.
func (s *Store) SchemaUsage(ctx context.Context, apiID int64, name string) ([]EndpointUse, error) {
	var uses []EndpointUse
	err := s.withRetry(ctx, func() error {
		rows, err := s.read.QueryContext(ctx, `
			SELECT DISTINCT e.path, e.method, r.usage
			FROM endpoint_schema_refs r
			JOIN endpoints e ON e.id = r.endpoint_id
			WHERE r.api_id = ? AND r.schema_name = ?
			ORDER BY e.path, e.method, r.usage`,
			apiID, name)
		if err != nil {
			return fmt.Errorf("querying schema usage: %w", err)
		}
		defer rows.Close()
		uses = uses[:0]
		for rows.Next() {
			var u EndpointUse
			if err := rows.Scan(&u.Path, &u.Method, &u.Usage); err != nil {
				return fmt.Errorf("scanning schema usage: %w", err)
			}
			uses = append(uses, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return uses, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
