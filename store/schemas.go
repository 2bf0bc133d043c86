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
	"fmt"
)

const schemaColumns = `id, api_id, name, body_json, references_json, unresolved_json`

func scanSchema(scan func(...any) error) (*Schema, error) {
	var sc Schema
	var bodyJSON, refsJSON, unresolvedJSON string
	if err := scan(&sc.ID, &sc.APIID, &sc.Name, &bodyJSON, &refsJSON, &unresolvedJSON); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(bodyJSON, &sc.Body); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(refsJSON, &sc.References); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(unresolvedJSON, &sc.Unresolved); err != nil {
		return nil, err
	}
	return &sc, nil
}

// GetSchema returns a component schema by name.
func (s *Store) GetSchema(ctx context.Context, apiID int64, name string) (*Schema, error) {
	var sc *Schema
	err := s.withRetry(ctx, func() error {
		row := s.read.QueryRowContext(ctx,
			`SELECT `+schemaColumns+` FROM schemas WHERE api_id = ? AND name = ?`,
			apiID, name)
		got, err := scanSchema(row.Scan)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: schema %q", ErrNotFound, name)
		}
		if err != nil {
			return fmt.Errorf("scanning schema %q: %w", name, err)
		}
		sc = got
		return nil
	})
	return sc, err
}

// GetSchemas returns the named component schemas as a map. Missing
// names are silently absent; the caller decides whether that matters.
func (s *Store) GetSchemas(ctx context.Context, apiID int64, names []string) (map[string]*Schema, error) {
	if len(names) == 0 {
		return map[string]*Schema{}, nil
	}
	args := make([]any, 0, len(names)+1)
	args = append(args, apiID)
	for _, n := range names {
		args = append(args, n)
	}
	out := make(map[string]*Schema, len(names))
	err := s.withRetry(ctx, func() error {
		rows, err := s.read.QueryContext(ctx,
			`SELECT `+schemaColumns+` FROM schemas
			 WHERE api_id = ? AND name IN (`+placeholders(len(names))+`)`,
			args...)
		if err != nil {
			return fmt.Errorf("querying schemas: %w", err)
		}
		defer rows.Close()
		clear(out)
		for rows.Next() {
			sc, err := scanSchema(rows.Scan)
			if err != nil {
				return fmt.Errorf("scanning schema: %w", err)
			}
			out[sc.Name] = sc
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
