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
	"strings"

	"go.uber.org/zap"
)

// Ingest is the full normalized content of one specification.
type Ingest struct {
	API        API
	Endpoints  []Endpoint
	Schemas    []Schema
	Categories []Category
}

// ReplaceAPI persists an ingest in a single transaction. An existing
// API with the same name is deleted first (cascading to endpoints,
// schemas, categories, and index entries), then the new rows are
// inserted and the full-text index is rebuilt from the inserted
// endpoints. A failure at any point rolls back, leaving the prior
// contents intact.
func (s *Store) ReplaceAPI(ctx context.Context, in Ingest) (int64, error) {
	if err := checkIntegrity(in); err != nil {
		return 0, err
	}
	resolveReferences(in.Schemas)

	var apiID int64
	err := s.withRetry(ctx, func() error {
		tx, err := s.write.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning ingest transaction: %w", err)
		}
		defer tx.Rollback()

		apiID, err = s.replaceAPITx(ctx, tx, in)
		if err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("specification ingested",
		zap.String("api", in.API.Name),
		zap.Int("endpoints", len(in.Endpoints)),
		zap.Int("schemas", len(in.Schemas)),
		zap.Int("categories", len(in.Categories)))
	return apiID, nil
}

// checkIntegrity verifies the category invariants before touching the
// database: every endpoint category has a summary row, counts match,
// and the method sets match.
func checkIntegrity(in Ingest) error {
	counts := make(map[string]int)
	methods := make(map[string]map[string]bool)
	for _, ep := range in.Endpoints {
		if ep.Category == "" {
			return fmt.Errorf("%w: endpoint %s %s has empty category", ErrIntegrity, ep.Method, ep.Path)
		}
		counts[ep.Category]++
		if methods[ep.Category] == nil {
			methods[ep.Category] = make(map[string]bool)
		}
		methods[ep.Category][ep.Method] = true
	}
	declared := make(map[string]Category, len(in.Categories))
	for _, cat := range in.Categories {
		declared[cat.Name] = cat
	}
	for name, cat := range declared {
		if counts[name] == 0 && cat.EndpointCount != 0 {
			return fmt.Errorf("%w: category %q declares %d endpoints but has none", ErrIntegrity, name, cat.EndpointCount)
		}
	}
	for name, n := range counts {
		cat, ok := declared[name]
		if !ok {
			return fmt.Errorf("%w: category %q has endpoints but no summary row", ErrIntegrity, name)
		}
		if cat.EndpointCount != n {
			return fmt.Errorf("%w: category %q count %d, endpoints %d", ErrIntegrity, name, cat.EndpointCount, n)
		}
		if len(cat.Methods) != len(methods[name]) {
			return fmt.Errorf("%w: category %q method set mismatch", ErrIntegrity, name)
		}
		for _, m := range cat.Methods {
			if !methods[name][m] {
				return fmt.Errorf("%w: category %q method set mismatch", ErrIntegrity, name)
			}
		}
	}
	return nil
}

// resolveReferences splits each schema's references into those that
// resolve within this ingest and those that do not.
func resolveReferences(schemas []Schema) {
	names := make(map[string]bool, len(schemas))
	for _, sc := range schemas {
		names[sc.Name] = true
	}
	for i := range schemas {
		var resolved, unresolved []string
		for _, ref := range schemas[i].References {
			if names[ref] {
				resolved = append(resolved, ref)
			} else {
				unresolved = append(unresolved, ref)
			}
		}
		schemas[i].References = resolved
		schemas[i].Unresolved = unresolved
	}
}

func (s *Store) replaceAPITx(ctx context.Context, tx *sql.Tx, in Ingest) (int64, error) {
	// FTS rows do not cascade; clear them for the API being replaced.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM endpoints_fts WHERE endpoint_id IN (
			SELECT e.id FROM endpoints e JOIN apis a ON a.id = e.api_id WHERE a.name = ?
		)`, in.API.Name); err != nil {
		return 0, fmt.Errorf("clearing full-text index: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM apis WHERE name = ?`, in.API.Name); err != nil {
		return 0, fmt.Errorf("deleting previous specification: %w", err)
	}

	securityJSON, err := marshalJSON(in.API.Security)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO apis (name, title, version, digest, security_json) VALUES (?, ?, ?, ?, ?)`,
		in.API.Name, in.API.Title, in.API.Version, in.API.Digest, securityJSON)
	if err != nil {
		return 0, fmt.Errorf("inserting api: %w", err)
	}
	apiID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading api id: %w", err)
	}

	if err := insertEndpoints(ctx, tx, apiID, in.Endpoints); err != nil {
		return 0, err
	}
	if err := insertSchemas(ctx, tx, apiID, in.Schemas); err != nil {
		return 0, err
	}
	if err := insertCategories(ctx, tx, apiID, in.Categories); err != nil {
		return 0, err
	}
	if err := rebuildFTS(ctx, tx, apiID); err != nil {
		return 0, err
	}
	return apiID, nil
}

func insertEndpoints(ctx context.Context, tx *sql.Tx, apiID int64, endpoints []Endpoint) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO endpoints (
			api_id, path, method, summary, description, operation_id, deprecated,
			category, category_group, category_display_name,
			tags_json, parameters_json, request_body_json, responses_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing endpoint insert: %w", err)
	}
	defer stmt.Close()

	refStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO endpoint_schema_refs (api_id, endpoint_id, schema_name, usage)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing schema ref insert: %w", err)
	}
	defer refStmt.Close()

	for _, ep := range endpoints {
		tagsJSON, err := marshalJSON(orEmptySlice(ep.Tags))
		if err != nil {
			return err
		}
		paramsJSON, err := marshalJSON(orEmptySlice(ep.Parameters))
		if err != nil {
			return err
		}
		var bodyJSON any
		if ep.RequestBody != nil {
			raw, err := marshalJSON(ep.RequestBody)
			if err != nil {
				return err
			}
			bodyJSON = raw
		}
		responsesJSON, err := marshalJSON(orEmptyMap(ep.Responses))
		if err != nil {
			return err
		}

		res, err := stmt.ExecContext(ctx,
			apiID, ep.Path, ep.Method, ep.Summary, ep.Description, ep.OperationID,
			boolToInt(ep.Deprecated), ep.Category, ep.CategoryGroup, ep.CategoryDisplayName,
			tagsJSON, paramsJSON, bodyJSON, responsesJSON)
		if err != nil {
			return fmt.Errorf("inserting endpoint %s %s: %w", ep.Method, ep.Path, err)
		}
		endpointID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading endpoint id: %w", err)
		}
		for _, ref := range ep.SchemaRefs {
			if _, err := refStmt.ExecContext(ctx, apiID, endpointID, ref.Name, ref.Usage); err != nil {
				return fmt.Errorf("inserting schema ref %s: %w", ref.Name, err)
			}
		}
	}
	return nil
}

func insertSchemas(ctx context.Context, tx *sql.Tx, apiID int64, schemas []Schema) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO schemas (api_id, name, body_json, references_json, unresolved_json)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing schema insert: %w", err)
	}
	defer stmt.Close()

	for _, sc := range schemas {
		bodyJSON, err := marshalJSON(orEmptyObject(sc.Body))
		if err != nil {
			return err
		}
		refsJSON, err := marshalJSON(orEmptySlice(sc.References))
		if err != nil {
			return err
		}
		unresolvedJSON, err := marshalJSON(orEmptySlice(sc.Unresolved))
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, apiID, sc.Name, bodyJSON, refsJSON, unresolvedJSON); err != nil {
			return fmt.Errorf("inserting schema %s: %w", sc.Name, err)
		}
	}
	return nil
}

func insertCategories(ctx context.Context, tx *sql.Tx, apiID int64, categories []Category) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO endpoint_categories
			(api_id, name, display_name, description, grp, endpoint_count, methods_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing category insert: %w", err)
	}
	defer stmt.Close()

	for _, cat := range categories {
		methodsJSON, err := marshalJSON(orEmptySlice(cat.Methods))
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			apiID, cat.Name, cat.DisplayName, cat.Description, cat.Group,
			cat.EndpointCount, methodsJSON); err != nil {
			return fmt.Errorf("inserting category %s: %w", cat.Name, err)
		}
	}
	return nil
}

// ftsRow is the tokenized mirror of one endpoint, built by reading the
// endpoint back after insert so the index always reflects stored rows.
type ftsRow struct {
	id          int64
	path        string
	summary     string
	description string
	operationID string
	tags        string
	category    string
}

func rebuildFTS(ctx context.Context, tx *sql.Tx, apiID int64) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, path, summary, description, operation_id, tags_json, category
		FROM endpoints WHERE api_id = ?`, apiID)
	if err != nil {
		return fmt.Errorf("reading endpoints back for indexing: %w", err)
	}
	var ftsRows []ftsRow
	for rows.Next() {
		var r ftsRow
		var tagsJSON string
		if err := rows.Scan(&r.id, &r.path, &r.summary, &r.description, &r.operationID, &tagsJSON, &r.category); err != nil {
			rows.Close()
			return fmt.Errorf("scanning endpoint for indexing: %w", err)
		}
		var tags []string
		if err := unmarshalJSON(tagsJSON, &tags); err != nil {
			rows.Close()
			return err
		}
		r.tags = strings.Join(tags, " ")
		ftsRows = append(ftsRows, r)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("closing endpoint scan: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO endpoints_fts (path, summary, description, operation_id, tags, category, endpoint_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing index insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range ftsRows {
		if _, err := stmt.ExecContext(ctx,
			r.path, r.summary, r.description, r.operationID, r.tags, r.category, r.id); err != nil {
			return fmt.Errorf("indexing endpoint %d: %w", r.id, err)
		}
	}
	return nil
}

// RemoveAPI deletes a specification and everything it owns.
func (s *Store) RemoveAPI(ctx context.Context, name string) error {
	return s.withRetry(ctx, func() error {
		tx, err := s.write.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning removal: %w", err)
		}
		defer tx.Rollback()
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM endpoints_fts WHERE endpoint_id IN (
				SELECT e.id FROM endpoints e JOIN apis a ON a.id = e.api_id WHERE a.name = ?
			)`, name); err != nil {
			return fmt.Errorf("clearing full-text index: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM apis WHERE name = ?`, name)
		if err != nil {
			return fmt.Errorf("deleting specification: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: api %q", ErrNotFound, name)
		}
		return tx.Commit()
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func orEmptySlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func orEmptyMap(m map[string]map[string]any) map[string]map[string]any {
	if m == nil {
		return map[string]map[string]any{}
	}
	return m
}

func orEmptyObject(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
