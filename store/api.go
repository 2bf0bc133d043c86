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

const apiColumns = `id, name, title, version, digest, security_json, created_at`

func scanAPI(row *sql.Row) (*API, error) {
	var api API
	var securityJSON string
	err := row.Scan(&api.ID, &api.Name, &api.Title, &api.Version, &api.Digest,
		&securityJSON, &api.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no specification ingested", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning api: %w", err)
	}
	if err := unmarshalJSON(securityJSON, &api.Security); err != nil {
		return nil, err
	}
	return &api, nil
}

// ActiveAPI returns the specification this store serves. One store
// holds one specification; when several rows exist (never produced by
// this package) the newest wins.
func (s *Store) ActiveAPI(ctx context.Context) (*API, error) {
	var api *API
	err := s.withRetry(ctx, func() error {
		var err error
		api, err = scanAPI(s.read.QueryRowContext(ctx,
			`SELECT `+apiColumns+` FROM apis ORDER BY id DESC LIMIT 1`))
		return err
	})
	return api, err
}

// APIByName returns a specification by its identifying name.
func (s *Store) APIByName(ctx context.Context, name string) (*API, error) {
	var api *API
	err := s.withRetry(ctx, func() error {
		var err error
		api, err = scanAPI(s.read.QueryRowContext(ctx,
			`SELECT `+apiColumns+` FROM apis WHERE name = ?`, name))
		return err
	})
	return api, err
}

// HasAPI reports whether a specification with the given name exists.
func (s *Store) HasAPI(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.withRetry(ctx, func() error {
		return s.read.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM apis WHERE name = ?)`, name).Scan(&exists)
	})
	if err != nil {
		return false, fmt.Errorf("checking api existence: %w", err)
	}
	return exists, nil
}

// CountEntities reports the entity counts of one specification.
func (s *Store) CountEntities(ctx context.Context, apiID int64) (Counts, error) {
	var c Counts
	err := s.withRetry(ctx, func() error {
		return s.read.QueryRowContext(ctx, `
			SELECT
				(SELECT COUNT(*) FROM endpoints WHERE api_id = ?),
				(SELECT COUNT(*) FROM schemas WHERE api_id = ?),
				(SELECT COUNT(*) FROM endpoint_categories WHERE api_id = ?)`,
			apiID, apiID, apiID).Scan(&c.Endpoints, &c.Schemas, &c.Categories)
	})
	if err != nil {
		return Counts{}, fmt.Errorf("counting entities: %w", err)
	}
	return c, nil
}
