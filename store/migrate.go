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
	"database/sql"
	"fmt"
	"strconv"
)

// SchemaVersion is the current store schema version, recorded in
// api_metadata and checked on every open.
const SchemaVersion = 1

// migrations[i] brings a store at version i to version i+1. Statements
// are written to be idempotent so a crashed migration can re-run.
var migrations = [SchemaVersion]string{
	0: `
CREATE TABLE IF NOT EXISTS apis (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL UNIQUE,
	title         TEXT NOT NULL DEFAULT '',
	version       TEXT NOT NULL DEFAULT '',
	digest        TEXT NOT NULL DEFAULT '',
	security_json TEXT NOT NULL DEFAULT '{}',
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS endpoints (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	api_id                INTEGER NOT NULL REFERENCES apis(id) ON DELETE CASCADE,
	path                  TEXT NOT NULL,
	method                TEXT NOT NULL,
	summary               TEXT NOT NULL DEFAULT '',
	description           TEXT NOT NULL DEFAULT '',
	operation_id          TEXT NOT NULL DEFAULT '',
	deprecated            INTEGER NOT NULL DEFAULT 0,
	category              TEXT NOT NULL,
	category_group        TEXT NOT NULL DEFAULT '',
	category_display_name TEXT NOT NULL DEFAULT '',
	tags_json             TEXT NOT NULL DEFAULT '[]',
	parameters_json       TEXT NOT NULL DEFAULT '[]',
	request_body_json     TEXT,
	responses_json        TEXT NOT NULL DEFAULT '{}',
	UNIQUE(api_id, path, method) ON CONFLICT REPLACE
);
CREATE INDEX IF NOT EXISTS idx_endpoints_category ON endpoints(api_id, category);
CREATE INDEX IF NOT EXISTS idx_endpoints_path ON endpoints(api_id, path, method);

CREATE TABLE IF NOT EXISTS schemas (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	api_id          INTEGER NOT NULL REFERENCES apis(id) ON DELETE CASCADE,
	name            TEXT NOT NULL,
	body_json       TEXT NOT NULL DEFAULT '{}',
	references_json TEXT NOT NULL DEFAULT '[]',
	unresolved_json TEXT NOT NULL DEFAULT '[]',
	UNIQUE(api_id, name) ON CONFLICT REPLACE
);

CREATE TABLE IF NOT EXISTS endpoint_categories (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	api_id         INTEGER NOT NULL REFERENCES apis(id) ON DELETE CASCADE,
	name           TEXT NOT NULL,
	display_name   TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	grp            TEXT NOT NULL DEFAULT '',
	endpoint_count INTEGER NOT NULL DEFAULT 0,
	methods_json   TEXT NOT NULL DEFAULT '[]',
	UNIQUE(api_id, name) ON CONFLICT REPLACE
);

CREATE TABLE IF NOT EXISTS endpoint_schema_refs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	api_id      INTEGER NOT NULL REFERENCES apis(id) ON DELETE CASCADE,
	endpoint_id INTEGER NOT NULL REFERENCES endpoints(id) ON DELETE CASCADE,
	schema_name TEXT NOT NULL,
	usage       TEXT NOT NULL CHECK (usage IN ('request', 'response'))
);
CREATE INDEX IF NOT EXISTS idx_schema_refs_name ON endpoint_schema_refs(api_id, schema_name);

CREATE VIRTUAL TABLE IF NOT EXISTS endpoints_fts USING fts5(
	path, summary, description, operation_id, tags, category,
	endpoint_id UNINDEXED
);
`,
}

// migrate applies pending migrations on the write connection. The
// version row lives in api_metadata so a store directory is
// self-describing.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(
		`CREATE TABLE IF NOT EXISTS api_metadata (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("creating api_metadata: %w", err)
	}

	current, err := readSchemaVersion(db)
	if err != nil {
		return err
	}
	if current > SchemaVersion {
		return fmt.Errorf("store schema version %d is newer than supported %d", current, SchemaVersion)
	}

	for v := current; v < SchemaVersion; v++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", v+1, err)
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", v+1, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO api_metadata (key, value) VALUES ('schema_version', ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			strconv.Itoa(v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording schema version %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", v+1, err)
		}
	}
	return nil
}

func readSchemaVersion(db *sql.DB) (int, error) {
	var raw string
	err := db.QueryRow(`SELECT value FROM api_metadata WHERE key = 'schema_version'`).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing schema version %q: %w", raw, err)
	}
	return v, nil
}

// Version reports the store's schema version.
func (s *Store) Version() (int, error) {
	return readSchemaVersion(s.read)
}
