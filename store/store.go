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

// Package store persists the normalized form of one specification in a
// SQLite database with an FTS5 full-text mirror, and exposes read-only
// repositories for the retrieval plane. The database is single-writer,
// multi-reader: ingests serialize on a dedicated write connection while
// reads go through a pooled connection set.
package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// DBFileName is the database file created inside a store directory.
const DBFileName = "specaf.db"

// Weights are the BM25 column weights used for ranked endpoint search,
// in FTS column order. Higher means a match in that column ranks the
// endpoint higher.
type Weights struct {
	Path        float64
	Summary     float64
	Description float64
	OperationID float64
	Tags        float64
	Category    float64
}

// DefaultWeights ranks path matches above summary, summary above
// description, with operation id, tags, and category trailing.
func DefaultWeights() Weights {
	return Weights{Path: 10, Summary: 5, Description: 3, OperationID: 2, Tags: 1, Category: 1}
}

// Options configures a Store. The zero value is usable.
type Options struct {
	// ReadPool is the maximum number of pooled read connections.
	// Defaults to 5.
	ReadPool int
	// BusyTimeout is the SQLite busy timeout per connection attempt.
	// Defaults to 5s.
	BusyTimeout time.Duration
	// LockRetries bounds the retries of a transiently locked operation
	// before it surfaces ErrUnavailable. Defaults to 3.
	LockRetries uint64
	// Weights are the FTS ranking weights. Zero value means defaults.
	Weights Weights
	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.ReadPool <= 0 {
		o.ReadPool = 5
	}
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = 5 * time.Second
	}
	if o.LockRetries == 0 {
		o.LockRetries = 3
	}
	if o.Weights == (Weights{}) {
		o.Weights = DefaultWeights()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Store is the combined relational tables and full-text index for one
// specification directory.
type Store struct {
	dir   string
	read  *sql.DB
	write *sql.DB
	opts  Options
	log   *zap.Logger
}

// Open opens (creating if needed) the store in dir and applies
// migrations idempotently.
func Open(dir string, opts Options) (*Store, error) {
	opts = opts.withDefaults()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	path := filepath.Join(dir, DBFileName)
	dsn := fmt.Sprintf("file:%s?%s", path, url.Values{
		"_journal_mode": {"WAL"},
		"_busy_timeout": {fmt.Sprintf("%d", opts.BusyTimeout.Milliseconds())},
		"_foreign_keys": {"on"},
	}.Encode())

	write, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening write connection: %w", err)
	}
	write.SetMaxOpenConns(1)

	if err := migrate(write); err != nil {
		write.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}

	read, err := sql.Open("sqlite3", dsn)
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("opening read pool: %w", err)
	}
	read.SetMaxOpenConns(opts.ReadPool)

	opts.Logger.Debug("store opened",
		zap.String("dir", dir),
		zap.Int("read_pool", opts.ReadPool))

	return &Store{
		dir:   dir,
		read:  read,
		write: write,
		opts:  opts,
		log:   opts.Logger,
	}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// Weights returns the configured FTS ranking weights.
func (s *Store) Weights() Weights { return s.opts.Weights }

// Close releases both connection sets.
func (s *Store) Close() error {
	rerr := s.read.Close()
	werr := s.write.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}
