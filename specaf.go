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

// Package specaf turns an OpenAPI specification into a queryable index
// for agent retrieval: ingest parses and persists the normalized form
// once, then fine-grained search, schema, and example operations are
// served from the store without re-reading the specification.
package specaf

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/antflydb/specaf/category"
	"github.com/antflydb/specaf/parse"
	"github.com/antflydb/specaf/store"
)

// DefaultMaxSpecBytes caps the accepted specification size. The parser
// itself is streaming; this bound protects the digest and validation
// passes.
const DefaultMaxSpecBytes = 100 << 20

// IngestOptions drive one specification ingest.
type IngestOptions struct {
	// Source is the specification file. JSON is consumed as a stream;
	// .yaml/.yml sources are converted to JSON first.
	Source string
	// OutputDir receives the store (one directory per specification).
	OutputDir string
	// Name identifies the API in the store; defaults to the source file
	// name without extension.
	Name string
	// Overwrite allows replacing an existing API of the same name.
	Overwrite bool
	// Validate runs a whole-document OpenAPI validation before ingest.
	Validate bool
	// MaxSpecBytes caps the source size; 0 means DefaultMaxSpecBytes.
	MaxSpecBytes int64
	// Timeout bounds the whole ingest. Defaults to 60s.
	Timeout time.Duration

	Store  store.Options
	Logger *zap.Logger
}

// Ingest parses a specification and replaces the named API's contents
// in the output store, atomically. The prior contents survive any
// failure.
func Ingest(ctx context.Context, opts IngestOptions) (*IngestReport, error) {
	started := time.Now()
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxSpecBytes <= 0 {
		opts.MaxSpecBytes = DefaultMaxSpecBytes
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	name := opts.Name
	if name == "" {
		base := filepath.Base(opts.Source)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if name == "" {
		return nil, fmt.Errorf("ingest needs a name or a source file name")
	}

	src, err := openSource(opts)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if opts.Validate {
		data, err := io.ReadAll(src)
		if err != nil {
			return nil, fmt.Errorf("reading specification: %w", err)
		}
		if err := Validate(ctx, data); err != nil {
			return nil, err
		}
		if err := src.Reset(); err != nil {
			return nil, err
		}
	}

	st, err := store.Open(opts.OutputDir, storeOptions(opts.Store, log))
	if err != nil {
		return nil, err
	}
	defer st.Close()

	if !opts.Overwrite {
		exists, err := st.HasAPI(ctx, name)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("api %q already ingested in %s (use overwrite to replace)", name, opts.OutputDir)
		}
	}

	hasher := sha256.New()
	acc, err := consumeSpec(ctx, io.TeeReader(src, hasher))
	if err != nil {
		return nil, err
	}
	// The decoder stops at the end of the top-level value; flush any
	// remainder so the digest covers the whole document.
	if _, err := io.Copy(io.Discard, io.TeeReader(src, hasher)); err != nil {
		return nil, fmt.Errorf("digesting specification: %w", err)
	}
	digest := hex.EncodeToString(hasher.Sum(nil))

	in := acc.buildIngest(name, digest)
	if _, err := st.ReplaceAPI(ctx, in); err != nil {
		return nil, err
	}

	report := &IngestReport{
		RunID:      uuid.NewString(),
		Name:       name,
		Title:      in.API.Title,
		Version:    in.API.Version,
		Digest:     digest,
		Endpoints:  len(in.Endpoints),
		Schemas:    len(in.Schemas),
		Categories: len(in.Categories),
		Warnings:   acc.warnings,
		Duration:   time.Since(started),
	}
	log.Info("ingest complete",
		zap.String("api", name),
		zap.Int("endpoints", report.Endpoints),
		zap.Int("warnings", len(report.Warnings)),
		zap.Duration("took", report.Duration))
	return report, nil
}

// consumeSpec drives the streaming parser and collects its records and
// warnings, the producer and consumers coupled through an errgroup.
func consumeSpec(ctx context.Context, r io.Reader) (*accumulator, error) {
	p := parse.New(r)
	records, errs := p.Stream(ctx)

	acc := newAccumulator()
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		for rec := range records {
			acc.add(rec)
		}
		if err := <-errs; err != nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		for w := range p.Warnings() {
			acc.warn(w)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return acc, nil
}

// accumulator collects parser records until the stream ends. Records
// and warnings arrive on separate goroutines writing disjoint fields.
type accumulator struct {
	info      parse.Info
	tables    category.Tables
	endpoints []*parse.Endpoint
	schemas   []*parse.SchemaDef
	security  store.Security
	warnings  []string
}

func newAccumulator() *accumulator {
	return &accumulator{tables: category.NewTables()}
}

func (a *accumulator) add(rec parse.Record) {
	switch r := rec.(type) {
	case *parse.Info:
		a.info = *r
	case *parse.TagDef:
		a.tables.AddTag(r)
	case *parse.TagGroupDef:
		a.tables.AddGroup(r)
	case *parse.Endpoint:
		a.endpoints = append(a.endpoints, r)
	case *parse.SchemaDef:
		a.schemas = append(a.schemas, r)
	case *parse.SecuritySchemes:
		a.security.Schemes = r.Schemes
	case *parse.SecurityRequirements:
		a.security.Requirements = r.Requirements
	}
}

func (a *accumulator) warn(w parse.Warning) {
	a.warnings = append(a.warnings, w.Path+": "+w.Message)
}

// buildIngest categorizes the endpoints, rolls up the category
// catalog, and shapes everything into the store's ingest input.
// Duplicate (path, method) pairs collapse to the later record before
// counting, matching the store's later-wins upsert.
func (a *accumulator) buildIngest(name, digest string) store.Ingest {
	deduped := make([]*parse.Endpoint, 0, len(a.endpoints))
	index := make(map[string]int, len(a.endpoints))
	for _, ep := range a.endpoints {
		key := ep.Method + " " + ep.Path
		if at, ok := index[key]; ok {
			deduped[at] = ep
			continue
		}
		index[key] = len(deduped)
		deduped = append(deduped, ep)
	}

	rollup := category.NewRollup()
	endpoints := make([]store.Endpoint, 0, len(deduped))
	for _, ep := range deduped {
		assigned := category.Assign(ep.Path, ep.Tags, a.tables)
		rollup.Observe(assigned, ep.Method)
		refs := make([]store.SchemaUse, 0, len(ep.SchemaRefs))
		for _, ref := range ep.SchemaRefs {
			refs = append(refs, store.SchemaUse{Name: ref.Name, Usage: string(ref.Usage)})
		}
		endpoints = append(endpoints, store.Endpoint{
			Path:                ep.Path,
			Method:              ep.Method,
			Summary:             ep.Summary,
			Description:         ep.Description,
			OperationID:         ep.OperationID,
			Deprecated:          ep.Deprecated,
			Category:            assigned.Name,
			CategoryGroup:       assigned.Group,
			CategoryDisplayName: assigned.DisplayName,
			Tags:                ep.Tags,
			Parameters:          ep.Parameters,
			RequestBody:         ep.RequestBody,
			Responses:           ep.Responses,
			SchemaRefs:          refs,
		})
	}

	schemas := make([]store.Schema, 0, len(a.schemas))
	for _, sc := range a.schemas {
		schemas = append(schemas, store.Schema{
			Name:       sc.Name,
			Body:       sc.Body,
			References: sc.References,
		})
	}

	var categories []store.Category
	for _, cat := range rollup.Categories() {
		categories = append(categories, store.Category{
			Name:          cat.Name,
			DisplayName:   cat.DisplayName,
			Description:   cat.Description,
			Group:         cat.Group,
			EndpointCount: cat.EndpointCount,
			Methods:       cat.Methods,
		})
	}

	return store.Ingest{
		API: store.API{
			Name:     name,
			Title:    a.info.Title,
			Version:  a.info.Version,
			Digest:   digest,
			Security: a.security,
		},
		Endpoints:  endpoints,
		Schemas:    schemas,
		Categories: categories,
	}
}

// Open opens an existing store directory for retrieval.
func Open(dir string, opts store.Options) (*store.Store, error) {
	if _, err := os.Stat(filepath.Join(dir, store.DBFileName)); err != nil {
		return nil, fmt.Errorf("no store in %s: %w", dir, err)
	}
	return store.Open(dir, opts)
}

// Status reports what a store directory holds.
func Status(ctx context.Context, dir string) (*StatusReport, error) {
	st, err := Open(dir, store.Options{})
	if err != nil {
		return nil, err
	}
	defer st.Close()

	api, err := st.ActiveAPI(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := st.CountEntities(ctx, api.ID)
	if err != nil {
		return nil, err
	}
	version, err := st.Version()
	if err != nil {
		return nil, err
	}
	return &StatusReport{
		Name:          api.Name,
		Title:         api.Title,
		Version:       api.Version,
		Digest:        api.Digest,
		CreatedAt:     api.CreatedAt,
		Counts:        counts,
		SchemaVersion: version,
	}, nil
}

func storeOptions(opts store.Options, log *zap.Logger) store.Options {
	if opts.Logger == nil {
		opts.Logger = log
	}
	return opts
}
