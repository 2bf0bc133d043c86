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

// Package server exposes the retrieval operations as JSON-RPC methods
// with stable names and parameter shapes, and serves them as MCP tools
// over stdio. The transport collaborator does the framing; Handle is
// the method-dispatch contract it calls into.
package server

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/antflydb/specaf/render"
	"github.com/antflydb/specaf/search"
)

// Method names of the retrieval protocol.
const (
	MethodSearchEndpoints = "searchEndpoints"
	MethodGetSchema       = "getSchema"
	MethodGetExample      = "getExample"
	MethodGetCategories   = "getEndpointCategories"
)

// Config tunes the server layer.
type Config struct {
	// Timeout bounds each retrieval operation. Defaults to 30s.
	Timeout time.Duration
	// Logger defaults to a nop logger.
	Logger *zap.Logger
	// Registerer receives the server metrics. Defaults to the global
	// Prometheus registerer.
	Registerer prometheus.Registerer
}

// Handler dispatches protocol methods onto the retrieval plane.
type Handler struct {
	search  *search.Service
	render  *render.Renderer
	timeout time.Duration
	log     *zap.Logger
	metrics *metrics
}

// NewHandler builds a Handler over a search service and a renderer.
func NewHandler(searchSvc *search.Service, renderer *render.Renderer, cfg Config) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	return &Handler{
		search:  searchSvc,
		render:  renderer,
		timeout: cfg.Timeout,
		log:     cfg.Logger,
		metrics: newMetrics(cfg.Registerer),
	}
}

type searchParams struct {
	Keywords      string   `json:"keywords"`
	HTTPMethods   []string `json:"httpMethods"`
	Category      string   `json:"category"`
	CategoryGroup string   `json:"categoryGroup"`
	Page          int      `json:"page"`
	PerPage       int      `json:"perPage"`
}

type schemaParams struct {
	ComponentName   string `json:"componentName"`
	MaxDepth        *int   `json:"maxDepth"`
	IncludeExamples *bool  `json:"includeExamples"`
}

type exampleParams struct {
	EndpointID any    `json:"endpointId"`
	Language   string `json:"language"`
}

type categoryParams struct {
	CategoryGroup string `json:"categoryGroup"`
	IncludeEmpty  bool   `json:"includeEmpty"`
	SortBy        string `json:"sortBy"`
}

// Handle executes one protocol method. The params are the raw JSON-RPC
// params object; nil means no params. Errors are always the structured
// envelope.
func (h *Handler) Handle(ctx context.Context, method string, params []byte) (any, *RPCError) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	result, rpcErr := h.dispatch(ctx, method, params)

	status := "ok"
	if rpcErr != nil {
		status = "error"
		h.log.Debug("method failed",
			zap.String("method", method),
			zap.Int("code", rpcErr.Code),
			zap.String("message", rpcErr.Message))
	}
	h.metrics.observe(method, status, time.Since(start))
	return result, rpcErr
}

func (h *Handler) dispatch(ctx context.Context, method string, params []byte) (any, *RPCError) {
	if len(params) == 0 {
		params = []byte("{}")
	}
	switch method {
	case MethodSearchEndpoints:
		var p searchParams
		if err := sonic.Unmarshal(params, &p); err != nil {
			return nil, invalidParams("malformed params: "+err.Error(), nil)
		}
		res, err := h.search.SearchEndpoints(ctx, search.SearchRequest{
			Keywords:      p.Keywords,
			Methods:       p.HTTPMethods,
			Category:      p.Category,
			CategoryGroup: p.CategoryGroup,
			Page:          p.Page,
			PerPage:       p.PerPage,
		})
		if err != nil {
			return nil, toRPCError(err)
		}
		return res, nil

	case MethodGetSchema:
		var p schemaParams
		if err := sonic.Unmarshal(params, &p); err != nil {
			return nil, invalidParams("malformed params: "+err.Error(), nil)
		}
		req := search.SchemaRequest{Name: p.ComponentName, IncludeExamples: true}
		if p.MaxDepth != nil {
			req.MaxDepth = *p.MaxDepth
		}
		if p.IncludeExamples != nil {
			req.IncludeExamples = *p.IncludeExamples
		}
		res, err := h.search.GetSchema(ctx, req)
		if err != nil {
			return nil, toRPCError(err)
		}
		return res, nil

	case MethodGetExample:
		var p exampleParams
		if err := sonic.Unmarshal(params, &p); err != nil {
			return nil, invalidParams("malformed params: "+err.Error(), nil)
		}
		ref, err := render.RefFromAny(p.EndpointID)
		if err != nil {
			return nil, invalidParams(err.Error(), map[string]any{"field": "endpointId"})
		}
		res, err := h.render.Render(ctx, ref, p.Language)
		if err != nil {
			return nil, toRPCError(err)
		}
		return res, nil

	case MethodGetCategories:
		var p categoryParams
		if err := sonic.Unmarshal(params, &p); err != nil {
			return nil, invalidParams("malformed params: "+err.Error(), nil)
		}
		res, err := h.search.GetCategories(ctx, search.CatalogRequest{
			Group:        p.CategoryGroup,
			IncludeEmpty: p.IncludeEmpty,
			SortBy:       p.SortBy,
		})
		if err != nil {
			return nil, toRPCError(err)
		}
		return res, nil
	}
	return nil, &RPCError{Code: CodeMethodNotFound, Message: "unknown method " + method}
}
