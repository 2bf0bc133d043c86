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

package server

import (
	"context"
	"encoding/json"

	"github.com/bytedance/sonic"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// toolSchemas are the JSON Schemas of the four retrieval methods. The
// endpointId schema deliberately admits both an integer and a string;
// callers pass whichever form is convenient.
var toolSchemas = map[string]string{
	MethodSearchEndpoints: `{
		"type": "object",
		"properties": {
			"keywords": {"type": "string", "description": "Free-text query over path, summary, description, operation id, tags, and category. Empty lists everything."},
			"httpMethods": {"type": "array", "items": {"type": "string"}, "description": "Restrict to these HTTP methods, e.g. [\"GET\", \"POST\"]."},
			"category": {"type": "string", "description": "Restrict to one category (case-insensitive). Mutually exclusive with categoryGroup."},
			"categoryGroup": {"type": "string", "description": "Restrict to one category group (case-insensitive). Mutually exclusive with category."},
			"page": {"type": "integer", "minimum": 1, "default": 1},
			"perPage": {"type": "integer", "minimum": 1, "default": 20}
		}
	}`,
	MethodGetSchema: `{
		"type": "object",
		"properties": {
			"componentName": {"type": "string", "description": "Component schema name to fetch."},
			"maxDepth": {"type": "integer", "minimum": 1, "maximum": 10, "default": 5, "description": "Reference expansion depth."},
			"includeExamples": {"type": "boolean", "default": true}
		},
		"required": ["componentName"]
	}`,
	MethodGetExample: `{
		"type": "object",
		"properties": {
			"endpointId": {
				"oneOf": [{"type": "integer"}, {"type": "string"}],
				"description": "Endpoint id (numeric) or canonical path template."
			},
			"language": {"type": "string", "enum": ["curl", "javascript", "typescript", "python"], "default": "curl"}
		},
		"required": ["endpointId"]
	}`,
	MethodGetCategories: `{
		"type": "object",
		"properties": {
			"categoryGroup": {"type": "string", "description": "Restrict to one category group."},
			"includeEmpty": {"type": "boolean", "default": false},
			"sortBy": {"type": "string", "enum": ["name", "endpointCount", "group"], "default": "name"}
		}
	}`,
}

var toolDescriptions = map[string]string{
	MethodSearchEndpoints: "Search the indexed API endpoints with keyword, category, and method filters. Returns paginated endpoint summaries.",
	MethodGetSchema:       "Fetch a component schema with its transitive references expanded to a bounded depth, plus the endpoints that use it.",
	MethodGetExample:      "Generate a runnable request example for an endpoint in curl, javascript, typescript, or python.",
	MethodGetCategories:   "List the endpoint categories of the indexed API with counts, methods, and group aggregation.",
}

// NewMCP wraps the handler's four methods as MCP tools.
func NewMCP(h *Handler, version string) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("specaf", version, mcpserver.WithToolCapabilities(false))
	for _, method := range []string{
		MethodSearchEndpoints, MethodGetSchema, MethodGetExample, MethodGetCategories,
	} {
		method := method
		tool := mcp.NewToolWithRawSchema(method, toolDescriptions[method],
			json.RawMessage(toolSchemas[method]))
		s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			params, err := sonic.Marshal(request.GetArguments())
			if err != nil {
				return mcp.NewToolResultError("malformed arguments: " + err.Error()), nil
			}
			result, rpcErr := h.Handle(ctx, method, params)
			if rpcErr != nil {
				payload, err := sonic.Marshal(rpcErr)
				if err != nil {
					return mcp.NewToolResultError(rpcErr.Message), nil
				}
				return mcp.NewToolResultError(string(payload)), nil
			}
			payload, err := sonic.MarshalIndent(result, "", "  ")
			if err != nil {
				return mcp.NewToolResultError("marshalling result: " + err.Error()), nil
			}
			return mcp.NewToolResultText(string(payload)), nil
		})
	}
	return s
}

// ServeStdio runs the MCP server over stdin/stdout until the client
// disconnects.
func ServeStdio(s *mcpserver.MCPServer) error {
	return mcpserver.ServeStdio(s)
}
