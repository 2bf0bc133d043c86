// Package render produces runnable request snippets for stored
// endpoints in several target languages. Rendering is deterministic:
// the same endpoint and language always produce the same code string.
package render

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/antflydb/specaf/store"
)

// BaseURL is the placeholder host used in generated snippets.
const BaseURL = "https://api.example.com"

// UnknownLanguageError reports an unrecognized language tag; it names
// the supported set.
type UnknownLanguageError struct {
	Language  string
	Supported []string
}

func (e *UnknownLanguageError) Error() string {
	return fmt.Sprintf("unknown language %q: supported languages are %s",
		e.Language, strings.Join(e.Supported, ", "))
}

// Metadata describes what a snippet needs to run.
type Metadata struct {
	Method       string   `json:"method"`
	Path         string   `json:"path"`
	Auth         string   `json:"auth,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Example is a rendered request snippet.
type Example struct {
	EndpointID int64    `json:"endpointId"`
	Language   string   `json:"language"`
	Code       string   `json:"code"`
	Metadata   Metadata `json:"metadata"`
}

// request is the language-independent model a language emitter
// consumes.
type request struct {
	Method  string
	URL     string
	Headers []header // ordered
	Body    string   // pretty JSON, empty when no request body
}

type header struct {
	Name  string
	Value string
}

type emitter struct {
	render       func(request) string
	dependencies []string
}

var languages = map[string]emitter{
	"curl":       {render: renderCurl},
	"javascript": {render: renderJavaScript},
	"typescript": {render: renderTypeScript},
	"python":     {render: renderPython, dependencies: []string{"requests"}},
}

// SupportedLanguages lists the language tags the renderer accepts,
// sorted.
func SupportedLanguages() []string {
	out := make([]string, 0, len(languages))
	for lang := range languages {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Renderer reads endpoints and schemas from one store.
type Renderer struct {
	st *store.Store
}

// New builds a Renderer.
func New(st *store.Store) *Renderer {
	return &Renderer{st: st}
}

// Render produces an executable request example for the referenced
// endpoint in the given language.
func (r *Renderer) Render(ctx context.Context, ref EndpointRef, language string) (*Example, error) {
	lang := strings.ToLower(strings.TrimSpace(language))
	if lang == "" {
		lang = "curl"
	}
	em, ok := languages[lang]
	if !ok {
		return nil, &UnknownLanguageError{Language: language, Supported: SupportedLanguages()}
	}

	api, err := r.st.ActiveAPI(ctx)
	if err != nil {
		return nil, err
	}
	ep, err := r.resolve(ctx, api.ID, ref)
	if err != nil {
		return nil, err
	}

	req := request{Method: ep.Method}

	authHeader, authLabel, authQuery := authPlaceholder(api.Security)
	if authHeader.Name != "" {
		req.Headers = append(req.Headers, authHeader)
	}

	if ep.RequestBody != nil {
		resolved, err := resolveBodies(ep, func(names []string) (map[string]*store.Schema, error) {
			return r.st.GetSchemas(ctx, api.ID, names)
		})
		if err != nil {
			return nil, err
		}
		if schema := bodySchema(ep.RequestBody); schema != nil {
			value := exampleValue(schema, resolved, bodyDepth)
			body, err := sonic.ConfigStd.MarshalIndent(value, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("marshalling example body: %w", err)
			}
			req.Body = string(body)
			req.Headers = append(req.Headers, header{Name: "Content-Type", Value: "application/json"})
		}
	}

	req.URL = buildURL(ep, authQuery)
	code := em.render(req)

	return &Example{
		EndpointID: ep.ID,
		Language:   lang,
		Code:       code,
		Metadata: Metadata{
			Method:       ep.Method,
			Path:         ep.Path,
			Auth:         authLabel,
			Dependencies: em.dependencies,
		},
	}, nil
}

// resolve normalizes a reference to a stored endpoint. A path
// reference matching several methods resolves to the lexically first
// method, which keeps the choice stable.
func (r *Renderer) resolve(ctx context.Context, apiID int64, ref EndpointRef) (*store.Endpoint, error) {
	if ref.byID {
		return r.st.GetEndpoint(ctx, apiID, ref.id)
	}
	eps, err := r.st.EndpointsByPath(ctx, apiID, ref.path)
	if err != nil {
		return nil, err
	}
	return &eps[0], nil
}

// buildURL substitutes declared path parameters, appends required
// query parameters, and prefixes the placeholder host.
func buildURL(ep *store.Endpoint, authQuery string) string {
	path := ep.Path
	var query []string
	if authQuery != "" {
		query = append(query, authQuery)
	}
	for _, param := range ep.Parameters {
		name, _ := param["name"].(string)
		if name == "" {
			continue
		}
		switch param["in"] {
		case "path":
			path = strings.ReplaceAll(path, "{"+name+"}", pathValue(param))
		case "query":
			if required, _ := param["required"].(bool); required {
				query = append(query, name+"="+pathValue(param))
			}
		}
	}
	// Undeclared placeholders still get a value so the snippet runs.
	for strings.Contains(path, "{") {
		start := strings.Index(path, "{")
		end := strings.Index(path[start:], "}")
		if end < 0 {
			break
		}
		path = path[:start] + "example" + path[start+end+1:]
	}
	url := BaseURL + path
	if len(query) > 0 {
		url += "?" + strings.Join(query, "&")
	}
	return url
}

// authPlaceholder derives the snippet's auth header (or query
// parameter) from the persisted security description. The scheme named
// by the first document-level requirement wins; otherwise the first
// scheme by name.
func authPlaceholder(sec store.Security) (header, string, string) {
	name := ""
	if len(sec.Requirements) > 0 {
		var keys []string
		for k := range sec.Requirements[0] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > 0 {
			name = keys[0]
		}
	}
	if name == "" && len(sec.Schemes) > 0 {
		var keys []string
		for k := range sec.Schemes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		name = keys[0]
	}
	scheme, ok := sec.Schemes[name]
	if !ok {
		return header{}, "", ""
	}

	switch scheme["type"] {
	case "http":
		switch scheme["scheme"] {
		case "basic":
			return header{Name: "Authorization", Value: "Basic <credentials>"}, "http basic", ""
		default:
			return header{Name: "Authorization", Value: "Bearer <token>"}, "http bearer", ""
		}
	case "apiKey":
		keyName, _ := scheme["name"].(string)
		if keyName == "" {
			keyName = "X-Api-Key"
		}
		if scheme["in"] == "query" {
			return header{}, "apiKey (query " + keyName + ")", keyName + "=<api-key>"
		}
		return header{Name: keyName, Value: "<api-key>"}, "apiKey (header " + keyName + ")", ""
	case "oauth2", "openIdConnect":
		return header{Name: "Authorization", Value: "Bearer <access-token>"}, fmt.Sprint(scheme["type"]), ""
	}
	return header{}, "", ""
}
