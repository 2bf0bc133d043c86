package render

import (
	"github.com/antflydb/specaf/parse"
	"github.com/antflydb/specaf/store"
)

// bodyDepth bounds how far request-body schemas are resolved when
// synthesizing a literal.
const bodyDepth = 2

// exampleValue synthesizes a placeholder value for a schema node.
// Precedence: declared example, declared default, first enum entry,
// then a type-derived zero-ish value. resolved maps component names to
// their bodies for $ref resolution; depth bounds ref chasing.
func exampleValue(schema map[string]any, resolved map[string]map[string]any, depth int) any {
	if schema == nil {
		return map[string]any{}
	}
	if ex, ok := schema["example"]; ok {
		return ex
	}
	if def, ok := schema["default"]; ok {
		return def
	}
	if enum, ok := schema["enum"].([]any); ok && len(enum) > 0 {
		return enum[0]
	}
	if ref, ok := schema["$ref"].(string); ok {
		name, _ := parse.RefName(ref)
		if depth > 0 {
			if body, ok := resolved[name]; ok {
				return exampleValue(body, resolved, depth-1)
			}
		}
		return map[string]any{}
	}

	switch schema["type"] {
	case "string":
		switch schema["format"] {
		case "date":
			return "2024-01-01"
		case "date-time":
			return "2024-01-01T00:00:00Z"
		case "email":
			return "user@example.com"
		case "uuid":
			return "00000000-0000-0000-0000-000000000000"
		default:
			return "example"
		}
	case "integer":
		return 1
	case "number":
		return 1.0
	case "boolean":
		return true
	case "array":
		items, _ := schema["items"].(map[string]any)
		return []any{exampleValue(items, resolved, depth)}
	case "object", nil:
		props, _ := schema["properties"].(map[string]any)
		out := make(map[string]any, len(props))
		for name, p := range props {
			prop, _ := p.(map[string]any)
			out[name] = exampleValue(prop, resolved, depth)
		}
		return out
	}
	return nil
}

// pathValue picks a placeholder for a path or query parameter from its
// declared schema.
func pathValue(param map[string]any) string {
	schema, _ := param["schema"].(map[string]any)
	if schema == nil {
		return "example"
	}
	switch v := exampleValue(schema, nil, 0).(type) {
	case string:
		return v
	case int:
		return "1"
	case float64:
		return "1"
	case bool:
		return "true"
	default:
		return "example"
	}
}

// bodySchema digs the JSON schema out of a request body object,
// preferring application/json over other content types.
func bodySchema(body map[string]any) map[string]any {
	content, _ := body["content"].(map[string]any)
	if content == nil {
		return nil
	}
	if mt, ok := content["application/json"].(map[string]any); ok {
		if schema, ok := mt["schema"].(map[string]any); ok {
			return schema
		}
	}
	for _, v := range content {
		if mt, ok := v.(map[string]any); ok {
			if schema, ok := mt["schema"].(map[string]any); ok {
				return schema
			}
		}
	}
	return nil
}

// resolveBodies loads every component referenced by the endpoint's
// request body up to bodyDepth, keyed by name.
func resolveBodies(ep *store.Endpoint, get func(names []string) (map[string]*store.Schema, error)) (map[string]map[string]any, error) {
	// SchemaRefs is not read back from the store, so the seed names come
	// from the $ref values inside the stored request body itself.
	var names []string
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case map[string]any:
			if ref, ok := t["$ref"].(string); ok {
				if name, ok := parse.RefName(ref); ok {
					names = append(names, name)
				}
			}
			for _, val := range t {
				walk(val)
			}
		case []any:
			for _, item := range t {
				walk(item)
			}
		}
	}
	walk(ep.RequestBody)
	resolved := make(map[string]map[string]any)
	for level := 0; level < bodyDepth && len(names) > 0; level++ {
		batch, err := get(names)
		if err != nil {
			return nil, err
		}
		var next []string
		for _, sc := range batch {
			if _, ok := resolved[sc.Name]; ok {
				continue
			}
			resolved[sc.Name] = sc.Body
			next = append(next, sc.References...)
		}
		names = next
	}
	return resolved, nil
}
