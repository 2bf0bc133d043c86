package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

func renderCurl(req request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "curl -X %s %q", req.Method, req.URL)
	for _, h := range req.Headers {
		fmt.Fprintf(&b, " \\\n  -H %q", h.Name+": "+h.Value)
	}
	if req.Body != "" {
		fmt.Fprintf(&b, " \\\n  -d '%s'", req.Body)
	}
	return b.String()
}

func renderJavaScript(req request) string {
	return renderFetch(req, false)
}

func renderTypeScript(req request) string {
	return renderFetch(req, true)
}

func renderFetch(req request, typed bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "const response = await fetch(%q, {\n", req.URL)
	fmt.Fprintf(&b, "  method: %q,\n", req.Method)
	if len(req.Headers) > 0 {
		b.WriteString("  headers: {\n")
		for _, h := range req.Headers {
			fmt.Fprintf(&b, "    %q: %q,\n", h.Name, h.Value)
		}
		b.WriteString("  },\n")
	}
	if req.Body != "" {
		fmt.Fprintf(&b, "  body: JSON.stringify(%s),\n", indentBlock(req.Body, "  "))
	}
	b.WriteString("});\n")
	if typed {
		b.WriteString("const data: unknown = await response.json();\n")
	} else {
		b.WriteString("const data = await response.json();\n")
	}
	b.WriteString("console.log(data);")
	return b.String()
}

func renderPython(req request) string {
	var b strings.Builder
	b.WriteString("import requests\n\n")
	fmt.Fprintf(&b, "url = %q\n", req.URL)
	if len(req.Headers) > 0 {
		b.WriteString("headers = {\n")
		for _, h := range req.Headers {
			fmt.Fprintf(&b, "    %q: %q,\n", h.Name, h.Value)
		}
		b.WriteString("}\n")
	}
	if req.Body != "" {
		fmt.Fprintf(&b, "payload = %s\n", pythonLiteral(req.Body))
	}
	b.WriteString("\n")
	call := fmt.Sprintf("requests.%s(url", strings.ToLower(req.Method))
	if len(req.Headers) > 0 {
		call += ", headers=headers"
	}
	if req.Body != "" {
		call += ", json=payload"
	}
	call += ")"
	fmt.Fprintf(&b, "response = %s\n", call)
	b.WriteString("print(response.json())")
	return b.String()
}

// pythonLiteral converts a JSON document to Python literal syntax.
func pythonLiteral(jsonBody string) string {
	var v any
	if err := sonic.Unmarshal([]byte(jsonBody), &v); err != nil {
		return jsonBody
	}
	var b strings.Builder
	writePython(&b, v, 0)
	return b.String()
}

func writePython(b *strings.Builder, v any, indent int) {
	pad := strings.Repeat("    ", indent)
	inner := strings.Repeat("    ", indent+1)
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 0 {
			b.WriteString("{}")
			return
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("{\n")
		for _, k := range keys {
			b.WriteString(inner)
			b.WriteString(strconv.Quote(k))
			b.WriteString(": ")
			writePython(b, t[k], indent+1)
			b.WriteString(",\n")
		}
		b.WriteString(pad + "}")
	case []any:
		if len(t) == 0 {
			b.WriteString("[]")
			return
		}
		b.WriteString("[\n")
		for _, item := range t {
			b.WriteString(inner)
			writePython(b, item, indent+1)
			b.WriteString(",\n")
		}
		b.WriteString(pad + "]")
	case string:
		b.WriteString(strconv.Quote(t))
	case bool:
		if t {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case nil:
		b.WriteString("None")
	case float64:
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	default:
		fmt.Fprintf(b, "%v", t)
	}
}

// indentBlock re-indents a pretty-printed JSON block so it nests inside
// generated code at the given prefix.
func indentBlock(block, prefix string) string {
	lines := strings.Split(block, "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}
