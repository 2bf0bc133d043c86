package parse

import (
	"sort"
	"strings"
)

const schemaRefPrefix = "#/components/schemas/"

// RefName extracts the component name from a $ref fragment. The second
// return is false for references outside the component schema section;
// those are kept verbatim so the store can mark them unresolved.
func RefName(ref string) (string, bool) {
	if name, ok := strings.CutPrefix(ref, schemaRefPrefix); ok && name != "" {
		return name, true
	}
	return ref, false
}

// collectRefs walks a decoded JSON subtree and returns the referenced
// component names, sorted and deduplicated. External or malformed
// references are included verbatim.
func collectRefs(v any) []string {
	set := make(map[string]bool)
	walkRefs(v, set)
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func walkRefs(v any, set map[string]bool) {
	switch t := v.(type) {
	case map[string]any:
		for key, val := range t {
			if key == "$ref" {
				if ref, ok := val.(string); ok && ref != "" {
					name, _ := RefName(ref)
					set[name] = true
				}
				continue
			}
			walkRefs(val, set)
		}
	case []any:
		for _, item := range t {
			walkRefs(item, set)
		}
	}
}
