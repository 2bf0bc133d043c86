package render

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// EndpointRef identifies an endpoint by either its numeric surrogate
// key or its canonical path template. The retrieval protocol admits
// both forms everywhere an endpoint identifier is taken; normalization
// to the numeric key happens once, at resolution.
type EndpointRef struct {
	id   int64
	path string
	byID bool
}

// RefID builds a reference from a surrogate key.
func RefID(id int64) EndpointRef { return EndpointRef{id: id, byID: true} }

// RefPath builds a reference from a canonical path template.
func RefPath(path string) EndpointRef { return EndpointRef{path: path} }

// RefFromAny dispatches once on the runtime form of a protocol-level
// endpoint identifier: JSON numbers and numeric strings resolve by id,
// any other string resolves by path.
func RefFromAny(v any) (EndpointRef, error) {
	switch t := v.(type) {
	case int:
		return RefID(int64(t)), nil
	case int64:
		return RefID(t), nil
	case float64:
		return RefID(int64(t)), nil
	case json.Number:
		id, err := t.Int64()
		if err != nil {
			return EndpointRef{}, fmt.Errorf("endpoint id %q is not an integer", t.String())
		}
		return RefID(id), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return EndpointRef{}, fmt.Errorf("endpoint id must not be empty")
		}
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			return RefID(id), nil
		}
		return RefPath(s), nil
	case nil:
		return EndpointRef{}, fmt.Errorf("endpoint id is required")
	default:
		return EndpointRef{}, fmt.Errorf("endpoint id must be a number or string, got %T", v)
	}
}

func (r EndpointRef) String() string {
	if r.byID {
		return strconv.FormatInt(r.id, 10)
	}
	return r.path
}
