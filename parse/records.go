// Package parse extracts endpoints, schemas, and tag tables from an
// OpenAPI 3.x JSON document without materializing the whole document.
// The caller pulls typed records in document order with Parser.Next;
// the parser keeps at most one path item in flight.
package parse

// Record is a parsed entity emitted in document order. The concrete
// types are *Info, *TagDef, *TagGroupDef, *Endpoint, *SchemaDef,
// *SecuritySchemes, and *SecurityRequirements.
type Record interface {
	record()
}

// Info carries the document's info object.
type Info struct {
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

// TagDef is one entry of the top-level tags array.
type TagDef struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// DisplayName carries the x-displayName vendor extension. Non-ASCII
	// display strings are preserved verbatim.
	DisplayName string `json:"x-displayName,omitempty"`
}

// TagGroupDef is one entry of the x-tagGroups vendor extension.
type TagGroupDef struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// RefUsage marks where an endpoint references a schema.
type RefUsage string

const (
	UsageRequest  RefUsage = "request"
	UsageResponse RefUsage = "response"
)

// SchemaRef is a schema reference discovered inside an endpoint's
// request body or responses.
type SchemaRef struct {
	Name  string
	Usage RefUsage
}

// Endpoint is a single (path, method) operation. Parameters and
// responses keep the decoded JSON shape; normalization happens at the
// store boundary.
type Endpoint struct {
	Path        string
	Method      string // uppercase
	Summary     string
	Description string
	OperationID string
	Tags        []string
	Deprecated  bool
	Parameters  []map[string]any
	RequestBody map[string]any
	Responses   map[string]map[string]any // keyed by status string
	// SchemaRefs lists component schemas referenced by the request body
	// and responses: request references first, then response references,
	// each group sorted by name and deduplicated.
	SchemaRefs []SchemaRef
}

// SchemaDef is a named component schema. References holds the component
// names of outgoing $ref targets, sorted and deduplicated. References
// to anything other than #/components/schemas/<name> are kept verbatim
// so the store can mark them unresolved.
type SchemaDef struct {
	Name       string
	Body       map[string]any
	References []string
}

// SecuritySchemes carries components.securitySchemes.
type SecuritySchemes struct {
	Schemes map[string]map[string]any
}

// SecurityRequirements carries the document-level security array.
type SecurityRequirements struct {
	Requirements []map[string][]string
}

func (*Info) record()                 {}
func (*TagDef) record()               {}
func (*TagGroupDef) record()          {}
func (*Endpoint) record()             {}
func (*SchemaDef) record()            {}
func (*SecuritySchemes) record()      {}
func (*SecurityRequirements) record() {}

// Warning is a recoverable parse condition. Warnings never stop the
// stream; the caller may log or collect them.
type Warning struct {
	Path    string // JSON location, e.g. "paths./pets.trace"
	Message string
}
