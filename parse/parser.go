package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Error is a fatal parse failure. It terminates the stream and carries
// the byte offset of the failure in the source document.
type Error struct {
	Offset int64
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid specification at byte %d: %v", e.Offset, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// methods recognized under a path item. Anything else that is not a
// path-item fixed field is skipped with a warning.
var methods = map[string]bool{
	"get": true, "post": true, "put": true, "patch": true,
	"delete": true, "head": true, "options": true,
}

// path-item fixed fields that are not operations.
var pathItemFields = map[string]bool{
	"$ref": true, "summary": true, "description": true,
	"servers": true, "parameters": true,
}

type state int

const (
	stateInit state = iota
	stateTop
	stateTags
	stateTagGroups
	statePaths
	stateComponents
	stateSchemas
	stateDone
)

// Parser streams records out of an OpenAPI 3.x JSON document. Create
// one with New, then call Next until it returns io.EOF. Parser is not
// safe for concurrent use.
type Parser struct {
	dec      *json.Decoder
	state    state
	queue    []Record
	warnings chan Warning
	seen     map[string]bool // "METHOD path" duplicate detection
}

// New returns a Parser reading from r. The caller is responsible for
// any size cap on the source.
func New(r io.Reader) *Parser {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &Parser{
		dec:      dec,
		warnings: make(chan Warning, 64),
		seen:     make(map[string]bool),
	}
}

// Warnings returns the recoverable-warning channel. It is buffered and
// lossy: warnings are dropped when the buffer is full. The channel is
// closed when the stream ends.
func (p *Parser) Warnings() <-chan Warning { return p.warnings }

func (p *Parser) warn(path, message string) {
	select {
	case p.warnings <- Warning{Path: path, Message: message}:
	default:
	}
}

// Next returns the next record in document order. It returns io.EOF
// when the document is exhausted and a *Error on malformed input.
func (p *Parser) Next() (Record, error) {
	for len(p.queue) == 0 && p.state != stateDone {
		if err := p.advance(); err != nil {
			p.finish()
			return nil, err
		}
	}
	if len(p.queue) > 0 {
		rec := p.queue[0]
		p.queue = p.queue[1:]
		return rec, nil
	}
	return nil, io.EOF
}

func (p *Parser) finish() {
	if p.state != stateDone {
		p.state = stateDone
		close(p.warnings)
	}
}

func (p *Parser) fatal(err error) error {
	// A document that ends before its top-level object closes is
	// truncated, not exhausted; keep it distinguishable from io.EOF.
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		return &Error{Offset: syn.Offset, Err: err}
	}
	return &Error{Offset: p.dec.InputOffset(), Err: err}
}

// advance drives the state machine by one structural step, queueing
// zero or more records.
func (p *Parser) advance() error {
	switch p.state {
	case stateInit:
		if err := p.expectDelim('{'); err != nil {
			return err
		}
		p.state = stateTop
	case stateTop:
		return p.advanceTop()
	case stateTags:
		return p.advanceTags()
	case stateTagGroups:
		return p.advanceTagGroups()
	case statePaths:
		return p.advancePaths()
	case stateComponents:
		return p.advanceComponents()
	case stateSchemas:
		return p.advanceSchemas()
	}
	return nil
}

func (p *Parser) advanceTop() error {
	tok, err := p.dec.Token()
	if err != nil {
		return p.fatal(err)
	}
	if d, ok := tok.(json.Delim); ok && d == '}' {
		p.finish()
		return nil
	}
	key, ok := tok.(string)
	if !ok {
		return p.fatal(fmt.Errorf("expected object key, got %v", tok))
	}
	switch key {
	case "info":
		var info Info
		if err := p.dec.Decode(&info); err != nil {
			return p.fatal(err)
		}
		p.queue = append(p.queue, &info)
	case "tags":
		if err := p.expectDelim('['); err != nil {
			return err
		}
		p.state = stateTags
	case "x-tagGroups":
		if err := p.expectDelim('['); err != nil {
			return err
		}
		p.state = stateTagGroups
	case "paths":
		if err := p.expectDelim('{'); err != nil {
			return err
		}
		p.state = statePaths
	case "components":
		if err := p.expectDelim('{'); err != nil {
			return err
		}
		p.state = stateComponents
	case "security":
		var reqs []map[string][]string
		if err := p.dec.Decode(&reqs); err != nil {
			return p.fatal(err)
		}
		p.queue = append(p.queue, &SecurityRequirements{Requirements: reqs})
	default:
		if err := p.skipValue(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) advanceTags() error {
	if p.dec.More() {
		var tag TagDef
		if err := p.dec.Decode(&tag); err != nil {
			return p.fatal(err)
		}
		if tag.Name != "" {
			p.queue = append(p.queue, &tag)
		}
		return nil
	}
	if err := p.expectDelim(']'); err != nil {
		return err
	}
	p.state = stateTop
	return nil
}

func (p *Parser) advanceTagGroups() error {
	if p.dec.More() {
		var group TagGroupDef
		if err := p.dec.Decode(&group); err != nil {
			return p.fatal(err)
		}
		if group.Name != "" {
			p.queue = append(p.queue, &group)
		}
		return nil
	}
	if err := p.expectDelim(']'); err != nil {
		return err
	}
	p.state = stateTop
	return nil
}

func (p *Parser) advancePaths() error {
	tok, err := p.dec.Token()
	if err != nil {
		return p.fatal(err)
	}
	if d, ok := tok.(json.Delim); ok && d == '}' {
		p.state = stateTop
		return nil
	}
	path, ok := tok.(string)
	if !ok {
		return p.fatal(fmt.Errorf("expected path key, got %v", tok))
	}
	return p.parsePathItem(path)
}

// parsePathItem consumes one path item, queueing one Endpoint per
// recognized operation. Path-level parameters merge into every
// operation of the item, so operations are held until the item closes.
func (p *Parser) parsePathItem(path string) error {
	if err := p.expectDelim('{'); err != nil {
		return err
	}
	var ops []*Endpoint
	var shared []map[string]any
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return p.fatal(err)
		}
		if d, ok := tok.(json.Delim); ok && d == '}' {
			break
		}
		key, ok := tok.(string)
		if !ok {
			return p.fatal(fmt.Errorf("expected path item key, got %v", tok))
		}
		switch {
		case methods[key]:
			var raw map[string]any
			if err := p.dec.Decode(&raw); err != nil {
				return p.fatal(err)
			}
			ops = append(ops, buildEndpoint(path, strings.ToUpper(key), raw))
		case key == "parameters":
			if err := p.dec.Decode(&shared); err != nil {
				return p.fatal(err)
			}
		case pathItemFields[key]:
			if err := p.skipValue(); err != nil {
				return err
			}
		default:
			p.warn("paths."+path+"."+key, "unsupported method skipped")
			if err := p.skipValue(); err != nil {
				return err
			}
		}
	}
	for _, ep := range ops {
		if len(shared) > 0 {
			ep.Parameters = append(ep.Parameters, shared...)
		}
		key := ep.Method + " " + ep.Path
		if p.seen[key] {
			p.warn("paths."+ep.Path, "duplicate operation "+ep.Method+", later definition wins")
		}
		p.seen[key] = true
		p.queue = append(p.queue, ep)
	}
	return nil
}

func (p *Parser) advanceComponents() error {
	tok, err := p.dec.Token()
	if err != nil {
		return p.fatal(err)
	}
	if d, ok := tok.(json.Delim); ok && d == '}' {
		p.state = stateTop
		return nil
	}
	key, ok := tok.(string)
	if !ok {
		return p.fatal(fmt.Errorf("expected components key, got %v", tok))
	}
	switch key {
	case "schemas":
		if err := p.expectDelim('{'); err != nil {
			return err
		}
		p.state = stateSchemas
	case "securitySchemes":
		var schemes map[string]map[string]any
		if err := p.dec.Decode(&schemes); err != nil {
			return p.fatal(err)
		}
		p.queue = append(p.queue, &SecuritySchemes{Schemes: schemes})
	default:
		if err := p.skipValue(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) advanceSchemas() error {
	tok, err := p.dec.Token()
	if err != nil {
		return p.fatal(err)
	}
	if d, ok := tok.(json.Delim); ok && d == '}' {
		p.state = stateComponents
		return nil
	}
	name, ok := tok.(string)
	if !ok {
		return p.fatal(fmt.Errorf("expected schema name, got %v", tok))
	}
	var body map[string]any
	if err := p.dec.Decode(&body); err != nil {
		return p.fatal(err)
	}
	p.queue = append(p.queue, &SchemaDef{
		Name:       name,
		Body:       body,
		References: collectRefs(body),
	})
	return nil
}

func (p *Parser) expectDelim(d json.Delim) error {
	tok, err := p.dec.Token()
	if err != nil {
		return p.fatal(err)
	}
	got, ok := tok.(json.Delim)
	if !ok || got != d {
		return p.fatal(fmt.Errorf("expected %q, got %v", d.String(), tok))
	}
	return nil
}

// skipValue consumes one JSON value of any shape without retaining it.
func (p *Parser) skipValue() error {
	depth := 0
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return p.fatal(err)
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
		if depth == 0 {
			return nil
		}
	}
}

// buildEndpoint shapes a decoded operation object into an Endpoint.
func buildEndpoint(path, method string, raw map[string]any) *Endpoint {
	ep := &Endpoint{
		Path:        path,
		Method:      method,
		Summary:     str(raw["summary"]),
		Description: str(raw["description"]),
		OperationID: str(raw["operationId"]),
	}
	if dep, ok := raw["deprecated"].(bool); ok {
		ep.Deprecated = dep
	}
	if tags, ok := raw["tags"].([]any); ok {
		for _, t := range tags {
			if s := str(t); s != "" {
				ep.Tags = append(ep.Tags, s)
			}
		}
	}
	if params, ok := raw["parameters"].([]any); ok {
		for _, pv := range params {
			if m, ok := pv.(map[string]any); ok {
				ep.Parameters = append(ep.Parameters, m)
			}
		}
	}
	if body, ok := raw["requestBody"].(map[string]any); ok {
		ep.RequestBody = body
		for _, name := range collectRefs(body) {
			ep.SchemaRefs = append(ep.SchemaRefs, SchemaRef{Name: name, Usage: UsageRequest})
		}
	}
	if resps, ok := raw["responses"].(map[string]any); ok {
		ep.Responses = make(map[string]map[string]any, len(resps))
		for status, rv := range resps {
			if m, ok := rv.(map[string]any); ok {
				ep.Responses[status] = m
			}
		}
		for _, name := range collectRefs(resps) {
			ep.SchemaRefs = append(ep.SchemaRefs, SchemaRef{Name: name, Usage: UsageResponse})
		}
	}
	return ep
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
