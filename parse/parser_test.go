package parse

import (
	"errors"
	"io"
	"strings"
	"testing"
)

const sampleSpec = `{
  "openapi": "3.0.3",
  "info": {"title": "Pet Store", "version": "1.2.0", "description": "demo"},
  "servers": [{"url": "https://api.example.com"}],
  "tags": [
    {"name": "Campaign", "description": "Campaign management", "x-displayName": "Кампании"},
    {"name": "Statistics"}
  ],
  "x-tagGroups": [
    {"name": "Ads", "tags": ["Campaign", "Statistics"]}
  ],
  "security": [{"bearerAuth": []}],
  "paths": {
    "/api/v2/campaigns": {
      "parameters": [{"name": "Client-Id", "in": "header", "required": true, "schema": {"type": "string"}}],
      "get": {
        "operationId": "listCampaigns",
        "summary": "List campaigns",
        "tags": ["Campaign"],
        "responses": {
          "200": {
            "description": "ok",
            "content": {"application/json": {"schema": {"$ref": "#/components/schemas/CampaignList"}}}
          }
        }
      },
      "post": {
        "operationId": "createCampaign",
        "summary": "Create a campaign",
        "tags": ["Campaign"],
        "deprecated": true,
        "requestBody": {
          "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Campaign"}}}
        },
        "responses": {"201": {"description": "created"}}
      },
      "trace": {"summary": "not supported"}
    }
  },
  "components": {
    "securitySchemes": {
      "bearerAuth": {"type": "http", "scheme": "bearer"}
    },
    "schemas": {
      "Campaign": {
        "type": "object",
        "properties": {
          "id": {"type": "integer"},
          "budget": {"$ref": "#/components/schemas/Budget"}
        },
        "required": ["id"]
      },
      "CampaignList": {
        "type": "object",
        "properties": {
          "items": {"type": "array", "items": {"$ref": "#/components/schemas/Campaign"}}
        }
      },
      "Budget": {"type": "object", "properties": {"amount": {"type": "number"}}}
    }
  }
}`

func drain(t *testing.T, p *Parser) []Record {
	t.Helper()
	var records []Record
	for {
		rec, err := p.Next()
		if errors.Is(err, io.EOF) {
			return records
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		records = append(records, rec)
	}
}

func TestParserRecordStream(t *testing.T) {
	p := New(strings.NewReader(sampleSpec))
	records := drain(t, p)

	var (
		info      *Info
		tags      []*TagDef
		groups    []*TagGroupDef
		endpoints []*Endpoint
		schemas   []*SchemaDef
		schemes   *SecuritySchemes
		reqs      *SecurityRequirements
	)
	for _, rec := range records {
		switch r := rec.(type) {
		case *Info:
			info = r
		case *TagDef:
			tags = append(tags, r)
		case *TagGroupDef:
			groups = append(groups, r)
		case *Endpoint:
			endpoints = append(endpoints, r)
		case *SchemaDef:
			schemas = append(schemas, r)
		case *SecuritySchemes:
			schemes = r
		case *SecurityRequirements:
			reqs = r
		}
	}

	if info == nil || info.Title != "Pet Store" || info.Version != "1.2.0" {
		t.Fatalf("info = %+v", info)
	}
	if len(tags) != 2 {
		t.Fatalf("tags = %d, want 2", len(tags))
	}
	if tags[0].DisplayName != "Кампании" {
		t.Errorf("DisplayName = %q, want round-tripped non-ASCII", tags[0].DisplayName)
	}
	if len(groups) != 1 || groups[0].Name != "Ads" || len(groups[0].Tags) != 2 {
		t.Fatalf("groups = %+v", groups)
	}
	if len(endpoints) != 2 {
		t.Fatalf("endpoints = %d, want 2", len(endpoints))
	}
	if len(schemas) != 3 {
		t.Fatalf("schemas = %d, want 3", len(schemas))
	}
	if schemes == nil || schemes.Schemes["bearerAuth"] == nil {
		t.Fatalf("security schemes = %+v", schemes)
	}
	if reqs == nil || len(reqs.Requirements) != 1 {
		t.Fatalf("security requirements = %+v", reqs)
	}
}

func TestParserEndpointShape(t *testing.T) {
	p := New(strings.NewReader(sampleSpec))
	var get, post *Endpoint
	for _, rec := range drain(t, p) {
		ep, ok := rec.(*Endpoint)
		if !ok {
			continue
		}
		switch ep.Method {
		case "GET":
			get = ep
		case "POST":
			post = ep
		}
	}
	if get == nil || post == nil {
		t.Fatal("missing GET or POST endpoint")
	}

	if get.Path != "/api/v2/campaigns" {
		t.Errorf("path = %q", get.Path)
	}
	if get.OperationID != "listCampaigns" {
		t.Errorf("operationId = %q", get.OperationID)
	}
	// Path-level parameters merge into every operation.
	if len(get.Parameters) != 1 || len(post.Parameters) != 1 {
		t.Errorf("shared parameters not merged: get=%d post=%d", len(get.Parameters), len(post.Parameters))
	}
	if !post.Deprecated {
		t.Error("deprecated flag lost")
	}
	wantRefs := []SchemaRef{{Name: "CampaignList", Usage: UsageResponse}}
	if len(get.SchemaRefs) != 1 || get.SchemaRefs[0] != wantRefs[0] {
		t.Errorf("GET refs = %+v, want %+v", get.SchemaRefs, wantRefs)
	}
	foundReq := false
	for _, ref := range post.SchemaRefs {
		if ref.Name == "Campaign" && ref.Usage == UsageRequest {
			foundReq = true
		}
	}
	if !foundReq {
		t.Errorf("POST refs = %+v, missing Campaign request ref", post.SchemaRefs)
	}
}

func TestParserSchemaReferences(t *testing.T) {
	p := New(strings.NewReader(sampleSpec))
	refs := map[string][]string{}
	for _, rec := range drain(t, p) {
		if s, ok := rec.(*SchemaDef); ok {
			refs[s.Name] = s.References
		}
	}
	if got := refs["Campaign"]; len(got) != 1 || got[0] != "Budget" {
		t.Errorf("Campaign refs = %v, want [Budget]", got)
	}
	if got := refs["CampaignList"]; len(got) != 1 || got[0] != "Campaign" {
		t.Errorf("CampaignList refs = %v, want [Campaign]", got)
	}
	if got := refs["Budget"]; len(got) != 0 {
		t.Errorf("Budget refs = %v, want none", got)
	}
}

func TestParserUnknownMethodWarning(t *testing.T) {
	p := New(strings.NewReader(sampleSpec))
	drain(t, p)

	var warnings []Warning
	for w := range p.Warnings() {
		warnings = append(warnings, w)
	}
	found := false
	for _, w := range warnings {
		if strings.Contains(w.Path, "trace") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %+v, want unsupported-method warning for trace", warnings)
	}
}

func TestParserDuplicateOperationWarning(t *testing.T) {
	// Duplicate keys are valid JSON text; the token decoder surfaces both.
	doc := `{
	  "paths": {
	    "/a": {"get": {"summary": "first"}},
	    "/a": {"get": {"summary": "second"}}
	  }
	}`
	p := New(strings.NewReader(doc))
	var eps []*Endpoint
	for _, rec := range drain(t, p) {
		if ep, ok := rec.(*Endpoint); ok {
			eps = append(eps, ep)
		}
	}
	if len(eps) != 2 {
		t.Fatalf("endpoints = %d, want 2 (later duplicate still emitted)", len(eps))
	}
	dup := false
	for w := range p.Warnings() {
		if strings.Contains(w.Message, "duplicate") {
			dup = true
		}
	}
	if !dup {
		t.Error("expected duplicate-operation warning")
	}
}

func TestParserMalformedJSON(t *testing.T) {
	p := New(strings.NewReader(`{"info": {"title": "x", }}`))
	for {
		_, err := p.Next()
		if errors.Is(err, io.EOF) {
			t.Fatal("expected fatal error, got clean EOF")
		}
		if err != nil {
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("error type = %T, want *parse.Error", err)
			}
			if perr.Offset <= 0 {
				t.Errorf("offset = %d, want positive byte offset", perr.Offset)
			}
			return
		}
	}
}

func TestParserSkipsUnknownTopLevelKeys(t *testing.T) {
	doc := `{
	  "openapi": "3.1.0",
	  "x-vendor": {"deep": [{"nested": {"stuff": [1, 2, 3]}}]},
	  "info": {"title": "t", "version": "1"},
	  "webhooks": {"ping": {"post": {"summary": "ignored"}}}
	}`
	p := New(strings.NewReader(doc))
	records := drain(t, p)
	if len(records) != 1 {
		t.Fatalf("records = %d, want just info", len(records))
	}
	if _, ok := records[0].(*Info); !ok {
		t.Fatalf("record = %T, want *Info", records[0])
	}
}

func TestParserEmptyPaths(t *testing.T) {
	p := New(strings.NewReader(`{"info": {"title": "t", "version": "1"}, "paths": {}}`))
	for _, rec := range drain(t, p) {
		if _, ok := rec.(*Endpoint); ok {
			t.Fatal("unexpected endpoint from empty paths")
		}
	}
}

func TestRefName(t *testing.T) {
	tests := []struct {
		ref      string
		want     string
		resolved bool
	}{
		{"#/components/schemas/Campaign", "Campaign", true},
		{"#/components/responses/Err", "#/components/responses/Err", false},
		{"external.json#/components/schemas/X", "external.json#/components/schemas/X", false},
	}
	for _, tt := range tests {
		got, ok := RefName(tt.ref)
		if got != tt.want || ok != tt.resolved {
			t.Errorf("RefName(%q) = (%q, %v), want (%q, %v)", tt.ref, got, ok, tt.want, tt.resolved)
		}
	}
}
