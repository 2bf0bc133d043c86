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

package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testIngest() Ingest {
	return Ingest{
		API: API{
			Name:    "petstore",
			Title:   "Pet Store",
			Version: "1.2.0",
			Digest:  "abc123",
			Security: Security{
				Schemes: map[string]map[string]any{
					"bearerAuth": {"type": "http", "scheme": "bearer"},
				},
				Requirements: []map[string][]string{{"bearerAuth": {}}},
			},
		},
		Endpoints: []Endpoint{
			{
				Path: "/api/v2/campaigns", Method: "GET",
				Summary: "List campaigns", OperationID: "listCampaigns",
				Category: "Campaign", CategoryGroup: "Ads",
				Tags:       []string{"Campaign"},
				Parameters: []map[string]any{{"name": "page", "in": "query"}},
				Responses: map[string]map[string]any{
					"200": {"description": "ok"},
				},
				SchemaRefs: []SchemaUse{{Name: "CampaignList", Usage: "response"}},
			},
			{
				Path: "/api/v2/campaigns", Method: "POST",
				Summary: "Create campaign", OperationID: "createCampaign",
				Category: "Campaign", CategoryGroup: "Ads",
				Tags:        []string{"Campaign"},
				RequestBody: map[string]any{"required": true},
				SchemaRefs:  []SchemaUse{{Name: "Campaign", Usage: "request"}},
			},
			{
				Path: "/api/v2/statistics/video", Method: "POST",
				Summary: "Video statistics report", OperationID: "videoStats",
				Category: "Statistics", CategoryGroup: "Ads",
				Tags:     []string{"Statistics"},
			},
		},
		Schemas: []Schema{
			{Name: "Campaign", Body: map[string]any{"type": "object"}, References: []string{"Budget"}},
			{Name: "CampaignList", Body: map[string]any{"type": "object"}, References: []string{"Campaign"}},
			{Name: "Budget", Body: map[string]any{"type": "object"}, References: []string{"Missing"}},
		},
		Categories: []Category{
			{Name: "Campaign", Group: "Ads", EndpointCount: 2, Methods: []string{"GET", "POST"}},
			{Name: "Statistics", Group: "Ads", EndpointCount: 1, Methods: []string{"POST"}},
		},
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	s1.Close()
	s2, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()
	v, err := s2.Version()
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if v != SchemaVersion {
		t.Errorf("schema version = %d, want %d", v, SchemaVersion)
	}
}

func TestReplaceAPIRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	apiID, err := s.ReplaceAPI(ctx, testIngest())
	if err != nil {
		t.Fatalf("ReplaceAPI failed: %v", err)
	}

	api, err := s.ActiveAPI(ctx)
	if err != nil {
		t.Fatalf("ActiveAPI failed: %v", err)
	}
	if api.ID != apiID || api.Name != "petstore" || api.Title != "Pet Store" {
		t.Errorf("api = %+v", api)
	}
	if api.Security.Schemes["bearerAuth"]["scheme"] != "bearer" {
		t.Errorf("security lost: %+v", api.Security)
	}

	counts, err := s.CountEntities(ctx, apiID)
	if err != nil {
		t.Fatalf("CountEntities failed: %v", err)
	}
	want := Counts{Endpoints: 3, Schemas: 3, Categories: 2}
	if counts != want {
		t.Errorf("counts = %+v, want %+v", counts, want)
	}

	hits, total, err := s.QueryEndpoints(ctx, EndpointQuery{APIID: apiID, Limit: 10})
	if err != nil {
		t.Fatalf("QueryEndpoints failed: %v", err)
	}
	if total != 3 || len(hits) != 3 {
		t.Fatalf("total = %d, hits = %d", total, len(hits))
	}
	// Keyword-less ordering is (path, method).
	if hits[0].Method != "GET" || hits[1].Method != "POST" || hits[0].Path != "/api/v2/campaigns" {
		t.Errorf("ordering = %s %s, %s %s", hits[0].Method, hits[0].Path, hits[1].Method, hits[1].Path)
	}
	if !reflect.DeepEqual(hits[0].Tags, []string{"Campaign"}) {
		t.Errorf("tags = %v", hits[0].Tags)
	}
	if hits[1].RequestBody == nil {
		t.Error("request body lost on round trip")
	}
}

func TestFTSMatchAndRanking(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	apiID, err := s.ReplaceAPI(ctx, testIngest())
	if err != nil {
		t.Fatalf("ReplaceAPI failed: %v", err)
	}

	hits, total, err := s.QueryEndpoints(ctx, EndpointQuery{APIID: apiID, Match: `"video"`, Limit: 10})
	if err != nil {
		t.Fatalf("FTS query failed: %v", err)
	}
	if total != 1 || len(hits) != 1 {
		t.Fatalf("video matches = %d, want 1", total)
	}
	if hits[0].OperationID != "videoStats" {
		t.Errorf("hit = %+v", hits[0].Endpoint)
	}
	if hits[0].Score <= 0 {
		t.Errorf("score = %f, want positive", hits[0].Score)
	}
}

func TestCategoryAndMethodFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	apiID, _ := s.ReplaceAPI(ctx, testIngest())

	// Case-insensitive category plus tag double check.
	hits, total, err := s.QueryEndpoints(ctx, EndpointQuery{
		APIID: apiID, Category: "campaign", CategoryTag: "Campaign", Limit: 10,
	})
	if err != nil {
		t.Fatalf("category query failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("campaign total = %d, want 2", total)
	}
	for _, h := range hits {
		if h.Category != "Campaign" {
			t.Errorf("cross-category contamination: %+v", h.Endpoint)
		}
	}

	_, total, err = s.QueryEndpoints(ctx, EndpointQuery{
		APIID: apiID, Category: "Campaign", Methods: []string{"POST"}, Limit: 10,
	})
	if err != nil {
		t.Fatalf("method query failed: %v", err)
	}
	if total != 1 {
		t.Errorf("POST campaign total = %d, want 1", total)
	}
}

func TestReplaceAPIIsAtomicReplacement(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.ReplaceAPI(ctx, testIngest())
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}

	second := testIngest()
	second.Endpoints = second.Endpoints[:1]
	second.Categories = []Category{
		{Name: "Campaign", Group: "Ads", EndpointCount: 1, Methods: []string{"GET"}},
	}
	secondID, err := s.ReplaceAPI(ctx, second)
	if err != nil {
		t.Fatalf("re-ingest failed: %v", err)
	}
	if secondID == first {
		t.Error("expected a fresh api row on re-ingest")
	}

	counts, _ := s.CountEntities(ctx, secondID)
	if counts.Endpoints != 1 {
		t.Errorf("endpoints after replacement = %d, want 1", counts.Endpoints)
	}
	// The replaced API's FTS entries must be gone too.
	_, total, err := s.QueryEndpoints(ctx, EndpointQuery{APIID: secondID, Match: `"video"`, Limit: 10})
	if err != nil {
		t.Fatalf("FTS query failed: %v", err)
	}
	if total != 0 {
		t.Errorf("stale FTS entries = %d, want 0", total)
	}
}

func TestIntegrityViolationLeavesPriorContents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	apiID, _ := s.ReplaceAPI(ctx, testIngest())

	bad := testIngest()
	bad.Categories = bad.Categories[:1] // Statistics endpoints lose their summary row
	if _, err := s.ReplaceAPI(ctx, bad); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("err = %v, want ErrIntegrity", err)
	}

	counts, err := s.CountEntities(ctx, apiID)
	if err != nil {
		t.Fatalf("CountEntities failed: %v", err)
	}
	if counts.Endpoints != 3 {
		t.Errorf("prior contents damaged: %+v", counts)
	}
}

func TestIntegrityCountMismatch(t *testing.T) {
	s := openTestStore(t)
	bad := testIngest()
	bad.Categories[0].EndpointCount = 5
	if _, err := s.ReplaceAPI(context.Background(), bad); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("err = %v, want ErrIntegrity", err)
	}
}

func TestSchemaResolutionSplit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	apiID, _ := s.ReplaceAPI(ctx, testIngest())

	sc, err := s.GetSchema(ctx, apiID, "Budget")
	if err != nil {
		t.Fatalf("GetSchema failed: %v", err)
	}
	if len(sc.References) != 0 {
		t.Errorf("resolved refs = %v, want none", sc.References)
	}
	if !reflect.DeepEqual(sc.Unresolved, []string{"Missing"}) {
		t.Errorf("unresolved refs = %v, want [Missing]", sc.Unresolved)
	}

	if _, err := s.GetSchema(ctx, apiID, "Nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing schema err = %v, want ErrNotFound", err)
	}
}

func TestSchemaUsage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	apiID, _ := s.ReplaceAPI(ctx, testIngest())

	uses, err := s.SchemaUsage(ctx, apiID, "Campaign")
	if err != nil {
		t.Fatalf("SchemaUsage failed: %v", err)
	}
	want := []EndpointUse{{Path: "/api/v2/campaigns", Method: "POST", Usage: "request"}}
	if !reflect.DeepEqual(uses, want) {
		t.Errorf("uses = %+v, want %+v", uses, want)
	}
}

func TestEndpointsByPath(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	apiID, _ := s.ReplaceAPI(ctx, testIngest())

	eps, err := s.EndpointsByPath(ctx, apiID, "/api/v2/campaigns")
	if err != nil {
		t.Fatalf("EndpointsByPath failed: %v", err)
	}
	if len(eps) != 2 || eps[0].Method != "GET" {
		t.Errorf("eps = %d, first = %s", len(eps), eps[0].Method)
	}
	if _, err := s.EndpointsByPath(ctx, apiID, "/nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRemoveAPICascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	apiID, _ := s.ReplaceAPI(ctx, testIngest())

	if err := s.RemoveAPI(ctx, "petstore"); err != nil {
		t.Fatalf("RemoveAPI failed: %v", err)
	}
	counts, err := s.CountEntities(ctx, apiID)
	if err != nil {
		t.Fatalf("CountEntities failed: %v", err)
	}
	if counts != (Counts{}) {
		t.Errorf("counts after removal = %+v, want zeros", counts)
	}
	if err := s.RemoveAPI(ctx, "petstore"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second removal err = %v, want ErrNotFound", err)
	}
}

func TestListCategories(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	apiID, _ := s.ReplaceAPI(ctx, testIngest())

	cats, err := s.ListCategories(ctx, CategoryFilter{APIID: apiID})
	if err != nil {
		t.Fatalf("ListCategories failed: %v", err)
	}
	if len(cats) != 2 || cats[0].Name != "Campaign" {
		t.Fatalf("cats = %+v", cats)
	}
	if cats[0].EndpointCount != 2 || !reflect.DeepEqual(cats[0].Methods, []string{"GET", "POST"}) {
		t.Errorf("Campaign rollup = %+v", cats[0])
	}

	byCount, err := s.ListCategories(ctx, CategoryFilter{APIID: apiID, SortBy: SortByEndpointCount})
	if err != nil {
		t.Fatalf("ListCategories by count failed: %v", err)
	}
	if byCount[0].Name != "Campaign" {
		t.Errorf("count sort first = %s", byCount[0].Name)
	}

	filtered, err := s.ListCategories(ctx, CategoryFilter{APIID: apiID, Group: "ads"})
	if err != nil {
		t.Fatalf("ListCategories by group failed: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("group filter = %d entries, want 2 (case-insensitive)", len(filtered))
	}
}
