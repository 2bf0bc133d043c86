package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/antflydb/specaf/store"
)

// catalogSpec mirrors a mid-size advertising API: six declared tags
// across 40 endpoints.
var catalogSpec = []struct {
	tag   string
	count int
}{
	{"Campaign", 4},
	{"Statistics", 13},
	{"Ad", 5},
	{"Product", 5},
	{"Search-Promo", 9},
	{"Vendor", 4},
}

func fixtureIngest() store.Ingest {
	in := store.Ingest{
		API: store.API{Name: "ads", Title: "Performance API", Version: "2.0"},
	}
	for _, ts := range catalogSpec {
		methods := make(map[string]bool)
		for i := 0; i < ts.count; i++ {
			method := "GET"
			if i%2 == 0 {
				method = "POST"
			}
			methods[method] = true
			summary := fmt.Sprintf("%s operation %d", ts.tag, i)
			// A few statistics endpoints and one campaign endpoint
			// mention video, to exercise keyword+category AND.
			if ts.tag == "Statistics" && i < 3 {
				summary = fmt.Sprintf("Video statistics report %d", i)
			}
			if ts.tag == "Campaign" && i == 0 {
				summary = "Campaign video preview"
			}
			in.Endpoints = append(in.Endpoints, store.Endpoint{
				Path:          fmt.Sprintf("/api/v1/%s/op%d", ts.tag, i),
				Method:        method,
				Summary:       summary,
				OperationID:   fmt.Sprintf("%s_%d", ts.tag, i),
				Category:      ts.tag,
				CategoryGroup: "Ads",
				Tags:          []string{ts.tag},
			})
		}
		var methodList []string
		for m := range methods {
			methodList = append(methodList, m)
		}
		in.Categories = append(in.Categories, store.Category{
			Name: ts.tag, Group: "Ads", EndpointCount: ts.count, Methods: methodList,
		})
	}
	in.Schemas = []store.Schema{
		{Name: "Campaign", Body: map[string]any{"type": "object", "example": map[string]any{"id": 1}}, References: []string{"Placement", "Budget"}},
		{Name: "Placement", Body: map[string]any{"type": "object"}, References: []string{"Campaign"}}, // cycle
		{Name: "Budget", Body: map[string]any{"type": "object"}, References: []string{"Money"}},
		{Name: "Money", Body: map[string]any{"type": "object"}},
	}
	return in
}

func newTestService(t *testing.T, cfg Config) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir(), store.Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if _, err := st.ReplaceAPI(context.Background(), fixtureIngest()); err != nil {
		t.Fatalf("ReplaceAPI failed: %v", err)
	}
	return New(st, cfg, nil), st
}

func TestCategoryCatalog(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	res, err := svc.GetCategories(context.Background(), CatalogRequest{SortBy: "name"})
	if err != nil {
		t.Fatalf("GetCategories failed: %v", err)
	}
	if len(res.Categories) != 6 {
		t.Fatalf("categories = %d, want 6", len(res.Categories))
	}
	if res.Categories[0].Name != "Ad" {
		t.Errorf("first category = %q, want Ad", res.Categories[0].Name)
	}
	sum := 0
	for _, c := range res.Categories {
		sum += c.EndpointCount
	}
	if sum != 40 {
		t.Errorf("endpoint counts sum = %d, want 40", sum)
	}
	if res.Metadata.TotalEndpoints != 40 || res.Metadata.TotalCategories != 6 {
		t.Errorf("metadata = %+v", res.Metadata)
	}
	if len(res.Groups) != 1 || res.Groups[0].Name != "Ads" || len(res.Groups[0].Categories) != 6 {
		t.Errorf("groups = %+v", res.Groups)
	}
}

func TestExactCategoryFilter(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	res, err := svc.SearchEndpoints(context.Background(), SearchRequest{
		Category: "Statistics", PerPage: 100,
	})
	if err != nil {
		t.Fatalf("SearchEndpoints failed: %v", err)
	}
	if res.Total != 13 {
		t.Fatalf("total = %d, want 13", res.Total)
	}
	for _, ep := range res.Endpoints {
		if ep.Category != "Statistics" {
			t.Errorf("cross-category contamination: %+v", ep)
		}
	}
}

func TestCategoryFilterCaseInsensitive(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	res, err := svc.SearchEndpoints(context.Background(), SearchRequest{
		Category: "statistics", PerPage: 100,
	})
	if err != nil {
		t.Fatalf("SearchEndpoints failed: %v", err)
	}
	if res.Total != 13 {
		t.Errorf("total = %d, want 13", res.Total)
	}
}

func TestMethodAndCategoryFilter(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	res, err := svc.SearchEndpoints(context.Background(), SearchRequest{
		Category: "Ad", Methods: []string{"POST"}, PerPage: 100,
	})
	if err != nil {
		t.Fatalf("SearchEndpoints failed: %v", err)
	}
	// Ad has five endpoints, indices 0,2,4 are POST.
	if res.Total != 3 {
		t.Errorf("total = %d, want 3", res.Total)
	}
	for _, ep := range res.Endpoints {
		if ep.Method != "POST" {
			t.Errorf("non-POST endpoint in result: %+v", ep)
		}
	}
}

func TestKeywordAndCategoryIntersect(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	all, err := svc.SearchEndpoints(ctx, SearchRequest{Keywords: "video", PerPage: 100})
	if err != nil {
		t.Fatalf("keyword search failed: %v", err)
	}
	if all.Total != 4 {
		t.Fatalf("video matches = %d, want 4 (3 statistics + 1 campaign)", all.Total)
	}

	res, err := svc.SearchEndpoints(ctx, SearchRequest{
		Keywords: "video", Category: "Statistics", PerPage: 100,
	})
	if err != nil {
		t.Fatalf("keyword+category search failed: %v", err)
	}
	if res.Total != 3 {
		t.Fatalf("total = %d, want 3", res.Total)
	}
	for _, ep := range res.Endpoints {
		if ep.Category == "Campaign" {
			t.Errorf("campaign endpoint leaked into statistics filter: %+v", ep)
		}
		if ep.Score <= 0 {
			t.Errorf("missing ranking score: %+v", ep)
		}
	}
}

func TestEmptyKeywordsStableOrder(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()
	first, err := svc.SearchEndpoints(ctx, SearchRequest{Category: "Vendor", PerPage: 100})
	if err != nil {
		t.Fatalf("SearchEndpoints failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := svc.SearchEndpoints(ctx, SearchRequest{Category: "Vendor", PerPage: 100})
		if err != nil {
			t.Fatalf("repeat search failed: %v", err)
		}
		if len(again.Endpoints) != len(first.Endpoints) {
			t.Fatalf("result size changed between calls")
		}
		for j := range again.Endpoints {
			if again.Endpoints[j].EndpointID != first.Endpoints[j].EndpointID {
				t.Fatalf("ordering changed between calls at %d", j)
			}
		}
	}
}

func TestMutuallyExclusiveFilters(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	_, err := svc.SearchEndpoints(context.Background(), SearchRequest{
		Category: "Ad", CategoryGroup: "Ads",
	})
	var inv *InvalidArgumentError
	if !errors.As(err, &inv) {
		t.Fatalf("err = %v, want InvalidArgumentError", err)
	}
}

func TestNonexistentCategoryIsEmptyNotError(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	res, err := svc.SearchEndpoints(context.Background(), SearchRequest{Category: "Nope"})
	if err != nil {
		t.Fatalf("err = %v, want empty result", err)
	}
	if res.Total != 0 || len(res.Endpoints) != 0 {
		t.Errorf("result = %+v, want empty", res)
	}
}

func TestPagination(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()
	page1, err := svc.SearchEndpoints(ctx, SearchRequest{Category: "Statistics", Page: 1, PerPage: 5})
	if err != nil {
		t.Fatalf("page 1 failed: %v", err)
	}
	page3, err := svc.SearchEndpoints(ctx, SearchRequest{Category: "Statistics", Page: 3, PerPage: 5})
	if err != nil {
		t.Fatalf("page 3 failed: %v", err)
	}
	if page1.Total != 13 || page3.Total != 13 {
		t.Errorf("totals = %d, %d, want 13", page1.Total, page3.Total)
	}
	if len(page1.Endpoints) != 5 || len(page3.Endpoints) != 3 {
		t.Errorf("page sizes = %d, %d, want 5, 3", len(page1.Endpoints), len(page3.Endpoints))
	}

	if _, err := svc.SearchEndpoints(ctx, SearchRequest{Page: -1}); err == nil {
		t.Error("negative page accepted")
	}
	if _, err := svc.SearchEndpoints(ctx, SearchRequest{PerPage: -5}); err == nil {
		t.Error("negative perPage accepted")
	}
}

func TestUnknownMethodRejected(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	_, err := svc.SearchEndpoints(context.Background(), SearchRequest{Methods: []string{"YEET"}})
	var inv *InvalidArgumentError
	if !errors.As(err, &inv) || inv.Field != "httpMethods" {
		t.Fatalf("err = %v, want InvalidArgumentError on httpMethods", err)
	}
}

func TestDeriveTag(t *testing.T) {
	tests := []struct{ in, want string }{
		{"statistics", "Statistics"},
		{"search_promo", "Search-promo"},
		{"Ad", "Ad"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := DeriveTag(tt.in); got != tt.want {
			t.Errorf("DeriveTag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBreakerOpensOnInfrastructureFailure(t *testing.T) {
	svc, st := newTestService(t, Config{BreakerThreshold: 2, BreakerCooldown: time.Hour})
	st.Close() // every store call now fails

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := svc.SearchEndpoints(ctx, SearchRequest{}); err == nil {
			t.Fatal("expected failure from closed store")
		}
	}
	_, err := svc.SearchEndpoints(ctx, SearchRequest{})
	if !errors.Is(err, ErrShortCircuit) {
		t.Fatalf("err = %v, want ErrShortCircuit", err)
	}
}

func TestDomainErrorsDoNotOpenBreaker(t *testing.T) {
	svc, _ := newTestService(t, Config{BreakerThreshold: 2, BreakerCooldown: time.Hour})
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, err := svc.SearchEndpoints(ctx, SearchRequest{Category: "A", CategoryGroup: "B"})
		var inv *InvalidArgumentError
		if !errors.As(err, &inv) {
			t.Fatalf("err = %v, want InvalidArgumentError", err)
		}
	}
	if _, err := svc.SearchEndpoints(ctx, SearchRequest{}); err != nil {
		t.Fatalf("breaker opened on domain errors: %v", err)
	}
}
