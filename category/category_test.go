package category

import (
	"reflect"
	"testing"

	"github.com/antflydb/specaf/parse"
)

func testTables() Tables {
	t := NewTables()
	t.AddTag(&parse.TagDef{Name: "Campaign", Description: "Campaign ops", DisplayName: "Кампании"})
	t.AddTag(&parse.TagDef{Name: "Statistics"})
	t.AddGroup(&parse.TagGroupDef{Name: "Ads", Tags: []string{"Campaign", "Statistics"}})
	return t
}

func TestAssignCascade(t *testing.T) {
	tables := testTables()
	tests := []struct {
		name string
		path string
		tags []string
		want Assignment
	}{
		{
			name: "first tag wins with metadata",
			path: "/api/v1/whatever",
			tags: []string{"Campaign", "Extra"},
			want: Assignment{Name: "Campaign", Group: "Ads", DisplayName: "Кампании", Description: "Campaign ops"},
		},
		{
			name: "tag without definition keeps bare name",
			path: "/x",
			tags: []string{"Orphan"},
			want: Assignment{Name: "Orphan"},
		},
		{
			name: "path fallback with version segment",
			path: "/api/v2/Campaigns/{id}",
			tags: nil,
			want: Assignment{Name: "campaigns"},
		},
		{
			name: "path fallback without version segment",
			path: "/api/search_promo/items",
			tags: nil,
			want: Assignment{Name: "search_promo"},
		},
		{
			name: "placeholder segment falls through",
			path: "/api/{id}",
			tags: nil,
			want: Assignment{Name: Uncategorized},
		},
		{
			name: "single segment falls through",
			path: "/ping",
			tags: nil,
			want: Assignment{Name: Uncategorized},
		},
		{
			name: "version with no following segment falls through",
			path: "/api/v1",
			tags: nil,
			want: Assignment{Name: Uncategorized},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Assign(tt.path, tt.tags, tables)
			if got != tt.want {
				t.Errorf("Assign(%q, %v) = %+v, want %+v", tt.path, tt.tags, got, tt.want)
			}
		})
	}
}

func TestAssignDeterministic(t *testing.T) {
	tables := testTables()
	first := Assign("/api/v2/campaigns", []string{"Campaign"}, tables)
	for i := 0; i < 10; i++ {
		if got := Assign("/api/v2/campaigns", []string{"Campaign"}, tables); got != first {
			t.Fatalf("assignment changed between calls: %+v vs %+v", got, first)
		}
	}
}

func TestRollup(t *testing.T) {
	r := NewRollup()
	campaign := Assignment{Name: "Campaign", Group: "Ads"}
	r.Observe(campaign, "GET")
	r.Observe(campaign, "POST")
	r.Observe(campaign, "GET")
	r.Observe(Assignment{Name: "Statistics"}, "POST")

	cats := r.Categories()
	if len(cats) != 2 {
		t.Fatalf("categories = %d, want 2", len(cats))
	}
	// Sorted by name.
	if cats[0].Name != "Campaign" || cats[1].Name != "Statistics" {
		t.Fatalf("order = [%s %s]", cats[0].Name, cats[1].Name)
	}
	if cats[0].EndpointCount != 3 {
		t.Errorf("Campaign count = %d, want 3", cats[0].EndpointCount)
	}
	if !reflect.DeepEqual(cats[0].Methods, []string{"GET", "POST"}) {
		t.Errorf("Campaign methods = %v, want [GET POST]", cats[0].Methods)
	}
	if cats[1].EndpointCount != 1 || !reflect.DeepEqual(cats[1].Methods, []string{"POST"}) {
		t.Errorf("Statistics = %+v", cats[1])
	}
}

func TestGroupFirstClaimWins(t *testing.T) {
	tables := NewTables()
	tables.AddGroup(&parse.TagGroupDef{Name: "First", Tags: []string{"Shared"}})
	tables.AddGroup(&parse.TagGroupDef{Name: "Second", Tags: []string{"Shared"}})
	got := Assign("/x/y", []string{"Shared"}, tables)
	if got.Group != "First" {
		t.Errorf("group = %q, want First", got.Group)
	}
}
