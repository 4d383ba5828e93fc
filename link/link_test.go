package link

import (
	"math"
	"net/url"
	"testing"

	"github.com/hugr-lab/oaf-go/catalog"
)

// TestComputeNextLink tests next page detection.
func TestComputeNextLink(t *testing.T) {
	tests := []struct {
		name                   string
		matched, limit, offset int
		want                   NextLink
	}{
		{"first page", 100, 10, 0, NextLink{HasNext: true, NextOffset: 10, NextLimit: 10}},
		{"last page", 100, 10, 90, NextLink{HasNext: false, NextOffset: 100, NextLimit: 10}},
		{"partial last page", 95, 10, 90, NextLink{HasNext: false, NextOffset: 100, NextLimit: 10}},
		{"one left", 101, 10, 90, NextLink{HasNext: true, NextOffset: 100, NextLimit: 10}},
		{"offset past end", 5, 10, 50, NextLink{HasNext: false, NextOffset: 60, NextLimit: 10}},
		{"nothing matched", 0, 10, 0, NextLink{HasNext: false, NextOffset: 10, NextLimit: 10}},
		{"huge offset", 25, 10, math.MaxInt - 5, NextLink{HasNext: false, NextOffset: math.MaxInt, NextLimit: 10}},
		{"huge offset and matched", math.MaxInt, 10, math.MaxInt - 5, NextLink{HasNext: false, NextOffset: math.MaxInt, NextLimit: 10}},
		{"huge limit", 25, math.MaxInt, 3, NextLink{HasNext: false, NextOffset: math.MaxInt, NextLimit: math.MaxInt}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeNextLink(tt.matched, tt.limit, tt.offset); got != tt.want {
				t.Errorf("ComputeNextLink(%d, %d, %d) = %+v, want %+v", tt.matched, tt.limit, tt.offset, got, tt.want)
			}
		})
	}
}

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder("https://example.com/oaf/")
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	return b
}

func findRel(links []Link, rel string) (Link, bool) {
	for _, l := range links {
		if l.Rel == rel {
			return l, true
		}
	}
	return Link{}, false
}

// TestNewBuilder tests base URL validation.
func TestNewBuilder(t *testing.T) {
	if _, err := NewBuilder("/relative"); err == nil {
		t.Error("expected error for relative base url")
	}
	if _, err := NewBuilder("http://[::1"); err == nil {
		t.Error("expected error for malformed base url")
	}
}

// TestCollectionLinks tests collection and collections links.
func TestCollectionLinks(t *testing.T) {
	b := newTestBuilder(t)

	links := b.CollectionsLinks("roads")
	if len(links) != 1 || links[0].Href != "https://example.com/oaf/datasets/roads/collections" {
		t.Errorf("unexpected collections links %+v", links)
	}

	links = b.CollectionLinks("roads", "motorways", []catalog.MetadataURL{
		{Href: "https://example.com/md.xml", Type: "application/xml", Title: "ISO metadata"},
	})
	if len(links) != 3 {
		t.Fatalf("expected 3 links, got %+v", links)
	}
	if l, _ := findRel(links, RelItems); l.Href != "https://example.com/oaf/datasets/roads/collections/motorways/items" {
		t.Errorf("unexpected items link %+v", l)
	}
	if l, ok := findRel(links, RelDescribedBy); !ok || l.Href != "https://example.com/md.xml" || l.Type != "application/xml" {
		t.Errorf("unexpected describedby link %+v", l)
	}
}

// TestFeaturesLinks tests bulk and paged feature links.
func TestFeaturesLinks(t *testing.T) {
	b := newTestBuilder(t)

	bulk := b.FeaturesLinks("roads", "motorways", nil)
	if len(bulk) != 1 || bulk[0].Rel != RelSelf {
		t.Errorf("bulk response should only have a self link, got %+v", bulk)
	}

	params := url.Values{"filter": {"S_INTERSECTS(geom, POINT(1 2))"}, "offset": {"999"}}
	links := b.PagedFeaturesLinks("roads", "motorways", 0, ComputeNextLink(100, 10, 0), params)
	if len(links) != 3 {
		t.Fatalf("expected self, next and collection, got %+v", links)
	}

	next, ok := findRel(links, RelNext)
	if !ok {
		t.Fatal("missing next link")
	}
	u, err := url.Parse(next.Href)
	if err != nil {
		t.Fatalf("invalid next href: %v", err)
	}
	q := u.Query()
	if q.Get("offset") != "10" || q.Get("limit") != "10" || q.Get("filter") != params.Get("filter") {
		t.Errorf("unexpected next query %v", q)
	}
	if params.Get("offset") != "999" {
		t.Error("params should not be modified")
	}

	if l, _ := findRel(links, RelCollection); l.Href != "https://example.com/oaf/datasets/roads/collections/motorways" {
		t.Errorf("unexpected collection link %+v", l)
	}

	last := b.PagedFeaturesLinks("roads", "motorways", 90, ComputeNextLink(100, 10, 90), nil)
	if _, ok := findRel(last, RelNext); ok {
		t.Error("last page should have no next link")
	}
}

// TestFeatureLinks tests single feature links and path escaping.
func TestFeatureLinks(t *testing.T) {
	b := newTestBuilder(t)

	links := b.FeatureLinks("roads", "motorways", "a/b c")
	self, _ := findRel(links, RelSelf)
	if self.Href != "https://example.com/oaf/datasets/roads/collections/motorways/items/a%2Fb%20c" {
		t.Errorf("unexpected self link %q", self.Href)
	}
	if _, ok := findRel(links, RelCollection); !ok {
		t.Error("missing collection link")
	}

	if got := b.SchemaLink("roads", "motorways"); got != "https://example.com/oaf/datasets/roads/collections/motorways/appschema" {
		t.Errorf("unexpected schema link %q", got)
	}
}
