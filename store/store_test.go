package store

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/hugr-lab/oaf-go/catalog"
	"github.com/hugr-lab/oaf-go/crs"
	"github.com/hugr-lab/oaf-go/filter"
	"github.com/hugr-lab/oaf-go/geom"
	"github.com/hugr-lab/oaf-go/query"
)

func pointFeature(id any, x, y float64) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{x, y})
	f.ID = id
	return f
}

func testFeatures() []*geojson.Feature {
	fs := make([]*geojson.Feature, 10)
	for i := range fs {
		fs[i] = pointFeature(i+1, float64(i), float64(i))
	}
	return fs
}

func ids(t *testing.T, s FeatureStream) []string {
	t.Helper()
	fs, err := Collect(s)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = FeatureID(f)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestSelect tests in-process filtering and paging.
func TestSelect(t *testing.T) {
	box := &filter.Spatial{
		Operator: filter.SpatialIntersects,
		Property: filter.PropertyRef{Name: catalog.QName{Local: "geometry"}},
		Geometry: geom.NewBuilder(crs.CRS84).EnvelopeBounds(2, 2, 6, 6),
	}

	tests := []struct {
		name string
		q    *query.Query
		want []string
	}{
		{"first page", &query.Query{Limit: 3}, []string{"1", "2", "3"}},
		{"second page", &query.Query{Limit: 3, Offset: 3}, []string{"4", "5", "6"}},
		{"past end", &query.Query{Limit: 3, Offset: 20}, []string{}},
		{"unbounded", &query.Query{Limit: query.Unlimited, Offset: 8}, []string{"9", "10"}},
		{"filtered", &query.Query{Filter: box, Limit: 10}, []string{"3", "4", "5", "6", "7"}},
		{"filtered page", &query.Query{Filter: box, Limit: 2, Offset: 2}, []string{"5", "6"}},
		{"by id", &query.Query{FeatureID: "7", Limit: 1}, []string{"7"}},
		{"missing id", &query.Query{FeatureID: "70", Limit: 1}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(t, Select(NewSliceStream(testFeatures()), tt.q))
			if !equalStrings(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCount tests hit counting ignores paging.
func TestCount(t *testing.T) {
	n, err := Count(NewSliceStream(testFeatures()), &query.Query{Limit: 2, Offset: 5})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 10 {
		t.Errorf("expected 10 hits, got %d", n)
	}
}

// TestSliceStreamRelease tests release stops iteration and is idempotent.
func TestSliceStreamRelease(t *testing.T) {
	s := NewSliceStream(testFeatures())
	if !s.Next() || s.Feature() == nil {
		t.Fatal("expected a first feature")
	}
	s.Release()
	s.Release()
	if s.Next() {
		t.Error("Next should be false after Release")
	}
}

type fakeProvider struct {
	name     string
	acquired int
	closed   bool
}

func (p *fakeProvider) Acquire(context.Context, *catalog.FeatureType) (Handle, error) {
	p.acquired++
	return nil, nil
}

func (p *fakeProvider) Close() error {
	p.closed = true
	return nil
}

// TestRouter tests provider dispatch by store id.
func TestRouter(t *testing.T) {
	r := NewRouter()
	a, b := &fakeProvider{name: "a"}, &fakeProvider{name: "b"}
	if err := r.Register("a", a); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register("b", b); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register("a", b); err == nil {
		t.Error("expected duplicate registration error")
	}

	ctx := context.Background()
	_, _ = r.Acquire(ctx, &catalog.FeatureType{Name: catalog.QName{Local: "x"}})
	_, _ = r.Acquire(ctx, &catalog.FeatureType{Name: catalog.QName{Local: "y"}, Store: "b"})
	if a.acquired != 1 || b.acquired != 1 {
		t.Errorf("unexpected dispatch a=%d b=%d", a.acquired, b.acquired)
	}

	if err := r.SetDefault("b"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	_, _ = r.Acquire(ctx, &catalog.FeatureType{Name: catalog.QName{Local: "x"}})
	if b.acquired != 2 {
		t.Errorf("default provider not used, b=%d", b.acquired)
	}

	_, err := r.Acquire(ctx, &catalog.FeatureType{Name: catalog.QName{Local: "z"}, Store: "nope"})
	if !errors.Is(err, ErrUnknownStore) {
		t.Errorf("expected ErrUnknownStore, got %v", err)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("providers should be closed")
	}
}

// TestFeatureTypeNamespaces tests namespace collection.
func TestFeatureTypeNamespaces(t *testing.T) {
	ft := &catalog.FeatureType{
		Name: catalog.QName{Namespace: "http://example.com/app", Local: "roads", Prefix: "app"},
		Properties: []catalog.PropertyDescriptor{
			{Name: catalog.QName{Namespace: "http://example.com/app", Local: "geom", Prefix: "app"}},
			{Name: catalog.QName{Namespace: "http://example.com/base", Local: "name", Prefix: "base"}},
			{Name: catalog.QName{Local: "plain"}},
		},
	}
	ns := FeatureTypeNamespaces(ft)
	if len(ns) != 2 || ns[0].Prefix != "app" || ns[1].URI != "http://example.com/base" {
		t.Errorf("unexpected namespaces %+v", ns)
	}
}

// TestFeatureTypeNamespacesWithoutPrefix tests that unprefixed namespaces
// are not bound.
func TestFeatureTypeNamespacesWithoutPrefix(t *testing.T) {
	ft := &catalog.FeatureType{
		Name: catalog.QName{Namespace: "http://a", Local: "roads", Prefix: "a"},
		Properties: []catalog.PropertyDescriptor{
			{Name: catalog.QName{Namespace: "http://b", Local: "name"}},
			{Name: catalog.QName{Namespace: "http://c", Local: "kind"}},
			{Name: catalog.QName{Namespace: "http://c", Local: "class", Prefix: "c"}},
		},
	}
	ns := FeatureTypeNamespaces(ft)
	want := []Namespace{{Prefix: "a", URI: "http://a"}, {Prefix: "c", URI: "http://c"}}
	if len(ns) != len(want) {
		t.Fatalf("expected %+v, got %+v", want, ns)
	}
	for i := range want {
		if ns[i] != want[i] {
			t.Errorf("namespace %d: expected %+v, got %+v", i, want[i], ns[i])
		}
	}
}
