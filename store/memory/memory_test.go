package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hugr-lab/oaf-go/catalog"
	"github.com/hugr-lab/oaf-go/query"
	"github.com/hugr-lab/oaf-go/store"
)

const roadsJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "r1", "geometry": {"type": "Point", "coordinates": [1, 1]}, "properties": {"name": "A1"}},
    {"type": "Feature", "id": "r2", "geometry": {"type": "Point", "coordinates": [2, 2]}, "properties": {"name": "A2"}},
    {"type": "Feature", "id": "r3", "geometry": {"type": "Point", "coordinates": [3, 3]}, "properties": {"name": "A3"}}
  ]
}`

func roadsType() *catalog.FeatureType {
	return &catalog.FeatureType{Name: catalog.QName{Namespace: "http://example.com/app", Local: "roads", Prefix: "app"}}
}

func loadRoads(t *testing.T) *Provider {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roads.geojson")
	if err := os.WriteFile(path, []byte(roadsJSON), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	p := NewProvider()
	if err := p.LoadFile("roads", path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	return p
}

// TestProviderQuery tests hits and paged queries.
func TestProviderQuery(t *testing.T) {
	p := loadRoads(t)
	ctx := context.Background()

	h, err := p.Acquire(ctx, roadsType())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer h.Release()

	q := &query.Query{TypeName: roadsType().Name, Limit: 2, Offset: 1}
	hits, err := h.Hits(ctx, q)
	if err != nil {
		t.Fatalf("Hits failed: %v", err)
	}
	if hits != 3 {
		t.Errorf("expected 3 hits, got %d", hits)
	}

	s, err := h.Query(ctx, q)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	fs, err := store.Collect(s)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(fs) != 2 || fs[0].ID != "r2" || fs[1].Properties["name"] != "A3" {
		t.Errorf("unexpected features %+v", fs)
	}

	if !h.MaxFeaturesAndStartIndexApplicable(q) {
		t.Error("paged query should apply limit and offset")
	}
	if ns := h.Schema(); len(ns) != 1 || ns[0].Prefix != "app" {
		t.Errorf("unexpected schema %+v", ns)
	}
}

// TestProviderByID tests identity queries.
func TestProviderByID(t *testing.T) {
	p := loadRoads(t)
	ctx := context.Background()

	h, err := p.Acquire(ctx, roadsType())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer h.Release()

	q, err := query.BuildByID(roadsType(), "r3")
	if err != nil {
		t.Fatalf("BuildByID failed: %v", err)
	}
	s, err := h.Query(ctx, q)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	fs, err := store.Collect(s)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(fs) != 1 || fs[0].ID != "r3" {
		t.Errorf("unexpected features %+v", fs)
	}
}

// TestProviderErrors tests unknown collections and released handles.
func TestProviderErrors(t *testing.T) {
	p := loadRoads(t)
	ctx := context.Background()

	_, err := p.Acquire(ctx, &catalog.FeatureType{Name: catalog.QName{Local: "rivers"}})
	if !errors.Is(err, store.ErrUnknownFeatureType) {
		t.Errorf("expected ErrUnknownFeatureType, got %v", err)
	}

	h, err := p.Acquire(ctx, roadsType())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	h.Release()
	if _, err := h.Hits(ctx, &query.Query{Limit: 1}); !errors.Is(err, store.ErrReleased) {
		t.Errorf("expected ErrReleased, got %v", err)
	}

	if err := p.LoadFile("x", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
