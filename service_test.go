package oaf

import (
	"context"
	"errors"
	"math"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/hugr-lab/oaf-go/catalog"
	"github.com/hugr-lab/oaf-go/cql2"
	"github.com/hugr-lab/oaf-go/crs"
	"github.com/hugr-lab/oaf-go/filter"
	"github.com/hugr-lab/oaf-go/geom"
	"github.com/hugr-lab/oaf-go/link"
	"github.com/hugr-lab/oaf-go/query"
	"github.com/hugr-lab/oaf-go/store"
	"github.com/hugr-lab/oaf-go/store/memory"
)

// countingProvider wraps the memory store and counts every store call.
type countingProvider struct {
	mem      *memory.Provider
	calls    atomic.Int32
	released atomic.Int32
	failOp   string
	panicOp  string
}

func (p *countingProvider) Acquire(ctx context.Context, ft *catalog.FeatureType) (store.Handle, error) {
	p.calls.Add(1)
	h, err := p.mem.Acquire(ctx, ft)
	if err != nil {
		return nil, err
	}
	return &countingHandle{Handle: h, p: p}, nil
}

type countingHandle struct {
	store.Handle
	p *countingProvider
}

func (h *countingHandle) check(op string) error {
	h.p.calls.Add(1)
	if h.p.panicOp == op {
		panic(op + " exploded")
	}
	if h.p.failOp == op {
		return errors.New(op + " failed")
	}
	return nil
}

func (h *countingHandle) Hits(ctx context.Context, q *query.Query) (int, error) {
	if err := h.check("Hits"); err != nil {
		return 0, err
	}
	return h.Handle.Hits(ctx, q)
}

func (h *countingHandle) Query(ctx context.Context, q *query.Query) (store.FeatureStream, error) {
	if err := h.check("Query"); err != nil {
		return nil, err
	}
	return h.Handle.Query(ctx, q)
}

func (h *countingHandle) Release() {
	h.p.released.Add(1)
	h.Handle.Release()
	if h.p.panicOp == "Release" {
		panic("Release exploded")
	}
}

var stationsType = &catalog.FeatureType{
	Name:        catalog.QName{Namespace: "http://example.com/ns", Prefix: "ex", Local: "stations"},
	Title:       "Stations",
	Description: "Measurement stations",
	StorageCRS:  crs.EPSG4326,
	MetadataURLs: []catalog.MetadataURL{
		{Href: "https://example.com/meta/stations.xml", Type: "application/xml"},
	},
	Properties: []catalog.PropertyDescriptor{
		{Name: catalog.QName{Namespace: "http://example.com/ns", Local: "geom"}, Type: catalog.PropertyGeometry},
		{Name: catalog.QName{Namespace: "http://example.com/other", Local: "label"}, Type: catalog.PropertyString},
	},
}

func newTestService(t *testing.T) (*Service, *countingProvider) {
	t.Helper()
	ds, err := catalog.NewDatasetBuilder("demo").
		Title("Demo").
		SupportedCRS(crs.CRS84, crs.EPSG4326).
		FeatureType(stationsType).
		FeatureType(&catalog.FeatureType{Name: catalog.QName{Local: "roads"}}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	fc := geojson.NewFeatureCollection()
	for i := 1; i <= 25; i++ {
		f := geojson.NewFeature(orb.Point{float64(i), float64(i)})
		f.ID = i
		fc.Append(f)
	}
	mem := memory.NewProvider()
	mem.Add("stations", fc)

	links, err := link.NewBuilder("https://example.com/ogc")
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}

	p := &countingProvider{mem: mem}
	svc, err := NewService(Config{Dataset: ds, Stores: p, Links: links})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc, p
}

func hasRel(links []link.Link, rel string) bool {
	for _, l := range links {
		if l.Rel == rel {
			return true
		}
	}
	return false
}

// TestNewServiceValidation tests required config fields.
func TestNewServiceValidation(t *testing.T) {
	if _, err := NewService(Config{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

// TestListCollections tests summaries in configuration order.
func TestListCollections(t *testing.T) {
	svc, p := newTestService(t)

	res, err := svc.ListCollections(context.Background())
	if err != nil {
		t.Fatalf("ListCollections failed: %v", err)
	}
	if len(res.Collections) != 2 || res.Collections[0].ID != "stations" || res.Collections[1].ID != "roads" {
		t.Fatalf("unexpected collections %+v", res.Collections)
	}
	if !hasRel(res.Links, link.RelSelf) {
		t.Error("expected self link")
	}

	st := res.Collections[0]
	if st.Title != "Stations" || st.StorageCRS != crs.EPSG4326.URI() {
		t.Errorf("unexpected summary %+v", st)
	}
	if len(st.CRS) != 2 {
		t.Errorf("expected 2 CRS, got %v", st.CRS)
	}
	if !hasRel(st.Links, link.RelDescribedBy) || !hasRel(st.Links, link.RelItems) {
		t.Errorf("unexpected links %+v", st.Links)
	}
	if p.calls.Load() != 0 {
		t.Errorf("listing should not touch the store, got %d calls", p.calls.Load())
	}
}

// TestUnknownCollection tests that unknown ids fail before any store call.
func TestUnknownCollection(t *testing.T) {
	svc, p := newTestService(t)
	ctx := context.Background()

	if _, err := svc.GetCollection(ctx, "nope"); !errors.Is(err, ErrUnknownCollection) {
		t.Errorf("GetCollection: expected ErrUnknownCollection, got %v", err)
	}
	if _, err := svc.RetrieveFeatures(ctx, "nope", FeaturesRequest{Limit: 10}); !errors.Is(err, ErrUnknownCollection) {
		t.Errorf("RetrieveFeatures: expected ErrUnknownCollection, got %v", err)
	}
	if _, err := svc.RetrieveFeature(ctx, "nope", "1", ""); !errors.Is(err, ErrUnknownCollection) {
		t.Errorf("RetrieveFeature: expected ErrUnknownCollection, got %v", err)
	}
	var uc *UnknownCollectionError
	_, err := svc.GetCollection(ctx, "nope")
	if !errors.As(err, &uc) || uc.ID != "nope" {
		t.Errorf("unexpected error %v", err)
	}
	if p.calls.Load() != 0 {
		t.Errorf("expected zero store calls, got %d", p.calls.Load())
	}
}

// TestResponseCRS tests default and invalid response CRS values.
func TestResponseCRS(t *testing.T) {
	svc, p := newTestService(t)
	ctx := context.Background()

	res, err := svc.RetrieveFeatures(ctx, "stations", FeaturesRequest{Limit: 10})
	if err != nil {
		t.Fatalf("RetrieveFeatures failed: %v", err)
	}
	res.Features.Release()
	if !res.ResponseCRS.Equal(crs.CRS84) {
		t.Errorf("expected default CRS84, got %s", res.ResponseCRS)
	}

	calls := p.calls.Load()
	_, err = svc.RetrieveFeatures(ctx, "stations", FeaturesRequest{Limit: 10, ResponseCRS: "EPSG:99999"})
	var ipv *InvalidParameterValueError
	if !errors.As(err, &ipv) || ipv.Parameter != "crs" || ipv.Value != "EPSG:99999" {
		t.Fatalf("expected InvalidParameterValue for crs, got %v", err)
	}
	if !errors.Is(err, crs.ErrUnknownCRS) {
		t.Errorf("expected the registry error to be wrapped, got %v", err)
	}
	if p.calls.Load() != calls {
		t.Error("invalid CRS should fail before any store call")
	}

	res, err = svc.RetrieveFeature(ctx, "stations", "1", "http://www.opengis.net/def/crs/EPSG/0/4326")
	if err != nil {
		t.Fatalf("RetrieveFeature failed: %v", err)
	}
	res.Features.Release()
	if !res.ResponseCRS.Equal(crs.EPSG4326) {
		t.Errorf("expected EPSG:4326, got %s", res.ResponseCRS)
	}
}

// TestRetrieveFeaturesPaged tests counts, paging and next links.
func TestRetrieveFeaturesPaged(t *testing.T) {
	svc, p := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		limit    int
		offset   int
		want     int
		wantNext bool
	}{
		{"first page", 10, 0, 10, true},
		{"middle page", 10, 10, 10, true},
		{"last page", 10, 20, 5, false},
		{"exact end", 5, 20, 5, false},
		{"past the end", 10, 40, 0, false},
		{"offset near max int", 10, math.MaxInt - 5, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.RetrieveFeatures(ctx, "stations", FeaturesRequest{
				Limit:  tt.limit,
				Offset: tt.offset,
				Params: url.Values{"f": {"json"}},
			})
			if err != nil {
				t.Fatalf("RetrieveFeatures failed: %v", err)
			}
			fs, err := store.Collect(res.Features)
			if err != nil {
				t.Fatalf("Collect failed: %v", err)
			}
			if len(fs) != tt.want {
				t.Errorf("expected %d features, got %d", tt.want, len(fs))
			}
			if res.MatchedCount != 25 || res.ReturnedCount != tt.limit || res.StartIndex != tt.offset {
				t.Errorf("unexpected envelope matched=%d returned=%d start=%d", res.MatchedCount, res.ReturnedCount, res.StartIndex)
			}
			if hasRel(res.Links, link.RelNext) != tt.wantNext {
				t.Errorf("next link present = %v, want %v", !tt.wantNext, tt.wantNext)
			}
			if !res.MaxFeaturesAndStartIndexApplicable || res.Bulk {
				t.Error("paged memory queries apply limit and offset")
			}
			if len(res.NamespacePrefixes) != 1 || res.NamespacePrefixes["http://example.com/ns"] != "ex" {
				t.Errorf("unexpected prefixes %v", res.NamespacePrefixes)
			}
			if res.SchemaLocation != "https://example.com/ogc/datasets/demo/collections/stations/appschema" {
				t.Errorf("unexpected schema location %q", res.SchemaLocation)
			}
			if res.SchemaNamespace != "http://example.com/ns" {
				t.Errorf("unexpected schema namespace %q", res.SchemaNamespace)
			}
		})
	}

	if p.released.Load() != int32(len(tests)) {
		t.Errorf("expected %d releases, got %d", len(tests), p.released.Load())
	}
}

// TestRetrieveFeaturesBulk tests unlimited retrieval.
func TestRetrieveFeaturesBulk(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.RetrieveFeatures(context.Background(), "stations", FeaturesRequest{Bulk: true, Limit: 3, Offset: 7})
	if err != nil {
		t.Fatalf("RetrieveFeatures failed: %v", err)
	}
	fs, err := store.Collect(res.Features)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(fs) != 25 {
		t.Errorf("expected all 25 features, got %d", len(fs))
	}
	if res.ReturnedCount != query.Unlimited || res.StartIndex != 0 || !res.Bulk {
		t.Errorf("unexpected envelope %+v", res)
	}
	if len(res.Links) != 1 || res.Links[0].Rel != link.RelSelf {
		t.Errorf("bulk responses carry only a self link, got %+v", res.Links)
	}
}

// TestRetrieveFeaturesFilter tests a translated filter end to end.
func TestRetrieveFeaturesFilter(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tree, err := cql2.ParseJSON([]byte(`{"spatial": {"op": "S_INTERSECTS", "args": [
		{"property": "geom"}, {"bbox": [0.5, 0.5, 3.5, 3.5]}]}}`))
	if err != nil {
		t.Fatalf("ParseJSON failed: %v", err)
	}
	pred, err := svc.TranslateFilter(ctx, "stations", tree, "")
	if err != nil {
		t.Fatalf("TranslateFilter failed: %v", err)
	}
	sp, ok := pred.(*filter.Spatial)
	if !ok || !sp.Property.Resolved {
		t.Fatalf("unexpected predicate %v", pred)
	}
	if env, ok := sp.Geometry.(*geom.Envelope); !ok || !env.CRS().Equal(crs.CRS84) {
		t.Errorf("unexpected geometry %v", sp.Geometry)
	}

	res, err := svc.RetrieveFeatures(ctx, "stations", FeaturesRequest{Filter: pred, Limit: 2})
	if err != nil {
		t.Fatalf("RetrieveFeatures failed: %v", err)
	}
	defer res.Features.Release()
	if res.MatchedCount != 3 {
		t.Errorf("expected 3 matches, got %d", res.MatchedCount)
	}
	if !hasRel(res.Links, link.RelNext) {
		t.Error("expected next link")
	}

	if _, err := svc.TranslateFilter(ctx, "stations", tree, "EPSG:0"); !errors.Is(err, ErrInvalidParameterValue) {
		t.Errorf("expected ErrInvalidParameterValue for filter-crs, got %v", err)
	}
}

// TestRetrieveFeatureByID tests fixed counts for single features.
func TestRetrieveFeatureByID(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.RetrieveFeature(context.Background(), "stations", "7", "")
	if err != nil {
		t.Fatalf("RetrieveFeature failed: %v", err)
	}
	fs, err := store.Collect(res.Features)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(fs) != 1 || store.FeatureID(fs[0]) != "7" {
		t.Fatalf("unexpected features %+v", fs)
	}
	if res.MatchedCount != 1 || res.ReturnedCount != 1 || res.StartIndex != 0 {
		t.Errorf("unexpected envelope matched=%d returned=%d start=%d", res.MatchedCount, res.ReturnedCount, res.StartIndex)
	}
	if !res.MaxFeaturesAndStartIndexApplicable {
		t.Error("single feature responses report limit and offset as applied")
	}
	if res.SchemaNamespace != "http://example.com/ns" {
		t.Errorf("unexpected schema namespace %q", res.SchemaNamespace)
	}
	if len(res.Links) != 2 || !hasRel(res.Links, link.RelSelf) || !hasRel(res.Links, link.RelCollection) {
		t.Errorf("unexpected links %+v", res.Links)
	}

	if _, err := svc.RetrieveFeature(context.Background(), "stations", "", ""); !errors.Is(err, ErrInvalidParameterValue) {
		t.Errorf("expected ErrInvalidParameterValue, got %v", err)
	}
}

// TestInvalidPaging tests limit and offset validation.
func TestInvalidPaging(t *testing.T) {
	svc, p := newTestService(t)

	_, err := svc.RetrieveFeatures(context.Background(), "stations", FeaturesRequest{Limit: 0})
	var ipv *InvalidParameterValueError
	if !errors.As(err, &ipv) || ipv.Parameter != "limit" {
		t.Errorf("expected invalid limit, got %v", err)
	}
	_, err = svc.RetrieveFeatures(context.Background(), "stations", FeaturesRequest{Limit: 5, Offset: -1})
	if !errors.As(err, &ipv) || ipv.Parameter != "offset" {
		t.Errorf("expected invalid offset, got %v", err)
	}
	if p.calls.Load() != 0 {
		t.Errorf("expected zero store calls, got %d", p.calls.Load())
	}
}

// TestStoreFailures tests that store errors and panics are wrapped and the
// handle is released.
func TestStoreFailures(t *testing.T) {
	tests := []struct {
		name    string
		failOp  string
		panicOp string
		op      string
	}{
		{"hits error", "Hits", "", "Hits"},
		{"query error", "Query", "", "Query"},
		{"hits panic", "", "Hits", "Hits"},
		{"query panic", "", "Query", "Query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, p := newTestService(t)
			p.failOp, p.panicOp = tt.failOp, tt.panicOp

			_, err := svc.RetrieveFeatures(context.Background(), "stations", FeaturesRequest{Limit: 10})
			var iq *InternalQueryError
			if !errors.As(err, &iq) || iq.Op != tt.op {
				t.Fatalf("expected InternalQueryError in %s, got %v", tt.op, err)
			}
			if !errors.Is(err, ErrInternalQuery) {
				t.Error("expected ErrInternalQuery")
			}
			if p.released.Load() != 1 {
				t.Errorf("expected handle release, got %d", p.released.Load())
			}
		})
	}

	// A panicking release is logged and does not fail the request.
	svc, p := newTestService(t)
	p.panicOp = "Release"
	res, err := svc.RetrieveFeatures(context.Background(), "stations", FeaturesRequest{Limit: 10})
	if err != nil {
		t.Fatalf("RetrieveFeatures failed: %v", err)
	}
	res.Features.Release()
	if p.released.Load() != 1 {
		t.Errorf("expected handle release, got %d", p.released.Load())
	}

	// A collection without a registered store fails in Acquire.
	_, err = svc.RetrieveFeatures(context.Background(), "roads", FeaturesRequest{Limit: 10})
	if !errors.Is(err, ErrInternalQuery) || !errors.Is(err, store.ErrUnknownFeatureType) {
		t.Errorf("expected wrapped ErrUnknownFeatureType, got %v", err)
	}
}
