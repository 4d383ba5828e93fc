package arrowstore

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/hugr-lab/oaf-go/catalog"
	"github.com/hugr-lab/oaf-go/crs"
	"github.com/hugr-lab/oaf-go/filter"
	"github.com/hugr-lab/oaf-go/geom"
	"github.com/hugr-lab/oaf-go/internal/recovery"
	"github.com/hugr-lab/oaf-go/query"
	"github.com/hugr-lab/oaf-go/store"
)

var stations = &catalog.FeatureType{Name: catalog.QName{Local: "stations"}}

var base = time.Date(2022, 5, 1, 12, 0, 0, 0, time.UTC)

// newStationsScan returns a scan function over five point features split
// across two record batches. The options of the last call are stored in last.
func newStationsScan(t *testing.T, last **ScanOptions) ScanFunc {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "name", Type: arrow.BinaryTypes.String},
		{Name: "updated", Type: &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}, Nullable: true},
		NewGeometryField("location", true, crs.CRS84),
	}, nil)

	return func(ctx context.Context, opts *ScanOptions) (array.RecordReader, error) {
		if last != nil {
			*last = opts
		}
		mem := memory.NewGoAllocator()
		var batches []arrow.RecordBatch
		for b := 0; b < 2; b++ {
			builder := array.NewRecordBuilder(mem, schema)
			for i := b * 3; i < b*3+3 && i < 5; i++ {
				builder.Field(0).(*array.Int64Builder).Append(int64(i + 1))
				builder.Field(1).(*array.StringBuilder).Append("station")
				ts, err := arrow.TimestampFromTime(base.AddDate(0, 0, i), arrow.Microsecond)
				if err != nil {
					return nil, err
				}
				builder.Field(2).(*array.TimestampBuilder).Append(ts)
				data, err := wkb.Marshal(orb.Point{float64(i), float64(i)})
				if err != nil {
					return nil, err
				}
				builder.Field(3).(*array.ExtensionBuilder).Builder.(*array.BinaryBuilder).Append(data)
			}
			batches = append(batches, builder.NewRecordBatch())
			builder.Release()
		}
		return array.NewRecordReader(schema, batches)
	}
}

func acquire(t *testing.T, p *Provider) store.Handle {
	t.Helper()
	h, err := p.Acquire(context.Background(), stations)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	t.Cleanup(h.Release)
	return h
}

// TestQueryPaging tests paging across record batches.
func TestQueryPaging(t *testing.T) {
	var last *ScanOptions
	p := NewProvider(WithSource("stations", Source{Scan: newStationsScan(t, &last)}))
	h := acquire(t, p)
	ctx := context.Background()

	q := &query.Query{TypeName: stations.Name, Limit: 2, Offset: 2}
	s, err := h.Query(ctx, q)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	fs, err := store.Collect(s)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(fs) != 2 || fs[0].ID != int64(3) || fs[1].ID != int64(4) {
		t.Fatalf("unexpected features %+v", fs)
	}
	if fs[1].Geometry != (orb.Point{3, 3}) {
		t.Errorf("unexpected geometry %v", fs[1].Geometry)
	}
	if updated, ok := fs[0].Properties["updated"].(time.Time); !ok || !updated.Equal(base.AddDate(0, 0, 2)) {
		t.Errorf("unexpected updated %v", fs[0].Properties["updated"])
	}
	if last.Limit != 4 {
		t.Errorf("expected limit hint 4, got %d", last.Limit)
	}

	hits, err := h.Hits(ctx, q)
	if err != nil {
		t.Fatalf("Hits failed: %v", err)
	}
	if hits != 5 {
		t.Errorf("expected 5 hits, got %d", hits)
	}
}

// TestQueryFilterTicket tests filter push-down and in-process filtering.
func TestQueryFilterTicket(t *testing.T) {
	var last *ScanOptions
	p := NewProvider(WithSource("stations", Source{Scan: newStationsScan(t, &last)}))
	h := acquire(t, p)

	pred := &filter.Spatial{
		Operator: filter.SpatialIntersects,
		Property: filter.PropertyRef{Name: catalog.QName{Local: "location"}},
		Geometry: geom.NewBuilder(crs.CRS84).EnvelopeBounds(0.5, 0.5, 2.5, 2.5),
	}
	q := &query.Query{TypeName: stations.Name, Filter: pred, Limit: 10}
	s, err := h.Query(context.Background(), q)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	fs, err := store.Collect(s)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(fs) != 2 {
		t.Fatalf("expected 2 features, got %d", len(fs))
	}

	if last.Limit != 0 {
		t.Errorf("filtered scans should not get a limit, got %d", last.Limit)
	}
	decoded, err := DecodeTicket(last.Filter)
	if err != nil {
		t.Fatalf("DecodeTicket failed: %v", err)
	}
	if _, ok := decoded.Filter.(*filter.Spatial); !ok || decoded.Limit != 10 {
		t.Errorf("unexpected ticket %v", decoded)
	}
}

// TestQueryTemporal tests AFTER on timestamp columns.
func TestQueryTemporal(t *testing.T) {
	p := NewProvider(WithSource("stations", Source{Scan: newStationsScan(t, nil)}))
	h := acquire(t, p)

	pred := &filter.Temporal{
		Operator: filter.TemporalAfter,
		Property: filter.PropertyRef{Name: catalog.QName{Local: "updated"}},
		Instant:  filter.Instant{Time: time.Date(2022, 5, 3, 0, 0, 0, 0, time.UTC), Precision: filter.PrecisionDate},
	}
	n, err := h.Hits(context.Background(), &query.Query{TypeName: stations.Name, Filter: pred, Limit: 10})
	if err != nil {
		t.Fatalf("Hits failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 hits, got %d", n)
	}
}

// TestScanPanic tests that panicking scan functions become errors.
func TestScanPanic(t *testing.T) {
	p := NewProvider(WithSource("stations", Source{Scan: func(context.Context, *ScanOptions) (array.RecordReader, error) {
		panic("scan failed")
	}}))
	h := acquire(t, p)

	_, err := h.Query(context.Background(), &query.Query{TypeName: stations.Name, Limit: 1})
	if !errors.Is(err, recovery.ErrPanic) {
		t.Errorf("expected recovered panic, got %v", err)
	}
}

// TestGeometryExtensionType tests extension type identity.
func TestGeometryExtensionType(t *testing.T) {
	ext := NewGeometryExtensionType()
	if ext.ExtensionName() != "geoarrow.wkb" {
		t.Errorf("unexpected name %s", ext.ExtensionName())
	}
	if !ext.ExtensionEquals(NewGeometryExtensionType()) {
		t.Error("extension types should be equal")
	}
	if _, err := ext.Deserialize(arrow.PrimitiveTypes.Int64, ""); err == nil {
		t.Error("expected error for non-binary storage")
	}
	large, err := ext.Deserialize(arrow.BinaryTypes.LargeBinary, "")
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if ext.ExtensionEquals(large) {
		t.Error("binary and large binary storage should differ")
	}

	f := NewGeometryField("geom", true, crs.EPSG4326)
	if !isGeometryField(f) {
		t.Error("expected geometry field")
	}
	if srid, _ := f.Metadata.GetValue("srid"); srid != "4326" {
		t.Errorf("unexpected srid %q", srid)
	}
	if isGeometryField(arrow.Field{Name: "x", Type: arrow.BinaryTypes.Binary}) {
		t.Error("plain binary is not a geometry field")
	}
}

// TestAcquireUnknown tests unknown collections.
func TestAcquireUnknown(t *testing.T) {
	p := NewProvider()
	if _, err := p.Acquire(context.Background(), stations); !errors.Is(err, store.ErrUnknownFeatureType) {
		t.Errorf("expected ErrUnknownFeatureType, got %v", err)
	}
}

// TestFileScan tests serving a collection from an Arrow IPC file.
func TestFileScan(t *testing.T) {
	reader, err := newStationsScan(t, nil)(context.Background(), &ScanOptions{})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	defer reader.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(reader.Schema()))
	for reader.Next() {
		if err := w.Write(reader.RecordBatch()); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "stations.arrows")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	h := acquire(t, NewProvider(WithSource("stations", Source{Scan: FileScan(path)})))
	n, err := h.Hits(context.Background(), &query.Query{TypeName: stations.Name, Limit: 10})
	if err != nil {
		t.Fatalf("Hits failed: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5 hits, got %d", n)
	}

	missing := acquire(t, NewProvider(WithSource("stations", Source{Scan: FileScan(filepath.Join(t.TempDir(), "none"))})))
	if _, err := missing.Hits(context.Background(), &query.Query{TypeName: stations.Name, Limit: 10}); err == nil {
		t.Error("expected error for missing file")
	}
}
