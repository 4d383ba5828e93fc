// Package arrowstore provides a feature store over Arrow record readers.
//
// Collections are served by scan functions. The query is passed to the scan
// function as a ticket in ScanOptions.Filter; scan functions MAY use it to
// prune data and MAY ignore it. Filter, offset and limit are always applied
// again in-process, so results are exact either way.
package arrowstore

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"

	"github.com/hugr-lab/oaf-go/catalog"
	"github.com/hugr-lab/oaf-go/internal/recovery"
	"github.com/hugr-lab/oaf-go/query"
	"github.com/hugr-lab/oaf-go/store"
)

// ScanOptions provides options for scans.
type ScanOptions struct {
	// Filter is the encoded query ticket. Decode with DecodeTicket.
	Filter []byte

	// Limit is maximum rows to return.
	// If 0 or negative, no limit.
	Limit int64
}

// ScanFunc returns the records of a collection.
// Returned RecordReader is released by the store.
type ScanFunc func(ctx context.Context, opts *ScanOptions) (array.RecordReader, error)

// Source describes how a collection is scanned.
type Source struct {
	// Scan produces the collection's records.
	// REQUIRED.
	Scan ScanFunc

	// IDColumn holds feature identifiers. Defaults to "id".
	IDColumn string

	// GeometryColumn holds WKB geometries.
	// OPTIONAL: defaults to the first geoarrow.wkb field.
	GeometryColumn string
}

var codec = sync.OnceValues(query.NewTicketCodec)

// DecodeTicket decodes the query passed to a scan function.
func DecodeTicket(data []byte) (*query.Query, error) {
	c, err := codec()
	if err != nil {
		return nil, err
	}
	return c.Decode(data)
}

// Option configures a Provider.
type Option func(*Provider)

// WithSource serves collectionID from src.
func WithSource(collectionID string, src Source) Option {
	return func(p *Provider) {
		if src.IDColumn == "" {
			src.IDColumn = "id"
		}
		p.sources[collectionID] = src
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// Provider serves feature types from scan functions.
type Provider struct {
	sources map[string]Source
	logger  *slog.Logger
}

// NewProvider creates a provider.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{sources: make(map[string]Source), logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire implements store.Provider.
func (p *Provider) Acquire(_ context.Context, ft *catalog.FeatureType) (store.Handle, error) {
	src, ok := p.sources[ft.ID()]
	if !ok || src.Scan == nil {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownFeatureType, ft.ID())
	}
	return &handle{src: src, namespaces: store.FeatureTypeNamespaces(ft), logger: p.logger}, nil
}

type handle struct {
	src        Source
	namespaces []store.Namespace
	logger     *slog.Logger
	released   atomic.Bool
}

// scan runs the scan function with q as ticket. Panics in user scan
// functions are returned as errors.
func (h *handle) scan(ctx context.Context, q *query.Query, limit int64) (*recordStream, error) {
	if h.released.Load() {
		return nil, store.ErrReleased
	}
	c, err := codec()
	if err != nil {
		return nil, err
	}
	ticket, err := c.Encode(q)
	if err != nil {
		return nil, err
	}

	reader, err := recovery.RecoverToValue(h.logger, "Scan", func() (array.RecordReader, error) {
		return h.src.Scan(ctx, &ScanOptions{Filter: ticket, Limit: limit})
	})
	if err != nil {
		return nil, fmt.Errorf("arrowstore: scan %s: %w", q.TypeName, err)
	}
	return newRecordStream(reader, h.src)
}

func (h *handle) Hits(ctx context.Context, q *query.Query) (int, error) {
	s, err := h.scan(ctx, q, 0)
	if err != nil {
		return 0, err
	}
	return store.Count(s, q)
}

func (h *handle) Query(ctx context.Context, q *query.Query) (store.FeatureStream, error) {
	var limit int64
	if q.Filter == nil && !q.ByID() && !q.Unbounded() && q.Offset <= math.MaxInt-q.Limit {
		limit = int64(q.Offset + q.Limit)
	}
	s, err := h.scan(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	return store.Select(s, q), nil
}

func (h *handle) MaxFeaturesAndStartIndexApplicable(q *query.Query) bool {
	return !q.ByID()
}

func (h *handle) Schema() []store.Namespace {
	return h.namespaces
}

func (h *handle) Release() {
	h.released.Store(true)
}

// recordStream decodes one feature per row.
type recordStream struct {
	reader   array.RecordReader
	idCol    string
	geomCol  string
	batch    arrow.RecordBatch
	row      int64
	current  *geojson.Feature
	err      error
	released bool
}

func newRecordStream(reader array.RecordReader, src Source) (*recordStream, error) {
	s := &recordStream{reader: reader, idCol: src.IDColumn, geomCol: src.GeometryColumn}
	if s.geomCol == "" {
		for _, f := range reader.Schema().Fields() {
			if isGeometryField(f) {
				s.geomCol = f.Name
				break
			}
		}
	}
	if s.geomCol == "" {
		reader.Release()
		return nil, fmt.Errorf("arrowstore: schema has no geometry column")
	}
	return s, nil
}

func (s *recordStream) Next() bool {
	if s.released || s.err != nil {
		return false
	}
	for s.batch == nil || s.row >= s.batch.NumRows() {
		if !s.reader.Next() {
			s.err = s.reader.Err()
			return false
		}
		s.batch = s.reader.RecordBatch()
		s.row = 0
	}

	f, err := s.feature(s.batch, int(s.row))
	if err != nil {
		s.err = err
		return false
	}
	s.current = f
	s.row++
	return true
}

func (s *recordStream) feature(batch arrow.RecordBatch, i int) (*geojson.Feature, error) {
	f := &geojson.Feature{Type: "Feature", Properties: geojson.Properties{}}
	schema := batch.Schema()

	for c := 0; c < int(batch.NumCols()); c++ {
		name := schema.Field(c).Name
		col := batch.Column(c)

		switch name {
		case s.geomCol:
			if col.IsNull(i) {
				continue
			}
			data, err := wkbValue(col, i)
			if err != nil {
				return nil, err
			}
			g, err := wkb.Unmarshal(data)
			if err != nil {
				return nil, fmt.Errorf("arrowstore: decode geometry: %w", err)
			}
			f.Geometry = g
		case s.idCol:
			f.ID = value(col, i)
		default:
			f.Properties[name] = value(col, i)
		}
	}
	return f, nil
}

func wkbValue(col arrow.Array, i int) ([]byte, error) {
	if ext, ok := col.(array.ExtensionArray); ok {
		col = ext.Storage()
	}
	switch a := col.(type) {
	case *array.Binary:
		return a.Value(i), nil
	case *array.LargeBinary:
		return a.Value(i), nil
	default:
		return nil, fmt.Errorf("arrowstore: geometry column has type %s", col.DataType())
	}
}

// value converts a cell to a GeoJSON property value. Temporal cells become
// time.Time so they can be compared by filters.
func value(col arrow.Array, i int) any {
	if col.IsNull(i) {
		return nil
	}
	switch a := col.(type) {
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit)
	case *array.Date32:
		return a.Value(i).ToTime()
	case *array.Date64:
		return a.Value(i).ToTime()
	default:
		return col.GetOneForMarshal(i)
	}
}

func (s *recordStream) Feature() *geojson.Feature { return s.current }
func (s *recordStream) Err() error                { return s.err }

func (s *recordStream) Release() {
	if s.released {
		return
	}
	s.released = true
	s.reader.Release()
}
