// Package fgbstore provides a read-only feature store over FlatGeobuf files.
//
// Files MUST carry a packed R-tree index. Spatial filters narrow the index
// search to the bounding box of the filter geometry; the exact predicate,
// offset and limit are then applied in-process.
package fgbstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	flatgeobuf "github.com/flatgeobuf/flatgeobuf/src/go"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/hugr-lab/oaf-go/catalog"
	"github.com/hugr-lab/oaf-go/filter"
	"github.com/hugr-lab/oaf-go/geom"
	"github.com/hugr-lab/oaf-go/query"
	"github.com/hugr-lab/oaf-go/store"
)

// ErrNoIndex is returned when loading a file without a spatial index.
var ErrNoIndex = errors.New("fgbstore: file has no spatial index")

var world = orb.Bound{
	Min: orb.Point{-math.MaxFloat64, -math.MaxFloat64},
	Max: orb.Point{math.MaxFloat64, math.MaxFloat64},
}

type source struct {
	mu         sync.Mutex
	fgb        *flatgeobuf.FlatGeoBuf
	columns    []column
	geomType   flattypes.GeometryType
	idProperty string
}

// search returns the raw features whose boxes intersect b.
func (s *source) search(b orb.Bound) ([]*flattypes.Feature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fgb.Search(b.Min[0], b.Min[1], b.Max[0], b.Max[1])
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// Provider serves feature types from FlatGeobuf files keyed by collection id.
type Provider struct {
	mu      sync.RWMutex
	sources map[string]*source
	logger  *slog.Logger
}

// NewProvider creates an empty provider.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{sources: make(map[string]*source), logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Open serves collectionID from the file at path. Feature identifiers are
// read from the idProperty column, which is removed from the properties.
func (p *Provider) Open(collectionID, path, idProperty string) error {
	fgb, err := flatgeobuf.New(path)
	if err != nil {
		return fmt.Errorf("fgbstore: open %s: %w", path, err)
	}
	return p.add(collectionID, fgb, idProperty)
}

// Load serves collectionID from an in-memory FlatGeobuf buffer.
func (p *Provider) Load(collectionID string, data []byte, idProperty string) error {
	fgb, err := flatgeobuf.NewWithData(data)
	if err != nil {
		return fmt.Errorf("fgbstore: load %s: %w", collectionID, err)
	}
	return p.add(collectionID, fgb, idProperty)
}

func (p *Provider) add(collectionID string, fgb *flatgeobuf.FlatGeoBuf, idProperty string) error {
	h := fgb.Header()
	if h == nil {
		return fmt.Errorf("fgbstore: %s: missing header", collectionID)
	}
	if h.IndexNodeSize() == 0 {
		return fmt.Errorf("%w: %s", ErrNoIndex, collectionID)
	}

	src := &source{
		fgb:        fgb,
		columns:    headerColumns(h),
		geomType:   h.GeometryType(),
		idProperty: idProperty,
	}

	p.mu.Lock()
	p.sources[collectionID] = src
	p.mu.Unlock()

	p.logger.Debug("Loaded FlatGeobuf collection",
		"collection", collectionID,
		"features", h.FeaturesCount(),
		"columns", len(src.columns),
	)
	return nil
}

// Acquire implements store.Provider.
func (p *Provider) Acquire(_ context.Context, ft *catalog.FeatureType) (store.Handle, error) {
	p.mu.RLock()
	src, ok := p.sources[ft.ID()]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownFeatureType, ft.ID())
	}
	return &handle{src: src, namespaces: store.FeatureTypeNamespaces(ft)}, nil
}

type handle struct {
	src        *source
	namespaces []store.Namespace
	released   atomic.Bool
}

// candidates searches the index with the narrowest box that can hold every
// feature matching q.
func (h *handle) candidates(q *query.Query) (store.FeatureStream, error) {
	if h.released.Load() {
		return nil, store.ErrReleased
	}
	b, err := searchBound(q.Filter)
	if err != nil {
		return nil, err
	}
	raw, err := h.src.search(b)
	if err != nil {
		return nil, fmt.Errorf("fgbstore: search: %w", err)
	}
	return &featureStream{src: h.src, raw: raw}, nil
}

func searchBound(p filter.Predicate) (orb.Bound, error) {
	s, ok := p.(*filter.Spatial)
	if !ok || s.Operator == filter.SpatialDisjoint {
		return world, nil
	}
	return geom.Bound(s.Geometry)
}

func (h *handle) Hits(_ context.Context, q *query.Query) (int, error) {
	s, err := h.candidates(q)
	if err != nil {
		return 0, err
	}
	return store.Count(s, q)
}

func (h *handle) Query(_ context.Context, q *query.Query) (store.FeatureStream, error) {
	s, err := h.candidates(q)
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

// featureStream decodes index search results lazily.
type featureStream struct {
	src     *source
	raw     []*flattypes.Feature
	pos     int
	current *geojson.Feature
	err     error
}

func (s *featureStream) Next() bool {
	if s.err != nil || s.pos >= len(s.raw) {
		return false
	}
	f, err := s.decode(s.raw[s.pos])
	s.pos++
	if err != nil {
		s.err = err
		return false
	}
	s.current = f
	return true
}

func (s *featureStream) decode(raw *flattypes.Feature) (*geojson.Feature, error) {
	f := &geojson.Feature{Type: "Feature", Properties: geojson.Properties{}}

	var g flattypes.Geometry
	if raw.Geometry(&g) != nil {
		og, err := decodeGeometry(&g, s.src.geomType)
		if err != nil {
			return nil, err
		}
		f.Geometry = og
	}

	if n := raw.PropertiesLength(); n > 0 {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(raw.Properties(i))
		}
		props, err := decodeProperties(data, s.src.columns)
		if err != nil {
			return nil, err
		}
		f.Properties = props
	}

	if s.src.idProperty != "" {
		if id, ok := f.Properties[s.src.idProperty]; ok {
			f.ID = id
			delete(f.Properties, s.src.idProperty)
		}
	}
	return f, nil
}

func (s *featureStream) Feature() *geojson.Feature { return s.current }
func (s *featureStream) Err() error                { return s.err }

func (s *featureStream) Release() {
	s.raw = nil
	s.pos = 0
}
