// Package memory provides an in-memory feature store backed by GeoJSON
// feature collections.
package memory

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb/geojson"

	"github.com/hugr-lab/oaf-go/catalog"
	"github.com/hugr-lab/oaf-go/query"
	"github.com/hugr-lab/oaf-go/store"
)

// Provider serves feature types from in-memory collections keyed by
// collection id.
type Provider struct {
	mu          sync.RWMutex
	collections map[string][]*geojson.Feature
}

// NewProvider creates an empty provider.
func NewProvider() *Provider {
	return &Provider{collections: make(map[string][]*geojson.Feature)}
}

// Add sets the features of a collection, replacing any previous ones.
func (p *Provider) Add(collectionID string, fc *geojson.FeatureCollection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.collections[collectionID] = append([]*geojson.Feature(nil), fc.Features...)
}

// LoadFile reads a GeoJSON feature collection file into a collection.
func (p *Provider) LoadFile(collectionID, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("memory: read %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return fmt.Errorf("memory: parse %s: %w", path, err)
	}
	p.Add(collectionID, fc)
	return nil
}

// Acquire implements store.Provider.
func (p *Provider) Acquire(_ context.Context, ft *catalog.FeatureType) (store.Handle, error) {
	p.mu.RLock()
	features, ok := p.collections[ft.ID()]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownFeatureType, ft.ID())
	}
	return &handle{features: features, namespaces: store.FeatureTypeNamespaces(ft)}, nil
}

type handle struct {
	features   []*geojson.Feature
	namespaces []store.Namespace
	released   atomic.Bool
}

func (h *handle) Hits(_ context.Context, q *query.Query) (int, error) {
	if h.released.Load() {
		return 0, store.ErrReleased
	}
	return store.Count(store.NewSliceStream(h.features), q)
}

func (h *handle) Query(_ context.Context, q *query.Query) (store.FeatureStream, error) {
	if h.released.Load() {
		return nil, store.ErrReleased
	}
	return store.Select(store.NewSliceStream(h.features), q), nil
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
