// Package store defines the feature store contract used by the retrieval
// pipeline, plus shared helpers for stores that filter in-process.
//
// A Provider hands out a Handle per feature type. Handles are acquired and
// released once per request; feature streams obtained from a handle own
// their backend resources and stay valid after the handle is released.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/hugr-lab/oaf-go/catalog"
	"github.com/hugr-lab/oaf-go/query"
)

var (
	// ErrReleased is returned by handle operations after Release.
	ErrReleased = errors.New("store: handle released")

	// ErrUnknownStore is returned when a feature type names an unregistered store.
	ErrUnknownStore = errors.New("store: unknown store")

	// ErrUnknownFeatureType is returned when a store does not serve a feature type.
	ErrUnknownFeatureType = errors.New("store: unknown feature type")
)

// Namespace is a namespace URI and the prefix the store binds it to.
type Namespace struct {
	Prefix string
	URI    string
}

// Store executes queries for one feature type.
type Store interface {
	// Hits returns the number of features matching q, ignoring paging.
	Hits(ctx context.Context, q *query.Query) (int, error)

	// Query returns a lazy stream over the features selected by q.
	// Caller MUST release the stream.
	Query(ctx context.Context, q *query.Query) (FeatureStream, error)

	// MaxFeaturesAndStartIndexApplicable reports whether the store applies
	// q's limit and offset.
	MaxFeaturesAndStartIndexApplicable(q *query.Query) bool

	// Schema returns the namespaces of the store's application schema.
	Schema() []Namespace
}

// Handle is a Store scoped to one request.
type Handle interface {
	Store

	// Release frees the handle. Safe to call more than once.
	Release()
}

// Provider opens store handles.
type Provider interface {
	Acquire(ctx context.Context, ft *catalog.FeatureType) (Handle, error)
}

// Router dispatches Acquire to the provider registered under the feature
// type's store id. Feature types without a store id use the default.
type Router struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string
	def       string
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{providers: make(map[string]Provider)}
}

// Register adds p under id. The first registered provider is the default.
func (r *Router) Register(id string, p Provider) error {
	if id == "" {
		return errors.New("store: provider id cannot be empty")
	}
	if p == nil {
		return fmt.Errorf("store: provider %q is nil", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[id]; ok {
		return fmt.Errorf("store: provider %q already registered", id)
	}
	r.providers[id] = p
	r.order = append(r.order, id)
	if r.def == "" {
		r.def = id
	}
	return nil
}

// SetDefault selects the provider used for feature types without a store id.
func (r *Router) SetDefault(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStore, id)
	}
	r.def = id
	return nil
}

// IDs returns registered provider ids in registration order.
func (r *Router) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Acquire implements Provider.
func (r *Router) Acquire(ctx context.Context, ft *catalog.FeatureType) (Handle, error) {
	id := ft.Store
	r.mu.RLock()
	if id == "" {
		id = r.def
	}
	p, ok := r.providers[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q for feature type %s", ErrUnknownStore, id, ft.Name)
	}
	return p.Acquire(ctx, ft)
}

// Close closes every provider implementing io.Closer and returns the
// first error.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var first error
	for _, id := range r.order {
		if c, ok := r.providers[id].(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = fmt.Errorf("store: close %s: %w", id, err)
			}
		}
	}
	return first
}

// SortNamespaces orders namespaces by prefix.
func SortNamespaces(ns []Namespace) []Namespace {
	sort.Slice(ns, func(i, j int) bool { return ns[i].Prefix < ns[j].Prefix })
	return ns
}

// FeatureTypeNamespaces returns the distinct prefixed namespaces of ft's
// name and properties, sorted by prefix. Names without a prefix bind
// nothing and are skipped.
func FeatureTypeNamespaces(ft *catalog.FeatureType) []Namespace {
	seen := make(map[string]bool)
	var ns []Namespace
	add := func(n catalog.QName) {
		if n.Namespace == "" || n.Prefix == "" || seen[n.Namespace] {
			return
		}
		seen[n.Namespace] = true
		ns = append(ns, Namespace{Prefix: n.Prefix, URI: n.Namespace})
	}

	add(ft.Name)
	for _, p := range ft.Properties {
		add(p.Name)
	}
	return SortNamespaces(ns)
}
