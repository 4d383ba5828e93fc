package oaf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hugr-lab/oaf-go/catalog"
	"github.com/hugr-lab/oaf-go/cql2"
	"github.com/hugr-lab/oaf-go/crs"
	"github.com/hugr-lab/oaf-go/filter"
	"github.com/hugr-lab/oaf-go/internal/recovery"
	"github.com/hugr-lab/oaf-go/link"
	"github.com/hugr-lab/oaf-go/query"
	"github.com/hugr-lab/oaf-go/store"
)

// Service retrieves features of a dataset. It holds no per-request state
// and is safe for concurrent use.
type Service struct {
	dataset    catalog.Dataset
	stores     store.Provider
	links      *link.Builder
	registry   crs.Registry
	defaultCRS crs.CRS
	logger     *slog.Logger
}

// NewService creates a Service.
// Returns an error wrapping ErrInvalidConfig if a required field is missing.
func NewService(config Config) (*Service, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	s := &Service{
		dataset:    config.Dataset,
		stores:     config.Stores,
		links:      config.Links,
		registry:   config.Registry,
		defaultCRS: config.DefaultCRS,
		logger:     config.Logger,
	}
	if s.registry == nil {
		s.registry = crs.DefaultRegistry()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.defaultCRS.IsZero() {
		s.defaultCRS = crs.Default
		if supported := s.dataset.SupportedCRS(); len(supported) > 0 {
			s.defaultCRS = supported[0]
		}
	}

	s.logger.Info("Feature service created",
		"dataset", s.dataset.ID(),
		"collections", len(s.dataset.FeatureTypes()),
		"default_crs", s.defaultCRS.ID(),
	)
	return s, nil
}

// ListCollections describes every configured collection in configuration
// order.
func (s *Service) ListCollections(ctx context.Context) (*Collections, error) {
	types := s.dataset.FeatureTypes()
	out := &Collections{
		Links:       s.links.CollectionsLinks(s.dataset.ID()),
		Collections: make([]*CollectionSummary, 0, len(types)),
	}
	for _, ft := range types {
		out.Collections = append(out.Collections, s.summary(ft))
	}
	return out, nil
}

// GetCollection describes one collection.
func (s *Service) GetCollection(ctx context.Context, collectionID string) (*CollectionSummary, error) {
	ft, err := s.featureType(collectionID)
	if err != nil {
		return nil, err
	}
	return s.summary(ft), nil
}

func (s *Service) summary(ft *catalog.FeatureType) *CollectionSummary {
	sum := &CollectionSummary{
		ID:          ft.ID(),
		Title:       ft.Title,
		Description: ft.Description,
		Links:       s.links.CollectionLinks(s.dataset.ID(), ft.ID(), ft.MetadataURLs),
		Extent:      ft.Extent,
	}
	for _, c := range catalog.EffectiveCRS(s.dataset, ft) {
		sum.CRS = append(sum.CRS, c.URI())
	}
	if !ft.StorageCRS.IsZero() {
		sum.StorageCRS = ft.StorageCRS.URI()
	}
	return sum
}

func (s *Service) featureType(collectionID string) (*catalog.FeatureType, error) {
	ft := s.dataset.FeatureType(collectionID)
	if ft == nil {
		return nil, &UnknownCollectionError{ID: collectionID}
	}
	return ft, nil
}

// responseCRS resolves the requested CRS. Empty selects the default.
func (s *Service) responseCRS(identifier string) (crs.CRS, error) {
	if identifier == "" {
		return s.defaultCRS, nil
	}
	c, err := s.registry.Lookup(identifier)
	if err != nil {
		return crs.CRS{}, &InvalidParameterValueError{Parameter: "crs", Value: identifier, Err: err}
	}
	return c, nil
}

// TranslateFilter translates a parsed filter against the filter properties
// of a collection. An empty filterCRS means CRS84.
func (s *Service) TranslateFilter(ctx context.Context, collectionID string, tree *cql2.BooleanExpression, filterCRS string) (filter.Predicate, error) {
	ft, err := s.featureType(collectionID)
	if err != nil {
		return nil, err
	}

	c := crs.Default
	if filterCRS != "" {
		if c, err = s.registry.Lookup(filterCRS); err != nil {
			return nil, &InvalidParameterValueError{Parameter: "filter-crs", Value: filterCRS, Err: err}
		}
	}

	t := filter.NewTranslator(c, ft.Properties, filter.WithLogger(s.logger))
	s.logger.Debug("Translating filter", "collection", collectionID, "crs", t.CRS().ID())
	return t.Translate(tree)
}

// RetrieveFeatures runs a paged or bulk retrieval against a collection.
//
// Validation failures are returned before any store call. Store failures
// are returned as *InternalQueryError. The store handle is released before
// returning; the returned feature stream stays valid and MUST be released
// by the caller.
func (s *Service) RetrieveFeatures(ctx context.Context, collectionID string, req FeaturesRequest) (*RetrievalResult, error) {
	ft, err := s.featureType(collectionID)
	if err != nil {
		return nil, err
	}
	responseCRS, err := s.responseCRS(req.ResponseCRS)
	if err != nil {
		return nil, err
	}

	q, err := query.Build(ft, query.Params{
		Filter: req.Filter,
		Limit:  req.Limit,
		Offset: req.Offset,
		Bulk:   req.Bulk,
	})
	if err != nil {
		return nil, paramError(err, req)
	}

	h, err := s.acquire(ctx, ft)
	if err != nil {
		return nil, err
	}
	defer recovery.Recover(s.logger, "Release", h.Release)

	s.logger.Debug("Retrieving features",
		"collection", collectionID,
		"query", q.String(),
		"bulk", req.Bulk,
	)

	matched, err := recovery.RecoverToValue(s.logger, "Hits", func() (int, error) {
		return h.Hits(ctx, q)
	})
	if err != nil {
		return nil, s.internal("Hits", q, err)
	}

	res, err := s.execute(ctx, h, ft, q)
	if err != nil {
		return nil, err
	}
	res.MatchedCount = matched
	res.ResponseCRS = responseCRS
	res.Bulk = req.Bulk

	if req.Bulk {
		res.ReturnedCount = query.Unlimited
		res.StartIndex = query.First
		res.Links = s.links.FeaturesLinks(s.dataset.ID(), ft.ID(), req.Params)
	} else {
		next := link.ComputeNextLink(matched, req.Limit, req.Offset)
		res.ReturnedCount = req.Limit
		res.StartIndex = req.Offset
		res.Links = s.links.PagedFeaturesLinks(s.dataset.ID(), ft.ID(), req.Offset, next, req.Params)
	}
	return res, nil
}

// RetrieveFeature retrieves one feature by id. Counts, start index and
// the paging flag are fixed regardless of the store.
func (s *Service) RetrieveFeature(ctx context.Context, collectionID, featureID, responseCRS string) (*RetrievalResult, error) {
	ft, err := s.featureType(collectionID)
	if err != nil {
		return nil, err
	}
	c, err := s.responseCRS(responseCRS)
	if err != nil {
		return nil, err
	}
	q, err := query.BuildByID(ft, featureID)
	if err != nil {
		return nil, &InvalidParameterValueError{Parameter: "featureId", Value: featureID, Err: err}
	}

	h, err := s.acquire(ctx, ft)
	if err != nil {
		return nil, err
	}
	defer recovery.Recover(s.logger, "Release", h.Release)

	s.logger.Debug("Retrieving feature", "collection", collectionID, "id", featureID)

	res, err := s.execute(ctx, h, ft, q)
	if err != nil {
		return nil, err
	}
	res.MatchedCount = 1
	res.ReturnedCount = 1
	res.StartIndex = 0
	res.MaxFeaturesAndStartIndexApplicable = true
	res.ResponseCRS = c
	res.Links = s.links.FeatureLinks(s.dataset.ID(), ft.ID(), featureID)
	return res, nil
}

func (s *Service) acquire(ctx context.Context, ft *catalog.FeatureType) (store.Handle, error) {
	h, err := recovery.RecoverToValue(s.logger, "Acquire", func() (store.Handle, error) {
		return s.stores.Acquire(ctx, ft)
	})
	if err != nil {
		s.logger.Error("Failed to acquire store", "collection", ft.ID(), "store", ft.Store, "error", err)
		return nil, &InternalQueryError{Op: "Acquire", Err: err}
	}
	return h, nil
}

// execute collects the store flags and namespaces, then opens the feature
// stream last so no later failure can leak it.
func (s *Service) execute(ctx context.Context, h store.Handle, ft *catalog.FeatureType, q *query.Query) (*RetrievalResult, error) {
	applicable, err := recovery.RecoverToValue(s.logger, "MaxFeaturesAndStartIndexApplicable", func() (bool, error) {
		return h.MaxFeaturesAndStartIndexApplicable(q), nil
	})
	if err != nil {
		return nil, s.internal("MaxFeaturesAndStartIndexApplicable", q, err)
	}

	namespaces, err := recovery.RecoverToValue(s.logger, "Schema", func() ([]store.Namespace, error) {
		return h.Schema(), nil
	})
	if err != nil {
		return nil, s.internal("Schema", q, err)
	}

	features, err := recovery.RecoverToValue(s.logger, "Query", func() (store.FeatureStream, error) {
		return h.Query(ctx, q)
	})
	if err != nil {
		return nil, s.internal("Query", q, err)
	}

	prefixes := make(map[string]string, len(namespaces))
	for _, ns := range namespaces {
		if ns.Prefix != "" {
			prefixes[ns.URI] = ns.Prefix
		}
	}

	return &RetrievalResult{
		MaxFeaturesAndStartIndexApplicable: applicable,
		Features:                           features,
		NamespacePrefixes:                  prefixes,
		SchemaLocation:                     s.links.SchemaLink(s.dataset.ID(), ft.ID()),
		SchemaNamespace:                    ft.Name.Namespace,
	}, nil
}

func (s *Service) internal(op string, q *query.Query, err error) error {
	s.logger.Error("Store query failed", "op", op, "query", q.String(), "error", err)
	return &InternalQueryError{Op: op, Err: err}
}

func paramError(err error, req FeaturesRequest) error {
	switch {
	case errors.Is(err, query.ErrInvalidLimit):
		return &InvalidParameterValueError{Parameter: "limit", Value: fmt.Sprint(req.Limit), Err: err}
	case errors.Is(err, query.ErrInvalidOffset):
		return &InvalidParameterValueError{Parameter: "offset", Value: fmt.Sprint(req.Offset), Err: err}
	default:
		return err
	}
}
