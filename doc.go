// Package oaf provides the query core of an OGC API Features service:
// collection metadata, CQL2 filter translation and paged feature retrieval
// over pluggable feature stores.
//
// The oaf package ties together:
//   - catalog: the dataset configuration and its feature types
//   - filter: translation of parsed CQL2 trees into predicates
//   - query: backend query planning
//   - store: the feature store contract and its backends
//   - link: next-page computation and response links
//
// HTTP routing and response encoding are left to the caller. A Service
// returns RetrievalResult envelopes whose feature stream is lazy.
//
// # Quick Start
//
//	ds, _ := catalog.NewDatasetBuilder("demo").
//	    Title("Demo").
//	    FeatureType(&catalog.FeatureType{
//	        Name:       catalog.QName{Local: "stations"},
//	        StorageCRS: crs.CRS84,
//	    }).
//	    Build()
//
//	mem := memory.NewProvider()
//	_ = mem.LoadFile("stations", "stations.geojson")
//
//	links, _ := link.NewBuilder("https://example.com/ogc")
//	svc, _ := oaf.NewService(oaf.Config{Dataset: ds, Stores: mem, Links: links})
//
//	res, err := svc.RetrieveFeatures(ctx, "stations", oaf.FeaturesRequest{Limit: 10})
//	if err != nil {
//	    return err
//	}
//	defer res.Features.Release()
//	for res.Features.Next() {
//	    f := res.Features.Feature()
//	    ...
//	}
//
// # Filters
//
// Filters arrive as parsed CQL2 trees. Translate them with the collection's
// filter properties before retrieval:
//
//	tree, _ := cql2.ParseJSON(data)
//	pred, err := svc.TranslateFilter(ctx, "stations", tree, "")
//	if errors.Is(err, filter.ErrUnsupportedExpression) {
//	    // reject the request
//	}
//	res, err := svc.RetrieveFeatures(ctx, "stations", oaf.FeaturesRequest{Filter: pred, Limit: 10})
//
// # Errors
//
// Retrieval fails with errors matching ErrUnknownCollection,
// ErrInvalidParameterValue or ErrInternalQuery. Store failures, including
// panics in store code, are always wrapped in *InternalQueryError.
package oaf
