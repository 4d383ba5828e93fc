package oaf

import (
	"net/url"

	"github.com/hugr-lab/oaf-go/catalog"
	"github.com/hugr-lab/oaf-go/crs"
	"github.com/hugr-lab/oaf-go/filter"
	"github.com/hugr-lab/oaf-go/link"
	"github.com/hugr-lab/oaf-go/store"
)

// FeaturesRequest holds the parameters of a feature retrieval.
type FeaturesRequest struct {
	// Filter is the translated filter. Nil selects all features.
	Filter filter.Predicate

	// Limit is the page size. Ignored in bulk mode.
	Limit int

	// Offset is the start index of the page. Ignored in bulk mode.
	Offset int

	// ResponseCRS names the CRS of returned geometries.
	// OPTIONAL: empty means the service default.
	ResponseCRS string

	// Bulk requests all matching features in one response.
	Bulk bool

	// Params are extra query parameters carried into links, e.g. the
	// filter text.
	Params url.Values
}

// RetrievalResult is the envelope handed to response serialization.
//
// Features is lazy and single-pass. The caller MUST release it.
type RetrievalResult struct {
	MatchedCount  int
	ReturnedCount int
	StartIndex    int
	Bulk          bool

	// MaxFeaturesAndStartIndexApplicable reports whether the store honoured
	// limit and offset for this query. Always true for a single feature.
	MaxFeaturesAndStartIndexApplicable bool

	Features store.FeatureStream

	// NamespacePrefixes maps namespace URIs of the store schema to their
	// prefixes. Unprefixed namespaces are absent.
	NamespacePrefixes map[string]string

	Links []link.Link

	// SchemaLocation is the application schema document of the feature
	// type and SchemaNamespace its target namespace. Together they form
	// one xsi:schemaLocation pair.
	SchemaLocation  string
	SchemaNamespace string

	ResponseCRS crs.CRS
}

// Collections is the response of a collection listing.
type Collections struct {
	Links       []link.Link
	Collections []*CollectionSummary
}

// CollectionSummary describes one collection.
type CollectionSummary struct {
	ID          string
	Title       string
	Description string
	Links       []link.Link
	Extent      catalog.Extent

	// CRS lists the URIs of the reference systems features can be returned in.
	CRS []string

	// StorageCRS is the URI of the native CRS. Empty if not configured.
	StorageCRS string
}
