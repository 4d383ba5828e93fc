// Package link builds navigation links for collection and feature responses.
package link

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/hugr-lab/oaf-go/catalog"
)

// Link relation types.
const (
	RelSelf        = "self"
	RelAlternate   = "alternate"
	RelNext        = "next"
	RelCollection  = "collection"
	RelItems       = "items"
	RelDescribedBy = "describedby"
)

// Media types.
const (
	MediaJSON    = "application/json"
	MediaGeoJSON = "application/geo+json"
	MediaSchema  = "application/schema+json"
)

// Link is a typed hyperlink.
type Link struct {
	Href  string `json:"href"`
	Rel   string `json:"rel"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// NextLink describes the page following the current one.
type NextLink struct {
	HasNext    bool
	NextOffset int
	NextLimit  int
}

// ComputeNextLink reports whether matches remain after the page of limit
// features starting at offset. No clamping is applied: an offset past the
// last match yields HasNext false. NextOffset saturates at math.MaxInt.
func ComputeNextLink(matched, limit, offset int) NextLink {
	next := offset + limit
	if limit > 0 && offset > math.MaxInt-limit {
		next = math.MaxInt
	}
	return NextLink{
		HasNext:    limit < matched && offset < matched-limit,
		NextOffset: next,
		NextLimit:  limit,
	}
}

// Builder builds links relative to a service base URL. Paths follow
// {base}/datasets/{dataset}/collections/{collection}.
type Builder struct {
	base *url.URL
}

// NewBuilder parses baseURL, which must be absolute.
func NewBuilder(baseURL string) (*Builder, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("link: invalid base url: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("link: base url %q is not absolute", baseURL)
	}
	return &Builder{base: u}, nil
}

func (b *Builder) href(params url.Values, segments ...string) string {
	u := *b.base
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u.Path = b.base.Path + "/" + strings.Join(segments, "/")
	u.RawPath = b.base.EscapedPath() + "/" + strings.Join(escaped, "/")
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	} else {
		u.RawQuery = ""
	}
	return u.String()
}

func (b *Builder) collections(datasetID string, params url.Values, segments ...string) string {
	return b.href(params, append([]string{"datasets", datasetID, "collections"}, segments...)...)
}

// CollectionsLinks returns the links of the collections document.
func (b *Builder) CollectionsLinks(datasetID string) []Link {
	return []Link{
		{Href: b.collections(datasetID, nil), Rel: RelSelf, Type: MediaJSON, Title: "this document"},
	}
}

// CollectionLinks returns the links of one collection document. Each
// metadata URL becomes a describedby link.
func (b *Builder) CollectionLinks(datasetID, collectionID string, metadata []catalog.MetadataURL) []Link {
	links := []Link{
		{Href: b.collections(datasetID, nil, collectionID), Rel: RelSelf, Type: MediaJSON, Title: "this document"},
		{Href: b.collections(datasetID, nil, collectionID, "items"), Rel: RelItems, Type: MediaGeoJSON, Title: "items of " + collectionID},
	}
	for _, m := range metadata {
		links = append(links, Link{Href: m.Href, Rel: RelDescribedBy, Type: m.Type, Title: m.Title})
	}
	return links
}

// FeaturesLinks returns the links of an unpaged features response: the
// collection's items self link only.
func (b *Builder) FeaturesLinks(datasetID, collectionID string, params url.Values) []Link {
	return []Link{
		{Href: b.collections(datasetID, params, collectionID, "items"), Rel: RelSelf, Type: MediaGeoJSON, Title: "this document"},
	}
}

// PagedFeaturesLinks returns the links of a features page starting at
// offset: self, next when next.HasNext, and collection. params are carried
// into self and next; paging parameters in params are replaced.
func (b *Builder) PagedFeaturesLinks(datasetID, collectionID string, offset int, next NextLink, params url.Values) []Link {
	links := []Link{
		{Href: b.collections(datasetID, page(params, next.NextLimit, offset), collectionID, "items"), Rel: RelSelf, Type: MediaGeoJSON, Title: "this document"},
	}
	if next.HasNext {
		links = append(links, Link{
			Href:  b.collections(datasetID, page(params, next.NextLimit, next.NextOffset), collectionID, "items"),
			Rel:   RelNext,
			Type:  MediaGeoJSON,
			Title: "next page",
		})
	}
	return append(links, b.collectionLink(datasetID, collectionID))
}

// FeatureLinks returns the links of a single feature response.
func (b *Builder) FeatureLinks(datasetID, collectionID, featureID string) []Link {
	return []Link{
		{Href: b.collections(datasetID, nil, collectionID, "items", featureID), Rel: RelSelf, Type: MediaGeoJSON, Title: "this document"},
		b.collectionLink(datasetID, collectionID),
	}
}

// SchemaLink returns the location of the collection's application schema.
func (b *Builder) SchemaLink(datasetID, collectionID string) string {
	return b.collections(datasetID, nil, collectionID, "appschema")
}

func (b *Builder) collectionLink(datasetID, collectionID string) Link {
	return Link{Href: b.collections(datasetID, nil, collectionID), Rel: RelCollection, Type: MediaJSON, Title: "collection " + collectionID}
}

func page(params url.Values, limit, offset int) url.Values {
	v := make(url.Values, len(params)+2)
	for k, vs := range params {
		v[k] = append([]string(nil), vs...)
	}
	v.Set("limit", strconv.Itoa(limit))
	v.Set("offset", strconv.Itoa(offset))
	return v
}
