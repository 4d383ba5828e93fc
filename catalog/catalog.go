// Package catalog describes the collections a dataset publishes: qualified
// feature type names, extents, reference systems and the queryable properties
// a filter may reference.
package catalog

import (
	"time"

	"github.com/hugr-lab/oaf-go/crs"
)

// Dataset is the configuration of a published feature dataset.
// Implementations MUST be goroutine-safe.
type Dataset interface {
	// ID returns the dataset identifier used in link construction.
	ID() string

	// Title returns the human-readable dataset title.
	Title() string

	// FeatureType returns the metadata of the collection with the given id.
	// Returns nil if no such collection is configured.
	FeatureType(collectionID string) *FeatureType

	// FeatureTypes returns all feature types in configuration order.
	FeatureTypes() []*FeatureType

	// SupportedCRS returns the reference systems features can be returned in.
	SupportedCRS() []crs.CRS
}

// QName is a namespace-qualified name.
type QName struct {
	Namespace string
	Local     string
	Prefix    string
}

// String renders the name in Clark notation, {namespace}local.
func (q QName) String() string {
	if q.Namespace == "" {
		return q.Local
	}
	return "{" + q.Namespace + "}" + q.Local
}

// PropertyType is the value type of a queryable property.
type PropertyType int

const (
	PropertyString PropertyType = iota
	PropertyNumber
	PropertyInteger
	PropertyBoolean
	PropertyDate
	PropertyDateTime
	PropertyGeometry
)

var propertyTypeNames = map[PropertyType]string{
	PropertyString:   "string",
	PropertyNumber:   "number",
	PropertyInteger:  "integer",
	PropertyBoolean:  "boolean",
	PropertyDate:     "date",
	PropertyDateTime: "date-time",
	PropertyGeometry: "geometry",
}

func (t PropertyType) String() string {
	if n, ok := propertyTypeNames[t]; ok {
		return n
	}
	return "unknown"
}

// ParsePropertyType returns the type with the given name.
func ParsePropertyType(name string) (PropertyType, bool) {
	for t, n := range propertyTypeNames {
		if n == name {
			return t, true
		}
	}
	return PropertyString, false
}

// PropertyDescriptor describes a property that filters may reference.
type PropertyDescriptor struct {
	Name  QName
	Type  PropertyType
	Title string
}

// MetadataURL references external metadata describing a collection.
type MetadataURL struct {
	Href  string
	Type  string
	Title string
}

// SpatialExtent is a bounding box [minX, minY, maxX, maxY] in CRS.
type SpatialExtent struct {
	BBox [4]float64
	CRS  crs.CRS
}

// TemporalExtent is a time interval. A nil bound is open.
type TemporalExtent struct {
	Begin *time.Time
	End   *time.Time
	TRS   string
}

// Extent of a collection. Either part may be nil.
type Extent struct {
	Spatial  *SpatialExtent
	Temporal *TemporalExtent
}

// DefaultTRS is the Gregorian calendar temporal reference system.
const DefaultTRS = "http://www.opengis.net/def/uom/ISO-8601/0/Gregorian"

// FeatureType is the immutable metadata of one queryable collection.
type FeatureType struct {
	// Name is the qualified feature type name.
	// REQUIRED: Local MUST be non-empty; it is the collection id.
	Name QName

	Title       string
	Description string
	Extent      Extent

	// StorageCRS is the native CRS of stored geometries.
	StorageCRS crs.CRS

	// SupportedCRS overrides the dataset list for this collection.
	// OPTIONAL: nil means the dataset list applies.
	SupportedCRS []crs.CRS

	MetadataURLs []MetadataURL

	// Properties lists the properties filters may reference, in the order
	// used to break ties between equal local names.
	Properties []PropertyDescriptor

	// Store names the feature store serving this type.
	Store string
}

// ID returns the collection id, the local part of the qualified name.
func (ft *FeatureType) ID() string {
	return ft.Name.Local
}
