// Package cql2 defines the syntax tree of a parsed CQL2 filter.
//
// The tree mirrors the CQL2 grammar: a boolean expression is a disjunction of
// terms, a term a conjunction of factors, a factor an optionally negated
// primary. Each optional child is a pointer; exactly one alternative of a
// production is set. Literal tokens (coordinates, instants, operator names)
// are kept as the text that appeared in the query.
//
// Trees are produced by an external CQL2 text parser or decoded from the
// JSON tree form with ParseJSON.
package cql2

import "fmt"

// BooleanExpression is booleanTerm {OR booleanTerm}.
type BooleanExpression struct {
	Terms []*BooleanTerm
}

// BooleanTerm is booleanFactor {AND booleanFactor}.
type BooleanTerm struct {
	Factors []*BooleanFactor
}

// BooleanFactor is [NOT] booleanPrimary.
type BooleanFactor struct {
	Not     bool
	Primary *BooleanPrimary
}

// BooleanPrimary holds exactly one of its fields.
type BooleanPrimary struct {
	Expression *BooleanExpression // parenthesized expression
	Function   *Function
	Literal    *bool
	Predicate  *Predicate
}

// Function is a function call. Arguments are kept as text.
type Function struct {
	Name string
	Args []string
}

// Predicate holds exactly one of its fields.
type Predicate struct {
	Comparison *ComparisonPredicate
	Spatial    *SpatialPredicate
	Temporal   *TemporalPredicate
	Array      *ArrayPredicate
}

// ComparisonPredicate is kept as text.
type ComparisonPredicate struct {
	Text string
}

// ArrayPredicate is kept as text.
type ArrayPredicate struct {
	Function string
	Text     string
}

// SpatialPredicate is a spatial function such as S_INTERSECTS applied to two
// geometry expressions.
type SpatialPredicate struct {
	Function string
	Operands []*GeomExpression
}

// GeomExpression holds exactly one of its fields.
type GeomExpression struct {
	PropertyName string
	Function     *Function
	Instance     SpatialInstance
}

// TemporalPredicate is a temporal function such as T_AFTER applied to two
// temporal expressions.
type TemporalPredicate struct {
	Function string
	Operands []*TemporalExpression
}

// TemporalExpression holds exactly one of its fields.
type TemporalExpression struct {
	PropertyName string
	Function     *Function
	Instance     *TemporalInstance
}

// TemporalInstance holds exactly one of its fields.
type TemporalInstance struct {
	Instant  *InstantInstance
	Interval *IntervalInstance
}

// InstantInstance holds one of Date or Timestamp, as literal text such as
// DATE('2020-01-01') or TIMESTAMP('2020-01-01T00:00:00Z').
type InstantInstance struct {
	Date      string
	Timestamp string
}

// IntervalInstance is INTERVAL(start, end).
type IntervalInstance struct {
	Start string
	End   string
}

// Coordinate is a position given as x, y and optional z tokens.
type Coordinate struct {
	X, Y, Z string
}

// SpatialInstance is a geometry literal. It is implemented by *PointText,
// *LineStringText, *PolygonText, *MultiPointText, *MultiLineStringText,
// *MultiPolygonText, *GeometryCollectionText and *BBoxText.
type SpatialInstance interface {
	spatialInstance()
}

// PointText is POINT(x y [z]).
type PointText struct {
	Coordinate Coordinate
}

// LineStringText is LINESTRING(...).
type LineStringText struct {
	Coordinates []Coordinate
}

// LinearRingText is one ring of a polygon.
type LinearRingText struct {
	Coordinates []Coordinate
}

// PolygonText is POLYGON((...), ...). The first ring is the exterior.
type PolygonText struct {
	Rings []LinearRingText
}

// MultiPointText is MULTIPOINT(...).
type MultiPointText struct {
	Points []Coordinate
}

// MultiLineStringText is MULTILINESTRING(...).
type MultiLineStringText struct {
	LineStrings []LineStringText
}

// MultiPolygonText is MULTIPOLYGON(...).
type MultiPolygonText struct {
	Polygons []PolygonText
}

// GeometryCollectionText is GEOMETRYCOLLECTION(...).
type GeometryCollectionText struct {
	Geometries []SpatialInstance
}

// BBoxText is BBOX(west, south, east, north).
type BBoxText struct {
	West, South, East, North string
}

func (*PointText) spatialInstance()              {}
func (*LineStringText) spatialInstance()         {}
func (*PolygonText) spatialInstance()            {}
func (*MultiPointText) spatialInstance()         {}
func (*MultiLineStringText) spatialInstance()    {}
func (*MultiPolygonText) spatialInstance()       {}
func (*GeometryCollectionText) spatialInstance() {}
func (*BBoxText) spatialInstance()               {}

// SpatialInstanceCases handles each geometry literal variant.
type SpatialInstanceCases[T any] interface {
	Point(*PointText) (T, error)
	LineString(*LineStringText) (T, error)
	Polygon(*PolygonText) (T, error)
	MultiPoint(*MultiPointText) (T, error)
	MultiLineString(*MultiLineStringText) (T, error)
	MultiPolygon(*MultiPolygonText) (T, error)
	GeometryCollection(*GeometryCollectionText) (T, error)
	BBox(*BBoxText) (T, error)
}

// MatchSpatialInstance dispatches si to the matching method of c.
func MatchSpatialInstance[T any](si SpatialInstance, c SpatialInstanceCases[T]) (T, error) {
	switch v := si.(type) {
	case *PointText:
		return c.Point(v)
	case *LineStringText:
		return c.LineString(v)
	case *PolygonText:
		return c.Polygon(v)
	case *MultiPointText:
		return c.MultiPoint(v)
	case *MultiLineStringText:
		return c.MultiLineString(v)
	case *MultiPolygonText:
		return c.MultiPolygon(v)
	case *GeometryCollectionText:
		return c.GeometryCollection(v)
	case *BBoxText:
		return c.BBox(v)
	}
	var zero T
	return zero, fmt.Errorf("cql2: unsupported spatial instance %T", si)
}

// Single wraps one predicate into a complete expression tree.
func Single(p *Predicate) *BooleanExpression {
	return &BooleanExpression{Terms: []*BooleanTerm{{
		Factors: []*BooleanFactor{{Primary: &BooleanPrimary{Predicate: p}}},
	}}}
}
