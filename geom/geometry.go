// Package geom provides immutable geometry values tagged with the coordinate
// reference system they were built under.
//
// Geometry is a closed set of variants. Code that needs to handle every
// variant should use Match with a Cases implementation so that adding a
// variant is a compile error at each site instead of a runtime surprise.
package geom

import (
	"fmt"

	"github.com/hugr-lab/oaf-go/crs"
)

// Geometry is implemented by *Point, *LineString, *LinearRing, *Polygon,
// *MultiPoint, *MultiLineString, *MultiPolygon, *GeometryCollection and
// *Envelope.
type Geometry interface {
	// CRS returns the reference system coordinates are expressed in.
	CRS() crs.CRS

	geometry()
}

type base struct {
	crs crs.CRS
}

func (b base) CRS() crs.CRS { return b.crs }

func (base) geometry() {}

// Point is a position. Z is 0 for two-dimensional input.
type Point struct {
	base
	X, Y, Z float64
}

// LineString is a sequence of positions.
type LineString struct {
	base
	Points []Point
}

// LinearRing is a closed line string bounding a polygon.
// The builder accepts rings as given; closure is not validated.
type LinearRing struct {
	base
	Points []Point
}

// Closed reports whether the ring has at least four points and its first
// and last points coincide.
func (r *LinearRing) Closed() bool {
	n := len(r.Points)
	if n < 4 {
		return false
	}
	first, last := r.Points[0], r.Points[n-1]
	return first.X == last.X && first.Y == last.Y && first.Z == last.Z
}

// Polygon has one exterior ring and zero or more interior rings (holes).
type Polygon struct {
	base
	Exterior *LinearRing
	Interior []*LinearRing
}

// MultiPoint is a set of points.
type MultiPoint struct {
	base
	Points []*Point
}

// MultiLineString is a set of line strings.
type MultiLineString struct {
	base
	LineStrings []*LineString
}

// MultiPolygon is a set of polygons.
type MultiPolygon struct {
	base
	Polygons []*Polygon
}

// GeometryCollection is a heterogeneous set of geometries.
type GeometryCollection struct {
	base
	Geometries []Geometry
}

// Envelope is an axis-aligned bounding box.
type Envelope struct {
	base
	MinX, MinY, MaxX, MaxY float64
}

// Cases handles each geometry variant.
type Cases[T any] interface {
	Point(*Point) (T, error)
	LineString(*LineString) (T, error)
	LinearRing(*LinearRing) (T, error)
	Polygon(*Polygon) (T, error)
	MultiPoint(*MultiPoint) (T, error)
	MultiLineString(*MultiLineString) (T, error)
	MultiPolygon(*MultiPolygon) (T, error)
	GeometryCollection(*GeometryCollection) (T, error)
	Envelope(*Envelope) (T, error)
}

// Match dispatches g to the matching method of c.
func Match[T any](g Geometry, c Cases[T]) (T, error) {
	switch v := g.(type) {
	case *Point:
		return c.Point(v)
	case *LineString:
		return c.LineString(v)
	case *LinearRing:
		return c.LinearRing(v)
	case *Polygon:
		return c.Polygon(v)
	case *MultiPoint:
		return c.MultiPoint(v)
	case *MultiLineString:
		return c.MultiLineString(v)
	case *MultiPolygon:
		return c.MultiPolygon(v)
	case *GeometryCollection:
		return c.GeometryCollection(v)
	case *Envelope:
		return c.Envelope(v)
	}
	var zero T
	return zero, fmt.Errorf("geom: unsupported geometry %T", g)
}

// TypeName returns the OGC simple features type name of g.
func TypeName(g Geometry) string {
	switch g.(type) {
	case *Point:
		return "Point"
	case *LineString:
		return "LineString"
	case *LinearRing:
		return "LinearRing"
	case *Polygon:
		return "Polygon"
	case *MultiPoint:
		return "MultiPoint"
	case *MultiLineString:
		return "MultiLineString"
	case *MultiPolygon:
		return "MultiPolygon"
	case *GeometryCollection:
		return "GeometryCollection"
	case *Envelope:
		return "Envelope"
	default:
		return "Unknown"
	}
}
