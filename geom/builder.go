package geom

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hugr-lab/oaf-go/crs"
)

// ErrNoRings is returned when a polygon is built without rings.
var ErrNoRings = errors.New("geom: polygon requires at least one ring")

// CoordinateError reports a coordinate token that is not a finite decimal.
type CoordinateError struct {
	Token string
	Err   error
}

func (e *CoordinateError) Error() string {
	return fmt.Sprintf("geom: invalid coordinate %q: %v", e.Token, e.Err)
}

func (e *CoordinateError) Unwrap() error {
	return e.Err
}

// Builder constructs geometries tagged with one reference system.
// A Builder holds no mutable state and is safe for concurrent use.
type Builder struct {
	crs crs.CRS
}

// NewBuilder returns a builder tagging every geometry with c.
func NewBuilder(c crs.CRS) *Builder {
	return &Builder{crs: c}
}

// CRS returns the reference system of built geometries.
func (b *Builder) CRS() crs.CRS {
	return b.crs
}

// ParseCoordinate parses a decimal coordinate token. Parsing does not depend
// on locale. NaN and infinities are rejected.
func ParseCoordinate(token string) (float64, error) {
	s := strings.TrimSpace(token)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &CoordinateError{Token: token, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &CoordinateError{Token: token, Err: errors.New("not a finite number")}
	}
	return v, nil
}

// Point builds a point from coordinate tokens. An empty z defaults to 0.
func (b *Builder) Point(x, y, z string) (*Point, error) {
	px, err := ParseCoordinate(x)
	if err != nil {
		return nil, err
	}
	py, err := ParseCoordinate(y)
	if err != nil {
		return nil, err
	}
	var pz float64
	if strings.TrimSpace(z) != "" {
		if pz, err = ParseCoordinate(z); err != nil {
			return nil, err
		}
	}
	return b.PointXYZ(px, py, pz), nil
}

// PointXYZ builds a point from parsed coordinates.
func (b *Builder) PointXYZ(x, y, z float64) *Point {
	return &Point{base: base{b.crs}, X: x, Y: y, Z: z}
}

// LineString builds a line string through points.
func (b *Builder) LineString(points []*Point) *LineString {
	return &LineString{base: base{b.crs}, Points: values(points)}
}

// LinearRing builds a ring from points. Closure is the caller's concern.
func (b *Builder) LinearRing(points []*Point) *LinearRing {
	return &LinearRing{base: base{b.crs}, Points: values(points)}
}

// Polygon builds a polygon. The first ring is the exterior, the rest are
// interior rings.
func (b *Builder) Polygon(rings []*LinearRing) (*Polygon, error) {
	if len(rings) == 0 {
		return nil, ErrNoRings
	}
	p := &Polygon{base: base{b.crs}, Exterior: rings[0]}
	if len(rings) > 1 {
		p.Interior = append([]*LinearRing(nil), rings[1:]...)
	}
	return p, nil
}

// MultiPoint builds a multi point.
func (b *Builder) MultiPoint(points []*Point) *MultiPoint {
	return &MultiPoint{base: base{b.crs}, Points: points}
}

// MultiLineString builds a multi line string.
func (b *Builder) MultiLineString(lines []*LineString) *MultiLineString {
	return &MultiLineString{base: base{b.crs}, LineStrings: lines}
}

// MultiPolygon builds a multi polygon.
func (b *Builder) MultiPolygon(polygons []*Polygon) *MultiPolygon {
	return &MultiPolygon{base: base{b.crs}, Polygons: polygons}
}

// Collection builds a geometry collection.
func (b *Builder) Collection(geometries []Geometry) *GeometryCollection {
	return &GeometryCollection{base: base{b.crs}, Geometries: geometries}
}

// Envelope builds a bounding box from west, south, east and north tokens.
func (b *Builder) Envelope(west, south, east, north string) (*Envelope, error) {
	var bounds [4]float64
	for i, tok := range [4]string{west, south, east, north} {
		v, err := ParseCoordinate(tok)
		if err != nil {
			return nil, err
		}
		bounds[i] = v
	}
	return b.EnvelopeBounds(bounds[0], bounds[1], bounds[2], bounds[3]), nil
}

// EnvelopeBounds builds a bounding box from parsed bounds.
func (b *Builder) EnvelopeBounds(minX, minY, maxX, maxY float64) *Envelope {
	return &Envelope{base: base{b.crs}, MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

func values(points []*Point) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = *p
	}
	return out
}
