package geom

import (
	"fmt"

	"github.com/hugr-lab/oaf-go/crs"
)

// Elevations returns the Z of every position of g in traversal order, or nil
// when g is two-dimensional. WKB written by MarshalWKB is 2D; the slice lets
// callers carry the third dimension alongside it.
func Elevations(g Geometry) ([]float64, error) {
	ps, err := Match[[]*Point](g, positions{})
	if err != nil {
		return nil, err
	}
	var z []float64
	for i, p := range ps {
		if p.Z != 0 && z == nil {
			z = make([]float64, len(ps))
			for j := 0; j < i; j++ {
				z[j] = ps[j].Z
			}
		}
		if z != nil {
			z[i] = p.Z
		}
	}
	return z, nil
}

// UnmarshalWKBZ decodes well-known binary like UnmarshalWKB and restores the
// Z values returned by Elevations. An empty z leaves the geometry 2D.
func UnmarshalWKBZ(data []byte, z []float64, c crs.CRS) (Geometry, error) {
	g, err := UnmarshalWKB(data, c)
	if err != nil || len(z) == 0 {
		return g, err
	}
	ps, err := Match[[]*Point](g, positions{})
	if err != nil {
		return nil, err
	}
	if len(ps) != len(z) {
		return nil, fmt.Errorf("geom: %d elevations for %d positions", len(z), len(ps))
	}
	for i, p := range ps {
		p.Z = z[i]
	}
	return g, nil
}

// positions collects pointers to the positions of a geometry.
type positions struct{}

func (positions) Point(p *Point) ([]*Point, error) { return []*Point{p}, nil }

func (positions) LineString(l *LineString) ([]*Point, error) { return refs(l.Points), nil }

func (positions) LinearRing(r *LinearRing) ([]*Point, error) { return refs(r.Points), nil }

func (positions) Polygon(p *Polygon) ([]*Point, error) {
	var out []*Point
	if p.Exterior != nil {
		out = refs(p.Exterior.Points)
	}
	for _, r := range p.Interior {
		out = append(out, refs(r.Points)...)
	}
	return out, nil
}

func (positions) MultiPoint(m *MultiPoint) ([]*Point, error) { return m.Points, nil }

func (positions) MultiLineString(m *MultiLineString) ([]*Point, error) {
	var out []*Point
	for _, l := range m.LineStrings {
		out = append(out, refs(l.Points)...)
	}
	return out, nil
}

func (c positions) MultiPolygon(m *MultiPolygon) ([]*Point, error) {
	var out []*Point
	for _, p := range m.Polygons {
		ps, _ := c.Polygon(p)
		out = append(out, ps...)
	}
	return out, nil
}

func (c positions) GeometryCollection(gc *GeometryCollection) ([]*Point, error) {
	var out []*Point
	for _, g := range gc.Geometries {
		ps, err := Match[[]*Point](g, c)
		if err != nil {
			return nil, err
		}
		out = append(out, ps...)
	}
	return out, nil
}

func (positions) Envelope(*Envelope) ([]*Point, error) { return nil, nil }

func refs(points []Point) []*Point {
	out := make([]*Point, len(points))
	for i := range points {
		out[i] = &points[i]
	}
	return out
}
