package geom

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/hugr-lab/oaf-go/crs"
)

// ToOrb converts g to an orb geometry. Z coordinates are dropped and an
// Envelope becomes an orb.Bound.
func ToOrb(g Geometry) (orb.Geometry, error) {
	if g == nil {
		return nil, errors.New("geom: nil geometry")
	}
	return Match[orb.Geometry](g, toOrb{})
}

type toOrb struct{}

func (toOrb) Point(p *Point) (orb.Geometry, error) {
	return orb.Point{p.X, p.Y}, nil
}

func (toOrb) LineString(l *LineString) (orb.Geometry, error) {
	return lineString(l.Points), nil
}

func (toOrb) LinearRing(r *LinearRing) (orb.Geometry, error) {
	return ring(r.Points), nil
}

func (toOrb) Polygon(p *Polygon) (orb.Geometry, error) {
	return polygon(p), nil
}

func (toOrb) MultiPoint(m *MultiPoint) (orb.Geometry, error) {
	out := make(orb.MultiPoint, len(m.Points))
	for i, p := range m.Points {
		out[i] = orb.Point{p.X, p.Y}
	}
	return out, nil
}

func (toOrb) MultiLineString(m *MultiLineString) (orb.Geometry, error) {
	out := make(orb.MultiLineString, len(m.LineStrings))
	for i, l := range m.LineStrings {
		out[i] = lineString(l.Points)
	}
	return out, nil
}

func (toOrb) MultiPolygon(m *MultiPolygon) (orb.Geometry, error) {
	out := make(orb.MultiPolygon, len(m.Polygons))
	for i, p := range m.Polygons {
		out[i] = polygon(p)
	}
	return out, nil
}

func (c toOrb) GeometryCollection(gc *GeometryCollection) (orb.Geometry, error) {
	out := make(orb.Collection, 0, len(gc.Geometries))
	for i, g := range gc.Geometries {
		og, err := Match[orb.Geometry](g, c)
		if err != nil {
			return nil, fmt.Errorf("collection[%d]: %w", i, err)
		}
		out = append(out, og)
	}
	return out, nil
}

func (toOrb) Envelope(e *Envelope) (orb.Geometry, error) {
	return orb.Bound{Min: orb.Point{e.MinX, e.MinY}, Max: orb.Point{e.MaxX, e.MaxY}}, nil
}

func lineString(points []Point) orb.LineString {
	out := make(orb.LineString, len(points))
	for i, p := range points {
		out[i] = orb.Point{p.X, p.Y}
	}
	return out
}

func ring(points []Point) orb.Ring {
	return orb.Ring(lineString(points))
}

func polygon(p *Polygon) orb.Polygon {
	out := make(orb.Polygon, 0, 1+len(p.Interior))
	if p.Exterior != nil {
		out = append(out, ring(p.Exterior.Points))
	}
	for _, r := range p.Interior {
		out = append(out, ring(r.Points))
	}
	return out
}

// FromOrb converts an orb geometry to a Geometry tagged with c.
func FromOrb(o orb.Geometry, c crs.CRS) (Geometry, error) {
	b := NewBuilder(c)
	switch v := o.(type) {
	case orb.Point:
		return b.PointXYZ(v[0], v[1], 0), nil
	case orb.LineString:
		return b.LineString(points(b, v)), nil
	case orb.Ring:
		return b.LinearRing(points(b, v)), nil
	case orb.Polygon:
		return fromOrbPolygon(b, v)
	case orb.MultiPoint:
		return b.MultiPoint(points(b, v)), nil
	case orb.MultiLineString:
		lines := make([]*LineString, len(v))
		for i, l := range v {
			lines[i] = b.LineString(points(b, l))
		}
		return b.MultiLineString(lines), nil
	case orb.MultiPolygon:
		polys := make([]*Polygon, len(v))
		for i, p := range v {
			poly, err := fromOrbPolygon(b, p)
			if err != nil {
				return nil, fmt.Errorf("multipolygon[%d]: %w", i, err)
			}
			polys[i] = poly
		}
		return b.MultiPolygon(polys), nil
	case orb.Collection:
		geoms := make([]Geometry, len(v))
		for i, g := range v {
			gg, err := FromOrb(g, c)
			if err != nil {
				return nil, fmt.Errorf("collection[%d]: %w", i, err)
			}
			geoms[i] = gg
		}
		return b.Collection(geoms), nil
	case orb.Bound:
		return b.EnvelopeBounds(v.Min[0], v.Min[1], v.Max[0], v.Max[1]), nil
	default:
		return nil, fmt.Errorf("geom: unsupported orb geometry %T", o)
	}
}

func points[S ~[]orb.Point](b *Builder, s S) []*Point {
	out := make([]*Point, len(s))
	for i, p := range s {
		out[i] = b.PointXYZ(p[0], p[1], 0)
	}
	return out
}

func fromOrbPolygon(b *Builder, p orb.Polygon) (*Polygon, error) {
	rings := make([]*LinearRing, len(p))
	for i, r := range p {
		rings[i] = b.LinearRing(points(b, r))
	}
	return b.Polygon(rings)
}

// Bound returns the bounding box of g.
func Bound(g Geometry) (orb.Bound, error) {
	og, err := ToOrb(g)
	if err != nil {
		return orb.Bound{}, err
	}
	return og.Bound(), nil
}

// MarshalWKB encodes g as well-known binary. Envelopes are encoded as
// polygons since WKB has no bounding box type.
func MarshalWKB(g Geometry) ([]byte, error) {
	og, err := storable(g)
	if err != nil {
		return nil, err
	}
	return wkb.Marshal(og)
}

// UnmarshalWKB decodes well-known binary into a Geometry tagged with c.
func UnmarshalWKB(data []byte, c crs.CRS) (Geometry, error) {
	if len(data) == 0 {
		return nil, errors.New("geom: empty WKB data")
	}
	og, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("geom: decode WKB: %w", err)
	}
	return FromOrb(og, c)
}

// MarshalWKT encodes g as well-known text.
func MarshalWKT(g Geometry) (string, error) {
	og, err := storable(g)
	if err != nil {
		return "", err
	}
	return wkt.MarshalString(og), nil
}

func storable(g Geometry) (orb.Geometry, error) {
	og, err := ToOrb(g)
	if err != nil {
		return nil, err
	}
	switch v := og.(type) {
	case orb.Bound:
		return v.ToPolygon(), nil
	case orb.Ring:
		return orb.LineString(v), nil
	}
	return og, nil
}
