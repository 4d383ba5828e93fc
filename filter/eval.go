package filter

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/hugr-lab/oaf-go/geom"
)

// Evaluate reports whether feature f satisfies p. It is used by stores that
// cannot push predicates down to their backend.
//
// Spatial predicates read the property named by the reference, or the
// feature geometry when the feature has no such property. A property that
// is not a geometry never matches. Temporal predicates read a
// time.Time or an RFC 3339 / YYYY-MM-DD string. Missing values never match.
// Geometries are compared in the plane without reprojection.
func Evaluate(p Predicate, f *geojson.Feature) (bool, error) {
	if p == nil {
		return true, nil
	}
	return Match[bool](p, evaluator{f: f})
}

type evaluator struct {
	f *geojson.Feature
}

func (e evaluator) Spatial(s *Spatial) (bool, error) {
	value := e.geometry(s.Property)
	if value == nil {
		return false, nil
	}
	literal, err := geom.ToOrb(s.Geometry)
	if err != nil {
		return false, err
	}

	switch s.Operator {
	case SpatialIntersects:
		return Intersects(value, literal), nil
	case SpatialDisjoint:
		return !Intersects(value, literal), nil
	default:
		return false, unsupported("evaluation of %s", s.Operator)
	}
}

func (e evaluator) Temporal(t *Temporal) (bool, error) {
	raw, ok := e.f.Properties[t.Property.Name.Local]
	if !ok || raw == nil {
		return false, nil
	}
	value, err := timeValue(raw)
	if err != nil {
		return false, fmt.Errorf("filter: property %s: %w", t.Property, err)
	}

	switch t.Operator {
	case TemporalAfter:
		// A date instant covers its whole day.
		return !value.Before(t.Instant.End()) && value.After(t.Instant.Time), nil
	default:
		return false, unsupported("evaluation of %s", t.Operator)
	}
}

// geometry returns the value of ref, falling back to the feature geometry
// only when the feature has no such property. A property holding anything
// but a geometry yields nil.
func (e evaluator) geometry(ref PropertyRef) orb.Geometry {
	v, ok := e.f.Properties[ref.Name.Local]
	if !ok {
		return e.f.Geometry
	}
	switch g := v.(type) {
	case orb.Geometry:
		return g
	case *geojson.Geometry:
		if g != nil {
			return g.Geometry()
		}
	}
	return nil
}

func timeValue(v any) (time.Time, error) {
	switch tv := v.(type) {
	case time.Time:
		return tv, nil
	case *time.Time:
		if tv != nil {
			return *tv, nil
		}
	case string:
		if t, err := time.Parse(time.RFC3339Nano, tv); err == nil {
			return t, nil
		}
		if t, err := time.Parse(time.DateOnly, tv); err == nil {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("cannot parse %q as time", tv)
	}
	return time.Time{}, fmt.Errorf("unsupported time value %T", v)
}

// Intersects reports whether two geometries share at least one point in the
// plane.
func Intersects(a, b orb.Geometry) bool {
	if a == nil || b == nil {
		return false
	}
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}

	var pa, pb parts
	pa.add(a)
	pb.add(b)

	return pa.touches(&pb) || pb.touches(&pa) || pa.crosses(&pb)
}

// parts is a geometry decomposed into points, lines and polygons. Polygon
// rings are also listed as lines.
type parts struct {
	points   []orb.Point
	lines    []orb.LineString
	polygons []orb.Polygon
}

func (p *parts) add(g orb.Geometry) {
	switch v := g.(type) {
	case orb.Point:
		p.points = append(p.points, v)
	case orb.MultiPoint:
		p.points = append(p.points, v...)
	case orb.LineString:
		p.lines = append(p.lines, v)
	case orb.MultiLineString:
		p.lines = append(p.lines, v...)
	case orb.Ring:
		p.lines = append(p.lines, orb.LineString(v))
	case orb.Polygon:
		p.polygons = append(p.polygons, v)
		for _, r := range v {
			p.lines = append(p.lines, orb.LineString(r))
		}
	case orb.MultiPolygon:
		for _, poly := range v {
			p.add(poly)
		}
	case orb.Collection:
		for _, m := range v {
			p.add(m)
		}
	case orb.Bound:
		p.add(v.ToPolygon())
	}
}

// touches reports whether a point or line vertex of p lies in or on o.
func (p *parts) touches(o *parts) bool {
	for _, pt := range p.points {
		for _, q := range o.points {
			if pt.Equal(q) {
				return true
			}
		}
		for _, l := range o.lines {
			if onLine(pt, l) {
				return true
			}
		}
		for _, poly := range o.polygons {
			if planar.PolygonContains(poly, pt) {
				return true
			}
		}
	}
	for _, l := range p.lines {
		if len(l) == 0 {
			continue
		}
		for _, poly := range o.polygons {
			if planar.PolygonContains(poly, l[0]) {
				return true
			}
		}
	}
	return false
}

// crosses reports whether any segment of p intersects any segment of o.
func (p *parts) crosses(o *parts) bool {
	for _, l1 := range p.lines {
		for _, l2 := range o.lines {
			if !l1.Bound().Intersects(l2.Bound()) {
				continue
			}
			for i := 1; i < len(l1); i++ {
				for j := 1; j < len(l2); j++ {
					if segmentsIntersect(l1[i-1], l1[i], l2[j-1], l2[j]) {
						return true
					}
				}
			}
		}
	}
	return false
}

func onLine(p orb.Point, l orb.LineString) bool {
	if len(l) == 1 {
		return p.Equal(l[0])
	}
	for i := 1; i < len(l); i++ {
		if orientation(l[i-1], l[i], p) == 0 && onSegment(l[i-1], l[i], p) {
			return true
		}
	}
	return false
}

func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	o1 := orientation(p1, p2, q1)
	o2 := orientation(p1, p2, q2)
	o3 := orientation(q1, q2, p1)
	o4 := orientation(q1, q2, p2)

	if o1 != o2 && o3 != o4 {
		return true
	}
	return (o1 == 0 && onSegment(p1, p2, q1)) ||
		(o2 == 0 && onSegment(p1, p2, q2)) ||
		(o3 == 0 && onSegment(q1, q2, p1)) ||
		(o4 == 0 && onSegment(q1, q2, p2))
}

// orientation returns 0 for collinear points, 1 for clockwise and 2 for
// counter-clockwise turns.
func orientation(a, b, c orb.Point) int {
	v := (b[1]-a[1])*(c[0]-b[0]) - (b[0]-a[0])*(c[1]-b[1])
	switch {
	case v == 0:
		return 0
	case v > 0:
		return 1
	default:
		return 2
	}
}

// onSegment reports whether collinear point c lies within the box of a-b.
func onSegment(a, b, c orb.Point) bool {
	return c[0] <= max(a[0], b[0]) && c[0] >= min(a[0], b[0]) &&
		c[1] <= max(a[1], b[1]) && c[1] >= min(a[1], b[1])
}
