package cql2

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmpty is returned by ParseJSON for empty input.
var ErrEmpty = errors.New("cql2: empty filter")

// ParseJSON decodes the JSON tree form of a filter.
//
// A complete tree has a "terms" member:
//
//	{"terms": [{"factors": [{"not": false, "primary": {"predicate": {...}}}]}]}
//
// Any other object is decoded as a single predicate and wrapped with Single:
//
//	{"spatial": {"op": "S_INTERSECTS", "args": [
//	    {"property": "geom"},
//	    {"geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}}]}}
//	{"temporal": {"op": "T_AFTER", "args": [{"property": "updated"}, {"date": "2020-01-01"}]}}
//
// Coordinates keep their literal text; numbers are never rounded here.
func ParseJSON(data []byte) (*BooleanExpression, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmpty
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("cql2: invalid JSON: %w", err)
	}

	if _, ok := keys["terms"]; !ok {
		p, err := parsePredicate(data)
		if err != nil {
			return nil, fmt.Errorf("cql2: %w", err)
		}
		return Single(p), nil
	}

	var raw rawExpression
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("cql2: invalid expression: %w", err)
	}
	expr, err := parseExpression(&raw)
	if err != nil {
		return nil, fmt.Errorf("cql2: %w", err)
	}
	return expr, nil
}

// rawExpression and friends are the intermediate structures for JSON parsing.
type rawExpression struct {
	Terms []rawTerm `json:"terms"`
}

type rawTerm struct {
	Factors []rawFactor `json:"factors"`
}

type rawFactor struct {
	Not     bool       `json:"not"`
	Primary rawPrimary `json:"primary"`
}

type rawPrimary struct {
	Expression *rawExpression  `json:"expression"`
	Function   *rawFunction    `json:"function"`
	Literal    *bool           `json:"literal"`
	Predicate  json.RawMessage `json:"predicate"`
}

type rawFunction struct {
	Name string   `json:"name"`
	Args []string `json:"args"`
}

type rawPredicate struct {
	Comparison *string      `json:"comparison"`
	Array      *rawArray    `json:"array"`
	Spatial    *rawSpatial  `json:"spatial"`
	Temporal   *rawTemporal `json:"temporal"`
}

type rawArray struct {
	Op   string `json:"op"`
	Text string `json:"text"`
}

type rawSpatial struct {
	Op   string              `json:"op"`
	Args []rawGeomExpression `json:"args"`
}

type rawGeomExpression struct {
	Property *string         `json:"property"`
	Function *rawFunction    `json:"function"`
	Geometry json.RawMessage `json:"geometry"`
	BBox     []json.Number   `json:"bbox"`
}

type rawGeometry struct {
	Type        string            `json:"type"`
	Coordinates json.RawMessage   `json:"coordinates"`
	Geometries  []json.RawMessage `json:"geometries"`
}

type rawTemporal struct {
	Op   string                  `json:"op"`
	Args []rawTemporalExpression `json:"args"`
}

type rawTemporalExpression struct {
	Property  *string      `json:"property"`
	Function  *rawFunction `json:"function"`
	Date      *string      `json:"date"`
	Timestamp *string      `json:"timestamp"`
	Interval  []string     `json:"interval"`
}

func parseExpression(raw *rawExpression) (*BooleanExpression, error) {
	if len(raw.Terms) == 0 {
		return nil, errors.New("expression has no terms")
	}
	expr := &BooleanExpression{Terms: make([]*BooleanTerm, 0, len(raw.Terms))}
	for i, rt := range raw.Terms {
		if len(rt.Factors) == 0 {
			return nil, fmt.Errorf("term %d has no factors", i)
		}
		term := &BooleanTerm{Factors: make([]*BooleanFactor, 0, len(rt.Factors))}
		for j, rf := range rt.Factors {
			primary, err := parsePrimary(&rf.Primary)
			if err != nil {
				return nil, fmt.Errorf("term %d factor %d: %w", i, j, err)
			}
			term.Factors = append(term.Factors, &BooleanFactor{Not: rf.Not, Primary: primary})
		}
		expr.Terms = append(expr.Terms, term)
	}
	return expr, nil
}

func parsePrimary(raw *rawPrimary) (*BooleanPrimary, error) {
	if n := countSet(raw.Expression != nil, raw.Function != nil, raw.Literal != nil, len(raw.Predicate) > 0); n != 1 {
		return nil, fmt.Errorf("primary must hold exactly one of expression, function, literal, predicate (has %d)", n)
	}

	switch {
	case raw.Expression != nil:
		expr, err := parseExpression(raw.Expression)
		if err != nil {
			return nil, fmt.Errorf("nested expression: %w", err)
		}
		return &BooleanPrimary{Expression: expr}, nil
	case raw.Function != nil:
		return &BooleanPrimary{Function: function(raw.Function)}, nil
	case raw.Literal != nil:
		v := *raw.Literal
		return &BooleanPrimary{Literal: &v}, nil
	default:
		p, err := parsePredicate(raw.Predicate)
		if err != nil {
			return nil, err
		}
		return &BooleanPrimary{Predicate: p}, nil
	}
}

func parsePredicate(data json.RawMessage) (*Predicate, error) {
	var raw rawPredicate
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid predicate: %w", err)
	}
	if n := countSet(raw.Comparison != nil, raw.Array != nil, raw.Spatial != nil, raw.Temporal != nil); n != 1 {
		return nil, fmt.Errorf("predicate must hold exactly one of comparison, array, spatial, temporal (has %d)", n)
	}

	switch {
	case raw.Comparison != nil:
		return &Predicate{Comparison: &ComparisonPredicate{Text: *raw.Comparison}}, nil
	case raw.Array != nil:
		return &Predicate{Array: &ArrayPredicate{Function: raw.Array.Op, Text: raw.Array.Text}}, nil
	case raw.Spatial != nil:
		sp, err := parseSpatial(raw.Spatial)
		if err != nil {
			return nil, err
		}
		return &Predicate{Spatial: sp}, nil
	default:
		tp, err := parseTemporal(raw.Temporal)
		if err != nil {
			return nil, err
		}
		return &Predicate{Temporal: tp}, nil
	}
}

func parseSpatial(raw *rawSpatial) (*SpatialPredicate, error) {
	if raw.Op == "" {
		return nil, errors.New("spatial predicate: missing op")
	}
	sp := &SpatialPredicate{Function: raw.Op, Operands: make([]*GeomExpression, 0, len(raw.Args))}
	for i := range raw.Args {
		ge, err := parseGeomExpression(&raw.Args[i])
		if err != nil {
			return nil, fmt.Errorf("spatial predicate %s arg %d: %w", raw.Op, i, err)
		}
		sp.Operands = append(sp.Operands, ge)
	}
	return sp, nil
}

func parseGeomExpression(raw *rawGeomExpression) (*GeomExpression, error) {
	if n := countSet(raw.Property != nil, raw.Function != nil, len(raw.Geometry) > 0, raw.BBox != nil); n != 1 {
		return nil, fmt.Errorf("geometry expression must hold exactly one of property, function, geometry, bbox (has %d)", n)
	}

	switch {
	case raw.Property != nil:
		return &GeomExpression{PropertyName: *raw.Property}, nil
	case raw.Function != nil:
		return &GeomExpression{Function: function(raw.Function)}, nil
	case raw.BBox != nil:
		if len(raw.BBox) != 4 {
			return nil, fmt.Errorf("bbox needs 4 numbers, got %d", len(raw.BBox))
		}
		return &GeomExpression{Instance: &BBoxText{
			West:  raw.BBox[0].String(),
			South: raw.BBox[1].String(),
			East:  raw.BBox[2].String(),
			North: raw.BBox[3].String(),
		}}, nil
	default:
		si, err := parseGeometry(raw.Geometry)
		if err != nil {
			return nil, err
		}
		return &GeomExpression{Instance: si}, nil
	}
}

func parseGeometry(data json.RawMessage) (SpatialInstance, error) {
	var raw rawGeometry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid geometry: %w", err)
	}

	switch strings.ToLower(raw.Type) {
	case "point":
		var c []json.Number
		if err := decodeCoordinates(raw, &c); err != nil {
			return nil, err
		}
		coord, err := coordinate(c)
		if err != nil {
			return nil, err
		}
		return &PointText{Coordinate: coord}, nil

	case "linestring":
		var c [][]json.Number
		if err := decodeCoordinates(raw, &c); err != nil {
			return nil, err
		}
		coords, err := coordinates(c)
		if err != nil {
			return nil, err
		}
		return &LineStringText{Coordinates: coords}, nil

	case "polygon":
		var c [][][]json.Number
		if err := decodeCoordinates(raw, &c); err != nil {
			return nil, err
		}
		return polygonText(c)

	case "multipoint":
		var c [][]json.Number
		if err := decodeCoordinates(raw, &c); err != nil {
			return nil, err
		}
		coords, err := coordinates(c)
		if err != nil {
			return nil, err
		}
		return &MultiPointText{Points: coords}, nil

	case "multilinestring":
		var c [][][]json.Number
		if err := decodeCoordinates(raw, &c); err != nil {
			return nil, err
		}
		mls := &MultiLineStringText{LineStrings: make([]LineStringText, 0, len(c))}
		for i, line := range c {
			coords, err := coordinates(line)
			if err != nil {
				return nil, fmt.Errorf("linestring %d: %w", i, err)
			}
			mls.LineStrings = append(mls.LineStrings, LineStringText{Coordinates: coords})
		}
		return mls, nil

	case "multipolygon":
		var c [][][][]json.Number
		if err := decodeCoordinates(raw, &c); err != nil {
			return nil, err
		}
		mp := &MultiPolygonText{Polygons: make([]PolygonText, 0, len(c))}
		for i, poly := range c {
			p, err := polygonText(poly)
			if err != nil {
				return nil, fmt.Errorf("polygon %d: %w", i, err)
			}
			mp.Polygons = append(mp.Polygons, *p)
		}
		return mp, nil

	case "geometrycollection":
		gc := &GeometryCollectionText{Geometries: make([]SpatialInstance, 0, len(raw.Geometries))}
		for i, g := range raw.Geometries {
			si, err := parseGeometry(g)
			if err != nil {
				return nil, fmt.Errorf("member %d: %w", i, err)
			}
			gc.Geometries = append(gc.Geometries, si)
		}
		return gc, nil

	default:
		return nil, fmt.Errorf("unknown geometry type %q", raw.Type)
	}
}

func decodeCoordinates(raw rawGeometry, v any) error {
	if len(raw.Coordinates) == 0 {
		return fmt.Errorf("%s: missing coordinates", raw.Type)
	}
	if err := json.Unmarshal(raw.Coordinates, v); err != nil {
		return fmt.Errorf("%s: invalid coordinates: %w", raw.Type, err)
	}
	return nil
}

func polygonText(rings [][][]json.Number) (*PolygonText, error) {
	if len(rings) == 0 {
		return nil, errors.New("polygon has no rings")
	}
	p := &PolygonText{Rings: make([]LinearRingText, 0, len(rings))}
	for i, ring := range rings {
		coords, err := coordinates(ring)
		if err != nil {
			return nil, fmt.Errorf("ring %d: %w", i, err)
		}
		p.Rings = append(p.Rings, LinearRingText{Coordinates: coords})
	}
	return p, nil
}

func coordinates(list [][]json.Number) ([]Coordinate, error) {
	out := make([]Coordinate, 0, len(list))
	for i, c := range list {
		coord, err := coordinate(c)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
		out = append(out, coord)
	}
	return out, nil
}

func coordinate(c []json.Number) (Coordinate, error) {
	switch len(c) {
	case 2:
		return Coordinate{X: c[0].String(), Y: c[1].String()}, nil
	case 3:
		return Coordinate{X: c[0].String(), Y: c[1].String(), Z: c[2].String()}, nil
	default:
		return Coordinate{}, fmt.Errorf("position needs 2 or 3 numbers, got %d", len(c))
	}
}

func parseTemporal(raw *rawTemporal) (*TemporalPredicate, error) {
	if raw.Op == "" {
		return nil, errors.New("temporal predicate: missing op")
	}
	tp := &TemporalPredicate{Function: raw.Op, Operands: make([]*TemporalExpression, 0, len(raw.Args))}
	for i, arg := range raw.Args {
		n := countSet(arg.Property != nil, arg.Function != nil, arg.Date != nil, arg.Timestamp != nil, arg.Interval != nil)
		if n != 1 {
			return nil, fmt.Errorf("temporal predicate %s arg %d: must hold exactly one of property, function, date, timestamp, interval (has %d)", raw.Op, i, n)
		}

		te := &TemporalExpression{}
		switch {
		case arg.Property != nil:
			te.PropertyName = *arg.Property
		case arg.Function != nil:
			te.Function = function(arg.Function)
		case arg.Date != nil:
			te.Instance = &TemporalInstance{Instant: &InstantInstance{Date: *arg.Date}}
		case arg.Timestamp != nil:
			te.Instance = &TemporalInstance{Instant: &InstantInstance{Timestamp: *arg.Timestamp}}
		default:
			if len(arg.Interval) != 2 {
				return nil, fmt.Errorf("temporal predicate %s arg %d: interval needs 2 bounds, got %d", raw.Op, i, len(arg.Interval))
			}
			te.Instance = &TemporalInstance{Interval: &IntervalInstance{Start: arg.Interval[0], End: arg.Interval[1]}}
		}
		tp.Operands = append(tp.Operands, te)
	}
	return tp, nil
}

func function(raw *rawFunction) *Function {
	return &Function{Name: raw.Name, Args: append([]string(nil), raw.Args...)}
}

func countSet(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}
