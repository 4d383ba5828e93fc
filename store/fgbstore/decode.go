package fgbstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var errTruncated = errors.New("fgbstore: truncated property buffer")

// column is a decoded header column.
type column struct {
	name string
	typ  flattypes.ColumnType
}

func headerColumns(h *flattypes.Header) []column {
	cols := make([]column, 0, h.ColumnsLength())
	for i := 0; i < h.ColumnsLength(); i++ {
		var c flattypes.Column
		if h.Columns(&c, i) {
			cols = append(cols, column{name: string(c.Name()), typ: c.Type()})
		}
	}
	return cols
}

// decodeProperties reads the property buffer of a feature: a sequence of
// little-endian uint16 column indexes, each followed by the value encoded
// for the column type.
func decodeProperties(data []byte, cols []column) (geojson.Properties, error) {
	props := make(geojson.Properties, len(cols))
	for len(data) > 0 {
		if len(data) < 2 {
			return nil, errTruncated
		}
		idx := int(binary.LittleEndian.Uint16(data))
		data = data[2:]
		if idx >= len(cols) {
			return nil, fmt.Errorf("fgbstore: column index %d out of range", idx)
		}

		v, n, err := decodeValue(data, cols[idx].typ)
		if err != nil {
			return nil, fmt.Errorf("fgbstore: column %s: %w", cols[idx].name, err)
		}
		props[cols[idx].name] = v
		data = data[n:]
	}
	return props, nil
}

var fixedSizes = map[flattypes.ColumnType]int{
	flattypes.ColumnTypeBool:   1,
	flattypes.ColumnTypeByte:   1,
	flattypes.ColumnTypeUByte:  1,
	flattypes.ColumnTypeShort:  2,
	flattypes.ColumnTypeUShort: 2,
	flattypes.ColumnTypeInt:    4,
	flattypes.ColumnTypeUInt:   4,
	flattypes.ColumnTypeFloat:  4,
	flattypes.ColumnTypeLong:   8,
	flattypes.ColumnTypeULong:  8,
	flattypes.ColumnTypeDouble: 8,
}

func decodeValue(data []byte, typ flattypes.ColumnType) (any, int, error) {
	if size, ok := fixedSizes[typ]; ok {
		if len(data) < size {
			return nil, 0, errTruncated
		}
		return fixedValue(data, typ), size, nil
	}

	// Variable length values carry a uint32 byte length.
	if len(data) < 4 {
		return nil, 0, errTruncated
	}
	n := int(binary.LittleEndian.Uint32(data))
	if len(data) < 4+n {
		return nil, 0, errTruncated
	}
	raw := data[4 : 4+n]

	switch typ {
	case flattypes.ColumnTypeString:
		return string(raw), 4 + n, nil
	case flattypes.ColumnTypeDateTime:
		if t, err := time.Parse(time.RFC3339Nano, string(raw)); err == nil {
			return t, 4 + n, nil
		}
		return string(raw), 4 + n, nil
	case flattypes.ColumnTypeJson:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, 0, err
		}
		return v, 4 + n, nil
	case flattypes.ColumnTypeBinary:
		return append([]byte(nil), raw...), 4 + n, nil
	default:
		return nil, 0, fmt.Errorf("unsupported column type %s", flattypes.EnumNamesColumnType[typ])
	}
}

func fixedValue(data []byte, typ flattypes.ColumnType) any {
	switch typ {
	case flattypes.ColumnTypeBool:
		return data[0] != 0
	case flattypes.ColumnTypeByte:
		return int64(int8(data[0]))
	case flattypes.ColumnTypeUByte:
		return int64(data[0])
	case flattypes.ColumnTypeShort:
		return int64(int16(binary.LittleEndian.Uint16(data)))
	case flattypes.ColumnTypeUShort:
		return int64(binary.LittleEndian.Uint16(data))
	case flattypes.ColumnTypeInt:
		return int64(int32(binary.LittleEndian.Uint32(data)))
	case flattypes.ColumnTypeUInt:
		return int64(binary.LittleEndian.Uint32(data))
	case flattypes.ColumnTypeFloat:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data)))
	case flattypes.ColumnTypeLong:
		return int64(binary.LittleEndian.Uint64(data))
	case flattypes.ColumnTypeULong:
		return binary.LittleEndian.Uint64(data)
	default:
		return math.Float64frombits(binary.LittleEndian.Uint64(data))
	}
}

// decodeGeometry converts a FlatGeobuf geometry. Parts-based types recurse;
// the rest are read from the flat xy array split at ends.
func decodeGeometry(g *flattypes.Geometry, typ flattypes.GeometryType) (orb.Geometry, error) {
	if typ == flattypes.GeometryTypeUnknown {
		typ = g.Type()
	}

	switch typ {
	case flattypes.GeometryTypePoint:
		if g.XyLength() < 2 {
			return nil, nil
		}
		return orb.Point{g.Xy(0), g.Xy(1)}, nil
	case flattypes.GeometryTypeMultiPoint:
		return orb.MultiPoint(xy(g, 0, g.XyLength()/2)), nil
	case flattypes.GeometryTypeLineString:
		return orb.LineString(xy(g, 0, g.XyLength()/2)), nil
	case flattypes.GeometryTypeMultiLineString:
		var mls orb.MultiLineString
		for _, r := range ranges(g) {
			mls = append(mls, orb.LineString(xy(g, r[0], r[1])))
		}
		return mls, nil
	case flattypes.GeometryTypePolygon:
		return polygon(g), nil
	case flattypes.GeometryTypeMultiPolygon:
		if g.PartsLength() == 0 {
			return orb.MultiPolygon{polygon(g)}, nil
		}
		mp := make(orb.MultiPolygon, 0, g.PartsLength())
		for i := 0; i < g.PartsLength(); i++ {
			var part flattypes.Geometry
			if g.Parts(&part, i) {
				mp = append(mp, polygon(&part))
			}
		}
		return mp, nil
	case flattypes.GeometryTypeGeometryCollection:
		coll := make(orb.Collection, 0, g.PartsLength())
		for i := 0; i < g.PartsLength(); i++ {
			var part flattypes.Geometry
			if !g.Parts(&part, i) {
				continue
			}
			child, err := decodeGeometry(&part, flattypes.GeometryTypeUnknown)
			if err != nil {
				return nil, err
			}
			if child != nil {
				coll = append(coll, child)
			}
		}
		return coll, nil
	default:
		return nil, fmt.Errorf("fgbstore: unsupported geometry type %s", flattypes.EnumNamesGeometryType[typ])
	}
}

func polygon(g *flattypes.Geometry) orb.Polygon {
	var p orb.Polygon
	for _, r := range ranges(g) {
		p = append(p, orb.Ring(xy(g, r[0], r[1])))
	}
	return p
}

// ranges returns the [start, end) point ranges given by the ends array, or
// a single range over all points.
func ranges(g *flattypes.Geometry) [][2]int {
	total := g.XyLength() / 2
	if g.EndsLength() == 0 {
		return [][2]int{{0, total}}
	}
	out := make([][2]int, 0, g.EndsLength())
	start := 0
	for i := 0; i < g.EndsLength(); i++ {
		end := min(int(g.Ends(i)), total)
		out = append(out, [2]int{start, end})
		start = end
	}
	return out
}

func xy(g *flattypes.Geometry, start, end int) []orb.Point {
	pts := make([]orb.Point, 0, end-start)
	for i := start; i < end; i++ {
		pts = append(pts, orb.Point{g.Xy(2 * i), g.Xy(2*i + 1)})
	}
	return pts
}
