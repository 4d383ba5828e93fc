package duckdb

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hugr-lab/oaf-go/filter"
	"github.com/hugr-lab/oaf-go/geom"
)

// ErrUnsupportedPredicate is returned for predicates with no SQL form.
var ErrUnsupportedPredicate = errors.New("duckdb: unsupported predicate")

// EncoderOptions configures encoding behavior.
type EncoderOptions struct {
	// ColumnMapping maps property local names to column names.
	// Properties not in the map use their local name.
	ColumnMapping map[string]string
}

// Encoder encodes filter predicates as DuckDB spatial SQL conditions with
// positional parameters.
type Encoder struct {
	opts *EncoderOptions
}

// NewEncoder creates a new encoder.
// If opts is nil, default options are used.
func NewEncoder(opts *EncoderOptions) *Encoder {
	if opts == nil {
		opts = &EncoderOptions{}
	}
	return &Encoder{opts: opts}
}

// Encode converts p to a condition without the WHERE keyword and its
// arguments. A nil predicate encodes to an empty condition.
func (e *Encoder) Encode(p filter.Predicate) (string, []any, error) {
	if p == nil {
		return "", nil, nil
	}
	c, err := filter.Match[condition](p, sqlCases{e})
	if err != nil {
		return "", nil, err
	}
	return c.sql, c.args, nil
}

type condition struct {
	sql  string
	args []any
}

type sqlCases struct {
	*Encoder
}

var spatialFunctions = map[filter.SpatialOperator]string{
	filter.SpatialIntersects: "ST_Intersects",
	filter.SpatialEquals:     "ST_Equals",
	filter.SpatialDisjoint:   "ST_Disjoint",
	filter.SpatialTouches:    "ST_Touches",
	filter.SpatialWithin:     "ST_Within",
	filter.SpatialOverlaps:   "ST_Overlaps",
	filter.SpatialCrosses:    "ST_Crosses",
	filter.SpatialContains:   "ST_Contains",
}

// Spatial encodes a spatial predicate. The literal is bound as WKB.
func (e sqlCases) Spatial(s *filter.Spatial) (condition, error) {
	fn, ok := spatialFunctions[s.Operator]
	if !ok {
		return condition{}, fmt.Errorf("%w: %s", ErrUnsupportedPredicate, s.Operator)
	}
	data, err := geom.MarshalWKB(s.Geometry)
	if err != nil {
		return condition{}, fmt.Errorf("duckdb: encode geometry: %w", err)
	}
	return condition{
		sql:  fn + "(" + e.column(s.Property) + ", ST_GeomFromWKB(?))",
		args: []any{data},
	}, nil
}

// Temporal encodes a temporal predicate. A date instant covers its whole
// day, so AFTER a date starts at the following midnight.
func (e sqlCases) Temporal(t *filter.Temporal) (condition, error) {
	col := e.column(t.Property)
	switch t.Operator {
	case filter.TemporalAfter:
		if t.Instant.Precision == filter.PrecisionDate {
			return condition{sql: col + " >= ?", args: []any{t.Instant.End()}}, nil
		}
		return condition{sql: col + " > ?", args: []any{t.Instant.Time}}, nil
	case filter.TemporalBefore:
		return condition{sql: col + " < ?", args: []any{t.Instant.Time}}, nil
	default:
		return condition{}, fmt.Errorf("%w: %s", ErrUnsupportedPredicate, t.Operator)
	}
}

func (e *Encoder) column(ref filter.PropertyRef) string {
	name := ref.Name.Local
	if mapped, ok := e.opts.ColumnMapping[name]; ok {
		name = mapped
	}
	return quoteIdentifier(name)
}

// quoteIdentifier returns a quoted identifier if needed.
// DuckDB uses double quotes for identifiers.
func quoteIdentifier(name string) string {
	if needsQuoting(name) {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return name
}

// needsQuoting returns true if the identifier is not a plain lower-case
// name or is a reserved word.
func needsQuoting(name string) bool {
	if name == "" {
		return true
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c == '_':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return true
		}
	}
	return reservedWords[name]
}

var reservedWords = map[string]bool{
	"all": true, "and": true, "as": true, "asc": true, "by": true, "case": true,
	"cast": true, "date": true, "default": true, "desc": true, "distinct": true,
	"else": true, "end": true, "from": true, "group": true, "having": true,
	"in": true, "is": true, "limit": true, "not": true, "null": true,
	"offset": true, "on": true, "or": true, "order": true, "select": true,
	"table": true, "then": true, "to": true, "union": true, "user": true,
	"when": true, "where": true, "with": true,
}
