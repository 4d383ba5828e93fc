package filter

import (
	"log/slog"

	"github.com/hugr-lab/oaf-go/catalog"
	"github.com/hugr-lab/oaf-go/cql2"
	"github.com/hugr-lab/oaf-go/crs"
	"github.com/hugr-lab/oaf-go/geom"
)

// Translator turns a parsed CQL2 tree into a Predicate in a single top-down
// pass. Only single spatial INTERSECTS and temporal AFTER predicates are
// supported; every other construct yields an *UnsupportedExpressionError.
//
// A Translator holds no per-call state and is safe for concurrent use.
type Translator struct {
	geometries *geom.Builder
	properties *PropertyResolver
}

// Option configures a Translator.
type Option func(*translatorOptions)

type translatorOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for property resolution warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(o *translatorOptions) {
		o.logger = logger
	}
}

// NewTranslator creates a translator tagging geometry literals with
// filterCRS and resolving property names against properties.
func NewTranslator(filterCRS crs.CRS, properties []catalog.PropertyDescriptor, opts ...Option) *Translator {
	o := translatorOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Translator{
		geometries: geom.NewBuilder(filterCRS),
		properties: NewPropertyResolver(properties, o.logger),
	}
}

// CRS returns the reference system geometry literals are tagged with.
func (t *Translator) CRS() crs.CRS {
	return t.geometries.CRS()
}

// Translate converts expr into a predicate.
func (t *Translator) Translate(expr *cql2.BooleanExpression) (Predicate, error) {
	if expr == nil || len(expr.Terms) == 0 {
		return nil, unsupported("empty boolean expression")
	}
	if len(expr.Terms) > 1 {
		return nil, unsupported("multiple boolean terms")
	}

	term := expr.Terms[0]
	if term == nil || len(term.Factors) == 0 {
		return nil, unsupported("empty boolean term")
	}
	if len(term.Factors) > 1 {
		return nil, unsupported("multiple boolean factors")
	}

	factor := term.Factors[0]
	if factor == nil || factor.Primary == nil {
		return nil, unsupported("empty boolean factor")
	}
	if factor.Not {
		return nil, unsupported("NOT")
	}
	return t.primary(factor.Primary)
}

func (t *Translator) primary(p *cql2.BooleanPrimary) (Predicate, error) {
	switch {
	case p.Expression != nil:
		return nil, unsupported("nested boolean expression")
	case p.Function != nil:
		return nil, unsupported("function %s", p.Function.Name)
	case p.Literal != nil:
		return nil, unsupported("boolean literal")
	case p.Predicate == nil:
		return nil, unsupported("empty boolean primary")
	}

	pred := p.Predicate
	switch {
	case pred.Comparison != nil:
		return nil, unsupported("comparison predicate")
	case pred.Array != nil:
		return nil, unsupported("array predicate")
	case pred.Spatial != nil:
		return t.spatial(pred.Spatial)
	case pred.Temporal != nil:
		return t.temporal(pred.Temporal)
	}
	return nil, unsupported("empty predicate")
}

func (t *Translator) spatial(sp *cql2.SpatialPredicate) (Predicate, error) {
	op, ok := LookupSpatialOperator(sp.Function)
	if !ok {
		return nil, unsupported("unknown spatial operator %q", sp.Function)
	}
	if op != SpatialIntersects {
		return nil, unsupported("spatial operator %s", op)
	}
	if len(sp.Operands) != 2 {
		return nil, unsupported("%s with %d operands", op, len(sp.Operands))
	}

	left, _, err := t.geomExpression(sp.Operands[0])
	if err != nil {
		return nil, err
	}
	if left == nil {
		return nil, unsupported("%s with a geometry literal as first operand", op)
	}

	right, literal, err := t.geomExpression(sp.Operands[1])
	if err != nil {
		return nil, err
	}
	if right != nil {
		return nil, unsupported("%s with a property as second operand", op)
	}

	return &Spatial{Operator: op, Property: *left, Geometry: literal}, nil
}

// geomExpression resolves ge to either a property reference or a geometry
// literal. Exactly one of the returned values is non-nil on success.
func (t *Translator) geomExpression(ge *cql2.GeomExpression) (*PropertyRef, geom.Geometry, error) {
	switch {
	case ge == nil:
		return nil, nil, unsupported("empty geometry expression")
	case ge.Function != nil:
		return nil, nil, unsupported("function %s as geometry expression", ge.Function.Name)
	case ge.PropertyName != "":
		ref := t.properties.Resolve(ge.PropertyName)
		return &ref, nil, nil
	case ge.Instance != nil:
		g, err := cql2.MatchSpatialInstance[geom.Geometry](ge.Instance, literals{t.geometries})
		if err != nil {
			return nil, nil, err
		}
		return nil, g, nil
	}
	return nil, nil, unsupported("empty geometry expression")
}

func (t *Translator) temporal(tp *cql2.TemporalPredicate) (Predicate, error) {
	op, ok := LookupTemporalOperator(tp.Function)
	if !ok {
		return nil, unsupported("unknown temporal operator %q", tp.Function)
	}
	if op != TemporalAfter {
		return nil, unsupported("temporal operator %s", op)
	}
	if len(tp.Operands) != 2 {
		return nil, unsupported("%s with %d operands", op, len(tp.Operands))
	}

	left, right := tp.Operands[0], tp.Operands[1]
	if left == nil || left.PropertyName == "" {
		return nil, unsupported("%s without a property as first operand", op)
	}
	if right == nil || right.Instance == nil {
		return nil, unsupported("%s without a temporal literal as second operand", op)
	}

	instant, err := parseTemporalInstance(right.Instance)
	if err != nil {
		return nil, err
	}

	return &Temporal{
		Operator: op,
		Property: t.properties.Resolve(left.PropertyName),
		Instant:  instant,
	}, nil
}

// literals builds geometries from CQL2 geometry literals.
type literals struct {
	b *geom.Builder
}

func (l literals) point(c cql2.Coordinate) (*geom.Point, error) {
	p, err := l.b.Point(c.X, c.Y, c.Z)
	if err != nil {
		return nil, &UnsupportedExpressionError{Construct: "coordinate", Err: err}
	}
	return p, nil
}

func (l literals) points(coords []cql2.Coordinate) ([]*geom.Point, error) {
	out := make([]*geom.Point, len(coords))
	for i, c := range coords {
		p, err := l.point(c)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func (l literals) lineString(ls cql2.LineStringText) (*geom.LineString, error) {
	pts, err := l.points(ls.Coordinates)
	if err != nil {
		return nil, err
	}
	return l.b.LineString(pts), nil
}

func (l literals) polygon(pt *cql2.PolygonText) (*geom.Polygon, error) {
	rings := make([]*geom.LinearRing, len(pt.Rings))
	for i, r := range pt.Rings {
		pts, err := l.points(r.Coordinates)
		if err != nil {
			return nil, err
		}
		rings[i] = l.b.LinearRing(pts)
	}
	p, err := l.b.Polygon(rings)
	if err != nil {
		return nil, &UnsupportedExpressionError{Construct: "polygon", Err: err}
	}
	return p, nil
}

func (l literals) Point(pt *cql2.PointText) (geom.Geometry, error) {
	p, err := l.point(pt.Coordinate)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (l literals) LineString(ls *cql2.LineStringText) (geom.Geometry, error) {
	line, err := l.lineString(*ls)
	if err != nil {
		return nil, err
	}
	return line, nil
}

func (l literals) Polygon(pt *cql2.PolygonText) (geom.Geometry, error) {
	p, err := l.polygon(pt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (l literals) MultiPoint(mp *cql2.MultiPointText) (geom.Geometry, error) {
	pts, err := l.points(mp.Points)
	if err != nil {
		return nil, err
	}
	return l.b.MultiPoint(pts), nil
}

func (l literals) MultiLineString(ml *cql2.MultiLineStringText) (geom.Geometry, error) {
	lines := make([]*geom.LineString, len(ml.LineStrings))
	for i, ls := range ml.LineStrings {
		line, err := l.lineString(ls)
		if err != nil {
			return nil, err
		}
		lines[i] = line
	}
	return l.b.MultiLineString(lines), nil
}

func (l literals) MultiPolygon(mp *cql2.MultiPolygonText) (geom.Geometry, error) {
	polys := make([]*geom.Polygon, len(mp.Polygons))
	for i := range mp.Polygons {
		p, err := l.polygon(&mp.Polygons[i])
		if err != nil {
			return nil, err
		}
		polys[i] = p
	}
	return l.b.MultiPolygon(polys), nil
}

func (l literals) GeometryCollection(gc *cql2.GeometryCollectionText) (geom.Geometry, error) {
	members := make([]geom.Geometry, len(gc.Geometries))
	for i, si := range gc.Geometries {
		g, err := cql2.MatchSpatialInstance[geom.Geometry](si, l)
		if err != nil {
			return nil, err
		}
		members[i] = g
	}
	return l.b.Collection(members), nil
}

func (l literals) BBox(bb *cql2.BBoxText) (geom.Geometry, error) {
	e, err := l.b.Envelope(bb.West, bb.South, bb.East, bb.North)
	if err != nil {
		return nil, &UnsupportedExpressionError{Construct: "bbox", Err: err}
	}
	return e, nil
}
