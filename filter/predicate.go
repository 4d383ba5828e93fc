package filter

import (
	"fmt"
	"time"

	"github.com/hugr-lab/oaf-go/catalog"
	"github.com/hugr-lab/oaf-go/geom"
)

// Predicate is a translated filter condition. It is implemented by *Spatial
// and *Temporal. Predicates are immutable once built.
type Predicate interface {
	fmt.Stringer
	predicate()
}

// Spatial compares a property's geometry against a geometry literal.
type Spatial struct {
	Operator SpatialOperator
	Property PropertyRef
	Geometry geom.Geometry
}

// Temporal compares a property's time value against an instant.
type Temporal struct {
	Operator TemporalOperator
	Property PropertyRef
	Instant  Instant
}

func (*Spatial) predicate()  {}
func (*Temporal) predicate() {}

func (s *Spatial) String() string {
	return fmt.Sprintf("%s(%s, %s)", s.Operator, s.Property, geom.TypeName(s.Geometry))
}

func (t *Temporal) String() string {
	return fmt.Sprintf("%s(%s, %s)", t.Operator, t.Property, t.Instant)
}

// Precision is the granularity an instant was given in.
type Precision int

const (
	PrecisionDate Precision = iota
	PrecisionDateTime
)

// Instant is a point in time. Date instants hold midnight UTC of the day.
type Instant struct {
	Time      time.Time
	Precision Precision
}

func (i Instant) String() string {
	if i.Precision == PrecisionDate {
		return i.Time.Format(time.DateOnly)
	}
	return i.Time.Format(time.RFC3339Nano)
}

// End returns the first moment after the instant: the next day for dates,
// the instant itself for timestamps.
func (i Instant) End() time.Time {
	if i.Precision == PrecisionDate {
		return i.Time.AddDate(0, 0, 1)
	}
	return i.Time
}

// PropertyRef references a feature property. A resolved reference carries
// the configured qualified name; an unresolved one only the local name.
type PropertyRef struct {
	Name     catalog.QName
	Resolved bool
}

func (r PropertyRef) String() string {
	return r.Name.String()
}

// PredicateCases handles each predicate variant.
type PredicateCases[T any] interface {
	Spatial(*Spatial) (T, error)
	Temporal(*Temporal) (T, error)
}

// Match dispatches p to the matching method of c.
func Match[T any](p Predicate, c PredicateCases[T]) (T, error) {
	switch v := p.(type) {
	case *Spatial:
		return c.Spatial(v)
	case *Temporal:
		return c.Temporal(v)
	}
	var zero T
	return zero, fmt.Errorf("filter: unsupported predicate %T", p)
}
