// Package query plans backend queries for feature retrieval.
package query

import (
	"errors"
	"fmt"

	"github.com/hugr-lab/oaf-go/catalog"
	"github.com/hugr-lab/oaf-go/filter"
)

const (
	// Unlimited is the limit of a query returning all matches.
	Unlimited = -1

	// First is the offset of the first record.
	First = 0
)

var (
	// ErrInvalidLimit is returned for a paged request with a limit below 1.
	ErrInvalidLimit = errors.New("query: limit must be positive")

	// ErrInvalidOffset is returned for a negative offset.
	ErrInvalidOffset = errors.New("query: offset must not be negative")

	// ErrEmptyFeatureID is returned when a by-id query has no id.
	ErrEmptyFeatureID = errors.New("query: feature id cannot be empty")
)

// Query is the backend query handed to a feature store.
type Query struct {
	// TypeName is the qualified name of the queried feature type.
	TypeName catalog.QName

	// Filter restricts the result. Nil selects all features.
	Filter filter.Predicate

	// Limit is the maximum number of features, or Unlimited.
	Limit int

	// Offset is the number of matches skipped.
	Offset int

	// FeatureID selects a single feature by identity. Limit and Offset are
	// ignored when set.
	FeatureID string
}

// ByID reports whether q selects a single feature by identity.
func (q *Query) ByID() bool {
	return q.FeatureID != ""
}

// Unbounded reports whether q returns all matches.
func (q *Query) Unbounded() bool {
	return q.Limit == Unlimited
}

func (q *Query) String() string {
	if q.ByID() {
		return fmt.Sprintf("%s id=%s", q.TypeName, q.FeatureID)
	}
	f := "none"
	if q.Filter != nil {
		f = q.Filter.String()
	}
	return fmt.Sprintf("%s filter=%s limit=%d offset=%d", q.TypeName, f, q.Limit, q.Offset)
}

// Params are the request values a query is planned from.
type Params struct {
	Filter filter.Predicate
	Limit  int
	Offset int
	Bulk   bool
}

// Build plans a query over ft. Bulk requests ignore the paging values and
// select every match from the first record on.
func Build(ft *catalog.FeatureType, p Params) (*Query, error) {
	q := &Query{TypeName: ft.Name, Filter: p.Filter}
	if p.Bulk {
		q.Limit = Unlimited
		q.Offset = First
		return q, nil
	}

	if p.Limit < 1 {
		return nil, ErrInvalidLimit
	}
	if p.Offset < 0 {
		return nil, ErrInvalidOffset
	}
	q.Limit = p.Limit
	q.Offset = p.Offset
	return q, nil
}

// BuildByID plans an identity query for one feature of ft.
func BuildByID(ft *catalog.FeatureType, id string) (*Query, error) {
	if id == "" {
		return nil, ErrEmptyFeatureID
	}
	return &Query{TypeName: ft.Name, Limit: 1, Offset: First, FeatureID: id}, nil
}
