package store

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/hugr-lab/oaf-go/filter"
	"github.com/hugr-lab/oaf-go/query"
)

// FeatureStream is a single-consumer, forward-only sequence of features.
//
// Usage:
//
//	defer s.Release()
//	for s.Next() {
//	    f := s.Feature()
//	}
//	if err := s.Err(); err != nil { ... }
type FeatureStream interface {
	// Next advances to the next feature. Returns false at the end or on error.
	Next() bool

	// Feature returns the current feature. Valid until the next call to Next.
	Feature() *geojson.Feature

	// Err returns the error that stopped iteration, if any.
	Err() error

	// Release frees backend resources. Safe to call more than once.
	Release()
}

// SliceStream streams features from a slice.
type SliceStream struct {
	features []*geojson.Feature
	pos      int
	released bool
}

// NewSliceStream creates a stream over features.
func NewSliceStream(features []*geojson.Feature) *SliceStream {
	return &SliceStream{features: features, pos: -1}
}

func (s *SliceStream) Next() bool {
	if s.released || s.pos+1 >= len(s.features) {
		return false
	}
	s.pos++
	return true
}

func (s *SliceStream) Feature() *geojson.Feature {
	if s.pos < 0 || s.pos >= len(s.features) {
		return nil
	}
	return s.features[s.pos]
}

func (s *SliceStream) Err() error { return nil }

func (s *SliceStream) Release() {
	s.released = true
	s.features = nil
}

// filteredStream applies a query to a source stream in-process.
type filteredStream struct {
	src     FeatureStream
	q       *query.Query
	skipped int
	emitted int
	err     error
	once    sync.Once
}

// Select returns a stream yielding the features of src matched by q, with
// q's offset and limit applied. The returned stream owns src.
func Select(src FeatureStream, q *query.Query) FeatureStream {
	return &filteredStream{src: src, q: q}
}

func (s *filteredStream) Next() bool {
	if s.err != nil || s.done() {
		return false
	}
	for s.src.Next() {
		ok, err := Matches(s.q, s.src.Feature())
		if err != nil {
			s.err = err
			return false
		}
		if !ok {
			continue
		}
		if !s.q.ByID() && s.skipped < s.q.Offset {
			s.skipped++
			continue
		}
		s.emitted++
		return true
	}
	s.err = s.src.Err()
	return false
}

func (s *filteredStream) done() bool {
	if s.q.ByID() {
		return s.emitted >= 1
	}
	return !s.q.Unbounded() && s.emitted >= s.q.Limit
}

func (s *filteredStream) Feature() *geojson.Feature { return s.src.Feature() }
func (s *filteredStream) Err() error                { return s.err }
func (s *filteredStream) Release()                  { s.once.Do(s.src.Release) }

// Matches reports whether f is selected by q, ignoring paging.
func Matches(q *query.Query, f *geojson.Feature) (bool, error) {
	if f == nil {
		return false, nil
	}
	if q.ByID() {
		return FeatureID(f) == q.FeatureID, nil
	}
	return filter.Evaluate(q.Filter, f)
}

// Count drains src and returns the number of features matched by q,
// ignoring paging. src is released.
func Count(src FeatureStream, q *query.Query) (int, error) {
	defer src.Release()

	n := 0
	for src.Next() {
		ok, err := Matches(q, src.Feature())
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, src.Err()
}

// Collect drains s into a slice. s is released.
func Collect(s FeatureStream) ([]*geojson.Feature, error) {
	defer s.Release()

	var out []*geojson.Feature
	for s.Next() {
		out = append(out, s.Feature())
	}
	return out, s.Err()
}

// FeatureID returns the identifier of f as a string, or "" if it has none.
func FeatureID(f *geojson.Feature) string {
	switch id := f.ID.(type) {
	case nil:
		return ""
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}
