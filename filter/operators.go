package filter

import "strings"

// SpatialOperator is a CQL2 spatial comparison function.
type SpatialOperator int

const (
	SpatialIntersects SpatialOperator = iota + 1
	SpatialEquals
	SpatialDisjoint
	SpatialTouches
	SpatialWithin
	SpatialOverlaps
	SpatialCrosses
	SpatialContains
)

var spatialOperators = map[string]SpatialOperator{
	"INTERSECTS": SpatialIntersects,
	"EQUALS":     SpatialEquals,
	"DISJOINT":   SpatialDisjoint,
	"TOUCHES":    SpatialTouches,
	"WITHIN":     SpatialWithin,
	"OVERLAPS":   SpatialOverlaps,
	"CROSSES":    SpatialCrosses,
	"CONTAINS":   SpatialContains,
}

func (o SpatialOperator) String() string {
	for name, op := range spatialOperators {
		if op == o {
			return "S_" + name
		}
	}
	return "S_UNKNOWN"
}

// TemporalOperator is a CQL2 temporal comparison function.
type TemporalOperator int

const (
	TemporalAfter TemporalOperator = iota + 1
	TemporalBefore
	TemporalContains
	TemporalDisjoint
	TemporalDuring
	TemporalEquals
	TemporalFinishedBy
	TemporalFinishes
	TemporalIntersects
	TemporalMeets
	TemporalMetBy
	TemporalOverlappedBy
	TemporalOverlaps
	TemporalStartedBy
	TemporalStarts
)

var temporalOperators = map[string]TemporalOperator{
	"AFTER":        TemporalAfter,
	"BEFORE":       TemporalBefore,
	"CONTAINS":     TemporalContains,
	"DISJOINT":     TemporalDisjoint,
	"DURING":       TemporalDuring,
	"EQUALS":       TemporalEquals,
	"FINISHEDBY":   TemporalFinishedBy,
	"FINISHES":     TemporalFinishes,
	"INTERSECTS":   TemporalIntersects,
	"MEETS":        TemporalMeets,
	"METBY":        TemporalMetBy,
	"OVERLAPPEDBY": TemporalOverlappedBy,
	"OVERLAPS":     TemporalOverlaps,
	"STARTEDBY":    TemporalStartedBy,
	"STARTS":       TemporalStarts,
}

func (o TemporalOperator) String() string {
	for name, op := range temporalOperators {
		if op == o {
			return "T_" + name
		}
	}
	return "T_UNKNOWN"
}

// operatorTag strips the two-character function prefix (S_, T_) and
// upper-cases the remainder. Returns "" for names shorter than the prefix.
func operatorTag(function string) string {
	if len(function) < 2 {
		return ""
	}
	return strings.ToUpper(function[2:])
}

// LookupSpatialOperator resolves a spatial function name such as
// "S_INTERSECTS" or "s_intersects".
func LookupSpatialOperator(function string) (SpatialOperator, bool) {
	op, ok := spatialOperators[operatorTag(function)]
	return op, ok
}

// LookupTemporalOperator resolves a temporal function name such as "T_AFTER".
func LookupTemporalOperator(function string) (TemporalOperator, bool) {
	op, ok := temporalOperators[operatorTag(function)]
	return op, ok
}
