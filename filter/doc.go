// Package filter translates parsed CQL2 filter trees into typed predicates
// that feature stores can execute.
//
// This package enables feature service developers to:
//   - Translate a cql2.BooleanExpression into a Spatial or Temporal predicate
//   - Resolve bare property names against a collection's queryable properties
//   - Evaluate predicates in-process for stores without native filtering
//
// # Basic Usage
//
// Translate a tree produced by a CQL2 parser (or cql2.ParseJSON):
//
//	tr := filter.NewTranslator(filterCRS, featureType.Properties)
//	pred, err := tr.Translate(tree)
//	if errors.Is(err, filter.ErrUnsupportedExpression) {
//	    return err // report as a client error
//	}
//
// # Supported Subset
//
// A filter must consist of exactly one predicate. Boolean composition
// (AND, OR, NOT), comparison and array predicates, function calls, boolean
// literals and interval instants are rejected with an
// *UnsupportedExpressionError naming the construct.
//
//	S_INTERSECTS(property, geometry literal)
//	T_AFTER(property, DATE('...') | TIMESTAMP('...'))
//
// Every CQL2 spatial and temporal operator name is recognized; the ones not
// listed above are reported as unsupported rather than unknown.
//
// # Property Resolution
//
// Property names match the local part of configured qualified names. No
// match produces an unresolved reference; several matches log a warning and
// use the first in configuration order.
//
// # Dispatch
//
// Predicate, geom.Geometry and cql2.SpatialInstance are closed variants.
// Code handling all variants implements the matching Cases interface and
// calls Match, so a new variant fails to compile until every site handles it.
package filter
