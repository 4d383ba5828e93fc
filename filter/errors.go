package filter

import (
	"errors"
	"fmt"
)

// ErrUnsupportedExpression is matched by errors.Is for every
// UnsupportedExpressionError.
var ErrUnsupportedExpression = errors.New("filter: unsupported expression")

// UnsupportedExpressionError reports a valid CQL2 construct the translator
// does not implement, or a literal that could not be decoded.
type UnsupportedExpressionError struct {
	// Construct names the rejected construct, e.g. "multiple boolean terms"
	// or the operator tag "S_WITHIN".
	Construct string

	// Err is the underlying decode error, if any.
	Err error
}

func (e *UnsupportedExpressionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("filter: unsupported expression: %s: %v", e.Construct, e.Err)
	}
	return "filter: unsupported expression: " + e.Construct
}

func (e *UnsupportedExpressionError) Unwrap() error {
	return e.Err
}

func (e *UnsupportedExpressionError) Is(target error) bool {
	return target == ErrUnsupportedExpression
}

func unsupported(format string, args ...any) error {
	return &UnsupportedExpressionError{Construct: fmt.Sprintf(format, args...)}
}
