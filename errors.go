package oaf

import "fmt"

// UnknownCollectionError is returned when a collection id is not configured.
type UnknownCollectionError struct {
	ID string
}

func (e *UnknownCollectionError) Error() string {
	return fmt.Sprintf("unknown collection %q", e.ID)
}

func (e *UnknownCollectionError) Is(target error) bool {
	return target == ErrUnknownCollection
}

// InvalidParameterValueError reports a request parameter that failed
// validation, such as an unknown CRS identifier.
type InvalidParameterValueError struct {
	Parameter string
	Value     string
	Err       error
}

func (e *InvalidParameterValueError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid value %q for parameter %s: %v", e.Value, e.Parameter, e.Err)
	}
	return fmt.Sprintf("invalid value %q for parameter %s", e.Value, e.Parameter)
}

func (e *InvalidParameterValueError) Unwrap() error {
	return e.Err
}

func (e *InvalidParameterValueError) Is(target error) bool {
	return target == ErrInvalidParameterValue
}

// InternalQueryError wraps a failure of the feature store. Op names the
// store operation that failed.
type InternalQueryError struct {
	Op  string
	Err error
}

func (e *InternalQueryError) Error() string {
	return fmt.Sprintf("query failed in %s: %v", e.Op, e.Err)
}

func (e *InternalQueryError) Unwrap() error {
	return e.Err
}

func (e *InternalQueryError) Is(target error) bool {
	return target == ErrInternalQuery
}
