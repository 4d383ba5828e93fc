// Package recovery converts panics in store code into errors so a faulty
// backend fails the request instead of the process.
package recovery

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// ErrPanic matches errors produced from recovered panics.
var ErrPanic = errors.New("panic recovered")

// PanicError carries a recovered panic value.
type PanicError struct {
	Operation string
	Value     any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Operation, e.Value)
}

func (e *PanicError) Is(target error) bool {
	return target == ErrPanic
}

// RecoverToError wraps a function call with panic recovery.
// If the function panics, the panic is logged with its stack and returned
// as a *PanicError.
//
// Example:
//
//	err := recovery.RecoverToError(logger, "Hits", func() error {
//	    n, err = handle.Hits(ctx, q)
//	    return err
//	})
func RecoverToError(logger *slog.Logger, operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(logger, operation, r)
		}
	}()

	return fn()
}

// RecoverToValue wraps a function that returns a value and error.
// If the function panics, returns zero value and a *PanicError.
//
// Example:
//
//	stream, err := recovery.RecoverToValue(logger, "Query", func() (store.FeatureStream, error) {
//	    return handle.Query(ctx, q)
//	})
func RecoverToValue[T any](logger *slog.Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = recovered(logger, operation, r)
		}
	}()

	return fn()
}

// Recover wraps a void function with panic recovery.
// Logs the panic but doesn't return an error.
// Use for cleanup operations where errors can't be returned.
func Recover(logger *slog.Logger, operation string, fn func()) {
	if logger == nil {
		logger = slog.Default()
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic recovered in cleanup",
				"operation", operation,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	fn()
}

func recovered(logger *slog.Logger, operation string, r any) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("Panic recovered",
		"operation", operation,
		"panic", r,
		"stack", string(debug.Stack()),
	)
	return &PanicError{Operation: operation, Value: r}
}
