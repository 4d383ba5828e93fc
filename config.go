package oaf

import (
	"errors"
	"log/slog"

	"github.com/hugr-lab/oaf-go/catalog"
	"github.com/hugr-lab/oaf-go/crs"
	"github.com/hugr-lab/oaf-go/link"
	"github.com/hugr-lab/oaf-go/store"
)

// Config contains configuration for a feature Service.
type Config struct {
	// Dataset provides the published collections.
	// REQUIRED: MUST NOT be nil.
	Dataset catalog.Dataset

	// Stores opens store handles for feature types.
	// REQUIRED: MUST NOT be nil.
	Stores store.Provider

	// Links builds the link sets of responses.
	// REQUIRED: MUST NOT be nil.
	Links *link.Builder

	// Registry resolves response and filter CRS identifiers.
	// OPTIONAL: Uses crs.DefaultRegistry() if nil.
	Registry crs.Registry

	// DefaultCRS is used when a request names no response CRS.
	// OPTIONAL: If zero, the first CRS supported by the dataset.
	DefaultCRS crs.CRS

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger
}

// Standard errors returned by the oaf package.
var (
	// ErrInvalidConfig indicates Config validation failed.
	ErrInvalidConfig = errors.New("invalid service config")

	// ErrUnknownCollection matches every *UnknownCollectionError.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrInvalidParameterValue matches every *InvalidParameterValueError.
	ErrInvalidParameterValue = errors.New("invalid parameter value")

	// ErrInternalQuery matches every *InternalQueryError.
	ErrInternalQuery = errors.New("internal query error")
)

// validateConfig checks that required Config fields are set.
func validateConfig(config Config) error {
	switch {
	case config.Dataset == nil:
		return errors.New("dataset is required")
	case config.Stores == nil:
		return errors.New("stores are required")
	case config.Links == nil:
		return errors.New("link builder is required")
	}
	return nil
}
