// Package config loads the service configuration: the published dataset,
// its collections and the feature stores serving them.
package config

import (
	"fmt"
	"strings"
)

// Store types.
const (
	StoreMemory     = "memory"
	StoreDuckDB     = "duckdb"
	StoreFlatGeobuf = "flatgeobuf"
	StoreArrow      = "arrow"
)

var storeTypes = []string{StoreMemory, StoreDuckDB, StoreFlatGeobuf, StoreArrow}

// Config is the root of the configuration file.
type Config struct {
	Dataset     DatasetConfig      `koanf:"dataset"`
	Collections []CollectionConfig `koanf:"collections"`
	Stores      []StoreConfig      `koanf:"stores"`
	LogLevel    string             `koanf:"log_level"`

	// DefaultStore serves collections without a store id. Empty means the
	// first store.
	DefaultStore string `koanf:"default_store"`
}

// DatasetConfig describes the published dataset.
type DatasetConfig struct {
	ID           string   `koanf:"id"`
	Title        string   `koanf:"title"`
	SupportedCRS []string `koanf:"supported_crs"`
	DefaultCRS   string   `koanf:"default_crs"`
	BaseURL      string   `koanf:"base_url"`
}

// CollectionConfig describes one feature type.
type CollectionConfig struct {
	Name         string              `koanf:"name"`
	Namespace    string              `koanf:"namespace"`
	Prefix       string              `koanf:"prefix"`
	Title        string              `koanf:"title"`
	Description  string              `koanf:"description"`
	Extent       *ExtentConfig       `koanf:"extent"`
	StorageCRS   string              `koanf:"storage_crs"`
	SupportedCRS []string            `koanf:"supported_crs"`
	MetadataURLs []MetadataURLConfig `koanf:"metadata_urls"`

	// FilterProperties lists the properties filters may reference.
	FilterProperties []PropertyConfig `koanf:"filter_properties"`

	// Store is the id of the serving store. Empty means the default store.
	Store string `koanf:"store"`
}

// ExtentConfig is a collection extent. Times are RFC 3339; empty is open.
type ExtentConfig struct {
	BBox  []float64 `koanf:"bbox"`
	CRS   string    `koanf:"crs"`
	Begin string    `koanf:"begin"`
	End   string    `koanf:"end"`
	TRS   string    `koanf:"trs"`
}

// MetadataURLConfig references external collection metadata.
type MetadataURLConfig struct {
	Href  string `koanf:"href"`
	Type  string `koanf:"type"`
	Title string `koanf:"title"`
}

// PropertyConfig describes a filter property. Namespace defaults to the
// collection namespace.
type PropertyConfig struct {
	Name      string `koanf:"name"`
	Namespace string `koanf:"namespace"`
	Type      string `koanf:"type"`
	Title     string `koanf:"title"`
}

// StoreConfig describes a feature store.
type StoreConfig struct {
	ID   string `koanf:"id"`
	Type string `koanf:"type"` // memory, duckdb, flatgeobuf, arrow

	// DSN is the DuckDB data source name. Empty opens an in-memory database.
	DSN string `koanf:"dsn"`

	// Setup statements run once after opening a DuckDB database.
	Setup []string `koanf:"setup"`

	// Sources maps collection ids to their data.
	Sources map[string]SourceConfig `koanf:"sources"`
}

// SourceConfig locates the data of one collection within a store.
type SourceConfig struct {
	// Path is the GeoJSON, FlatGeobuf or Arrow IPC file.
	Path string `koanf:"path"`

	// Table is the DuckDB table or view.
	Table string `koanf:"table"`

	IDColumn       string   `koanf:"id_column"`
	GeometryColumn string   `koanf:"geometry_column"`
	Columns        []string `koanf:"columns"`

	// ColumnMapping maps filter property names to DuckDB columns.
	ColumnMapping map[string]string `koanf:"column_mapping"`
}

// Validate checks the configuration for missing and inconsistent values.
func (c *Config) Validate() error {
	if c.Dataset.BaseURL == "" {
		return fmt.Errorf("dataset.base_url is required")
	}
	if len(c.Stores) == 0 {
		return fmt.Errorf("at least one store is required")
	}

	storeIDs := make(map[string]bool, len(c.Stores))
	for i, s := range c.Stores {
		if s.ID == "" {
			return fmt.Errorf("stores[%d]: id is required", i)
		}
		if storeIDs[s.ID] {
			return fmt.Errorf("stores[%d]: duplicate id %q", i, s.ID)
		}
		storeIDs[s.ID] = true
		if !validStoreType(s.Type) {
			return fmt.Errorf("store %s: unknown type %q (available: %s)", s.ID, s.Type, strings.Join(storeTypes, ", "))
		}
		for coll, src := range s.Sources {
			if err := src.validate(s.Type); err != nil {
				return fmt.Errorf("store %s: source %s: %w", s.ID, coll, err)
			}
		}
	}

	if c.DefaultStore != "" && !storeIDs[c.DefaultStore] {
		return fmt.Errorf("default_store: unknown store %q", c.DefaultStore)
	}

	for i, coll := range c.Collections {
		if coll.Name == "" {
			return fmt.Errorf("collections[%d]: name is required", i)
		}
		if coll.Store != "" && !storeIDs[coll.Store] {
			return fmt.Errorf("collection %s: unknown store %q", coll.Name, coll.Store)
		}
		if coll.Extent != nil && len(coll.Extent.BBox) != 0 && len(coll.Extent.BBox) != 4 {
			return fmt.Errorf("collection %s: extent.bbox needs 4 values, got %d", coll.Name, len(coll.Extent.BBox))
		}
	}
	return nil
}

func (s SourceConfig) validate(storeType string) error {
	switch storeType {
	case StoreDuckDB:
		if s.Table == "" {
			return fmt.Errorf("table is required")
		}
	default:
		if s.Path == "" {
			return fmt.Errorf("path is required")
		}
	}
	return nil
}

func validStoreType(t string) bool {
	for _, st := range storeTypes {
		if st == t {
			return true
		}
	}
	return false
}
