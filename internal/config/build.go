package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hugr-lab/oaf-go/catalog"
	"github.com/hugr-lab/oaf-go/crs"
	"github.com/hugr-lab/oaf-go/store"
	"github.com/hugr-lab/oaf-go/store/arrowstore"
	"github.com/hugr-lab/oaf-go/store/duckdb"
	"github.com/hugr-lab/oaf-go/store/fgbstore"
	"github.com/hugr-lab/oaf-go/store/memory"
)

// BuildDataset converts the dataset and collection sections into a
// catalog.Dataset. CRS identifiers are resolved with reg.
func (c *Config) BuildDataset(reg crs.Registry) (catalog.Dataset, error) {
	supported, err := lookupAll(reg, c.Dataset.SupportedCRS)
	if err != nil {
		return nil, fmt.Errorf("dataset.supported_crs: %w", err)
	}

	b := catalog.NewDatasetBuilder(c.Dataset.ID).
		Title(c.Dataset.Title).
		SupportedCRS(supported...)

	for _, coll := range c.Collections {
		ft, err := coll.featureType(reg)
		if err != nil {
			return nil, fmt.Errorf("collection %s: %w", coll.Name, err)
		}
		b.FeatureType(ft)
	}
	return b.Build()
}

// DefaultCRS resolves dataset.default_crs. A zero CRS means unset.
func (c *Config) DefaultCRS(reg crs.Registry) (crs.CRS, error) {
	if c.Dataset.DefaultCRS == "" {
		return crs.CRS{}, nil
	}
	return reg.Lookup(c.Dataset.DefaultCRS)
}

// Level returns the configured log level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

func (coll CollectionConfig) featureType(reg crs.Registry) (*catalog.FeatureType, error) {
	ft := &catalog.FeatureType{
		Name:        catalog.QName{Namespace: coll.Namespace, Prefix: coll.Prefix, Local: coll.Name},
		Title:       coll.Title,
		Description: coll.Description,
		Store:       coll.Store,
	}

	var err error
	if coll.StorageCRS != "" {
		if ft.StorageCRS, err = reg.Lookup(coll.StorageCRS); err != nil {
			return nil, fmt.Errorf("storage_crs: %w", err)
		}
	}
	if ft.SupportedCRS, err = lookupAll(reg, coll.SupportedCRS); err != nil {
		return nil, fmt.Errorf("supported_crs: %w", err)
	}
	if coll.Extent != nil {
		if ft.Extent, err = coll.Extent.extent(reg); err != nil {
			return nil, fmt.Errorf("extent: %w", err)
		}
	}

	for _, m := range coll.MetadataURLs {
		ft.MetadataURLs = append(ft.MetadataURLs, catalog.MetadataURL(m))
	}

	for _, p := range coll.FilterProperties {
		typ := catalog.PropertyString
		if p.Type != "" {
			var ok bool
			if typ, ok = catalog.ParsePropertyType(p.Type); !ok {
				return nil, fmt.Errorf("filter property %s: unknown type %q", p.Name, p.Type)
			}
		}
		ns := p.Namespace
		if ns == "" {
			ns = coll.Namespace
		}
		ft.Properties = append(ft.Properties, catalog.PropertyDescriptor{
			Name:  catalog.QName{Namespace: ns, Local: p.Name},
			Type:  typ,
			Title: p.Title,
		})
	}
	return ft, nil
}

func (e *ExtentConfig) extent(reg crs.Registry) (catalog.Extent, error) {
	var ext catalog.Extent
	if len(e.BBox) == 4 {
		c := crs.CRS84
		if e.CRS != "" {
			var err error
			if c, err = reg.Lookup(e.CRS); err != nil {
				return ext, err
			}
		}
		ext.Spatial = &catalog.SpatialExtent{BBox: [4]float64(e.BBox), CRS: c}
	}

	if e.Begin != "" || e.End != "" {
		begin, err := optionalTime(e.Begin)
		if err != nil {
			return ext, fmt.Errorf("begin: %w", err)
		}
		end, err := optionalTime(e.End)
		if err != nil {
			return ext, fmt.Errorf("end: %w", err)
		}
		trs := e.TRS
		if trs == "" {
			trs = catalog.DefaultTRS
		}
		ext.Temporal = &catalog.TemporalExtent{Begin: begin, End: end, TRS: trs}
	}
	return ext, nil
}

func optionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func lookupAll(reg crs.Registry, ids []string) ([]crs.CRS, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]crs.CRS, 0, len(ids))
	for _, id := range ids {
		c, err := reg.Lookup(id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// OpenStores opens every configured store and registers it in a router.
// The default store is default_store, or the first store when unset. Close
// the router to release the stores.
func (c *Config) OpenStores(ctx context.Context, logger *slog.Logger) (*store.Router, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := store.NewRouter()
	for _, sc := range c.Stores {
		p, err := openStore(ctx, sc, logger)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("store %s: %w", sc.ID, err)
		}
		if err := r.Register(sc.ID, p); err != nil {
			_ = r.Close()
			return nil, err
		}
		logger.Info("Store opened", "store", sc.ID, "type", sc.Type, "sources", len(sc.Sources))
	}

	def := c.DefaultStore
	if def == "" && len(c.Stores) > 0 {
		def = c.Stores[0].ID
	}
	if def != "" {
		if err := r.SetDefault(def); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("default_store: %w", err)
		}
	}
	logger.Debug("Stores ready", "stores", r.IDs(), "default", def)
	return r, nil
}

func openStore(ctx context.Context, sc StoreConfig, logger *slog.Logger) (store.Provider, error) {
	switch sc.Type {
	case StoreMemory:
		p := memory.NewProvider()
		for id, src := range sc.Sources {
			if err := p.LoadFile(id, src.Path); err != nil {
				return nil, err
			}
		}
		return p, nil

	case StoreFlatGeobuf:
		p := fgbstore.NewProvider(fgbstore.WithLogger(logger))
		for id, src := range sc.Sources {
			idColumn := src.IDColumn
			if idColumn == "" {
				idColumn = "id"
			}
			if err := p.Open(id, src.Path, idColumn); err != nil {
				return nil, err
			}
		}
		return p, nil

	case StoreArrow:
		opts := []arrowstore.Option{arrowstore.WithLogger(logger)}
		for id, src := range sc.Sources {
			opts = append(opts, arrowstore.WithSource(id, arrowstore.Source{
				Scan:           arrowstore.FileScan(src.Path),
				IDColumn:       src.IDColumn,
				GeometryColumn: src.GeometryColumn,
			}))
		}
		return arrowstore.NewProvider(opts...), nil

	case StoreDuckDB:
		opts := []duckdb.Option{duckdb.WithLogger(logger)}
		for id, src := range sc.Sources {
			opts = append(opts, duckdb.WithTable(id, duckdb.Table{
				Name:           src.Table,
				IDColumn:       src.IDColumn,
				GeometryColumn: src.GeometryColumn,
				Columns:        src.Columns,
				ColumnMapping:  src.ColumnMapping,
			}))
		}
		p, err := duckdb.Open(ctx, sc.DSN, sc.Setup, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil

	default:
		return nil, fmt.Errorf("unknown store type %q", sc.Type)
	}
}
