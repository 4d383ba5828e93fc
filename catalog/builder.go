package catalog

import (
	"errors"
	"fmt"

	"github.com/hugr-lab/oaf-go/crs"
)

var (
	// ErrEmptyDatasetID is returned when the dataset id is empty.
	ErrEmptyDatasetID = errors.New("catalog: dataset id cannot be empty")

	// ErrEmptyCollectionID is returned when a feature type has no local name.
	ErrEmptyCollectionID = errors.New("catalog: feature type local name cannot be empty")

	// ErrAlreadyBuilt is returned when Build is called twice.
	ErrAlreadyBuilt = errors.New("catalog: dataset already built")
)

// DuplicateCollectionError is returned when two feature types derive the same
// collection id, for example equal local names in different namespaces.
type DuplicateCollectionError struct {
	ID     string
	First  QName
	Second QName
}

func (e *DuplicateCollectionError) Error() string {
	return fmt.Sprintf("catalog: collection id %q is derived from both %s and %s", e.ID, e.First, e.Second)
}

// DatasetBuilder builds static datasets using fluent API.
// Not thread-safe - use only during initialization.
type DatasetBuilder struct {
	id        string
	title     string
	types     []*FeatureType
	supported []crs.CRS
	built     bool
}

// NewDatasetBuilder creates a builder for the dataset with the given id.
//
// Example:
//
//	ds, err := catalog.NewDatasetBuilder("inspire").
//	    Title("INSPIRE download service").
//	    SupportedCRS(crs.CRS84, crs.EPSG25832).
//	    FeatureType(&catalog.FeatureType{Name: catalog.QName{Local: "roads"}}).
//	    Build()
func NewDatasetBuilder(id string) *DatasetBuilder {
	return &DatasetBuilder{id: id}
}

// Title sets the dataset title.
func (b *DatasetBuilder) Title(title string) *DatasetBuilder {
	b.title = title
	return b
}

// SupportedCRS appends reference systems offered for every collection.
func (b *DatasetBuilder) SupportedCRS(systems ...crs.CRS) *DatasetBuilder {
	b.supported = append(b.supported, systems...)
	return b
}

// FeatureType appends a collection. Configuration order is preserved.
func (b *DatasetBuilder) FeatureType(ft *FeatureType) *DatasetBuilder {
	b.types = append(b.types, ft)
	return b
}

// Build finalizes the dataset. Collection ids are the local parts of the
// feature type names and MUST be unique across namespaces.
func (b *DatasetBuilder) Build() (Dataset, error) {
	if b.built {
		return nil, ErrAlreadyBuilt
	}
	if b.id == "" {
		return nil, ErrEmptyDatasetID
	}

	byID := make(map[string]*FeatureType, len(b.types))
	for i, ft := range b.types {
		if ft == nil {
			return nil, fmt.Errorf("catalog: feature type %d is nil", i)
		}
		id := ft.ID()
		if id == "" {
			return nil, ErrEmptyCollectionID
		}
		if prev, ok := byID[id]; ok {
			return nil, &DuplicateCollectionError{ID: id, First: prev.Name, Second: ft.Name}
		}
		byID[id] = ft
	}

	supported := b.supported
	if len(supported) == 0 {
		supported = []crs.CRS{crs.Default}
	}

	b.built = true
	return &staticDataset{
		id:        b.id,
		title:     b.title,
		types:     append([]*FeatureType(nil), b.types...),
		byID:      byID,
		supported: append([]crs.CRS(nil), supported...),
	}, nil
}

// EffectiveCRS returns the reference systems offered for ft: its own list if
// set, else the dataset list. The storage CRS is always included.
func EffectiveCRS(ds Dataset, ft *FeatureType) []crs.CRS {
	list := ft.SupportedCRS
	if len(list) == 0 {
		list = ds.SupportedCRS()
	}
	out := make([]crs.CRS, 0, len(list)+1)
	seen := make(map[string]bool, len(list)+1)
	for _, c := range list {
		if seen[c.ID()] {
			continue
		}
		seen[c.ID()] = true
		out = append(out, c)
	}
	if !ft.StorageCRS.IsZero() && !seen[ft.StorageCRS.ID()] {
		out = append(out, ft.StorageCRS)
	}
	return out
}
