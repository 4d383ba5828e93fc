package catalog

import (
	"github.com/hugr-lab/oaf-go/crs"
)

// staticDataset is an immutable Dataset built by DatasetBuilder.
type staticDataset struct {
	id        string
	title     string
	types     []*FeatureType
	byID      map[string]*FeatureType
	supported []crs.CRS
}

// ID implements Dataset interface.
func (d *staticDataset) ID() string {
	return d.id
}

// Title implements Dataset interface.
func (d *staticDataset) Title() string {
	return d.title
}

// FeatureType implements Dataset interface.
func (d *staticDataset) FeatureType(collectionID string) *FeatureType {
	return d.byID[collectionID]
}

// FeatureTypes implements Dataset interface.
func (d *staticDataset) FeatureTypes() []*FeatureType {
	out := make([]*FeatureType, len(d.types))
	copy(out, d.types)
	return out
}

// SupportedCRS implements Dataset interface.
func (d *staticDataset) SupportedCRS() []crs.CRS {
	out := make([]crs.CRS, len(d.supported))
	copy(out, d.supported)
	return out
}
