package arrowstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/hugr-lab/oaf-go/crs"
)

// GeometryExtensionType is the geoarrow.wkb extension type: geometries
// stored as WKB in Binary columns.
type GeometryExtensionType struct {
	arrow.ExtensionBase
}

// NewGeometryExtensionType creates a new geometry extension type.
func NewGeometryExtensionType() *GeometryExtensionType {
	return &GeometryExtensionType{
		ExtensionBase: arrow.ExtensionBase{Storage: arrow.BinaryTypes.Binary},
	}
}

func (g *GeometryExtensionType) ArrayType() reflect.Type {
	return reflect.TypeOf((*array.Binary)(nil))
}

func (g *GeometryExtensionType) ExtensionName() string {
	return "geoarrow.wkb"
}

func (g *GeometryExtensionType) String() string {
	return "extension<geoarrow.wkb>"
}

func (g *GeometryExtensionType) Serialize() string {
	return ""
}

func (g *GeometryExtensionType) Deserialize(storageType arrow.DataType, _ string) (arrow.ExtensionType, error) {
	if !arrow.TypeEqual(storageType, arrow.BinaryTypes.Binary) &&
		!arrow.TypeEqual(storageType, arrow.BinaryTypes.LargeBinary) {
		return nil, fmt.Errorf("arrowstore: invalid storage type for geometry: %s", storageType)
	}
	return &GeometryExtensionType{ExtensionBase: arrow.ExtensionBase{Storage: storageType}}, nil
}

func (g *GeometryExtensionType) ExtensionEquals(other arrow.ExtensionType) bool {
	o, ok := other.(*GeometryExtensionType)
	return ok && arrow.TypeEqual(g.StorageType(), o.StorageType())
}

// geometryMetadata is the GeoArrow column metadata.
type geometryMetadata struct {
	CRS      string `json:"crs,omitempty"`
	Encoding string `json:"encoding"`
}

// NewGeometryField creates a geometry field whose metadata records c.
func NewGeometryField(name string, nullable bool, c crs.CRS) arrow.Field {
	ext := NewGeometryExtensionType()
	md, _ := json.Marshal(geometryMetadata{CRS: c.ID(), Encoding: "WKB"})

	return arrow.Field{
		Name:     name,
		Type:     ext,
		Nullable: nullable,
		Metadata: arrow.MetadataFrom(map[string]string{
			"ARROW:extension:name":     ext.ExtensionName(),
			"ARROW:extension:metadata": string(md),
			"srid":                     strconv.Itoa(c.SRID()),
		}),
	}
}

// isGeometryField reports whether f holds WKB geometries.
func isGeometryField(f arrow.Field) bool {
	if _, ok := f.Type.(*GeometryExtensionType); ok {
		return true
	}
	name, ok := f.Metadata.GetValue("ARROW:extension:name")
	return ok && name == "geoarrow.wkb"
}

func init() {
	_ = arrow.RegisterExtensionType(NewGeometryExtensionType())
}
