// Package crs models coordinate reference systems and resolves CRS identifiers
// given as EPSG codes, OGC URNs, or opengis.net URIs.
package crs

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrUnknownCRS is matched by errors.Is for every UnknownCRSError.
var ErrUnknownCRS = errors.New("crs: unknown coordinate reference system")

// UnknownCRSError is returned when an identifier is malformed or is not
// known to a Registry.
type UnknownCRSError struct {
	Identifier string
	Reason     string
}

func (e *UnknownCRSError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("crs: unknown CRS %q: %s", e.Identifier, e.Reason)
	}
	return fmt.Sprintf("crs: unknown CRS %q", e.Identifier)
}

func (e *UnknownCRSError) Is(target error) bool {
	return target == ErrUnknownCRS
}

// CRS identifies a coordinate reference system by authority and code.
type CRS struct {
	Authority string // e.g. "EPSG", "OGC"
	Code      string // e.g. "4326", "CRS84"
	Name      string // human-readable name
}

// Well-known reference systems.
var (
	CRS84     = CRS{Authority: "OGC", Code: "CRS84", Name: "WGS 84 (CRS84)"}
	CRS84h    = CRS{Authority: "OGC", Code: "CRS84h", Name: "WGS 84 (CRS84h)"}
	EPSG4326  = CRS{Authority: "EPSG", Code: "4326", Name: "WGS 84"}
	EPSG3857  = CRS{Authority: "EPSG", Code: "3857", Name: "WGS 84 / Pseudo-Mercator"}
	EPSG4258  = CRS{Authority: "EPSG", Code: "4258", Name: "ETRS89"}
	EPSG3035  = CRS{Authority: "EPSG", Code: "3035", Name: "ETRS89-extended / LAEA Europe"}
	EPSG25832 = CRS{Authority: "EPSG", Code: "25832", Name: "ETRS89 / UTM zone 32N"}
	EPSG25833 = CRS{Authority: "EPSG", Code: "25833", Name: "ETRS89 / UTM zone 33N"}
)

// Default is the CRS used for responses when the request names none.
var Default = CRS84

// IsZero reports whether c is the zero value.
func (c CRS) IsZero() bool {
	return c.Authority == "" && c.Code == ""
}

// ID returns the short "AUTHORITY:CODE" form.
func (c CRS) ID() string {
	if c.IsZero() {
		return ""
	}
	return c.Authority + ":" + c.Code
}

// URI returns the opengis.net http URI of c, the form OGC API responses use.
func (c CRS) URI() string {
	if c.IsZero() {
		return ""
	}
	version := "0"
	if c.Authority == "OGC" {
		version = "1.3"
	}
	return "http://www.opengis.net/def/crs/" + c.Authority + "/" + version + "/" + c.Code
}

// SRID returns the numeric EPSG code of c. CRS84 maps to 4326 since it shares
// the datum and differs only in axis order. Returns 0 if c has no numeric code.
func (c CRS) SRID() int {
	if c.Authority == "OGC" && (c.Code == "CRS84" || c.Code == "CRS84h") {
		return 4326
	}
	if c.Authority != "EPSG" {
		return 0
	}
	n, err := strconv.Atoi(c.Code)
	if err != nil {
		return 0
	}
	return n
}

func (c CRS) String() string {
	return c.ID()
}

// Equal compares authority and code, ignoring the name.
func (c CRS) Equal(other CRS) bool {
	return c.Authority == other.Authority && c.Code == other.Code
}
