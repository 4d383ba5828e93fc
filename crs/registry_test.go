package crs

import (
	"errors"
	"testing"
)

// TestParse tests identifier decoding for all supported notations.
func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		authority string
		code      string
		wantErr   bool
	}{
		{"short", "EPSG:4326", "EPSG", "4326", false},
		{"lowercase authority", "epsg:25832", "EPSG", "25832", false},
		{"safe curie", "[EPSG:3857]", "EPSG", "3857", false},
		{"bare crs84", "CRS84", "OGC", "CRS84", false},
		{"urn", "urn:ogc:def:crs:EPSG::4326", "EPSG", "4326", false},
		{"urn ogc", "urn:ogc:def:crs:OGC:1.3:CRS84", "OGC", "CRS84", false},
		{"uri", "http://www.opengis.net/def/crs/EPSG/0/4326", "EPSG", "4326", false},
		{"uri https", "https://www.opengis.net/def/crs/OGC/1.3/CRS84", "OGC", "CRS84", false},
		{"empty", "", "", "", true},
		{"no authority", "4326", "", "", true},
		{"empty code", "EPSG:", "", "", true},
		{"bad uri", "http://www.opengis.net/def/crs/EPSG/4326", "", "", true},
		{"bad urn", "urn:ogc:def:crs:EPSG:4326", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, c, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %s:%s", tt.input, a, c)
				}
				if !errors.Is(err, ErrUnknownCRS) {
					t.Errorf("expected ErrUnknownCRS, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.input, err)
			}
			if a != tt.authority || c != tt.code {
				t.Errorf("Parse(%q) = %s:%s, want %s:%s", tt.input, a, c, tt.authority, tt.code)
			}
		})
	}
}

// TestStaticRegistryLookup tests lookups against the default registry.
func TestStaticRegistryLookup(t *testing.T) {
	r := DefaultRegistry()

	got, err := r.Lookup("http://www.opengis.net/def/crs/EPSG/0/25832")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !got.Equal(EPSG25832) {
		t.Errorf("expected %s, got %s", EPSG25832, got)
	}

	got, err = r.Lookup("crs84")
	if err != nil {
		t.Fatalf("Lookup(crs84) failed: %v", err)
	}
	if !got.Equal(CRS84) {
		t.Errorf("expected CRS84, got %s", got)
	}

	_, err = r.Lookup("EPSG:999999")
	var unknown *UnknownCRSError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected *UnknownCRSError, got %v", err)
	}
	if unknown.Identifier != "EPSG:999999" {
		t.Errorf("expected identifier EPSG:999999, got %q", unknown.Identifier)
	}
}

// TestCRSForms tests the rendered identifier forms.
func TestCRSForms(t *testing.T) {
	if got := EPSG4326.URI(); got != "http://www.opengis.net/def/crs/EPSG/0/4326" {
		t.Errorf("unexpected URI %q", got)
	}
	if got := CRS84.URI(); got != "http://www.opengis.net/def/crs/OGC/1.3/CRS84" {
		t.Errorf("unexpected URI %q", got)
	}
	if CRS84.SRID() != 4326 {
		t.Errorf("CRS84 SRID = %d, want 4326", CRS84.SRID())
	}
	if (CRS{}).ID() != "" || !(CRS{}).IsZero() {
		t.Error("zero CRS should have empty ID")
	}

	r := NewStaticRegistry(EPSG4326, EPSG4326, CRS84)
	if n := len(r.List()); n != 2 {
		t.Errorf("expected 2 registered systems, got %d", n)
	}
}
