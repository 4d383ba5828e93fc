package crs

import (
	"net/url"
	"strings"
	"sync"
)

// Registry resolves CRS identifiers.
type Registry interface {
	// Lookup returns the CRS named by identifier or an *UnknownCRSError.
	Lookup(identifier string) (CRS, error)
}

// StaticRegistry is a Registry over a fixed set of reference systems.
// It is safe for concurrent use.
type StaticRegistry struct {
	mu    sync.RWMutex
	byKey map[string]CRS
	order []CRS
}

// NewStaticRegistry creates a registry knowing the given reference systems.
func NewStaticRegistry(systems ...CRS) *StaticRegistry {
	r := &StaticRegistry{byKey: make(map[string]CRS, len(systems))}
	for _, c := range systems {
		r.Register(c)
	}
	return r
}

// DefaultRegistry returns a registry with the reference systems commonly
// offered by feature services.
func DefaultRegistry() *StaticRegistry {
	return NewStaticRegistry(
		CRS84, CRS84h, EPSG4326, EPSG3857, EPSG4258, EPSG3035, EPSG25832, EPSG25833,
	)
}

// Register adds c. A CRS registered twice keeps its first position.
func (r *StaticRegistry) Register(c CRS) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(c.Authority, c.Code)
	if _, ok := r.byKey[k]; !ok {
		r.order = append(r.order, c)
	}
	r.byKey[k] = c
}

// List returns the registered systems in registration order.
func (r *StaticRegistry) List() []CRS {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]CRS, len(r.order))
	copy(out, r.order)
	return out
}

// Lookup implements Registry.
func (r *StaticRegistry) Lookup(identifier string) (CRS, error) {
	authority, code, err := Parse(identifier)
	if err != nil {
		return CRS{}, err
	}

	r.mu.RLock()
	c, ok := r.byKey[key(authority, code)]
	r.mu.RUnlock()
	if !ok {
		return CRS{}, &UnknownCRSError{Identifier: identifier}
	}
	return c, nil
}

// Parse splits a CRS identifier into authority and code. Accepted forms:
//
//	EPSG:4326
//	[EPSG:4326]
//	CRS84
//	urn:ogc:def:crs:EPSG::4326
//	urn:ogc:def:crs:OGC:1.3:CRS84
//	http://www.opengis.net/def/crs/EPSG/0/4326
func Parse(identifier string) (authority, code string, err error) {
	s := strings.TrimSpace(identifier)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if s == "" {
		return "", "", &UnknownCRSError{Identifier: identifier, Reason: "empty identifier"}
	}

	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://"):
		u, perr := url.Parse(s)
		if perr != nil {
			return "", "", &UnknownCRSError{Identifier: identifier, Reason: perr.Error()}
		}
		// /def/crs/{authority}/{version}/{code}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) != 5 || parts[0] != "def" || parts[1] != "crs" {
			return "", "", &UnknownCRSError{Identifier: identifier, Reason: "not a /def/crs URI"}
		}
		authority, code = parts[2], parts[4]

	case strings.HasPrefix(lower, "urn:ogc:def:crs:"):
		// urn:ogc:def:crs:{authority}:{version}:{code}
		parts := strings.Split(s, ":")
		if len(parts) != 7 {
			return "", "", &UnknownCRSError{Identifier: identifier, Reason: "malformed URN"}
		}
		authority, code = parts[4], parts[6]

	case strings.Contains(s, ":"):
		a, c, _ := strings.Cut(s, ":")
		authority, code = a, c

	case strings.EqualFold(s, "CRS84") || strings.EqualFold(s, "CRS84h"):
		authority, code = "OGC", s

	default:
		return "", "", &UnknownCRSError{Identifier: identifier, Reason: "missing authority"}
	}

	if authority == "" || code == "" || strings.ContainsAny(code, ":/ ") {
		return "", "", &UnknownCRSError{Identifier: identifier, Reason: "malformed identifier"}
	}
	return strings.ToUpper(authority), code, nil
}

func key(authority, code string) string {
	return strings.ToUpper(authority) + ":" + strings.ToUpper(code)
}
