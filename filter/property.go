package filter

import (
	"log/slog"
	"strings"

	"github.com/hugr-lab/oaf-go/catalog"
)

// PropertyResolver maps bare identifiers from a filter to configured
// properties by their local name.
type PropertyResolver struct {
	properties []catalog.PropertyDescriptor
	logger     *slog.Logger
}

// NewPropertyResolver creates a resolver over properties in configuration
// order. A nil logger uses slog.Default().
func NewPropertyResolver(properties []catalog.PropertyDescriptor, logger *slog.Logger) *PropertyResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &PropertyResolver{properties: properties, logger: logger}
}

// Resolve returns a reference for name.
//
// No configured property with that local name yields an unresolved
// reference, which is not an error: the store decides whether it knows the
// name. Several matches log a warning and the first in configuration order
// wins.
func (r *PropertyResolver) Resolve(name string) PropertyRef {
	var matches []catalog.QName
	for _, p := range r.properties {
		if p.Name.Local == name {
			matches = append(matches, p.Name)
		}
	}

	switch len(matches) {
	case 0:
		return PropertyRef{Name: catalog.QName{Local: name}}
	case 1:
		return PropertyRef{Name: matches[0], Resolved: true}
	}

	candidates := make([]string, len(matches))
	for i, m := range matches {
		candidates[i] = m.String()
	}
	r.logger.Warn("Ambiguous filter property name",
		"name", name,
		"candidates", strings.Join(candidates, ", "),
		"using", matches[0].String(),
	)
	return PropertyRef{Name: matches[0], Resolved: true}
}
