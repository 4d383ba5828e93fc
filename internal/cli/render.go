package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	oaf "github.com/hugr-lab/oaf-go"
	"github.com/hugr-lab/oaf-go/crs"
	"github.com/hugr-lab/oaf-go/geom"
	"github.com/hugr-lab/oaf-go/link"
	"github.com/hugr-lab/oaf-go/store"
)

func (a *app) renderCollections(w io.Writer, colls *oaf.Collections) error {
	if a.output == FormatJSON {
		return renderJSON(w, colls)
	}
	if len(colls.Collections) == 0 {
		_, _ = fmt.Fprintln(w, "(0 collections)")
		return nil
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Title", "Storage CRS", "CRS"})
	for _, c := range colls.Collections {
		t.AppendRow(table.Row{c.ID, c.Title, c.StorageCRS, len(c.CRS)})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d collections)\n", len(colls.Collections))
	return nil
}

func (a *app) renderCollection(w io.Writer, c *oaf.CollectionSummary) error {
	if a.output == FormatJSON {
		return renderJSON(w, c)
	}

	t := newTable(w)
	t.AppendRow(table.Row{"ID", c.ID})
	t.AppendRow(table.Row{"Title", c.Title})
	if c.Description != "" {
		t.AppendRow(table.Row{"Description", c.Description})
	}
	if s := c.Extent.Spatial; s != nil {
		t.AppendRow(table.Row{"Extent", fmt.Sprintf("%g %g %g %g (%s)", s.BBox[0], s.BBox[1], s.BBox[2], s.BBox[3], s.CRS.ID())})
	}
	if tmp := c.Extent.Temporal; tmp != nil {
		t.AppendRow(table.Row{"Interval", fmt.Sprintf("%s / %s", timeOrOpen(tmp.Begin), timeOrOpen(tmp.End))})
	}
	if c.StorageCRS != "" {
		t.AppendRow(table.Row{"Storage CRS", c.StorageCRS})
	}
	for _, u := range c.CRS {
		t.AppendRow(table.Row{"CRS", u})
	}
	for _, l := range c.Links {
		t.AppendRow(table.Row{"Link " + l.Rel, l.Href})
	}
	t.Render()
	return nil
}

type crsEntry struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	URI  string `json:"uri"`
	SRID int    `json:"srid,omitempty"`
}

func (a *app) renderCRS(w io.Writer, systems []crs.CRS) error {
	entries := make([]crsEntry, len(systems))
	for i, c := range systems {
		entries[i] = crsEntry{ID: c.ID(), Name: c.Name, URI: c.URI(), SRID: c.SRID()}
	}
	if a.output == FormatJSON {
		return renderJSON(w, entries)
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Name", "URI", "SRID"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.ID, e.Name, e.URI, e.SRID})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d reference systems)\n", len(entries))
	return nil
}

// featureCollection is the GeoJSON rendering of a retrieval result.
type featureCollection struct {
	Type           string             `json:"type"`
	NumberMatched  int                `json:"numberMatched"`
	NumberReturned int                `json:"numberReturned"`
	Links          []link.Link        `json:"links,omitempty"`
	Features       []*geojson.Feature `json:"features"`
}

func (a *app) renderFeatures(w io.Writer, res *oaf.RetrievalResult) error {
	features, err := store.Collect(res.Features)
	if err != nil {
		return err
	}

	if a.output == FormatJSON {
		if features == nil {
			features = []*geojson.Feature{}
		}
		return renderJSON(w, featureCollection{
			Type:           "FeatureCollection",
			NumberMatched:  res.MatchedCount,
			NumberReturned: len(features),
			Links:          res.Links,
			Features:       features,
		})
	}

	if len(features) > 0 {
		t := newTable(w)
		t.AppendHeader(table.Row{"ID", "Geometry", "Properties"})
		t.SetColumnConfigs([]table.ColumnConfig{
			{Name: "Geometry", WidthMax: geometryWidth, WidthMaxEnforcer: text.Trim},
		})
		for _, f := range features {
			t.AppendRow(table.Row{store.FeatureID(f), formatGeometry(f.Geometry, res.ResponseCRS), formatProperties(f.Properties)})
		}
		t.Render()
	}

	_, _ = fmt.Fprintf(w, "(matched %d, returned %d, start index %d)\n", res.MatchedCount, len(features), res.StartIndex)
	for _, l := range res.Links {
		if l.Rel == link.RelNext {
			_, _ = fmt.Fprintf(w, "next: %s\n", l.Href)
		}
	}
	return nil
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// geometryWidth bounds the WKT shown in feature tables.
const geometryWidth = 60

func formatGeometry(g orb.Geometry, c crs.CRS) string {
	if g == nil {
		return ""
	}
	gg, err := geom.FromOrb(g, c)
	if err != nil {
		return g.GeoJSONType()
	}
	s, err := geom.MarshalWKT(gg)
	if err != nil {
		return g.GeoJSONType()
	}
	return s
}

func formatProperties(props geojson.Properties) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, props[k]))
	}
	return strings.Join(parts, " ")
}

func timeOrOpen(t *time.Time) string {
	if t == nil {
		return ".."
	}
	return t.Format(time.RFC3339)
}
