// Package duckdb provides a feature store over DuckDB tables with the
// spatial extension. Filters are pushed down as SQL.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"

	"github.com/hugr-lab/oaf-go/catalog"
	"github.com/hugr-lab/oaf-go/query"
	"github.com/hugr-lab/oaf-go/store"
)

// Table maps a collection to a DuckDB table or view.
type Table struct {
	// Name is the table or view name, optionally schema qualified.
	// REQUIRED.
	Name string

	// IDColumn holds feature identifiers. Defaults to "id".
	IDColumn string

	// GeometryColumn holds GEOMETRY values. Defaults to "geom".
	GeometryColumn string

	// Columns are returned as feature properties, in order.
	Columns []string

	// ColumnMapping maps filter property names to columns.
	// OPTIONAL: unmapped properties use their local name.
	ColumnMapping map[string]string
}

func (t Table) withDefaults() Table {
	if t.IDColumn == "" {
		t.IDColumn = "id"
	}
	if t.GeometryColumn == "" {
		t.GeometryColumn = "geom"
	}
	return t
}

// Option configures a Provider.
type Option func(*Provider)

// WithTable serves collectionID from t.
func WithTable(collectionID string, t Table) Option {
	return func(p *Provider) {
		p.tables[collectionID] = t.withDefaults()
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// Provider serves feature types from DuckDB tables.
type Provider struct {
	db     *sql.DB
	owned  bool
	tables map[string]Table
	logger *slog.Logger
}

// New creates a provider over an open database. The caller keeps
// ownership of db.
func New(db *sql.DB, opts ...Option) *Provider {
	p := &Provider{db: db, tables: make(map[string]Table), logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Open opens a DuckDB database at dsn ("" for in-memory), loads the spatial
// extension and runs setup statements in order.
func Open(ctx context.Context, dsn string, setup []string, opts ...Option) (*Provider, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("duckdb: open: %w", err)
	}

	stmts := append([]string{"INSTALL spatial", "LOAD spatial"}, setup...)
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("duckdb: init %q: %w", stmt, err)
		}
	}

	p := New(db, opts...)
	p.owned = true
	return p, nil
}

// Close closes the database if the provider opened it.
func (p *Provider) Close() error {
	if !p.owned || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// Acquire implements store.Provider.
func (p *Provider) Acquire(_ context.Context, ft *catalog.FeatureType) (store.Handle, error) {
	t, ok := p.tables[ft.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownFeatureType, ft.ID())
	}
	return &handle{
		db:         p.db,
		table:      t,
		encoder:    NewEncoder(&EncoderOptions{ColumnMapping: t.ColumnMapping}),
		namespaces: store.FeatureTypeNamespaces(ft),
		logger:     p.logger,
	}, nil
}

type handle struct {
	db         *sql.DB
	table      Table
	encoder    *Encoder
	namespaces []store.Namespace
	logger     *slog.Logger
	released   atomic.Bool
}

func (h *handle) where(q *query.Query) (string, []any, error) {
	if q.ByID() {
		return "CAST(" + quoteIdentifier(h.table.IDColumn) + " AS VARCHAR) = ?", []any{q.FeatureID}, nil
	}
	return h.encoder.Encode(q.Filter)
}

// countSQL returns the hit count statement for q.
func (h *handle) countSQL(q *query.Query) (string, []any, error) {
	cond, args, err := h.where(q)
	if err != nil {
		return "", nil, err
	}
	var b strings.Builder
	b.WriteString("SELECT count(*) FROM ")
	b.WriteString(h.table.Name)
	if cond != "" {
		b.WriteString(" WHERE ")
		b.WriteString(cond)
	}
	return b.String(), args, nil
}

// selectSQL returns the feature statement for q.
func (h *handle) selectSQL(q *query.Query) (string, []any, error) {
	cond, args, err := h.where(q)
	if err != nil {
		return "", nil, err
	}

	cols := []string{
		quoteIdentifier(h.table.IDColumn),
		"ST_AsWKB(" + quoteIdentifier(h.table.GeometryColumn) + ")",
	}
	for _, c := range h.table.Columns {
		cols = append(cols, quoteIdentifier(c))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(" FROM ")
	b.WriteString(h.table.Name)
	if cond != "" {
		b.WriteString(" WHERE ")
		b.WriteString(cond)
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(quoteIdentifier(h.table.IDColumn))

	switch {
	case q.ByID():
		b.WriteString(" LIMIT 1")
	case !q.Unbounded():
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, q.Limit, q.Offset)
	case q.Offset > 0:
		b.WriteString(" OFFSET ?")
		args = append(args, q.Offset)
	}
	return b.String(), args, nil
}

func (h *handle) Hits(ctx context.Context, q *query.Query) (int, error) {
	if h.released.Load() {
		return 0, store.ErrReleased
	}
	stmt, args, err := h.countSQL(q)
	if err != nil {
		return 0, err
	}

	h.logger.Debug("Counting features", "table", h.table.Name, "sql", stmt)
	var n int
	if err := h.db.QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("duckdb: count %s: %w", h.table.Name, err)
	}
	return n, nil
}

func (h *handle) Query(ctx context.Context, q *query.Query) (store.FeatureStream, error) {
	if h.released.Load() {
		return nil, store.ErrReleased
	}
	stmt, args, err := h.selectSQL(q)
	if err != nil {
		return nil, err
	}

	h.logger.Debug("Querying features", "table", h.table.Name, "sql", stmt)
	rows, err := h.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("duckdb: query %s: %w", h.table.Name, err)
	}
	return &rowStream{rows: rows, columns: h.table.Columns}, nil
}

func (h *handle) MaxFeaturesAndStartIndexApplicable(q *query.Query) bool {
	return !q.ByID()
}

func (h *handle) Schema() []store.Namespace {
	return h.namespaces
}

func (h *handle) Release() {
	h.released.Store(true)
}

// rowStream decodes features from rows lazily.
type rowStream struct {
	rows    *sql.Rows
	columns []string
	current *geojson.Feature
	err     error
	closed  bool
}

func (s *rowStream) Next() bool {
	if s.closed || s.err != nil {
		return false
	}
	if !s.rows.Next() {
		s.err = s.rows.Err()
		s.Release()
		return false
	}

	var id any
	var geomData []byte
	values := make([]any, len(s.columns))
	dest := make([]any, 0, len(s.columns)+2)
	dest = append(dest, &id, &geomData)
	for i := range values {
		dest = append(dest, &values[i])
	}
	if err := s.rows.Scan(dest...); err != nil {
		s.err = fmt.Errorf("duckdb: scan feature: %w", err)
		return false
	}

	f := &geojson.Feature{Type: "Feature", ID: normalize(id), Properties: make(geojson.Properties, len(s.columns))}
	if len(geomData) > 0 {
		g, err := wkb.Unmarshal(geomData)
		if err != nil {
			s.err = fmt.Errorf("duckdb: decode geometry of feature %v: %w", f.ID, err)
			return false
		}
		f.Geometry = g
	}
	for i, c := range s.columns {
		f.Properties[c] = normalize(values[i])
	}
	s.current = f
	return true
}

func (s *rowStream) Feature() *geojson.Feature { return s.current }
func (s *rowStream) Err() error                { return s.err }

func (s *rowStream) Release() {
	if s.closed {
		return
	}
	s.closed = true
	if err := s.rows.Close(); err != nil && s.err == nil && !errors.Is(err, sql.ErrConnDone) {
		s.err = err
	}
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
