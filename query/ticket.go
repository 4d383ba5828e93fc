package query

import (
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hugr-lab/oaf-go/catalog"
	"github.com/hugr-lab/oaf-go/crs"
	"github.com/hugr-lab/oaf-go/filter"
	"github.com/hugr-lab/oaf-go/geom"
)

// ErrEmptyTicket is returned when decoding empty ticket data.
var ErrEmptyTicket = errors.New("query: empty ticket")

// ticket is the MessagePack form of a Query.
type ticket struct {
	Namespace string        `msgpack:"ns,omitempty"`
	Local     string        `msgpack:"local"`
	Prefix    string        `msgpack:"prefix,omitempty"`
	Limit     int           `msgpack:"limit"`
	Offset    int           `msgpack:"offset"`
	FeatureID string        `msgpack:"id,omitempty"`
	Filter    *ticketFilter `msgpack:"filter,omitempty"`
}

type ticketFilter struct {
	Kind      string `msgpack:"kind"` // "spatial" or "temporal"
	Operator  int    `msgpack:"op"`
	Namespace string `msgpack:"prop_ns,omitempty"`
	Local     string `msgpack:"prop"`
	Prefix    string `msgpack:"prop_prefix,omitempty"`
	Resolved  bool   `msgpack:"resolved"`

	// Spatial operand. Envelopes travel as bounds so they decode as
	// envelopes, everything else as 2D WKB with Z values in Z.
	WKB      []byte    `msgpack:"wkb,omitempty"`
	Z        []float64 `msgpack:"z,omitempty"`
	Envelope []float64 `msgpack:"env,omitempty"`
	CRS      string    `msgpack:"crs,omitempty"`

	// Temporal operand.
	Time      time.Time `msgpack:"time,omitempty"`
	Precision int       `msgpack:"precision,omitempty"`
}

// TicketCodec serializes queries as zstd-compressed MessagePack, the form
// passed to Arrow scan functions in ScanOptions.Filter.
// Create once and reuse; safe for concurrent use.
type TicketCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewTicketCodec creates a codec. Caller must call Close when done.
func NewTicketCodec() (*TicketCodec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("query: failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("query: failed to create zstd decoder: %w", err)
	}
	return &TicketCodec{encoder: encoder, decoder: decoder}, nil
}

// Close releases codec resources.
func (c *TicketCodec) Close() {
	if c.encoder != nil {
		_ = c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
}

// Encode serializes q.
func (c *TicketCodec) Encode(q *Query) ([]byte, error) {
	t := ticket{
		Namespace: q.TypeName.Namespace,
		Local:     q.TypeName.Local,
		Prefix:    q.TypeName.Prefix,
		Limit:     q.Limit,
		Offset:    q.Offset,
		FeatureID: q.FeatureID,
	}
	if q.Filter != nil {
		tf, err := filter.Match[*ticketFilter](q.Filter, ticketEncoder{})
		if err != nil {
			return nil, err
		}
		t.Filter = tf
	}

	data, err := msgpack.Marshal(&t)
	if err != nil {
		return nil, fmt.Errorf("query: failed to encode ticket: %w", err)
	}
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data))), nil
}

// Decode deserializes a ticket produced by Encode.
func (c *TicketCodec) Decode(data []byte) (*Query, error) {
	if len(data) == 0 {
		return nil, ErrEmptyTicket
	}
	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("query: failed to decompress ticket: %w", err)
	}

	var t ticket
	if err := msgpack.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("query: failed to decode ticket: %w", err)
	}
	if t.Local == "" {
		return nil, errors.New("query: ticket has no type name")
	}

	q := &Query{
		TypeName:  catalog.QName{Namespace: t.Namespace, Local: t.Local, Prefix: t.Prefix},
		Limit:     t.Limit,
		Offset:    t.Offset,
		FeatureID: t.FeatureID,
	}
	if t.Filter != nil {
		p, err := decodeFilter(t.Filter)
		if err != nil {
			return nil, err
		}
		q.Filter = p
	}
	return q, nil
}

type ticketEncoder struct{}

func (ticketEncoder) Spatial(s *filter.Spatial) (*ticketFilter, error) {
	tf := &ticketFilter{
		Kind:      "spatial",
		Operator:  int(s.Operator),
		Namespace: s.Property.Name.Namespace,
		Local:     s.Property.Name.Local,
		Prefix:    s.Property.Name.Prefix,
		Resolved:  s.Property.Resolved,
		CRS:       s.Geometry.CRS().ID(),
	}
	if env, ok := s.Geometry.(*geom.Envelope); ok {
		tf.Envelope = []float64{env.MinX, env.MinY, env.MaxX, env.MaxY}
		return tf, nil
	}
	data, err := geom.MarshalWKB(s.Geometry)
	if err != nil {
		return nil, fmt.Errorf("query: failed to encode filter geometry: %w", err)
	}
	if tf.Z, err = geom.Elevations(s.Geometry); err != nil {
		return nil, fmt.Errorf("query: failed to encode filter geometry: %w", err)
	}
	tf.WKB = data
	return tf, nil
}

func (ticketEncoder) Temporal(t *filter.Temporal) (*ticketFilter, error) {
	return &ticketFilter{
		Kind:      "temporal",
		Operator:  int(t.Operator),
		Namespace: t.Property.Name.Namespace,
		Local:     t.Property.Name.Local,
		Prefix:    t.Property.Name.Prefix,
		Resolved:  t.Property.Resolved,
		Time:      t.Instant.Time,
		Precision: int(t.Instant.Precision),
	}, nil
}

func decodeFilter(tf *ticketFilter) (filter.Predicate, error) {
	ref := filter.PropertyRef{
		Name:     catalog.QName{Namespace: tf.Namespace, Local: tf.Local, Prefix: tf.Prefix},
		Resolved: tf.Resolved,
	}

	switch tf.Kind {
	case "spatial":
		var c crs.CRS
		if tf.CRS != "" {
			authority, code, err := crs.Parse(tf.CRS)
			if err != nil {
				return nil, fmt.Errorf("query: ticket filter: %w", err)
			}
			c = crs.CRS{Authority: authority, Code: code}
		}

		var g geom.Geometry
		if len(tf.Envelope) == 4 {
			g = geom.NewBuilder(c).EnvelopeBounds(tf.Envelope[0], tf.Envelope[1], tf.Envelope[2], tf.Envelope[3])
		} else {
			var err error
			if g, err = geom.UnmarshalWKBZ(tf.WKB, tf.Z, c); err != nil {
				return nil, fmt.Errorf("query: ticket filter: %w", err)
			}
		}
		return &filter.Spatial{Operator: filter.SpatialOperator(tf.Operator), Property: ref, Geometry: g}, nil

	case "temporal":
		return &filter.Temporal{
			Operator: filter.TemporalOperator(tf.Operator),
			Property: ref,
			Instant:  filter.Instant{Time: tf.Time.UTC(), Precision: filter.Precision(tf.Precision)},
		}, nil

	default:
		return nil, fmt.Errorf("query: unknown ticket filter kind %q", tf.Kind)
	}
}
