package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/hugr-lab/oaf-go/cql2"
)

func parseTemporalInstance(ti *cql2.TemporalInstance) (Instant, error) {
	switch {
	case ti.Interval != nil:
		return Instant{}, unsupported("interval instant")
	case ti.Instant == nil:
		return Instant{}, unsupported("empty temporal instance")
	}
	return ParseInstant(ti.Instant)
}

// ParseInstant decodes a date (YYYY-MM-DD) or timestamp (RFC 3339) instant.
// Literal wrappers such as DATE('...') and TIMESTAMP('...') are accepted.
func ParseInstant(in *cql2.InstantInstance) (Instant, error) {
	switch {
	case in.Date != "":
		s := unquote(in.Date)
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return Instant{}, &UnsupportedExpressionError{Construct: fmt.Sprintf("date %q", in.Date), Err: err}
		}
		return Instant{Time: t.UTC(), Precision: PrecisionDate}, nil

	case in.Timestamp != "":
		s := unquote(in.Timestamp)
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return Instant{}, &UnsupportedExpressionError{Construct: fmt.Sprintf("timestamp %q", in.Timestamp), Err: err}
		}
		return Instant{Time: t.UTC(), Precision: PrecisionDateTime}, nil
	}
	return Instant{}, unsupported("empty instant")
}

// unquote extracts the quoted text of DATE('x') or TIMESTAMP('x'). Bare and
// quoted tokens are accepted as well.
func unquote(token string) string {
	s := strings.TrimSpace(token)
	if open := strings.IndexByte(s, '('); open >= 0 && strings.HasSuffix(s, ")") {
		s = strings.TrimSpace(s[open+1 : len(s)-1])
	}
	return strings.Trim(s, `'"`)
}
