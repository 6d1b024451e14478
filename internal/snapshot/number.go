package snapshot

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Number is a metric value exactly as it was reported upstream.
//
// Well-formed payloads carry JSON numbers, but a producer that sends a
// string or an object where a number belongs keeps that token verbatim so
// the mistake stays visible downstream. The zero value is the number 0.
type Number struct {
	raw json.RawMessage
}

// Num returns a numeric Number.
func Num(f float64) Number {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Number{raw: json.RawMessage("null")}
	}
	return Number{raw: strconv.AppendFloat(nil, f, 'f', -1, 64)}
}

// Int returns a numeric Number holding n.
func Int(n int) Number {
	return Number{raw: strconv.AppendInt(nil, int64(n), 10)}
}

// FromJSON returns a Number holding the JSON token raw, unchecked.
func FromJSON(raw []byte) Number {
	return Number{raw: append(json.RawMessage(nil), bytes.TrimSpace(raw)...)}
}

// Float64 returns the numeric value and whether the token is a JSON number.
func (n Number) Float64() (float64, bool) {
	if len(n.raw) == 0 {
		return 0, true
	}
	c := n.raw[0]
	if c != '-' && (c < '0' || c > '9') {
		return 0, false
	}
	f, err := strconv.ParseFloat(string(n.raw), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Float returns the numeric value, or NaN when the token is not a number.
// Comparisons against NaN are always false, so thresholds never trip on
// malformed input.
func (n Number) Float() float64 {
	f, ok := n.Float64()
	if !ok {
		return math.NaN()
	}
	return f
}

// IsNumeric reports whether the value is a JSON number.
func (n Number) IsNumeric() bool {
	_, ok := n.Float64()
	return ok
}

// Raw returns the JSON token as received.
func (n Number) Raw() json.RawMessage {
	if len(n.raw) == 0 {
		return json.RawMessage("0")
	}
	return n.raw
}

// String renders numbers compactly and anything else as its raw token.
func (n Number) String() string {
	if f, ok := n.Float64(); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return string(n.raw)
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	return n.Raw(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = FromJSON(data)
	return nil
}
