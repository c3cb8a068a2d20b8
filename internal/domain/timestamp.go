package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// EpochSeconds holds a click timestamp exactly as it arrived on the wire.
// Upstream networks send numbers, numeric strings, and occasionally garbage,
// so the value is only interpreted on demand.
type EpochSeconds struct {
	raw json.RawMessage
}

// NewEpochSeconds creates an EpochSeconds from an integer value
func NewEpochSeconds(v int64) EpochSeconds {
	return EpochSeconds{raw: json.RawMessage(strconv.FormatInt(v, 10))}
}

// RawEpochSeconds creates an EpochSeconds from a raw JSON literal
func RawEpochSeconds(raw string) EpochSeconds {
	return EpochSeconds{raw: json.RawMessage(raw)}
}

// Int64 returns the timestamp as integer epoch seconds.
// ok is false for missing, non-numeric or non-integer values.
func (e EpochSeconds) Int64() (int64, bool) {
	raw := bytes.TrimSpace(e.raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}

	s := string(raw)
	if raw[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return 0, false
		}
		s = unquoted
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// Millis returns the timestamp in milliseconds, or 0 if it is not a valid integer
func (e EpochSeconds) Millis() int64 {
	v, ok := e.Int64()
	if !ok {
		return 0
	}
	return v * 1000
}

func (e EpochSeconds) MarshalJSON() ([]byte, error) {
	if len(e.raw) == 0 {
		return []byte("null"), nil
	}
	return e.raw, nil
}

func (e *EpochSeconds) UnmarshalJSON(data []byte) error {
	e.raw = append(e.raw[:0], data...)
	return nil
}
