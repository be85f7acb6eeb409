// Package core provides amount coercion for stored expense values.
//
// Stored amounts may be numbers or numeric strings written by older clients.
// Ingestion is lenient by default: anything that cannot be read as a number
// counts as 0. Strict ingestion reports ErrInvalidAmount instead.
package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	IngestLenient IngestMode = "lenient"
	IngestStrict  IngestMode = "strict"
)

// IngestMode controls how unparsable stored amounts are handled.
type IngestMode string

func (m IngestMode) IsValid() bool {
	return m == IngestLenient || m == IngestStrict
}

// CoerceAmount converts a stored cantidad into a float.
//
// Examples:
//   CoerceAmount(12.5, false)    -> 12.5, nil
//   CoerceAmount("12,50", false) -> 12.5, nil
//   CoerceAmount(nil, false)     -> 0, nil
//   CoerceAmount("abc", false)   -> 0, nil
//   CoerceAmount("abc", true)    -> 0, ErrInvalidAmount
func CoerceAmount(raw any, strict bool) (float64, error) {
	v, err := coerce(raw)
	if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
		err = fmt.Errorf("%w: not a finite number", ErrInvalidAmount)
	}
	if err != nil {
		if strict {
			return 0, err
		}
		return 0, nil
	}
	return v, nil
}

func coerce(raw any) (float64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return ParseAmount(v.String())
	case string:
		return ParseAmount(v)
	case []byte:
		return ParseAmount(string(v))
	}
	return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidAmount, raw)
}

// ParseAmount parses a decimal string accepting dot or comma separators.
// When both appear, the last one is the decimal separator and the other
// groups thousands ("1.234,56" and "1,234.56" are both 1234.56).
// Empty input is 0, matching a missing amount.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s[:comma], ".", "") + "." + s[comma+1:]
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	f, _ := d.Float64()
	return f, nil
}

// SplitAmount divides amount evenly across n members.
func SplitAmount(amount float64, n int) float64 {
	if n <= 0 {
		return amount
	}
	return amount / float64(n)
}
