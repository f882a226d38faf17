package types

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// PropertyKind discriminates the PropertyValue tagged union.
type PropertyKind string

const (
	// KindScalar is a literal value compared with equality.
	KindScalar PropertyKind = "scalar"
	// KindUnit is a numeric value with a unit, e.g. "10ms" or "99.9%".
	KindUnit PropertyKind = "unit"
	// KindRange is a closed interval with both min and max.
	KindRange PropertyKind = "range"
	// KindBound is a single-sided bound (min or max only).
	KindBound PropertyKind = "bound"
)

// BoundDirection tells which side a KindBound value constrains.
type BoundDirection string

const (
	BoundMin BoundDirection = "min"
	BoundMax BoundDirection = "max"
)

// PropertyValue is the tagged union of property value shapes. The shape is
// resolved structurally from collaborator output exactly once, at ingestion;
// downstream code switches on Kind and never re-sniffs raw JSON.
type PropertyValue struct {
	Kind PropertyKind `json:"kind"`

	// Scalar holds the literal for KindScalar (string, number or bool,
	// whatever the collaborator produced).
	Scalar interface{} `json:"scalar,omitempty"`

	// Value holds the number for KindUnit and KindBound. Numbers are kept
	// as json.Number so the lexical integer/float distinction survives:
	// "10ms" stays 10 while "10.0ms" stays 10.0 all the way into the
	// emitted constraint.
	Value json.Number `json:"value,omitempty"`

	// Min and Max hold the interval for KindRange.
	Min json.Number `json:"min,omitempty"`
	Max json.Number `json:"max,omitempty"`

	// Direction tells which side a KindBound constrains.
	Direction BoundDirection `json:"direction,omitempty"`

	// Unit is the optional unit string ("ms", "Mbps", "%").
	Unit string `json:"unit,omitempty"`
}

// unitPattern matches strings like "10ms", "100 Mbps", "99.9%".
var unitPattern = regexp.MustCompile(`^([0-9.]+)\s*([a-zA-Z%]+)$`)

// ResolvePropertyValue converts a raw collaborator value into its tagged
// shape. Detection order matters and must stay stable:
//  1. unit-tagged string -> KindUnit (falls back to KindScalar on a string
//     that looks unit-tagged but does not parse as a number)
//  2. mapping with min and max -> KindRange
//  3. mapping with exactly one of min/max -> KindBound
//  4. anything else -> KindScalar on the literal
func ResolvePropertyValue(raw interface{}) PropertyValue {
	switch v := raw.(type) {
	case string:
		if num, unit, ok := parseUnitString(v); ok {
			return PropertyValue{Kind: KindUnit, Value: num, Unit: unit}
		}
		return PropertyValue{Kind: KindScalar, Scalar: v}

	case map[string]interface{}:
		minRaw, hasMin := v["min"]
		maxRaw, hasMax := v["max"]
		unit, _ := v["unit"].(string)

		switch {
		case hasMin && hasMax:
			return PropertyValue{
				Kind: KindRange,
				Min:  toNumber(minRaw),
				Max:  toNumber(maxRaw),
				Unit: unit,
			}
		case hasMin:
			return PropertyValue{
				Kind:      KindBound,
				Direction: BoundMin,
				Value:     toNumber(minRaw),
				Unit:      unit,
			}
		case hasMax:
			return PropertyValue{
				Kind:      KindBound,
				Direction: BoundMax,
				Value:     toNumber(maxRaw),
				Unit:      unit,
			}
		}
		return PropertyValue{Kind: KindScalar, Scalar: v}

	default:
		return PropertyValue{Kind: KindScalar, Scalar: raw}
	}
}

// parseUnitString parses "<number><unit>" strings. ok is false when the
// string does not match the pattern or the numeric part fails to parse
// (e.g. "1.2.3ms"), in which case the caller degrades to a scalar.
func parseUnitString(s string) (json.Number, string, bool) {
	m := unitPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", "", false
	}
	num, ok := normalizeNumber(m[1])
	if !ok {
		return "", "", false
	}
	return num, m[2], true
}

// normalizeNumber parses a numeric literal keeping its integer/float shape:
// a literal without a decimal point stays an integer, one with a point stays
// a float even when the fraction is zero ("10.0" renders as 10.0, not 10).
func normalizeNumber(lit string) (json.Number, bool) {
	if !strings.Contains(lit, ".") {
		n, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			return "", false
		}
		return json.Number(strconv.FormatInt(n, 10)), true
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return "", false
	}
	return formatFloat(f), true
}

// formatFloat renders f with an explicit decimal point so a float never
// collapses into an integer literal.
func formatFloat(f float64) json.Number {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return json.Number(s)
}

// toNumber converts a decoded JSON value into a json.Number. Whole floats
// become integers here because encoding/json has already erased the lexical
// form of numbers inside mappings.
func toNumber(v interface{}) json.Number {
	switch n := v.(type) {
	case json.Number:
		return n
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1e15 {
			return json.Number(strconv.FormatInt(int64(n), 10))
		}
		return formatFloat(n)
	case float32:
		return toNumber(float64(n))
	case int:
		return json.Number(strconv.Itoa(n))
	case int64:
		return json.Number(strconv.FormatInt(n, 10))
	case string:
		if num, ok := normalizeNumber(strings.TrimSpace(n)); ok {
			return num
		}
		return "0"
	default:
		return "0"
	}
}
