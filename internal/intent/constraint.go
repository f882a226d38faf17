// Package intent synthesizes the final TMF921 intent document from a
// completed negotiation: one delivery expectation per validated service and
// its customer-facing dependencies, plus one property expectation per
// constraint the user attached to a validated service.
package intent

import (
	"encoding/json"
	"strings"

	"github.com/bendoumahosni/intent-interpretation/internal/types"
)

// Operator names consumed verbatim by downstream intent processors.
const (
	OperatorSmaller = "smaller"
	OperatorGreater = "greater"
	OperatorBetween = "between"
	OperatorEquals  = "equals"
)

// smallerKeywords and greaterKeywords drive operator inference for
// unit-tagged values. Matching is case-insensitive substring over the
// property name; the French forms appear because catalog characteristics are
// named in both languages.
var (
	smallerKeywords = []string{"latence", "latency", "delay", "jitter"}
	greaterKeywords = []string{"debit", "bandwidth", "throughput", "disponibilite", "availability"}
)

// InferOperator decides how a unit-tagged value constrains its property.
// Latency-like properties are upper bounds, capacity-like properties are
// lower bounds, everything else is an equality.
func InferOperator(propName string) string {
	lower := strings.ToLower(propName)

	for _, kw := range smallerKeywords {
		if strings.Contains(lower, kw) {
			return OperatorSmaller
		}
	}
	for _, kw := range greaterKeywords {
		if strings.Contains(lower, kw) {
			return OperatorGreater
		}
	}
	return OperatorEquals
}

// BuildConstraint converts one property into its ICM constraint record,
// keyed by the inferred operator:
//
//	{"icm:<operator>": {"icm:ValueOf": "cem:<prop>", "icm:value": ..., "cem:unit": ...}}
//
// Ranges use icm:between with icm:min/icm:max; plain scalars compare with
// icm:equals and carry no unit.
func BuildConstraint(propName string, pv types.PropertyValue) *OrderedMap {
	valueOf := "cem:" + propName

	switch pv.Kind {
	case types.KindUnit:
		operator := InferOperator(propName)
		body := NewOrderedMap().
			Set("icm:ValueOf", valueOf).
			Set("icm:value", number(pv.Value)).
			Set("cem:unit", pv.Unit)
		return NewOrderedMap().Set("icm:"+operator, body)

	case types.KindRange:
		body := NewOrderedMap().
			Set("icm:ValueOf", valueOf).
			Set("icm:min", number(pv.Min)).
			Set("icm:max", number(pv.Max)).
			Set("cem:unit", pv.Unit)
		return NewOrderedMap().Set("icm:"+OperatorBetween, body)

	case types.KindBound:
		operator := OperatorSmaller
		if pv.Direction == types.BoundMin {
			operator = OperatorGreater
		}
		body := NewOrderedMap().
			Set("icm:ValueOf", valueOf).
			Set("icm:value", number(pv.Value)).
			Set("cem:unit", pv.Unit)
		return NewOrderedMap().Set("icm:"+operator, body)

	default:
		body := NewOrderedMap().
			Set("icm:ValueOf", valueOf).
			Set("icm:value", pv.Scalar)
		return NewOrderedMap().Set("icm:"+OperatorEquals, body)
	}
}

// number guards against a zero-value PropertyValue whose literal was never
// set; an empty json.Number would not marshal.
func number(n json.Number) json.Number {
	if n == "" {
		return "0"
	}
	return n
}
