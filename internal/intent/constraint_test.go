package intent

import (
	"encoding/json"
	"testing"

	"github.com/bendoumahosni/intent-interpretation/internal/types"
)

func constraintJSON(t *testing.T, propName string, raw interface{}) string {
	t.Helper()
	pv := types.ResolvePropertyValue(raw)
	data, err := json.Marshal(BuildConstraint(propName, pv))
	if err != nil {
		t.Fatalf("marshal constraint: %v", err)
	}
	return string(data)
}

func TestBuildConstraint_LatencyUnitString(t *testing.T) {
	got := constraintJSON(t, "latence", "10ms")
	want := `{"icm:smaller":{"icm:ValueOf":"cem:latence","icm:value":10,"cem:unit":"ms"}}`
	if got != want {
		t.Fatalf("constraint = %s, want %s", got, want)
	}
}

func TestBuildConstraint_ThroughputUnitString(t *testing.T) {
	got := constraintJSON(t, "debit", "100Mbps")
	want := `{"icm:greater":{"icm:ValueOf":"cem:debit","icm:value":100,"cem:unit":"Mbps"}}`
	if got != want {
		t.Fatalf("constraint = %s, want %s", got, want)
	}
}

func TestBuildConstraint_Range(t *testing.T) {
	got := constraintJSON(t, "latence", map[string]interface{}{"min": 10.0, "max": 20.0, "unit": "ms"})
	want := `{"icm:between":{"icm:ValueOf":"cem:latence","icm:min":10,"icm:max":20,"cem:unit":"ms"}}`
	if got != want {
		t.Fatalf("constraint = %s, want %s", got, want)
	}
}

func TestBuildConstraint_MinOnlyBound(t *testing.T) {
	got := constraintJSON(t, "capacity", map[string]interface{}{"min": 5.0})
	want := `{"icm:greater":{"icm:ValueOf":"cem:capacity","icm:value":5,"cem:unit":""}}`
	if got != want {
		t.Fatalf("constraint = %s, want %s", got, want)
	}
}

func TestBuildConstraint_MaxOnlyBound(t *testing.T) {
	got := constraintJSON(t, "latence", map[string]interface{}{"max": 20.0, "unit": "ms"})
	want := `{"icm:smaller":{"icm:ValueOf":"cem:latence","icm:value":20,"cem:unit":"ms"}}`
	if got != want {
		t.Fatalf("constraint = %s, want %s", got, want)
	}
}

func TestBuildConstraint_ScalarEquality(t *testing.T) {
	got := constraintJSON(t, "color", "red")
	want := `{"icm:equals":{"icm:ValueOf":"cem:color","icm:value":"red"}}`
	if got != want {
		t.Fatalf("constraint = %s, want %s", got, want)
	}
}

func TestBuildConstraint_UnparsableUnitDegradesToEquality(t *testing.T) {
	// "1.2.3ms" looks unit-tagged but the numeric part does not parse.
	got := constraintJSON(t, "latence", "1.2.3ms")
	want := `{"icm:equals":{"icm:ValueOf":"cem:latence","icm:value":"1.2.3ms"}}`
	if got != want {
		t.Fatalf("constraint = %s, want %s", got, want)
	}
}

func TestBuildConstraint_ExplicitDecimalKeptInOutput(t *testing.T) {
	got := constraintJSON(t, "latence", "10.0ms")
	want := `{"icm:smaller":{"icm:ValueOf":"cem:latence","icm:value":10.0,"cem:unit":"ms"}}`
	if got != want {
		t.Fatalf("constraint = %s, want %s", got, want)
	}
}

func TestBuildConstraint_FractionalValueStaysFloat(t *testing.T) {
	got := constraintJSON(t, "disponibilite", "99.9%")
	want := `{"icm:greater":{"icm:ValueOf":"cem:disponibilite","icm:value":99.9,"cem:unit":"%"}}`
	if got != want {
		t.Fatalf("constraint = %s, want %s", got, want)
	}
}

func TestInferOperator(t *testing.T) {
	cases := []struct{ prop, want string }{
		{"latence", OperatorSmaller},
		{"end-to-end latency", OperatorSmaller},
		{"Jitter", OperatorSmaller},
		{"packet delay budget", OperatorSmaller},
		{"debit", OperatorGreater},
		{"Bandwidth", OperatorGreater},
		{"min throughput", OperatorGreater},
		{"disponibilite", OperatorGreater},
		{"availability", OperatorGreater},
		{"color", OperatorEquals},
		{"zone", OperatorEquals},
	}
	for _, c := range cases {
		if got := InferOperator(c.prop); got != c.want {
			t.Errorf("InferOperator(%q) = %s, want %s", c.prop, got, c.want)
		}
	}
}
