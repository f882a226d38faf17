// Package types defines the shared data model for the intent interpretation
// pipeline: service identifications produced by the NLU collaborator, catalog
// candidates produced by the retrieval collaborator, and the property values
// that become constraints in the final TMF921 document.
package types

import (
	"encoding/json"
	"fmt"
	"math"
)

// ServiceIdentification is one service the NLU collaborator extracted from a
// user request, together with the properties the user stated for it.
// Identifications are keyed by Name; a later identification with the same
// name replaces the earlier one.
type ServiceIdentification struct {
	Name       string                   `json:"name"`
	Rationale  string                   `json:"rationale"`
	Properties map[string]PropertyValue `json:"properties,omitempty"`
}

// Decomposition is the NLU collaborator's full answer for one request.
type Decomposition struct {
	Services []ServiceIdentification `json:"services_identified"`
}

// Names returns the identification names in decomposition order.
func (d Decomposition) Names() []string {
	names := make([]string, 0, len(d.Services))
	for _, s := range d.Services {
		names = append(names, s.Name)
	}
	return names
}

// ServiceDependency is a customer-facing service the candidate depends on.
// Only dependsOn relationships pointing at a CustomerFacingServiceSpecification
// are ever represented as ServiceDependency values; resource-facing
// relationships are filtered out at extraction time.
type ServiceDependency struct {
	Name    string `json:"name"`
	ID      string `json:"id"`
	Version string `json:"version"`
	Href    string `json:"href"`
}

// ServiceCandidate is one catalog entry matched against an identification.
type ServiceCandidate struct {
	ServiceID    string              `json:"service_id"`
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	Score        float64             `json:"score"`
	Dependencies []ServiceDependency `json:"dependencies"`
}

// RoundScore rounds a retrieval similarity score to 3 decimals, the precision
// carried on ServiceCandidate.Score.
func RoundScore(s float64) float64 {
	return math.Round(s*1000) / 1000
}

// rawIdentification is the loosely-typed shape the NLU collaborator emits.
// Properties arrive as arbitrary JSON values and are resolved into the
// PropertyValue tagged union exactly once, here.
type rawIdentification struct {
	Name       string                 `json:"name"`
	Rationale  string                 `json:"rationale"`
	Properties map[string]interface{} `json:"properties"`
}

type rawDecomposition struct {
	Services []rawIdentification `json:"services_identified"`
}

// DecodeDecomposition parses collaborator JSON into a Decomposition,
// resolving every property value into its tagged-union shape.
func DecodeDecomposition(data []byte) (Decomposition, error) {
	var raw rawDecomposition
	if err := json.Unmarshal(data, &raw); err != nil {
		return Decomposition{}, fmt.Errorf("decode decomposition: %w", err)
	}

	dec := Decomposition{Services: make([]ServiceIdentification, 0, len(raw.Services))}
	for _, rs := range raw.Services {
		ident := ServiceIdentification{
			Name:      rs.Name,
			Rationale: rs.Rationale,
		}
		if len(rs.Properties) > 0 {
			ident.Properties = make(map[string]PropertyValue, len(rs.Properties))
			for k, v := range rs.Properties {
				ident.Properties[k] = ResolvePropertyValue(v)
			}
		}
		dec.Services = append(dec.Services, ident)
	}
	return dec, nil
}
