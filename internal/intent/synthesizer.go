package intent

import (
	"fmt"
	"sort"

	"github.com/bendoumahosni/intent-interpretation/internal/logging"
	"github.com/bendoumahosni/intent-interpretation/internal/session"
)

// Namespace context of every synthesized document. The four terms are fixed;
// downstream intent processors resolve all identifiers against them.
const (
	nsICM = "http://www.models.tmforum.org/tio/v1.0.0/IntentCommonModel#"
	nsCat = "http://www.operator.com/Catalog#"
	nsEx  = "http://www.example.com/intent#"
	nsCem = "http://www.example.com/commonModel#"
)

// maxDescriptionLen caps how much of the original request the document
// description carries.
const maxDescriptionLen = 100

// Document is a TMF921 intent.
type Document struct {
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Version        string        `json:"version"`
	Priority       string        `json:"priority"`
	IsBundled      bool          `json:"isBundled"`
	Context        string        `json:"context"`
	Characteristic []interface{} `json:"characteristic"`
	Expression     *OrderedMap   `json:"expression"`
}

// Result carries the synthesized document plus diagnostics.
type Result struct {
	Document *Document

	// Orphaned lists validated names that have no identification entry.
	// They still get delivery expectations but cannot contribute property
	// expectations; a well-formed session never produces them, a state
	// restored from the wire can.
	Orphaned []string
}

// Synthesize builds the intent document from a completed negotiation.
// Identical session content always yields an identical document.
func Synthesize(state *session.State) *Result {
	timer := logging.StartTimer(logging.CategoryIntent, "Synthesize")
	defer timer.Stop()

	validated := state.ValidatedEntries()
	intentName := fmt.Sprintf("UserRequest_%d_Services", len(validated))

	expectations := NewOrderedMap()
	var orphaned []string

	// Delivery expectations: each validated service, then its dependencies,
	// in validation order.
	for _, entry := range validated {
		targetID := "T_" + entry.Candidate.ServiceID

		expectations.Set("E_Delivery_"+entry.Candidate.ServiceID, NewOrderedMap().
			Set("@type", "icm:DeliveryExpectation").
			Set("icm:target", "ex:"+targetID).
			Set("icm:targetType", "cat:"+entry.Candidate.Name))

		for _, dep := range entry.Candidate.Dependencies {
			expectations.Set("E_Delivery_dep_"+dep.ID, NewOrderedMap().
				Set("@type", "icm:DeliveryExpectation").
				Set("icm:target", "ex:T_dep_"+dep.ID).
				Set("icm:targetType", "cat:"+dep.Name).
				Set("icm:requiredBy", "ex:"+targetID))
		}

		if _, ok := state.IdentifiedByName(entry.Name); !ok {
			orphaned = append(orphaned, entry.Name)
			logging.Get(logging.CategoryIntent).Warn("validated service %q has no identification entry", entry.Name)
		}
	}

	// Property expectations: identified services that were validated, in
	// identification order; property names sorted for stable output.
	for _, ident := range state.Identified() {
		candidate, ok := state.ValidatedCandidate(ident.Name)
		if !ok || len(ident.Properties) == 0 {
			continue
		}
		targetID := "T_" + candidate.ServiceID

		propNames := make([]string, 0, len(ident.Properties))
		for name := range ident.Properties {
			propNames = append(propNames, name)
		}
		sort.Strings(propNames)

		for _, propName := range propNames {
			expectations.Set(fmt.Sprintf("E_Property_%s_%s", propName, candidate.ServiceID), NewOrderedMap().
				Set("@type", "icm:PropertyExpectation").
				Set("icm:target", "ex:"+targetID).
				Set("icm:constraint", BuildConstraint(propName, ident.Properties[propName])))
		}
	}

	expression := NewOrderedMap().
		Set("@type", "JsonLdExpression").
		Set("expressionValue", NewOrderedMap().
			Set("@context", NewOrderedMap().
				Set("icm", nsICM).
				Set("cat", nsCat).
				Set("ex", nsEx).
				Set("cem", nsCem)).
			Set("ex:"+intentName, NewOrderedMap().
				Set("@type", "icm:Intent").
				Set("icm:intentOwner", "ex:AutomatedAgent").
				Set("icm:hasExpectation", expectations)))

	doc := &Document{
		Name:           intentName,
		Description:    truncate(state.OriginalRequest(), maxDescriptionLen),
		Version:        "1.0",
		Priority:       "1",
		IsBundled:      len(validated) > 1,
		Context:        "User request automation",
		Characteristic: []interface{}{},
		Expression:     expression,
	}

	logging.Intent("synthesized %s: %d expectations (%d validated services)",
		intentName, expectations.Len(), len(validated))

	return &Result{Document: doc, Orphaned: orphaned}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
