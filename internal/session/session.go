// Package session holds the mutable aggregate for one negotiation: every
// service identification ever produced, the candidates proposed for each,
// the subset the user validated, and the iteration counter bounding the
// clarification loop.
//
// A State is a value object owned by the caller. The core mutates the copy it
// is handed and returns; nothing here persists between calls. The JSON form
// of State is the wire contract for stateless transports and round-trips
// every field, including insertion order of identified and validated entries.
package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bendoumahosni/intent-interpretation/internal/logging"
	"github.com/bendoumahosni/intent-interpretation/internal/types"
)

// DefaultMaxIterations bounds the clarification loop.
const DefaultMaxIterations = 5

// ErrMaxIterations signals that the negotiation hit its iteration ceiling.
// Terminal for the loop, not a fault.
var ErrMaxIterations = errors.New("session: max iterations reached")

// ErrUnknownService signals an attempt to validate or attach candidates to a
// name that was never identified.
var ErrUnknownService = errors.New("session: service not identified")

// ValidatedEntry binds a validated service name to the candidate the user
// accepted for it.
type ValidatedEntry struct {
	Name      string                 `json:"name"`
	Candidate types.ServiceCandidate `json:"candidate"`
}

// State is the single mutable aggregate for one negotiation.
type State struct {
	iteration     int
	maxIterations int

	// identified is the union of every identification ever produced,
	// keyed by name, insertion-ordered. Upserts overwrite in place.
	identifiedOrder []string
	identified      map[string]types.ServiceIdentification

	// candidatesByService holds the proposal lists. A refused service's
	// list may be replaced; nothing is ever deleted.
	candidates map[string][]types.ServiceCandidate

	// validated is the accepted subset, insertion-ordered.
	validatedOrder []string
	validated      map[string]types.ServiceCandidate

	history         []string
	originalRequest string
}

// New creates an empty negotiation state. maxIterations <= 0 selects the
// default ceiling.
func New(maxIterations int) *State {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &State{
		maxIterations: maxIterations,
		identified:    make(map[string]types.ServiceIdentification),
		candidates:    make(map[string][]types.ServiceCandidate),
		validated:     make(map[string]types.ServiceCandidate),
	}
}

// Iteration returns the current iteration counter.
func (s *State) Iteration() int { return s.iteration }

// MaxIterations returns the configured ceiling.
func (s *State) MaxIterations() int { return s.maxIterations }

// AdvanceIteration increments the iteration counter and reports whether the
// ceiling is now reached. The counter never decreases.
func (s *State) AdvanceIteration() bool {
	s.iteration++
	reached := s.iteration >= s.maxIterations
	logging.SessionDebug("iteration advanced to %d/%d (ceiling reached=%v)", s.iteration, s.maxIterations, reached)
	return reached
}

// SetOriginalRequest records the user's original request text. Set once;
// later calls are ignored.
func (s *State) SetOriginalRequest(text string) {
	if s.originalRequest == "" {
		s.originalRequest = text
	}
}

// OriginalRequest returns the original request text.
func (s *State) OriginalRequest() string { return s.originalRequest }

// UpsertIdentifications merges identifications into the accumulated map.
// Last write wins per name; existing unrelated entries are never removed.
func (s *State) UpsertIdentifications(idents []types.ServiceIdentification) {
	for _, ident := range idents {
		if _, exists := s.identified[ident.Name]; !exists {
			s.identifiedOrder = append(s.identifiedOrder, ident.Name)
		}
		s.identified[ident.Name] = ident
	}
	logging.SessionDebug("upserted %d identifications (total=%d)", len(idents), len(s.identified))
}

// Identified returns all identifications in insertion order.
func (s *State) Identified() []types.ServiceIdentification {
	out := make([]types.ServiceIdentification, 0, len(s.identifiedOrder))
	for _, name := range s.identifiedOrder {
		out = append(out, s.identified[name])
	}
	return out
}

// IdentifiedByName looks up one identification.
func (s *State) IdentifiedByName(name string) (types.ServiceIdentification, bool) {
	ident, ok := s.identified[name]
	return ident, ok
}

// SetCandidates records the proposal list for an identified service,
// replacing any previous list (a refused service gets fresh proposals).
func (s *State) SetCandidates(name string, list []types.ServiceCandidate) error {
	if _, ok := s.identified[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownService, name)
	}
	s.candidates[name] = list
	return nil
}

// Candidates returns the proposal list for a service.
func (s *State) Candidates(name string) []types.ServiceCandidate {
	return s.candidates[name]
}

// Validate binds an identified service to the candidate the user accepted.
// Re-validating a name replaces its candidate without changing its position.
func (s *State) Validate(name string, candidate types.ServiceCandidate) error {
	if _, ok := s.identified[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownService, name)
	}
	if _, exists := s.validated[name]; !exists {
		s.validatedOrder = append(s.validatedOrder, name)
	}
	s.validated[name] = candidate
	logging.Session("validated %q -> candidate %s", name, candidate.ServiceID)
	return nil
}

// ValidatedNames returns the validated names in insertion order.
func (s *State) ValidatedNames() []string {
	out := make([]string, len(s.validatedOrder))
	copy(out, s.validatedOrder)
	return out
}

// ValidatedEntries returns the validated (name, candidate) pairs in
// insertion order.
func (s *State) ValidatedEntries() []ValidatedEntry {
	out := make([]ValidatedEntry, 0, len(s.validatedOrder))
	for _, name := range s.validatedOrder {
		out = append(out, ValidatedEntry{Name: name, Candidate: s.validated[name]})
	}
	return out
}

// ValidatedCandidate looks up the accepted candidate for a name.
func (s *State) ValidatedCandidate(name string) (types.ServiceCandidate, bool) {
	c, ok := s.validated[name]
	return c, ok
}

// AddHistory appends a free-text log entry. History is append-only.
func (s *State) AddHistory(msg string) {
	s.history = append(s.history, msg)
}

// History returns the accumulated history entries.
func (s *State) History() []string {
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

// stateWire is the serialized form of State. Identified and validated are
// arrays so insertion order survives the round trip.
type stateWire struct {
	Iteration       int                                 `json:"iteration"`
	MaxIterations   int                                 `json:"max_iterations"`
	Identified      []types.ServiceIdentification       `json:"identified"`
	Candidates      map[string][]types.ServiceCandidate `json:"candidates_by_service"`
	Validated       []ValidatedEntry                    `json:"validated"`
	History         []string                            `json:"history"`
	OriginalRequest string                              `json:"original_request"`
}

// MarshalJSON serializes the state losslessly.
func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateWire{
		Iteration:       s.iteration,
		MaxIterations:   s.maxIterations,
		Identified:      s.Identified(),
		Candidates:      s.candidates,
		Validated:       s.ValidatedEntries(),
		History:         s.history,
		OriginalRequest: s.originalRequest,
	})
}

// UnmarshalJSON reconstructs a state from its wire form.
func (s *State) UnmarshalJSON(data []byte) error {
	var w stateWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("session: decode state: %w", err)
	}

	restored := New(w.MaxIterations)
	restored.iteration = w.Iteration
	restored.UpsertIdentifications(w.Identified)
	for name, list := range w.Candidates {
		restored.candidates[name] = list
	}
	for _, v := range w.Validated {
		restored.validatedOrder = append(restored.validatedOrder, v.Name)
		restored.validated[v.Name] = v.Candidate
	}
	restored.history = w.History
	restored.originalRequest = w.OriginalRequest

	*s = *restored
	return nil
}
