// Package server exposes the negotiation workflow over a stateless JSON API.
// Every request carries the full negotiation context it needs; the server
// holds no session between calls.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bendoumahosni/intent-interpretation/internal/intent"
	"github.com/bendoumahosni/intent-interpretation/internal/negotiation"
	"github.com/bendoumahosni/intent-interpretation/internal/nlu"
	"github.com/bendoumahosni/intent-interpretation/internal/session"
	"github.com/bendoumahosni/intent-interpretation/internal/types"
)

// Version reported by the root and health endpoints.
const Version = "1.0.0"

// NLUService is the language-understanding surface the handlers depend on.
type NLUService interface {
	Classify(ctx context.Context, request string) (nlu.RouteResult, error)
	Decompose(ctx context.Context, request string) (types.Decomposition, error)
	Clarify(ctx context.Context, clarification string, validated, refused []string, originalRequest string) (types.Decomposition, error)
	RecommendAlternatives(ctx context.Context, refused, validated, history []string) ([]string, error)
}

// Assembler finds catalog candidates for identified services.
type Assembler interface {
	Assemble(ctx context.Context, decomp types.Decomposition) (map[string][]types.ServiceCandidate, error)
}

// Server wires the workflow collaborators behind HTTP handlers.
type Server struct {
	nlu       NLUService
	assembler Assembler
	merger    *negotiation.Assembler
	logger    *zap.Logger
	mux       *http.ServeMux

	maxIterations int
}

// New creates a Server. merger is the concrete assembler used when merging
// clarification rounds through a reconstructed session; it may equal the
// assembler argument.
func New(nluSvc NLUService, assembler Assembler, merger *negotiation.Assembler, maxIterations int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		nlu:           nluSvc,
		assembler:     assembler,
		merger:        merger,
		logger:        logger,
		mux:           http.NewServeMux(),
		maxIterations: maxIterations,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/classify", s.handleClassify)
	s.mux.HandleFunc("POST /api/decompose", s.handleDecompose)
	s.mux.HandleFunc("POST /api/validate", s.handleValidate)
	s.mux.HandleFunc("POST /api/clarify", s.handleClarify)
	s.mux.HandleFunc("POST /api/alternatives", s.handleAlternatives)
	s.mux.HandleFunc("POST /api/generate-intent", s.handleGenerateIntent)
}

// ServeHTTP implements http.Handler with per-request logging.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	s.logger.Info("request",
		zap.String("request_id", requestID),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path))
	w.Header().Set("X-Request-ID", requestID)
	s.mux.ServeHTTP(w, r)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Warn("request failed", zap.Int("status", status), zap.Error(err))
	s.writeJSON(w, status, map[string]string{"detail": err.Error()})
}

func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Intent Interpretation API",
		"version": Version,
		"endpoints": map[string]string{
			"classification":    "/api/classify",
			"decomposition":     "/api/decompose",
			"validation":        "/api/validate",
			"clarification":     "/api/clarify",
			"alternatives":      "/api/alternatives",
			"intent_generation": "/api/generate-intent",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": Version,
	})
}

type classifyRequest struct {
	UserInput string `json:"user_input"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.nlu.Classify(r.Context(), req.UserInput)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type decomposeRequest struct {
	UserInput string `json:"user_input"`
}

type decomposeResponse struct {
	Services   []types.ServiceIdentification      `json:"services_identified"`
	Candidates map[string][]types.ServiceCandidate `json:"candidates"`
}

func (s *Server) handleDecompose(w http.ResponseWriter, r *http.Request) {
	var req decomposeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	decomp, err := s.nlu.Decompose(r.Context(), req.UserInput)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if len(decomp.Services) == 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("no services identified, please rephrase"))
		return
	}

	candidates, err := s.assembler.Assemble(r.Context(), decomp)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, decomposeResponse{
		Services:   decomp.Services,
		Candidates: candidates,
	})
}

type validateRequest struct {
	// SelectedServices maps service name to the chosen candidate id.
	SelectedServices map[string]string `json:"selected_services"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	names := make([]string, 0, len(req.SelectedServices))
	for name := range req.SelectedServices {
		names = append(names, name)
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "success",
		"validated_services": names,
		"count":              len(names),
	})
}

type clarifyRequest struct {
	UserClarification string `json:"user_clarification"`
	ValidatedNames    []string `json:"validated_names"`
	RefusedNames      []string `json:"refused_names"`
	OriginalRequest   string `json:"original_request"`

	// ValidatedData holds the chosen candidate per validated name so the
	// merged response can re-attach them without another search.
	ValidatedData map[string]types.ServiceCandidate `json:"validated_data,omitempty"`

	// PreviousIdentifications is the identification list from earlier
	// rounds, used to rebuild the session this stateless call merges into.
	PreviousIdentifications []types.ServiceIdentification `json:"previous_identifications,omitempty"`
}

type clarifyResponse struct {
	Services             []types.ServiceIdentification      `json:"services_identified"`
	Candidates           map[string][]types.ServiceCandidate `json:"candidates"`
	PreValidatedServices []string                           `json:"pre_validated_services"`
	NoNewProposals       bool                               `json:"no_new_proposals,omitempty"`
}

func (s *Server) handleClarify(w http.ResponseWriter, r *http.Request) {
	var req clarifyRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	state, err := s.rebuildSession(req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	decomp, err := s.nlu.Clarify(r.Context(), req.UserClarification, req.ValidatedNames, req.RefusedNames, req.OriginalRequest)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := clarifyResponse{
		Services:             []types.ServiceIdentification{},
		Candidates:           make(map[string][]types.ServiceCandidate),
		PreValidatedServices: append([]string{}, req.ValidatedNames...),
	}

	filtered, err := negotiation.MergeClarification(r.Context(), state, s.merger, decomp)
	switch {
	case errors.Is(err, negotiation.ErrNoNewProposals):
		resp.NoNewProposals = true
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	// Merged view: validated identifications first with their chosen
	// candidate, then the new proposals with their fresh candidates.
	for _, ident := range req.PreviousIdentifications {
		if candidate, ok := req.ValidatedData[ident.Name]; ok {
			resp.Services = append(resp.Services, ident)
			resp.Candidates[ident.Name] = []types.ServiceCandidate{candidate}
		}
	}
	for _, ident := range filtered.Services {
		resp.Services = append(resp.Services, ident)
		resp.Candidates[ident.Name] = state.Candidates(ident.Name)
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// rebuildSession reconstructs the session a stateless clarify call merges
// into: previous identifications plus the validated bindings.
func (s *Server) rebuildSession(req clarifyRequest) (*session.State, error) {
	state := session.New(s.maxIterations)
	state.SetOriginalRequest(req.OriginalRequest)
	state.UpsertIdentifications(req.PreviousIdentifications)

	for _, name := range req.ValidatedNames {
		if _, ok := state.IdentifiedByName(name); !ok {
			state.UpsertIdentifications([]types.ServiceIdentification{{Name: name}})
		}
		candidate := req.ValidatedData[name]
		if err := state.Validate(name, candidate); err != nil {
			return nil, err
		}
	}
	return state, nil
}

type alternativesRequest struct {
	RefusedNames   []string `json:"refused_names"`
	ValidatedNames []string `json:"validated_names"`
	History        []string `json:"history"`
}

func (s *Server) handleAlternatives(w http.ResponseWriter, r *http.Request) {
	var req alternativesRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	alternatives, err := s.nlu.RecommendAlternatives(r.Context(), req.RefusedNames, req.ValidatedNames, req.History)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"alternatives": alternatives})
}

type generateIntentRequest struct {
	ValidatedServices  map[string]types.ServiceCandidate `json:"validated_services"`
	IdentifiedServices []types.ServiceIdentification     `json:"identified_services"`
	OriginalRequest    string                            `json:"original_request"`

	// ValidationOrder fixes the validated iteration order; without it the
	// map order of ValidatedServices would make the document unstable.
	ValidationOrder []string `json:"validation_order,omitempty"`
}

type generateIntentResponse struct {
	Intent   *intent.Document `json:"intent"`
	Orphaned []string         `json:"orphaned,omitempty"`
}

func (s *Server) handleGenerateIntent(w http.ResponseWriter, r *http.Request) {
	var req generateIntentRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	state := session.New(s.maxIterations)
	state.SetOriginalRequest(req.OriginalRequest)
	state.UpsertIdentifications(req.IdentifiedServices)

	order := req.ValidationOrder
	if len(order) == 0 {
		for _, ident := range req.IdentifiedServices {
			if _, ok := req.ValidatedServices[ident.Name]; ok {
				order = append(order, ident.Name)
			}
		}
		// Validated names with no identification entry come last, sorted
		// so the document stays deterministic.
		var unbacked []string
		for name := range req.ValidatedServices {
			if _, ok := state.IdentifiedByName(name); !ok {
				unbacked = append(unbacked, name)
			}
		}
		sort.Strings(unbacked)
		order = append(order, unbacked...)
	}

	var orphaned []string
	for _, name := range order {
		candidate, ok := req.ValidatedServices[name]
		if !ok {
			s.writeError(w, http.StatusBadRequest, errors.New("validation_order names unknown service "+name))
			return
		}
		if _, ok := state.IdentifiedByName(name); !ok {
			// No identification backs this validated name. Report it,
			// but keep its delivery expectation in the document.
			orphaned = append(orphaned, name)
			state.UpsertIdentifications([]types.ServiceIdentification{{Name: name}})
		}
		if err := state.Validate(name, candidate); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	result := intent.Synthesize(state)
	s.writeJSON(w, http.StatusOK, generateIntentResponse{
		Intent:   result.Document,
		Orphaned: append(orphaned, result.Orphaned...),
	})
}
