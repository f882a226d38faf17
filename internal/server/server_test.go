package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bendoumahosni/intent-interpretation/internal/nlu"
	"github.com/bendoumahosni/intent-interpretation/internal/types"
)

type mockNLU struct {
	classifyResult nlu.RouteResult
	decomposition  types.Decomposition
	clarification  types.Decomposition
	alternatives   []string
	err            error

	lastClarification string
	lastValidated     []string
	lastRefused       []string
}

func (m *mockNLU) Classify(_ context.Context, _ string) (nlu.RouteResult, error) {
	return m.classifyResult, m.err
}

func (m *mockNLU) Decompose(_ context.Context, _ string) (types.Decomposition, error) {
	return m.decomposition, m.err
}

func (m *mockNLU) Clarify(_ context.Context, clarification string, validated, refused []string, _ string) (types.Decomposition, error) {
	m.lastClarification = clarification
	m.lastValidated = validated
	m.lastRefused = refused
	return m.clarification, m.err
}

func (m *mockNLU) RecommendAlternatives(_ context.Context, _, _, _ []string) ([]string, error) {
	return m.alternatives, m.err
}

type mockAssembler struct {
	candidates map[string][]types.ServiceCandidate
	err        error
	calls      int
}

func (m *mockAssembler) Assemble(_ context.Context, _ types.Decomposition) (map[string][]types.ServiceCandidate, error) {
	m.calls++
	return m.candidates, m.err
}

func newTestServer(nluSvc NLUService, assembler Assembler) *Server {
	return New(nluSvc, assembler, nil, 5, zap.NewNop())
}

func postJSON(t *testing.T, srv *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&mockNLU{}, &mockAssembler{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestRoot_ListsEndpoints(t *testing.T) {
	srv := newTestServer(&mockNLU{}, &mockAssembler{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/generate-intent")
}

func TestClassify(t *testing.T) {
	mock := &mockNLU{classifyResult: nlu.RouteResult{
		Category: nlu.CategoryTelecom,
		Message:  "Telecom request identified. Analysis in progress...",
	}}
	srv := newTestServer(mock, &mockAssembler{})

	rec := postJSON(t, srv, "/api/classify", map[string]string{"user_input": "I need a 5G slice"})

	require.Equal(t, http.StatusOK, rec.Code)
	var result nlu.RouteResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, nlu.CategoryTelecom, result.Category)
}

func TestDecompose_ReturnsServicesAndCandidates(t *testing.T) {
	mock := &mockNLU{decomposition: types.Decomposition{
		Services: []types.ServiceIdentification{{Name: "slice", Rationale: "low latency"}},
	}}
	assembler := &mockAssembler{candidates: map[string][]types.ServiceCandidate{
		"slice": {{ServiceID: "S1", Name: "uRLLC Slice", Score: 0.91}},
	}}
	srv := newTestServer(mock, assembler)

	rec := postJSON(t, srv, "/api/decompose", map[string]string{"user_input": "video surveillance"})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp decomposeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Services, 1)
	assert.Equal(t, "slice", resp.Services[0].Name)
	require.Len(t, resp.Candidates["slice"], 1)
	assert.Equal(t, 1, assembler.calls)
}

func TestDecompose_NoServicesIs400(t *testing.T) {
	srv := newTestServer(&mockNLU{}, &mockAssembler{})

	rec := postJSON(t, srv, "/api/decompose", map[string]string{"user_input": "???"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no services identified")
}

func TestDecompose_MalformedBodyIs400(t *testing.T) {
	srv := newTestServer(&mockNLU{}, &mockAssembler{})

	req := httptest.NewRequest(http.MethodPost, "/api/decompose", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidate(t *testing.T) {
	srv := newTestServer(&mockNLU{}, &mockAssembler{})

	rec := postJSON(t, srv, "/api/validate", validateRequest{
		SelectedServices: map[string]string{"slice": "S1", "storage": "S2"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(2), body["count"])
}

func TestAlternatives(t *testing.T) {
	mock := &mockNLU{alternatives: []string{"eMBB-slice", "edge-cache"}}
	srv := newTestServer(mock, &mockAssembler{})

	rec := postJSON(t, srv, "/api/alternatives", alternativesRequest{
		RefusedNames: []string{"uRLLC-slice"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"eMBB-slice", "edge-cache"}, body["alternatives"])
}

func TestGenerateIntent(t *testing.T) {
	srv := newTestServer(&mockNLU{}, &mockAssembler{})

	rec := postJSON(t, srv, "/api/generate-intent", generateIntentRequest{
		OriginalRequest: "video surveillance with guaranteed low latency",
		IdentifiedServices: []types.ServiceIdentification{
			{Name: "slice", Properties: map[string]types.PropertyValue{
				"latence": types.ResolvePropertyValue("5ms"),
			}},
		},
		ValidatedServices: map[string]types.ServiceCandidate{
			"slice": {ServiceID: "S1", Name: "uRLLC Slice", Score: 0.91},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"name":"UserRequest_1_Services"`)
	assert.Contains(t, body, "E_Delivery_S1")
	assert.Contains(t, body, "E_Property_latence_S1")
	assert.NotContains(t, body, `"orphaned"`)
}

func TestGenerateIntent_UnbackedValidatedNameReported(t *testing.T) {
	srv := newTestServer(&mockNLU{}, &mockAssembler{})

	rec := postJSON(t, srv, "/api/generate-intent", generateIntentRequest{
		OriginalRequest: "restored from an older session",
		ValidatedServices: map[string]types.ServiceCandidate{
			"ghost": {ServiceID: "S9", Name: "Ghost Service", Score: 0.5},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Orphaned []string `json:"orphaned"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"ghost"}, resp.Orphaned)
	// The delivery expectation is still emitted.
	assert.Contains(t, rec.Body.String(), "E_Delivery_S9")
}

func TestGenerateIntent_UnknownOrderNameIs400(t *testing.T) {
	srv := newTestServer(&mockNLU{}, &mockAssembler{})

	rec := postJSON(t, srv, "/api/generate-intent", generateIntentRequest{
		ValidationOrder: []string{"ghost"},
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
