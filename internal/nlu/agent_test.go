package nlu

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Telecom(t *testing.T) {
	mock := &mockClient{responses: []string{"TELECOM"}}
	agent := NewAgent(mock)

	result, err := agent.Classify(context.Background(), "I need a 5G slice for video surveillance")
	require.NoError(t, err)
	assert.Equal(t, CategoryTelecom, result.Category)
	assert.Equal(t, 1, mock.calls, "telecom route should not call the polite responder")
}

func TestClassify_GreetingGetsPoliteResponse(t *testing.T) {
	mock := &mockClient{responses: []string{"GREETING", "Hello! How can I help with your telecom services?"}}
	agent := NewAgent(mock)

	result, err := agent.Classify(context.Background(), "bonjour")
	require.NoError(t, err)
	assert.Equal(t, CategoryGreeting, result.Category)
	assert.Contains(t, result.Message, "Hello")
	assert.Equal(t, 2, mock.calls)
}

func TestClassify_NormalizesResponse(t *testing.T) {
	mock := &mockClient{responses: []string{"  out_of_scope \n", "Sorry, I only handle telecom."}}
	agent := NewAgent(mock)

	result, err := agent.Classify(context.Background(), "write me a poem")
	require.NoError(t, err)
	assert.Equal(t, CategoryOutOfScope, result.Category)
}

func TestDecompose_ParsesFencedJSON(t *testing.T) {
	mock := &mockClient{responses: []string{"Here you go:\n```json\n" + `{
		"services_identified": [
			{"name": "uRLLC-slice", "rationale": "low latency requirement", "properties": {"latency": "5ms"}},
			{"name": "notification", "rationale": "alerting", "properties": {}}
		]
	}` + "\n```"}}
	agent := NewAgent(mock)

	decomp, err := agent.Decompose(context.Background(), "video surveillance with alerts")
	require.NoError(t, err)
	require.Len(t, decomp.Services, 2)
	assert.Equal(t, "uRLLC-slice", decomp.Services[0].Name)
	assert.Contains(t, decomp.Services[0].Properties, "latency")
}

func TestDecompose_RejectsNonJSON(t *testing.T) {
	mock := &mockClient{responses: []string{"I could not identify any services."}}
	agent := NewAgent(mock)

	_, err := agent.Decompose(context.Background(), "something")
	require.Error(t, err)
}

func TestClarify_PromptNamesValidatedAndRefused(t *testing.T) {
	mock := &mockClient{responses: []string{`{"services_identified": [{"name": "eMBB-slice", "rationale": "more throughput"}]}`}}
	agent := NewAgent(mock)

	decomp, err := agent.Clarify(context.Background(),
		"I need more bandwidth instead",
		[]string{"notification"},
		[]string{"uRLLC-slice"},
		"video surveillance with alerts")
	require.NoError(t, err)
	require.Len(t, decomp.Services, 1)

	prompt := mock.prompts[0]
	assert.Contains(t, prompt, "notification")
	assert.Contains(t, prompt, "uRLLC-slice")
	assert.Contains(t, prompt, "video surveillance with alerts")
	assert.Contains(t, prompt, "I need more bandwidth instead")
}

func TestReformulate_UsesRecentHistoryOnly(t *testing.T) {
	mock := &mockClient{responses: []string{"Why did the proposed slice not fit your latency needs?"}}
	agent := NewAgent(mock)

	history := []string{"round 1", "round 2", "round 3", "round 4"}
	question, err := agent.Reformulate(context.Background(), []string{"uRLLC-slice"}, []string{"notification"}, history)
	require.NoError(t, err)
	assert.NotEmpty(t, question)

	prompt := mock.prompts[0]
	assert.NotContains(t, prompt, "round 1", "only the last three history entries belong in the prompt")
	assert.Contains(t, prompt, "round 4")
}

func TestRecommendAlternatives_ParsesArray(t *testing.T) {
	mock := &mockClient{responses: []string{"Suggested:\n[\"eMBB slice\", \"edge storage\"]"}}
	agent := NewAgent(mock)

	alts, err := agent.RecommendAlternatives(context.Background(), []string{"uRLLC-slice"}, []string{"notification"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"eMBB slice", "edge storage"}, alts)
}

func TestExtractJSONObject(t *testing.T) {
	cases := []struct{ in, want string }{
		{`prefix {"a": {"b": 1}} suffix`, `{"a": {"b": 1}}`},
		{`{"s": "braces } in { string"}`, `{"s": "braces } in { string"}`},
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"no json here", ""},
		{`{"unterminated": `, ""},
	}
	for _, c := range cases {
		if got := extractJSONObject(c.in); got != c.want {
			t.Errorf("extractJSONObject(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestExtractJSONArray(t *testing.T) {
	got := extractJSONArray(`sure: ["a", "b [x]"] done`)
	if !strings.HasPrefix(got, `["a"`) {
		t.Fatalf("extractJSONArray = %q", got)
	}
}
