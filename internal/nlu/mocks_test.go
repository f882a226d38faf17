package nlu

import (
	"context"
	"fmt"
)

// mockClient replays queued completions and records every prompt it saw.
type mockClient struct {
	responses []string
	calls     int
	systems   []string
	prompts   []string
	err       error
}

func (m *mockClient) Complete(ctx context.Context, prompt string) (string, error) {
	return m.CompleteWithSystem(ctx, "", prompt)
}

func (m *mockClient) CompleteWithSystem(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	m.systems = append(m.systems, systemPrompt)
	m.prompts = append(m.prompts, userPrompt)
	if m.err != nil {
		return "", m.err
	}
	if m.calls >= len(m.responses) {
		return "", fmt.Errorf("mock: no response queued for call %d", m.calls)
	}
	resp := m.responses[m.calls]
	m.calls++
	return resp, nil
}
