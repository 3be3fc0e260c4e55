package llm

import "context"

// MockGenerator returns canned responses for tests. When Responses is empty,
// Generate echoes a fixed acknowledgement. Err, when set, is returned instead.
type MockGenerator struct {
	Responses []string
	Err       error
	Prompts   []string
	calls     int
}

// Generate records the prompt and returns the next canned response.
func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "mock response", nil
	}
	resp := m.Responses[m.calls%len(m.Responses)]
	m.calls++
	return resp, nil
}

// Close is a no-op.
func (m *MockGenerator) Close() error { return nil }
