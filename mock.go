package springseq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
)

// MockProvider simulates a chat-completion service for testing and
// offline use. It answers generation prompts with a canned compression
// sequence scaled to the free length in the prompt, and anything else
// with a short conversational reply.
type MockProvider struct {
	name      string
	available atomic.Bool
}

// NewMockProvider creates a new mock provider.
func NewMockProvider() *MockProvider {
	return NewMockProviderWithName("mock")
}

// NewMockProviderWithName creates a new mock provider with a specific name.
func NewMockProviderWithName(name string) *MockProvider {
	m := &MockProvider{name: name}
	m.available.Store(true)
	return m
}

// Name returns the provider identifier.
func (m *MockProvider) Name() string {
	return m.name
}

// SetAvailable sets the availability status (for testing failures).
// It is safe to call while calls are in flight.
func (m *MockProvider) SetAvailable(available bool) {
	m.available.Store(available)
}

// Call simulates a completion with deterministic responses.
func (m *MockProvider) Call(_ context.Context, messages []Message, _ float32) (*ProviderResponse, error) {
	if !m.available.Load() {
		return nil, fmt.Errorf("%w: provider %s is unavailable", ErrTransport, m.name)
	}

	user := lastUserMessage(messages)
	content := "I can help with spring testing. Tell me the free length, wire diameter and the test you need."
	if freeLength, ok := freeLengthFromPrompt(user); ok {
		content = m.generateSequence(freeLength)
	}
	return &ProviderResponse{Content: content, Model: m.name}, nil
}

// generateSequence renders a fenced JSON sequence for a spring of the given free length.
func (*MockProvider) generateSequence(freeLength float64) string {
	tol := func(v float64) string {
		return fmt.Sprintf("%.1f(%.1f,%.1f)", v, v*0.98, v*1.02)
	}
	rows := []Row{
		{Row: "R00", CMD: "ZF", Description: "Zero Force"},
		{Row: "R01", CMD: "TH", Description: "Threshold (Search Contact)", Condition: "10", Unit: "N", SpeedRPM: "50"},
		{Row: "R02", CMD: "FL(P)", Description: "Measure Free Length", Unit: "mm", Tolerance: tol(freeLength)},
		{Row: "R03", CMD: "Mv(P)", Description: "Move to Position", Condition: fmt.Sprintf("%.1f", freeLength*0.7), Unit: "mm", SpeedRPM: "200"},
		{Row: "R04", CMD: "Scrag", Description: "Scragging", Condition: "R03,2"},
		{Row: "R05", CMD: "Fr(P)", Description: "Force at Position", Unit: "N", SpeedRPM: "100"},
		{Row: "R06", CMD: "PMsg", Description: "User Message", Condition: "Test Completed"},
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "Mock response"
	}
	return "Here is the test sequence:\n```json\n" + string(data) + "\n```"
}

func lastUserMessage(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// freeLengthFromPrompt reads the "Free Length: N mm" line a composed
// generation prompt carries.
func freeLengthFromPrompt(prompt string) (float64, bool) {
	for _, line := range strings.Split(prompt, "\n") {
		rest, ok := strings.CutPrefix(line, string(ParamFreeLength)+": ")
		if !ok {
			continue
		}
		var v float64
		if _, err := fmt.Sscanf(rest, "%f", &v); err == nil {
			return v, true
		}
	}
	return 0, false
}

// NewMockProviderWithResponse creates a mock that always returns a specific response.
func NewMockProviderWithResponse(response string) Provider {
	return &mockProviderFixed{response: response}
}

// NewMockProviderWithCallback creates a mock that calls a function to generate responses.
func NewMockProviderWithCallback(callback func(ctx context.Context, messages []Message) (string, error)) Provider {
	return &mockProviderCallback{callback: callback}
}

// mockProviderFixed always returns a fixed response.
type mockProviderFixed struct {
	response string
}

func (m *mockProviderFixed) Call(_ context.Context, _ []Message, _ float32) (*ProviderResponse, error) {
	return &ProviderResponse{Content: m.response}, nil
}

func (*mockProviderFixed) Name() string {
	return "mock-fixed"
}

// mockProviderCallback uses a callback to generate responses.
type mockProviderCallback struct {
	callback func(context.Context, []Message) (string, error)
}

func (m *mockProviderCallback) Call(ctx context.Context, messages []Message, _ float32) (*ProviderResponse, error) {
	content, err := m.callback(ctx, messages)
	if err != nil {
		return nil, err
	}
	return &ProviderResponse{Content: content}, nil
}

func (*mockProviderCallback) Name() string {
	return "mock-callback"
}
