// Package springseq turns free-text spring specifications into machine-executable
// test sequences for spring force testers.
//
// The pipeline has four stages, each usable on its own:
//
//   - Extract: pull engineering parameters (free length, wire diameter, ...) out of text
//   - Compose: build a deterministic system/user prompt pair for a chat-completion model
//   - ParseSequence: recover a command row table from the model's free-text reply
//   - Pipeline: run the network exchange with retries, cancellation and progress
//
// Basic usage:
//
//	provider := openai.New(openai.Config{APIKey: key})
//	pipeline := springseq.NewPipeline(provider)
//	op := pipeline.Submit(ctx, "Generate a compression test, free length 50mm, wire diameter 2mm")
//	for n := range op.Events() {
//	    fmt.Println(n.Kind, n.Progress, n.Status)
//	}
//	result := op.Result()
//	fmt.Println(result.Sequence.Rows)
package springseq

import "context"

// Role constants for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message sent to a provider.
type Message struct {
	Role    string // RoleSystem, RoleUser or RoleAssistant
	Content string
}

// Provider defines the interface for chat-completion services.
// Implementations must wrap network, timeout and non-2xx failures with
// ErrTransport, and undecodable success bodies with ErrMalformedResponse,
// so the pipeline can decide whether an attempt is worth repeating.
type Provider interface {
	// Call sends messages to the model and returns the completion text.
	Call(ctx context.Context, messages []Message, temperature float32) (*ProviderResponse, error)

	// Name returns the provider identifier (e.g., "openai").
	Name() string
}

// TokenUsage contains token counts from a provider response.
type TokenUsage struct {
	Prompt     int
	Completion int
	Total      int
}

// ProviderResponse contains the response from a provider.
type ProviderResponse struct {
	Content string     // The text response content
	Model   string     // Model that produced the response, if reported
	Usage   TokenUsage // Token usage statistics
}
