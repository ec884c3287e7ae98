// Package openai implements springseq.Provider for OpenAI-compatible
// chat-completion endpoints.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/springseq"
)

// Defaults for the provider.
const (
	DefaultBaseURL           = "https://chat01.ai/v1"
	DefaultModel             = "gpt-4o"
	DefaultTimeout           = 60 * time.Second
	DefaultValidationTimeout = 10 * time.Second
	maxErrorBodyBytes        = 2048
)

// Provider implements the springseq Provider interface for OpenAI-compatible APIs.
type Provider struct {
	apiKey            string
	model             string
	baseURL           string
	httpClient        *http.Client
	validationTimeout time.Duration
	name              string
}

// Config holds configuration for the OpenAI provider.
type Config struct {
	APIKey            string
	Model             string        // Optional, defaults to "gpt-4o"
	BaseURL           string        // Optional, defaults to DefaultBaseURL
	Timeout           time.Duration // Optional, per call, defaults to 60s
	ValidationTimeout time.Duration // Optional, for Validate, defaults to 10s
	HTTPClient        *http.Client  // Optional
	Name              string        // Optional, defaults to "openai"
}

// New creates a new OpenAI provider.
func New(config Config) *Provider {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.ValidationTimeout == 0 {
		config.ValidationTimeout = DefaultValidationTimeout
	}
	if config.Name == "" {
		config.Name = "openai"
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	return &Provider{
		apiKey:            config.APIKey,
		model:             config.Model,
		baseURL:           config.BaseURL,
		httpClient:        client,
		validationTimeout: config.ValidationTimeout,
		name:              config.Name,
	}
}

// malformed reports a 2xx body that could not be used and returns err.
func (p *Provider) malformed(ctx context.Context, status int, duration time.Duration, err error) error {
	capitan.Error(ctx, springseq.ProviderCallFailed,
		springseq.ProviderKey.Field(p.name),
		springseq.ModelKey.Field(p.model),
		springseq.HTTPStatusCodeKey.Field(status),
		springseq.DurationMsKey.Field(int(duration.Milliseconds())),
		springseq.ErrorKey.Field(err.Error()),
		springseq.ErrorTypeKey.Field("parse_error"),
	)
	return err
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Model returns the configured model name.
func (p *Provider) Model() string {
	return p.model
}

// Call sends messages to the chat-completion endpoint and returns the first choice.
// Network failures and non-2xx statuses wrap springseq.ErrTransport; a 2xx body
// without choices[0].message.content wraps springseq.ErrMalformedResponse.
func (p *Provider) Call(ctx context.Context, messages []springseq.Message, temperature float32) (*springseq.ProviderResponse, error) {
	startTime := time.Now()

	capitan.Info(ctx, springseq.ProviderCallStarted,
		springseq.ProviderKey.Field(p.name),
		springseq.ModelKey.Field(p.model),
	)

	wire := make([]message, len(messages))
	for i, m := range messages {
		wire[i] = message{Role: m.Role, Content: m.Content}
	}
	requestBody := chatCompletionRequest{
		Model:       p.model,
		Messages:    wire,
		Temperature: temperature,
	}

	status, body, err := p.post(ctx, requestBody)
	duration := time.Since(startTime)
	if err != nil {
		capitan.Error(ctx, springseq.ProviderCallFailed,
			springseq.ProviderKey.Field(p.name),
			springseq.ModelKey.Field(p.model),
			springseq.DurationMsKey.Field(int(duration.Milliseconds())),
			springseq.ErrorKey.Field(err.Error()),
		)
		return nil, err
	}

	if status < 200 || status > 299 {
		err := statusError(status, body)
		capitan.Error(ctx, springseq.ProviderCallFailed,
			springseq.ProviderKey.Field(p.name),
			springseq.ModelKey.Field(p.model),
			springseq.HTTPStatusCodeKey.Field(status),
			springseq.DurationMsKey.Field(int(duration.Milliseconds())),
			springseq.ErrorKey.Field(err.Error()),
		)
		return nil, err
	}

	var completionResp chatCompletionResponse
	if err := json.Unmarshal(body, &completionResp); err != nil {
		return nil, p.malformed(ctx, status, duration, fmt.Errorf("%w: failed to parse response: %v", springseq.ErrMalformedResponse, err))
	}
	if len(completionResp.Choices) == 0 {
		return nil, p.malformed(ctx, status, duration, fmt.Errorf("%w: no response choices returned", springseq.ErrMalformedResponse))
	}
	content := completionResp.Choices[0].Message.Content
	if content == nil {
		return nil, p.malformed(ctx, status, duration, fmt.Errorf("%w: choice has no message content", springseq.ErrMalformedResponse))
	}

	fields := []capitan.Field{
		springseq.ProviderKey.Field(p.name),
		springseq.ModelKey.Field(completionResp.Model),
		springseq.PromptTokensKey.Field(completionResp.Usage.PromptTokens),
		springseq.CompletionTokensKey.Field(completionResp.Usage.CompletionTokens),
		springseq.TotalTokensKey.Field(completionResp.Usage.TotalTokens),
		springseq.DurationMsKey.Field(int(duration.Milliseconds())),
		springseq.HTTPStatusCodeKey.Field(status),
	}
	capitan.Info(ctx, springseq.ProviderCallCompleted, fields...)

	return &springseq.ProviderResponse{
		Content: *content,
		Model:   completionResp.Model,
		Usage: springseq.TokenUsage{
			Prompt:     completionResp.Usage.PromptTokens,
			Completion: completionResp.Usage.CompletionTokens,
			Total:      completionResp.Usage.TotalTokens,
		},
	}, nil
}

// Validate checks the credential with a tiny completion under the
// validation timeout. A 401 wraps springseq.ErrUnauthorized.
func (p *Provider) Validate(ctx context.Context) error {
	if p.apiKey == "" {
		return fmt.Errorf("%w: API key is empty", springseq.ErrUnauthorized)
	}

	ctx, cancel := context.WithTimeout(ctx, p.validationTimeout)
	defer cancel()

	maxTokens := 10
	status, body, err := p.post(ctx, chatCompletionRequest{
		Model: p.model,
		Messages: []message{
			{Role: springseq.RoleSystem, Content: "You are a helpful assistant."},
			{Role: springseq.RoleUser, Content: "Hello, are you working?"},
		},
		Temperature: springseq.DefaultTemperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		return nil
	}
	return statusError(status, body)
}

// post sends a chat-completion request and returns the status and body.
func (p *Provider) post(ctx context.Context, requestBody chatCompletionRequest) (int, []byte, error) {
	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: request failed: %w", springseq.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: failed to read response: %w", springseq.ErrTransport, err)
	}
	return resp.StatusCode, body, nil
}

// statusError converts a non-2xx response into a transport error.
func statusError(status int, body []byte) error {
	var errorResp errorResponse
	detail := fmt.Sprintf("status %d", status)
	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
		detail = fmt.Sprintf("(%d): %s", status, errorResp.Error.Message)
	} else if len(body) > 0 {
		if len(body) > maxErrorBodyBytes {
			body = body[:maxErrorBodyBytes]
		}
		detail = fmt.Sprintf("status %d: %s", status, bytes.TrimSpace(body))
	}

	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %w: openai error %s", springseq.ErrTransport, springseq.ErrUnauthorized, detail)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: rate limit exceeded %s", springseq.ErrTransport, detail)
	default:
		return fmt.Errorf("%w: openai error %s", springseq.ErrTransport, detail)
	}
}

// IsUnauthorized reports whether err came from a rejected credential.
func IsUnauthorized(err error) bool {
	return errors.Is(err, springseq.ErrUnauthorized)
}

// Request/Response types for the chat-completion API

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float32   `json:"temperature"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type chatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   usage    `json:"usage"`
}

type choice struct {
	Index        int             `json:"index"`
	Message      responseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
