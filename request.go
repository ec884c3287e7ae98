package springseq

import "sync"

// Request flows through the attempt chain. One Request carries a whole
// operation: the retry and fallback connectors hand the same value to
// every attempt, so per-attempt state is guarded and keyed by attempt.
type Request struct {
	// Input fields
	Prompt      Prompt
	Temperature float32

	// Metadata fields
	OperationID string
	MaxAttempts int

	// Set once by compose-messages, before the first attempt.
	Messages []Message

	op *Operation

	mu              sync.Mutex
	attempt         int
	providerAttempt int
	providerName    string
	response        string
	model           string
	usage           *TokenUsage
	err             error
}

// Attempt returns the number of the attempt in flight, counted across providers.
func (r *Request) Attempt() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempt
}

// ProviderName returns the provider serving the current attempt.
func (r *Request) ProviderName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.providerName
}

// Response returns the completion text of the successful attempt.
func (r *Request) Response() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.response
}

// Model returns the model reported by the successful attempt.
func (r *Request) Model() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.model
}

// Usage returns the token usage of the successful attempt, if reported.
func (r *Request) Usage() *TokenUsage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usage
}

// Err returns the failure recorded by the latest attempt.
func (r *Request) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// switchProvider starts the attempt budget of the named provider.
func (r *Request) switchProvider(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providerName = name
	r.providerAttempt = 0
}

// nextAttempt opens a new attempt and returns its overall and
// per-provider numbers.
func (r *Request) nextAttempt() (attempt, providerAttempt int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempt++
	r.providerAttempt++
	r.err = nil
	return r.attempt, r.providerAttempt
}

// counters returns the overall and per-provider attempt numbers.
func (r *Request) counters() (attempt, providerAttempt int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempt, r.providerAttempt
}

// complete stores a provider reply for attempt. A reply from an attempt
// that has already been abandoned is dropped.
func (r *Request) complete(attempt int, resp *ProviderResponse) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if attempt != r.attempt {
		return
	}
	r.response = resp.Content
	r.model = resp.Model
	usage := resp.Usage
	r.usage = &usage
}

// fail records err as the failure of attempt, unless a later attempt is
// already running.
func (r *Request) fail(attempt int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if attempt != r.attempt {
		return
	}
	r.err = err
}
