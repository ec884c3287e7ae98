// Package testing provides utilities for testing springseq pipelines.
package testing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/springseq"
)

// Provider name constants for test helpers.
const (
	SequencedProviderName = "sequenced-mock"
	FailingProviderName   = "failing-mock"
	BlockingProviderName  = "blocking-mock"
)

// SequenceBuilder provides a fluent interface for constructing mock
// completions that carry a row table.
type SequenceBuilder struct {
	rows    []map[string]any
	prose   string
	fenced  bool
	trailer string
}

// NewSequenceBuilder creates a new SequenceBuilder. Completions are fenced
// as a json code block unless Bare is called.
func NewSequenceBuilder() *SequenceBuilder {
	return &SequenceBuilder{fenced: true}
}

// WithRow appends a row with the next sequential id.
func (b *SequenceBuilder) WithRow(cmd, description, condition, unit, tolerance, speed string) *SequenceBuilder {
	b.rows = append(b.rows, map[string]any{
		springseq.ColumnRow:         fmt.Sprintf("R%02d", len(b.rows)),
		springseq.ColumnCMD:         cmd,
		springseq.ColumnDescription: description,
		springseq.ColumnCondition:   condition,
		springseq.ColumnUnit:        unit,
		springseq.ColumnTolerance:   tolerance,
		springseq.ColumnSpeed:       speed,
	})
	return b
}

// WithCommand appends a row holding only an id, a code and its standard description.
func (b *SequenceBuilder) WithCommand(cmd string) *SequenceBuilder {
	desc, _ := springseq.DescribeCommand(cmd)
	return b.WithRow(cmd, desc, "", "", "", "")
}

// WithRecord appends an arbitrary record, verbatim.
func (b *SequenceBuilder) WithRecord(record map[string]any) *SequenceBuilder {
	b.rows = append(b.rows, record)
	return b
}

// WithProse sets text placed before the table.
func (b *SequenceBuilder) WithProse(prose string) *SequenceBuilder {
	b.prose = prose
	return b
}

// WithTrailer sets text placed after the table.
func (b *SequenceBuilder) WithTrailer(trailer string) *SequenceBuilder {
	b.trailer = trailer
	return b
}

// Bare renders the table without a code fence.
func (b *SequenceBuilder) Bare() *SequenceBuilder {
	b.fenced = false
	return b
}

// Len returns the number of rows added so far.
func (b *SequenceBuilder) Len() int {
	return len(b.rows)
}

// Build returns the completion text.
func (b *SequenceBuilder) Build() string {
	rows := b.rows
	if rows == nil {
		rows = []map[string]any{}
	}
	jsonBytes, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "[]"
	}

	table := string(jsonBytes)
	if b.fenced {
		table = "```json\n" + table + "\n```"
	}
	out := table
	if b.prose != "" {
		out = b.prose + "\n" + out
	}
	if b.trailer != "" {
		out += "\n" + b.trailer
	}
	return out
}

// StandardSequence returns a short valid compression sequence.
func StandardSequence() string {
	return NewSequenceBuilder().
		WithProse("Here is your test sequence:").
		WithRow("ZF", "Zero Force", "", "", "", "").
		WithRow("TH", "Threshold (Search Contact)", "10", "N", "", "50").
		WithRow("FL(P)", "Measure Free Length", "", "mm", "50(49.5,50.5)", "").
		WithRow("Mv(P)", "Move to Position", "35", "mm", "", "200").
		WithRow("Fr(P)", "Force at Position", "", "N", "", "").
		WithRow("PMsg", "User Message", "Test Completed", "", "", "").
		Build()
}

// StandardSequenceRows is the number of rows in StandardSequence.
const StandardSequenceRows = 6

// SequencedProvider returns responses in sequence.
// After all responses are exhausted, it returns the last response repeatedly.
type SequencedProvider struct {
	responses []string
	index     atomic.Int64
	mu        sync.Mutex
}

// NewSequencedProvider creates a provider that returns responses in order.
func NewSequencedProvider(responses ...string) *SequencedProvider {
	if len(responses) == 0 {
		responses = []string{`{"error": "no responses configured"}`}
	}
	return &SequencedProvider{
		responses: responses,
	}
}

// Call returns the next response in sequence.
func (p *SequencedProvider) Call(_ context.Context, _ []springseq.Message, _ float32) (*springseq.ProviderResponse, error) {
	idx := p.index.Add(1) - 1
	p.mu.Lock()
	defer p.mu.Unlock()

	if int(idx) >= len(p.responses) {
		idx = int64(len(p.responses) - 1)
	}

	return &springseq.ProviderResponse{
		Content: p.responses[idx],
		Usage: springseq.TokenUsage{
			Prompt:     100,
			Completion: 50,
			Total:      150,
		},
	}, nil
}

// Name returns the provider identifier.
func (*SequencedProvider) Name() string {
	return SequencedProviderName
}

// CallCount returns the number of calls made.
func (p *SequencedProvider) CallCount() int {
	return int(p.index.Load())
}

// Reset resets the call counter.
func (p *SequencedProvider) Reset() {
	p.index.Store(0)
}

// FailingProvider fails a specified number of times before succeeding.
// Failures are transport errors, so the pipeline retries them.
type FailingProvider struct {
	failCount    int
	currentCount atomic.Int64
	successResp  string
	failError    string
}

// NewFailingProvider creates a provider that fails failCount times then
// returns StandardSequence.
func NewFailingProvider(failCount int) *FailingProvider {
	return &FailingProvider{
		failCount:   failCount,
		successResp: StandardSequence(),
		failError:   "simulated provider failure",
	}
}

// WithSuccessResponse sets the response returned after failures are exhausted.
func (p *FailingProvider) WithSuccessResponse(response string) *FailingProvider {
	p.successResp = response
	return p
}

// WithFailError sets the error message for failures.
func (p *FailingProvider) WithFailError(errMsg string) *FailingProvider {
	p.failError = errMsg
	return p
}

// Call fails until failCount is reached, then succeeds.
func (p *FailingProvider) Call(_ context.Context, _ []springseq.Message, _ float32) (*springseq.ProviderResponse, error) {
	count := p.currentCount.Add(1)
	if int(count) <= p.failCount {
		return nil, fmt.Errorf("%w: %s (attempt %d/%d)", springseq.ErrTransport, p.failError, count, p.failCount)
	}

	return &springseq.ProviderResponse{
		Content: p.successResp,
		Usage: springseq.TokenUsage{
			Prompt:     100,
			Completion: 50,
			Total:      150,
		},
	}, nil
}

// Name returns the provider identifier.
func (*FailingProvider) Name() string {
	return FailingProviderName
}

// CallCount returns the number of calls made.
func (p *FailingProvider) CallCount() int {
	return int(p.currentCount.Load())
}

// Reset resets the call counter.
func (p *FailingProvider) Reset() {
	p.currentCount.Store(0)
}

// BlockingProvider holds every call until it is released or the call's
// context ends. A context end is reported as a transport error.
type BlockingProvider struct {
	response string
	release  chan struct{}
	started  chan struct{}
	once     sync.Once
	calls    atomic.Int64
}

// NewBlockingProvider creates a provider that answers response once released.
func NewBlockingProvider(response string) *BlockingProvider {
	return &BlockingProvider{
		response: response,
		release:  make(chan struct{}),
		started:  make(chan struct{}, 64),
	}
}

// Call blocks until Release or ctx is done.
func (p *BlockingProvider) Call(ctx context.Context, _ []springseq.Message, _ float32) (*springseq.ProviderResponse, error) {
	p.calls.Add(1)
	select {
	case p.started <- struct{}{}:
	default:
	}

	select {
	case <-p.release:
		return &springseq.ProviderResponse{Content: p.response}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", springseq.ErrTransport, ctx.Err())
	}
}

// Name returns the provider identifier.
func (*BlockingProvider) Name() string {
	return BlockingProviderName
}

// Started receives once per call that has entered Call.
func (p *BlockingProvider) Started() <-chan struct{} {
	return p.started
}

// Release unblocks pending and future calls. Safe to call more than once.
func (p *BlockingProvider) Release() {
	p.once.Do(func() { close(p.release) })
}

// CallCount returns the number of calls made.
func (p *BlockingProvider) CallCount() int {
	return int(p.calls.Load())
}

// RecordedCall represents a single call to a provider.
type RecordedCall struct {
	Messages    []springseq.Message
	Temperature float32
}

// User returns the user message content of the call.
func (c RecordedCall) User() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == springseq.RoleUser {
			return c.Messages[i].Content
		}
	}
	return ""
}

// CallRecorder wraps a provider and records all calls made to it.
type CallRecorder struct {
	provider springseq.Provider
	calls    []RecordedCall
	mu       sync.Mutex
}

// NewCallRecorder wraps a provider with call recording.
func NewCallRecorder(provider springseq.Provider) *CallRecorder {
	return &CallRecorder{
		provider: provider,
		calls:    make([]RecordedCall, 0),
	}
}

// Call delegates to the wrapped provider and records the call.
func (r *CallRecorder) Call(ctx context.Context, messages []springseq.Message, temperature float32) (*springseq.ProviderResponse, error) {
	msgCopy := make([]springseq.Message, len(messages))
	copy(msgCopy, messages)

	r.mu.Lock()
	r.calls = append(r.calls, RecordedCall{
		Messages:    msgCopy,
		Temperature: temperature,
	})
	r.mu.Unlock()

	return r.provider.Call(ctx, messages, temperature)
}

// Name returns the wrapped provider's name.
func (r *CallRecorder) Name() string {
	return r.provider.Name()
}

// Calls returns a copy of all recorded calls.
func (r *CallRecorder) Calls() []RecordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	calls := make([]RecordedCall, len(r.calls))
	copy(calls, r.calls)
	return calls
}

// CallCount returns the number of calls recorded.
func (r *CallRecorder) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// LastCall returns the most recent call, or nil if no calls made.
func (r *CallRecorder) LastCall() *RecordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.calls) == 0 {
		return nil
	}
	call := r.calls[len(r.calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (r *CallRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = make([]RecordedCall, 0)
}

// LatencyProvider wraps a provider and adds artificial latency.
type LatencyProvider struct {
	provider springseq.Provider
	delay    time.Duration
}

// NewLatencyProvider wraps a provider with artificial delay.
// The delay is applied before each provider call and respects context cancellation.
func NewLatencyProvider(provider springseq.Provider, delay time.Duration) *LatencyProvider {
	return &LatencyProvider{
		provider: provider,
		delay:    delay,
	}
}

// Call adds latency then delegates to the wrapped provider.
func (p *LatencyProvider) Call(ctx context.Context, messages []springseq.Message, temperature float32) (*springseq.ProviderResponse, error) {
	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", springseq.ErrTransport, ctx.Err())
		}
	}
	return p.provider.Call(ctx, messages, temperature)
}

// Name returns the wrapped provider's name.
func (p *LatencyProvider) Name() string {
	return p.provider.Name()
}

// Collect drains an operation's notifications until the channel closes.
func Collect(op *springseq.Operation) []springseq.Notification {
	var notes []springseq.Notification
	for n := range op.Events() {
		notes = append(notes, n)
	}
	return notes
}

// ProgressValues returns the progress percentages in notes, in order.
func ProgressValues(notes []springseq.Notification) []int {
	var values []int
	for _, n := range notes {
		if n.Kind == springseq.KindProgress {
			values = append(values, n.Progress)
		}
	}
	return values
}

// StatusLines returns the status lines in notes, in order.
func StatusLines(notes []springseq.Notification) []string {
	var lines []string
	for _, n := range notes {
		if n.Kind == springseq.KindStatus {
			lines = append(lines, n.Status)
		}
	}
	return lines
}
