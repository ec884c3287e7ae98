package springseq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/pipz"
)

// State is the pipeline's lifecycle state.
type State string

// Pipeline states.
const (
	StateIdle      State = "idle"
	StatePreparing State = "preparing"
	StateSending   State = "sending"
	StateRetryWait State = "retry_wait"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Status is the terminal outcome of an operation.
type Status string

// Terminal statuses.
const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Progress checkpoints, in percent.
const (
	progressPrepared   = 10
	progressFirstSend  = 20
	progressSendStep   = 15
	progressLastSend   = 65
	progressReceived   = 70
	progressParsed     = 80
	progressTableBuilt = 90
	progressComplete   = 100
)

const (
	cancelledMessage   = "Operation cancelled"
	intentGeneration   = "generation"
	intentConversation = "conversation"
)

// NotificationKind distinguishes the three notification streams.
type NotificationKind int

// Notification kinds.
const (
	KindProgress NotificationKind = iota
	KindStatus
	KindTerminal
)

func (k NotificationKind) String() string {
	switch k {
	case KindProgress:
		return "progress"
	case KindStatus:
		return "status"
	case KindTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Notification is one ordered event of an operation.
type Notification struct {
	Kind        NotificationKind
	OperationID string
	Progress    int     // KindProgress: 0-100, non-decreasing
	Status      string  // KindStatus: human-readable status line
	Result      *Result // KindTerminal: the final result
}

// Result is the terminal outcome of an operation.
type Result struct {
	OperationID string
	Status      Status
	Generation  bool      // intent decided at dispatch
	Rows        []Row     // the table, or one chat row for conversational replies
	Sequence    *Sequence // set for successful generations
	Reply       string    // conversational reply text
	Message     string    // user-visible failure message, empty on success
	Raw         string    // raw completion text, if any arrived
	Provider    string    // provider that served the last attempt
	Attempts    int
	Err         error
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool {
	return r.Status == StatusSucceeded
}

// Operation is a single dispatched request. At most one operation per
// pipeline is live; dispatching another cancels it.
type Operation struct {
	id         string
	generation bool
	pipeline   *Pipeline
	cancelled  atomic.Bool
	abort      context.CancelFunc
	events     chan Notification
	done       chan struct{}
	result     Result
	progress   int
}

// ID returns the operation identifier.
func (o *Operation) ID() string { return o.id }

// Generation reports whether the utterance was classified as a generation request.
func (o *Operation) Generation() bool { return o.generation }

// Events returns the ordered notification stream. The final notification
// is always KindTerminal, after which the channel is closed. The channel
// is buffered for the whole operation, so it may be drained late or not at all.
func (o *Operation) Events() <-chan Notification { return o.events }

// Done is closed once the terminal result is available.
func (o *Operation) Done() <-chan struct{} { return o.done }

// Result blocks until the operation ends and returns its result.
func (o *Operation) Result() Result {
	<-o.done
	return o.result
}

// Wait blocks until the operation ends or ctx is done.
func (o *Operation) Wait(ctx context.Context) (Result, error) {
	select {
	case <-o.done:
		return o.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Cancel requests cooperative cancellation. The operation still delivers
// a terminal notification, with StatusCancelled unless it already finished.
func (o *Operation) Cancel() {
	o.pipeline.cancel(o)
}

// Cancelled reports whether cancellation was requested.
func (o *Operation) Cancelled() bool { return o.cancelled.Load() }

func (o *Operation) emit(n Notification) {
	n.OperationID = o.id
	o.events <- n
}

func (o *Operation) status(format string, args ...any) {
	o.emit(Notification{Kind: KindStatus, Status: fmt.Sprintf(format, args...)})
}

func (o *Operation) advance(pct int) {
	if pct <= o.progress {
		return
	}
	o.progress = pct
	o.emit(Notification{Kind: KindProgress, Progress: pct})
}

// Pipeline owns the request lifecycle: prompt composition, the network
// exchange with retries, backoff and provider fallback, response
// disambiguation and the conversation memory. It runs at most one operation at a time.
type Pipeline struct {
	provider       Provider
	extractor      *Extractor
	memory         *Memory
	history        *history
	clock          clockz.Clock
	fallbacks      []Provider
	chain          pipz.Chainable[*Request]
	wrappers       []func(pipz.Chainable[*Request]) pipz.Chainable[*Request]
	errorHandlers  []pipz.Chainable[*pipz.Error[*Request]]
	maxRetries     int
	backoffBase    time.Duration
	attemptTimeout time.Duration
	temperature    float32

	mu           sync.Mutex
	current      *Operation
	state        State
	lastResponse string
}

// NewPipeline creates a pipeline around provider.
func NewPipeline(provider Provider, opts ...Option) *Pipeline {
	p := &Pipeline{
		provider:       provider,
		extractor:      defaultExtractor,
		memory:         NewMemory(DefaultMemoryCapacity),
		history:        newHistory(DefaultHistoryLimit),
		clock:          clockz.RealClock,
		maxRetries:     DefaultMaxRetries,
		backoffBase:    DefaultBackoffBase,
		attemptTimeout: DefaultAttemptTimeout,
		temperature:    DefaultTemperature,
		state:          StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.chain = p.buildChain()
	return p
}

// Chain identities.
var (
	exchangeID       = pipz.NewIdentity("springseq.exchange", "Composes messages and runs the provider chain")
	composeID        = pipz.NewIdentity("springseq.compose-messages", "Renders the prompt into chat messages")
	fallbackID       = pipz.NewIdentity("springseq.fallback", "Moves to the next provider once one is exhausted")
	providerID       = pipz.NewIdentity("springseq.provider", "Attempt budget of one provider")
	selectID         = pipz.NewIdentity("springseq.select-provider", "Starts a provider's attempt budget")
	backoffID        = pipz.NewIdentity("springseq.backoff", "Retries failed attempts with exponential backoff")
	attemptErrorsID  = pipz.NewIdentity("springseq.attempt-errors", "Reports failed attempts")
	errorHandlersID  = pipz.NewIdentity("springseq.error-handlers", "Handlers run for each failed attempt")
	reportFailureID  = pipz.NewIdentity("springseq.report-failure", "Emits the attempt failure and the retry status")
	attemptID        = pipz.NewIdentity("springseq.attempt", "One provider round-trip")
	announceID       = pipz.NewIdentity("springseq.announce", "Opens an attempt and reports it")
	attemptTimeoutID = pipz.NewIdentity("springseq.attempt-timeout", "Bounds one provider round-trip")
	completionID     = pipz.NewIdentity("springseq.chat-completion", "Sends the messages to the provider")
)

// buildChain assembles the exchange chain: compose the messages once,
// then run each provider's attempt budget until one succeeds.
func (p *Pipeline) buildChain() pipz.Chainable[*Request] {
	compose := pipz.Apply(composeID, func(_ context.Context, req *Request) (*Request, error) {
		req.Messages = req.Prompt.Messages()
		return req, nil
	})

	served := p.providerChain(p.provider, false)
	if len(p.fallbacks) > 0 {
		chains := []pipz.Chainable[*Request]{served}
		for _, fb := range p.fallbacks {
			chains = append(chains, p.providerChain(fb, true))
		}
		served = pipz.NewFallback[*Request](fallbackID, chains...)
	}
	return pipz.NewSequence[*Request](exchangeID, compose, served)
}

// providerChain is the attempt budget of one provider:
//
//	select -> backoff(handle(announce -> wrappers(timeout(chat-completion))))
func (p *Pipeline) providerChain(provider Provider, fallback bool) pipz.Chainable[*Request] {
	name := provider.Name()

	call := pipz.Apply(completionID, func(ctx context.Context, req *Request) (*Request, error) {
		attempt, _ := req.counters()
		resp, err := provider.Call(ctx, req.Messages, req.Temperature)
		switch {
		case errors.Is(err, ErrMalformedResponse):
			// Not retried: the chain succeeds and exchange fails the operation.
			req.fail(attempt, err)
			return req, nil
		case err != nil:
			req.fail(attempt, err)
			return req, err
		}
		req.complete(attempt, resp)
		return req, nil
	})

	var attempt pipz.Chainable[*Request] = pipz.NewTimeout[*Request](attemptTimeoutID, call, p.attemptTimeout).WithClock(p.clock)
	for _, wrap := range p.wrappers {
		attempt = wrap(attempt)
	}
	attempt = pipz.NewSequence[*Request](attemptID, pipz.Effect(announceID, p.announce), attempt)

	handled := pipz.NewHandle[*Request](attemptErrorsID, attempt, p.errorHandler())
	retried := pipz.NewBackoff[*Request](backoffID, handled, p.maxRetries, p.backoffBase).WithClock(p.clock)

	sel := pipz.Effect(selectID, func(ctx context.Context, req *Request) error {
		if p.stopped(ctx, req.op) {
			return ErrCancelled
		}
		req.switchProvider(name)
		if fallback {
			req.op.status("Falling back to %s...", name)
		}
		return nil
	})
	return pipz.NewSequence[*Request](providerID, sel, retried)
}

// announce opens the next attempt and reports it.
func (p *Pipeline) announce(ctx context.Context, req *Request) error {
	op := req.op
	if p.stopped(ctx, op) {
		return ErrCancelled
	}
	attempt, _ := req.nextAttempt()
	hookCtx := context.WithoutCancel(ctx)

	p.setState(hookCtx, op, StateSending)
	op.status("Sending request (attempt %d/%d)...", attempt, req.MaxAttempts)
	op.advance(min(progressFirstSend+(attempt-1)*progressSendStep, progressLastSend))
	capitan.Info(hookCtx, AttemptStarted,
		OperationIDKey.Field(op.id),
		AttemptKey.Field(attempt),
		MaxAttemptsKey.Field(req.MaxAttempts),
		ProviderKey.Field(req.ProviderName()),
	)
	return nil
}

// errorHandler receives every failed attempt: the built-in report first,
// then any handlers added with WithErrorHandler.
func (p *Pipeline) errorHandler() pipz.Chainable[*pipz.Error[*Request]] {
	handlers := []pipz.Chainable[*pipz.Error[*Request]]{
		pipz.Effect(reportFailureID, p.reportFailure),
	}
	handlers = append(handlers, p.errorHandlers...)
	return pipz.NewSequence(errorHandlersID, handlers...)
}

// reportFailure emits AttemptFailed for a failed attempt and, when the
// provider has attempts left, announces the backoff delay.
func (p *Pipeline) reportFailure(ctx context.Context, perr *pipz.Error[*Request]) error {
	req := perr.InputData
	op := req.op
	if p.stopped(ctx, op) {
		return nil
	}
	attempt, providerAttempt := req.counters()
	cause := req.Err()
	if cause == nil {
		cause = attemptCause(perr, p.attemptTimeout)
		req.fail(attempt, cause)
	}
	hookCtx := context.WithoutCancel(ctx)

	capitan.Error(hookCtx, AttemptFailed,
		OperationIDKey.Field(op.id),
		AttemptKey.Field(attempt),
		ProviderKey.Field(req.ProviderName()),
		ErrorKey.Field(cause.Error()),
		ErrorTypeKey.Field("transport_error"),
	)
	op.status("Request error: %v", cause)

	if providerAttempt >= p.maxRetries {
		return nil
	}
	delay := p.backoffBase << (providerAttempt - 1)
	p.setState(hookCtx, op, StateRetryWait)
	op.status("Retrying in %s...", delay)
	return nil
}

// attemptCause classifies a failure that never reached the provider's
// error return: an attempt timeout or a connector rejecting the attempt.
func attemptCause(perr *pipz.Error[*Request], timeout time.Duration) error {
	if perr.Timeout {
		return fmt.Errorf("%w: attempt timed out after %s", ErrTransport, timeout)
	}
	return fmt.Errorf("%w: %w", ErrTransport, perr.Err)
}

// Memory returns the conversation memory.
func (p *Pipeline) Memory() *Memory { return p.memory }

// History returns a copy of the request history log, oldest first.
func (p *Pipeline) History() []HistoryRecord { return p.history.list() }

// ClearHistory empties the request history log.
func (p *Pipeline) ClearHistory() { p.history.clear() }

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LastResponse returns the raw text of the last successful completion.
func (p *Pipeline) LastResponse() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastResponse
}

// Current returns the live operation, or nil when idle.
func (p *Pipeline) Current() *Operation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Cancel cancels the live operation, if any.
func (p *Pipeline) Cancel() {
	if op := p.Current(); op != nil {
		op.Cancel()
	}
}

// Submit extracts parameters from utterance and dispatches it.
func (p *Pipeline) Submit(ctx context.Context, utterance string) *Operation {
	return p.Dispatch(ctx, utterance, p.extractor.Extract(utterance))
}

// Generate dispatches and waits for the terminal result. A non-nil error
// is the result's error: transport exhaustion, malformed response, no
// sequence, or cancellation.
func (p *Pipeline) Generate(ctx context.Context, utterance string, params Parameters) (Result, error) {
	op := p.Dispatch(ctx, utterance, params)
	result := op.Result()
	return result, result.Err
}

// Dispatch starts an operation for utterance and params, cancelling any
// operation still in flight. The prompt and its intent are fixed here;
// the returned operation's notifications start only after the superseded
// operation has delivered its terminal notification.
func (p *Pipeline) Dispatch(ctx context.Context, utterance string, params Parameters) *Operation {
	workCtx, abort := context.WithCancel(ctx)

	p.mu.Lock()
	prev := p.current
	if prev != nil {
		prev.cancelled.Store(true)
		prev.abort()
	}
	prompt := Compose(params, utterance, p.memory.Recent(MemoryWindow))
	op := &Operation{
		id:         uuid.New().String(),
		generation: prompt.Generation,
		pipeline:   p,
		abort:      abort,
		events:     make(chan Notification, 16+4*p.maxAttempts()),
		done:       make(chan struct{}),
	}
	p.current = op
	p.mu.Unlock()

	capitan.Info(ctx, OperationDispatched,
		OperationIDKey.Field(op.id),
		IntentKey.Field(intentName(op.generation)),
		ProviderKey.Field(p.provider.Name()),
		TemperatureKey.Field(float64(p.temperature)),
	)

	go p.run(workCtx, op, prev, prompt, params)
	return op
}

func (p *Pipeline) cancel(op *Operation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	op.cancelled.Store(true)
	op.abort()
}

// setState records a transition for the live operation only; a superseded
// operation no longer owns the pipeline state.
func (p *Pipeline) setState(ctx context.Context, op *Operation, state State) {
	p.mu.Lock()
	if p.current != op {
		p.mu.Unlock()
		return
	}
	p.state = state
	p.mu.Unlock()

	capitan.Info(ctx, StateChanged,
		OperationIDKey.Field(op.id),
		StateKey.Field(string(state)),
	)
}

// run is the worker: one goroutine per operation.
func (p *Pipeline) run(ctx context.Context, op *Operation, prev *Operation, prompt Prompt, params Parameters) {
	if prev != nil {
		<-prev.done
	}
	// Hooks must outlive a cancelled work context.
	hookCtx := context.WithoutCancel(ctx)

	started := p.clock.Now()
	result := p.exchange(ctx, hookCtx, op, prompt, params)
	result.OperationID = op.id
	result.Generation = op.generation

	p.history.add(HistoryRecord{
		OperationID: op.id,
		Timestamp:   started,
		Provider:    historyProvider(result.Provider, p.provider),
		Temperature: p.temperature,
		Generation:  op.generation,
		System:      prompt.System,
		User:        prompt.User,
		Status:      result.Status,
		Attempts:    result.Attempts,
		Duration:    p.clock.Now().Sub(started),
	})

	p.finish(hookCtx, op, result)
}

// exchange runs the chain and builds the result. It never returns
// with progress below its final checkpoint; finish adds the 100.
func (p *Pipeline) exchange(ctx, hookCtx context.Context, op *Operation, prompt Prompt, params Parameters) Result {
	p.setState(hookCtx, op, StatePreparing)
	op.status("Preparing request...")
	op.advance(progressPrepared)

	req := &Request{
		Prompt:      prompt,
		Temperature: p.temperature,
		OperationID: op.id,
		MaxAttempts: p.maxAttempts(),
		op:          op,
	}
	_, err := p.chain.Process(ctx, req)
	attempts := req.Attempt()
	result := Result{Attempts: attempts, Provider: req.ProviderName()}

	if p.stopped(ctx, op) {
		return cancelledResult(attempts)
	}

	if err != nil {
		cause := req.Err()
		if cause == nil {
			cause = err
			var perr *pipz.Error[*Request]
			if errors.As(err, &perr) {
				cause = perr.Err
			}
		}
		result.Status = StatusFailed
		result.Message = fmt.Sprintf("Request error: %v", cause)
		result.Err = cause
		return result
	}

	if cause := req.Err(); cause != nil {
		capitan.Error(hookCtx, AttemptFailed,
			OperationIDKey.Field(op.id),
			AttemptKey.Field(attempts),
			ProviderKey.Field(req.ProviderName()),
			ErrorKey.Field(cause.Error()),
			ErrorTypeKey.Field("parse_error"),
		)
		op.status("Response parsing error: %v", cause)
		result.Status = StatusFailed
		result.Message = fmt.Sprintf("Response parsing error: %v", cause)
		result.Err = cause
		return result
	}

	response := req.Response()
	op.status("Processing response...")
	op.advance(progressReceived)

	result.Raw = response
	if op.generation {
		rows := ParseSequence(response)
		op.advance(progressParsed)
		if len(rows) == 0 {
			msg := ExtractErrorMessage(response)
			if msg == "" {
				msg = DefaultGenerationFailure
			}
			result.Status = StatusFailed
			result.Message = msg
			result.Err = fmt.Errorf("%w: %s", ErrNoSequence, msg)
			return result
		}

		op.status("Creating result table...")
		op.advance(progressTableBuilt)
		if err := ValidateSequence(rows); err != nil {
			capitan.Emit(hookCtx, SequenceInvalid,
				OperationIDKey.Field(op.id),
				RowsKey.Field(len(rows)),
				ErrorKey.Field(err.Error()),
			)
		}
		result.Rows = rows
	} else {
		result.Reply = response
		result.Rows = []Row{ChatRow(response)}
	}

	if !p.commit(op, FormatParameters(params), response) {
		return cancelledResult(attempts)
	}

	if op.generation {
		result.Sequence = &Sequence{
			Rows:       result.Rows,
			Parameters: params.Map(),
			CreatedAt:  p.clock.Now(),
		}
	}
	result.Status = StatusSucceeded
	return result
}

// commit records a successful exchange in shared state unless the
// operation was cancelled first. It reports whether the commit happened.
func (p *Pipeline) commit(op *Operation, summary, response string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if op.cancelled.Load() {
		return false
	}
	if strings.TrimSpace(summary) != "" {
		p.memory.Append(summary)
	}
	p.lastResponse = response
	return true
}

// stopped reports whether the operation was cancelled, either explicitly
// or through its context.
func (p *Pipeline) stopped(ctx context.Context, op *Operation) bool {
	return op.cancelled.Load() || ctx.Err() != nil
}

// maxAttempts is the attempt budget of one operation across all providers.
func (p *Pipeline) maxAttempts() int {
	return p.maxRetries * (1 + len(p.fallbacks))
}

func historyProvider(served string, primary Provider) string {
	if served != "" {
		return served
	}
	return primary.Name()
}

func cancelledResult(attempts int) Result {
	return Result{
		Status:   StatusCancelled,
		Message:  cancelledMessage,
		Attempts: attempts,
		Err:      ErrCancelled,
	}
}

// finish delivers the terminal notification and releases the pipeline slot.
func (p *Pipeline) finish(ctx context.Context, op *Operation, result Result) {
	terminal := StateSucceeded
	switch result.Status {
	case StatusFailed:
		terminal = StateFailed
	case StatusCancelled:
		terminal = StateCancelled
		op.status(cancelledMessage)
	}
	p.setState(ctx, op, terminal)

	op.advance(progressComplete)
	op.result = result
	res := result
	op.emit(Notification{Kind: KindTerminal, Result: &res})
	close(op.events)

	switch result.Status {
	case StatusSucceeded:
		capitan.Info(ctx, OperationSucceeded,
			OperationIDKey.Field(op.id),
			IntentKey.Field(intentName(op.generation)),
			RowsKey.Field(len(result.Rows)),
			AttemptKey.Field(result.Attempts),
		)
	case StatusFailed:
		capitan.Error(ctx, OperationFailed,
			OperationIDKey.Field(op.id),
			IntentKey.Field(intentName(op.generation)),
			MessageKey.Field(result.Message),
			AttemptKey.Field(result.Attempts),
			ResponseKey.Field(result.Raw),
		)
	case StatusCancelled:
		capitan.Info(ctx, OperationCancelled,
			OperationIDKey.Field(op.id),
			AttemptKey.Field(result.Attempts),
		)
	}

	p.setState(ctx, op, StateIdle)

	p.mu.Lock()
	if p.current == op {
		p.current = nil
	}
	p.mu.Unlock()

	op.abort()
	close(op.done)
}

func intentName(generation bool) string {
	if generation {
		return intentGeneration
	}
	return intentConversation
}
