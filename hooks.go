package springseq

import "github.com/zoobzio/capitan"

// Signals for hook events.
var (
	OperationDispatched   = capitan.NewSignal("springseq.operation.dispatched", "Operation dispatched")
	OperationSucceeded    = capitan.NewSignal("springseq.operation.succeeded", "Operation succeeded")
	OperationFailed       = capitan.NewSignal("springseq.operation.failed", "Operation failed")
	OperationCancelled    = capitan.NewSignal("springseq.operation.cancelled", "Operation cancelled")
	StateChanged          = capitan.NewSignal("springseq.state.changed", "Pipeline state changed")
	AttemptStarted        = capitan.NewSignal("springseq.attempt.started", "Provider attempt started")
	AttemptFailed         = capitan.NewSignal("springseq.attempt.failed", "Provider attempt failed")
	SequenceInvalid       = capitan.NewSignal("springseq.sequence.invalid", "Generated sequence failed validation")
	ProviderCallStarted   = capitan.NewSignal("springseq.provider.call.started", "Provider call started")
	ProviderCallCompleted = capitan.NewSignal("springseq.provider.call.completed", "Provider call completed")
	ProviderCallFailed    = capitan.NewSignal("springseq.provider.call.failed", "Provider call failed")
)

// Signals lists every signal, for subscribers that want all of them.
var Signals = []capitan.Signal{
	OperationDispatched,
	OperationSucceeded,
	OperationFailed,
	OperationCancelled,
	StateChanged,
	AttemptStarted,
	AttemptFailed,
	SequenceInvalid,
	ProviderCallStarted,
	ProviderCallCompleted,
	ProviderCallFailed,
}

// Keys for hook event fields.
var (
	// Operation identification.
	OperationIDKey = capitan.NewStringKey("springseq.operation.id")
	IntentKey      = capitan.NewStringKey("springseq.intent")
	StateKey       = capitan.NewStringKey("springseq.state")
	TemperatureKey = capitan.NewFloat64Key("springseq.temperature")

	// Retry loop.
	AttemptKey     = capitan.NewIntKey("springseq.attempt")
	MaxAttemptsKey = capitan.NewIntKey("springseq.attempt.max")
	DelayMsKey     = capitan.NewIntKey("springseq.retry.delay.ms")

	// Outcome.
	RowsKey     = capitan.NewIntKey("springseq.rows")
	MessageKey  = capitan.NewStringKey("springseq.message")
	ResponseKey = capitan.NewStringKey("springseq.response")

	// Error information.
	ErrorKey     = capitan.NewStringKey("springseq.error")
	ErrorTypeKey = capitan.NewStringKey("springseq.error.type")

	// Provider information.
	ProviderKey = capitan.NewStringKey("springseq.provider")
	ModelKey    = capitan.NewStringKey("springseq.model")

	// Provider metrics.
	PromptTokensKey     = capitan.NewIntKey("springseq.tokens.prompt")
	CompletionTokensKey = capitan.NewIntKey("springseq.tokens.completion")
	TotalTokensKey      = capitan.NewIntKey("springseq.tokens.total")
	DurationMsKey       = capitan.NewIntKey("springseq.duration.ms")
	HTTPStatusCodeKey   = capitan.NewIntKey("springseq.http.status.code")
)
