package main

import (
	"context"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/springseq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// forwardEvents hooks every pipeline and provider signal and writes it to
// log. The returned func detaches the hooks.
func forwardEvents(log *zap.Logger) func() {
	closers := make([]func(), 0, len(springseq.Signals))
	for _, sig := range springseq.Signals {
		level := signalLevel(sig)
		listener := capitan.Hook(sig, func(_ context.Context, e *capitan.Event) {
			if ce := log.Check(level, e.Signal().Name()); ce != nil {
				ce.Write(eventFields(e)...)
			}
		})
		closers = append(closers, func() { listener.Close() })
	}
	return func() {
		for _, c := range closers {
			c()
		}
	}
}

func signalLevel(sig capitan.Signal) zapcore.Level {
	switch sig {
	case springseq.OperationFailed, springseq.AttemptFailed,
		springseq.SequenceInvalid, springseq.ProviderCallFailed:
		return zapcore.WarnLevel
	case springseq.OperationDispatched, springseq.OperationSucceeded, springseq.OperationCancelled:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// eventFields copies the known keys of e into zap fields.
func eventFields(e *capitan.Event) []zap.Field {
	var fields []zap.Field

	if v, ok := springseq.OperationIDKey.From(e); ok {
		fields = append(fields, zap.String("operation_id", v))
	}
	if v, ok := springseq.IntentKey.From(e); ok {
		fields = append(fields, zap.String("intent", v))
	}
	if v, ok := springseq.StateKey.From(e); ok {
		fields = append(fields, zap.String("state", v))
	}
	if v, ok := springseq.TemperatureKey.From(e); ok {
		fields = append(fields, zap.Float64("temperature", v))
	}
	if v, ok := springseq.AttemptKey.From(e); ok {
		fields = append(fields, zap.Int("attempt", v))
	}
	if v, ok := springseq.MaxAttemptsKey.From(e); ok {
		fields = append(fields, zap.Int("max_attempts", v))
	}
	if v, ok := springseq.DelayMsKey.From(e); ok {
		fields = append(fields, zap.Int("delay_ms", v))
	}
	if v, ok := springseq.RowsKey.From(e); ok {
		fields = append(fields, zap.Int("rows", v))
	}
	if v, ok := springseq.MessageKey.From(e); ok && v != "" {
		fields = append(fields, zap.String("message", v))
	}
	if v, ok := springseq.ErrorKey.From(e); ok {
		fields = append(fields, zap.String("error", v))
	}
	if v, ok := springseq.ErrorTypeKey.From(e); ok {
		fields = append(fields, zap.String("error_type", v))
	}
	if v, ok := springseq.ProviderKey.From(e); ok {
		fields = append(fields, zap.String("provider", v))
	}
	if v, ok := springseq.ModelKey.From(e); ok {
		fields = append(fields, zap.String("model", v))
	}
	if v, ok := springseq.TotalTokensKey.From(e); ok {
		fields = append(fields, zap.Int("total_tokens", v))
	}
	if v, ok := springseq.DurationMsKey.From(e); ok {
		fields = append(fields, zap.Int("duration_ms", v))
	}
	if v, ok := springseq.HTTPStatusCodeKey.From(e); ok {
		fields = append(fields, zap.Int("http_status", v))
	}
	if v, ok := springseq.ResponseKey.From(e); ok && v != "" {
		fields = append(fields, zap.String("response", v))
	}
	return fields
}
