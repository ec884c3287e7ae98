package springseq

import (
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/pipz"
)

// Pipeline defaults.
const (
	DefaultMaxRetries     = 3
	DefaultBackoffBase    = time.Second
	DefaultAttemptTimeout = 60 * time.Second
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMaxRetries sets the attempt budget per operation. Values below 1 are ignored.
func WithMaxRetries(n int) Option {
	return func(p *Pipeline) {
		if n >= 1 {
			p.maxRetries = n
		}
	}
}

// WithBackoffBase sets the first retry delay. The delay doubles after each
// failed attempt: base, 2*base, 4*base, ...
func WithBackoffBase(d time.Duration) Option {
	return func(p *Pipeline) {
		if d >= 0 {
			p.backoffBase = d
		}
	}
}

// WithTimeout bounds a single provider round-trip. An attempt that runs
// past d fails as a transport error and is retried like one.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.attemptTimeout = d
		}
	}
}

// WithTemperature sets the sampling temperature. Zero keeps the default.
func WithTemperature(t float32) Option {
	return func(p *Pipeline) {
		if t != 0 {
			p.temperature = t
		}
	}
}

// WithMemory shares an existing conversation memory with the pipeline.
func WithMemory(m *Memory) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.memory = m
		}
	}
}

// WithExtractor sets the extractor used by Submit.
func WithExtractor(e *Extractor) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.extractor = e
		}
	}
}

// WithClock sets the clock used for backoff sleeps, attempt timeouts and timestamps.
func WithClock(clock clockz.Clock) Option {
	return func(p *Pipeline) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithHistoryLimit bounds the request history log.
func WithHistoryLimit(n int) Option {
	return func(p *Pipeline) {
		p.history = newHistory(n)
	}
}

// Connector identities.
var (
	circuitBreakerID = pipz.NewIdentity("springseq.circuit-breaker", "Fails attempts fast while the provider is unhealthy")
	rateLimitID      = pipz.NewIdentity("springseq.rate-limit", "Throttles provider attempts")
)

// WithCircuitBreaker wraps each attempt in a circuit breaker.
// After 'failures' consecutive failures, the circuit opens for 'recovery' duration
// and attempts fail fast as transport errors.
func WithCircuitBreaker(failures int, recovery time.Duration) Option {
	return func(p *Pipeline) {
		p.wrappers = append(p.wrappers, func(chain pipz.Chainable[*Request]) pipz.Chainable[*Request] {
			return pipz.NewCircuitBreaker(circuitBreakerID, chain, failures, recovery).WithClock(p.clock)
		})
	}
}

// WithRateLimit throttles attempts.
// rps = requests per second, burst = burst capacity.
func WithRateLimit(rps float64, burst int) Option {
	return func(p *Pipeline) {
		p.wrappers = append(p.wrappers, func(chain pipz.Chainable[*Request]) pipz.Chainable[*Request] {
			return pipz.NewRateLimiter(rateLimitID, rps, burst, chain).WithClock(p.clock)
		})
	}
}

// WithErrorHandler adds a handler that receives every failed attempt,
// after the pipeline has reported it. The handler observes; its own
// errors do not change the outcome.
func WithErrorHandler(handler pipz.Chainable[*pipz.Error[*Request]]) Option {
	return func(p *Pipeline) {
		if handler != nil {
			p.errorHandlers = append(p.errorHandlers, handler)
		}
	}
}

// WithFallback adds a provider to try once every earlier provider has
// used up its attempts. Each fallback gets its own attempt budget.
// Malformed responses end the operation without falling back.
func WithFallback(provider Provider) Option {
	return func(p *Pipeline) {
		if provider != nil {
			p.fallbacks = append(p.fallbacks, provider)
		}
	}
}
