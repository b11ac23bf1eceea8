// Package upstream calls the configured language model with a resilient middleware chain.
package upstream

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"assistant/pkg/logx"
	"assistant/pkg/upstream/llm"
	"assistant/pkg/upstream/llmerrors"
	"assistant/pkg/upstream/middleware/metrics"
	"assistant/pkg/upstream/middleware/resilience/circuit"
	"assistant/pkg/upstream/middleware/resilience/ratelimit"
	"assistant/pkg/upstream/middleware/resilience/retry"
	"assistant/pkg/upstream/middleware/resilience/timeout"
)

// DefaultAttemptTimeout bounds a single provider attempt.
const DefaultAttemptTimeout = 30 * time.Second

// Options configures an Executor. Zero values select the defaults.
type Options struct {
	Breaker         circuit.Breaker  // nil means circuit.Shared()
	Policy          *retry.Policy    // nil means retry.DefaultConfig
	Limiter         *rate.Limiter    // nil means unthrottled
	Recorder        metrics.Recorder // nil means metrics.Nop()
	Cache           *Cache           // nil disables caching
	Timeout         time.Duration
	MaxOutputTokens int
}

// Executor sends prompts through circuit -> retry -> timeout -> rate limit -> metrics -> provider.
type Executor struct {
	client          llm.Client
	breaker         circuit.Breaker
	cache           *Cache
	logger          *logx.Logger
	maxOutputTokens int
}

// NewExecutor wraps provider with the resilience chain.
func NewExecutor(provider llm.Client, opts Options) *Executor {
	if opts.Breaker == nil {
		opts.Breaker = circuit.Shared()
	}
	if opts.Policy == nil {
		opts.Policy = retry.NewPolicy(retry.DefaultConfig, nil)
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewLimiter(0)
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.Nop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultAttemptTimeout
	}
	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = llm.DefaultMaxTokens
	}

	client := llm.Chain(provider,
		circuit.Middleware(opts.Breaker),
		retry.Middleware(opts.Policy),
		timeout.Middleware(opts.Timeout),
		ratelimit.Middleware(opts.Limiter, opts.Recorder),
		metrics.Middleware(opts.Recorder, nil, nil),
	)

	return &Executor{
		client:          client,
		breaker:         opts.Breaker,
		cache:           opts.Cache,
		logger:          logx.NewLogger("upstream"),
		maxOutputTokens: opts.MaxOutputTokens,
	}
}

// Call sends prompt upstream and returns the model's text. It fails with *circuit.Error
// when the breaker is open, otherwise with *llmerrors.UpstreamError.
func (e *Executor) Call(ctx context.Context, prompt string) (string, error) {
	if cached, ok := e.cache.Get(prompt); ok {
		logx.Debug(ctx, "upstream", "cache hit for prompt (%d bytes)", len(prompt))
		return cached, nil
	}

	req := llm.NewPromptRequest(prompt)
	req.MaxTokens = e.maxOutputTokens

	resp, err := e.client.Complete(ctx, req)
	if err != nil {
		var circuitErr *circuit.Error
		if errors.As(err, &circuitErr) {
			e.logger.Warn("Upstream call short-circuited: %v", err)
			return "", err
		}
		var upErr *llmerrors.UpstreamError
		if !errors.As(err, &upErr) {
			upErr = &llmerrors.UpstreamError{Err: err, Status: llmerrors.StatusOf(err), Attempt: 1}
		}
		e.logger.Error("Upstream call failed: %v", upErr)
		return "", upErr
	}

	e.cache.Put(prompt, resp.Content)
	return resp.Content, nil
}

// Breaker exposes the breaker guarding this executor.
func (e *Executor) Breaker() circuit.Breaker {
	return e.breaker
}

// ModelName reports the provider model behind the chain.
func (e *Executor) ModelName() string {
	return e.client.GetModelName()
}
