// Package ratelimit throttles outbound calls to the upstream provider.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"assistant/pkg/upstream/llm"
	"assistant/pkg/upstream/middleware/metrics"
)

// NewLimiter returns a token bucket admitting perSecond calls with a burst of
// max(1, ceil(perSecond)). perSecond <= 0 disables throttling.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(perSecond)
	if float64(burst) < perSecond {
		burst++
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Middleware waits on limiter before each call and records the time spent queued.
func Middleware(limiter *rate.Limiter, recorder metrics.Recorder) llm.Middleware {
	if recorder == nil {
		recorder = metrics.Nop()
	}

	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				model := next.GetModelName()
				start := time.Now()
				if err := limiter.Wait(ctx); err != nil {
					recorder.IncThrottle(model, "rate_limit")
					return llm.CompletionResponse{}, fmt.Errorf("rate limiter wait: %w", err)
				}
				if waited := time.Since(start); waited > time.Millisecond {
					recorder.ObserveQueueWait(model, waited)
				}

				return next.Complete(ctx, req) //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			next.GetModelName,
		)
	}
}
