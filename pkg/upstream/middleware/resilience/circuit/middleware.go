package circuit

import (
	"context"

	"assistant/pkg/upstream/llm"
)

// Middleware rejects calls with *Error while the breaker is open and records
// the outcome of every call it lets through. Place it outermost so the breaker
// sees one outcome per request, after retries.
func Middleware(breaker Breaker) llm.Middleware {
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				if !breaker.Allow() {
					return llm.CompletionResponse{}, &Error{State: breaker.GetState()}
				}

				resp, err := next.Complete(ctx, req)
				breaker.Record(err == nil)

				return resp, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			next.GetModelName,
		)
	}
}
