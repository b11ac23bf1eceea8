// Package timeout bounds each upstream attempt with its own deadline.
package timeout

import (
	"context"
	"time"

	"assistant/pkg/upstream/llm"
)

// Middleware gives every call a fresh deadline of duration. Placed inside the
// retry middleware it bounds each attempt rather than the whole request.
func Middleware(duration time.Duration) llm.Middleware {
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				if duration <= 0 {
					return next.Complete(ctx, req)
				}
				timeoutCtx, cancel := context.WithTimeout(ctx, duration)
				defer cancel()

				return next.Complete(timeoutCtx, req)
			},
			next.GetModelName,
		)
	}
}
