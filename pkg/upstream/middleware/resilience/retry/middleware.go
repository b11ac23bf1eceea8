package retry

import (
	"context"
	"fmt"

	"assistant/pkg/logx"
	"assistant/pkg/upstream/llm"
	"assistant/pkg/upstream/llmerrors"
)

// Middleware retries retryable failures per policy. The final failure is returned as
// *llmerrors.UpstreamError carrying the last status and the attempt number.
func Middleware(policy *Policy) llm.Middleware {
	logger := logx.NewLogger("retry")

	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				var lastErr error
				attempt := 1

				for ; attempt <= policy.Config.MaxAttempts; attempt++ {
					if attempt > 1 {
						delay := policy.CalculateDelay(attempt)
						logger.Warn("Upstream error (status %d), retrying in %v (attempt %d/%d)",
							statusOf(lastErr), delay, attempt, policy.Config.MaxAttempts)
						if err := policy.Sleep(ctx, delay); err != nil {
							return llm.CompletionResponse{}, &llmerrors.UpstreamError{
								Err:     fmt.Errorf("retry cancelled: %w", err),
								Status:  statusOf(lastErr),
								Attempt: attempt - 1,
							}
						}
					}

					resp, err := next.Complete(ctx, req)
					if err == nil {
						return resp, nil
					}
					lastErr = err

					if !policy.ShouldRetry(err) || attempt >= policy.Config.MaxAttempts {
						break
					}
				}

				return llm.CompletionResponse{}, &llmerrors.UpstreamError{
					Err:     lastErr,
					Status:  statusOf(lastErr),
					Attempt: attempt,
				}
			},
			next.GetModelName,
		)
	}
}

// statusOf reads the classified status, falling back to a status code in the error text.
func statusOf(err error) int {
	if err == nil {
		return 0
	}
	if status := llmerrors.StatusOf(err); status != 0 {
		return status
	}
	return llmerrors.ExtractStatusCode(err.Error())
}
