package metrics

import (
	"context"
	"time"

	"assistant/pkg/logx"
	"assistant/pkg/upstream/llm"
	"assistant/pkg/upstream/llmerrors"
	"assistant/pkg/utils"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// UsageExtractor estimates token usage for one call.
type UsageExtractor func(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int)

// DefaultUsageExtractor counts tokens with tiktoken.
func DefaultUsageExtractor(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int) {
	return utils.CountTokensSimple(req.Text()), utils.CountTokensSimple(resp.Content)
}

// Middleware records latency, token usage and outcome of every call it wraps.
func Middleware(recorder Recorder, usageExtractor UsageExtractor, logger *logx.Logger) llm.Middleware {
	if usageExtractor == nil {
		usageExtractor = DefaultUsageExtractor
	}
	if logger == nil {
		logger = logx.NewLogger("metrics")
	}

	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				model := next.GetModelName()

				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				var promptTokens, completionTokens int
				errorType := ""
				if err == nil {
					promptTokens, completionTokens = usageExtractor(req, resp)
				} else {
					errorType = llmerrors.TypeOf(err).String()
					logger.Debug("Upstream call to %s failed after %v: %v", model, duration, err)
				}

				recorder.ObserveRequest(model, promptTokens, completionTokens, err == nil, errorType, duration)
				return resp, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			next.GetModelName,
		)
	}
}
