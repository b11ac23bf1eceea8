package upstream

import (
	"fmt"

	"assistant/pkg/config"
	"assistant/pkg/upstream/internal/llmimpl/anthropic"
	"assistant/pkg/upstream/internal/llmimpl/google"
	"assistant/pkg/upstream/internal/llmimpl/ollama"
	"assistant/pkg/upstream/internal/llmimpl/openai"
	"assistant/pkg/upstream/llm"
	"assistant/pkg/upstream/middleware/metrics"
	"assistant/pkg/upstream/middleware/resilience/circuit"
	"assistant/pkg/upstream/middleware/resilience/ratelimit"
	"assistant/pkg/upstream/middleware/resilience/retry"
)

// NewProviderClient creates the raw client for the configured provider.
func NewProviderClient(cfg *config.UpstreamConfig) (llm.Client, error) {
	if cfg.Provider == config.ProviderMock {
		return NewOfflineClient(), nil
	}

	apiKey, err := config.GetAPIKey(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("failed to get API key for provider %s: %w", cfg.Provider, err)
	}

	switch cfg.Provider {
	case config.ProviderGoogle:
		return google.NewGeminiClientWithModel(apiKey, cfg.Model), nil
	case config.ProviderOpenAI:
		return openai.NewClientWithModel(apiKey, cfg.Model), nil
	case config.ProviderAnthropic:
		return anthropic.NewClaudeClientWithModel(apiKey, cfg.Model), nil
	case config.ProviderOllama:
		host := cfg.OllamaHost
		if host == "" {
			host = apiKey
		}
		return ollama.NewOllamaClientWithModel(host, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// NewExecutorFromConfig builds the provider client and its middleware chain from cfg.
func NewExecutorFromConfig(cfg *config.Config, breaker circuit.Breaker, recorder metrics.Recorder) (*Executor, error) {
	provider, err := NewProviderClient(cfg.Upstream)
	if err != nil {
		return nil, err
	}

	policy := retry.NewPolicy(retry.Config{
		MaxAttempts:   cfg.Retry.MaxAttempts,
		InitialDelay:  cfg.Retry.InitialDelay.Std(),
		MaxDelay:      cfg.Retry.MaxDelay.Std(),
		BackoffFactor: retry.DefaultConfig.BackoffFactor,
		MaxJitter:     retry.DefaultConfig.MaxJitter,
	}, nil)

	return NewExecutor(provider, Options{
		Breaker:         breaker,
		Policy:          policy,
		Limiter:         ratelimit.NewLimiter(cfg.Upstream.RequestsPerSecond),
		Recorder:        recorder,
		Cache:           NewCache(cfg.Upstream.CacheTTL.Std(), DefaultCacheEntries),
		Timeout:         cfg.Upstream.Timeout.Std(),
		MaxOutputTokens: cfg.Upstream.MaxOutputTokens,
	}), nil
}
