// Package config provides configuration loading, validation, and secrets management for the assistant.
// It handles JSON config files, environment variable substitution, and environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"assistant/pkg/logx"
)

// Provider names accepted by upstream.provider.
const (
	ProviderGoogle    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderMock      = "mock"
)

// Secret and environment variable names.
const (
	EnvGoogleAPIKey    = "GEMINI_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOllamaHost      = "OLLAMA_HOST"
	EnvPassword        = "ASSISTANT_PASSWORD"
	EnvConfigPath      = "ASSISTANT_CONFIG"

	envOverridePrefix = "ASSISTANT_"
)

const (
	DefaultConfigPath = "config/assistant.json"
	ProjectConfigDir  = ".assistant"
)

// Duration is a JSON string such as "30s" or "10m".
type Duration string

// Std parses the duration. Invalid values are rejected by validation, so callers may ignore errors.
func (d Duration) Std() time.Duration {
	v, err := time.ParseDuration(string(d))
	if err != nil {
		return 0
	}
	return v
}

// AdmissionConfig controls the per-caller adaptive rate limiter.
type AdmissionConfig struct {
	Window    Duration `json:"window"`
	BaseLimit int      `json:"base_limit"`
}

// BreakerConfig controls the global upstream circuit breaker.
type BreakerConfig struct {
	Threshold int      `json:"threshold"`
	Cooldown  Duration `json:"cooldown"`
}

// RetryConfig controls backoff for transient upstream failures.
type RetryConfig struct {
	MaxAttempts  int      `json:"max_attempts"`
	InitialDelay Duration `json:"initial_delay"`
	MaxDelay     Duration `json:"max_delay"`
}

// UpstreamConfig selects and tunes the language model provider.
type UpstreamConfig struct {
	Provider          string   `json:"provider"`
	Model             string   `json:"model"`
	Timeout           Duration `json:"timeout"`
	MaxPromptTokens   int      `json:"max_prompt_tokens"`
	MaxOutputTokens   int      `json:"max_output_tokens"`
	CacheTTL          Duration `json:"cache_ttl"`
	RequestsPerSecond float64  `json:"requests_per_second"`
	OllamaHost        string   `json:"ollama_host"`
}

// ImageConfig tunes the image-generation client.
type ImageConfig struct {
	Model             string   `json:"model"`
	Timeout           Duration `json:"timeout"`
	RequestsPerSecond float64  `json:"requests_per_second"`
}

// DispatchConfig bounds handler side effects.
type DispatchConfig struct {
	WorkspaceDir  string   `json:"workspace_dir"`
	LaunchTimeout Duration `json:"launch_timeout"`
}

type StoreConfig struct {
	Path string `json:"path"`
}

type ServerConfig struct {
	Addr string `json:"addr"`
}

type CatalogConfig struct {
	OverridePath string `json:"override_path"`
}

// Config is the top-level assistant configuration.
type Config struct {
	Admission *AdmissionConfig `json:"admission"`
	Breaker   *BreakerConfig   `json:"breaker"`
	Retry     *RetryConfig     `json:"retry"`
	Upstream  *UpstreamConfig  `json:"upstream"`
	Image     *ImageConfig     `json:"image"`
	Dispatch  *DispatchConfig  `json:"dispatch"`
	Store     *StoreConfig     `json:"store"`
	Server    *ServerConfig    `json:"server"`
	Catalog   *CatalogConfig   `json:"catalog"`
}

var envVarRegex = regexp.MustCompile(`\$\{[^}]+\}`)

var (
	config *Config
	mu     sync.RWMutex

	logger     *logx.Logger
	loggerOnce sync.Once
)

func getLogger() *logx.Logger {
	loggerOnce.Do(func() {
		logger = logx.NewLogger("config")
	})
	return logger
}

// LogInfo logs through the config component logger.
func LogInfo(format string, args ...any) {
	getLogger().Info(format, args...)
}

// Get returns the active configuration, or the defaults when none was loaded.
func Get() *Config {
	mu.RLock()
	cfg := config
	mu.RUnlock()
	if cfg != nil {
		return cfg
	}
	return Default()
}

// Set installs cfg as the active configuration.
func Set(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	config = cfg
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig reads a JSON config file, substitutes ${VAR} placeholders, applies
// ASSISTANT_* environment overrides and defaults, and validates the result.
// A missing file yields the defaults with overrides applied.
func LoadConfig(configPath string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		dataStr := envVarRegex.ReplaceAllStringFunc(string(data), func(match string) string {
			envVar := match[2 : len(match)-1]
			if value := os.Getenv(envVar); value != "" {
				return value
			}
			return match
		})
		if err := json.Unmarshal([]byte(dataStr), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	case os.IsNotExist(err):
		LogInfo("Config file %s not found, using defaults", configPath)
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	v := reflect.ValueOf(cfg).Elem()
	applyEnvOverridesRecursive(v, v.Type(), envOverridePrefix)
}

// applyEnvOverridesRecursive maps ASSISTANT_<SECTION>_<FIELD> onto the json tag path.
func applyEnvOverridesRecursive(v reflect.Value, t reflect.Type, prefix string) {
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		jsonTag := fieldType.Tag.Get("json")
		if jsonTag == "" || jsonTag == "-" {
			continue
		}

		fieldName := strings.Split(jsonTag, ",")[0]
		envKey := strings.ToUpper(prefix + fieldName)

		if field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct {
			if field.IsNil() {
				continue
			}
			elem := field.Elem()
			applyEnvOverridesRecursive(elem, elem.Type(), envKey+"_")
			continue
		}

		if envValue := os.Getenv(envKey); envValue != "" {
			setFieldFromEnv(field, envValue)
		}
	}
}

func setFieldFromEnv(field reflect.Value, envValue string) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int:
		if val, err := strconv.Atoi(strings.TrimSpace(envValue)); err == nil {
			field.SetInt(int64(val))
		}
	case reflect.Float64:
		if val, err := strconv.ParseFloat(strings.TrimSpace(envValue), 64); err == nil {
			field.SetFloat(val)
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Admission == nil {
		cfg.Admission = &AdmissionConfig{}
	}
	if cfg.Admission.Window == "" {
		cfg.Admission.Window = "60s"
	}
	if cfg.Admission.BaseLimit == 0 {
		cfg.Admission.BaseLimit = 3
	}

	if cfg.Breaker == nil {
		cfg.Breaker = &BreakerConfig{}
	}
	if cfg.Breaker.Threshold == 0 {
		cfg.Breaker.Threshold = 5
	}
	if cfg.Breaker.Cooldown == "" {
		cfg.Breaker.Cooldown = "10m"
	}

	if cfg.Retry == nil {
		cfg.Retry = &RetryConfig{}
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 5
	}
	if cfg.Retry.InitialDelay == "" {
		cfg.Retry.InitialDelay = "2s"
	}
	if cfg.Retry.MaxDelay == "" {
		cfg.Retry.MaxDelay = "60s"
	}

	if cfg.Upstream == nil {
		cfg.Upstream = &UpstreamConfig{}
	}
	if cfg.Upstream.Provider == "" {
		cfg.Upstream.Provider = ProviderGoogle
	}
	if cfg.Upstream.Model == "" {
		cfg.Upstream.Model = defaultModelFor(cfg.Upstream.Provider)
	}
	if cfg.Upstream.Timeout == "" {
		cfg.Upstream.Timeout = "30s"
	}
	if cfg.Upstream.MaxPromptTokens == 0 {
		cfg.Upstream.MaxPromptTokens = 2000
	}
	if cfg.Upstream.MaxOutputTokens == 0 {
		cfg.Upstream.MaxOutputTokens = 1024
	}
	if cfg.Upstream.CacheTTL == "" {
		cfg.Upstream.CacheTTL = "5m"
	}
	if cfg.Upstream.RequestsPerSecond == 0 {
		cfg.Upstream.RequestsPerSecond = 5
	}
	if cfg.Upstream.OllamaHost == "" {
		if host := os.Getenv(EnvOllamaHost); host != "" {
			cfg.Upstream.OllamaHost = host
		} else {
			cfg.Upstream.OllamaHost = "http://localhost:11434"
		}
	}

	if cfg.Image == nil {
		cfg.Image = &ImageConfig{}
	}
	if cfg.Image.Model == "" {
		cfg.Image.Model = "gemini-2.0-flash-preview-image-generation"
	}
	if cfg.Image.Timeout == "" {
		cfg.Image.Timeout = "60s"
	}
	if cfg.Image.RequestsPerSecond == 0 {
		cfg.Image.RequestsPerSecond = 1
	}

	if cfg.Dispatch == nil {
		cfg.Dispatch = &DispatchConfig{}
	}
	if cfg.Dispatch.WorkspaceDir == "" {
		cfg.Dispatch.WorkspaceDir = "workspace"
	}
	if cfg.Dispatch.LaunchTimeout == "" {
		cfg.Dispatch.LaunchTimeout = "10s"
	}

	if cfg.Store == nil {
		cfg.Store = &StoreConfig{}
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = ProjectConfigDir + "/assistant.db"
	}

	if cfg.Server == nil {
		cfg.Server = &ServerConfig{}
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}

	if cfg.Catalog == nil {
		cfg.Catalog = &CatalogConfig{}
	}
}

func defaultModelFor(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderAnthropic:
		return "claude-3-5-haiku-latest"
	case ProviderOllama:
		return "llama3.1:8b"
	case ProviderMock:
		return "mock"
	default:
		return "gemini-2.0-flash"
	}
}

func validateConfig(cfg *Config) error {
	durations := map[string]Duration{
		"admission.window":        cfg.Admission.Window,
		"breaker.cooldown":        cfg.Breaker.Cooldown,
		"retry.initial_delay":     cfg.Retry.InitialDelay,
		"retry.max_delay":         cfg.Retry.MaxDelay,
		"upstream.timeout":        cfg.Upstream.Timeout,
		"upstream.cache_ttl":      cfg.Upstream.CacheTTL,
		"image.timeout":           cfg.Image.Timeout,
		"dispatch.launch_timeout": cfg.Dispatch.LaunchTimeout,
	}
	for name, d := range durations {
		v, err := time.ParseDuration(string(d))
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", name, d, err)
		}
		if v < 0 {
			return fmt.Errorf("%s: must not be negative", name)
		}
	}

	if cfg.Admission.BaseLimit < 1 {
		return fmt.Errorf("admission.base_limit must be at least 1, got %d", cfg.Admission.BaseLimit)
	}
	if cfg.Breaker.Threshold < 1 {
		return fmt.Errorf("breaker.threshold must be at least 1, got %d", cfg.Breaker.Threshold)
	}
	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Upstream.RequestsPerSecond < 0 || cfg.Image.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}

	switch cfg.Upstream.Provider {
	case ProviderGoogle, ProviderOpenAI, ProviderAnthropic, ProviderOllama, ProviderMock:
	default:
		return fmt.Errorf("unknown upstream provider: %s", cfg.Upstream.Provider)
	}
	return nil
}

// GetAPIKey returns the credential for a provider. Ollama returns its host URL instead.
func GetAPIKey(provider string) (string, error) {
	var envVar string
	switch provider {
	case ProviderGoogle:
		envVar = EnvGoogleAPIKey
	case ProviderOpenAI:
		envVar = EnvOpenAIAPIKey
	case ProviderAnthropic:
		envVar = EnvAnthropicAPIKey
	case ProviderOllama:
		return Get().Upstream.OllamaHost, nil
	case ProviderMock:
		return "", nil
	default:
		return "", fmt.Errorf("unknown provider: %s", provider)
	}

	key, err := GetSecret(envVar)
	if err == nil && key != "" {
		return key, nil
	}
	return "", fmt.Errorf("API key not found: %s not found in secrets file or environment variables", envVar)
}

// GetServerPassword returns the HTTP basic-auth password: the in-memory project
// password, then ASSISTANT_PASSWORD, then "" (auth disabled).
func GetServerPassword() string {
	if password := GetProjectPassword(); password != "" {
		return password
	}
	return os.Getenv(EnvPassword)
}
