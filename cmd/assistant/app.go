package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"assistant/pkg/admission"
	"assistant/pkg/catalog"
	"assistant/pkg/config"
	"assistant/pkg/dispatch"
	"assistant/pkg/exec"
	"assistant/pkg/imagegen"
	"assistant/pkg/logx"
	"assistant/pkg/persistence"
	"assistant/pkg/pipeline"
	"assistant/pkg/upstream"
	"assistant/pkg/upstream/middleware/metrics"
	"assistant/pkg/upstream/middleware/resilience/circuit"
	"assistant/pkg/upstream/middleware/resilience/ratelimit"
	"assistant/pkg/version"
)

// app holds everything a command needs to resolve requests.
type app struct {
	cfg          *config.Config
	registry     *prometheus.Registry
	catalog      *catalog.Store
	store        *persistence.SQLiteStore
	resolver     *pipeline.Resolver
	overridePath string
	logger       *logx.Logger
}

// newApp loads config and secrets, opens the store, and wires the pipeline.
func newApp(ctx context.Context, opts *globalOptions) (*app, error) {
	logger := logx.NewLogger("assistant")
	if opts.debug {
		logx.SetDebugConfig(true)
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	config.Set(cfg)

	if password := os.Getenv(config.EnvPassword); password != "" && config.SecretsFileExists(opts.projectDir) {
		if err := config.UnlockSecrets(opts.projectDir, password); err != nil {
			return nil, fmt.Errorf("failed to unlock secrets: %w", err)
		}
	}

	registry := metrics.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	breaker := circuit.New(circuit.Config{
		FailureThreshold: cfg.Breaker.Threshold,
		SuccessThreshold: circuit.DefaultConfig.SuccessThreshold,
		Cooldown:         cfg.Breaker.Cooldown.Std(),
	}, circuit.OnStateChange(func(from, to circuit.State) {
		logger.Warn("🔌 upstream breaker %s -> %s", from, to)
		recorder.SetBreakerOpen(to == circuit.Open)
	}))
	circuit.SetShared(breaker)

	catalogStore := catalog.NewStore(catalog.Default())
	overridePath := inProject(opts.projectDir, cfg.Catalog.OverridePath)
	if overridePath != "" {
		c, err := catalog.LoadFile(overridePath)
		switch {
		case err == nil:
			catalogStore.Swap(c)
			logger.Info("Loaded catalog override from %s", overridePath)
		case errors.Is(err, os.ErrNotExist):
			logger.Info("Catalog override %s not found, using built-in catalog", overridePath)
		default:
			return nil, fmt.Errorf("failed to load catalog override: %w", err)
		}
	}

	storePath := inProject(opts.projectDir, cfg.Store.Path)
	if err := os.MkdirAll(filepath.Dir(storePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	store, err := persistence.OpenSQLite(ctx, storePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	executor, err := upstream.NewExecutorFromConfig(cfg, breaker, recorder)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create upstream: %w", err)
	}

	launcher := exec.NewLocalLauncher(exec.Opts{Timeout: cfg.Dispatch.LaunchTimeout.Std()})
	d, err := dispatch.New(dispatch.Options{
		Catalog:  catalogStore,
		Launcher: launcher,
		Users:    store,
		Images:   newImageClient(cfg, breaker, logger),
		Root:     inProject(opts.projectDir, cfg.Dispatch.WorkspaceDir),
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	resolver, err := pipeline.New(pipeline.Options{
		Admission: admission.NewController(admission.Config{
			Window:    cfg.Admission.Window.Std(),
			BaseLimit: cfg.Admission.BaseLimit,
		}),
		Upstream:        executor,
		Dispatcher:      d,
		Users:           store,
		Catalog:         catalogStore,
		Recorder:        recorder,
		MaxPromptTokens: cfg.Upstream.MaxPromptTokens,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	logger.Info("Ready: %s, provider %s (%s)", version.String(), cfg.Upstream.Provider, cfg.Upstream.Model)
	return &app{
		cfg:          cfg,
		registry:     registry,
		catalog:      catalogStore,
		store:        store,
		resolver:     resolver,
		overridePath: overridePath,
		logger:       logger,
	}, nil
}

// newImageClient returns nil when no Gemini key is available, which turns image requests into a
// polite failure.
func newImageClient(cfg *config.Config, breaker circuit.Breaker, logger *logx.Logger) imagegen.Client {
	key, err := config.GetAPIKey(config.ProviderGoogle)
	if err != nil {
		logger.Info("Image generation disabled: %v", err)
		return nil
	}
	return imagegen.NewGeminiClient(key, imagegen.Options{
		Model:   cfg.Image.Model,
		Timeout: cfg.Image.Timeout.Std(),
		Breaker: breaker,
		Limiter: ratelimit.NewLimiter(cfg.Image.RequestsPerSecond),
	})
}

func (r *app) Close() error {
	return r.store.Close()
}

// inProject anchors a relative path at the project directory.
func inProject(projectDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectDir, path)
}
