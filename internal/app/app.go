// Package app wires configuration to adapters, use cases, and lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"GroupWatch/internal/config"
	"GroupWatch/internal/domain"
	"GroupWatch/internal/infrastructure/extractor"
	"GroupWatch/internal/infrastructure/llm"
	"GroupWatch/internal/infrastructure/storage"
	"GroupWatch/internal/infrastructure/telegram"
	"GroupWatch/internal/logging"
	"GroupWatch/internal/metrics"
	"GroupWatch/internal/ports"
	"GroupWatch/internal/retry"
	"GroupWatch/internal/usecase"
)

// staticSourceProvider serves the sources enabled in configuration.
type staticSourceProvider struct {
	sources []domain.SourceConfig
}

var _ ports.SourceProvider = (*staticSourceProvider)(nil)

func (p *staticSourceProvider) Sources(ctx context.Context) ([]domain.SourceConfig, error) {
	return p.sources, nil
}

// Application owns the orchestrator and the resources behind it.
type Application struct {
	cfg          config.Config
	logger       *slog.Logger
	orchestrator *usecase.Orchestrator
	store        ports.PostStore
	closeStore   func()
}

// New builds a runnable application instance. The store connection is the
// only resource acquired here; Close releases it.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.NewWithOptions(logging.Options{
			Level:      cfg.Logging.Level,
			FilePath:   cfg.Logging.FilePath,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		})
	}

	store, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		baseLogger.Warn("llm api key not set, classification will degrade to defaults")
	}
	llmClient := llm.NewClient(cfg.LLM)

	notifier := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	if cfg.Notifications.Telegram.BotToken == "" {
		baseLogger.Warn("telegram bot token not set, notifications will fail and stay pending")
	}

	watch := make([]domain.Category, 0, len(cfg.Notifications.Watch))
	for _, name := range cfg.Notifications.Watch {
		watch = append(watch, domain.NormalizeCategory(name))
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Dedup:   usecase.NewDeduplicator(store, baseLogger.With("component", "dedup")),
		Cascade: usecase.NewCascade(llmClient, llmClient, baseLogger.With("component", "cascade")),
		Detectors: []usecase.FastPathDetector{
			usecase.NewMovingDetector(llmClient, baseLogger.With("component", "fastpath.moving")),
		},
		Gate:       usecase.NewDispatchGate(store, notifier, baseLogger.With("component", "dispatch")),
		Store:      store,
		Logger:     baseLogger.With("component", "pipeline"),
		MaxPostAge: cfg.Monitor.MaxPostAge.Std(),
		Watch:      watch,
	})

	orchestrator := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Extractor: extractor.NewHTMLExtractor(cfg.Monitor.ExtractTimeout.Std(),
			baseLogger.With("component", "extractor")),
		Pipeline:       pipeline,
		Sources:        &staticSourceProvider{sources: cfg.EnabledSources()},
		Logger:         baseLogger.With("component", "orchestrator"),
		Mode:           cfg.Monitor.Mode,
		MaxWorkers:     cfg.Monitor.MaxWorkers,
		ExtractTimeout: cfg.Monitor.ExtractTimeout.Std(),
		Retry: retry.Policy{
			MaxAttempts:     cfg.Monitor.RetryAttempts,
			InitialInterval: cfg.Monitor.RetryBackoff.Std(),
			MaxInterval:     cfg.Monitor.CheckInterval.Std(),
		},
		Stagger:       cfg.Monitor.StaggerInterval.Std(),
		CheckInterval: cfg.Monitor.CheckInterval.Std(),
	})

	if cfg.Metrics.Enabled {
		go metrics.Expose(cfg.Metrics.Addr, baseLogger.With("component", "metrics"))
	}

	return &Application{
		cfg:          cfg,
		logger:       baseLogger,
		orchestrator: orchestrator,
		store:        store,
		closeStore:   closeStore,
	}, nil
}

// Run executes monitor cycles until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	return a.orchestrator.Run(ctx)
}

// RunOnce executes a single cycle and reports its stats.
func (a *Application) RunOnce(ctx context.Context) (domain.CycleStats, error) {
	defer a.orchestrator.Close(context.Background())
	return a.orchestrator.RunCycle(ctx)
}

// Store exposes the post store for read commands.
func (a *Application) Store() ports.PostStore {
	return a.store
}

// Close releases the database connection.
func (a *Application) Close() {
	if a.closeStore != nil {
		a.closeStore()
	}
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (ports.PostStore, func(), error) {
	switch cfg.Driver {
	case "postgres":
		store, err := storage.NewPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "sqlite", "":
		store, err := storage.NewSQLite(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
