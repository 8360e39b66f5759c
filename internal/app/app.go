package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"ReviewRelay/internal/config"
	"ReviewRelay/internal/domain"
	"ReviewRelay/internal/infrastructure/bus"
	"ReviewRelay/internal/infrastructure/line"
	"ReviewRelay/internal/infrastructure/llm"
	"ReviewRelay/internal/infrastructure/origin"
	"ReviewRelay/internal/infrastructure/scheduler"
	"ReviewRelay/internal/infrastructure/storage"
	"ReviewRelay/internal/infrastructure/webhook"
	"ReviewRelay/internal/logging"
	"ReviewRelay/internal/ports"
	"ReviewRelay/internal/source"
	"ReviewRelay/internal/usecase"
)

// Application wires the collaborators to the four pipeline stages and
// manages their lifecycle.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sql.DB
	eventBus *bus.Bus
	ingestor *usecase.Ingestor
	webhook  *webhook.Server
	sched    ports.Scheduler
}

// New builds a runnable application instance: opens the store, applies
// migrations, and subscribes the generation and notification stages to the
// event bus.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := storage.Migrate(db, logging.Component(baseLogger, "migrate")); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	repo := storage.NewPostgresRepository(db)

	registry := source.NewRegistry()
	registry.Register(origin.NewGBPClient(cfg.Origin, nil))
	registry.Register(origin.NewListingScraper(nil))
	selector := source.NewSelector(
		registry, cfg.Origin.DefaultSource, logging.Component(baseLogger, "source"))

	eventBus := bus.New(logging.Component(baseLogger, "bus"))

	generator := usecase.NewGenerator(usecase.GeneratorDeps{
		Repo:      repo,
		Generator: llm.NewOpenAIClient(cfg.OpenAI),
		Bus:       eventBus,
		Logger:    logging.Component(baseLogger, "generate"),
	})
	eventBus.Subscribe(domain.TopicReviewCreated, generator.HandleReviewCreated)

	messenger := line.NewClient(cfg.Line, nil)

	notifier := usecase.NewNotifier(usecase.NotifierDeps{
		Repo:      repo,
		Messenger: messenger,
		Logger:    logging.Component(baseLogger, "notify"),
	})
	eventBus.Subscribe(domain.TopicReviewDrafted, notifier.HandleReviewDrafted)

	ingestor := usecase.NewIngestor(usecase.IngestorDeps{
		Repo:   repo,
		Source: selector,
		Bus:    eventBus,
		Logger: logging.Component(baseLogger, "ingest"),
	})

	approver := usecase.NewApprover(usecase.ApproverDeps{
		Repo:      repo,
		Messenger: messenger,
		Logger:    logging.Component(baseLogger, "approve"),
	})

	webhookServer := webhook.NewServer(
		cfg.Webhook.Addr, cfg.Line.ChannelSecret, approver,
		logging.Component(baseLogger, "webhook"))

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		db:       db,
		eventBus: eventBus,
		ingestor: ingestor,
		webhook:  webhookServer,
		sched:    scheduler.NewIntervalScheduler(cfg.Ingest.Interval()),
	}, nil
}

// Run starts recurring ingestion sweeps and the callback webhook, blocking
// until the context is canceled.
func (a *Application) Run(ctx context.Context) error {
	job := func(time.Time) {
		if err := a.ingestor.Sweep(ctx); err != nil {
			a.logger.Error("ingestion sweep failed", "error", err)
		}
	}
	if err := a.sched.Start(ctx, job); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.webhook.Start()
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("webhook server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.sched.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler stop failed", "error", err)
	}
	if err := a.webhook.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown webhook server: %w", err)
	}
	return nil
}

// Sweep performs a single ingestion pass, for one-shot invocations.
func (a *Application) Sweep(ctx context.Context) error {
	return a.ingestor.Sweep(ctx)
}

// Close releases the store and stops the event workers.
func (a *Application) Close() {
	a.eventBus.Close()
	if err := a.db.Close(); err != nil {
		a.logger.Warn("database close failed", "error", err)
	}
}
