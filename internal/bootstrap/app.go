package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"content-analyzer/internal/analytics"
	"content-analyzer/internal/contentitems"
	"content-analyzer/internal/events"
	"content-analyzer/internal/llm"
	"content-analyzer/internal/llm/anthropic"
	"content-analyzer/internal/llm/openai"
	"content-analyzer/internal/llm/vertex"
	"content-analyzer/internal/pipeline"
	"content-analyzer/internal/processingmetrics"
	"content-analyzer/internal/queueentries"
	"content-analyzer/internal/services/health"
	"content-analyzer/internal/shared/config"
	"content-analyzer/internal/shared/server"
	"content-analyzer/internal/shared/server/middleware"
	"content-analyzer/internal/shared/storage/db"
	"content-analyzer/internal/shared/storage/object"
	localstore "content-analyzer/internal/shared/storage/object/local"
	s3store "content-analyzer/internal/shared/storage/object/s3"
)

// App holds shared dependencies.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Archive  object.ObjectStore
	Events   events.Publisher
	Provider llm.Provider

	ItemsRepo   contentitems.Repo
	QueueRepo   queueentries.Repo
	MetricsRepo processingmetrics.Repo

	Pipeline  *pipeline.Service
	Analytics *analytics.Service
	Health    *health.Service

	closers []io.Closer
}

// Build wires every adapter from cfg and constructs the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, DB: sqlDB}
	if sqlDB != nil {
		app.closers = append(app.closers, sqlDB)
	}

	if err := app.build(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) build(ctx context.Context) error {
	cfg := app.Config

	archive, err := buildArchive(ctx, cfg)
	if err != nil {
		return err
	}
	app.Archive = archive

	publisher, err := buildEvents(ctx, cfg)
	if err != nil {
		return err
	}
	app.Events = publisher

	provider, err := BuildProvider(ctx, cfg)
	if err != nil {
		return err
	}
	if c, ok := provider.(io.Closer); ok {
		app.closers = append(app.closers, c)
	}
	app.Provider = llm.NewRetrying(provider, cfg.ProviderMaxRetries, 0)

	if app.DB != nil {
		app.ItemsRepo = &contentitems.PGRepo{DB: app.DB}
		app.QueueRepo = &queueentries.PGRepo{DB: app.DB}
		app.MetricsRepo = &processingmetrics.PGRepo{DB: app.DB}
	} else {
		app.ItemsRepo = contentitems.NewMemoryRepo()
		app.QueueRepo = queueentries.NewMemoryRepo()
		app.MetricsRepo = processingmetrics.NewMemoryRepo()
	}

	app.Pipeline = &pipeline.Service{
		Items:           app.ItemsRepo,
		Queue:           app.QueueRepo,
		Metrics:         app.MetricsRepo,
		Provider:        app.Provider,
		Model:           cfg.LLMModel,
		Archive:         app.Archive,
		Events:          app.Events,
		ProviderTimeout: cfg.ProviderTimeout,
		MaxContentBytes: cfg.MaxContentBytes,
		MaxTokens:       cfg.ProviderMaxTokens,
		MarkQueueFailed: cfg.MarkQueueFailed,
	}
	app.Analytics = &analytics.Service{
		Items:   app.ItemsRepo,
		Queue:   app.QueueRepo,
		Metrics: app.MetricsRepo,
	}
	app.Health = health.NewService(app.ItemsRepo)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:           cfg,
		AnalyzeHandler:   pipeline.NewHandler(app.Pipeline),
		AnalyticsHandler: analytics.NewHandler(app.Analytics),
		HealthHandler:    health.NewHandler(app.Health),
		RateLimiter:      middleware.NewRateLimiter(nil),
	})
	return nil
}

// Close releases the database pool and provider clients.
func (app *App) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildArchive(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "local":
		return localstore.New(cfg.LocalStoreDir), nil
	default:
		return nil, nil
	}
}

func buildEvents(ctx context.Context, cfg config.Config) (events.Publisher, error) {
	if strings.TrimSpace(cfg.EventsQueueURL) == "" {
		return nil, nil
	}
	return events.NewSQSPublisher(ctx, cfg.AWSRegion, cfg.EventsQueueURL)
}

// BuildProvider selects the analysis provider named by cfg.LLMProvider. Dev
// environments without credentials get the placeholder provider.
func BuildProvider(ctx context.Context, cfg config.Config) (llm.Provider, error) {
	var (
		provider llm.Provider
		err      error
	)
	switch cfg.LLMProvider {
	case "openai":
		provider, err = openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel)
	case "vertex":
		provider, err = vertex.NewClient(ctx, cfg.VertexProject, cfg.VertexRegion, cfg.LLMModel)
	default:
		provider, err = anthropic.NewClient(cfg.AnthropicAPIKey, cfg.LLMModel)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: %s provider unavailable; using placeholder: %v", cfg.LLMProvider, err)
			return llm.PlaceholderProvider{}, nil
		}
		return nil, fmt.Errorf("build %s provider: %w", cfg.LLMProvider, err)
	}
	return provider, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
