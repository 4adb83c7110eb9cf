package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"job_applier/internal/config"
	"job_applier/internal/domain"
	"job_applier/internal/identity"
	"job_applier/internal/lifecycle"
	"job_applier/internal/pipeline"
	"job_applier/internal/publisher"
	"job_applier/internal/render"
	"job_applier/internal/resume"
	"job_applier/internal/scheduler"
	"job_applier/internal/source/adzuna"
	"job_applier/internal/source/reed"
	"job_applier/internal/store"
	"job_applier/internal/store/postgres"
	"job_applier/internal/store/sheet"
	"job_applier/internal/tailor"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	// Initialize record store
	recordStore, cleanup, err := openStore(cfg.Store, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Initialize RabbitMQ publisher (optional)
	var statusPublisher pipeline.Publisher
	if cfg.RabbitMQ.URL != "" {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		statusPublisher = rabbitMQ
	}

	// Initialize job sources
	var sources []pipeline.Source
	if cfg.Sources.Adzuna.Enabled {
		sources = append(sources, adzuna.New(adzuna.Config{
			BaseURL:        cfg.Sources.Adzuna.BaseURL,
			AppID:          cfg.Sources.Adzuna.AppID,
			AppKey:         cfg.Sources.Adzuna.AppKey,
			Country:        cfg.Sources.Adzuna.Country,
			PageSize:       cfg.Sources.HTTP.PageSize,
			Timeout:        cfg.Sources.HTTP.Timeout,
			MaxAttempts:    cfg.Sources.HTTP.Retry.MaxAttempts,
			InitialBackoff: cfg.Sources.HTTP.Retry.InitialBackoff,
			MaxBackoff:     cfg.Sources.HTTP.Retry.MaxBackoff,
		}, logger))
	}
	if cfg.Sources.Reed.Enabled {
		sources = append(sources, reed.New(reed.Config{
			BaseURL:        cfg.Sources.Reed.BaseURL,
			APIKey:         cfg.Sources.Reed.APIKey,
			PageSize:       cfg.Sources.HTTP.PageSize,
			Timeout:        cfg.Sources.HTTP.Timeout,
			MaxAttempts:    cfg.Sources.HTTP.Retry.MaxAttempts,
			InitialBackoff: cfg.Sources.HTTP.Retry.InitialBackoff,
			MaxBackoff:     cfg.Sources.HTTP.Retry.MaxBackoff,
		}, logger))
	}
	if len(sources) == 0 {
		logger.Error("no job sources enabled")
		os.Exit(1)
	}

	resolver := identity.NewResolver(cfg.Identity.MatchThreshold)

	ingestPipeline := pipeline.New(
		sources,
		recordStore,
		resolver,
		pipeline.Criteria{
			Keywords:         cfg.Search.Keywords,
			ExcludedKeywords: cfg.Search.ExcludedKeywords,
			Locations:        cfg.Search.Locations,
			SalaryFloor:      cfg.Search.SalaryFloor,
		},
		domain.SearchCriteria{
			Keywords:    cfg.Search.Keywords,
			Locations:   cfg.Search.Locations,
			SalaryFloor: cfg.Search.SalaryFloor,
		},
		statusPublisher,
		logger,
	)

	// Lifecycle collaborators
	baseResume, err := resume.Load(cfg.Lifecycle.ResumeDataPath)
	if err != nil {
		logger.Error("failed to load resume data", "error", err)
		os.Exit(1)
	}

	renderer, err := render.New(cfg.Lifecycle.TemplatePath)
	if err != nil {
		logger.Error("failed to load resume template", "error", err)
		os.Exit(1)
	}

	tailorClient := tailor.NewClient(tailor.Config{
		BaseURL: cfg.Lifecycle.Tailor.BaseURL,
		APIKey:  cfg.Lifecycle.Tailor.APIKey,
		Model:   cfg.Lifecycle.Tailor.Model,
	}, logger)

	engine := lifecycle.NewEngine(
		recordStore,
		tailorClient,
		renderer,
		statusPublisher,
		baseResume,
		lifecycle.Policy{
			MaxAttempts:    cfg.Lifecycle.RetryBudget,
			InitialBackoff: cfg.Sources.HTTP.Retry.InitialBackoff,
			MaxBackoff:     cfg.Sources.HTTP.Retry.MaxBackoff,
			Jitter:         0.2,
		},
		cfg.Lifecycle,
		logger,
	)

	sched := scheduler.NewScheduler(
		&appRunner{pipeline: ingestPipeline, engine: engine},
		cfg.Run.Interval,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("starting job applier",
		"sources", len(sources),
		"store", cfg.Store.Driver,
		"interval", cfg.Run.Interval,
	)

	if err := sched.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

// appRunner chains ingest and lifecycle processing into one scheduled pass.
type appRunner struct {
	pipeline *pipeline.Pipeline
	engine   *lifecycle.Engine
}

func (a *appRunner) Run(ctx context.Context) (*domain.RunReport, error) {
	report, err := a.pipeline.Run(ctx)
	if err != nil {
		return report, err
	}
	if err := a.engine.Run(ctx, report); err != nil {
		return report, err
	}
	return report, nil
}

func openStore(cfg config.StoreConfig, logger *slog.Logger) (store.RecordStore, func(), error) {
	switch cfg.Driver {
	case "postgres":
		db, err := sqlx.Connect("postgres", cfg.Database.DSN())
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("connected to database")
		return postgres.NewRecordStore(db), func() { db.Close() }, nil
	case "sheet":
		st, err := sheet.Open(cfg.SheetPath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("opened application sheet", "path", cfg.SheetPath)
		return st, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
