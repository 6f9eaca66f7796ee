package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/BerylCAtieno/doc-vault-api/internal/audit"
	"github.com/BerylCAtieno/doc-vault-api/internal/config"
	"github.com/BerylCAtieno/doc-vault-api/internal/db"
	"github.com/BerylCAtieno/doc-vault-api/internal/extractor"
	"github.com/BerylCAtieno/doc-vault-api/internal/ocr"
	"github.com/BerylCAtieno/doc-vault-api/internal/pipeline"
	"github.com/BerylCAtieno/doc-vault-api/internal/queue"
	"github.com/BerylCAtieno/doc-vault-api/internal/repository"
	"github.com/BerylCAtieno/doc-vault-api/internal/scanner"
	"github.com/BerylCAtieno/doc-vault-api/internal/storage"
	"github.com/BerylCAtieno/doc-vault-api/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger := utils.NewLogger(cfg.LogLevel)

	// Initialize database
	database, err := db.NewSQLiteDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer database.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	// Initialize object storage
	store, err := storage.NewS3Storage(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize object storage", "error", err)
	}

	// Assemble the processing pipeline
	docRepo := repository.NewRepository(database)
	recorder := audit.NewRecorder(docRepo, logger)
	clam := scanner.NewClamdScanner(cfg.ClamdSocketPath, cfg.ClamdTimeout)
	ocrClient := ocr.NewClient(cfg.OCREndpoint, cfg.OCRTimeout, logger)
	engine := extractor.NewEngine(ocrClient)
	orchestrator := pipeline.NewOrchestrator(
		docRepo, store, clam, engine, recorder, logger, cfg.ScratchDir)

	jobs := queue.New(database, queue.Options{
		PollInterval: cfg.QueuePollInterval,
		MaxAttempts:  cfg.QueueMaxAttempts,
		BackoffBase:  cfg.QueueBackoffBase,
		BackoffCap:   cfg.QueueBackoffCap,
		Concurrency:  cfg.WorkerConcurrency,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Worker starting", "concurrency", cfg.WorkerConcurrency)

	jobs.Run(ctx, func(ctx context.Context, job *queue.Job) error {
		outcome := orchestrator.Process(ctx, job.VersionID)
		switch {
		case outcome.Status != pipeline.StatusFailed:
			logger.Info("Job finished",
				"job_id", job.ID, "version_id", job.VersionID, "reason", outcome.Reason)
			return nil
		case outcome.Retryable:
			return outcome.Err
		default:
			return queue.Terminal(outcome.Err)
		}
	})

	logger.Info("Worker exited")
}
