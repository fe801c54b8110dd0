package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/invoice-extractor/internal/api"
	"github.com/dvloznov/invoice-extractor/internal/api/handlers"
	"github.com/dvloznov/invoice-extractor/internal/app"
	"github.com/dvloznov/invoice-extractor/internal/config"
	"github.com/dvloznov/invoice-extractor/internal/export"
	"github.com/dvloznov/invoice-extractor/internal/logger"
	"github.com/dvloznov/invoice-extractor/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewFromConfig(logger.Config{Environment: cfg.Environment, Level: cfg.LogLevel})

	// Parse command-line flags
	var (
		port        = flag.String("port", cfg.HTTP.Port, "HTTP server port (or set PORT env)")
		bucket      = flag.String("bucket", cfg.Storage.Bucket, "GCS bucket for uploaded invoices (or set GCS_BUCKET env)")
		embedWorker = flag.Bool("worker", false, "Also consume jobs in this process (always on without REDIS_URL)")
	)
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if *bucket == "" {
		log.Warn().Msg("No GCS bucket configured - document uploads will be disabled")
	}

	ctx := logger.WithContext(context.Background(), log)

	services, err := app.NewServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Close()

	// Initialize job infrastructure
	jobInfra, err := app.NewJobs(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize job queue")
	}

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if !jobInfra.Shared || *embedWorker {
		log.Info().Bool("shared_queue", jobInfra.Shared).Msg("Starting job worker")
		if err := jobInfra.Queue.Start(workerCtx, worker.NewParseHandler(services.Processor)); err != nil {
			log.Fatal().Err(err).Msg("Failed to start job worker")
		}
	}

	var lister export.InvoiceLister
	if services.Repo != nil {
		lister = services.Repo
	}

	router := api.NewRouter(
		log,
		handlers.NewInvoicesHandler(services.Processor, jobInfra.Queue, services.Storage, lister, *bucket),
		handlers.NewJobsHandler(jobInfra.Store),
	)

	// Synchronous parses wait for the model, so the write timeout follows it.
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Gemini.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	cancelWorker()
	if err := jobInfra.Queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	if err := jobInfra.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
