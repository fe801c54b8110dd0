package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/dvloznov/invoice-extractor/internal/config"
	infraBQ "github.com/dvloznov/invoice-extractor/internal/infra/bigquery"
	"github.com/dvloznov/invoice-extractor/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewFromConfig(logger.Config{Environment: cfg.Environment, Level: cfg.LogLevel})

	var (
		projectID = flag.String("project", cfg.BigQuery.ProjectID, "GCP project ID (or set BQ_PROJECT_ID env)")
		datasetID = flag.String("dataset", cfg.BigQuery.DatasetID, "BigQuery dataset ID (or set BQ_DATASET env)")
		appliedBy = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		timeout   = flag.Duration("timeout", 10*time.Minute, "Overall timeout")
	)
	flag.Parse()

	if *projectID == "" {
		log.Fatal().Msg("Error: -project flag is required. Please specify your GCP project ID.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewBigQueryInvoiceRepository(ctx, *projectID, *datasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer repo.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	applied, err := repo.Migrate(ctx, *appliedBy)
	if err != nil {
		log.Error().Err(err).Int("applied", applied).Msg("Migration failed")
		repo.Close()
		os.Exit(1)
	}

	if applied == 0 {
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
		return
	}
	log.Info().Int("applied", applied).Msg("Migrations applied")
}
