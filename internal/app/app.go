// Package app wires configuration into the services shared by the commands.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dvloznov/invoice-extractor/internal/config"
	"github.com/dvloznov/invoice-extractor/internal/document"
	"github.com/dvloznov/invoice-extractor/internal/extraction"
	"github.com/dvloznov/invoice-extractor/internal/gcs"
	"github.com/dvloznov/invoice-extractor/internal/gcsuploader"
	infraBQ "github.com/dvloznov/invoice-extractor/internal/infra/bigquery"
	"github.com/dvloznov/invoice-extractor/internal/jobs"
	"github.com/dvloznov/invoice-extractor/internal/jobs/inmemory"
	"github.com/dvloznov/invoice-extractor/internal/jobs/redisjobs"
	"github.com/dvloznov/invoice-extractor/internal/logger"
	"github.com/dvloznov/invoice-extractor/internal/pipeline"
)

// inMemoryBuffer is the channel size of the in-memory job queue.
const inMemoryBuffer = 100

// Services holds the clients built from a Config.
type Services struct {
	Config *config.Config

	// Storage is nil when no Cloud Storage client could be created.
	Storage gcs.StorageService
	// Repo is nil when BigQuery persistence is disabled.
	Repo *infraBQ.BigQueryInvoiceRepository

	Processor *pipeline.Processor

	closers []func() error
}

// NewServices creates the storage, persistence and extraction clients.
// Cloud Storage is optional: without it gs:// sources are rejected as
// missing documents.
func NewServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	log := logger.FromContext(ctx)
	s := &Services{Config: cfg}

	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Cloud Storage unavailable - gs:// sources and uploads are disabled")
	} else {
		s.Storage = storage
		s.closers = append(s.closers, storage.Close)
	}

	opts := []pipeline.Option{pipeline.WithModelName(cfg.Gemini.Model)}
	if cfg.BigQuery.Enabled() {
		repo, err := infraBQ.NewBigQueryInvoiceRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.DatasetID)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("NewServices: %w", err)
		}
		s.Repo = repo
		s.closers = append(s.closers, repo.Close)
		opts = append(opts, pipeline.WithRepository(repo))
	}

	model, err := extraction.NewGeminiModel(ctx, extraction.GeminiConfig{
		APIKey:      cfg.Gemini.APIKey,
		BaseURL:     cfg.Gemini.BaseURL,
		APIVersion:  cfg.Gemini.APIVersion,
		Model:       cfg.Gemini.Model,
		InlineLimit: cfg.Gemini.InlineLimitBytes(),
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("NewServices: %w", err)
	}
	extractor := extraction.NewExtractor(model, extraction.WithTimeout(cfg.Gemini.Timeout))

	s.Processor = pipeline.NewProcessor(document.NewLoader(s.Storage), extractor, opts...)

	log.Info().
		Str("model", cfg.Gemini.Model).
		Bool("storage", s.Storage != nil).
		Bool("persistence", s.Repo != nil).
		Msg("Services initialized")

	return s, nil
}

// Close releases every client in reverse creation order.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Queue publishes and consumes parse jobs.
type Queue interface {
	jobs.Publisher
	jobs.Consumer
}

// Jobs is the job queue together with the store holding job state.
type Jobs struct {
	Queue Queue
	Store jobs.JobStore

	// Shared reports whether other processes see the same queue.
	Shared bool

	redis *redis.Client
}

// NewJobs selects the Redis queue when cfg.URL is set and the in-memory
// queue otherwise.
func NewJobs(ctx context.Context, cfg config.RedisConfig) (*Jobs, error) {
	if cfg.URL == "" {
		store := inmemory.NewStore()
		return &Jobs{
			Queue: inmemory.NewQueue(inMemoryBuffer, inmemory.DefaultWorkers, store),
			Store: store,
		}, nil
	}

	client, err := redisjobs.Config{
		URL:          cfg.URL,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		DialTimeout:  cfg.DialTimeout,
	}.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewJobs: %w", err)
	}

	store := redisjobs.NewStore(client, cfg.JobTTL)
	return &Jobs{
		Queue:  redisjobs.NewQueue(client, store, redisjobs.DefaultWorkers),
		Store:  store,
		Shared: true,
		redis:  client,
	}, nil
}

// Close stops the queue and closes the Redis connection, if any.
func (j *Jobs) Close() error {
	err := j.Queue.Close()
	if j.redis != nil {
		err = errors.Join(err, j.redis.Close())
	}
	return err
}
