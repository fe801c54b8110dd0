package redisjobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dvloznov/invoice-extractor/internal/jobs"
	"github.com/dvloznov/invoice-extractor/internal/logger"
)

const (
	// DefaultWorkers is the number of concurrent consumers started by Start.
	DefaultWorkers = 5

	popTimeout = 2 * time.Second
)

// Queue is a Redis list-backed publisher and consumer. Job IDs are pushed
// with LPUSH and popped with BRPOP; job state lives in the Store, so the API
// and the worker can run as separate processes.
type Queue struct {
	client  *redis.Client
	store   *Store
	workers int

	mu     sync.Mutex
	wg     sync.WaitGroup
	cancel context.CancelFunc
	closed bool
}

// NewQueue creates a Queue. workers <= 0 selects DefaultWorkers.
func NewQueue(client *redis.Client, store *Store, workers int) *Queue {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Queue{client: client, store: store, workers: workers}
}

// PublishParseInvoice implements the Publisher interface.
func (q *Queue) PublishParseInvoice(ctx context.Context, job *jobs.ParseInvoiceJob) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return jobs.ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	job.Prepare(time.Now())

	if err := q.store.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	if err := q.client.LPush(ctx, queueKey(), job.JobID).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Start implements the Consumer interface.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return jobs.ErrQueueClosed
	}

	ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()
	log := logger.FromContext(ctx)

	for ctx.Err() == nil {
		res, err := q.client.BRPop(ctx, popTimeout, queueKey()).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("BRPOP failed")
			time.Sleep(popTimeout)
			continue
		}

		// res is [key, value].
		job, err := q.store.GetJob(ctx, res[1])
		if err != nil {
			log.Warn().Err(err).Str("job_id", res[1]).Msg("Dropping queued job without a record")
			continue
		}
		q.processJob(ctx, job, handler)
	}
}

// processJob executes a single job with retry logic.
func (q *Queue) processJob(ctx context.Context, job *jobs.ParseInvoiceJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().Str("job_id", job.JobID).Logger()

	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	_ = q.store.SaveJob(ctx, job)

	err := handler(logger.WithContext(ctx, log), job)
	retry := job.Finish(err, time.Now())

	// Record the outcome even if the consumer is shutting down.
	saveCtx := context.WithoutCancel(ctx)
	if serr := q.store.SaveJob(saveCtx, job); serr != nil {
		log.Error().Err(serr).Msg("Failed to save job")
	}

	if err != nil {
		log.Warn().Err(err).Int("retry_count", job.RetryCount).Bool("retry", retry).Msg("Job failed")
	}
	if !retry {
		return
	}

	time.AfterFunc(job.Backoff(), func() {
		job.Status = jobs.JobStatusPending
		job.StartedAt = nil
		job.CompletedAt = nil
		if err := q.store.SaveJob(saveCtx, job); err != nil {
			log.Error().Err(err).Msg("Failed to save job for retry")
			return
		}
		if err := q.client.LPush(saveCtx, queueKey(), job.JobID).Err(); err != nil {
			log.Error().Err(err).Msg("Failed to re-enqueue job")
		}
	})
}

// Stop implements the Consumer interface.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
