package redisjobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dvloznov/invoice-extractor/internal/jobs"
)

const (
	keyPrefix = "invoice-jobs"

	// DefaultTTL is how long job records are kept after their last update.
	DefaultTTL = 7 * 24 * time.Hour
)

func jobKey(id string) string { return keyPrefix + ":job:" + id }
func indexKey() string        { return keyPrefix + ":index" }
func queueKey() string        { return keyPrefix + ":queue" }

// Store is a Redis-backed JobStore. Jobs are stored as JSON strings with a
// TTL, and their IDs are kept in a set for listing.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a Store. ttl <= 0 selects DefaultTTL.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

// SaveJob implements the JobStore interface.
func (s *Store) SaveJob(ctx context.Context, job *jobs.ParseInvoiceJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	data, err := encodeJob(job)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, jobKey(job.JobID), data, s.ttl)
	pipe.SAdd(ctx, indexKey(), job.JobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("SaveJob: %w", err)
	}
	return nil
}

// GetJob implements the JobStore interface.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.ParseInvoiceJob, error) {
	data, err := s.client.Get(ctx, jobKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("GetJob: %w", err)
	}
	return decodeJob(data)
}

// ListJobs implements the JobStore interface. IDs whose records expired are
// removed from the index.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ParseInvoiceJob, error) {
	ids, err := s.client.SMembers(ctx, indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("ListJobs: reading index: %w", err)
	}
	if len(ids) == 0 {
		return []*jobs.ParseInvoiceJob{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = jobKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("ListJobs: reading jobs: %w", err)
	}

	var (
		result []*jobs.ParseInvoiceJob
		stale  []any
	)
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		job, err := decodeJob([]byte(str))
		if err != nil {
			return nil, fmt.Errorf("ListJobs: %w", err)
		}
		if filter.Match(job) {
			result = append(result, job)
		}
	}
	if len(stale) > 0 {
		_ = s.client.SRem(ctx, indexKey(), stale...).Err()
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return filter.Page(result), nil
}

// UpdateJobStatus implements the JobStore interface.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	return s.SaveJob(ctx, job)
}

func encodeJob(job *jobs.ParseInvoiceJob) ([]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encoding job %s: %w", job.JobID, err)
	}
	return data, nil
}

func decodeJob(data []byte) (*jobs.ParseInvoiceJob, error) {
	var job jobs.ParseInvoiceJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decoding job: %w", err)
	}
	return &job, nil
}

var _ jobs.JobStore = (*Store)(nil)
