package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/invoice-extractor/internal/invoice"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// DefaultMaxRetries applies to jobs published without MaxRetries.
const DefaultMaxRetries = 3

// ErrJobNotFound is returned by a JobStore for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// ErrQueueClosed is returned when publishing to or starting a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// ParseInvoiceJob represents a job to extract and validate one invoice
// stored in GCS.
type ParseInvoiceJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// GCSURI is the GCS URI of the invoice document.
	GCSURI string `json:"gcs_uri"`

	// MIMEType optionally declares the media type of the document.
	MIMEType string `json:"mime_type,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// DocumentID and ParsingRunID are set when results are persisted.
	DocumentID   string `json:"document_id,omitempty"`
	ParsingRunID string `json:"parsing_run_id,omitempty"`

	// Result holds the validated invoice once the job completed.
	Result *Result `json:"result,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Result is the stored outcome of a parse job.
type Result struct {
	Record   *invoice.Record   `json:"record"`
	Errors   map[string]string `json:"errors"`
	Warnings []string          `json:"warnings"`
	Summary  string            `json:"summary"`
}

// Prepare fills in the ID-independent defaults of a new job.
func (j *ParseInvoiceJob) Prepare(now time.Time) {
	if j.Status == "" {
		j.Status = JobStatusPending
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	if j.MaxRetries == 0 {
		j.MaxRetries = DefaultMaxRetries
	}
}

// Finish records the outcome of one attempt. It returns true when the job
// should be attempted again.
func (j *ParseInvoiceJob) Finish(err error, now time.Time) (retry bool) {
	j.CompletedAt = &now

	if err == nil {
		j.Status = JobStatusCompleted
		j.Error = ""
		return false
	}

	j.Error = err.Error()
	if IsPermanent(err) || j.RetryCount >= j.MaxRetries {
		j.Status = JobStatusFailed
		return false
	}

	j.RetryCount++
	j.Status = JobStatusRetrying
	return true
}

// Backoff is the delay before the next attempt.
func (j *ParseInvoiceJob) Backoff() time.Duration {
	return time.Duration(j.RetryCount) * time.Second
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishParseInvoice publishes an invoice parsing job.
	PublishParseInvoice(ctx context.Context, job *ParseInvoiceJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. It may set job.Result. A returned error is
// retried unless it is marked with Permanent.
type JobHandler func(ctx context.Context, job *ParseInvoiceJob) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ParseInvoiceJob) error

	// GetJob retrieves a job by ID. Unknown IDs return ErrJobNotFound.
	GetJob(ctx context.Context, jobID string) (*ParseInvoiceJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ParseInvoiceJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}

// Match reports whether job passes the filter's status criterion.
func (f JobFilter) Match(job *ParseInvoiceJob) bool {
	return f.Status == "" || job.Status == f.Status
}

// Page applies Offset and Limit to a filtered result.
func (f JobFilter) Page(result []*ParseInvoiceJob) []*ParseInvoiceJob {
	if f.Offset > 0 {
		if f.Offset >= len(result) {
			return []*ParseInvoiceJob{}
		}
		result = result[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(result) {
		result = result[:f.Limit]
	}
	return result
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
