package worker

import (
	"context"
	"errors"

	"github.com/dvloznov/invoice-extractor/internal/document"
	"github.com/dvloznov/invoice-extractor/internal/invoice"
	"github.com/dvloznov/invoice-extractor/internal/jobs"
	"github.com/dvloznov/invoice-extractor/internal/logger"
	"github.com/dvloznov/invoice-extractor/internal/pipeline"
)

// InvoiceProcessor runs the invoice pipeline for one source.
type InvoiceProcessor interface {
	ProcessInvoice(ctx context.Context, src document.Source) (*pipeline.Result, error)
}

// NewParseHandler returns a job handler that processes the job's GCS
// document and stores the outcome on the job. A document that cannot be
// read fails the job without retries.
func NewParseHandler(proc InvoiceProcessor) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.ParseInvoiceJob) error {
		log := logger.FromContext(ctx)

		log.Info().
			Str("job_id", job.JobID).
			Str("gcs_uri", job.GCSURI).
			Int("attempt", job.RetryCount+1).
			Msg("Processing parse job")

		res, err := proc.ProcessInvoice(ctx, document.Source{URI: job.GCSURI, MIMEType: job.MIMEType})
		if err != nil {
			log.Error().Err(err).Str("job_id", job.JobID).Msg("Pipeline execution failed")
			if errors.Is(err, invoice.ErrMissingDocument) {
				return jobs.Permanent(err)
			}
			return err
		}

		job.DocumentID = res.DocumentID
		job.ParsingRunID = res.ParsingRunID
		job.Result = ResultFromPipeline(res)

		log.Info().
			Str("job_id", job.JobID).
			Str("document_id", res.DocumentID).
			Int("field_errors", len(res.Errors)).
			Int("warnings", len(res.Warnings)).
			Msg("Pipeline execution completed successfully")

		return nil
	}
}

// ResultFromPipeline converts a pipeline result into the form stored on jobs.
func ResultFromPipeline(res *pipeline.Result) *jobs.Result {
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return &jobs.Result{
		Record:   res.Record,
		Errors:   res.Errors.Strings(),
		Warnings: warnings,
		Summary:  res.Summary,
	}
}
