package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/dvloznov/invoice-extractor/internal/logger"
)

const (
	parsingRunsTable = "parsing_runs"

	// ParserType identifies the extraction backend in parsing_runs.
	ParserType    = "GEMINI_INVOICE"
	ParserVersion = "v1"

	maxErrorMessageLen = 2000
)

// StartParsingRunWithClient inserts a new row into <dataset>.parsing_runs with
// status=RUNNING and returns the generated parsing_run_id.
func StartParsingRunWithClient(ctx context.Context, client *bigquery.Client, datasetID, documentID string) (string, error) {
	parsingRunID := uuid.NewString()
	started := time.Now()

	q := client.Query(fmt.Sprintf(`
		INSERT %s.%s (
			parsing_run_id,
			document_id,
			started_ts,
			parser_type,
			parser_version,
			status
		)
		VALUES (
			@parsing_run_id,
			@document_id,
			@started_ts,
			@parser_type,
			@parser_version,
			@status
		)
	`, datasetID, parsingRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "parsing_run_id", Value: parsingRunID},
		{Name: "document_id", Value: documentID},
		{Name: "started_ts", Value: started},
		{Name: "parser_type", Value: ParserType},
		{Name: "parser_version", Value: ParserVersion},
		{Name: "status", Value: "RUNNING"},
	}

	if err := runDML(ctx, q); err != nil {
		return "", fmt.Errorf("StartParsingRun: %w", err)
	}

	return parsingRunID, nil
}

// MarkParsingRunFailedWithClient sets status=FAILED, finished_ts and
// error_message. Errors are logged, not returned, since the run has already
// failed.
func MarkParsingRunFailedWithClient(ctx context.Context, client *bigquery.Client, datasetID, parsingRunID string, parseErr error) {
	log := logger.FromContext(ctx)

	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE parsing_run_id = @parsing_run_id
	`, datasetID, parsingRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: "FAILED"},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: TruncateErrorMessage(parseErr)},
		{Name: "parsing_run_id", Value: parsingRunID},
	}

	if err := runDML(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("parsing_run_id", parsingRunID).
			Msg("MarkParsingRunFailed: update failed")
	}
}

// MarkParsingRunSucceededWithClient sets status=SUCCESS, finished_ts and the
// token counts, and clears error_message.
func MarkParsingRunSucceededWithClient(ctx context.Context, client *bigquery.Client, datasetID, parsingRunID string, usage TokenUsage) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    tokens_input = @tokens_input,
		    tokens_output = @tokens_output,
		    error_message = ""
		WHERE parsing_run_id = @parsing_run_id
	`, datasetID, parsingRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: "SUCCESS"},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "tokens_input", Value: usage.Input},
		{Name: "tokens_output", Value: usage.Output},
		{Name: "parsing_run_id", Value: parsingRunID},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("MarkParsingRunSucceeded: %w", err)
	}

	return nil
}

// TruncateErrorMessage renders err for the error_message column.
func TruncateErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return msg
}

func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}
