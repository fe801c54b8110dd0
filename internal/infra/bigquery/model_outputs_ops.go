package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

const modelOutputsTable = "model_outputs"

// InsertModelOutputWithClient inserts a single ModelOutputRow into
// <dataset>.model_outputs. Uses DML INSERT to avoid streaming buffer issues.
func InsertModelOutputWithClient(ctx context.Context, client *bigquery.Client, datasetID string, row *ModelOutputRow) error {
	q := client.Query(fmt.Sprintf(`
		INSERT INTO %s.%s (
			output_id, parsing_run_id, document_id,
			model_name, raw_json, raw_text,
			recovery, failure, created_ts
		)
		VALUES (
			@output_id, @parsing_run_id, @document_id,
			@model_name, SAFE.PARSE_JSON(@raw_json), @raw_text,
			@recovery, @failure, @created_ts
		)
	`, datasetID, modelOutputsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "output_id", Value: row.OutputID},
		{Name: "parsing_run_id", Value: row.ParsingRunID},
		{Name: "document_id", Value: row.DocumentID},
		{Name: "model_name", Value: row.ModelName},
		{Name: "raw_json", Value: nullJSONString(row.RawJSON)},
		{Name: "raw_text", Value: row.RawText},
		{Name: "recovery", Value: row.Recovery},
		{Name: "failure", Value: row.FailureMsg},
		{Name: "created_ts", Value: row.CreatedTS},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertModelOutput: %w", err)
	}

	return nil
}

func nullJSONString(j bigquery.NullJSON) bigquery.NullString {
	return bigquery.NullString{StringVal: j.JSONVal, Valid: j.Valid}
}
