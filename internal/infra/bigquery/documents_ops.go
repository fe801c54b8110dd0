package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

const documentsTable = "documents"

// InsertDocumentWithClient inserts a single DocumentRow into <dataset>.documents.
func InsertDocumentWithClient(ctx context.Context, client *bigquery.Client, datasetID string, row *DocumentRow) error {
	inserter := client.Dataset(datasetID).Table(documentsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertDocument: inserting row: %w", err)
	}

	return nil
}
