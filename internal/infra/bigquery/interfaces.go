package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	bq "github.com/dvloznov/invoice-extractor/internal/bigquery"
)

// Re-export types from shared package
type (
	InvoiceRepository  = bq.InvoiceRepository
	TokenUsage         = bq.TokenUsage
	DocumentRow        = bq.DocumentRow
	ParsingRunRow      = bq.ParsingRunRow
	ModelOutputRow     = bq.ModelOutputRow
	InvoiceRow         = bq.InvoiceRow
	InvoiceLineItemRow = bq.InvoiceLineItemRow
)

// DefaultDataset is used when no dataset is configured.
const DefaultDataset = "invoices"

// BigQueryInvoiceRepository is the concrete implementation of InvoiceRepository
// that interacts with BigQuery. It holds a shared BigQuery client to avoid
// creating a new connection for each operation.
type BigQueryInvoiceRepository struct {
	client    *bigquery.Client
	datasetID string
}

// NewBigQueryInvoiceRepository creates a repository writing to datasetID in
// projectID.
func NewBigQueryInvoiceRepository(ctx context.Context, projectID, datasetID string) (*BigQueryInvoiceRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryInvoiceRepository: creating client: %w", err)
	}
	if datasetID == "" {
		datasetID = DefaultDataset
	}
	return &BigQueryInvoiceRepository{
		client:    client,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *BigQueryInvoiceRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InsertDocument delegates to InsertDocumentWithClient with the shared client.
func (r *BigQueryInvoiceRepository) InsertDocument(ctx context.Context, row *DocumentRow) error {
	return InsertDocumentWithClient(ctx, r.client, r.datasetID, row)
}

// StartParsingRun delegates to StartParsingRunWithClient with the shared client.
func (r *BigQueryInvoiceRepository) StartParsingRun(ctx context.Context, documentID string) (string, error) {
	return StartParsingRunWithClient(ctx, r.client, r.datasetID, documentID)
}

// MarkParsingRunFailed delegates to MarkParsingRunFailedWithClient with the shared client.
func (r *BigQueryInvoiceRepository) MarkParsingRunFailed(ctx context.Context, parsingRunID string, parseErr error) {
	MarkParsingRunFailedWithClient(ctx, r.client, r.datasetID, parsingRunID, parseErr)
}

// MarkParsingRunSucceeded delegates to MarkParsingRunSucceededWithClient with the shared client.
func (r *BigQueryInvoiceRepository) MarkParsingRunSucceeded(ctx context.Context, parsingRunID string, usage TokenUsage) error {
	return MarkParsingRunSucceededWithClient(ctx, r.client, r.datasetID, parsingRunID, usage)
}

// InsertModelOutput delegates to InsertModelOutputWithClient with the shared client.
func (r *BigQueryInvoiceRepository) InsertModelOutput(ctx context.Context, row *ModelOutputRow) error {
	return InsertModelOutputWithClient(ctx, r.client, r.datasetID, row)
}

// InsertInvoice delegates to InsertInvoiceWithClient with the shared client.
func (r *BigQueryInvoiceRepository) InsertInvoice(ctx context.Context, row *InvoiceRow, items []*InvoiceLineItemRow) error {
	return InsertInvoiceWithClient(ctx, r.client, r.datasetID, row, items)
}

// ListInvoices delegates to ListInvoicesWithClient with the shared client.
func (r *BigQueryInvoiceRepository) ListInvoices(ctx context.Context, limit int) ([]*InvoiceRow, error) {
	return ListInvoicesWithClient(ctx, r.client, r.datasetID, limit)
}

// ListLineItems delegates to ListLineItemsWithClient with the shared client.
func (r *BigQueryInvoiceRepository) ListLineItems(ctx context.Context, invoiceIDs []string) ([]*InvoiceLineItemRow, error) {
	return ListLineItemsWithClient(ctx, r.client, r.datasetID, invoiceIDs)
}

// Migrate applies the embedded schema migrations to the repository dataset.
func (r *BigQueryInvoiceRepository) Migrate(ctx context.Context, appliedBy string) (int, error) {
	return MigrateWithClient(ctx, r.client, Migrations(), r.datasetID, appliedBy)
}

var _ InvoiceRepository = (*BigQueryInvoiceRepository)(nil)
