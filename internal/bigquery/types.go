package bigquery

import (
	"context"
	"time"

	"cloud.google.com/go/bigquery"
)

// InvoiceRepository provides an interface for invoice persistence.
type InvoiceRepository interface {
	// InsertDocument inserts a single DocumentRow into the database.
	InsertDocument(ctx context.Context, row *DocumentRow) error

	// StartParsingRun inserts a new parsing run with status=RUNNING and returns the parsing_run_id.
	StartParsingRun(ctx context.Context, documentID string) (string, error)

	// MarkParsingRunFailed sets status=FAILED, finished_ts and error_message for a parsing run.
	MarkParsingRunFailed(ctx context.Context, parsingRunID string, parseErr error)

	// MarkParsingRunSucceeded sets status=SUCCESS, finished_ts and token counts for a parsing run.
	MarkParsingRunSucceeded(ctx context.Context, parsingRunID string, usage TokenUsage) error

	// InsertModelOutput stores the raw model response of a parsing run.
	InsertModelOutput(ctx context.Context, row *ModelOutputRow) error

	// InsertInvoice inserts an invoice and its line items.
	InsertInvoice(ctx context.Context, row *InvoiceRow, items []*InvoiceLineItemRow) error

	// ListInvoices returns the most recent invoices, newest first.
	ListInvoices(ctx context.Context, limit int) ([]*InvoiceRow, error)

	// ListLineItems returns the line items of the given invoices.
	ListLineItems(ctx context.Context, invoiceIDs []string) ([]*InvoiceLineItemRow, error)
}

// TokenUsage is the model usage recorded for a parsing run.
type TokenUsage struct {
	Input  int64
	Output int64
}

// DocumentRow represents a source document in BigQuery.
type DocumentRow struct {
	DocumentID string `bigquery:"document_id"`
	GCSURI     string `bigquery:"gcs_uri"`

	DocumentType string `bigquery:"document_type"`
	SourceSystem string `bigquery:"source_system"`

	UploadTS    time.Time              `bigquery:"upload_ts"`
	ProcessedTS bigquery.NullTimestamp `bigquery:"processed_ts"`

	ParsingStatus string `bigquery:"parsing_status"`

	OriginalFilename string `bigquery:"original_filename"`
	FileMimeType     string `bigquery:"file_mime_type"`

	ChecksumSHA256 string `bigquery:"checksum_sha256"`

	Metadata bigquery.NullJSON `bigquery:"metadata"`
}

// ParsingRunRow represents a parsing run record in BigQuery.
type ParsingRunRow struct {
	ParsingRunID string `bigquery:"parsing_run_id"`
	DocumentID   string `bigquery:"document_id"`

	StartedTS  time.Time              `bigquery:"started_ts"`
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"`

	ParserType    string `bigquery:"parser_type"`
	ParserVersion string `bigquery:"parser_version"`

	Status       string `bigquery:"status"`
	ErrorMessage string `bigquery:"error_message"`

	TokensInput  bigquery.NullInt64 `bigquery:"tokens_input"`
	TokensOutput bigquery.NullInt64 `bigquery:"tokens_output"`

	Metadata bigquery.NullJSON `bigquery:"metadata"`
}

// ModelOutputRow represents a raw model response in BigQuery.
type ModelOutputRow struct {
	OutputID     string `bigquery:"output_id"`
	ParsingRunID string `bigquery:"parsing_run_id"`
	DocumentID   string `bigquery:"document_id"`

	ModelName string `bigquery:"model_name"`

	RawJSON    bigquery.NullJSON   `bigquery:"raw_json"`
	RawText    bigquery.NullString `bigquery:"raw_text"`
	Recovery   bigquery.NullString `bigquery:"recovery"`
	FailureMsg bigquery.NullString `bigquery:"failure"`

	CreatedTS time.Time `bigquery:"created_ts"`
}

// InvoiceRow represents one validated invoice in BigQuery. Nullable columns
// are NULL when the field was absent or failed validation.
type InvoiceRow struct {
	InvoiceID    string `bigquery:"invoice_id"`
	DocumentID   string `bigquery:"document_id"`
	ParsingRunID string `bigquery:"parsing_run_id"`

	InvoiceNumber bigquery.NullString `bigquery:"invoice_number"`
	InvoiceDate   bigquery.NullDate   `bigquery:"invoice_date"`
	DueDate       bigquery.NullDate   `bigquery:"due_date"`

	TotalAmount   bigquery.NullFloat64 `bigquery:"total_amount"`
	TaxAmount     bigquery.NullFloat64 `bigquery:"tax_amount"`
	TaxfreeAmount bigquery.NullFloat64 `bigquery:"taxfree_amount"`
	Currency      bigquery.NullString  `bigquery:"currency"`

	VendorName    bigquery.NullString `bigquery:"vendor_name"`
	VendorAddress bigquery.NullString `bigquery:"vendor_address"`
	BusinessID    bigquery.NullString `bigquery:"business_id"`

	AccountNumber   bigquery.NullString `bigquery:"account_number"`
	BIC             bigquery.NullString `bigquery:"bic"`
	IBAN            bigquery.NullString `bigquery:"iban"`
	ReferenceNumber bigquery.NullString `bigquery:"reference_number"`
	PaymentTerms    bigquery.NullString `bigquery:"payment_terms"`

	ValidationErrors bigquery.NullJSON `bigquery:"validation_errors"`
	Extra            bigquery.NullJSON `bigquery:"extra"`

	CreatedTS time.Time `bigquery:"created_ts"`
}

// InvoiceLineItemRow represents one invoice line in BigQuery.
type InvoiceLineItemRow struct {
	LineItemID string `bigquery:"line_item_id"`
	InvoiceID  string `bigquery:"invoice_id"`
	LineIndex  int64  `bigquery:"line_index"`

	ProductName bigquery.NullString  `bigquery:"product_name"`
	Quantity    bigquery.NullFloat64 `bigquery:"quantity"`
	UnitPrice   bigquery.NullFloat64 `bigquery:"unit_price"`
	Total       bigquery.NullFloat64 `bigquery:"total"`

	Extra bigquery.NullJSON `bigquery:"extra"`
}
