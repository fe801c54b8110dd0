package pipeline

import (
	"context"

	bq "github.com/dvloznov/invoice-extractor/internal/bigquery"
	"github.com/dvloznov/invoice-extractor/internal/document"
	"github.com/dvloznov/invoice-extractor/internal/extraction"
)

// DocumentLoader resolves a source into document bytes or text.
type DocumentLoader interface {
	Load(ctx context.Context, src document.Source) (extraction.Document, error)
}

// InvoiceExtractor asks a model for the raw invoice fields of a document.
// This interface enables mocking the model call in tests.
type InvoiceExtractor interface {
	Extract(ctx context.Context, doc extraction.Document) (*extraction.Result, error)
}

// InvoiceRepository is the persistence used by the optional storage steps.
type InvoiceRepository = bq.InvoiceRepository
