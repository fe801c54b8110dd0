package export

import (
	"context"
	"encoding/json"
	"fmt"

	bq "github.com/dvloznov/invoice-extractor/internal/bigquery"
	infra "github.com/dvloznov/invoice-extractor/internal/infra/bigquery"
	"github.com/dvloznov/invoice-extractor/internal/pipeline"
)

// InvoiceLister reads stored invoices. bq.InvoiceRepository satisfies it.
type InvoiceLister interface {
	ListInvoices(ctx context.Context, limit int) ([]*bq.InvoiceRow, error)
	ListLineItems(ctx context.Context, invoiceIDs []string) ([]*bq.InvoiceLineItemRow, error)
}

// EntryFromResult builds an export entry from a pipeline result.
func EntryFromResult(source string, res *pipeline.Result) Entry {
	return Entry{
		Source:   source,
		Record:   res.Record,
		Errors:   res.Errors.Strings(),
		Warnings: res.Warnings,
	}
}

// EntriesFromRepository loads up to limit stored invoices with their line
// items and validation errors.
func EntriesFromRepository(ctx context.Context, repo InvoiceLister, limit int) ([]Entry, error) {
	rows, err := repo.ListInvoices(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("EntriesFromRepository: listing invoices: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.InvoiceID)
	}
	items, err := repo.ListLineItems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("EntriesFromRepository: listing line items: %w", err)
	}

	byInvoice := make(map[string][]*bq.InvoiceLineItemRow, len(rows))
	for _, it := range items {
		byInvoice[it.InvoiceID] = append(byInvoice[it.InvoiceID], it)
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e := Entry{
			Source: r.DocumentID,
			Record: infra.RecordFromRows(r, byInvoice[r.InvoiceID]),
		}
		if r.ValidationErrors.Valid {
			if err := json.Unmarshal([]byte(r.ValidationErrors.JSONVal), &e.Errors); err != nil {
				return nil, fmt.Errorf("EntriesFromRepository: invoice %s: decoding validation errors: %w", r.InvoiceID, err)
			}
		}
		entries = append(entries, e)
	}

	return entries, nil
}
