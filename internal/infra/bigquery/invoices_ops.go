package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const (
	invoicesTable  = "invoices"
	lineItemsTable = "invoice_line_items"

	// DefaultListLimit caps ListInvoicesWithClient when no limit is given.
	DefaultListLimit = 500
)

// InsertInvoiceWithClient inserts an invoice row and its line items using the
// provided BigQuery client.
func InsertInvoiceWithClient(ctx context.Context, client *bigquery.Client, datasetID string, row *InvoiceRow, items []*InvoiceLineItemRow) error {
	if err := client.Dataset(datasetID).Table(invoicesTable).Inserter().Put(ctx, row); err != nil {
		return fmt.Errorf("InsertInvoice: inserting invoice: %w", err)
	}

	if len(items) == 0 {
		return nil
	}

	if err := client.Dataset(datasetID).Table(lineItemsTable).Inserter().Put(ctx, items); err != nil {
		return fmt.Errorf("InsertInvoice: inserting line items: %w", err)
	}

	return nil
}

// ListInvoicesWithClient returns the newest invoices from successful parsing
// runs.
func ListInvoicesWithClient(ctx context.Context, client *bigquery.Client, datasetID string, limit int) ([]*InvoiceRow, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	q := client.Query(fmt.Sprintf(`
		SELECT
			i.invoice_id,
			i.document_id,
			i.parsing_run_id,
			i.invoice_number,
			i.invoice_date,
			i.due_date,
			i.total_amount,
			i.tax_amount,
			i.taxfree_amount,
			i.currency,
			i.vendor_name,
			i.vendor_address,
			i.business_id,
			i.account_number,
			i.bic,
			i.iban,
			i.reference_number,
			i.payment_terms,
			i.validation_errors,
			i.extra,
			i.created_ts
		FROM %[1]s.%[2]s i
		INNER JOIN %[1]s.%[3]s pr
		  ON i.parsing_run_id = pr.parsing_run_id
		WHERE pr.status = 'SUCCESS'
		ORDER BY i.created_ts DESC
		LIMIT @limit
	`, datasetID, invoicesTable, parsingRunsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListInvoices: query read: %w", err)
	}

	var rows []*InvoiceRow
	for {
		var r InvoiceRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListInvoices: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}

// ListLineItemsWithClient returns the line items of the given invoices,
// ordered by invoice and line index.
func ListLineItemsWithClient(ctx context.Context, client *bigquery.Client, datasetID string, invoiceIDs []string) ([]*InvoiceLineItemRow, error) {
	if len(invoiceIDs) == 0 {
		return nil, nil
	}

	q := client.Query(fmt.Sprintf(`
		SELECT
			line_item_id,
			invoice_id,
			line_index,
			product_name,
			quantity,
			unit_price,
			total,
			extra
		FROM %s.%s
		WHERE invoice_id IN UNNEST(@invoice_ids)
		ORDER BY invoice_id, line_index
	`, datasetID, lineItemsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "invoice_ids", Value: invoiceIDs},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListLineItems: query read: %w", err)
	}

	var rows []*InvoiceLineItemRow
	for {
		var r InvoiceLineItemRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListLineItems: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
