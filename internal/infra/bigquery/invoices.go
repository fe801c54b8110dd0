package bigquery

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/dvloznov/invoice-extractor/internal/invoice"
	"github.com/dvloznov/invoice-extractor/internal/validation"
)

// RowsFromRecord maps a validated record into an invoice row and its line
// item rows. Validation errors and unrecognized keys go into JSON columns.
func RowsFromRecord(rec *invoice.Record, errs invoice.Errors, documentID, parsingRunID string) (*InvoiceRow, []*InvoiceLineItemRow, error) {
	invoiceDate, err := nullDate(rec.Date)
	if err != nil {
		return nil, nil, fmt.Errorf("RowsFromRecord: invoice date: %w", err)
	}
	dueDate, err := nullDate(rec.DueDate)
	if err != nil {
		return nil, nil, fmt.Errorf("RowsFromRecord: due date: %w", err)
	}

	validationErrors, err := nullJSON(errs, len(errs) == 0)
	if err != nil {
		return nil, nil, fmt.Errorf("RowsFromRecord: validation errors: %w", err)
	}
	extra, err := nullJSON(rec.Extra, len(rec.Extra) == 0)
	if err != nil {
		return nil, nil, fmt.Errorf("RowsFromRecord: extra: %w", err)
	}

	row := &InvoiceRow{
		InvoiceID:        uuid.NewString(),
		DocumentID:       documentID,
		ParsingRunID:     parsingRunID,
		InvoiceNumber:    nullString(rec.InvoiceNumber),
		InvoiceDate:      invoiceDate,
		DueDate:          dueDate,
		TotalAmount:      nullFloat(rec.TotalAmount),
		TaxAmount:        nullFloat(rec.TaxAmount),
		TaxfreeAmount:    nullFloat(rec.TaxfreeAmount),
		Currency:         nullString(rec.Currency),
		VendorName:       nullString(rec.VendorName),
		VendorAddress:    nullString(rec.VendorAddress),
		BusinessID:       nullString(rec.BusinessID),
		AccountNumber:    nullString(rec.AccountNumber),
		BIC:              nullString(rec.BIC),
		IBAN:             nullString(rec.IBAN),
		ReferenceNumber:  nullString(rec.ReferenceNumber),
		PaymentTerms:     nullString(rec.PaymentTerms),
		ValidationErrors: validationErrors,
		Extra:            extra,
		CreatedTS:        time.Now().UTC(),
	}

	items := make([]*InvoiceLineItemRow, 0, len(rec.LineItems))
	for i, li := range rec.LineItems {
		itemExtra, err := nullJSON(li.Extra, len(li.Extra) == 0)
		if err != nil {
			return nil, nil, fmt.Errorf("RowsFromRecord: line item %d: %w", i, err)
		}
		items = append(items, &InvoiceLineItemRow{
			LineItemID:  uuid.NewString(),
			InvoiceID:   row.InvoiceID,
			LineIndex:   int64(i),
			ProductName: nullString(li.ProductName),
			Quantity:    nullFloat(li.Quantity),
			UnitPrice:   nullFloat(li.UnitPrice),
			Total:       nullFloat(li.Total),
			Extra:       itemExtra,
		})
	}

	return row, items, nil
}

// RecordFromRows rebuilds a record from stored rows. Dates come back in the
// DD.MM.YYYY form the validator produces.
func RecordFromRows(row *InvoiceRow, items []*InvoiceLineItemRow) *invoice.Record {
	rec := &invoice.Record{
		InvoiceNumber:   stringPtr(row.InvoiceNumber),
		Date:            datePtr(row.InvoiceDate),
		DueDate:         datePtr(row.DueDate),
		TotalAmount:     floatPtr(row.TotalAmount),
		TaxAmount:       floatPtr(row.TaxAmount),
		TaxfreeAmount:   floatPtr(row.TaxfreeAmount),
		VendorName:      stringPtr(row.VendorName),
		VendorAddress:   stringPtr(row.VendorAddress),
		BusinessID:      stringPtr(row.BusinessID),
		AccountNumber:   stringPtr(row.AccountNumber),
		BIC:             stringPtr(row.BIC),
		IBAN:            stringPtr(row.IBAN),
		ReferenceNumber: stringPtr(row.ReferenceNumber),
		PaymentTerms:    stringPtr(row.PaymentTerms),
		Currency:        stringPtr(row.Currency),
		LineItems:       []invoice.LineItem{},
	}
	for _, it := range items {
		rec.LineItems = append(rec.LineItems, invoice.LineItem{
			ProductName: stringPtr(it.ProductName),
			Quantity:    floatPtr(it.Quantity),
			UnitPrice:   floatPtr(it.UnitPrice),
			Total:       floatPtr(it.Total),
		})
	}
	return rec
}

func nullString(s *string) bigquery.NullString {
	if s == nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: *s, Valid: true}
}

func nullFloat(f *float64) bigquery.NullFloat64 {
	if f == nil {
		return bigquery.NullFloat64{}
	}
	return bigquery.NullFloat64{Float64: *f, Valid: true}
}

func nullDate(s *string) (bigquery.NullDate, error) {
	if s == nil {
		return bigquery.NullDate{}, nil
	}
	t, err := time.Parse(validation.DateFormat, *s)
	if err != nil {
		return bigquery.NullDate{}, err
	}
	return bigquery.NullDate{Date: civil.DateOf(t), Valid: true}, nil
}

func nullJSON(v any, empty bool) (bigquery.NullJSON, error) {
	if empty {
		return bigquery.NullJSON{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return bigquery.NullJSON{}, err
	}
	return bigquery.NullJSON{JSONVal: string(b), Valid: true}, nil
}

func stringPtr(n bigquery.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.StringVal
	return &s
}

func floatPtr(n bigquery.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}

func datePtr(n bigquery.NullDate) *string {
	if !n.Valid {
		return nil
	}
	s := n.Date.In(time.UTC).Format(validation.DateFormat)
	return &s
}
