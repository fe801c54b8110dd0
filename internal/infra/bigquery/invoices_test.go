package bigquery

import (
	"errors"
	"strings"
	"testing"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"

	"github.com/dvloznov/invoice-extractor/internal/invoice"
)

func ptr[T any](v T) *T { return &v }

func TestRowsFromRecord(t *testing.T) {
	rec := &invoice.Record{
		InvoiceNumber: ptr("INV-2024-001"),
		Date:          ptr("15.03.2024"),
		TotalAmount:   ptr(124.0),
		TaxAmount:     ptr(24.0),
		IBAN:          ptr("FI21 1234 5600 0007 85"),
		Currency:      ptr("EUR"),
		LineItems: []invoice.LineItem{
			{ProductName: ptr("Widget"), Quantity: ptr(2.0), UnitPrice: ptr(50.0), Total: ptr(100.0)},
			{ProductName: ptr("Shipping"), Extra: map[string]any{"sku": "SHP"}},
		},
		Extra: map[string]any{"po_number": "PO-7"},
	}
	errs := invoice.Errors{}
	errs.Add(invoice.FieldPath(invoice.FieldBIC), "Invalid BIC format")

	row, items, err := RowsFromRecord(rec, errs, "doc-1", "run-1")
	if err != nil {
		t.Fatalf("RowsFromRecord() error = %v", err)
	}

	if row.InvoiceID == "" || row.DocumentID != "doc-1" || row.ParsingRunID != "run-1" {
		t.Errorf("ids = %q %q %q", row.InvoiceID, row.DocumentID, row.ParsingRunID)
	}
	if want := (bigquery.NullDate{Date: civil.Date{Year: 2024, Month: 3, Day: 15}, Valid: true}); row.InvoiceDate != want {
		t.Errorf("InvoiceDate = %+v, want %+v", row.InvoiceDate, want)
	}
	if row.DueDate.Valid {
		t.Error("DueDate should be NULL")
	}
	if row.TotalAmount != (bigquery.NullFloat64{Float64: 124, Valid: true}) {
		t.Errorf("TotalAmount = %+v", row.TotalAmount)
	}
	if row.TaxfreeAmount.Valid || row.VendorName.Valid {
		t.Error("absent fields should be NULL")
	}
	if row.ValidationErrors.JSONVal != `{"bic":"Invalid BIC format"}` {
		t.Errorf("ValidationErrors = %q", row.ValidationErrors.JSONVal)
	}
	if row.Extra.JSONVal != `{"po_number":"PO-7"}` {
		t.Errorf("Extra = %q", row.Extra.JSONVal)
	}

	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	for i, it := range items {
		if it.InvoiceID != row.InvoiceID || it.LineIndex != int64(i) {
			t.Errorf("item %d: invoice %q index %d", i, it.InvoiceID, it.LineIndex)
		}
	}
	if items[1].Quantity.Valid || items[1].Extra.JSONVal != `{"sku":"SHP"}` {
		t.Errorf("item 1 = %+v", items[1])
	}
}

func TestRowsFromRecord_EmptyRecord(t *testing.T) {
	row, items, err := RowsFromRecord(&invoice.Record{}, nil, "doc", "run")
	if err != nil {
		t.Fatalf("RowsFromRecord() error = %v", err)
	}
	if row.ValidationErrors.Valid || row.Extra.Valid || row.InvoiceDate.Valid {
		t.Errorf("empty record should produce NULL columns: %+v", row)
	}
	if len(items) != 0 {
		t.Errorf("len(items) = %d", len(items))
	}
}

func TestRowsFromRecord_BadDate(t *testing.T) {
	_, _, err := RowsFromRecord(&invoice.Record{Date: ptr("2024-03-15")}, nil, "doc", "run")
	if err == nil {
		t.Fatal("expected error for a date not in DD.MM.YYYY form")
	}
}

func TestRecordFromRows_RoundTrip(t *testing.T) {
	rec := &invoice.Record{
		InvoiceNumber: ptr("A-1"),
		Date:          ptr("01.02.2024"),
		DueDate:       ptr("01.03.2024"),
		TotalAmount:   ptr(10.5),
		Currency:      ptr("EUR"),
		LineItems: []invoice.LineItem{
			{ProductName: ptr("Thing"), Total: ptr(10.5)},
		},
	}

	row, items, err := RowsFromRecord(rec, nil, "doc", "run")
	if err != nil {
		t.Fatal(err)
	}
	got := RecordFromRows(row, items)

	if diff := cmp.Diff(rec, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestTruncateErrorMessage(t *testing.T) {
	if got := TruncateErrorMessage(nil); got != "" {
		t.Errorf("nil error = %q", got)
	}
	long := errors.New(strings.Repeat("x", 2500))
	if got := TruncateErrorMessage(long); len(got) != 2000 {
		t.Errorf("len = %d, want 2000", len(got))
	}
}
