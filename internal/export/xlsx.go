package export

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/invoice-extractor/internal/invoice"
	"github.com/dvloznov/invoice-extractor/internal/logger"
)

// Sheet names of the exported workbook.
const (
	SheetInvoices   = "Invoices"
	SheetLineItems  = "Line Items"
	SheetValidation = "Validation"
)

// Entry is one invoice to export.
type Entry struct {
	Source   string            `json:"source"`
	Record   *invoice.Record   `json:"record"`
	Errors   map[string]string `json:"errors"` // keyed by rendered field path
	Warnings []string          `json:"warnings,omitempty"`
}

var (
	invoiceHeaders = []string{
		"Source", "Invoice Number", "Date", "Due Date",
		"Vendor", "Vendor Address", "Business ID",
		"Total Amount", "Tax Amount", "Tax-free Amount", "Currency",
		"Bank Account", "IBAN", "BIC", "Reference Number", "Payment Terms",
		"Line Items", "Errors",
	}
	lineItemHeaders   = []string{"Source", "Invoice Number", "Line", "Product", "Quantity", "Unit Price", "Total"}
	validationHeaders = []string{"Source", "Invoice Number", "Kind", "Field", "Message"}
)

// WorkbookXLSX renders entries as an XLSX workbook and returns its bytes.
func WorkbookXLSX(ctx context.Context, entries []Entry) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetInvoices); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, sheet := range []string{SheetLineItems, SheetValidation} {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("new sheet %s: %w", sheet, err)
		}
	}

	writeHeaders(f, SheetInvoices, invoiceHeaders)
	writeHeaders(f, SheetLineItems, lineItemHeaders)
	writeHeaders(f, SheetValidation, validationHeaders)

	invRow, itemRow, valRow := 2, 2, 2
	for _, e := range entries {
		rec := e.Record
		if rec == nil {
			rec = &invoice.Record{}
		}
		number := deref(rec.InvoiceNumber)

		writeRow(f, SheetInvoices, invRow,
			e.Source, number, deref(rec.Date), deref(rec.DueDate),
			deref(rec.VendorName), deref(rec.VendorAddress), deref(rec.BusinessID),
			amount(rec.TotalAmount), amount(rec.TaxAmount), amount(rec.TaxfreeAmount), deref(rec.Currency),
			deref(rec.AccountNumber), deref(rec.IBAN), deref(rec.BIC), deref(rec.ReferenceNumber), deref(rec.PaymentTerms),
			len(rec.LineItems), len(e.Errors),
		)
		invRow++

		for i, li := range rec.LineItems {
			writeRow(f, SheetLineItems, itemRow,
				e.Source, number, i+1, deref(li.ProductName),
				amount(li.Quantity), amount(li.UnitPrice), amount(li.Total),
			)
			itemRow++
		}

		for _, field := range sortedKeys(e.Errors) {
			writeRow(f, SheetValidation, valRow, e.Source, number, "error", field, e.Errors[field])
			valRow++
		}
		for _, w := range e.Warnings {
			writeRow(f, SheetValidation, valRow, e.Source, number, "warning", "", w)
			valRow++
		}
	}

	_ = f.SetColWidth(SheetInvoices, "A", "A", 32)
	_ = f.SetColWidth(SheetInvoices, "B", "D", 16)
	_ = f.SetColWidth(SheetInvoices, "E", "F", 32)
	_ = f.SetColWidth(SheetInvoices, "M", "M", 28)
	_ = f.SetColWidth(SheetLineItems, "D", "D", 40)
	_ = f.SetColWidth(SheetValidation, "E", "E", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Int("invoices", len(entries)).
		Int("line_items", itemRow-2).
		Dur("elapsed", time.Since(start)).
		Msg("Exported invoices workbook")

	return buf.Bytes(), nil
}

func writeHeaders(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		if v == nil {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// amount leaves the cell empty for null values.
func amount(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
