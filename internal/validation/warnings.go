package validation

import "github.com/dvloznov/invoice-extractor/internal/invoice"

// MissingEssentials lists the key invoice fields that are null in rec. These
// are warnings for the reader, not validation errors.
func MissingEssentials(rec *invoice.Record) []string {
	var warnings []string
	if rec.InvoiceNumber == nil {
		warnings = append(warnings, "Invoice number not found")
	}
	if rec.TotalAmount == nil {
		warnings = append(warnings, "Total amount not found")
	}
	if rec.Date == nil {
		warnings = append(warnings, "Invoice date not found")
	}
	return warnings
}
