package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dvloznov/invoice-extractor/internal/invoice"
)

const notFound = "Not found"

// FormatSummary renders a validated record as Markdown. Null fields read
// "Not found".
func FormatSummary(rec *invoice.Record, errs invoice.Errors, warnings []string) string {
	if rec == nil {
		rec = &invoice.Record{}
	}
	currency := ""
	if rec.Currency != nil {
		currency = " " + *rec.Currency
	}

	lines := []string{
		"## Invoice Summary",
		"**Invoice Number**: " + str(rec.InvoiceNumber),
		"**Date**: " + str(rec.Date),
		"**Due Date**: " + str(rec.DueDate),
		"**Total Amount**: " + amount(rec.TotalAmount, currency),
		"**Tax Amount**: " + amount(rec.TaxAmount, currency),
		"**Tax-free Amount**: " + amount(rec.TaxfreeAmount, currency),
		"",
		"## Vendor Information",
		"**Vendor**: " + str(rec.VendorName),
		"**Address**: " + str(rec.VendorAddress),
		"**Business ID**: " + str(rec.BusinessID),
		"",
		"## Payment Information",
		"**Bank Account**: " + str(rec.AccountNumber),
		"**BIC**: " + str(rec.BIC),
		"**IBAN**: " + str(rec.IBAN),
		"**Reference Number**: " + str(rec.ReferenceNumber),
		"**Payment Terms**: " + str(rec.PaymentTerms),
	}

	if len(rec.LineItems) > 0 {
		lines = append(lines, "", "## Line Items")
		for i, item := range rec.LineItems {
			name := "Item"
			if item.ProductName != nil {
				name = *item.ProductName
			}
			lines = append(lines, fmt.Sprintf("%d. **%s**: %s x %s = %s",
				i+1, name, number(item.Quantity), number(item.UnitPrice), number(item.Total)))
		}
	}

	if len(errs) > 0 {
		lines = append(lines, "", "## Validation Errors")
		for _, fe := range errs.Sorted() {
			lines = append(lines, fmt.Sprintf("- %s: %s", fe.Path, fe.Message))
		}
	}

	if len(warnings) > 0 {
		lines = append(lines, "", "## Warnings")
		for _, w := range warnings {
			lines = append(lines, "- "+w)
		}
	}

	return strings.Join(lines, "\n")
}

func str(s *string) string {
	if s == nil {
		return notFound
	}
	return *s
}

func amount(f *float64, currency string) string {
	if f == nil {
		return notFound
	}
	return strconv.FormatFloat(*f, 'f', 2, 64) + currency
}

func number(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
