package extraction

import (
	"strings"

	"github.com/dvloznov/invoice-extractor/internal/invoice"
)

var fieldDescriptions = map[invoice.Field]string{
	invoice.FieldInvoiceNumber:   "invoice number",
	invoice.FieldDate:            "invoice date",
	invoice.FieldDueDate:         "payment due date",
	invoice.FieldTotalAmount:     "total amount to pay, including tax (numeric)",
	invoice.FieldTaxAmount:       "tax / VAT amount (numeric)",
	invoice.FieldTaxfreeAmount:   "amount before tax (numeric)",
	invoice.FieldVendorName:      "name of the company that issued the invoice",
	invoice.FieldVendorAddress:   "address of the vendor",
	invoice.FieldBusinessID:      "vendor business ID (\"Y-tunnus\", if in Finland)",
	invoice.FieldAccountNumber:   "domestic bank account number",
	invoice.FieldBIC:             "bank BIC / SWIFT code",
	invoice.FieldIBAN:            "IBAN of the account to pay to",
	invoice.FieldReferenceNumber: "payment reference number",
	invoice.FieldPaymentTerms:    "payment terms, e.g. \"14 days net\"",
	invoice.FieldCurrency:        "currency of the amounts",
	invoice.FieldLineItems:       "array of items with product_name, quantity, unit_price, total",
}

// BuildPrompt returns the instruction sent with every document. It lists
// every field of invoice.Fields in canonical order.
func BuildPrompt() string {
	var b strings.Builder

	b.WriteString("Extract the following information from this invoice and return it as a JSON object.\n")
	b.WriteString("If a piece of information is not found, set the value to null.\n\n")
	b.WriteString("Information to extract:\n")

	for _, f := range invoice.Fields {
		b.WriteString("- ")
		b.WriteString(string(f))
		if desc := fieldDescriptions[f]; desc != "" {
			b.WriteString(" (")
			b.WriteString(desc)
			b.WriteString(")")
		}
		b.WriteString("\n")
	}

	b.WriteString("\nRules:\n")
	b.WriteString("- Use exactly the keys listed above.\n")
	b.WriteString("- Write amounts as they appear on the invoice; do not convert currencies.\n")
	b.WriteString("- Use an empty array for line_items when the invoice has no rows.\n\n")
	b.WriteString("Return ONLY the JSON object without any additional explanation.\n")

	return b.String()
}

// textPart frames pre-extracted document text for the model.
func textPart(text string) string {
	return "INVOICE TEXT:\n" + text
}
