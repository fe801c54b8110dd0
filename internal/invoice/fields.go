package invoice

// Field names a top-level invoice field. The set is closed: every field the
// extractor asks the model for and the validator knows how to check is listed
// in Fields.
type Field string

const (
	FieldInvoiceNumber   Field = "invoice_number"
	FieldDate            Field = "date"
	FieldDueDate         Field = "due_date"
	FieldTotalAmount     Field = "total_amount"
	FieldTaxAmount       Field = "tax_amount"
	FieldTaxfreeAmount   Field = "taxfree_amount"
	FieldVendorName      Field = "vendor_name"
	FieldVendorAddress   Field = "vendor_address"
	FieldBusinessID      Field = "business_id"
	FieldAccountNumber   Field = "account_number"
	FieldBIC             Field = "bic"
	FieldIBAN            Field = "iban"
	FieldReferenceNumber Field = "reference_number"
	FieldPaymentTerms    Field = "payment_terms"
	FieldCurrency        Field = "currency"
	FieldLineItems       Field = "line_items"
)

// Fields lists every top-level field in canonical order.
var Fields = []Field{
	FieldInvoiceNumber,
	FieldDate,
	FieldDueDate,
	FieldTotalAmount,
	FieldTaxAmount,
	FieldTaxfreeAmount,
	FieldVendorName,
	FieldVendorAddress,
	FieldBusinessID,
	FieldAccountNumber,
	FieldBIC,
	FieldIBAN,
	FieldReferenceNumber,
	FieldPaymentTerms,
	FieldCurrency,
	FieldLineItems,
}

// ParseField maps a raw key to a known Field.
func ParseField(key string) (Field, bool) {
	for _, f := range Fields {
		if string(f) == key {
			return f, true
		}
	}
	return "", false
}

// LineItemField names a field inside a single line item.
type LineItemField string

const (
	ItemProductName LineItemField = "product_name"
	ItemQuantity    LineItemField = "quantity"
	ItemUnitPrice   LineItemField = "unit_price"
	ItemTotal       LineItemField = "total"
)

// LineItemFields lists every line item field in canonical order.
var LineItemFields = []LineItemField{
	ItemProductName,
	ItemQuantity,
	ItemUnitPrice,
	ItemTotal,
}

// ParseLineItemField maps a raw line item key to a known LineItemField.
func ParseLineItemField(key string) (LineItemField, bool) {
	for _, f := range LineItemFields {
		if string(f) == key {
			return f, true
		}
	}
	return "", false
}
