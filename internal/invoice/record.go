package invoice

// Record is a validated and normalized invoice. A nil pointer means the field
// was absent, null, or failed validation.
type Record struct {
	InvoiceNumber   *string  `json:"invoice_number"`
	Date            *string  `json:"date"`
	DueDate         *string  `json:"due_date"`
	TotalAmount     *float64 `json:"total_amount"`
	TaxAmount       *float64 `json:"tax_amount"`
	TaxfreeAmount   *float64 `json:"taxfree_amount"`
	VendorName      *string  `json:"vendor_name"`
	VendorAddress   *string  `json:"vendor_address"`
	BusinessID      *string  `json:"business_id"`
	AccountNumber   *string  `json:"account_number"`
	BIC             *string  `json:"bic"`
	IBAN            *string  `json:"iban"`
	ReferenceNumber *string  `json:"reference_number"`
	PaymentTerms    *string  `json:"payment_terms"`
	Currency        *string  `json:"currency"`

	LineItems []LineItem `json:"line_items"`

	// Extra holds unrecognized keys, passed through without validation.
	Extra map[string]any `json:"-"`
}

// LineItem is one validated invoice row.
type LineItem struct {
	ProductName *string  `json:"product_name"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
	Total       *float64 `json:"total"`

	Extra map[string]any `json:"-"`
}

// Raw converts the record back into a raw field map, so it can be validated
// again. Unrecognized keys from Extra are included.
func (r *Record) Raw() Raw {
	raw := make(Raw, len(Fields)+len(r.Extra))
	for k, v := range r.Extra {
		raw[k] = Scalar{V: v}
	}

	raw[string(FieldInvoiceNumber)] = scalarOf(r.InvoiceNumber)
	raw[string(FieldDate)] = scalarOf(r.Date)
	raw[string(FieldDueDate)] = scalarOf(r.DueDate)
	raw[string(FieldTotalAmount)] = scalarOf(r.TotalAmount)
	raw[string(FieldTaxAmount)] = scalarOf(r.TaxAmount)
	raw[string(FieldTaxfreeAmount)] = scalarOf(r.TaxfreeAmount)
	raw[string(FieldVendorName)] = scalarOf(r.VendorName)
	raw[string(FieldVendorAddress)] = scalarOf(r.VendorAddress)
	raw[string(FieldBusinessID)] = scalarOf(r.BusinessID)
	raw[string(FieldAccountNumber)] = scalarOf(r.AccountNumber)
	raw[string(FieldBIC)] = scalarOf(r.BIC)
	raw[string(FieldIBAN)] = scalarOf(r.IBAN)
	raw[string(FieldReferenceNumber)] = scalarOf(r.ReferenceNumber)
	raw[string(FieldPaymentTerms)] = scalarOf(r.PaymentTerms)
	raw[string(FieldCurrency)] = scalarOf(r.Currency)

	items := make(LineItemList, 0, len(r.LineItems))
	for _, li := range r.LineItems {
		item := make(RawLineItem, len(LineItemFields)+len(li.Extra))
		for k, v := range li.Extra {
			item[k] = v
		}
		item[string(ItemProductName)] = valueOf(li.ProductName)
		item[string(ItemQuantity)] = valueOf(li.Quantity)
		item[string(ItemUnitPrice)] = valueOf(li.UnitPrice)
		item[string(ItemTotal)] = valueOf(li.Total)
		items = append(items, item)
	}
	raw[string(FieldLineItems)] = items

	return raw
}

func scalarOf[T any](p *T) Scalar {
	return Scalar{V: valueOf(p)}
}

func valueOf[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
