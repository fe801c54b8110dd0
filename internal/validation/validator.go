package validation

import (
	"github.com/dvloznov/invoice-extractor/internal/invoice"
)

// fieldRule validates one raw value and stores the normalized result on rec.
type fieldRule func(raw any, rec *invoice.Record) (bool, string)

// itemRule is the line item counterpart of fieldRule.
type itemRule func(raw any, item *invoice.LineItem) (bool, string)

func bind[T any](rule Rule[T], set func(*invoice.Record, *T)) fieldRule {
	return func(raw any, rec *invoice.Record) (bool, string) {
		out := rule(raw)
		set(rec, out.Value)
		return out.Valid, out.Message
	}
}

func bindItem[T any](rule Rule[T], set func(*invoice.LineItem, *T)) itemRule {
	return func(raw any, item *invoice.LineItem) (bool, string) {
		out := rule(raw)
		set(item, out.Value)
		return out.Valid, out.Message
	}
}

// recordRules covers every top-level field except line_items.
var recordRules = map[invoice.Field]fieldRule{
	invoice.FieldInvoiceNumber: bind(InvoiceNumber, func(r *invoice.Record, v *string) { r.InvoiceNumber = v }),
	invoice.FieldDate:          bind(Date, func(r *invoice.Record, v *string) { r.Date = v }),
	invoice.FieldDueDate:       bind(Date, func(r *invoice.Record, v *string) { r.DueDate = v }),
	invoice.FieldTotalAmount:   bind(Amount("Total amount"), func(r *invoice.Record, v *float64) { r.TotalAmount = v }),
	invoice.FieldTaxAmount:     bind(Amount("Tax amount"), func(r *invoice.Record, v *float64) { r.TaxAmount = v }),
	invoice.FieldTaxfreeAmount: bind(Amount("Tax-free amount"), func(r *invoice.Record, v *float64) { r.TaxfreeAmount = v }),
	invoice.FieldVendorName:    bind(Text, func(r *invoice.Record, v *string) { r.VendorName = v }),
	invoice.FieldVendorAddress: bind(Text, func(r *invoice.Record, v *string) { r.VendorAddress = v }),
	invoice.FieldBusinessID:    bind(BusinessID, func(r *invoice.Record, v *string) { r.BusinessID = v }),
	invoice.FieldAccountNumber: bind(AccountNumber, func(r *invoice.Record, v *string) { r.AccountNumber = v }),
	invoice.FieldBIC:           bind(BIC, func(r *invoice.Record, v *string) { r.BIC = v }),
	invoice.FieldIBAN:          bind(IBAN, func(r *invoice.Record, v *string) { r.IBAN = v }),
	invoice.FieldReferenceNumber: bind(ReferenceNumber, func(r *invoice.Record, v *string) {
		r.ReferenceNumber = v
	}),
	invoice.FieldPaymentTerms: bind(Text, func(r *invoice.Record, v *string) { r.PaymentTerms = v }),
	invoice.FieldCurrency:     bind(Currency, func(r *invoice.Record, v *string) { r.Currency = v }),
}

var itemRules = map[invoice.LineItemField]itemRule{
	invoice.ItemProductName: bindItem(ProductName, func(li *invoice.LineItem, v *string) { li.ProductName = v }),
	invoice.ItemQuantity:    bindItem(Quantity, func(li *invoice.LineItem, v *float64) { li.Quantity = v }),
	invoice.ItemUnitPrice:   bindItem(Amount("Unit price"), func(li *invoice.LineItem, v *float64) { li.UnitPrice = v }),
	invoice.ItemTotal:       bindItem(Amount("Total"), func(li *invoice.LineItem, v *float64) { li.Total = v }),
}

// Validate checks every field of raw and returns the normalized record along
// with the errors of the fields that failed. Fields that fail are null in the
// record; unrecognized keys are copied to Record.Extra unchanged. raw is not
// modified.
func Validate(raw invoice.Raw) (*invoice.Record, invoice.Errors) {
	rec := &invoice.Record{LineItems: []invoice.LineItem{}}
	errs := invoice.Errors{}

	for key, value := range raw {
		field, known := invoice.ParseField(key)
		if !known {
			if rec.Extra == nil {
				rec.Extra = make(map[string]any)
			}
			rec.Extra[key] = plain(value)
			continue
		}

		if field == invoice.FieldLineItems {
			rec.LineItems = validateLineItems(value, errs)
			continue
		}

		if ok, msg := recordRules[field](plain(value), rec); !ok {
			errs.Add(invoice.FieldPath(field), msg)
		}
	}

	return rec, errs
}

func validateLineItems(value invoice.Value, errs invoice.Errors) []invoice.LineItem {
	list, ok := value.(invoice.LineItemList)
	if !ok {
		if plain(value) != nil {
			errs.Add(invoice.FieldPath(invoice.FieldLineItems), "Line items must be a list")
		}
		return []invoice.LineItem{}
	}

	items := make([]invoice.LineItem, 0, len(list))
	for i, raw := range list {
		var item invoice.LineItem
		if raw == nil {
			errs.Add(invoice.ItemPath(i, ""), "Line item is not an object")
			items = append(items, item)
			continue
		}

		for key, v := range raw {
			field, known := invoice.ParseLineItemField(key)
			if !known {
				if item.Extra == nil {
					item.Extra = make(map[string]any)
				}
				item.Extra[key] = v
				continue
			}
			if ok, msg := itemRules[field](v, &item); !ok {
				errs.Add(invoice.ItemPath(i, field), msg)
			}
		}
		items = append(items, item)
	}
	return items
}

// plain unwraps a raw Value into the JSON-decoded form the rules expect.
func plain(v invoice.Value) any {
	switch t := v.(type) {
	case invoice.Scalar:
		return t.V
	case invoice.LineItemList:
		return t.Values()
	default:
		return nil
	}
}
