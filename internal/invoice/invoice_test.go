package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEmpty(t *testing.T) {
	raw := Empty()

	if len(raw) != len(Fields) {
		t.Fatalf("Empty() has %d keys, want %d", len(raw), len(Fields))
	}
	for _, f := range Fields {
		if !raw.Has(f) {
			t.Errorf("Empty() missing field %q", f)
		}
		if f == FieldLineItems {
			continue
		}
		if got := raw.Get(f); got != nil {
			t.Errorf("Empty()[%q] = %v, want nil", f, got)
		}
	}
	if items := raw.LineItems(); items == nil || len(items) != 0 {
		t.Errorf("Empty() line items = %#v, want empty list", items)
	}
}

func TestFromMap(t *testing.T) {
	in := map[string]any{
		"invoice_number": "INV-1",
		"total_amount":   "12,50",
		"custom_key":     true,
		"line_items": []any{
			map[string]any{"product_name": "Widget", "quantity": 2.0},
			"not an object",
		},
	}

	raw := FromMap(in)

	if got := raw.Get(FieldInvoiceNumber); got != "INV-1" {
		t.Errorf("invoice_number = %v, want INV-1", got)
	}
	if s, ok := raw["custom_key"].(Scalar); !ok || s.V != true {
		t.Errorf("custom_key = %#v, want Scalar{true}", raw["custom_key"])
	}

	items := raw.LineItems()
	if len(items) != 2 {
		t.Fatalf("got %d line items, want 2", len(items))
	}
	if items[0]["product_name"] != "Widget" {
		t.Errorf("items[0].product_name = %v, want Widget", items[0]["product_name"])
	}
	if items[1] != nil {
		t.Errorf("items[1] = %#v, want nil for non-object entry", items[1])
	}

	// The input map must be left untouched.
	items[0]["product_name"] = "changed"
	first := in["line_items"].([]any)[0].(map[string]any)
	if first["product_name"] != "Widget" {
		t.Error("FromMap shares line item maps with its input")
	}
}

func TestFromMap_LineItemsShapes(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		wantList  bool
		wantCount int
	}{
		{name: "null becomes empty list", value: nil, wantList: true, wantCount: 0},
		{name: "array", value: []any{map[string]any{}}, wantList: true, wantCount: 1},
		{name: "string kept as scalar", value: "none", wantList: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := FromMap(map[string]any{"line_items": tt.value})
			list, ok := raw["line_items"].(LineItemList)
			if ok != tt.wantList {
				t.Fatalf("line_items is list = %v, want %v", ok, tt.wantList)
			}
			if ok && len(list) != tt.wantCount {
				t.Errorf("got %d items, want %d", len(list), tt.wantCount)
			}
		})
	}
}

func TestWithDefaults(t *testing.T) {
	raw := FromMap(map[string]any{"vendor_name": "Acme Oy", "note": "x"}).WithDefaults()

	for _, f := range Fields {
		if !raw.Has(f) {
			t.Errorf("WithDefaults() missing %q", f)
		}
	}
	if raw.Get(FieldVendorName) != "Acme Oy" {
		t.Errorf("vendor_name = %v, want Acme Oy", raw.Get(FieldVendorName))
	}
	if _, ok := raw["note"]; !ok {
		t.Error("WithDefaults() dropped unrecognized key")
	}
}

func TestRecordRaw_RoundTrip(t *testing.T) {
	num := "INV-7"
	total := 1234.5
	qty := 3.0
	name := "Consulting"

	rec := &Record{
		InvoiceNumber: &num,
		TotalAmount:   &total,
		LineItems: []LineItem{
			{ProductName: &name, Quantity: &qty, Extra: map[string]any{"sku": "A1"}},
		},
		Extra: map[string]any{"order_id": "42"},
	}

	got := rec.Raw().Map()

	want := map[string]any{
		"invoice_number":   "INV-7",
		"date":             nil,
		"due_date":         nil,
		"total_amount":     1234.5,
		"tax_amount":       nil,
		"taxfree_amount":   nil,
		"vendor_name":      nil,
		"vendor_address":   nil,
		"business_id":      nil,
		"account_number":   nil,
		"bic":              nil,
		"iban":             nil,
		"reference_number": nil,
		"payment_terms":    nil,
		"currency":         nil,
		"order_id":         "42",
		"line_items": []any{
			map[string]any{
				"product_name": "Consulting",
				"quantity":     3.0,
				"unit_price":   nil,
				"total":        nil,
				"sku":          "A1",
			},
		},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Record.Raw().Map() mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordJSON(t *testing.T) {
	rec := &Record{LineItems: []LineItem{}}
	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if len(decoded) != len(Fields) {
		t.Errorf("encoded record has %d keys, want %d", len(decoded), len(Fields))
	}
	if items, ok := decoded["line_items"].([]any); !ok || len(items) != 0 {
		t.Errorf("line_items = %#v, want []", decoded["line_items"])
	}
}

func TestPathString(t *testing.T) {
	tests := []struct {
		path Path
		want string
	}{
		{FieldPath(FieldTotalAmount), "total_amount"},
		{ItemPath(1, ItemQuantity), "line_items[1].quantity"},
		{ItemPath(0, ""), "line_items[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.path.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrors_SortedAndJSON(t *testing.T) {
	errs := Errors{}
	errs.Add(ItemPath(1, ItemQuantity), "Quantity cannot be negative")
	errs.Add(FieldPath(FieldIBAN), "Invalid IBAN format")
	errs.Add(ItemPath(0, ItemTotal), "Invalid total")

	sorted := errs.Sorted()
	var order []string
	for _, e := range sorted {
		order = append(order, e.Path.String())
	}
	wantOrder := []string{"iban", "line_items[0].total", "line_items[1].quantity"}
	if diff := cmp.Diff(wantOrder, order); diff != "" {
		t.Errorf("Sorted() order mismatch (-want +got):\n%s", diff)
	}

	b, err := json.Marshal(errs)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if decoded["line_items[1].quantity"] != "Quantity cannot be negative" {
		t.Errorf("decoded errors = %v", decoded)
	}
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("deadline exceeded")

	extractErr := fmt.Errorf("wrapped: %w", &ExtractionError{Stage: "generate", Err: cause})
	if !errors.Is(extractErr, ErrExtractionFailure) {
		t.Error("ExtractionError should match ErrExtractionFailure")
	}
	if !errors.Is(extractErr, cause) {
		t.Error("ExtractionError should unwrap to its cause")
	}

	missing := &MissingContextError{Source: "invoice.pdf"}
	if !errors.Is(missing, ErrMissingDocument) {
		t.Error("MissingContextError should match ErrMissingDocument")
	}
	var target *MissingContextError
	if !errors.As(fmt.Errorf("load: %w", missing), &target) || target.Source != "invoice.pdf" {
		t.Error("errors.As should recover MissingContextError")
	}
}
