package extraction

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/dvloznov/invoice-extractor/internal/invoice"
)

func TestRecoverJSONObject(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantRecovery Recovery
		wantErr      bool
		wantNumber   string
	}{
		{
			name:         "plain object",
			input:        `{"invoice_number": "A-1"}`,
			wantRecovery: RecoveryDirect,
			wantNumber:   "A-1",
		},
		{
			name:         "single element array",
			input:        `[{"invoice_number": "A-2"}]`,
			wantRecovery: RecoveryDirect,
			wantNumber:   "A-2",
		},
		{
			name:         "json fence",
			input:        "Here you go:\n```json\n{\"invoice_number\": \"A-3\"}\n```\nThanks",
			wantRecovery: RecoveryFenced,
			wantNumber:   "A-3",
		},
		{
			name:         "bare fence",
			input:        "```\n{\"invoice_number\": \"A-4\"}\n```",
			wantRecovery: RecoveryFenced,
			wantNumber:   "A-4",
		},
		{
			name:         "prose around braces",
			input:        `The invoice data is {"invoice_number": "A-5", "line_items": [{"total": 1}]} as requested.`,
			wantRecovery: RecoveryBraces,
			wantNumber:   "A-5",
		},
		{
			name:    "no json",
			input:   "I could not read this invoice.",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "   ",
			wantErr: true,
		},
		{
			name:    "array of many objects",
			input:   `[{"a": 1}, {"b": 2}]`,
			wantErr: true,
		},
		{
			name:         "trailing text after object",
			input:        `{"invoice_number": "A-7"} and some notes`,
			wantRecovery: RecoveryBraces,
			wantNumber:   "A-7",
		},
		{
			name:    "broken object",
			input:   `{"invoice_number": "A-6",`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, recovery, err := recoverJSONObject(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("recoverJSONObject() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if recovery != tt.wantRecovery {
				t.Errorf("recovery = %q, want %q", recovery, tt.wantRecovery)
			}
			if obj["invoice_number"] != tt.wantNumber {
				t.Errorf("invoice_number = %v, want %q", obj["invoice_number"], tt.wantNumber)
			}
		})
	}
}

func TestRecoverJSONObject_KeepsNumberDigits(t *testing.T) {
	obj, _, err := recoverJSONObject(`{"reference_number": 1234567890123456789012, "total_amount": 12.50}`)
	if err != nil {
		t.Fatalf("recoverJSONObject() error = %v", err)
	}
	if got := obj["reference_number"]; got != json.Number("1234567890123456789012") {
		t.Errorf("reference_number = %#v, want json.Number with every digit", got)
	}
	if got := obj["total_amount"]; got != json.Number("12.50") {
		t.Errorf("total_amount = %#v", got)
	}
}

func TestCheckShape(t *testing.T) {
	good := map[string]any{
		"invoice_number": "A-1",
		"total_amount":   12.5,
		"line_items":     []any{map[string]any{"product_name": "x", "quantity": 1.0}},
	}
	if err := checkShape(good); err != nil {
		t.Errorf("checkShape(good) = %v", err)
	}

	bad := map[string]any{
		"line_items": "none",
	}
	if err := checkShape(bad); err == nil {
		t.Error("checkShape should reject a non-array line_items")
	}

	nested := map[string]any{
		"vendor_name": map[string]any{"name": "Acme"},
	}
	if err := checkShape(nested); err == nil {
		t.Error("checkShape should reject an object where a scalar is expected")
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt()
	for _, f := range invoice.Fields {
		if !strings.Contains(prompt, "- "+string(f)) {
			t.Errorf("prompt does not ask for %q", f)
		}
	}
	if !strings.Contains(prompt, "null") {
		t.Error("prompt should tell the model to use null for missing values")
	}
}

func TestUseFileAPI(t *testing.T) {
	tests := []struct {
		size int64
		want bool
	}{
		{size: 0, want: false},
		{size: DefaultInlineLimit - 1, want: false},
		{size: DefaultInlineLimit, want: true},
		{size: DefaultInlineLimit + 1, want: true},
	}
	for _, tt := range tests {
		if got := useFileAPI(tt.size, DefaultInlineLimit); got != tt.want {
			t.Errorf("useFileAPI(%d) = %v, want %v", tt.size, got, tt.want)
		}
	}
}

func TestGeminiModel_NeedsUpload(t *testing.T) {
	m := &GeminiModel{inlineLimit: 64}
	label := int64(len(textPart("")))

	tests := []struct {
		name string
		doc  Document
		want bool
	}{
		{name: "small pdf", doc: Document{Data: make([]byte, 63)}, want: false},
		{name: "pdf at limit", doc: Document{Data: make([]byte, 64)}, want: true},
		{name: "short text", doc: Document{Text: "Invoice 1"}, want: false},
		{name: "long text", doc: Document{Text: strings.Repeat("x", 64)}, want: true},
		{name: "text at limit with label", doc: Document{Text: strings.Repeat("x", int(64-label))}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.needsUpload(tt.doc); got != tt.want {
				t.Errorf("needsUpload() = %v, want %v (size %d)", got, tt.want, tt.doc.Size())
			}
		})
	}
}

func TestDocumentPayload(t *testing.T) {
	data, mimeType := Document{Text: "Total 10 EUR"}.payload()
	if mimeType != "text/plain" || string(data) != textPart("Total 10 EUR") {
		t.Errorf("text payload = %q, %q", data, mimeType)
	}

	data, mimeType = Document{Data: []byte("%PDF")}.payload()
	if mimeType != DefaultMIMEType || string(data) != "%PDF" {
		t.Errorf("byte payload = %q, %q", data, mimeType)
	}

	data, mimeType = Document{Data: []byte{0x89, 'P'}, MIMEType: "image/png"}.payload()
	if mimeType != "image/png" || len(data) != 2 {
		t.Errorf("png payload = %v, %q", data, mimeType)
	}
}
