package pipeline_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/dvloznov/invoice-extractor/internal/document"
	"github.com/dvloznov/invoice-extractor/internal/extraction"
	"github.com/dvloznov/invoice-extractor/internal/invoice"
	"github.com/dvloznov/invoice-extractor/internal/pipeline"
)

func TestProcessAll(t *testing.T) {
	var inFlight, peak atomic.Int32
	loader := &MockLoader{
		LoadFunc: func(ctx context.Context, src document.Source) (extraction.Document, error) {
			if src.Text == "" {
				return extraction.Document{}, &invoice.MissingContextError{Source: src.Origin()}
			}
			return extraction.Document{Text: src.Text, MIMEType: "text/plain"}, nil
		},
	}
	extractor := &MockExtractor{
		ExtractFunc: func(ctx context.Context, doc extraction.Document) (*extraction.Result, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			raw := invoice.Empty()
			raw["invoice_number"] = invoice.Scalar{V: doc.Text}
			return &extraction.Result{Raw: raw}, nil
		},
	}

	srcs := []document.Source{{Text: "INV-1"}, {}, {Text: "INV-3"}, {Text: "INV-4"}}
	items, err := pipeline.NewProcessor(loader, extractor).ProcessAll(context.Background(), srcs, 2)
	if err != nil {
		t.Fatalf("ProcessAll() error = %v", err)
	}
	if len(items) != len(srcs) {
		t.Fatalf("items = %d, want %d", len(items), len(srcs))
	}

	for i, want := range []string{"INV-1", "", "INV-3", "INV-4"} {
		item := items[i]
		if want == "" {
			if !errors.Is(item.Err, invoice.ErrMissingDocument) {
				t.Errorf("item %d error = %v, want missing document", i, item.Err)
			}
			continue
		}
		if item.Err != nil {
			t.Fatalf("item %d error = %v", i, item.Err)
		}
		if got := item.Result.Record.InvoiceNumber; got == nil || *got != want {
			t.Errorf("item %d invoice number = %v, want %s", i, got, want)
		}
	}

	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestProcessAll_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items, err := pipeline.NewProcessor(&MockLoader{}, &MockExtractor{}).ProcessAll(ctx, []document.Source{{Text: "a"}}, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if len(items) != 1 || items[0].Err == nil {
		t.Errorf("items = %+v", items)
	}
}
