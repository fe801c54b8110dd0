package document_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dvloznov/invoice-extractor/internal/document"
	"github.com/dvloznov/invoice-extractor/internal/invoice"
)

// MockStorageService is a mock implementation of gcs.StorageService.
type MockStorageService struct {
	UploadFileFunc   func(ctx context.Context, bucket, object, filePath string) (string, error)
	UploadBytesFunc  func(ctx context.Context, bucket, object, contentType string, data []byte) (string, error)
	FetchFromGCSFunc func(ctx context.Context, gcsURI string) ([]byte, string, error)
}

func (m *MockStorageService) UploadFile(ctx context.Context, bucket, object, filePath string) (string, error) {
	if m.UploadFileFunc != nil {
		return m.UploadFileFunc(ctx, bucket, object, filePath)
	}
	return "", nil
}

func (m *MockStorageService) UploadBytes(ctx context.Context, bucket, object, contentType string, data []byte) (string, error) {
	if m.UploadBytesFunc != nil {
		return m.UploadBytesFunc(ctx, bucket, object, contentType, data)
	}
	return "", nil
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, string, error) {
	if m.FetchFromGCSFunc != nil {
		return m.FetchFromGCSFunc(ctx, gcsURI)
	}
	return nil, "", nil
}

var pdfBytes = []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n")

func TestLoad_Text(t *testing.T) {
	loader := document.NewLoader(nil)
	doc, err := loader.Load(context.Background(), document.Source{Text: "Invoice #42", Data: pdfBytes})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if doc.Text != "Invoice #42" || len(doc.Data) != 0 {
		t.Errorf("text source should win, got %+v", doc)
	}
	if doc.MIMEType != "text/plain" {
		t.Errorf("MIMEType = %q", doc.MIMEType)
	}
}

func TestLoad_Data(t *testing.T) {
	loader := document.NewLoader(nil)
	doc, err := loader.Load(context.Background(), document.Source{Data: pdfBytes, Name: "scan"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if doc.MIMEType != "application/pdf" {
		t.Errorf("MIMEType = %q, want application/pdf", doc.MIMEType)
	}
	if doc.Name != "scan" {
		t.Errorf("Name = %q", doc.Name)
	}
}

func TestLoad_Path(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "acme.pdf")
	if err := os.WriteFile(p, pdfBytes, 0o600); err != nil {
		t.Fatal(err)
	}

	doc, err := document.NewLoader(nil).Load(context.Background(), document.Source{Path: p})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if doc.Name != "acme.pdf" {
		t.Errorf("Name = %q, want acme.pdf", doc.Name)
	}
	if string(doc.Data) != string(pdfBytes) {
		t.Error("data mismatch")
	}
}

func TestLoad_URI(t *testing.T) {
	var fetched string
	storage := &MockStorageService{
		FetchFromGCSFunc: func(ctx context.Context, gcsURI string) ([]byte, string, error) {
			fetched = gcsURI
			return []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, "image/png", nil
		},
	}

	doc, err := document.NewLoader(storage).Load(context.Background(), document.Source{URI: "gs://bucket/in/scan.png"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if fetched != "gs://bucket/in/scan.png" {
		t.Errorf("fetched %q", fetched)
	}
	if doc.MIMEType != "image/png" {
		t.Errorf("MIMEType = %q", doc.MIMEType)
	}
	if doc.Name != "scan.png" {
		t.Errorf("Name = %q, want scan.png", doc.Name)
	}
}

func TestLoad_Missing(t *testing.T) {
	failing := &MockStorageService{
		FetchFromGCSFunc: func(ctx context.Context, gcsURI string) ([]byte, string, error) {
			return nil, "", errors.New("storage: object doesn't exist")
		},
	}
	empty := filepath.Join(t.TempDir(), "empty.pdf")
	if err := os.WriteFile(empty, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		loader *document.Loader
		src    document.Source
	}{
		{name: "nothing", loader: document.NewLoader(nil), src: document.Source{}},
		{name: "whitespace text", loader: document.NewLoader(nil), src: document.Source{Text: "  \n"}},
		{name: "no such file", loader: document.NewLoader(nil), src: document.Source{Path: "/nonexistent/invoice.pdf"}},
		{name: "empty file", loader: document.NewLoader(nil), src: document.Source{Path: empty}},
		{name: "uri without storage", loader: document.NewLoader(nil), src: document.Source{URI: "gs://b/o.pdf"}},
		{name: "fetch error", loader: document.NewLoader(failing), src: document.Source{URI: "gs://b/o.pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.loader.Load(context.Background(), tt.src)
			if !errors.Is(err, invoice.ErrMissingDocument) {
				t.Fatalf("Load() error = %v, want ErrMissingDocument", err)
			}
			var mce *invoice.MissingContextError
			if !errors.As(err, &mce) {
				t.Fatalf("error %T is not a MissingContextError", err)
			}
		})
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		declared string
		data     []byte
		want     string
	}{
		{name: "declared wins", file: "x.pdf", declared: "image/jpeg", want: "image/jpeg"},
		{name: "declared with params", declared: "text/plain; charset=utf-8", want: "text/plain"},
		{name: "octet-stream ignored", file: "x.png", declared: "application/octet-stream", want: "image/png"},
		{name: "by extension", file: "invoice.PDF", want: "application/pdf"},
		{name: "sniffed", file: "blob", data: pdfBytes, want: "application/pdf"},
		{name: "default", file: "blob", data: []byte{0x00, 0x01, 0x02}, want: "application/pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := document.DetectMIMEType(tt.file, tt.declared, tt.data); got != tt.want {
				t.Errorf("DetectMIMEType() = %q, want %q", got, tt.want)
			}
		})
	}
}
