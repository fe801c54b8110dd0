package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/dvloznov/invoice-extractor/internal/api"
	"github.com/dvloznov/invoice-extractor/internal/api/handlers"
	bq "github.com/dvloznov/invoice-extractor/internal/bigquery"
	"github.com/dvloznov/invoice-extractor/internal/document"
	"github.com/dvloznov/invoice-extractor/internal/export"
	"github.com/dvloznov/invoice-extractor/internal/gcs"
	"github.com/dvloznov/invoice-extractor/internal/invoice"
	"github.com/dvloznov/invoice-extractor/internal/jobs"
	"github.com/dvloznov/invoice-extractor/internal/jobs/inmemory"
	"github.com/dvloznov/invoice-extractor/internal/pipeline"
)

type MockProcessor struct {
	ProcessInvoiceFunc func(ctx context.Context, src document.Source) (*pipeline.Result, error)
}

func (m *MockProcessor) ProcessInvoice(ctx context.Context, src document.Source) (*pipeline.Result, error) {
	return m.ProcessInvoiceFunc(ctx, src)
}

type MockStorageService struct {
	UploadFileFunc   func(ctx context.Context, bucketName, objectName, filePath string) (string, error)
	UploadBytesFunc  func(ctx context.Context, bucketName, objectName, contentType string, data []byte) (string, error)
	FetchFromGCSFunc func(ctx context.Context, gcsURI string) ([]byte, string, error)
}

func (m *MockStorageService) UploadFile(ctx context.Context, bucketName, objectName, filePath string) (string, error) {
	return m.UploadFileFunc(ctx, bucketName, objectName, filePath)
}

func (m *MockStorageService) UploadBytes(ctx context.Context, bucketName, objectName, contentType string, data []byte) (string, error) {
	return m.UploadBytesFunc(ctx, bucketName, objectName, contentType, data)
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, string, error) {
	return m.FetchFromGCSFunc(ctx, gcsURI)
}

type fakeLister struct {
	rows  []*bq.InvoiceRow
	items []*bq.InvoiceLineItemRow
}

func (f *fakeLister) ListInvoices(ctx context.Context, limit int) ([]*bq.InvoiceRow, error) {
	return f.rows, nil
}

func (f *fakeLister) ListLineItems(ctx context.Context, invoiceIDs []string) ([]*bq.InvoiceLineItemRow, error) {
	return f.items, nil
}

type testServer struct {
	handler http.Handler
	store   *inmemory.Store
	srcs    []document.Source
}

func newTestServer(t *testing.T, procErr error, storage gcs.StorageService, lister export.InvoiceLister) *testServer {
	t.Helper()

	ts := &testServer{store: inmemory.NewStore()}
	queue := inmemory.NewQueue(10, 1, ts.store)
	t.Cleanup(func() { queue.Close() })

	number := "INV-1"
	proc := &MockProcessor{
		ProcessInvoiceFunc: func(ctx context.Context, src document.Source) (*pipeline.Result, error) {
			ts.srcs = append(ts.srcs, src)
			if procErr != nil {
				return nil, procErr
			}
			return &pipeline.Result{
				Record:   &invoice.Record{InvoiceNumber: &number, LineItems: []invoice.LineItem{}},
				Errors:   invoice.Errors{},
				Warnings: []string{},
				Summary:  "## Invoice Summary",
			}, nil
		},
	}

	var bucket string
	if storage != nil {
		bucket = "invoices-bucket"
	}
	invoices := handlers.NewInvoicesHandler(proc, queue, storage, lister, bucket)
	ts.handler = api.NewRouter(zerolog.Nop(), invoices, handlers.NewJobsHandler(ts.store))
	return ts
}

func (ts *testServer) do(method, target, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil)

	rec := ts.do(http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode(t, rec)["status"]; got != "healthy" {
		t.Errorf("status field = %v", got)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestParse(t *testing.T) {
	pdf := []byte("%PDF-1.7 test")

	tests := []struct {
		name        string
		target      string
		contentType string
		body        []byte
		wantStatus  int
		wantSrc     *document.Source
	}{
		{
			name:        "json text",
			target:      "/api/invoices/parse",
			contentType: "application/json",
			body:        []byte(`{"text":"Invoice INV-1"}`),
			wantStatus:  http.StatusOK,
			wantSrc:     &document.Source{Text: "Invoice INV-1"},
		},
		{
			name:        "json gcs uri",
			target:      "/api/invoices/parse",
			contentType: "application/json; charset=utf-8",
			body:        []byte(`{"gcs_uri":"gs://bucket/a.pdf","mime_type":"application/pdf"}`),
			wantStatus:  http.StatusOK,
			wantSrc:     &document.Source{URI: "gs://bucket/a.pdf", MIMEType: "application/pdf"},
		},
		{
			name:        "raw pdf",
			target:      "/api/invoices/parse?filename=../acme.pdf",
			contentType: "application/pdf",
			body:        pdf,
			wantStatus:  http.StatusOK,
			wantSrc:     &document.Source{Data: pdf, MIMEType: "application/pdf", Name: "acme.pdf"},
		},
		{
			name:        "invalid gcs uri",
			target:      "/api/invoices/parse",
			contentType: "application/json",
			body:        []byte(`{"gcs_uri":"https://example.com/a.pdf"}`),
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "malformed json",
			target:      "/api/invoices/parse",
			contentType: "application/json",
			body:        []byte(`{"text":`),
			wantStatus:  http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil, nil, nil)

			rec := ts.do(http.MethodPost, tt.target, tt.contentType, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantSrc == nil {
				if len(ts.srcs) != 0 {
					t.Errorf("processor called for rejected request: %+v", ts.srcs)
				}
				return
			}
			if len(ts.srcs) != 1 {
				t.Fatalf("processor calls = %d", len(ts.srcs))
			}
			if diff := cmp.Diff(*tt.wantSrc, ts.srcs[0]); diff != "" {
				t.Errorf("source mismatch (-want +got):\n%s", diff)
			}

			out := decode(t, rec)
			record, _ := out["record"].(map[string]any)
			if record["invoice_number"] != "INV-1" {
				t.Errorf("record = %v", out["record"])
			}
			if out["summary"] != "## Invoice Summary" {
				t.Errorf("summary = %v", out["summary"])
			}
		})
	}
}

func TestParse_ProcessorErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "missing document", err: &invoice.MissingContextError{Source: "data"}, wantStatus: http.StatusUnprocessableEntity},
		{name: "pipeline failure", err: errors.New("pipeline step 2 failed"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.err, nil, nil)
			rec := ts.do(http.MethodPost, "/api/invoices/parse", "application/pdf", nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if _, ok := decode(t, rec)["error"]; !ok {
				t.Error("missing error field")
			}
		})
	}
}

func TestCreateJob_GCSURI(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil)

	rec := ts.do(http.MethodPost, "/api/invoices/jobs", "application/json", []byte(`{"gcs_uri":"gs://bucket/a.pdf"}`))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	jobID, _ := out["job_id"].(string)
	if jobID == "" || out["status"] != string(jobs.JobStatusPending) {
		t.Fatalf("response = %v", out)
	}

	rec = ts.do(http.MethodGet, "/api/jobs/"+jobID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET job status = %d", rec.Code)
	}
	if got := decode(t, rec)["gcs_uri"]; got != "gs://bucket/a.pdf" {
		t.Errorf("gcs_uri = %v", got)
	}

	rec = ts.do(http.MethodGet, "/api/jobs?status=pending", "", nil)
	if got := decode(t, rec)["count"]; got != float64(1) {
		t.Errorf("job count = %v", got)
	}
}

func TestCreateJob_Upload(t *testing.T) {
	var gotBucket, gotObject, gotType string
	storage := &MockStorageService{
		UploadBytesFunc: func(ctx context.Context, bucketName, objectName, contentType string, data []byte) (string, error) {
			gotBucket, gotObject, gotType = bucketName, objectName, contentType
			return "gs://" + bucketName + "/" + objectName, nil
		},
	}
	ts := newTestServer(t, nil, storage, nil)

	rec := ts.do(http.MethodPost, "/api/invoices/jobs?filename=scan.png", "image/png", []byte("\x89PNG\r\n\x1a\n"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	if gotBucket != "invoices-bucket" || gotType != "image/png" {
		t.Errorf("upload = %q %q", gotBucket, gotType)
	}
	if !strings.HasPrefix(gotObject, "invoices/") || !strings.HasSuffix(gotObject, "-scan.png") {
		t.Errorf("object name = %q", gotObject)
	}
	if got := decode(t, rec)["gcs_uri"]; got != "gs://invoices-bucket/"+gotObject {
		t.Errorf("gcs_uri = %v", got)
	}
}

func TestCreateJob_Rejected(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        []byte
		wantStatus  int
	}{
		{name: "text input", contentType: "application/json", body: []byte(`{"text":"INV-1"}`), wantStatus: http.StatusBadRequest},
		{name: "empty body", contentType: "application/pdf", body: nil, wantStatus: http.StatusBadRequest},
		{name: "uploads disabled", contentType: "application/pdf", body: []byte("%PDF-1.7"), wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil, nil, nil)
			rec := ts.do(http.MethodPost, "/api/invoices/jobs", tt.contentType, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestGetJob_NotFound(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil)
	rec := ts.do(http.MethodGet, "/api/jobs/does-not-exist", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListAndExportInvoices(t *testing.T) {
	lister := &fakeLister{
		rows:  []*bq.InvoiceRow{{InvoiceID: "inv-1", DocumentID: "doc-1"}},
		items: []*bq.InvoiceLineItemRow{},
	}
	ts := newTestServer(t, nil, nil, lister)

	rec := ts.do(http.MethodGet, "/api/invoices?limit=10", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d (body %s)", rec.Code, rec.Body.String())
	}
	if got := decode(t, rec)["count"]; got != float64(1) {
		t.Errorf("count = %v", got)
	}

	rec = ts.do(http.MethodGet, "/api/invoices/export", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty workbook")
	}

	if rec := ts.do(http.MethodGet, "/api/invoices?limit=-1", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d", rec.Code)
	}
}

func TestListInvoices_NotConfigured(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil)
	if rec := ts.do(http.MethodGet, "/api/invoices", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRouting(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil)

	if rec := ts.do(http.MethodGet, "/api/nope", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d", rec.Code)
	}
	if rec := ts.do(http.MethodGet, "/api/invoices/parse", "", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method status = %d", rec.Code)
	}
}
