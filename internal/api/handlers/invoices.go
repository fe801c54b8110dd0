package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/invoice-extractor/internal/api/middleware"
	"github.com/dvloznov/invoice-extractor/internal/document"
	"github.com/dvloznov/invoice-extractor/internal/export"
	"github.com/dvloznov/invoice-extractor/internal/gcs"
	"github.com/dvloznov/invoice-extractor/internal/gcsuploader"
	"github.com/dvloznov/invoice-extractor/internal/invoice"
	"github.com/dvloznov/invoice-extractor/internal/jobs"
	"github.com/dvloznov/invoice-extractor/internal/logger"
	"github.com/dvloznov/invoice-extractor/internal/pipeline"
)

const (
	// DefaultMaxUploadBytes bounds request bodies carrying documents.
	DefaultMaxUploadBytes int64 = 32 << 20

	defaultListLimit = 100
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// InvoiceProcessor runs the invoice pipeline for one source.
type InvoiceProcessor interface {
	ProcessInvoice(ctx context.Context, src document.Source) (*pipeline.Result, error)
}

// InvoicesHandler handles invoice-related endpoints.
type InvoicesHandler struct {
	processor InvoiceProcessor
	publisher jobs.Publisher
	storage   gcs.StorageService
	lister    export.InvoiceLister
	bucket    string
	maxBytes  int64
}

// NewInvoicesHandler creates a new invoices handler. storage and lister may
// be nil, which disables uploads and stored-invoice listing respectively.
func NewInvoicesHandler(processor InvoiceProcessor, publisher jobs.Publisher, storage gcs.StorageService, lister export.InvoiceLister, bucket string) *InvoicesHandler {
	return &InvoicesHandler{
		processor: processor,
		publisher: publisher,
		storage:   storage,
		lister:    lister,
		bucket:    bucket,
		maxBytes:  DefaultMaxUploadBytes,
	}
}

// parseRequest is the JSON form of a parse or job request.
type parseRequest struct {
	Text     string `json:"text"`
	GCSURI   string `json:"gcs_uri"`
	MIMEType string `json:"mime_type"`
	Name     string `json:"name"`
}

// Parse handles POST /api/invoices/parse. The body is either a JSON
// parseRequest or the raw document, typed by its Content-Type header.
func (h *InvoicesHandler) Parse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	src, status, msg := h.sourceFromRequest(w, r)
	if status != 0 {
		middleware.WriteError(w, status, msg)
		return
	}

	res, err := h.processor.ProcessInvoice(ctx, src)
	if err != nil {
		if errors.Is(err, invoice.ErrMissingDocument) {
			middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		log.Error().Err(err).Msg("Failed to process invoice")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to process invoice")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, res)
}

// CreateJob handles POST /api/invoices/jobs. A JSON body names a gs://
// document; any other body is uploaded to the configured bucket first.
func (h *InvoicesHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	src, status, msg := h.sourceFromRequest(w, r)
	if status != 0 {
		middleware.WriteError(w, status, msg)
		return
	}
	if src.Text != "" {
		middleware.WriteError(w, http.StatusBadRequest, "text input is only supported by /api/invoices/parse")
		return
	}

	gcsURI := src.URI
	if gcsURI == "" {
		if len(src.Data) == 0 {
			middleware.WriteError(w, http.StatusBadRequest, "gcs_uri or a document body is required")
			return
		}
		if h.storage == nil || h.bucket == "" {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Uploads are not configured")
			return
		}

		name := src.Name
		if name == "" {
			name = "invoice"
		}
		objectName := fmt.Sprintf("invoices/%s/%s-%s", time.Now().Format("2006/01/02"), uuid.NewString(), name)
		contentType := document.DetectMIMEType(name, src.MIMEType, src.Data)

		var err error
		gcsURI, err = h.storage.UploadBytes(ctx, h.bucket, objectName, contentType, src.Data)
		if err != nil {
			log.Error().Err(err).Msg("Failed to upload document")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload document")
			return
		}
		src.MIMEType = contentType
		log.Info().Str("gcs_uri", gcsURI).Int("bytes", len(src.Data)).Msg("Document uploaded")
	}

	job := &jobs.ParseInvoiceJob{
		GCSURI:   gcsURI,
		MIMEType: src.MIMEType,
	}
	if err := h.publisher.PublishParseInvoice(ctx, job); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue parsing job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue parsing job")
		return
	}

	log.Info().Str("job_id", job.JobID).Str("gcs_uri", gcsURI).Msg("Parsing job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.JobID,
		"gcs_uri": gcsURI,
		"status":  string(job.Status),
	})
}

// ListInvoices handles GET /api/invoices
func (h *InvoicesHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	entries, ok := h.storedEntries(w, r)
	if !ok {
		return
	}
	if entries == nil {
		entries = []export.Entry{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"invoices": entries,
		"count":    len(entries),
	})
}

// Export handles GET /api/invoices/export and returns stored invoices as an
// XLSX workbook.
func (h *InvoicesHandler) Export(w http.ResponseWriter, r *http.Request) {
	entries, ok := h.storedEntries(w, r)
	if !ok {
		return
	}

	data, err := export.WorkbookXLSX(r.Context(), entries)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to build workbook")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to export invoices")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="invoices.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *InvoicesHandler) storedEntries(w http.ResponseWriter, r *http.Request) ([]export.Entry, bool) {
	if h.lister == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Invoice storage is not configured")
		return nil, false
	}

	limit := defaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return nil, false
		}
		limit = n
	}

	entries, err := export.EntriesFromRepository(r.Context(), h.lister, limit)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to list invoices")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list invoices")
		return nil, false
	}
	return entries, true
}

// sourceFromRequest reads a document source from r. On failure it returns
// a non-zero HTTP status and the message to answer with.
func (h *InvoicesHandler) sourceFromRequest(w http.ResponseWriter, r *http.Request) (document.Source, int, string) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	mediaType := ""
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return document.Source{}, http.StatusBadRequest, "Invalid Content-Type"
		}
		mediaType = mt
	}

	if mediaType == "application/json" {
		var req parseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return document.Source{}, bodyErrorStatus(err), "Invalid request body"
		}
		if req.GCSURI != "" {
			if _, _, err := gcsuploader.ParseGCSURI(req.GCSURI); err != nil {
				return document.Source{}, http.StatusBadRequest, err.Error()
			}
		}
		return document.Source{
			Text:     req.Text,
			URI:      req.GCSURI,
			MIMEType: req.MIMEType,
			Name:     req.Name,
		}, 0, ""
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return document.Source{}, bodyErrorStatus(err), "Failed to read request body"
	}
	return document.Source{
		Data:     data,
		MIMEType: mediaType,
		Name:     cleanFilename(r.URL.Query().Get("filename")),
	}, 0, ""
}

func bodyErrorStatus(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func cleanFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		return ""
	}
	return base
}
