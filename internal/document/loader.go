package document

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dvloznov/invoice-extractor/internal/extraction"
	"github.com/dvloznov/invoice-extractor/internal/gcs"
	"github.com/dvloznov/invoice-extractor/internal/gcsuploader"
	"github.com/dvloznov/invoice-extractor/internal/invoice"
	"github.com/dvloznov/invoice-extractor/internal/logger"
)

// Source names where a document comes from. The first non-empty origin in
// the order Text, Data, URI, Path is used.
type Source struct {
	Path     string
	URI      string
	Data     []byte
	Text     string
	MIMEType string
	Name     string
}

// Origin returns a human-readable identifier for the source.
func (s Source) Origin() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.URI != "":
		return s.URI
	case s.Path != "":
		return s.Path
	case s.Text != "":
		return "text"
	case len(s.Data) > 0:
		return "upload"
	}
	return "unknown"
}

// Loader reads Sources into extraction Documents.
type Loader struct {
	storage gcs.StorageService
}

// NewLoader creates a Loader. storage may be nil when gs:// sources are not
// needed.
func NewLoader(storage gcs.StorageService) *Loader {
	return &Loader{storage: storage}
}

// Load resolves src into a Document. A missing, unreadable or empty source
// returns a *invoice.MissingContextError.
func (l *Loader) Load(ctx context.Context, src Source) (extraction.Document, error) {
	log := logger.FromContext(ctx)
	origin := src.Origin()

	doc := extraction.Document{Name: origin}

	switch {
	case strings.TrimSpace(src.Text) != "":
		doc.Text = src.Text
		doc.MIMEType = "text/plain"
		return doc, nil

	case len(src.Data) > 0:
		doc.Data = src.Data
		doc.MIMEType = DetectMIMEType(src.Name, src.MIMEType, src.Data)
		return doc, nil

	case src.URI != "":
		if l.storage == nil {
			return doc, &invoice.MissingContextError{Source: origin, Err: fmt.Errorf("no storage configured for %s", src.URI)}
		}
		data, contentType, err := l.storage.FetchFromGCS(ctx, src.URI)
		if err != nil {
			return doc, &invoice.MissingContextError{Source: origin, Err: err}
		}
		if len(data) == 0 {
			return doc, &invoice.MissingContextError{Source: origin, Err: fmt.Errorf("object is empty")}
		}
		declared := src.MIMEType
		if declared == "" {
			declared = contentType
		}
		if src.Name == "" {
			doc.Name = gcsuploader.ExtractFilenameFromGCSURI(src.URI)
		}
		doc.Data = data
		doc.MIMEType = DetectMIMEType(src.URI, declared, data)
		log.Debug().Str("uri", src.URI).Int("bytes", len(data)).Msg("Fetched document from GCS")
		return doc, nil

	case src.Path != "":
		data, err := os.ReadFile(src.Path)
		if err != nil {
			return doc, &invoice.MissingContextError{Source: origin, Err: err}
		}
		if len(data) == 0 {
			return doc, &invoice.MissingContextError{Source: origin, Err: fmt.Errorf("file is empty")}
		}
		if src.Name == "" {
			doc.Name = filepath.Base(src.Path)
		}
		doc.Data = data
		doc.MIMEType = DetectMIMEType(src.Path, src.MIMEType, data)
		return doc, nil
	}

	return doc, &invoice.MissingContextError{Source: origin}
}

// DetectMIMEType picks the media type of a document: the declared type when
// it is specific, otherwise by file extension, otherwise by sniffing the
// content. It falls back to extraction.DefaultMIMEType.
func DetectMIMEType(name, declared string, data []byte) string {
	if t := baseType(declared); t != "" && t != "application/octet-stream" {
		return t
	}
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
		if t := baseType(mime.TypeByExtension(ext)); t != "" {
			return t
		}
	}
	if len(data) > 0 {
		if t := baseType(http.DetectContentType(data)); t != "application/octet-stream" {
			return t
		}
	}
	return extraction.DefaultMIMEType
}

func baseType(t string) string {
	if t == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(t)
	if err != nil {
		return ""
	}
	return mt
}
