package pipeline

import (
	"context"

	"github.com/dvloznov/invoice-extractor/internal/document"
	"github.com/dvloznov/invoice-extractor/internal/extraction"
	"github.com/dvloznov/invoice-extractor/internal/invoice"
	"github.com/dvloznov/invoice-extractor/internal/logger"
)

// Result is the outcome of processing one invoice document.
type Result struct {
	Record   *invoice.Record `json:"record"`
	Errors   invoice.Errors  `json:"errors"`
	Warnings []string        `json:"warnings"`
	Summary  string          `json:"summary"`

	DocumentID   string `json:"document_id,omitempty"`
	ParsingRunID string `json:"parsing_run_id,omitempty"`
	InvoiceID    string `json:"invoice_id,omitempty"`

	Extraction *extraction.Result `json:"-"`
}

// Processor runs the invoice pipeline with its dependencies.
type Processor struct {
	loader    DocumentLoader
	extractor InvoiceExtractor
	repo      InvoiceRepository
	modelName string
}

// Option configures a Processor.
type Option func(*Processor)

// WithRepository enables the persistence steps.
func WithRepository(repo InvoiceRepository) Option {
	return func(p *Processor) {
		p.repo = repo
	}
}

// WithModelName sets the model name recorded with stored model outputs.
func WithModelName(name string) Option {
	return func(p *Processor) {
		p.modelName = name
	}
}

// NewProcessor creates a Processor. Without WithRepository nothing is
// persisted.
func NewProcessor(loader DocumentLoader, extractor InvoiceExtractor, opts ...Option) *Processor {
	p := &Processor{loader: loader, extractor: extractor}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewInvoicePipeline creates the standard pipeline. When repo is nil the
// persistence steps are left out.
func NewInvoicePipeline(loader DocumentLoader, extractor InvoiceExtractor, repo InvoiceRepository, modelName string) *Pipeline {
	if repo == nil {
		return NewPipeline(
			&LoadDocumentStep{Loader: loader},
			&ExtractStep{Extractor: extractor},
			&ValidateStep{},
			&FormatStep{},
		)
	}

	return NewPipeline(
		&LoadDocumentStep{Loader: loader},
		&CreateDocumentStep{Repo: repo},
		&StartParsingRunStep{Repo: repo},
		&ExtractStep{Extractor: extractor, Repo: repo},
		&StoreModelOutputStep{Repo: repo, ModelName: modelName},
		&ValidateStep{},
		&InsertInvoiceStep{Repo: repo},
		&FinishParsingRunStep{Repo: repo},
		&FormatStep{},
	)
}

// ProcessInvoice loads, extracts, validates and formats one invoice. Model
// failures do not produce an error: the result holds the all-null record and
// a warning. An unreadable source returns a *invoice.MissingContextError.
func (p *Processor) ProcessInvoice(ctx context.Context, src document.Source) (*Result, error) {
	log := logger.FromContext(ctx).With().Str("source", src.Origin()).Logger()
	ctx = logger.WithContext(ctx, log)

	state := &PipelineState{Source: src}
	if err := NewInvoicePipeline(p.loader, p.extractor, p.repo, p.modelName).Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("Invoice pipeline failed")
		return nil, err
	}

	log.Info().
		Str("document_id", state.DocumentID).
		Int("field_errors", len(state.Errors)).
		Msg("Invoice processed")

	if state.Warnings == nil {
		state.Warnings = []string{}
	}

	return &Result{
		Record:       state.Record,
		Errors:       state.Errors,
		Warnings:     state.Warnings,
		Summary:      state.Summary,
		DocumentID:   state.DocumentID,
		ParsingRunID: state.ParsingRunID,
		InvoiceID:    state.InvoiceID,
		Extraction:   state.Extraction,
	}, nil
}
