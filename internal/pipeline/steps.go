package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	bigquerylib "cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/dvloznov/invoice-extractor/internal/document"
	"github.com/dvloznov/invoice-extractor/internal/extraction"
	infra "github.com/dvloznov/invoice-extractor/internal/infra/bigquery"
	"github.com/dvloznov/invoice-extractor/internal/invoice"
	"github.com/dvloznov/invoice-extractor/internal/logger"
	"github.com/dvloznov/invoice-extractor/internal/validation"
)

// PipelineStep represents a single step in the invoice pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Source       document.Source
	SourceSystem string

	Document   extraction.Document
	Extraction *extraction.Result

	Record   *invoice.Record
	Errors   invoice.Errors
	Warnings []string
	Summary  string

	DocumentID   string
	ParsingRunID string
	InvoiceID    string
}

// LoadDocumentStep resolves the source into document bytes or text.
type LoadDocumentStep struct {
	Loader DocumentLoader
}

func (s *LoadDocumentStep) Execute(ctx context.Context, state *PipelineState) error {
	doc, err := s.Loader.Load(ctx, state.Source)
	if err != nil {
		return err
	}
	state.Document = doc
	return nil
}

// CreateDocumentStep records the document in the documents table.
type CreateDocumentStep struct {
	Repo InvoiceRepository
}

func (s *CreateDocumentStep) Execute(ctx context.Context, state *PipelineState) error {
	sourceSystem := state.SourceSystem
	if sourceSystem == "" {
		sourceSystem = DefaultSourceSystem
	}

	row := &infra.DocumentRow{
		DocumentID:       uuid.NewString(),
		GCSURI:           state.Source.URI,
		DocumentType:     DefaultDocumentType,
		SourceSystem:     sourceSystem,
		UploadTS:         time.Now().UTC(),
		ParsingStatus:    StatusPending,
		OriginalFilename: state.Document.Name,
		FileMimeType:     state.Document.MIMEType,
		ChecksumSHA256:   checksum(state.Document),
	}

	if err := s.Repo.InsertDocument(ctx, row); err != nil {
		return fmt.Errorf("createDocument: inserting row: %w", err)
	}
	state.DocumentID = row.DocumentID
	return nil
}

// StartParsingRunStep starts a parsing run (status=RUNNING).
type StartParsingRunStep struct {
	Repo InvoiceRepository
}

func (s *StartParsingRunStep) Execute(ctx context.Context, state *PipelineState) error {
	parsingRunID, err := s.Repo.StartParsingRun(ctx, state.DocumentID)
	if err != nil {
		return err
	}
	state.ParsingRunID = parsingRunID
	return nil
}

// ExtractStep asks the model for the raw invoice fields. Model failures are
// absorbed by the extractor; only a missing document stops the pipeline.
type ExtractStep struct {
	Extractor InvoiceExtractor
	Repo      InvoiceRepository
}

func (s *ExtractStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := s.Extractor.Extract(ctx, state.Document)
	if err != nil {
		markFailed(ctx, s.Repo, state, err)
		return err
	}
	state.Extraction = res
	return nil
}

// StoreModelOutputStep stores the raw model response in model_outputs.
type StoreModelOutputStep struct {
	Repo      InvoiceRepository
	ModelName string
}

func (s *StoreModelOutputStep) Execute(ctx context.Context, state *PipelineState) error {
	res := state.Extraction
	modelName := s.ModelName
	if modelName == "" {
		modelName = DefaultModelName
	}

	row := &infra.ModelOutputRow{
		OutputID:     uuid.NewString(),
		ParsingRunID: state.ParsingRunID,
		DocumentID:   state.DocumentID,
		ModelName:    modelName,
		RawText:      bigquerylib.NullString{StringVal: res.ModelOutput, Valid: res.ModelOutput != ""},
		Recovery:     bigquerylib.NullString{StringVal: string(res.Recovery), Valid: res.Recovery != ""},
		CreatedTS:    time.Now().UTC(),
	}
	if res.Failure != nil {
		row.FailureMsg = bigquerylib.NullString{StringVal: res.Failure.Error(), Valid: true}
	} else if b, err := json.Marshal(res.Raw.Map()); err == nil {
		row.RawJSON = bigquerylib.NullJSON{JSONVal: string(b), Valid: true}
	}

	if err := s.Repo.InsertModelOutput(ctx, row); err != nil {
		markFailed(ctx, s.Repo, state, err)
		return err
	}
	return nil
}

// ValidateStep normalizes the raw fields and collects warnings.
type ValidateStep struct{}

func (s *ValidateStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	res := state.Extraction
	raw := invoice.Empty()
	if res != nil {
		raw = res.Raw
	}

	rec, errs := validation.Validate(raw)
	state.Record = rec
	state.Errors = errs

	if res != nil {
		if res.Failure != nil {
			state.Warnings = append(state.Warnings, fmt.Sprintf("Extraction failed: %v", res.Failure))
		}
		state.Warnings = append(state.Warnings, res.Warnings...)
	}
	state.Warnings = append(state.Warnings, validation.MissingEssentials(rec)...)

	log.Info().
		Str("document", state.Document.Name).
		Int("field_errors", len(errs)).
		Int("warnings", len(state.Warnings)).
		Int("line_items", len(rec.LineItems)).
		Msg("Validated invoice")

	return nil
}

// InsertInvoiceStep writes the validated invoice and its line items. It is a
// no-op when extraction fell back to the empty structure.
type InsertInvoiceStep struct {
	Repo InvoiceRepository
}

func (s *InsertInvoiceStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Extraction != nil && state.Extraction.Failure != nil {
		return nil
	}

	row, items, err := infra.RowsFromRecord(state.Record, state.Errors, state.DocumentID, state.ParsingRunID)
	if err != nil {
		markFailed(ctx, s.Repo, state, err)
		return err
	}

	if err := s.Repo.InsertInvoice(ctx, row, items); err != nil {
		markFailed(ctx, s.Repo, state, err)
		return err
	}
	state.InvoiceID = row.InvoiceID
	return nil
}

// FinishParsingRunStep marks the parsing run as SUCCESS, or FAILED when
// extraction fell back to the empty structure.
type FinishParsingRunStep struct {
	Repo InvoiceRepository
}

func (s *FinishParsingRunStep) Execute(ctx context.Context, state *PipelineState) error {
	res := state.Extraction
	if res != nil && res.Failure != nil {
		s.Repo.MarkParsingRunFailed(ctx, state.ParsingRunID, res.Failure)
		return nil
	}

	usage := infra.TokenUsage{}
	if res != nil {
		usage.Input = int64(res.PromptTokens)
		usage.Output = int64(res.OutputTokens)
	}
	return s.Repo.MarkParsingRunSucceeded(ctx, state.ParsingRunID, usage)
}

// FormatStep renders the Markdown summary.
type FormatStep struct{}

func (s *FormatStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Summary = FormatSummary(state.Record, state.Errors, state.Warnings)
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

func markFailed(ctx context.Context, repo InvoiceRepository, state *PipelineState, err error) {
	if repo == nil || state.ParsingRunID == "" {
		return
	}
	repo.MarkParsingRunFailed(ctx, state.ParsingRunID, err)
}

func checksum(doc extraction.Document) string {
	h := sha256.New()
	if len(doc.Data) > 0 {
		h.Write(doc.Data)
	} else {
		h.Write([]byte(doc.Text))
	}
	return hex.EncodeToString(h.Sum(nil))
}
