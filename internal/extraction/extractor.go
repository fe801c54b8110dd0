package extraction

import (
	"context"
	"time"

	"github.com/dvloznov/invoice-extractor/internal/invoice"
	"github.com/dvloznov/invoice-extractor/internal/logger"
)

// DefaultTimeout bounds a single generation call.
const DefaultTimeout = 90 * time.Second

// Result is the outcome of extracting one document.
type Result struct {
	// Raw always holds every invoice field; on failure it is invoice.Empty().
	Raw invoice.Raw

	// Failure is set, wrapping invoice.ErrExtractionFailure, when Raw is the
	// fallback structure.
	Failure error

	// Recovery names how the JSON object was found in the model response.
	Recovery Recovery

	// Warnings lists structural problems in an otherwise usable response.
	Warnings []string

	ModelOutput  string
	PromptTokens int32
	OutputTokens int32
}

// Extractor turns documents into raw invoice field maps using a Model.
type Extractor struct {
	model   Model
	prompt  string
	timeout time.Duration
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithPrompt replaces the prompt built by BuildPrompt.
func WithPrompt(prompt string) Option {
	return func(e *Extractor) {
		if prompt != "" {
			e.prompt = prompt
		}
	}
}

// NewExtractor creates an Extractor backed by model.
func NewExtractor(model Model, opts ...Option) *Extractor {
	e := &Extractor{
		model:   model,
		prompt:  BuildPrompt(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract asks the model for the invoice fields of doc. Model errors,
// timeouts and unreadable responses do not produce an error: the result
// carries invoice.Empty() and Failure explains why. The only error returned
// is a MissingContextError for a document without bytes or text.
func (e *Extractor) Extract(ctx context.Context, doc Document) (*Result, error) {
	log := logger.FromContext(ctx).With().Str("document", doc.Name).Logger()

	if doc.IsEmpty() {
		return nil, &invoice.MissingContextError{Source: doc.Name}
	}

	genCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	gen, err := e.model.Generate(genCtx, e.prompt, doc)
	if err != nil {
		log.Warn().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Model call failed, returning empty structure")
		return fallback(&invoice.ExtractionError{Stage: "generate", Err: err}, nil), nil
	}

	obj, recovery, err := recoverJSONObject(gen.Text)
	if err != nil {
		log.Warn().
			Err(err).
			Str("model_output", truncate(gen.Text, 500)).
			Msg("Could not extract JSON from model output, returning empty structure")
		return fallback(&invoice.ExtractionError{Stage: "parse", Err: err}, gen), nil
	}

	res := &Result{
		Raw:          invoice.FromMap(obj).WithDefaults(),
		Recovery:     recovery,
		ModelOutput:  gen.Text,
		PromptTokens: gen.PromptTokens,
		OutputTokens: gen.OutputTokens,
	}

	if err := checkShape(obj); err != nil {
		log.Warn().Err(err).Msg("Model output has unexpected shape")
		res.Warnings = append(res.Warnings, err.Error())
	}

	log.Info().
		Str("recovery", string(recovery)).
		Int32("prompt_tokens", gen.PromptTokens).
		Int32("output_tokens", gen.OutputTokens).
		Dur("duration", time.Since(start)).
		Msg("Extracted invoice fields")

	return res, nil
}

func fallback(failure error, gen *Generation) *Result {
	res := &Result{Raw: invoice.Empty(), Failure: failure}
	if gen != nil {
		res.ModelOutput = gen.Text
		res.PromptTokens = gen.PromptTokens
		res.OutputTokens = gen.OutputTokens
	}
	return res
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
