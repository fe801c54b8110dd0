package extraction

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/dvloznov/invoice-extractor/internal/logger"
)

// DefaultInlineLimit is the document size at which the Gemini Files API is
// used instead of sending the bytes inline.
const DefaultInlineLimit int64 = 20 * 1024 * 1024

// Generation is the raw text a model produced for one document.
type Generation struct {
	Text         string
	PromptTokens int32
	OutputTokens int32
}

// Model is the generative service the Extractor talks to.
type Model interface {
	// Generate sends the prompt and the document to the model and returns
	// its raw text response.
	Generate(ctx context.Context, prompt string, doc Document) (*Generation, error)
}

// GeminiConfig configures GeminiModel.
type GeminiConfig struct {
	APIKey      string
	BaseURL     string
	APIVersion  string
	Model       string
	InlineLimit int64
}

// GeminiModel implements Model on top of the Gemini API.
type GeminiModel struct {
	client      *genai.Client
	model       string
	inlineLimit int64
}

// NewGeminiModel creates a Gemini client for cfg.
func NewGeminiModel(ctx context.Context, cfg GeminiConfig) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    cfg.BaseURL,
			APIVersion: cfg.APIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiModel: create genai client: %w", err)
	}

	limit := cfg.InlineLimit
	if limit <= 0 {
		limit = DefaultInlineLimit
	}

	return &GeminiModel{
		client:      client,
		model:       cfg.Model,
		inlineLimit: limit,
	}, nil
}

// useFileAPI reports whether a document of size bytes must be uploaded.
func useFileAPI(size, limit int64) bool {
	return size >= limit
}

func (m *GeminiModel) needsUpload(doc Document) bool {
	return useFileAPI(doc.Size(), m.inlineLimit)
}

// Generate implements Model. Documents below the inline limit are sent in the
// request; larger ones, text included, go through the Files API and are
// deleted after the call.
func (m *GeminiModel) Generate(ctx context.Context, prompt string, doc Document) (*Generation, error) {
	log := logger.FromContext(ctx)

	parts := []*genai.Part{genai.NewPartFromText(prompt)}

	switch {
	case m.needsUpload(doc):
		log.Info().
			Str("document", doc.Name).
			Int64("bytes", doc.Size()).
			Msg("Using file API for large document")

		file, err := m.upload(ctx, doc)
		if err != nil {
			return nil, err
		}
		defer m.deleteFile(ctx, file.Name)

		parts = append(parts, genai.NewPartFromURI(file.URI, file.MIMEType))
	case len(doc.Data) == 0:
		parts = append(parts, genai.NewPartFromText(textPart(doc.Text)))
	default:
		parts = append(parts, genai.NewPartFromBytes(doc.Data, doc.mimeType()))
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	})
	if err != nil {
		return nil, fmt.Errorf("Generate: generate content: %w", err)
	}

	gen := &Generation{Text: resp.Text()}
	if resp.UsageMetadata != nil {
		gen.PromptTokens = resp.UsageMetadata.PromptTokenCount
		gen.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
	}
	return gen, nil
}

func (m *GeminiModel) upload(ctx context.Context, doc Document) (*genai.File, error) {
	data, mimeType := doc.payload()
	file, err := m.client.Files.Upload(ctx, bytes.NewReader(data), &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: doc.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("Generate: upload file: %w", err)
	}

	name := file.Name

	// Uploaded files may need a moment before they can be referenced.
	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			m.deleteFile(ctx, name)
			return nil, fmt.Errorf("Generate: waiting for file %s: %w", name, ctx.Err())
		case <-time.After(time.Second):
		}
		file, err = m.client.Files.Get(ctx, name, nil)
		if err != nil {
			m.deleteFile(ctx, name)
			return nil, fmt.Errorf("Generate: get file %s: %w", name, err)
		}
	}
	if file.State == genai.FileStateFailed {
		m.deleteFile(ctx, name)
		return nil, fmt.Errorf("Generate: file %s failed processing", name)
	}

	return file, nil
}

func (m *GeminiModel) deleteFile(ctx context.Context, name string) {
	if _, err := m.client.Files.Delete(context.WithoutCancel(ctx), name, nil); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("file", name).
			Msg("Failed to delete uploaded file")
	}
}
