package embedder

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const (
	defaultGeminiModel = "text-embedding-004"
	defaultGeminiDims  = 768
)

// GeminiConfig configures the Gemini embedding provider.
type GeminiConfig struct {
	// APIKey authenticates against the Gemini API.
	APIKey string

	// Model is the embedding model to use. Defaults to text-embedding-004.
	Model string

	// Dims is the dimensionality the model produces. Defaults to 768.
	Dims int

	// TaskType hints the API about the downstream use of the vectors
	// (e.g. "RETRIEVAL_DOCUMENT"). Empty sends no hint.
	TaskType string

	// Meter, when non-nil, is consulted before and after every API call to
	// enforce the daily spend cap.
	Meter Meter
}

// Gemini implements Embedder using the Gemini embeddings API.
type Gemini struct {
	cfg GeminiConfig
}

// NewGemini creates an Embedder backed by the Gemini API.
func NewGemini(cfg GeminiConfig) *Gemini {
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.Dims <= 0 {
		cfg.Dims = defaultGeminiDims
	}
	return &Gemini{cfg: cfg}
}

// Embed produces a vector embedding for the given text by calling the Gemini
// embeddings API. The Gemini API does not report token usage for embedding
// calls, so the meter is fed an estimate.
func (e *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, nil
	}

	if e.cfg.Meter != nil {
		if err := e.cfg.Meter.Check(e.cfg.Model); err != nil {
			return nil, err
		}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  e.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("embedder gemini: create client: %w", err)
	}

	var config *genai.EmbedContentConfig
	if e.cfg.TaskType != "" {
		config = &genai.EmbedContentConfig{TaskType: e.cfg.TaskType}
	}

	resp, err := client.Models.EmbedContent(
		ctx,
		e.cfg.Model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
		config,
	)
	if err != nil {
		return nil, fmt.Errorf("embedder gemini: embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("embedder gemini: no embedding values returned")
	}

	if e.cfg.Meter != nil {
		if _, err := e.cfg.Meter.RecordEmbedding(e.cfg.Model, estimateTokens(text)); err != nil {
			return nil, err
		}
	}

	return resp.Embeddings[0].Values, nil
}

// Dims returns the configured vector dimensionality.
func (e *Gemini) Dims() int {
	return e.cfg.Dims
}

// Model returns the configured embedding model name.
func (e *Gemini) Model() string {
	return e.cfg.Model
}

// Compile-time interface satisfaction check.
var _ Embedder = (*Gemini)(nil)
