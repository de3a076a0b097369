package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bdobrica/Jeff/common/redact"
)

const (
	defaultOpenAIBase    = "https://api.openai.com/v1"
	defaultOpenAIModel   = "text-embedding-3-small"
	defaultOpenAIDims    = 1536
	defaultOpenAITimeout = 30 * time.Second
)

// OpenAIConfig configures the OpenAI embedding provider.
type OpenAIConfig struct {
	// APIKey is the bearer token for authentication.
	APIKey string

	// BaseURL overrides the API endpoint. Defaults to https://api.openai.com/v1
	// when empty. Useful for Azure OpenAI, local proxies, or compatible endpoints.
	BaseURL string

	// Model is the embedding model to use.
	// Defaults to text-embedding-3-small (1536-dim, ~$0.02/1M tokens).
	Model string

	// Dims is the dimensionality the model produces. Defaults to 1536, the
	// native width of text-embedding-3-small.
	Dims int

	// Timeout is the HTTP request timeout. Defaults to 30 s.
	Timeout time.Duration

	// Meter, when non-nil, is consulted before and after every API call to
	// enforce the daily spend cap.
	Meter Meter
}

// OpenAI implements Embedder using the OpenAI Embeddings API.
type OpenAI struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewOpenAI creates an Embedder backed by the OpenAI (or compatible)
// embeddings API.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.Dims <= 0 {
		cfg.Dims = defaultOpenAIDims
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultOpenAITimeout
	}
	return &OpenAI{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal OpenAI embeddings wire types ---

type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Usage embeddingUsage  `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Embed produces a vector embedding for the given text by calling the OpenAI
// embeddings API. The spend meter may veto the call before it is made and
// abort the operation after it when this call crossed the daily cap.
func (e *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, nil
	}

	if e.cfg.Meter != nil {
		if err := e.cfg.Meter.Check(e.cfg.Model); err != nil {
			return nil, err
		}
	}

	body := embeddingRequest{
		Input: text,
		Model: e.cfg.Model,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("embedder openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.cfg.BaseURL+"/embeddings",
		bytes.NewReader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("embedder openai: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedder openai: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedder openai: read response body: %w", err)
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("embedder openai: decode response: %w", err)
	}

	if embResp.Error != nil {
		// Upstream error messages can echo request details; never let the
		// key reach logs or the terminal.
		msg := redact.String(embResp.Error.Message, e.cfg.APIKey)
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w (HTTP 429): %s", ErrRateLimit, msg)
		}
		return nil, fmt.Errorf("embedder openai: API error (%s): %s", embResp.Error.Type, msg)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w (HTTP 429)", ErrRateLimit)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("embedder openai: unexpected HTTP status %d", resp.StatusCode)
	}
	if len(embResp.Data) == 0 {
		return nil, fmt.Errorf("embedder openai: no embedding data returned")
	}

	if e.cfg.Meter != nil {
		tokens := embResp.Usage.TotalTokens
		if tokens == 0 {
			tokens = estimateTokens(text)
		}
		if _, err := e.cfg.Meter.RecordEmbedding(e.cfg.Model, tokens); err != nil {
			return nil, err
		}
	}

	return embResp.Data[0].Embedding, nil
}

// Dims returns the configured vector dimensionality.
func (e *OpenAI) Dims() int {
	return e.cfg.Dims
}

// Model returns the configured embedding model name.
func (e *OpenAI) Model() string {
	return e.cfg.Model
}

// Compile-time interface satisfaction check.
var _ Embedder = (*OpenAI)(nil)
