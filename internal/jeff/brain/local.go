package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultLocalBase    = "http://localhost:11434"
	defaultLocalModel   = "mistral"
	defaultLocalTimeout = 120 * time.Second
)

// LocalConfig configures the local chat brain.
type LocalConfig struct {
	// BaseURL is the Ollama-style server address. Defaults to
	// http://localhost:11434.
	BaseURL string

	// Model is the local model to run. Defaults to mistral.
	Model string

	// Timeout is the HTTP request timeout. Local generation is slow on
	// modest hardware; defaults to 120 s.
	Timeout time.Duration

	// SystemPrompt overrides the default persona prompt when set.
	SystemPrompt string

	// Context, when non-nil, supplies the retrieved-memory block.
	Context ContextProvider

	// Meter, when non-nil, records usage. Local models carry no price, so
	// the recorded cost is zero, but the call still honours a cap that an
	// earlier paid call already crossed.
	Meter ChatMeter

	// Logger receives structured diagnostics. Nil uses slog.Default().
	Logger *slog.Logger
}

// Local implements Brain against an Ollama-style /api/generate endpoint on
// localhost. It is the last resort of the routing chain: no API key, no
// spend, available whenever the local server runs.
type Local struct {
	cfg    LocalConfig
	client *http.Client
}

// NewLocal creates a local chat brain. Construction never fails; whether
// the server is actually reachable surfaces on the first ProduceReply.
func NewLocal(cfg LocalConfig) *Local {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultLocalBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultLocalModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultLocalTimeout
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = SystemPrompt(cfg.Model)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Local{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal Ollama generate wire types ---

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

// ProduceReply generates a reply through the local model server. The
// persona prompt and the retrieved-memory block travel in the system field,
// the user message as the prompt.
func (b *Local) ProduceReply(ctx context.Context, text string) (string, error) {
	if b.cfg.Meter != nil {
		if err := b.cfg.Meter.Check(b.cfg.Model); err != nil {
			return "", err
		}
	}

	system := b.cfg.SystemPrompt
	if b.cfg.Context != nil {
		if block := b.cfg.Context.BuildContext(ctx, text); block != "" {
			system += "\n\n" + block
		}
	}

	data, err := json.Marshal(generateRequest{
		Model:  b.cfg.Model,
		Prompt: text,
		System: system,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("brain local: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.cfg.BaseURL+"/api/generate",
		bytes.NewReader(data),
	)
	if err != nil {
		return "", fmt.Errorf("brain local: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("brain local: http request (is the local model server running?): %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("brain local: read response body: %w", err)
	}

	var genResp generateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", fmt.Errorf("brain local: decode response: %w", err)
	}
	if genResp.Error != "" {
		return "", fmt.Errorf("brain local: server error: %s", genResp.Error)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("brain local: unexpected HTTP status %d", resp.StatusCode)
	}

	if b.cfg.Meter != nil {
		// Local tokens are free; recording them keeps the usage breakdown
		// complete.
		if _, err := b.cfg.Meter.RecordChat(b.cfg.Model, genResp.PromptEvalCount, genResp.EvalCount); err != nil {
			b.cfg.Logger.Warn("brain local: spend recording failed", "model", b.cfg.Model, "err", err)
		}
	}

	return genResp.Response, nil
}

// Name returns the configured local model name.
func (b *Local) Name() string {
	return b.cfg.Model
}

// Compile-time interface satisfaction check.
var _ Brain = (*Local)(nil)
