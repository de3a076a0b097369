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

	"github.com/bdobrica/Jeff/common/redact"
)

const (
	defaultOpenAIBase    = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4.1"
	defaultOpenAITimeout = 60 * time.Second
)

// OpenAIConfig configures the OpenAI chat brain.
type OpenAIConfig struct {
	// APIKey is the bearer token for authentication. Required.
	APIKey string

	// BaseURL overrides the API endpoint. Defaults to
	// https://api.openai.com/v1 when empty.
	BaseURL string

	// Model is the chat model to use. Defaults to gpt-4.1.
	Model string

	// Timeout is the HTTP request timeout. Defaults to 60 s.
	Timeout time.Duration

	// SystemPrompt overrides the default persona prompt when set.
	SystemPrompt string

	// Context, when non-nil, supplies the retrieved-memory block.
	Context ContextProvider

	// Meter, when non-nil, is consulted around every API call to enforce
	// the daily spend cap.
	Meter ChatMeter

	// Logger receives structured diagnostics. Nil uses slog.Default().
	Logger *slog.Logger
}

// OpenAI implements Brain using the OpenAI chat completions API.
type OpenAI struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewOpenAI creates an OpenAI chat brain. It fails when no API key is
// configured, which lets the router's fallback chain skip the provider.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("brain openai: API key missing; set OPENAI_API_KEY or put the key in openai_key.txt")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultOpenAITimeout
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = SystemPrompt(cfg.Model)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &OpenAI{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// --- minimal OpenAI chat completions wire types ---

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// ProduceReply sends the persona prompt, the retrieved-memory block (when
// any) and the user message to the chat completions API and returns the
// model's reply.
func (b *OpenAI) ProduceReply(ctx context.Context, text string) (string, error) {
	if b.cfg.Meter != nil {
		if err := b.cfg.Meter.Check(b.cfg.Model); err != nil {
			return "", err
		}
	}

	messages := []chatMessage{{Role: "system", Content: b.cfg.SystemPrompt}}
	if b.cfg.Context != nil {
		if block := b.cfg.Context.BuildContext(ctx, text); block != "" {
			messages = append(messages, chatMessage{Role: "system", Content: block})
		}
	}
	messages = append(messages, chatMessage{Role: "user", Content: text})

	data, err := json.Marshal(chatRequest{Model: b.cfg.Model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("brain openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(data),
	)
	if err != nil {
		return "", fmt.Errorf("brain openai: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("brain openai: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("brain openai: read response body: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("brain openai: decode response: %w", err)
	}

	if chatResp.Error != nil {
		// Upstream error messages can echo request details; never let the
		// key reach logs or the terminal.
		msg := redact.String(chatResp.Error.Message, b.cfg.APIKey)
		if resp.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w (HTTP 429): %s", ErrRateLimit, msg)
		}
		return "", fmt.Errorf("brain openai: API error (%s): %s", chatResp.Error.Type, msg)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w (HTTP 429)", ErrRateLimit)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("brain openai: unexpected HTTP status %d", resp.StatusCode)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("brain openai: no choices returned")
	}

	reply := chatResp.Choices[0].Message.Content

	// The reply is already paid for; a cap crossed by this call is
	// reported and enforced on the next Check instead of discarding it.
	if b.cfg.Meter != nil {
		if _, err := b.cfg.Meter.RecordChat(b.cfg.Model, chatResp.Usage.PromptTokens, chatResp.Usage.CompletionTokens); err != nil {
			b.cfg.Logger.Warn("brain openai: chat spend crossed the daily cap", "model", b.cfg.Model, "err", err)
		}
	}

	return reply, nil
}

// Name returns the configured chat model name.
func (b *OpenAI) Name() string {
	return b.cfg.Model
}

// Compile-time interface satisfaction check.
var _ Brain = (*OpenAI)(nil)
