package brain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-1.5-pro"

// GeminiConfig configures the Gemini chat brain.
type GeminiConfig struct {
	// APIKey authenticates against the Gemini API. Required.
	APIKey string

	// Model is the chat model to use. Defaults to gemini-1.5-pro.
	Model string

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

// Gemini implements Brain using the Gemini API. Unlike the chat-structured
// OpenAI API, the whole turn goes out as one flat prompt: persona, then the
// memory block, then the user message, separated by blank lines.
type Gemini struct {
	cfg GeminiConfig
}

// NewGemini creates a Gemini chat brain. It fails when no API key is
// configured, which lets the router's fallback chain skip the provider.
func NewGemini(cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("brain gemini: API key missing; set GEMINI_API_KEY or put the key in gemini_key.txt")
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = SystemPrompt(cfg.Model)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gemini{cfg: cfg}, nil
}

// ProduceReply generates a reply through the Gemini API.
func (b *Gemini) ProduceReply(ctx context.Context, text string) (string, error) {
	if b.cfg.Meter != nil {
		if err := b.cfg.Meter.Check(b.cfg.Model); err != nil {
			return "", err
		}
	}

	parts := []string{b.cfg.SystemPrompt}
	if b.cfg.Context != nil {
		if block := b.cfg.Context.BuildContext(ctx, text); block != "" {
			parts = append(parts, block)
		}
	}
	parts = append(parts, "User message:\n"+text)
	prompt := strings.Join(parts, "\n\n")

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  b.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("brain gemini: create client: %w", err)
	}

	resp, err := client.Models.GenerateContent(ctx, b.cfg.Model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("brain gemini: generate content: %w", err)
	}
	reply := resp.Text()

	if b.cfg.Meter != nil && resp.UsageMetadata != nil {
		tokensIn := int(resp.UsageMetadata.PromptTokenCount)
		tokensOut := int(resp.UsageMetadata.CandidatesTokenCount)
		if _, err := b.cfg.Meter.RecordChat(b.cfg.Model, tokensIn, tokensOut); err != nil {
			b.cfg.Logger.Warn("brain gemini: chat spend crossed the daily cap", "model", b.cfg.Model, "err", err)
		}
	}

	return reply, nil
}

// Name returns the configured chat model name.
func (b *Gemini) Name() string {
	return b.cfg.Model
}

// Compile-time interface satisfaction check.
var _ Brain = (*Gemini)(nil)
