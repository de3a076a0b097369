package router

import (
	"strings"
	"testing"

	"github.com/bdobrica/Jeff/internal/jeff/brain"
)

func TestRouter_RoutesByFamily(t *testing.T) {
	r := New(Config{
		OpenAI: brain.OpenAIConfig{APIKey: "sk-test"},
		Gemini: brain.GeminiConfig{APIKey: "g-test"},
	})

	tests := []struct {
		model string
		want  string
	}{
		{model: "gpt-4o-mini", want: "gpt-4o-mini"},
		{model: "GPT-4.1", want: "gpt-4.1"},
		{model: "gemini-1.5-flash", want: "gemini-1.5-flash"},
		{model: "mistral", want: "mistral"},
		{model: "  llama  ", want: "llama"},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			b, err := r.Route(tt.model)
			if err != nil {
				t.Fatalf("Route(%q) error = %v", tt.model, err)
			}
			if b.Name() != tt.want {
				t.Errorf("Route(%q).Name() = %q, want %q", tt.model, b.Name(), tt.want)
			}
		})
	}
}

func TestRouter_UnknownModel(t *testing.T) {
	r := New(Config{})

	_, err := r.Route("gpt-99-ultra")
	if err == nil {
		t.Fatal("Route() with unknown model expected error, got nil")
	}
	if !strings.Contains(err.Error(), "gpt-99-ultra") {
		t.Errorf("error %q does not name the rejected model", err)
	}
	if !strings.Contains(err.Error(), "mistral") {
		t.Errorf("error %q does not list the known models", err)
	}
}

func TestRouter_MissingKeySurfaces(t *testing.T) {
	r := New(Config{}) // no API keys configured

	if _, err := r.Route("gpt-4.1"); err == nil {
		t.Error("Route(openai model) without key expected error, got nil")
	}
	if _, err := r.Route("gemini-1.5-pro"); err == nil {
		t.Error("Route(gemini model) without key expected error, got nil")
	}
	// Local models need no key.
	if _, err := r.Route("mistral"); err != nil {
		t.Errorf("Route(local model) error = %v", err)
	}
}

func TestRouter_AutoPrefersDefault(t *testing.T) {
	r := New(Config{
		OpenAI: brain.OpenAIConfig{APIKey: "sk-test"},
		Gemini: brain.GeminiConfig{APIKey: "g-test"},
	})

	b := r.Auto()
	if b.Name() != DefaultChatModel {
		t.Errorf("Auto().Name() = %q, want %q", b.Name(), DefaultChatModel)
	}
}

func TestRouter_AutoFallsBackToGemini(t *testing.T) {
	r := New(Config{
		Gemini: brain.GeminiConfig{APIKey: "g-test"}, // no OpenAI key
	})

	b := r.Auto()
	if b.Name() != "gemini-1.5-pro" {
		t.Errorf("Auto().Name() = %q, want the first gemini model", b.Name())
	}
}

func TestRouter_AutoHonorsDefaultWithinFamily(t *testing.T) {
	r := New(Config{
		Gemini:       brain.GeminiConfig{APIKey: "g-test"}, // no OpenAI key
		DefaultModel: "gemini-1.5-flash",
	})

	b := r.Auto()
	if b.Name() != "gemini-1.5-flash" {
		t.Errorf("Auto().Name() = %q, want the configured default", b.Name())
	}
}

func TestRouter_AutoFallsBackToLocal(t *testing.T) {
	r := New(Config{}) // no keys at all

	b := r.Auto()
	if b.Name() != "mistral" {
		t.Errorf("Auto().Name() = %q, want the first local model", b.Name())
	}
}

func TestRouter_EmptyAndAutoAliases(t *testing.T) {
	r := New(Config{})

	for _, model := range []string{"", "auto", "AUTO"} {
		b, err := r.Route(model)
		if err != nil {
			t.Fatalf("Route(%q) error = %v", model, err)
		}
		if b == nil {
			t.Fatalf("Route(%q) returned nil brain", model)
		}
	}
}

func TestRouter_ModelsListsAllFamilies(t *testing.T) {
	r := New(Config{})

	models := r.Models()
	want := len(DefaultOpenAIModels) + len(DefaultGeminiModels) + len(DefaultLocalModels)
	if len(models) != want {
		t.Errorf("Models() returned %d entries, want %d", len(models), want)
	}
	if models[0] != "gpt-4.1" {
		t.Errorf("Models()[0] = %q, want the default chat model first", models[0])
	}
}
