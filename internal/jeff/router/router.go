// Package router selects which brain answers a chat turn: an explicit model
// name routes to its provider family, and the automatic route walks the
// OpenAI → Gemini → Local fallback chain until a brain can be built.
package router

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/bdobrica/Jeff/internal/jeff/brain"
)

// Model lists per provider family. Matching is case-insensitive exact
// membership.
var (
	DefaultOpenAIModels = []string{"gpt-4.1", "gpt-4o", "gpt-4o-mini"}
	DefaultGeminiModels = []string{"gemini-1.5-pro", "gemini-1.5-flash"}
	DefaultLocalModels  = []string{"mistral", "phi-3-mini", "llama"}
)

// DefaultChatModel is the model the automatic route tries first.
const DefaultChatModel = "gpt-4.1"

// Config configures a Router. The per-provider brain configs act as
// templates: the routed model name is filled in before construction, so one
// template serves every model of its family.
type Config struct {
	OpenAI brain.OpenAIConfig
	Gemini brain.GeminiConfig
	Local  brain.LocalConfig

	// Model lists per family. Empty lists take the package defaults.
	OpenAIModels []string
	GeminiModels []string
	LocalModels  []string

	// DefaultModel is tried first by the automatic route. Empty uses
	// DefaultChatModel.
	DefaultModel string

	// Logger receives structured diagnostics. Nil uses slog.Default().
	Logger *slog.Logger
}

// Router builds brains on demand from the configured templates.
type Router struct {
	cfg Config
}

func New(cfg Config) *Router {
	if len(cfg.OpenAIModels) == 0 {
		cfg.OpenAIModels = DefaultOpenAIModels
	}
	if len(cfg.GeminiModels) == 0 {
		cfg.GeminiModels = DefaultGeminiModels
	}
	if len(cfg.LocalModels) == 0 {
		cfg.LocalModels = DefaultLocalModels
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultChatModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Router{cfg: cfg}
}

// Route returns a brain for the named model. The empty string and "auto"
// take the automatic fallback chain. A model outside every configured
// family is an error, not a silent downgrade to another provider.
func (r *Router) Route(model string) (brain.Brain, error) {
	name := strings.ToLower(strings.TrimSpace(model))
	if name == "" || name == "auto" {
		return r.Auto(), nil
	}

	switch {
	case contains(r.cfg.OpenAIModels, name):
		return r.buildOpenAI(name)
	case contains(r.cfg.GeminiModels, name):
		return r.buildGemini(name)
	case contains(r.cfg.LocalModels, name):
		return r.buildLocal(name), nil
	}
	return nil, fmt.Errorf("router: unknown model %q (known models: %s)", model, strings.Join(r.Models(), ", "))
}

// Auto walks the fallback chain: the default model's family first, then
// Gemini, then the local brain. Local construction cannot fail, so Auto
// always yields a brain; which one is logged.
func (r *Router) Auto() brain.Brain {
	def := strings.ToLower(r.cfg.DefaultModel)

	if contains(r.cfg.OpenAIModels, def) {
		if b, err := r.buildOpenAI(def); err == nil {
			r.cfg.Logger.Debug("router: auto route selected openai", "model", def)
			return b
		} else {
			r.cfg.Logger.Debug("router: auto route skipping openai", "err", err)
		}
	}

	if len(r.cfg.GeminiModels) > 0 {
		model := preferred(r.cfg.GeminiModels, def)
		if b, err := r.buildGemini(model); err == nil {
			r.cfg.Logger.Debug("router: auto route selected gemini", "model", model)
			return b
		} else {
			r.cfg.Logger.Debug("router: auto route skipping gemini", "err", err)
		}
	}

	local := r.buildLocal(preferred(r.cfg.LocalModels, def))
	r.cfg.Logger.Debug("router: auto route selected local", "model", local.Name())
	return local
}

// Models lists every model name the router can serve, in family order.
func (r *Router) Models() []string {
	out := make([]string, 0, len(r.cfg.OpenAIModels)+len(r.cfg.GeminiModels)+len(r.cfg.LocalModels))
	out = append(out, r.cfg.OpenAIModels...)
	out = append(out, r.cfg.GeminiModels...)
	out = append(out, r.cfg.LocalModels...)
	return out
}

func (r *Router) buildOpenAI(model string) (brain.Brain, error) {
	cfg := r.cfg.OpenAI
	cfg.Model = model
	return brain.NewOpenAI(cfg)
}

func (r *Router) buildGemini(model string) (brain.Brain, error) {
	cfg := r.cfg.Gemini
	cfg.Model = model
	return brain.NewGemini(cfg)
}

func (r *Router) buildLocal(model string) brain.Brain {
	cfg := r.cfg.Local
	cfg.Model = model
	return brain.NewLocal(cfg)
}

func contains(list []string, name string) bool {
	for _, m := range list {
		if strings.ToLower(m) == name {
			return true
		}
	}
	return false
}

// preferred returns def when it belongs to list, else the list head.
func preferred(list []string, def string) string {
	if contains(list, def) {
		return def
	}
	return list[0]
}
