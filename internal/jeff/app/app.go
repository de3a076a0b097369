// Package app assembles Jeff from configuration: spend ledger and guard,
// the embedding chain, the vector store, the memory manager, the brains
// behind the router, and the ingestion front ends.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bdobrica/Jeff/common/retry"
	"github.com/bdobrica/Jeff/internal/jeff/brain"
	"github.com/bdobrica/Jeff/internal/jeff/chat"
	"github.com/bdobrica/Jeff/internal/jeff/config"
	"github.com/bdobrica/Jeff/internal/jeff/embedder"
	"github.com/bdobrica/Jeff/internal/jeff/importer"
	"github.com/bdobrica/Jeff/internal/jeff/memory"
	"github.com/bdobrica/Jeff/internal/jeff/parser"
	"github.com/bdobrica/Jeff/internal/jeff/router"
	"github.com/bdobrica/Jeff/internal/jeff/spend"
	"github.com/bdobrica/Jeff/internal/jeff/vecstore"
)

// SpendDBName is the spend ledger file inside the data directory.
const SpendDBName = "spend.db"

// App holds the wired subsystems for one Jeff process.
type App struct {
	Config   config.Config
	Guard    *spend.Guard
	Embedder embedder.Embedder
	Store    *vecstore.Store
	Status   vecstore.OpenStatus
	Memory   *memory.Manager
	Context  *memory.ContextBuilder
	Router   *router.Router
	Parser   *parser.Engine
	Importer *importer.Importer

	ledger *spend.Ledger
}

// New wires all subsystems. Construction is progressive: a failure after
// the ledger opened closes it again before returning.
func New(cfg config.Config) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("app: create data dir: %w", err)
	}

	ledger, err := spend.OpenLedger(filepath.Join(cfg.DataDir, SpendDBName))
	if err != nil {
		return nil, err
	}
	guard, err := spend.NewGuard(cfg.Spend.DailyLimitUSD, ledger)
	if err != nil {
		ledger.Close()
		return nil, err
	}

	emb, err := buildEmbedder(cfg, guard)
	if err != nil {
		ledger.Close()
		return nil, err
	}

	store, status, err := vecstore.Open(vecstore.Config{
		Dir:      cfg.DataDir,
		Embedder: emb,
	})
	if err != nil {
		ledger.Close()
		return nil, err
	}
	if status.Recovered {
		slog.Warn("app: vector store recovered from unreadable artifacts, starting empty",
			"reason", status.Reason)
	}

	mem, err := memory.NewManager(memory.Config{
		Dir:           cfg.DataDir,
		Store:         store,
		MaxChunkChars: cfg.Memory.MaxChunkChars,
		ReadOnly:      !cfg.Memory.AllowWrite,
	})
	if err != nil {
		ledger.Close()
		return nil, err
	}

	ctxBuilder := memory.NewContextBuilder(memory.ContextConfig{
		Searcher: mem,
		Hits:     cfg.Chat.ContextHits,
		MaxChars: cfg.Chat.ContextChars,
	})

	rt := router.New(router.Config{
		OpenAI: brain.OpenAIConfig{
			APIKey:  cfg.OpenAIKey,
			Context: ctxBuilder,
			Meter:   guard,
		},
		Gemini: brain.GeminiConfig{
			APIKey:  cfg.GeminiKey,
			Context: ctxBuilder,
			Meter:   guard,
		},
		Local: brain.LocalConfig{
			BaseURL: cfg.Chat.LocalURL,
			Context: ctxBuilder,
			Meter:   guard,
		},
		OpenAIModels: cfg.Chat.OpenAIModels,
		GeminiModels: cfg.Chat.GeminiModels,
		LocalModels:  cfg.Chat.LocalModels,
		DefaultModel: cfg.Chat.DefaultModel,
	})

	imp, err := importer.New(importer.Config{
		Memory:        mem,
		MaxChunkChars: cfg.Memory.MaxChunkChars,
	})
	if err != nil {
		ledger.Close()
		return nil, err
	}

	slog.Info("app: ready",
		"data_dir", cfg.DataDir,
		"entries", mem.Len(),
		"vectors", store.Len(),
		"embedding", cfg.Embedding.Provider,
		"writes", cfg.Memory.AllowWrite)

	return &App{
		Config:   cfg,
		Guard:    guard,
		Embedder: emb,
		Store:    store,
		Status:   status,
		Memory:   mem,
		Context:  ctxBuilder,
		Router:   rt,
		Parser:   parser.NewEngine(nil),
		Importer: imp,
		ledger:   ledger,
	}, nil
}

// NewSession starts an interactive chat session on the wired subsystems.
// model may be empty or "auto" for automatic selection.
func (a *App) NewSession(model string) (*chat.Session, error) {
	return chat.NewSession(chat.Config{
		Router:  a.Router,
		Memory:  a.Memory,
		Spend:   a.Guard,
		Model:   model,
		RecallK: a.Config.Memory.SearchK,
	})
}

// Close releases resources held by the app.
func (a *App) Close() error {
	return a.ledger.Close()
}

// buildEmbedder constructs the provider-specific embedder and wraps it with
// the retry and cache layers: base, retried, then cached, so a cache hit
// never touches the network and a miss is retried before it is cached.
func buildEmbedder(cfg config.Config, guard *spend.Guard) (embedder.Embedder, error) {
	var base embedder.Embedder
	switch cfg.Embedding.Provider {
	case "static":
		base = embedder.NewStatic(cfg.Embedding.Dims)
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("app: embedding provider openai: set OPENAI_API_KEY or put the key in %s",
				filepath.Join(cfg.DataDir, "openai_key.txt"))
		}
		base = embedder.NewOpenAI(embedder.OpenAIConfig{
			APIKey: cfg.OpenAIKey,
			Model:  cfg.Embedding.Model,
			Dims:   cfg.Embedding.Dims,
			Meter:  guard,
		})
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("app: embedding provider gemini: set GEMINI_API_KEY or put the key in %s",
				filepath.Join(cfg.DataDir, "gemini_key.txt"))
		}
		base = embedder.NewGemini(embedder.GeminiConfig{
			APIKey: cfg.GeminiKey,
			Model:  cfg.Embedding.Model,
			Dims:   cfg.Embedding.Dims,
			Meter:  guard,
		})
	default:
		return nil, fmt.Errorf("app: unknown embedding provider %q", cfg.Embedding.Provider)
	}

	retried := embedder.NewRetrying(base, retry.Config{MaxAttempts: cfg.Embedding.MaxAttempts})
	return embedder.NewCached(retried, cfg.Embedding.CacheSize, cfg.Embedding.CacheTTL), nil
}
