package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ContextHeading introduces the retrieved-memory block injected into brain
// prompts.
const ContextHeading = "Relevant long-term memory for this user:"

// Defaults for context assembly.
const (
	DefaultContextHits  = 3
	DefaultContextChars = 2000
)

// Searcher is the retrieval surface the context builder needs.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]Hit, error)
}

var _ Searcher = (*Manager)(nil)

// ContextConfig configures a ContextBuilder.
type ContextConfig struct {
	// Searcher provides the hits. A nil searcher yields empty context,
	// letting brains run without a memory engine attached.
	Searcher Searcher

	// Hits is how many results to request. Zero uses DefaultContextHits.
	Hits int

	// MaxChars bounds the rendered block. Zero uses DefaultContextChars.
	MaxChars int

	// Logger receives structured diagnostics. Nil uses slog.Default().
	Logger *slog.Logger
}

// ContextBuilder renders retrieved memory into the prompt block brains
// inject ahead of the user message. Retrieval problems never surface to the
// conversation: any failure degrades to an empty block.
type ContextBuilder struct {
	searcher Searcher
	hits     int
	maxChars int
	logger   *slog.Logger
}

func NewContextBuilder(cfg ContextConfig) *ContextBuilder {
	if cfg.Hits <= 0 {
		cfg.Hits = DefaultContextHits
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultContextChars
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ContextBuilder{
		searcher: cfg.Searcher,
		hits:     cfg.Hits,
		maxChars: cfg.MaxChars,
		logger:   cfg.Logger,
	}
}

// BuildContext searches memory for query and renders the hits as
//
//	Relevant long-term memory for this user:
//	- <text>  [source: <source>]
//	- ...
//
// within the character budget. It returns "" when there is nothing useful:
// no searcher, no hits, hits with blank text, or a search failure.
func (b *ContextBuilder) BuildContext(ctx context.Context, query string) string {
	if b.searcher == nil {
		return ""
	}

	hits, err := b.searcher.Search(ctx, query, b.hits)
	if err != nil {
		b.logger.Warn("memory: context search failed, continuing without memory", "err", err)
		return ""
	}
	if len(hits) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(ContextHeading)
	total := len(ContextHeading)
	wrote := false
	for _, h := range hits {
		snippet := strings.TrimSpace(h.Text)
		if snippet == "" {
			continue
		}
		source := h.Source
		if source == "" {
			source = "memory"
		}
		line := fmt.Sprintf("- %s  [source: %s]", snippet, source)
		if total+1+len(line) > b.maxChars {
			break
		}
		sb.WriteByte('\n')
		sb.WriteString(line)
		total += 1 + len(line)
		wrote = true
	}
	if !wrote {
		return ""
	}
	return sb.String()
}
