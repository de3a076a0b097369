// Package importer ingests ChatGPT HTML exports into long-term memory. The
// export is a single HTML page of message bubbles wrapped in layers of
// chrome; the importer pulls the visible text blocks out, filters the
// boilerplate, and feeds the survivors through the memory manager chunk by
// chunk.
package importer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/bdobrica/Jeff/internal/jeff/chunker"
	"github.com/bdobrica/Jeff/internal/jeff/memory"
)

// ImportSource is the source label stamped on every imported entry.
const ImportSource = "import:chatgpt"

// boilerplate words dropped when a block consists of nothing else. These
// are the button labels and chrome strings ChatGPT exports leave behind.
var boilerplate = []string{
	"OpenAI",
	"ChatGPT",
	"export",
	"share",
	"copy",
	"regenerate",
	"like",
	"dislike",
}

// Tags whose subtrees carry no conversation text.
var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"head":     true,
	"nav":      true,
	"button":   true,
	"svg":      true,
}

// Memory is the slice of the memory manager the importer depends on.
type Memory interface {
	Remember(ctx context.Context, text, source string, metadata map[string]string, write bool) (memory.Result, error)
}

var _ Memory = (*memory.Manager)(nil)

// Report summarizes one import run.
type Report struct {
	// Blocks is the number of text blocks that survived the boilerplate
	// filter; Dropped is the number that did not.
	Blocks  int
	Dropped int

	// Chunks is the number of chunks produced from the surviving blocks.
	Chunks int

	// Written and Skipped count the memory entries per outcome. Skipped
	// stays zero unless memory writes are disabled.
	Written int
	Skipped int
}

// Config configures an Importer.
type Config struct {
	// Memory receives the imported entries. Required.
	Memory Memory

	// MaxChunkChars caps the chunk size per entry. Zero uses
	// chunker.DefaultMaxChars.
	MaxChunkChars int

	// Logger receives structured diagnostics. Nil uses slog.Default().
	Logger *slog.Logger
}

// Importer converts ChatGPT HTML exports into memory entries.
type Importer struct {
	mem           Memory
	maxChunkChars int
	logger        *slog.Logger
}

func New(cfg Config) (*Importer, error) {
	if cfg.Memory == nil {
		return nil, fmt.Errorf("importer: memory manager is required")
	}
	if cfg.MaxChunkChars <= 0 {
		cfg.MaxChunkChars = chunker.DefaultMaxChars
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Importer{
		mem:           cfg.Memory,
		maxChunkChars: cfg.MaxChunkChars,
		logger:        cfg.Logger,
	}, nil
}

// Import extracts the conversation text from a ChatGPT HTML export and
// writes one memory entry per chunk, all labelled ImportSource. The first
// failed write aborts the run; the report covers what was processed up to
// that point.
func (i *Importer) Import(ctx context.Context, data []byte) (Report, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return Report{}, fmt.Errorf("importer: parse html: %w", err)
	}

	blocks, dropped := extractBlocks(doc)
	report := Report{Blocks: len(blocks), Dropped: dropped}

	for _, block := range blocks {
		for _, chunk := range chunker.Chunk(block, i.maxChunkChars) {
			report.Chunks++
			res, err := i.mem.Remember(ctx, chunk, ImportSource, nil, true)
			if err != nil {
				return report, fmt.Errorf("importer: write entry: %w", err)
			}
			if res.Status == memory.StatusWritten {
				report.Written++
			} else {
				report.Skipped++
			}
		}
	}

	i.logger.Info("importer: chatgpt export processed",
		"blocks", report.Blocks,
		"dropped", report.Dropped,
		"chunks", report.Chunks,
		"written", report.Written,
		"skipped", report.Skipped,
	)
	return report, nil
}

// extractBlocks walks the document and returns the cleaned text of every
// div, where each div contributes only the text outside its nested divs so
// wrapper layers do not duplicate their children's content.
func extractBlocks(doc *html.Node) (blocks []string, dropped int) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skippedTags[n.Data] {
				return
			}
			if n.Data == "div" {
				cleaned := cleanText(directText(n))
				if keepBlock(cleaned) {
					blocks = append(blocks, cleaned)
				} else if cleaned != "" {
					dropped++
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return blocks, dropped
}

// directText concatenates the text nodes under n, stopping at nested divs
// (they emit their own block) and at tags that never carry conversation
// text.
func directText(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				sb.WriteString(c.Data)
				sb.WriteByte(' ')
			case html.ElementNode:
				if c.Data == "div" || skippedTags[c.Data] {
					continue
				}
				visit(c)
			}
		}
	}
	visit(n)
	return sb.String()
}

// cleanText normalizes whitespace, discards pure boilerplate, and strips
// zero-width characters left over from the export renderer.
func cleanText(text string) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	for _, b := range boilerplate {
		if strings.EqualFold(cleaned, b) {
			return ""
		}
	}
	cleaned = strings.Map(func(r rune) rune {
		switch r {
		case '​', '‌', '‍': // zero-width space, non-joiner, joiner
			return -1
		}
		return r
	}, cleaned)
	return strings.TrimSpace(cleaned)
}

// keepBlock drops empty and sub-5-character fragments plus the short
// "ChatGPT ..." chrome labels.
func keepBlock(cleaned string) bool {
	n := utf8.RuneCountInString(cleaned)
	if n < 5 {
		return false
	}
	if strings.Contains(cleaned, "ChatGPT") && n < 20 {
		return false
	}
	return true
}
