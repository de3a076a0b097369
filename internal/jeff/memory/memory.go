// Package memory owns the long-term memory log and the retrieval façade on
// top of it. The Manager is the single logical owner of the engine: brains
// and command surfaces receive one shared instance and never touch the
// vector index or the log files directly.
//
// Every remembered text is stored twice, deliberately: the full entry goes
// to the append-only JSON log (the durable, human-inspectable record), and
// its chunks go to the vector index for semantic lookup. Search is layered:
// semantic first, keyword scan over the log as the fallback when the index
// yields nothing.
package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bdobrica/Jeff/internal/jeff/chunker"
	"github.com/bdobrica/Jeff/internal/jeff/vecstore"
)

// Log artifact names inside the memory directory. The backup is a second
// copy of the same bytes, written on every save.
const (
	logFile    = "memory.json"
	backupFile = "memory_backup.json"
)

// DefaultSearchK is the result count used when a caller passes k <= 0.
const DefaultSearchK = 5

// VectorStore is the slice of the vector index the manager depends on.
type VectorStore interface {
	AddChunk(ctx context.Context, text string, metadata map[string]string) (int, error)
	Search(ctx context.Context, query string, k int) ([]vecstore.Hit, error)
}

var _ VectorStore = (*vecstore.Store)(nil)

// MemoryEntry is one record of the long-term memory log: the full original
// text plus the chunk records that were sent to the vector index for it.
type MemoryEntry struct {
	Timestamp string            `json:"timestamp"`
	Text      string            `json:"text"`
	Source    string            `json:"source"`
	Metadata  map[string]string `json:"metadata"`
	Chunks    []ChunkRecord     `json:"chunks"`
}

// ChunkRecord mirrors what the vector index stored for one chunk of an
// entry: the chunk text and the merged metadata in effect when it was added.
type ChunkRecord struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Status reports the outcome of a Remember call.
type Status string

const (
	// StatusWritten means the entry was appended to the log and its chunks
	// were indexed.
	StatusWritten Status = "written"

	// StatusSkipped means memory writes are disabled and nothing was stored.
	StatusSkipped Status = "skipped"
)

// Result is the outcome of a Remember call.
type Result struct {
	Status Status

	// Chunks is the number of chunks indexed for the entry. Zero for a
	// skipped write and for text that produced no chunks.
	Chunks int
}

// Hit is one search result. Semantic hits carry chunk-level text and the
// distance of the match; keyword hits carry the full entry text and are
// flagged so callers can tell the two apart.
type Hit struct {
	Text     string
	Source   string
	Metadata map[string]string

	// Distance is the Euclidean distance of a semantic match. Zero for
	// keyword hits.
	Distance float64

	// Keyword is true when the hit came from the substring fallback scan
	// instead of the vector index.
	Keyword bool
}

// Config configures a Manager.
type Config struct {
	// Dir is the directory holding memory.json and its backup. Created if
	// absent.
	Dir string

	// Store indexes chunk embeddings for semantic search. Required.
	Store VectorStore

	// MaxChunkChars caps the chunk size handed to the vector index. Zero
	// uses chunker.DefaultMaxChars.
	MaxChunkChars int

	// ReadOnly starts the manager with memory writes disabled. The mode
	// can be flipped at runtime with SetWriteMode.
	ReadOnly bool

	// Logger receives structured diagnostics. Nil uses slog.Default().
	Logger *slog.Logger
}

// Manager is the single owner of the memory log and the retrieval façade
// over the vector index. Safe for concurrent use.
type Manager struct {
	store         VectorStore
	logger        *slog.Logger
	maxChunkChars int
	logPath       string
	backupPath    string

	mu         sync.Mutex
	allowWrite bool
	entries    []MemoryEntry
}

// NewManager loads the memory log from cfg.Dir, falling back to an empty
// log when the file is missing, unparsable, or fails schema validation. An
// unreadable log is reported through the logger, never fatal: availability
// wins over strict durability here.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("memory: vector store is required")
	}
	if cfg.MaxChunkChars <= 0 {
		cfg.MaxChunkChars = chunker.DefaultMaxChars
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("memory: create memory directory: %w", err)
	}

	m := &Manager{
		store:         cfg.Store,
		logger:        cfg.Logger,
		maxChunkChars: cfg.MaxChunkChars,
		logPath:       filepath.Join(cfg.Dir, logFile),
		backupPath:    filepath.Join(cfg.Dir, backupFile),
		allowWrite:    !cfg.ReadOnly,
	}
	m.entries = m.loadLog()
	return m, nil
}

func (m *Manager) loadLog() []MemoryEntry {
	data, err := os.ReadFile(m.logPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		m.logger.Warn("memory: read log failed, starting empty", "path", m.logPath, "err", err)
		return nil
	}
	entries, err := decodeLog(data)
	if err != nil {
		m.logger.Warn("memory: discarding unreadable log, starting empty", "path", m.logPath, "err", err)
		return nil
	}
	m.logger.Debug("memory: loaded log", "entries", len(entries))
	return entries
}

// Remember chunks text, indexes each chunk in the vector store, then
// appends the full entry to the log and persists it together with the
// backup copy.
//
// Two gates can skip the write: the caller's write argument and the
// manager-wide write mode. When either is off the call is a no-op
// returning StatusSkipped, touching neither the chunker nor the index.
// Text that yields no chunks is still logged as an entry with zero chunks.
// A chunk indexing failure aborts the call before the log is touched, so
// the log never references chunks that were not offered to the index; the
// reverse (indexed chunks without a log entry) is the accepted crash
// window.
func (m *Manager) Remember(ctx context.Context, text, source string, metadata map[string]string, write bool) (Result, error) {
	m.mu.Lock()
	allowed := m.allowWrite
	m.mu.Unlock()
	if !write || !allowed {
		m.logger.Debug("memory: writes disabled, skipping entry", "source", source)
		return Result{Status: StatusSkipped}, nil
	}

	if source == "" {
		source = "chat"
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	timestamp := time.Now().Format(time.DateTime)
	chunks := chunker.Chunk(text, m.maxChunkChars)

	// Chunk metadata starts from the entry's bookkeeping fields; caller
	// metadata is merged on top and may override them.
	meta := map[string]string{
		"timestamp": timestamp,
		"source":    source,
	}
	for k, v := range metadata {
		meta[k] = v
	}

	records := make([]ChunkRecord, 0, len(chunks))
	for _, c := range chunks {
		if _, err := m.store.AddChunk(ctx, c, meta); err != nil {
			return Result{}, fmt.Errorf("memory: index chunk: %w", err)
		}
		records = append(records, ChunkRecord{Text: c, Metadata: meta})
	}

	entry := MemoryEntry{
		Timestamp: timestamp,
		Text:      text,
		Source:    source,
		Metadata:  metadata,
		Chunks:    records,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	if err := m.persistLocked(); err != nil {
		return Result{}, err
	}

	m.logger.Debug("memory: entry written",
		"source", source,
		"chunks", len(records),
		"entries", len(m.entries),
	)
	return Result{Status: StatusWritten, Chunks: len(records)}, nil
}

// Search runs semantic search over the vector index and falls back to a
// case-insensitive substring scan over the log's full entry texts when the
// index returns nothing. The fallback preserves log order and returns at
// most k entries; it never fails. Semantic search errors propagate to the
// caller.
//
// Note the asymmetry: semantic hits are chunk-level snippets while keyword
// hits are whole entry texts.
func (m *Manager) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if k <= 0 {
		k = DefaultSearchK
	}

	semantic, err := m.store.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("memory: semantic search: %w", err)
	}
	if len(semantic) > 0 {
		hits := make([]Hit, len(semantic))
		for i, h := range semantic {
			hits[i] = Hit{
				Text:     h.Record.Text,
				Source:   h.Record.Metadata["source"],
				Metadata: h.Record.Metadata,
				Distance: h.Distance,
			}
		}
		return hits, nil
	}

	needle := strings.ToLower(query)

	m.mu.Lock()
	defer m.mu.Unlock()
	var hits []Hit
	for _, e := range m.entries {
		if len(hits) == k {
			break
		}
		if strings.Contains(strings.ToLower(e.Text), needle) {
			hits = append(hits, Hit{
				Text:     e.Text,
				Source:   e.Source,
				Metadata: e.Metadata,
				Keyword:  true,
			})
		}
	}
	return hits, nil
}

// Latest returns the n most recent entries in log order, oldest of the n
// first. n <= 0 returns nil.
func (m *Manager) Latest(n int) []MemoryEntry {
	if n <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.entries) {
		n = len(m.entries)
	}
	out := make([]MemoryEntry, n)
	copy(out, m.entries[len(m.entries)-n:])
	return out
}

// Len returns the number of entries in the log.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// SetWriteMode turns persistent memory writes on or off at runtime.
func (m *Manager) SetWriteMode(allow bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowWrite = allow
}

// WritesEnabled reports whether Remember currently persists entries.
func (m *Manager) WritesEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowWrite
}

// persistLocked writes the log and then the byte-identical backup copy.
// Must be called with m.mu held.
func (m *Manager) persistLocked() error {
	data, err := encodeLog(m.entries)
	if err != nil {
		return fmt.Errorf("memory: encode log: %w", err)
	}
	if err := os.WriteFile(m.logPath, data, 0o644); err != nil {
		return fmt.Errorf("memory: write log: %w", err)
	}
	if err := os.WriteFile(m.backupPath, data, 0o644); err != nil {
		return fmt.Errorf("memory: write log backup: %w", err)
	}
	return nil
}
