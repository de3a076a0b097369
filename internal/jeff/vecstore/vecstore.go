// Package vecstore maintains the similarity-searchable vector index at the
// heart of the memory engine: a flat, row-ordered set of embeddings plus the
// identifier map that ties each row back to the chunk text and metadata it
// was computed from.
//
// # Identifier invariant
//
// Identifiers are assigned 0, 1, 2, … in insertion order and are never
// reused. Identifier i always addresses the i-th row of the index, for the
// lifetime of the process and across reloads. The row append and the map
// insert happen under one lock so the two structures cannot drift within a
// process; drift across restarts (a crash between the two artifact writes)
// is handled at read time by skipping unknown identifiers.
//
// # Persistence
//
// The index and the identifier map are two separate artifacts written
// together by one logical commit on every successful add. There is no
// atomic/transactional guard across the two files: a crash between the
// writes is an accepted, documented risk. Unreadable artifacts at open time
// are discarded in favour of an empty store (rebuild-on-corruption), and the
// fallback is reported to the caller rather than hidden.
package vecstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Artifact names inside the store directory. The chunk archive directory
// holds one plain-text file per added chunk for manual inspection.
const (
	indexFile    = "vector_index.bin"
	mapFile      = "vector_index.map.json"
	chunkDirName = "text_chunks"
)

// Embedder produces the fixed-length vectors the store indexes. The store
// mediates every embedding call: nothing else in the engine talks to the
// embedding backend directly.
type Embedder interface {
	// Embed produces the embedding vector for text. It is a blocking
	// external call and may fail transiently.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dims is the dimensionality of every vector the embedder produces.
	Dims() int
}

// Record is the stored payload one identifier maps to: the chunk text and
// the metadata that was in effect when it was embedded.
type Record struct {
	ChunkID  string            `json:"chunk_id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Hit is a single semantic search result.
type Hit struct {
	// ID is the sequential identifier of the matched vector.
	ID int

	// Distance is the Euclidean distance between the query embedding and
	// the matched vector. Lower means closer.
	Distance float64

	// Record is the chunk text and metadata stored for the identifier.
	Record Record
}

// OpenStatus reports how Open brought up the persisted state.
type OpenStatus struct {
	// Recovered is true when persisted artifacts existed but could not be
	// trusted (unreadable file, corrupt bytes, schema or dimensionality
	// mismatch, missing counterpart) and the store fell back to an empty
	// index and map. A first run with no artifacts at all is not a recovery.
	Recovered bool

	// Reason describes what was wrong with the persisted state when
	// Recovered is true.
	Reason string
}

// Config configures a Store.
type Config struct {
	// Dir is the directory holding the index artifact, the identifier map
	// document, and the chunk archive. Created if absent.
	Dir string

	// Embedder generates vectors for added chunks and search queries.
	// Required.
	Embedder Embedder

	// Dims fixes the vector dimensionality for this store instance. Every
	// added or loaded vector must match it. Zero takes the embedder's
	// native dimensionality.
	Dims int

	// Logger receives structured diagnostics. Nil uses slog.Default().
	Logger *slog.Logger
}

// Store owns the in-memory vector rows and the identifier→record map, keeps
// both persisted, and mediates all embedding generation.
//
// Store serializes the compound mutation (row append + map insert + commit)
// internally, so it is safe for concurrent use; embedding calls run outside
// the lock.
type Store struct {
	dims   int
	emb    Embedder
	logger *slog.Logger

	indexPath string
	mapPath   string
	chunkDir  string

	mu      sync.Mutex
	rows    [][]float32    // row i holds the vector for identifier i
	records map[int]Record // identifier → chunk record
}

// Open loads the persisted index and identifier map from cfg.Dir, falling
// back to an empty store when the artifacts are missing or unreadable. The
// returned OpenStatus tells the caller whether untrusted state was discarded;
// Open itself fails only on invalid configuration or an unusable directory.
func Open(cfg Config) (*Store, OpenStatus, error) {
	if cfg.Embedder == nil {
		return nil, OpenStatus{}, fmt.Errorf("vecstore: embedder is required")
	}
	if cfg.Dims <= 0 {
		cfg.Dims = cfg.Embedder.Dims()
	}
	if cfg.Dims <= 0 {
		return nil, OpenStatus{}, fmt.Errorf("vecstore: vector dimensionality must be positive, got %d", cfg.Dims)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	chunkDir := filepath.Join(cfg.Dir, chunkDirName)
	if err := os.MkdirAll(chunkDir, 0o755); err != nil {
		return nil, OpenStatus{}, fmt.Errorf("vecstore: create store directory: %w", err)
	}

	s := &Store{
		dims:      cfg.Dims,
		emb:       cfg.Embedder,
		logger:    cfg.Logger,
		indexPath: filepath.Join(cfg.Dir, indexFile),
		mapPath:   filepath.Join(cfg.Dir, mapFile),
		chunkDir:  chunkDir,
		records:   make(map[int]Record),
	}

	status := s.load()
	if status.Recovered {
		s.logger.Warn("vecstore: discarded unreadable persisted state, starting empty",
			"reason", status.Reason,
			"index", s.indexPath,
			"map", s.mapPath,
		)
	}
	return s, status, nil
}

// load reads both artifacts. Any failure to trust them yields an empty store
// and a Recovered status; only a clean first run (neither file present)
// passes silently.
func (s *Store) load() OpenStatus {
	indexData, indexErr := os.ReadFile(s.indexPath)
	mapData, mapErr := os.ReadFile(s.mapPath)

	if errors.Is(indexErr, fs.ErrNotExist) && errors.Is(mapErr, fs.ErrNotExist) {
		return OpenStatus{} // first run
	}
	if indexErr != nil {
		return OpenStatus{Recovered: true, Reason: fmt.Sprintf("read index artifact: %v", indexErr)}
	}
	if mapErr != nil {
		return OpenStatus{Recovered: true, Reason: fmt.Sprintf("read identifier map: %v", mapErr)}
	}

	rows, err := decodeIndex(indexData, s.dims)
	if err != nil {
		return OpenStatus{Recovered: true, Reason: fmt.Sprintf("decode index artifact: %v", err)}
	}
	records, err := decodeRecords(mapData)
	if err != nil {
		return OpenStatus{Recovered: true, Reason: fmt.Sprintf("decode identifier map: %v", err)}
	}

	s.rows = rows
	s.records = records

	// A crash between the two artifact writes can leave the counts apart.
	// Loaded as-is: search skips identifiers with no record, and records
	// with no row are unreachable. No reconciliation pass exists.
	if len(rows) != len(records) {
		s.logger.Warn("vecstore: index rows and identifier map size diverge",
			"rows", len(rows),
			"records", len(records),
		)
	}

	s.logger.Debug("vecstore: loaded persisted state",
		"rows", len(rows),
		"records", len(records),
		"dims", s.dims,
	)
	return OpenStatus{}
}

// AddChunk embeds text, appends the vector as the next index row, binds the
// next sequential identifier to the chunk's record, and persists both
// artifacts before returning the identifier.
//
// A failed embedding leaves the store untouched: nothing is added and
// nothing is written. A failed commit keeps the in-memory append (the next
// successful commit rewrites both artifacts wholesale, healing the gap) and
// reports the write error.
func (s *Store) AddChunk(ctx context.Context, text string, metadata map[string]string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("vecstore: chunk text is empty")
	}

	vec, err := s.emb.Embed(ctx, text)
	if err != nil {
		return 0, fmt.Errorf("vecstore: embed chunk: %w", err)
	}
	if len(vec) != s.dims {
		return 0, fmt.Errorf("vecstore: embedding has %d dimensions, store expects %d", len(vec), s.dims)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := len(s.records)
	rec := Record{
		ChunkID:  fmt.Sprintf("chunk_%d", id+1),
		Text:     text,
		Metadata: metadata,
	}

	s.rows = append(s.rows, vec)
	s.records[id] = rec

	if err := s.commitLocked(); err != nil {
		return 0, err
	}

	s.archiveChunkLocked(rec)

	s.logger.Debug("vecstore: added chunk",
		"id", id,
		"chunk_id", rec.ChunkID,
		"chars", len(text),
	)
	return id, nil
}

// Search embeds query and returns up to k records ordered by ascending
// Euclidean distance. An empty store returns nil immediately without
// touching the embedder. Identifiers among the k nearest rows that have no
// record in the map are skipped.
func (s *Store) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("vecstore: k must be positive, got %d", k)
	}

	s.mu.Lock()
	empty := len(s.records) == 0
	s.mu.Unlock()
	if empty {
		return nil, nil
	}

	vec, err := s.emb.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vecstore: embed query: %w", err)
	}
	if len(vec) != s.dims {
		return nil, fmt.Errorf("vecstore: query embedding has %d dimensions, store expects %d", len(vec), s.dims)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	type scored struct {
		id   int
		dist float64
	}
	candidates := make([]scored, len(s.rows))
	for i, row := range s.rows {
		candidates[i] = scored{id: i, dist: l2Distance(vec, row)}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].id < candidates[j].id
	})

	if k > len(candidates) {
		k = len(candidates)
	}

	hits := make([]Hit, 0, k)
	for _, c := range candidates[:k] {
		rec, ok := s.records[c.id]
		if !ok {
			// Map/index divergence from a past crash window.
			s.logger.Warn("vecstore: search hit has no identifier map entry, skipping", "id", c.id)
			continue
		}
		hits = append(hits, Hit{ID: c.id, Distance: c.dist, Record: rec})
	}
	return hits, nil
}

// Len returns the number of identifier map entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Rows returns the number of vector rows in the index.
func (s *Store) Rows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Dims returns the fixed vector dimensionality of this store instance.
func (s *Store) Dims() int {
	return s.dims
}

// commitLocked writes the index artifact and then the identifier map
// document. The two writes are the documented crash window: neither file is
// written atomically and no marker spans them. Must be called with s.mu held.
func (s *Store) commitLocked() error {
	if err := os.WriteFile(s.indexPath, encodeIndex(s.dims, s.rows), 0o644); err != nil {
		return fmt.Errorf("vecstore: write index artifact: %w", err)
	}
	mapData, err := encodeRecords(s.records)
	if err != nil {
		return fmt.Errorf("vecstore: encode identifier map: %w", err)
	}
	if err := os.WriteFile(s.mapPath, mapData, 0o644); err != nil {
		return fmt.Errorf("vecstore: write identifier map: %w", err)
	}
	return nil
}

// archiveChunkLocked writes the chunk text to the per-chunk archive file.
// Best-effort: an archive failure is logged and never propagated, the
// archive is a convenience copy and not part of the search state.
func (s *Store) archiveChunkLocked(rec Record) {
	path := filepath.Join(s.chunkDir, rec.ChunkID+".txt")
	if err := os.WriteFile(path, []byte(rec.Text), 0o644); err != nil {
		s.logger.Warn("vecstore: write chunk archive file", "path", path, "err", err)
	}
}

// l2Distance returns the Euclidean distance between two equal-length
// vectors, accumulating in float64 for precision.
func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
