package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bdobrica/Jeff/internal/jeff/vecstore"
)

// fakeStore satisfies VectorStore and records how the manager drives it.
type fakeStore struct {
	addCalls    int
	addErr      error
	addedChunks []string
	addedMeta   []map[string]string

	searchCalls int
	searchK     int
	hits        []vecstore.Hit
	searchErr   error
}

func (f *fakeStore) AddChunk(_ context.Context, text string, metadata map[string]string) (int, error) {
	f.addCalls++
	if f.addErr != nil {
		return 0, f.addErr
	}
	f.addedChunks = append(f.addedChunks, text)
	f.addedMeta = append(f.addedMeta, metadata)
	return f.addCalls - 1, nil
}

func (f *fakeStore) Search(_ context.Context, _ string, k int) ([]vecstore.Hit, error) {
	f.searchCalls++
	f.searchK = k
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func setupManager(t *testing.T, store VectorStore) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	m, err := NewManager(Config{Dir: dir, Store: store})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m, dir
}

func TestManager_RememberWritesLogAndIndex(t *testing.T) {
	store := &fakeStore{}
	m, dir := setupManager(t, store)

	res, err := m.Remember(context.Background(), "Anna's birthday is March 3rd.", "chat", map[string]string{"topic": "dates"}, true)
	if err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	if res.Status != StatusWritten {
		t.Errorf("Status = %q, want %q", res.Status, StatusWritten)
	}
	if res.Chunks != 1 {
		t.Errorf("Chunks = %d, want 1", res.Chunks)
	}
	if store.addCalls != 1 {
		t.Errorf("store.AddChunk calls = %d, want 1", store.addCalls)
	}

	meta := store.addedMeta[0]
	if meta["source"] != "chat" {
		t.Errorf("chunk metadata source = %q, want %q", meta["source"], "chat")
	}
	if meta["topic"] != "dates" {
		t.Errorf("chunk metadata topic = %q, want %q", meta["topic"], "dates")
	}
	if _, err := time.Parse(time.DateTime, meta["timestamp"]); err != nil {
		t.Errorf("chunk metadata timestamp %q does not parse: %v", meta["timestamp"], err)
	}

	logData, err := os.ReadFile(filepath.Join(dir, logFile))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	backupData, err := os.ReadFile(filepath.Join(dir, backupFile))
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if string(logData) != string(backupData) {
		t.Error("log and backup differ, want byte-identical copies")
	}

	entries, err := decodeLog(logData)
	if err != nil {
		t.Fatalf("decodeLog() on own output error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("log has %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Text != "Anna's birthday is March 3rd." {
		t.Errorf("entry text = %q", e.Text)
	}
	if e.Source != "chat" {
		t.Errorf("entry source = %q, want %q", e.Source, "chat")
	}
	if len(e.Chunks) != 1 || e.Chunks[0].Text != "Anna's birthday is March 3rd." {
		t.Errorf("entry chunks = %+v, want the single chunk back", e.Chunks)
	}
	if e.Metadata["topic"] != "dates" {
		t.Errorf("entry metadata = %v, want caller metadata only", e.Metadata)
	}
	if _, ok := e.Metadata["timestamp"]; ok {
		t.Error("entry metadata contains bookkeeping timestamp, want caller metadata only")
	}
}

func TestManager_RememberSkippedWhenWritesDisabled(t *testing.T) {
	store := &fakeStore{}
	m, dir := setupManager(t, store)
	m.SetWriteMode(false)

	res, err := m.Remember(context.Background(), "should not persist", "chat", nil, true)
	if err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	if res.Status != StatusSkipped {
		t.Errorf("Status = %q, want %q", res.Status, StatusSkipped)
	}
	if store.addCalls != 0 {
		t.Errorf("store.AddChunk calls = %d, want 0", store.addCalls)
	}
	if _, err := os.Stat(filepath.Join(dir, logFile)); !os.IsNotExist(err) {
		t.Errorf("log written while writes disabled, stat err = %v", err)
	}

	m.SetWriteMode(true)
	if !m.WritesEnabled() {
		t.Error("WritesEnabled() = false after SetWriteMode(true)")
	}
	res, err = m.Remember(context.Background(), "persists again", "chat", nil, true)
	if err != nil {
		t.Fatalf("Remember() after re-enable error = %v", err)
	}
	if res.Status != StatusWritten {
		t.Errorf("Status after re-enable = %q, want %q", res.Status, StatusWritten)
	}
}

func TestManager_RememberWriteFalseSkips(t *testing.T) {
	store := &fakeStore{}
	m, dir := setupManager(t, store)

	// The per-call gate skips even though the manager-wide mode is on.
	res, err := m.Remember(context.Background(), "not this one", "chat", nil, false)
	if err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	if res.Status != StatusSkipped {
		t.Errorf("Status = %q, want %q", res.Status, StatusSkipped)
	}
	if store.addCalls != 0 {
		t.Errorf("store.AddChunk calls = %d, want 0", store.addCalls)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
	if _, err := os.Stat(filepath.Join(dir, logFile)); !os.IsNotExist(err) {
		t.Errorf("log written despite write=false, stat err = %v", err)
	}
}

func TestManager_RememberIndexFailureKeepsLogClean(t *testing.T) {
	store := &fakeStore{addErr: errors.New("embedding backend down")}
	m, dir := setupManager(t, store)

	if _, err := m.Remember(context.Background(), "doomed entry", "chat", nil, true); err == nil {
		t.Fatal("Remember() expected error, got nil")
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after failed index write", m.Len())
	}
	if _, err := os.Stat(filepath.Join(dir, logFile)); !os.IsNotExist(err) {
		t.Errorf("log written despite index failure, stat err = %v", err)
	}
}

func TestManager_MultiChunkEntry(t *testing.T) {
	store := &fakeStore{}
	dir := t.TempDir()
	m, err := NewManager(Config{Dir: dir, Store: store, MaxChunkChars: 40})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	const text = "Jeff remembers birthdays. Jeff does not forget anniversaries."
	res, err := m.Remember(context.Background(), text, "chat", nil, true)
	if err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	if res.Chunks != 2 {
		t.Fatalf("Chunks = %d, want 2", res.Chunks)
	}

	want := []string{"Jeff remembers birthdays.", "Jeff does not forget anniversaries."}
	for i, w := range want {
		if store.addedChunks[i] != w {
			t.Errorf("indexed chunk %d = %q, want %q", i, store.addedChunks[i], w)
		}
	}

	latest := m.Latest(1)
	if len(latest) != 1 {
		t.Fatalf("Latest(1) returned %d entries, want 1", len(latest))
	}
	e := latest[0]
	if e.Text != text {
		t.Errorf("entry text = %q, want the full original text", e.Text)
	}
	if len(e.Chunks) != 2 || e.Chunks[0].Text != want[0] || e.Chunks[1].Text != want[1] {
		t.Errorf("entry chunks = %+v, want both chunk records in order", e.Chunks)
	}
}

func TestManager_RememberEmptyTextLogsZeroChunks(t *testing.T) {
	store := &fakeStore{}
	m, _ := setupManager(t, store)

	res, err := m.Remember(context.Background(), "   ", "note", nil, true)
	if err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	if res.Status != StatusWritten || res.Chunks != 0 {
		t.Errorf("Result = %+v, want written with 0 chunks", res)
	}
	if store.addCalls != 0 {
		t.Errorf("store.AddChunk calls = %d, want 0", store.addCalls)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1 entry with zero chunks", m.Len())
	}
}

func TestManager_SearchSemanticFirst(t *testing.T) {
	store := &fakeStore{hits: []vecstore.Hit{
		{ID: 0, Distance: 0.25, Record: vecstore.Record{
			ChunkID:  "chunk_1",
			Text:     "Anna's birthday is March 3rd.",
			Metadata: map[string]string{"source": "chat", "timestamp": "2026-01-02 10:00:00"},
		}},
	}}
	m, _ := setupManager(t, store)

	hits, err := m.Search(context.Background(), "when is Anna's birthday", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("Search() returned %d hits, want 1", len(hits))
	}
	h := hits[0]
	if h.Keyword {
		t.Error("semantic hit flagged as keyword")
	}
	if h.Source != "chat" {
		t.Errorf("hit source = %q, want %q", h.Source, "chat")
	}
	if h.Distance != 0.25 {
		t.Errorf("hit distance = %f, want 0.25", h.Distance)
	}
	if store.searchK != 3 {
		t.Errorf("store.Search k = %d, want 3", store.searchK)
	}
}

func TestManager_SearchKeywordFallback(t *testing.T) {
	store := &fakeStore{} // semantic search returns nothing
	m, _ := setupManager(t, store)
	ctx := context.Background()

	for _, text := range []string{
		"The garage code is 4312.",
		"Anna prefers green tea.",
		"The GARAGE door sticks in winter.",
	} {
		if _, err := m.Remember(ctx, text, "chat", nil, true); err != nil {
			t.Fatalf("Remember(%q) error = %v", text, err)
		}
	}

	hits, err := m.Search(ctx, "garage", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Search() returned %d hits, want 2 keyword matches", len(hits))
	}
	if !hits[0].Keyword || !hits[1].Keyword {
		t.Error("fallback hits not flagged as keyword")
	}
	// Log order, not relevance order.
	if !strings.Contains(hits[0].Text, "code is 4312") {
		t.Errorf("first fallback hit = %q, want the earliest log match", hits[0].Text)
	}

	// The fallback honors k.
	hits, err = m.Search(ctx, "garage", 1)
	if err != nil {
		t.Fatalf("Search(k=1) error = %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("Search(k=1) returned %d hits, want 1", len(hits))
	}
}

func TestManager_SearchPropagatesSemanticError(t *testing.T) {
	store := &fakeStore{searchErr: errors.New("embedding backend down")}
	m, _ := setupManager(t, store)

	if _, err := m.Search(context.Background(), "anything", 3); err == nil {
		t.Fatal("Search() expected error, got nil")
	}
}

func TestManager_SearchDefaultK(t *testing.T) {
	store := &fakeStore{}
	m, _ := setupManager(t, store)

	if _, err := m.Search(context.Background(), "query", 0); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if store.searchK != DefaultSearchK {
		t.Errorf("store.Search k = %d, want %d", store.searchK, DefaultSearchK)
	}
}

func TestManager_Latest(t *testing.T) {
	m, _ := setupManager(t, &fakeStore{})
	ctx := context.Background()

	for _, text := range []string{"first", "second", "third"} {
		if _, err := m.Remember(ctx, text, "chat", nil, true); err != nil {
			t.Fatalf("Remember(%q) error = %v", text, err)
		}
	}

	got := m.Latest(2)
	if len(got) != 2 {
		t.Fatalf("Latest(2) returned %d entries, want 2", len(got))
	}
	if got[0].Text != "second" || got[1].Text != "third" {
		t.Errorf("Latest(2) = [%q, %q], want the last two in log order", got[0].Text, got[1].Text)
	}

	if got := m.Latest(0); got != nil {
		t.Errorf("Latest(0) = %v, want nil", got)
	}
	if got := m.Latest(10); len(got) != 3 {
		t.Errorf("Latest(10) returned %d entries, want all 3", len(got))
	}
}

func TestManager_LogRoundTrip(t *testing.T) {
	store := &fakeStore{}
	dir := t.TempDir()
	m, err := NewManager(Config{Dir: dir, Store: store})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	ctx := context.Background()

	if _, err := m.Remember(ctx, "persisted across restarts", "note", map[string]string{"topic": "infra"}, true); err != nil {
		t.Fatalf("Remember() error = %v", err)
	}

	reloaded, err := NewManager(Config{Dir: dir, Store: store})
	if err != nil {
		t.Fatalf("NewManager() reload error = %v", err)
	}
	if reloaded.Len() != 1 {
		t.Fatalf("Len() after reload = %d, want 1", reloaded.Len())
	}
	e := reloaded.Latest(1)[0]
	if e.Text != "persisted across restarts" {
		t.Errorf("reloaded entry text = %q", e.Text)
	}
	if e.Metadata["topic"] != "infra" {
		t.Errorf("reloaded entry metadata = %v", e.Metadata)
	}
}

func TestManager_CorruptLogStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, logFile), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt log: %v", err)
	}

	m, err := NewManager(Config{Dir: dir, Store: &fakeStore{}})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0 for corrupt log", m.Len())
	}
}

func TestManager_SchemaViolationStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	// Valid JSON, wrong shape: timestamp must be a string.
	bad := `[{"timestamp": 5, "text": "x", "source": "chat", "chunks": []}]`
	if err := os.WriteFile(filepath.Join(dir, logFile), []byte(bad), 0o644); err != nil {
		t.Fatalf("write invalid log: %v", err)
	}

	m, err := NewManager(Config{Dir: dir, Store: &fakeStore{}})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0 for schema-violating log", m.Len())
	}
}
