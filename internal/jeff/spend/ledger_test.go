package spend

import (
	"math"
	"path/filepath"
	"testing"
)

// setupLedger creates a Ledger backed by a temp-dir database and closes it
// when the test ends.
func setupLedger(t *testing.T) *Ledger {
	t.Helper()

	l, err := OpenLedger(filepath.Join(t.TempDir(), "spend.db"))
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedger_EmptyDayTotalsZero(t *testing.T) {
	l := setupLedger(t)

	total, err := l.DayTotal("2026-01-01")
	if err != nil {
		t.Fatalf("DayTotal: %v", err)
	}
	if total != 0 {
		t.Errorf("total = %v, want 0", total)
	}
}

func TestLedger_AddAccumulatesPerModel(t *testing.T) {
	l := setupLedger(t)
	const day = "2026-01-02"

	if err := l.Add(day, "gpt-4o-mini", 1000, 0.001); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := l.Add(day, "gpt-4o-mini", 500, 0.002); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := l.Add(day, "text-embedding-3-small", 2000, 0.00004); err != nil {
		t.Fatalf("Add: %v", err)
	}

	total, err := l.DayTotal(day)
	if err != nil {
		t.Fatalf("DayTotal: %v", err)
	}
	if want := 0.001 + 0.002 + 0.00004; math.Abs(total-want) > 1e-9 {
		t.Errorf("total = %v, want %v", total, want)
	}

	rows, err := l.DayBreakdown(day)
	if err != nil {
		t.Fatalf("DayBreakdown: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 breakdown rows, got %d", len(rows))
	}
	// Most expensive model first.
	if rows[0].Model != "gpt-4o-mini" || rows[0].Tokens != 1500 {
		t.Errorf("rows[0] = %+v", rows[0])
	}
	if rows[1].Model != "text-embedding-3-small" || rows[1].Tokens != 2000 {
		t.Errorf("rows[1] = %+v", rows[1])
	}
}

func TestLedger_DaysAreIndependent(t *testing.T) {
	l := setupLedger(t)

	if err := l.Add("2026-01-03", "gpt-4o-mini", 100, 0.5); err != nil {
		t.Fatalf("Add: %v", err)
	}
	total, err := l.DayTotal("2026-01-04")
	if err != nil {
		t.Fatalf("DayTotal: %v", err)
	}
	if total != 0 {
		t.Errorf("other day's total = %v, want 0", total)
	}
}

func TestGuard_RestoresTotalFromLedger(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "spend.db")

	l1, err := OpenLedger(dbPath)
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	g1, err := NewGuard(2.00, l1)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	if _, err := g1.RecordEmbedding("text-embedding-3-small", 500_000); err != nil {
		t.Fatalf("RecordEmbedding: %v", err)
	}
	if err := l1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A fresh guard over the same database resumes the day's running total.
	l2, err := OpenLedger(dbPath)
	if err != nil {
		t.Fatalf("reopen ledger: %v", err)
	}
	defer l2.Close()

	g2, err := NewGuard(2.00, l2)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	if _, total := g2.Today(); math.Abs(total-0.01) > 1e-9 {
		t.Errorf("restored total = %v, want 0.01", total)
	}
}

func TestLedger_MigrationsAreIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "spend.db")

	l1, err := OpenLedger(dbPath)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	l1.Close()

	l2, err := OpenLedger(dbPath)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	l2.Close()
}
