package spend

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Ledger is the durable daily-spend record. One row per (day, model) pair,
// accumulated in place, so restarts resume the day's total instead of
// resetting the cap.
type Ledger struct {
	db *sql.DB
}

// ModelSpend is one per-model row of a day's spend.
type ModelSpend struct {
	Model  string
	Tokens int
	USD    float64
}

// OpenLedger opens (or creates) the spend database at dbPath and applies any
// pending migrations.
func OpenLedger(dbPath string) (*Ledger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("spend: open ledger database: %w", err)
	}

	// SQLite permits one writer at a time. Keep a single shared connection so
	// concurrent callers are serialized by database/sql instead of fighting
	// for write locks across multiple underlying connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("spend: set pragma: %w", err)
		}
	}

	l := &Ledger{db: db}
	if err := l.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("spend: run migrations: %w", err)
	}
	return l, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Add accumulates tokens and usd onto the (day, model) row, creating it on
// first use.
func (l *Ledger) Add(day, model string, tokens int, usd float64) error {
	_, err := l.db.Exec(`
		INSERT INTO spend_entries (day, model, tokens, usd)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (day, model) DO UPDATE SET
			tokens = tokens + excluded.tokens,
			usd    = usd + excluded.usd
	`, day, model, tokens, usd)
	if err != nil {
		return fmt.Errorf("spend: add entry for %s/%s: %w", day, model, err)
	}
	return nil
}

// DayTotal returns the summed USD spend recorded for day. A day with no
// entries totals zero.
func (l *Ledger) DayTotal(day string) (float64, error) {
	var total float64
	err := l.db.QueryRow(
		"SELECT COALESCE(SUM(usd), 0) FROM spend_entries WHERE day = ?", day,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("spend: day total for %s: %w", day, err)
	}
	return total, nil
}

// DayBreakdown returns the per-model spend rows for day, most expensive first.
func (l *Ledger) DayBreakdown(day string) ([]ModelSpend, error) {
	rows, err := l.db.Query(
		"SELECT model, tokens, usd FROM spend_entries WHERE day = ? ORDER BY usd DESC, model", day,
	)
	if err != nil {
		return nil, fmt.Errorf("spend: day breakdown for %s: %w", day, err)
	}
	defer rows.Close()

	var out []ModelSpend
	for rows.Next() {
		var ms ModelSpend
		if err := rows.Scan(&ms.Model, &ms.Tokens, &ms.USD); err != nil {
			return nil, fmt.Errorf("spend: scan breakdown row: %w", err)
		}
		out = append(out, ms)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("spend: iterate breakdown rows: %w", err)
	}
	return out, nil
}

// runMigrations applies all pending migration files in version order.
func (l *Ledger) runMigrations() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			description TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var currentVersion int
	err = l.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current schema version: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		// Filenames follow "0001_description.sql".
		parts := strings.SplitN(entry.Name(), "_", 2)
		if len(parts) < 2 {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(parts[0], "%d", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}
		description := strings.TrimSuffix(parts[1], ".sql")

		content, err := migrationsFS.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		tx, err := l.db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", version, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
			version, time.Now(), description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", version, err)
		}

		slog.Info("spend: applied migration", "version", fmt.Sprintf("%04d", version), "description", description)
	}
	return nil
}
