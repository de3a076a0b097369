// Package spend enforces a hard daily USD cap on metered model calls.
//
// Every embedding and chat completion reports its token usage here. The
// guard converts tokens to an approximate dollar cost, accumulates the total
// for the current calendar day in a SQLite ledger, and aborts the calling
// operation once the cap is crossed. Prices are throttle estimates, not
// billing precision.
package spend

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultDailyLimitUSD is the hard daily spend cap applied when no explicit
// limit is configured.
const DefaultDailyLimitUSD = 2.00

// ErrBudgetExceeded is returned once the day's accumulated spend crosses the
// configured cap. Callers should abort the metered operation and surface the
// condition; nothing that depends on the blocked call may be persisted.
var ErrBudgetExceeded = errors.New("spend: daily budget exceeded")

// prices maps a model name to its approximate USD cost per single token.
// Chat models use the "<model>_in" / "<model>_out" suffix convention for
// prompt and completion tokens. Unknown models price at zero (local models
// cost nothing; new remote models should be added here).
var prices = map[string]float64{
	// OpenAI embeddings
	"text-embedding-3-small": 0.02 / 1_000_000,
	"text-embedding-3-large": 0.13 / 1_000_000,

	// OpenAI chat models
	"gpt-4.1_in":      2.00 / 1_000_000,
	"gpt-4.1_out":     8.00 / 1_000_000,
	"gpt-4o_in":       2.50 / 1_000_000,
	"gpt-4o_out":      10.00 / 1_000_000,
	"gpt-4o-mini_in":  0.15 / 1_000_000,
	"gpt-4o-mini_out": 0.60 / 1_000_000,

	// Gemini 1.5
	"gemini-1.5-pro_in":    0.50 / 1_000_000,
	"gemini-1.5-pro_out":   1.50 / 1_000_000,
	"gemini-1.5-flash_in":  0.075 / 1_000_000,
	"gemini-1.5-flash_out": 0.30 / 1_000_000,

	// Gemini embeddings
	"text-embedding-004": 0.01 / 1_000_000,
}

// Price returns the approximate USD cost per token for model, or 0 when the
// model is not in the table.
func Price(model string) float64 {
	return prices[model]
}

// Guard tracks the running spend for the current day and enforces the cap.
//
// The running total is cached in memory and mirrored to the ledger on every
// record, so totals survive restarts. Day keys use the local calendar date.
// Guard is safe for concurrent use.
type Guard struct {
	mu     sync.Mutex
	limit  float64
	ledger *Ledger

	day   string  // local date key the cached total belongs to
	total float64 // accumulated USD for day
}

// NewGuard returns a Guard with the given daily cap, restoring today's
// running total from the ledger. limitUSD ≤ 0 selects DefaultDailyLimitUSD.
// A nil ledger keeps totals in memory only (used by tests).
func NewGuard(limitUSD float64, ledger *Ledger) (*Guard, error) {
	if limitUSD <= 0 {
		limitUSD = DefaultDailyLimitUSD
	}
	g := &Guard{
		limit:  limitUSD,
		ledger: ledger,
		day:    todayKey(),
	}
	if ledger != nil {
		total, err := ledger.DayTotal(g.day)
		if err != nil {
			return nil, fmt.Errorf("spend: restore today's total: %w", err)
		}
		g.total = total
	}
	return g, nil
}

// Limit returns the configured daily cap in USD.
func (g *Guard) Limit() float64 {
	return g.limit
}

// Check reports whether another metered call may be made right now.
// It returns ErrBudgetExceeded (wrapped with the amounts) once today's total
// has reached the cap; it never consumes budget itself.
func (g *Guard) Check(model string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollDayLocked()
	if g.total >= g.limit {
		return fmt.Errorf("%w: $%.2f of $%.2f spent today (model %s blocked)",
			ErrBudgetExceeded, g.total, g.limit, model)
	}
	return nil
}

// RecordEmbedding adds the cost of an embedding call to today's total and
// returns that cost. The cost is recorded even when it crosses the cap; in
// that case ErrBudgetExceeded is returned as well and the caller must abort
// the operation that triggered the call.
func (g *Guard) RecordEmbedding(model string, tokens int) (float64, error) {
	if tokens <= 0 {
		return 0, nil
	}
	cost := float64(tokens) * Price(model)
	return cost, g.apply(model, tokens, cost)
}

// RecordChat adds the cost of a chat completion (prompt + completion tokens)
// to today's total and returns that cost. Semantics match RecordEmbedding.
func (g *Guard) RecordChat(model string, tokensIn, tokensOut int) (float64, error) {
	if tokensIn < 0 {
		tokensIn = 0
	}
	if tokensOut < 0 {
		tokensOut = 0
	}
	cost := float64(tokensIn)*Price(model+"_in") + float64(tokensOut)*Price(model+"_out")
	return cost, g.apply(model, tokensIn+tokensOut, cost)
}

// Today returns the local date key and the accumulated USD total for it.
func (g *Guard) Today() (day string, totalUSD float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollDayLocked()
	return g.day, g.total
}

// Breakdown returns today's per-model spend rows from the ledger, or nil
// when the guard runs without one.
func (g *Guard) Breakdown() ([]ModelSpend, error) {
	if g.ledger == nil {
		return nil, nil
	}
	day, _ := g.Today()
	return g.ledger.DayBreakdown(day)
}

// apply adds cost to today's total, mirrors it to the ledger, and enforces
// the cap. The new total is kept even when the cap is crossed so that later
// Check calls keep failing until the day rolls over.
func (g *Guard) apply(model string, tokens int, cost float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollDayLocked()
	g.total += cost

	if g.ledger != nil {
		if err := g.ledger.Add(g.day, model, tokens, cost); err != nil {
			return fmt.Errorf("spend: persist ledger entry: %w", err)
		}
	}

	if g.total > g.limit {
		return fmt.Errorf("%w: $%.2f of $%.2f spent today",
			ErrBudgetExceeded, g.total, g.limit)
	}
	return nil
}

// rollDayLocked resets the cached total when the local calendar day has
// changed since the last call. Must be called with g.mu held.
func (g *Guard) rollDayLocked() {
	today := todayKey()
	if today == g.day {
		return
	}
	g.day = today
	g.total = 0
	if g.ledger != nil {
		if total, err := g.ledger.DayTotal(today); err == nil {
			g.total = total
		}
	}
}

// todayKey returns the local calendar date in YYYY-MM-DD form.
func todayKey() string {
	return time.Now().Format(time.DateOnly)
}
