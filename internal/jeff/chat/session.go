// Package chat runs Jeff's interactive REPL. Plain lines go to the routed
// brain; lines starting with "/" are session commands. The session is the
// only writer of chat turns to long-term memory, so a turn is persisted
// exactly once, after the brain produced its reply.
package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/bdobrica/Jeff/common/trace"
	"github.com/bdobrica/Jeff/internal/jeff/brain"
	"github.com/bdobrica/Jeff/internal/jeff/memory"
	"github.com/bdobrica/Jeff/internal/jeff/router"
	"github.com/bdobrica/Jeff/internal/jeff/spend"
)

const (
	// DefaultHistory bounds the in-session turn ring.
	DefaultHistory = 20

	// DefaultRecallK is how many hits /recall shows.
	DefaultRecallK = 5

	latestPreviewRunes = 120
)

var errQuit = errors.New("chat: quit")

// ModelRouter selects brains for the session.
type ModelRouter interface {
	Route(model string) (brain.Brain, error)
	Auto() brain.Brain
	Models() []string
}

var _ ModelRouter = (*router.Router)(nil)

// Memory is the slice of the memory engine the session uses.
type Memory interface {
	Remember(ctx context.Context, text, source string, metadata map[string]string, write bool) (memory.Result, error)
	Search(ctx context.Context, query string, k int) ([]memory.Hit, error)
	Latest(n int) []memory.MemoryEntry
	SetWriteMode(enabled bool)
	WritesEnabled() bool
}

var _ Memory = (*memory.Manager)(nil)

// SpendReporter exposes today's totals for the /spend command.
type SpendReporter interface {
	Today() (day string, totalUSD float64)
	Limit() float64
	Breakdown() ([]spend.ModelSpend, error)
}

var _ SpendReporter = (*spend.Guard)(nil)

// Turn is one utterance in the session, either side.
type Turn struct {
	Role  string // "user" or "jeff"
	Text  string
	Model string
	At    time.Time
}

// Config wires a Session.
type Config struct {
	// Router picks brains. Required.
	Router ModelRouter

	// Memory backs /recall, /latest, /write and turn persistence. Required.
	Memory Memory

	// Spend backs /spend. Optional.
	Spend SpendReporter

	// Model is the initial selection; empty or "auto" picks automatically.
	Model string

	// History bounds the turn ring; RecallK sizes /recall. Zero values
	// select the defaults.
	History int
	RecallK int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Session is one interactive conversation. It is not safe for concurrent
// use; the REPL drives it from a single goroutine.
type Session struct {
	id      string
	router  ModelRouter
	memory  Memory
	spend   SpendReporter
	logger  *slog.Logger
	history int
	recallK int

	brain    brain.Brain
	turns    []Turn
	commands *CommandRouter
}

// NewSession creates a session and resolves the initial brain.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Router == nil {
		return nil, fmt.Errorf("chat: router is required")
	}
	if cfg.Memory == nil {
		return nil, fmt.Errorf("chat: memory is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	history := cfg.History
	if history <= 0 {
		history = DefaultHistory
	}
	recallK := cfg.RecallK
	if recallK <= 0 {
		recallK = DefaultRecallK
	}

	s := &Session{
		id:      uuid.NewString(),
		router:  cfg.Router,
		memory:  cfg.Memory,
		spend:   cfg.Spend,
		logger:  logger,
		history: history,
		recallK: recallK,
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" || strings.EqualFold(model, "auto") {
		s.brain = cfg.Router.Auto()
	} else {
		b, err := cfg.Router.Route(model)
		if err != nil {
			return nil, err
		}
		s.brain = b
	}

	s.commands = NewCommandRouter("/")
	s.commands.Register("help", s.cmdHelp)
	s.commands.Register("model", s.cmdModel)
	s.commands.Register("auto", s.cmdAuto)
	s.commands.Register("write", s.cmdWrite)
	s.commands.Register("recall", s.cmdRecall)
	s.commands.Register("latest", s.cmdLatest)
	s.commands.Register("spend", s.cmdSpend)
	s.commands.Register("quit", s.cmdQuit)
	s.commands.Register("exit", s.cmdQuit)

	logger.Info("chat: session started", "session", s.id, "model", s.brain.Name())
	return s, nil
}

// ID returns the session's uuid.
func (s *Session) ID() string {
	return s.id
}

// Model returns the name of the currently selected brain.
func (s *Session) Model() string {
	return s.brain.Name()
}

// History returns a copy of the retained turns, oldest first.
func (s *Session) History() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Run reads lines from in until EOF or /quit, writing replies to out.
func (s *Session) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Jeff session %s\nmodel %s, memory writes %s. Type /help for commands.\n",
		s.id, s.brain.Name(), onOff(s.memory.WritesEnabled()))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			reply, err := s.commands.Handle(ctx, line)
			switch {
			case errors.Is(err, errQuit):
				fmt.Fprintln(out, "bye")
				return nil
			case err != nil:
				fmt.Fprintf(out, "error: %v\n", err)
			case reply != "":
				fmt.Fprintln(out, reply)
			}
			continue
		}

		// Every turn gets its own trace id so its log lines correlate.
		turnCtx := trace.WithTraceID(ctx, trace.GenerateID())
		reply, err := s.Turn(turnCtx, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "Jeff (%s): %s\n", s.brain.Name(), reply)
	}
	return scanner.Err()
}

// Turn sends one user line to the current brain and, when memory writes are
// enabled, persists both sides of the exchange. A failed reply persists
// nothing; a failed persistence keeps the reply and logs a warning.
func (s *Session) Turn(ctx context.Context, text string) (string, error) {
	reply, err := s.brain.ProduceReply(ctx, text)
	if err != nil {
		return "", err
	}

	model := s.brain.Name()
	s.record("user", model, text)
	s.record("jeff", model, reply)

	if s.memory.WritesEnabled() {
		logger := s.turnLogger(ctx)
		meta := map[string]string{"session": s.id}
		if _, err := s.memory.Remember(ctx, text, "chat:"+model, meta, true); err != nil {
			logger.Warn("chat: persist user line failed", "session", s.id, "error", err)
		}
		if _, err := s.memory.Remember(ctx, reply, "reply:"+model, meta, true); err != nil {
			logger.Warn("chat: persist reply failed", "session", s.id, "error", err)
		}
	}
	return reply, nil
}

// turnLogger attaches the turn's trace id when the context carries one.
func (s *Session) turnLogger(ctx context.Context) *slog.Logger {
	if id := trace.FromContext(ctx); id != "" {
		return s.logger.With("trace_id", id)
	}
	return s.logger
}

func (s *Session) record(role, model, text string) {
	s.turns = append(s.turns, Turn{Role: role, Text: text, Model: model, At: time.Now()})
	if len(s.turns) > s.history {
		s.turns = s.turns[len(s.turns)-s.history:]
	}
}

func (s *Session) cmdHelp(context.Context, *Command) (string, error) {
	return strings.Join([]string{
		"/model <name>   switch to a specific model",
		"/auto           pick a model automatically",
		"/write on|off   toggle persistent memory writes",
		"/recall <query> search long-term memory",
		"/latest [n]     show the most recent memory entries",
		"/spend          show today's spend against the daily cap",
		"/help           this text",
		"/quit           leave the session",
	}, "\n"), nil
}

func (s *Session) cmdModel(_ context.Context, cmd *Command) (string, error) {
	name := cmd.Subcommand
	if name == "" {
		return "", fmt.Errorf("chat: usage: /model <name> (available: %s)",
			strings.Join(s.router.Models(), ", "))
	}
	b, err := s.router.Route(name)
	if err != nil {
		return "", err
	}
	s.brain = b
	return "switched to " + b.Name(), nil
}

func (s *Session) cmdAuto(context.Context, *Command) (string, error) {
	s.brain = s.router.Auto()
	return "auto-selected " + s.brain.Name(), nil
}

func (s *Session) cmdWrite(_ context.Context, cmd *Command) (string, error) {
	switch cmd.Subcommand {
	case "on":
		s.memory.SetWriteMode(true)
	case "off":
		s.memory.SetWriteMode(false)
	case "":
		// report only
	default:
		return "", fmt.Errorf("chat: usage: /write on|off")
	}
	return "memory writes " + onOff(s.memory.WritesEnabled()), nil
}

func (s *Session) cmdRecall(ctx context.Context, cmd *Command) (string, error) {
	query := cmd.Rest()
	if query == "" {
		return "", fmt.Errorf("chat: usage: /recall <query>")
	}
	hits, err := s.memory.Search(ctx, query, s.recallK)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return "no matching memories", nil
	}

	var b strings.Builder
	for i, h := range hits {
		source := h.Source
		if source == "" {
			source = "memory"
		}
		fmt.Fprintf(&b, "%d. %s  [source: %s]", i+1, h.Text, source)
		if h.Keyword {
			b.WriteString("  (keyword match)")
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (s *Session) cmdLatest(_ context.Context, cmd *Command) (string, error) {
	n := 5
	if cmd.Subcommand != "" {
		parsed, err := strconv.Atoi(cmd.Subcommand)
		if err != nil || parsed <= 0 {
			return "", fmt.Errorf("chat: usage: /latest [n]")
		}
		n = parsed
	}
	entries := s.memory.Latest(n)
	if len(entries) == 0 {
		return "memory log is empty", nil
	}

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "- [%s] (%s) %s\n", e.Timestamp, e.Source, preview(e.Text))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (s *Session) cmdSpend(context.Context, *Command) (string, error) {
	if s.spend == nil {
		return "spend tracking is disabled", nil
	}
	day, total := s.spend.Today()
	var b strings.Builder
	fmt.Fprintf(&b, "spent $%.4f of $%.2f today (%s)", total, s.spend.Limit(), day)

	rows, err := s.spend.Breakdown()
	if err != nil {
		s.logger.Warn("chat: spend breakdown failed", "error", err)
		return b.String(), nil
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "\n  %s: $%.4f (%d tokens)", row.Model, row.USD, row.Tokens)
	}
	return b.String(), nil
}

func (s *Session) cmdQuit(context.Context, *Command) (string, error) {
	return "", errQuit
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

// preview truncates text to a single displayable line.
func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= latestPreviewRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:latestPreviewRunes]) + "…"
}
