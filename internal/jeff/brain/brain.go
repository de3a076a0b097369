// Package brain defines the chat backends that produce Jeff's replies and
// the shared plumbing they have in common: the persona prompt, the
// retrieved-memory block, and spend metering.
//
// Three implementations exist, one per provider family. OpenAI talks to the
// chat completions API over a hand-rolled HTTP client, Gemini goes through
// the official SDK, and Local targets an Ollama-style server on localhost
// so Jeff keeps answering with no API key at all.
//
// Brains only read memory (through a ContextProvider); persisting the
// conversation is the chat session's job, so a turn is written exactly once
// no matter which brain produced it.
package brain

import (
	"context"
	"errors"

	"github.com/bdobrica/Jeff/internal/jeff/memory"
	"github.com/bdobrica/Jeff/internal/jeff/spend"
)

// ErrRateLimit is returned when the upstream chat API reports a
// rate-limiting condition. The condition is transient; callers may retry
// after a backoff.
var ErrRateLimit = errors.New("brain: upstream rate limit exceeded")

// Brain produces a reply to one user message.
type Brain interface {
	// ProduceReply generates a reply for text, with retrieved memory
	// injected into the prompt when a ContextProvider is attached.
	ProduceReply(ctx context.Context, text string) (string, error)

	// Name identifies the underlying model, for display and logging.
	Name() string
}

// ContextProvider supplies the retrieved-memory block a brain injects ahead
// of the user message. Failures degrade to an empty block inside the
// provider, so brains treat the result as plain optional text.
type ContextProvider interface {
	BuildContext(ctx context.Context, query string) string
}

var _ ContextProvider = (*memory.ContextBuilder)(nil)

// ChatMeter is the spend-guard hook consulted around every billable chat
// call. Check runs before the request and may veto it. RecordChat runs
// after the reply arrived; its error means the daily cap was crossed by
// this call, which is reported but does not invalidate the reply already
// paid for.
type ChatMeter interface {
	Check(model string) error
	RecordChat(model string, tokensIn, tokensOut int) (float64, error)
}

var _ ChatMeter = (*spend.Guard)(nil)
