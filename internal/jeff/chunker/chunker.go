// Package chunker splits free-form text into sentence-respecting,
// bounded-length segments. Chunks are the atomic unit the rest of the
// memory engine embeds, indexes, and retrieves.
//
// The splitter is a heuristic, not a grammar: it treats ".", "?" and "!"
// followed by whitespace as sentence boundaries, so abbreviations, decimals
// and ellipses may under- or over-split. That approximation is accepted:
// chunk boundaries only need to be stable and sentence-shaped, not perfect.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxChars is the default upper bound on chunk length, measured in
// characters (runes, not bytes).
const DefaultMaxChars = 600

// Normalize collapses every whitespace run in text (spaces, tabs, newlines)
// into a single space and trims both ends. Normalizing is idempotent.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Chunk splits text into chunks of at most maxChars characters without
// breaking inside a sentence. maxChars ≤ 0 selects DefaultMaxChars.
//
// Behaviour:
//   - The input is normalized first (see Normalize). Empty or
//     whitespace-only input yields nil, not an error.
//   - Sentences are greedily grouped: a sentence is appended to the current
//     chunk when the chunk, a single separating space, and the sentence
//     together still fit within maxChars; otherwise the chunk is closed and
//     the sentence starts a new one.
//   - A single sentence longer than maxChars becomes one oversized chunk.
//     Overflow is preferred over splitting mid-sentence.
//   - No chunk in the output is empty or whitespace-only.
//
// Joining the returned chunks with single spaces reconstructs the normalized
// input exactly.
func Chunk(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}

	var chunks []string
	var buf strings.Builder
	bufLen := 0 // rune count of buf

	for _, sentence := range splitSentences(normalized) {
		sentenceLen := utf8.RuneCountInString(sentence)

		if bufLen > 0 && bufLen+sentenceLen+1 > maxChars {
			chunks = append(chunks, buf.String())
			buf.Reset()
			bufLen = 0
		}
		if bufLen > 0 {
			buf.WriteByte(' ')
			bufLen++
		}
		buf.WriteString(sentence)
		bufLen += sentenceLen
	}

	if bufLen > 0 {
		chunks = append(chunks, buf.String())
	}
	return chunks
}

// splitSentences splits normalized text at every space that directly follows
// sentence-terminal punctuation, keeping the punctuation on the preceding
// sentence. The input must already be normalized (single spaces only).
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 1; i < len(text); i++ {
		if text[i] == ' ' && isTerminal(text[i-1]) {
			sentences = append(sentences, text[start:i])
			start = i + 1
		}
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}

// isTerminal reports whether b ends a sentence. Safe on UTF-8 input: the
// bytes checked here never occur inside a multi-byte rune.
func isTerminal(b byte) bool {
	return b == '.' || b == '?' || b == '!'
}
