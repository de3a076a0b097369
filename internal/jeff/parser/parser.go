// Package parser converts uploaded files into clean plain text for memory
// ingestion. Each format-specific reader returns whitespace-normalized text;
// chunking and embedding stay with the memory manager.
package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"github.com/bdobrica/Jeff/internal/jeff/chunker"
)

// ErrUnsupportedFormat is returned for file types the engine cannot turn
// into text. Image OCR and .docx extraction need system tooling beyond a
// pure-Go build and are deliberately not attempted.
var ErrUnsupportedFormat = errors.New("parser: unsupported file format")

// supportedExtensions, for error messages and command help.
var supportedExtensions = []string{".txt", ".md", ".csv", ".pdf", ".xlsx"}

// Engine is the single entry point for all file → text conversion.
type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Supported lists the file extensions Parse accepts.
func Supported() []string {
	out := make([]string, len(supportedExtensions))
	copy(out, supportedExtensions)
	return out
}

// Parse detects the file type from the filename extension and returns the
// file's plain text, whitespace-normalized.
func (e *Engine) Parse(data []byte, filename string) (string, error) {
	name := strings.ToLower(filename)
	e.logger.Debug("parser: parse file", "name", filename, "bytes", len(data))

	switch {
	case strings.HasSuffix(name, ".txt"):
		return e.parseText(data), nil
	case strings.HasSuffix(name, ".md"):
		return e.parseMarkdown(data)
	case strings.HasSuffix(name, ".csv"):
		return e.parseCSV(data)
	case strings.HasSuffix(name, ".pdf"):
		return e.parsePDF(data)
	case strings.HasSuffix(name, ".xlsx"):
		return e.parseWorkbook(data)
	}
	return "", fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedFormat, filename, strings.Join(supportedExtensions, ", "))
}

// parseText decodes the bytes as UTF-8, dropping invalid sequences.
func (e *Engine) parseText(data []byte) string {
	return clean(strings.ToValidUTF8(string(data), ""))
}

// parseMarkdown parses the document into an AST and keeps only the text:
// headings, paragraphs and list items lose their markers, fenced code
// blocks keep their content without the fences.
func (e *Engine) parseMarkdown(data []byte) (string, error) {
	md := goldmark.New()
	doc := md.Parser().Parse(gmtext.NewReader(data))

	var parts []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if txt := blockText(node, data); txt != "" {
			parts = append(parts, txt)
		}
	}
	return clean(strings.Join(parts, "\n")), nil
}

func blockText(node ast.Node, source []byte) string {
	switch n := node.(type) {
	case *ast.FencedCodeBlock:
		return codeLines(n.Lines(), source)
	case *ast.CodeBlock:
		return codeLines(n.Lines(), source)
	default:
		return string(node.Text(source))
	}
}

func codeLines(lines *gmtext.Segments, source []byte) string {
	var sb strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return sb.String()
}

// parseCSV joins cells with single spaces and rows with newlines before
// normalization. Ragged rows are accepted.
func (e *Engine) parseCSV(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parser: read csv: %w", err)
	}
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = strings.Join(row, " ")
	}
	return clean(strings.Join(lines, "\n")), nil
}

// parsePDF extracts the plain text stream of the document.
func (e *Engine) parsePDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parser: open pdf: %w", err)
	}
	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("parser: extract pdf text: %w", err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, textReader); err != nil {
		return "", fmt.Errorf("parser: read pdf text: %w", err)
	}
	return clean(sb.String()), nil
}

// parseWorkbook flattens every sheet row by row, cells joined with single
// spaces.
func (e *Engine) parseWorkbook(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parser: open workbook: %w", err)
	}
	defer f.Close()

	var lines []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("parser: read sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			lines = append(lines, strings.Join(row, " "))
		}
	}
	return clean(strings.Join(lines, "\n")), nil
}

// clean collapses all whitespace runs to single spaces, matching what the
// chunker expects as input.
func clean(text string) string {
	return chunker.Normalize(text)
}
