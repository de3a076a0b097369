package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bdobrica/Jeff/internal/jeff/memory"
)

type fakeMemory struct {
	texts   []string
	sources []string
	err     error
	skipAll bool
}

func (f *fakeMemory) Remember(_ context.Context, text, source string, _ map[string]string, _ bool) (memory.Result, error) {
	if f.err != nil {
		return memory.Result{}, f.err
	}
	if f.skipAll {
		return memory.Result{Status: memory.StatusSkipped}, nil
	}
	f.texts = append(f.texts, text)
	f.sources = append(f.sources, source)
	return memory.Result{Status: memory.StatusWritten, Chunks: 1}, nil
}

const exportHTML = `<html>
<head><title>ChatGPT export</title><style>.msg { color: red }</style></head>
<body>
<nav><div>New chat</div><div>History with plenty of text</div></nav>
<div class="page">
  <div class="msg">The quarterly report is due Friday, and Anna owns the draft.</div>
  <div class="msg">We agreed to move the team offsite to the second week of October.</div>
  <div>ChatGPT</div>
  <div>hey</div>
  <div>ChatGPT said hi</div>
  <div><script>var tracking = true;</script>Remember the VPN config lives in the shared vault.</div>
  <div>zero&#8203;width&#8203;joiners should vanish entirely</div>
</div>
</body>
</html>`

func setupImporter(t *testing.T, mem Memory) *Importer {
	t.Helper()
	imp, err := New(Config{Memory: mem})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return imp
}

func TestImporter_Import(t *testing.T) {
	mem := &fakeMemory{}
	imp := setupImporter(t, mem)

	report, err := imp.Import(context.Background(), []byte(exportHTML))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if report.Blocks != 4 {
		t.Errorf("Blocks = %d, want 4 surviving blocks", report.Blocks)
	}
	if report.Dropped == 0 {
		t.Error("Dropped = 0, want the boilerplate blocks counted")
	}
	if report.Written != len(mem.texts) {
		t.Errorf("Written = %d, want %d", report.Written, len(mem.texts))
	}

	joined := strings.Join(mem.texts, "\n")
	for _, want := range []string{
		"quarterly report",
		"team offsite",
		"VPN config",
		"zerowidthjoiners should vanish entirely",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("imported text missing %q:\n%s", want, joined)
		}
	}
	for _, junk := range []string{"New chat", "var tracking", "ChatGPT said hi", "color: red"} {
		if strings.Contains(joined, junk) {
			t.Errorf("imported text contains junk %q", junk)
		}
	}
	for _, source := range mem.sources {
		if source != ImportSource {
			t.Errorf("entry source = %q, want %q", source, ImportSource)
		}
	}
}

func TestImporter_WritesDisabledCountsSkips(t *testing.T) {
	mem := &fakeMemory{skipAll: true}
	imp := setupImporter(t, mem)

	report, err := imp.Import(context.Background(), []byte(exportHTML))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if report.Written != 0 {
		t.Errorf("Written = %d, want 0", report.Written)
	}
	if report.Skipped != report.Chunks {
		t.Errorf("Skipped = %d, want every chunk (%d)", report.Skipped, report.Chunks)
	}
}

func TestImporter_WriteFailureAborts(t *testing.T) {
	mem := &fakeMemory{err: errors.New("embedding backend down")}
	imp := setupImporter(t, mem)

	if _, err := imp.Import(context.Background(), []byte(exportHTML)); err == nil {
		t.Fatal("Import() expected error, got nil")
	}
}

func TestImporter_EmptyExport(t *testing.T) {
	mem := &fakeMemory{}
	imp := setupImporter(t, mem)

	report, err := imp.Import(context.Background(), []byte("<html><body></body></html>"))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if report.Blocks != 0 || report.Written != 0 {
		t.Errorf("report = %+v, want all zero", report)
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "whitespace collapse", in: "  a\n\tb  c ", want: "a b c"},
		{name: "boilerplate word", in: "Regenerate", want: ""},
		{name: "boilerplate case-insensitive", in: "SHARE", want: ""},
		{name: "boilerplate inside text kept", in: "please share the doc widely", want: "please share the doc widely"},
		{name: "zero width stripped", in: "a\u200bb\u200cc\u200dd", want: "abcd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanText(tt.in); got != tt.want {
				t.Errorf("cleanText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestKeepBlock(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{name: "empty", in: "", want: false},
		{name: "short fragment", in: "hey", want: false},
		{name: "short chrome label", in: "ChatGPT 4o", want: false},
		{name: "long text with ChatGPT", in: "ChatGPT suggested three fixes for the race condition.", want: true},
		{name: "normal text", in: "Anna owns the draft.", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := keepBlock(tt.in); got != tt.want {
				t.Errorf("keepBlock(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
