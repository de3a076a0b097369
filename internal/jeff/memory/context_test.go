package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeSearcher struct {
	hits []Hit
	err  error
	k    int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, k int) ([]Hit, error) {
	f.k = k
	return f.hits, f.err
}

func TestContextBuilder_FormatsHits(t *testing.T) {
	searcher := &fakeSearcher{hits: []Hit{
		{Text: "Anna's birthday is March 3rd.", Source: "chat"},
		{Text: "The garage code is 4312.", Source: ""},
	}}
	b := NewContextBuilder(ContextConfig{Searcher: searcher})

	got := b.BuildContext(context.Background(), "birthday")
	want := ContextHeading +
		"\n- Anna's birthday is March 3rd.  [source: chat]" +
		"\n- The garage code is 4312.  [source: memory]"
	if got != want {
		t.Errorf("BuildContext() =\n%q\nwant\n%q", got, want)
	}
	if searcher.k != DefaultContextHits {
		t.Errorf("search k = %d, want %d", searcher.k, DefaultContextHits)
	}
}

func TestContextBuilder_EmptyCases(t *testing.T) {
	tests := []struct {
		name     string
		searcher Searcher
	}{
		{name: "nil searcher", searcher: nil},
		{name: "no hits", searcher: &fakeSearcher{}},
		{name: "search error", searcher: &fakeSearcher{err: errors.New("backend down")}},
		{name: "blank hit text", searcher: &fakeSearcher{hits: []Hit{{Text: "   "}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewContextBuilder(ContextConfig{Searcher: tt.searcher})
			if got := b.BuildContext(context.Background(), "query"); got != "" {
				t.Errorf("BuildContext() = %q, want empty", got)
			}
		})
	}
}

func TestContextBuilder_CharBudget(t *testing.T) {
	long := strings.Repeat("x", 300)
	searcher := &fakeSearcher{hits: []Hit{
		{Text: "short fact", Source: "chat"},
		{Text: long, Source: "chat"},
	}}
	budget := len(ContextHeading) + 1 + len("- short fact  [source: chat]")
	b := NewContextBuilder(ContextConfig{Searcher: searcher, MaxChars: budget})

	got := b.BuildContext(context.Background(), "query")
	if !strings.Contains(got, "short fact") {
		t.Errorf("BuildContext() = %q, want the fitting line included", got)
	}
	if strings.Contains(got, long) {
		t.Error("BuildContext() included a line that exceeds the budget")
	}
	if len(got) > budget {
		t.Errorf("BuildContext() length = %d, want <= %d", len(got), budget)
	}
}

func TestContextBuilder_BudgetTooSmallForAnyLine(t *testing.T) {
	searcher := &fakeSearcher{hits: []Hit{{Text: "some fact", Source: "chat"}}}
	b := NewContextBuilder(ContextConfig{Searcher: searcher, MaxChars: len(ContextHeading)})

	if got := b.BuildContext(context.Background(), "query"); got != "" {
		t.Errorf("BuildContext() = %q, want empty when no line fits", got)
	}
}
