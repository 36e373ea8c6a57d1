package search

import (
	"strings"
	"testing"
)

func TestHighlight(t *testing.T) {
	tests := []struct {
		name    string
		content string
		query   string
		maxLen  int
		want    string
	}{
		{"short content marked", "hello world", "world", 100, "hello <mark>world</mark>"},
		{"case insensitive", "Hello World", "hello", 100, "<mark>Hello</mark> World"},
		{"no match truncates", "long text here", "zzz", 4, "long..."},
		{"empty content", "   ", "x", 10, ""},
		{"single letters ignored", "a b c", "a", 10, "a b c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Highlight(tt.content, tt.query, tt.maxLen); got != tt.want {
				t.Errorf("Highlight() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHighlight_centersOnMatch(t *testing.T) {
	content := strings.Repeat("filler ", 100) + "needle" + strings.Repeat(" tail", 100)
	got := Highlight(content, "needle", 40)
	if !strings.Contains(got, "<mark>needle</mark>") {
		t.Fatalf("match not in snippet: %q", got)
	}
	if !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipses on both sides: %q", got)
	}
}
