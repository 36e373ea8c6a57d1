package indexer

import (
	"strings"
	"testing"
)

func TestChunker_countWithoutBreaks(t *testing.T) {
	tests := []struct {
		length, size, overlap, want int
	}{
		{0, 1000, 200, 0},
		{1, 1000, 200, 1},
		{1000, 1000, 200, 1},
		{1001, 1000, 200, 2},
		{1800, 1000, 200, 2},
		{1801, 1000, 200, 3},
		{5000, 1000, 200, 6},
	}
	for _, tt := range tests {
		c := NewChunker(tt.size, tt.overlap)
		chunks := c.Split(strings.Repeat("x", tt.length))
		if len(chunks) != tt.want {
			t.Errorf("len=%d: got %d chunks, want %d", tt.length, len(chunks), tt.want)
		}
		for _, ch := range chunks {
			if n := len([]rune(ch.Text)); n > tt.size {
				t.Errorf("chunk %d has %d chars, above %d", ch.Index, n, tt.size)
			}
		}
	}
}

func TestChunker_joinReconstructs(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("Sentence number ")
		b.WriteString(strings.Repeat("word ", i%7))
		b.WriteString("ends here. ")
		if i%9 == 0 {
			b.WriteString("\n\n")
		}
	}
	b.WriteString("Ünïcödé tail, with multibyte runes")
	text := b.String()

	for _, cfg := range [][2]int{{1000, 200}, {100, 20}, {37, 5}, {10, 0}} {
		c := NewChunker(cfg[0], cfg[1])
		chunks := c.Split(text)
		if got := Join(chunks); got != text {
			t.Fatalf("size=%d overlap=%d: Join did not reconstruct the text", cfg[0], cfg[1])
		}
		for i := 1; i < len(chunks); i++ {
			if overlap := chunks[i-1].End - chunks[i].Start; overlap != c.Overlap() {
				t.Errorf("size=%d: chunks %d/%d overlap %d, want %d", cfg[0], i-1, i, overlap, c.Overlap())
			}
			if chunks[i].Index != i {
				t.Errorf("chunk index %d, want %d", chunks[i].Index, i)
			}
		}
	}
}

func TestChunker_prefersParagraphThenSentence(t *testing.T) {
	c := NewChunker(40, 8)
	para := "First paragraph is here ok.\n\nSecond paragraph continues on and on."
	chunks := c.Split(para)
	if !strings.HasSuffix(chunks[0].Text, "\n\n") {
		t.Errorf("first chunk should end at the paragraph break: %q", chunks[0].Text)
	}

	sent := "This is a longer first sentence. And then another one follows."
	chunks = c.Split(sent)
	if !strings.HasSuffix(chunks[0].Text, "sentence. ") {
		t.Errorf("first chunk should end after a sentence: %q", chunks[0].Text)
	}
}

func TestChunker_deterministic(t *testing.T) {
	c := NewChunker(50, 10)
	text := strings.Repeat("alpha beta gamma. ", 30)
	a, b := c.Split(text), c.Split(text)
	if len(a) != len(b) {
		t.Fatal("chunk count differs between runs")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs", i)
		}
	}
}

func TestNewChunker_defaults(t *testing.T) {
	tests := []struct {
		size, overlap       int
		wantSize, wantOverl int
	}{
		{0, 0, 1000, 0},
		{1000, 200, 1000, 200},
		{100, 60, 100, 20},
		{100, -1, 100, 20},
	}
	for _, tt := range tests {
		c := NewChunker(tt.size, tt.overlap)
		if c.chunkSize != tt.wantSize || c.chunkOverlap != tt.wantOverl {
			t.Errorf("NewChunker(%d, %d) = (%d, %d), want (%d, %d)",
				tt.size, tt.overlap, c.chunkSize, c.chunkOverlap, tt.wantSize, tt.wantOverl)
		}
	}
}
