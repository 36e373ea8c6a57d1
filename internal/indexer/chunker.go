// Package indexer turns extracted text into search index documents: chunking,
// sanitizing, embedding with index alignment, and writing to the search index.
package indexer

// Default chunking parameters, in characters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = DefaultChunkSize / 5
)

// Chunk is one window of the source text. Start and End are rune offsets.
type Chunk struct {
	Index int
	Text  string
	Start int
	End   int
}

// Chunker splits text into overlapping character windows. Consecutive chunks
// share exactly chunkOverlap characters. Chunk ends prefer a paragraph break,
// then a sentence end, then whitespace, within the back half of the window.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker. A non-positive size means DefaultChunkSize; an
// overlap outside [0, size/2) falls back to size/5.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap*2 >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Overlap returns the number of characters shared by consecutive chunks.
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Split returns the chunks of text in order. Empty text yields no chunks.
func (c *Chunker) Split(text string) []Chunk {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	var chunks []Chunk
	start := 0
	for {
		end := start + c.chunkSize
		if end >= n {
			end = n
		} else {
			end = c.breakPoint(runes, start, end)
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
		})
		if end == n {
			return chunks
		}
		start = end - c.chunkOverlap
	}
}

// breakPoint picks the end of the window [start, limit). The returned end is
// always past start+chunkSize/2, so every step advances by more than the overlap.
func (c *Chunker) breakPoint(runes []rune, start, limit int) int {
	floor := start + c.chunkSize/2
	// Paragraph break: end after the blank line.
	for i := limit - 1; i > floor; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	// Sentence end followed by whitespace.
	for i := limit - 1; i > floor; i-- {
		if isSpace(runes[i]) && (runes[i-1] == '.' || runes[i-1] == '!' || runes[i-1] == '?') {
			return i + 1
		}
	}
	for i := limit - 1; i > floor; i-- {
		if isSpace(runes[i]) {
			return i + 1
		}
	}
	return limit
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

// Join reassembles the source text from chunks produced by Split by dropping
// the part of each chunk that overlaps its predecessor.
func Join(chunks []Chunk) string {
	var out []rune
	prevEnd := 0
	for _, ch := range chunks {
		r := []rune(ch.Text)
		skip := prevEnd - ch.Start
		if skip < 0 {
			skip = 0
		}
		if skip > len(r) {
			skip = len(r)
		}
		out = append(out, r[skip:]...)
		prevEnd = ch.End
	}
	return string(out)
}
