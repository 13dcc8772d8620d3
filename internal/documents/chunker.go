package documents

import (
	"fmt"
	"strings"
)

// Chunker splits text into fixed-size windows that overlap by a fixed
// number of characters. Sizes count runes, not bytes.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker. overlap must be smaller than size or the
// window would never advance.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split returns the windows of text in order. Whitespace-only windows are
// dropped; if nothing is left the whole text is returned as one chunk, so
// the result is never empty.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	step := c.size - c.overlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := min(start+c.size, len(runes))
		if piece := string(runes[start:end]); strings.TrimSpace(piece) != "" {
			chunks = append(chunks, piece)
		}
		if end == len(runes) {
			break
		}
	}

	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}
