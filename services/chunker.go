package services

import (
	"strings"
	"unicode/utf8"

	"docqa-platform/models"
)

// Chunker cuts page text into overlapping windows for embedding. Every
// chunk is an exact substring of its page, so the page text can always
// be located from a chunk verbatim.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits each page independently and tags every chunk with its
// page number. Pages that are empty after trimming produce nothing.
func (c *Chunker) Chunk(pages []models.Page) []models.Chunk {
	var chunks []models.Chunk
	for _, page := range pages {
		for _, text := range c.split(page.Text) {
			chunks = append(chunks, models.Chunk{Text: text, Page: page.Number})
		}
	}
	return chunks
}

// split walks the text with a window of at most c.size characters. The
// cut point prefers a paragraph break, then a sentence end, then a word
// boundary near the window's tail, falling back to a hard cut. The next
// window starts overlap characters before the previous cut. All
// positions are rune offsets, so a cut never lands inside a multibyte
// character.
func (c *Chunker) split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= c.size {
		return []string{text}
	}

	var out []string
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}

		cut := c.findBoundary(runes, start, end)
		out = append(out, string(runes[start:cut]))

		next := cut - c.overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return out
}

// findBoundary looks for a natural break inside the last quarter of the
// window, scanning backwards from the hard limit. Returned offsets are
// rune counts into runes.
func (c *Chunker) findBoundary(runes []rune, start, limit int) int {
	tail := limit - c.size/4
	if tail < start+1 {
		tail = start + 1
	}

	window := string(runes[tail:limit])
	if idx := strings.LastIndex(window, "\n\n"); idx >= 0 {
		return tail + utf8.RuneCountInString(window[:idx]) + 2
	}
	for _, sep := range []string{". ", "! ", "? ", ".\n", "。", "！", "？"} {
		if idx := strings.LastIndex(window, sep); idx >= 0 {
			return tail + utf8.RuneCountInString(window[:idx+len(sep)])
		}
	}
	if idx := strings.LastIndexAny(window, " \n\t"); idx >= 0 {
		return tail + utf8.RuneCountInString(window[:idx]) + 1
	}
	return limit
}
