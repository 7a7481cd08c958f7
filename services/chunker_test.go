package services

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"docqa-platform/models"
)

func TestChunkShortPageIsSingleChunk(t *testing.T) {
	c := NewChunker(1000, 200)
	chunks := c.Chunk([]models.Page{{Text: "a short page", Number: 3}})

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "a short page" {
		t.Errorf("chunk text = %q", chunks[0].Text)
	}
	if chunks[0].Page != 3 {
		t.Errorf("chunk page = %d, want 3", chunks[0].Page)
	}
}

func TestChunkEmptyPagesProduceNothing(t *testing.T) {
	c := NewChunker(1000, 200)
	chunks := c.Chunk([]models.Page{
		{Text: "", Number: 0},
		{Text: "   \n\t ", Number: 1},
	})
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestChunkRespectsSizeLimit(t *testing.T) {
	c := NewChunker(100, 20)
	text := strings.Repeat("word and more text here. ", 60)
	chunks := c.Chunk([]models.Page{{Text: text, Number: 0}})

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk.Text) > 100 {
			t.Errorf("chunk %d has length %d, exceeds limit", i, len(chunk.Text))
		}
	}
}

func TestChunksAreExactSubstrings(t *testing.T) {
	c := NewChunker(80, 16)
	text := "First sentence here. Second sentence follows. " +
		strings.Repeat("Padding sentence with several words in it. ", 10) +
		"Final sentence."
	chunks := c.Chunk([]models.Page{{Text: text, Number: 0}})

	for i, chunk := range chunks {
		if !strings.Contains(text, chunk.Text) {
			t.Errorf("chunk %d is not a substring of the source page", i)
		}
	}
}

func TestConsecutiveChunksOverlap(t *testing.T) {
	c := NewChunker(100, 30)
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&sb, "Numbered sentence %d carries unique text. ", i)
	}
	text := sb.String()
	chunks := c.Chunk([]models.Page{{Text: text, Number: 0}})

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1].Text, chunks[i].Text
		shared := 0
		max := len(prev)
		if len(cur) < max {
			max = len(cur)
		}
		for n := max; n > 0; n-- {
			if strings.HasSuffix(prev, cur[:n]) {
				shared = n
				break
			}
		}
		if shared == 0 {
			t.Errorf("chunks %d and %d share no text", i-1, i)
		}
		if shared > 30 {
			t.Errorf("chunks %d and %d share %d characters, overlap limit is 30", i-1, i, shared)
		}
	}
}

func TestChunkCoversWholeText(t *testing.T) {
	c := NewChunker(100, 20)
	var sb strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&sb, "Coverage sentence %d with distinct words. ", i)
	}
	text := sb.String()
	chunks := c.Chunk([]models.Page{{Text: text, Number: 0}})

	// Each chunk must start at or before the end of the previous one,
	// and the last chunk must reach the end of the text.
	prevEnd := 0
	for i, chunk := range chunks {
		idx := strings.Index(text, chunk.Text)
		if idx < 0 {
			t.Fatalf("chunk %d is not a substring of the text", i)
		}
		if idx > prevEnd {
			t.Errorf("gap before chunk %d: starts at %d, previous ended at %d", i, idx, prevEnd)
		}
		if end := idx + len(chunk.Text); end > prevEnd {
			prevEnd = end
		}
	}
	if prevEnd != len(text) {
		t.Errorf("coverage ends at %d, text length is %d", prevEnd, len(text))
	}
}

func TestChunkUnbrokenTextHardCuts(t *testing.T) {
	c := NewChunker(50, 10)
	text := strings.Repeat("x", 175)
	chunks := c.Chunk([]models.Page{{Text: text, Number: 0}})

	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk.Text) > 50 {
			t.Errorf("chunk %d has length %d", i, len(chunk.Text))
		}
	}
}

func TestChunkPreservesPageNumbers(t *testing.T) {
	c := NewChunker(60, 10)
	pages := []models.Page{
		{Text: strings.Repeat("page zero words here. ", 10), Number: 0},
		{Text: "short page one", Number: 1},
	}
	chunks := c.Chunk(pages)

	sawZero, sawOne := false, false
	for _, chunk := range chunks {
		switch chunk.Page {
		case 0:
			sawZero = true
		case 1:
			sawOne = true
		default:
			t.Errorf("unexpected page number %d", chunk.Page)
		}
	}
	if !sawZero || !sawOne {
		t.Errorf("missing chunks for a page: zero=%v one=%v", sawZero, sawOne)
	}
}

func TestChunkMultibyteTextStaysValidUTF8(t *testing.T) {
	c := NewChunker(100, 20)
	text := strings.Repeat("日本語のテキスト", 30)
	chunks := c.Chunk([]models.Page{{Text: text, Number: 0}})

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if !utf8.ValidString(chunk.Text) {
			t.Errorf("chunk %d is not valid UTF-8: %q", i, chunk.Text)
		}
		if !strings.Contains(text, chunk.Text) {
			t.Errorf("chunk %d is not a substring of the source page", i)
		}
		if n := utf8.RuneCountInString(chunk.Text); n > 100 {
			t.Errorf("chunk %d has %d characters, exceeds limit", i, n)
		}
	}
}

func TestChunkBreaksAtCjkSentenceEnd(t *testing.T) {
	c := NewChunker(60, 10)
	var sb strings.Builder
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&sb, "第%d文はここで終わります。", i)
	}
	chunks := c.Chunk([]models.Page{{Text: sb.String(), Number: 0}})

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(chunk.Text, "。") {
			t.Errorf("chunk %d does not end at a sentence boundary: %q", i, chunk.Text)
		}
	}
}
