package chunker

import (
	"math"
	"strings"
	"testing"

	"github.com/fundus-dev/fundus/pkg/api"
)

func TestSplit_Degenerate(t *testing.T) {
	c := New(Config{SizeChars: 600, OverlapRatio: 0.25})

	if got := c.Split(""); got != nil {
		t.Errorf("empty text: expected no chunks, got %d", len(got))
	}
	if got := c.Split("   \n\t  "); got != nil {
		t.Errorf("whitespace text: expected no chunks, got %d", len(got))
	}

	short := "a short document"
	got := c.Split(short)
	if len(got) != 1 {
		t.Fatalf("short text: expected exactly one chunk, got %d", len(got))
	}
	if got[0] != short {
		t.Errorf("short text: chunk should be the full text")
	}
}

func TestSplit_WindowGeometry(t *testing.T) {
	const (
		size    = 600
		ratio   = 0.25
		textLen = 3000
	)
	c := New(Config{SizeChars: size, OverlapRatio: ratio})

	text := strings.Repeat("abcdefghij", textLen/10)
	chunks := c.Split(text)

	overlap := int(math.Round(size * ratio))
	stride := size - overlap
	wantCount := int(math.Ceil(float64(textLen-size)/float64(stride))) + 1
	if len(chunks) != wantCount {
		t.Errorf("expected %d chunks, got %d", wantCount, len(chunks))
	}

	// Chunk 0 starts at offset 0.
	if !strings.HasPrefix(text, chunks[0]) {
		t.Error("chunk 0 must start at offset 0")
	}

	// Each window starts at previous start + stride and has the full size
	// except possibly the last.
	for i, ch := range chunks {
		start := i * stride
		end := start + size
		if end > textLen {
			end = textLen
		}
		if ch != text[start:end] {
			t.Fatalf("chunk %d does not match window [%d:%d]", i, start, end)
		}
	}

	// Reconstructing from boundaries covers every original character.
	covered := make([]bool, textLen)
	for i := range chunks {
		start := i * stride
		for j := start; j < start+len(chunks[i]); j++ {
			covered[j] = true
		}
	}
	for i, ok := range covered {
		if !ok {
			t.Fatalf("character at offset %d not covered by any chunk", i)
		}
	}
}

func TestSplit_Idempotent(t *testing.T) {
	c := New(Config{SizeChars: 200, OverlapRatio: 0.25})
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 40)

	first := c.Split(text)
	second := c.Split(text)

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ across runs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("chunk %d differs across runs", i)
		}
	}
}

func TestSplit_SafetyCeiling(t *testing.T) {
	c := New(Config{SizeChars: 10, OverlapRatio: 0.5})
	text := strings.Repeat("x", 100_000)

	chunks := c.Split(text)
	if len(chunks) > SafetyCeiling {
		t.Errorf("expected at most %d chunks, got %d", SafetyCeiling, len(chunks))
	}
}

func TestSplit_MaxChunks(t *testing.T) {
	c := New(Config{SizeChars: 10, OverlapRatio: 0, MaxChunks: 3})
	text := strings.Repeat("y", 1000)

	chunks := c.Split(text)
	if len(chunks) != 3 {
		t.Errorf("expected 3 chunks, got %d", len(chunks))
	}
}

func TestSplit_MultiByte(t *testing.T) {
	c := New(Config{SizeChars: 4, OverlapRatio: 0})
	text := "aäöü߀cd"

	chunks := c.Split(text)
	joined := strings.Join(chunks, "")
	if joined != text {
		t.Errorf("non-overlapping chunks should reassemble the text, got %q", joined)
	}
	for i, ch := range chunks {
		if !strings.HasPrefix(text[len(strings.Join(chunks[:i], "")):], ch) {
			t.Errorf("chunk %d split inside a rune", i)
		}
	}
}

func TestContentChunks_Metadata(t *testing.T) {
	c := New(Config{SizeChars: 100, OverlapRatio: 0.25, MinChars: 50})
	text := strings.Repeat("paragraph of searchable content here. ", 20)

	chunks := c.ContentChunks("up_test", text)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, ch := range chunks {
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, ch.ChunkIndex)
		}
		if ch.TotalChunks != len(chunks) {
			t.Errorf("chunk %d has total %d, want %d", i, ch.TotalChunks, len(chunks))
		}
		if ch.ChunkType != api.ChunkTypeContent {
			t.Errorf("chunk %d has type %q", i, ch.ChunkType)
		}
		if ch.UploadID != "up_test" {
			t.Errorf("chunk %d has upload id %q", i, ch.UploadID)
		}
	}
}

func TestContentChunks_BelowMinimum(t *testing.T) {
	c := New(Config{SizeChars: 600, OverlapRatio: 0.25, MinChars: 50})

	if got := c.ContentChunks("up_test", "too short"); got != nil {
		t.Errorf("expected no chunks for text below minimum, got %d", len(got))
	}
}

func TestFilenameChunk(t *testing.T) {
	c := New(Config{SizeChars: 600, OverlapRatio: 0.25})

	ch := c.FilenameChunk("up_test", "quarterly-report.pdf")
	if ch.ChunkType != api.ChunkTypeFilename {
		t.Errorf("expected filename chunk type, got %q", ch.ChunkType)
	}
	if ch.ChunkIndex != 0 || ch.TotalChunks != 1 {
		t.Errorf("filename chunk must be the single unit, got index %d of %d", ch.ChunkIndex, ch.TotalChunks)
	}
	if ch.Text != "quarterly-report.pdf" {
		t.Errorf("unexpected chunk text %q", ch.Text)
	}
}
