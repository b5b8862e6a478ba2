// Package chunker splits document text into bounded, overlapping windows
// that serve as the unit of embedding and indexing. Filenames are chunked
// trivially as a single unit so every upload stays searchable by name even
// when content indexing is disabled or fails.
package chunker

import (
	"math"
	"strings"

	"github.com/fundus-dev/fundus/pkg/api"
)

// SafetyCeiling is the absolute upper bound on chunks per document. It
// applies even when MaxChunks is configured as unlimited, to bound
// worst-case memory and embedding cost.
const SafetyCeiling = 500

// Config holds the chunking parameters. A zero MaxChunks means unlimited,
// subject to SafetyCeiling.
type Config struct {
	SizeChars    int
	OverlapRatio float64
	MaxChunks    int
	MinChars     int
}

// Chunker produces content and filename chunks for uploads.
type Chunker struct {
	cfg Config
}

// New creates a Chunker with the given parameters.
func New(cfg Config) *Chunker {
	return &Chunker{cfg: cfg}
}

// Split divides text into windows of SizeChars characters where successive
// windows overlap by round(SizeChars * OverlapRatio) characters. Chunk 0
// starts at offset 0; each subsequent window starts at the previous start
// plus (SizeChars - overlap). Offsets are measured in runes so multi-byte
// text never splits inside a character.
//
// Empty or all-whitespace text yields no chunks. Text shorter than
// SizeChars yields exactly one chunk.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	size := c.cfg.SizeChars
	if len(runes) <= size {
		return []string{text}
	}

	overlap := int(math.Round(float64(size) * c.cfg.OverlapRatio))
	stride := size - overlap
	if stride < 1 {
		stride = 1
	}

	limit := SafetyCeiling
	if c.cfg.MaxChunks > 0 && c.cfg.MaxChunks < limit {
		limit = c.cfg.MaxChunks
	}

	var chunks []string
	for start := 0; start < len(runes); start += stride {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if len(chunks) >= limit {
			break
		}
		if end == len(runes) {
			break
		}
	}

	return chunks
}

// ContentChunks splits document text and wraps each window as an
// api.Chunk with dense 0-based indices and a constant TotalChunks.
func (c *Chunker) ContentChunks(uploadID, text string) []api.Chunk {
	if c.cfg.MinChars > 0 && len(strings.TrimSpace(text)) < c.cfg.MinChars {
		return nil
	}

	parts := c.Split(text)
	chunks := make([]api.Chunk, len(parts))
	for i, part := range parts {
		chunks[i] = api.Chunk{
			UploadID:    uploadID,
			ChunkIndex:  i,
			TotalChunks: len(parts),
			ChunkType:   api.ChunkTypeContent,
			Text:        part,
		}
	}
	return chunks
}

// FilenameChunk returns the single filename chunk for an upload. It is
// produced independently of the content chunking parameters.
func (c *Chunker) FilenameChunk(uploadID, filename string) api.Chunk {
	return api.Chunk{
		UploadID:    uploadID,
		ChunkIndex:  0,
		TotalChunks: 1,
		ChunkType:   api.ChunkTypeFilename,
		Text:        filename,
	}
}
