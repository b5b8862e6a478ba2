package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrUnsupportedType indicates no extractor can read the uploaded file.
// The upload itself still succeeds; only content indexing is skipped.
var ErrUnsupportedType = errors.New("unsupported content type")

// Extractor converts uploaded bytes into plain text for chunking.
type Extractor interface {
	// Supports reports whether this extractor can handle the file.
	Supports(filename, contentType string) bool

	// Extract returns the plain text of the file.
	Extract(filename string, data []byte) (string, error)
}

// plainTextExtensions are handled by PlainText regardless of content type.
var plainTextExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".csv": true,
	".json": true, ".yaml": true, ".yml": true, ".xml": true,
	".html": true, ".htm": true, ".log": true, ".go": true, ".py": true,
}

// PlainText extracts text from plain-text-like uploads. Invalid UTF-8
// sequences are replaced and NUL bytes stripped so downstream chunking
// always sees valid text.
type PlainText struct{}

var _ Extractor = PlainText{}

// Supports accepts text/* and JSON content types, plus common text file
// extensions when the client sent no usable content type.
func (PlainText) Supports(filename, contentType string) bool {
	ct := strings.ToLower(contentType)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case strings.HasPrefix(ct, "text/"):
		return true
	case ct == "application/json", ct == "application/xml", ct == "application/x-yaml":
		return true
	}
	return plainTextExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Extract returns the upload bytes as sanitized UTF-8 text.
func (PlainText) Extract(filename string, data []byte) (string, error) {
	text := strings.ReplaceAll(string(data), "\x00", "")
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return text, nil
}

// extractText runs the first supporting extractor.
func extractText(extractors []Extractor, filename, contentType string, data []byte) (string, error) {
	for _, ex := range extractors {
		if ex.Supports(filename, contentType) {
			return ex.Extract(filename, data)
		}
	}
	return "", fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, filename, contentType)
}
