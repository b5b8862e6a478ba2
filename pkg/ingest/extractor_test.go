package ingest

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPlainText_Supports(t *testing.T) {
	tests := []struct {
		filename    string
		contentType string
		want        bool
	}{
		{"doc.txt", "text/plain", true},
		{"doc.txt", "text/plain; charset=utf-8", true},
		{"data.json", "application/json", true},
		{"readme.md", "", true},
		{"notes.bin", "", false},
		{"image.png", "image/png", false},
		{"archive.zip", "application/zip", false},
		{"source.go", "application/octet-stream", true}, // extension wins
	}

	for _, tt := range tests {
		if got := (PlainText{}).Supports(tt.filename, tt.contentType); got != tt.want {
			t.Errorf("Supports(%q, %q) = %v, want %v", tt.filename, tt.contentType, got, tt.want)
		}
	}
}

func TestPlainText_ExtractSanitizes(t *testing.T) {
	data := []byte("hello\x00world\xff!")
	text, err := (PlainText{}).Extract("doc.txt", data)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if strings.Contains(text, "\x00") {
		t.Error("NUL bytes survived extraction")
	}
	if !utf8.ValidString(text) {
		t.Error("extracted text is not valid UTF-8")
	}
	if !strings.Contains(text, "helloworld") {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestExtractText_Unsupported(t *testing.T) {
	_, err := extractText([]Extractor{PlainText{}}, "cat.jpg", "image/jpeg", []byte{0xff, 0xd8})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}
