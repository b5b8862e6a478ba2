package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore persists and retrieves raw upload bytes. Reindexing reads the
// original bytes back from here, never from the vector index.
type FileStore interface {
	// Save writes the upload bytes and returns the storage path.
	Save(uploadID, filename string, data []byte) (string, error)

	// Read returns the bytes previously saved at path.
	Read(path string) ([]byte, error)
}

// LocalFiles stores upload bytes on the local filesystem under a single
// directory, one file per upload.
type LocalFiles struct {
	dir string
}

var _ FileStore = (*LocalFiles)(nil)

// NewLocalFiles creates the directory if needed and returns a file store.
func NewLocalFiles(dir string) (*LocalFiles, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &LocalFiles{dir: dir}, nil
}

// Save writes data to <dir>/<uploadID>_<sanitized filename>.
func (l *LocalFiles) Save(uploadID, filename string, data []byte) (string, error) {
	path := filepath.Join(l.dir, uploadID+"_"+sanitizeFilename(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing upload file: %w", err)
	}
	return path, nil
}

// Read returns the stored bytes.
func (l *LocalFiles) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading upload file: %w", err)
	}
	return data, nil
}

// sanitizeFilename strips path components and characters that are unsafe
// in a flat storage directory.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." || name == ".." {
		name = "upload"
	}
	return name
}
