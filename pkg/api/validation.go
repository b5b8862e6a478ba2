package api

import (
	"fmt"
	"strings"
)

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxQueryChars  int
	MaxUploadBytes int64
	MaxLimit       int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxQueryChars:  1000,
		MaxUploadBytes: 50 * 1024 * 1024, // 50MB
		MaxLimit:       100,
	}
}

// ValidateQuery checks a search query and limit. It returns an *APIError
// describing the first validation failure, or nil if the input is valid.
func ValidateQuery(text string, limit int, cfg ValidationConfig) *APIError {
	if strings.TrimSpace(text) == "" {
		return NewInvalidRequestError("text", "query text must not be empty")
	}

	if cfg.MaxQueryChars > 0 && len(text) > cfg.MaxQueryChars {
		return NewInvalidRequestError("text",
			fmt.Sprintf("query exceeds maximum of %d characters", cfg.MaxQueryChars))
	}

	if limit < 0 {
		return NewInvalidRequestError("limit", "limit must not be negative")
	}

	if cfg.MaxLimit > 0 && limit > cfg.MaxLimit {
		return NewInvalidRequestError("limit",
			fmt.Sprintf("limit exceeds maximum of %d", cfg.MaxLimit))
	}

	return nil
}

// ValidateUpload checks an incoming file before ingestion. Zero-byte files
// and empty filenames are rejected immediately.
func ValidateUpload(filename string, size int64, cfg ValidationConfig) *APIError {
	if strings.TrimSpace(filename) == "" {
		return NewInvalidRequestError("filename", "filename must not be empty")
	}

	if size == 0 {
		return NewInvalidRequestError("file", "file must not be empty")
	}

	if cfg.MaxUploadBytes > 0 && size > cfg.MaxUploadBytes {
		return NewInvalidRequestError("file",
			fmt.Sprintf("file exceeds maximum of %d bytes", cfg.MaxUploadBytes))
	}

	return nil
}
