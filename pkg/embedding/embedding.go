// Package embedding turns text into fixed-length vectors. The same Embed
// call serves document chunks during ingestion and queries at search time.
//
// Two providers implement the contract: a remote OpenAI-compatible API
// backend and a local in-process embedder. Selection happens once at
// configuration time; call sites depend only on the Provider interface.
package embedding

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// Sentinel errors for provider failures. Callers match with errors.Is.
var (
	// ErrProviderUnavailable indicates a network or authentication failure
	// against a remote embedding API.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrRateLimited indicates the remote API throttled the request. The
	// caller may retry with backoff.
	ErrRateLimited = errors.New("embedding provider rate limited")

	// ErrModelLoad indicates a local embedding model could not be initialized.
	ErrModelLoad = errors.New("embedding model failed to load")
)

// Provider generates embedding vectors for batches of text. Output vectors
// of a given provider instance are dimensionally stable: every vector has
// exactly Dimensions() elements.
type Provider interface {
	// Embed converts a batch of text strings into embedding vectors. The
	// result has one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of the embedding vectors.
	Dimensions() int

	// ModelTag returns a collection-name-safe identifier for the provider
	// and model, used to namespace vector collections so that switching
	// models never collides with prior vectors.
	ModelTag() string
}

var tagSanitizer = regexp.MustCompile(`[^a-z0-9]+`)

// sanitizeTag converts a model identifier into a lowercase token usable
// inside a collection name.
func sanitizeTag(s string) string {
	s = strings.ToLower(s)
	s = tagSanitizer.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
