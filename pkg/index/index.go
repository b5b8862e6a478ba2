// Package index stores and queries embedding vectors. Collections are
// namespaced per embedding model so switching providers never mixes
// incompatible vector spaces.
package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors for vector backend failures. Callers match with errors.Is.
var (
	// ErrUnavailable indicates the vector backend could not be reached.
	// Search callers fall back to keyword mode on this error.
	ErrUnavailable = errors.New("vector index unavailable")

	// ErrDimensionMismatch indicates an existing collection was created with
	// a different vector size than the active embedding model produces.
	ErrDimensionMismatch = errors.New("collection dimension mismatch")

	// ErrCollectionNotFound indicates a query against a collection that has
	// not been created yet.
	ErrCollectionNotFound = errors.New("collection not found")
)

// Payload is the metadata stored alongside each vector. It carries enough
// to render a search result without a metadata-store lookup.
type Payload struct {
	UploadID    string `json:"upload_id"`
	Filename    string `json:"filename"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	ChunkType   string `json:"chunk_type"`
	Text        string `json:"text"`
	CreatedAt   string `json:"created_at"` // RFC3339
}

// Point is a single vector with its payload, addressed by a stable ID so
// re-upserting replaces rather than duplicates.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Match is a scored query hit.
type Match struct {
	Score   float32
	Payload Payload
}

// Index is the vector storage contract.
type Index interface {
	// EnsureCollection creates the named collection with the given vector
	// size if it does not exist. It returns ErrDimensionMismatch if the
	// collection exists with a different size.
	EnsureCollection(ctx context.Context, name string, dimensions int) error

	// Upsert writes points into the collection, replacing points whose IDs
	// already exist.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Query returns up to limit nearest neighbors with score >= minScore,
	// ordered by descending similarity.
	Query(ctx context.Context, collection string, vector []float32, limit int, minScore float32) ([]Match, error)

	// DeleteUpload removes all points belonging to the given upload.
	DeleteUpload(ctx context.Context, collection, uploadID string) error

	// Healthy reports whether the backend is reachable.
	Healthy(ctx context.Context) error
}

// CollectionName builds the namespaced collection name for a logical base
// ("uploads" or "uploads-content") and an embedding model tag.
func CollectionName(prefix, base, modelTag string) string {
	return fmt.Sprintf("%s%s-%s", prefix, base, modelTag)
}

// pointNamespace seeds deterministic point IDs. Qdrant requires point IDs
// to be UUIDs or integers, so the logical key is hashed into UUIDv5 space.
var pointNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// PointID derives a stable UUID for a chunk so that reindexing an upload
// overwrites its previous points in place.
func PointID(uploadID, chunkType string, chunkIndex int) string {
	key := fmt.Sprintf("%s:%s:%d", uploadID, chunkType, chunkIndex)
	return uuid.NewSHA1(pointNamespace, []byte(key)).String()
}
