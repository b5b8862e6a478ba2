package storage

import (
	"context"
	"time"

	"github.com/fundus-dev/fundus/pkg/api"
)

// KeywordHit is a chunk candidate returned by KeywordSearch. Scoring and
// final ordering happen in the search engine so both adapters stay dumb.
type KeywordHit struct {
	Chunk     api.Chunk
	Filename  string
	CreatedAt time.Time
}

// Store is the metadata store contract.
type Store interface {
	// SaveUpload inserts a new upload record. Returns ErrConflict if the
	// ID is already taken.
	SaveUpload(ctx context.Context, up *api.Upload) error

	// GetUpload retrieves an upload by ID. Returns ErrNotFound if it does
	// not exist.
	GetUpload(ctx context.Context, id string) (*api.Upload, error)

	// ListUploads returns up to limit uploads starting at offset, newest
	// first. The bool reports whether more pages follow.
	ListUploads(ctx context.Context, limit, offset int) ([]api.Upload, bool, error)

	// UpdateIndexing replaces the indexing status of an upload.
	UpdateIndexing(ctx context.Context, id string, st api.IndexingStatus) error

	// ReplaceChunks atomically swaps the stored chunk text of an upload.
	// Chunks back the keyword fallback path, so they are written even when
	// vector indexing fails downstream.
	ReplaceChunks(ctx context.Context, uploadID string, chunks []api.Chunk) error

	// KeywordSearch returns up to limit chunks whose text contains at
	// least one of the query tokens, case-insensitively.
	KeywordSearch(ctx context.Context, tokens []string, limit int) ([]KeywordHit, error)

	// SaveChatLog appends a conversational exchange record.
	SaveChatLog(ctx context.Context, log *api.ChatLog) error

	// ListChatLogs returns up to limit chat logs starting at offset,
	// newest first. The bool reports whether more pages follow.
	ListChatLogs(ctx context.Context, limit, offset int) ([]api.ChatLog, bool, error)

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases held resources.
	Close() error
}
