// Package memory provides an in-memory implementation of storage.Store
// for testing and lightweight deployments. All data is lost when the
// process restarts.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/fundus-dev/fundus/pkg/api"
	"github.com/fundus-dev/fundus/pkg/storage"
)

// Store is an in-memory storage.Store.
type Store struct {
	mu       sync.RWMutex
	uploads  map[string]*api.Upload
	chunks   map[string][]api.Chunk // keyed by upload ID
	chatLogs []api.ChatLog
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		uploads: make(map[string]*api.Upload),
		chunks:  make(map[string][]api.Chunk),
	}
}

// SaveUpload inserts a new upload record.
func (s *Store) SaveUpload(ctx context.Context, up *api.Upload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.uploads[up.ID]; exists {
		return storage.ErrConflict
	}

	cp := *up
	s.uploads[up.ID] = &cp
	return nil
}

// GetUpload retrieves an upload by ID.
func (s *Store) GetUpload(ctx context.Context, id string) (*api.Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	up, ok := s.uploads[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	cp := *up
	return &cp, nil
}

// ListUploads returns a page of uploads, newest first.
func (s *Store) ListUploads(ctx context.Context, limit, offset int) ([]api.Upload, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]api.Upload, 0, len(s.uploads))
	for _, up := range s.uploads {
		all = append(all, *up)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	if offset >= len(all) {
		return []api.Upload{}, false, nil
	}
	all = all[offset:]

	hasMore := len(all) > limit
	if hasMore {
		all = all[:limit]
	}
	return all, hasMore, nil
}

// UpdateIndexing replaces the indexing status of an upload.
func (s *Store) UpdateIndexing(ctx context.Context, id string, st api.IndexingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	up, ok := s.uploads[id]
	if !ok {
		return storage.ErrNotFound
	}
	up.Indexing = st
	return nil
}

// ReplaceChunks swaps the stored chunks of an upload.
func (s *Store) ReplaceChunks(ctx context.Context, uploadID string, chunks []api.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.uploads[uploadID]; !ok {
		return storage.ErrNotFound
	}

	cp := make([]api.Chunk, len(chunks))
	copy(cp, chunks)
	s.chunks[uploadID] = cp
	return nil
}

// KeywordSearch scans stored chunks for case-insensitive token matches.
func (s *Store) KeywordSearch(ctx context.Context, tokens []string, limit int) ([]storage.KeywordHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lowered := make([]string, len(tokens))
	for i, tok := range tokens {
		lowered[i] = strings.ToLower(tok)
	}

	var hits []storage.KeywordHit
	for uploadID, chunks := range s.chunks {
		up, ok := s.uploads[uploadID]
		if !ok {
			continue
		}
		for _, c := range chunks {
			text := strings.ToLower(c.Text)
			for _, tok := range lowered {
				if tok != "" && strings.Contains(text, tok) {
					hits = append(hits, storage.KeywordHit{
						Chunk:     c,
						Filename:  up.Filename,
						CreatedAt: up.CreatedAt,
					})
					break
				}
			}
			if len(hits) >= limit {
				return hits, nil
			}
		}
	}
	return hits, nil
}

// SaveChatLog appends a chat log record.
func (s *Store) SaveChatLog(ctx context.Context, log *api.ChatLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chatLogs = append(s.chatLogs, *log)
	return nil
}

// ListChatLogs returns a page of chat logs, newest first.
func (s *Store) ListChatLogs(ctx context.Context, limit, offset int) ([]api.ChatLog, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]api.ChatLog, len(s.chatLogs))
	copy(all, s.chatLogs)
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	if offset >= len(all) {
		return []api.ChatLog{}, false, nil
	}
	all = all[offset:]

	hasMore := len(all) > limit
	if hasMore {
		all = all[:limit]
	}
	return all, hasMore, nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
