// Package postgres provides a PostgreSQL implementation of storage.Store.
// It uses pgx/v5 for connection pooling and applies embedded schema
// migrations at startup.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fundus-dev/fundus/pkg/api"
	"github.com/fundus-dev/fundus/pkg/storage"
)

// Store is a PostgreSQL-backed storage.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// SaveUpload inserts a new upload record.
func (s *Store) SaveUpload(ctx context.Context, up *api.Upload) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO uploads (
			id, filename, storage_path, size_bytes, content_type,
			indexing_success, indexing_stage_failed, indexing_error, chunks_indexed,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		up.ID, up.Filename, up.StoragePath, up.SizeBytes, up.ContentType,
		up.Indexing.Success, up.Indexing.StageFailed, up.Indexing.Error, up.Indexing.ChunksIndexed,
		up.CreatedAt,
	)

	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting upload: %w", err)
	}

	return nil
}

const uploadColumns = `id, filename, storage_path, size_bytes, content_type,
	indexing_success, indexing_stage_failed, indexing_error, chunks_indexed, created_at`

// GetUpload retrieves an upload by ID.
func (s *Store) GetUpload(ctx context.Context, id string) (*api.Upload, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+uploadColumns+" FROM uploads WHERE id = $1", id)

	up, err := scanUpload(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying upload: %w", err)
	}
	return up, nil
}

// ListUploads returns a page of uploads, newest first. It fetches one row
// beyond the limit to detect whether more pages follow.
func (s *Store) ListUploads(ctx context.Context, limit, offset int) ([]api.Upload, bool, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+uploadColumns+` FROM uploads
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1 OFFSET $2`,
		limit+1, offset)
	if err != nil {
		return nil, false, fmt.Errorf("listing uploads: %w", err)
	}
	defer rows.Close()

	uploads := []api.Upload{}
	for rows.Next() {
		up, err := scanUpload(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scanning upload: %w", err)
		}
		uploads = append(uploads, *up)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating uploads: %w", err)
	}

	hasMore := len(uploads) > limit
	if hasMore {
		uploads = uploads[:limit]
	}
	return uploads, hasMore, nil
}

// UpdateIndexing replaces the indexing status of an upload.
func (s *Store) UpdateIndexing(ctx context.Context, id string, st api.IndexingStatus) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE uploads
		SET indexing_success = $1, indexing_stage_failed = $2,
		    indexing_error = $3, chunks_indexed = $4
		WHERE id = $5
	`, st.Success, st.StageFailed, st.Error, st.ChunksIndexed, id)
	if err != nil {
		return fmt.Errorf("updating indexing status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ReplaceChunks swaps the stored chunks of an upload in a single
// transaction so keyword search never sees a half-written state.
func (s *Store) ReplaceChunks(ctx context.Context, uploadID string, chunks []api.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM uploads WHERE id = $1)", uploadID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("checking upload: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}

	if _, err := tx.Exec(ctx, "DELETE FROM chunks WHERE upload_id = $1", uploadID); err != nil {
		return fmt.Errorf("deleting old chunks: %w", err)
	}

	for _, c := range chunks {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chunks (upload_id, chunk_type, chunk_index, total_chunks, text)
			VALUES ($1, $2, $3, $4, $5)
		`, uploadID, string(c.ChunkType), c.ChunkIndex, c.TotalChunks, c.Text); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", c.ChunkIndex, err)
		}
	}

	return tx.Commit(ctx)
}

// KeywordSearch returns chunks whose text contains any of the tokens,
// case-insensitively, joined with their upload metadata.
func (s *Store) KeywordSearch(ctx context.Context, tokens []string, limit int) ([]storage.KeywordHit, error) {
	patterns := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		patterns = append(patterns, "%"+escapeLike(tok)+"%")
	}
	if len(patterns) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT c.upload_id, c.chunk_type, c.chunk_index, c.total_chunks, c.text,
		       u.filename, u.created_at
		FROM chunks c
		JOIN uploads u ON u.id = c.upload_id
		WHERE c.text ILIKE ANY ($1)
		ORDER BY u.created_at DESC, c.upload_id, c.chunk_type, c.chunk_index
		LIMIT $2
	`, patterns, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var hits []storage.KeywordHit
	for rows.Next() {
		var h storage.KeywordHit
		var chunkType string
		if err := rows.Scan(
			&h.Chunk.UploadID, &chunkType, &h.Chunk.ChunkIndex, &h.Chunk.TotalChunks,
			&h.Chunk.Text, &h.Filename, &h.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning keyword hit: %w", err)
		}
		h.Chunk.ChunkType = api.ChunkType(chunkType)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating keyword hits: %w", err)
	}
	return hits, nil
}

// SaveChatLog appends a chat log record.
func (s *Store) SaveChatLog(ctx context.Context, log *api.ChatLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_logs (id, message, provider, response, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, log.ID, log.Message, log.Provider, log.Response, log.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting chat log: %w", err)
	}
	return nil
}

// ListChatLogs returns a page of chat logs, newest first.
func (s *Store) ListChatLogs(ctx context.Context, limit, offset int) ([]api.ChatLog, bool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, message, provider, response, created_at
		FROM chat_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit+1, offset)
	if err != nil {
		return nil, false, fmt.Errorf("listing chat logs: %w", err)
	}
	defer rows.Close()

	logs := []api.ChatLog{}
	for rows.Next() {
		var l api.ChatLog
		if err := rows.Scan(&l.ID, &l.Message, &l.Provider, &l.Response, &l.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("scanning chat log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating chat logs: %w", err)
	}

	hasMore := len(logs) > limit
	if hasMore {
		logs = logs[:limit]
	}
	return logs, hasMore, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// scanUpload reads one uploads row in uploadColumns order.
func scanUpload(row pgx.Row) (*api.Upload, error) {
	var up api.Upload
	err := row.Scan(
		&up.ID, &up.Filename, &up.StoragePath, &up.SizeBytes, &up.ContentType,
		&up.Indexing.Success, &up.Indexing.StageFailed, &up.Indexing.Error,
		&up.Indexing.ChunksIndexed, &up.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &up, nil
}

// escapeLike escapes LIKE metacharacters in a search token.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
