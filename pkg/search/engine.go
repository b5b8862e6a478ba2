// Package search implements hybrid retrieval: vector search over the
// filename and content collections with keyword fallback, optional
// cross-encoder reranking, and multi-query fusion.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/fundus-dev/fundus/pkg/api"
	"github.com/fundus-dev/fundus/pkg/debug"
	"github.com/fundus-dev/fundus/pkg/embedding"
	"github.com/fundus-dev/fundus/pkg/index"
	"github.com/fundus-dev/fundus/pkg/observability"
	"github.com/fundus-dev/fundus/pkg/storage"
)

// SnippetMaxChars bounds the chunk text returned in search results.
const SnippetMaxChars = 300

// Config wires an Engine.
type Config struct {
	Store    storage.Store
	Index    index.Index
	Provider embedding.Provider

	// FilenameCollection and ContentCollection are the namespaced
	// collection names produced by the ingestion pipeline.
	FilenameCollection string
	ContentCollection  string

	// MinScore filters vector hits below this similarity.
	MinScore float32

	// DefaultLimit applies when a request does not specify one.
	DefaultLimit int

	// Reranker rescores candidates when set; nil disables reranking.
	Reranker Reranker

	// RerankPool is how many top candidates are sent to the reranker.
	RerankPool int

	// Variants generates multi-query rewrites for advanced search.
	// Defaults to HeuristicVariants.
	Variants VariantGenerator

	// MaxVariants caps how many variants (including the original) fan out.
	MaxVariants int

	// VariantTimeout bounds each variant's retrieval; a variant that
	// misses its budget contributes an empty list.
	VariantTimeout time.Duration

	// RRFK is the reciprocal rank fusion constant.
	RRFK int

	Metrics *observability.Metrics
}

// Engine serves search requests.
type Engine struct {
	store    storage.Store
	idx      index.Index
	provider embedding.Provider

	filenameCollection string
	contentCollection  string

	minScore     float32
	defaultLimit int

	reranker   Reranker
	rerankPool int

	variants       VariantGenerator
	maxVariants    int
	variantTimeout time.Duration
	rrfK           int

	metrics *observability.Metrics
}

// New creates a search engine.
func New(cfg Config) *Engine {
	limit := cfg.DefaultLimit
	if limit <= 0 {
		limit = 10
	}
	pool := cfg.RerankPool
	if pool <= 0 {
		pool = 20
	}
	variants := cfg.Variants
	if variants == nil {
		variants = HeuristicVariants{}
	}
	maxVariants := cfg.MaxVariants
	if maxVariants <= 0 {
		maxVariants = 4
	}
	variantTimeout := cfg.VariantTimeout
	if variantTimeout <= 0 {
		variantTimeout = 5 * time.Second
	}
	rrfK := cfg.RRFK
	if rrfK <= 0 {
		rrfK = 60
	}
	return &Engine{
		store:              cfg.Store,
		idx:                cfg.Index,
		provider:           cfg.Provider,
		filenameCollection: cfg.FilenameCollection,
		contentCollection:  cfg.ContentCollection,
		minScore:           cfg.MinScore,
		defaultLimit:       limit,
		reranker:           cfg.Reranker,
		rerankPool:         pool,
		variants:           variants,
		maxVariants:        maxVariants,
		variantTimeout:     variantTimeout,
		rrfK:               rrfK,
		metrics:            cfg.Metrics,
	}
}

// Search serves POST /v1/search: vector retrieval with keyword fallback,
// and optional reranking.
func (e *Engine) Search(ctx context.Context, req api.SearchRequest) (api.SearchResponse, error) {
	start := time.Now()
	limit := req.Limit
	if limit <= 0 {
		limit = e.defaultLimit
	}

	resp := api.SearchResponse{Query: req.Text}

	results, err := e.vectorSearch(ctx, req.Text, limit)
	if err != nil {
		slog.Warn("vector search unavailable, falling back to keyword mode",
			"query_len", len(req.Text), "error", err)
		kwResults, kwErr := e.keywordSearch(ctx, req.Text, limit)
		if kwErr != nil {
			return resp, fmt.Errorf("keyword fallback: %w", kwErr)
		}
		resp.Mode = api.ModeKeyword
		resp.Results = kwResults
		e.metrics.RecordSearch(string(resp.Mode), time.Since(start).Seconds())
		return resp, nil
	}

	// Rerank unless the request opted out.
	if e.reranker != nil && (req.Rerank == nil || *req.Rerank) {
		results = e.rerank(ctx, req.Text, results)
	}

	if len(results) > limit {
		results = results[:limit]
	}

	resp.Mode = api.ModeVector
	resp.Results = results
	e.metrics.RecordSearch(string(resp.Mode), time.Since(start).Seconds())
	return resp, nil
}

// vectorSearch embeds the query and merges hits from the filename and
// content collections, keeping the best hit per upload.
func (e *Engine) vectorSearch(ctx context.Context, query string, limit int) ([]api.SearchResult, error) {
	vectors, err := e.provider.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding query: expected 1 vector, got %d", len(vectors))
	}
	e.metrics.RecordEmbeddings(e.provider.ModelTag(), 1)
	vector := vectors[0]

	// Fetch enough from each collection to survive dedup and reranking.
	fetch := limit
	if e.reranker != nil && e.rerankPool > fetch {
		fetch = e.rerankPool
	}

	filenameHits, err := e.idx.Query(ctx, e.filenameCollection, vector, fetch, e.minScore)
	if err != nil {
		return nil, fmt.Errorf("querying filename collection: %w", err)
	}
	contentHits, err := e.queryContent(ctx, vector, fetch)
	if err != nil {
		return nil, err
	}

	merged := mergeByUpload(append(filenameHits, contentHits...), e.minScore)
	if len(merged) > fetch {
		merged = merged[:fetch]
	}
	debug.Log("search", "vector retrieval",
		"filename_hits", len(filenameHits), "content_hits", len(contentHits), "merged", len(merged))
	return merged, nil
}

// queryContent tolerates a missing content collection, which is normal
// when content indexing is disabled or nothing has content chunks yet.
func (e *Engine) queryContent(ctx context.Context, vector []float32, limit int) ([]index.Match, error) {
	hits, err := e.idx.Query(ctx, e.contentCollection, vector, limit, e.minScore)
	if err != nil {
		if errors.Is(err, index.ErrCollectionNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying content collection: %w", err)
	}
	return hits, nil
}

// mergeByUpload keeps the best-scoring hit per upload, filters below
// minScore, and orders by score descending with recency as tie-break.
func mergeByUpload(hits []index.Match, minScore float32) []api.SearchResult {
	best := make(map[string]api.SearchResult)
	for _, h := range hits {
		if h.Score < minScore {
			continue
		}
		r := matchToResult(h)
		prev, seen := best[r.UploadID]
		if !seen || r.VectorScore > prev.VectorScore {
			best[r.UploadID] = r
		}
	}

	results := make([]api.SearchResult, 0, len(best))
	for _, r := range best {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].VectorScore != results[j].VectorScore {
			return results[i].VectorScore > results[j].VectorScore
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results
}

// keywordSearch is the degraded path when the vector side is unusable.
// Scores are token-overlap fractions, not similarities.
func (e *Engine) keywordSearch(ctx context.Context, query string, limit int) ([]api.SearchResult, error) {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return []api.SearchResult{}, nil
	}

	hits, err := e.store.KeywordSearch(ctx, tokens, limit*keywordCandidateFactor)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	// Best chunk per upload, scored by token overlap.
	best := make(map[string]api.SearchResult)
	for _, h := range hits {
		score := keywordScore(tokens, h.Chunk.Text)
		if score < e.minScore {
			continue
		}
		r := api.SearchResult{
			UploadID:    h.Chunk.UploadID,
			Filename:    h.Filename,
			ChunkIndex:  h.Chunk.ChunkIndex,
			ChunkType:   h.Chunk.ChunkType,
			Snippet:     truncateSnippet(h.Chunk.Text),
			VectorScore: score,
			CreatedAt:   h.CreatedAt,
		}
		prev, seen := best[r.UploadID]
		if !seen || r.VectorScore > prev.VectorScore {
			best[r.UploadID] = r
		}
	}

	results := make([]api.SearchResult, 0, len(best))
	for _, r := range best {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].VectorScore != results[j].VectorScore {
			return results[i].VectorScore > results[j].VectorScore
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// rerank rescores the top candidates with the cross-encoder. On any
// reranker failure the vector ordering is kept.
func (e *Engine) rerank(ctx context.Context, query string, results []api.SearchResult) []api.SearchResult {
	if len(results) == 0 {
		return results
	}

	pool := results
	if len(pool) > e.rerankPool {
		pool = pool[:e.rerankPool]
	}

	docs := make([]string, len(pool))
	for i, r := range pool {
		docs[i] = r.Snippet
	}

	start := time.Now()
	scores, err := e.reranker.Rerank(ctx, query, docs)
	if err != nil || len(scores) != len(pool) {
		slog.Warn("reranker unavailable, keeping vector order", "error", err)
		return results
	}
	e.metrics.RecordRerank(time.Since(start).Seconds())

	reranked := make([]api.SearchResult, len(pool))
	copy(reranked, pool)
	for i := range reranked {
		s := float32(scores[i])
		reranked[i].RerankScore = &s
	}
	sort.Slice(reranked, func(i, j int) bool {
		return *reranked[i].RerankScore > *reranked[j].RerankScore
	})

	// Candidates beyond the pool keep their vector order below the
	// reranked block.
	return append(reranked, results[len(pool):]...)
}

// matchToResult converts an index hit into a wire result with a bounded
// snippet.
func matchToResult(h index.Match) api.SearchResult {
	createdAt, _ := time.Parse(time.RFC3339Nano, h.Payload.CreatedAt)
	return api.SearchResult{
		UploadID:    h.Payload.UploadID,
		Filename:    h.Payload.Filename,
		ChunkIndex:  h.Payload.ChunkIndex,
		ChunkType:   api.ChunkType(h.Payload.ChunkType),
		Snippet:     truncateSnippet(h.Payload.Text),
		VectorScore: h.Score,
		CreatedAt:   createdAt,
	}
}

// truncateSnippet bounds snippet length at a rune boundary.
func truncateSnippet(text string) string {
	runes := []rune(text)
	if len(runes) <= SnippetMaxChars {
		return text
	}
	return string(runes[:SnippetMaxChars])
}
