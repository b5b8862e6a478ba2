package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Reranker rescores candidate documents against a query with a
// cross-encoder. Scores are relevance logits: higher is better, and they
// are not comparable to vector similarities.
type Reranker interface {
	// Rerank returns one score per document, in input order.
	Rerank(ctx context.Context, query string, docs []string) ([]float64, error)
}

// rerankBatchSize is how many documents go into one scoring request.
const rerankBatchSize = 8

// HTTPRerankerConfig holds settings for the remote cross-encoder client.
type HTTPRerankerConfig struct {
	URL     string
	Model   string        // default: cross-encoder/ms-marco-MiniLM-L-6-v2
	Timeout time.Duration // per-request timeout, default: 10s
	Workers int           // concurrent scoring requests, default: 2
}

// HTTPReranker scores query-document pairs against a remote cross-encoder
// service. Documents are scored in fixed-size batches by a bounded worker
// pool so a large candidate set cannot flood the scoring service.
type HTTPReranker struct {
	url        string
	model      string
	workers    int
	httpClient *http.Client
}

var _ Reranker = (*HTTPReranker)(nil)

// NewHTTPReranker creates a remote reranker client.
func NewHTTPReranker(cfg HTTPRerankerConfig) *HTTPReranker {
	if cfg.Model == "" {
		cfg.Model = "cross-encoder/ms-marco-MiniLM-L-6-v2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	return &HTTPReranker{
		url:        cfg.URL,
		model:      cfg.Model,
		workers:    cfg.Workers,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// rerankRequest is the JSON body for the scoring endpoint.
type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

// rerankResponse is the scoring endpoint's reply.
type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

// Rerank scores all documents, batching requests across the worker pool.
// The first batch error aborts the call; partial scores are never returned.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, docs []string) ([]float64, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	type batch struct {
		start int
		docs  []string
	}

	batches := make(chan batch)
	scores := make([]float64, len(docs))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, r.workers)

	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range batches {
				batchScores, err := r.scoreBatch(ctx, query, b.docs)
				if err != nil {
					errCh <- err
					cancel()
					return
				}
				copy(scores[b.start:], batchScores)
			}
		}()
	}

	for start := 0; start < len(docs); start += rerankBatchSize {
		end := start + rerankBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		select {
		case batches <- batch{start: start, docs: docs[start:end]}:
		case <-ctx.Done():
			start = len(docs)
		}
	}
	close(batches)
	wg.Wait()

	select {
	case err := <-errCh:
		return nil, err
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return scores, nil
}

// scoreBatch sends one scoring request.
func (r *HTTPReranker) scoreBatch(ctx context.Context, query string, docs []string) ([]float64, error) {
	data, err := json.Marshal(rerankRequest{Model: r.model, Query: query, Documents: docs})
	if err != nil {
		return nil, fmt.Errorf("marshaling rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading rerank response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reranker returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed rerankResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing rerank response: %w", err)
	}
	if len(parsed.Scores) != len(docs) {
		return nil, fmt.Errorf("reranker returned %d scores for %d documents", len(parsed.Scores), len(docs))
	}
	return parsed.Scores, nil
}
