package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fundus-dev/fundus/pkg/debug"
)

// QdrantConfig holds connection settings for the Qdrant HTTP API.
type QdrantConfig struct {
	URL     string
	APIKey  string        // optional, sent as api-key header
	Timeout time.Duration // per-request timeout, default: 15s
}

// Qdrant implements Index against the Qdrant HTTP API.
type Qdrant struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time check that Qdrant implements Index.
var _ Index = (*Qdrant)(nil)

// NewQdrant creates a Qdrant-backed index client.
func NewQdrant(cfg QdrantConfig) *Qdrant {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Qdrant{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// qdrantCollectionInfo is the subset of GET /collections/{name} we inspect.
type qdrantCollectionInfo struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

// EnsureCollection creates the collection if missing and verifies the
// vector size if it already exists.
// GET /collections/{name}, then PUT /collections/{name} on 404.
func (q *Qdrant) EnsureCollection(ctx context.Context, name string, dimensions int) error {
	status, body, err := q.do(ctx, http.MethodGet, "/collections/"+name, nil)
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK:
		var info qdrantCollectionInfo
		if err := json.Unmarshal(body, &info); err != nil {
			return fmt.Errorf("parsing collection info: %w", err)
		}
		if got := info.Result.Config.Params.Vectors.Size; got != dimensions {
			return fmt.Errorf("%w: collection %q has size %d, embedding model produces %d",
				ErrDimensionMismatch, name, got, dimensions)
		}
		return nil
	case http.StatusNotFound:
		// fall through to create
	default:
		return fmt.Errorf("qdrant get collection returned status %d: %s", status, string(body))
	}

	createBody := map[string]any{
		"vectors": map[string]any{
			"size":     dimensions,
			"distance": "Cosine",
		},
	}
	status, body, err = q.do(ctx, http.MethodPut, "/collections/"+name, createBody)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("qdrant create collection returned status %d: %s", status, string(body))
	}
	return nil
}

// Upsert writes points with wait=true so a subsequent query sees them.
// PUT /collections/{name}/points?wait=true
func (q *Qdrant) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	wire := make([]map[string]any, len(points))
	for i, p := range points {
		wire[i] = map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		}
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", collection)
	status, body, err := q.do(ctx, http.MethodPut, path, map[string]any{"points": wire})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("qdrant upsert returned status %d: %s", status, string(body))
	}
	return nil
}

// qdrantSearchResponse represents Qdrant's search response.
type qdrantSearchResponse struct {
	Result []struct {
		Score   float32 `json:"score"`
		Payload Payload `json:"payload"`
	} `json:"result"`
}

// Query performs a nearest-neighbor search in the named collection.
// POST /collections/{name}/points/search
func (q *Qdrant) Query(ctx context.Context, collection string, vector []float32, limit int, minScore float32) ([]Match, error) {
	searchReq := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if minScore > 0 {
		searchReq["score_threshold"] = minScore
	}

	path := fmt.Sprintf("/collections/%s/points/search", collection)
	status, body, err := q.do(ctx, http.MethodPost, path, searchReq)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("qdrant search returned status %d: %s", status, string(body))
	}

	var searchResp qdrantSearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	matches := make([]Match, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		matches = append(matches, Match{Score: r.Score, Payload: r.Payload})
	}
	debug.Log("index", "qdrant search",
		"collection", collection, "limit", limit, "min_score", minScore, "hits", len(matches))
	return matches, nil
}

// DeleteUpload removes all points whose payload matches the upload ID.
// POST /collections/{name}/points/delete?wait=true
func (q *Qdrant) DeleteUpload(ctx context.Context, collection, uploadID string) error {
	deleteReq := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "upload_id", "match": map[string]any{"value": uploadID}},
			},
		},
	}

	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", collection)
	status, body, err := q.do(ctx, http.MethodPost, path, deleteReq)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		// Nothing indexed for this collection yet.
		return nil
	}
	if status != http.StatusOK {
		return fmt.Errorf("qdrant delete points returned status %d: %s", status, string(body))
	}
	return nil
}

// Healthy checks backend reachability via the collections listing.
func (q *Qdrant) Healthy(ctx context.Context) error {
	status, body, err := q.do(ctx, http.MethodGet, "/collections", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, status, string(body))
	}
	return nil
}

// do sends one request and returns the status code and body. Transport
// failures are wrapped in ErrUnavailable so callers can trigger fallback.
func (q *Qdrant) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshaling qdrant request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("creating qdrant request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading qdrant response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}
