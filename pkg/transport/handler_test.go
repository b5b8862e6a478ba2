package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fundus-dev/fundus/pkg/api"
	"github.com/fundus-dev/fundus/pkg/chunker"
	"github.com/fundus-dev/fundus/pkg/embedding"
	"github.com/fundus-dev/fundus/pkg/index"
	"github.com/fundus-dev/fundus/pkg/ingest"
	"github.com/fundus-dev/fundus/pkg/observability"
	"github.com/fundus-dev/fundus/pkg/search"
	"github.com/fundus-dev/fundus/pkg/storage/memory"
)

// fakeIndex keeps points in memory and scores queries by dot product,
// which matches cosine similarity for the normalized local embeddings.
type fakeIndex struct {
	mu          sync.Mutex
	collections map[string]int
	points      map[string][]index.Point

	queryErr   error
	healthyErr error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		collections: make(map[string]int),
		points:      make(map[string][]index.Point),
	}
}

func (f *fakeIndex) EnsureCollection(ctx context.Context, name string, dims int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[name] = dims
	return nil
}

func (f *fakeIndex) Upsert(ctx context.Context, collection string, points []index.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	byID := make(map[string]index.Point)
	for _, p := range f.points[collection] {
		byID[p.ID] = p
	}
	for _, p := range points {
		byID[p.ID] = p
	}
	merged := make([]index.Point, 0, len(byID))
	for _, p := range byID {
		merged = append(merged, p)
	}
	f.points[collection] = merged
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, collection string, vector []float32, limit int, minScore float32) ([]index.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if _, ok := f.collections[collection]; !ok {
		return nil, index.ErrCollectionNotFound
	}

	var matches []index.Match
	for _, p := range f.points[collection] {
		var score float32
		for i := range vector {
			score += vector[i] * p.Vector[i]
		}
		if score >= minScore {
			matches = append(matches, index.Match{Score: score, Payload: p.Payload})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (f *fakeIndex) DeleteUpload(ctx context.Context, collection, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []index.Point
	for _, p := range f.points[collection] {
		if p.Payload.UploadID != uploadID {
			kept = append(kept, p)
		}
	}
	f.points[collection] = kept
	return nil
}

func (f *fakeIndex) Healthy(ctx context.Context) error { return f.healthyErr }

var _ index.Index = (*fakeIndex)(nil)

type testStack struct {
	handler http.Handler
	idx     *fakeIndex
	store   *memory.Store
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	provider, err := embedding.NewLocal(embedding.LocalConfig{Dimensions: 8})
	if err != nil {
		t.Fatalf("creating local provider: %v", err)
	}
	files, err := ingest.NewLocalFiles(t.TempDir())
	if err != nil {
		t.Fatalf("creating file store: %v", err)
	}

	store := memory.New()
	idx := newFakeIndex()
	limits := api.DefaultValidationConfig()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	pipeline := ingest.New(ingest.Config{
		Store:          store,
		Files:          files,
		Chunker:        chunker.New(chunker.Config{SizeChars: 40, OverlapRatio: 0.25, MinChars: 10}),
		Provider:       provider,
		Index:          idx,
		ContentEnabled: true,
		Limits:         limits,
		Metrics:        metrics,
	})

	filenameCol, contentCol := pipeline.Collections()
	engine := search.New(search.Config{
		Store:              store,
		Index:              idx,
		Provider:           provider,
		FilenameCollection: filenameCol,
		ContentCollection:  contentCol,
		MinScore:           0.01,
	})

	handler := NewHandler(Config{
		Pipeline:    pipeline,
		Engine:      engine,
		Store:       store,
		Index:       idx,
		Limits:      limits,
		Metrics:     metrics,
		MetricsPath: "/metrics",
		Gatherer:    registry,
	})

	return &testStack{handler: handler, idx: idx, store: store}
}

// uploadFile posts a multipart upload and returns the decoded response.
func uploadFile(t *testing.T, handler http.Handler, filename, content string) api.UploadResponse {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	part.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var resp api.UploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding upload response: %v", err)
	}
	return resp
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandler_UploadAndList(t *testing.T) {
	s := newTestStack(t)

	resp := uploadFile(t, s.handler, "release-notes.txt", "the new release ships faster indexing and bug fixes")
	if resp.UploadID == "" {
		t.Error("upload ID missing")
	}
	if !resp.Indexing.Success {
		t.Errorf("indexing failed: %+v", resp.Indexing)
	}
	if resp.Indexing.ChunksIndexed < 2 {
		t.Errorf("ChunksIndexed = %d, want filename + content chunks", resp.Indexing.ChunksIndexed)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/uploads", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list api.UploadList
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].ID != resp.UploadID {
		t.Errorf("list items = %+v", list.Items)
	}
	if list.NextOffset != -1 {
		t.Errorf("NextOffset = %d, want -1 on last page", list.NextOffset)
	}
}

func TestHandler_ListPagination(t *testing.T) {
	s := newTestStack(t)
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		uploadFile(t, s.handler, name, "paging test document with enough text")
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/uploads?limit=2", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var list api.UploadList
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(list.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(list.Items))
	}
	if list.NextOffset != 2 {
		t.Errorf("NextOffset = %d, want 2", list.NextOffset)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/uploads?limit=2&offset=2", nil)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decoding second page: %v", err)
	}
	if len(list.Items) != 1 || list.NextOffset != -1 {
		t.Errorf("second page: %d items, NextOffset %d", len(list.Items), list.NextOffset)
	}
}

func TestHandler_ListRejectsBadParams(t *testing.T) {
	s := newTestStack(t)
	for _, path := range []string{"/v1/uploads?limit=zero", "/v1/uploads?limit=-1", "/v1/uploads?offset=-5"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestHandler_UploadRejectsMissingFile(t *testing.T) {
	s := newTestStack(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/uploads", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var errResp api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("decoding error response: %v", err)
	}
	if errResp.Error == nil || errResp.Error.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("error = %+v", errResp.Error)
	}
}

func TestHandler_SearchVectorMode(t *testing.T) {
	s := newTestStack(t)
	resp := uploadFile(t, s.handler, "deploy-guide.txt", "kubernetes deployment rollout strategy and rollback steps")

	rec := postJSON(t, s.handler, "/v1/search", api.SearchRequest{Text: "kubernetes deployment rollout"})
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d, body: %s", rec.Code, rec.Body.String())
	}

	var sr api.SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&sr); err != nil {
		t.Fatalf("decoding search response: %v", err)
	}
	if sr.Mode != api.ModeVector {
		t.Errorf("Mode = %q, want vector", sr.Mode)
	}
	if len(sr.Results) == 0 || sr.Results[0].UploadID != resp.UploadID {
		t.Errorf("results = %+v", sr.Results)
	}
}

func TestHandler_SearchFallsBackToKeyword(t *testing.T) {
	s := newTestStack(t)
	uploadFile(t, s.handler, "incident-report.txt", "postgres connection pool exhaustion during failover")

	s.idx.queryErr = index.ErrUnavailable

	rec := postJSON(t, s.handler, "/v1/search", api.SearchRequest{Text: "connection pool exhaustion"})
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d, body: %s", rec.Code, rec.Body.String())
	}

	var sr api.SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&sr); err != nil {
		t.Fatalf("decoding search response: %v", err)
	}
	if sr.Mode != api.ModeKeyword {
		t.Errorf("Mode = %q, want keyword", sr.Mode)
	}
	if len(sr.Results) != 1 {
		t.Errorf("got %d results", len(sr.Results))
	}
}

func TestHandler_SearchValidation(t *testing.T) {
	s := newTestStack(t)

	rec := postJSON(t, s.handler, "/v1/search", api.SearchRequest{Text: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty query: status = %d, want 400", rec.Code)
	}

	rec = postJSON(t, s.handler, "/v1/search", api.SearchRequest{Text: "ok", Limit: 10_000})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("oversized limit: status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader("not json"))
	rec2 := httptest.NewRecorder()
	s.handler.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", rec2.Code)
	}
}

func TestHandler_AdvancedSearch(t *testing.T) {
	s := newTestStack(t)
	uploadFile(t, s.handler, "billing-faq.txt", "how invoices are generated and when billing runs each month")

	rec := postJSON(t, s.handler, "/v1/search/advanced", api.AdvancedSearchRequest{Text: "when does the billing run"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}

	var sr api.AdvancedSearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&sr); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if sr.Mode != api.ModeVector {
		t.Errorf("Mode = %q", sr.Mode)
	}
	if len(sr.QueryVariants) == 0 {
		t.Error("no query variants reported")
	}
	if len(sr.Results) == 0 {
		t.Error("no results")
	}
}

func TestHandler_Reindex(t *testing.T) {
	s := newTestStack(t)
	resp := uploadFile(t, s.handler, "manual.txt", "operator manual covering installation and upgrades")

	rec := postJSON(t, s.handler, "/v1/reindex", api.ReindexRequest{UploadID: resp.UploadID})
	if rec.Code != http.StatusOK {
		t.Fatalf("reindex status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var rr api.ReindexResponse
	if err := json.NewDecoder(rec.Body).Decode(&rr); err != nil {
		t.Fatalf("decoding reindex response: %v", err)
	}
	if rr.Reindexed != 1 || rr.Failed != 0 {
		t.Errorf("reindex summary = %+v", rr)
	}
}

func TestHandler_ReindexAll(t *testing.T) {
	s := newTestStack(t)
	uploadFile(t, s.handler, "one.txt", "first document with searchable content")
	uploadFile(t, s.handler, "two.txt", "second document with searchable content")

	rec := postJSON(t, s.handler, "/v1/reindex", api.ReindexRequest{All: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var rr api.ReindexResponse
	if err := json.NewDecoder(rec.Body).Decode(&rr); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if rr.Reindexed != 2 {
		t.Errorf("Reindexed = %d, want 2", rr.Reindexed)
	}
}

func TestHandler_ReindexErrors(t *testing.T) {
	s := newTestStack(t)

	rec := postJSON(t, s.handler, "/v1/reindex", api.ReindexRequest{UploadID: "up_missing"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown upload: status = %d, want 404", rec.Code)
	}

	rec = postJSON(t, s.handler, "/v1/reindex", api.ReindexRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty selector: status = %d, want 400", rec.Code)
	}
}

func TestHandler_Healthz(t *testing.T) {
	s := newTestStack(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandler_StatusReportsIndexOutage(t *testing.T) {
	s := newTestStack(t)
	s.idx.healthyErr = index.ErrUnavailable

	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	// Index loss is a degradation, not an outage: keyword search still works.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var st statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if st.Storage != "ok" || st.Index != "unavailable" {
		t.Errorf("status = %+v", st)
	}
}

func TestHandler_MetricsEndpoint(t *testing.T) {
	s := newTestStack(t)
	uploadFile(t, s.handler, "metrics-probe.txt", "document uploaded to move the counters")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "fundus_uploads_total") {
		t.Error("fundus_uploads_total missing from metrics output")
	}
	if !strings.Contains(body, "fundus_requests_total") {
		t.Error("fundus_requests_total missing from metrics output")
	}
}

func TestHandler_RequestIDEchoed(t *testing.T) {
	s := newTestStack(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-abc-123")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-abc-123" {
		t.Errorf("X-Request-ID = %q, want echoed value", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("no request ID generated")
	}
}
