package transport

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fundus-dev/fundus/pkg/api"
	"github.com/fundus-dev/fundus/pkg/index"
	"github.com/fundus-dev/fundus/pkg/ingest"
	"github.com/fundus-dev/fundus/pkg/observability"
	"github.com/fundus-dev/fundus/pkg/search"
	"github.com/fundus-dev/fundus/pkg/storage"
)

// defaultListLimit applies when GET /v1/uploads has no limit parameter.
const defaultListLimit = 20

// multipartOverhead pads the body size limit beyond the maximum file
// size to leave room for multipart framing.
const multipartOverhead = 1 << 20

// Config wires a Handler.
type Config struct {
	Pipeline *ingest.Pipeline
	Engine   *search.Engine
	Store    storage.Store
	Index    index.Index

	Limits api.ValidationConfig
	Logger *slog.Logger

	Metrics *observability.Metrics

	// MetricsPath exposes Prometheus metrics when non-empty. Gatherer
	// must be the registry the metrics were registered with.
	MetricsPath string
	Gatherer    prometheus.Gatherer
}

// Handler serves the fundus REST API.
type Handler struct {
	pipeline *ingest.Pipeline
	engine   *search.Engine
	store    storage.Store
	idx      index.Index
	limits   api.ValidationConfig
}

// NewHandler builds the routed API handler with the standard middleware
// chain: request ID, logging, panic recovery, and request metrics.
func NewHandler(cfg Config) http.Handler {
	h := &Handler{
		pipeline: cfg.Pipeline,
		engine:   cfg.Engine,
		store:    cfg.Store,
		idx:      cfg.Index,
		limits:   cfg.Limits,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/uploads", h.handleUpload)
	mux.HandleFunc("GET /v1/uploads", h.handleListUploads)
	mux.HandleFunc("POST /v1/search", h.handleSearch)
	mux.HandleFunc("POST /v1/search/advanced", h.handleAdvancedSearch)
	mux.HandleFunc("POST /v1/reindex", h.handleReindex)
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("GET /v1/status", h.handleStatus)

	if cfg.MetricsPath != "" && cfg.Gatherer != nil {
		mux.Handle("GET "+cfg.MetricsPath,
			promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	chain := Chain(
		RequestID(),
		Logging(cfg.Logger),
		Recovery(cfg.Logger),
		cfg.Metrics.Middleware,
	)
	return chain(mux)
}

// handleUpload accepts a multipart file, persists it, and runs the
// indexing pipeline. The upload succeeds as long as the file is stored;
// indexing failures are reported in the response status.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBody := h.limits.MaxUploadBytes
	if maxBody <= 0 {
		maxBody = api.DefaultValidationConfig().MaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBody+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteAPIError(w, api.NewInvalidRequestError("file", "multipart form must carry a 'file' part"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteAPIError(w, api.NewInvalidRequestError("file", "reading uploaded file failed"))
		return
	}

	up, err := h.pipeline.Ingest(r.Context(), header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, api.UploadResponse{
		UploadID:  up.ID,
		Filename:  up.Filename,
		SizeBytes: up.SizeBytes,
		Indexing:  up.Indexing,
	})
}

// handleListUploads serves a paginated listing, newest first. NextOffset
// is -1 on the last page.
func (h *Handler) handleListUploads(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil || limit <= 0 {
		WriteAPIError(w, api.NewInvalidRequestError("limit", "limit must be a positive integer"))
		return
	}
	if h.limits.MaxLimit > 0 && limit > h.limits.MaxLimit {
		limit = h.limits.MaxLimit
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		WriteAPIError(w, api.NewInvalidRequestError("offset", "offset must be a non-negative integer"))
		return
	}

	items, hasMore, err := h.store.ListUploads(r.Context(), limit, offset)
	if err != nil {
		WriteError(w, err)
		return
	}
	if items == nil {
		items = []api.Upload{}
	}

	next := -1
	if hasMore {
		next = offset + len(items)
	}
	writeJSON(w, http.StatusOK, api.UploadList{Items: items, NextOffset: next})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req api.SearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if apiErr := api.ValidateQuery(req.Text, req.Limit, h.limits); apiErr != nil {
		WriteAPIError(w, apiErr)
		return
	}

	resp, err := h.engine.Search(r.Context(), req)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAdvancedSearch(w http.ResponseWriter, r *http.Request) {
	var req api.AdvancedSearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if apiErr := api.ValidateQuery(req.Text, req.Limit, h.limits); apiErr != nil {
		WriteAPIError(w, apiErr)
		return
	}

	resp, err := h.engine.AdvancedSearch(r.Context(), req)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleReindex re-runs indexing for one upload or for everything.
func (h *Handler) handleReindex(w http.ResponseWriter, r *http.Request) {
	var req api.ReindexRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	switch {
	case req.All:
		resp, err := h.pipeline.ReindexAll(r.Context())
		if err != nil {
			WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)

	case req.UploadID != "":
		st, err := h.pipeline.Reindex(r.Context(), req.UploadID)
		if err != nil {
			WriteError(w, err)
			return
		}
		resp := api.ReindexResponse{Statuses: []api.IndexingStatus{st}}
		if st.Success {
			resp.Reindexed = 1
		} else {
			resp.Failed = 1
		}
		writeJSON(w, http.StatusOK, resp)

	default:
		WriteAPIError(w, api.NewInvalidRequestError("upload_id", "either upload_id or all must be set"))
	}
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusResponse reports per-dependency health. The index being down is
// a degradation (search falls back to keyword mode), while the store
// being down makes the service unavailable.
type statusResponse struct {
	Storage string `json:"storage"`
	Index   string `json:"index"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Storage: "ok", Index: "ok"}
	status := http.StatusOK

	if err := h.store.HealthCheck(r.Context()); err != nil {
		resp.Storage = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if err := h.idx.Healthy(r.Context()); err != nil {
		resp.Index = "unavailable"
	}

	writeJSON(w, status, resp)
}

// decodeJSON decodes a request body, writing a 400 on malformed input.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteAPIError(w, api.NewInvalidRequestError("body", "request body must be valid JSON"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
