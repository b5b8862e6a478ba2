package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		out[mf.GetName()] = mf
	}
	return out
}

func TestMetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	// Touch each collector so it shows up in the gather output.
	m.RecordUpload(true)
	m.RecordSearch("vector", 0.1)
	m.RecordEmbeddings("local-hash-v1-384", 3)
	m.RecordRerank(0.05)

	families := gather(t, reg)
	for _, name := range []string{
		"fundus_uploads_total",
		"fundus_searches_total",
		"fundus_embeddings_total",
		"fundus_search_duration_seconds",
		"fundus_rerank_duration_seconds",
	} {
		if _, ok := families[name]; !ok {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestRecordUpload_Outcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordUpload(true)
	m.RecordUpload(true)
	m.RecordUpload(false)

	mf := gather(t, reg)["fundus_uploads_total"]
	counts := map[string]float64{}
	for _, metric := range mf.GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "outcome" {
				counts[label.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	if counts["indexed"] != 2 || counts["partial"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestRecordEmbeddings_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordEmbeddings("openai-text-embedding-3-small", 64)
	m.RecordEmbeddings("openai-text-embedding-3-small", 10)

	mf := gather(t, reg)["fundus_embeddings_total"]
	if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 74 {
		t.Errorf("embeddings total = %v, want 74", got)
	}
}

func TestNilMetrics_Noop(t *testing.T) {
	var m *Metrics
	// Must not panic.
	m.RecordUpload(true)
	m.RecordSearch("keyword", 0.2)
	m.RecordEmbeddings("x", 1)
	m.RecordRerank(0.1)

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestMiddleware_RecordsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/uploads", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := m.Middleware(mux)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/uploads", nil))

	mf := gather(t, reg)["fundus_requests_total"]
	if mf == nil || len(mf.GetMetric()) != 1 {
		t.Fatalf("expected one requests_total series, got %v", mf)
	}
	labels := map[string]string{}
	for _, label := range mf.GetMetric()[0].GetLabel() {
		labels[label.GetName()] = label.GetValue()
	}
	if labels["status"] != "2xx" || labels["method"] != http.MethodGet {
		t.Errorf("labels = %v", labels)
	}
	if labels["path"] != "GET /v1/uploads" {
		t.Errorf("path label = %q", labels["path"])
	}
}
