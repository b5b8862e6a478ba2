package transport

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fundus-dev/fundus/pkg/api"
)

func TestChain_OrdersOutermostFirst(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(mw("first"), mw("second"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	want := []string{"first", "second", "handler"}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	var seen string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Error("no request ID in context")
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("header %q != context %q", got, seen)
	}
}

func TestRequestID_HonorsClientHeader(t *testing.T) {
	var seen string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-supplied")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "client-supplied" {
		t.Errorf("request ID = %q", seen)
	}
}

func TestRecovery_ConvertsPanicToServerError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var errResp api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("decoding error response: %v", err)
	}
	if errResp.Error == nil || errResp.Error.Type != api.ErrorTypeServerError {
		t.Errorf("error = %+v", errResp.Error)
	}
}

func TestLogging_EmitsRequestLine(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/uploads", nil))

	line := buf.String()
	if !strings.Contains(line, "request completed") {
		t.Errorf("log line missing completion message: %s", line)
	}
	if !strings.Contains(line, "status=201") {
		t.Errorf("log line missing status: %s", line)
	}
	if !strings.Contains(line, "path=/v1/uploads") {
		t.Errorf("log line missing path: %s", line)
	}
}

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		err  *api.APIError
		want int
	}{
		{api.NewInvalidRequestError("x", "bad"), http.StatusBadRequest},
		{api.NewNotFoundError("gone"), http.StatusNotFound},
		{api.NewTooManyRequestsError("slow down"), http.StatusTooManyRequests},
		{api.NewServerError("broken"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatusFromError(tt.err); got != tt.want {
			t.Errorf("HTTPStatusFromError(%s) = %d, want %d", tt.err.Type, got, tt.want)
		}
	}
}
