// Command mock-rerank runs a deterministic cross-encoder scoring server
// for local development and conformance testing. It scores each document
// by its token overlap with the query, so rankings are predictable
// without a real model. Point rerank.url at http://localhost:9191/rerank.
//
// Configuration:
//
//	MOCK_RERANK_PORT - Listen port (default: 9191)
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode"
)

func main() {
	port := os.Getenv("MOCK_RERANK_PORT")
	if port == "" {
		port = "9191"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /rerank", handleRerank)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock reranker starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock reranker failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock reranker shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

func handleRerank(w http.ResponseWriter, r *http.Request) {
	var req rerankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	queryTokens := tokenize(req.Query)
	scores := make([]float64, len(req.Documents))
	for i, doc := range req.Documents {
		scores[i] = overlapScore(queryTokens, tokenize(doc))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rerankResponse{Scores: scores})
}

// overlapScore counts shared distinct tokens, scaled to resemble
// cross-encoder logits.
func overlapScore(query, doc map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}
	shared := 0
	for tok := range query {
		if doc[tok] {
			shared++
		}
	}
	return 10 * float64(shared) / float64(len(query))
}

func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		tokens[f] = true
	}
	return tokens
}
