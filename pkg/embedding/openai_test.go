package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeEmbeddings serves an OpenAI-compatible embeddings endpoint returning
// a fixed-dimension vector per input, and records batch sizes.
func fakeEmbeddings(t *testing.T, dims int, batches *[]int) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding embedding request: %v", err)
		}
		if batches != nil {
			*batches = append(*batches, len(req.Input))
		}

		type datum struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		resp := struct {
			Data []datum `json:"data"`
		}{}
		for i := range req.Input {
			vec := make([]float32, dims)
			vec[0] = float32(i + 1)
			resp.Data = append(resp.Data, datum{Embedding: vec, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func TestOpenAI_EmbedBatching(t *testing.T) {
	var batches []int
	server := httptest.NewServer(fakeEmbeddings(t, 8, &batches))
	defer server.Close()

	p, err := NewOpenAI(OpenAIConfig{
		APIKey:     "sk-test",
		BaseURL:    server.URL,
		BatchSize:  2,
		Dimensions: 8,
	})
	if err != nil {
		t.Fatal(err)
	}

	vectors, err := p.Embed(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("Embed() returned error: %v", err)
	}

	if len(vectors) != 5 {
		t.Fatalf("expected 5 vectors, got %d", len(vectors))
	}
	wantBatches := []int{2, 2, 1}
	if len(batches) != len(wantBatches) {
		t.Fatalf("expected %d requests, got %d", len(wantBatches), len(batches))
	}
	for i, n := range wantBatches {
		if batches[i] != n {
			t.Errorf("batch %d: expected %d texts, got %d", i, n, batches[i])
		}
	}
	// Vectors are returned in input order within each batch.
	if vectors[0][0] != 1 || vectors[1][0] != 2 {
		t.Error("vectors not in input order")
	}
}

func TestOpenAI_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limit exceeded","type":"requests"}}`))
	}))
	defer server.Close()

	p, err := NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL})
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Embed(context.Background(), []string{"text"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestOpenAI_Unavailable(t *testing.T) {
	server := httptest.NewServer(nil)
	server.Close() // immediately closed: connection refused

	p, err := NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL})
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Embed(context.Background(), []string{"text"})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestOpenAI_KnownModelDimensions(t *testing.T) {
	p, err := NewOpenAI(OpenAIConfig{APIKey: "sk-test", Model: "text-embedding-3-large"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Dimensions() != 3072 {
		t.Errorf("expected 3072 dimensions, got %d", p.Dimensions())
	}
	if p.ModelTag() != "openai-text-embedding-3-large" {
		t.Errorf("ModelTag() = %q", p.ModelTag())
	}
}

func TestOpenAI_RequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAI(OpenAIConfig{}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}
