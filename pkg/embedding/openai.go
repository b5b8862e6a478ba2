package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// modelDimensions maps known OpenAI embedding models to their vector size.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIConfig holds settings for the remote OpenAI-compatible provider.
type OpenAIConfig struct {
	APIKey     string
	Model      string        // default: text-embedding-3-small
	BaseURL    string        // optional OpenAI-compatible endpoint override
	BatchSize  int           // texts per request, default: 64
	Timeout    time.Duration // per-request timeout, default: 30s
	Dimensions int           // override for models not in the known table
}

// OpenAIProvider embeds text via the OpenAI embeddings API (or any
// compatible endpoint). Inputs are batched to bound request count.
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	batchSize int
	timeout   time.Duration
	dims      int
}

// Compile-time check that OpenAIProvider implements Provider.
var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAI creates a remote embedding provider.
func NewOpenAI(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embedding provider: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	dims := cfg.Dimensions
	if dims == 0 {
		dims = modelDimensions[cfg.Model]
	}
	if dims == 0 {
		dims = 1536
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		timeout:   cfg.Timeout,
		dims:      dims,
	}, nil
}

// Embed sends the texts to the embeddings endpoint in batches of at most
// BatchSize and returns the vectors in input order.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := p.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

func (p *OpenAIProvider) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: texts,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d",
			ErrProviderUnavailable, len(texts), len(resp.Data))
	}

	// Order results by index.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("%w: embedding index %d out of range [0, %d)",
				ErrProviderUnavailable, d.Index, len(texts))
		}
		vectors[d.Index] = d.Embedding
	}

	return vectors, nil
}

// classifyOpenAIError maps API failures onto the package's error taxonomy.
// HTTP 429 becomes ErrRateLimited so the retry wrapper can back off;
// everything else is ErrProviderUnavailable.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	}

	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}

// Dimensions returns the dimensionality of the embedding vectors.
func (p *OpenAIProvider) Dimensions() int {
	return p.dims
}

// ModelTag returns the collection namespace tag for this provider.
func (p *OpenAIProvider) ModelTag() string {
	return "openai-" + sanitizeTag(p.model)
}
