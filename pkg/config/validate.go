package config

import "fmt"

// Validate checks the configuration for invalid values. It is called by
// Load after all sources are applied, so components can assume a valid
// Config at construction time.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Embedding.Provider {
	case "openai", "local":
	default:
		return fmt.Errorf("embedding.provider must be \"openai\" or \"local\", got %q", c.Embedding.Provider)
	}
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.api_key is required for the openai provider")
	}
	if c.Embedding.Provider == "local" && c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive for the local provider, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding.batch_size must be positive, got %d", c.Embedding.BatchSize)
	}

	if c.Chunking.SizeChars <= 0 {
		return fmt.Errorf("chunking.size_chars must be positive, got %d", c.Chunking.SizeChars)
	}
	if c.Chunking.OverlapRatio < 0 || c.Chunking.OverlapRatio >= 1 {
		return fmt.Errorf("chunking.overlap_ratio must be in [0, 1), got %g", c.Chunking.OverlapRatio)
	}
	if c.Chunking.MaxChunks < 0 {
		return fmt.Errorf("chunking.max_chunks must not be negative, got %d", c.Chunking.MaxChunks)
	}

	if c.Index.URL == "" {
		return fmt.Errorf("index.url is required")
	}

	if c.Rerank.CandidatePool <= 0 {
		return fmt.Errorf("rerank.candidate_pool must be positive, got %d", c.Rerank.CandidatePool)
	}
	if c.Rerank.Workers <= 0 {
		return fmt.Errorf("rerank.workers must be positive, got %d", c.Rerank.Workers)
	}

	if c.Search.MinScore < 0 || c.Search.MinScore > 1 {
		return fmt.Errorf("search.min_score must be in [0, 1], got %g", c.Search.MinScore)
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.default_limit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxVariants < 1 {
		return fmt.Errorf("search.max_variants must be at least 1, got %d", c.Search.MaxVariants)
	}
	if c.Search.RRFK <= 0 {
		return fmt.Errorf("search.rrf_k must be positive, got %d", c.Search.RRFK)
	}

	switch c.Storage.Type {
	case "memory", "postgres":
	default:
		return fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type)
	}
	if c.Storage.Type == "postgres" && c.Storage.Postgres.DSN == "" {
		return fmt.Errorf("storage.postgres.dsn is required when storage.type is postgres")
	}

	return nil
}
