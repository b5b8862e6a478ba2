// Package config provides unified configuration for the fundus service.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (FUNDUS_ prefix, plus a few
//     conventional names like OPENAI_API_KEY and DATABASE_URL)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the fundus service. It is resolved
// once at process start and passed explicitly to each component.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Chunking      ChunkingConfig      `yaml:"chunking"`
	Index         IndexConfig         `yaml:"index"`
	Rerank        RerankConfig        `yaml:"rerank"`
	Search        SearchConfig        `yaml:"search"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 120s
}

// EmbeddingConfig selects and parameterizes the embedding provider.
// Provider selection is a configuration-time decision; call sites depend
// only on the embedding contract.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"`     // "openai" or "local", default: "openai"
	Model      string        `yaml:"model"`        // default: "text-embedding-3-small" (openai) / "hash-v1" (local)
	APIKey     string        `yaml:"api_key"`      // required for openai
	APIKeyFile string        `yaml:"api_key_file"` // _file variant for api_key
	BaseURL    string        `yaml:"base_url"`     // optional OpenAI-compatible endpoint override
	Dimensions int           `yaml:"dimensions"`   // local provider vector size, default: 384
	BatchSize  int           `yaml:"batch_size"`   // texts per remote request, default: 64
	Timeout    time.Duration `yaml:"timeout"`      // remote request timeout, default: 30s
	MaxRetries int           `yaml:"max_retries"`  // retries on rate limiting, default: 3
}

// ChunkingConfig controls how document text is split before embedding.
type ChunkingConfig struct {
	SizeChars      int     `yaml:"size_chars"`      // default: 600
	OverlapRatio   float64 `yaml:"overlap_ratio"`   // default: 0.25
	MaxChunks      int     `yaml:"max_chunks"`      // 0 = unlimited (safety ceiling still applies)
	MinChars       int     `yaml:"min_chars"`       // skip content shorter than this, default: 50
	ContentEnabled bool    `yaml:"content_enabled"` // default: true; filename indexing always runs
}

// IndexConfig holds vector index (Qdrant) settings.
type IndexConfig struct {
	URL              string        `yaml:"url"`               // default: http://localhost:6333
	CollectionPrefix string        `yaml:"collection_prefix"` // optional deployment-level prefix
	Timeout          time.Duration `yaml:"timeout"`           // default: 15s
}

// RerankConfig controls the optional cross-encoder rescoring stage.
type RerankConfig struct {
	Enabled       bool          `yaml:"enabled"`        // default: true
	URL           string        `yaml:"url"`            // reranker service URL; empty disables reranking
	Model         string        `yaml:"model"`          // default: cross-encoder/ms-marco-MiniLM-L-6-v2
	CandidatePool int           `yaml:"candidate_pool"` // candidates sent to the reranker, default: 20
	Timeout       time.Duration `yaml:"timeout"`        // default: 10s
	Workers       int           `yaml:"workers"`        // concurrent rerank calls, default: 2
}

// SearchConfig holds retrieval-time settings.
type SearchConfig struct {
	MinScore       float32       `yaml:"min_score"`       // default: 0.01
	DefaultLimit   int           `yaml:"default_limit"`   // default: 10
	MaxVariants    int           `yaml:"max_variants"`    // multi-query variants incl. original, default: 4
	VariantTimeout time.Duration `yaml:"variant_timeout"` // per-variant search budget, default: 5s
	RRFK           int           `yaml:"rrf_k"`           // reciprocal rank fusion constant, default: 60
}

// StorageConfig holds metadata store and file storage settings.
type StorageConfig struct {
	Type      string         `yaml:"type"`       // "memory" or "postgres", default: "memory"
	UploadDir string         `yaml:"upload_dir"` // default: ./data/uploads
	Postgres  PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// MaxChunksSafetyCeiling bounds the chunk count for a single document even
// when max_chunks is configured as unlimited.
const MaxChunksSafetyCeiling = 500

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider: "openai",
			// Model is left empty so each provider applies its own default
			// (text-embedding-3-small remote, hash-v1 local).
			Dimensions: 384,
			BatchSize:  64,
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Chunking: ChunkingConfig{
			SizeChars:      600,
			OverlapRatio:   0.25,
			MaxChunks:      0,
			MinChars:       50,
			ContentEnabled: true,
		},
		Index: IndexConfig{
			URL:     "http://localhost:6333",
			Timeout: 15 * time.Second,
		},
		Rerank: RerankConfig{
			Enabled:       true,
			Model:         "cross-encoder/ms-marco-MiniLM-L-6-v2",
			CandidatePool: 20,
			Timeout:       10 * time.Second,
			Workers:       2,
		},
		Search: SearchConfig{
			MinScore:       0.01,
			DefaultLimit:   10,
			MaxVariants:    4,
			VariantTimeout: 5 * time.Second,
			RRFK:           60,
		},
		Storage: StorageConfig{
			Type:      "memory",
			UploadDir: "./data/uploads",
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
