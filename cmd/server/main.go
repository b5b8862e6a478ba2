// Command server runs the fundus document search service.
//
// Configuration is layered: built-in defaults, an optional YAML file
// (-config flag, FUNDUS_CONFIG, ./config.yaml, /etc/fundus/config.yaml),
// and FUNDUS_* environment variable overrides. A .env file in the
// working directory is loaded into the environment when present.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fundus-dev/fundus/pkg/api"
	"github.com/fundus-dev/fundus/pkg/chunker"
	"github.com/fundus-dev/fundus/pkg/config"
	"github.com/fundus-dev/fundus/pkg/debug"
	"github.com/fundus-dev/fundus/pkg/embedding"
	"github.com/fundus-dev/fundus/pkg/index"
	"github.com/fundus-dev/fundus/pkg/ingest"
	"github.com/fundus-dev/fundus/pkg/mcpserver"
	"github.com/fundus-dev/fundus/pkg/observability"
	"github.com/fundus-dev/fundus/pkg/search"
	"github.com/fundus-dev/fundus/pkg/storage"
	"github.com/fundus-dev/fundus/pkg/storage/memory"
	"github.com/fundus-dev/fundus/pkg/storage/postgres"
	"github.com/fundus-dev/fundus/pkg/transport"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	// Optional; deployments usually set environment variables directly.
	_ = godotenv.Load()

	debug.Init("", "")

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx := context.Background()

	provider, err := buildProvider(cfg.Embedding)
	if err != nil {
		return err
	}
	slog.Info("embedding provider ready",
		"provider", cfg.Embedding.Provider, "model_tag", provider.ModelTag(), "dimensions", provider.Dimensions())

	store, err := buildStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	files, err := ingest.NewLocalFiles(cfg.Storage.UploadDir)
	if err != nil {
		return err
	}

	idx := index.NewQdrant(index.QdrantConfig{
		URL:     cfg.Index.URL,
		Timeout: cfg.Index.Timeout,
	})

	var metrics *observability.Metrics
	var gatherer prometheus.Gatherer
	if cfg.Observability.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
		gatherer = registry
	}

	limits := api.DefaultValidationConfig()

	pipeline := ingest.New(ingest.Config{
		Store: store,
		Files: files,
		Chunker: chunker.New(chunker.Config{
			SizeChars:    cfg.Chunking.SizeChars,
			OverlapRatio: cfg.Chunking.OverlapRatio,
			MaxChunks:    cfg.Chunking.MaxChunks,
			MinChars:     cfg.Chunking.MinChars,
		}),
		Provider:         provider,
		Index:            idx,
		CollectionPrefix: cfg.Index.CollectionPrefix,
		ContentEnabled:   cfg.Chunking.ContentEnabled,
		Limits:           limits,
		Metrics:          metrics,
	})
	filenameCol, contentCol := pipeline.Collections()
	slog.Info("collections resolved", "filename", filenameCol, "content", contentCol)

	var reranker search.Reranker
	if cfg.Rerank.Enabled && cfg.Rerank.URL != "" {
		reranker = search.NewHTTPReranker(search.HTTPRerankerConfig{
			URL:     cfg.Rerank.URL,
			Model:   cfg.Rerank.Model,
			Timeout: cfg.Rerank.Timeout,
			Workers: cfg.Rerank.Workers,
		})
		slog.Info("reranker enabled", "url", cfg.Rerank.URL, "model", cfg.Rerank.Model)
	}

	engine := search.New(search.Config{
		Store:              store,
		Index:              idx,
		Provider:           provider,
		FilenameCollection: filenameCol,
		ContentCollection:  contentCol,
		MinScore:           cfg.Search.MinScore,
		DefaultLimit:       cfg.Search.DefaultLimit,
		Reranker:           reranker,
		RerankPool:         cfg.Rerank.CandidatePool,
		MaxVariants:        cfg.Search.MaxVariants,
		VariantTimeout:     cfg.Search.VariantTimeout,
		RRFK:               cfg.Search.RRFK,
		Metrics:            metrics,
	})

	metricsPath := ""
	if cfg.Observability.Metrics.Enabled {
		metricsPath = cfg.Observability.Metrics.Path
	}
	apiHandler := transport.NewHandler(transport.Config{
		Pipeline:    pipeline,
		Engine:      engine,
		Store:       store,
		Index:       idx,
		Limits:      limits,
		Metrics:     metrics,
		MetricsPath: metricsPath,
		Gatherer:    gatherer,
	})

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpserver.Handler(mcpserver.New(mcpserver.Config{
		Engine:  engine,
		Store:   store,
		Version: version,
	})))
	mux.Handle("/", apiHandler)

	server := transport.NewServer(mux, transport.ServerConfig{
		Addr:            fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: transport.DefaultServerConfig().ShutdownTimeout,
		Logger:          slog.Default(),
	})
	return server.ListenAndServe()
}

// buildProvider selects the embedding provider. The remote provider is
// wrapped with rate-limit retries.
func buildProvider(cfg config.EmbeddingConfig) (embedding.Provider, error) {
	switch cfg.Provider {
	case "openai":
		p, err := embedding.NewOpenAI(embedding.OpenAIConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			BatchSize: cfg.BatchSize,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("creating embedding provider: %w", err)
		}
		return embedding.NewWithRetry(p, embedding.RetryConfig{MaxRetries: cfg.MaxRetries}), nil

	case "local":
		p, err := embedding.NewLocal(embedding.LocalConfig{
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("creating embedding provider: %w", err)
		}
		return p, nil

	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// buildStore selects the metadata store backend.
func buildStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "memory":
		slog.Info("storage ready", "type", "memory")
		return memory.New(), nil

	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		slog.Info("storage ready", "type", "postgres")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
