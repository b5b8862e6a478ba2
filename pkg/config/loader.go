package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, FUNDUS_CONFIG env, ./config.yaml, /etc/fundus/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	// Apply environment variable overrides.
	applyEnvOverrides(&cfg)

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. FUNDUS_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/fundus/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	// Explicit path takes priority.
	if configPath != "" {
		return configPath
	}

	// Check FUNDUS_CONFIG env var.
	if envPath := os.Getenv("FUNDUS_CONFIG"); envPath != "" {
		return envPath
	}

	// Check common locations.
	candidates := []string{
		"config.yaml",
		"/etc/fundus/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields. FUNDUS_*
// names are authoritative; a few conventional names (OPENAI_API_KEY,
// QDRANT_URL, DATABASE_URL) are honored so existing deployments keep
// working without a config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FUNDUS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("FUNDUS_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("FUNDUS_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("FUNDUS_EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = v
	}

	if v := os.Getenv("FUNDUS_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chunking.SizeChars = n
		}
	}
	if v := os.Getenv("FUNDUS_CHUNK_OVERLAP_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Chunking.OverlapRatio = f
		}
	}
	if v := os.Getenv("FUNDUS_MAX_CHUNKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chunking.MaxChunks = n
		}
	}
	if v := os.Getenv("FUNDUS_CONTENT_EMBED"); v != "" {
		cfg.Chunking.ContentEnabled = v == "1" || strings.EqualFold(v, "true")
	}

	if v := os.Getenv("QDRANT_URL"); v != "" {
		cfg.Index.URL = v
	}
	if v := os.Getenv("FUNDUS_COLLECTION_PREFIX"); v != "" {
		cfg.Index.CollectionPrefix = v
	}

	if v := os.Getenv("FUNDUS_RERANK"); v != "" {
		cfg.Rerank.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("FUNDUS_RERANK_URL"); v != "" {
		cfg.Rerank.URL = v
	}
	if v := os.Getenv("FUNDUS_RERANK_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Rerank.CandidatePool = n
		}
	}

	if v := os.Getenv("FUNDUS_MIN_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.Search.MinScore = float32(f)
		}
	}
	if v := os.Getenv("FUNDUS_VARIANT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Search.VariantTimeout = d
		}
	}

	if v := os.Getenv("FUNDUS_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("FUNDUS_UPLOAD_DIR"); v != "" {
		cfg.Storage.UploadDir = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" && cfg.Storage.Postgres.DSN == "" {
		cfg.Storage.Postgres.DSN = v
	}
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. For each field ending in _file, if the value field is empty
// and the file field is set, the file is read, whitespace is trimmed, and
// the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// embedding.api_key_file -> embedding.api_key
	if cfg.Embedding.APIKeyFile != "" && cfg.Embedding.APIKey == "" {
		val, err := readSecretFile(cfg.Embedding.APIKeyFile)
		if err != nil {
			return fmt.Errorf("embedding.api_key_file: %w", err)
		}
		cfg.Embedding.APIKey = val
	}

	// storage.postgres.dsn_file -> storage.postgres.dsn
	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
