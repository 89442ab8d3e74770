package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// API key (required for all AI operations; read directly by Genkit)
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	// Model configuration
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	// Temperature range: 0.0 (deterministic) to 2.0 (maximum creativity)
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	// MaxTokens range: 1 to 2,097,152 (Gemini 2.5 max context window)
	if c.MaxTokens < 1 || c.MaxTokens > 2097152 {
		return fmt.Errorf("%w: must be between 1 and 2,097,152, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	// Embedding and retrieval
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedder)
	}
	if c.EmbedderDimensions < 1 || c.EmbedderDimensions > 4096 {
		return fmt.Errorf("%w: embedder_dimensions must be between 1 and 4096, got %d",
			ErrInvalidEmbedder, c.EmbedderDimensions)
	}
	if c.RetrievalTopK < 1 || c.RetrievalTopK > MaxRetrievalTopK {
		return fmt.Errorf("%w: must be between 1 and %d, got %d",
			ErrInvalidTopK, MaxRetrievalTopK, c.RetrievalTopK)
	}

	// HTTP server
	if c.ServerAddr == "" {
		return fmt.Errorf("%w: server_addr cannot be empty", ErrInvalidServerAddr)
	}

	// PostgreSQL
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set in config.yaml",
			ErrInvalidPostgresPassword)
	}
	if c.PostgresPassword == "simplechat_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}
	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// Modern SSL modes only; allow/prefer are deprecated and vulnerable to
	// downgrade.
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if c.PostgresSSLMode == "" {
		return fmt.Errorf("%w: postgres_ssl_mode is empty (should have default from setDefaults)",
			ErrInvalidPostgresSSLMode)
	}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	// Record sizing: the threshold must leave real margin under the
	// ceiling or the fragmentation policy cannot guarantee writable
	// records.
	if c.RecordCeiling < 1 {
		return fmt.Errorf("%w: record_ceiling must be positive, got %d",
			ErrInvalidRecordSizing, c.RecordCeiling)
	}
	if c.RecordThreshold < 1 || c.RecordThreshold >= c.RecordCeiling {
		return fmt.Errorf("%w: record_threshold must be in [1, record_ceiling), got %d with ceiling %d",
			ErrInvalidRecordSizing, c.RecordThreshold, c.RecordCeiling)
	}

	// Ingestion chunking
	if c.Ingest.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d",
			ErrInvalidChunking, c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d with chunk_size %d",
			ErrInvalidChunking, c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}

	// Blob store
	switch c.Blob.Provider {
	case "memory":
		// No endpoint needed.
	case "minio":
		if c.Blob.Endpoint == "" {
			return fmt.Errorf("%w: blob.endpoint cannot be empty for minio", ErrInvalidBlobConfig)
		}
		if c.Blob.Bucket == "" {
			return fmt.Errorf("%w: blob.bucket cannot be empty for minio", ErrInvalidBlobConfig)
		}
	default:
		return fmt.Errorf("%w: unknown blob.provider %q (want minio or memory)",
			ErrInvalidBlobConfig, c.Blob.Provider)
	}

	return nil
}

// NormalizeMaxHistoryMessages clamps the history window to sane bounds.
func NormalizeMaxHistoryMessages(limit int32) int32 {
	if limit <= 0 {
		return DefaultMaxHistoryMessages
	}
	if limit < MinHistoryMessages {
		return MinHistoryMessages
	}
	if limit > MaxAllowedHistoryMessages {
		return MaxAllowedHistoryMessages
	}
	return limit
}
