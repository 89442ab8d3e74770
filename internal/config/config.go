// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.simplechat/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: chat model, embedder, image model (see ai.go)
//   - Storage: PostgreSQL connection and record sizing (see storage.go)
//   - Blob: object storage for uploaded source files (see storage.go)
//   - Ingest: chunking and fetch settings (see ingest.go)
//   - Tracing: OTLP trace export (see observability.go)
//
// Sensitive values (passwords, keys) are masked in String()/MarshalJSON and
// never logged. Validation runs fail-fast in Load with sentinel errors
// checkable via errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedder indicates the embedder model or dimensions are invalid.
	ErrInvalidEmbedder = errors.New("invalid embedder configuration")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top-k")

	// ErrInvalidServerAddr indicates the HTTP listen address is invalid.
	ErrInvalidServerAddr = errors.New("invalid server address")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidRecordSizing indicates the record ceiling/threshold pair is unusable.
	ErrInvalidRecordSizing = errors.New("invalid record sizing")

	// ErrInvalidChunking indicates the ingest chunk size/overlap pair is unusable.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidBlobConfig indicates the blob store configuration is unusable.
	ErrInvalidBlobConfig = errors.New("invalid blob store configuration")
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON(). When
// adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// AI provider and model configuration (see ai.go for ranges)
	Provider    string  `mapstructure:"provider" json:"provider"`
	ModelName   string  `mapstructure:"model_name" json:"model_name"`
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Embedding and retrieval configuration
	EmbedderModel      string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimensions int    `mapstructure:"embedder_dimensions" json:"embedder_dimensions"`
	RetrievalTopK      int    `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`

	// ImageModel generates images from chat; results come back as base64
	// data URLs, which is what exercises the record fragmentation path.
	ImageModel string `mapstructure:"image_model" json:"image_model"`

	// Conversation history configuration
	MaxHistoryMessages int32 `mapstructure:"max_history_messages" json:"max_history_messages"`

	// HTTP server configuration (serve mode)
	ServerAddr  string   `mapstructure:"server_addr" json:"server_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Record sizing: the message store's hard per-record cap and the
	// single-record threshold below it. Payloads over the threshold are
	// fragmented across multiple records (see internal/fragment).
	RecordCeiling   int `mapstructure:"record_ceiling" json:"record_ceiling"`
	RecordThreshold int `mapstructure:"record_threshold" json:"record_threshold"`

	// Blob store for uploaded source files (see storage.go)
	Blob BlobConfig `mapstructure:"blob" json:"blob"`

	// Ingestion pipeline settings (see ingest.go)
	Ingest IngestConfig `mapstructure:"ingest" json:"ingest"`

	// Tracing configuration (see observability.go)
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	// Configuration directory: ~/.simplechat/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".simplechat")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, when set, overrides the individual postgres_* values.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// Fail fast: a misconfigured process must not start.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", DefaultChatModel)
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 2048)
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("embedder_dimensions", DefaultEmbedderDimensions)
	viper.SetDefault("retrieval_top_k", DefaultRetrievalTopK)
	viper.SetDefault("image_model", DefaultImageModel)
	viper.SetDefault("max_history_messages", DefaultMaxHistoryMessages)

	// HTTP server defaults
	viper.SetDefault("server_addr", ":8080")
	viper.SetDefault("cors_origins", []string{"http://localhost:5173"})
	// Safe for direct exposure; set true behind a reverse proxy.
	viper.SetDefault("trust_proxy", false)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "simplechat")
	viper.SetDefault("postgres_password", "simplechat_dev_password")
	viper.SetDefault("postgres_db_name", "simplechat")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Record sizing defaults mirror the store's migration-enforced cap.
	viper.SetDefault("record_ceiling", 2_000_000)
	viper.SetDefault("record_threshold", 1_500_000)

	// Blob store defaults (local MinIO)
	viper.SetDefault("blob.provider", "minio")
	viper.SetDefault("blob.endpoint", "localhost:9000")
	viper.SetDefault("blob.bucket", "simplechat-sources")
	viper.SetDefault("blob.use_ssl", false)

	// Ingestion defaults
	viper.SetDefault("ingest.chunk_size", 1600)
	viper.SetDefault("ingest.chunk_overlap", 200)
	viper.SetDefault("ingest.fetch_timeout_ms", 30000)
	viper.SetDefault("ingest.fetch_parallelism", 2)
	viper.SetDefault("ingest.fetch_delay_ms", 500)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4318")
	viper.SetDefault("tracing.environment", "dev")
	viper.SetDefault("tracing.service_name", "simplechat")
}

// bindEnvVariables binds environment overrides explicitly.
func bindEnvVariables() {
	// Panic on unexpected bind errors: the keys are hardcoded, so a
	// failure here is a bug, not a runtime condition.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("server_addr", "SIMPLECHAT_SERVER_ADDR")
	mustBind("cors_origins", "SIMPLECHAT_CORS_ORIGINS")
	mustBind("trust_proxy", "SIMPLECHAT_TRUST_PROXY")

	mustBind("provider", "SIMPLECHAT_PROVIDER")
	mustBind("model_name", "SIMPLECHAT_MODEL_NAME")
	mustBind("image_model", "SIMPLECHAT_IMAGE_MODEL")

	// Blob store credentials
	mustBind("blob.access_key", "SIMPLECHAT_BLOB_ACCESS_KEY")
	mustBind("blob.secret_key", "SIMPLECHAT_BLOB_SECRET_KEY")

	// NOTE: GEMINI_API_KEY is read directly by Genkit, not via Viper.
	// Validation checks its presence based on the selected provider.
	// NOTE: DATABASE_URL is parsed separately in parseDatabaseURL.
}

// maskedValue is the placeholder for masked sensitive data. Full-width
// blocks (U+2588) cannot collide with substrings of real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Short secrets are
// fully masked; longer ones keep the first and last two characters for
// debug utility. This defends against accidental logging, nothing more —
// if logs are compromised, rotate the secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field
// masking. Nested sections mask their own secrets.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "openai/gpt-4o". A ModelName that
// already contains "/" is returned as-is.
func (c *Config) FullModelName() string {
	return c.qualifyModel(c.ModelName)
}

// FullImageModelName returns the provider-qualified image model name.
func (c *Config) FullImageModelName() string {
	return c.qualifyModel(c.ImageModel)
}

func (c *Config) qualifyModel(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	switch c.Provider {
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + name
	default:
		return ProviderGoogleAI + "/" + name
	}
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
