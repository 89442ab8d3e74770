package config

// IngestConfig holds the ingestion pipeline settings: how extracted text is
// chunked for embedding and how remote sources are fetched.
type IngestConfig struct {
	// ChunkSize is the target chunk length in runes.
	ChunkSize int `mapstructure:"chunk_size" json:"chunk_size"`
	// ChunkOverlap is how many runes consecutive chunks share. Must be
	// smaller than ChunkSize.
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	// FetchTimeoutMs is the per-request timeout for URL sources.
	FetchTimeoutMs int `mapstructure:"fetch_timeout_ms" json:"fetch_timeout_ms"`
	// FetchParallelism is the max concurrent requests per domain.
	FetchParallelism int `mapstructure:"fetch_parallelism" json:"fetch_parallelism"`
	// FetchDelayMs is the delay between requests to the same domain.
	FetchDelayMs int `mapstructure:"fetch_delay_ms" json:"fetch_delay_ms"`
}
