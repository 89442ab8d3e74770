package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// SourceKind says where a source's content came from.
type SourceKind string

const (
	// SourceURL is a fetched web page.
	SourceURL SourceKind = "url"

	// SourceFile is an uploaded file held in the blob store; Location is
	// the object key.
	SourceFile SourceKind = "file"

	// SourceText is pasted raw text; Location is synthesized from the
	// content checksum.
	SourceText SourceKind = "text"
)

// Valid reports whether k is one of the known source kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceURL, SourceFile, SourceText:
		return true
	}
	return false
}

// Source is one ingested origin of knowledge. A source owns the document
// chunks produced from it; re-ingesting replaces them in place.
type Source struct {
	ID        uuid.UUID
	Kind      SourceKind
	Location  string
	Title     string
	Checksum  string // SHA-256 of the original payload
	SizeBytes int64
	CreatedAt time.Time
	UpdatedAt time.Time

	// Documents is the chunk count, populated by ListSources only.
	Documents int64
}

// Document is one embedded chunk of a source.
type Document struct {
	ID        string // deterministic, derived from source and chunk content
	SourceID  uuid.UUID
	Content   string
	Metadata  map[string]string
	CreatedAt time.Time
}

// Result is a single search hit.
type Result struct {
	Document   Document
	Similarity float32 // cosine similarity, 1 is identical
}

// SearchOption configures search behavior using the functional options
// pattern, as in context.WithTimeout or grpc.Dial.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK     int
	source   *uuid.UUID
	filter   map[string]string
	minScore float32
	timeout  time.Duration
}

// WithTopK sets the maximum number of results. Default is 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithSource restricts results to chunks of one source.
func WithSource(id uuid.UUID) SearchOption {
	return func(c *searchConfig) {
		c.source = &id
	}
}

// WithFilter restricts results to documents whose metadata contains the
// given key/value pair. Multiple calls AND together.
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

// WithMinScore drops results below the given cosine similarity.
func WithMinScore(score float32) SearchOption {
	return func(c *searchConfig) {
		c.minScore = score
	}
}

// WithTimeout bounds the whole search, embedding call included.
// Default is 10 seconds.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    5,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
