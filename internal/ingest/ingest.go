package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/pokhrel-dev/simplechat-sub001/internal/knowledge"
	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
)

const (
	// embedBatchSize is the number of chunks sent to the knowledge store
	// per call, which maps to one embedder request per batch.
	embedBatchSize = 16

	// maxUploadBytes caps uploaded and locally read files.
	maxUploadBytes = 20 << 20 // 20MB
)

// DocumentStore defines the knowledge-store behavior required by Pipeline.
type DocumentStore interface {
	UpsertSource(ctx context.Context, src knowledge.Source) (*knowledge.Source, error)
	DeleteBySource(ctx context.Context, sourceID uuid.UUID) (int64, error)
	AddBatch(ctx context.Context, docs []knowledge.Document) error
}

// FileStore keeps the original bytes of uploaded files.
type FileStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// PageFetcher downloads pages for URL ingestion.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// ImageDescriber turns image bytes into indexable text.
type ImageDescriber interface {
	Describe(ctx context.Context, data []byte, contentType string) (string, error)
}

// Config holds the dependencies and settings for constructing a Pipeline.
type Config struct {
	// Documents receives sources and their extracted chunks. Required.
	Documents DocumentStore

	// Files keeps the original bytes of uploads. Required for
	// IndexUpload and IndexPath.
	Files FileStore

	// Fetcher downloads pages for IndexURL.
	Fetcher PageFetcher

	// Describer turns image uploads into text. Image uploads are
	// rejected when unset.
	Describer ImageDescriber

	// ChunkSize is the chunk window in runes.
	ChunkSize int

	// ChunkOverlap is the context shared between consecutive chunks, in
	// runes. Must be smaller than ChunkSize.
	ChunkOverlap int

	Logger log.Logger
}

func (c *Config) validate() error {
	if c.Documents == nil {
		return errors.New("document store is required")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0, chunk size), got %d", c.ChunkOverlap)
	}
	return nil
}

// Result reports what one Index operation did.
type Result struct {
	Source        *knowledge.Source
	ChunksIndexed int
	ChunksSkipped int
	ChunksFailed  int
	Bytes         int64
	Duration      time.Duration
}

// Pipeline ingests external content into the knowledge store.
type Pipeline struct {
	docs      DocumentStore
	files     FileStore
	fetcher   PageFetcher
	describer ImageDescriber

	chunkSize    int
	chunkOverlap int
	logger       log.Logger
}

// New creates a Pipeline from cfg.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Pipeline{
		docs:         cfg.Documents,
		files:        cfg.Files,
		fetcher:      cfg.Fetcher,
		describer:    cfg.Describer,
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
		logger:       logger,
	}, nil
}

// IndexText indexes pasted text. The source location derives from the
// content checksum, so pasting identical text twice updates one source
// instead of creating two.
func (p *Pipeline) IndexText(ctx context.Context, title, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text is empty")
	}
	sum := contentChecksum([]byte(text))
	src := knowledge.Source{
		Kind:      knowledge.SourceText,
		Location:  "text:" + sum[:16],
		Title:     strings.TrimSpace(title),
		Checksum:  sum,
		SizeBytes: int64(len(text)),
	}
	return p.index(ctx, src, text)
}

// IndexURL fetches a page and indexes its readable text. The final URL
// after redirects becomes the source location.
func (p *Pipeline) IndexURL(ctx context.Context, rawURL string) (*Result, error) {
	if p.fetcher == nil {
		return nil, errors.New("fetcher is not configured")
	}
	page, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	mediaType := mediaTypeOf(page.ContentType)
	var title, text string
	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml" || mediaType == "":
		article, err := ExtractArticle(page.URL, page.Body)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", page.URL, err)
		}
		title, text = article.Title, article.Text
	case strings.HasPrefix(mediaType, "text/"):
		text = normalizeText(string(page.Body))
		if text == "" {
			return nil, fmt.Errorf("no text content at %s", page.URL)
		}
	default:
		return nil, fmt.Errorf("unsupported content type %q at %s", mediaType, page.URL)
	}

	src := knowledge.Source{
		Kind:      knowledge.SourceURL,
		Location:  page.URL,
		Title:     title,
		Checksum:  contentChecksum(page.Body),
		SizeBytes: int64(len(page.Body)),
	}
	return p.index(ctx, src, text)
}

// IndexUpload stores an uploaded file in the blob store and indexes its
// text. HTML is run through extraction, images through the vision
// describer, and anything else must be UTF-8 text.
func (p *Pipeline) IndexUpload(ctx context.Context, filename string, r io.Reader, contentType string) (*Result, error) {
	if p.files == nil {
		return nil, errors.New("file store is not configured")
	}
	if strings.TrimSpace(filename) == "" {
		return nil, errors.New("filename is required")
	}

	data, err := io.ReadAll(io.LimitReader(r, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("upload is empty")
	}
	if len(data) > maxUploadBytes {
		return nil, fmt.Errorf("upload exceeds %d bytes", maxUploadBytes)
	}

	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	mediaType := mediaTypeOf(contentType)
	name := filepath.Base(filename)

	var title, text string
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		if p.describer == nil {
			return nil, errors.New("image uploads require a vision model")
		}
		desc, err := p.describer.Describe(ctx, data, mediaType)
		if err != nil {
			return nil, fmt.Errorf("describe %s: %w", name, err)
		}
		title, text = name, desc
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		article, err := ExtractArticle("", data)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", name, err)
		}
		title, text = article.Title, article.Text
		if title == "" {
			title = name
		}
	case strings.HasPrefix(mediaType, "text/") || mediaType == "application/json" || mediaType == "application/xml":
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%s is not valid UTF-8 text", name)
		}
		text = normalizeText(string(data))
		if text == "" {
			return nil, fmt.Errorf("%s contains no text", name)
		}
		title = name
	default:
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}

	// Store the original only after extraction succeeds, so rejected
	// uploads leave nothing behind. The checksum in the key makes
	// re-uploads converge on the same object.
	sum := contentChecksum(data)
	key := "uploads/" + sum[:16] + "/" + name
	if err := p.files.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	src := knowledge.Source{
		Kind:      knowledge.SourceFile,
		Location:  key,
		Title:     title,
		Checksum:  sum,
		SizeBytes: int64(len(data)),
	}
	return p.index(ctx, src, text)
}

// IndexPath reads a local file and indexes it like an upload. The open is
// confined to the file's parent directory so symlinks cannot escape it.
func (p *Pipeline) IndexPath(ctx context.Context, path string) (*Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	root, err := os.OpenRoot(filepath.Dir(abs))
	if err != nil {
		return nil, fmt.Errorf("open parent directory: %w", err)
	}
	defer root.Close()

	name := filepath.Base(abs)
	info, err := root.Stat(name)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", abs, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", abs)
	}
	if info.Size() > maxUploadBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", abs, maxUploadBytes)
	}

	f, err := root.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", abs, err)
	}
	defer f.Close()

	return p.IndexUpload(ctx, name, f, mime.TypeByExtension(filepath.Ext(name)))
}

// index upserts the source, replaces its chunks, and reports counters.
// Infrastructure failures return an error; failures scoped to one chunk
// batch only increment ChunksFailed so the rest of the document survives.
func (p *Pipeline) index(ctx context.Context, src knowledge.Source, text string) (*Result, error) {
	start := time.Now()

	stored, err := p.docs.UpsertSource(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("upsert source: %w", err)
	}
	// Clear stale chunks first so a document that shrank leaves no
	// orphans behind.
	if _, err := p.docs.DeleteBySource(ctx, stored.ID); err != nil {
		return nil, fmt.Errorf("clear stale chunks: %w", err)
	}

	res := &Result{Source: stored, Bytes: src.SizeBytes}
	indexedAt := time.Now().UTC().Format(time.RFC3339)

	var batch []knowledge.Document
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := p.docs.AddBatch(ctx, batch); err != nil {
			res.ChunksFailed += len(batch)
			p.logger.Warn("chunk batch failed",
				"source_id", stored.ID,
				"chunks", len(batch),
				"error", err)
		} else {
			res.ChunksIndexed += len(batch)
		}
		batch = nil
	}

	for i, chunk := range Chunks(text, p.chunkSize, p.chunkOverlap) {
		if strings.TrimSpace(chunk) == "" {
			res.ChunksSkipped++
			continue
		}
		meta := map[string]string{
			"kind":       string(stored.Kind),
			"location":   stored.Location,
			"chunk":      strconv.Itoa(i),
			"indexed_at": indexedAt,
		}
		if stored.Title != "" {
			meta["title"] = stored.Title
		}
		batch = append(batch, knowledge.Document{
			ID:       chunkID(stored.ID, i),
			SourceID: stored.ID,
			Content:  chunk,
			Metadata: meta,
		})
		if len(batch) >= embedBatchSize {
			flush()
		}
	}
	flush()

	res.Duration = time.Since(start)
	p.logger.Info("source indexed",
		"source_id", stored.ID,
		"kind", stored.Kind,
		"location", stored.Location,
		"indexed", res.ChunksIndexed,
		"skipped", res.ChunksSkipped,
		"failed", res.ChunksFailed,
		"bytes", res.Bytes,
		"duration", res.Duration)
	return res, nil
}

// chunkID derives a stable document id from the source and chunk index,
// so re-indexing a source writes the same ids it wrote last time.
func chunkID(sourceID uuid.UUID, index int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", sourceID, index)))
	return "chunk_" + hex.EncodeToString(sum[:16])
}

func contentChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// mediaTypeOf strips parameters like charset from a Content-Type header.
func mediaTypeOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mt
}
