package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/pokhrel-dev/simplechat-sub001/internal/config"
	"github.com/pokhrel-dev/simplechat-sub001/internal/knowledge"
	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
)

// maxUploadBody caps multipart uploads, matching the ingest pipeline's
// own per-file limit plus form overhead.
const maxUploadBody = 21 << 20 // 21MB

// documentHandler accepts source-document uploads into the knowledge
// pipeline.
type documentHandler struct {
	pipeline Ingestor
	logger   log.Logger
}

// uploadResponse reports what one ingestion did.
type uploadResponse struct {
	SourceID      string `json:"sourceId"`
	Title         string `json:"title"`
	ChunksIndexed int    `json:"chunksIndexed"`
	ChunksFailed  int    `json:"chunksFailed,omitempty"`
	Bytes         int64  `json:"bytes"`
	DurationMs    int64  `json:"durationMs"`
}

// upload handles POST /api/documents: multipart form with a "file"
// part. The original bytes go to the blob store; extracted text is
// chunked, embedded, and upserted into the knowledge index.
func (h *documentHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds size limit", h.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "missing_file", `multipart "file" part is required`, h.logger)
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			h.logger.Debug("closing upload", "error", closeErr)
		}
	}()

	result, err := h.pipeline.IndexUpload(r.Context(), header.Filename, file, header.Header.Get("Content-Type"))
	if err != nil {
		h.logger.Error("indexing upload", "error", err, "filename", header.Filename)
		writeError(w, http.StatusUnprocessableEntity, "ingestion_failed", "document could not be indexed", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		SourceID:      result.Source.ID.String(),
		Title:         result.Source.Title,
		ChunksIndexed: result.ChunksIndexed,
		ChunksFailed:  result.ChunksFailed,
		Bytes:         result.Bytes,
		DurationMs:    result.Duration.Milliseconds(),
	}, h.logger)
}

// searchHandler exposes the knowledge index directly for debugging and
// inspection.
type searchHandler struct {
	store  Searcher
	logger log.Logger
}

// searchTimeout bounds one inspection query.
const searchTimeout = 10 * time.Second

// searchHit is the wire shape of one search result.
type searchHit struct {
	DocumentID string  `json:"documentId"`
	SourceID   string  `json:"sourceId"`
	Content    string  `json:"content"`
	Similarity float32 `json:"similarity"`
}

// search handles GET /api/search?q=...&k=...
func (h *searchHandler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "q parameter is required", h.logger)
		return
	}

	topK := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > config.MaxRetrievalTopK {
			writeError(w, http.StatusBadRequest, "invalid_k", "k must be a positive integer within bounds", h.logger)
			return
		}
		topK = n
	}

	opts := []knowledge.SearchOption{knowledge.WithTimeout(searchTimeout)}
	if topK > 0 {
		opts = append(opts, knowledge.WithTopK(topK))
	}

	results, err := h.store.Search(r.Context(), query, opts...)
	if err != nil {
		h.logger.Error("knowledge search", "error", err)
		writeError(w, http.StatusInternalServerError, "search_failed", "search failed", h.logger)
		return
	}

	hits := make([]searchHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, searchHit{
			DocumentID: res.Document.ID,
			SourceID:   res.Document.SourceID.String(),
			Content:    res.Document.Content,
			Similarity: res.Similarity,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits}, h.logger)
}
