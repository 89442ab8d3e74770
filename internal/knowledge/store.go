package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
)

// ErrSourceNotFound indicates the requested source does not exist.
var ErrSourceNotFound = errors.New("source not found")

// querier is the common interface satisfied by both *pgxpool.Pool and
// pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const sourceCols = `id, kind, location, title, checksum, size_bytes, created_at, updated_at`

const (
	// A re-ingested source keeps its row (and so its document ownership)
	// and refreshes the mutable fields. An empty new title keeps the old
	// one, so a failed extraction doesn't wipe a good title.
	upsertSourceSQL = `INSERT INTO sources (kind, location, title, checksum, size_bytes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (kind, location) DO UPDATE
		SET title = COALESCE(NULLIF(EXCLUDED.title, ''), sources.title),
			checksum = EXCLUDED.checksum,
			size_bytes = EXCLUDED.size_bytes,
			updated_at = now()
		RETURNING ` + sourceCols

	getSourceSQL = `SELECT ` + sourceCols + ` FROM sources WHERE id = $1`

	listSourcesSQL = `SELECT s.id, s.kind, s.location, s.title, s.checksum, s.size_bytes,
		s.created_at, s.updated_at, COUNT(d.id) AS documents
		FROM sources s LEFT JOIN documents d ON d.source_id = s.id
		GROUP BY s.id ORDER BY s.updated_at DESC LIMIT $1 OFFSET $2`

	deleteSourceSQL = `DELETE FROM sources WHERE id = $1`

	upsertDocumentSQL = `INSERT INTO documents (id, source_id, content, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET source_id = EXCLUDED.source_id, content = EXCLUDED.content,
			embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata`

	// Filters are optional: NULL parameters disable a clause. The metadata
	// filter is always a json.Marshal product bound as a parameter, never
	// interpolated, so the JSONB @> containment stays injection-safe.
	searchDocumentsSQL = `SELECT id, source_id, content, metadata, created_at,
		(1 - (embedding <=> $1))::float4 AS similarity
		FROM documents
		WHERE ($2::uuid IS NULL OR source_id = $2)
		  AND ($3::jsonb IS NULL OR metadata @> $3)
		ORDER BY embedding <=> $1
		LIMIT $4`

	countDocumentsSQL = `SELECT COUNT(*) FROM documents
		WHERE ($1::jsonb IS NULL OR metadata @> $1)`

	deleteDocumentSQL = `DELETE FROM documents WHERE id = $1`

	deleteBySourceSQL = `DELETE FROM documents WHERE source_id = $1`
)

// Store manages knowledge sources and their embedded document chunks in
// PostgreSQL with pgvector similarity search.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db       querier
	embedder ai.Embedder
	logger   log.Logger
}

// NewStore creates a knowledge store.
func NewStore(db querier, embedder ai.Embedder, logger log.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, embedder: embedder, logger: logger}, nil
}

// UpsertSource registers a source, or refreshes its checksum, size and
// title if a source with the same kind and location already exists. The
// returned Source carries the stored row, id included.
func (s *Store) UpsertSource(ctx context.Context, src Source) (*Source, error) {
	if !src.Kind.Valid() {
		return nil, fmt.Errorf("invalid source kind %q", src.Kind)
	}
	if src.Location == "" {
		return nil, fmt.Errorf("source location is required")
	}

	var out Source
	err := s.db.QueryRow(ctx, upsertSourceSQL,
		string(src.Kind), src.Location, src.Title, src.Checksum, src.SizeBytes).
		Scan(&out.ID, &out.Kind, &out.Location, &out.Title, &out.Checksum,
			&out.SizeBytes, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upserting source %s %q: %w", src.Kind, src.Location, err)
	}

	s.logger.Debug("upserted source", "id", out.ID, "kind", out.Kind, "location", out.Location)
	return &out, nil
}

// GetSource retrieves a source by id.
func (s *Store) GetSource(ctx context.Context, id uuid.UUID) (*Source, error) {
	var out Source
	err := s.db.QueryRow(ctx, getSourceSQL, id).
		Scan(&out.ID, &out.Kind, &out.Location, &out.Title, &out.Checksum,
			&out.SizeBytes, &out.CreatedAt, &out.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("source %s: %w", id, ErrSourceNotFound)
	case err != nil:
		return nil, fmt.Errorf("getting source %s: %w", id, err)
	}
	return &out, nil
}

// ListSources returns sources with their chunk counts, most recently
// updated first.
func (s *Store) ListSources(ctx context.Context, limit, offset int32) ([]*Source, error) {
	const defaultLimit, maxLimit = int32(50), int32(500)
	if limit < 1 || limit > maxLimit {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, listSourcesSQL, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	var sources []*Source
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.ID, &src.Kind, &src.Location, &src.Title,
			&src.Checksum, &src.SizeBytes, &src.CreatedAt, &src.UpdatedAt,
			&src.Documents); err != nil {
			return nil, fmt.Errorf("scanning source row: %w", err)
		}
		sources = append(sources, &src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading source rows: %w", err)
	}
	return sources, nil
}

// DeleteSource removes a source and, through the schema's cascade, all of
// its document chunks.
func (s *Store) DeleteSource(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, deleteSourceSQL, id)
	if err != nil {
		return fmt.Errorf("deleting source %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source %s: %w", id, ErrSourceNotFound)
	}

	s.logger.Debug("deleted source", "id", id)
	return nil
}

// Add embeds one document and upserts it. Deterministic ids make re-adds
// idempotent.
func (s *Store) Add(ctx context.Context, doc Document) error {
	return s.AddBatch(ctx, []Document{doc})
}

// AddBatch embeds a batch of documents in a single embedder call and
// upserts them one by one. An embedding failure fails the whole batch
// before anything is written; an upsert failure reports the failing
// document, and a re-run converges because every id is deterministic.
func (s *Store) AddBatch(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	input := make([]*ai.Document, len(docs))
	for i, doc := range docs {
		input[i] = ai.DocumentFromText(doc.Content, nil)
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{Input: input})
	if err != nil {
		return fmt.Errorf("embedding %d documents: %w", len(docs), err)
	}
	if len(resp.Embeddings) != len(docs) {
		return fmt.Errorf("embedder returned %d embeddings for %d documents", len(resp.Embeddings), len(docs))
	}

	for i, doc := range docs {
		vec := resp.Embeddings[i].Embedding
		if len(vec) == 0 {
			return fmt.Errorf("empty embedding returned for document %q", doc.ID)
		}

		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for document %q: %w", doc.ID, err)
		}

		var sourceID *uuid.UUID
		if doc.SourceID != uuid.Nil {
			sourceID = &doc.SourceID
		}

		_, err = s.db.Exec(ctx, upsertDocumentSQL,
			doc.ID, sourceID, doc.Content, pgvector.NewVector(vec), metadataJSON)
		if err != nil {
			return fmt.Errorf("upserting document %q: %w", doc.ID, err)
		}
	}

	s.logger.Debug("added documents", "count", len(docs))
	return nil
}

// Search performs semantic search over the document chunks, most similar
// first. A timeout bounds the whole operation so a slow embedder or a
// degenerate vector scan cannot block the caller.
//
// Example:
//
//	results, err := store.Search(ctx, "lighthouse maintenance",
//	    knowledge.WithTopK(10),
//	    knowledge.WithSource(sourceID))
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	resp, err := s.embedder.Embed(queryCtx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(query, nil)},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding generation timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned for query")
	}

	var filterJSON []byte
	if len(cfg.filter) > 0 {
		filterJSON, err = json.Marshal(cfg.filter)
		if err != nil {
			return nil, fmt.Errorf("marshaling filter: %w", err)
		}
	}

	rows, err := s.db.Query(queryCtx, searchDocumentsSQL,
		pgvector.NewVector(resp.Embeddings[0].Embedding), cfg.source, filterJSON, cfg.topK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			doc        Document
			sourceID   *uuid.UUID
			metaBytes  []byte
			similarity float32
		)
		if err := rows.Scan(&doc.ID, &sourceID, &doc.Content, &metaBytes,
			&doc.CreatedAt, &similarity); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		if sourceID != nil {
			doc.SourceID = *sourceID
		}
		doc.Metadata = s.parseMetadata(doc.ID, metaBytes)

		// Results arrive ordered by distance, so the first miss ends the
		// scan.
		if similarity < cfg.minScore {
			break
		}
		results = append(results, Result{Document: doc, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}

	s.logger.Debug("search complete", "query_len", len(query), "results", len(results))
	return results, nil
}

// Count returns the number of document chunks matching the filter, or all
// chunks when the filter is empty.
func (s *Store) Count(ctx context.Context, filter map[string]string) (int, error) {
	var filterJSON []byte
	if len(filter) > 0 {
		var err error
		filterJSON, err = json.Marshal(filter)
		if err != nil {
			return 0, fmt.Errorf("marshaling filter: %w", err)
		}
	}

	var count int64
	if err := s.db.QueryRow(ctx, countDocumentsSQL, filterJSON).Scan(&count); err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}

	// Overflow protection for 32-bit platforms.
	if count > math.MaxInt {
		return 0, fmt.Errorf("document count %d exceeds platform int capacity", count)
	}
	return int(count), nil
}

// Delete removes one document chunk.
func (s *Store) Delete(ctx context.Context, docID string) error {
	if _, err := s.db.Exec(ctx, deleteDocumentSQL, docID); err != nil {
		return fmt.Errorf("deleting document %q: %w", docID, err)
	}

	s.logger.Debug("deleted document", "id", docID)
	return nil
}

// DeleteBySource removes every chunk of one source, for re-ingestion
// without deleting the source row itself. Returns the number removed.
func (s *Store) DeleteBySource(ctx context.Context, sourceID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, deleteBySourceSQL, sourceID)
	if err != nil {
		return 0, fmt.Errorf("deleting documents of source %s: %w", sourceID, err)
	}

	removed := tag.RowsAffected()
	s.logger.Debug("deleted source documents", "source_id", sourceID, "count", removed)
	return removed, nil
}

// parseMetadata decodes a metadata column, degrading to an empty map on
// malformed content rather than failing the read.
func (s *Store) parseMetadata(docID string, raw []byte) map[string]string {
	if len(raw) == 0 {
		return map[string]string{}
	}
	var metadata map[string]string
	if err := json.Unmarshal(raw, &metadata); err != nil {
		s.logger.Warn("failed to parse metadata", "document_id", docID, "error", err)
		return map[string]string{}
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	return metadata
}
