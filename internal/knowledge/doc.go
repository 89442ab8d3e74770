// Package knowledge provides semantic search and document management.
//
// The knowledge package manages the vector-based retrieval index backing
// chat grounding: ingested sources, their chunked documents, embedding
// generation, and similarity search on PostgreSQL + pgvector.
//
// # Overview
//
// Two tables back the package:
//
//   - sources: one row per ingested origin (a fetched URL, an uploaded
//     file, or pasted text), keyed (kind, location) so re-ingesting the
//     same origin updates in place.
//   - documents: the chunked, embedded text the retriever searches. Each
//     chunk carries a deterministic content-derived id, so re-indexing a
//     source upserts instead of duplicating.
//
// Deleting a source cascades to its chunks at the schema level;
// DeleteBySource clears chunks while keeping the source row for
// re-ingestion.
//
// # Indexing and Retrieval Flow
//
//	Source (URL / file / text)
//	     |
//	     v
//	UpsertSource -> chunked Documents
//	     |
//	     v
//	AddBatch: one embedder call per batch
//	     |
//	     v
//	Vector storage (pgvector, cosine ops)
//	     |
//	     | (when searching)
//	     v
//	Query embedding -> similarity search -> ranked Results
//
// # Search
//
// Search uses functional options:
//
//	results, err := store.Search(ctx, "harbor approach lights",
//	    knowledge.WithTopK(5),
//	    knowledge.WithSource(sourceID),
//	    knowledge.WithMinScore(0.3))
//
// Results are ordered by cosine similarity (1 is identical). The whole
// operation, embedding call included, runs under a timeout (default 10s,
// WithTimeout to change).
//
// # Embedding Dimensionality
//
// The documents.embedding column has a fixed width. NewFixedDimsEmbedder
// wraps the configured embedder so it requests exactly that many
// dimensions from the provider and fails fast when the response
// disagrees, instead of surfacing as a pgvector insert error mid-index.
package knowledge
