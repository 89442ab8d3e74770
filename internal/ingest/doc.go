// Package ingest turns external content into searchable knowledge.
//
// The ingest package is the write side of the knowledge base: it accepts
// content from URLs, uploaded files, local paths, and pasted text, extracts
// readable text from it, splits the text into overlapping chunks, and stores
// the chunks through the knowledge store for embedding and retrieval.
//
// # Pipeline
//
//	URL -----------> Fetcher (colly, SSRF-guarded transport)
//	file upload ---> blob store keeps the original bytes
//	local path ----> opened through os.Root
//	pasted text ---> used as-is
//	     |
//	     v
//	extraction
//	  +-- ExtractArticle: readability -> goquery -> tag stripper (HTML)
//	  +-- Describer: image bytes -> vision model -> text
//	  +-- normalized passthrough (plain text)
//	     |
//	     v
//	Chunks: rune windows with overlap, whitespace-snapped
//	     |
//	     v
//	DocumentStore.UpsertSource / DeleteBySource / AddBatch
//
// # Key Components
//
// Pipeline: orchestrates the four Index operations (IndexURL, IndexUpload,
// IndexPath, IndexText) and reports per-source counters in a Result.
//
// Fetcher: polite HTTP fetching via colly with robots.txt handling,
// per-domain parallelism and delay limits, and an SSRF-validating
// transport supplied by the caller.
//
// ExtractArticle: layered HTML-to-text extraction. Readability recovers
// article bodies from full pages, goquery handles fragments and pages
// readability rejects, and a raw tokenizer pass catches content the
// structured passes discard.
//
// Chunks: splits text into rune windows of a configured size and overlap
// so chunk boundaries land on whitespace where possible.
//
// # Re-ingestion
//
// Sources are identified by (kind, location), and chunk ids derive from
// the source id and chunk index. Indexing the same origin again replaces
// its chunks instead of accumulating duplicates: stale chunks are cleared
// before the new ones are written.
//
// # Error Handling
//
// Infrastructure failures (fetch, storage, source upsert) abort the
// operation with an error. Failures scoped to individual chunk batches
// only increment Result counters so one bad batch does not discard the
// rest of a large document.
package ingest
