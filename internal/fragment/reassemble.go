package fragment

import (
	"strings"

	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
)

// Reassembler reconstructs original payloads from an already-loaded record
// set. It performs no I/O: callers load every record of a conversation,
// run Reassemble once, and hand the result to whatever consumes messages.
type Reassembler struct {
	logger log.Logger
}

// NewReassembler creates a reassembler that logs degraded reassemblies and
// dropped orphans through the given logger.
func NewReassembler(logger log.Logger) *Reassembler {
	return &Reassembler{logger: logger}
}

// Reassemble replaces every chunked primary's content with the full
// payload concatenated from its continuations in ascending chunk-index
// order and removes the continuations from the result. Plain records pass
// through unchanged, in their original positions relative to each other.
//
// A primary whose continuation set is missing or short keeps its
// fragment-0 content and is flagged Incomplete instead of failing the
// read; a set with the right count but a gapped index sequence degrades to
// the contiguous prefix of fragments present. Continuations that
// reference no record in the set are dropped and logged; they cannot
// attach to any other payload.
//
// Successfully reassembled primaries come back as plain records, so
// downstream consumers cannot tell fragmentation ever occurred and running
// Reassemble on its own output is a no-op.
func (r *Reassembler) Reassemble(records []Record) []Record {
	// Single bucketing pass: parent id -> chunk index -> fragment.
	buckets := make(map[string]map[int]string)
	for _, rec := range records {
		if rec.Kind() != KindContinuation {
			continue
		}
		b := buckets[rec.ParentID]
		if b == nil {
			b = make(map[int]string)
			buckets[rec.ParentID] = b
		}
		b[rec.ChunkIndex] = rec.Content
	}

	out := make([]Record, 0, len(records))
	claimed := make(map[string]bool, len(buckets))

	for _, rec := range records {
		switch rec.Kind() {
		case KindContinuation:
			// Consumed through the buckets; never surfaced downstream.
		case KindPrimary:
			out = append(out, r.assemble(rec, buckets[rec.ID]))
			claimed[rec.ID] = true
		default:
			out = append(out, rec)
		}
	}

	for parentID, b := range buckets {
		if !claimed[parentID] {
			r.logger.Warn("dropping orphaned continuation records",
				"parent_id", parentID,
				"fragments", len(b),
			)
		}
	}

	return out
}

// assemble produces the outgoing record for one chunked primary.
func (r *Reassembler) assemble(primary Record, bucket map[int]string) Record {
	want := primary.TotalChunks - 1
	if len(bucket) < want {
		r.logger.Warn("incomplete fragment set, returning partial content",
			"parent_id", primary.ID,
			"total_chunks", primary.TotalChunks,
			"found", len(bucket),
		)
		primary.Incomplete = true
		return primary
	}

	size := len(primary.Content)
	for i := 1; i < primary.TotalChunks; i++ {
		size += len(bucket[i])
	}

	var sb strings.Builder
	sb.Grow(size)
	sb.WriteString(primary.Content)
	for i := 1; i < primary.TotalChunks; i++ {
		frag, ok := bucket[i]
		if !ok {
			// Right count but a duplicate crowded out an index; keep the
			// contiguous prefix assembled so far.
			r.logger.Warn("gap in fragment set, returning partial content",
				"parent_id", primary.ID,
				"missing_index", i,
			)
			primary.Content = sb.String()
			primary.Incomplete = true
			return primary
		}
		sb.WriteString(frag)
	}

	// Whole payload restored: the record reads as an ordinary one from
	// here on, which also makes a second Reassemble pass a no-op.
	primary.Content = sb.String()
	primary.IsChunked = false
	primary.TotalChunks = 0
	return primary
}
