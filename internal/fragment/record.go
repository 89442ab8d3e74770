package fragment

import "strconv"

// Kind classifies a record's position in the fragmentation scheme. The
// classification is derived from structured fields, never from parsing ids,
// so the reassembler can branch exhaustively instead of sniffing for the
// presence of loosely typed metadata.
type Kind int

const (
	// KindPlain is an ordinary record untouched by fragmentation.
	KindPlain Kind = iota

	// KindPrimary holds fragment 0 of a chunked payload plus the
	// reassembly metadata. Its id doubles as the parent identifier
	// referenced by continuations.
	KindPrimary

	// KindContinuation holds fragment i >= 1 of a chunked payload.
	KindContinuation
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindPrimary:
		return "primary"
	case KindContinuation:
		return "continuation"
	default:
		return "unknown"
	}
}

// Record is the unit persisted to the backing store, as seen by the
// fragmentation subsystem. The store may carry additional columns
// (conversation id, timestamps); this struct holds only what splitting and
// reassembly need.
type Record struct {
	// ID is globally unique within the parent conversation.
	ID string

	// Role tags the record ("image" for a payload-bearing primary,
	// "image_chunk" for its continuations, anything else for plain
	// records).
	Role string

	// Content is the payload slice. On a primary this is fragment 0,
	// optionally prefixed with a structural marker that is preserved
	// verbatim and only ever placed here.
	Content string

	// ParentID references the primary record's ID. Set only on
	// continuation records.
	ParentID string

	// ChunkIndex is this record's position in reassembly order: 0 on a
	// chunked primary, >= 1 on continuations, meaningless on plain
	// records.
	ChunkIndex int

	// IsChunked is true on a primary whose payload exceeded the size
	// policy threshold at write time.
	IsChunked bool

	// TotalChunks is the fragment count including fragment 0. Set only
	// on primaries.
	TotalChunks int

	// Incomplete is derived at reassembly time when a primary's
	// continuation set is short. Never persisted.
	Incomplete bool
}

// Kind derives the record's variant from its structured fields.
func (r Record) Kind() Kind {
	switch {
	case r.ParentID != "":
		return KindContinuation
	case r.IsChunked:
		return KindPrimary
	default:
		return KindPlain
	}
}

// ContinuationID synthesizes the stored id for fragment i of the given
// parent. The id only has to be unique; association always flows through
// the structured (ParentID, ChunkIndex) pair and ids are never parsed.
func ContinuationID(parentID string, i int) string {
	return parentID + "_chunk_" + strconv.Itoa(i)
}

// ContinuationRole derives the role tag for continuations of a primary
// with the given role, e.g. "image" -> "image_chunk".
func ContinuationRole(role string) string {
	return role + "_chunk"
}
