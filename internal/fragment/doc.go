// Package fragment splits oversized message payloads into store-sized
// records and reassembles them on read.
//
// The backing message store enforces a hard per-record size cap
// (HardCeiling). Payloads such as generated images serialized as base64
// data URLs routinely exceed it, so writes go through a size policy:
// payloads at or under SafeThreshold are stored as a single record, larger
// ones are cut into ordered fragments that each fit under the threshold
// with room for the record envelope. Fragment 0 is persisted as the
// primary record under the message's own id and carries the reassembly
// metadata (total chunk count, chunk index 0, and any structural prefix
// such as a data-URL header). Fragments 1..n-1 become continuation
// records tied to the primary by the (parent id, chunk index) pair.
//
// Reads run Reassembler over the loaded record set: continuations are
// bucketed by parent, concatenated in ascending index order onto the
// primary's content, and removed from the result. Consumers see whole
// payloads and never observe fragmentation. A primary whose continuation
// set is short (a crashed or in-flight write) degrades to whatever
// contiguous prefix of fragments is available and is flagged incomplete
// rather than failing the whole read. Continuations whose parent cannot
// be found in the same set are dropped and logged; they cannot affect any
// other payload.
//
// Payloads are treated as byte strings. Base64 content is ASCII, so
// fragment boundaries never tear a character there; for arbitrary UTF-8 a
// boundary may fall inside a rune, which is harmless for reassembly
// because concatenation is byte-faithful.
package fragment
