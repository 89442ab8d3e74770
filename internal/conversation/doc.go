// Package conversation provides conversation and message persistence with
// PostgreSQL, including transparent fragmentation of oversized payloads.
//
// A conversation is a titled container of ordered messages. The [Store]
// handles persistence; chat orchestration lives in internal/chat.
//
// Key operations:
//
//   - Conversation lifecycle: [Store.Create], [Store.Get], [Store.List],
//     [Store.Rename], [Store.Delete]
//   - Message persistence: [Store.Append] (fragmenting writes),
//     [Store.Messages] (reassembling reads), [Store.History]
//
// # Fragmentation
//
// Payloads above the configured size threshold are split across multiple
// rows by internal/fragment before they reach PostgreSQL: a primary row
// keeps the message id and carries fragment 0 plus the fragment count,
// continuation rows carry the rest, keyed by (parent_id, chunk_index).
// [Store.Messages] reverses this on load, so consumers only ever see whole
// payloads. Continuation rows never leak out of this package.
//
// # Degraded Reads
//
// Fragment rows are written independently, without a wrapping transaction.
// A crash mid-write leaves a primary declaring more chunks than exist; reads
// then return that message with fragment 0's content and Incomplete set
// rather than failing the whole conversation. Re-running the same append
// (same message id) converges because every record write is idempotent.
//
// # Concurrency
//
// Store is safe for concurrent use. All state lives in PostgreSQL; no
// shared Go-side state exists.
//
// # Local State
//
// [SaveCurrent] and [LoadCurrent] persist the active conversation id to
// ~/.simplechat/current_conversation for the CLI, using atomic writes
// (temp file + rename) guarded by [github.com/gofrs/flock] so concurrent
// invocations cannot interleave.
package conversation
