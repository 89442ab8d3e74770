package fragment

import (
	"errors"
	"fmt"
)

// Sentinel errors for fragmentation. Callers match with errors.Is; the
// typed errors below carry the detail.
var (
	// ErrPolicyViolation means the size policy could not produce a valid
	// fragment size for the payload. Nothing has been written.
	ErrPolicyViolation = errors.New("payload cannot satisfy size policy")

	// ErrPartialWrite means some fragment records were persisted and
	// some were not. Already-written records are left in place.
	ErrPartialWrite = errors.New("fragmented write incomplete")
)

// PolicyError reports a payload whose structural prefix leaves no budget
// for data under the threshold. Surfaced before any write is attempted.
type PolicyError struct {
	PayloadLen int
	PrefixLen  int
	Threshold  int
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("payload of %d bytes with %d-byte prefix cannot fit under threshold %d",
		e.PayloadLen, e.PrefixLen, e.Threshold)
}

func (e *PolicyError) Unwrap() error { return ErrPolicyViolation }

// PartialWriteError reports which fragments of a chunked payload reached
// the store before a write failed. Written holds persisted chunk indexes
// in write order; Missing holds the failed index and everything after it.
// Re-running the write for the missing indexes is safe: fragment inserts
// are idempotent on (parent id, chunk index).
type PartialWriteError struct {
	ParentID string
	Written  []int
	Missing  []int
	Err      error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("fragmented write for %s: %d of %d records persisted: %v",
		e.ParentID, len(e.Written), len(e.Written)+len(e.Missing), e.Err)
}

func (e *PartialWriteError) Unwrap() []error {
	return []error{ErrPartialWrite, e.Err}
}
