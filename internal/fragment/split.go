package fragment

import (
	"fmt"
	"iter"
)

// Split cuts payload into ordered, non-overlapping substrings of length
// fragmentSize, the last one holding the remainder (length 1 up to
// fragmentSize). The sequence is lazy and restartable; ranging over it
// twice yields the same fragments. Concatenating every fragment in order
// reproduces payload exactly.
//
// Split is only called after the size policy has decided fragmentation is
// necessary, so a non-positive fragmentSize or an empty payload
// contradicts that decision and panics rather than returning an error.
func Split(payload string, fragmentSize int) iter.Seq[string] {
	if fragmentSize <= 0 {
		panic(fmt.Sprintf("fragment: non-positive fragment size %d", fragmentSize))
	}
	if payload == "" {
		panic("fragment: empty payload after chunking was decided")
	}

	return func(yield func(string) bool) {
		for start := 0; start < len(payload); start += fragmentSize {
			end := min(start+fragmentSize, len(payload))
			if !yield(payload[start:end]) {
				return
			}
		}
	}
}
