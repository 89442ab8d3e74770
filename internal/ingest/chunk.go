package ingest

import "unicode"

// Chunks splits text into windows of at most size runes, with consecutive
// windows sharing overlap runes of context. When a window would end
// mid-word, the cut backs up to the last whitespace in the final quarter
// of the window so chunks keep whole words where the text allows it.
//
// Size and overlap count runes, not bytes, so multi-byte scripts chunk
// the same way ASCII does. Overlap must be smaller than size; out-of-range
// values are clamped. Returns nil for empty input.
func Chunks(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		cut := start + size
		if cut >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		// Snap the cut to a whitespace boundary when one falls inside
		// the last quarter of the window.
		for w := cut - 1; w > cut-size/4; w-- {
			if unicode.IsSpace(runes[w]) {
				cut = w + 1
				break
			}
		}

		chunks = append(chunks, string(runes[start:cut]))

		next := cut - overlap
		if next <= start {
			// The overlap would rewind past the previous start; advance
			// without it so every iteration makes progress.
			next = cut
		}
		start = next
	}
	return chunks
}
