package fragment

import "strings"

// Store sizing constants. HardCeiling mirrors the per-record cap the
// backing store enforces; SafeThreshold leaves margin for the record's
// metadata and JSON envelope so a fragment-sized record can never brush
// the ceiling.
const (
	// HardCeiling is the backing store's maximum record size in bytes.
	HardCeiling = 2_000_000

	// SafeThreshold is the largest payload written as a single record.
	// Anything larger is fragmented so that every fragment, including
	// fragment 0 with its structural prefix, stays at or under this.
	SafeThreshold = 1_500_000
)

// maxPrefixScan bounds the search for a data-URL header. RFC 2397 headers
// ("data:<mediatype>;base64,") are short; anything without a comma this
// early is treated as raw data.
const maxPrefixScan = 256

// Decision is the size policy's verdict for one payload.
type Decision struct {
	// Chunked reports whether the payload must be fragmented.
	Chunked bool

	// FragmentSize is the uniform data-slice length per fragment.
	// Meaningful only when Chunked.
	FragmentSize int

	// TotalChunks is ceil(dataLen / FragmentSize), counting fragment 0.
	// Meaningful only when Chunked.
	TotalChunks int
}

// Policy decides, at write time, whether a payload needs fragmentation and
// how large each fragment may be. The zero value is unusable; construct
// with DefaultPolicy or from configuration.
type Policy struct {
	// Ceiling is the store's hard per-record cap.
	Ceiling int

	// Threshold is the single-record cutoff. Must be positive and below
	// Ceiling.
	Threshold int
}

// DefaultPolicy returns the policy matching the store defaults.
func DefaultPolicy() Policy {
	return Policy{Ceiling: HardCeiling, Threshold: SafeThreshold}
}

// Decide evaluates a fully serialized payload against the policy.
//
// Payloads at or under the threshold are written unmodified as one record.
// Larger payloads are fragmented: the structural prefix (a data-URL
// header, if present) stays attached to fragment 0, so the uniform
// fragment size is budgeted as threshold minus prefix length. That makes
// fragment 0's total serialized size (prefix + data slice) respect the
// threshold by construction instead of re-checking after the fact.
//
// A prefix so large it leaves no budget for data is a policy violation,
// returned as *PolicyError before anything is written.
func (p Policy) Decide(payload string) (Decision, error) {
	if len(payload) <= p.Threshold {
		return Decision{}, nil
	}

	prefix, data := SplitPrefix(payload)
	size := p.Threshold - len(prefix)
	if size <= 0 {
		return Decision{}, &PolicyError{
			PayloadLen: len(payload),
			PrefixLen:  len(prefix),
			Threshold:  p.Threshold,
		}
	}

	return Decision{
		Chunked:      true,
		FragmentSize: size,
		TotalChunks:  chunkCount(len(data), size),
	}, nil
}

// SplitPrefix separates a data-URL header from the payload it carries. The
// returned prefix includes the terminating comma and is empty when the
// payload has no recognizable header; prefix + data == payload always
// holds.
func SplitPrefix(payload string) (prefix, data string) {
	if !strings.HasPrefix(payload, "data:") {
		return "", payload
	}
	limit := min(len(payload), maxPrefixScan)
	i := strings.IndexByte(payload[:limit], ',')
	if i < 0 {
		return "", payload
	}
	return payload[:i+1], payload[i+1:]
}

// chunkCount is ceil(dataLen / fragmentSize) for positive inputs.
func chunkCount(dataLen, fragmentSize int) int {
	return (dataLen + fragmentSize - 1) / fragmentSize
}
