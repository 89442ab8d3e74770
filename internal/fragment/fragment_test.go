package fragment

import (
	"context"
	"strings"
	"testing"

	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
)

// writeAndReadBack pushes one payload through the full pipeline: policy,
// split, write into a capture sink, then reassembly over everything the
// sink holds, simulating a complete read-back.
func writeAndReadBack(t *testing.T, payload string) (Decision, []Record, []Record) {
	t.Helper()

	p := DefaultPolicy()
	d, err := p.Decide(payload)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if !d.Chunked {
		t.Fatalf("payload of %d bytes unexpectedly under threshold", len(payload))
	}

	prefix, data := SplitPrefix(payload)
	sink := &captureSink{}
	w := NewWriter(sink, testRetryConfig(), log.NewNop())

	ids, err := w.Write(context.Background(), "payload-1", "image", Split(data, d.FragmentSize), prefix)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if len(ids) != d.TotalChunks {
		t.Fatalf("written ids = %d, want total_chunks %d", len(ids), d.TotalChunks)
	}

	out := NewReassembler(log.NewNop()).Reassemble(sink.records)
	return d, sink.records, out
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{
			name:    "no prefix",
			payload: strings.Repeat("0123456789abcdef", 125_000), // 2,000,000 bytes
		},
		{
			name:    "data url prefix",
			payload: "data:image/jpeg;base64," + strings.Repeat("QUJD", 450_000),
		},
		{
			name:    "one byte over threshold",
			payload: strings.Repeat("z", SafeThreshold+1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stored, out := writeAndReadBack(t, tt.payload)

			if len(out) != 1 {
				t.Fatalf("reassembled records = %d, want 1", len(out))
			}
			if got := out[0].Content; got != tt.payload {
				t.Errorf("round trip mismatch: got %d bytes, want %d bytes", len(got), len(tt.payload))
			}
			for _, rec := range stored {
				if len(rec.Content) > SafeThreshold {
					t.Errorf("stored record %s holds %d bytes, above threshold", rec.ID, len(rec.Content))
				}
			}
		})
	}
}

func TestFragmentCountInvariant(t *testing.T) {
	payload := strings.Repeat("a", 3_456_789)

	d, stored, _ := writeAndReadBack(t, payload)

	wantTotal := (len(payload) + d.FragmentSize - 1) / d.FragmentSize
	if d.TotalChunks != wantTotal {
		t.Errorf("TotalChunks = %d, want ceil(len/fragment_size) = %d", d.TotalChunks, wantTotal)
	}
	if len(stored) != d.TotalChunks {
		t.Errorf("stored records = %d, want %d (1 primary + %d continuations)",
			len(stored), d.TotalChunks, d.TotalChunks-1)
	}
}

// TestLargeImageScenario walks a 4,300,000-character base64 image with a
// 23-character data-URL prefix through the pipeline and checks the exact
// sizes that fall out of the 1,500,000-byte threshold.
func TestLargeImageScenario(t *testing.T) {
	const prefix = "data:image/png;base64,"
	data := strings.Repeat("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopq", 100_000)
	if len(data) != 4_300_000 {
		t.Fatalf("test payload = %d bytes, want 4,300,000", len(data))
	}
	payload := prefix + data

	d, stored, out := writeAndReadBack(t, payload)

	if d.TotalChunks != 3 {
		t.Fatalf("TotalChunks = %d, want 3", d.TotalChunks)
	}
	if want := SafeThreshold - len(prefix); d.FragmentSize != want {
		t.Errorf("FragmentSize = %d, want threshold minus prefix = %d", d.FragmentSize, want)
	}

	if len(stored) != 3 {
		t.Fatalf("stored records = %d, want 3", len(stored))
	}
	if got := len(stored[0].Content); got != SafeThreshold {
		t.Errorf("primary record size = %d, want exactly %d (prefix + fragment 0)", got, SafeThreshold)
	}

	if len(out) != 1 {
		t.Fatalf("reassembled records = %d, want 1", len(out))
	}
	if out[0].Content != payload {
		t.Errorf("reassembled payload: got %d bytes, want the original %d bytes back",
			len(out[0].Content), len(payload))
	}
}
