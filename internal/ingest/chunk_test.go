package ingest

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunks(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    []string
	}{
		{
			name:    "empty text",
			text:    "",
			size:    10,
			overlap: 2,
			want:    nil,
		},
		{
			name:    "zero size",
			text:    "some text",
			size:    0,
			overlap: 0,
			want:    nil,
		},
		{
			name:    "text shorter than window",
			text:    "short",
			size:    10,
			overlap: 2,
			want:    []string{"short"},
		},
		{
			name:    "text exactly one window",
			text:    "abcdefghij",
			size:    10,
			overlap: 2,
			want:    []string{"abcdefghij"},
		},
		{
			name:    "no whitespace splits mid-run",
			text:    strings.Repeat("a", 21),
			size:    10,
			overlap: 3,
			want: []string{
				strings.Repeat("a", 10),
				strings.Repeat("a", 10),
				strings.Repeat("a", 7),
			},
		},
		{
			name:    "cut snaps to whitespace in tail quarter",
			text:    "abcdefghij klmnop",
			size:    12,
			overlap: 0,
			want:    []string{"abcdefghij ", "klmnop"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Chunks(tt.text, tt.size, tt.overlap)
			if len(got) != len(tt.want) {
				t.Fatalf("Chunks() returned %d chunks %q, want %d %q", len(got), got, len(tt.want), tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Chunks()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestChunks_OverlapReconstructs(t *testing.T) {
	// With uniform text and no whitespace, stripping the overlap from
	// every chunk after the first must reproduce the input exactly.
	text := strings.Repeat("x", 95)
	size, overlap := 20, 5

	chunks := Chunks(text, size, overlap)
	if len(chunks) < 2 {
		t.Fatalf("Chunks() returned %d chunks, want several", len(chunks))
	}

	rebuilt := chunks[0]
	for _, chunk := range chunks[1:] {
		runes := []rune(chunk)
		if len(runes) <= overlap {
			t.Fatalf("chunk %q has no content beyond the overlap", chunk)
		}
		rebuilt += string(runes[overlap:])
	}
	if rebuilt != text {
		t.Errorf("reassembled %d runes, want %d", len(rebuilt), len(text))
	}
}

func TestChunks_RuneSafety(t *testing.T) {
	text := strings.Repeat("界", 10)

	chunks := Chunks(text, 4, 1)
	if len(chunks) == 0 {
		t.Fatal("Chunks() returned no chunks")
	}
	for i, chunk := range chunks {
		if !utf8.ValidString(chunk) {
			t.Errorf("chunk %d is not valid UTF-8: %q", i, chunk)
		}
		if n := utf8.RuneCountInString(chunk); n > 4 {
			t.Errorf("chunk %d has %d runes, want at most 4", i, n)
		}
	}
}

func TestChunks_AlwaysTerminates(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
	}{
		{"overlap equals size", strings.Repeat("b", 50), 5, 5},
		{"overlap beyond size", strings.Repeat("b", 50), 5, 50},
		{"negative overlap", strings.Repeat("b", 50), 5, -3},
		{"single rune window", strings.Repeat("b", 20), 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Chunks(tt.text, tt.size, tt.overlap)
			if len(chunks) == 0 {
				t.Fatal("Chunks() returned no chunks")
			}
			// Every iteration must advance, so the chunk count can never
			// exceed the rune count.
			if len(chunks) > len(tt.text) {
				t.Errorf("Chunks() returned %d chunks for %d runes", len(chunks), len(tt.text))
			}
			joined := strings.Join(chunks, "")
			if !strings.Contains(joined, tt.text[:1]) {
				t.Error("chunks lost the input content")
			}
		})
	}
}
