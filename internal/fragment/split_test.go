package fragment

import (
	"slices"
	"strings"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name         string
		payload      string
		fragmentSize int
		want         []string
	}{
		{
			name:         "even split",
			payload:      "abcdef",
			fragmentSize: 2,
			want:         []string{"ab", "cd", "ef"},
		},
		{
			name:         "remainder in last fragment",
			payload:      "abcdefg",
			fragmentSize: 3,
			want:         []string{"abc", "def", "g"},
		},
		{
			name:         "fragment larger than payload",
			payload:      "abc",
			fragmentSize: 10,
			want:         []string{"abc"},
		},
		{
			name:         "single byte fragments",
			payload:      "abc",
			fragmentSize: 1,
			want:         []string{"a", "b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Collect(Split(tt.payload, tt.fragmentSize))
			if !slices.Equal(got, tt.want) {
				t.Errorf("Split() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	payload := strings.Repeat("0123456789", 123_457) // not a multiple of any tidy size
	const size = 999

	var sb strings.Builder
	count := 0
	for frag := range Split(payload, size) {
		last := sb.Len()+len(frag) == len(payload)
		if len(frag) != size && !last {
			t.Fatalf("fragment %d has length %d, want %d", count, len(frag), size)
		}
		if last && (len(frag) < 1 || len(frag) > size) {
			t.Fatalf("last fragment has length %d, want within [1, %d]", len(frag), size)
		}
		sb.WriteString(frag)
		count++
	}

	if sb.String() != payload {
		t.Error("concatenated fragments do not reproduce the payload")
	}
	if want := (len(payload) + size - 1) / size; count != want {
		t.Errorf("fragment count = %d, want %d", count, want)
	}
}

func TestSplit_Restartable(t *testing.T) {
	seq := Split("abcdefghij", 4)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if !slices.Equal(first, second) {
		t.Errorf("second iteration = %q, want %q", second, first)
	}
}

func TestSplit_EarlyBreak(t *testing.T) {
	var got []string
	for frag := range Split("abcdef", 2) {
		got = append(got, frag)
		if len(got) == 2 {
			break
		}
	}
	if !slices.Equal(got, []string{"ab", "cd"}) {
		t.Errorf("fragments before break = %q", got)
	}
}

func TestSplit_InvariantViolations(t *testing.T) {
	tests := []struct {
		name         string
		payload      string
		fragmentSize int
	}{
		{name: "zero fragment size", payload: "abc", fragmentSize: 0},
		{name: "negative fragment size", payload: "abc", fragmentSize: -1},
		{name: "empty payload", payload: "", fragmentSize: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic for contradictory split arguments")
				}
			}()
			Split(tt.payload, tt.fragmentSize)
		})
	}
}
