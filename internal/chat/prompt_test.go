package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/pokhrel-dev/simplechat-sub001/internal/knowledge"
)

func TestBuildSystemPrompt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

	t.Run("ungrounded prompt has no passage block", func(t *testing.T) {
		t.Parallel()

		got := buildSystemPrompt(now, "")

		if !strings.Contains(got, "You are simplechat") {
			t.Errorf("prompt missing identity line: %q", got)
		}
		if !strings.Contains(got, "2026-03-14") {
			t.Errorf("prompt missing current date: %q", got)
		}
		if strings.Contains(got, "Passages:") {
			t.Errorf("ungrounded prompt should not mention passages: %q", got)
		}
	})

	t.Run("grounded prompt appends citation rules and passages", func(t *testing.T) {
		t.Parallel()

		block := "[1] Pharos\nAn ancient lighthouse."
		got := buildSystemPrompt(now, block)

		if !strings.Contains(got, "cite them by number") {
			t.Errorf("prompt missing citation instructions: %q", got)
		}
		if !strings.Contains(got, "Passages:\n"+block) {
			t.Errorf("prompt missing passage block: %q", got)
		}
	})
}

func TestFormatSources(t *testing.T) {
	t.Parallel()

	hits := []knowledge.Result{
		{
			Document: knowledge.Document{
				ID:      "doc-1#0",
				Content: "Lighthouses guided sailors for centuries.",
				Metadata: map[string]string{
					"title":    "Lighthouse History",
					"location": "https://example.com/lighthouses",
				},
			},
			Similarity: 0.92,
		},
		{
			Document: knowledge.Document{
				ID:       "doc-2#3",
				Content:  "The Pharos of Alexandria stood over 100 meters tall.",
				Metadata: map[string]string{"title": "Pharos"},
			},
			Similarity: 0.81,
		},
	}

	t.Run("no results", func(t *testing.T) {
		t.Parallel()

		block, sources := formatSources(nil, 1000)
		if block != "" {
			t.Errorf("block = %q, want empty", block)
		}
		if sources != nil {
			t.Errorf("sources = %v, want nil", sources)
		}
	})

	t.Run("numbers passages and returns matching attributions", func(t *testing.T) {
		t.Parallel()

		block, sources := formatSources(hits, 1000)

		wantBlock := "[1] Lighthouse History (https://example.com/lighthouses)\n" +
			"Lighthouses guided sailors for centuries.\n" +
			"\n" +
			"[2] Pharos\n" +
			"The Pharos of Alexandria stood over 100 meters tall.\n"
		if block != wantBlock {
			t.Errorf("block = %q, want %q", block, wantBlock)
		}

		want := []Source{
			{Ref: 1, Title: "Lighthouse History", Location: "https://example.com/lighthouses", Similarity: 0.92},
			{Ref: 2, Title: "Pharos", Similarity: 0.81},
		}
		if len(sources) != len(want) {
			t.Fatalf("sources len = %d, want %d", len(sources), len(want))
		}
		for i := range want {
			if sources[i] != want[i] {
				t.Errorf("sources[%d] = %+v, want %+v", i, sources[i], want[i])
			}
		}
	})

	t.Run("token budget cuts off lower-ranked passages", func(t *testing.T) {
		t.Parallel()

		// First passage costs ~20 tokens, second ~26.
		block, sources := formatSources(hits, 25)

		if len(sources) != 1 {
			t.Fatalf("sources len = %d, want 1", len(sources))
		}
		if !strings.Contains(block, "[1]") {
			t.Errorf("block missing first passage: %q", block)
		}
		if strings.Contains(block, "[2]") {
			t.Errorf("block should not contain second passage: %q", block)
		}
	})

	t.Run("zero budget yields nothing", func(t *testing.T) {
		t.Parallel()

		block, sources := formatSources(hits, 0)
		if block != "" || sources != nil {
			t.Errorf("formatSources(hits, 0) = (%q, %v), want empty", block, sources)
		}
	})

	t.Run("blank passages are skipped without consuming a number", func(t *testing.T) {
		t.Parallel()

		results := []knowledge.Result{
			{Document: knowledge.Document{ID: "blank", Content: "   \n"}, Similarity: 0.99},
			{Document: knowledge.Document{ID: "real", Content: "Useful text."}, Similarity: 0.5},
		}

		block, sources := formatSources(results, 1000)

		if len(sources) != 1 {
			t.Fatalf("sources len = %d, want 1", len(sources))
		}
		if sources[0].Ref != 1 {
			t.Errorf("Ref = %d, want 1 (blank hit must not consume a number)", sources[0].Ref)
		}
		if !strings.Contains(block, "[1]\nUseful text.") {
			t.Errorf("block = %q, want untitled header followed by passage", block)
		}
	})
}
