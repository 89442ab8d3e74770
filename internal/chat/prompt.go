package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/pokhrel-dev/simplechat-sub001/internal/knowledge"
)

// Source is one retrieved passage the answer was grounded on. Ref is
// the bracketed number used in the prompt, so the model's citations
// like [2] line up with what the client displays.
type Source struct {
	Ref        int     `json:"ref"`
	Title      string  `json:"title,omitempty"`
	Location   string  `json:"location,omitempty"`
	Similarity float32 `json:"similarity"`
}

const systemPromptBase = `You are simplechat, an assistant that answers questions using the user's own documents.
Be direct and concise. Today's date: %s.`

const groundingInstructions = `

Ground your answer in the numbered passages below when they are relevant, and cite them by number, like [2]. If the passages do not cover the question, say so before answering from general knowledge. Never invent citations.

Passages:
%s`

// buildSystemPrompt renders the system prompt, with the retrieval block
// appended only when there is one.
func buildSystemPrompt(now time.Time, contextBlock string) string {
	prompt := fmt.Sprintf(systemPromptBase, now.Format("2006-01-02"))
	if contextBlock != "" {
		prompt += fmt.Sprintf(groundingInstructions, contextBlock)
	}
	return prompt
}

// formatSources renders search hits as numbered passages and returns
// the attribution list in the same order. Passages are taken best-first
// until the token budget runs out; a hit with blank content is skipped
// without consuming a number.
func formatSources(results []knowledge.Result, maxTokens int) (string, []Source) {
	if len(results) == 0 {
		return "", nil
	}

	var b strings.Builder
	var sources []Source
	remaining := maxTokens
	for _, r := range results {
		passage := strings.TrimSpace(r.Document.Content)
		if passage == "" {
			continue
		}
		cost := estimateTokens(passage)
		if cost > remaining {
			break
		}
		remaining -= cost

		ref := len(sources) + 1
		title := r.Document.Metadata["title"]
		location := r.Document.Metadata["location"]

		b.WriteString(fmt.Sprintf("[%d]", ref))
		if title != "" {
			b.WriteString(" " + title)
		}
		if location != "" {
			b.WriteString(" (" + location + ")")
		}
		b.WriteString("\n")
		b.WriteString(passage)
		b.WriteString("\n\n")

		sources = append(sources, Source{
			Ref:        ref,
			Title:      title,
			Location:   location,
			Similarity: r.Similarity,
		})
	}
	return strings.TrimSuffix(b.String(), "\n"), sources
}
