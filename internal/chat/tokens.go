package chat

import (
	"unicode/utf8"

	"github.com/firebase/genkit/go/ai"
)

// TokenBudget bounds how much of the context window a request may
// spend on history and on retrieved passages. Zero values fall back to
// defaults.
type TokenBudget struct {
	// MaxHistoryTokens caps prior conversation messages.
	MaxHistoryTokens int

	// MaxContextTokens caps the retrieved passages injected into the
	// system prompt.
	MaxContextTokens int
}

// DefaultTokenBudget leaves generous room for history while keeping
// the retrieval block aligned with the default chunking (five chunks
// of 1600 runes is about 4000 estimated tokens).
func DefaultTokenBudget() TokenBudget {
	return TokenBudget{
		MaxHistoryTokens: 12000,
		MaxContextTokens: 4000,
	}
}

// estimateTokens approximates the token count of text as half its rune
// count, minimum one for non-empty input. Deliberately crude: the
// budget needs a stable ordering of message sizes, not tokenizer
// accuracy, and half-a-token-per-rune is conservative for both English
// and CJK on current models.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := utf8.RuneCountInString(text) / 2
	if n < 1 {
		return 1
	}
	return n
}

// estimateMessagesTokens sums the estimate over the text content of
// all messages.
func estimateMessagesTokens(msgs []*ai.Message) int {
	total := 0
	for _, m := range msgs {
		if m == nil {
			continue
		}
		total += estimateTokens(m.Text())
	}
	return total
}

// truncateHistory drops messages until the estimate fits budget.
// A leading system message is always kept, even when it alone exceeds
// the budget. The rest are considered newest-first: a message that
// does not fit is skipped, but older smaller ones may still make it,
// so one huge pasted blob does not erase the whole conversation.
// Chronological order is preserved in the result.
func (a *Agent) truncateHistory(msgs []*ai.Message, budget int) []*ai.Message {
	if len(msgs) == 0 {
		return msgs
	}

	var system *ai.Message
	rest := msgs
	if msgs[0] != nil && msgs[0].Role == ai.RoleSystem {
		system = msgs[0]
		rest = msgs[1:]
		budget -= estimateTokens(system.Text())
	}

	// Walk newest to oldest, marking what fits.
	keep := make([]bool, len(rest))
	kept := 0
	for i := len(rest) - 1; i >= 0; i-- {
		cost := estimateTokens(rest[i].Text())
		if cost <= budget {
			keep[i] = true
			kept++
			budget -= cost
		}
	}

	if system == nil && kept == len(rest) {
		return msgs
	}

	result := make([]*ai.Message, 0, kept+1)
	if system != nil {
		result = append(result, system)
	}
	for i, m := range rest {
		if keep[i] {
			result = append(result, m)
		}
	}

	if dropped := len(rest) - kept; dropped > 0 {
		a.logger.Debug("history truncated to fit token budget",
			"kept", kept, "dropped", dropped)
	}
	return result
}
