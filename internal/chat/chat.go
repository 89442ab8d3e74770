// Package chat implements the conversational agent: retrieval-grounded
// generation over a conversation's stored history.
//
// One Execute call runs history load and knowledge search in parallel,
// builds a grounded system prompt from the best passages, generates with
// optional token streaming, and persists both sides of the turn. The
// model endpoint is guarded by a shared rate limiter, bounded retries
// with exponential backoff, and a circuit breaker, in that order.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/pokhrel-dev/simplechat-sub001/internal/conversation"
	"github.com/pokhrel-dev/simplechat-sub001/internal/knowledge"
	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
)

const (
	// retrievalTimeout bounds the knowledge search per request, so a
	// slow vector query cannot stall the whole chat turn.
	retrievalTimeout = 5 * time.Second

	// defaultRetrievalTopK is the passage count when the config leaves
	// it unset.
	defaultRetrievalTopK = 5

	// fallbackResponseMessage is returned when the model produces an
	// empty response.
	fallbackResponseMessage = "I apologize, but I couldn't generate a response. Please try rephrasing your question."
)

// Sentinel errors for agent operations.
var (
	// ErrInvalidConversation indicates a malformed conversation ID.
	ErrInvalidConversation = errors.New("invalid conversation id")

	// ErrExecutionFailed indicates the chat turn failed.
	ErrExecutionFailed = errors.New("chat execution failed")
)

// Response is the complete result of one chat turn.
type Response struct {
	// Text is the assistant's reply.
	Text string

	// Sources lists the passages the reply was grounded on, in prompt
	// order. Empty when retrieval found nothing or is disabled.
	Sources []Source

	// MessageID is the stored assistant message's primary record id.
	// Empty if persistence failed; the reply itself is still valid.
	MessageID string
}

// StreamCallback receives each response chunk as it is generated.
// Returning an error aborts the stream.
type StreamCallback func(ctx context.Context, chunk *ai.ModelResponseChunk) error

// ConversationStore is the slice of the conversation store the agent
// uses: history for context, append for persisting the turn.
type ConversationStore interface {
	History(ctx context.Context, conversationID uuid.UUID, limit int32) ([]*ai.Message, error)
	Append(ctx context.Context, conversationID uuid.UUID, in conversation.AppendInput) ([]string, error)
}

// Retriever searches the knowledge base for grounding passages.
type Retriever interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

var (
	_ ConversationStore = (*conversation.Store)(nil)
	_ Retriever         = (*knowledge.Store)(nil)
)

// Config carries the agent's dependencies and tuning.
type Config struct {
	Genkit        *genkit.Genkit
	Conversations ConversationStore
	Knowledge     Retriever // nil disables retrieval grounding
	Logger        log.Logger

	ModelName     string // provider-qualified, e.g. "googleai/gemini-2.5-flash"
	RetrievalTopK int    // passages per query (default 5)
	HistoryLimit  int32  // prior messages loaded per turn

	// Resilience; zero values use defaults.
	RetryConfig          RetryConfig
	CircuitBreakerConfig CircuitBreakerConfig
	RateLimiter          *rate.Limiter
	TokenBudget          TokenBudget
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Conversations == nil {
		return errors.New("conversation store is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	return nil
}

// Agent is the conversational agent. It is stateless per request; all
// configuration is captured immutably at construction, so one Agent
// serves concurrent requests.
type Agent struct {
	modelName    string
	topK         int
	historyLimit int32

	retryConfig    RetryConfig
	circuitBreaker *CircuitBreaker
	rateLimiter    *rate.Limiter
	tokenBudget    TokenBudget

	g             *genkit.Genkit
	conversations ConversationStore
	knowledge     Retriever
	logger        log.Logger
}

// New creates an Agent from cfg.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid agent config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	topK := cfg.RetrievalTopK
	if topK <= 0 {
		topK = defaultRetrievalTopK
	}

	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}

	tokenBudget := cfg.TokenBudget
	if tokenBudget.MaxHistoryTokens == 0 {
		tokenBudget.MaxHistoryTokens = DefaultTokenBudget().MaxHistoryTokens
	}
	if tokenBudget.MaxContextTokens == 0 {
		tokenBudget.MaxContextTokens = DefaultTokenBudget().MaxContextTokens
	}

	// Default: 10 requests/sec sustained, burst of 30.
	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	a := &Agent{
		modelName:    cfg.ModelName,
		topK:         topK,
		historyLimit: conversation.NormalizeHistoryLimit(cfg.HistoryLimit),

		retryConfig:    retryConfig,
		circuitBreaker: NewCircuitBreaker(cfg.CircuitBreakerConfig),
		rateLimiter:    rl,
		tokenBudget:    tokenBudget,

		g:             cfg.Genkit,
		conversations: cfg.Conversations,
		knowledge:     cfg.Knowledge,
		logger:        logger,
	}

	a.logger.Info("chat agent initialized",
		"model", a.modelName,
		"retrieval_top_k", a.topK,
		"grounded", a.knowledge != nil,
	)
	return a, nil
}

// Execute runs one chat turn without streaming.
func (a *Agent) Execute(ctx context.Context, conversationID uuid.UUID, input string) (*Response, error) {
	return a.ExecuteStream(ctx, conversationID, input, nil)
}

// ExecuteStream runs one chat turn. If callback is non-nil it receives
// response chunks as they are generated; the complete response is
// returned either way. The user message and the reply are persisted
// best-effort after generation: a storage failure is logged, not
// returned, because the user already has the answer on the wire.
func (a *Agent) ExecuteStream(ctx context.Context, conversationID uuid.UUID, input string, callback StreamCallback) (*Response, error) {
	if strings.TrimSpace(input) == "" {
		return nil, conversation.ErrEmptyContent
	}

	a.logger.Debug("executing chat turn",
		"conversation_id", conversationID,
		"streaming", callback != nil)

	// Load history and search the knowledge base in parallel. Buffered
	// channels let either goroutine finish even if we bail out early.
	type historyResult struct {
		msgs []*ai.Message
		err  error
	}
	type searchResult struct {
		hits []knowledge.Result
		err  error
	}

	historyCh := make(chan historyResult, 1)
	searchCh := make(chan searchResult, 1)

	go func() {
		msgs, err := a.conversations.History(ctx, conversationID, a.historyLimit)
		historyCh <- historyResult{msgs, err}
	}()

	go func() {
		if a.knowledge == nil {
			searchCh <- searchResult{}
			return
		}
		searchCtx, cancel := context.WithTimeout(ctx, retrievalTimeout)
		defer cancel()
		hits, err := a.knowledge.Search(searchCtx, input, knowledge.WithTopK(a.topK))
		searchCh <- searchResult{hits, err}
	}()

	hr := <-historyCh
	if hr.err != nil {
		return nil, fmt.Errorf("loading history: %w", hr.err)
	}

	sr := <-searchCh
	if sr.err != nil {
		// Non-fatal: answer ungrounded rather than not at all.
		a.logger.Debug("knowledge search failed, continuing without context",
			"error", sr.err)
	}
	contextBlock, sources := formatSources(sr.hits, a.tokenBudget.MaxContextTokens)

	resp, err := a.generateResponse(ctx, input, hr.msgs, contextBlock, callback)
	if err != nil {
		return nil, err
	}

	responseText := resp.Text()
	if strings.TrimSpace(responseText) == "" {
		a.logger.Warn("model returned an empty response",
			"conversation_id", conversationID)
		responseText = fallbackResponseMessage
	}

	if _, err := a.conversations.Append(ctx, conversationID, conversation.AppendInput{
		Role:    conversation.RoleUser,
		Content: input,
	}); err != nil {
		a.logger.Warn("persisting user message", "conversation_id", conversationID, "error", err)
	}

	var messageID string
	ids, err := a.conversations.Append(ctx, conversationID, conversation.AppendInput{
		Role:    conversation.RoleAssistant,
		Content: responseText,
	})
	if err != nil {
		a.logger.Warn("persisting assistant message", "conversation_id", conversationID, "error", err)
	} else if len(ids) > 0 {
		messageID = ids[0]
	}

	return &Response{
		Text:      responseText,
		Sources:   sources,
		MessageID: messageID,
	}, nil
}

// generateResponse is the shared generation path for streaming and
// non-streaming turns.
func (a *Agent) generateResponse(ctx context.Context, input string, history []*ai.Message, contextBlock string, callback StreamCallback) (*ai.ModelResponse, error) {
	// Deep copy before genkit sees the messages: genkit's renderMessages
	// mutates msg.Content in place, and history slices may be shared
	// across concurrent requests for the same conversation.
	messages := deepCopyMessages(history)
	messages = a.truncateHistory(messages, a.tokenBudget.MaxHistoryTokens)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(input)))

	opts := []ai.GenerateOption{
		ai.WithModelName(a.modelName),
		ai.WithSystem(buildSystemPrompt(time.Now(), contextBlock)),
		ai.WithMessages(messages...),
	}
	if callback != nil {
		opts = append(opts, ai.WithStreaming(callback))
	}

	a.logger.Debug("generating response",
		"history_messages", len(messages)-1,
		"grounded", contextBlock != "",
		"input_bytes", len(input),
	)

	if err := a.circuitBreaker.Allow(); err != nil {
		a.logger.Warn("circuit breaker is open, rejecting request",
			"state", a.circuitBreaker.State().String())
		return nil, fmt.Errorf("service unavailable: %w", err)
	}

	resp, err := a.executeWithRetry(ctx, opts)
	if err != nil {
		a.circuitBreaker.Failure()
		return nil, err
	}

	a.circuitBreaker.Success()
	return resp, nil
}

// deepCopyMessages creates independent copies of Message and Part
// structs.
//
// WORKAROUND: genkit's renderMessages() modifies msg.Content in place,
// which races when concurrent executions share message objects.
// Tested version: github.com/firebase/genkit/go v1.4.0. To retire the
// workaround, upgrade genkit, run the chat tests under -race, and
// remove the deepCopyMessages calls if they pass.
func deepCopyMessages(msgs []*ai.Message) []*ai.Message {
	if msgs == nil {
		return nil
	}
	copied := make([]*ai.Message, len(msgs))
	for i, msg := range msgs {
		parts := make([]*ai.Part, len(msg.Content))
		for j, part := range msg.Content {
			parts[j] = deepCopyPart(part)
		}
		copied[i] = &ai.Message{
			Role:     msg.Role,
			Content:  parts,
			Metadata: shallowCopyMap(msg.Metadata),
		}
	}
	return copied
}

// deepCopyPart copies one part. ToolRequest.Input and
// ToolResponse.Output are `any` and copied by reference: genkit only
// mutates the Content slice, not tool payloads.
func deepCopyPart(p *ai.Part) *ai.Part {
	if p == nil {
		return nil
	}
	cp := &ai.Part{
		Kind:        p.Kind,
		ContentType: p.ContentType,
		Text:        p.Text,
		Custom:      shallowCopyMap(p.Custom),
		Metadata:    shallowCopyMap(p.Metadata),
	}
	if p.ToolRequest != nil {
		cp.ToolRequest = &ai.ToolRequest{
			Input: p.ToolRequest.Input,
			Name:  p.ToolRequest.Name,
			Ref:   p.ToolRequest.Ref,
		}
	}
	if p.ToolResponse != nil {
		cp.ToolResponse = &ai.ToolResponse{
			Name:   p.ToolResponse.Name,
			Output: p.ToolResponse.Output,
			Ref:    p.ToolResponse.Ref,
		}
	}
	if p.Resource != nil {
		cp.Resource = &ai.ResourcePart{Uri: p.Resource.Uri}
	}
	return cp
}

// shallowCopyMap copies keys and values; nested structures stay shared.
func shallowCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// Title generation constants.
const (
	titleGenerationTimeout = 5 * time.Second
	titleInputMaxRunes     = 500
)

const titlePrompt = `Generate a concise title (at most eight words) for a conversation that starts with this message.
Capture the topic or intent. Return ONLY the title text, no quotes, no trailing punctuation.

Message: %s

Title:`

// GenerateTitle names a conversation from its first user message.
// Best-effort: returns "" on any failure, and the caller keeps the
// default title.
func (a *Agent) GenerateTitle(ctx context.Context, userMessage string) string {
	ctx, cancel := context.WithTimeout(ctx, titleGenerationTimeout)
	defer cancel()

	runes := []rune(userMessage)
	if len(runes) > titleInputMaxRunes {
		userMessage = string(runes[:titleInputMaxRunes]) + "..."
	}

	resp, err := genkit.Generate(ctx, a.g,
		ai.WithModelName(a.modelName),
		ai.WithPrompt(titlePrompt, userMessage),
	)
	if err != nil {
		a.logger.Debug("title generation failed", "error", err)
		return ""
	}

	title := strings.TrimSpace(resp.Text())
	if title == "" {
		return ""
	}
	return clipTitle(title)
}

// clipTitle bounds a title to the store's byte limit, trimming on rune
// boundaries so multibyte text cannot be cut mid-character.
func clipTitle(title string) string {
	if len(title) <= conversation.MaxTitleLength {
		return title
	}
	runes := []rune(title)
	for len(runes) > 0 && len(string(runes)) > conversation.MaxTitleLength-3 {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
