package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
)

// Input is the request payload for the chat flow.
type Input struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

// Output is the complete (non-streamed) response payload.
type Output struct {
	Reply          string   `json:"reply"`
	ConversationID string   `json:"conversationId"`
	MessageID      string   `json:"messageId,omitempty"`
	Sources        []Source `json:"sources,omitempty"`
}

// StreamChunk carries one partial text fragment during streaming.
type StreamChunk struct {
	Text string `json:"text"`
}

// FlowName is the flow's registered name in genkit.
const FlowName = "simplechat/chat"

// Flow is the chat agent's genkit streaming flow type. Exported so the
// api package can expose it via genkit.Handler() and flow.Stream().
type Flow = core.Flow[Input, Output, StreamChunk]

// Flow registration is global in genkit and panics on re-registration,
// so the flow is a package-level singleton behind sync.Once.
var (
	flowOnce sync.Once
	flow     *Flow
)

// NewFlow returns the chat flow singleton, initializing it on first
// call. Later calls return the existing flow and ignore the arguments.
func NewFlow(g *genkit.Genkit, agent *Agent) *Flow {
	flowOnce.Do(func() {
		flow = agent.DefineFlow(g)
	})
	return flow
}

// ResetFlowForTesting clears the flow singleton so tests can register
// against a fresh genkit instance. Not safe for concurrent use.
func ResetFlowForTesting() {
	flowOnce = sync.Once{}
	flow = nil
}

// DefineFlow registers the chat flow with genkit. Use NewFlow instead
// of calling this directly; registration is global and a second call
// panics.
//
// The flow is a thin typed wrapper: it parses the conversation ID,
// adapts the genkit stream callback to StreamChunk values, and defers
// everything else to Agent.ExecuteStream. Errors wrap the package
// sentinels so HTTP handlers can map them to status codes with
// errors.Is.
func (a *Agent) DefineFlow(g *genkit.Genkit) *Flow {
	return genkit.DefineStreamingFlow(g, FlowName,
		func(ctx context.Context, input Input, streamCb func(context.Context, StreamChunk) error) (Output, error) {
			conversationID, err := uuid.Parse(input.ConversationID)
			if err != nil {
				return Output{ConversationID: input.ConversationID}, fmt.Errorf("%w: %w", ErrInvalidConversation, err)
			}

			// streamCb is nil when the flow runs via Run() rather than
			// Stream(); pass nil through so the agent skips streaming.
			var agentCallback StreamCallback
			if streamCb != nil {
				agentCallback = func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
					if chunk == nil {
						return nil
					}
					for _, part := range chunk.Content {
						if part.Text == "" {
							continue
						}
						if streamErr := streamCb(ctx, StreamChunk{Text: part.Text}); streamErr != nil {
							return streamErr
						}
					}
					return nil
				}
			}

			resp, err := a.ExecuteStream(ctx, conversationID, input.Message, agentCallback)
			if err != nil {
				return Output{ConversationID: input.ConversationID}, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
			}

			return Output{
				Reply:          resp.Text,
				ConversationID: input.ConversationID,
				MessageID:      resp.MessageID,
				Sources:        resp.Sources,
			}, nil
		},
	)
}
