package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/firebase/genkit/go/ai"

	"github.com/pokhrel-dev/simplechat-sub001/internal/chat"
	"github.com/pokhrel-dev/simplechat-sub001/internal/conversation"
	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
)

// SSE event types for chat streaming.
const (
	EventChunk   = "chunk"   // partial response text
	EventSources = "sources" // grounding passages, sent once before done
	EventDone    = "done"    // stream completed successfully
	EventError   = "error"   // error occurred during streaming
)

// maxChatBody caps chat request bodies.
const maxChatBody = 1 << 20 // 1MB

// ChunkPayload is the SSE data payload for streaming text chunks.
type ChunkPayload struct {
	Text string `json:"text"`
}

// SourcesPayload carries the passages the reply was grounded on.
type SourcesPayload struct {
	Sources []chat.Source `json:"sources"`
}

// DonePayload is the SSE data payload when streaming completes.
type DonePayload struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId,omitempty"`
}

// ErrorPayload is the SSE data payload when an error occurs.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// chatHandler serves the SSE streaming chat endpoint.
type chatHandler struct {
	agent         ChatStreamer
	conversations ConversationStore
	logger        log.Logger
}

// stream handles POST /api/conversations/{id}/chat: one chat turn,
// token chunks streamed as SSE events as the model produces them.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid conversation id", h.logger)
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "missing_message", "message is required", h.logger)
		return
	}

	// Resolve the conversation before committing to the SSE content
	// type, so a bad id is still a plain 404.
	conv, err := h.conversations.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
			return
		}
		h.logger.Error("loading conversation for chat", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported", h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx := r.Context()
	h.logger.Debug("SSE stream started", "conversation_id", id)

	callback := func(cbCtx context.Context, chunk *ai.ModelResponseChunk) error {
		if chunk == nil {
			return nil
		}
		for _, part := range chunk.Content {
			if part.Text == "" {
				continue
			}
			if err := writeEvent(w, flusher, EventChunk, ChunkPayload{Text: part.Text}); err != nil {
				// Write failure usually means the client went away.
				return err
			}
		}
		return nil
	}

	resp, err := h.agent.ExecuteStream(ctx, id, req.Message, callback)
	if err != nil {
		if ctx.Err() != nil {
			h.logger.Info("client disconnected", "conversation_id", id)
			return
		}
		h.writeStreamError(w, flusher, err)
		return
	}

	if len(resp.Sources) > 0 {
		_ = writeEvent(w, flusher, EventSources, SourcesPayload{Sources: resp.Sources})
	}

	_ = writeEvent(w, flusher, EventDone, DonePayload{
		Reply:          resp.Text,
		ConversationID: id.String(),
		MessageID:      resp.MessageID,
	})

	h.maybeTitle(ctx, conv, req.Message)

	h.logger.Debug("SSE stream completed", "conversation_id", id, "message_id", resp.MessageID)
}

// maybeTitle names a still-untitled conversation after its first
// message. Failure is warn-only; the turn already succeeded.
func (h *chatHandler) maybeTitle(ctx context.Context, conv *conversation.Conversation, userMessage string) {
	if conv.Title != conversation.DefaultTitle {
		return
	}
	title := h.agent.GenerateTitle(ctx, userMessage)
	if title == "" || title == conv.Title {
		return
	}
	if err := h.conversations.Rename(ctx, conv.ID, title); err != nil {
		h.logger.Warn("renaming conversation after first turn", "error", err, "conversation_id", conv.ID)
	}
}

// writeStreamError maps agent errors to SSE error events. Headers are
// already sent by now, so the error travels in-band.
func (h *chatHandler) writeStreamError(w io.Writer, f http.Flusher, err error) {
	code := "stream_error"
	switch {
	case errors.Is(err, chat.ErrCircuitOpen):
		code = "model_unavailable"
	case errors.Is(err, conversation.ErrNotFound):
		code = "not_found"
	}

	h.logger.Error("chat stream failed", "error", err, "code", code)
	_ = writeEvent(w, f, EventError, ErrorPayload{
		Code:    code,
		Message: "chat request failed",
	})
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}
