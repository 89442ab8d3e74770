package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pokhrel-dev/simplechat-sub001/internal/conversation"
	"github.com/pokhrel-dev/simplechat-sub001/internal/fragment"
	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
)

// imageHandler serves image generation into a conversation. The
// generated data URL is the canonical oversized payload: persisting it
// runs the size policy and, for large images, the fragment writer.
type imageHandler struct {
	media         ImageGenerator
	conversations ConversationStore
	logger        log.Logger
}

// imageResponse reports what was stored. RecordCount is the number of
// physical records the payload became (1 unless it was fragmented), so
// callers can verify the write against the returned ids.
type imageResponse struct {
	MessageID   string `json:"messageId"`
	ContentType string `json:"contentType"`
	Caption     string `json:"caption,omitempty"`
	RecordCount int    `json:"recordCount"`
}

// generate handles POST /api/conversations/{id}/image.
func (h *imageHandler) generate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid conversation id", h.logger)
		return
	}

	var req struct {
		Prompt string `json:"prompt"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "missing_prompt", "prompt is required", h.logger)
		return
	}

	img, err := h.media.Generate(r.Context(), req.Prompt)
	if err != nil {
		h.logger.Error("generating image", "error", err)
		writeError(w, http.StatusBadGateway, "generation_failed", "image generation failed", h.logger)
		return
	}

	ids, err := h.conversations.Append(r.Context(), id, conversation.AppendInput{
		Role:    conversation.RoleImage,
		Content: img.DataURL,
	})
	if err != nil {
		h.writeAppendError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, imageResponse{
		MessageID:   ids[0],
		ContentType: img.ContentType,
		Caption:     img.Caption,
		RecordCount: len(ids),
	}, h.logger)
}

// writeAppendError maps persistence failures. A partial fragmented
// write is reported distinctly: the payload exists but is incomplete
// until a retry converges it, and readers will see it degraded.
func (h *imageHandler) writeAppendError(w http.ResponseWriter, err error) {
	var partial *fragment.PartialWriteError

	switch {
	case errors.Is(err, conversation.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
	case errors.Is(err, fragment.ErrPolicyViolation):
		h.logger.Error("image payload rejected by size policy", "error", err)
		writeError(w, http.StatusUnprocessableEntity, "payload_rejected", "generated image cannot be stored", h.logger)
	case errors.As(err, &partial):
		h.logger.Error("partial fragmented write",
			"error", err,
			"parent_id", partial.ParentID,
			"written", len(partial.Written),
			"missing", len(partial.Missing),
		)
		writeError(w, http.StatusInternalServerError, "partial_write", "image stored incompletely", h.logger)
	default:
		h.logger.Error("storing generated image", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
	}
}
