package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/pokhrel-dev/simplechat-sub001/internal/conversation"
	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
)

const (
	conversationsDefaultLimit = 50
	conversationsMaxLimit     = 200

	// maxJSONBody caps JSON request bodies on conversation routes.
	maxJSONBody = 64 << 10 // 64KB
)

// conversationHandler serves conversation CRUD and message listings.
type conversationHandler struct {
	store  ConversationStore
	logger log.Logger
}

// conversationJSON is the wire shape of a conversation.
type conversationJSON struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// messageJSON is the wire shape of a reassembled message. A message
// whose fragments were lost carries contentUnavailable instead of a
// truncated body; clients render a degraded state from the flag.
type messageJSON struct {
	ID                 string    `json:"id"`
	Role               string    `json:"role"`
	Content            string    `json:"content"`
	ContentUnavailable bool      `json:"contentUnavailable,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

func toConversationJSON(c *conversation.Conversation) conversationJSON {
	return conversationJSON{
		ID:        c.ID.String(),
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toMessageJSON(m conversation.Message) messageJSON {
	out := messageJSON{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
	if m.Incomplete {
		// Never ship a silently truncated payload.
		out.Content = ""
		out.ContentUnavailable = true
	}
	return out
}

// pathID parses the {id} path segment as a UUID.
func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	return id, err == nil
}

func (h *conversationHandler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	conv, err := h.store.Create(r.Context(), req.Title)
	if err != nil {
		h.writeStoreError(w, err, "creating conversation")
		return
	}

	writeJSON(w, http.StatusCreated, toConversationJSON(conv), h.logger)
}

func (h *conversationHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := queryInt32(r, "limit", conversationsDefaultLimit)
	if limit <= 0 || limit > conversationsMaxLimit {
		limit = conversationsDefaultLimit
	}
	offset := queryInt32(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	convs, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		h.writeStoreError(w, err, "listing conversations")
		return
	}

	out := make([]conversationJSON, 0, len(convs))
	for _, c := range convs {
		out = append(out, toConversationJSON(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": out}, h.logger)
}

func (h *conversationHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid conversation id", h.logger)
		return
	}

	conv, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err, "getting conversation")
		return
	}

	writeJSON(w, http.StatusOK, toConversationJSON(conv), h.logger)
}

func (h *conversationHandler) rename(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid conversation id", h.logger)
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "missing_title", "title is required", h.logger)
		return
	}

	if err := h.store.Rename(r.Context(), id, req.Title); err != nil {
		h.writeStoreError(w, err, "renaming conversation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *conversationHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid conversation id", h.logger)
		return
	}

	// Deleting the conversation cascades to every message row,
	// continuation records included.
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.writeStoreError(w, err, "deleting conversation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *conversationHandler) messages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid conversation id", h.logger)
		return
	}

	msgs, err := h.store.Messages(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err, "loading messages")
		return
	}

	out := make([]messageJSON, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageJSON(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out}, h.logger)
}

// writeStoreError maps store errors to HTTP status codes. Internal
// details go to the log, never to the client.
func (h *conversationHandler) writeStoreError(w http.ResponseWriter, err error, doing string) {
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
	case errors.Is(err, conversation.ErrTitleTooLong):
		writeError(w, http.StatusBadRequest, "title_too_long", "conversation title too long", h.logger)
	default:
		h.logger.Error(doing, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
	}
}

// queryInt32 parses an int32 query parameter, returning def when the
// parameter is absent or malformed.
func queryInt32(r *http.Request, key string, def int32) int32 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return def
	}
	return int32(n)
}
