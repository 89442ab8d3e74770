package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pokhrel-dev/simplechat-sub001/internal/conversation"
	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
)

func newTestServer(t *testing.T, store *mockConversationStore) http.Handler {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Logger:        log.NewNop(),
		Conversations: store,
	})
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	return srv.Handler()
}

func TestConversations_Create(t *testing.T) {
	store := newMockStore()
	handler := newTestServer(t, store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/conversations", strings.NewReader(`{"title":"research notes"}`))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var got conversationJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Title != "research notes" {
		t.Errorf("title = %q, want %q", got.Title, "research notes")
	}
	if _, err := uuid.Parse(got.ID); err != nil {
		t.Errorf("id %q is not a UUID: %v", got.ID, err)
	}
}

func TestConversations_Create_BadBody(t *testing.T) {
	handler := newTestServer(t, newMockStore())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/conversations", strings.NewReader("{not json"))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestConversations_Get(t *testing.T) {
	store := newMockStore()
	conv := store.addConversation("kept")
	handler := newTestServer(t, store)

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"existing", "/api/conversations/" + conv.ID.String(), http.StatusOK},
		{"missing", "/api/conversations/" + uuid.NewString(), http.StatusNotFound},
		{"malformed id", "/api/conversations/not-a-uuid", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestConversations_List(t *testing.T) {
	store := newMockStore()
	store.addConversation("one")
	store.addConversation("two")
	handler := newTestServer(t, store)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/conversations?limit=10", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got struct {
		Conversations []conversationJSON `json:"conversations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got.Conversations) != 2 {
		t.Errorf("len(conversations) = %d, want 2", len(got.Conversations))
	}
}

func TestConversations_Rename(t *testing.T) {
	store := newMockStore()
	conv := store.addConversation("old")
	handler := newTestServer(t, store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/conversations/"+conv.ID.String(),
		strings.NewReader(`{"title":"new"}`))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if conv.Title != "new" {
		t.Errorf("title = %q, want %q", conv.Title, "new")
	}
}

func TestConversations_Rename_EmptyTitle(t *testing.T) {
	store := newMockStore()
	conv := store.addConversation("old")
	handler := newTestServer(t, store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/conversations/"+conv.ID.String(),
		strings.NewReader(`{}`))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestConversations_Delete(t *testing.T) {
	store := newMockStore()
	conv := store.addConversation("doomed")
	handler := newTestServer(t, store)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/conversations/"+conv.ID.String(), nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if _, ok := store.conversations[conv.ID]; ok {
		t.Error("conversation still present after delete")
	}
}

func TestConversations_Messages(t *testing.T) {
	store := newMockStore()
	conv := store.addConversation("with messages")
	store.messages[conv.ID] = []conversation.Message{
		{ID: "m1", Role: conversation.RoleUser, Content: "hello", CreatedAt: time.Now()},
		{ID: "m2", Role: conversation.RoleAssistant, Content: "hi there", CreatedAt: time.Now()},
	}
	handler := newTestServer(t, store)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/conversations/"+conv.ID.String()+"/messages", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got struct {
		Messages []messageJSON `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(got.Messages))
	}
	if got.Messages[1].Content != "hi there" {
		t.Errorf("content = %q, want %q", got.Messages[1].Content, "hi there")
	}
}

func TestConversations_Messages_IncompleteMasked(t *testing.T) {
	// A message whose fragments were lost must surface as content
	// unavailable, never as a truncated body.
	store := newMockStore()
	conv := store.addConversation("degraded")
	store.messages[conv.ID] = []conversation.Message{
		{ID: "m1", Role: conversation.RoleImage, Content: "data:image/png;base64,TRUNCATED", Incomplete: true},
	}
	handler := newTestServer(t, store)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/conversations/"+conv.ID.String()+"/messages", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got struct {
		Messages []messageJSON `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got.Messages) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(got.Messages))
	}
	msg := got.Messages[0]
	if !msg.ContentUnavailable {
		t.Error("contentUnavailable = false, want true")
	}
	if msg.Content != "" {
		t.Errorf("content = %q, want empty (no partial payload on the wire)", msg.Content)
	}
}

func TestConversations_StoreFailure(t *testing.T) {
	store := newMockStore()
	store.listErr = errBoom
	handler := newTestServer(t, store)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/conversations", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if strings.Contains(rec.Body.String(), "boom") {
		t.Error("internal error detail leaked to client")
	}
}
