package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/pokhrel-dev/simplechat-sub001/internal/chat"
	"github.com/pokhrel-dev/simplechat-sub001/internal/conversation"
	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
)

// ==================== Shared mocks ====================

// mockConversationStore implements ConversationStore with canned data
// and per-method error injection.
type mockConversationStore struct {
	conversations map[uuid.UUID]*conversation.Conversation
	messages      map[uuid.UUID][]conversation.Message

	createErr error
	getErr    error
	listErr   error
	renameErr error
	deleteErr error
	msgErr    error
	appendErr error

	appendCalls int
	appendIDs   []string
	renameCalls int
	lastTitle   string
}

func newMockStore() *mockConversationStore {
	return &mockConversationStore{
		conversations: make(map[uuid.UUID]*conversation.Conversation),
		messages:      make(map[uuid.UUID][]conversation.Message),
	}
}

func (m *mockConversationStore) addConversation(title string) *conversation.Conversation {
	c := &conversation.Conversation{
		ID:        uuid.New(),
		Title:     title,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.conversations[c.ID] = c
	return c
}

func (m *mockConversationStore) Create(_ context.Context, title string) (*conversation.Conversation, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	if title == "" {
		title = conversation.DefaultTitle
	}
	return m.addConversation(title), nil
}

func (m *mockConversationStore) Get(_ context.Context, id uuid.UUID) (*conversation.Conversation, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.conversations[id]
	if !ok {
		return nil, conversation.ErrNotFound
	}
	return c, nil
}

func (m *mockConversationStore) List(_ context.Context, _, _ int32) ([]*conversation.Conversation, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*conversation.Conversation, 0, len(m.conversations))
	for _, c := range m.conversations {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockConversationStore) Rename(_ context.Context, id uuid.UUID, title string) error {
	m.renameCalls++
	m.lastTitle = title
	if m.renameErr != nil {
		return m.renameErr
	}
	c, ok := m.conversations[id]
	if !ok {
		return conversation.ErrNotFound
	}
	c.Title = title
	return nil
}

func (m *mockConversationStore) Delete(_ context.Context, id uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.conversations[id]; !ok {
		return conversation.ErrNotFound
	}
	delete(m.conversations, id)
	return nil
}

func (m *mockConversationStore) Messages(_ context.Context, id uuid.UUID) ([]conversation.Message, error) {
	if m.msgErr != nil {
		return nil, m.msgErr
	}
	if _, ok := m.conversations[id]; !ok {
		return nil, conversation.ErrNotFound
	}
	return m.messages[id], nil
}

func (m *mockConversationStore) Append(_ context.Context, id uuid.UUID, in conversation.AppendInput) ([]string, error) {
	m.appendCalls++
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	if _, ok := m.conversations[id]; !ok {
		return nil, conversation.ErrNotFound
	}
	ids := m.appendIDs
	if ids == nil {
		msgID := in.ID
		if msgID == "" {
			msgID = uuid.NewString()
		}
		ids = []string{msgID}
	}
	return ids, nil
}

// mockStreamer implements ChatStreamer: it streams the configured
// chunks through the callback, then returns the final response.
type mockStreamer struct {
	chunks   []string
	response *chat.Response
	err      error
	title    string

	calls     int
	lastInput string
}

func (m *mockStreamer) ExecuteStream(ctx context.Context, _ uuid.UUID, input string, cb chat.StreamCallback) (*chat.Response, error) {
	m.calls++
	m.lastInput = input
	if m.err != nil {
		return nil, m.err
	}
	if cb != nil {
		for _, text := range m.chunks {
			chunk := &ai.ModelResponseChunk{Content: []*ai.Part{ai.NewTextPart(text)}}
			if err := cb(ctx, chunk); err != nil {
				return nil, err
			}
		}
	}
	return m.response, nil
}

func (m *mockStreamer) GenerateTitle(_ context.Context, _ string) string {
	return m.title
}

// ==================== Server construction ====================

func TestNewServer(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:        log.NewNop(),
		Conversations: newMockStore(),
		CORSOrigins:   []string{"http://localhost:5173"},
	})
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	if srv == nil {
		t.Fatal("NewServer() returned nil")
	}
	if srv.Handler() == nil {
		t.Fatal("NewServer().Handler() returned nil")
	}
}

func TestNewServer_MissingStore(t *testing.T) {
	_, err := NewServer(ServerConfig{Logger: log.NewNop()})
	if err == nil {
		t.Fatal("NewServer(nil store) expected error, got nil")
	}
}

func TestServer_Health(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:        log.NewNop(),
		Conversations: newMockStore(),
	})
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("GET /api/health status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestServer_ReadyWithoutPool(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:        log.NewNop(),
		Conversations: newMockStore(),
	})
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("GET /api/ready status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestServer_UnknownRoute(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:        log.NewNop(),
		Conversations: newMockStore(),
	})
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestServer_OptionalRoutesAbsent(t *testing.T) {
	// Without agent/media/ingest/knowledge wiring, those routes must 404
	// (or 405 for mismatched methods), never panic.
	srv, err := NewServer(ServerConfig{
		Logger:        log.NewNop(),
		Conversations: newMockStore(),
	})
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}

	paths := []string{
		"/api/conversations/" + uuid.NewString() + "/chat",
		"/api/conversations/" + uuid.NewString() + "/image",
		"/api/documents",
		"/api/search",
	}
	for _, p := range paths {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, p, nil))
		if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s status = %d, want 404 or 405", p, rec.Code)
		}
	}
}

func TestServer_SecurityHeaders(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:        log.NewNop(),
		Conversations: newMockStore(),
	})
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/conversations", nil))

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

var errBoom = errors.New("boom")
