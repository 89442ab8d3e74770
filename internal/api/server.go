package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pokhrel-dev/simplechat-sub001/internal/chat"
	"github.com/pokhrel-dev/simplechat-sub001/internal/conversation"
	"github.com/pokhrel-dev/simplechat-sub001/internal/ingest"
	"github.com/pokhrel-dev/simplechat-sub001/internal/knowledge"
	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
	"github.com/pokhrel-dev/simplechat-sub001/internal/media"
)

// ConversationStore is the slice of the conversation store the HTTP
// handlers consume. Message listings arrive reassembled; continuation
// records are invisible at this boundary.
type ConversationStore interface {
	Create(ctx context.Context, title string) (*conversation.Conversation, error)
	Get(ctx context.Context, id uuid.UUID) (*conversation.Conversation, error)
	List(ctx context.Context, limit, offset int32) ([]*conversation.Conversation, error)
	Rename(ctx context.Context, id uuid.UUID, title string) error
	Delete(ctx context.Context, id uuid.UUID) error
	Messages(ctx context.Context, id uuid.UUID) ([]conversation.Message, error)
	Append(ctx context.Context, id uuid.UUID, in conversation.AppendInput) ([]string, error)
}

// ChatStreamer runs one chat turn, streaming chunks to the callback.
type ChatStreamer interface {
	ExecuteStream(ctx context.Context, conversationID uuid.UUID, input string, callback chat.StreamCallback) (*chat.Response, error)
	GenerateTitle(ctx context.Context, userMessage string) string
}

// Searcher queries the knowledge base directly (debug/inspection surface).
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// Ingestor accepts uploaded documents into the knowledge pipeline.
type Ingestor interface {
	IndexUpload(ctx context.Context, filename string, r io.Reader, contentType string) (*ingest.Result, error)
}

// ImageGenerator produces images from prompts. Its data-URL payloads
// are what exercise the record fragmentation path end to end.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (*media.Image, error)
}

// Compile-time checks that the real implementations satisfy the
// handler-facing interfaces.
var (
	_ ConversationStore = (*conversation.Store)(nil)
	_ ChatStreamer      = (*chat.Agent)(nil)
	_ Searcher          = (*knowledge.Store)(nil)
	_ Ingestor          = (*ingest.Pipeline)(nil)
	_ ImageGenerator    = (*media.Generator)(nil)
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger        log.Logger
	Conversations ConversationStore // Required
	Agent         ChatStreamer      // Optional: nil disables chat routes
	Flow          *chat.Flow        // Optional: nil disables the sync flow endpoint
	Knowledge     Searcher          // Optional: nil disables /api/search
	Ingest        Ingestor          // Optional: nil disables /api/documents
	Media         ImageGenerator    // Optional: nil disables image generation
	Pool          *pgxpool.Pool     // Optional: nil reports ready without a DB ping
	CORSOrigins   []string          // Allowed origins for CORS
	TrustProxy    bool              // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst     int               // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates an API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Conversations == nil {
		return nil, errors.New("conversation store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	mux := http.NewServeMux()

	cv := &conversationHandler{store: cfg.Conversations, logger: logger}
	mux.HandleFunc("POST /api/conversations", cv.create)
	mux.HandleFunc("GET /api/conversations", cv.list)
	mux.HandleFunc("GET /api/conversations/{id}", cv.get)
	mux.HandleFunc("PATCH /api/conversations/{id}", cv.rename)
	mux.HandleFunc("DELETE /api/conversations/{id}", cv.delete)
	mux.HandleFunc("GET /api/conversations/{id}/messages", cv.messages)

	if cfg.Agent != nil {
		ch := &chatHandler{
			agent:         cfg.Agent,
			conversations: cfg.Conversations,
			logger:        logger,
		}
		mux.HandleFunc("POST /api/conversations/{id}/chat", ch.stream)
	}

	// Synchronous (non-SSE) chat endpoint via genkit's typed flow handler.
	if cfg.Flow != nil {
		mux.Handle("POST /api/chat", genkit.Handler(cfg.Flow))
	}

	if cfg.Media != nil {
		ih := &imageHandler{
			media:         cfg.Media,
			conversations: cfg.Conversations,
			logger:        logger,
		}
		mux.HandleFunc("POST /api/conversations/{id}/image", ih.generate)
	}

	if cfg.Ingest != nil {
		dh := &documentHandler{pipeline: cfg.Ingest, logger: logger}
		mux.HandleFunc("POST /api/documents", dh.upload)
	}

	if cfg.Knowledge != nil {
		sh := &searchHandler{store: cfg.Knowledge, logger: logger}
		mux.HandleFunc("GET /api/search", sh.search)
	}

	// Rate limiter: per-IP token bucket (1 token/sec refill).
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack (outermost first):
	//   Recovery → Logging → CORS → RateLimit → Routes
	// CORS sits before RateLimit so preflight OPTIONS gets proper headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Health probes bypass the middleware stack so orchestrators never
	// get rate limited away from them.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /api/health", health(logger))
	topMux.HandleFunc("GET /api/ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
