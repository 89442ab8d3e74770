package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pokhrel-dev/simplechat-sub001/internal/fragment"
	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const conversationCols = `id, title, created_at, updated_at`

const (
	createConversationSQL = `INSERT INTO conversations (title) VALUES ($1)
		RETURNING ` + conversationCols

	getConversationSQL = `SELECT ` + conversationCols + ` FROM conversations WHERE id = $1`

	listConversationsSQL = `SELECT ` + conversationCols + ` FROM conversations
		ORDER BY updated_at DESC LIMIT $1 OFFSET $2`

	renameConversationSQL = `UPDATE conversations SET title = $2, updated_at = now() WHERE id = $1`

	touchConversationSQL = `UPDATE conversations SET updated_at = now() WHERE id = $1`

	deleteConversationSQL = `DELETE FROM conversations WHERE id = $1`
)

// insertMessageSQL is the single write used for every message record,
// fragmented or not. ON CONFLICT (id) DO NOTHING makes re-writes of the
// same record converge instead of duplicating, which is what lets a failed
// fragmented append be retried safely.
const insertMessageSQL = `INSERT INTO messages
	(id, conversation_id, role, content, is_chunked, chunk_index, total_chunks, parent_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO NOTHING`

// listMessagesSQL loads every record of a conversation, continuations
// included; reassembly happens in memory afterwards. chunk_index breaks
// created_at ties between a primary and its continuations, id breaks the
// rest.
const listMessagesSQL = `SELECT id, role, content, is_chunked, chunk_index, total_chunks, parent_id, created_at
	FROM messages WHERE conversation_id = $1
	ORDER BY created_at, chunk_index, id`

// List pagination bounds.
const (
	defaultListLimit int32 = 50
	maxListLimit     int32 = 200
)

// foreignKeyViolation is the PostgreSQL error code raised when a message
// references a missing conversation.
const foreignKeyViolation = "23503"

// Store manages conversations and their messages in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db          querier
	policy      fragment.Policy
	retry       fragment.RetryConfig
	reassembler *fragment.Reassembler
	logger      log.Logger
}

// NewStore creates a conversation store. policy decides when messages are
// fragmented; pass fragment.DefaultPolicy() unless configuration overrides
// the sizing.
func NewStore(db querier, policy fragment.Policy, logger log.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		db:          db,
		policy:      policy,
		retry:       fragment.DefaultRetryConfig(),
		reassembler: fragment.NewReassembler(logger),
		logger:      logger,
	}, nil
}

// Create inserts a new conversation. An empty title gets DefaultTitle.
func (s *Store) Create(ctx context.Context, title string) (*Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	if len(title) > MaxTitleLength {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrTitleTooLong, len(title), MaxTitleLength)
	}

	var c Conversation
	err := s.db.QueryRow(ctx, createConversationSQL, title).
		Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", c.ID, "title", c.Title)
	return &c, nil
}

// Get retrieves a conversation by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	var c Conversation
	err := s.db.QueryRow(ctx, getConversationSQL, id).
		Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("getting conversation %s: %w", id, err)
	}
	return &c, nil
}

// List returns conversations ordered by most recent activity. A limit
// outside [1, maxListLimit] falls back to the default.
func (s *Store) List(ctx context.Context, limit, offset int32) ([]*Conversation, error) {
	if limit < 1 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, listConversationsSQL, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation row: %w", err)
		}
		conversations = append(conversations, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading conversation rows: %w", err)
	}

	return conversations, nil
}

// Rename updates a conversation's title.
func (s *Store) Rename(ctx context.Context, id uuid.UUID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("renaming conversation %s: title cannot be empty", id)
	}
	if len(title) > MaxTitleLength {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrTitleTooLong, len(title), MaxTitleLength)
	}

	tag, err := s.db.Exec(ctx, renameConversationSQL, id, title)
	if err != nil {
		return fmt.Errorf("renaming conversation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}

	s.logger.Debug("renamed conversation", "id", id, "title", title)
	return nil
}

// Delete removes a conversation and all its message records (CASCADE).
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, deleteConversationSQL, id)
	if err != nil {
		return fmt.Errorf("deleting conversation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}

	s.logger.Debug("deleted conversation", "id", id)
	return nil
}

// AppendInput describes one message to persist.
type AppendInput struct {
	// ID pins the primary record id; leave empty to generate one. To
	// re-run an append that failed partway, pass the ParentID from the
	// returned *fragment.PartialWriteError: record writes are idempotent,
	// so the retry fills in missing fragments without duplicating the
	// rest.
	ID      string
	Role    string
	Content string
}

// Append persists one message, fragmenting the payload when the size
// policy requires it. Returns the ids of all records written, primary
// first (a single id for an unfragmented message).
//
// A payload whose structural prefix exhausts the size budget is rejected
// with fragment.ErrPolicyViolation before anything is written. A failure
// partway through a fragmented write returns *fragment.PartialWriteError;
// the conversation then reads degraded (fragment 0, flagged incomplete)
// until a retry converges.
func (s *Store) Append(ctx context.Context, conversationID uuid.UUID, in AppendInput) ([]string, error) {
	switch in.Role {
	case RoleUser, RoleAssistant, RoleImage:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, in.Role)
	}
	if in.Content == "" {
		return nil, ErrEmptyContent
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	decision, err := s.policy.Decide(in.Content)
	if err != nil {
		return nil, fmt.Errorf("sizing message for conversation %s: %w", conversationID, err)
	}

	sink := recordSink{db: s.db, conversationID: conversationID}

	if !decision.Chunked {
		rec := fragment.Record{ID: id, Role: in.Role, Content: in.Content}
		if err := sink.Insert(ctx, rec); err != nil {
			if isMissingConversation(err) {
				return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
			}
			return nil, fmt.Errorf("inserting message %s: %w", id, err)
		}
		s.touch(ctx, conversationID)
		return []string{id}, nil
	}

	prefix, data := fragment.SplitPrefix(in.Content)
	writer := fragment.NewWriter(sink, s.retry, s.logger)

	ids, err := writer.Write(ctx, id, in.Role, fragment.Split(data, decision.FragmentSize), prefix)
	if err != nil {
		if isMissingConversation(err) {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
		}
		return ids, fmt.Errorf("appending message to conversation %s: %w", conversationID, err)
	}

	s.logger.Info("fragmented oversized message",
		"conversation_id", conversationID,
		"parent_id", id,
		"payload_len", len(in.Content),
		"total_chunks", decision.TotalChunks,
	)
	s.touch(ctx, conversationID)
	return ids, nil
}

// Messages returns the conversation's messages in order, oldest first.
// Fragmented payloads come back reassembled; a message with fragments
// missing carries Incomplete=true and the contiguous prefix that survived.
func (s *Store) Messages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	// Distinguish an empty conversation from a missing one.
	if _, err := s.Get(ctx, conversationID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, listMessagesSQL, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading messages for conversation %s: %w", conversationID, err)
	}
	defer rows.Close()

	var records []fragment.Record
	stamps := make(map[string]time.Time)
	for rows.Next() {
		var (
			rec      fragment.Record
			parentID *string
			created  time.Time
		)
		if err := rows.Scan(&rec.ID, &rec.Role, &rec.Content,
			&rec.IsChunked, &rec.ChunkIndex, &rec.TotalChunks,
			&parentID, &created); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		if parentID != nil {
			rec.ParentID = *parentID
		}
		stamps[rec.ID] = created
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading message rows: %w", err)
	}

	assembled := s.reassembler.Reassemble(records)

	messages := make([]Message, 0, len(assembled))
	for _, rec := range assembled {
		messages = append(messages, Message{
			ID:             rec.ID,
			ConversationID: conversationID,
			Role:           rec.Role,
			Content:        rec.Content,
			Incomplete:     rec.Incomplete,
			CreatedAt:      stamps[rec.ID],
		})
	}

	s.logger.Debug("loaded messages",
		"conversation_id", conversationID,
		"records", len(records),
		"messages", len(messages),
	)
	return messages, nil
}

// History returns the last limit messages as model-ready history, oldest
// first. The window is applied after reassembly, so a fragmented payload
// counts as one message.
func (s *Store) History(ctx context.Context, conversationID uuid.UUID, limit int32) ([]*ai.Message, error) {
	limit = NormalizeHistoryLimit(limit)

	messages, err := s.Messages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if int32(len(messages)) > limit {
		messages = messages[int32(len(messages))-limit:]
	}

	history := make([]*ai.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleUser:
			history = append(history, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		case RoleImage:
			// Generated images re-enter model context as a marker, not
			// as megabytes of base64.
			history = append(history, ai.NewModelMessage(ai.NewTextPart("[generated image: "+m.ID+"]")))
		default:
			history = append(history, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		}
	}
	return history, nil
}

// touch bumps updated_at so List orders by recent activity. Failure is
// logged, not returned: the message rows are already durable.
func (s *Store) touch(ctx context.Context, id uuid.UUID) {
	if _, err := s.db.Exec(ctx, touchConversationSQL, id); err != nil {
		s.logger.Warn("updating conversation timestamp",
			"conversation_id", id, "error", err)
	}
}

// recordSink adapts the store's querier to fragment.Sink.
type recordSink struct {
	db             querier
	conversationID uuid.UUID
}

// Insert writes one record row. Safe to re-run with the same record.
func (rs recordSink) Insert(ctx context.Context, rec fragment.Record) error {
	var parentID *string
	if rec.ParentID != "" {
		parentID = &rec.ParentID
	}
	_, err := rs.db.Exec(ctx, insertMessageSQL,
		rec.ID, rs.conversationID, rec.Role, rec.Content,
		rec.IsChunked, rec.ChunkIndex, rec.TotalChunks, parentID,
	)
	return err
}

// isMissingConversation reports whether err is the foreign key violation
// raised when the target conversation row does not exist.
func isMissingConversation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}
