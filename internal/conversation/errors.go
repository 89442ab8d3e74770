package conversation

import "errors"

// Title constraints.
const (
	// DefaultTitle is used when a conversation is created without one.
	DefaultTitle = "New Conversation"

	// MaxTitleLength bounds titles in bytes.
	MaxTitleLength = 500
)

// History window bounds. These match the internal/config defaults so the
// two layers stay consistent.
const (
	// DefaultHistoryLimit is the default number of messages per history load.
	DefaultHistoryLimit int32 = 100

	// MaxHistoryLimit is the absolute maximum to prevent OOM.
	MaxHistoryLimit int32 = 10000

	// MinHistoryLimit is the minimum allowed history window.
	MinHistoryLimit int32 = 10
)

// Sentinel errors for conversation operations, checkable with errors.Is().
var (
	// ErrNotFound indicates the requested conversation does not exist.
	ErrNotFound = errors.New("conversation not found")

	// ErrInvalidRole indicates a message role outside user/assistant/image.
	ErrInvalidRole = errors.New("invalid message role")

	// ErrEmptyContent indicates an attempt to persist an empty message.
	ErrEmptyContent = errors.New("empty message content")

	// ErrTitleTooLong indicates a title exceeding MaxTitleLength.
	ErrTitleTooLong = errors.New("conversation title too long")
)

// NormalizeHistoryLimit clamps a history window to sane bounds. Zero and
// negative values fall back to the default.
func NormalizeHistoryLimit(limit int32) int32 {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit < MinHistoryLimit {
		return MinHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}
