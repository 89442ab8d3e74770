package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Message roles accepted by Append. Continuation rows carry a derived
// "<role>_chunk" tag internally, which is never valid as input.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// RoleImage marks an assistant-generated image stored as a base64
	// data URL. These are the payloads that routinely exceed the size
	// threshold and exercise fragmentation.
	RoleImage = "image"
)

// Conversation is a titled container of messages.
type Conversation struct {
	ID        uuid.UUID
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is a logical message as consumers see it: fragmented payloads
// arrive reassembled, and fragment bookkeeping stays internal.
type Message struct {
	ID             string
	ConversationID uuid.UUID
	Role           string
	Content        string

	// Incomplete is set when some of this message's fragments were
	// missing at read time; Content then holds the contiguous prefix
	// that survived.
	Incomplete bool

	CreatedAt time.Time
}
