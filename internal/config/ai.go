package config

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
)

const (
	// DefaultChatModel is the default conversational model.
	DefaultChatModel = "gemini-2.5-flash"

	// DefaultEmbedderModel outputs 3072 dimensions by default but supports
	// truncation via OutputDimensionality; our pgvector schema stores
	// DefaultEmbedderDimensions-wide vectors.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultEmbedderDimensions must match the vector(N) column in the
	// documents migration.
	DefaultEmbedderDimensions = 768

	// DefaultImageModel renders chat-requested images. Results are
	// serialized as base64 data URLs before persistence.
	DefaultImageModel = "imagen-3.0-generate-002"

	// DefaultRetrievalTopK is how many knowledge chunks ground a chat turn.
	DefaultRetrievalTopK = 5

	// MaxRetrievalTopK bounds user-supplied top-k requests.
	MaxRetrievalTopK = 20
)

// Conversation history bounds.
const (
	// DefaultMaxHistoryMessages is the default number of messages loaded
	// into a chat turn's context.
	DefaultMaxHistoryMessages int32 = 100

	// MaxAllowedHistoryMessages is the absolute maximum to prevent OOM.
	MaxAllowedHistoryMessages int32 = 10000

	// MinHistoryMessages is the minimum allowed value for MaxHistoryMessages.
	MinHistoryMessages int32 = 10
)
