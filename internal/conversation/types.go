package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Sender role values for Message.Sender.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// Conversation represents one chat session's durable identity.
type Conversation struct {
	ID        uuid.UUID
	CreatedAt time.Time
}

// Message is a single immutable entry in a conversation's log.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversationId"`
	Sender         string    `json:"sender"` // "user" | "assistant"
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}
