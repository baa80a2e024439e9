package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReadMarker records when a user last opened a conversation.
type ReadMarker struct {
	UserID         uuid.UUID `json:"user_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	LastReadAt     time.Time `json:"last_read_at"`
}
