package syncengine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/domain"
	"github.com/vedran77/chatsync/internal/query"
)

// MessageStore is the backend's message collection.
type MessageStore interface {
	List(ctx context.Context, filter query.Expr, order query.Order) ([]domain.Message, error)
	Create(ctx context.Context, msg domain.NewMessage) (*domain.Message, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
}

// ConversationSource lists the conversations the user belongs to.
type ConversationSource interface {
	List(ctx context.Context) ([]domain.Conversation, error)
}

// MarkerStore is the backend's read-marker collection.
type MarkerStore interface {
	Touch(ctx context.Context, conversationID uuid.UUID, at time.Time) (*domain.ReadMarker, error)
	List(ctx context.Context) ([]domain.ReadMarker, error)
}

// Uploader stores an attachment and returns the URL to send.
type Uploader interface {
	Upload(ctx context.Context, a domain.Attachment) (string, error)
}
