package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/domain"
	"github.com/vedran77/chatsync/internal/query"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	ListProfiles(ctx context.Context, ids []uuid.UUID) ([]domain.UserProfile, error)
}

type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	// GetByID resolves Favourite for viewerID.
	GetByID(ctx context.Context, id, viewerID uuid.UUID) (*domain.Conversation, error)
	// FindDirect matches the pair in either order.
	FindDirect(ctx context.Context, a, b uuid.UUID) (*domain.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error)
	SetFavourite(ctx context.Context, conversationID, userID uuid.UUID, favourite bool) error
}

type MessageRepository interface {
	// Create inserts msg unless the sender already has a message with the
	// same client key, in which case that message is returned.
	Create(ctx context.Context, msg *domain.Message) (*domain.Message, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	// List returns messages matching filter from conversations viewerID
	// belongs to.
	List(ctx context.Context, viewerID uuid.UUID, filter query.Expr, order query.Order, limit int) ([]domain.Message, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
}

type ReadMarkerRepository interface {
	// Upsert never moves an existing marker backwards.
	Upsert(ctx context.Context, marker *domain.ReadMarker) (*domain.ReadMarker, error)
	Get(ctx context.Context, userID, conversationID uuid.UUID) (*domain.ReadMarker, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.ReadMarker, error)
}
