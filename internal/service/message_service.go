package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/domain"
	"github.com/vedran77/chatsync/internal/query"
	"github.com/vedran77/chatsync/internal/repository"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotReceiver     = errors.New("only the receiver can mark a message read")
)

const (
	defaultListLimit = 500
	maxListLimit     = 2000
)

type MessageService struct {
	messageRepo repository.MessageRepository
	convRepo    repository.ConversationRepository
	now         func() time.Time
}

func NewMessageService(messageRepo repository.MessageRepository, convRepo repository.ConversationRepository) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		convRepo:    convRepo,
		now:         time.Now,
	}
}

type ListMessagesInput struct {
	Filter query.Expr  `json:"filter"`
	Order  query.Order `json:"order"`
	Limit  int         `json:"limit,omitempty"`
}

// List returns the messages matching the filter that the user is allowed to
// see.
func (s *MessageService) List(ctx context.Context, userID uuid.UUID, input ListMessagesInput) ([]domain.Message, error) {
	if err := input.Filter.Validate(); err != nil {
		return nil, err
	}
	if input.Order.Field == "" {
		input.Order = query.Oldest
	}
	if err := input.Order.Validate(); err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	messages, err := s.messageRepo.List(ctx, userID, input.Filter, input.Order, limit)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

// Send stores a message. The receiver is derived from the conversation so
// clients cannot address members of other conversations. Repeating a send
// with the same client key returns the stored message.
func (s *MessageService) Send(ctx context.Context, userID uuid.UUID, input domain.NewMessage) (*domain.Message, error) {
	conv, err := s.convRepo.GetByID(ctx, input.ConversationID, userID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if !conv.HasMember(userID) {
		return nil, ErrNotParticipant
	}

	msg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       userID,
		Kind:           input.Kind,
		Content:        input.Content,
		AttachmentURL:  input.AttachmentURL,
		ClientKey:      input.ClientKey,
		CreatedAt:      s.now(),
	}
	if other, ok := conv.Counterparty(userID); ok {
		msg.ReceiverID = &other
	}

	created, err := s.messageRepo.Create(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}
	return created, nil
}

// MarkRead sets the read flag on a message addressed to the user. Marking an
// already read message is a no-op.
func (s *MessageService) MarkRead(ctx context.Context, userID, messageID uuid.UUID) (*domain.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if !msg.AddressedTo(userID) {
		return nil, ErrNotReceiver
	}
	if msg.Read {
		return msg, nil
	}

	if err := s.messageRepo.MarkRead(ctx, messageID); err != nil {
		return nil, fmt.Errorf("marking message read: %w", err)
	}
	msg.Read = true
	return msg, nil
}
