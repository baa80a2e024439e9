package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/domain"
	"github.com/vedran77/chatsync/internal/repository"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("you are not a member of this conversation")
	ErrUserNotFound         = errors.New("user not found")
	ErrGroupTooSmall        = errors.New("a group needs at least two members")
)

type ConversationService struct {
	convRepo repository.ConversationRepository
	userRepo repository.UserRepository
}

func NewConversationService(convRepo repository.ConversationRepository, userRepo repository.UserRepository) *ConversationService {
	return &ConversationService{
		convRepo: convRepo,
		userRepo: userRepo,
	}
}

type CreateGroupInput struct {
	Name      string      `json:"name"`
	MemberIDs []uuid.UUID `json:"member_ids"`
}

// GetOrCreateDirect finds or creates the direct conversation between two
// users. otherUserID may equal userID for a conversation with yourself.
func (s *ConversationService) GetOrCreateDirect(ctx context.Context, userID, otherUserID uuid.UUID) (*domain.Conversation, error) {
	other, err := s.userRepo.GetByID(ctx, otherUserID)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return nil, ErrUserNotFound
	}

	conv, err := s.convRepo.FindDirect(ctx, userID, otherUserID)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		// FindDirect resolves favourite for the first argument
		conv.Counterpart = other.Profile()
		return conv, nil
	}

	members := []uuid.UUID{userID, otherUserID}
	if userID == otherUserID {
		members = members[:1]
	}
	conv = &domain.Conversation{
		ID:        uuid.New(),
		Kind:      domain.ConversationDirect,
		Members:   members,
		CreatedAt: time.Now(),
	}
	if err := s.convRepo.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating direct conversation: %w", err)
	}

	conv.Counterpart = other.Profile()
	return conv, nil
}

func (s *ConversationService) CreateGroup(ctx context.Context, userID uuid.UUID, input CreateGroupInput) (*domain.Conversation, error) {
	members := []uuid.UUID{userID}
	for _, id := range input.MemberIDs {
		if !slices.Contains(members, id) {
			members = append(members, id)
		}
	}
	if len(members) < 2 {
		return nil, ErrGroupTooSmall
	}

	profiles, err := s.userRepo.ListProfiles(ctx, members)
	if err != nil {
		return nil, err
	}
	if len(profiles) != len(members) {
		return nil, ErrUserNotFound
	}

	conv := &domain.Conversation{
		ID:        uuid.New(),
		Kind:      domain.ConversationGroup,
		Name:      strings.TrimSpace(input.Name),
		Members:   members,
		CreatedAt: time.Now(),
	}
	if err := s.convRepo.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating group: %w", err)
	}
	return conv, nil
}

// List returns the user's conversations with direct counterparts resolved.
func (s *ConversationService) List(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	convs, err := s.convRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if convs == nil {
		return []domain.Conversation{}, nil
	}

	var others []uuid.UUID
	for _, c := range convs {
		if other, ok := c.Counterparty(userID); ok {
			others = append(others, other)
		}
	}
	if len(others) == 0 {
		return convs, nil
	}

	profiles, err := s.userRepo.ListProfiles(ctx, others)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]domain.UserProfile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	for i := range convs {
		if other, ok := convs[i].Counterparty(userID); ok {
			if p, found := byID[other]; found {
				convs[i].Counterpart = &p
			}
		}
	}
	return convs, nil
}

// Get returns a conversation the user belongs to.
func (s *ConversationService) Get(ctx context.Context, userID, conversationID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if !conv.HasMember(userID) {
		return nil, ErrNotParticipant
	}
	return conv, nil
}

func (s *ConversationService) SetFavourite(ctx context.Context, userID, conversationID uuid.UUID, favourite bool) (*domain.Conversation, error) {
	conv, err := s.Get(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if err := s.convRepo.SetFavourite(ctx, conversationID, userID, favourite); err != nil {
		return nil, fmt.Errorf("setting favourite: %w", err)
	}
	conv.Favourite = favourite
	return conv, nil
}

// SetDirectFavourite marks the direct conversation with otherUserID,
// creating it first if the two users have never talked.
func (s *ConversationService) SetDirectFavourite(ctx context.Context, userID, otherUserID uuid.UUID, favourite bool) (*domain.Conversation, error) {
	conv, err := s.GetOrCreateDirect(ctx, userID, otherUserID)
	if err != nil {
		return nil, err
	}
	if err := s.convRepo.SetFavourite(ctx, conv.ID, userID, favourite); err != nil {
		return nil, fmt.Errorf("setting favourite: %w", err)
	}
	conv.Favourite = favourite
	return conv, nil
}
