package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/domain"
	"github.com/vedran77/chatsync/internal/repository"
)

// maxClockSkew bounds how far in the future a client-supplied read time may be.
const maxClockSkew = time.Minute

type ReadMarkerService struct {
	markerRepo repository.ReadMarkerRepository
	convRepo   repository.ConversationRepository
	now        func() time.Time
}

func NewReadMarkerService(markerRepo repository.ReadMarkerRepository, convRepo repository.ConversationRepository) *ReadMarkerService {
	return &ReadMarkerService{
		markerRepo: markerRepo,
		convRepo:   convRepo,
		now:        time.Now,
	}
}

// Touch creates or advances the user's marker for a conversation. The stored
// marker never moves backwards.
func (s *ReadMarkerService) Touch(ctx context.Context, userID, conversationID uuid.UUID, at time.Time) (*domain.ReadMarker, error) {
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

	now := s.now()
	if at.IsZero() || at.After(now.Add(maxClockSkew)) {
		at = now
	}

	marker, err := s.markerRepo.Upsert(ctx, &domain.ReadMarker{
		UserID:         userID,
		ConversationID: conversationID,
		LastReadAt:     at,
	})
	if err != nil {
		return nil, fmt.Errorf("saving read marker: %w", err)
	}
	return marker, nil
}

func (s *ReadMarkerService) List(ctx context.Context, userID uuid.UUID) ([]domain.ReadMarker, error) {
	markers, err := s.markerRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if markers == nil {
		markers = []domain.ReadMarker{}
	}
	return markers, nil
}
