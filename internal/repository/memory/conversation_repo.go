package memory

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/domain"
)

type ConversationRepo struct {
	db *DB
}

func NewConversationRepo(db *DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

func (r *ConversationRepo) Create(ctx context.Context, conv *domain.Conversation) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c := *conv
	c.Members = slices.Clone(conv.Members)
	c.Favourite = false
	c.Counterpart = nil
	r.db.conversations[c.ID] = &c

	members := make(map[uuid.UUID]*domain.ConversationMember, len(c.Members))
	for _, userID := range c.Members {
		if _, dup := members[userID]; dup {
			continue
		}
		members[userID] = &domain.ConversationMember{ConversationID: c.ID, UserID: userID, JoinedAt: c.CreatedAt}
		r.db.userIndex[userID] = append(r.db.userIndex[userID], c.ID)
	}
	r.db.members[c.ID] = members
	return nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id, viewerID uuid.UUID) (*domain.Conversation, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if _, ok := r.db.conversations[id]; !ok {
		return nil, nil
	}
	return r.view(id, viewerID), nil
}

func (r *ConversationRepo) FindDirect(ctx context.Context, a, b uuid.UUID) (*domain.Conversation, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, id := range r.db.userIndex[a] {
		c := r.db.conversations[id]
		if c.Kind != domain.ConversationDirect {
			continue
		}
		if sameDirectPair(c.Members, a, b) {
			return r.view(id, a), nil
		}
	}
	return nil, nil
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]domain.Conversation, 0, len(r.db.userIndex[userID]))
	for _, id := range r.db.userIndex[userID] {
		out = append(out, *r.view(id, userID))
	}
	return out, nil
}

func (r *ConversationRepo) SetFavourite(ctx context.Context, conversationID, userID uuid.UUID, favourite bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if m, ok := r.db.members[conversationID][userID]; ok {
		m.Favourite = favourite
	}
	return nil
}

func (r *ConversationRepo) view(id, viewerID uuid.UUID) *domain.Conversation {
	c := *r.db.conversations[id]
	c.Members = slices.Clone(c.Members)
	if m, ok := r.db.members[id][viewerID]; ok {
		c.Favourite = m.Favourite
	}
	return &c
}

// sameDirectPair reports whether members is {a, b} in either order. A
// conversation with yourself stores a single member.
func sameDirectPair(members []uuid.UUID, a, b uuid.UUID) bool {
	if a == b {
		return len(members) == 1 && members[0] == a
	}
	return len(members) == 2 &&
		((members[0] == a && members[1] == b) || (members[0] == b && members[1] == a))
}
