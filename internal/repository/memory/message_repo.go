package memory

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/domain"
	"github.com/vedran77/chatsync/internal/query"
)

type MessageRepo struct {
	db *DB
}

func NewMessageRepo(db *DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if msg.ClientKey != "" {
		for _, m := range r.db.messages {
			if m.SenderID == msg.SenderID && m.ClientKey == msg.ClientKey {
				cp := *m
				return &cp, nil
			}
		}
	}

	m := *msg
	m.Provisional = false
	r.db.messages = append(r.db.messages, &m)
	r.db.messageIndex[m.ID] = &m
	cp := m
	return &cp, nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if m, ok := r.db.messageIndex[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (r *MessageRepo) List(ctx context.Context, viewerID uuid.UUID, filter query.Expr, order query.Order, limit int) ([]domain.Message, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}

	r.db.mu.RLock()
	var out []domain.Message
	for _, m := range r.db.messages {
		if !r.db.isMember(m.ConversationID, viewerID) {
			continue
		}
		if filter.MatchMessage(m) {
			out = append(out, *m)
		}
	}
	r.db.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b domain.Message) int {
		c := a.CreatedAt.Compare(b.CreatedAt)
		if order.Desc {
			return -c
		}
		return c
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MessageRepo) MarkRead(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if m, ok := r.db.messageIndex[id]; ok {
		m.Read = true
	}
	return nil
}
