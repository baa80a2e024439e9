package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/domain"
)

type ReadMarkerRepo struct {
	db *DB
}

func NewReadMarkerRepo(db *DB) *ReadMarkerRepo {
	return &ReadMarkerRepo{db: db}
}

func (r *ReadMarkerRepo) Upsert(ctx context.Context, marker *domain.ReadMarker) (*domain.ReadMarker, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	key := markerKey{userID: marker.UserID, conversationID: marker.ConversationID}
	existing, ok := r.db.markers[key]
	if !ok {
		m := *marker
		r.db.markers[key] = &m
		cp := m
		return &cp, nil
	}
	if marker.LastReadAt.After(existing.LastReadAt) {
		existing.LastReadAt = marker.LastReadAt
	}
	cp := *existing
	return &cp, nil
}

func (r *ReadMarkerRepo) Get(ctx context.Context, userID, conversationID uuid.UUID) (*domain.ReadMarker, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if m, ok := r.db.markers[markerKey{userID: userID, conversationID: conversationID}]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (r *ReadMarkerRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.ReadMarker, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []domain.ReadMarker
	for k, m := range r.db.markers {
		if k.userID == userID {
			out = append(out, *m)
		}
	}
	return out, nil
}
