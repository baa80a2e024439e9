package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/domain"
)

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u := *user
	r.db.users[u.ID] = &u
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if u, ok := r.db.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email }), nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username }), nil
}

func (r *UserRepo) ListProfiles(ctx context.Context, ids []uuid.UUID) ([]domain.UserProfile, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []domain.UserProfile
	for _, id := range ids {
		if u, ok := r.db.users[id]; ok {
			out = append(out, *u.Profile())
		}
	}
	return out, nil
}

func (r *UserRepo) find(pred func(*domain.User) bool) *domain.User {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, u := range r.db.users {
		if pred(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}
