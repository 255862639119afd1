package memory

import (
	"context"
	"errors"
	"strings"

	"pet-clinical-history/internal/domain/users"
)

type userRepo struct {
	db *DB
}

func NewUserRepo(db *DB) users.Repository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, u users.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if strings.TrimSpace(u.ID) == "" {
		return errors.New("user id required")
	}
	for _, existing := range r.db.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return users.ErrEmailTaken
		}
	}
	r.db.users[u.ID] = u
	return nil
}

func (r *userRepo) Update(ctx context.Context, u users.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, exists := r.db.users[u.ID]; !exists {
		return users.ErrNotFound
	}
	r.db.users[u.ID] = u
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, exists := r.db.users[id]; !exists {
		return users.ErrNotFound
	}
	delete(r.db.users, id)
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (users.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	u, ok := r.db.users[id]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (users.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return users.User{}, users.ErrNotFound
}
