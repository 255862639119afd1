package memory

import (
	"context"
	"errors"
	"sort"
	"strings"

	"pet-clinical-history/internal/domain/owners"
)

type ownerRepo struct {
	db *DB
}

func NewOwnerRepo(db *DB) owners.Repository {
	return &ownerRepo{db: db}
}

func (r *ownerRepo) Create(ctx context.Context, o owners.Owner) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if strings.TrimSpace(o.ID) == "" {
		return errors.New("owner id required")
	}
	if _, exists := r.db.owners[o.ID]; exists {
		return errors.New("owner already exists")
	}
	r.db.owners[o.ID] = o
	return nil
}

func (r *ownerRepo) Update(ctx context.Context, o owners.Owner) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, exists := r.db.owners[o.ID]; !exists {
		return owners.ErrNotFound
	}
	r.db.owners[o.ID] = o
	return nil
}

func (r *ownerRepo) GetByID(ctx context.Context, id string) (owners.Owner, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	o, ok := r.db.owners[id]
	if !ok {
		return owners.Owner{}, owners.ErrNotFound
	}
	return o, nil
}

func (r *ownerRepo) GetByUserID(ctx context.Context, userID string) (owners.Owner, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, o := range r.db.owners {
		if o.UserID != "" && o.UserID == userID {
			return o, nil
		}
	}
	return owners.Owner{}, owners.ErrNotFound
}

func (r *ownerRepo) List(ctx context.Context, f owners.ListFilter) ([]owners.Owner, int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	name := strings.ToLower(strings.TrimSpace(f.Name))
	out := make([]owners.Owner, 0)
	for _, o := range r.db.owners {
		if name != "" && !strings.Contains(strings.ToLower(o.FullName()), name) {
			continue
		}
		out = append(out, o)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Lastname), strings.ToLower(out[j].Lastname)
		if a != b {
			return a < b
		}
		a, b = strings.ToLower(out[i].Firstname), strings.ToLower(out[j].Firstname)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})

	total := len(out)
	return paginate(out, f.Offset, f.Limit), total, nil
}
