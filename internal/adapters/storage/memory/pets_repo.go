package memory

import (
	"context"
	"errors"
	"sort"
	"strings"

	"pet-clinical-history/internal/domain/pets"
)

type petRepo struct {
	db *DB
}

func NewPetRepo(db *DB) pets.Repository {
	return &petRepo{db: db}
}

func (r *petRepo) Create(ctx context.Context, p pets.Pet) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if strings.TrimSpace(p.ID) == "" {
		return errors.New("pet id required")
	}
	if _, exists := r.db.pets[p.ID]; exists {
		return errors.New("pet already exists")
	}
	r.db.pets[p.ID] = p
	return nil
}

func (r *petRepo) Update(ctx context.Context, p pets.Pet) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	current, exists := r.db.pets[p.ID]
	if !exists {
		return pets.ErrNotFound
	}
	// deleted_at solo lo cambia el lifecycle runner
	p.DeletedAt = current.DeletedAt
	r.db.pets[p.ID] = p
	return nil
}

func (r *petRepo) GetByID(ctx context.Context, id string) (pets.Pet, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	p, ok := r.db.pets[id]
	if !ok {
		return pets.Pet{}, pets.ErrNotFound
	}
	return p, nil
}

func (r *petRepo) List(ctx context.Context, f pets.ListFilter) ([]pets.Pet, int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	name := strings.ToLower(strings.TrimSpace(f.Name))
	out := make([]pets.Pet, 0)
	for _, p := range r.db.pets {
		if p.Archived() != f.Archived {
			continue
		}
		if f.OwnerID != "" && p.OwnerID != f.OwnerID {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(p.Name), name) {
			continue
		}
		out = append(out, p)
	}

	if f.Archived {
		// Archivadas: la más reciente primero
		sort.Slice(out, func(i, j int) bool {
			if !out[i].DeletedAt.Equal(*out[j].DeletedAt) {
				return out[i].DeletedAt.After(*out[j].DeletedAt)
			}
			return out[i].ID < out[j].ID
		})
	} else {
		sort.Slice(out, func(i, j int) bool {
			a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
			if a != b {
				return a < b
			}
			return out[i].ID < out[j].ID
		})
	}

	total := len(out)
	return paginate(out, f.Offset, f.Limit), total, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
