package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"pet-clinical-history/internal/domain/records"
)

type recordRepo struct {
	db *DB
}

func NewRecordRepo(db *DB) records.Repository {
	return &recordRepo{db: db}
}

func (r *recordRepo) table(kind records.Kind) (map[string]records.Record, error) {
	t, ok := r.db.records[kind]
	if !ok {
		return nil, records.ErrNotFound
	}
	return t, nil
}

// Create toma el lock de la mascota dueña, igual que el runner de ciclo de vida,
// para que un archive o purge en curso no deje el registro fuera de su cascada.
func (r *recordRepo) Create(ctx context.Context, rec records.Record) error {
	if rec.ID == "" {
		return errors.New("record id required")
	}

	petID, err := r.petOf(rec)
	if err != nil {
		return err
	}
	r.db.locks.Lock(petID)
	defer r.db.locks.Unlock(petID)

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t, err := r.table(rec.Kind)
	if err != nil {
		return err
	}
	if _, exists := t[rec.ID]; exists {
		return errors.New("record already exists")
	}
	if err := r.parentActive(rec); err != nil {
		return err
	}

	t[rec.ID] = rec
	return nil
}

// petOf resuelve la mascota dueña; el pet de un tratamiento no cambia nunca.
func (r *recordRepo) petOf(rec records.Record) (string, error) {
	if rec.Kind.Parent() != records.ParentTreatment {
		return rec.ParentID, nil
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	t, ok := r.db.records[records.KindTreatment][rec.ParentID]
	if !ok {
		return "", records.ErrParentNotFound
	}
	return t.ParentID, nil
}

// parentActive se llama con db.mu y el lock de la mascota tomados.
func (r *recordRepo) parentActive(rec records.Record) error {
	petID := rec.ParentID
	if rec.Kind.Parent() == records.ParentTreatment {
		t, ok := r.db.records[records.KindTreatment][rec.ParentID]
		if !ok {
			return records.ErrParentNotFound
		}
		if t.Archived() {
			return records.ErrParentArchived
		}
		petID = t.ParentID
	}

	p, ok := r.db.pets[petID]
	if !ok {
		return records.ErrParentNotFound
	}
	if p.Archived() {
		return records.ErrParentArchived
	}
	return nil
}

func (r *recordRepo) GetByID(ctx context.Context, kind records.Kind, id string) (records.Record, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	t, err := r.table(kind)
	if err != nil {
		return records.Record{}, err
	}
	rec, ok := t[id]
	if !ok {
		return records.Record{}, records.ErrNotFound
	}
	return rec, nil
}

func (r *recordRepo) ListByParent(ctx context.Context, kind records.Kind, parentID string, filter records.ListFilter) ([]records.Record, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	t, err := r.table(kind)
	if err != nil {
		return nil, err
	}

	out := make([]records.Record, 0)
	for _, rec := range t {
		if rec.ParentID != parentID {
			continue
		}
		if rec.Archived() && !filter.IncludeArchived {
			continue
		}

		// Filtros por fecha del registro
		if filter.From != nil && rec.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && rec.Date.After(*filter.To) {
			continue
		}

		out = append(out, rec)
	}

	// Más reciente primero
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return paginate(out, 0, filter.Limit), nil
}

func (r *recordRepo) Update(ctx context.Context, rec records.Record) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t, err := r.table(rec.Kind)
	if err != nil {
		return err
	}
	current, ok := t[rec.ID]
	if !ok {
		return records.ErrNotFound
	}
	rec.DeletedAt = current.DeletedAt
	t[rec.ID] = rec
	return nil
}

func (r *recordRepo) SoftDelete(ctx context.Context, kind records.Kind, id string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t, err := r.table(kind)
	if err != nil {
		return err
	}
	rec, ok := t[id]
	if !ok || rec.Archived() {
		return records.ErrNotFound
	}
	rec.DeletedAt = &at
	rec.UpdatedAt = at
	t[id] = rec
	return nil
}
