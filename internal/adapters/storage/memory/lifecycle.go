package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pet-clinical-history/internal/domain/lifecycle"
	"pet-clinical-history/internal/domain/records"
)

const defaultLifecycleTimeout = 5 * time.Second

// LifecycleRunner implementa lifecycle.Runner sobre el DB en memoria.
// Los cambios se acumulan en un stage y se aplican juntos bajo el lock de
// escritura del DB; si fn falla, el stage se descarta.
type LifecycleRunner struct {
	db      *DB
	timeout time.Duration
	now     func() time.Time
}

func NewLifecycleRunner(db *DB) *LifecycleRunner {
	return &LifecycleRunner{db: db, timeout: defaultLifecycleTimeout, now: time.Now}
}

func (r *LifecycleRunner) Transactional() bool { return true }

func (r *LifecycleRunner) RunInTx(ctx context.Context, petID string, fn func(lifecycle.Store) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("lifecycle tx aborted: %w", err)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	r.db.locks.Lock(petID)
	defer r.db.locks.Unlock(petID)

	// Otra operación pudo consumir el tiempo mientras esperábamos el lock.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("lifecycle tx aborted: %w", err)
	}

	tx := &stagedTx{db: r.db, changes: make(map[lifecycle.Entity]map[string]change)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("lifecycle tx aborted: %w", err)
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	tx.commit(r.now())
	return nil
}

type change int

const (
	changeArchive change = iota + 1
	changeRestore
	changePurge
)

type stagedTx struct {
	db      *DB
	changes map[lifecycle.Entity]map[string]change
	order   []lifecycle.Entity
}

func (tx *stagedTx) LockPet(ctx context.Context, petID string) (lifecycle.State, error) {
	tx.db.mu.RLock()
	defer tx.db.mu.RUnlock()

	p, ok := tx.db.pets[petID]
	if !ok {
		return 0, lifecycle.ErrNotFound
	}
	if p.Archived() {
		return lifecycle.StateArchived, nil
	}
	return lifecycle.StateActive, nil
}

func (tx *stagedTx) FindIDs(ctx context.Context, entity lifecycle.Entity, fk string, parentIDs []string, state lifecycle.State) ([]string, error) {
	kind, err := recordKind(entity, fk)
	if err != nil {
		return nil, err
	}

	parents := make(map[string]bool, len(parentIDs))
	for _, id := range parentIDs {
		parents[id] = true
	}

	tx.db.mu.RLock()
	defer tx.db.mu.RUnlock()

	out := make([]string, 0)
	for id, rec := range tx.db.records[kind] {
		if !parents[rec.ParentID] {
			continue
		}
		archived := rec.Archived()
		switch tx.changes[entity][id] {
		case changePurge:
			continue
		case changeArchive:
			archived = true
		case changeRestore:
			archived = false
		}
		if state.Matches(archived) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (tx *stagedTx) SoftDelete(ctx context.Context, entity lifecycle.Entity, ids []string) error {
	return tx.stage(entity, ids, changeArchive)
}

func (tx *stagedTx) Restore(ctx context.Context, entity lifecycle.Entity, ids []string) error {
	return tx.stage(entity, ids, changeRestore)
}

func (tx *stagedTx) Purge(ctx context.Context, entity lifecycle.Entity, ids []string) error {
	return tx.stage(entity, ids, changePurge)
}

func (tx *stagedTx) stage(entity lifecycle.Entity, ids []string, c change) error {
	if entity != lifecycle.EntityPet {
		if _, ok := tx.db.records[records.Kind(entity)]; !ok {
			return fmt.Errorf("unknown entity %q", entity)
		}
	}
	m, ok := tx.changes[entity]
	if !ok {
		m = make(map[string]change)
		tx.changes[entity] = m
		tx.order = append(tx.order, entity)
	}
	for _, id := range ids {
		m[id] = c
	}
	return nil
}

// commit aplica el stage; el llamador tiene el lock de escritura.
func (tx *stagedTx) commit(at time.Time) {
	for _, entity := range tx.order {
		for id, c := range tx.changes[entity] {
			if entity == lifecycle.EntityPet {
				tx.commitPet(id, c, at)
				continue
			}
			tx.commitRecord(records.Kind(entity), id, c, at)
		}
	}
}

func (tx *stagedTx) commitPet(id string, c change, at time.Time) {
	p, ok := tx.db.pets[id]
	if !ok {
		return
	}
	switch c {
	case changeArchive:
		p.DeletedAt = &at
		p.UpdatedAt = at
		tx.db.pets[id] = p
	case changeRestore:
		p.DeletedAt = nil
		p.UpdatedAt = at
		tx.db.pets[id] = p
	case changePurge:
		delete(tx.db.pets, id)
	}
}

func (tx *stagedTx) commitRecord(kind records.Kind, id string, c change, at time.Time) {
	t := tx.db.records[kind]
	rec, ok := t[id]
	if !ok {
		return
	}
	switch c {
	case changeArchive:
		rec.DeletedAt = &at
		rec.UpdatedAt = at
		t[id] = rec
	case changeRestore:
		rec.DeletedAt = nil
		rec.UpdatedAt = at
		t[id] = rec
	case changePurge:
		delete(t, id)
	}
}

// recordKind valida que la entidad sea una tabla de registros y que la FK coincida.
func recordKind(entity lifecycle.Entity, fk string) (records.Kind, error) {
	kind, ok := records.ParseKind(string(entity))
	if !ok {
		return "", fmt.Errorf("unknown entity %q", entity)
	}
	if kind.ForeignKey() != fk {
		return "", fmt.Errorf("entity %q has no foreign key %q", entity, fk)
	}
	return kind, nil
}
