package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pet-clinical-history/internal/domain/lifecycle"
	"pet-clinical-history/internal/domain/records"
)

const defaultLifecycleTimeout = 5 * time.Second

// LifecycleRunner abre una transacción por operación y bloquea la fila
// de la mascota (SELECT ... FOR UPDATE) hasta el commit.
type LifecycleRunner struct {
	db      *sql.DB
	timeout time.Duration
	now     func() time.Time
}

func NewLifecycleRunner(db *sql.DB) *LifecycleRunner {
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

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&txStore{tx: tx, at: r.now()}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

type txStore struct {
	tx *sql.Tx
	at time.Time
}

func (s *txStore) LockPet(ctx context.Context, petID string) (lifecycle.State, error) {
	var deleted sql.NullTime
	err := s.tx.QueryRowContext(ctx, `SELECT deleted_at FROM pets WHERE id = $1 FOR UPDATE`, petID).Scan(&deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, lifecycle.ErrNotFound
		}
		return 0, classify(err)
	}
	if deleted.Valid {
		return lifecycle.StateArchived, nil
	}
	return lifecycle.StateActive, nil
}

func (s *txStore) FindIDs(ctx context.Context, entity lifecycle.Entity, fk string, parentIDs []string, state lifecycle.State) ([]string, error) {
	t, err := entityTable(entity, fk)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`SELECT id FROM %s WHERE %s = ANY($1)`, t, fk)
	switch state {
	case lifecycle.StateActive:
		q += ` AND deleted_at IS NULL`
	case lifecycle.StateArchived:
		q += ` AND deleted_at IS NOT NULL`
	}
	q += ` ORDER BY id`

	rows, err := s.tx.QueryContext(ctx, q, parentIDs)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *txStore) SoftDelete(ctx context.Context, entity lifecycle.Entity, ids []string) error {
	return s.exec(ctx, entity, `UPDATE %s SET deleted_at = $2, updated_at = $2 WHERE id = ANY($1)`, ids, s.at)
}

func (s *txStore) Restore(ctx context.Context, entity lifecycle.Entity, ids []string) error {
	return s.exec(ctx, entity, `UPDATE %s SET deleted_at = NULL, updated_at = $2 WHERE id = ANY($1)`, ids, s.at)
}

func (s *txStore) Purge(ctx context.Context, entity lifecycle.Entity, ids []string) error {
	return s.exec(ctx, entity, `DELETE FROM %s WHERE id = ANY($1)`, ids)
}

func (s *txStore) exec(ctx context.Context, entity lifecycle.Entity, tmpl string, ids []string, extra ...any) error {
	t, err := entityTable(entity, "")
	if err != nil {
		return err
	}
	args := append([]any{ids}, extra...)
	_, err = s.tx.ExecContext(ctx, fmt.Sprintf(tmpl, t), args...)
	return classify(err)
}

// entityTable solo acepta la tabla pets y las tablas de registros.
// fk vacío => no se valida (escrituras por id).
func entityTable(entity lifecycle.Entity, fk string) (string, error) {
	if entity == lifecycle.EntityPet {
		if fk != "" {
			return "", fmt.Errorf("entity %q has no foreign key %q", entity, fk)
		}
		return string(lifecycle.EntityPet), nil
	}
	kind, ok := records.ParseKind(string(entity))
	if !ok || string(kind) != string(entity) {
		return "", fmt.Errorf("unknown entity %q", entity)
	}
	if fk != "" && kind.ForeignKey() != fk {
		return "", fmt.Errorf("entity %q has no foreign key %q", entity, fk)
	}
	return string(kind), nil
}
