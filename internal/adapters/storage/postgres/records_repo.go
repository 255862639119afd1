package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pet-clinical-history/internal/domain/records"
)

// RecordsRepo guarda cada Kind en su propia tabla (el nombre de tabla es el Kind).
type RecordsRepo struct {
	db *sql.DB
}

func NewRecordsRepo(db *sql.DB) *RecordsRepo {
	return &RecordsRepo{db: db}
}

// table devuelve tabla y FK; solo Kinds válidos llegan a armar SQL.
func table(kind records.Kind) (string, string, error) {
	if !kind.Valid() {
		return "", "", records.ErrNotFound
	}
	return string(kind), kind.ForeignKey(), nil
}

// Create inserta solo si la mascota (y el tratamiento, para sus hijos) sigue activa.
// FOR SHARE choca con el FOR UPDATE del runner de ciclo de vida: si un archive o
// purge está en curso, el insert espera y reevalúa deleted_at al terminar.
func (r *RecordsRepo) Create(ctx context.Context, rec records.Record) error {
	t, fk, err := table(rec.Kind)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, %s, date, details, created_at, updated_at, deleted_at)
		SELECT $1,$2,$3,$4,$5,$6,$7
		WHERE EXISTS (%s)
	`, t, fk, activeParentQuery(rec.Kind)),
		rec.ID,
		rec.ParentID,
		rec.Date,
		detailsArg(rec.Details),
		rec.CreatedAt,
		rec.UpdatedAt,
		nullTime(rec.DeletedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return records.ErrParentNotFound
		}
		return classify(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return r.parentState(ctx, rec)
	}
	return nil
}

// activeParentQuery usa $2 (parent id) del INSERT.
func activeParentQuery(kind records.Kind) string {
	if kind.Parent() == records.ParentTreatment {
		return `SELECT 1 FROM treatments tr JOIN pets p ON p.id = tr.pet_id
			WHERE tr.id = $2 AND tr.deleted_at IS NULL AND p.deleted_at IS NULL
			FOR SHARE OF tr, p`
	}
	return `SELECT 1 FROM pets WHERE id = $2 AND deleted_at IS NULL FOR SHARE`
}

// parentState explica por qué no se insertó: padre inexistente o archivado.
func (r *RecordsRepo) parentState(ctx context.Context, rec records.Record) error {
	q := `SELECT deleted_at IS NOT NULL FROM pets WHERE id = $1`
	if rec.Kind.Parent() == records.ParentTreatment {
		q = `SELECT tr.deleted_at IS NOT NULL OR p.deleted_at IS NOT NULL
			FROM treatments tr JOIN pets p ON p.id = tr.pet_id
			WHERE tr.id = $1`
	}

	var archived bool
	err := r.db.QueryRowContext(ctx, q, rec.ParentID).Scan(&archived)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return records.ErrParentNotFound
	case err != nil:
		return classify(err)
	case archived:
		return records.ErrParentArchived
	}
	// Se restauró entre el insert y este query: el insert ya vio el padre archivado.
	return records.ErrParentArchived
}

func (r *RecordsRepo) GetByID(ctx context.Context, kind records.Kind, id string) (records.Record, error) {
	t, fk, err := table(kind)
	if err != nil {
		return records.Record{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return records.Record{}, records.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, %s, date, details, created_at, updated_at, deleted_at
		FROM %s
		WHERE id = $1
	`, fk, t), id)

	rec, err := scanRecord(row, kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return records.Record{}, records.ErrNotFound
		}
		return records.Record{}, classify(err)
	}
	return rec, nil
}

func (r *RecordsRepo) ListByParent(ctx context.Context, kind records.Kind, parentID string, filter records.ListFilter) ([]records.Record, error) {
	t, fk, err := table(kind)
	if err != nil {
		return nil, err
	}

	where := []string{fk + " = $1"}
	args := []any{parentID}
	if !filter.IncludeArchived {
		where = append(where, "deleted_at IS NULL")
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, "date >= $"+itoa(len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, "date <= $"+itoa(len(args)))
	}

	q := fmt.Sprintf(`
		SELECT id, %s, date, details, created_at, updated_at, deleted_at
		FROM %s
		WHERE %s
		ORDER BY date DESC, created_at DESC
	`, fk, t, strings.Join(where, " AND "))
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += " LIMIT $" + itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := make([]records.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *RecordsRepo) Update(ctx context.Context, rec records.Record) error {
	t, _, err := table(rec.Kind)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s
		SET date = $2, details = $3, updated_at = $4
		WHERE id = $1
	`, t), rec.ID, rec.Date, detailsArg(rec.Details), rec.UpdatedAt)
	if err != nil {
		return classify(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return records.ErrNotFound
	}
	return nil
}

func (r *RecordsRepo) SoftDelete(ctx context.Context, kind records.Kind, id string, at time.Time) error {
	t, _, err := table(kind)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, t), id, at)
	if err != nil {
		return classify(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return records.ErrNotFound
	}
	return nil
}

func scanRecord(s scanner, kind records.Kind) (records.Record, error) {
	var (
		rec     records.Record
		details []byte
		deleted sql.NullTime
	)
	if err := s.Scan(
		&rec.ID,
		&rec.ParentID,
		&rec.Date,
		&details,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&deleted,
	); err != nil {
		return records.Record{}, err
	}
	rec.Kind = kind
	rec.Details = json.RawMessage(details)
	rec.DeletedAt = timePtr(deleted)
	return rec, nil
}

// detailsArg pasa el JSON como string para que pgx lo castee a jsonb.
func detailsArg(d json.RawMessage) string {
	if len(d) == 0 {
		return "{}"
	}
	return string(d)
}
