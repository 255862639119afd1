package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"pet-clinical-history/internal/domain/pets"
)

type PetsRepo struct {
	db *sql.DB
}

func NewPetsRepo(db *sql.DB) *PetsRepo {
	return &PetsRepo{db: db}
}

const petColumns = `
	id, owner_id,
	name, species, breed, sex,
	birth_date, microchip, notes, photo,
	created_at, updated_at, deleted_at`

func (r *PetsRepo) Create(ctx context.Context, p pets.Pet) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pets (`+petColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		p.ID,
		p.OwnerID,
		p.Name,
		string(p.Species),
		p.Breed,
		string(p.Sex),
		nullTime(p.BirthDate),
		p.Microchip,
		p.Notes,
		p.Photo,
		p.CreatedAt,
		p.UpdatedAt,
		nullTime(p.DeletedAt),
	)
	return classify(err)
}

// Update no toca deleted_at: eso es del lifecycle runner.
func (r *PetsRepo) Update(ctx context.Context, p pets.Pet) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pets
		SET
			name = $2,
			species = $3,
			breed = $4,
			sex = $5,
			birth_date = $6,
			microchip = $7,
			notes = $8,
			photo = $9,
			updated_at = $10
		WHERE id = $1
	`,
		p.ID,
		p.Name,
		string(p.Species),
		p.Breed,
		string(p.Sex),
		nullTime(p.BirthDate),
		p.Microchip,
		p.Notes,
		p.Photo,
		p.UpdatedAt,
	)
	if err != nil {
		return classify(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return pets.ErrNotFound
	}
	return nil
}

func (r *PetsRepo) GetByID(ctx context.Context, id string) (pets.Pet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return pets.Pet{}, pets.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+petColumns+` FROM pets WHERE id = $1`, id)
	p, err := scanPet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pets.Pet{}, pets.ErrNotFound
		}
		return pets.Pet{}, classify(err)
	}
	return p, nil
}

func (r *PetsRepo) List(ctx context.Context, f pets.ListFilter) ([]pets.Pet, int, error) {
	where := []string{"deleted_at IS NULL"}
	order := "lower(name) ASC, id ASC"
	if f.Archived {
		where[0] = "deleted_at IS NOT NULL"
		order = "deleted_at DESC, id ASC"
	}

	args := make([]any, 0, 4)
	if owner := strings.TrimSpace(f.OwnerID); owner != "" {
		args = append(args, owner)
		where = append(where, "owner_id = $"+itoa(len(args)))
	}
	if name := strings.TrimSpace(f.Name); name != "" {
		args = append(args, "%"+escapeLike(name)+"%")
		where = append(where, "name ILIKE $"+itoa(len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM pets WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, classify(err)
	}

	q := `SELECT ` + petColumns + ` FROM pets WHERE ` + cond + ` ORDER BY ` + order
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += " LIMIT $" + itoa(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += " OFFSET $" + itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, classify(err)
	}
	defer rows.Close()

	out := make([]pets.Pet, 0)
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPet(s scanner) (pets.Pet, error) {
	var (
		p                  pets.Pet
		species, sex       string
		birthDate, deleted sql.NullTime
	)
	if err := s.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Name,
		&species,
		&p.Breed,
		&sex,
		&birthDate,
		&p.Microchip,
		&p.Notes,
		&p.Photo,
		&p.CreatedAt,
		&p.UpdatedAt,
		&deleted,
	); err != nil {
		return pets.Pet{}, err
	}
	p.Species = pets.Species(species)
	p.Sex = pets.Sex(sex)
	// birth_date es DATE: pgx lo devuelve a medianoche UTC
	p.BirthDate = timePtr(birthDate)
	p.DeletedAt = timePtr(deleted)
	return p, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
