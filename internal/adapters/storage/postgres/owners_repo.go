package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pet-clinical-history/internal/domain/owners"
)

type OwnersRepo struct {
	db *sql.DB
}

func NewOwnersRepo(db *sql.DB) *OwnersRepo {
	return &OwnersRepo{db: db}
}

const ownerColumns = `
	id, user_id,
	firstname, lastname, email, contact_num,
	zipcode_id, barangay, zone,
	created_at, updated_at`

func (r *OwnersRepo) Create(ctx context.Context, o owners.Owner) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pet_owners (`+ownerColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		o.ID,
		nullString(o.UserID),
		o.Firstname,
		o.Lastname,
		o.Email,
		o.ContactNum,
		o.ZipcodeID,
		o.Barangay,
		o.Zone,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: user already has an owner profile", owners.ErrInvalidInput)
	}
	return classify(err)
}

func (r *OwnersRepo) Update(ctx context.Context, o owners.Owner) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pet_owners
		SET
			firstname = $2,
			lastname = $3,
			email = $4,
			contact_num = $5,
			zipcode_id = $6,
			barangay = $7,
			zone = $8,
			updated_at = $9
		WHERE id = $1
	`,
		o.ID,
		o.Firstname,
		o.Lastname,
		o.Email,
		o.ContactNum,
		o.ZipcodeID,
		o.Barangay,
		o.Zone,
		o.UpdatedAt,
	)
	if err != nil {
		return classify(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return owners.ErrNotFound
	}
	return nil
}

func (r *OwnersRepo) GetByID(ctx context.Context, id string) (owners.Owner, error) {
	return r.getOne(ctx, `SELECT `+ownerColumns+` FROM pet_owners WHERE id = $1`, strings.TrimSpace(id))
}

func (r *OwnersRepo) GetByUserID(ctx context.Context, userID string) (owners.Owner, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return owners.Owner{}, owners.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+ownerColumns+` FROM pet_owners WHERE user_id = $1`, userID)
}

func (r *OwnersRepo) getOne(ctx context.Context, q, arg string) (owners.Owner, error) {
	o, err := scanOwner(r.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return owners.Owner{}, owners.ErrNotFound
		}
		return owners.Owner{}, classify(err)
	}
	return o, nil
}

func (r *OwnersRepo) List(ctx context.Context, f owners.ListFilter) ([]owners.Owner, int, error) {
	cond := "TRUE"
	args := make([]any, 0, 3)
	if name := strings.TrimSpace(f.Name); name != "" {
		args = append(args, "%"+escapeLike(name)+"%")
		cond = "(firstname || ' ' || lastname) ILIKE $1"
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM pet_owners WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, classify(err)
	}

	q := `SELECT ` + ownerColumns + ` FROM pet_owners WHERE ` + cond + ` ORDER BY lower(lastname), lower(firstname), id`
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

	out := make([]owners.Owner, 0)
	for rows.Next() {
		o, err := scanOwner(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

func scanOwner(s scanner) (owners.Owner, error) {
	var (
		o      owners.Owner
		userID sql.NullString
	)
	if err := s.Scan(
		&o.ID,
		&userID,
		&o.Firstname,
		&o.Lastname,
		&o.Email,
		&o.ContactNum,
		&o.ZipcodeID,
		&o.Barangay,
		&o.Zone,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return owners.Owner{}, err
	}
	o.UserID = userID.String
	return o, nil
}

func nullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
