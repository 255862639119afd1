package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"pet-clinical-history/internal/domain/users"
	"pet-clinical-history/internal/ports/auth"
)

type UsersRepo struct {
	db *sql.DB
}

func NewUsersRepo(db *sql.DB) *UsersRepo {
	return &UsersRepo{db: db}
}

const userColumns = `
	id, email, password_hash, role,
	deactivated_at, reset_code, reset_code_expires_at,
	created_at, updated_at`

func (r *UsersRepo) Create(ctx context.Context, u users.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		u.ID,
		u.Email,
		u.PasswordHash,
		string(u.Role),
		nullTime(u.DeactivatedAt),
		u.ResetCode,
		nullTime(u.ResetCodeExpiresAt),
		u.CreatedAt,
		u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return users.ErrEmailTaken
	}
	return classify(err)
}

func (r *UsersRepo) Update(ctx context.Context, u users.User) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET
			email = $2,
			password_hash = $3,
			role = $4,
			deactivated_at = $5,
			reset_code = $6,
			reset_code_expires_at = $7,
			updated_at = $8
		WHERE id = $1
	`,
		u.ID,
		u.Email,
		u.PasswordHash,
		string(u.Role),
		nullTime(u.DeactivatedAt),
		u.ResetCode,
		nullTime(u.ResetCodeExpiresAt),
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return users.ErrEmailTaken
		}
		return classify(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return classify(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (users.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return users.User{}, users.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (users.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
}

func (r *UsersRepo) getOne(ctx context.Context, q, arg string) (users.User, error) {
	var (
		u                  users.User
		role               string
		deactivated, reset sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, arg).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&role,
		&deactivated,
		&u.ResetCode,
		&reset,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return users.User{}, users.ErrNotFound
		}
		return users.User{}, classify(err)
	}
	u.Role = auth.Role(role)
	u.DeactivatedAt = timePtr(deactivated)
	u.ResetCodeExpiresAt = timePtr(reset)
	return u, nil
}
