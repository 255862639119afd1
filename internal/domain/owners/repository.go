package owners

import "context"

type Repository interface {
	Create(ctx context.Context, o Owner) error
	Update(ctx context.Context, o Owner) error
	GetByID(ctx context.Context, id string) (Owner, error)
	GetByUserID(ctx context.Context, userID string) (Owner, error)
	// List ordena por apellido y nombre.
	List(ctx context.Context, filter ListFilter) ([]Owner, int, error)
}

type ListFilter struct {
	Name   string // substring sobre nombre completo
	Offset int
	Limit  int
}
