package records

import (
	"context"
	"time"
)

type Repository interface {
	// Create falla con ErrParentNotFound o ErrParentArchived si la mascota del
	// registro (directa o vía tratamiento) no existe o no está activa al escribir.
	Create(ctx context.Context, r Record) error
	GetByID(ctx context.Context, kind Kind, id string) (Record, error)
	ListByParent(ctx context.Context, kind Kind, parentID string, filter ListFilter) ([]Record, error)
	Update(ctx context.Context, r Record) error
	SoftDelete(ctx context.Context, kind Kind, id string, at time.Time) error
}

type ListFilter struct {
	IncludeArchived bool
	From            *time.Time
	To              *time.Time
	Limit           int
}
