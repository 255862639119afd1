package pets

import "context"

type Repository interface {
	Create(ctx context.Context, p Pet) error
	Update(ctx context.Context, p Pet) error
	// GetByID devuelve también mascotas archivadas.
	GetByID(ctx context.Context, id string) (Pet, error)
	// List devuelve la página pedida y el total que cumple el filtro.
	List(ctx context.Context, filter ListFilter) ([]Pet, int, error)
}

// ListFilter: activas ordenadas por nombre; archivadas por fecha de archivo desc.
type ListFilter struct {
	OwnerID  string
	Name     string // substring, sin distinguir mayúsculas
	Archived bool
	Offset   int
	Limit    int // 0 => sin límite
}
