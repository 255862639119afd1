package lifecycle

import "context"

// State filtra filas por estado de soft-delete.
type State int

const (
	StateActive State = iota + 1
	StateArchived
	StateAny
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateArchived:
		return "archived"
	default:
		return "any"
	}
}

// Matches indica si una fila (archivada o no) cae en el filtro.
func (s State) Matches(archived bool) bool {
	switch s {
	case StateActive:
		return !archived
	case StateArchived:
		return archived
	default:
		return true
	}
}

// Store es la vista transaccional que usa el Manager. Todas las escrituras
// de una operación pasan por el mismo Store.
type Store interface {
	// LockPet bloquea la fila de la mascota hasta el fin de la transacción
	// y devuelve su estado. ErrNotFound si no existe.
	LockPet(ctx context.Context, petID string) (State, error)

	FindIDs(ctx context.Context, entity Entity, foreignKey string, parentIDs []string, state State) ([]string, error)
	SoftDelete(ctx context.Context, entity Entity, ids []string) error
	Restore(ctx context.Context, entity Entity, ids []string) error
	Purge(ctx context.Context, entity Entity, ids []string) error
}

// Runner abre el scope de una operación sobre una mascota.
// Si fn devuelve error, un Runner transaccional deja el estado como estaba.
type Runner interface {
	RunInTx(ctx context.Context, petID string, fn func(Store) error) error
	Transactional() bool
}
