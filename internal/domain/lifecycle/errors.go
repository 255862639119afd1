package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound: la mascota no existe o no está en el estado que exige la operación.
	ErrNotFound = errors.New("pet not found")

	// ErrStorageUnavailable: no se pudo llegar al storage.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Step es una escritura ya aplicada: entidad y cantidad de filas.
type Step struct {
	Entity Entity `json:"entity"`
	Rows   int    `json:"rows"`
}

// PartialFailureError solo ocurre con un Runner no transaccional: algunas
// escrituras quedaron aplicadas antes del error.
type PartialFailureError struct {
	Op      Op
	PetID   string
	Applied []Step
	Err     error
}

func (e *PartialFailureError) Error() string {
	parts := make([]string, 0, len(e.Applied))
	for _, s := range e.Applied {
		parts = append(parts, fmt.Sprintf("%s=%d", s.Entity, s.Rows))
	}
	return fmt.Sprintf("%s pet %s: partial failure after [%s]: %v", e.Op, e.PetID, strings.Join(parts, ", "), e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}
