package records

import (
	"encoding/json"
	"time"
)

// Record es el sobre común de todos los registros clínicos.
// Details guarda el detalle tipado del Kind (ver paquete details) serializado en JSON.
type Record struct {
	ID       string
	Kind     Kind
	ParentID string // pet o treatment, según Kind.Parent()

	Date    time.Time
	Details json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

func (r Record) Archived() bool {
	return r.DeletedAt != nil
}
