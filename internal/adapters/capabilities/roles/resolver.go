package roles

import (
	"context"
	"errors"
	"os"
	"strings"

	"pet-clinical-history/internal/ports/auth"
	"pet-clinical-history/internal/ports/capabilities"
)

var ErrCapabilityRequired = errors.New("capability required")

// Matriz rol -> capabilities. El owner no tiene capabilities de gestión:
// su acceso a mascotas/registros propios se resuelve por ownership en cada handler.
var defaultMatrix = map[auth.Role]map[capabilities.Capability]bool{
	auth.RoleAdmin: {
		capabilities.OwnersManage:  true,
		capabilities.PetsManage:    true,
		capabilities.PetsArchive:   true,
		capabilities.PetsPurge:     true,
		capabilities.RecordsManage: true,
		capabilities.UsersManage:   true,
	},
	auth.RoleStaff: {
		capabilities.OwnersManage:  true,
		capabilities.PetsManage:    true,
		capabilities.PetsArchive:   true,
		capabilities.RecordsManage: true,
	},
	auth.RoleOwner: {},
}

// Resolver implementa capabilities.CapabilitiesResolver a partir del rol del token.
type Resolver struct {
	matrix   map[auth.Role]map[capabilities.Capability]bool
	allowAll bool
}

// NewResolver crea un resolver con la matriz por defecto.
// Si ALLOW_ALL_CAPABILITIES=true (env), todo devuelve true (modo dev).
func NewResolver() *Resolver {
	allowAll := strings.EqualFold(strings.TrimSpace(os.Getenv("ALLOW_ALL_CAPABILITIES")), "true")
	return &Resolver{
		matrix:   defaultMatrix,
		allowAll: allowAll,
	}
}

func (r *Resolver) HasFeature(_ context.Context, in capabilities.CapabilityCheck) (bool, error) {
	if strings.TrimSpace(string(in.Capability)) == "" {
		return false, ErrCapabilityRequired
	}
	if r.allowAll {
		return true, nil
	}
	return r.matrix[in.Role][in.Capability], nil
}

// Resolve devuelve el set completo de capabilities para un rol.
func (r *Resolver) Resolve(role auth.Role) map[capabilities.Capability]bool {
	out := map[capabilities.Capability]bool{}
	for c, ok := range r.matrix[role] {
		if ok {
			out[c] = true
		}
	}
	return out
}
