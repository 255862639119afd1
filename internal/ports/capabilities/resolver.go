package capabilities

import (
	"context"

	"pet-clinical-history/internal/ports/auth"
)

type Capability string

const (
	OwnersManage  Capability = "owners:manage"
	PetsManage    Capability = "pets:manage"
	PetsArchive   Capability = "pets:archive"
	PetsPurge     Capability = "pets:purge"
	RecordsManage Capability = "records:manage"
	UsersManage   Capability = "users:manage"
)

type CapabilityCheck struct {
	UserID     string
	Role       auth.Role
	Capability Capability
}

type CapabilitiesResolver interface {
	HasFeature(ctx context.Context, in CapabilityCheck) (bool, error)
}
