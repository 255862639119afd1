package roles

import (
	"context"
	"testing"

	"pet-clinical-history/internal/ports/auth"
	"pet-clinical-history/internal/ports/capabilities"
)

func TestResolver_Matrix(t *testing.T) {
	t.Setenv("ALLOW_ALL_CAPABILITIES", "")
	r := NewResolver()

	cases := []struct {
		role auth.Role
		cap  capabilities.Capability
		want bool
	}{
		{auth.RoleAdmin, capabilities.PetsPurge, true},
		{auth.RoleStaff, capabilities.PetsArchive, true},
		{auth.RoleStaff, capabilities.PetsPurge, false},
		{auth.RoleStaff, capabilities.UsersManage, false},
		{auth.RoleOwner, capabilities.PetsArchive, false},
		{auth.Role("ghost"), capabilities.PetsManage, false},
	}

	for _, c := range cases {
		got, err := r.HasFeature(context.Background(), capabilities.CapabilityCheck{Role: c.role, Capability: c.cap})
		if err != nil {
			t.Fatalf("HasFeature(%s,%s) error: %v", c.role, c.cap, err)
		}
		if got != c.want {
			t.Fatalf("HasFeature(%s,%s) = %v, want %v", c.role, c.cap, got, c.want)
		}
	}
}

func TestResolver_AllowAllEnv(t *testing.T) {
	t.Setenv("ALLOW_ALL_CAPABILITIES", "true")
	r := NewResolver()

	ok, err := r.HasFeature(context.Background(), capabilities.CapabilityCheck{Role: auth.RoleOwner, Capability: capabilities.PetsPurge})
	if err != nil || !ok {
		t.Fatalf("expected allow-all, got %v %v", ok, err)
	}
}

func TestResolver_EmptyCapability(t *testing.T) {
	_, err := NewResolver().HasFeature(context.Background(), capabilities.CapabilityCheck{Role: auth.RoleAdmin})
	if err != ErrCapabilityRequired {
		t.Fatalf("expected ErrCapabilityRequired, got %v", err)
	}
}
