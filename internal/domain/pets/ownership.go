package pets

import (
	"context"
	"fmt"
)

// PetOwnerUser implementa records.PetAccess.
func (s *Service) PetOwnerUser(ctx context.Context, petID string) (string, bool, error) {
	p, err := s.GetAny(ctx, petID)
	if err != nil {
		return "", false, err
	}
	userID, err := s.OwnerUserOf(ctx, p)
	if err != nil {
		return "", false, err
	}
	return userID, p.Archived(), nil
}

// OwnerUserOf devuelve el user dueño de la mascota ("" si el dueño no tiene cuenta).
func (s *Service) OwnerUserOf(ctx context.Context, p Pet) (string, error) {
	if s.owners == nil {
		return "", nil
	}
	userID, err := s.owners.UserIDOf(ctx, p.OwnerID)
	if err != nil {
		return "", fmt.Errorf("owner of pet %s: %w", p.ID, err)
	}
	return userID, nil
}

// OwnerUserByID resuelve el user de un perfil de dueño. ErrOwnerNotFound si no existe.
func (s *Service) OwnerUserByID(ctx context.Context, ownerID string) (string, error) {
	if s.owners == nil {
		return "", ErrOwnerNotFound
	}
	userID, err := s.owners.UserIDOf(ctx, ownerID)
	if err != nil {
		return "", ErrOwnerNotFound
	}
	return userID, nil
}
