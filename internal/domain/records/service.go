package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pet-clinical-history/internal/domain/records/details"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("record not found")
	ErrParentNotFound = errors.New("parent not found")

	// ErrParentArchived: la mascota (o el tratamiento) dueña del registro está archivada.
	// Lo devuelve el repositorio al escribir, bajo el mismo lock que el ciclo de vida.
	ErrParentArchived = errors.New("parent is archived")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type CreateInput struct {
	Date    time.Time // zero => ahora
	Details json.RawMessage
}

type UpdateInput struct {
	Date    *time.Time
	Details json.RawMessage // merge parcial sobre el detalle actual
}

func (s *Service) Create(ctx context.Context, kind Kind, parentID string, in CreateInput) (Record, error) {
	parentID = strings.TrimSpace(parentID)
	if !kind.Valid() || parentID == "" {
		return Record{}, ErrInvalidInput
	}

	// Los hijos de un tratamiento exigen que el tratamiento exista y esté activo.
	if kind.Parent() == ParentTreatment {
		t, err := s.repo.GetByID(ctx, KindTreatment, parentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Record{}, ErrParentNotFound
			}
			return Record{}, err
		}
		if t.Archived() {
			return Record{}, ErrParentNotFound
		}
	}

	d, err := decodeDetails(kind, nil, in.Details)
	if err != nil {
		return Record{}, err
	}

	now := s.now()
	date := in.Date
	if date.IsZero() {
		date = now
	}

	rec := Record{
		ID:        uuid.NewString(),
		Kind:      kind,
		ParentID:  parentID,
		Date:      date,
		Details:   d,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Get devuelve ErrNotFound para registros archivados salvo includeArchived.
func (s *Service) Get(ctx context.Context, kind Kind, id string, includeArchived bool) (Record, error) {
	id = strings.TrimSpace(id)
	if !kind.Valid() || id == "" {
		return Record{}, ErrInvalidInput
	}
	rec, err := s.repo.GetByID(ctx, kind, id)
	if err != nil {
		return Record{}, err
	}
	if rec.Archived() && !includeArchived {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *Service) ListByParent(ctx context.Context, kind Kind, parentID string, filter ListFilter) ([]Record, error) {
	if !kind.Valid() || strings.TrimSpace(parentID) == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByParent(ctx, kind, parentID, filter)
}

func (s *Service) Update(ctx context.Context, kind Kind, id string, in UpdateInput) (Record, error) {
	rec, err := s.Get(ctx, kind, id, false)
	if err != nil {
		return Record{}, err
	}

	if len(in.Details) > 0 {
		d, err := decodeDetails(kind, rec.Details, in.Details)
		if err != nil {
			return Record{}, err
		}
		rec.Details = d
	}
	if in.Date != nil {
		rec.Date = *in.Date
	}
	rec.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Delete archiva un único registro. El borrado en cascada por mascota vive en lifecycle.
func (s *Service) Delete(ctx context.Context, kind Kind, id string) error {
	if _, err := s.Get(ctx, kind, id, false); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, kind, id, s.now())
}

// PetOf resuelve la mascota dueña del registro (directa o vía tratamiento).
func (s *Service) PetOf(ctx context.Context, rec Record) (string, error) {
	if rec.Kind.Parent() == ParentPet {
		return rec.ParentID, nil
	}
	t, err := s.repo.GetByID(ctx, KindTreatment, rec.ParentID)
	if err != nil {
		return "", err
	}
	return t.ParentID, nil
}

type validator interface {
	Validate() error
}

func newDetails(kind Kind) validator {
	switch kind {
	case KindDeworming:
		return &details.Deworming{}
	case KindVaccination:
		return &details.Vaccination{}
	case KindDiagnosis:
		return &details.Diagnosis{}
	case KindAdmission:
		return &details.Admission{}
	case KindTestResult:
		return &details.TestResult{}
	case KindService:
		return &details.ServiceAvailed{}
	case KindTreatment:
		return &details.Treatment{}
	case KindMedication:
		return &details.Medication{}
	case KindPetCondition:
		return &details.PetCondition{}
	}
	return nil
}

// decodeDetails aplica patch sobre current (puede ser nil), valida y re-serializa.
// Solo se aceptan los campos del tipo del Kind.
func decodeDetails(kind Kind, current, patch json.RawMessage) (json.RawMessage, error) {
	v := newDetails(kind)
	if v == nil {
		return nil, ErrInvalidInput
	}
	if len(current) > 0 {
		if err := json.Unmarshal(current, v); err != nil {
			return nil, fmt.Errorf("stored details for %s: %w", kind, err)
		}
	}
	if len(bytes.TrimSpace(patch)) == 0 || bytes.Equal(bytes.TrimSpace(patch), []byte("null")) {
		if len(current) == 0 {
			return nil, fmt.Errorf("%w: details required", ErrInvalidInput)
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(patch))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return json.Marshal(v)
}
