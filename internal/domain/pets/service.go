package pets

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"pet-clinical-history/internal/domain/lifecycle"
	"pet-clinical-history/internal/platform/logger"
	"pet-clinical-history/internal/platform/metrics"
	"pet-clinical-history/internal/ports/photos"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("pet not found")
	ErrOwnerNotFound = errors.New("owner not found")
)

const PageSize = 50

// maxPage acota el número de página para que el offset entre en un int32
// (tipo de OFFSET en postgres) y no desborde.
const maxPage = math.MaxInt32/PageSize + 1

// OwnerDirectory resuelve el user vinculado a un perfil de dueño.
// Se usa para evitar ciclos de imports entre módulos (pets <-> owners).
type OwnerDirectory interface {
	UserIDOf(ctx context.Context, ownerID string) (string, error)
}

// Lifecycle es la parte de lifecycle.Manager que usa pets.
type Lifecycle interface {
	Archive(ctx context.Context, petID string) (lifecycle.Result, error)
	Restore(ctx context.Context, petID string) (lifecycle.Result, error)
	Purge(ctx context.Context, petID string) (lifecycle.Result, error)
}

type Service struct {
	repo      Repository
	owners    OwnerDirectory
	photos    photos.Store
	lifecycle Lifecycle
	log       logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Deps struct {
	Repo      Repository
	Owners    OwnerDirectory
	Photos    photos.Store
	Lifecycle Lifecycle
	Logger    logger.Logger
	Metrics   *metrics.Metrics
}

func NewService(d Deps) *Service {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:      d.Repo,
		owners:    d.Owners,
		photos:    d.Photos,
		lifecycle: d.Lifecycle,
		log:       log,
		metrics:   d.Metrics,
		now:       time.Now,
	}
}

type CreateInput struct {
	Name      string
	Species   string
	Breed     string
	Sex       string
	BirthDate *time.Time
	Microchip string
	Notes     string
}

// BirthDatePatch permite distinguir "no enviado" de "null" en PATCH.
type BirthDatePatch struct {
	Present bool
	Value   *time.Time
}

type UpdateProfileInput struct {
	Name      *string
	Species   *string
	Breed     *string
	Sex       *string
	BirthDate BirthDatePatch
	Microchip *string
	Notes     *string
}

// Page es una página de mascotas.
type Page struct {
	Items    []Pet
	Total    int
	Page     int
	PerPage  int
	LastPage int
}

func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (Pet, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return Pet{}, ErrInvalidInput
	}
	if s.owners != nil {
		if _, err := s.owners.UserIDOf(ctx, ownerID); err != nil {
			return Pet{}, ErrOwnerNotFound
		}
	}

	now := s.now()
	p := Pet{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      strings.TrimSpace(in.Name),
		Species:   parseSpecies(in.Species),
		Breed:     strings.TrimSpace(in.Breed),
		Sex:       parseSex(in.Sex),
		BirthDate: in.BirthDate,
		Microchip: strings.TrimSpace(in.Microchip),
		Notes:     strings.TrimSpace(in.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := validate(p, now); err != nil {
		return Pet{}, err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return Pet{}, err
	}
	return p, nil
}

// GetByID devuelve solo mascotas activas.
func (s *Service) GetByID(ctx context.Context, id string) (Pet, error) {
	p, err := s.GetAny(ctx, id)
	if err != nil {
		return Pet{}, err
	}
	if p.Archived() {
		return Pet{}, ErrNotFound
	}
	return p, nil
}

// GetAny devuelve la mascota aunque esté archivada.
func (s *Service) GetAny(ctx context.Context, id string) (Pet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Pet{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, page int) (Page, error) {
	return s.page(ctx, ListFilter{}, page)
}

func (s *Service) Search(ctx context.Context, name string, page int) (Page, error) {
	return s.page(ctx, ListFilter{Name: strings.TrimSpace(name)}, page)
}

func (s *Service) ListByOwner(ctx context.Context, ownerID, name string, page int) (Page, error) {
	return s.page(ctx, ListFilter{OwnerID: ownerID, Name: strings.TrimSpace(name)}, page)
}

func (s *Service) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	_, total, err := s.repo.List(ctx, ListFilter{OwnerID: ownerID, Limit: 1})
	return total, err
}

// ListArchived devuelve las archivadas, la más reciente primero.
func (s *Service) ListArchived(ctx context.Context, page int) (Page, error) {
	return s.page(ctx, ListFilter{Archived: true}, page)
}

func (s *Service) page(ctx context.Context, f ListFilter, page int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	f.Offset = (page - 1) * PageSize
	f.Limit = PageSize

	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return Page{}, err
	}
	last := (total + PageSize - 1) / PageSize
	if last < 1 {
		last = 1
	}
	return Page{Items: items, Total: total, Page: page, PerPage: PageSize, LastPage: last}, nil
}

// UpdateProfile aplica un PATCH sobre una mascota activa.
func (s *Service) UpdateProfile(ctx context.Context, id string, in UpdateProfileInput) (Pet, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return Pet{}, err
	}

	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Species != nil {
		p.Species = parseSpecies(*in.Species)
	}
	if in.Breed != nil {
		p.Breed = strings.TrimSpace(*in.Breed)
	}
	if in.Sex != nil {
		p.Sex = parseSex(*in.Sex)
	}
	if in.BirthDate.Present {
		p.BirthDate = in.BirthDate.Value
	}
	if in.Microchip != nil {
		p.Microchip = strings.TrimSpace(*in.Microchip)
	}
	if in.Notes != nil {
		p.Notes = strings.TrimSpace(*in.Notes)
	}

	now := s.now()
	if err := validate(p, now); err != nil {
		return Pet{}, err
	}
	p.UpdatedAt = now

	if err := s.repo.Update(ctx, p); err != nil {
		return Pet{}, err
	}
	return p, nil
}

func (s *Service) Archive(ctx context.Context, id string) (lifecycle.Result, error) {
	return s.lifecycle.Archive(ctx, id)
}

func (s *Service) Restore(ctx context.Context, id string) (lifecycle.Result, error) {
	return s.lifecycle.Restore(ctx, id)
}

// Purge borra la mascota y su historial; la foto se borra después, sin afectar el resultado.
func (s *Service) Purge(ctx context.Context, id string) (lifecycle.Result, error) {
	photo := ""
	if p, err := s.GetAny(ctx, id); err == nil {
		photo = p.Photo
	}

	res, err := s.lifecycle.Purge(ctx, id)
	if err != nil {
		return res, err
	}

	if photo != "" && s.photos != nil {
		if err := s.photos.Delete(ctx, photo); err != nil {
			s.log.Warn("purged pet photo not removed", map[string]any{
				"pet_id": id,
				"photo":  photo,
				"error":  err,
			})
		}
	}
	return res, nil
}

func validate(p Pet, now time.Time) error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(p.Name) > 100 {
		return fmt.Errorf("%w: name must be at most 100 characters", ErrInvalidInput)
	}
	if !p.Species.Valid() {
		return fmt.Errorf("%w: species must be one of dog, cat, bird, rabbit, hamster, reptile, other", ErrInvalidInput)
	}
	if !p.Sex.Valid() {
		return fmt.Errorf("%w: sex must be male, female or unknown", ErrInvalidInput)
	}
	if p.BirthDate != nil && p.BirthDate.After(now) {
		return fmt.Errorf("%w: birth_date cannot be in the future", ErrInvalidInput)
	}
	return nil
}
