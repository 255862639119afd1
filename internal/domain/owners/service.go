package owners

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("owner not found")
)

const (
	maxNameLen = 55
	contactLen = 10
	PageSize   = 50
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
	UserID     string
	Firstname  string
	Lastname   string
	Email      string
	ContactNum string
	ZipcodeID  string
	Barangay   string
	Zone       string
}

// UpdateInput usa punteros para PATCH: nil = no tocar.
type UpdateInput struct {
	Firstname  *string
	Lastname   *string
	Email      *string
	ContactNum *string
	ZipcodeID  *string
	Barangay   *string
	Zone       *string
}

// Page es una página de dueños.
type Page struct {
	Items    []Owner
	Total    int
	Page     int
	PerPage  int
	LastPage int
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Owner, error) {
	now := s.now()
	o := Owner{
		ID:         uuid.NewString(),
		UserID:     strings.TrimSpace(in.UserID),
		Firstname:  strings.TrimSpace(in.Firstname),
		Lastname:   strings.TrimSpace(in.Lastname),
		Email:      strings.ToLower(strings.TrimSpace(in.Email)),
		ContactNum: strings.TrimSpace(in.ContactNum),
		ZipcodeID:  strings.TrimSpace(in.ZipcodeID),
		Barangay:   strings.TrimSpace(in.Barangay),
		Zone:       strings.TrimSpace(in.Zone),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := validate(o); err != nil {
		return Owner{}, err
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return Owner{}, err
	}
	return o, nil
}

func (s *Service) Get(ctx context.Context, id string) (Owner, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Owner{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByUserID(ctx context.Context, userID string) (Owner, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Owner{}, ErrNotFound
	}
	return s.repo.GetByUserID(ctx, userID)
}

// UserIDOf devuelve el user vinculado a un dueño ("" si no tiene cuenta).
func (s *Service) UserIDOf(ctx context.Context, ownerID string) (string, error) {
	o, err := s.Get(ctx, ownerID)
	if err != nil {
		return "", err
	}
	return o.UserID, nil
}

// List pagina de a PageSize; page empieza en 1.
func (s *Service) List(ctx context.Context, name string, page int) (Page, error) {
	if page < 1 {
		page = 1
	}
	items, total, err := s.repo.List(ctx, ListFilter{
		Name:   strings.TrimSpace(name),
		Offset: (page - 1) * PageSize,
		Limit:  PageSize,
	})
	if err != nil {
		return Page{}, err
	}
	last := (total + PageSize - 1) / PageSize
	if last < 1 {
		last = 1
	}
	return Page{Items: items, Total: total, Page: page, PerPage: PageSize, LastPage: last}, nil
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Owner, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return Owner{}, err
	}

	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&o.Firstname, in.Firstname)
	set(&o.Lastname, in.Lastname)
	set(&o.ContactNum, in.ContactNum)
	set(&o.ZipcodeID, in.ZipcodeID)
	set(&o.Barangay, in.Barangay)
	set(&o.Zone, in.Zone)
	if in.Email != nil {
		o.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}

	if err := validate(o); err != nil {
		return Owner{}, err
	}
	o.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, o); err != nil {
		return Owner{}, err
	}
	return o, nil
}

func validate(o Owner) error {
	required := []struct {
		field, value string
	}{
		{"firstname", o.Firstname},
		{"lastname", o.Lastname},
		{"email", o.Email},
		{"contact_num", o.ContactNum},
		{"zipcode_id", o.ZipcodeID},
		{"barangay", o.Barangay},
	}
	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidInput, f.field)
		}
	}

	for field, v := range map[string]string{"firstname": o.Firstname, "lastname": o.Lastname, "barangay": o.Barangay, "zone": o.Zone} {
		if utf8.RuneCountInString(v) > maxNameLen {
			return fmt.Errorf("%w: %s must be at most %d characters", ErrInvalidInput, field, maxNameLen)
		}
	}

	if _, err := mail.ParseAddress(o.Email); err != nil {
		return fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	if len(o.ContactNum) != contactLen || strings.Trim(o.ContactNum, "0123456789") != "" {
		return fmt.Errorf("%w: contact_num must be %d digits", ErrInvalidInput, contactLen)
	}
	return nil
}
