package pets

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"sort"
	"strings"
	"testing"
	"time"

	"pet-clinical-history/internal/domain/lifecycle"
)

// -------------------------
// Fakes
// -------------------------

type testRepo struct {
	byID map[string]Pet
	last ListFilter
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Pet{}}
}

func (r *testRepo) Create(ctx context.Context, p Pet) error {
	r.byID[p.ID] = p
	return nil
}

func (r *testRepo) Update(ctx context.Context, p Pet) error {
	if _, ok := r.byID[p.ID]; !ok {
		return ErrNotFound
	}
	r.byID[p.ID] = p
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Pet, error) {
	p, ok := r.byID[id]
	if !ok {
		return Pet{}, ErrNotFound
	}
	return p, nil
}

func (r *testRepo) List(ctx context.Context, f ListFilter) ([]Pet, int, error) {
	r.last = f
	out := make([]Pet, 0)
	for _, p := range r.byID {
		if p.Archived() != f.Archived {
			continue
		}
		if f.OwnerID != "" && p.OwnerID != f.OwnerID {
			continue
		}
		if f.Name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Name)) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := len(out)
	if f.Offset >= len(out) {
		return []Pet{}, total, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

type testOwners map[string]string // ownerID -> userID

func (o testOwners) UserIDOf(ctx context.Context, ownerID string) (string, error) {
	u, ok := o[ownerID]
	if !ok {
		return "", errors.New("owner not found")
	}
	return u, nil
}

type testPhotos struct {
	saved   map[string][]byte
	deleted []string
}

func (s *testPhotos) Save(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	b, _ := io.ReadAll(r)
	ref := "mem/" + name
	s.saved[ref] = b
	return ref, nil
}

func (s *testPhotos) Delete(ctx context.Context, ref string) error {
	s.deleted = append(s.deleted, ref)
	delete(s.saved, ref)
	return nil
}

type testLifecycle struct {
	purgeErr error
	calls    []string
}

func (l *testLifecycle) Archive(ctx context.Context, id string) (lifecycle.Result, error) {
	l.calls = append(l.calls, "archive:"+id)
	return lifecycle.Result{Op: lifecycle.OpArchive, PetID: id}, nil
}

func (l *testLifecycle) Restore(ctx context.Context, id string) (lifecycle.Result, error) {
	l.calls = append(l.calls, "restore:"+id)
	return lifecycle.Result{Op: lifecycle.OpRestore, PetID: id}, nil
}

func (l *testLifecycle) Purge(ctx context.Context, id string) (lifecycle.Result, error) {
	l.calls = append(l.calls, "purge:"+id)
	if l.purgeErr != nil {
		return lifecycle.Result{}, l.purgeErr
	}
	return lifecycle.Result{Op: lifecycle.OpPurge, PetID: id}, nil
}

type fixture struct {
	svc    *Service
	repo   *testRepo
	photos *testPhotos
	lc     *testLifecycle
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		repo:   newTestRepo(),
		photos: &testPhotos{saved: map[string][]byte{}},
		lc:     &testLifecycle{},
	}
	f.svc = NewService(Deps{
		Repo:      f.repo,
		Owners:    testOwners{"owner-1": "user-1", "owner-2": ""},
		Photos:    f.photos,
		Lifecycle: f.lc,
	})
	return f
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestCreate_ValidatesOwnerAndFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, "missing", CreateInput{Name: "Milo", Species: "dog"}); !errors.Is(err, ErrOwnerNotFound) {
		t.Fatalf("expected ErrOwnerNotFound, got %v", err)
	}
	if _, err := f.svc.Create(ctx, "owner-1", CreateInput{Name: "Milo", Species: "dragon"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for species, got %v", err)
	}
	future := time.Now().Add(48 * time.Hour)
	if _, err := f.svc.Create(ctx, "owner-1", CreateInput{Name: "Milo", Species: "dog", BirthDate: &future}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for future birth_date, got %v", err)
	}

	p, err := f.svc.Create(ctx, "owner-1", CreateInput{Name: " Milo ", Species: "Dog"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Name != "Milo" || p.Species != SpeciesDog || p.Sex != SexUnknown {
		t.Fatalf("unexpected pet: %+v", p)
	}
}

func TestUpdateProfile_BirthDatePatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bd := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	p, err := f.svc.Create(ctx, "owner-1", CreateInput{Name: "Luna", Species: "cat", BirthDate: &bd})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	notes := "indoor"
	updated, err := f.svc.UpdateProfile(ctx, p.ID, UpdateProfileInput{Notes: &notes})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.BirthDate == nil || updated.Notes != "indoor" {
		t.Fatalf("birth_date should be untouched: %+v", updated)
	}

	cleared, err := f.svc.UpdateProfile(ctx, p.ID, UpdateProfileInput{BirthDate: BirthDatePatch{Present: true}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if cleared.BirthDate != nil {
		t.Fatalf("expected birth_date cleared")
	}
}

func TestSetPhoto_ReplacesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, "owner-1", CreateInput{Name: "Milo", Species: "dog"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := f.svc.SetPhoto(ctx, p.ID, PhotoUpload{Filename: "a.png", Body: bytes.NewReader(pngHeader)})
	if err != nil {
		t.Fatalf("first photo: %v", err)
	}

	f.svc.now = func() time.Time { return time.Now().Add(time.Second) }
	second, err := f.svc.SetPhoto(ctx, p.ID, PhotoUpload{Filename: "b.png", Body: bytes.NewReader(pngHeader)})
	if err != nil {
		t.Fatalf("second photo: %v", err)
	}

	if second.Photo == first.Photo {
		t.Fatalf("expected a new photo reference")
	}
	if len(f.photos.deleted) != 1 || f.photos.deleted[0] != first.Photo {
		t.Fatalf("expected previous photo deleted, got %v", f.photos.deleted)
	}
}

func TestSetPhoto_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, "owner-1", CreateInput{Name: "Milo", Species: "dog"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = f.svc.SetPhoto(ctx, p.ID, PhotoUpload{Filename: "x.pdf", Body: strings.NewReader("%PDF-1.4 not an image")})
	if !errors.Is(err, ErrPhotoType) {
		t.Fatalf("expected ErrPhotoType, got %v", err)
	}

	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, MaxPhotoBytes)...)
	_, err = f.svc.SetPhoto(ctx, p.ID, PhotoUpload{Filename: "big.png", Body: bytes.NewReader(big)})
	if !errors.Is(err, ErrPhotoTooLarge) {
		t.Fatalf("expected ErrPhotoTooLarge, got %v", err)
	}

	svg := `<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"></svg>`
	if _, err := f.svc.SetPhoto(ctx, p.ID, PhotoUpload{Filename: "logo.svg", Body: strings.NewReader(svg)}); err != nil {
		t.Fatalf("expected svg accepted, got %v", err)
	}
}

func TestPurge_RemovesPhotoOnlyOnSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, "owner-1", CreateInput{Name: "Milo", Species: "dog"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	withPhoto, err := f.svc.SetPhoto(ctx, p.ID, PhotoUpload{Filename: "a.png", Body: bytes.NewReader(pngHeader)})
	if err != nil {
		t.Fatalf("photo: %v", err)
	}

	f.lc.purgeErr = lifecycle.ErrStorageUnavailable
	if _, err := f.svc.Purge(ctx, p.ID); !errors.Is(err, lifecycle.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if len(f.photos.deleted) != 0 {
		t.Fatalf("photo must survive a failed purge")
	}

	f.lc.purgeErr = nil
	if _, err := f.svc.Purge(ctx, p.ID); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if len(f.photos.deleted) != 1 || f.photos.deleted[0] != withPhoto.Photo {
		t.Fatalf("expected photo removed after purge, got %v", f.photos.deleted)
	}
}

func TestListArchivedAndCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, n := range []string{"Milo", "Luna", "Max"} {
		if _, err := f.svc.Create(ctx, "owner-1", CreateInput{Name: n, Species: "dog"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	page, err := f.svc.ListByOwner(ctx, "owner-1", "", 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 3 || page.Items[0].Name != "Luna" {
		t.Fatalf("expected 3 pets ordered by name, got %+v", page)
	}

	// simula archivo directo en repo
	archived := page.Items[0]
	now := time.Now()
	archived.DeletedAt = &now
	f.repo.byID[archived.ID] = archived

	n, err := f.svc.CountByOwner(ctx, "owner-1")
	if err != nil || n != 2 {
		t.Fatalf("expected 2 active pets, got %d err=%v", n, err)
	}
	arch, err := f.svc.ListArchived(ctx, 1)
	if err != nil || arch.Total != 1 {
		t.Fatalf("expected 1 archived pet, got %+v err=%v", arch, err)
	}
	if _, err := f.svc.GetByID(ctx, archived.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("archived pet should not be returned by GetByID, got %v", err)
	}
}

func TestList_HugePageDoesNotOverflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, "owner-1", CreateInput{Name: "Milo", Species: "dog"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	page, err := f.svc.ListByOwner(ctx, "owner-1", "", math.MaxInt)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if f.repo.last.Offset < 0 || f.repo.last.Offset > math.MaxInt32 {
		t.Fatalf("offset out of range: %d", f.repo.last.Offset)
	}
	if len(page.Items) != 0 || page.Total != 1 || page.LastPage != 1 {
		t.Fatalf("expected empty page past the end, got %+v", page)
	}

	page, err = f.svc.ListArchived(ctx, -3)
	if err != nil || page.Page != 1 || f.repo.last.Offset != 0 {
		t.Fatalf("expected page 1 for negative input, got %+v err=%v", page, err)
	}
}
