package memory

import (
	"context"
	"testing"
	"time"

	"pet-clinical-history/internal/domain/owners"
	"pet-clinical-history/internal/domain/pets"
	"pet-clinical-history/internal/domain/records"
	"pet-clinical-history/internal/domain/users"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPetRepo_ListOrderingAndPaging(t *testing.T) {
	db := NewDB()
	repo := NewPetRepo(db)
	ctx := context.Background()

	now := time.Now()
	for i, name := range []string{"milo", "Luna", "Max", "bella"} {
		require.NoError(t, repo.Create(ctx, pets.Pet{ID: name, OwnerID: "o1", Name: name, CreatedAt: now.Add(time.Duration(i) * time.Second)}))
	}

	items, total, err := repo.List(ctx, pets.ListFilter{OwnerID: "o1", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, items, 2)
	assert.Equal(t, "bella", items[0].Name)
	assert.Equal(t, "Luna", items[1].Name)

	items, _, err = repo.List(ctx, pets.ListFilter{Name: "MA"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Max", items[0].Name)

	items, _, err = repo.List(ctx, pets.ListFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPetRepo_ArchivedNewestFirst(t *testing.T) {
	db := NewDB()
	repo := NewPetRepo(db)
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		at := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, pets.Pet{ID: id, Name: id, DeletedAt: &at}))
	}
	require.NoError(t, repo.Create(ctx, pets.Pet{ID: "active", Name: "active"}))

	items, total, err := repo.List(ctx, pets.ListFilter{Archived: true})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"c", "b", "a"}, []string{items[0].ID, items[1].ID, items[2].ID})
}

func TestRecordRepo_FiltersAndSoftDelete(t *testing.T) {
	db := NewDB()
	repo := NewRecordRepo(db)
	ctx := context.Background()
	require.NoError(t, NewPetRepo(db).Create(ctx, pets.Pet{ID: "p1", Name: "Kira"}))

	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }
	for i, d := range []int{1, 5, 10} {
		require.NoError(t, repo.Create(ctx, records.Record{
			ID: string(rune('a' + i)), Kind: records.KindDiagnosis, ParentID: "p1", Date: day(d),
		}))
	}

	from, to := day(2), day(10)
	out, err := repo.ListByParent(ctx, records.KindDiagnosis, "p1", records.ListFilter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "c", out[0].ID, "newest first")

	require.NoError(t, repo.SoftDelete(ctx, records.KindDiagnosis, "c", time.Now()))
	assert.ErrorIs(t, repo.SoftDelete(ctx, records.KindDiagnosis, "c", time.Now()), records.ErrNotFound)

	out, err = repo.ListByParent(ctx, records.KindDiagnosis, "p1", records.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	out, err = repo.ListByParent(ctx, records.KindDiagnosis, "p1", records.ListFilter{IncludeArchived: true, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, out, 1)

	_, err = repo.GetByID(ctx, records.KindMedication, "a")
	assert.ErrorIs(t, err, records.ErrNotFound, "ids are scoped by kind")
}

func TestOwnerRepo_SortedByLastname(t *testing.T) {
	db := NewDB()
	repo := NewOwnerRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, owners.Owner{ID: "1", Firstname: "Ana", Lastname: "Santos"}))
	require.NoError(t, repo.Create(ctx, owners.Owner{ID: "2", Firstname: "Ben", Lastname: "Cruz", UserID: "u2"}))

	items, total, err := repo.List(ctx, owners.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "Cruz", items[0].Lastname)

	o, err := repo.GetByUserID(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "2", o.ID)

	_, err = repo.GetByUserID(ctx, "")
	assert.ErrorIs(t, err, owners.ErrNotFound)
}

func TestUserRepo_EmailUnique(t *testing.T) {
	db := NewDB()
	repo := NewUserRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, users.User{ID: "1", Email: "ana@example.com"}))
	assert.ErrorIs(t, repo.Create(ctx, users.User{ID: "2", Email: "ANA@example.com"}), users.ErrEmailTaken)

	u, err := repo.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "1", u.ID)

	require.NoError(t, repo.Delete(ctx, "1"))
	_, err = repo.GetByID(ctx, "1")
	assert.ErrorIs(t, err, users.ErrNotFound)
}
