package recipe

import (
	"context"
	"errors"
	"testing"
	"time"

	"weekplan/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db)
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	repo.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
	return repo
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestRepository(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	carbonara, err := repo.Create(ctx, Input{
		Title:       "  Spaghetti Carbonara ",
		Tags:        []string{"pasta", " italien", "pasta", ""},
		Ingredients: []string{"200 g Spaghetti", "2 Eier"},
		TimeMinutes: intPtr(15),
		Difficulty:  intPtr(1),
		SourceURL:   strPtr("https://example.com/carbonara"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, carbonara.ID)
	assert.Equal(t, "Spaghetti Carbonara", carbonara.Title)
	assert.Equal(t, []string{"pasta", "italien"}, carbonara.Tags)
	assert.Equal(t, DefaultCreatedBy, carbonara.CreatedBy)

	curry, err := repo.Create(ctx, Input{Title: "Linsencurry", Tags: []string{"vegan"}})
	require.NoError(t, err)

	t.Run("Get", func(t *testing.T) {
		got, err := repo.Get(ctx, carbonara.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, carbonara.Title, got.Title)
		assert.Equal(t, []string{"200 g Spaghetti", "2 Eier"}, got.Ingredients)
		assert.Equal(t, 15, *got.TimeMinutes)
		assert.Equal(t, "https://example.com/carbonara", *got.SourceURL)
		assert.True(t, got.IsActive)

		missing, err := repo.Get(ctx, "does-not-exist")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("DuplicateSourceURL", func(t *testing.T) {
		_, err := repo.Create(ctx, Input{Title: "Again", SourceURL: strPtr("https://example.com/carbonara")})
		var dup *DuplicateError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, carbonara.ID, dup.ExistingID)
	})

	t.Run("Validation", func(t *testing.T) {
		_, err := repo.Create(ctx, Input{Title: " "})
		assert.ErrorIs(t, err, ErrInvalid)
		_, err = repo.Create(ctx, Input{Title: "X", Difficulty: intPtr(4)})
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("ListRecent", func(t *testing.T) {
		list, err := repo.ListRecent(ctx, 10, "")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, curry.ID, list[0].ID)

		list, err = repo.ListRecent(ctx, 10, "CARBO")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, carbonara.ID, list[0].ID)
	})

	t.Run("ActiveTags", func(t *testing.T) {
		tags, err := repo.ActiveTags(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"italien", "pasta", "vegan"}, tags)
	})

	t.Run("Update", func(t *testing.T) {
		title := "Linsencurry mit Reis"
		got, err := repo.Update(ctx, curry.ID, Patch{Title: &title, Difficulty: intPtr(2)})
		require.NoError(t, err)
		assert.Equal(t, title, got.Title)
		assert.Equal(t, 2, *got.Difficulty)

		_, err = repo.Update(ctx, "nope", Patch{Title: &title})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ArchiveHidesFromRandomList", func(t *testing.T) {
		require.NoError(t, repo.Archive(ctx, curry.ID))

		list, err := repo.ListActiveRandom(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, carbonara.ID, list[0].ID)

		archived, err := repo.Get(ctx, curry.ID)
		require.NoError(t, err)
		assert.False(t, archived.IsActive)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, curry.ID))
		assert.ErrorIs(t, repo.Delete(ctx, curry.ID), ErrNotFound)
	})
}

func TestParseAdd(t *testing.T) {
	t.Run("AllFields", func(t *testing.T) {
		in, err := ParseAdd("add Shakshuka | tags=eier, vegetarisch | ings=Eier, Tomaten (Dose), Paprika | time=25 | diff=2 | notes=scharf mögen | https://example.com/s")
		require.NoError(t, err)
		assert.Equal(t, "Shakshuka", in.Title)
		assert.Equal(t, []string{"eier", "vegetarisch"}, in.Tags)
		assert.Equal(t, []string{"Eier", "Tomaten (Dose)", "Paprika"}, in.Ingredients)
		assert.Equal(t, 25, *in.TimeMinutes)
		assert.Equal(t, 2, *in.Difficulty)
		assert.Equal(t, "scharf mögen", in.Notes)
		assert.Equal(t, "https://example.com/s", *in.SourceURL)
	})

	t.Run("TitleOnly", func(t *testing.T) {
		in, err := ParseAdd("ADD  Pfannkuchen ")
		require.NoError(t, err)
		assert.Equal(t, "Pfannkuchen", in.Title)
		assert.Nil(t, in.SourceURL)
	})

	t.Run("MissingTitle", func(t *testing.T) {
		_, err := ParseAdd("add time=10")
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("BadNumber", func(t *testing.T) {
		_, err := ParseAdd("add Suppe | time=lang")
		assert.ErrorIs(t, err, ErrInvalid)
	})
}

func TestLimitTags(t *testing.T) {
	tags, warning := LimitTags([]string{"a", "b", "a", "c", "d"})
	assert.Equal(t, []string{"a", "b", "c"}, tags)
	assert.NotEmpty(t, warning)

	tags, warning = LimitTags([]string{"a"})
	assert.Equal(t, []string{"a"}, tags)
	assert.Empty(t, warning)
}
