package planner

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"weekplan/internal/recipe"
	"weekplan/internal/settings"
)

const testWeek = "2024-06-03"

type fakeSource struct {
	recipes []recipe.Recipe
	rng     *rand.Rand
}

func (f *fakeSource) ListActiveRandom(ctx context.Context) ([]recipe.Recipe, error) {
	out := append([]recipe.Recipe(nil), f.recipes...)
	if f.rng != nil {
		f.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	return out, nil
}

func makeRecipes(n int) []recipe.Recipe {
	out := make([]recipe.Recipe, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, recipe.Recipe{ID: fmt.Sprintf("r%02d", i), Title: fmt.Sprintf("Rezept %d", i), IsActive: true})
	}
	return out
}

type fakePrefs struct {
	tags []string
}

func (f fakePrefs) Preferences(ctx context.Context) (settings.Preferences, error) {
	return settings.Preferences{Tags: f.tags}, nil
}

type memoryStore struct {
	plans  map[string]*Plan
	drafts map[string][]Draft
	avoid  map[string][]string
	nextID int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		plans:  make(map[string]*Plan),
		drafts: make(map[string][]Draft),
		avoid:  make(map[string][]string),
	}
}

func (m *memoryStore) GetPlan(ctx context.Context, weekStart string) (*Plan, error) {
	p, ok := m.plans[weekStart]
	if !ok {
		return nil, nil
	}
	cp := *p
	cp.Days = p.Days.Full()
	return &cp, nil
}

func (m *memoryStore) UpsertPlan(ctx context.Context, weekStart string, days Days) (*Plan, error) {
	p, ok := m.plans[weekStart]
	if !ok {
		m.nextID++
		p = &Plan{ID: m.nextID, WeekStart: weekStart}
		m.plans[weekStart] = p
	}
	p.Days = days.Full()
	p.UpdatedAt = time.Now()
	return m.GetPlan(ctx, weekStart)
}

func (m *memoryStore) LatestDraft(ctx context.Context, weekStart string) (*Draft, error) {
	list := m.drafts[weekStart]
	if len(list) == 0 {
		return nil, nil
	}
	d := list[len(list)-1]
	d.ProposedDays = d.ProposedDays.Full()
	return &d, nil
}

func (m *memoryStore) ReplaceDraft(ctx context.Context, d Draft) error {
	m.nextID++
	d.ID = m.nextID
	d.ProposedDays = d.ProposedDays.Full()
	m.drafts[d.WeekStart] = []Draft{d}
	return nil
}

func (m *memoryStore) DeleteDrafts(ctx context.Context, weekStart string) error {
	delete(m.drafts, weekStart)
	return nil
}

func (m *memoryStore) AvoidSet(ctx context.Context, weekStart string) ([]string, error) {
	return m.avoid[weekStart], nil
}

func (m *memoryStore) SetAvoidSet(ctx context.Context, weekStart string, ids []string) error {
	m.avoid[weekStart] = uniqueSorted(ids)
	return nil
}

func newTestEngine(store Store, source RecipeSource, tags ...string) *Engine {
	e := NewEngine(store, NewBuilder(source), fakePrefs{tags: tags}, zap.NewNop())
	e.clock = func() time.Time { return time.Date(2024, 6, 5, 14, 30, 15, 0, time.UTC) }
	return e
}

func TestBuilderPick(t *testing.T) {
	ctx := context.Background()

	t.Run("DistinctRecipes", func(t *testing.T) {
		b := NewBuilder(&fakeSource{recipes: append(makeRecipes(10), recipe.Recipe{ID: "r01"})})
		picks, err := b.Pick(ctx, 7, nil, nil, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"r01", "r02", "r03", "r04", "r05", "r06", "r07"}, picks.IDs)
		assert.Empty(t, picks.Placeholders)
	})

	t.Run("PadsWithPlaceholders", func(t *testing.T) {
		b := NewBuilder(&fakeSource{recipes: makeRecipes(3)})
		picks, err := b.Pick(ctx, 7, nil, nil, 0)
		require.NoError(t, err)
		assert.Len(t, picks.IDs, 3)
		require.Len(t, picks.Placeholders, 4)
		assert.Equal(t, "KI: Neues Rezept 1", picks.Placeholders[0].Raw())
		assert.Equal(t, "KI: Neues Rezept 4", picks.Placeholders[3].Raw())

		slots := picks.Slots()
		require.Len(t, slots, 7)
		assert.Equal(t, SlotRecipe, slots[0].Kind())
		assert.Equal(t, SlotPlaceholder, slots[6].Kind())
	})

	t.Run("Excludes", func(t *testing.T) {
		b := NewBuilder(&fakeSource{recipes: makeRecipes(4)})
		picks, err := b.Pick(ctx, 2, map[string]bool{"r01": true, "r03": true}, nil, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"r02", "r04"}, picks.IDs)
	})

	t.Run("PreferredQuota", func(t *testing.T) {
		recipes := makeRecipes(10)
		for _, i := range []int{6, 7, 8, 9} {
			recipes[i].Tags = []string{"vegan"}
		}
		b := NewBuilder(&fakeSource{recipes: recipes})

		picks, err := b.Pick(ctx, 7, nil, []string{"vegan"}, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"r07", "r08", "r09", "r01", "r02", "r03", "r04"}, picks.IDs)

		picks, err = b.Pick(ctx, 7, nil, []string{"vegan"}, 0)
		require.NoError(t, err)
		assert.Equal(t, "r01", picks.IDs[0])
	})

	t.Run("ZeroCount", func(t *testing.T) {
		b := NewBuilder(&fakeSource{recipes: makeRecipes(3)})
		picks, err := b.Pick(ctx, 0, nil, nil, 0)
		require.NoError(t, err)
		assert.Empty(t, picks.Slots())
	})
}

func TestBuildPlan(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	recipes := makeRecipes(10)
	recipes[9].Tags = []string{"schnell"}
	e := newTestEngine(store, &fakeSource{recipes: recipes}, "schnell")

	res, err := e.BuildPlan(ctx, testWeek)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	require.NotNil(t, res.Plan)
	assert.Equal(t, "r10", res.Plan.Days.Get(1).Raw())
	assert.Len(t, res.Plan.Days.RecipeIDs(), 7)

	// A rebuild ends any drafting session.
	_, err = e.RequestSwap(ctx, testWeek, []int{1}, "test")
	require.NoError(t, err)
	_, err = e.BuildPlan(ctx, testWeek)
	require.NoError(t, err)
	draft, err := store.LatestDraft(ctx, testWeek)
	require.NoError(t, err)
	assert.Nil(t, draft)
	assert.Empty(t, store.avoid[testWeek])
}

func TestRequestSwapNoPlan(t *testing.T) {
	e := newTestEngine(newMemoryStore(), &fakeSource{recipes: makeRecipes(10)})
	res, err := e.RequestSwap(context.Background(), testWeek, []int{2}, "test")
	require.NoError(t, err)
	assert.Equal(t, StatusNoPlan, res.Status)
	assert.Equal(t, HintNoPlan, res.Hint)
	assert.Nil(t, res.Draft)
}

func TestRequestSwapValidation(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	e := newTestEngine(store, &fakeSource{recipes: makeRecipes(10)})
	_, err := e.BuildPlan(ctx, testWeek)
	require.NoError(t, err)

	tests := []struct {
		name string
		days []int
		want error
	}{
		{"Empty", nil, ErrInvalidDays},
		{"TooLow", []int{0}, ErrInvalidDays},
		{"TooHigh", []int{2, 8}, ErrInvalidDays},
		{"Duplicate", []int{3, 3}, ErrDuplicateDays},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.RequestSwap(ctx, testWeek, tt.days, "test")
			assert.ErrorIs(t, err, tt.want)

			draft, _ := store.LatestDraft(ctx, testWeek)
			assert.Nil(t, draft)
			assert.Empty(t, store.avoid[testWeek])
		})
	}
}

func TestSwapAndConfirm(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	e := newTestEngine(store, &fakeSource{recipes: makeRecipes(10)})

	built, err := e.BuildPlan(ctx, testWeek)
	require.NoError(t, err)
	base := built.Plan.Days

	res, err := e.RequestSwap(ctx, testWeek, []int{5, 2}, "test")
	require.NoError(t, err)
	require.Equal(t, StatusOK, res.Status)
	require.NotNil(t, res.Draft)

	draft := res.Draft
	assert.Equal(t, []int{2, 5}, draft.RequestedSwaps)
	assert.Equal(t, built.Plan.ID, draft.BasePlanID)
	for day := 1; day <= DaysPerWeek; day++ {
		if day == 2 || day == 5 {
			assert.NotEqual(t, base.Get(day), draft.ProposedDays.Get(day), "day %d", day)
			assert.Equal(t, SlotRecipe, draft.ProposedDays.Get(day).Kind())
			continue
		}
		assert.Equal(t, base.Get(day), draft.ProposedDays.Get(day), "day %d", day)
	}
	assert.Equal(t, []string{"r02", "r05"}, store.avoid[testWeek])

	plan, err := store.GetPlan(ctx, testWeek)
	require.NoError(t, err)
	assert.Equal(t, base, plan.Days, "plan is untouched until confirm")

	confirmed, err := e.Confirm(ctx, testWeek)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, confirmed.Status)
	assert.Equal(t, draft.ProposedDays, confirmed.Plan.Days)

	d, err := store.LatestDraft(ctx, testWeek)
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.NotNil(t, store.avoid[testWeek])
	assert.Empty(t, store.avoid[testWeek])
}

func TestSwapTwiceAvoidsPreviousPicks(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	e := newTestEngine(store, &fakeSource{recipes: makeRecipes(12)})

	built, err := e.BuildPlan(ctx, testWeek)
	require.NoError(t, err)
	original := built.Plan.Days.Get(3).Raw()

	first, err := e.RequestSwap(ctx, testWeek, []int{3}, "test")
	require.NoError(t, err)
	firstPick := first.Draft.ProposedDays.Get(3).Raw()
	assert.NotEqual(t, original, firstPick)

	second, err := e.RequestSwap(ctx, testWeek, []int{3}, "test")
	require.NoError(t, err)
	secondPick := second.Draft.ProposedDays.Get(3).Raw()
	assert.NotEqual(t, original, secondPick)
	assert.NotEqual(t, firstPick, secondPick)
	assert.ElementsMatch(t, []string{original, firstPick}, store.avoid[testWeek])

	for day := 1; day <= DaysPerWeek; day++ {
		if day != 3 {
			assert.Equal(t, built.Plan.Days.Get(day), second.Draft.ProposedDays.Get(day))
		}
	}
}

func TestSwapPlaceholderWhenExhausted(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	e := newTestEngine(store, &fakeSource{recipes: makeRecipes(8)})

	_, err := e.BuildPlan(ctx, testWeek)
	require.NoError(t, err)

	res, err := e.RequestSwap(ctx, testWeek, []int{1, 2}, "test")
	require.NoError(t, err)
	days := res.Draft.ProposedDays
	assert.Equal(t, "r08", days.Get(1).Raw())
	assert.Equal(t, SlotPlaceholder, days.Get(2).Kind())
	assert.Equal(t, "KI: Neues Rezept 1 (143015-2)", days.Get(2).Raw())

	// A placeholder day holds no recipe, so nothing new is avoided.
	res, err = e.RequestSwap(ctx, testWeek, []int{2}, "test")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"r01", "r02"}, store.avoid[testWeek])
	assert.Equal(t, SlotPlaceholder, res.Draft.ProposedDays.Get(2).Kind())
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	e := newTestEngine(store, &fakeSource{recipes: makeRecipes(10)})

	res, err := e.Cancel(ctx, testWeek)
	require.NoError(t, err)
	assert.Equal(t, StatusNoDraft, res.Status)
	assert.Equal(t, HintNoDraft, res.Hint)

	res, err = e.Confirm(ctx, testWeek)
	require.NoError(t, err)
	assert.Equal(t, StatusNoDraft, res.Status)

	built, err := e.BuildPlan(ctx, testWeek)
	require.NoError(t, err)
	_, err = e.RequestSwap(ctx, testWeek, []int{4}, "test")
	require.NoError(t, err)

	res, err = e.Cancel(ctx, testWeek)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)

	plan, draft, err := e.Current(ctx, testWeek)
	require.NoError(t, err)
	assert.Nil(t, draft)
	assert.Equal(t, built.Plan.Days, plan.Days)
	assert.Empty(t, store.avoid[testWeek])

	res, err = e.Cancel(ctx, testWeek)
	require.NoError(t, err)
	assert.Equal(t, StatusNoDraft, res.Status)
}

func TestSwapConservation(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	store := newMemoryStore()
	e := newTestEngine(store, &fakeSource{recipes: makeRecipes(20), rng: rng})

	_, err := e.BuildPlan(ctx, testWeek)
	require.NoError(t, err)

	for round := 0; round < 30; round++ {
		plan, draft, err := e.Current(ctx, testWeek)
		require.NoError(t, err)
		base := plan.Days
		if draft != nil {
			base = draft.ProposedDays
		}

		days := rng.Perm(DaysPerWeek)[:1+rng.Intn(3)]
		for i := range days {
			days[i]++
		}
		requested := map[int]bool{}
		for _, d := range days {
			requested[d] = true
		}

		res, err := e.RequestSwap(ctx, testWeek, days, "test")
		require.NoError(t, err)
		proposed := res.Draft.ProposedDays
		require.Len(t, proposed, DaysPerWeek)

		seen := map[string]bool{}
		for day := 1; day <= DaysPerWeek; day++ {
			s := proposed.Get(day)
			if id, ok := s.RecipeID(); ok {
				assert.False(t, seen[id], "round %d: %s twice", round, id)
				seen[id] = true
			}
			if !requested[day] {
				assert.Equal(t, base.Get(day), s, "round %d day %d", round, day)
			} else if id, ok := base.Get(day).RecipeID(); ok {
				assert.NotEqual(t, id, s.Raw(), "round %d day %d", round, day)
			}
		}

		if round%7 == 6 {
			_, err := e.Confirm(ctx, testWeek)
			require.NoError(t, err)
		}
	}
}
