package shopping

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"weekplan/internal/ingredient"
	"weekplan/internal/planner"
	"weekplan/internal/recipe"
)

// RecipeLookup fetches a recipe by id; a missing recipe is (nil, nil).
type RecipeLookup interface {
	Get(ctx context.Context, id string) (*recipe.Recipe, error)
}

// Aggregate is the pantry-filtered ingredient view of a week.
type Aggregate struct {
	Buy             []Count
	BuyLines        []string
	PantryUsed      []Count
	PantryUncertain []Count
}

// Aggregator walks the recipes of a week and sorts their ingredients
// into buy and pantry buckets.
type Aggregator struct {
	recipes RecipeLookup
}

// NewAggregator creates a new Aggregator instance
func NewAggregator(recipes RecipeLookup) *Aggregator {
	return &Aggregator{recipes: recipes}
}

type counter struct {
	order   []string
	counts  map[string]int
	display map[string]string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int), display: make(map[string]string)}
}

func (c *counter) add(key, display string) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
		c.display[key] = display
	}
	c.counts[key]++
}

func (c *counter) list() []Count {
	out := make([]Count, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, Count{Name: c.display[k], Count: c.counts[k]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

type pantryCounts struct {
	used      *counter
	uncertain *counter
}

// classify returns true when line must be bought; pantry hits are counted.
func (p pantryCounts) classify(m *ingredient.Matcher, key string) bool {
	class, entry := m.Classify(key)
	switch class {
	case ingredient.PantryUsed:
		p.used.add(entry.Name, entry.Name)
	case ingredient.PantryUncertain:
		p.uncertain.add(entry.Name, entry.Name)
	default:
		return true
	}
	return false
}

// eachRecipe calls fn for the recipe of every day 1..7 in order. Empty and
// placeholder slots and recipes that no longer exist are skipped.
func (a *Aggregator) eachRecipe(ctx context.Context, days planner.Days, fn func(r *recipe.Recipe)) error {
	for day := 1; day <= planner.DaysPerWeek; day++ {
		id, ok := days.Get(day).RecipeID()
		if !ok {
			continue
		}
		r, err := a.recipes.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load recipe %s: %w", id, err)
		}
		if r == nil {
			continue
		}
		fn(r)
	}
	return nil
}

// Aggregate counts every ingredient line of the week per bucket. The buy
// bucket keeps the first display form seen per key; BuyLines keeps every
// buy line in order, duplicates included.
func (a *Aggregator) Aggregate(ctx context.Context, days planner.Days, m *ingredient.Matcher) (Aggregate, error) {
	buy := newCounter()
	pantry := pantryCounts{used: newCounter(), uncertain: newCounter()}
	var lines []string

	err := a.eachRecipe(ctx, days, func(r *recipe.Recipe) {
		for _, raw := range r.Ingredients {
			key := ingredient.Normalize(raw)
			if key == "" {
				continue
			}
			if !pantry.classify(m, key) {
				continue
			}
			display := ingredient.CleanDisplay(raw)
			lines = append(lines, display)
			buy.add(key, display)
		}
	})
	if err != nil {
		return Aggregate{}, err
	}

	return Aggregate{
		Buy:             buy.list(),
		BuyLines:        lines,
		PantryUsed:      pantry.used.list(),
		PantryUncertain: pantry.uncertain.list(),
	}, nil
}

// PerRecipe lists each recipe's buy ingredients under its title.
func (a *Aggregator) PerRecipe(ctx context.Context, days planner.Days, m *ingredient.Matcher) ([]RecipeItems, Aggregate, error) {
	pantry := pantryCounts{used: newCounter(), uncertain: newCounter()}
	var items []RecipeItems

	err := a.eachRecipe(ctx, days, func(r *recipe.Recipe) {
		ri := RecipeItems{Title: r.Title, Ingredients: []string{}}
		for _, raw := range r.Ingredients {
			key := ingredient.Normalize(raw)
			if key == "" || !pantry.classify(m, key) {
				continue
			}
			ri.Ingredients = append(ri.Ingredients, ingredient.CleanDisplay(raw))
		}
		items = append(items, ri)
	})
	if err != nil {
		return nil, Aggregate{}, err
	}

	return items, Aggregate{
		PantryUsed:      pantry.used.list(),
		PantryUncertain: pantry.uncertain.list(),
	}, nil
}
