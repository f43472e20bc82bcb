package planner

import (
	"context"
	"fmt"

	"weekplan/internal/recipe"
)

// RecipeSource lists active recipes in random order.
type RecipeSource interface {
	ListActiveRandom(ctx context.Context) ([]recipe.Recipe, error)
}

// Picks is the outcome of a selection: real recipe ids first, then the
// placeholders needed to reach the requested count.
type Picks struct {
	IDs          []string
	Placeholders []Slot
}

// Slots returns the picks in distribution order.
func (p Picks) Slots() []Slot {
	out := make([]Slot, 0, len(p.IDs)+len(p.Placeholders))
	for _, id := range p.IDs {
		out = append(out, RecipeSlot(id))
	}
	return append(out, p.Placeholders...)
}

// Builder selects distinct recipes for plan slots.
type Builder struct {
	source RecipeSource
}

// NewBuilder creates a new Builder instance
func NewBuilder(source RecipeSource) *Builder {
	return &Builder{source: source}
}

// Pick selects up to count distinct active recipes that are not in exclude.
// At most preferMax of them are taken first from recipes carrying one of
// preferTags; the rest come from any remaining recipe. Missing slots are
// padded with numbered placeholders.
func (b *Builder) Pick(ctx context.Context, count int, exclude map[string]bool, preferTags []string, preferMax int) (Picks, error) {
	if count <= 0 {
		return Picks{}, nil
	}

	all, err := b.source.ListActiveRandom(ctx)
	if err != nil {
		return Picks{}, fmt.Errorf("failed to list active recipes: %w", err)
	}

	seen := make(map[string]bool)
	var available []recipe.Recipe
	for _, r := range all {
		if r.ID == "" || exclude[r.ID] || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		available = append(available, r)
	}

	prefer := make(map[string]bool)
	for _, t := range preferTags {
		if t != "" {
			prefer[t] = true
		}
	}

	picked := make(map[string]bool)
	var ids []string
	take := func(id string) {
		picked[id] = true
		ids = append(ids, id)
	}

	if len(prefer) > 0 && preferMax > 0 {
		limit := min(preferMax, count)
		for _, r := range available {
			if len(ids) >= limit {
				break
			}
			if r.HasAnyTag(prefer) {
				take(r.ID)
			}
		}
	}

	for _, r := range available {
		if len(ids) >= count {
			break
		}
		if !picked[r.ID] {
			take(r.ID)
		}
	}

	var placeholders []Slot
	for len(ids)+len(placeholders) < count {
		placeholders = append(placeholders, PlaceholderSlot(fmt.Sprintf("%s Neues Rezept %d", PlaceholderPrefix, len(placeholders)+1)))
	}

	return Picks{IDs: ids, Placeholders: placeholders}, nil
}
