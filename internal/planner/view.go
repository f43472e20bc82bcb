package planner

import (
	"context"
	"fmt"
	"strings"

	"weekplan/internal/recipe"
)

const (
	planHeader  = "🗓️ Wochenplan (Mo–So):"
	planFooter  = "Befehle: swap 2 5 7  | swap di fr so | confirm | cancel | list"
	draftPrefix = "🔁 Vorschau (noch NICHT übernommen). Nutze `confirm` oder `cancel`.\n\n"
	emptyTitle  = "—"

	ConfirmedPrefix = "✅ Übernommen.\n\n"
	CancelledChat   = "🗑️ Draft verworfen."
	CancelledAPI    = "Draft verworfen."
)

// TitleLookup resolves recipe ids to stored recipes.
type TitleLookup interface {
	Get(ctx context.Context, id string) (*recipe.Recipe, error)
}

// DayEntry is the display form of one slot.
type DayEntry struct {
	Day      int    `json:"day"`
	Label    string `json:"label"`
	Kind     string `json:"kind"`
	RecipeID string `json:"recipe_id,omitempty"`
	Title    string `json:"title"`
}

// Presenter turns plans and drafts into day entries and chat text.
type Presenter struct {
	recipes TitleLookup
}

// NewPresenter creates a new Presenter instance
func NewPresenter(recipes TitleLookup) *Presenter {
	return &Presenter{recipes: recipes}
}

// Entries returns one entry per day 1..7. A recipe that no longer exists
// is shown by its id.
func (p *Presenter) Entries(ctx context.Context, days Days) ([]DayEntry, error) {
	titles := make(map[string]string)
	for _, id := range days.RecipeIDs() {
		r, err := p.recipes.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve recipe %s: %w", id, err)
		}
		if r != nil {
			titles[id] = r.Title
		}
	}

	entries := make([]DayEntry, 0, DaysPerWeek)
	for day := 1; day <= DaysPerWeek; day++ {
		s := days.Get(day)
		e := DayEntry{Day: day, Label: DayLabels[day], Kind: s.Kind().String()}
		switch s.Kind() {
		case SlotRecipe:
			e.RecipeID = s.Raw()
			e.Title = s.Raw()
			if t, ok := titles[s.Raw()]; ok {
				e.Title = t
			}
		case SlotPlaceholder:
			e.Title = s.Raw()
		default:
			e.Title = emptyTitle
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// FormatPlan renders the week for chat.
func FormatPlan(entries []DayEntry) string {
	var b strings.Builder
	b.WriteString(planHeader)
	b.WriteString("\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%s: %s\n", e.Label, e.Title)
	}
	b.WriteString("\n")
	b.WriteString(planFooter)
	return b.String()
}

// FormatDraft renders a swap preview for chat.
func FormatDraft(entries []DayEntry) string {
	return draftPrefix + FormatPlan(entries)
}
