package shopping

import (
	"fmt"
	"html"
	"strings"
)

const (
	emptyListText     = "🧺 Einkaufsliste ist leer (oder alle Zutaten sind Pantry)."
	aggregatedHeader  = "🧺 Einkaufsliste (aggregiert):"
	consolidatedTitle = "🧺 Einkaufsliste:"
	perRecipeHeader   = "🧾 Einkaufsliste (Pro Rezept)"
	perRecipeEmpty    = "Keine Zutaten (oder alle Zutaten sind Pantry)."
	pantryOnlyLine    = "- (nur Pantry)"
)

func countLine(c Count) string {
	if c.Count > 1 {
		return fmt.Sprintf("- %s  x%d", c.Name, c.Count)
	}
	return "- " + c.Name
}

func writePantry(lines []string, used, uncertain []Count) []string {
	if len(used) > 0 {
		lines = append(lines, "", "Pantry verwendet:")
		for _, c := range used {
			lines = append(lines, countLine(c))
		}
	}
	if len(uncertain) > 0 {
		lines = append(lines, "", "Pantry unsicher:")
		for _, c := range uncertain {
			lines = append(lines, countLine(c))
		}
	}
	return lines
}

// FormatAggregated renders the counted buy list with pantry sections.
func FormatAggregated(a Aggregate) string {
	var lines []string
	if len(a.Buy) == 0 {
		lines = append(lines, emptyListText)
	} else {
		lines = append(lines, aggregatedHeader)
		for _, c := range a.Buy {
			lines = append(lines, countLine(c))
		}
	}
	return strings.Join(writePantry(lines, a.PantryUsed, a.PantryUncertain), "\n")
}

// FormatConsolidated renders merged buy lines with pantry sections and an
// optional trailing note.
func FormatConsolidated(buy []string, used, uncertain []Count, note string) string {
	var lines []string
	if len(buy) == 0 {
		lines = append(lines, emptyListText)
	} else {
		lines = append(lines, consolidatedTitle)
		for _, l := range buy {
			lines = append(lines, "- "+l)
		}
	}
	lines = writePantry(lines, used, uncertain)
	if note != "" {
		lines = append(lines, "", note)
	}
	return strings.Join(lines, "\n")
}

// FormatPerRecipe renders the per-recipe breakdown. The first result uses
// **bold** markup, the second is Telegram HTML without pantry sections.
func FormatPerRecipe(items []RecipeItems, used, uncertain []Count) (string, string) {
	plain := []string{perRecipeHeader}
	tg := []string{perRecipeHeader}

	if len(items) == 0 {
		plain = append(plain, perRecipeEmpty)
		tg = append(tg, perRecipeEmpty)
	}
	for _, r := range items {
		plain = append(plain, "**"+r.Title+"**")
		tg = append(tg, "<b>"+html.EscapeString(r.Title)+"</b>")
		if len(r.Ingredients) == 0 {
			plain = append(plain, pantryOnlyLine)
			tg = append(tg, pantryOnlyLine)
		}
		for _, ing := range r.Ingredients {
			plain = append(plain, "- "+ing)
			tg = append(tg, "- "+html.EscapeString(ing))
		}
		plain = append(plain, "")
		tg = append(tg, "")
	}

	plain = writePantry(plain, used, uncertain)
	return strings.Join(plain, "\n"), strings.TrimSpace(strings.Join(tg, "\n"))
}
