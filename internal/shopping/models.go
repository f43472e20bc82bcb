package shopping

import "strings"

// Mode selects how a shopping list is presented.
type Mode string

const (
	ModeConsolidated Mode = "ai_consolidated"
	ModePerRecipe    Mode = "per_recipe"
)

// ParseMode maps user input to a Mode. Anything unknown is consolidated.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "per_recipe", "per-recipe", "pro_rezept", "pro rezept", "rezept":
		return ModePerRecipe
	default:
		return ModeConsolidated
	}
}

// Count is a display name with the number of ingredient lines behind it.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// RecipeItems lists the ingredients of one recipe that must be bought.
type RecipeItems struct {
	Title       string   `json:"title"`
	Ingredients []string `json:"ingredients"`
}

// List represents a shopping list for a week.
type List struct {
	Mode            Mode          `json:"mode"`
	Buy             []Count       `json:"buy"`
	PerRecipe       []RecipeItems `json:"per_recipe,omitempty"`
	PantryUsed      []Count       `json:"pantry_used"`
	PantryUncertain []Count       `json:"pantry_uncertain_used"`
	Message         string        `json:"message"`
	TelegramMessage string        `json:"telegram_message,omitempty"`
	ParseMode       string        `json:"telegram_parse_mode,omitempty"`
	Warning         string        `json:"warning,omitempty"`
	AIApplied       bool          `json:"ai_applied"`
	AIOutcome       Outcome       `json:"ai_outcome"`
}
