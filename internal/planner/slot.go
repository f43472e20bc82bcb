package planner

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// PlaceholderPrefix marks a slot that holds a suggested title instead of a recipe.
const PlaceholderPrefix = "KI:"

// SlotKind tells the three slot variants apart.
type SlotKind int

const (
	SlotEmpty SlotKind = iota
	SlotPlaceholder
	SlotRecipe
)

func (k SlotKind) String() string {
	switch k {
	case SlotPlaceholder:
		return "dummy"
	case SlotRecipe:
		return "recipe"
	default:
		return "empty"
	}
}

// Slot is one day's assignment: empty, a placeholder title or a recipe reference.
// It is stored as a plain string: "" for empty, "KI:..." for a placeholder
// and the recipe id otherwise.
type Slot struct {
	kind  SlotKind
	value string
}

// EmptySlot returns an unassigned slot.
func EmptySlot() Slot { return Slot{} }

// RecipeSlot references a stored recipe.
func RecipeSlot(id string) Slot {
	if id == "" {
		return Slot{}
	}
	return Slot{kind: SlotRecipe, value: id}
}

// PlaceholderSlot holds a suggested title. The marker prefix is added when missing.
func PlaceholderSlot(text string) Slot {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, PlaceholderPrefix) {
		text = PlaceholderPrefix + " " + text
	}
	return Slot{kind: SlotPlaceholder, value: text}
}

// ParseSlot decodes the stored string form.
func ParseSlot(raw string) Slot {
	switch {
	case raw == "":
		return Slot{}
	case strings.HasPrefix(raw, PlaceholderPrefix):
		return Slot{kind: SlotPlaceholder, value: raw}
	default:
		return Slot{kind: SlotRecipe, value: raw}
	}
}

func (s Slot) Kind() SlotKind { return s.kind }

// Raw returns the stored string form.
func (s Slot) Raw() string { return s.value }

// RecipeID returns the referenced recipe id for recipe slots.
func (s Slot) RecipeID() (string, bool) {
	if s.kind != SlotRecipe {
		return "", false
	}
	return s.value, true
}

// Text returns the placeholder title for placeholder slots.
func (s Slot) Text() (string, bool) {
	if s.kind != SlotPlaceholder {
		return "", false
	}
	return s.value, true
}

func (s Slot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.value)
}

func (s *Slot) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*s = Slot{}
		return nil
	}
	*s = ParseSlot(*raw)
	return nil
}

// DaysPerWeek is the number of slots in a plan.
const DaysPerWeek = 7

// Days maps day-of-week (1=Mon … 7=Sun) to a slot.
type Days map[int]Slot

// Get returns the slot of day d, empty when unset.
func (d Days) Get(day int) Slot {
	return d[day]
}

// Full returns a copy that has an entry for every day 1..7.
func (d Days) Full() Days {
	out := make(Days, DaysPerWeek)
	for day := 1; day <= DaysPerWeek; day++ {
		out[day] = d[day]
	}
	return out
}

// RecipeIDs returns the distinct recipe ids referenced in d, sorted.
func (d Days) RecipeIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, s := range d {
		if id, ok := s.RecipeID(); ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Raw returns the stored representation {"1": "...", …}.
func (d Days) Raw() map[string]string {
	out := make(map[string]string, len(d))
	for day, s := range d {
		out[strconv.Itoa(day)] = s.Raw()
	}
	return out
}
