package recipe

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a recipe id does not exist.
	ErrNotFound = errors.New("recipe not found")
	// ErrInvalid wraps validation failures of recipe input.
	ErrInvalid = errors.New("invalid recipe")
)

// DefaultCreatedBy is recorded on recipes created without an explicit author.
const DefaultCreatedBy = "household"

// MaxTags is the number of tags an imported recipe may carry.
const MaxTags = 3

// Recipe is a stored meal the planner can pick.
type Recipe struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	SourceURL   *string   `json:"source_url"`
	Notes       string    `json:"notes"`
	Tags        []string  `json:"tags"`
	Ingredients []string  `json:"ingredients"`
	TimeMinutes *int      `json:"time_minutes"`
	Difficulty  *int      `json:"difficulty"`
	IsActive    bool      `json:"is_active"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasAnyTag reports whether the recipe carries at least one of tags.
func (r Recipe) HasAnyTag(tags map[string]bool) bool {
	for _, t := range r.Tags {
		if tags[t] {
			return true
		}
	}
	return false
}

// Input is the writable part of a recipe.
type Input struct {
	Title       string   `json:"title"`
	SourceURL   *string  `json:"source_url"`
	Notes       string   `json:"notes"`
	Tags        []string `json:"tags"`
	Ingredients []string `json:"ingredients"`
	TimeMinutes *int     `json:"time_minutes"`
	Difficulty  *int     `json:"difficulty"`
	CreatedBy   string   `json:"created_by"`
}

// Patch carries a partial update; nil fields are left unchanged.
type Patch struct {
	Title       *string   `json:"title"`
	SourceURL   *string   `json:"source_url"`
	Notes       *string   `json:"notes"`
	Tags        *[]string `json:"tags"`
	Ingredients *[]string `json:"ingredients"`
	TimeMinutes *int      `json:"time_minutes"`
	Difficulty  *int      `json:"difficulty"`
	IsActive    *bool     `json:"is_active"`
}

// Apply merges p into r and validates the result.
func (p Patch) Apply(r *Recipe) error {
	if p.Title != nil {
		r.Title = strings.TrimSpace(*p.Title)
	}
	if p.SourceURL != nil {
		r.SourceURL = cleanURL(p.SourceURL)
	}
	if p.Notes != nil {
		r.Notes = strings.TrimSpace(*p.Notes)
	}
	if p.Tags != nil {
		r.Tags = CleanList(*p.Tags)
	}
	if p.Ingredients != nil {
		r.Ingredients = CleanList(*p.Ingredients)
	}
	if p.TimeMinutes != nil {
		r.TimeMinutes = p.TimeMinutes
	}
	if p.Difficulty != nil {
		r.Difficulty = p.Difficulty
	}
	if p.IsActive != nil {
		r.IsActive = *p.IsActive
	}
	return validate(r.Title, r.TimeMinutes, r.Difficulty)
}

func (in Input) normalized() (Input, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.SourceURL = cleanURL(in.SourceURL)
	in.Notes = strings.TrimSpace(in.Notes)
	in.Tags = CleanList(in.Tags)
	in.Ingredients = CleanList(in.Ingredients)
	in.CreatedBy = strings.TrimSpace(in.CreatedBy)
	if in.CreatedBy == "" {
		in.CreatedBy = DefaultCreatedBy
	}
	return in, validate(in.Title, in.TimeMinutes, in.Difficulty)
}

func validate(title string, minutes, difficulty *int) error {
	if title == "" {
		return fmt.Errorf("%w: title must not be empty", ErrInvalid)
	}
	if minutes != nil && *minutes < 0 {
		return fmt.Errorf("%w: time_minutes must not be negative", ErrInvalid)
	}
	if difficulty != nil && (*difficulty < 1 || *difficulty > 3) {
		return fmt.Errorf("%w: difficulty must be 1..3", ErrInvalid)
	}
	return nil
}

// CleanList trims entries, drops blanks and removes duplicates keeping the first occurrence.
func CleanList(items []string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

// LimitTags cleans tags and keeps at most MaxTags. The second result is a
// user-facing warning when tags were dropped.
func LimitTags(tags []string) ([]string, string) {
	cleaned := CleanList(tags)
	if len(cleaned) > MaxTags {
		return cleaned[:MaxTags], "Maximal 3 Tags erlaubt; weitere Tags wurden entfernt."
	}
	return cleaned, ""
}

func cleanURL(u *string) *string {
	if u == nil {
		return nil
	}
	s := strings.TrimSpace(*u)
	if s == "" {
		return nil
	}
	return &s
}

// DuplicateError reports that a recipe with the same source URL already exists.
type DuplicateError struct {
	ExistingID string
}

func (e *DuplicateError) Error() string {
	return "Dieses Rezept wurde bereits importiert."
}
