package settings

import (
	"context"
	"fmt"

	"weekplan/internal/appstate"
	"weekplan/internal/ingredient"
	"weekplan/internal/recipe"
)

// PreferredShare is the fraction of a week that may be filled from
// preferred tags whenever at least one tag is configured.
const PreferredShare = 0.5

// Preferences holds the tags the planner favours.
type Preferences struct {
	Tags []string `json:"tags"`
}

// PreferMax returns how many of count slots may be filled preferentially.
func (p Preferences) PreferMax(count int) int {
	if len(p.Tags) == 0 {
		return 0
	}
	return int(float64(count) * PreferredShare)
}

// Telegram holds the push notification switches.
type Telegram struct {
	AutoSendPlan bool `json:"auto_send_plan"`
	AutoSendShop bool `json:"auto_send_shop"`
}

type pantryDoc struct {
	Items []ingredient.PantryItem `json:"items"`
}

// Service reads and writes user settings stored in app_state.
type Service struct {
	state *appstate.Store
}

// NewService creates a new Service instance
func NewService(state *appstate.Store) *Service {
	return &Service{state: state}
}

// Pantry returns the stored pantry, or the default pantry when nothing
// usable is stored. Items without a name are skipped.
func (s *Service) Pantry(ctx context.Context) ([]ingredient.PantryItem, error) {
	var doc pantryDoc
	ok, err := s.state.GetJSON(ctx, appstate.KeyPantry, &doc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return ingredient.DefaultPantry(), nil
	}

	var items []ingredient.PantryItem
	for _, item := range doc.Items {
		cleaned, err := ingredient.CleanPantry([]ingredient.PantryItem{item})
		if err != nil {
			continue
		}
		items = append(items, cleaned...)
	}
	if len(items) == 0 {
		return ingredient.DefaultPantry(), nil
	}
	return items, nil
}

// SetPantry validates and stores the pantry. It returns the cleaned list.
func (s *Service) SetPantry(ctx context.Context, items []ingredient.PantryItem) ([]ingredient.PantryItem, error) {
	cleaned, err := ingredient.CleanPantry(items)
	if err != nil {
		return nil, err
	}
	if err := s.state.SetJSON(ctx, appstate.KeyPantry, pantryDoc{Items: cleaned}); err != nil {
		return nil, fmt.Errorf("failed to save pantry: %w", err)
	}
	return cleaned, nil
}

// Preferences returns the stored preferences with cleaned tags.
func (s *Service) Preferences(ctx context.Context) (Preferences, error) {
	var p Preferences
	if _, err := s.state.GetJSON(ctx, appstate.KeyPreferences, &p); err != nil {
		return Preferences{}, err
	}
	p.Tags = recipe.CleanList(p.Tags)
	return p, nil
}

// SetPreferences stores the tag preferences.
func (s *Service) SetPreferences(ctx context.Context, tags []string) (Preferences, error) {
	p := Preferences{Tags: recipe.CleanList(tags)}
	if err := s.state.SetJSON(ctx, appstate.KeyPreferences, p); err != nil {
		return Preferences{}, fmt.Errorf("failed to save preferences: %w", err)
	}
	return p, nil
}

// Telegram returns the notification switches, both off by default.
func (s *Service) Telegram(ctx context.Context) (Telegram, error) {
	var t Telegram
	if _, err := s.state.GetJSON(ctx, appstate.KeyTelegram, &t); err != nil {
		return Telegram{}, err
	}
	return t, nil
}

// SetTelegram stores the notification switches.
func (s *Service) SetTelegram(ctx context.Context, t Telegram) (Telegram, error) {
	if err := s.state.SetJSON(ctx, appstate.KeyTelegram, t); err != nil {
		return Telegram{}, fmt.Errorf("failed to save telegram settings: %w", err)
	}
	return t, nil
}

// LastChatID returns the chat id of the last bot message, or "" when none was seen.
func (s *Service) LastChatID(ctx context.Context) (string, error) {
	e, err := s.state.Get(ctx, appstate.KeyLastChatID)
	if err != nil || e == nil {
		return "", err
	}
	return e.Value, nil
}

// SetLastChatID records the chat the bot last heard from.
func (s *Service) SetLastChatID(ctx context.Context, chatID int64) error {
	return s.state.Set(ctx, appstate.KeyLastChatID, fmt.Sprintf("%d", chatID))
}
