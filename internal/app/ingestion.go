package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"weekplan/internal/recipe"
)

// RecentLimit is the number of recipes the chat "list" command shows.
const RecentLimit = 10

// AddRecipe parses a chat "add" command and stores the recipe.
func (a *App) AddRecipe(ctx context.Context, text, createdBy string) (*recipe.Recipe, error) {
	in, err := recipe.ParseAdd(text)
	if err != nil {
		return nil, err
	}
	in.CreatedBy = createdBy

	rec, err := a.recipes.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	a.logger.Info("recipe added",
		zap.String("id", rec.ID),
		zap.String("title", rec.Title),
		zap.String("created_by", rec.CreatedBy),
	)
	return rec, nil
}

// FormatRecent renders the latest recipes as a numbered chat list.
func FormatRecent(recipes []recipe.Recipe) string {
	if len(recipes) == 0 {
		return "Noch keine Rezepte gespeichert. " + recipe.AddUsage
	}

	lines := []string{"📚 Letzte Rezepte:"}
	for i, r := range recipes {
		var meta []string
		if r.TimeMinutes != nil && *r.TimeMinutes > 0 {
			meta = append(meta, fmt.Sprintf("%dmin", *r.TimeMinutes))
		}
		if r.Difficulty != nil && *r.Difficulty > 0 {
			meta = append(meta, fmt.Sprintf("diff %d", *r.Difficulty))
		}
		if len(r.Tags) > 0 {
			meta = append(meta, strings.Join(r.Tags, ","))
		}
		line := fmt.Sprintf("%d) %s", i+1, r.Title)
		if len(meta) > 0 {
			line += " (" + strings.Join(meta, " · ") + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
