package recipe

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"weekplan/internal/database"

	"github.com/google/uuid"
)

const recipeColumns = `id, title, source_url, notes, tags, ingredients, time_minutes, difficulty, is_active, created_by, created_at`

// Repository is a database-backed repository for recipes.
type Repository struct {
	db  *database.DB
	now func() time.Time
}

// NewRepository creates a new Repository.
func NewRepository(d *database.DB) *Repository {
	return &Repository{
		db:  d,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new active recipe. A non-empty source URL that is already
// stored yields a *DuplicateError.
func (r *Repository) Create(ctx context.Context, in Input) (*Recipe, error) {
	in, err := in.normalized()
	if err != nil {
		return nil, err
	}

	if in.SourceURL != nil {
		existing, err := r.FindBySourceURL(ctx, *in.SourceURL)
		if err != nil {
			return nil, err
		}
		if existing != "" {
			return nil, &DuplicateError{ExistingID: existing}
		}
	}

	rec := &Recipe{
		ID:          uuid.NewString(),
		Title:       in.Title,
		SourceURL:   in.SourceURL,
		Notes:       in.Notes,
		Tags:        in.Tags,
		Ingredients: in.Ingredients,
		TimeMinutes: in.TimeMinutes,
		Difficulty:  in.Difficulty,
		IsActive:    true,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   r.now(),
	}

	tags, ings, err := encodeLists(rec)
	if err != nil {
		return nil, err
	}

	_, err = r.db.SQL.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO recipes (`+recipeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.Title, nullString(rec.SourceURL), rec.Notes, tags, ings,
		nullInt(rec.TimeMinutes), nullInt(rec.Difficulty), rec.IsActive, rec.CreatedBy, rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert recipe: %w", err)
	}
	return rec, nil
}

// Get retrieves a recipe by its ID, active or not. It returns nil, nil when
// the recipe does not exist.
func (r *Repository) Get(ctx context.Context, id string) (*Recipe, error) {
	row := r.db.SQL.QueryRowContext(ctx,
		r.db.Rebind(`SELECT `+recipeColumns+` FROM recipes WHERE id = ?`), id)
	rec, err := scanRecipe(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recipe by ID: %w", err)
	}
	return rec, nil
}

// ListRecent returns active recipes, newest first, optionally filtered by a
// case-insensitive title substring.
func (r *Repository) ListRecent(ctx context.Context, limit int, query string) ([]Recipe, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + recipeColumns + ` FROM recipes WHERE is_active = ?`
	args := []any{true}
	if query = strings.TrimSpace(query); query != "" {
		q += ` AND LOWER(title) LIKE ?`
		args = append(args, "%"+strings.ToLower(query)+"%")
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	return r.query(ctx, q, args...)
}

// ListActiveRandom returns every active recipe in random order.
func (r *Repository) ListActiveRandom(ctx context.Context) ([]Recipe, error) {
	return r.query(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE is_active = ? ORDER BY RANDOM()`, true)
}

// ActiveTags returns the distinct tags of active recipes sorted case-insensitively.
func (r *Repository) ActiveTags(ctx context.Context) ([]string, error) {
	recipes, err := r.query(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE is_active = ?`, true)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	tags := []string{}
	for _, rec := range recipes {
		for _, t := range rec.Tags {
			if t != "" && !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	sort.SliceStable(tags, func(i, j int) bool {
		return strings.ToLower(tags[i]) < strings.ToLower(tags[j])
	})
	return tags, nil
}

// FindBySourceURL returns the id of a recipe imported from sourceURL, or "".
func (r *Repository) FindBySourceURL(ctx context.Context, sourceURL string) (string, error) {
	var id string
	err := r.db.SQL.QueryRowContext(ctx,
		r.db.Rebind(`SELECT id FROM recipes WHERE source_url = ? LIMIT 1`), sourceURL).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to look up recipe by source url: %w", err)
	}
	return id, nil
}

// Update applies a partial update. It returns ErrNotFound for an unknown id.
func (r *Repository) Update(ctx context.Context, id string, p Patch) (*Recipe, error) {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if err := p.Apply(rec); err != nil {
		return nil, err
	}

	tags, ings, err := encodeLists(rec)
	if err != nil {
		return nil, err
	}
	_, err = r.db.SQL.ExecContext(ctx, r.db.Rebind(`
		UPDATE recipes SET title = ?, source_url = ?, notes = ?, tags = ?, ingredients = ?,
			time_minutes = ?, difficulty = ?, is_active = ?
		WHERE id = ?`),
		rec.Title, nullString(rec.SourceURL), rec.Notes, tags, ings,
		nullInt(rec.TimeMinutes), nullInt(rec.Difficulty), rec.IsActive, rec.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update recipe: %w", err)
	}
	return rec, nil
}

// Archive deactivates a recipe so the planner no longer picks it.
func (r *Repository) Archive(ctx context.Context, id string) error {
	res, err := r.db.SQL.ExecContext(ctx, r.db.Rebind(`UPDATE recipes SET is_active = ? WHERE id = ?`), false, id)
	if err != nil {
		return fmt.Errorf("failed to archive recipe: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a recipe permanently.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.SQL.ExecContext(ctx, r.db.Rebind(`DELETE FROM recipes WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	return requireAffected(res)
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]Recipe, error) {
	rows, err := r.db.SQL.QueryContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipes: %w", err)
	}
	defer rows.Close()

	var out []Recipe
	for rows.Next() {
		rec, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recipes: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecipe(s scanner) (*Recipe, error) {
	var (
		rec        Recipe
		sourceURL  sql.NullString
		tags, ings string
		minutes    sql.NullInt64
		difficulty sql.NullInt64
	)
	if err := s.Scan(&rec.ID, &rec.Title, &sourceURL, &rec.Notes, &tags, &ings,
		&minutes, &difficulty, &rec.IsActive, &rec.CreatedBy, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if sourceURL.Valid {
		rec.SourceURL = &sourceURL.String
	}
	if minutes.Valid {
		v := int(minutes.Int64)
		rec.TimeMinutes = &v
	}
	if difficulty.Valid {
		v := int(difficulty.Int64)
		rec.Difficulty = &v
	}
	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags of recipe %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(ings), &rec.Ingredients); err != nil {
		return nil, fmt.Errorf("failed to decode ingredients of recipe %s: %w", rec.ID, err)
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	if rec.Ingredients == nil {
		rec.Ingredients = []string{}
	}
	return &rec, nil
}

func encodeLists(rec *Recipe) (string, string, error) {
	tags, err := json.Marshal(nonNil(rec.Tags))
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal tags: %w", err)
	}
	ings, err := json.Marshal(nonNil(rec.Ingredients))
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal ingredients: %w", err)
	}
	return string(tags), string(ings), nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
