package planner

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"weekplan/internal/appstate"
	"weekplan/internal/database"
)

// Plan is the stored plan of one week.
type Plan struct {
	ID        int64
	WeekStart string
	Days      Days
	UpdatedAt time.Time
}

// Draft is an unconfirmed swap preview for a week.
type Draft struct {
	ID             int64
	WeekStart      string
	BasePlanID     int64
	ProposedDays   Days
	RequestedSwaps []int
	CreatedBy      string
	CreatedAt      time.Time
}

// Store is the persistence the swap engine needs.
type Store interface {
	GetPlan(ctx context.Context, weekStart string) (*Plan, error)
	UpsertPlan(ctx context.Context, weekStart string, days Days) (*Plan, error)
	LatestDraft(ctx context.Context, weekStart string) (*Draft, error)
	ReplaceDraft(ctx context.Context, d Draft) error
	DeleteDrafts(ctx context.Context, weekStart string) error
	AvoidSet(ctx context.Context, weekStart string) ([]string, error)
	SetAvoidSet(ctx context.Context, weekStart string, ids []string) error
}

// Repository stores plans and drafts in SQL tables and avoid-sets in app_state.
type Repository struct {
	db    *database.DB
	state *appstate.Store
	now   func() time.Time
}

// NewRepository creates a new Repository.
func NewRepository(d *database.DB, state *appstate.Store) *Repository {
	return &Repository{
		db:    d,
		state: state,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// GetPlan returns the plan of a week, or nil when none exists.
func (r *Repository) GetPlan(ctx context.Context, weekStart string) (*Plan, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(
		`SELECT id, week_start_date, days, updated_at FROM weekly_plans WHERE week_start_date = ?`), weekStart)

	var (
		p   Plan
		raw string
	)
	if err := row.Scan(&p.ID, &p.WeekStart, &raw, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get weekly plan: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &p.Days); err != nil {
		return nil, fmt.Errorf("failed to decode weekly plan days: %w", err)
	}
	return &p, nil
}

// UpsertPlan creates or overwrites the plan of a week.
func (r *Repository) UpsertPlan(ctx context.Context, weekStart string, days Days) (*Plan, error) {
	data, err := json.Marshal(days.Full())
	if err != nil {
		return nil, fmt.Errorf("failed to encode weekly plan days: %w", err)
	}
	_, err = r.db.SQL.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO weekly_plans (week_start_date, days, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (week_start_date) DO UPDATE SET days = excluded.days, updated_at = excluded.updated_at`),
		weekStart, string(data), r.now())
	if err != nil {
		return nil, fmt.Errorf("failed to upsert weekly plan: %w", err)
	}
	return r.GetPlan(ctx, weekStart)
}

// LatestDraft returns the newest draft of a week, or nil when none exists.
func (r *Repository) LatestDraft(ctx context.Context, weekStart string) (*Draft, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id, week_start_date, base_plan_id, proposed_days, requested_swaps, created_by, created_at
		FROM weekly_plan_drafts WHERE week_start_date = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`), weekStart)

	var (
		d           Draft
		days, swaps string
	)
	if err := row.Scan(&d.ID, &d.WeekStart, &d.BasePlanID, &days, &swaps, &d.CreatedBy, &d.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	if err := json.Unmarshal([]byte(days), &d.ProposedDays); err != nil {
		return nil, fmt.Errorf("failed to decode draft days: %w", err)
	}
	if err := json.Unmarshal([]byte(swaps), &d.RequestedSwaps); err != nil {
		return nil, fmt.Errorf("failed to decode requested swaps: %w", err)
	}
	return &d, nil
}

// ReplaceDraft deletes every draft of the week and inserts d in one transaction.
func (r *Repository) ReplaceDraft(ctx context.Context, d Draft) error {
	days, err := json.Marshal(d.ProposedDays.Full())
	if err != nil {
		return fmt.Errorf("failed to encode draft days: %w", err)
	}
	swaps, err := json.Marshal(d.RequestedSwaps)
	if err != nil {
		return fmt.Errorf("failed to encode requested swaps: %w", err)
	}
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM weekly_plan_drafts WHERE week_start_date = ?`), d.WeekStart); err != nil {
		return fmt.Errorf("failed to delete previous drafts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO weekly_plan_drafts (week_start_date, base_plan_id, proposed_days, requested_swaps, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		d.WeekStart, d.BasePlanID, string(days), string(swaps), d.CreatedBy, createdAt); err != nil {
		return fmt.Errorf("failed to insert draft: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit draft: %w", err)
	}
	return nil
}

// DeleteDrafts removes every draft of a week.
func (r *Repository) DeleteDrafts(ctx context.Context, weekStart string) error {
	if _, err := r.db.SQL.ExecContext(ctx, r.db.Rebind(`DELETE FROM weekly_plan_drafts WHERE week_start_date = ?`), weekStart); err != nil {
		return fmt.Errorf("failed to delete drafts: %w", err)
	}
	return nil
}

// AvoidSet returns the ids excluded from rerolls in the current drafting session.
// An unreadable value counts as empty.
func (r *Repository) AvoidSet(ctx context.Context, weekStart string) ([]string, error) {
	var ids []string
	if _, err := r.state.GetJSON(ctx, appstate.AvoidKey(weekStart), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// SetAvoidSet stores ids sorted and without duplicates. A nil slice stores "[]".
func (r *Repository) SetAvoidSet(ctx context.Context, weekStart string, ids []string) error {
	return r.state.SetJSON(ctx, appstate.AvoidKey(weekStart), uniqueSorted(ids))
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := []string{}
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
