package planner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"weekplan/internal/settings"
)

// Status is the outcome of a swap engine operation.
type Status string

const (
	StatusOK      Status = "ok"
	StatusNoPlan  Status = "no_plan"
	StatusNoDraft Status = "no_draft"
)

const (
	HintNoPlan  = "Kein Plan vorhanden. Erst `plan` ausführen."
	HintNoDraft = "Kein Draft vorhanden. Nutze erst `swap ...`."
)

// Result carries the state after an operation. Plan is set after BuildPlan
// and Confirm, Draft after RequestSwap.
type Result struct {
	Status    Status
	Hint      string
	WeekStart string
	Plan      *Plan
	Draft     *Draft
}

// Picker selects recipes for plan slots.
type Picker interface {
	Pick(ctx context.Context, count int, exclude map[string]bool, preferTags []string, preferMax int) (Picks, error)
}

// PreferenceSource returns the tag preferences used when building a week.
type PreferenceSource interface {
	Preferences(ctx context.Context) (settings.Preferences, error)
}

// Engine builds weekly plans and runs the swap / confirm / cancel cycle.
type Engine struct {
	store  Store
	picker Picker
	prefs  PreferenceSource
	logger *zap.Logger
	clock  func() time.Time
}

// NewEngine creates a new Engine instance
func NewEngine(store Store, picker Picker, prefs PreferenceSource, logger *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		picker: picker,
		prefs:  prefs,
		logger: logger,
		clock:  time.Now,
	}
}

// Current returns the stored plan and the latest draft of a week. Either may be nil.
func (e *Engine) Current(ctx context.Context, weekStart string) (*Plan, *Draft, error) {
	plan, err := e.store.GetPlan(ctx, weekStart)
	if err != nil {
		return nil, nil, err
	}
	draft, err := e.store.LatestDraft(ctx, weekStart)
	if err != nil {
		return nil, nil, err
	}
	return plan, draft, nil
}

// BuildPlan fills all seven days, overwriting any stored plan. Open drafts
// and the avoid-set of the week are discarded.
func (e *Engine) BuildPlan(ctx context.Context, weekStart string) (Result, error) {
	prefs, err := e.prefs.Preferences(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load preferences: %w", err)
	}

	picks, err := e.picker.Pick(ctx, DaysPerWeek, nil, prefs.Tags, prefs.PreferMax(DaysPerWeek))
	if err != nil {
		return Result{}, err
	}

	days := make(Days, DaysPerWeek)
	for i, s := range picks.Slots() {
		days[i+1] = s
	}

	plan, err := e.store.UpsertPlan(ctx, weekStart, days)
	if err != nil {
		return Result{}, err
	}
	if err := e.resetSession(ctx, weekStart); err != nil {
		return Result{}, err
	}

	e.logger.Info("weekly plan built",
		zap.String("week_start", weekStart),
		zap.Int("recipes", len(picks.IDs)),
		zap.Int("placeholders", len(picks.Placeholders)),
	)
	return Result{Status: StatusOK, WeekStart: weekStart, Plan: plan}, nil
}

// RequestSwap rerolls the requested days into a new draft. The first swap of
// a session starts from the plan, later swaps from the latest draft. Recipes
// replaced during the session are never offered again until the session ends.
func (e *Engine) RequestSwap(ctx context.Context, weekStart string, days []int, createdBy string) (Result, error) {
	days, err := ValidateDays(days)
	if err != nil {
		return Result{}, err
	}

	plan, err := e.store.GetPlan(ctx, weekStart)
	if err != nil {
		return Result{}, err
	}
	if plan == nil {
		return Result{Status: StatusNoPlan, Hint: HintNoPlan, WeekStart: weekStart}, nil
	}

	draft, err := e.store.LatestDraft(ctx, weekStart)
	if err != nil {
		return Result{}, err
	}

	var (
		base  Days
		avoid []string
	)
	if draft != nil && len(draft.ProposedDays) > 0 {
		base = draft.ProposedDays.Full()
		if avoid, err = e.store.AvoidSet(ctx, weekStart); err != nil {
			return Result{}, err
		}
	} else {
		base = plan.Days.Full()
	}

	for _, d := range days {
		if id, ok := base.Get(d).RecipeID(); ok {
			avoid = append(avoid, id)
		}
	}
	avoid = uniqueSorted(avoid)
	if err := e.store.SetAvoidSet(ctx, weekStart, avoid); err != nil {
		return Result{}, err
	}

	banned := make(map[string]bool)
	for _, id := range base.RecipeIDs() {
		banned[id] = true
	}
	for _, id := range avoid {
		banned[id] = true
	}

	picks, err := e.picker.Pick(ctx, len(days), banned, nil, 0)
	if err != nil {
		return Result{}, err
	}

	proposed := base.Full()
	stamp := e.clock().UTC().Format("150405")
	slots := picks.Slots()
	for i, d := range days {
		s := slots[i]
		if text, ok := s.Text(); ok {
			s = PlaceholderSlot(fmt.Sprintf("%s (%s-%d)", text, stamp, d))
		}
		proposed[d] = s
	}

	next := Draft{
		WeekStart:      weekStart,
		BasePlanID:     plan.ID,
		ProposedDays:   proposed,
		RequestedSwaps: days,
		CreatedBy:      createdBy,
		CreatedAt:      e.clock().UTC(),
	}
	if err := e.store.ReplaceDraft(ctx, next); err != nil {
		return Result{}, err
	}
	stored, err := e.store.LatestDraft(ctx, weekStart)
	if err != nil {
		return Result{}, err
	}

	e.logger.Info("swap draft created",
		zap.String("week_start", weekStart),
		zap.Ints("days", days),
		zap.Int("avoid", len(avoid)),
		zap.Int("placeholders", len(picks.Placeholders)),
	)
	return Result{Status: StatusOK, WeekStart: weekStart, Draft: stored}, nil
}

// Confirm promotes the latest draft to the plan and ends the session.
func (e *Engine) Confirm(ctx context.Context, weekStart string) (Result, error) {
	draft, err := e.store.LatestDraft(ctx, weekStart)
	if err != nil {
		return Result{}, err
	}
	if draft == nil {
		return Result{Status: StatusNoDraft, Hint: HintNoDraft, WeekStart: weekStart}, nil
	}

	plan, err := e.store.UpsertPlan(ctx, weekStart, draft.ProposedDays)
	if err != nil {
		return Result{}, err
	}
	if err := e.resetSession(ctx, weekStart); err != nil {
		return Result{}, err
	}

	e.logger.Info("swap draft confirmed", zap.String("week_start", weekStart), zap.Int64("draft_id", draft.ID))
	return Result{Status: StatusOK, WeekStart: weekStart, Plan: plan}, nil
}

// Cancel discards the drafts of a week and ends the session. The plan is untouched.
func (e *Engine) Cancel(ctx context.Context, weekStart string) (Result, error) {
	draft, err := e.store.LatestDraft(ctx, weekStart)
	if err != nil {
		return Result{}, err
	}
	if draft == nil {
		return Result{Status: StatusNoDraft, Hint: HintNoDraft, WeekStart: weekStart}, nil
	}
	if err := e.resetSession(ctx, weekStart); err != nil {
		return Result{}, err
	}

	e.logger.Info("swap draft cancelled", zap.String("week_start", weekStart))
	return Result{Status: StatusOK, WeekStart: weekStart}, nil
}

func (e *Engine) resetSession(ctx context.Context, weekStart string) error {
	if err := e.store.DeleteDrafts(ctx, weekStart); err != nil {
		return err
	}
	return e.store.SetAvoidSet(ctx, weekStart, nil)
}
