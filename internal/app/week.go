package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"weekplan/internal/appstate"
	"weekplan/internal/planner"
	"weekplan/internal/settings"
	"weekplan/internal/shopping"
)

const (
	WarningNoChat     = "Send any message to the bot once to register the chat."
	WarningNoBot      = "Telegram bot is not configured."
	heartbeatMaxAge   = 8 * 24 * time.Hour
	schedulerDisabled = "no heartbeat recorded"
)

// PlanView is a plan with its day entries and chat text.
type PlanView struct {
	Days    []planner.DayEntry `json:"days"`
	RawDays map[string]string  `json:"raw_days"`
	Message string             `json:"message"`
}

// DraftView is a swap preview with its day entries and chat text.
type DraftView struct {
	RequestedSwaps  []int              `json:"requested_swaps"`
	ProposedDays    []planner.DayEntry `json:"proposed_days"`
	RawProposedDays map[string]string  `json:"raw_proposed_days"`
	Message         string             `json:"message"`
}

// WeekView is the state of the current week after an operation.
type WeekView struct {
	OK        bool           `json:"ok"`
	Status    planner.Status `json:"status"`
	WeekStart string         `json:"week_start"`
	HasPlan   bool           `json:"has_plan"`
	HasDraft  bool           `json:"has_draft"`
	Plan      *PlanView      `json:"plan"`
	Draft     *DraftView     `json:"draft"`
	Message   string         `json:"message"`
	Warning   string         `json:"warning,omitempty"`
}

// ShopView is a shopping list of the current week.
type ShopView struct {
	shopping.List

	OK            bool             `json:"ok"`
	Status        planner.Status   `json:"status"`
	WeekStart     string           `json:"week_start"`
	Items         []shopping.Count `json:"items"`
	NotifyWarning string           `json:"notify_warning,omitempty"`
}

func (a *App) planView(ctx context.Context, days planner.Days) (*PlanView, error) {
	entries, err := a.presenter.Entries(ctx, days)
	if err != nil {
		return nil, err
	}
	return &PlanView{Days: entries, RawDays: days.Full().Raw(), Message: planner.FormatPlan(entries)}, nil
}

func (a *App) draftView(ctx context.Context, d *planner.Draft) (*DraftView, error) {
	entries, err := a.presenter.Entries(ctx, d.ProposedDays)
	if err != nil {
		return nil, err
	}
	return &DraftView{
		RequestedSwaps:  d.RequestedSwaps,
		ProposedDays:    entries,
		RawProposedDays: d.ProposedDays.Full().Raw(),
		Message:         planner.FormatDraft(entries),
	}, nil
}

// Current returns the plan and the open draft of the current week.
func (a *App) Current(ctx context.Context) (WeekView, error) {
	week := a.WeekStart()
	plan, draft, err := a.engine.Current(ctx, week)
	if err != nil {
		return WeekView{}, err
	}
	return a.weekView(ctx, week, plan, draft)
}

func (a *App) weekView(ctx context.Context, week string, plan *planner.Plan, draft *planner.Draft) (WeekView, error) {
	v := WeekView{OK: true, Status: planner.StatusOK, WeekStart: week}
	if draft != nil {
		dv, err := a.draftView(ctx, draft)
		if err != nil {
			return WeekView{}, err
		}
		v.Draft, v.HasDraft = dv, true
	}
	if plan == nil {
		v.OK, v.Status, v.Message = false, planner.StatusNoPlan, planner.HintNoPlan
		return v, nil
	}
	pv, err := a.planView(ctx, plan.Days)
	if err != nil {
		return WeekView{}, err
	}
	v.Plan, v.HasPlan, v.Message = pv, true, pv.Message
	return v, nil
}

// BuildPlan creates a new plan for the current week. With notify set and
// auto_send_plan enabled the plan text is pushed to the last chat.
func (a *App) BuildPlan(ctx context.Context, notify bool) (WeekView, error) {
	week := a.WeekStart()
	res, err := a.engine.BuildPlan(ctx, week)
	if err != nil {
		return WeekView{}, err
	}
	v, err := a.weekView(ctx, week, res.Plan, nil)
	if err != nil {
		return WeekView{}, err
	}
	if notify {
		v.Warning = a.notify(ctx, func(t settings.Telegram) bool { return t.AutoSendPlan }, v.Message, "")
	}
	return v, nil
}

// Swap creates a swap preview for days of the current week.
func (a *App) Swap(ctx context.Context, days []int, createdBy string) (WeekView, error) {
	week := a.WeekStart()
	res, err := a.engine.RequestSwap(ctx, week, days, createdBy)
	if err != nil {
		return WeekView{}, err
	}
	if res.Status != planner.StatusOK {
		return WeekView{Status: res.Status, WeekStart: week, Message: res.Hint}, nil
	}

	dv, err := a.draftView(ctx, res.Draft)
	if err != nil {
		return WeekView{}, err
	}
	return WeekView{
		OK:        true,
		Status:    planner.StatusOK,
		WeekStart: week,
		HasPlan:   true,
		HasDraft:  true,
		Draft:     dv,
		Message:   dv.Message,
	}, nil
}

// Confirm promotes the open draft of the current week.
func (a *App) Confirm(ctx context.Context) (WeekView, error) {
	week := a.WeekStart()
	res, err := a.engine.Confirm(ctx, week)
	if err != nil {
		return WeekView{}, err
	}
	if res.Status != planner.StatusOK {
		return WeekView{Status: res.Status, WeekStart: week, Message: res.Hint}, nil
	}
	v, err := a.weekView(ctx, week, res.Plan, nil)
	if err != nil {
		return WeekView{}, err
	}
	v.Message = planner.ConfirmedPrefix + v.Message
	return v, nil
}

// Cancel discards the open draft of the current week.
func (a *App) Cancel(ctx context.Context) (WeekView, error) {
	week := a.WeekStart()
	res, err := a.engine.Cancel(ctx, week)
	if err != nil {
		return WeekView{}, err
	}
	if res.Status != planner.StatusOK {
		return WeekView{Status: res.Status, WeekStart: week, Message: res.Hint}, nil
	}
	return WeekView{OK: true, Status: planner.StatusOK, WeekStart: week, Message: planner.CancelledAPI}, nil
}

// Shop builds the shopping list of the current plan. With notify set and
// auto_send_shop enabled the list is pushed to the last chat.
func (a *App) Shop(ctx context.Context, mode shopping.Mode, notify bool) (ShopView, error) {
	week := a.WeekStart()
	plan, _, err := a.engine.Current(ctx, week)
	if err != nil {
		return ShopView{}, err
	}
	if plan == nil {
		return ShopView{
			Status:    planner.StatusNoPlan,
			WeekStart: week,
			List:      shopping.List{Mode: mode, Buy: []shopping.Count{}, Message: planner.HintNoPlan},
			Items:     []shopping.Count{},
		}, nil
	}

	list, err := a.shopping.Build(ctx, mode, plan.Days)
	if err != nil {
		return ShopView{}, err
	}
	v := ShopView{OK: true, Status: planner.StatusOK, WeekStart: week, List: list, Items: list.Buy}
	if notify {
		v.NotifyWarning = a.notify(ctx, func(t settings.Telegram) bool { return t.AutoSendShop }, list.TelegramMessage, list.ParseMode)
	}
	return v, nil
}

// notify pushes text to the last known chat when enabled says so. It returns
// a user-facing warning when the message could not be delivered.
func (a *App) notify(ctx context.Context, enabled func(settings.Telegram) bool, text, parseMode string) string {
	tg, err := a.settings.Telegram(ctx)
	if err != nil {
		a.logger.Warn("failed to read telegram settings", zap.Error(err))
		return ""
	}
	if !enabled(tg) {
		return ""
	}

	raw, err := a.settings.LastChatID(ctx)
	if err != nil {
		a.logger.Warn("failed to read last chat id", zap.Error(err))
		return WarningNoChat
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if raw == "" || err != nil {
		return WarningNoChat
	}
	if a.notifier == nil {
		return WarningNoBot
	}
	if err := a.notifier.Send(ctx, chatID, text, parseMode); err != nil {
		a.logger.Warn("telegram notification failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return fmt.Sprintf("Telegram send failed: %v", err)
	}
	return ""
}

// Heartbeat records that the scheduler ran.
func (a *App) Heartbeat(ctx context.Context) error {
	return a.state.Set(ctx, appstate.KeySchedulerRun, a.now().UTC().Format(time.RFC3339))
}

// JobsStatus reports whether the scheduler heartbeat is recent.
type JobsStatus struct {
	OK       bool   `json:"ok"`
	LastRun  string `json:"last_run,omitempty"`
	AgeHours int    `json:"age_hours,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Jobs returns the scheduler status. The heartbeat counts as recent when it
// is at most eight days old.
func (a *App) Jobs(ctx context.Context) (JobsStatus, error) {
	e, err := a.state.Get(ctx, appstate.KeySchedulerRun)
	if err != nil {
		return JobsStatus{}, err
	}
	if e == nil {
		return JobsStatus{Error: schedulerDisabled}, nil
	}

	last, err := time.Parse(time.RFC3339, e.Value)
	if err != nil {
		last = e.UpdatedAt
	}
	age := a.now().Sub(last)
	return JobsStatus{
		OK:       age <= heartbeatMaxAge,
		LastRun:  last.UTC().Format(time.RFC3339),
		AgeHours: int(age.Hours()),
	}, nil
}

// AssistantStatus describes the configured assistant without calling it.
type AssistantStatus struct {
	OK       bool   `json:"ok"`
	Status   string `json:"status"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// AssistantStatus reports whether stage B of the shopping list can run.
func (a *App) AssistantStatus() AssistantStatus {
	if a.assistant == nil {
		return AssistantStatus{Status: "disabled"}
	}
	return AssistantStatus{
		OK:       true,
		Status:   "configured",
		Provider: a.cfg.AssistantProvider(),
		Model:    a.cfg.AssistantModel(),
	}
}
