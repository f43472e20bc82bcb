package shopping

import (
	"context"

	"go.uber.org/zap"

	"weekplan/internal/ingredient"
	"weekplan/internal/planner"
	"weekplan/internal/shared"
)

// PantrySource returns the configured pantry.
type PantrySource interface {
	Pantry(ctx context.Context) ([]ingredient.PantryItem, error)
}

// MetricsRecorder stores assistant execution metadata.
type MetricsRecorder interface {
	RecordMeta(ctx context.Context, meta shared.AgentMeta) error
}

// Service turns the days of a plan into a shopping list.
type Service struct {
	aggregator   *Aggregator
	consolidator *Consolidator
	pantry       PantrySource
	metrics      MetricsRecorder
	logger       *zap.Logger
}

// NewService creates a new Service. metrics may be nil.
func NewService(recipes RecipeLookup, pantry PantrySource, consolidator *Consolidator, metrics MetricsRecorder, logger *zap.Logger) *Service {
	return &Service{
		aggregator:   NewAggregator(recipes),
		consolidator: consolidator,
		pantry:       pantry,
		metrics:      metrics,
		logger:       logger,
	}
}

// Build produces the shopping list of days in the given mode.
func (s *Service) Build(ctx context.Context, mode Mode, days planner.Days) (List, error) {
	items, err := s.pantry.Pantry(ctx)
	if err != nil {
		return List{}, err
	}
	m := ingredient.NewMatcher(items)

	if mode == ModePerRecipe {
		return s.perRecipe(ctx, days, m)
	}
	return s.consolidated(ctx, days, m)
}

func (s *Service) perRecipe(ctx context.Context, days planner.Days, m *ingredient.Matcher) (List, error) {
	items, agg, err := s.aggregator.PerRecipe(ctx, days, m)
	if err != nil {
		return List{}, err
	}
	if items == nil {
		items = []RecipeItems{}
	}
	plain, tg := FormatPerRecipe(items, agg.PantryUsed, agg.PantryUncertain)
	return List{
		Mode:            ModePerRecipe,
		Buy:             []Count{},
		PerRecipe:       items,
		PantryUsed:      nonNil(agg.PantryUsed),
		PantryUncertain: nonNil(agg.PantryUncertain),
		Message:         plain,
		TelegramMessage: tg,
		ParseMode:       "HTML",
		AIOutcome:       OutcomeSkipped,
	}, nil
}

func (s *Service) consolidated(ctx context.Context, days planner.Days, m *ingredient.Matcher) (List, error) {
	agg, err := s.aggregator.Aggregate(ctx, days, m)
	if err != nil {
		return List{}, err
	}

	list := List{
		Mode:            ModeConsolidated,
		PantryUsed:      nonNil(agg.PantryUsed),
		PantryUncertain: nonNil(agg.PantryUncertain),
		AIOutcome:       OutcomeSkipped,
	}
	if len(agg.BuyLines) == 0 {
		list.Buy = []Count{}
		list.Message = FormatAggregated(agg)
		list.TelegramMessage = list.Message
		return list, nil
	}

	merged := Premerge(agg.BuyLines)
	texts := make([]string, len(merged))
	for i, ml := range merged {
		texts[i] = ml.Text
	}

	res := s.consolidator.Group(ctx, texts)
	list.AIOutcome = res.Outcome
	s.record(ctx, res)

	var lines []string
	if res.Outcome == OutcomeAccepted {
		list.AIApplied = true
		lines = res.Consolidation.Lines
		for i, line := range lines {
			n := 0
			for _, idx := range res.Consolidation.Sources[i] {
				n += sourceCount(merged[idx])
			}
			list.Buy = append(list.Buy, Count{Name: line, Count: n})
		}
	} else {
		list.Warning = WarningUnavailable
		lines = texts
		for _, ml := range merged {
			list.Buy = append(list.Buy, Count{Name: ml.Text, Count: sourceCount(ml)})
		}
		s.logger.Info("shopping list uses deterministic merge",
			zap.String("outcome", string(res.Outcome)),
			zap.String("reason", res.Reason),
		)
	}

	list.Message = FormatConsolidated(lines, list.PantryUsed, list.PantryUncertain, list.Warning)
	list.TelegramMessage = list.Message
	return list, nil
}

func (s *Service) record(ctx context.Context, res AssistantResult) {
	if s.metrics == nil || res.Meta.AgentName == "" {
		return
	}
	if err := s.metrics.RecordMeta(ctx, res.Meta); err != nil {
		s.logger.Warn("failed to record assistant metrics", zap.Error(err))
	}
}

func sourceCount(ml MergedLine) int {
	if len(ml.SourceIndexes) == 0 {
		return 1
	}
	return len(ml.SourceIndexes)
}

func nonNil(c []Count) []Count {
	if c == nil {
		return []Count{}
	}
	return c
}
