package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"weekplan/internal/appstate"
	"weekplan/internal/config"
	"weekplan/internal/database"
	"weekplan/internal/llm"
	"weekplan/internal/metrics"
	"weekplan/internal/planner"
	"weekplan/internal/recipe"
	"weekplan/internal/settings"
	"weekplan/internal/shopping"
)

// Notifier pushes a message to a chat.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text, parseMode string) error
}

// App holds the application's dependencies.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *database.DB

	state     *appstate.Store
	recipes   *recipe.Repository
	settings  *settings.Service
	engine    *planner.Engine
	presenter *planner.Presenter
	shopping  *shopping.Service
	importer  *recipe.Importer
	metrics   *metrics.Store
	assistant llm.JSONGenerator
	notifier  Notifier

	closers []func() error
	now     func() time.Time
}

// New opens the database, applies migrations when enabled and wires every
// component from cfg.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(logger); err != nil {
			db.Close()
			return nil, err
		}
	}

	assistant, err := llm.New(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create assistant client: %w", err)
	}
	if assistant == nil {
		logger.Info("no assistant configured, shopping lists use the deterministic merge only")
	} else {
		logger.Info("assistant configured",
			zap.String("provider", cfg.AssistantProvider()),
			zap.String("model", cfg.AssistantModel()),
		)
	}

	a := NewWithDB(cfg, logger, db, assistant)
	a.closers = append(a.closers, db.Close)
	if c, ok := assistant.(llm.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}

	if cfg.RedisURL != "" {
		rc, err := recipe.NewRedisCache(ctx, cfg.RedisURL, cfg.ImportPreviewTTL)
		if err != nil {
			logger.Warn("redis unavailable, import previews are cached in app_state", zap.Error(err))
		} else {
			a.importer = recipe.NewImporter(a.recipes, rc, cfg.ImportFetchTimeout, logger)
			a.closers = append(a.closers, rc.Close)
		}
	}
	return a, nil
}

// NewWithDB wires the components on an open database. assistant may be nil.
func NewWithDB(cfg *config.Config, logger *zap.Logger, db *database.DB, assistant llm.JSONGenerator) *App {
	state := appstate.NewStore(db)
	recipes := recipe.NewRepository(db)
	settingsSvc := settings.NewService(state)
	metricsStore := metrics.NewStore(db)

	consolidator := shopping.NewConsolidator(assistant, cfg.ShopAIMaxLines, cfg.AssistantTimeout, logger)

	return &App{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		state:     state,
		recipes:   recipes,
		settings:  settingsSvc,
		engine:    planner.NewEngine(planner.NewRepository(db, state), planner.NewBuilder(recipes), settingsSvc, logger),
		presenter: planner.NewPresenter(recipes),
		shopping:  shopping.NewService(recipes, settingsSvc, consolidator, metricsStore, logger),
		importer:  recipe.NewImporter(recipes, recipe.NewStateCache(state, cfg.ImportPreviewTTL), cfg.ImportFetchTimeout, logger),
		metrics:   metricsStore,
		assistant: assistant,
		now:       time.Now,
	}
}

// SetNotifier registers the chat transport used for push notifications.
func (a *App) SetNotifier(n Notifier) {
	a.notifier = n
}

// Close releases the database, the assistant client and the preview cache.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *App) Config() *config.Config { return a.cfg }
func (a *App) Logger() *zap.Logger { return a.logger }
func (a *App) Recipes() *recipe.Repository { return a.recipes }
func (a *App) Settings() *settings.Service { return a.settings }
func (a *App) Importer() *recipe.Importer { return a.importer }
func (a *App) Metrics() *metrics.Store { return a.metrics }

// WeekStart returns the key of the current week in the configured timezone.
func (a *App) WeekStart() string {
	return planner.WeekKey(planner.WeekStart(a.now(), a.cfg.Location()))
}

// DataDir returns the directory of the SQLite file, or "" for other databases.
func (a *App) DataDir() string {
	if a.db.Dialect != database.SQLite {
		return ""
	}
	path := strings.TrimPrefix(a.cfg.DatabaseURL, "sqlite://")
	if path == ":memory:" {
		return ""
	}
	return filepath.Dir(path)
}
