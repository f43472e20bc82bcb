package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"weekplan/internal/app"
	"weekplan/internal/metrics"
	"weekplan/internal/telegram"
)

const (
	requestTimeout = 90 * time.Second
	maxBodySize    = 1 << 20
)

// Server serves the web UI API and the Telegram webhook.
type Server struct {
	app    *app.App
	bot    *telegram.Bot
	logger *zap.Logger
}

// NewRouter builds the gin engine. bot may be nil when no bot token is
// configured; the webhook then answers 503.
func NewRouter(a *app.App, bot *telegram.Bot, logger *zap.Logger) *gin.Engine {
	s := &Server{app: a, bot: bot, logger: logger}
	cfg := a.Config()

	router := gin.New()
	router.Use(Recovery(logger))
	router.Use(requestid.New())
	router.Use(Logger(logger))
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	router.Use(BodySizeLimit(maxBodySize))
	router.Use(Timeout(requestTimeout))

	router.GET("/api/health", s.health)
	router.POST("/bot/telegram/webhook", s.telegramWebhook)

	api := router.Group("/api", Auth([]byte(cfg.JWTSecret)))
	api.GET("/ai/status", s.assistantStatus)
	api.GET("/jobs/status", s.jobsStatus)

	weekly := api.Group("/weekly")
	weekly.GET("/current", s.weeklyCurrent)
	weekly.POST("/plan", s.weeklyPlan)
	weekly.POST("/swap", s.weeklySwap)
	weekly.POST("/confirm", s.weeklyConfirm)
	weekly.POST("/cancel", s.weeklyCancel)
	weekly.GET("/shop", s.weeklyShop)

	settings := api.Group("/settings")
	settings.GET("", s.getSettings)
	settings.PUT("/pantry", s.putPantry)
	settings.PUT("/preferences", s.putPreferences)
	settings.PUT("/telegram", s.putTelegram)
	settings.GET("/preferences/options", s.preferenceOptions)

	recipes := api.Group("/recipes")
	recipes.GET("", s.listRecipes)
	recipes.POST("", s.createRecipe)
	recipes.POST("/import/preview", s.importPreview)
	recipes.GET("/:id", s.getRecipe)
	recipes.PATCH("/:id", s.updateRecipe)
	recipes.DELETE("/:id", s.deleteRecipe)
	recipes.POST("/:id/archive", s.archiveRecipe)

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// internalError logs err and answers 500 without leaking details.
func (s *Server) internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal server error"})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"git_sha": s.app.Config().GitSHA,
		"system":  metrics.GetSysHealth(s.app.DataDir()),
	})
}

func (s *Server) assistantStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.app.AssistantStatus())
}

func (s *Server) jobsStatus(c *gin.Context) {
	status, err := s.app.Jobs(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) telegramWebhook(c *gin.Context) {
	if s.bot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "telegram bot not configured"})
		return
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.bot.HandleUpdate(c.Request.Context(), update); err != nil {
		if errors.Is(err, telegram.ErrNotAllowed) {
			c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": "Not allowed"})
			return
		}
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
