package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"weekplan/internal/ingredient"
	"weekplan/internal/settings"
)

type pantryPayload struct {
	Items []ingredient.PantryItem `json:"items"`
}

type preferencesPayload struct {
	Tags []string `json:"tags"`
}

func (s *Server) getSettings(c *gin.Context) {
	ctx := c.Request.Context()
	svc := s.app.Settings()

	pantry, err := svc.Pantry(ctx)
	if err != nil {
		s.internalError(c, err)
		return
	}
	prefs, err := svc.Preferences(ctx)
	if err != nil {
		s.internalError(c, err)
		return
	}
	tg, err := svc.Telegram(ctx)
	if err != nil {
		s.internalError(c, err)
		return
	}
	chatID, err := svc.LastChatID(ctx)
	if err != nil {
		s.internalError(c, err)
		return
	}

	var lastChat any
	if chatID != "" {
		lastChat = chatID
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":                    true,
		"pantry":                pantryPayload{Items: pantry},
		"preferences":           prefs,
		"telegram":              tg,
		"telegram_last_chat_id": lastChat,
	})
}

func (s *Server) putPantry(c *gin.Context) {
	var req pantryPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	items, err := s.app.Settings().SetPantry(c.Request.Context(), req.Items)
	if err != nil {
		if errors.Is(err, ingredient.ErrEmptyName) {
			badRequest(c, err)
			return
		}
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "pantry": pantryPayload{Items: items}})
}

func (s *Server) putPreferences(c *gin.Context) {
	var req preferencesPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	prefs, err := s.app.Settings().SetPreferences(c.Request.Context(), req.Tags)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "preferences": prefs})
}

func (s *Server) putTelegram(c *gin.Context) {
	var req settings.Telegram
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tg, err := s.app.Settings().SetTelegram(c.Request.Context(), req)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "telegram": tg})
}

func (s *Server) preferenceOptions(c *gin.Context) {
	tags, err := s.app.Recipes().ActiveTags(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "tags": tags})
}
