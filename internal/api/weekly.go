package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"weekplan/internal/app"
	"weekplan/internal/planner"
	"weekplan/internal/shopping"
)

type swapRequest struct {
	Days []int `json:"days"`
}

func notifyRequested(c *gin.Context) bool {
	switch c.Query("notify") {
	case "1", "true":
		return true
	default:
		return false
	}
}

func (s *Server) respondWeek(c *gin.Context, v app.WeekView, err error) {
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) weeklyCurrent(c *gin.Context) {
	v, err := s.app.Current(c.Request.Context())
	s.respondWeek(c, v, err)
}

func (s *Server) weeklyPlan(c *gin.Context) {
	v, err := s.app.BuildPlan(c.Request.Context(), notifyRequested(c))
	s.respondWeek(c, v, err)
}

func (s *Server) weeklySwap(c *gin.Context) {
	var req swapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	v, err := s.app.Swap(c.Request.Context(), req.Days, subject(c))
	if errors.Is(err, planner.ErrInvalidDays) || errors.Is(err, planner.ErrDuplicateDays) {
		badRequest(c, err)
		return
	}
	s.respondWeek(c, v, err)
}

func (s *Server) weeklyConfirm(c *gin.Context) {
	v, err := s.app.Confirm(c.Request.Context())
	s.respondWeek(c, v, err)
}

func (s *Server) weeklyCancel(c *gin.Context) {
	v, err := s.app.Cancel(c.Request.Context())
	s.respondWeek(c, v, err)
}

func (s *Server) weeklyShop(c *gin.Context) {
	mode := shopping.ParseMode(c.Query("mode"))
	v, err := s.app.Shop(c.Request.Context(), mode, notifyRequested(c))
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// subject returns the token subject of an authenticated request, or "api".
func subject(c *gin.Context) string {
	if v := c.GetString(subjectKey); v != "" {
		return v
	}
	return "api"
}
