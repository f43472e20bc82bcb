package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"weekplan/internal/recipe"
)

const defaultListLimit = 50

type previewRequest struct {
	URL string `json:"url"`
}

func (s *Server) listRecipes(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "limit must be a positive number"})
			return
		}
		limit = n
	}

	items, err := s.app.Recipes().ListRecent(c.Request.Context(), limit, c.Query("q"))
	if err != nil {
		s.internalError(c, err)
		return
	}
	if items == nil {
		items = []recipe.Recipe{}
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) createRecipe(c *gin.Context) {
	var in recipe.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	if in.CreatedBy == "" {
		in.CreatedBy = c.GetString(subjectKey)
	}

	rec, err := s.app.Recipes().Create(c.Request.Context(), in)
	if err != nil {
		s.recipeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) getRecipe(c *gin.Context) {
	rec, err := s.app.Recipes().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.internalError(c, err)
		return
	}
	if rec == nil {
		s.recipeError(c, recipe.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) updateRecipe(c *gin.Context) {
	var p recipe.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err)
		return
	}
	rec, err := s.app.Recipes().Update(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		s.recipeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// deleteRecipe archives by default so old plans keep their titles;
// ?hard=1 removes the row.
func (s *Server) deleteRecipe(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	var err error
	if c.Query("hard") == "1" {
		err = s.app.Recipes().Delete(ctx, id)
	} else {
		err = s.app.Recipes().Archive(ctx, id)
	}
	if err != nil {
		s.recipeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) archiveRecipe(c *gin.Context) {
	id := c.Param("id")
	if err := s.app.Recipes().Archive(c.Request.Context(), id); err != nil {
		s.recipeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "id": id, "is_active": false})
}

func (s *Server) importPreview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, s.app.Importer().Preview(c.Request.Context(), req.URL))
}

func (s *Server) recipeError(c *gin.Context, err error) {
	var dup *recipe.DuplicateError
	switch {
	case errors.As(err, &dup):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": dup.Error(), "existing_recipe_id": dup.ExistingID})
	case errors.Is(err, recipe.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "Recipe not found"})
	case errors.Is(err, recipe.ErrInvalid):
		badRequest(c, err)
	default:
		s.internalError(c, err)
	}
}
