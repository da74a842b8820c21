package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pageza/recipe-assistant/backend/internal/middleware"
	"github.com/pageza/recipe-assistant/backend/internal/service"
	"github.com/pageza/recipe-assistant/backend/internal/types"
)

// FavoriteHandler serves per-recipe favorite toggles and the user's favorites list
type FavoriteHandler struct {
	favoriteService service.IFavoriteService
	validator       middleware.TokenValidator
}

func NewFavoriteHandler(favoriteService service.IFavoriteService, validator middleware.TokenValidator) *FavoriteHandler {
	return &FavoriteHandler{
		favoriteService: favoriteService,
		validator:       validator,
	}
}

func (h *FavoriteHandler) RegisterRoutes(router *gin.RouterGroup) {
	auth := middleware.AuthMiddleware(h.validator)

	recipes := router.Group("/recipes")
	{
		recipes.POST("/:id/favorite", auth, h.AddFavorite)
		recipes.DELETE("/:id/favorite", auth, h.RemoveFavorite)
		recipes.GET("/:id/favorite", auth, h.GetFavoriteStatus)
	}
	router.GET("/users/favorites", auth, h.ListFavorites)
}

func (h *FavoriteHandler) AddFavorite(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	recipeID, ok := recipeIDParam(c)
	if !ok {
		return
	}

	favorite, err := h.favoriteService.AddFavorite(c.Request.Context(), userID, recipeID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, favorite)
}

func (h *FavoriteHandler) RemoveFavorite(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	recipeID, ok := recipeIDParam(c)
	if !ok {
		return
	}

	if err := h.favoriteService.RemoveFavorite(c.Request.Context(), userID, recipeID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *FavoriteHandler) GetFavoriteStatus(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	recipeID, ok := recipeIDParam(c)
	if !ok {
		return
	}

	isFavorite, err := h.favoriteService.IsFavorite(c.Request.Context(), userID, recipeID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.FavoriteStatusResponse{IsFavorite: isFavorite})
}

func (h *FavoriteHandler) ListFavorites(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	page, ok := pageQuery(c)
	if !ok {
		return
	}

	resp, err := h.favoriteService.ListFavorites(c.Request.Context(), userID, page, types.FavoriteFilters{
		Search:     strings.TrimSpace(c.Query("search")),
		SortBy:     c.Query("sort_by"),
		SortOrder:  c.Query("sort_order"),
		Difficulty: c.Query("difficulty"),
		Tags:       queryTags(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
