package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/recipe-assistant/backend/internal/middleware"
	"github.com/pageza/recipe-assistant/backend/internal/service"
	"github.com/pageza/recipe-assistant/backend/internal/types"
)

// RatingHandler serves recipe ratings
type RatingHandler struct {
	ratingService service.IRatingService
	validator     middleware.TokenValidator
}

func NewRatingHandler(ratingService service.IRatingService, validator middleware.TokenValidator) *RatingHandler {
	return &RatingHandler{
		ratingService: ratingService,
		validator:     validator,
	}
}

func (h *RatingHandler) RegisterRoutes(router *gin.RouterGroup) {
	recipes := router.Group("/recipes")
	{
		recipes.POST("/:id/rating", middleware.AuthMiddleware(h.validator), h.RateRecipe)
		recipes.GET("/:id/ratings", middleware.OptionalAuth(h.validator), h.ListRatings)
	}
}

func (h *RatingHandler) RateRecipe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	recipeID, ok := recipeIDParam(c)
	if !ok {
		return
	}
	var req types.RateRecipeRequest
	if !bindJSON(c, &req) {
		return
	}

	rating, err := h.ratingService.RateRecipe(c.Request.Context(), userID, recipeID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rating)
}

func (h *RatingHandler) ListRatings(c *gin.Context) {
	recipeID, ok := recipeIDParam(c)
	if !ok {
		return
	}
	skip, ok := queryInt(c, "skip")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	var s, l int
	if skip != nil {
		s = *skip
	}
	if limit != nil {
		l = *limit
	}

	ratings, err := h.ratingService.ListRatings(c.Request.Context(), recipeID, viewer(c), s, l)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ratings)
}
