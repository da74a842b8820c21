package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pageza/recipe-assistant/backend/internal/middleware"
	"github.com/pageza/recipe-assistant/backend/internal/service"
	"github.com/pageza/recipe-assistant/backend/internal/types"
)

// RecipeHandler serves recipe CRUD, listing and search
type RecipeHandler struct {
	recipeService service.IRecipeService
	validator     middleware.TokenValidator
}

func NewRecipeHandler(recipeService service.IRecipeService, validator middleware.TokenValidator) *RecipeHandler {
	return &RecipeHandler{
		recipeService: recipeService,
		validator:     validator,
	}
}

func (h *RecipeHandler) RegisterRoutes(router *gin.RouterGroup) {
	recipes := router.Group("/recipes")
	{
		recipes.GET("", h.ListRecipes)
		recipes.GET("/search", h.SearchRecipes)
		recipes.GET("/:id", middleware.OptionalAuth(h.validator), h.GetRecipe)
		recipes.POST("", middleware.AuthMiddleware(h.validator), h.CreateRecipe)
		recipes.PUT("/:id", middleware.AuthMiddleware(h.validator), h.UpdateRecipe)
		recipes.DELETE("/:id", middleware.AuthMiddleware(h.validator), h.DeleteRecipe)
	}
}

func (h *RecipeHandler) ListRecipes(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		return
	}

	resp, err := h.recipeService.ListRecipes(c.Request.Context(), page, queryTags(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RecipeHandler) SearchRecipes(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	maxTime, ok := queryInt(c, "max_cooking_time")
	if !ok {
		return
	}

	resp, err := h.recipeService.SearchRecipes(c.Request.Context(), types.SearchParams{
		Query:          strings.TrimSpace(c.Query("query")),
		MaxCookingTime: maxTime,
		Difficulty:     c.Query("difficulty"),
		Page:           page,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	id, ok := recipeIDParam(c)
	if !ok {
		return
	}

	recipe, err := h.recipeService.GetRecipe(c.Request.Context(), id, viewer(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func (h *RecipeHandler) CreateRecipe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req types.CreateRecipeRequest
	if !bindJSON(c, &req) {
		return
	}

	recipe, err := h.recipeService.CreateRecipe(c.Request.Context(), &req, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, recipe)
}

func (h *RecipeHandler) UpdateRecipe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := recipeIDParam(c)
	if !ok {
		return
	}
	var req types.UpdateRecipeRequest
	if !bindJSON(c, &req) {
		return
	}

	recipe, err := h.recipeService.UpdateRecipe(c.Request.Context(), id, &req, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func (h *RecipeHandler) DeleteRecipe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := recipeIDParam(c)
	if !ok {
		return
	}

	if err := h.recipeService.DeleteRecipe(c.Request.Context(), id, userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
