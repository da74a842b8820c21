package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/recipe-assistant/backend/internal/middleware"
	"github.com/pageza/recipe-assistant/backend/internal/service"
	"github.com/pageza/recipe-assistant/backend/internal/types"
)

// AIHandler serves the AI-assisted recipe endpoints
type AIHandler struct {
	aiService service.IAIService
	validator middleware.TokenValidator
	limiter   *middleware.RateLimiter
}

// NewAIHandler creates the handler. limiter may be nil to disable rate limiting.
func NewAIHandler(aiService service.IAIService, validator middleware.TokenValidator, limiter *middleware.RateLimiter) *AIHandler {
	return &AIHandler{
		aiService: aiService,
		validator: validator,
		limiter:   limiter,
	}
}

func (h *AIHandler) RegisterRoutes(router *gin.RouterGroup) {
	ai := router.Group("/ai")
	ai.GET("/status", h.GetStatus)

	protected := ai.Group("")
	protected.Use(middleware.AuthMiddleware(h.validator))
	protected.POST("/save-generated-recipe", h.SaveGeneratedRecipe)

	// Endpoints that call the provider share one budget per user
	metered := protected.Group("")
	if h.limiter != nil {
		metered.Use(h.limiter.RateLimitMiddleware())
	}
	metered.POST("/generate-recipe", h.GenerateRecipe)
	metered.POST("/enhance-recipe", h.EnhanceRecipe)
	metered.POST("/analyze-nutrition", h.AnalyzeNutrition)
}

func (h *AIHandler) GenerateRecipe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req types.RecipeGenerationRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.aiService.GenerateRecipe(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AIHandler) EnhanceRecipe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req types.RecipeEnhancementRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.aiService.EnhanceRecipe(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AIHandler) SaveGeneratedRecipe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req types.SaveRecipeRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.aiService.SaveGeneratedRecipe(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *AIHandler) AnalyzeNutrition(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	var req types.NutritionAnalysisRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.aiService.AnalyzeNutrition(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetStatus never fails; an unreachable provider is reported in the body
func (h *AIHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.aiService.GetServiceStatus(c.Request.Context()))
}
