package api

import (
	"github.com/gin-gonic/gin"

	"github.com/pageza/recipe-assistant/backend/internal/middleware"
	"github.com/pageza/recipe-assistant/backend/internal/service"
)

// Services are the dependencies the HTTP layer is built from. Stats and Health may be nil.
type Services struct {
	Auth      service.IAuthService
	Recipes   service.IRecipeService
	Favorites service.IFavoriteService
	Ratings   service.IRatingService
	AI        service.IAIService
	AILimiter *middleware.RateLimiter
	Stats     StatsProvider
	Health    HealthPinger
}

// SetupAPI registers every route under /api/v1
func SetupAPI(router *gin.Engine, svc Services) {
	health := NewHealthHandler(svc.Health)
	router.GET("/health", health.HealthCheck)

	v1 := router.Group("/api/v1")
	v1.GET("/health", health.HealthCheck)

	NewAuthHandler(svc.Auth).RegisterRoutes(v1)
	NewRecipeHandler(svc.Recipes, svc.Auth).RegisterRoutes(v1)
	NewFavoriteHandler(svc.Favorites, svc.Auth).RegisterRoutes(v1)
	NewRatingHandler(svc.Ratings, svc.Auth).RegisterRoutes(v1)
	NewAIHandler(svc.AI, svc.Auth, svc.AILimiter).RegisterRoutes(v1)
	if svc.Stats != nil {
		NewAdminHandler(svc.Stats, svc.Auth).RegisterRoutes(v1)
	}
}
