package router

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/pageza/recipe-assistant/backend/config"
	"github.com/pageza/recipe-assistant/backend/internal/api"
	"github.com/pageza/recipe-assistant/backend/internal/middleware"
)

// SetupRouter builds the engine with the global middleware chain and every API route
func SetupRouter(cfg *config.Config, logger *slog.Logger, svc api.Services) *gin.Engine {
	router := gin.New()

	router.Use(
		gin.Recovery(),
		middleware.RequestLogger(logger),
		middleware.ErrorHandler(logger),
		middleware.CORS(cfg.CORSOrigins),
	)

	api.SetupAPI(router, svc)
	return router
}
