package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/recipe-assistant/backend/internal/apperrors"
	"github.com/pageza/recipe-assistant/backend/internal/maintenance"
	"github.com/pageza/recipe-assistant/backend/internal/middleware"
)

// StatsProvider is the read-only Postgres monitor
type StatsProvider interface {
	DatabaseStats(ctx context.Context) (*maintenance.DatabaseStats, error)
}

// AdminHandler exposes database statistics to authenticated users
type AdminHandler struct {
	stats     StatsProvider
	validator middleware.TokenValidator
}

func NewAdminHandler(stats StatsProvider, validator middleware.TokenValidator) *AdminHandler {
	return &AdminHandler{stats: stats, validator: validator}
}

func (h *AdminHandler) RegisterRoutes(router *gin.RouterGroup) {
	admin := router.Group("/admin")
	admin.Use(middleware.AuthMiddleware(h.validator))
	admin.GET("/db/stats", h.DatabaseStats)
}

func (h *AdminHandler) DatabaseStats(c *gin.Context) {
	stats, err := h.stats.DatabaseStats(c.Request.Context())
	if err != nil {
		respondError(c, apperrors.Infrastructure(err, "collect database stats"))
		return
	}
	c.JSON(http.StatusOK, stats)
}
