package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/pageza/recipe-assistant/backend/config"
	"github.com/pageza/recipe-assistant/backend/internal/api"
	"github.com/pageza/recipe-assistant/backend/internal/middleware"
	"github.com/pageza/recipe-assistant/backend/internal/requestcache"
	"github.com/pageza/recipe-assistant/backend/internal/router"
	"github.com/pageza/recipe-assistant/backend/internal/service"
)

// Dependencies are the long-lived resources opened by the process entry point.
// Redis, Stats and Health are optional.
type Dependencies struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Provider service.LLMProvider
	Stats    api.StatsProvider
	Health   api.HealthPinger
}

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	http   *http.Server
	logger *slog.Logger
}

// New wires services and handlers onto a router
func New(cfg *config.Config, logger *slog.Logger, deps Dependencies) *Server {
	authService := service.NewAuthService(deps.DB, cfg.JWTSecret, cfg.JWTExpiry)
	recipeService := service.NewRecipeService(deps.DB, service.NewEmbeddingService())

	var drafts service.DraftStore
	if deps.Redis != nil {
		drafts = service.NewRedisDraftStore(deps.Redis)
	} else {
		drafts = service.NewMemoryDraftStore()
	}

	aiService := service.NewAIService(deps.Provider, drafts, recipeService, requestcache.New(), logger)

	r := router.SetupRouter(cfg, logger, api.Services{
		Auth:      authService,
		Recipes:   recipeService,
		Favorites: service.NewFavoriteService(deps.DB),
		Ratings:   service.NewRatingService(deps.DB),
		AI:        aiService,
		AILimiter: middleware.NewAIRateLimiter(deps.Redis, cfg.AIRateLimitHour, logger),
		Stats:     deps.Stats,
		Health:    deps.Health,
	})

	return &Server{
		router: r,
		logger: logger,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.ServerHost, cfg.ServerPort),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			// AI calls may legitimately take the whole provider timeout
			WriteTimeout: cfg.AITimeout + 15*time.Second,
			IdleTimeout:  2 * time.Minute,
		},
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
