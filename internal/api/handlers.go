package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pageza/recipe-assistant/backend/internal/apperrors"
	"github.com/pageza/recipe-assistant/backend/internal/middleware"
	"github.com/pageza/recipe-assistant/backend/internal/types"
)

// respondError hands err to the error middleware, which writes {"detail", "code"}
func respondError(c *gin.Context, err error) {
	middleware.Abort(c, err)
}

// bindJSON decodes the request body, reporting malformed JSON as a validation error
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, apperrors.Validation("Invalid request body").WithCause(err))
		return false
	}
	return true
}

// currentUser returns the authenticated user or aborts with 401
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}

// viewer returns the authenticated user, if any
func viewer(c *gin.Context) *uuid.UUID {
	if userID, ok := middleware.UserID(c); ok {
		return &userID
	}
	return nil
}

// recipeIDParam parses the :id path segment. Malformed ids are reported as a missing recipe.
func recipeIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperrors.ErrRecipeNotFound)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter
func queryInt(c *gin.Context, name string) (*int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		respondError(c, apperrors.Validation("Invalid value for "+name))
		return nil, false
	}
	return &v, true
}

// pageQuery reads page and limit; defaults and the cap are applied by the services
func pageQuery(c *gin.Context) (types.Page, bool) {
	var p types.Page
	page, ok := queryInt(c, "page")
	if !ok {
		return p, false
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return p, false
	}
	if page != nil {
		p.Page = *page
	}
	if limit != nil {
		p.Limit = *limit
	}
	return p, true
}

// queryTags accepts ?tags=a&tags=b as well as ?tags=a,b
func queryTags(c *gin.Context) []string {
	var tags []string
	var values []string
	values = append(values, c.QueryArray("tags")...)
	values = append(values, c.QueryArray("tags[]")...)
	for _, v := range values {
		for _, tag := range strings.Split(v, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

// HealthPinger reports whether the database answers
type HealthPinger interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler serves GET /health
type HealthHandler struct {
	db HealthPinger
}

// NewHealthHandler creates a health handler. db may be nil.
func NewHealthHandler(db HealthPinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthCheck returns the health status of the API
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	if h.db != nil {
		if err := h.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "ok"})
}
