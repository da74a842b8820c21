package types

import (
	"github.com/pageza/recipe-assistant/backend/internal/model"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Page is a 1-indexed page request
type Page struct {
	Page  int
	Limit int
}

// Normalize applies defaults and caps the limit
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset returns the row offset for the page
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// RecipeListResponse is returned by the list, search and favorites endpoints
type RecipeListResponse struct {
	Recipes []model.Recipe `json:"recipes"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
	Total   int64          `json:"total"`
}

// SearchParams filters for recipe search. Filters compose with AND.
type SearchParams struct {
	Query          string
	MaxCookingTime *int
	Difficulty     string
	Page
}

// Favorite sort keys
const (
	SortCreatedAt   = "created_at"
	SortCookingTime = "cooking_time"
	SortDifficulty  = "difficulty"
	SortAsc         = "asc"
	SortDesc        = "desc"
)

// FavoriteFilters for the favorites listing
type FavoriteFilters struct {
	Search     string
	SortBy     string
	SortOrder  string
	Difficulty string
	Tags       []string
}

// FavoriteStatusResponse answers GET /recipes/:id/favorite
type FavoriteStatusResponse struct {
	IsFavorite bool `json:"is_favorite"`
}
