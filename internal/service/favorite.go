package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/pageza/recipe-assistant/backend/internal/apperrors"
	"github.com/pageza/recipe-assistant/backend/internal/model"
	"github.com/pageza/recipe-assistant/backend/internal/types"
)

const difficultyRankSQL = "CASE recipes.difficulty WHEN 'easy' THEN 1 WHEN 'medium' THEN 2 WHEN 'hard' THEN 3 ELSE 4 END"

// FavoriteService manages user bookmarks of recipes
type FavoriteService struct {
	db *gorm.DB
}

func NewFavoriteService(db *gorm.DB) *FavoriteService {
	return &FavoriteService{db: db}
}

// AddFavorite bookmarks a recipe. Favoriting the same recipe twice fails with ErrAlreadyFavorited.
func (s *FavoriteService) AddFavorite(ctx context.Context, userID, recipeID uuid.UUID) (*model.Favorite, error) {
	if err := ensureRecipeVisible(ctx, s.db, recipeID, &userID); err != nil {
		return nil, err
	}

	var existing model.Favorite
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Limit(1).
		Find(&existing)
	if result.Error != nil {
		return nil, apperrors.Infrastructure(result.Error, "check favorite")
	}
	if result.RowsAffected > 0 {
		return nil, apperrors.ErrAlreadyFavorited
	}

	favorite := &model.Favorite{UserID: userID, RecipeID: recipeID}
	if err := s.db.WithContext(ctx).Create(favorite).Error; err != nil {
		// Lost a race with a concurrent add
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrAlreadyFavorited
		}
		return nil, apperrors.Infrastructure(err, "add favorite")
	}
	return favorite, nil
}

// RemoveFavorite deletes a bookmark, failing with "Favorite not found" when there is none
func (s *FavoriteService) RemoveFavorite(ctx context.Context, userID, recipeID uuid.UUID) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Delete(&model.Favorite{})
	if result.Error != nil {
		return apperrors.Infrastructure(result.Error, "remove favorite")
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrFavoriteNotFound
	}
	return nil
}

// IsFavorite reports whether the user has bookmarked the recipe
func (s *FavoriteService) IsFavorite(ctx context.Context, userID, recipeID uuid.UUID) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Favorite{}).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Count(&count).Error; err != nil {
		return false, apperrors.Infrastructure(err, "check favorite")
	}
	return count > 0, nil
}

// ListFavorites returns the user's bookmarked recipes. Difficulty sorts by rank
// (easy < medium < hard), never alphabetically.
func (s *FavoriteService) ListFavorites(ctx context.Context, userID uuid.UUID, page types.Page, filters types.FavoriteFilters) (*types.RecipeListResponse, error) {
	page = page.Normalize()

	orderBy, err := favoriteOrder(filters.SortBy, filters.SortOrder)
	if err != nil {
		return nil, err
	}
	if filters.Difficulty != "" {
		if err := validateEnum("difficulty", filters.Difficulty, model.Difficulties); err != nil {
			return nil, err
		}
	}
	search := strings.ToLower(strings.TrimSpace(filters.Search))
	tags := normalizeTags(filters.Tags)

	filter := func(db *gorm.DB) *gorm.DB {
		db = db.Model(&model.Recipe{}).
			Joins("JOIN favorites ON favorites.recipe_id = recipes.id").
			Where("favorites.user_id = ?", userID).
			Where("(recipes.status = ? OR recipes.author_id = ?)", model.StatusPublished, userID)
		if search != "" {
			like := "%" + escapeLike(search) + "%"
			db = db.Where("(LOWER(recipes.title) LIKE ? ESCAPE '\\' OR LOWER(recipes.description) LIKE ? ESCAPE '\\')", like, like)
		}
		if filters.Difficulty != "" {
			db = db.Where("recipes.difficulty = ?", filters.Difficulty)
		}
		if len(tags) > 0 {
			db = db.Where("recipes.id IN (?)",
				s.db.Model(&model.RecipeTag{}).Select("recipe_id").Where("tag IN ?", tags))
		}
		return db
	}

	var total int64
	if err := filter(s.db.WithContext(ctx)).Count(&total).Error; err != nil {
		return nil, apperrors.Infrastructure(err, "count favorites")
	}

	var recipes []model.Recipe
	if err := filter(s.db.WithContext(ctx)).
		Select("recipes.*").
		Order(orderBy).
		Order("favorites.created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&recipes).Error; err != nil {
		return nil, apperrors.Infrastructure(err, "list favorites")
	}

	if err := enrichRecipes(ctx, s.db, recipes); err != nil {
		return nil, err
	}

	return &types.RecipeListResponse{
		Recipes: recipes,
		Page:    page.Page,
		Limit:   page.Limit,
		Total:   total,
	}, nil
}

// favoriteOrder maps sort_by/sort_order to an ORDER BY expression. Defaults to newest favorite first.
func favoriteOrder(sortBy, sortOrder string) (string, error) {
	if sortBy == "" {
		sortBy = types.SortCreatedAt
	}
	if sortOrder == "" {
		sortOrder = types.SortDesc
	}
	if err := validateEnum("sort_order", sortOrder, []string{types.SortAsc, types.SortDesc}); err != nil {
		return "", err
	}
	direction := " DESC"
	if sortOrder == types.SortAsc {
		direction = " ASC"
	}

	switch sortBy {
	case types.SortCreatedAt:
		return "favorites.created_at" + direction, nil
	case types.SortCookingTime:
		return "(recipes.prep_time + recipes.cook_time)" + direction, nil
	case types.SortDifficulty:
		return difficultyRankSQL + direction, nil
	default:
		return "", validateEnum("sort_by", sortBy, []string{types.SortCreatedAt, types.SortCookingTime, types.SortDifficulty})
	}
}
