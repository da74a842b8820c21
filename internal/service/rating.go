package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/recipe-assistant/backend/internal/apperrors"
	"github.com/pageza/recipe-assistant/backend/internal/model"
	"github.com/pageza/recipe-assistant/backend/internal/types"
)

// RatingService records 1-5 scores. A user holds at most one rating per recipe.
type RatingService struct {
	db *gorm.DB
}

func NewRatingService(db *gorm.DB) *RatingService {
	return &RatingService{db: db}
}

// RateRecipe creates or replaces the user's rating for a recipe
func (s *RatingService) RateRecipe(ctx context.Context, userID, recipeID uuid.UUID, req *types.RateRecipeRequest) (*model.Rating, error) {
	if req.Rating < model.MinRating || req.Rating > model.MaxRating {
		return nil, apperrors.Validation(fmt.Sprintf("rating must be between %d and %d", model.MinRating, model.MaxRating))
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := ensureRecipeVisible(ctx, s.db, recipeID, &userID); err != nil {
		return nil, err
	}

	rating := &model.Rating{
		UserID:   userID,
		RecipeID: recipeID,
		Rating:   req.Rating,
		Comment:  req.Comment,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "recipe_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating", "comment", "updated_at"}),
	}).Create(rating).Error
	if err != nil {
		return nil, apperrors.Infrastructure(err, "save rating")
	}

	// On conflict the stored row keeps its original id
	var stored model.Rating
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		First(&stored).Error; err != nil {
		return nil, apperrors.Infrastructure(err, "reload rating")
	}
	return &stored, nil
}

// ListRatings returns a recipe's ratings, newest first. Ratings of a draft are listed only for its author.
func (s *RatingService) ListRatings(ctx context.Context, recipeID uuid.UUID, viewerID *uuid.UUID, skip, limit int) ([]model.Rating, error) {
	if skip < 0 {
		skip = 0
	}
	if limit < 1 {
		limit = types.DefaultLimit
	}
	if limit > types.MaxLimit {
		limit = types.MaxLimit
	}
	if err := ensureRecipeVisible(ctx, s.db, recipeID, viewerID); err != nil {
		return nil, err
	}

	ratings := []model.Rating{}
	if err := s.db.WithContext(ctx).
		Where("recipe_id = ?", recipeID).
		Order("created_at DESC").
		Offset(skip).
		Limit(limit).
		Find(&ratings).Error; err != nil {
		return nil, apperrors.Infrastructure(err, "list ratings")
	}
	return ratings, nil
}
