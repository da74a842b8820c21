package types

import (
	"github.com/pageza/recipe-assistant/backend/internal/model"
)

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Username        string   `json:"username" validate:"required,min=3,max=50"`
	Email           string   `json:"email" validate:"required,email"`
	Password        string   `json:"password" validate:"required,min=8"`
	Phone           string   `json:"phone" validate:"omitempty,max=30"`
	DisplayName     string   `json:"display_name" validate:"omitempty,max=100"`
	DietPreferences []string `json:"diet_preferences"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned by register and login
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        *model.User `json:"user"`
}

// UpdateProfileRequest carries optional profile fields
type UpdateProfileRequest struct {
	Username        *string  `json:"username" validate:"omitempty,min=3,max=50"`
	Phone           *string  `json:"phone" validate:"omitempty,max=30"`
	DisplayName     *string  `json:"display_name" validate:"omitempty,max=100"`
	DietPreferences []string `json:"diet_preferences"`
}

// ChangePasswordRequest represents the request body for changing a password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// CreateRecipeRequest represents the request body for creating a recipe
type CreateRecipeRequest struct {
	Title         string              `json:"title" validate:"required,max=255"`
	Description   string              `json:"description"`
	Ingredients   []model.Ingredient  `json:"ingredients" validate:"required,min=1,dive"`
	CookingSteps  []model.CookingStep `json:"cooking_steps" validate:"required,min=1,dive"`
	PrepTime      int                 `json:"prep_time" validate:"gte=0"`
	CookTime      int                 `json:"cook_time" validate:"gte=0"`
	Servings      int                 `json:"servings" validate:"gte=0"`
	Difficulty    string              `json:"difficulty"`
	Cuisine       string              `json:"cuisine"`
	MealType      string              `json:"meal_type"`
	NutritionInfo model.NutritionInfo `json:"nutrition_info"`
	ImageURL      string              `json:"image_url" validate:"omitempty,max=255"`
	Tags          []string            `json:"tags" validate:"omitempty,dive,max=50"`
	Equipment     []string            `json:"equipment"`
	Tips          []string            `json:"tips"`
	Status        string              `json:"status"`
	AIGenerated   bool                `json:"-"`
}

// UpdateRecipeRequest is a partial update. Nil fields are left unchanged.
type UpdateRecipeRequest struct {
	Title         *string              `json:"title" validate:"omitempty,max=255"`
	Description   *string              `json:"description"`
	Ingredients   []model.Ingredient   `json:"ingredients" validate:"omitempty,min=1,dive"`
	CookingSteps  []model.CookingStep  `json:"cooking_steps" validate:"omitempty,min=1,dive"`
	PrepTime      *int                 `json:"prep_time" validate:"omitempty,gte=0"`
	CookTime      *int                 `json:"cook_time" validate:"omitempty,gte=0"`
	Servings      *int                 `json:"servings" validate:"omitempty,gte=0"`
	Difficulty    *string              `json:"difficulty"`
	Cuisine       *string              `json:"cuisine"`
	MealType      *string              `json:"meal_type"`
	NutritionInfo *model.NutritionInfo `json:"nutrition_info"`
	ImageURL      *string              `json:"image_url" validate:"omitempty,max=255"`
	Tags          []string             `json:"tags" validate:"omitempty,dive,max=50"`
	Equipment     []string             `json:"equipment"`
	Tips          []string             `json:"tips"`
	Status        *string              `json:"status"`
}

// RateRecipeRequest represents the request body for rating a recipe
type RateRecipeRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment" validate:"max=2000"`
}
