package testhelpers

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pageza/recipe-assistant/backend/internal/model"
)

// CreateUser inserts a user with a unique username and email
func CreateUser(t *testing.T, db *gorm.DB) *model.User {
	t.Helper()
	suffix := uuid.NewString()[:8]
	user := &model.User{
		Username:     "user_" + suffix,
		Email:        "user_" + suffix + "@example.com",
		PasswordHash: "not-a-real-hash",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

// RecipeOption adjusts a fixture recipe before insert
type RecipeOption func(*model.Recipe)

func WithTitle(title string) RecipeOption {
	return func(r *model.Recipe) { r.Title = title }
}

func WithDifficulty(d string) RecipeOption {
	return func(r *model.Recipe) { r.Difficulty = d }
}

func WithTimes(prep, cook int) RecipeOption {
	return func(r *model.Recipe) { r.PrepTime, r.CookTime = prep, cook }
}

func WithTags(tags ...string) RecipeOption {
	return func(r *model.Recipe) { r.Tags = tags }
}

func WithStatus(status string) RecipeOption {
	return func(r *model.Recipe) { r.Status = status }
}

// CreateRecipe inserts a recipe owned by authorID, together with its tag rows
func CreateRecipe(t *testing.T, db *gorm.DB, authorID uuid.UUID, opts ...RecipeOption) *model.Recipe {
	t.Helper()
	recipe := &model.Recipe{
		Title:       "Test Recipe",
		Description: "A recipe used in tests",
		Ingredients: model.IngredientList{
			{Name: "flour", Quantity: "2", Unit: "cup"},
		},
		CookingSteps: model.StepList{
			{StepNumber: 1, Description: "Mix"},
		},
		PrepTime:   10,
		CookTime:   20,
		Servings:   2,
		Difficulty: model.DifficultyEasy,
		AuthorID:   authorID,
	}
	for _, opt := range opts {
		opt(recipe)
	}
	if err := db.Create(recipe).Error; err != nil {
		t.Fatalf("failed to create recipe: %v", err)
	}
	for _, tag := range recipe.Tags {
		if err := db.Create(&model.RecipeTag{RecipeID: recipe.ID, Tag: tag}).Error; err != nil {
			t.Fatalf("failed to create recipe tag: %v", err)
		}
	}
	return recipe
}
