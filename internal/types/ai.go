package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pageza/recipe-assistant/backend/internal/model"
)

// Dietary preferences accepted by the generator
var DietaryPreferences = []string{
	"vegetarian", "vegan", "gluten_free", "dairy_free", "keto", "paleo", "low_carb", "high_protein", "none",
}

var TastePreferences = []string{"sweet", "savory", "spicy", "sour", "bitter"}

const (
	EnhanceMoreHealthy          = "more_healthy"
	EnhanceMoreFlavorful        = "more_flavorful"
	EnhanceReduceTime           = "reduce_time"
	EnhanceIncreaseYield        = "increase_yield"
	EnhanceSubstituteIngredient = "substitute_ingredient"
	EnhanceCustom               = "custom"
)

var EnhancementTypes = []string{
	EnhanceMoreHealthy, EnhanceMoreFlavorful, EnhanceReduceTime,
	EnhanceIncreaseYield, EnhanceSubstituteIngredient, EnhanceCustom,
}

const (
	AIStatusOperational = "operational"
	AIStatusDegraded    = "degraded"
	AIStatusUnavailable = "unavailable"
)

// DietaryPreferenceList accepts either a single string or a list of strings
type DietaryPreferenceList []string

func (d *DietaryPreferenceList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = nil
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		single = strings.TrimSpace(single)
		if single == "" {
			*d = nil
		} else {
			*d = DietaryPreferenceList{single}
		}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*d = list
		return nil
	}

	return fmt.Errorf("invalid dietary_preference format")
}

// NutritionalGoal holds optional calorie and macro bounds
type NutritionalGoal struct {
	MaxCalories *float64 `json:"max_calories" validate:"omitempty,gte=0"`
	MinProtein  *float64 `json:"min_protein" validate:"omitempty,gte=0"`
	MaxCarbs    *float64 `json:"max_carbs" validate:"omitempty,gte=0"`
	MaxFat      *float64 `json:"max_fat" validate:"omitempty,gte=0"`
}

// RecipeGenerationRequest is the body of POST /ai/generate-recipe
type RecipeGenerationRequest struct {
	Title              string                `json:"title" validate:"max=255"`
	DietaryPreference  DietaryPreferenceList `json:"dietary_preference"`
	Ingredients        []string              `json:"ingredients"`
	ExcludeIngredients []string              `json:"exclude_ingredients"`
	Cuisine            string                `json:"cuisine"`
	MealType           string                `json:"meal_type"`
	Difficulty         string                `json:"difficulty"`
	MaxPrepTime        *int                  `json:"max_prep_time" validate:"omitempty,gte=0"`
	MaxCookTime        *int                  `json:"max_cook_time" validate:"omitempty,gte=0"`
	Servings           int                   `json:"servings" validate:"gte=0"`
	NutritionalGoal    *NutritionalGoal      `json:"nutritional_goal"`
	TastePreferences   []string              `json:"taste_preferences"`
	SpecialRequest     string                `json:"special_request" validate:"max=2000"`
}

// GeneratedRecipe is a recipe produced by the AI layer before it is persisted
type GeneratedRecipe struct {
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Ingredients   []model.Ingredient  `json:"ingredients"`
	CookingSteps  []model.CookingStep `json:"cooking_steps"`
	PrepTime      int                 `json:"prep_time"`
	CookTime      int                 `json:"cook_time"`
	Servings      int                 `json:"servings"`
	Difficulty    string              `json:"difficulty"`
	Cuisine       string              `json:"cuisine,omitempty"`
	MealType      string              `json:"meal_type,omitempty"`
	NutritionInfo model.NutritionInfo `json:"nutrition_info"`
	Tags          []string            `json:"tags"`
	Equipment     []string            `json:"equipment,omitempty"`
	Tips          []string            `json:"tips,omitempty"`
}

// RecipeResponse wraps a generated or enhanced recipe
type RecipeResponse struct {
	Recipe      GeneratedRecipe `json:"recipe"`
	DraftID     string          `json:"draft_id,omitempty"`
	Changes     []string        `json:"changes,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// RecipeEnhancementRequest is the body of POST /ai/enhance-recipe. Exactly one of
// RecipeID and OriginalRecipe must be set.
type RecipeEnhancementRequest struct {
	RecipeID           *uuid.UUID       `json:"recipe_id"`
	OriginalRecipe     *GeneratedRecipe `json:"original_recipe"`
	EnhancementType    string           `json:"enhancement_type"`
	SubstituteFrom     string           `json:"substitute_from"`
	SubstituteTo       string           `json:"substitute_to"`
	CustomInstructions string           `json:"custom_instructions" validate:"max=2000"`
}

// SaveRecipeRequest persists a generated recipe given inline or by draft id
type SaveRecipeRequest struct {
	DraftID     string           `json:"draft_id"`
	Recipe      *GeneratedRecipe `json:"recipe"`
	SaveAsDraft bool             `json:"save_as_draft"`
}

type SaveRecipeResponse struct {
	Success  bool      `json:"success"`
	RecipeID uuid.UUID `json:"recipe_id"`
	Message  string    `json:"message"`
}

// NutritionAnalysisRequest takes either an ingredient list or free text
type NutritionAnalysisRequest struct {
	Ingredients []string `json:"ingredients"`
	Text        string   `json:"text" validate:"max=5000"`
}

type HealthImpact struct {
	Balanced        bool     `json:"balanced"`
	Concerns        []string `json:"concerns"`
	Recommendations []string `json:"recommendations"`
}

type NutritionAnalysisResponse struct {
	Calories        float64             `json:"calories"`
	Protein         float64             `json:"protein"`
	Carbs           float64             `json:"carbs"`
	Fat             float64             `json:"fat"`
	Fiber           float64             `json:"fiber"`
	Sugar           *float64            `json:"sugar,omitempty"`
	Sodium          *float64            `json:"sodium,omitempty"`
	Summary         string              `json:"summary"`
	HealthImpact    HealthImpact        `json:"health_impact"`
	SuitableDiets   []string            `json:"suitable_diets"`
	UnsuitableDiets []string            `json:"unsuitable_diets"`
	Substitutes     map[string][]string `json:"substitutes"`
}

type AIFeatures struct {
	RecipeGeneration     bool `json:"recipe_generation"`
	RecipeEnhancement    bool `json:"recipe_enhancement"`
	NutritionAnalysis    bool `json:"nutrition_analysis"`
	IngredientSuggestion bool `json:"ingredient_suggestion"`
}

// AIServiceStatus is the payload of GET /ai/status
type AIServiceStatus struct {
	Status                string     `json:"status"`
	CurrentLoad           float64    `json:"current_load"`
	ActiveRequests        int        `json:"active_requests"`
	MaxConcurrentRequests int        `json:"max_concurrent_requests"`
	Features              AIFeatures `json:"features"`
	LastChecked           time.Time  `json:"last_checked"`
}
