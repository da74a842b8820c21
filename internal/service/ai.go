package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pageza/recipe-assistant/backend/internal/apperrors"
	"github.com/pageza/recipe-assistant/backend/internal/model"
	"github.com/pageza/recipe-assistant/backend/internal/requestcache"
	"github.com/pageza/recipe-assistant/backend/internal/types"
)

const (
	statusCheckTimeout = 5 * time.Second
	// Load at or above this fraction reports the service as degraded
	degradedLoad = 0.8
)

const recipeSchemaPrompt = `You are a professional chef and nutritionist. Respond only with a JSON object with this structure:
{
    "title": "Recipe name",
    "description": "Brief description of the recipe",
    "ingredients": [{"name": "flour", "quantity": "2", "unit": "cups", "notes": "sifted"}],
    "cooking_steps": [{"step_number": 1, "description": "Mix the dry ingredients", "duration": 5}],
    "prep_time": 15,
    "cook_time": 30,
    "servings": 4,
    "difficulty": "easy|medium|hard",
    "cuisine": "Italian",
    "meal_type": "breakfast|lunch|dinner|snack|dessert",
    "nutrition_info": {"calories": 350, "protein": 15, "carbs": 45, "fat": 12, "fiber": 4, "sugar": 6, "sodium": 400},
    "tags": ["quick", "vegetarian"],
    "equipment": ["oven"],
    "tips": ["Serve warm"]
}

prep_time, cook_time and duration are minutes. Nutrition values are per serving and must be numbers, not strings.`

const enhanceSchemaSuffix = `
Also include "changes": a list of short sentences describing what you changed.`

const nutritionPrompt = `You are a nutrition expert. Respond only with a JSON object with this structure:
{
    "calories": 0, "protein": 0, "carbs": 0, "fat": 0, "fiber": 0, "sugar": 0, "sodium": 0,
    "summary": "One paragraph overview",
    "health_impact": {"balanced": true, "concerns": [], "recommendations": []},
    "suitable_diets": ["vegetarian"],
    "unsuitable_diets": ["keto"],
    "substitutes": {"butter": ["olive oil"]}
}

Values are totals for the listed ingredients. Protein, carbs, fat, fiber and sugar are grams; sodium is milligrams.`

// loadReporter is implemented by providers that track their in-flight calls
type loadReporter interface {
	Load() (active, limit int)
}

// AIService maps structured requests onto provider prompts and provider JSON back into recipes
type AIService struct {
	provider LLMProvider
	drafts   DraftStore
	recipes  IRecipeService
	cache    *requestcache.Cache
	logger   *slog.Logger
	now      func() time.Time
}

func NewAIService(provider LLMProvider, drafts DraftStore, recipes IRecipeService, cache *requestcache.Cache, logger *slog.Logger) *AIService {
	return &AIService{
		provider: provider,
		drafts:   drafts,
		recipes:  recipes,
		cache:    cache,
		logger:   logger.With("component", "ai"),
		now:      time.Now,
	}
}

// GenerateRecipe asks the provider for a new recipe and caches it as a draft for the user
func (s *AIService) GenerateRecipe(ctx context.Context, userID uuid.UUID, req *types.RecipeGenerationRequest) (*types.RecipeResponse, error) {
	if err := validateGenerationRequest(req); err != nil {
		return nil, err
	}

	messages := []Message{
		{Role: "system", Content: recipeSchemaPrompt},
		{Role: "user", Content: buildGenerationPrompt(req)},
	}
	content, err := s.provider.Complete(ctx, messages, creativeOptions)
	if err != nil {
		s.logger.ErrorContext(ctx, "recipe generation failed", "error", err)
		return nil, apperrors.Upstream(err)
	}

	recipe, _, err := parseProviderRecipe(content, req.Difficulty, req.MealType)
	if err != nil {
		s.logger.WarnContext(ctx, "unusable generation response", "error", err)
		return nil, apperrors.Upstream(err)
	}

	return s.respondWithDraft(ctx, userID, recipe, nil), nil
}

// EnhanceRecipe rewrites an existing or inlined recipe according to the enhancement type
func (s *AIService) EnhanceRecipe(ctx context.Context, userID uuid.UUID, req *types.RecipeEnhancementRequest) (*types.RecipeResponse, error) {
	if err := validateEnhancementRequest(req); err != nil {
		return nil, err
	}

	original := req.OriginalRecipe
	if req.RecipeID != nil {
		stored, err := s.recipes.GetRecipe(ctx, *req.RecipeID, &userID)
		if err != nil {
			return nil, err
		}
		original = toGeneratedRecipe(stored)
	}

	originalJSON, err := json.Marshal(original)
	if err != nil {
		return nil, apperrors.Infrastructure(err, "marshal original recipe")
	}

	messages := []Message{
		{Role: "system", Content: recipeSchemaPrompt + enhanceSchemaSuffix},
		{Role: "user", Content: fmt.Sprintf("%s\n\nOriginal recipe:\n%s", enhancementInstruction(req), originalJSON)},
	}
	content, err := s.provider.Complete(ctx, messages, preciseOptions)
	if err != nil {
		s.logger.ErrorContext(ctx, "recipe enhancement failed", "error", err, "type", req.EnhancementType)
		return nil, apperrors.Upstream(err)
	}

	recipe, changes, err := parseProviderRecipe(content, original.Difficulty, original.MealType)
	if err != nil {
		s.logger.WarnContext(ctx, "unusable enhancement response", "error", err)
		return nil, apperrors.Upstream(err)
	}

	return s.respondWithDraft(ctx, userID, recipe, changes), nil
}

// SaveGeneratedRecipe persists an inline recipe or a cached draft through the normal create path
func (s *AIService) SaveGeneratedRecipe(ctx context.Context, userID uuid.UUID, req *types.SaveRecipeRequest) (*types.SaveRecipeResponse, error) {
	generated := req.Recipe
	draftID := strings.TrimSpace(req.DraftID)

	if generated == nil {
		if draftID == "" {
			return nil, apperrors.Validation("recipe or draft_id is required")
		}
		draft, err := s.drafts.GetDraft(ctx, draftID)
		if err != nil {
			if appErr, ok := apperrors.As(err); ok {
				return nil, appErr
			}
			return nil, apperrors.Infrastructure(err, "load draft")
		}
		if draft.UserID != userID {
			return nil, apperrors.ErrDraftNotFound
		}
		generated = &draft.Recipe
	}

	status := model.StatusPublished
	message := "Recipe saved successfully"
	if req.SaveAsDraft {
		status = model.StatusDraft
		message = "Recipe saved as draft"
	}

	recipe, err := s.recipes.CreateRecipe(ctx, toCreateRequest(generated, status), userID)
	if err != nil {
		return nil, err
	}

	if draftID != "" {
		if err := s.drafts.DeleteDraft(ctx, draftID); err != nil {
			s.logger.WarnContext(ctx, "failed to delete saved draft", "draft_id", draftID, "error", err)
		}
	}

	return &types.SaveRecipeResponse{
		Success:  true,
		RecipeID: recipe.ID,
		Message:  message,
	}, nil
}

// AnalyzeNutrition estimates nutrition for an ingredient list or free text. Identical requests
// arriving close together share one provider call.
func (s *AIService) AnalyzeNutrition(ctx context.Context, req *types.NutritionAnalysisRequest) (*types.NutritionAnalysisResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	normalized := types.NutritionAnalysisRequest{
		Ingredients: compactStrings(req.Ingredients),
		Text:        strings.TrimSpace(req.Text),
	}
	if len(normalized.Ingredients) == 0 && normalized.Text == "" {
		return nil, apperrors.Validation("ingredients or text is required")
	}

	key, err := requestcache.Key("analyze_nutrition", normalized)
	if err != nil {
		return nil, apperrors.Infrastructure(err, "build cache key")
	}

	return requestcache.Fetch(ctx, s.cache, key, func(ctx context.Context) (*types.NutritionAnalysisResponse, error) {
		var prompt string
		if len(normalized.Ingredients) > 0 {
			prompt = "Analyze the nutrition of these ingredients:\n" + strings.Join(normalized.Ingredients, "\n")
		} else {
			prompt = "Analyze the nutrition of this meal:\n" + normalized.Text
		}

		content, err := s.provider.Complete(ctx, []Message{
			{Role: "system", Content: nutritionPrompt},
			{Role: "user", Content: prompt},
		}, preciseOptions)
		if err != nil {
			s.logger.ErrorContext(ctx, "nutrition analysis failed", "error", err)
			return nil, apperrors.Upstream(err)
		}

		resp, err := parseNutritionAnalysis(content)
		if err != nil {
			return nil, apperrors.Upstream(err)
		}
		return resp, nil
	})
}

// GetServiceStatus probes the provider. Failures yield a zeroed "unavailable" status, never an error.
func (s *AIService) GetServiceStatus(ctx context.Context) *types.AIServiceStatus {
	checkCtx, cancel := context.WithTimeout(ctx, statusCheckTimeout)
	defer cancel()

	if err := s.provider.Ping(checkCtx); err != nil {
		s.logger.WarnContext(ctx, "AI provider unavailable", "error", err)
		return &types.AIServiceStatus{
			Status:      types.AIStatusUnavailable,
			LastChecked: s.now().UTC(),
		}
	}

	status := &types.AIServiceStatus{
		Status: types.AIStatusOperational,
		Features: types.AIFeatures{
			RecipeGeneration:  true,
			RecipeEnhancement: true,
			NutritionAnalysis: true,
		},
		LastChecked: s.now().UTC(),
	}
	if reporter, ok := s.provider.(loadReporter); ok {
		active, limit := reporter.Load()
		status.ActiveRequests = active
		status.MaxConcurrentRequests = limit
		if limit > 0 {
			status.CurrentLoad = float64(active) / float64(limit)
		}
		if status.CurrentLoad >= degradedLoad {
			status.Status = types.AIStatusDegraded
		}
	}
	return status
}

// respondWithDraft caches the recipe for later saving. A draft store failure only costs the draft id.
func (s *AIService) respondWithDraft(ctx context.Context, userID uuid.UUID, recipe *types.GeneratedRecipe, changes []string) *types.RecipeResponse {
	resp := &types.RecipeResponse{
		Recipe:      *recipe,
		Changes:     changes,
		GeneratedAt: s.now().UTC(),
	}

	draft := &RecipeDraft{UserID: userID, Recipe: *recipe}
	if err := s.drafts.SaveDraft(ctx, draft); err != nil {
		s.logger.WarnContext(ctx, "failed to cache recipe draft", "error", err)
		return resp
	}
	resp.DraftID = draft.ID
	return resp
}

func validateGenerationRequest(req *types.RecipeGenerationRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	for _, pref := range req.DietaryPreference {
		if err := validateEnum("dietary_preference", pref, types.DietaryPreferences); err != nil {
			return err
		}
	}
	for _, taste := range req.TastePreferences {
		if err := validateEnum("taste_preferences", taste, types.TastePreferences); err != nil {
			return err
		}
	}
	if req.Difficulty != "" {
		if err := validateEnum("difficulty", req.Difficulty, model.Difficulties); err != nil {
			return err
		}
	}
	if req.MealType != "" {
		if err := validateEnum("meal_type", req.MealType, model.MealTypes); err != nil {
			return err
		}
	}
	if req.NutritionalGoal != nil {
		if err := validateStruct(req.NutritionalGoal); err != nil {
			return err
		}
	}
	return nil
}

func validateEnhancementRequest(req *types.RecipeEnhancementRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	if (req.RecipeID == nil) == (req.OriginalRecipe == nil) {
		return apperrors.Validation("exactly one of recipe_id or original_recipe is required")
	}
	if err := validateEnum("enhancement_type", req.EnhancementType, types.EnhancementTypes); err != nil {
		return err
	}
	switch req.EnhancementType {
	case types.EnhanceSubstituteIngredient:
		if strings.TrimSpace(req.SubstituteFrom) == "" || strings.TrimSpace(req.SubstituteTo) == "" {
			return apperrors.Validation("substitute_from and substitute_to are required for substitute_ingredient")
		}
	case types.EnhanceCustom:
		if strings.TrimSpace(req.CustomInstructions) == "" {
			return apperrors.Validation("custom_instructions is required for custom enhancement")
		}
	}
	return nil
}

func buildGenerationPrompt(req *types.RecipeGenerationRequest) string {
	var b strings.Builder
	if req.Title != "" {
		fmt.Fprintf(&b, "Generate a recipe for: %s.", req.Title)
	} else {
		b.WriteString("Generate a recipe.")
	}
	if len(req.Ingredients) > 0 {
		fmt.Fprintf(&b, " Use these ingredients: %s.", strings.Join(req.Ingredients, ", "))
	}
	if len(req.ExcludeIngredients) > 0 {
		fmt.Fprintf(&b, " Avoid using: %s.", strings.Join(req.ExcludeIngredients, ", "))
	}
	var diets []string
	for _, pref := range req.DietaryPreference {
		if pref != "none" {
			diets = append(diets, strings.ReplaceAll(pref, "_", "-"))
		}
	}
	if len(diets) > 0 {
		fmt.Fprintf(&b, " The recipe must be suitable for: %s.", strings.Join(diets, ", "))
	}
	if req.Cuisine != "" {
		fmt.Fprintf(&b, " Cuisine: %s.", req.Cuisine)
	}
	if req.MealType != "" {
		fmt.Fprintf(&b, " Meal type: %s.", req.MealType)
	}
	if req.Difficulty != "" {
		fmt.Fprintf(&b, " Difficulty: %s.", req.Difficulty)
	}
	if req.MaxPrepTime != nil {
		fmt.Fprintf(&b, " Preparation must take at most %d minutes.", *req.MaxPrepTime)
	}
	if req.MaxCookTime != nil {
		fmt.Fprintf(&b, " Cooking must take at most %d minutes.", *req.MaxCookTime)
	}
	if req.Servings > 0 {
		fmt.Fprintf(&b, " Servings: %d.", req.Servings)
	}
	if g := req.NutritionalGoal; g != nil {
		if g.MaxCalories != nil {
			fmt.Fprintf(&b, " At most %.0f calories per serving.", *g.MaxCalories)
		}
		if g.MinProtein != nil {
			fmt.Fprintf(&b, " At least %.0fg protein per serving.", *g.MinProtein)
		}
		if g.MaxCarbs != nil {
			fmt.Fprintf(&b, " At most %.0fg carbs per serving.", *g.MaxCarbs)
		}
		if g.MaxFat != nil {
			fmt.Fprintf(&b, " At most %.0fg fat per serving.", *g.MaxFat)
		}
	}
	if len(req.TastePreferences) > 0 {
		fmt.Fprintf(&b, " Taste profile: %s.", strings.Join(req.TastePreferences, ", "))
	}
	if req.SpecialRequest != "" {
		fmt.Fprintf(&b, " Special request: %s", req.SpecialRequest)
	}
	return b.String()
}

func enhancementInstruction(req *types.RecipeEnhancementRequest) string {
	switch req.EnhancementType {
	case types.EnhanceMoreHealthy:
		return "Make this recipe healthier: reduce saturated fat, sugar and sodium while keeping its character."
	case types.EnhanceMoreFlavorful:
		return "Make this recipe more flavorful using herbs, spices, aromatics or technique."
	case types.EnhanceReduceTime:
		return "Reduce the total preparation and cooking time of this recipe."
	case types.EnhanceIncreaseYield:
		return "Scale this recipe up to serve more people, adjusting quantities and times."
	case types.EnhanceSubstituteIngredient:
		return fmt.Sprintf("Replace %s with %s in this recipe and adjust the method accordingly.",
			strings.TrimSpace(req.SubstituteFrom), strings.TrimSpace(req.SubstituteTo))
	default:
		return "Modify this recipe as follows: " + strings.TrimSpace(req.CustomInstructions)
	}
}
