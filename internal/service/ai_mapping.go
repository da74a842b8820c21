package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pageza/recipe-assistant/backend/internal/model"
	"github.com/pageza/recipe-assistant/backend/internal/types"
)

// flexInt accepts 30, 30.0, "30" or "30 minutes"
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexInt(num)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*f = flexInt(leadingNumber(str))
		return nil
	}

	if string(data) == "null" {
		*f = 0
		return nil
	}
	return fmt.Errorf("invalid integer format: %s", string(data))
}

// flexFloat accepts 12.5, "12.5" or "12.5 g"
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat(num)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*f = flexFloat(leadingNumber(str))
		return nil
	}

	if string(data) == "null" {
		*f = 0
		return nil
	}
	return fmt.Errorf("invalid number format: %s", string(data))
}

func leadingNumber(s string) float64 {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
		end++
	}
	n, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return n
}

// providerIngredient accepts either "2 cups flour" or an object
type providerIngredient struct {
	model.Ingredient
}

func (p *providerIngredient) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		p.Ingredient = model.Ingredient{Name: strings.TrimSpace(str)}
		return nil
	}
	return json.Unmarshal(data, &p.Ingredient)
}

// providerStep accepts either "Mix the flour" or an object
type providerStep struct {
	Description string
	Duration    *int
}

func (p *providerStep) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		p.Description = strings.TrimSpace(str)
		return nil
	}

	var obj struct {
		Description string   `json:"description"`
		Instruction string   `json:"instruction"`
		Duration    *flexInt `json:"duration"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	p.Description = strings.TrimSpace(obj.Description)
	if p.Description == "" {
		p.Description = strings.TrimSpace(obj.Instruction)
	}
	if obj.Duration != nil {
		d := int(*obj.Duration)
		p.Duration = &d
	}
	return nil
}

type providerNutrition struct {
	Calories    flexFloat  `json:"calories"`
	Protein     flexFloat  `json:"protein"`
	Carbs       flexFloat  `json:"carbs"`
	Fat         flexFloat  `json:"fat"`
	Fiber       flexFloat  `json:"fiber"`
	Sugar       *flexFloat `json:"sugar"`
	Sodium      *flexFloat `json:"sodium"`
	Cholesterol *flexFloat `json:"cholesterol"`
}

// providerRecipe is the JSON object the provider is asked to return
type providerRecipe struct {
	Title         string               `json:"title"`
	Name          string               `json:"name"`
	Description   string               `json:"description"`
	Ingredients   []providerIngredient `json:"ingredients"`
	CookingSteps  []providerStep       `json:"cooking_steps"`
	Instructions  []providerStep       `json:"instructions"`
	PrepTime      flexInt              `json:"prep_time"`
	CookTime      flexInt              `json:"cook_time"`
	Servings      flexInt              `json:"servings"`
	Difficulty    string               `json:"difficulty"`
	Cuisine       string               `json:"cuisine"`
	MealType      string               `json:"meal_type"`
	NutritionInfo providerNutrition    `json:"nutrition_info"`
	Tags          []string             `json:"tags"`
	Equipment     []string             `json:"equipment"`
	Tips          []string             `json:"tips"`
	Changes       []string             `json:"changes"`
}

// parseProviderRecipe maps provider JSON into the internal recipe shape. Steps are renumbered
// from 1 in the order received and enum fields fall back to the supplied defaults.
func parseProviderRecipe(content, fallbackDifficulty, fallbackMealType string) (*types.GeneratedRecipe, []string, error) {
	var raw providerRecipe
	if err := json.Unmarshal([]byte(extractJSONObject(content)), &raw); err != nil {
		return nil, nil, fmt.Errorf("failed to parse recipe JSON: %w", err)
	}

	recipe := &types.GeneratedRecipe{
		Title:       strings.TrimSpace(raw.Title),
		Description: strings.TrimSpace(raw.Description),
		PrepTime:    nonNegative(int(raw.PrepTime)),
		CookTime:    nonNegative(int(raw.CookTime)),
		Servings:    int(raw.Servings),
		Cuisine:     strings.TrimSpace(raw.Cuisine),
		Tags:        normalizeTags(raw.Tags),
		Equipment:   compactStrings(raw.Equipment),
		Tips:        compactStrings(raw.Tips),
	}
	if recipe.Title == "" {
		recipe.Title = strings.TrimSpace(raw.Name)
	}
	if recipe.Title == "" {
		return nil, nil, fmt.Errorf("provider recipe has no title")
	}
	if recipe.Servings < 1 {
		recipe.Servings = 1
	}

	for _, ing := range raw.Ingredients {
		if ing.Name == "" {
			continue
		}
		recipe.Ingredients = append(recipe.Ingredients, ing.Ingredient)
	}
	if len(recipe.Ingredients) == 0 {
		return nil, nil, fmt.Errorf("provider recipe has no ingredients")
	}

	steps := raw.CookingSteps
	if len(steps) == 0 {
		steps = raw.Instructions
	}
	for _, step := range steps {
		if step.Description == "" {
			continue
		}
		recipe.CookingSteps = append(recipe.CookingSteps, model.CookingStep{
			StepNumber:  len(recipe.CookingSteps) + 1,
			Description: step.Description,
			Duration:    step.Duration,
		})
	}
	if len(recipe.CookingSteps) == 0 {
		return nil, nil, fmt.Errorf("provider recipe has no cooking steps")
	}

	recipe.Difficulty = normalizeEnum(raw.Difficulty, model.Difficulties, fallbackDifficulty)
	if recipe.Difficulty == "" {
		recipe.Difficulty = model.DifficultyMedium
	}
	recipe.MealType = normalizeEnum(raw.MealType, model.MealTypes, fallbackMealType)

	n := raw.NutritionInfo
	recipe.NutritionInfo = model.NutritionInfo{
		Calories:    float64(n.Calories),
		Protein:     float64(n.Protein),
		Carbs:       float64(n.Carbs),
		Fat:         float64(n.Fat),
		Fiber:       float64(n.Fiber),
		Sugar:       optionalFloat(n.Sugar),
		Sodium:      optionalFloat(n.Sodium),
		Cholesterol: optionalFloat(n.Cholesterol),
	}

	return recipe, compactStrings(raw.Changes), nil
}

type providerNutritionAnalysis struct {
	providerNutrition
	Summary      string `json:"summary"`
	HealthImpact struct {
		Balanced        bool     `json:"balanced"`
		Concerns        []string `json:"concerns"`
		Recommendations []string `json:"recommendations"`
	} `json:"health_impact"`
	SuitableDiets   []string            `json:"suitable_diets"`
	UnsuitableDiets []string            `json:"unsuitable_diets"`
	Substitutes     map[string][]string `json:"substitutes"`
}

func parseNutritionAnalysis(content string) (*types.NutritionAnalysisResponse, error) {
	var raw providerNutritionAnalysis
	if err := json.Unmarshal([]byte(extractJSONObject(content)), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse nutrition JSON: %w", err)
	}

	resp := &types.NutritionAnalysisResponse{
		Calories: float64(raw.Calories),
		Protein:  float64(raw.Protein),
		Carbs:    float64(raw.Carbs),
		Fat:      float64(raw.Fat),
		Fiber:    float64(raw.Fiber),
		Sugar:    optionalFloat(raw.Sugar),
		Sodium:   optionalFloat(raw.Sodium),
		Summary:  strings.TrimSpace(raw.Summary),
		HealthImpact: types.HealthImpact{
			Balanced:        raw.HealthImpact.Balanced,
			Concerns:        nonNilStrings(compactStrings(raw.HealthImpact.Concerns)),
			Recommendations: nonNilStrings(compactStrings(raw.HealthImpact.Recommendations)),
		},
		SuitableDiets:   nonNilStrings(compactStrings(raw.SuitableDiets)),
		UnsuitableDiets: nonNilStrings(compactStrings(raw.UnsuitableDiets)),
		Substitutes:     raw.Substitutes,
	}
	if resp.Substitutes == nil {
		resp.Substitutes = map[string][]string{}
	}
	return resp, nil
}

// toGeneratedRecipe snapshots a stored recipe in the AI layer's shape
func toGeneratedRecipe(r *model.Recipe) *types.GeneratedRecipe {
	return &types.GeneratedRecipe{
		Title:         r.Title,
		Description:   r.Description,
		Ingredients:   r.Ingredients,
		CookingSteps:  r.CookingSteps,
		PrepTime:      r.PrepTime,
		CookTime:      r.CookTime,
		Servings:      r.Servings,
		Difficulty:    r.Difficulty,
		Cuisine:       r.Cuisine,
		MealType:      r.MealType,
		NutritionInfo: r.NutritionInfo,
		Tags:          r.Tags,
		Equipment:     r.Equipment,
		Tips:          r.Tips,
	}
}

func toCreateRequest(g *types.GeneratedRecipe, status string) *types.CreateRecipeRequest {
	return &types.CreateRecipeRequest{
		Title:         g.Title,
		Description:   g.Description,
		Ingredients:   g.Ingredients,
		CookingSteps:  g.CookingSteps,
		PrepTime:      g.PrepTime,
		CookTime:      g.CookTime,
		Servings:      g.Servings,
		Difficulty:    g.Difficulty,
		Cuisine:       g.Cuisine,
		MealType:      g.MealType,
		NutritionInfo: g.NutritionInfo,
		Tags:          storableTags(g.Tags),
		Equipment:     g.Equipment,
		Tips:          g.Tips,
		Status:        status,
		AIGenerated:   true,
	}
}

// storableTags drops provider tags too long for the tag column
func storableTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if utf8.RuneCountInString(strings.TrimSpace(tag)) <= model.MaxTagLength {
			out = append(out, tag)
		}
	}
	return out
}

// extractJSONObject strips markdown fences some models wrap around JSON
func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return content
	}
	return content[start : end+1]
}

// normalizeEnum lowercases value and maps spaces and hyphens to underscores. Values outside
// allowed yield fallback.
func normalizeEnum(value string, allowed []string, fallback string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.NewReplacer(" ", "_", "-", "_").Replace(v)
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return fallback
}

func optionalFloat(f *flexFloat) *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func compactStrings(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
