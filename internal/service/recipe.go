package service

import (
	"context"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/recipe-assistant/backend/internal/apperrors"
	"github.com/pageza/recipe-assistant/backend/internal/model"
	"github.com/pageza/recipe-assistant/backend/internal/types"
)

// RecipeService handles recipe operations
type RecipeService struct {
	db               *gorm.DB
	embeddingService EmbeddingServiceInterface
}

// NewRecipeService creates a new RecipeService instance
func NewRecipeService(db *gorm.DB, embeddingService EmbeddingServiceInterface) *RecipeService {
	return &RecipeService{
		db:               db,
		embeddingService: embeddingService,
	}
}

// CreateRecipe validates and stores a new recipe owned by authorID
func (s *RecipeService) CreateRecipe(ctx context.Context, req *types.CreateRecipeRequest, authorID uuid.UUID) (*model.Recipe, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	recipe := &model.Recipe{
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		Ingredients:   req.Ingredients,
		CookingSteps:  req.CookingSteps,
		PrepTime:      req.PrepTime,
		CookTime:      req.CookTime,
		Servings:      req.Servings,
		Difficulty:    req.Difficulty,
		Cuisine:       req.Cuisine,
		MealType:      req.MealType,
		NutritionInfo: req.NutritionInfo,
		ImageURL:      req.ImageURL,
		Equipment:     req.Equipment,
		Tips:          req.Tips,
		Status:        req.Status,
		AIGenerated:   req.AIGenerated,
		AuthorID:      authorID,
	}
	if recipe.Status == "" {
		recipe.Status = model.StatusPublished
	}
	if recipe.Servings == 0 {
		recipe.Servings = 1
	}
	if err := validateRecipeContent(recipe); err != nil {
		return nil, err
	}
	if err := s.embed(recipe); err != nil {
		return nil, err
	}

	tags := normalizeTags(req.Tags)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(recipe).Error; err != nil {
			return err
		}
		return replaceTags(tx, recipe.ID, tags)
	})
	if err != nil {
		return nil, apperrors.Infrastructure(err, "create recipe")
	}

	recipe.Tags = tags
	return recipe, nil
}

// GetRecipe retrieves a recipe by ID. Drafts are only visible to their author.
func (s *RecipeService) GetRecipe(ctx context.Context, id uuid.UUID, viewerID *uuid.UUID) (*model.Recipe, error) {
	recipe, err := s.findRecipe(ctx, id)
	if err != nil {
		return nil, err
	}
	if recipe.Status == model.StatusDraft && (viewerID == nil || *viewerID != recipe.AuthorID) {
		return nil, apperrors.ErrRecipeNotFound
	}

	recipes := []model.Recipe{*recipe}
	if err := enrichRecipes(ctx, s.db, recipes); err != nil {
		return nil, err
	}
	return &recipes[0], nil
}

// UpdateRecipe applies a partial update. Only the author may update a recipe.
func (s *RecipeService) UpdateRecipe(ctx context.Context, id uuid.UUID, req *types.UpdateRecipeRequest, requesterID uuid.UUID) (*model.Recipe, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	recipe, err := s.findRecipe(ctx, id)
	if err != nil {
		return nil, err
	}
	if recipe.AuthorID != requesterID {
		return nil, apperrors.ErrForbidden
	}

	applyRecipePatch(recipe, req)
	if err := validateRecipeContent(recipe); err != nil {
		return nil, err
	}
	if err := s.embed(recipe); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(recipe).Error; err != nil {
			return err
		}
		if req.Tags != nil {
			return replaceTags(tx, recipe.ID, normalizeTags(req.Tags))
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Infrastructure(err, "update recipe")
	}

	recipes := []model.Recipe{*recipe}
	if err := enrichRecipes(ctx, s.db, recipes); err != nil {
		return nil, err
	}
	return &recipes[0], nil
}

// DeleteRecipe removes a recipe with its favorites, ratings and tags in one transaction
func (s *RecipeService) DeleteRecipe(ctx context.Context, id uuid.UUID, requesterID uuid.UUID) error {
	recipe, err := s.findRecipe(ctx, id)
	if err != nil {
		return err
	}
	if recipe.AuthorID != requesterID {
		return apperrors.ErrForbidden
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recipe_id = ?", id).Delete(&model.Favorite{}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", id).Delete(&model.Rating{}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", id).Delete(&model.RecipeTag{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Recipe{}, "id = ?", id).Error
	})
	if err != nil {
		return apperrors.Infrastructure(err, "delete recipe")
	}
	return nil
}

// ListRecipes pages through published recipes, newest first. A recipe matches the tag filter
// when it carries at least one of the requested tags; total counts the filtered set.
func (s *RecipeService) ListRecipes(ctx context.Context, page types.Page, tags []string) (*types.RecipeListResponse, error) {
	page = page.Normalize()
	tags = normalizeTags(tags)

	filter := func(db *gorm.DB) *gorm.DB {
		db = db.Model(&model.Recipe{}).Where("recipes.status = ?", model.StatusPublished)
		if len(tags) > 0 {
			db = db.Where("recipes.id IN (?)",
				s.db.Model(&model.RecipeTag{}).Select("recipe_id").Where("tag IN ?", tags))
		}
		return db
	}

	var total int64
	if err := filter(s.db.WithContext(ctx)).Count(&total).Error; err != nil {
		return nil, apperrors.Infrastructure(err, "count recipes")
	}

	var recipes []model.Recipe
	if err := filter(s.db.WithContext(ctx)).
		Order("recipes.created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&recipes).Error; err != nil {
		return nil, apperrors.Infrastructure(err, "list recipes")
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

// SearchRecipes filters published recipes by text, total cooking time and difficulty.
// Filters compose with AND.
func (s *RecipeService) SearchRecipes(ctx context.Context, params types.SearchParams) (*types.RecipeListResponse, error) {
	page := params.Page.Normalize()
	query := strings.ToLower(strings.TrimSpace(params.Query))

	if params.Difficulty != "" {
		if err := validateEnum("difficulty", params.Difficulty, model.Difficulties); err != nil {
			return nil, err
		}
	}
	if params.MaxCookingTime != nil && *params.MaxCookingTime < 0 {
		return nil, apperrors.Validation("max_cooking_time must be at least 0")
	}

	filter := func(db *gorm.DB) *gorm.DB {
		db = db.Model(&model.Recipe{}).Where("recipes.status = ?", model.StatusPublished)
		if query != "" {
			like := "%" + escapeLike(query) + "%"
			db = db.Where("(LOWER(recipes.title) LIKE ? ESCAPE '\\' OR LOWER(recipes.description) LIKE ? ESCAPE '\\')", like, like)
		}
		if params.MaxCookingTime != nil {
			db = db.Where("(recipes.prep_time + recipes.cook_time) <= ?", *params.MaxCookingTime)
		}
		if params.Difficulty != "" {
			db = db.Where("recipes.difficulty = ?", params.Difficulty)
		}
		return db
	}

	var total int64
	if err := filter(s.db.WithContext(ctx)).Count(&total).Error; err != nil {
		return nil, apperrors.Infrastructure(err, "count search results")
	}

	findQuery := filter(s.db.WithContext(ctx))
	if query != "" && s.db.Dialector.Name() == "postgres" {
		// Rank text matches by embedding distance
		vec, err := s.embeddingService.GenerateEmbedding(query)
		if err != nil {
			return nil, apperrors.Infrastructure(err, "embed search query")
		}
		findQuery = findQuery.Clauses(clause.OrderBy{
			Expression: clause.Expr{SQL: "recipes.embedding <-> ?", Vars: []interface{}{vec}},
		})
	} else {
		findQuery = findQuery.Order("recipes.created_at DESC")
	}

	var recipes []model.Recipe
	if err := findQuery.Offset(page.Offset()).Limit(page.Limit).Find(&recipes).Error; err != nil {
		return nil, apperrors.Infrastructure(err, "search recipes")
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

// ensureRecipeVisible fails with "Recipe not found" when the recipe is missing or is a draft
// that viewerID does not own. A nil viewer sees published recipes only.
func ensureRecipeVisible(ctx context.Context, db *gorm.DB, recipeID uuid.UUID, viewerID *uuid.UUID) error {
	var recipe model.Recipe
	err := db.WithContext(ctx).Select("id", "author_id", "status").First(&recipe, "id = ?", recipeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrRecipeNotFound
	}
	if err != nil {
		return apperrors.Infrastructure(err, "get recipe")
	}
	if recipe.Status == model.StatusDraft && (viewerID == nil || *viewerID != recipe.AuthorID) {
		return apperrors.ErrRecipeNotFound
	}
	return nil
}

func (s *RecipeService) findRecipe(ctx context.Context, id uuid.UUID) (*model.Recipe, error) {
	var recipe model.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRecipeNotFound
		}
		return nil, apperrors.Infrastructure(err, "get recipe")
	}
	return &recipe, nil
}

func (s *RecipeService) embed(recipe *model.Recipe) error {
	vec, err := s.embeddingService.GenerateEmbedding(recipeEmbeddingText(recipe.Title, recipe.Description))
	if err != nil {
		return apperrors.Infrastructure(err, "embed recipe")
	}
	recipe.Embedding = &vec
	return nil
}

func applyRecipePatch(recipe *model.Recipe, req *types.UpdateRecipeRequest) {
	if req.Title != nil {
		recipe.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		recipe.Description = *req.Description
	}
	if req.Ingredients != nil {
		recipe.Ingredients = req.Ingredients
	}
	if req.CookingSteps != nil {
		recipe.CookingSteps = req.CookingSteps
	}
	if req.PrepTime != nil {
		recipe.PrepTime = *req.PrepTime
	}
	if req.CookTime != nil {
		recipe.CookTime = *req.CookTime
	}
	if req.Servings != nil {
		recipe.Servings = *req.Servings
	}
	if req.Difficulty != nil {
		recipe.Difficulty = *req.Difficulty
	}
	if req.Cuisine != nil {
		recipe.Cuisine = *req.Cuisine
	}
	if req.MealType != nil {
		recipe.MealType = *req.MealType
	}
	if req.NutritionInfo != nil {
		recipe.NutritionInfo = *req.NutritionInfo
	}
	if req.ImageURL != nil {
		recipe.ImageURL = *req.ImageURL
	}
	if req.Equipment != nil {
		recipe.Equipment = req.Equipment
	}
	if req.Tips != nil {
		recipe.Tips = req.Tips
	}
	if req.Status != nil {
		recipe.Status = *req.Status
	}
}

func replaceTags(tx *gorm.DB, recipeID uuid.UUID, tags []string) error {
	if err := tx.Where("recipe_id = ?", recipeID).Delete(&model.RecipeTag{}).Error; err != nil {
		return err
	}
	if len(tags) == 0 {
		return nil
	}
	rows := make([]model.RecipeTag, len(tags))
	for i, tag := range tags {
		rows[i] = model.RecipeTag{RecipeID: recipeID, Tag: tag}
	}
	return tx.Create(&rows).Error
}

type ratingStats struct {
	RecipeID uuid.UUID
	Average  float64
	Count    int64
}

// enrichRecipes fills the derived fields: tags, average_rating and rating_count. Ratings are
// aggregated on every read and never stored on the recipe.
func enrichRecipes(ctx context.Context, db *gorm.DB, recipes []model.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(recipes))
	for i := range recipes {
		ids[i] = recipes[i].ID
	}

	var tagRows []model.RecipeTag
	if err := db.WithContext(ctx).Where("recipe_id IN ?", ids).Order("tag").Find(&tagRows).Error; err != nil {
		return apperrors.Infrastructure(err, "load recipe tags")
	}
	tagsByRecipe := make(map[uuid.UUID][]string, len(recipes))
	for _, row := range tagRows {
		tagsByRecipe[row.RecipeID] = append(tagsByRecipe[row.RecipeID], row.Tag)
	}

	var stats []ratingStats
	if err := db.WithContext(ctx).Model(&model.Rating{}).
		Select("recipe_id, AVG(rating) AS average, COUNT(*) AS count").
		Where("recipe_id IN ?", ids).
		Group("recipe_id").
		Scan(&stats).Error; err != nil {
		return apperrors.Infrastructure(err, "aggregate ratings")
	}
	statsByRecipe := make(map[uuid.UUID]ratingStats, len(stats))
	for _, st := range stats {
		statsByRecipe[st.RecipeID] = st
	}

	for i := range recipes {
		r := &recipes[i]
		r.Tags = tagsByRecipe[r.ID]
		if r.Tags == nil {
			r.Tags = []string{}
		}
		if st, ok := statsByRecipe[r.ID]; ok {
			r.AverageRating = roundRating(st.Average)
			r.RatingCount = st.Count
		}
	}
	return nil
}

func roundRating(avg float64) float64 {
	return math.Round(avg*10) / 10
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
