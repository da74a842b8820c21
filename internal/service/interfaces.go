package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/pageza/recipe-assistant/backend/internal/model"
	"github.com/pageza/recipe-assistant/backend/internal/types"
)

// EmbeddingServiceInterface turns recipe text into a vector for similarity ordering
type EmbeddingServiceInterface interface {
	GenerateEmbedding(text string) (pgvector.Vector, error)
}

// LLMProvider sends one chat completion and returns the JSON content of the first choice
type LLMProvider interface {
	Complete(ctx context.Context, messages []Message, opts CompletionOptions) (string, error)
	Ping(ctx context.Context) error
}

// DraftStore caches generated recipes until they are saved
type DraftStore interface {
	SaveDraft(ctx context.Context, draft *RecipeDraft) error
	GetDraft(ctx context.Context, id string) (*RecipeDraft, error)
	DeleteDraft(ctx context.Context, id string) error
}

// IAuthService defines the interface for authentication operations
type IAuthService interface {
	Register(ctx context.Context, req *types.RegisterRequest) (*types.LoginResponse, error)
	Login(ctx context.Context, req *types.LoginRequest) (*types.LoginResponse, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*model.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req *types.UpdateProfileRequest) (*model.User, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, req *types.ChangePasswordRequest) error
	ValidateToken(token string) (*types.TokenClaims, error)
}

// IRecipeService defines the interface for recipe operations
type IRecipeService interface {
	CreateRecipe(ctx context.Context, req *types.CreateRecipeRequest, authorID uuid.UUID) (*model.Recipe, error)
	GetRecipe(ctx context.Context, id uuid.UUID, viewerID *uuid.UUID) (*model.Recipe, error)
	UpdateRecipe(ctx context.Context, id uuid.UUID, req *types.UpdateRecipeRequest, requesterID uuid.UUID) (*model.Recipe, error)
	DeleteRecipe(ctx context.Context, id uuid.UUID, requesterID uuid.UUID) error
	ListRecipes(ctx context.Context, page types.Page, tags []string) (*types.RecipeListResponse, error)
	SearchRecipes(ctx context.Context, params types.SearchParams) (*types.RecipeListResponse, error)
}

// IFavoriteService defines the interface for favorite operations
type IFavoriteService interface {
	AddFavorite(ctx context.Context, userID, recipeID uuid.UUID) (*model.Favorite, error)
	RemoveFavorite(ctx context.Context, userID, recipeID uuid.UUID) error
	IsFavorite(ctx context.Context, userID, recipeID uuid.UUID) (bool, error)
	ListFavorites(ctx context.Context, userID uuid.UUID, page types.Page, filters types.FavoriteFilters) (*types.RecipeListResponse, error)
}

// IRatingService defines the interface for rating operations
type IRatingService interface {
	RateRecipe(ctx context.Context, userID, recipeID uuid.UUID, req *types.RateRecipeRequest) (*model.Rating, error)
	ListRatings(ctx context.Context, recipeID uuid.UUID, viewerID *uuid.UUID, skip, limit int) ([]model.Rating, error)
}

// IAIService defines the interface for AI-assisted operations
type IAIService interface {
	GenerateRecipe(ctx context.Context, userID uuid.UUID, req *types.RecipeGenerationRequest) (*types.RecipeResponse, error)
	EnhanceRecipe(ctx context.Context, userID uuid.UUID, req *types.RecipeEnhancementRequest) (*types.RecipeResponse, error)
	SaveGeneratedRecipe(ctx context.Context, userID uuid.UUID, req *types.SaveRecipeRequest) (*types.SaveRecipeResponse, error)
	AnalyzeNutrition(ctx context.Context, req *types.NutritionAnalysisRequest) (*types.NutritionAnalysisResponse, error)
	GetServiceStatus(ctx context.Context) *types.AIServiceStatus
}

var (
	_ IAuthService     = (*AuthService)(nil)
	_ IRecipeService   = (*RecipeService)(nil)
	_ IFavoriteService = (*FavoriteService)(nil)
	_ IRatingService   = (*RatingService)(nil)
	_ IAIService       = (*AIService)(nil)
	_ LLMProvider      = (*LLMService)(nil)
	_ DraftStore       = (*RedisDraftStore)(nil)
	_ DraftStore       = (*MemoryDraftStore)(nil)
)
