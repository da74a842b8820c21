package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/pageza/recipe-assistant/backend/config"
	"github.com/pageza/recipe-assistant/backend/internal/apperrors"
	"github.com/pageza/recipe-assistant/backend/internal/database"
	"github.com/pageza/recipe-assistant/backend/internal/logging"
	"github.com/pageza/recipe-assistant/backend/internal/model"
	"github.com/pageza/recipe-assistant/backend/internal/requestcache"
	"github.com/pageza/recipe-assistant/backend/internal/service"
	"github.com/pageza/recipe-assistant/backend/internal/types"
)

const seedPassword = "testpassword123"

var testUsers = []types.RegisterRequest{
	{Username: "johndoe", Email: "john.doe@example.com", DisplayName: "John Doe", DietPreferences: []string{"vegetarian"}},
	{Username: "janesmith", Email: "jane.smith@example.com", DisplayName: "Jane Smith"},
	{Username: "bobwilson", Email: "bob.wilson@example.com", DisplayName: "Bob Wilson", DietPreferences: []string{"keto"}},
	{Username: "alicecooper", Email: "alice.cooper@example.com", DisplayName: "Alice Cooper", DietPreferences: []string{"vegan", "gluten_free"}},
	{Username: "admin", Email: "admin@example.com", DisplayName: "Admin User"},
}

var recipePrompts = []types.RecipeGenerationRequest{
	{Cuisine: "italian", MealType: model.MealDinner, SpecialRequest: "A traditional pasta with a unique twist"},
	{DietaryPreference: types.DietaryPreferenceList{"vegan"}, MealType: model.MealLunch, SpecialRequest: "A salad with seasonal ingredients"},
	{MealType: model.MealBreakfast, Difficulty: model.DifficultyEasy, SpecialRequest: "A quick protein smoothie"},
	{Cuisine: "indian", MealType: model.MealDinner, TastePreferences: []string{"spicy"}},
	{Cuisine: "french", MealType: model.MealDessert, Difficulty: model.DifficultyHard},
	{DietaryPreference: types.DietaryPreferenceList{"gluten_free"}, SpecialRequest: "Bread with alternative flours"},
	{DietaryPreference: types.DietaryPreferenceList{"keto", "high_protein"}, MealType: model.MealDinner},
	{Cuisine: "mediterranean", Ingredients: []string{"shrimp", "lemon", "parsley"}},
	{Cuisine: "thai", MealType: model.MealLunch, SpecialRequest: "A soup with bold flavors"},
	{MealType: model.MealSnack, SpecialRequest: "Uses only pantry staples"},
}

// seed creates test accounts and, with -recipes, AI-generated recipes owned by the first account
func main() {
	seedUsers := flag.Bool("users", true, "Create test users")
	numRecipes := flag.Int("recipes", 0, "Number of recipes to generate")
	parallel := flag.Int("parallel", 3, "Concurrent generation requests")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.OpenGorm(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	auth := service.NewAuthService(db, cfg.JWTSecret, cfg.JWTExpiry)

	if *seedUsers {
		createUsers(ctx, auth, logger)
	}

	if *numRecipes > 0 {
		owner, err := auth.Login(ctx, &types.LoginRequest{Email: testUsers[0].Email, Password: seedPassword})
		if err != nil {
			log.Fatalf("Seed owner %s is missing, run with -users: %v", testUsers[0].Email, err)
		}

		provider := service.NewLLMService(service.LLMConfig{
			APIKey:        cfg.AIAPIKey,
			APIURL:        cfg.AIAPIURL,
			Model:         cfg.AIModel,
			Timeout:       cfg.AITimeout,
			MaxConcurrent: workerLimit(*parallel),
		}, logger)
		recipes := service.NewRecipeService(db, service.NewEmbeddingService())
		ai := service.NewAIService(provider, service.NewMemoryDraftStore(), recipes, requestcache.New(), logger)

		created := generateRecipes(ctx, ai, owner.User, *numRecipes, *parallel, logger)
		logger.Info("recipe seeding finished", "requested", *numRecipes, "created", created)
	}

	if ctx.Err() != nil {
		os.Exit(1)
	}
}

func createUsers(ctx context.Context, auth *service.AuthService, logger *slog.Logger) {
	for _, u := range testUsers {
		req := u
		req.Password = seedPassword
		if _, err := auth.Register(ctx, &req); err != nil {
			if errors.Is(err, apperrors.ErrAlreadyExists) {
				logger.Info("user already exists, skipping", "email", u.Email)
				continue
			}
			logger.Error("failed to create user", "email", u.Email, "error", err)
			continue
		}
		logger.Info("created user", "email", u.Email)
	}
}

func generateRecipes(ctx context.Context, ai *service.AIService, owner *model.User, n, parallel int, logger *slog.Logger) int {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workerLimit(parallel))

	results := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		req := recipePrompts[i%len(recipePrompts)]
		req.SpecialRequest += " Make it different from any previous recipe."
		g.Go(func() error {
			resp, err := ai.GenerateRecipe(ctx, owner.ID, &req)
			if err != nil {
				// One bad generation should not stop the batch
				logger.Warn("generation failed", "error", err)
				return nil
			}
			saved, err := ai.SaveGeneratedRecipe(ctx, owner.ID, &types.SaveRecipeRequest{DraftID: resp.DraftID, Recipe: &resp.Recipe})
			if err != nil {
				logger.Warn("save failed", "title", resp.Recipe.Title, "error", err)
				return nil
			}
			logger.Info("created recipe", "title", resp.Recipe.Title, "id", saved.RecipeID)
			results <- struct{}{}
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	return len(results)
}

// workerLimit keeps at least one generation in flight. errgroup blocks every Go call on a zero limit.
func workerLimit(parallel int) int {
	if parallel < 1 {
		return 1
	}
	return parallel
}
