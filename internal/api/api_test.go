package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pageza/recipe-assistant/backend/internal/api"
	"github.com/pageza/recipe-assistant/backend/internal/logging"
	"github.com/pageza/recipe-assistant/backend/internal/middleware"
	"github.com/pageza/recipe-assistant/backend/internal/model"
	"github.com/pageza/recipe-assistant/backend/internal/service"
	"github.com/pageza/recipe-assistant/backend/internal/testhelpers"
	"github.com/pageza/recipe-assistant/backend/internal/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testEnv is a router wired to real services over SQLite
type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	auth   *service.AuthService
	ai     *MockAIService
}

func setupTestEnv(t *testing.T, opts ...func(*api.Services)) *testEnv {
	t.Helper()
	db := testhelpers.NewSQLiteDB(t)
	authService := service.NewAuthService(db, "test-secret", time.Hour)
	recipeService := service.NewRecipeService(db, service.NewEmbeddingService())
	aiService := new(MockAIService)

	svc := api.Services{
		Auth:      authService,
		Recipes:   recipeService,
		Favorites: service.NewFavoriteService(db),
		Ratings:   service.NewRatingService(db),
		AI:        aiService,
	}
	for _, opt := range opts {
		opt(&svc)
	}

	router := gin.New()
	router.Use(middleware.ErrorHandler(logging.Discard()))
	api.SetupAPI(router, svc)

	return &testEnv{router: router, db: db, auth: authService, ai: aiService}
}

// registerUser creates an account through the API and returns its token and user
func (e *testEnv) registerUser(t *testing.T, username string) (string, *model.User) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/auth/register", "", types.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp types.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccessToken, resp.User
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func recipeBody(title string, tags ...string) map[string]any {
	return map[string]any{
		"title":       title,
		"description": "Tasty",
		"ingredients": []map[string]any{
			{"name": "rice", "quantity": "1", "unit": "cup"},
			{"name": "water", "quantity": "2", "unit": "cup"},
		},
		"cooking_steps": []map[string]any{
			{"step_number": 1, "description": "Rinse"},
			{"step_number": 2, "description": "Boil"},
		},
		"prep_time":  5,
		"cook_time":  20,
		"servings":   2,
		"difficulty": "easy",
		"meal_type":  "dinner",
		"tags":       tags,
	}
}
