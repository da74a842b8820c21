package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/recipe-assistant/backend/config"
	"github.com/pageza/recipe-assistant/backend/internal/database"
	"github.com/pageza/recipe-assistant/backend/internal/logging"
	"github.com/pageza/recipe-assistant/backend/internal/maintenance"
	"github.com/pageza/recipe-assistant/backend/internal/model"
	"github.com/pageza/recipe-assistant/backend/internal/server"
	"github.com/pageza/recipe-assistant/backend/internal/service"
	"github.com/pageza/recipe-assistant/backend/internal/testhelpers"
	"github.com/pageza/recipe-assistant/backend/internal/types"
)

const generatedRecipe = `{
	"title": "Lemon Garlic Shrimp",
	"description": "Quick weeknight shrimp",
	"ingredients": [
		{"name": "shrimp", "quantity": "500", "unit": "g"},
		{"name": "garlic", "quantity": "3", "unit": "clove"},
		{"name": "lemon", "quantity": "1", "unit": "whole"}
	],
	"cooking_steps": [
		{"step_number": 1, "description": "Saute garlic"},
		{"step_number": 2, "description": "Add shrimp and lemon"}
	],
	"prep_time": 10,
	"cook_time": 8,
	"servings": 2,
	"difficulty": "easy",
	"cuisine": "mediterranean",
	"nutrition_info": {"calories": 320, "protein": 40, "carbs": 6, "fat": 12},
	"tags": ["seafood", "quick"]
}`

// cannedProvider answers every completion with the same recipe
type cannedProvider struct{}

func (cannedProvider) Complete(ctx context.Context, messages []service.Message, opts service.CompletionOptions) (string, error) {
	return generatedRecipe, nil
}

func (cannedProvider) Ping(ctx context.Context) error { return nil }

type client struct {
	t       *testing.T
	handler http.Handler
}

func (c *client) do(method, path, token string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	return w
}

func (c *client) register(username string) string {
	c.t.Helper()
	w := c.do(http.MethodPost, "/api/v1/auth/register", "", types.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	require.Equal(c.t, http.StatusCreated, w.Code, w.Body.String())
	var resp types.LoginResponse
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccessToken
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func pgConfig(pg *testhelpers.PostgresContainer) *config.Config {
	return &config.Config{
		ServerHost:      "localhost",
		ServerPort:      "0",
		DBHost:          pg.Host,
		DBPort:          pg.Port,
		DBUser:          pg.User,
		DBPassword:      pg.Password,
		DBName:          pg.Name,
		JWTSecret:       "integration-secret",
		JWTExpiry:       time.Hour,
		AIRateLimitHour: 5,
		AITimeout:       5 * time.Second,
		CORSOrigins:     "http://localhost:5173",
	}
}

func TestRecipeLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	pg := testhelpers.SetupPostgres(t)
	cfg := pgConfig(pg)

	direct, err := database.New(cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { direct.Close() })
	monitor := maintenance.NewMonitor(direct.DB)

	srv := server.New(cfg, logging.Discard(), server.Dependencies{
		DB:       pg.DB,
		Provider: cannedProvider{},
		Stats:    monitor,
		Health:   direct,
	})
	c := &client{t: t, handler: srv.Handler()}

	w := c.do(http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	alice := c.register("alice")
	bob := c.register("bob")

	// Alice publishes a recipe by hand
	w = c.do(http.MethodPost, "/api/v1/recipes", alice, map[string]any{
		"title":         "Coconut Rice",
		"description":   "Fragrant rice cooked in coconut milk",
		"ingredients":   []map[string]any{{"name": "rice", "quantity": "1", "unit": "cup"}, {"name": "coconut milk", "quantity": "400", "unit": "ml"}},
		"cooking_steps": []map[string]any{{"step_number": 1, "description": "Rinse"}, {"step_number": 2, "description": "Simmer"}},
		"cook_time":     20,
		"difficulty":    "easy",
		"tags":          []string{"rice", "vegan"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rice := decode[model.Recipe](t, w)

	w = c.do(http.MethodGet, "/api/v1/recipes/search?query=coconut&max_cooking_time=30", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	found := decode[types.RecipeListResponse](t, w)
	require.Len(t, found.Recipes, 1)
	assert.Equal(t, rice.ID, found.Recipes[0].ID)

	// Bob favorites and rates it
	w = c.do(http.MethodPost, "/api/v1/recipes/"+rice.ID.String()+"/favorite", bob, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = c.do(http.MethodGet, "/api/v1/users/favorites", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	favorites := decode[types.RecipeListResponse](t, w)
	assert.Equal(t, int64(1), favorites.Total)

	w = c.do(http.MethodPost, "/api/v1/recipes/"+rice.ID.String()+"/rating", bob, types.RateRecipeRequest{Rating: 4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = c.do(http.MethodGet, "/api/v1/recipes/"+rice.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[model.Recipe](t, w)
	assert.InDelta(t, 4.0, got.AverageRating, 0.001)
	assert.Equal(t, int64(1), got.RatingCount)

	// Bob cannot edit Alice's recipe
	w = c.do(http.MethodPut, "/api/v1/recipes/"+rice.ID.String(), bob, map[string]any{"title": "Mine now"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Generate, then save the draft
	w = c.do(http.MethodPost, "/api/v1/ai/generate-recipe", bob, types.RecipeGenerationRequest{
		Cuisine:     "mediterranean",
		Ingredients: []string{"shrimp"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	generated := decode[types.RecipeResponse](t, w)
	require.NotEmpty(t, generated.DraftID)
	assert.Equal(t, "Lemon Garlic Shrimp", generated.Recipe.Title)

	w = c.do(http.MethodPost, "/api/v1/ai/save-generated-recipe", bob, types.SaveRecipeRequest{DraftID: generated.DraftID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	saved := decode[types.SaveRecipeResponse](t, w)

	w = c.do(http.MethodGet, "/api/v1/recipes/"+saved.RecipeID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	shrimp := decode[model.Recipe](t, w)
	assert.True(t, shrimp.AIGenerated)
	assert.ElementsMatch(t, []string{"seafood", "quick"}, []string(shrimp.Tags))

	// A draft id is single use
	w = c.do(http.MethodPost, "/api/v1/ai/save-generated-recipe", bob, types.SaveRecipeRequest{DraftID: generated.DraftID})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = c.do(http.MethodGet, "/api/v1/admin/db/stats", alice, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stats := decode[maintenance.DatabaseStats](t, w)
	assert.Positive(t, stats.Connections.Total)
}

func TestBackupAndRestore(t *testing.T) {
	for _, tool := range []string{"pg_dump", "psql", "gzip", "gunzip"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not installed", tool)
		}
	}
	// The container runs Postgres 16 and pg_dump refuses newer servers
	out, err := exec.Command("pg_dump", "--version").Output()
	if err != nil || pgMajor(string(out)) < 16 {
		t.Skipf("pg_dump 16+ required, have %q", strings.TrimSpace(string(out)))
	}
	pg := testhelpers.SetupPostgres(t)
	ctx := context.Background()

	author := testhelpers.CreateUser(t, pg.DB)
	testhelpers.CreateRecipe(t, pg.DB, author.ID)

	cfg := pgConfig(pg)
	cfg.BackupDir = t.TempDir()
	cfg.BackupRetention = 7
	cfg.CommandTimeout = time.Minute

	backups := maintenance.NewBackupService(maintenance.BackupConfigFromConfig(cfg), nil, nil, logging.Discard())

	path, err := backups.CreateBackup(ctx)
	require.NoError(t, err)

	list, err := backups.ListBackups()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, path, list[0].Path)
	assert.Positive(t, list[0].Size)

	// Drop the data and bring it back from the dump
	require.NoError(t, pg.DB.Exec("DROP SCHEMA public CASCADE; CREATE SCHEMA public").Error)
	require.NoError(t, backups.Restore(ctx, path))

	var count int64
	require.NoError(t, pg.DB.Model(&model.Recipe{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

// pgMajor extracts the major version from "pg_dump (PostgreSQL) 16.2"
func pgMajor(version string) int {
	for _, field := range strings.Fields(version) {
		major, _, _ := strings.Cut(field, ".")
		if n, err := strconv.Atoi(major); err == nil {
			return n
		}
	}
	return 0
}
