package api_test

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/recipe-assistant/backend/internal/apperrors"
	"github.com/pageza/recipe-assistant/backend/internal/middleware"
	"github.com/pageza/recipe-assistant/backend/internal/model"
	"github.com/pageza/recipe-assistant/backend/internal/testhelpers"
	"github.com/pageza/recipe-assistant/backend/internal/types"
)

func TestFavorites(t *testing.T) {
	env := setupTestEnv(t)
	token, _ := env.registerUser(t, "fan")
	author := testhelpers.CreateUser(t, env.db)
	easy := testhelpers.CreateRecipe(t, env.db, author.ID, testhelpers.WithTitle("Toast"), testhelpers.WithDifficulty(model.DifficultyEasy))
	hard := testhelpers.CreateRecipe(t, env.db, author.ID, testhelpers.WithTitle("Souffle"), testhelpers.WithDifficulty(model.DifficultyHard))

	favPath := func(id uuid.UUID) string { return "/api/v1/recipes/" + id.String() + "/favorite" }

	w := env.do(t, http.MethodPost, favPath(easy.ID), token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, favPath(easy.ID), token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	body := decode[middleware.ErrorResponse](t, w)
	assert.Equal(t, "Recipe already in favorites", body.Detail)
	assert.Equal(t, apperrors.CodeAlreadyFavorited, body.Code)

	w = env.do(t, http.MethodPost, favPath(uuid.New()), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, favPath(hard.ID), token, nil).Code)

	w = env.do(t, http.MethodGet, favPath(easy.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[types.FavoriteStatusResponse](t, w).IsFavorite)

	w = env.do(t, http.MethodGet, "/api/v1/users/favorites?sort_by=difficulty&sort_order=desc", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[types.RecipeListResponse](t, w)
	require.Len(t, list.Recipes, 2)
	assert.Equal(t, "Souffle", list.Recipes[0].Title)
	assert.Equal(t, "Toast", list.Recipes[1].Title)

	w = env.do(t, http.MethodGet, "/api/v1/users/favorites?sort_by=popularity", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/users/favorites?search=souf", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[types.RecipeListResponse](t, w).Total)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, favPath(easy.ID), token, nil).Code)
	w = env.do(t, http.MethodDelete, favPath(easy.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Favorite not found", decode[middleware.ErrorResponse](t, w).Detail)

	w = env.do(t, http.MethodGet, favPath(easy.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[types.FavoriteStatusResponse](t, w).IsFavorite)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/v1/users/favorites", "", nil).Code)
}
