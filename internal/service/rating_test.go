package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/recipe-assistant/backend/internal/apperrors"
	"github.com/pageza/recipe-assistant/backend/internal/model"
	"github.com/pageza/recipe-assistant/backend/internal/service"
	"github.com/pageza/recipe-assistant/backend/internal/testhelpers"
	"github.com/pageza/recipe-assistant/backend/internal/types"
)

func TestRateRecipe(t *testing.T) {
	db := testhelpers.NewSQLiteDB(t)
	svc := service.NewRatingService(db)
	recipes := service.NewRecipeService(db, service.NewEmbeddingService())
	ctx := context.Background()

	author := testhelpers.CreateUser(t, db)
	recipe := testhelpers.CreateRecipe(t, db, author.ID)

	t.Run("second rating replaces the first", func(t *testing.T) {
		user := testhelpers.CreateUser(t, db)
		first, err := svc.RateRecipe(ctx, user.ID, recipe.ID, &types.RateRecipeRequest{Rating: 2, Comment: "meh"})
		require.NoError(t, err)

		second, err := svc.RateRecipe(ctx, user.ID, recipe.ID, &types.RateRecipeRequest{Rating: 5, Comment: "grew on me"})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 5, second.Rating)
		assert.Equal(t, "grew on me", second.Comment)

		var count int64
		require.NoError(t, db.Model(&model.Rating{}).Where("user_id = ?", user.ID).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("out of range", func(t *testing.T) {
		user := testhelpers.CreateUser(t, db)
		for _, score := range []int{0, 6, -1} {
			_, err := svc.RateRecipe(ctx, user.ID, recipe.ID, &types.RateRecipeRequest{Rating: score})
			assert.ErrorIs(t, err, apperrors.ErrValidation, "rating %d", score)
		}
	})

	t.Run("missing recipe", func(t *testing.T) {
		_, err := svc.RateRecipe(ctx, author.ID, uuid.New(), &types.RateRecipeRequest{Rating: 3})
		assert.ErrorIs(t, err, apperrors.ErrRecipeNotFound)
	})

	t.Run("average over distinct users", func(t *testing.T) {
		fresh := testhelpers.CreateRecipe(t, db, author.ID)
		for _, score := range []int{3, 4, 5} {
			rater := testhelpers.CreateUser(t, db)
			_, err := svc.RateRecipe(ctx, rater.ID, fresh.ID, &types.RateRecipeRequest{Rating: score})
			require.NoError(t, err)
		}

		got, err := recipes.GetRecipe(ctx, fresh.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, 4.0, got.AverageRating)
		assert.Equal(t, int64(3), got.RatingCount)
	})
}

func TestListRatings(t *testing.T) {
	db := testhelpers.NewSQLiteDB(t)
	svc := service.NewRatingService(db)
	ctx := context.Background()

	author := testhelpers.CreateUser(t, db)
	recipe := testhelpers.CreateRecipe(t, db, author.ID)

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		rater := testhelpers.CreateUser(t, db)
		require.NoError(t, db.Create(&model.Rating{
			UserID:    rater.ID,
			RecipeID:  recipe.ID,
			Rating:    i + 1,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}

	ratings, err := svc.ListRatings(ctx, recipe.ID, nil, 0, 10)
	require.NoError(t, err)
	require.Len(t, ratings, 4)
	assert.Equal(t, 4, ratings[0].Rating, "newest first")
	assert.Equal(t, 1, ratings[3].Rating)

	page, err := svc.ListRatings(ctx, recipe.ID, nil, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 3, page[0].Rating)

	_, err = svc.ListRatings(ctx, uuid.New(), nil, 0, 10)
	assert.ErrorIs(t, err, apperrors.ErrRecipeNotFound)
}

func TestRatingsOnDrafts(t *testing.T) {
	db := testhelpers.NewSQLiteDB(t)
	svc := service.NewRatingService(db)
	ctx := context.Background()

	author := testhelpers.CreateUser(t, db)
	other := testhelpers.CreateUser(t, db)
	draft := testhelpers.CreateRecipe(t, db, author.ID, testhelpers.WithStatus(model.StatusDraft))

	_, err := svc.RateRecipe(ctx, other.ID, draft.ID, &types.RateRecipeRequest{Rating: 5})
	assert.ErrorIs(t, err, apperrors.ErrRecipeNotFound)

	_, err = svc.RateRecipe(ctx, author.ID, draft.ID, &types.RateRecipeRequest{Rating: 4})
	require.NoError(t, err)

	_, err = svc.ListRatings(ctx, draft.ID, &other.ID, 0, 10)
	assert.ErrorIs(t, err, apperrors.ErrRecipeNotFound)
	_, err = svc.ListRatings(ctx, draft.ID, nil, 0, 10)
	assert.ErrorIs(t, err, apperrors.ErrRecipeNotFound)

	ratings, err := svc.ListRatings(ctx, draft.ID, &author.ID, 0, 10)
	require.NoError(t, err)
	assert.Len(t, ratings, 1)
}
