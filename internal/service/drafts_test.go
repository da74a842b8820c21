package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/recipe-assistant/backend/internal/apperrors"
	"github.com/pageza/recipe-assistant/backend/internal/types"
)

func exerciseDraftStore(t *testing.T, store DraftStore) {
	ctx := context.Background()
	userID := uuid.New()

	draft := &RecipeDraft{UserID: userID, Recipe: types.GeneratedRecipe{Title: "Test Recipe"}}
	require.NoError(t, store.SaveDraft(ctx, draft))
	require.NotEmpty(t, draft.ID)
	assert.False(t, draft.CreatedAt.IsZero())

	got, err := store.GetDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, "Test Recipe", got.Recipe.Title)

	// Re-saving keeps the id
	id := draft.ID
	draft.Recipe.Title = "Renamed"
	require.NoError(t, store.SaveDraft(ctx, draft))
	assert.Equal(t, id, draft.ID)
	got, err = store.GetDraft(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Recipe.Title)

	require.NoError(t, store.DeleteDraft(ctx, id))
	_, err = store.GetDraft(ctx, id)
	assert.ErrorIs(t, err, apperrors.ErrDraftNotFound)
}

func TestMemoryDraftStore(t *testing.T) {
	exerciseDraftStore(t, NewMemoryDraftStore())
}

func TestMemoryDraftStoreExpiry(t *testing.T) {
	store := NewMemoryDraftStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	draft := &RecipeDraft{UserID: uuid.New()}
	require.NoError(t, store.SaveDraft(context.Background(), draft))

	now = now.Add(DraftTTL - time.Second)
	_, err := store.GetDraft(context.Background(), draft.ID)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = store.GetDraft(context.Background(), draft.ID)
	assert.ErrorIs(t, err, apperrors.ErrDraftNotFound)
}

func TestRedisDraftStore(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("Skipping Redis-dependent test - REDIS_URL not set")
	}
	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	store := NewRedisDraftStore(client)
	exerciseDraftStore(t, store)

	draft := &RecipeDraft{UserID: uuid.New()}
	require.NoError(t, store.SaveDraft(context.Background(), draft))
	ttl, err := client.TTL(context.Background(), draftKey(draft.ID)).Result()
	require.NoError(t, err)
	assert.InDelta(t, DraftTTL.Seconds(), ttl.Seconds(), 5)
}
