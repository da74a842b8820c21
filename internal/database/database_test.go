package database_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pageza/recipe-assistant/backend/config"
	"github.com/pageza/recipe-assistant/backend/internal/database"
	"github.com/pageza/recipe-assistant/backend/internal/logging"
	"github.com/pageza/recipe-assistant/backend/internal/model"
	"github.com/pageza/recipe-assistant/backend/internal/testhelpers"
)

func TestMigrateSQLite(t *testing.T) {
	db := testhelpers.NewSQLiteDB(t)

	for _, table := range []string{"users", "recipes", "recipe_tags", "favorites", "ratings"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	// Running twice is a no-op
	require.NoError(t, database.Migrate(db))
}

func TestRecipeEmbeddingColumn(t *testing.T) {
	db := testhelpers.NewSQLiteDB(t)
	author := testhelpers.CreateUser(t, db)

	// Recipes written without an embedding store NULL and still load
	plain := testhelpers.CreateRecipe(t, db, author.ID)
	var loaded model.Recipe
	require.NoError(t, db.First(&loaded, "id = ?", plain.ID).Error)
	assert.Nil(t, loaded.Embedding)

	values := make([]float32, 64)
	values[3] = 1
	vec := pgvector.NewVector(values)
	embedded := testhelpers.CreateRecipe(t, db, author.ID, func(r *model.Recipe) { r.Embedding = &vec })

	loaded = model.Recipe{}
	require.NoError(t, db.First(&loaded, "id = ?", embedded.ID).Error)
	require.NotNil(t, loaded.Embedding)
	assert.Equal(t, values, loaded.Embedding.Slice())
}

func TestGormLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.Background()
	fc := func() (string, int64) { return "SELECT 1", 1 }

	quiet := database.NewGormLogger(base, false)

	quiet.Trace(ctx, time.Now(), fc, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String(), "record not found is not an error")

	quiet.Trace(ctx, time.Now(), fc, nil)
	assert.Empty(t, buf.String(), "fast queries are not logged at warn level")

	quiet.Trace(ctx, time.Now(), fc, errors.New("boom"))
	assert.Contains(t, buf.String(), "query failed")
	assert.Contains(t, buf.String(), "boom")
	buf.Reset()

	quiet.Trace(ctx, time.Now().Add(-time.Second), fc, nil)
	assert.Contains(t, buf.String(), "slow query")
	buf.Reset()

	verbose := database.NewGormLogger(base, true)
	verbose.Trace(ctx, time.Now(), fc, nil)
	assert.Contains(t, buf.String(), "SELECT 1")
	buf.Reset()

	quiet.LogMode(logger.Silent).Trace(ctx, time.Now(), fc, errors.New("boom"))
	assert.Empty(t, buf.String())
}

func TestNewRedisClientUnset(t *testing.T) {
	client, err := database.NewRedisClient(&config.Config{}, logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestPostgres(t *testing.T) {
	pg := testhelpers.SetupPostgres(t)

	cfg := &config.Config{
		DBHost:     pg.Host,
		DBPort:     pg.Port,
		DBUser:     pg.User,
		DBPassword: pg.Password,
		DBName:     pg.Name,
		DBMaxConns: 4,
		DBMinConns: 1,
	}

	t.Run("gorm pool", func(t *testing.T) {
		db, err := database.OpenGorm(cfg, logging.Discard())
		require.NoError(t, err)
		defer database.Close(db)

		require.NoError(t, database.Migrate(db))

		var ext string
		require.NoError(t, db.Raw("SELECT extname FROM pg_extension WHERE extname = 'vector'").Scan(&ext).Error)
		assert.Equal(t, "vector", ext)
	})

	t.Run("direct handle", func(t *testing.T) {
		direct, err := database.New(cfg, logging.Discard())
		require.NoError(t, err)
		defer direct.Close()
		assert.NoError(t, direct.HealthCheck(context.Background()))
	})
}
