package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/pageza/recipe-assistant/backend/internal/model"
)

// Models lists every table the application owns, in dependency order
var Models = []interface{}{
	&model.User{},
	&model.Recipe{},
	&model.RecipeTag{},
	&model.Favorite{},
	&model.Rating{},
}

// Migrate creates or updates the schema. On Postgres the pgvector extension is enabled first.
func Migrate(db *gorm.DB) error {
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("failed to enable pgvector: %w", err)
		}
	}

	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
