package model

import (
	"time"

	"github.com/google/uuid"
)

// Favorite is a user's bookmark of a recipe. At most one per (user, recipe).
type Favorite struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_favorite_user_recipe" json:"user_id"`
	RecipeID  uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_favorite_user_recipe" json:"recipe_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Favorite) TableName() string {
	return "favorites"
}
