package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Rating is a user's 1-5 score for a recipe. A second rating from the same user replaces the first.
type Rating struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_rating_user_recipe" json:"user_id"`
	RecipeID  uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_rating_user_recipe" json:"recipe_id"`
	Rating    int       `gorm:"not null" json:"rating"`
	Comment   string    `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Rating) TableName() string {
	return "ratings"
}
