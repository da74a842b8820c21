package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Username        string     `gorm:"size:50;not null;uniqueIndex" json:"username"`
	Email           string     `gorm:"size:100;not null;uniqueIndex" json:"email"`
	Phone           string     `gorm:"size:30" json:"phone,omitempty"`
	DisplayName     string     `gorm:"size:100" json:"display_name,omitempty"`
	PasswordHash    string     `gorm:"not null" json:"-"`
	DietPreferences StringList `gorm:"type:jsonb" json:"diet_preferences"`
}
