package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
)

// Difficulty levels, ranked easy < medium < hard
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Meal types
const (
	MealBreakfast = "breakfast"
	MealLunch     = "lunch"
	MealDinner    = "dinner"
	MealSnack     = "snack"
	MealDessert   = "dessert"
)

// Recipe statuses
const (
	StatusPublished = "published"
	StatusDraft     = "draft"
)

var (
	Difficulties = []string{DifficultyEasy, DifficultyMedium, DifficultyHard}
	MealTypes    = []string{MealBreakfast, MealLunch, MealDinner, MealSnack, MealDessert}
)

// DifficultyRank orders difficulties for sorting. Unknown values rank last.
func DifficultyRank(d string) int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyMedium:
		return 2
	case DifficultyHard:
		return 3
	default:
		return 4
	}
}

// Ingredient is one line of a recipe's ingredient list
type Ingredient struct {
	Name     string   `json:"name"`
	Quantity Quantity `json:"quantity"`
	Unit     string   `json:"unit"`
	Notes    string   `json:"notes,omitempty"`
}

// CookingStep is one numbered instruction
type CookingStep struct {
	StepNumber  int    `json:"step_number"`
	Description string `json:"description"`
	Duration    *int   `json:"duration,omitempty"`
}

// Quantity accepts both "1/2" and 0.5 on input and always serialises as a string
type Quantity string

func (q *Quantity) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*q = Quantity(fmt.Sprintf("%g", num))
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("invalid quantity format")
	}
	*q = Quantity(str)
	return nil
}

// IngredientList is stored as a JSON array column
type IngredientList []Ingredient

// Value implements the driver.Valuer interface
func (l IngredientList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

// Scan implements the sql.Scanner interface
func (l *IngredientList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// StepList is stored as a JSON array column
type StepList []CookingStep

// Value implements the driver.Valuer interface
func (l StepList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

// Scan implements the sql.Scanner interface
func (l *StepList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// StringList is a JSON string array column (equipment, tips, diet preferences)
type StringList []string

// Value implements the driver.Valuer interface
func (a StringList) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	return string(b), err
}

// Scan implements the sql.Scanner interface
func (a *StringList) Scan(value interface{}) error {
	return scanJSON(value, a)
}

func scanJSON(value interface{}, dest interface{}) error {
	var bytes []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
	if len(bytes) == 0 {
		return nil
	}
	return json.Unmarshal(bytes, dest)
}

type Recipe struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	Title         string           `gorm:"size:255;not null;index" json:"title"`
	Description   string           `gorm:"type:text" json:"description"`
	Ingredients   IngredientList   `gorm:"type:jsonb;not null" json:"ingredients"`
	CookingSteps  StepList         `gorm:"type:jsonb;not null" json:"cooking_steps"`
	PrepTime      int              `gorm:"not null;default:0" json:"prep_time"`
	CookTime      int              `gorm:"not null;default:0" json:"cook_time"`
	Servings      int              `gorm:"not null;default:1" json:"servings"`
	Difficulty    string           `gorm:"size:10;not null;index" json:"difficulty"`
	Cuisine       string           `gorm:"size:50" json:"cuisine,omitempty"`
	MealType      string           `gorm:"size:20" json:"meal_type,omitempty"`
	NutritionInfo NutritionInfo    `gorm:"embedded;embeddedPrefix:nutrition_" json:"nutrition_info"`
	ImageURL      string           `gorm:"size:255" json:"image_url,omitempty"`
	Equipment     StringList       `gorm:"type:jsonb" json:"equipment,omitempty"`
	Tips          StringList       `gorm:"type:jsonb" json:"tips,omitempty"`
	Status        string           `gorm:"size:20;not null;default:'published';index" json:"status"`
	AIGenerated   bool             `gorm:"not null;default:false" json:"ai_generated"`
	AuthorID      uuid.UUID        `gorm:"type:uuid;not null;index" json:"author_id"`
	Embedding     *pgvector.Vector `gorm:"type:vector(64)" json:"-"`

	// Derived on read
	Tags          []string `gorm:"-" json:"tags"`
	AverageRating float64  `gorm:"-" json:"average_rating"`
	RatingCount   int64    `gorm:"-" json:"rating_count"`
}

// TotalTime is prep plus cook minutes
func (r *Recipe) TotalTime() int {
	return r.PrepTime + r.CookTime
}

// MaxTagLength matches the size of RecipeTag.Tag
const MaxTagLength = 50

// RecipeTag backs the tag set of a recipe
type RecipeTag struct {
	RecipeID uuid.UUID `gorm:"type:uuid;primaryKey" json:"recipe_id"`
	Tag      string    `gorm:"size:50;primaryKey;index" json:"tag"`
}

func (RecipeTag) TableName() string {
	return "recipe_tags"
}
