package model

// NutritionInfo represents nutrition information for a recipe, per serving.
type NutritionInfo struct {
	Calories    float64  `json:"calories"`
	Protein     float64  `json:"protein"`
	Carbs       float64  `json:"carbs"`
	Fat         float64  `json:"fat"`
	Fiber       float64  `json:"fiber"`
	Sugar       *float64 `json:"sugar,omitempty"`
	Sodium      *float64 `json:"sodium,omitempty"`
	Cholesterol *float64 `json:"cholesterol,omitempty"`
}
