package service

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/pageza/recipe-assistant/backend/internal/apperrors"
	"github.com/pageza/recipe-assistant/backend/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names so messages match what clients sent
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs struct tag validation and converts the first failure into a ValidationError
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		switch fe.Tag() {
		case "required":
			return apperrors.Validation(fmt.Sprintf("%s is required", fe.Field()))
		case "min", "gte":
			return apperrors.Validation(fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		case "max", "lte":
			return apperrors.Validation(fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param()))
		case "email":
			return apperrors.Validation(fmt.Sprintf("%s must be a valid email address", fe.Field()))
		default:
			return apperrors.Validation(fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return apperrors.Validation(err.Error())
}

func validateEnum(field, value string, allowed []string) error {
	if !slices.Contains(allowed, value) {
		return apperrors.Validation(fmt.Sprintf("%s must be one of %s", field, strings.Join(allowed, ", ")))
	}
	return nil
}

// validateRecipeContent checks the invariants every stored recipe must satisfy
func validateRecipeContent(r *model.Recipe) error {
	if strings.TrimSpace(r.Title) == "" {
		return apperrors.Validation("title is required")
	}
	if err := validateEnum("difficulty", r.Difficulty, model.Difficulties); err != nil {
		return err
	}
	if r.MealType != "" {
		if err := validateEnum("meal_type", r.MealType, model.MealTypes); err != nil {
			return err
		}
	}
	if err := validateEnum("status", r.Status, []string{model.StatusPublished, model.StatusDraft}); err != nil {
		return err
	}
	if len(r.Ingredients) == 0 {
		return apperrors.Validation("at least one ingredient is required")
	}
	for i, ing := range r.Ingredients {
		if strings.TrimSpace(ing.Name) == "" {
			return apperrors.Validation(fmt.Sprintf("ingredients[%d].name is required", i))
		}
	}
	return validateSteps(r.CookingSteps)
}

// validateSteps requires step numbers 1, 2, 3, ... in order
func validateSteps(steps []model.CookingStep) error {
	if len(steps) == 0 {
		return apperrors.Validation("at least one cooking step is required")
	}
	for i, step := range steps {
		if step.StepNumber != i+1 {
			return apperrors.Validation(fmt.Sprintf(
				"cooking_steps must be numbered sequentially from 1: position %d has step_number %d", i+1, step.StepNumber))
		}
		if strings.TrimSpace(step.Description) == "" {
			return apperrors.Validation(fmt.Sprintf("cooking_steps[%d].description is required", i))
		}
	}
	return nil
}

// normalizeTags trims, lowercases and de-duplicates tags, preserving first occurrence order
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
