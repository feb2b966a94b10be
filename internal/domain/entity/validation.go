package entity

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"food-diary/pkg/security/validation"
)

const (
	// MaxFoodNameLength bounds FoodName in characters.
	MaxFoodNameLength = 200

	// MaxNotesLength bounds Notes in characters.
	MaxNotesLength = 2000

	// MaxCalories rejects obviously mistyped values.
	MaxCalories = 20000

	// futureTolerance allows small client clock skew on EatenAt.
	futureTolerance = 24 * time.Hour
)

// Validate checks the business rules of a sanitized entry and returns every
// failure. now is the reference time for the EatenAt check.
func (e *FoodEntry) Validate(now time.Time) validation.Errors {
	var errs validation.Errors

	name := strings.TrimSpace(e.FoodName)
	switch {
	case name == "":
		errs.Add("food_name", "food_name is required")
	case utf8.RuneCountInString(name) > MaxFoodNameLength:
		errs.Add("food_name", fmt.Sprintf("food_name is too long (max %d characters)", MaxFoodNameLength))
	}

	if utf8.RuneCountInString(e.Notes) > MaxNotesLength {
		errs.Add("notes", fmt.Sprintf("notes is too long (max %d characters)", MaxNotesLength))
	}

	if !e.MealType.IsValid() {
		errs.Add("meal_type", "meal_type must be one of breakfast, lunch, dinner, snack")
	}

	if e.Calories != nil && (*e.Calories < 0 || *e.Calories > MaxCalories) {
		errs.Add("calories", fmt.Sprintf("calories must be between 0 and %d", MaxCalories))
	}

	switch {
	case e.EatenAt.IsZero():
		errs.Add("eaten_at", "eaten_at is required")
	case e.EatenAt.After(now.Add(futureTolerance)):
		errs.Add("eaten_at", "eaten_at cannot be in the future")
	}

	return errs
}
