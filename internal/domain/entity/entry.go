package entity

import "time"

// MealType classifies an entry within the day.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// IsValid reports whether m is one of the known meal types.
func (m MealType) IsValid() bool {
	switch m {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return true
	}
	return false
}

// FoodEntry is one food-diary record owned by a user.
// Text fields hold sanitized values; raw client input is never stored.
type FoodEntry struct {
	ID        int64
	UserID    string
	FoodName  string
	Notes     string
	MealType  MealType
	Calories  *int
	ImageKey  string
	EatenAt   time.Time
	CreatedAt time.Time
}
