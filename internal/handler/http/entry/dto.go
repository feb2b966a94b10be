package entry

import (
	"time"

	"food-diary/internal/domain/entity"
)

// DTO is the JSON representation of a diary entry.
type DTO struct {
	ID        int64     `json:"id"`
	FoodName  string    `json:"food_name"`
	Notes     string    `json:"notes"`
	MealType  string    `json:"meal_type"`
	Calories  *int      `json:"calories,omitempty"`
	ImageKey  string    `json:"image_key,omitempty"`
	EatenAt   time.Time `json:"eaten_at"`
	CreatedAt time.Time `json:"created_at"`
}

func toDTO(e *entity.FoodEntry) DTO {
	return DTO{
		ID:        e.ID,
		FoodName:  e.FoodName,
		Notes:     e.Notes,
		MealType:  string(e.MealType),
		Calories:  e.Calories,
		ImageKey:  e.ImageKey,
		EatenAt:   e.EatenAt,
		CreatedAt: e.CreatedAt,
	}
}
