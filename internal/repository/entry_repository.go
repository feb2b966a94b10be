package repository

import (
	"context"

	"food-diary/internal/domain/entity"
)

// EntryRepository persists food-diary entries. Every read is scoped to the
// owning user; an entry of another user is reported as entity.ErrNotFound.
type EntryRepository interface {
	Create(ctx context.Context, entry *entity.FoodEntry) error
	Get(ctx context.Context, userID string, id int64) (*entity.FoodEntry, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*entity.FoodEntry, error)
	AttachImage(ctx context.Context, userID string, id int64, imageKey string) error
}
