package entry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"food-diary/internal/domain/entity"
	"food-diary/internal/observability/metrics"
	"food-diary/internal/repository"
	"food-diary/pkg/security/input"
	"food-diary/pkg/security/validation"
)

// CreateInput is the raw, untrusted entry submitted by a client.
type CreateInput struct {
	UserID   string
	FoodName string
	Notes    string
	MealType string
	Calories *int
	EatenAt  time.Time
}

// Service provides entry management use cases.
type Service struct {
	Repo repository.EntryRepository

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create screens free-text fields with the injection heuristic, sanitizes
// them, validates the result and persists it. Rejections are returned as
// validation.Errors listing every failed field.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.FoodEntry, error) {
	if in.UserID == "" {
		return nil, ErrUserRequired
	}

	var errs validation.Errors
	for _, f := range []struct{ name, value string }{
		{"food_name", in.FoodName},
		{"notes", in.Notes},
		{"meal_type", in.MealType},
	} {
		if v := input.CheckField(f.name, f.value); v != nil {
			metrics.RecordInputRejected(f.name)
			errs = append(errs, *v)
		}
	}
	if !errs.Empty() {
		return nil, errs
	}

	e := &entity.FoodEntry{
		UserID:   in.UserID,
		FoodName: sanitizeField("food_name", in.FoodName),
		Notes:    sanitizeField("notes", in.Notes),
		MealType: entity.MealType(in.MealType),
		Calories: in.Calories,
		EatenAt:  in.EatenAt.UTC(),
	}
	if errs := e.Validate(s.now()); !errs.Empty() {
		return nil, errs
	}

	if err := s.Repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}
	metrics.RecordEntryCreated()
	return e, nil
}

func sanitizeField(field, value string) string {
	clean := input.Sanitize(value)
	if clean != value {
		metrics.RecordInputSanitized(field)
	}
	return clean
}

// Get returns one entry owned by userID.
func (s *Service) Get(ctx context.Context, userID string, id int64) (*entity.FoodEntry, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	if id <= 0 {
		return nil, ErrInvalidEntryID
	}

	e, err := s.Repo.Get(ctx, userID, id)
	if errors.Is(err, entity.ErrNotFound) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// List returns the newest entries of userID.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]*entity.FoodEntry, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	entries, err := s.Repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// AttachImage links a stored photo to an entry owned by userID.
func (s *Service) AttachImage(ctx context.Context, userID string, id int64, imageKey string) error {
	if userID == "" {
		return ErrUserRequired
	}
	if id <= 0 {
		return ErrInvalidEntryID
	}
	err := s.Repo.AttachImage(ctx, userID, id, imageKey)
	if errors.Is(err, entity.ErrNotFound) {
		return ErrEntryNotFound
	}
	if err != nil {
		return fmt.Errorf("attach image: %w", err)
	}
	return nil
}
