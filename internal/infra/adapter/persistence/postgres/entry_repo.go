// Package postgres implements the repositories on Postgres. Every query is
// parameterised; user text never reaches the SQL string.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"food-diary/internal/domain/entity"
	"food-diary/internal/observability/metrics"
	"food-diary/internal/repository"
)

// Querier is satisfied by *sql.DB and *circuitbreaker.DBCircuitBreaker.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// MaxListLimit caps ListByUser.
const MaxListLimit = 100

type EntryRepo struct{ db Querier }

func NewEntryRepo(db Querier) repository.EntryRepository {
	return &EntryRepo{db: db}
}

const entryColumns = `id, user_id, food_name, notes, meal_type, calories, image_key, eaten_at, created_at`

func scanEntry(rows *sql.Rows) (*entity.FoodEntry, error) {
	var (
		e        entity.FoodEntry
		mealType string
		calories sql.NullInt64
	)
	if err := rows.Scan(
		&e.ID, &e.UserID, &e.FoodName, &e.Notes, &mealType,
		&calories, &e.ImageKey, &e.EatenAt, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	e.MealType = entity.MealType(mealType)
	if calories.Valid {
		c := int(calories.Int64)
		e.Calories = &c
	}
	return &e, nil
}

// Create inserts entry and fills in ID and CreatedAt.
// QueryContext is used rather than QueryRowContext so the circuit breaker sees failures.
func (repo *EntryRepo) Create(ctx context.Context, entry *entity.FoodEntry) error {
	const query = `
INSERT INTO food_entries (user_id, food_name, notes, meal_type, calories, image_key, eaten_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at`
	defer observe("insert_entry", time.Now())

	var calories interface{}
	if entry.Calories != nil {
		calories = *entry.Calories
	}

	rows, err := repo.db.QueryContext(ctx, query,
		entry.UserID, entry.FoodName, entry.Notes, string(entry.MealType),
		calories, entry.ImageKey, entry.EatenAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("Create: %w", err)
		}
		return fmt.Errorf("Create: no id returned")
	}
	if err := rows.Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return rows.Err()
}

// Get returns entity.ErrNotFound when the entry does not exist or belongs to another user.
func (repo *EntryRepo) Get(ctx context.Context, userID string, id int64) (*entity.FoodEntry, error) {
	query := `
SELECT ` + entryColumns + `
FROM food_entries
WHERE id = $1 AND user_id = $2
LIMIT 1`
	defer observe("get_entry", time.Now())

	rows, err := repo.db.QueryContext(ctx, query, id, userID)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("Get: %w", err)
		}
		return nil, entity.ErrNotFound
	}
	e, err := scanEntry(rows)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return e, nil
}

// ListByUser returns the newest entries first. limit is clamped to [1, MaxListLimit].
func (repo *EntryRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*entity.FoodEntry, error) {
	query := `
SELECT ` + entryColumns + `
FROM food_entries
WHERE user_id = $1
ORDER BY eaten_at DESC, id DESC
LIMIT $2`
	defer observe("list_entries", time.Now())

	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := repo.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]*entity.FoodEntry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByUser: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}
	return entries, nil
}

// AttachImage records the storage key of an uploaded photo.
func (repo *EntryRepo) AttachImage(ctx context.Context, userID string, id int64, imageKey string) error {
	const query = `UPDATE food_entries SET image_key = $1 WHERE id = $2 AND user_id = $3`
	defer observe("attach_image", time.Now())

	res, err := repo.db.ExecContext(ctx, query, imageKey, id, userID)
	if err != nil {
		return fmt.Errorf("AttachImage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("AttachImage: %w", err)
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func observe(operation string, start time.Time) {
	metrics.RecordDBQuery(operation, time.Since(start))
}
