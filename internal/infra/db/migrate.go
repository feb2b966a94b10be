package db

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS food_entries (
    id          BIGSERIAL PRIMARY KEY,
    user_id     TEXT NOT NULL,
    food_name   TEXT NOT NULL,
    notes       TEXT NOT NULL DEFAULT '',
    meal_type   VARCHAR(16) NOT NULL,
    calories    INTEGER,
    image_key   TEXT NOT NULL DEFAULT '',
    eaten_at    TIMESTAMPTZ NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT chk_meal_type CHECK (meal_type IN ('breakfast', 'lunch', 'dinner', 'snack'))
)`,
	// ListByUser: WHERE user_id = $1 ORDER BY eaten_at DESC
	`CREATE INDEX IF NOT EXISTS idx_food_entries_user_eaten_at ON food_entries(user_id, eaten_at DESC)`,
}

// MigrateUp creates the food_entries table and its indexes.
func MigrateUp(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}

// MigrateDown drops the schema. All entries are deleted.
func MigrateDown(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS food_entries CASCADE`); err != nil {
		return fmt.Errorf("drop food_entries: %w", err)
	}
	return nil
}
