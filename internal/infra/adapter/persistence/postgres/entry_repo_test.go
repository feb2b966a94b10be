package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"food-diary/internal/domain/entity"
	"food-diary/internal/infra/adapter/persistence/postgres"
	"food-diary/internal/resilience/circuitbreaker"
)

/* ──────────────────────────────── helpers ──────────────────────────────── */

var columns = []string{
	"id", "user_id", "food_name", "notes", "meal_type",
	"calories", "image_key", "eaten_at", "created_at",
}

func row(rows *sqlmock.Rows, e *entity.FoodEntry) *sqlmock.Rows {
	var calories interface{}
	if e.Calories != nil {
		calories = int64(*e.Calories)
	}
	return rows.AddRow(
		e.ID, e.UserID, e.FoodName, e.Notes, string(e.MealType),
		calories, e.ImageKey, e.EatenAt, e.CreatedAt,
	)
}

func intPtr(v int) *int { return &v }

/* ──────────────────────────────── 1. Create ──────────────────────────────── */

func TestEntryRepo_Create(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	eaten := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	created := eaten.Add(time.Minute)
	// The payload stays a bind argument, never part of the statement text.
	payload := "oatmeal'; DROP TABLE food_entries; --"

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO food_entries (user_id, food_name, notes, meal_type, calories, image_key, eaten_at)`)).
		WithArgs("user-1", payload, "", "breakfast", 350, "", eaten).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), created))

	e := &entity.FoodEntry{
		UserID: "user-1", FoodName: payload, MealType: entity.MealBreakfast,
		Calories: intPtr(350), EatenAt: eaten,
	}
	repo := postgres.NewEntryRepo(db)
	if err := repo.Create(context.Background(), e); err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if e.ID != 42 || !e.CreatedAt.Equal(created) {
		t.Fatalf("Create did not fill id/created_at: %+v", e)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestEntryRepo_Create_NilCalories(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`INSERT INTO food_entries`).
		WithArgs("user-1", "tea", "", "snack", nil, "", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))

	repo := postgres.NewEntryRepo(db)
	err := repo.Create(context.Background(), &entity.FoodEntry{
		UserID: "user-1", FoodName: "tea", MealType: entity.MealSnack, EatenAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestEntryRepo_Create_Error(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	boom := errors.New("connection reset")
	mock.ExpectQuery(`INSERT INTO food_entries`).WillReturnError(boom)

	repo := postgres.NewEntryRepo(db)
	err := repo.Create(context.Background(), &entity.FoodEntry{UserID: "u", FoodName: "x", MealType: entity.MealLunch})
	if !errors.Is(err, boom) {
		t.Fatalf("want wrapped %v, got %v", boom, err)
	}
}

/* ──────────────────────────────── 2. Get ──────────────────────────────── */

func TestEntryRepo_Get(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := &entity.FoodEntry{
		ID: 7, UserID: "user-1", FoodName: "Ramen", Notes: "extra egg",
		MealType: entity.MealDinner, Calories: intPtr(900), ImageKey: "entries/7.jpg",
		EatenAt: now, CreatedAt: now,
	}

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE id = $1 AND user_id = $2`)).
		WithArgs(int64(7), "user-1").
		WillReturnRows(row(sqlmock.NewRows(columns), want))

	repo := postgres.NewEntryRepo(db)
	got, err := repo.Get(context.Background(), "user-1", 7)
	if err != nil {
		t.Fatalf("Get err=%v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestEntryRepo_Get_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`FROM food_entries`).
		WithArgs(int64(7), "someone-else").
		WillReturnRows(sqlmock.NewRows(columns))

	repo := postgres.NewEntryRepo(db)
	got, err := repo.Get(context.Background(), "someone-else", 7)
	if !errors.Is(err, entity.ErrNotFound) || got != nil {
		t.Fatalf("want ErrNotFound, got entry=%v err=%v", got, err)
	}
}

/* ──────────────────────────────── 3. ListByUser ──────────────────────────────── */

func TestEntryRepo_ListByUser(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := &entity.FoodEntry{ID: 2, UserID: "u", FoodName: "Salad", MealType: entity.MealLunch, EatenAt: now, CreatedAt: now}
	second := &entity.FoodEntry{ID: 1, UserID: "u", FoodName: "Toast", MealType: entity.MealBreakfast, EatenAt: now.Add(-4 * time.Hour), CreatedAt: now}

	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{"explicit limit", 20, 20},
		{"zero uses max", 0, postgres.MaxListLimit},
		{"above max is clamped", 1000, postgres.MaxListLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, _ := sqlmock.New()
			defer func() { _ = db.Close() }()

			rows := row(row(sqlmock.NewRows(columns), first), second)
			mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY eaten_at DESC, id DESC`)).
				WithArgs("u", tt.wantLimit).
				WillReturnRows(rows)

			repo := postgres.NewEntryRepo(db)
			got, err := repo.ListByUser(context.Background(), "u", tt.limit)
			if err != nil {
				t.Fatalf("ListByUser err=%v", err)
			}
			if diff := cmp.Diff([]*entity.FoodEntry{first, second}, got); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

/* ──────────────────────────────── 4. AttachImage ──────────────────────────────── */

func TestEntryRepo_AttachImage(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"updated", 1, nil},
		{"not owned", 0, entity.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, _ := sqlmock.New()
			defer func() { _ = db.Close() }()

			mock.ExpectExec(regexp.QuoteMeta(`UPDATE food_entries SET image_key = $1 WHERE id = $2 AND user_id = $3`)).
				WithArgs("entries/3.png", int64(3), "u").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			repo := postgres.NewEntryRepo(db)
			err := repo.AttachImage(context.Background(), "u", 3, "entries/3.png")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			}
		})
	}
}

/* ──────────────────────────────── 5. circuit breaker ──────────────────────────────── */

func TestEntryRepo_ThroughCircuitBreaker(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	cfg := circuitbreaker.DBConfig()
	cfg.MinRequests = 2
	cb := circuitbreaker.NewDBCircuitBreakerWithConfig(db, cfg)
	repo := postgres.NewEntryRepo(cb)

	boom := errors.New("database down")
	mock.ExpectQuery(`FROM food_entries`).WillReturnError(boom)
	mock.ExpectQuery(`FROM food_entries`).WillReturnError(boom)

	for i := 0; i < 2; i++ {
		if _, err := repo.ListByUser(context.Background(), "u", 10); !errors.Is(err, boom) {
			t.Fatalf("call %d: want %v, got %v", i, boom, err)
		}
	}
	if !cb.IsOpen() {
		t.Fatal("breaker should be open after consecutive failures")
	}

	// Open breaker fails fast without touching the database.
	if _, err := repo.ListByUser(context.Background(), "u", 10); err == nil {
		t.Fatal("want error from open breaker")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
