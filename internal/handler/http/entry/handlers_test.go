package entry_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-diary/internal/domain/entity"
	"food-diary/internal/handler/http/auth"
	"food-diary/internal/handler/http/entry"
	"food-diary/internal/handler/http/respond"
	entryUC "food-diary/internal/usecase/entry"
)

/* ───────── stub ───────── */

type stubRepo struct {
	data   map[int64]*entity.FoodEntry
	nextID int64
	err    error
}

func newStub() *stubRepo {
	return &stubRepo{data: map[int64]*entity.FoodEntry{}, nextID: 1}
}

func (s *stubRepo) Create(_ context.Context, e *entity.FoodEntry) error {
	if s.err != nil {
		return s.err
	}
	e.ID = s.nextID
	e.CreatedAt = now
	s.nextID++
	s.data[e.ID] = e
	return nil
}

func (s *stubRepo) Get(_ context.Context, userID string, id int64) (*entity.FoodEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	e, ok := s.data[id]
	if !ok || e.UserID != userID {
		return nil, entity.ErrNotFound
	}
	return e, nil
}

func (s *stubRepo) ListByUser(_ context.Context, userID string, limit int) ([]*entity.FoodEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*entity.FoodEntry
	for id := int64(1); id < s.nextID && len(out) < limit; id++ {
		if e, ok := s.data[id]; ok && e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *stubRepo) AttachImage(context.Context, string, int64, string) error { return s.err }

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeAuth stands in for auth.Verifier.Middleware: the user comes from X-Test-User.
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := r.Header.Get("X-Test-User"); u != "" {
			r = r.WithContext(auth.WithUserID(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

func newServer(repo *stubRepo) *http.ServeMux {
	mux := http.NewServeMux()
	svc := &entryUC.Service{Repo: repo, Now: func() time.Time { return now }}
	entry.Register(mux, svc, fakeAuth)
	return mux
}

func do(mux http.Handler, method, target, user, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

/* ───────── POST /api/entries ───────── */

func TestCreateHandler(t *testing.T) {
	repo := newStub()
	mux := newServer(repo)

	rec := do(mux, http.MethodPost, "/api/entries", "user-1",
		`{"food_name":"Curry <b>x</b>rice","meal_type":"lunch","calories":700,"eaten_at":"2026-03-01T11:30:00Z"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var got entry.DTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "Curry xrice", got.FoodName)
	assert.Equal(t, "lunch", got.MealType)
	require.NotNil(t, got.Calories)
	assert.Equal(t, 700, *got.Calories)
	assert.Equal(t, "user-1", repo.data[1].UserID)
}

func TestCreateHandler_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		user       string
		body       string
		wantStatus int
		wantFields []string
		wantError  string
	}{
		{
			name:       "no user",
			body:       `{"food_name":"Toast","meal_type":"breakfast","eaten_at":"2026-03-01T08:00:00Z"}`,
			wantStatus: http.StatusUnauthorized,
			wantError:  "bearer token required",
		},
		{
			name:       "malformed json",
			user:       "u",
			body:       `{"food_name":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid JSON body",
		},
		{
			name:       "unknown field",
			user:       "u",
			body:       `{"food_name":"Toast","user_id":"admin"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid JSON body",
		},
		{
			name:       "bad timestamp",
			user:       "u",
			body:       `{"food_name":"Toast","meal_type":"breakfast","eaten_at":"yesterday"}`,
			wantStatus: http.StatusBadRequest,
			wantFields: []string{"eaten_at"},
		},
		{
			name:       "injection in food name and notes",
			user:       "u",
			body:       `{"food_name":"x' OR 1=1; DROP TABLE food_entries","notes":"a || b","meal_type":"lunch","eaten_at":"2026-03-01T08:00:00Z"}`,
			wantStatus: http.StatusBadRequest,
			wantFields: []string{"food_name", "notes"},
		},
		{
			name:       "business rules",
			user:       "u",
			body:       `{"food_name":"","meal_type":"brunch"}`,
			wantStatus: http.StatusBadRequest,
			wantFields: []string{"food_name", "meal_type", "eaten_at"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newStub()
			rec := do(newServer(repo), http.MethodPost, "/api/entries", tt.user, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Empty(t, repo.data)

			if tt.wantFields != nil {
				var body respond.ValidationResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, "validation_failed", body.Error)
				var fields []string
				for _, f := range body.Fields {
					fields = append(fields, f.Field)
				}
				assert.Equal(t, tt.wantFields, fields)
				assert.NotContains(t, rec.Body.String(), "DROP TABLE", "rejected values must not be echoed")
			}
			if tt.wantError != "" {
				assert.Contains(t, rec.Body.String(), tt.wantError)
			}
		})
	}
}

func TestCreateHandler_RepositoryErrorIsMasked(t *testing.T) {
	repo := newStub()
	repo.err = errors.New(`pq: password authentication failed for user "diary"`)

	rec := do(newServer(repo), http.MethodPost, "/api/entries", "u",
		`{"food_name":"Toast","meal_type":"breakfast","eaten_at":"2026-03-01T08:00:00Z"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestCreateHandler_OpenBreakerIs503(t *testing.T) {
	repo := newStub()
	repo.err = gobreaker.ErrOpenState

	rec := do(newServer(repo), http.MethodPost, "/api/entries", "u",
		`{"food_name":"Toast","meal_type":"breakfast","eaten_at":"2026-03-01T08:00:00Z"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}

/* ───────── GET /api/entries/{id} ───────── */

func TestGetHandler(t *testing.T) {
	repo := newStub()
	repo.data[1] = &entity.FoodEntry{ID: 1, UserID: "owner", FoodName: "Sushi", MealType: entity.MealDinner, EatenAt: now}
	repo.nextID = 2
	mux := newServer(repo)

	tests := []struct {
		name       string
		path       string
		user       string
		wantStatus int
	}{
		{"owner", "/api/entries/1", "owner", http.StatusOK},
		{"other user sees 404", "/api/entries/1", "intruder", http.StatusNotFound},
		{"missing", "/api/entries/99", "owner", http.StatusNotFound},
		{"non-numeric id", "/api/entries/abc", "owner", http.StatusBadRequest},
		{"zero id", "/api/entries/0", "owner", http.StatusBadRequest},
		{"no user", "/api/entries/1", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(mux, http.MethodGet, tt.path, tt.user, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				var got entry.DTO
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.Equal(t, "Sushi", got.FoodName)
			}
		})
	}
}

/* ───────── GET /api/entries ───────── */

func TestListHandler(t *testing.T) {
	repo := newStub()
	for i := 1; i <= 3; i++ {
		repo.data[int64(i)] = &entity.FoodEntry{ID: int64(i), UserID: "a", FoodName: "meal", MealType: entity.MealSnack, EatenAt: now}
	}
	repo.data[4] = &entity.FoodEntry{ID: 4, UserID: "b", FoodName: "other", MealType: entity.MealSnack, EatenAt: now}
	repo.nextID = 5
	mux := newServer(repo)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantLen    int
	}{
		{"default limit", "/api/entries", http.StatusOK, 3},
		{"explicit limit", "/api/entries?limit=2", http.StatusOK, 2},
		{"limit too large", "/api/entries?limit=1000", http.StatusBadRequest, 0},
		{"limit not a number", "/api/entries?limit=ten", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(mux, http.MethodGet, tt.target, "a", "")
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var got entry.ListResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Len(t, got.Entries, tt.wantLen)
		})
	}
}

func TestListHandler_EmptyIsArray(t *testing.T) {
	rec := do(newServer(newStub()), http.MethodGet, "/api/entries", "nobody", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entries":[]}`, rec.Body.String())
}
