package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeout_FastHandler(t *testing.T) {
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "/api/entries/1")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1}`))
		_, _ = w.Write([]byte("\n"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/entries", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/api/entries/1", rec.Header().Get("Location"))
	assert.Equal(t, "{\"id\":1}\n", rec.Body.String())
}

func TestTimeout_ImplicitOK(t *testing.T) {
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/entries", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestTimeout_SlowHandler(t *testing.T) {
	writeErr := make(chan error, 1)
	canceled := make(chan struct{})

	h := Timeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		close(canceled)
		w.Header().Set("X-Late", "1")
		_, err := w.Write([]byte("late"))
		writeErr <- err
	}))

	rec := httptest.NewRecorder()
	outer := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	h.ServeHTTP(rec, outer)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.JSONEq(t, `{"error":"request timeout"}`, rec.Body.String())

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("handler context was not canceled")
	}
	assert.ErrorIs(t, <-writeErr, http.ErrHandlerTimeout)
	assert.Empty(t, rec.Header().Get("X-Late"))
	assert.NotContains(t, rec.Body.String(), "late")
}

func TestTimeout_ResponseStartedBeforeDeadline(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})
	h := Timeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(finished)
		w.WriteHeader(http.StatusAccepted)
		<-r.Context().Done()
		<-release
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/entries", nil))
	close(release)
	<-finished

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestTimeout_KeepsOuterContext(t *testing.T) {
	type key struct{}
	var got any
	var deadline bool

	h := Timeout(time.Second)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = r.Context().Value(key{})
		_, deadline = r.Context().Deadline()
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	req = req.WithContext(context.WithValue(req.Context(), key{}, "user-1"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "user-1", got)
	assert.True(t, deadline)
}

func TestTimeout_ClientGoneWritesNothing(t *testing.T) {
	h := Timeout(time.Second)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/entries", nil).WithContext(ctx))

	require.Empty(t, rec.Body.String())
}

func TestTimeout_PanicReachesRecover(t *testing.T) {
	h := Recover(slog.New(slog.NewTextHandler(io.Discard, nil)))(
		Timeout(time.Second)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/entries", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}
